package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestNewPolicyHolderDefaultsWhenFileMissing(t *testing.T) {
	holder, err := NewPolicyHolder(zap.NewNop(), t.TempDir())
	require.NoError(t, err)

	assert.Equal(t, DefaultPolicy(), holder.Get())
}

func TestNewPolicyHolderReadsFile(t *testing.T) {
	dir := t.TempDir()
	content := []byte(`mealplan:
  scheduledDeliveryFee: 500
  taxRateBps: 750
  defaultMaxFailedAttempts: 5
  reminderLookahead: 48h
  requireFundedOnCreate: false
  defaultCountry: Ghana
`)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "mealplan.yml"), content, 0o600))

	holder, err := NewPolicyHolder(zap.NewNop(), dir)
	require.NoError(t, err)

	policy := holder.Get()
	assert.Equal(t, int64(500), policy.ScheduledDeliveryFee)
	assert.Equal(t, int64(750), policy.TaxRateBps)
	assert.Equal(t, 5, policy.DefaultMaxFailedAttempts)
	assert.Equal(t, 48*time.Hour, policy.ReminderLookahead)
	assert.False(t, policy.RequireFundedOnCreate)
	assert.Equal(t, "Ghana", policy.DefaultCountry)
}

func TestNewPolicyHolderRejectsInvalidFile(t *testing.T) {
	dir := t.TempDir()
	content := []byte(`mealplan:
  defaultMaxFailedAttempts: 0
`)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "mealplan.yml"), content, 0o600))

	_, err := NewPolicyHolder(zap.NewNop(), dir)
	assert.Error(t, err)
}

func TestPolicyTax(t *testing.T) {
	p := DefaultPolicy()
	assert.Equal(t, int64(0), p.Tax(1000))

	p.TaxRateBps = 750
	assert.Equal(t, int64(75), p.Tax(1000))
	assert.Equal(t, int64(0), p.Tax(0))
}
