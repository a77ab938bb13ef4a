package lock

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNilRedisLocker(t *testing.T) {
	l := NewRedisLocker(nil)
	assert.Nil(t, l)

	_, ok, err := l.TryLock(context.Background(), "k", time.Second)
	assert.False(t, ok)
	require.ErrorIs(t, err, ErrNotConfigured)
	assert.NoError(t, l.Release(context.Background(), "k", "t"))
}
