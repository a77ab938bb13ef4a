package config

import (
	"errors"
	"strings"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// Policy holds operator-tunable meal plan rules loaded from mealplan.yml.
type Policy struct {
	ScheduledDeliveryFee     int64         `mapstructure:"scheduledDeliveryFee"`
	CartDeliveryFee          int64         `mapstructure:"cartDeliveryFee"`
	TaxRateBps               int64         `mapstructure:"taxRateBps"`
	DefaultMaxFailedAttempts int           `mapstructure:"defaultMaxFailedAttempts"`
	ReminderLookahead        time.Duration `mapstructure:"reminderLookahead"`
	RequireFundedOnCreate    bool          `mapstructure:"requireFundedOnCreate"`
	DefaultCountry           string        `mapstructure:"defaultCountry"`
}

func DefaultPolicy() Policy {
	return Policy{
		ScheduledDeliveryFee:     0,
		CartDeliveryFee:          0,
		TaxRateBps:               0,
		DefaultMaxFailedAttempts: 3,
		ReminderLookahead:        24 * time.Hour,
		RequireFundedOnCreate:    true,
		DefaultCountry:           "Nigeria",
	}
}

// Tax returns the tax owed on subtotal, rounded down to the minor unit.
func (p Policy) Tax(subtotal int64) int64 {
	if p.TaxRateBps <= 0 || subtotal <= 0 {
		return 0
	}
	return subtotal * p.TaxRateBps / 10_000
}

type PolicyHolder struct {
	current atomic.Value // holds Policy
}

// NewStaticPolicyHolder returns a holder that never reloads.
func NewStaticPolicyHolder(p Policy) *PolicyHolder {
	holder := &PolicyHolder{}
	holder.current.Store(p)
	return holder
}

func ProvidePolicyHolder(cfg Config, log *zap.Logger) (*PolicyHolder, error) {
	return NewPolicyHolder(log, cfg.PolicyPaths...)
}

// NewPolicyHolder reads mealplan.yml from the first matching path and watches it for changes.
// Missing files fall back to DefaultPolicy.
func NewPolicyHolder(log *zap.Logger, paths ...string) (*PolicyHolder, error) {
	if log == nil {
		log = zap.NewNop()
	}
	log = log.Named("config.policy")

	v := viper.New()
	v.SetConfigName("mealplan")
	v.SetConfigType("yml")
	for _, path := range paths {
		v.AddConfigPath(path)
	}

	v.SetEnvPrefix("MEALPLAN")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	defaults := DefaultPolicy()
	v.SetDefault("mealplan.scheduledDeliveryFee", defaults.ScheduledDeliveryFee)
	v.SetDefault("mealplan.cartDeliveryFee", defaults.CartDeliveryFee)
	v.SetDefault("mealplan.taxRateBps", defaults.TaxRateBps)
	v.SetDefault("mealplan.defaultMaxFailedAttempts", defaults.DefaultMaxFailedAttempts)
	v.SetDefault("mealplan.reminderLookahead", defaults.ReminderLookahead)
	v.SetDefault("mealplan.requireFundedOnCreate", defaults.RequireFundedOnCreate)
	v.SetDefault("mealplan.defaultCountry", defaults.DefaultCountry)

	found := true
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
		found = false
	}

	policy, err := decodePolicy(v)
	if err != nil {
		return nil, err
	}
	if err := validatePolicy(policy); err != nil {
		return nil, err
	}

	holder := NewStaticPolicyHolder(policy)
	if !found {
		log.Info("policy file not found, using defaults")
		return holder, nil
	}

	v.WatchConfig()
	v.OnConfigChange(func(e fsnotify.Event) {
		updated, err := decodePolicy(v)
		if err != nil {
			log.Warn("policy reload failed", zap.Error(err))
			return
		}
		if err := validatePolicy(updated); err != nil {
			log.Warn("invalid policy ignored", zap.Error(err))
			return
		}
		holder.current.Store(updated)
		log.Info("policy reloaded", zap.String("file", e.Name))
	})

	return holder, nil
}

func (h *PolicyHolder) Get() Policy {
	if h == nil {
		return DefaultPolicy()
	}
	return h.current.Load().(Policy)
}

// decodePolicy goes through AllSettings so partial files keep the defaults of missing keys.
func decodePolicy(v *viper.Viper) (Policy, error) {
	var wrapper struct {
		Mealplan Policy `mapstructure:"mealplan"`
	}
	if err := v.Unmarshal(&wrapper); err != nil {
		return Policy{}, err
	}
	return wrapper.Mealplan, nil
}

func validatePolicy(p Policy) error {
	if p.ScheduledDeliveryFee < 0 {
		return errors.New("mealplan.scheduledDeliveryFee cannot be negative")
	}
	if p.CartDeliveryFee < 0 {
		return errors.New("mealplan.cartDeliveryFee cannot be negative")
	}
	if p.TaxRateBps < 0 || p.TaxRateBps > 10_000 {
		return errors.New("mealplan.taxRateBps must be between 0 and 10000")
	}
	if p.DefaultMaxFailedAttempts <= 0 {
		return errors.New("mealplan.defaultMaxFailedAttempts must be positive")
	}
	if p.ReminderLookahead <= 0 {
		return errors.New("mealplan.reminderLookahead must be positive")
	}
	return nil
}
