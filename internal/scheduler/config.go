package scheduler

import (
	"time"

	"github.com/smallbiznis/mealplan/internal/config"
)

// Config controls scheduler intervals, batch sizes and worker counts.
type Config struct {
	RunInterval    time.Duration
	BatchSize      int
	Workers        int
	ReminderHour   int
	LeaseTTL       time.Duration
	ConflictRetry  int
	ProcessTimeout time.Duration
}

func DefaultConfig() Config {
	return Config{
		RunInterval:    time.Hour,
		BatchSize:      50,
		Workers:        4,
		ReminderHour:   8,
		LeaseTTL:       10 * time.Minute,
		ConflictRetry:  3,
		ProcessTimeout: 5 * time.Minute,
	}
}

func ProvideConfig(cfg config.Config) Config {
	return Config{
		RunInterval:    cfg.Scheduler.RunInterval,
		BatchSize:      cfg.Scheduler.BatchSize,
		Workers:        cfg.Scheduler.Workers,
		ReminderHour:   cfg.Scheduler.ReminderHour,
		LeaseTTL:       cfg.Scheduler.LeaseTTL,
		ConflictRetry:  cfg.Scheduler.ConflictRetry,
		ProcessTimeout: cfg.Scheduler.ProcessTimeout,
	}.withDefaults()
}

func (c Config) withDefaults() Config {
	defaults := DefaultConfig()
	if c.RunInterval <= 0 {
		c.RunInterval = defaults.RunInterval
	}
	if c.BatchSize <= 0 {
		c.BatchSize = defaults.BatchSize
	}
	if c.Workers <= 0 {
		c.Workers = defaults.Workers
	}
	if c.ReminderHour < 0 || c.ReminderHour > 23 {
		c.ReminderHour = defaults.ReminderHour
	}
	if c.LeaseTTL <= 0 {
		c.LeaseTTL = defaults.LeaseTTL
	}
	if c.ConflictRetry <= 0 {
		c.ConflictRetry = defaults.ConflictRetry
	}
	if c.ProcessTimeout <= 0 {
		c.ProcessTimeout = defaults.ProcessTimeout
	}
	return c
}
