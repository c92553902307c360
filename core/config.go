package core

import (
	"fmt"
	"strings"
	"time"
)

type SweepConfig struct {
	Interval  time.Duration `koanf:"interval" mapstructure:"interval"`
	Burst     int           `koanf:"burst" mapstructure:"burst"`
	IdleDelay time.Duration `koanf:"idle_delay" mapstructure:"idle_delay"`
}

type Config struct {
	ServiceName    string          `koanf:"service_name" mapstructure:"service_name"`
	MaxAttempts    int             `koanf:"max_attempts" mapstructure:"max_attempts"`
	BackoffDelays  []time.Duration `koanf:"backoff_delays" mapstructure:"backoff_delays"`
	HandlerTimeout time.Duration   `koanf:"handler_timeout" mapstructure:"handler_timeout"`
	Sweep          SweepConfig     `koanf:"sweep" mapstructure:"sweep"`
}

func DefaultConfig() Config {
	return Config{
		ServiceName:    "webhook-events",
		MaxAttempts:    3,
		BackoffDelays:  []time.Duration{time.Second, 2 * time.Second, 4 * time.Second},
		HandlerTimeout: 30 * time.Second,
		Sweep: SweepConfig{
			Interval:  5 * time.Second,
			Burst:     10,
			IdleDelay: 2 * time.Second,
		},
	}
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.ServiceName) == "" {
		return fmt.Errorf("core: service_name is required")
	}
	if c.MaxAttempts <= 0 {
		return fmt.Errorf("core: max_attempts must be positive")
	}
	if len(c.BackoffDelays) == 0 {
		return fmt.Errorf("core: at least one backoff delay is required")
	}
	for i, delay := range c.BackoffDelays {
		if delay <= 0 {
			return fmt.Errorf("core: backoff delay %d must be positive", i)
		}
	}
	if c.HandlerTimeout < 0 {
		return fmt.Errorf("core: handler_timeout must not be negative")
	}
	if c.Sweep.Interval < 0 || c.Sweep.IdleDelay < 0 {
		return fmt.Errorf("core: sweep intervals must not be negative")
	}
	return nil
}
