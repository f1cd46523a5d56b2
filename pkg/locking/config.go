package locking

import (
	"fmt"
	"time"
)

// Supported lock backends.
const (
	BackendLocal = "local"
	BackendRedis = "redis"
)

// Config holds lock backend parameters.
// TTL bounds how long a Redis lock survives a crashed holder.
// RetryInterval and RetryLimit bound how long Obtain waits for a held key.
type Config struct {
	Backend       string `toml:"backend" env:"BACKEND"`
	Addr          string `toml:"addr" env:"ADDR"`
	Password      string `toml:"password" env:"PASSWORD"`
	DB            int    `toml:"db" env:"DB"`
	TTL           string `toml:"ttl" env:"TTL"`
	RetryInterval string `toml:"retry_interval" env:"RETRY_INTERVAL"`
	RetryLimit    int    `toml:"retry_limit" env:"RETRY_LIMIT"`
}

func (c *Config) TTLDuration() time.Duration {
	d, _ := time.ParseDuration(c.TTL)
	return d
}

func (c *Config) RetryIntervalDuration() time.Duration {
	d, _ := time.ParseDuration(c.RetryInterval)
	return d
}

// WaitBudget is the longest Obtain blocks before giving up on a held key.
func (c *Config) WaitBudget() time.Duration {
	return c.RetryIntervalDuration() * time.Duration(c.RetryLimit)
}

// Finalize fills unset fields with defaults and validates the result.
func (c *Config) Finalize() error {
	if c.Backend == "" {
		c.Backend = BackendLocal
	}
	if c.Addr == "" {
		c.Addr = "localhost:6379"
	}
	if c.TTL == "" {
		c.TTL = "30s"
	}
	if c.RetryInterval == "" {
		c.RetryInterval = "100ms"
	}
	if c.RetryLimit == 0 {
		c.RetryLimit = 30
	}

	switch c.Backend {
	case BackendLocal, BackendRedis:
	default:
		return fmt.Errorf("unsupported backend: %s", c.Backend)
	}
	if d, err := time.ParseDuration(c.TTL); err != nil || d <= 0 {
		return fmt.Errorf("invalid ttl: %q", c.TTL)
	}
	if _, err := time.ParseDuration(c.RetryInterval); err != nil {
		return fmt.Errorf("invalid retry_interval: %w", err)
	}
	if c.RetryLimit < 0 {
		return fmt.Errorf("retry_limit must not be negative")
	}
	return nil
}
