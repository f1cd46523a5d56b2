package scoring

import (
	"fmt"
	"time"
)

// Advisor providers.
const (
	ProviderRules  = "rules"
	ProviderGemini = "gemini"
)

// Config selects and tunes the compliance advisor.
type Config struct {
	Provider        string  `toml:"provider" env:"PROVIDER"`
	APIKey          string  `toml:"api_key" env:"API_KEY"`
	Model           string  `toml:"model" env:"MODEL"`
	Timeout         string  `toml:"timeout" env:"TIMEOUT"`
	Temperature     float64 `toml:"temperature" env:"TEMPERATURE"`
	MaxOutputTokens int64   `toml:"max_output_tokens" env:"MAX_OUTPUT_TOKENS"`
}

func (c *Config) TimeoutDuration() time.Duration {
	d, _ := time.ParseDuration(c.Timeout)
	return d
}

// Finalize fills unset fields with defaults and validates the result.
func (c *Config) Finalize() error {
	if c.Provider == "" {
		c.Provider = ProviderRules
	}
	if c.Model == "" {
		c.Model = "gemini-1.5-flash"
	}
	if c.Timeout == "" {
		c.Timeout = "30s"
	}
	if c.Temperature == 0 {
		c.Temperature = 0.3
	}
	if c.MaxOutputTokens == 0 {
		c.MaxOutputTokens = 2048
	}

	switch c.Provider {
	case ProviderRules, ProviderGemini:
	default:
		return fmt.Errorf("unsupported advisor provider: %s", c.Provider)
	}
	if d, err := time.ParseDuration(c.Timeout); err != nil || d <= 0 {
		return fmt.Errorf("invalid timeout: %q", c.Timeout)
	}
	if c.Temperature < 0 || c.Temperature > 2 {
		return fmt.Errorf("temperature must be between 0 and 2")
	}
	if c.MaxOutputTokens < 0 {
		return fmt.Errorf("max_output_tokens must not be negative")
	}
	return nil
}
