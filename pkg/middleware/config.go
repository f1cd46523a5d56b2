package middleware

import (
	"slices"
	"strings"
)

// CORSConfig holds the cross-origin policy. Origins must list each allowed
// origin exactly; there is no wildcard.
type CORSConfig struct {
	Enabled          bool     `toml:"enabled" env:"ENABLED"`
	Origins          []string `toml:"origins" env:"ORIGINS" envSeparator:","`
	AllowedMethods   []string `toml:"allowed_methods" env:"ALLOWED_METHODS" envSeparator:","`
	AllowedHeaders   []string `toml:"allowed_headers" env:"ALLOWED_HEADERS" envSeparator:","`
	AllowCredentials bool     `toml:"allow_credentials" env:"ALLOW_CREDENTIALS"`
	MaxAge           int      `toml:"max_age" env:"MAX_AGE"`
}

// Finalize trims list entries, which arrive with stray spaces from
// comma-separated environment values, and fills defaults.
func (c *CORSConfig) Finalize() error {
	c.Origins = compact(c.Origins)
	c.AllowedMethods = compact(c.AllowedMethods)
	c.AllowedHeaders = compact(c.AllowedHeaders)

	if len(c.AllowedMethods) == 0 {
		c.AllowedMethods = []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}
	}
	if len(c.AllowedHeaders) == 0 {
		c.AllowedHeaders = []string{"Content-Type", "Authorization", "traceparent"}
	}
	if c.MaxAge <= 0 {
		c.MaxAge = 3600
	}
	return nil
}

func compact(items []string) []string {
	out := items[:0:0]
	for _, item := range items {
		if item = strings.TrimSpace(item); item != "" && !slices.Contains(out, item) {
			out = append(out, item)
		}
	}
	return out
}
