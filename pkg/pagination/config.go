package pagination

import "errors"

// Config bounds page sizes. Requests past MaxPageSize are clamped, not rejected.
type Config struct {
	DefaultPageSize int `toml:"default_page_size" env:"DEFAULT_PAGE_SIZE"`
	MaxPageSize     int `toml:"max_page_size" env:"MAX_PAGE_SIZE"`
}

func (c *Config) Finalize() error {
	if c.DefaultPageSize <= 0 {
		c.DefaultPageSize = 20
	}
	if c.MaxPageSize <= 0 {
		c.MaxPageSize = 100
	}
	if c.DefaultPageSize > c.MaxPageSize {
		return errors.New("default_page_size cannot exceed max_page_size")
	}
	return nil
}
