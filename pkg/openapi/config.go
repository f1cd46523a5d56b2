package openapi

// Config holds the info block of the generated document.
type Config struct {
	Title       string `toml:"title" env:"TITLE"`
	Description string `toml:"description" env:"DESCRIPTION"`
}

func (c *Config) Finalize() error {
	if c.Title == "" {
		c.Title = "Tawarruq API"
	}
	if c.Description == "" {
		c.Description = "Shariah compliance tracking for three-stage Tawarruq financing transactions."
	}
	return nil
}
