package telemetry

// Config holds OpenTelemetry trace export settings.
// Tracing is active only when Enabled is true and Endpoint is set.
type Config struct {
	Enabled     bool   `toml:"enabled" env:"ENABLED"`
	Endpoint    string `toml:"endpoint" env:"ENDPOINT"`
	ServiceName string `toml:"service_name" env:"SERVICE_NAME"`
}

// Active reports whether spans are exported.
func (c *Config) Active() bool {
	return c.Enabled && c.Endpoint != ""
}

func (c *Config) Finalize() error {
	if c.ServiceName == "" {
		c.ServiceName = "tawarruq"
	}
	return nil
}
