package config

import (
	"fmt"
	"net"
	"strconv"
	"time"
)

// ServerConfig holds HTTP listener settings. Timeouts are Go duration strings.
type ServerConfig struct {
	Host              string `toml:"host" env:"HOST"`
	Port              int    `toml:"port" env:"PORT"`
	ReadTimeout       string `toml:"read_timeout" env:"READ_TIMEOUT"`
	ReadHeaderTimeout string `toml:"read_header_timeout" env:"READ_HEADER_TIMEOUT"`
	WriteTimeout      string `toml:"write_timeout" env:"WRITE_TIMEOUT"`
	IdleTimeout       string `toml:"idle_timeout" env:"IDLE_TIMEOUT"`
	ShutdownTimeout   string `toml:"shutdown_timeout" env:"SHUTDOWN_TIMEOUT"`
}

func (c *ServerConfig) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

func (c *ServerConfig) ReadTimeoutDuration() time.Duration {
	return duration(c.ReadTimeout)
}

func (c *ServerConfig) ReadHeaderTimeoutDuration() time.Duration {
	return duration(c.ReadHeaderTimeout)
}

func (c *ServerConfig) WriteTimeoutDuration() time.Duration {
	return duration(c.WriteTimeout)
}

func (c *ServerConfig) IdleTimeoutDuration() time.Duration {
	return duration(c.IdleTimeout)
}

func (c *ServerConfig) ShutdownTimeoutDuration() time.Duration {
	return duration(c.ShutdownTimeout)
}

// Finalize fills defaults and rejects out-of-range ports or malformed and
// negative timeouts.
func (c *ServerConfig) Finalize() error {
	if c.Host == "" {
		c.Host = "0.0.0.0"
	}
	if c.Port == 0 {
		c.Port = 8080
	}
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("port %d out of range", c.Port)
	}

	timeouts := []struct {
		key   string
		value *string
		def   string
	}{
		{"read_timeout", &c.ReadTimeout, "30s"},
		{"read_header_timeout", &c.ReadHeaderTimeout, "10s"},
		{"write_timeout", &c.WriteTimeout, "1m"},
		{"idle_timeout", &c.IdleTimeout, "2m"},
		{"shutdown_timeout", &c.ShutdownTimeout, "30s"},
	}
	for _, t := range timeouts {
		if *t.value == "" {
			*t.value = t.def
		}
		if d, err := time.ParseDuration(*t.value); err != nil || d < 0 {
			return fmt.Errorf("invalid %s %q", t.key, *t.value)
		}
	}
	return nil
}

func duration(s string) time.Duration {
	d, _ := time.ParseDuration(s)
	return d
}
