package storage

import (
	"errors"
	"strings"
)

// Config holds Azure Blob Storage connection parameters.
// An empty ConnectionString disables archiving.
type Config struct {
	ContainerName    string `toml:"container_name" env:"CONTAINER_NAME"`
	ConnectionString string `toml:"connection_string" env:"CONNECTION_STRING"`
}

func (c *Config) Enabled() bool {
	return c.ConnectionString != ""
}

func (c *Config) Finalize() error {
	c.ContainerName = strings.TrimSpace(c.ContainerName)
	if c.ContainerName == "" {
		c.ContainerName = "certificates"
	}
	if strings.ContainsAny(c.ContainerName, "/ ") {
		return errors.New("container_name must be a single path segment")
	}
	return nil
}
