package config

import (
	"fmt"

	"github.com/JaimeStill/tawarruq/pkg/formatting"
	"github.com/JaimeStill/tawarruq/pkg/middleware"
	"github.com/JaimeStill/tawarruq/pkg/openapi"
	"github.com/JaimeStill/tawarruq/pkg/pagination"
)

const defaultMaxBodySize = 1 << 20

// APIConfig holds settings for the mounted /api module.
type APIConfig struct {
	BasePath    string                `toml:"base_path" env:"BASE_PATH"`
	MaxBodySize string                `toml:"max_body_size" env:"MAX_BODY_SIZE"`
	CORS        middleware.CORSConfig `toml:"cors" envPrefix:"CORS_"`
	Pagination  pagination.Config     `toml:"pagination" envPrefix:"PAGINATION_"`
	OpenAPI     openapi.Config        `toml:"openapi" envPrefix:"OPENAPI_"`
}

// MaxBodySizeBytes returns MaxBodySize in bytes, falling back to 1MB.
func (c *APIConfig) MaxBodySizeBytes() int64 {
	size, err := formatting.ParseBytes(c.MaxBodySize)
	if err != nil || size <= 0 {
		return defaultMaxBodySize
	}
	return size
}

func (c *APIConfig) Finalize() error {
	if c.BasePath == "" {
		c.BasePath = "/api"
	}
	if c.MaxBodySize == "" {
		c.MaxBodySize = "1MB"
	}

	if _, err := formatting.ParseBytes(c.MaxBodySize); err != nil {
		return fmt.Errorf("invalid max_body_size: %w", err)
	}
	if err := c.CORS.Finalize(); err != nil {
		return fmt.Errorf("cors: %w", err)
	}
	if err := c.Pagination.Finalize(); err != nil {
		return fmt.Errorf("pagination: %w", err)
	}
	return c.OpenAPI.Finalize()
}
