package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"

	"github.com/JaimeStill/tawarruq/internal/scoring"
	"github.com/JaimeStill/tawarruq/pkg/database"
	"github.com/JaimeStill/tawarruq/pkg/locking"
	"github.com/JaimeStill/tawarruq/pkg/storage"
	"github.com/JaimeStill/tawarruq/pkg/telemetry"
)

const (
	BaseConfigFile       = "config.toml"
	OverlayConfigPattern = "config.%s.toml"
	DotEnvFile           = ".env"

	// EnvPrefix scopes every override. A field tagged env:"PORT" under
	// envPrefix:"SERVER_" reads TAWARRUQ_SERVER_PORT.
	EnvPrefix      = "TAWARRUQ_"
	EnvTawarruqEnv = EnvPrefix + "ENV"
)

// Log output formats.
const (
	LogFormatText = "text"
	LogFormatJSON = "json"
)

// Config is the root configuration for the Tawarruq service.
type Config struct {
	Server          ServerConfig     `toml:"server" envPrefix:"SERVER_"`
	Database        database.Config  `toml:"database" envPrefix:"DB_"`
	Storage         storage.Config   `toml:"storage" envPrefix:"STORAGE_"`
	API             APIConfig        `toml:"api" envPrefix:"API_"`
	Locking         locking.Config   `toml:"locking" envPrefix:"LOCK_"`
	Telemetry       telemetry.Config `toml:"telemetry" envPrefix:"TELEMETRY_"`
	Advisor         scoring.Config   `toml:"advisor" envPrefix:"ADVISOR_"`
	ShutdownTimeout string           `toml:"shutdown_timeout" env:"SHUTDOWN_TIMEOUT"`
	Version         string           `toml:"version" env:"VERSION"`
	LogLevel        string           `toml:"log_level" env:"LOG_LEVEL"`
	LogFormat       string           `toml:"log_format" env:"LOG_FORMAT"`
}

// Env returns the TAWARRUQ_ENV value, defaulting to "local".
func (c *Config) Env() string {
	if env := os.Getenv(EnvTawarruqEnv); env != "" {
		return env
	}
	return "local"
}

func (c *Config) ShutdownTimeoutDuration() time.Duration {
	d, _ := time.ParseDuration(c.ShutdownTimeout)
	return d
}

// Level returns LogLevel as a slog.Level, INFO when unparseable.
func (c *Config) Level() slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return slog.LevelInfo
	}
	return level
}

// Load builds the configuration in layers, each overriding the last:
// config.toml, config.<TAWARRUQ_ENV>.toml, then TAWARRUQ_* variables.
// A .env file seeds variables the process environment does not already set.
// Both TOML files are optional; keys absent from the overlay keep their
// base value.
func Load() (*Config, error) {
	if err := godotenv.Load(DotEnvFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load %s: %w", DotEnvFile, err)
	}

	cfg := &Config{}
	files := []string{BaseConfigFile}
	if env := os.Getenv(EnvTawarruqEnv); env != "" {
		files = append(files, fmt.Sprintf(OverlayConfigPattern, env))
	}
	for _, path := range files {
		if err := decodeFile(path, cfg); err != nil {
			return nil, err
		}
	}

	if err := env.ParseWithOptions(cfg, env.Options{Prefix: EnvPrefix}); err != nil {
		return nil, fmt.Errorf("environment: %w", err)
	}

	if err := cfg.finalize(); err != nil {
		return nil, fmt.Errorf("finalize config: %w", err)
	}
	return cfg, nil
}

func decodeFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}
	if err := toml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}
	return nil
}

type section struct {
	name     string
	finalize func() error
}

func (c *Config) finalize() error {
	if c.ShutdownTimeout == "" {
		c.ShutdownTimeout = "30s"
	}
	if c.Version == "" {
		c.Version = "0.1.0"
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	c.LogFormat = strings.ToLower(c.LogFormat)
	if c.LogFormat == "" {
		c.LogFormat = LogFormatText
	}

	if _, err := time.ParseDuration(c.ShutdownTimeout); err != nil {
		return fmt.Errorf("invalid shutdown_timeout: %w", err)
	}
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return fmt.Errorf("invalid log_level: %s", c.LogLevel)
	}
	if c.LogFormat != LogFormatText && c.LogFormat != LogFormatJSON {
		return fmt.Errorf("invalid log_format: %s", c.LogFormat)
	}

	sections := []section{
		{"server", c.Server.Finalize},
		{"database", c.Database.Finalize},
		{"storage", c.Storage.Finalize},
		{"api", c.API.Finalize},
		{"locking", c.Locking.Finalize},
		{"telemetry", c.Telemetry.Finalize},
		{"advisor", c.Advisor.Finalize},
	}
	for _, s := range sections {
		if err := s.finalize(); err != nil {
			return fmt.Errorf("%s: %w", s.name, err)
		}
	}
	return nil
}
