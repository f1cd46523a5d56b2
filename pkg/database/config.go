package database

import (
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"time"
)

// Supported drivers. DriverPostgres is the pgx stdlib driver; DriverSQLite
// is modernc.org/sqlite for embedded and local use.
const (
	DriverPostgres = "pgx"
	DriverSQLite   = "sqlite"
)

// Config selects a driver and its connection settings. Host through SSLMode
// apply to PostgreSQL, Path to SQLite. The env tags are relative to the
// caller's prefix.
type Config struct {
	Driver          string `toml:"driver" env:"DRIVER"`
	Host            string `toml:"host" env:"HOST"`
	Port            int    `toml:"port" env:"PORT"`
	Name            string `toml:"name" env:"NAME"`
	User            string `toml:"user" env:"USER"`
	Password        string `toml:"password" env:"PASSWORD"`
	SSLMode         string `toml:"ssl_mode" env:"SSL_MODE"`
	Path            string `toml:"path" env:"PATH"`
	MaxOpenConns    int    `toml:"max_open_conns" env:"MAX_OPEN_CONNS"`
	MaxIdleConns    int    `toml:"max_idle_conns" env:"MAX_IDLE_CONNS"`
	ConnMaxLifetime string `toml:"conn_max_lifetime" env:"CONN_MAX_LIFETIME"`
	ConnTimeout     string `toml:"conn_timeout" env:"CONN_TIMEOUT"`
	AutoMigrate     bool   `toml:"auto_migrate" env:"AUTO_MIGRATE"`
}

func (c *Config) ConnMaxLifetimeDuration() time.Duration {
	d, _ := time.ParseDuration(c.ConnMaxLifetime)
	return d
}

func (c *Config) ConnTimeoutDuration() time.Duration {
	d, _ := time.ParseDuration(c.ConnTimeout)
	return d
}

// Dsn returns the driver connection string. SQLite files enforce foreign
// keys and wait up to 5s on a locked database rather than failing.
func (c *Config) Dsn() string {
	if c.Driver == DriverSQLite {
		return "file:" + c.Path + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"
	}

	q := url.Values{}
	q.Set("sslmode", c.SSLMode)
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(c.User, c.Password),
		Host:     c.Host + ":" + strconv.Itoa(c.Port),
		Path:     "/" + c.Name,
		RawQuery: q.Encode(),
	}
	return u.String()
}

// Finalize fills unset fields with defaults and validates the result.
func (c *Config) Finalize() error {
	c.Driver = or(c.Driver, DriverPostgres)
	c.Host = or(c.Host, "localhost")
	c.Port = or(c.Port, 5432)
	c.SSLMode = or(c.SSLMode, "disable")
	c.Path = or(c.Path, "tawarruq.db")
	c.MaxOpenConns = or(c.MaxOpenConns, 25)
	c.MaxIdleConns = or(c.MaxIdleConns, 5)
	c.ConnMaxLifetime = or(c.ConnMaxLifetime, "15m")
	c.ConnTimeout = or(c.ConnTimeout, "5s")

	var errs []error
	switch c.Driver {
	case DriverPostgres:
		if c.Name == "" {
			errs = append(errs, errors.New("name required"))
		}
		if c.User == "" {
			errs = append(errs, errors.New("user required"))
		}
	case DriverSQLite:
	default:
		errs = append(errs, fmt.Errorf("unsupported driver %q", c.Driver))
	}
	if _, err := time.ParseDuration(c.ConnMaxLifetime); err != nil {
		errs = append(errs, fmt.Errorf("invalid conn_max_lifetime %q", c.ConnMaxLifetime))
	}
	if _, err := time.ParseDuration(c.ConnTimeout); err != nil {
		errs = append(errs, fmt.Errorf("invalid conn_timeout %q", c.ConnTimeout))
	}
	return errors.Join(errs...)
}

func or[T comparable](v, fallback T) T {
	var zero T
	if v == zero {
		return fallback
	}
	return v
}
