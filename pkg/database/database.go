// Package database opens the SQL pool behind the repositories and ties its
// lifetime to the lifecycle coordinator. PostgreSQL goes through the pgx
// stdlib driver, SQLite through modernc.org/sqlite.
package database

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"

	"github.com/JaimeStill/tawarruq/pkg/lifecycle"
)

// System is an opened pool plus the hooks that verify and close it.
type System interface {
	Connection() *sql.DB
	// Driver is DriverPostgres or DriverSQLite; migrations and error
	// mapping branch on it.
	Driver() string
	Start(lc *lifecycle.Coordinator) error
}

type pool struct {
	db          *sql.DB
	driver      string
	pingTimeout time.Duration
	logger      *slog.Logger
}

// New opens the pool without dialing; the first connection is made by the
// startup ping.
func New(cfg *Config, logger *slog.Logger) (System, error) {
	db, err := sql.Open(cfg.Driver, cfg.Dsn())
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", cfg.Driver, err)
	}

	switch cfg.Driver {
	case DriverSQLite:
		// A single connection serializes writers, and keeps a :memory:
		// database alive for the life of the pool.
		db.SetMaxOpenConns(1)
		db.SetConnMaxLifetime(0)
	default:
		db.SetMaxOpenConns(cfg.MaxOpenConns)
		db.SetMaxIdleConns(cfg.MaxIdleConns)
		db.SetConnMaxLifetime(cfg.ConnMaxLifetimeDuration())
	}

	return &pool{
		db:          db,
		driver:      cfg.Driver,
		pingTimeout: cfg.ConnTimeoutDuration(),
		logger:      logger.With("system", "database", "driver", cfg.Driver),
	}, nil
}

func (p *pool) Connection() *sql.DB { return p.db }

func (p *pool) Driver() string { return p.driver }

// Start pings once at startup, registers the readiness probe, and closes the
// pool when the coordinator shuts down. A failed startup ping is logged, not
// fatal; the probe keeps reporting it.
func (p *pool) Start(lc *lifecycle.Coordinator) error {
	lc.OnStartup(func() {
		ctx, cancel := context.WithTimeout(lc.Context(), p.pingTimeout)
		defer cancel()

		start := time.Now()
		if err := p.db.PingContext(ctx); err != nil {
			p.logger.Error("initial ping failed", "error", err)
			return
		}
		p.logger.Info("connected", "elapsed", time.Since(start))
	})

	lc.AddProbe("database", p.db.PingContext)

	lc.OnShutdown(func() {
		<-lc.Context().Done()
		stats := p.db.Stats()
		if err := p.db.Close(); err != nil {
			p.logger.Error("close failed", "error", err)
			return
		}
		p.logger.Info("closed", "in_use", stats.InUse, "open", stats.OpenConnections)
	})

	return nil
}
