// Package infrastructure provides core service initialization for application startup.
// It assembles common dependencies (logging, database, storage, locking, tracing)
// that domain systems require.
package infrastructure

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/JaimeStill/tawarruq/internal/config"
	"github.com/JaimeStill/tawarruq/internal/schema"
	"github.com/JaimeStill/tawarruq/pkg/database"
	"github.com/JaimeStill/tawarruq/pkg/lifecycle"
	"github.com/JaimeStill/tawarruq/pkg/locking"
	"github.com/JaimeStill/tawarruq/pkg/storage"
	"github.com/JaimeStill/tawarruq/pkg/telemetry"
)

// Infrastructure holds the core systems required by all domain modules.
type Infrastructure struct {
	Lifecycle *lifecycle.Coordinator
	Logger    *slog.Logger
	Database  database.System
	Storage   storage.System
	Locker    locking.System

	tracing     telemetry.ShutdownFunc
	autoMigrate bool
}

// NewLogger builds the service logger from the configured level and format.
func NewLogger(cfg *config.Config, w io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{Level: cfg.Level()}
	if cfg.LogFormat == config.LogFormatJSON {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// New creates an Infrastructure from the application configuration.
// It initializes all systems but does not start them; call Start separately.
func New(cfg *config.Config) (*Infrastructure, error) {
	lc := lifecycle.New()
	logger := NewLogger(cfg, os.Stderr)

	db, err := database.New(&cfg.Database, logger)
	if err != nil {
		return nil, fmt.Errorf("database init failed: %w", err)
	}

	store, err := storage.New(&cfg.Storage, logger)
	if err != nil {
		return nil, fmt.Errorf("storage init failed: %w", err)
	}

	locker, err := locking.New(&cfg.Locking, logger)
	if err != nil {
		return nil, fmt.Errorf("locking init failed: %w", err)
	}

	tracing, err := telemetry.Setup(lc.Context(), &cfg.Telemetry)
	if err != nil {
		return nil, fmt.Errorf("telemetry init failed: %w", err)
	}

	return &Infrastructure{
		Lifecycle:   lc,
		Logger:      logger,
		Database:    db,
		Storage:     store,
		Locker:      locker,
		tracing:     tracing,
		autoMigrate: cfg.Database.AutoMigrate,
	}, nil
}

// Start applies pending migrations when auto_migrate is set, then registers
// all infrastructure systems with the lifecycle coordinator.
func (i *Infrastructure) Start() error {
	if i.autoMigrate {
		if err := schema.Migrate(i.Lifecycle.Context(), i.Database.Connection(), i.Database.Driver()); err != nil {
			return fmt.Errorf("migrate failed: %w", err)
		}
		i.Logger.Info("migrations applied", "driver", i.Database.Driver())
	}

	if err := i.Database.Start(i.Lifecycle); err != nil {
		return fmt.Errorf("database start failed: %w", err)
	}
	if err := i.Storage.Start(i.Lifecycle); err != nil {
		return fmt.Errorf("storage start failed: %w", err)
	}
	if err := i.Locker.Start(i.Lifecycle); err != nil {
		return fmt.Errorf("locking start failed: %w", err)
	}
	i.tracing.Register(i.Lifecycle, i.Logger)
	return nil
}
