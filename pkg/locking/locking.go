// Package locking provides keyed mutual exclusion across service instances.
// The redis backend uses bsm/redislock; the local backend serializes callers
// within a single process.
package locking

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/JaimeStill/tawarruq/pkg/lifecycle"
)

var (
	// ErrNotObtained indicates the key stayed held for the whole wait budget.
	ErrNotObtained = errors.New("lock not obtained")
	// ErrNotHeld indicates a release of a lock that already expired or was released.
	ErrNotHeld = errors.New("lock not held")
)

// Lock is a held key. Release must be called exactly once.
type Lock interface {
	Release(ctx context.Context) error
}

// System obtains keyed locks and participates in the service lifecycle.
type System interface {
	// Obtain blocks until key is acquired, the wait budget is spent (ErrNotObtained),
	// or ctx is done.
	Obtain(ctx context.Context, key string) (Lock, error)
	// Start registers startup and shutdown hooks with the lifecycle coordinator.
	Start(lc *lifecycle.Coordinator) error
}

// New creates the lock System selected by cfg.Backend.
func New(cfg *Config, logger *slog.Logger) (System, error) {
	logger = logger.With("system", "locking", "backend", cfg.Backend)

	switch cfg.Backend {
	case BackendRedis:
		return newRedis(cfg, logger), nil
	case BackendLocal:
		return NewLocal(cfg.WaitBudget()), nil
	default:
		return nil, fmt.Errorf("unsupported lock backend: %s", cfg.Backend)
	}
}
