package locking_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/JaimeStill/tawarruq/pkg/locking"
)

func TestConfigFinalize(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		cfg := locking.Config{}
		if err := cfg.Finalize(); err != nil {
			t.Fatalf("finalize failed: %v", err)
		}

		tests := []struct {
			name     string
			got      any
			expected any
		}{
			{"backend", cfg.Backend, locking.BackendLocal},
			{"addr", cfg.Addr, "localhost:6379"},
			{"ttl", cfg.TTLDuration(), 30 * time.Second},
			{"retry_interval", cfg.RetryIntervalDuration(), 100 * time.Millisecond},
			{"retry_limit", cfg.RetryLimit, 30},
			{"wait_budget", cfg.WaitBudget(), 3 * time.Second},
		}

		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				if tt.got != tt.expected {
					t.Errorf("got %v, want %v", tt.got, tt.expected)
				}
			})
		}
	})

	t.Run("preset values kept", func(t *testing.T) {
		cfg := locking.Config{Backend: locking.BackendRedis, Addr: "cache:6380", DB: 2, TTL: "1m"}
		if err := cfg.Finalize(); err != nil {
			t.Fatalf("finalize failed: %v", err)
		}
		if cfg.Backend != locking.BackendRedis || cfg.Addr != "cache:6380" || cfg.DB != 2 {
			t.Errorf("got %+v", cfg)
		}
		if cfg.TTLDuration() != time.Minute {
			t.Errorf("ttl = %v, want 1m", cfg.TTLDuration())
		}
		if cfg.RetryLimit != 30 {
			t.Errorf("retry_limit = %d, want default 30", cfg.RetryLimit)
		}
	})

	t.Run("validation", func(t *testing.T) {
		tests := []struct {
			name    string
			cfg     locking.Config
			wantErr string
		}{
			{"backend", locking.Config{Backend: "etcd"}, "unsupported backend"},
			{"ttl", locking.Config{TTL: "soon"}, "invalid ttl"},
			{"retry interval", locking.Config{RetryInterval: "x"}, "invalid retry_interval"},
		}

		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				err := tt.cfg.Finalize()
				if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
					t.Errorf("error = %v, want %q", err, tt.wantErr)
				}
			})
		}
	})
}

func TestNewSelectsBackend(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	cfg := locking.Config{}
	if err := cfg.Finalize(); err != nil {
		t.Fatalf("finalize: %v", err)
	}
	sys, err := locking.New(&cfg, logger)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if _, ok := sys.(*locking.Local); !ok {
		t.Errorf("New(local) = %T, want *locking.Local", sys)
	}

	if _, err := locking.New(&locking.Config{Backend: "zookeeper"}, logger); err == nil {
		t.Error("expected error for unsupported backend")
	}
}

func TestLocalExclusive(t *testing.T) {
	l := locking.NewLocal(2 * time.Second)
	ctx := context.Background()

	var (
		inside  atomic.Int32
		overlap atomic.Bool
		wg      sync.WaitGroup
	)

	for range 8 {
		wg.Go(func() {
			lock, err := l.Obtain(ctx, "transaction:1")
			if err != nil {
				t.Errorf("Obtain: %v", err)
				return
			}
			if inside.Add(1) > 1 {
				overlap.Store(true)
			}
			time.Sleep(5 * time.Millisecond)
			inside.Add(-1)
			if err := lock.Release(ctx); err != nil {
				t.Errorf("Release: %v", err)
			}
		})
	}
	wg.Wait()

	if overlap.Load() {
		t.Error("two holders entered the same key concurrently")
	}
	if n := l.Len(); n != 0 {
		t.Errorf("entries after release = %d, want 0", n)
	}
}

func TestLocalIndependentKeys(t *testing.T) {
	l := locking.NewLocal(0)
	ctx := context.Background()

	a, err := l.Obtain(ctx, "transaction:a")
	if err != nil {
		t.Fatalf("Obtain a: %v", err)
	}
	b, err := l.Obtain(ctx, "transaction:b")
	if err != nil {
		t.Fatalf("Obtain b while a held: %v", err)
	}

	a.Release(ctx)
	b.Release(ctx)
}

func TestLocalNotObtained(t *testing.T) {
	l := locking.NewLocal(20 * time.Millisecond)
	ctx := context.Background()

	held, err := l.Obtain(ctx, "transaction:1")
	if err != nil {
		t.Fatalf("Obtain: %v", err)
	}
	defer held.Release(ctx)

	_, err = l.Obtain(ctx, "transaction:1")
	if !errors.Is(err, locking.ErrNotObtained) {
		t.Errorf("second Obtain error = %v, want ErrNotObtained", err)
	}
}

func TestLocalContextCancelled(t *testing.T) {
	l := locking.NewLocal(time.Minute)

	held, err := l.Obtain(context.Background(), "transaction:1")
	if err != nil {
		t.Fatalf("Obtain: %v", err)
	}
	defer held.Release(context.Background())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = l.Obtain(ctx, "transaction:1")
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Obtain error = %v, want context.Canceled", err)
	}
}

func TestLocalDoubleRelease(t *testing.T) {
	l := locking.NewLocal(0)
	ctx := context.Background()

	lock, err := l.Obtain(ctx, "transaction:1")
	if err != nil {
		t.Fatalf("Obtain: %v", err)
	}
	if err := lock.Release(ctx); err != nil {
		t.Fatalf("first Release: %v", err)
	}
	if err := lock.Release(ctx); !errors.Is(err, locking.ErrNotHeld) {
		t.Errorf("second Release = %v, want ErrNotHeld", err)
	}
}
