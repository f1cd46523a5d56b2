package locking

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/bsm/redislock"
	"github.com/redis/go-redis/v9"

	"github.com/JaimeStill/tawarruq/pkg/lifecycle"
)

const keyPrefix = "lock:"

type redisSystem struct {
	client *redis.Client
	locker *redislock.Client
	ttl    time.Duration
	opts   *redislock.Options
	logger *slog.Logger
}

func newRedis(cfg *Config, logger *slog.Logger) *redisSystem {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	return &redisSystem{
		client: client,
		locker: redislock.New(client),
		ttl:    cfg.TTLDuration(),
		opts: &redislock.Options{
			RetryStrategy: redislock.LimitRetry(
				redislock.LinearBackoff(cfg.RetryIntervalDuration()),
				cfg.RetryLimit,
			),
		},
		logger: logger,
	}
}

func (r *redisSystem) Obtain(ctx context.Context, key string) (Lock, error) {
	lock, err := r.locker.Obtain(ctx, keyPrefix+key, r.ttl, r.opts)
	if err != nil {
		if errors.Is(err, redislock.ErrNotObtained) {
			return nil, fmt.Errorf("%w: %s", ErrNotObtained, key)
		}
		return nil, fmt.Errorf("obtain lock %s: %w", key, err)
	}
	return &redisLock{lock: lock}, nil
}

func (r *redisSystem) Start(lc *lifecycle.Coordinator) error {
	r.logger.Info("starting lock backend")

	lc.OnStartup(func() {
		if err := r.client.Ping(lc.Context()).Err(); err != nil {
			r.logger.Error("redis ping failed", "error", err)
			return
		}
		r.logger.Info("redis connection established")
	})

	lc.AddProbe("locking", func(ctx context.Context) error {
		return r.client.Ping(ctx).Err()
	})

	lc.OnShutdown(func() {
		<-lc.Context().Done()
		if err := r.client.Close(); err != nil {
			r.logger.Error("redis close failed", "error", err)
			return
		}
		r.logger.Info("redis connection closed")
	})

	return nil
}

type redisLock struct {
	lock *redislock.Lock
}

func (l *redisLock) Release(ctx context.Context) error {
	if err := l.lock.Release(ctx); err != nil {
		if errors.Is(err, redislock.ErrLockNotHeld) {
			return ErrNotHeld
		}
		return err
	}
	return nil
}
