package locking

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/JaimeStill/tawarruq/pkg/lifecycle"
)

type entry struct {
	sem  *semaphore.Weighted
	refs int
}

// Local is an in-process keyed lock. Entries are reference counted and
// removed once no caller holds or waits on the key.
type Local struct {
	mu      sync.Mutex
	entries map[string]*entry
	wait    time.Duration
}

// NewLocal creates a Local lock whose Obtain waits at most wait for a held key.
// A zero wait fails immediately when the key is held.
func NewLocal(wait time.Duration) *Local {
	return &Local{
		entries: make(map[string]*entry),
		wait:    wait,
	}
}

func (l *Local) Obtain(ctx context.Context, key string) (Lock, error) {
	e := l.acquireEntry(key)

	if e.sem.TryAcquire(1) {
		return &localLock{owner: l, key: key, entry: e}, nil
	}

	waitCtx, cancel := context.WithTimeout(ctx, l.wait)
	defer cancel()

	if err := e.sem.Acquire(waitCtx, 1); err != nil {
		l.releaseEntry(key, e)
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%w: %s", ErrNotObtained, key)
	}

	return &localLock{owner: l, key: key, entry: e}, nil
}

func (l *Local) Start(lc *lifecycle.Coordinator) error {
	return nil
}

// Len reports the number of keys currently held or awaited.
func (l *Local) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

func (l *Local) acquireEntry(key string) *entry {
	l.mu.Lock()
	defer l.mu.Unlock()

	e, ok := l.entries[key]
	if !ok {
		e = &entry{sem: semaphore.NewWeighted(1)}
		l.entries[key] = e
	}
	e.refs++
	return e
}

func (l *Local) releaseEntry(key string, e *entry) {
	l.mu.Lock()
	defer l.mu.Unlock()

	e.refs--
	if e.refs == 0 {
		delete(l.entries, key)
	}
}

type localLock struct {
	owner    *Local
	key      string
	entry    *entry
	released atomic.Bool
}

func (l *localLock) Release(context.Context) error {
	if !l.released.CompareAndSwap(false, true) {
		return ErrNotHeld
	}
	l.entry.sem.Release(1)
	l.owner.releaseEntry(l.key, l.entry)
	return nil
}
