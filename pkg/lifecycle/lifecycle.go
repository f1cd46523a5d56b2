// Package lifecycle sequences subsystem startup, answers readiness checks,
// and drains subsystems on shutdown.
package lifecycle

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"
)

// Probe reports whether a subsystem can currently serve traffic.
type Probe func(ctx context.Context) error

// Coordinator runs startup hooks concurrently, becomes ready once they all
// return, and cancels its context on Shutdown so shutdown hooks can drain.
type Coordinator struct {
	ctx    context.Context
	cancel context.CancelFunc

	startup  sync.WaitGroup
	shutdown sync.WaitGroup
	pending  atomic.Int32
	ready    atomic.Bool

	mu     sync.RWMutex
	probes map[string]Probe
}

func New() *Coordinator {
	ctx, cancel := context.WithCancel(context.Background())
	return &Coordinator{ctx: ctx, cancel: cancel, probes: map[string]Probe{}}
}

// Context is cancelled when Shutdown begins.
func (c *Coordinator) Context() context.Context {
	return c.ctx
}

func (c *Coordinator) OnStartup(fn func()) {
	c.startup.Go(fn)
}

// OnShutdown starts fn immediately; fn is expected to block on
// <-Context().Done() before releasing its resources.
func (c *Coordinator) OnShutdown(fn func()) {
	c.pending.Add(1)
	c.shutdown.Go(func() {
		defer c.pending.Add(-1)
		fn()
	})
}

// AddProbe registers a readiness probe under name, replacing any previous one.
func (c *Coordinator) AddProbe(name string, probe Probe) {
	c.mu.Lock()
	c.probes[name] = probe
	c.mu.Unlock()
}

func (c *Coordinator) Ready() bool {
	return c.ready.Load()
}

// Check runs every probe concurrently and returns "ok" or the error text per
// name. It reports healthy only after startup and with every probe passing.
func (c *Coordinator) Check(ctx context.Context) (map[string]string, bool) {
	c.mu.RLock()
	probes := make(map[string]Probe, len(c.probes))
	for name, p := range c.probes {
		probes[name] = p
	}
	c.mu.RUnlock()

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		results = make(map[string]string, len(probes))
		healthy = c.Ready()
	)
	for name, probe := range probes {
		wg.Go(func() {
			status := "ok"
			err := probe(ctx)
			if err != nil {
				status = err.Error()
			}

			mu.Lock()
			defer mu.Unlock()
			results[name] = status
			if err != nil {
				healthy = false
			}
		})
	}
	wg.Wait()

	return results, healthy
}

// WaitForStartup blocks until every startup hook has returned, then marks the
// coordinator ready.
func (c *Coordinator) WaitForStartup() {
	c.startup.Wait()
	c.ready.Store(true)
}

// Shutdown clears readiness, cancels the context, and waits up to timeout for
// shutdown hooks. Calling it again waits on the same hooks.
func (c *Coordinator) Shutdown(timeout time.Duration) error {
	c.ready.Store(false)
	c.cancel()

	done := make(chan struct{})
	go func() {
		c.shutdown.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-time.After(timeout):
		return fmt.Errorf("shutdown timed out after %v with %d hooks pending", timeout, c.pending.Load())
	}
}
