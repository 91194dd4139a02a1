// Package lifecycle owns the session-wide sync lifecycle: it runs the first
// sync exactly once, exposes a manual refresh entry point, and cancels
// in-flight work on teardown. It is an explicit service object constructed
// once per process and passed by reference, not ambient global state.
package lifecycle

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"moneta/internal/engine"
	apperrors "moneta/internal/errors"
	"moneta/internal/logger"
)

// Coordinator drives the sync engine across a session.
type Coordinator struct {
	engine   *engine.Engine
	interval time.Duration
	log      *zap.SugaredLogger

	startOnce   sync.Once
	initialized atomic.Bool
	cancel      context.CancelFunc
	done        chan struct{}
}

// New creates a coordinator. A non-zero interval enables periodic background
// refreshes after the first sync.
func New(eng *engine.Engine, interval time.Duration) *Coordinator {
	return &Coordinator{
		engine:   eng,
		interval: interval,
		log:      logger.Get(),
		done:     make(chan struct{}),
	}
}

// Start launches the first sync of the session in the background. Duplicate
// calls are no-ops: the first sync runs exactly once, even under re-entrant
// startup signals. Initialized reports true once the first cycle completes
// or fails; a failed first sync still initializes, so the application stays
// usable against the local cache alone.
func (c *Coordinator) Start(ctx context.Context) {
	c.startOnce.Do(func() {
		runCtx, cancel := context.WithCancel(ctx)
		c.cancel = cancel

		go func() {
			defer close(c.done)

			if _, err := c.engine.Sync(runCtx); err != nil {
				c.log.Warnw("initial sync failed; continuing from local cache", "error", err)
			}
			c.initialized.Store(true)

			if c.interval <= 0 {
				return
			}
			ticker := time.NewTicker(c.interval)
			defer ticker.Stop()
			for {
				select {
				case <-runCtx.Done():
					return
				case <-ticker.C:
					if _, err := c.engine.Sync(runCtx); err != nil && !errors.Is(err, apperrors.ErrSyncInFlight) {
						c.log.Warnw("background sync failed", "error", err)
					}
				}
			}
		}()
	})
}

// Initialized reports whether the first sync of the session has completed or
// failed. Dependent callers can block on it before trusting cache contents.
func (c *Coordinator) Initialized() bool {
	return c.initialized.Load()
}

// Refresh runs a user-initiated sync cycle. A refresh that arrives while a
// cycle is in flight is coalesced: it returns ErrSyncInFlight and starts
// nothing.
func (c *Coordinator) Refresh(ctx context.Context) (*engine.Result, error) {
	return c.engine.Sync(ctx)
}

// State returns the engine's current phase.
func (c *Coordinator) State() engine.State {
	return c.engine.State()
}

// Close cancels any in-flight cycle and the background refresh loop, then
// waits for them to wind down. Safe to call before Start.
func (c *Coordinator) Close() {
	if c.cancel == nil {
		return
	}
	c.cancel()
	<-c.done
}
