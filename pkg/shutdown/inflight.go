package shutdown

import (
	"context"
	"sync"

	"go.uber.org/zap"
)

// InFlightTracker tracks in-flight work so shutdown can wait for
// jobs already started while rejecting new ones.
type InFlightTracker struct {
	wg         sync.WaitGroup
	shutdownCh chan struct{}
	logger     *zap.Logger
	name       string
}

// NewInFlightTracker creates a tracker identified by name in logs
func NewInFlightTracker(name string, logger *zap.Logger) *InFlightTracker {
	return &InFlightTracker{
		shutdownCh: make(chan struct{}),
		logger:     logger,
		name:       name,
	}
}

// Add registers a new unit of work. Returns false once shutdown has
// started, in which case the work must not begin.
func (t *InFlightTracker) Add() bool {
	select {
	case <-t.shutdownCh:
		return false
	default:
		t.wg.Add(1)
		return true
	}
}

// Done marks a unit of work as complete
func (t *InFlightTracker) Done() {
	t.wg.Done()
}

// IsShuttingDown reports whether shutdown has been initiated
func (t *InFlightTracker) IsShuttingDown() bool {
	select {
	case <-t.shutdownCh:
		return true
	default:
		return false
	}
}

// Shutdown rejects new work and waits for in-flight work to finish
// or for the context to expire.
func (t *InFlightTracker) Shutdown(ctx context.Context) error {
	close(t.shutdownCh)

	t.logger.Info("Waiting for in-flight work to complete",
		zap.String("tracker", t.name),
	)

	done := make(chan struct{})
	go func() {
		t.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		t.logger.Info("All in-flight work completed",
			zap.String("tracker", t.name),
		)
		return nil
	case <-ctx.Done():
		t.logger.Warn("Shutdown timeout, some work may be incomplete",
			zap.String("tracker", t.name),
		)
		return ctx.Err()
	}
}
