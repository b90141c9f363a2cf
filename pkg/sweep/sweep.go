// Package sweep runs periodic maintenance tasks on fixed intervals. The
// host process starts each sweep explicitly and stops it at shutdown, so
// no timers outlive their owner.
package sweep

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/blockpass/omega/pkg/observability"
)

// Func is one sweep pass. It returns the number of records it removed.
type Func func() int

// Sweep periodically invokes a maintenance function. Sweeps never hold
// ledger locks across passes; locking is the sweep function's concern.
type Sweep struct {
	name     string
	interval time.Duration
	fn       Func
	logger   *slog.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// New creates a sweep with the given name and interval.
func New(name string, interval time.Duration, fn Func, logger *slog.Logger) *Sweep {
	if logger == nil {
		logger = slog.Default()
	}
	return &Sweep{
		name:     name,
		interval: interval,
		fn:       fn,
		logger:   logger,
	}
}

// Start launches the sweep loop. It runs until Stop is called or the
// context is canceled. Calling Start on a running sweep is a no-op.
func (s *Sweep) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cancel != nil {
		return
	}

	ctx, s.cancel = context.WithCancel(ctx)
	s.done = make(chan struct{})

	go s.run(ctx)
	s.logger.Info("sweep started", "sweep", s.name, "interval", s.interval)
}

// Stop cancels the sweep loop and waits for the current pass to finish.
// Safe to call multiple times.
func (s *Sweep) Stop() {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.cancel = nil
	s.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
	s.logger.Info("sweep stopped", "sweep", s.name)
}

func (s *Sweep) run(ctx context.Context) {
	defer close(s.done)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			removed := s.fn()
			if removed > 0 {
				observability.SweepRemovedTotal.WithLabelValues(s.name).Add(float64(removed))
			}
		}
	}
}
