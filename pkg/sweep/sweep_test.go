package sweep

import (
	"context"
	"sync/atomic"
	"testing"
	"time"
)

func TestSweepRunsPeriodically(t *testing.T) {
	var runs atomic.Int32
	s := New("test", 10*time.Millisecond, func() int {
		runs.Add(1)
		return 1
	}, nil)

	s.Start(context.Background())
	defer s.Stop()

	deadline := time.After(2 * time.Second)
	for runs.Load() < 3 {
		select {
		case <-deadline:
			t.Fatalf("sweep ran %d times, want at least 3", runs.Load())
		case <-time.After(10 * time.Millisecond):
		}
	}
}

func TestStopWaitsAndIsIdempotent(t *testing.T) {
	var runs atomic.Int32
	s := New("test", 5*time.Millisecond, func() int {
		runs.Add(1)
		return 0
	}, nil)

	s.Start(context.Background())
	time.Sleep(20 * time.Millisecond)
	s.Stop()

	after := runs.Load()
	time.Sleep(30 * time.Millisecond)
	if runs.Load() != after {
		t.Errorf("sweep ran after Stop")
	}

	// Second Stop is a no-op.
	s.Stop()
}

func TestStartTwiceIsNoOp(t *testing.T) {
	s := New("test", time.Hour, func() int { return 0 }, nil)

	s.Start(context.Background())
	s.Start(context.Background())
	s.Stop()
}

func TestContextCancelStopsSweep(t *testing.T) {
	var runs atomic.Int32
	s := New("test", 5*time.Millisecond, func() int {
		runs.Add(1)
		return 0
	}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	s.Start(ctx)
	time.Sleep(20 * time.Millisecond)
	cancel()
	time.Sleep(20 * time.Millisecond)

	after := runs.Load()
	time.Sleep(30 * time.Millisecond)
	if runs.Load() != after {
		t.Errorf("sweep ran after context cancellation")
	}
}
