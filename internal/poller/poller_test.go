package poller

import (
	"context"
	"sync/atomic"
	"testing"
	"time"
)

func TestRunEnqueuesTicks(t *testing.T) {
	var ticks atomic.Int64
	p := New(5*time.Millisecond, func(ctx context.Context) bool {
		ticks.Add(1)
		return true
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		p.Run(ctx)
		close(done)
	}()

	deadline := time.After(time.Second)
	for ticks.Load() < 3 {
		select {
		case <-deadline:
			t.Fatalf("saw %d ticks, want at least 3", ticks.Load())
		case <-time.After(5 * time.Millisecond):
		}
	}

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("poller did not stop after cancel")
	}
}

func TestRunStopsImmediatelyOnCancelledContext(t *testing.T) {
	p := New(time.Hour, func(ctx context.Context) bool { return true })

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	done := make(chan struct{})
	go func() {
		p.Run(ctx)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("poller did not stop")
	}
}
