package supervisor

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	logx "telesend/pkg/logx"
)

func TestStopWaitsForGoroutines(t *testing.T) {
	t.Parallel()

	s := New(context.Background(), WithLogger(logx.Nop()))

	var done atomic.Bool
	s.Go0("worker", func(ctx context.Context) {
		<-ctx.Done()
		done.Store(true)
	})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := s.Stop(ctx); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if !done.Load() {
		t.Fatal("worker did not observe cancellation before Stop returned")
	}
}

func TestFirstErrorIsKept(t *testing.T) {
	t.Parallel()

	s := New(context.Background(), WithLogger(logx.Nop()))
	first := errors.New("first")

	s.Go("a", func(context.Context) error { return first })

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	err := s.Stop(ctx)
	if !errors.Is(err, first) {
		t.Fatalf("Stop err = %v, want %v", err, first)
	}
}

func TestGoRestartRetriesUntilCleanExit(t *testing.T) {
	t.Parallel()

	s := New(context.Background(), WithLogger(logx.Nop()))

	var runs atomic.Int32
	s.GoRestart("flaky", func(context.Context) error {
		if runs.Add(1) < 3 {
			return errors.New("transient")
		}
		return nil
	}, WithRestartBackoff(time.Millisecond, 5*time.Millisecond))

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := s.Wait(ctx); err != nil {
		t.Fatalf("Wait: %v", err)
	}
	if got := runs.Load(); got != 3 {
		t.Fatalf("runs = %d, want 3", got)
	}
}

func TestGoRecoversPanic(t *testing.T) {
	t.Parallel()

	s := New(context.Background(), WithLogger(logx.Nop()))
	s.Go("panicky", func(context.Context) error { panic("boom") })

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	err := s.Stop(ctx)
	if err == nil {
		t.Fatal("expected error from panicked goroutine")
	}
}
