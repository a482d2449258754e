package dispatch

import (
	"context"
	"errors"
	"testing"
	"time"

	logx "telesend/pkg/logx"
)

func TestRetryAlwaysFailing(t *testing.T) {
	t.Parallel()
	boom := errors.New("boom")
	calls := 0
	op := func(ctx context.Context) error {
		calls++
		return boom
	}

	attempts, err := executeWithRetry(context.Background(), logx.Nop(), "unit", op, Policy{MaxAttempts: 4})
	if calls != 4 {
		t.Fatalf("operation ran %d times, want 4", calls)
	}
	if attempts != 4 {
		t.Fatalf("attempts = %d, want 4", attempts)
	}
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v, want wrapped boom", err)
	}
}

func TestRetrySucceedsMidway(t *testing.T) {
	t.Parallel()
	calls := 0
	op := func(ctx context.Context) error {
		calls++
		if calls < 3 {
			return errors.New("transient")
		}
		return nil
	}

	attempts, err := executeWithRetry(context.Background(), logx.Nop(), "unit", op, Policy{MaxAttempts: 5})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls != 3 || attempts != 3 {
		t.Fatalf("calls = %d attempts = %d, want 3 and 3", calls, attempts)
	}
}

func TestRetryDisabled(t *testing.T) {
	t.Parallel()
	calls := 0
	op := func(ctx context.Context) error {
		calls++
		return errors.New("nope")
	}

	attempts, err := executeWithRetry(context.Background(), logx.Nop(), "unit", op, Policy{MaxAttempts: 1})
	if calls != 1 || attempts != 1 {
		t.Fatalf("calls = %d attempts = %d, want 1 and 1", calls, attempts)
	}
	if err == nil {
		t.Fatal("expected terminal error")
	}
}

func TestRetryZeroAttemptsIsInvalid(t *testing.T) {
	t.Parallel()
	ran := false
	op := func(ctx context.Context) error {
		ran = true
		return nil
	}

	_, err := executeWithRetry(context.Background(), logx.Nop(), "unit", op, Policy{MaxAttempts: 0})
	if !errors.Is(err, ErrInvalidPolicy) {
		t.Fatalf("err = %v, want ErrInvalidPolicy", err)
	}
	if ran {
		t.Fatal("operation must not run under an invalid policy")
	}
}

func TestRetryCancelAbortsWait(t *testing.T) {
	t.Parallel()
	ctx, cancel := context.WithCancel(context.Background())

	calls := 0
	op := func(ctx context.Context) error {
		calls++
		cancel() // cancel while the retry wait is pending
		return errors.New("fail")
	}

	start := time.Now()
	attempts, err := executeWithRetry(ctx, logx.Nop(), "unit", op, Policy{MaxAttempts: 3, Delay: 30 * time.Second})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
	if calls != 1 || attempts != 1 {
		t.Fatalf("calls = %d attempts = %d, want 1 and 1", calls, attempts)
	}
	if elapsed := time.Since(start); elapsed > 5*time.Second {
		t.Fatalf("cancelled wait took %s; it should abort promptly", elapsed)
	}
}

func TestRetryWaitsBetweenAttempts(t *testing.T) {
	t.Parallel()
	var stamps []time.Time
	op := func(ctx context.Context) error {
		stamps = append(stamps, time.Now())
		return errors.New("fail")
	}

	delay := 50 * time.Millisecond
	_, _ = executeWithRetry(context.Background(), logx.Nop(), "unit", op, Policy{MaxAttempts: 3, Delay: delay})
	if len(stamps) != 3 {
		t.Fatalf("operation ran %d times, want 3", len(stamps))
	}
	for i := 1; i < len(stamps); i++ {
		if gap := stamps[i].Sub(stamps[i-1]); gap < delay {
			t.Fatalf("gap between attempts %d and %d was %s, want >= %s", i, i+1, gap, delay)
		}
	}
}
