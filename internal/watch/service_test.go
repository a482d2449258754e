package watch

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	logx "telesend/pkg/logx"
)

func TestNewRequiresTriggerSource(t *testing.T) {
	t.Parallel()

	run := func(context.Context, []string) (int, error) { return 0, nil }

	if _, err := New(Config{}, run, logx.Nop()); err == nil {
		t.Fatal("expected error without pattern or schedule")
	}
	if _, err := New(Config{Pattern: "*.txt"}, nil, logx.Nop()); err == nil {
		t.Fatal("expected error without run func")
	}
	svc, err := New(Config{Pattern: "*.txt"}, run, logx.Nop())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if svc.cfg.Debounce != 2*time.Second {
		t.Fatalf("default debounce = %v", svc.cfg.Debounce)
	}
}

func TestPendingSkipsDeliveredUnchanged(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	a := filepath.Join(dir, "a.log")
	b := filepath.Join(dir, "b.log")
	if err := os.WriteFile(a, []byte("aaa"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(b, []byte("bbb"), 0o644); err != nil {
		t.Fatal(err)
	}

	svc, err := New(Config{Pattern: filepath.Join(dir, "*.log")}, func(context.Context, []string) (int, error) {
		return 0, nil
	}, logx.Nop())
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	got, err := svc.pending()
	if err != nil {
		t.Fatalf("pending: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("pending = %v, want both files", got)
	}

	svc.markDelivered(got)
	got, err = svc.pending()
	if err != nil {
		t.Fatalf("pending after mark: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("pending after mark = %v, want none", got)
	}

	// A size change makes the file pending again.
	if err := os.WriteFile(b, []byte("bbbb"), 0o644); err != nil {
		t.Fatal(err)
	}
	got, err = svc.pending()
	if err != nil {
		t.Fatalf("pending after change: %v", err)
	}
	if len(got) != 1 || got[0] != b {
		t.Fatalf("pending after change = %v, want [%s]", got, b)
	}
}

func TestDispatchKeepsFailedBatchPending(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "x.log")
	if err := os.WriteFile(path, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	failed := true
	svc, err := New(Config{Pattern: filepath.Join(dir, "*.log")}, func(_ context.Context, files []string) (int, error) {
		if failed {
			return len(files), nil
		}
		return 0, nil
	}, logx.Nop())
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	svc.dispatch(context.Background())
	got, err := svc.pending()
	if err != nil {
		t.Fatalf("pending: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("failed batch should stay pending, got %v", got)
	}

	failed = false
	svc.dispatch(context.Background())
	got, err = svc.pending()
	if err != nil {
		t.Fatalf("pending: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("delivered batch should be marked, got %v", got)
	}
}
