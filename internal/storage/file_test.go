package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	logx "telesend/pkg/logx"
)

func TestFileStoreAppendAndRecent(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	st, err := Open(Config{Driver: "file", Path: filepath.Join(dir, "history")}, logx.Nop())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })

	ctx := context.Background()
	now := time.Now()
	for i := 0; i < 5; i++ {
		e := DeliveryEntry{
			At:       now.Add(time.Duration(i) * time.Second),
			RunID:    "run-1",
			ChatID:   42,
			Unit:     "group 1/5",
			Files:    3,
			Attempts: 1,
			OK:       i%2 == 0,
		}
		if err := st.AppendDelivery(ctx, e); err != nil {
			t.Fatalf("AppendDelivery %d: %v", i, err)
		}
	}

	got, err := st.RecentDeliveries(ctx, 3)
	if err != nil {
		t.Fatalf("RecentDeliveries: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("got %d entries, want 3", len(got))
	}
	if got[0].At.After(got[len(got)-1].At) {
		t.Fatal("expected oldest-first ordering")
	}
	if got[0].ChatID != 42 || got[0].RunID != "run-1" {
		t.Fatalf("unexpected entry: %+v", got[0])
	}
}

func TestFileStoreRecentOnEmptyStore(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	st, err := Open(Config{Driver: "file", Path: filepath.Join(dir, "history")}, logx.Nop())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })

	got, err := st.RecentDeliveries(context.Background(), 10)
	if err != nil {
		t.Fatalf("RecentDeliveries: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("expected no entries, got %d", len(got))
	}
}

func TestOpenDisabled(t *testing.T) {
	t.Parallel()
	st, err := Open(Config{}, logx.Nop())
	if err != nil || st != nil {
		t.Fatalf("disabled storage should be (nil, nil), got (%v, %v)", st, err)
	}
	st, err = Open(Config{Driver: "none"}, logx.Nop())
	if err != nil || st != nil {
		t.Fatalf("driver none should be (nil, nil), got (%v, %v)", st, err)
	}
}

func TestOpenUnknownDriver(t *testing.T) {
	t.Parallel()
	if _, err := Open(Config{Driver: "redis", Path: "x"}, logx.Nop()); err == nil {
		t.Fatal("expected error for unknown driver")
	}
}
