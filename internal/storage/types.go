package storage

import (
	"errors"
	"time"
)

var ErrDisabled = errors.New("storage disabled")

// Config configures the delivery history store.
//
// Driver values:
//   - "file": dependency-free JSON Lines backend
//   - "sqlite": SQLite database file (optional build tag)
//
// If Driver is empty or "none", storage is disabled.
type Config struct {
	Driver      string
	Path        string
	BusyTimeout time.Duration // sqlite only; 0 means default
}

// DeliveryEntry records the outcome of one delivery unit.
// Keep it compact and schema-stable.
type DeliveryEntry struct {
	At       time.Time
	RunID    string
	ChatID   int64
	ThreadID int
	Unit     string
	Files    int
	Attempts int
	OK       bool
	Error    string
	TookMS   int64
	DryRun   bool
}
