package dispatch

import (
	"fmt"
	"time"

	kit "telesend/internal/transport"
)

// Request describes one delivery run. It is built once from validated
// configuration and not mutated afterwards.
type Request struct {
	Message      string
	Chat         kit.ChatTarget
	Files        []string // resolved file paths, caller-supplied order
	FilePattern  string   // the glob Files came from, for log context only
	MaxGroupSize int      // must be >= 1
	DryRun       bool
}

// Group is one album-sized slice of the request's files.
// Index is 1-based; Total is the group count for the run.
type Group struct {
	Files []string
	Index int
	Total int
}

// Caption combines the request message with the group's progress suffix.
func (g Group) Caption(message string) string {
	return fmt.Sprintf("%s\n\n(Group %d/%d)", message, g.Index, g.Total)
}

// Policy controls the per-unit retry loop.
type Policy struct {
	MaxAttempts int
	Delay       time.Duration
}

func (p Policy) Validate() error {
	if p.MaxAttempts < 1 {
		return fmt.Errorf("%w: retry attempts must be >= 1 (got %d)", ErrInvalidPolicy, p.MaxAttempts)
	}
	if p.Delay < 0 {
		return fmt.Errorf("%w: retry delay must be >= 0 (got %s)", ErrInvalidPolicy, p.Delay)
	}
	return nil
}

// Outcome is the terminal result of one unit of work (the bare message, or
// one file group). Err is nil on success; Attempts counts attempts actually
// made, including the successful one.
type Outcome struct {
	Unit     string
	Attempts int
	Err      error
}

func (o Outcome) OK() bool { return o.Err == nil }

// Report is the terminal artifact of a run. Outcomes are in the order the
// units were planned and attempted.
type Report struct {
	Outcomes []Outcome
	Elapsed  time.Duration
}

// Failed counts units whose retry budget was exhausted.
func (r Report) Failed() int {
	n := 0
	for _, o := range r.Outcomes {
		if !o.OK() {
			n++
		}
	}
	return n
}
