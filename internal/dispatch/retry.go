package dispatch

import (
	"context"
	"time"

	logx "telesend/pkg/logx"
)

// Operation is one fallible unit of remote work.
type Operation func(ctx context.Context) error

// executeWithRetry runs op up to policy.MaxAttempts times, strictly
// sequentially, waiting policy.Delay between failed attempts. It returns
// the number of attempts made and the last error (nil on success).
//
// The inter-attempt wait honors ctx so cancellation aborts the wait instead
// of completing it; the abort is reported as ctx.Err().
func executeWithRetry(ctx context.Context, log logx.Logger, unit string, op Operation, policy Policy) (int, error) {
	if err := policy.Validate(); err != nil {
		return 0, err
	}
	if ctx == nil {
		ctx = context.Background()
	}

	var lastErr error
	for attempt := 1; attempt <= policy.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return attempt - 1, err
		}

		err := op(ctx)
		if err == nil {
			return attempt, nil
		}
		lastErr = err

		if attempt >= policy.MaxAttempts {
			break
		}

		log.Warn("attempt failed; retrying",
			logx.String("unit", unit),
			logx.Int("attempt", attempt),
			logx.Int("max", policy.MaxAttempts),
			logx.Duration("delay", policy.Delay),
			logx.Err(err),
		)

		if policy.Delay <= 0 {
			continue
		}
		t := time.NewTimer(policy.Delay)
		select {
		case <-t.C:
		case <-ctx.Done():
			if !t.Stop() {
				<-t.C
			}
			return attempt, ctx.Err()
		}
	}

	return policy.MaxAttempts, lastErr
}
