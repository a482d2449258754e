package dispatch

import (
	"context"
	"fmt"
	"time"

	kit "telesend/internal/transport"
	logx "telesend/pkg/logx"
)

// DefaultPacing is the wait inserted between consecutive file groups. It
// exists purely to stay clear of the endpoint's rate limiter and is
// independent of the retry delay.
const DefaultPacing = 1 * time.Second

// Engine orchestrates one delivery run: plan groups, drive each unit
// through the retry loop, pace between groups, and collect per-unit
// outcomes. Units run strictly sequentially; unit i is fully resolved
// (including all its retries) before unit i+1 begins.
type Engine struct {
	client kit.Client
	log    logx.Logger
	pacing time.Duration
	opts   *kit.SendOptions

	// sleep is swapped in tests to observe pacing without wall-clock waits.
	sleep func(ctx context.Context, d time.Duration) error
}

type Option func(*Engine)

// WithPacing overrides the inter-group pacing delay.
func WithPacing(d time.Duration) Option {
	return func(e *Engine) {
		if d >= 0 {
			e.pacing = d
		}
	}
}

// WithSendOptions sets transport options applied to every unit.
func WithSendOptions(opt *kit.SendOptions) Option {
	return func(e *Engine) { e.opts = opt }
}

func NewEngine(client kit.Client, log logx.Logger, opts ...Option) *Engine {
	if log.IsZero() {
		log = logx.Nop()
	}
	e := &Engine{
		client: client,
		log:    log,
		pacing: DefaultPacing,
		sleep:  sleepCtx,
	}
	for _, o := range opts {
		o(e)
	}
	return e
}

// Run executes the request and returns the per-unit report.
//
// Errors returned from Run are run-level: invalid configuration, session
// open failure (*SessionError), or cancellation (ctx.Err()). Per-unit
// transport failures never propagate as errors; they are recorded in the
// report and do not stop later units. The report is valid (possibly
// partial) even when err != nil.
func (e *Engine) Run(ctx context.Context, req Request, policy Policy) (Report, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	start := time.Now()

	if err := policy.Validate(); err != nil {
		return Report{}, err
	}
	if err := validateRequest(req); err != nil {
		return Report{}, err
	}

	groups := PlanGroups(req.Files, req.MaxGroupSize)

	if req.DryRun {
		return e.simulate(req, groups, start), nil
	}

	if err := e.client.Connect(ctx); err != nil {
		return Report{Elapsed: time.Since(start)}, &SessionError{Err: err}
	}
	// Teardown on every exit path, cancellation included. Use a background
	// context so a cancelled run still gets its close attempt.
	defer func() {
		if err := e.client.Close(context.Background()); err != nil {
			e.log.Warn("session close failed", logx.Err(err))
		}
	}()

	var report Report
	var err error
	if len(groups) == 0 {
		if req.FilePattern != "" {
			e.log.Warn("no files matched pattern; sending bare message", logx.String("pattern", req.FilePattern))
		}
		report, err = e.sendMessage(ctx, req, policy)
	} else {
		report, err = e.sendGroups(ctx, req, groups, policy)
	}
	report.Elapsed = time.Since(start)
	return report, err
}

// simulate synthesizes a success outcome per planned unit without touching
// the transport. This is an explicit simulation path; the client is never
// connected.
func (e *Engine) simulate(req Request, groups []Group, start time.Time) Report {
	var report Report
	if len(groups) == 0 {
		e.log.Info("dry run: would send message",
			logx.Int64("chat_id", req.Chat.ChatID),
			logx.String("preview", preview(req.Message, 50)),
		)
		report.Outcomes = append(report.Outcomes, Outcome{Unit: unitMessage, Attempts: 0})
	} else {
		for _, g := range groups {
			e.log.Info("dry run: would send file group",
				logx.Int64("chat_id", req.Chat.ChatID),
				logx.String("unit", g.unit()),
				logx.Int("files", len(g.Files)),
			)
			report.Outcomes = append(report.Outcomes, Outcome{Unit: g.unit(), Attempts: 0})
		}
	}
	report.Elapsed = time.Since(start)
	return report
}

func (e *Engine) sendMessage(ctx context.Context, req Request, policy Policy) (Report, error) {
	var report Report
	attempts, err := executeWithRetry(ctx, e.log, unitMessage, func(c context.Context) error {
		return e.client.SendText(c, req.Chat, req.Message, e.opts)
	}, policy)
	if cerr := ctx.Err(); cerr != nil {
		return report, cerr
	}
	report.Outcomes = append(report.Outcomes, Outcome{Unit: unitMessage, Attempts: attempts, Err: err})
	e.logOutcome(report.Outcomes[0])
	return report, nil
}

func (e *Engine) sendGroups(ctx context.Context, req Request, groups []Group, policy Policy) (Report, error) {
	var report Report
	e.log.Info("sending files",
		logx.Int("files", len(req.Files)),
		logx.Int("groups", len(groups)),
		logx.Int64("chat_id", req.Chat.ChatID),
	)

	for i, g := range groups {
		// Pacing sits between consecutive groups, never after the last,
		// and is inserted regardless of the previous group's outcome.
		if i > 0 && e.pacing > 0 {
			if err := e.sleep(ctx, e.pacing); err != nil {
				return report, err
			}
		}

		group := g
		caption := group.Caption(req.Message)
		attempts, err := executeWithRetry(ctx, e.log, group.unit(), func(c context.Context) error {
			return e.client.SendFiles(c, req.Chat, group.Files, caption, e.opts)
		}, policy)
		if cerr := ctx.Err(); cerr != nil {
			return report, cerr
		}

		out := Outcome{Unit: group.unit(), Attempts: attempts, Err: err}
		report.Outcomes = append(report.Outcomes, out)
		e.logOutcome(out)
	}
	return report, nil
}

func (e *Engine) logOutcome(o Outcome) {
	if o.OK() {
		e.log.Info("unit sent", logx.String("unit", o.Unit), logx.Int("attempts", o.Attempts))
		return
	}
	e.log.Error("unit failed",
		logx.String("unit", o.Unit),
		logx.Int("attempts", o.Attempts),
		logx.Err(o.Err),
	)
}

const unitMessage = "message"

func (g Group) unit() string { return fmt.Sprintf("group %d/%d", g.Index, g.Total) }

func validateRequest(req Request) error {
	if req.Chat.ChatID == 0 {
		return fmt.Errorf("%w: chat id is required", ErrInvalidRequest)
	}
	if req.MaxGroupSize < 1 {
		return fmt.Errorf("%w: max group size must be >= 1 (got %d)", ErrInvalidRequest, req.MaxGroupSize)
	}
	return nil
}

func preview(s string, n int) string {
	rs := []rune(s)
	if len(rs) <= n {
		return s
	}
	return string(rs[:n]) + "..."
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		if !t.Stop() {
			<-t.C
		}
		return ctx.Err()
	}
}
