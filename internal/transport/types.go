package transport

import "context"

// ChatTarget addresses a chat, optionally narrowed to a forum topic thread.
type ChatTarget struct {
	ChatID   int64
	ThreadID int // telegram forum topic thread id (0 if none)
}

type SendOptions struct {
	ParseMode      string
	DisablePreview bool
}

// Client is the outbound delivery port. One Client owns one session;
// sessions are never shared across concurrent runs.
//
// Close is best-effort: implementations log failures instead of raising them.
type Client interface {
	Connect(ctx context.Context) error
	Close(ctx context.Context) error

	SendText(ctx context.Context, to ChatTarget, text string, opt *SendOptions) error
	SendFiles(ctx context.Context, to ChatTarget, paths []string, caption string, opt *SendOptions) error
}
