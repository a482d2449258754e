package telegram

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"sync"

	tele "gopkg.in/telebot.v4"

	"golang.org/x/time/rate"

	kit "telesend/internal/transport"
	logx "telesend/pkg/logx"
)

// Config controls the telegram client.
type Config struct {
	Token string

	// MessagesPerSec caps outgoing API calls so a burst of file groups does
	// not trip Telegram's per-chat flood limits on top of the engine's own
	// pacing. Defaults to 1.
	MessagesPerSec int

	// Offline skips the getMe authentication call. Tests only.
	Offline bool
}

// Client implements transport.Client against the Telegram Bot API via telebot.
type Client struct {
	cfg Config
	log logx.Logger

	limiter *rate.Limiter

	mu  sync.Mutex
	bot *tele.Bot
}

func New(cfg Config, log logx.Logger) (*Client, error) {
	if strings.TrimSpace(cfg.Token) == "" {
		return nil, errors.New("telegram token is empty")
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	rps := cfg.MessagesPerSec
	if rps <= 0 {
		rps = 1
	}
	return &Client{
		cfg:     cfg,
		log:     log,
		limiter: rate.NewLimiter(rate.Limit(rps), 1),
	}, nil
}

// Connect builds the underlying bot. telebot performs getMe during
// construction, so a bad token fails here and not mid-run.
func (c *Client) Connect(ctx context.Context) error {
	if ctx != nil {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.bot != nil {
		return nil
	}

	b, err := tele.NewBot(tele.Settings{
		Token:   c.cfg.Token,
		Offline: c.cfg.Offline,
	})
	if err != nil {
		return err
	}
	c.bot = b
	if b.Me != nil && b.Me.Username != "" {
		c.log.Info("session opened", logx.String("bot", "@"+b.Me.Username))
	} else {
		c.log.Info("session opened")
	}
	return nil
}

// Close drops the session. The Bot API is stateless over HTTP; we do not
// call the remote "close" method because it locks the token out of cloud
// servers for several minutes.
func (c *Client) Close(ctx context.Context) error {
	_ = ctx
	c.mu.Lock()
	open := c.bot != nil
	c.bot = nil
	c.mu.Unlock()
	if open {
		c.log.Info("session closed")
	}
	return nil
}

func (c *Client) current() (*tele.Bot, error) {
	c.mu.Lock()
	b := c.bot
	c.mu.Unlock()
	if b == nil {
		return nil, errors.New("telegram: not connected")
	}
	return b, nil
}

func (c *Client) SendText(ctx context.Context, to kit.ChatTarget, text string, opt *kit.SendOptions) error {
	b, err := c.current()
	if err != nil {
		return err
	}
	if err := c.limiter.Wait(orBackground(ctx)); err != nil {
		return err
	}

	_, err = b.Send(&tele.Chat{ID: to.ChatID}, text, sendOptions(to, opt))
	return err
}

func (c *Client) SendFiles(ctx context.Context, to kit.ChatTarget, paths []string, caption string, opt *kit.SendOptions) error {
	if len(paths) == 0 {
		return nil
	}
	b, err := c.current()
	if err != nil {
		return err
	}
	if err := c.limiter.Wait(orBackground(ctx)); err != nil {
		return err
	}

	_, err = b.SendAlbum(&tele.Chat{ID: to.ChatID}, buildAlbum(paths, caption), sendOptions(to, opt))
	return err
}

// buildAlbum turns file paths into a document album. Telegram renders an
// album caption when exactly one item carries it; we put it on the first.
func buildAlbum(paths []string, caption string) tele.Album {
	album := make(tele.Album, 0, len(paths))
	for i, p := range paths {
		doc := &tele.Document{
			File:     tele.FromDisk(p),
			FileName: filepath.Base(p),
		}
		if i == 0 && caption != "" {
			doc.Caption = caption
		}
		album = append(album, doc)
	}
	return album
}

func sendOptions(to kit.ChatTarget, opt *kit.SendOptions) *tele.SendOptions {
	if opt == nil {
		opt = &kit.SendOptions{}
	}
	return &tele.SendOptions{
		ParseMode:             opt.ParseMode,
		DisableWebPagePreview: opt.DisablePreview,
		ThreadID:              to.ThreadID,
	}
}

func orBackground(ctx context.Context) context.Context {
	if ctx == nil {
		return context.Background()
	}
	return ctx
}

var _ kit.Client = (*Client)(nil)
