package cli

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"telesend/internal/config"
	"telesend/internal/dispatch"
	"telesend/internal/storage"
	kit "telesend/internal/transport"
	"telesend/internal/transport/telegram"
	logx "telesend/pkg/logx"
)

// buildConfig merges, in increasing precedence: defaults, the config file
// (if present), legacy positional args, then flags.
func buildConfig(cmd *cobra.Command, f *rootFlags, args []string) (*config.Config, error) {
	cfg := &config.Config{}
	if _, err := os.Stat(f.configPath); err == nil {
		loaded, err := config.Load(f.configPath)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	} else if cmd.Flags().Changed("config") {
		// An explicitly named config file must exist.
		return nil, fmt.Errorf("config %s: %w", f.configPath, err)
	}

	if err := applyLegacyArgs(cfg, args); err != nil {
		return nil, err
	}
	applyFlags(cmd, cfg, f)
	cfg.ApplyDefaults()
	return cfg, nil
}

// applyLegacyArgs maps the deprecated positional form
// "token message chat-id [topic-id] [files]" onto the config.
func applyLegacyArgs(cfg *config.Config, args []string) error {
	if len(args) == 0 {
		return nil
	}
	if len(args) < 3 {
		return fmt.Errorf("positional form needs at least token, message and chat-id (got %d args)", len(args))
	}
	cfg.Telegram.Token = args[0]
	cfg.Dispatch.Message = args[1]
	chatID, err := strconv.ParseInt(args[2], 10, 64)
	if err != nil {
		return fmt.Errorf("chat-id %q: %w", args[2], err)
	}
	cfg.Dispatch.ChatID = chatID
	if len(args) >= 4 {
		topicID, err := strconv.Atoi(args[3])
		if err != nil {
			return fmt.Errorf("topic-id %q: %w", args[3], err)
		}
		cfg.Dispatch.TopicID = topicID
	}
	if len(args) >= 5 {
		cfg.Dispatch.Files = args[4]
	}
	return nil
}

func applyFlags(cmd *cobra.Command, cfg *config.Config, f *rootFlags) {
	set := cmd.Flags().Changed
	if set("token") {
		cfg.Telegram.Token = f.token
	}
	if set("chat-id") {
		cfg.Dispatch.ChatID = f.chatID
	}
	if set("topic-id") {
		cfg.Dispatch.TopicID = f.topicID
	}
	if set("message") {
		cfg.Dispatch.Message = f.message
	}
	if set("files") {
		cfg.Dispatch.Files = f.files
	}
	if set("max-files") {
		cfg.Dispatch.MaxFilesPerGroup = f.maxFiles
	}
	if set("retry") {
		attempts := f.retry
		cfg.Dispatch.RetryAttempts = &attempts
	}
	if set("retry-delay") {
		cfg.Dispatch.RetryDelay = f.retryDelay
	}
	if set("dry-run") {
		cfg.Dispatch.DryRun = f.dryRun
	}
	if f.verbose {
		cfg.Logging.Level = "debug"
	}
}

func newLogger(cfg *config.Config) (logx.Logger, io.Closer, error) {
	return logx.New(logx.Config{
		Level:   cfg.Logging.Level,
		Console: cfg.Logging.ConsoleEnabled(),
		File: logx.FileConfig{
			Enabled: cfg.Logging.File.Enabled,
			Path:    cfg.Logging.File.Path,
		},
	})
}

// resolveFiles expands the dispatch glob into a deterministic, sorted file
// list. A pattern that matches nothing yields an empty list, not an error;
// the engine falls back to a bare message in that case.
func resolveFiles(pattern string) ([]string, error) {
	if pattern == "" {
		return nil, nil
	}
	matches, err := filepath.Glob(pattern)
	if err != nil {
		return nil, fmt.Errorf("invalid file pattern %q: %w", pattern, err)
	}
	files := matches[:0]
	for _, m := range matches {
		info, err := os.Stat(m)
		if err != nil || info.IsDir() {
			continue
		}
		files = append(files, m)
	}
	sort.Strings(files)
	return files, nil
}

func buildRequest(cfg *config.Config, files []string) dispatch.Request {
	return dispatch.Request{
		Message: cfg.Dispatch.Message,
		Chat: kit.ChatTarget{
			ChatID:   cfg.Dispatch.ChatID,
			ThreadID: cfg.Dispatch.TopicID,
		},
		Files:        files,
		FilePattern:  cfg.Dispatch.Files,
		MaxGroupSize: cfg.Dispatch.MaxFilesPerGroup,
		DryRun:       cfg.Dispatch.DryRun,
	}
}

func buildPolicy(cfg *config.Config) (dispatch.Policy, error) {
	delay, err := config.ParseDurationOrDefault("dispatch.retry_delay", cfg.Dispatch.RetryDelay, config.DefaultRetryDelay)
	if err != nil {
		return dispatch.Policy{}, err
	}
	attempts := config.DefaultRetryAttempts
	if cfg.Dispatch.RetryAttempts != nil {
		attempts = *cfg.Dispatch.RetryAttempts
	}
	return dispatch.Policy{
		MaxAttempts: attempts,
		Delay:       delay,
	}, nil
}

func newEngine(cfg *config.Config, log logx.Logger) (*dispatch.Engine, error) {
	pacing, err := config.ParseDurationOrDefault("dispatch.group_pacing", cfg.Dispatch.GroupPacing, config.DefaultGroupPacing)
	if err != nil {
		return nil, err
	}
	client, err := telegram.New(telegram.Config{
		Token:          cfg.Telegram.Token,
		MessagesPerSec: cfg.Telegram.MessagesPerSec,
	}, log.With(logx.String("comp", "telegram")))
	if err != nil {
		return nil, err
	}
	return dispatch.NewEngine(client, log.With(logx.String("comp", "dispatch")),
		dispatch.WithPacing(pacing),
		dispatch.WithSendOptions(&kit.SendOptions{ParseMode: cfg.Dispatch.ParseMode}),
	), nil
}

func openStorage(cfg *config.Config, log logx.Logger) (storage.Store, error) {
	if cfg.Storage == nil {
		return nil, nil
	}
	busy, err := config.ParseDurationOrDefault("storage.busy_timeout", cfg.Storage.BusyTimeout, 0)
	if err != nil {
		return nil, err
	}
	return storage.Open(storage.Config{
		Driver:      cfg.Storage.Driver,
		Path:        cfg.Storage.Path,
		BusyTimeout: busy,
	}, log.With(logx.String("comp", "storage")))
}

// recordReport appends one history row per unit outcome. History is best
// effort; failures are logged and never affect the run result.
func recordReport(ctx context.Context, store storage.Store, log logx.Logger, cfg *config.Config, report dispatch.Report) {
	if store == nil {
		return
	}
	runID := newRunID()
	now := time.Now()
	for _, o := range report.Outcomes {
		errStr := ""
		if o.Err != nil {
			errStr = o.Err.Error()
		}
		entry := storage.DeliveryEntry{
			At:       now,
			RunID:    runID,
			ChatID:   cfg.Dispatch.ChatID,
			ThreadID: cfg.Dispatch.TopicID,
			Unit:     o.Unit,
			Attempts: o.Attempts,
			OK:       o.OK(),
			Error:    errStr,
			TookMS:   report.Elapsed.Milliseconds(),
			DryRun:   cfg.Dispatch.DryRun,
		}
		if err := store.AppendDelivery(ctx, entry); err != nil {
			log.Warn("history append failed", logx.String("unit", o.Unit), logx.Err(err))
		}
	}
}

func newRunID() string {
	var b [6]byte
	if _, err := rand.Read(b[:]); err != nil {
		return strconv.FormatInt(time.Now().UnixNano(), 16)
	}
	return hex.EncodeToString(b[:])
}

// saveConfigIfRequested writes the effective config to the --save-config
// destination. The send proceeds afterwards as usual.
func saveConfigIfRequested(f *rootFlags, cfg *config.Config, log logx.Logger) error {
	if f.saveConfig == "" {
		return nil
	}
	if err := config.Save(f.saveConfig, cfg); err != nil {
		return err
	}
	log.Info("config written", logx.String("path", f.saveConfig))
	return nil
}

// runSend is the one-shot delivery behind the root command.
func runSend(cmd *cobra.Command, f *rootFlags, args []string) error {
	cfg, err := buildConfig(cmd, f, args)
	if err != nil {
		return err
	}

	log, closeLog, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer closeLog.Close()

	if len(args) > 0 {
		log.Warn("positional arguments are deprecated; use flags or a config file")
	}

	if err := saveConfigIfRequested(f, cfg, log); err != nil {
		return err
	}

	if err := cfg.Validate(); err != nil {
		return err
	}

	store, err := openStorage(cfg, log)
	if err != nil {
		return err
	}
	if store != nil {
		defer store.Close()
	}

	files, err := resolveFiles(cfg.Dispatch.Files)
	if err != nil {
		return err
	}

	engine, err := newEngine(cfg, log)
	if err != nil {
		return err
	}
	policy, err := buildPolicy(cfg)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	report, runErr := engine.Run(ctx, buildRequest(cfg, files), policy)
	recordReport(context.Background(), store, log, cfg, report)

	if runErr != nil {
		if errors.Is(runErr, context.Canceled) {
			log.Warn("operation cancelled", logx.Int("completed_units", len(report.Outcomes)))
			return runErr
		}
		return runErr
	}

	failed := report.Failed()
	log.Info("delivery finished",
		logx.Int("units", len(report.Outcomes)),
		logx.Int("failed", failed),
		logx.Duration("elapsed", report.Elapsed),
		logx.Bool("dry_run", cfg.Dispatch.DryRun),
	)
	if failed > 0 {
		return fmt.Errorf("%w: %d of %d units", ErrDeliveryFailed, failed, len(report.Outcomes))
	}
	return nil
}
