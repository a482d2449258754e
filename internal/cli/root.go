package cli

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// ErrDeliveryFailed is returned when the run completed but at least one
// unit exhausted its retry budget. The process should exit non-zero
// without printing a second error message.
var ErrDeliveryFailed = errors.New("delivery finished with failures")

type rootFlags struct {
	configPath string
	saveConfig string

	token      string
	chatID     int64
	topicID    int
	message    string
	files      string
	maxFiles   int
	retry      int
	retryDelay string
	dryRun     bool
	verbose    bool
}

func newRootCmd() *cobra.Command {
	f := &rootFlags{}

	cmd := &cobra.Command{
		Use:   "telesend [token message chat-id [topic-id] [files]]",
		Short: "Send a message, optionally with file attachments, to a Telegram chat",
		Long: `telesend delivers one message to a Telegram chat via the Bot API.
Files matching a glob are attached in albums of up to --max-files each,
with per-group retries, and the run ends with a per-unit report.

Configuration comes from a JSON (or YAML) file, overridden by flags.
The positional form (token message chat-id [topic-id] [files]) is kept
for backwards compatibility and is deprecated.`,
		Args:          cobra.MaximumNArgs(5),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSend(cmd, f, args)
		},
	}

	cmd.PersistentFlags().StringVarP(&f.configPath, "config", "c", "telesend.json", "path to the config file")
	cmd.PersistentFlags().BoolVarP(&f.verbose, "verbose", "v", false, "debug logging")

	cmd.Flags().StringVar(&f.saveConfig, "save-config", "", "also write the effective config to this path")
	cmd.Flags().StringVar(&f.token, "token", "", "bot token (overrides config)")
	cmd.Flags().Int64Var(&f.chatID, "chat-id", 0, "destination chat id (overrides config)")
	cmd.Flags().IntVar(&f.topicID, "topic-id", 0, "forum topic (message thread) id")
	cmd.Flags().StringVarP(&f.message, "message", "m", "", "message text")
	cmd.Flags().StringVar(&f.files, "files", "", "glob of files to attach")
	cmd.Flags().IntVar(&f.maxFiles, "max-files", 0, "max files per group")
	cmd.Flags().IntVar(&f.retry, "retry", 0, "attempts per unit")
	cmd.Flags().StringVar(&f.retryDelay, "retry-delay", "", "wait between attempts, e.g. 5s")
	cmd.Flags().BoolVar(&f.dryRun, "dry-run", false, "plan and report without connecting")

	cmd.AddCommand(newWatchCmd(f), newHistoryCmd(f))
	return cmd
}

// Execute runs the CLI. The returned error is already logged or printed;
// callers only map it to an exit code.
func Execute(ctx context.Context) error {
	cmd := newRootCmd()
	err := cmd.ExecuteContext(ctx)
	if err != nil && !errors.Is(err, ErrDeliveryFailed) && !errors.Is(err, context.Canceled) {
		fmt.Fprintln(os.Stderr, "error:", err)
	}
	return err
}
