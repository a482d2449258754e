package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"telesend/internal/config"
	"telesend/internal/watch"
	logx "telesend/pkg/logx"
)

func newWatchCmd(f *rootFlags) *cobra.Command {
	var (
		schedule string
		debounce string
	)

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Keep running and re-send when watched files change or a schedule fires",
		Long: `watch keeps the process alive and re-runs the delivery whenever files
matching the configured glob appear or change, and/or on a schedule
("cron:*/5 * * * *", "interval:30m", a bare cron expression, or a bare
duration). Files are only re-sent after their content changes relative
to the last fully successful delivery.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := buildConfig(cmd, f, nil)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("schedule") || schedule != "" {
				if cfg.Watch == nil {
					cfg.Watch = &config.WatchConfig{}
				}
				cfg.Watch.Schedule = schedule
			}
			if cmd.Flags().Changed("debounce") {
				if cfg.Watch == nil {
					cfg.Watch = &config.WatchConfig{}
				}
				cfg.Watch.Debounce = debounce
			}
			return runWatch(cmd.Context(), f, cfg)
		},
	}

	cmd.Flags().StringVar(&schedule, "schedule", "", "re-send schedule (cron or interval)")
	cmd.Flags().StringVar(&debounce, "debounce", "", "settle time after file events, e.g. 2s")
	return cmd
}

func runWatch(ctx context.Context, f *rootFlags, cfg *config.Config) error {
	log, closeLog, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer closeLog.Close()

	if err := cfg.Validate(); err != nil {
		return err
	}
	if cfg.Dispatch.Files == "" {
		return errors.New("watch mode needs dispatch.files (or --files) to watch")
	}

	store, err := openStorage(cfg, log)
	if err != nil {
		return err
	}
	if store != nil {
		defer store.Close()
	}

	engine, err := newEngine(cfg, log)
	if err != nil {
		return err
	}
	policy, err := buildPolicy(cfg)
	if err != nil {
		return err
	}

	wcfg := watch.Config{Pattern: cfg.Dispatch.Files}
	if cfg.Watch != nil {
		if cfg.Watch.Schedule != "" {
			spec, err := watch.ParseSchedule(cfg.Watch.Schedule)
			if err != nil {
				return err
			}
			wcfg.Schedule = &spec
		}
		d, err := config.ParseDurationOrDefault("watch.debounce", cfg.Watch.Debounce, config.DefaultWatchDebounce)
		if err != nil {
			return err
		}
		wcfg.Debounce = d
	}

	run := func(runCtx context.Context, files []string) (int, error) {
		report, err := engine.Run(runCtx, buildRequest(cfg, files), policy)
		recordReport(context.Background(), store, log, cfg, report)
		if err != nil {
			return report.Failed(), err
		}
		log.Info("delivery finished",
			logx.Int("units", len(report.Outcomes)),
			logx.Int("failed", report.Failed()),
			logx.Duration("elapsed", report.Elapsed),
		)
		if report.Failed() > 0 {
			// Surface a count for the watch loop; it keeps the batch
			// pending and retries on the next trigger.
			return report.Failed(), nil
		}
		return 0, nil
	}

	svc, err := watch.New(wcfg, run, log)
	if err != nil {
		return err
	}
	if err := svc.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("watch: %w", err)
	}
	log.Info("watch stopped")
	return nil
}
