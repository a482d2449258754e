package cli

import (
	"errors"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

func newHistoryCmd(f *rootFlags) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recent delivery history",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := buildConfig(cmd, f, nil)
			if err != nil {
				return err
			}
			log, closeLog, err := newLogger(cfg)
			if err != nil {
				return err
			}
			defer closeLog.Close()

			store, err := openStorage(cfg, log)
			if err != nil {
				return err
			}
			if store == nil {
				return errors.New("no storage configured; set the storage section in the config file")
			}
			defer store.Close()

			entries, err := store.RecentDeliveries(cmd.Context(), limit)
			if err != nil {
				return err
			}
			if len(entries) == 0 {
				fmt.Println("no deliveries recorded")
				return nil
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "TIME\tRUN\tCHAT\tUNIT\tATTEMPTS\tRESULT")
			for _, e := range entries {
				result := "ok"
				if !e.OK {
					result = "failed: " + e.Error
				}
				if e.DryRun {
					result += " (dry-run)"
				}
				fmt.Fprintf(w, "%s\t%s\t%d\t%s\t%d\t%s\n",
					e.At.Format("2006-01-02 15:04:05"), e.RunID, e.ChatID, e.Unit, e.Attempts, result)
			}
			return w.Flush()
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 20, "max rows to show")
	return cmd
}
