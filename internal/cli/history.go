package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/leofalp/graphyte/internal/store"
)

// ErrHistoryDisabled is returned by "history" when no database is configured.
var ErrHistoryDisabled = errors.New("run history is disabled (GRAPHYTE_HISTORY_DB is empty)")

func newHistoryCommand(app *App, opts *runOptions) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recent runs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := app.loadConfig(opts.configFile)
			if err != nil {
				return err
			}
			if cfg.HistoryDB == "" {
				return ErrHistoryDisabled
			}

			db, err := store.Open(cmd.Context(), cfg.HistoryDB)
			if err != nil {
				return err
			}
			defer db.Close()

			runs, err := db.Recent(cmd.Context(), limit)
			if err != nil {
				return err
			}
			printRuns(cmd, runs)
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 10, "maximum number of runs")
	return cmd
}

func printRuns(cmd *cobra.Command, runs []store.Run) {
	if len(runs) == 0 {
		cmd.Println("No runs recorded.")
		return
	}

	cmd.Printf("%-26s  %-20s  %-6s  %8s  %-11s  %9s  %7s  %9s  %s\n",
		"RUN", "STARTED", "SOURCE", "LENGTH", "STATUS", "C/E/S/F", "TOKENS", "COST", "TRACE")
	for _, r := range runs {
		counts := fmt.Sprintf("%d/%d/%d/%d",
			r.Count("completed"), r.Count("empty"), r.Count("skipped"), r.Count("failed"))
		cmd.Printf("%-26s  %-20s  %-6s  %8d  %-11s  %9s  %7d  %9s  %s\n",
			r.ID, r.StartedAt.Local().Format("2006-01-02 15:04:05"), r.Source, r.InputLength,
			r.Status, counts, r.TotalTokens, fmt.Sprintf("$%.4f", r.CostUSD), r.TraceID)
	}
}
