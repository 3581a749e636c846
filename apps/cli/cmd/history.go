package cmd

import (
	"errors"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/abdul-hamid-achik/hitfetch/packages/core/config"
	"github.com/abdul-hamid-achik/hitfetch/packages/db"
	"github.com/spf13/cobra"
)

var (
	limitFlag int
	pruneFlag time.Duration
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show recorded calls",
	Long: `Show the calls recorded in the --history database, newest first.

Calls are recorded by request and watch when --history (or "history" in the
config file) names a SQLite database.`,
	Example: `  hitfetch history --history calls.db
  hitfetch history --limit 50
  hitfetch history --prune 168h`,
	Args: cobra.NoArgs,
	RunE: historyCommand,
}

func init() {
	historyCmd.Flags().IntVarP(&limitFlag, "limit", "n", 20, "Number of calls to show")
	historyCmd.Flags().DurationVar(&pruneFlag, "prune", 0, "Delete calls older than this instead of listing")
}

func historyCommand(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfig(configFlag)
	if err != nil {
		return exitWith(ExitConfigError, err)
	}
	if err := applyFlags(cfg); err != nil {
		return exitWith(ExitUsageError, err)
	}
	if cfg.History == "" {
		return exitWith(ExitUsageError, errors.New("no history database, set --history or history in the config file"))
	}

	store, err := db.NewClient(cfg.History)
	if err != nil {
		return exitWith(ExitConfigError, err)
	}
	defer store.Close()

	ctx := commandContext(cmd)
	out := cmd.OutOrStdout()

	if pruneFlag > 0 {
		n, err := store.Prune(ctx, time.Now().Add(-pruneFlag))
		if err != nil {
			return exitWith(ExitRequestFailure, err)
		}
		fmt.Fprintf(out, "Pruned %d call(s)\n", n)
		return nil
	}

	entries, err := store.Recent(ctx, limitFlag)
	if err != nil {
		return exitWith(ExitRequestFailure, err)
	}
	if len(entries) == 0 {
		fmt.Fprintln(out, "No calls recorded")
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "TIME\tMETHOD\tURL\tSTATUS\tPROBLEM\tDURATION")
	for _, e := range entries {
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\t%dms\n",
			e.CreatedAt.Local().Format(time.DateTime), e.Method, e.URL, e.Status, e.Problem, e.DurationMs)
	}
	return w.Flush()
}
