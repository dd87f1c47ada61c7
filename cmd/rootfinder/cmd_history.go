package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/rendis/rootfinder/internal/history"
	"github.com/rendis/rootfinder/pkg/schema"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Inspect and manage saved runs",
}

var historyListFlags struct {
	comparisons bool
	method      string
	converged   string
	function    string
	where       string
	project     string
	limit       int
}

var historyListCmd = &cobra.Command{
	Use:   "list",
	Short: "List saved calculations (or comparisons with --comparisons)",
	Example: `  rootfinder history list --method newton --converged true
  rootfinder history list --where 'converged && iterations < 10' --project '{method, root}'
  rootfinder history list --comparisons --function "cos(x) - x"`,
	Args: cobra.NoArgs,
	RunE: runHistoryList,
}

var historyShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show a saved calculation or comparison",
	Args:  cobra.ExactArgs(1),
	RunE:  runHistoryShow,
}

var historyDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a saved calculation or comparison",
	Args:  cobra.ExactArgs(1),
	RunE:  runHistoryDelete,
}

var historyClearFlags struct {
	yes bool
}

var historyClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Delete all saved calculations and comparisons",
	Args:  cobra.NoArgs,
	RunE:  runHistoryClear,
}

var historyPruneFlags struct {
	olderThan time.Duration
}

var historyPruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Delete saved runs older than the retention window",
	Args:  cobra.NoArgs,
	RunE:  runHistoryPrune,
}

func init() {
	f := historyListCmd.Flags()
	f.BoolVar(&historyListFlags.comparisons, "comparisons", false, "List comparison sessions instead of calculations")
	f.StringVar(&historyListFlags.method, "method", "", "Only calculations of this method")
	f.StringVar(&historyListFlags.converged, "converged", "", "Only converged (true) or failed (false) calculations")
	f.StringVar(&historyListFlags.function, "function", "", "Only comparisons of this function")
	f.StringVar(&historyListFlags.where, "where", "", "CEL predicate over a calculation")
	f.StringVar(&historyListFlags.project, "project", "", "jq program applied to every matching calculation")
	f.IntVar(&historyListFlags.limit, "limit", history.DefaultLimit, "Maximum records to return")

	historyClearCmd.Flags().BoolVar(&historyClearFlags.yes, "yes", false, "Confirm deleting all history")
	historyPruneCmd.Flags().DurationVar(&historyPruneFlags.olderThan, "older-than", 0, "Retention window (default: configured retention)")

	historyCmd.AddCommand(historyListCmd)
	historyCmd.AddCommand(historyShowCmd)
	historyCmd.AddCommand(historyDeleteCmd)
	historyCmd.AddCommand(historyClearCmd)
	historyCmd.AddCommand(historyPruneCmd)
}

func runHistoryList(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	svc, err := cli.requireHistory(ctx)
	if err != nil {
		return err
	}

	if historyListFlags.comparisons {
		sessions, err := svc.ListComparisons(ctx, historyListFlags.function, historyListFlags.limit)
		if err != nil {
			return err
		}
		return writeJSON(cmd.OutOrStdout(), map[string]any{"comparisons": sessions, "count": len(sessions)})
	}

	q := history.Query{
		Method:  schema.Method(historyListFlags.method),
		Limit:   historyListFlags.limit,
		Where:   historyListFlags.where,
		Project: historyListFlags.project,
	}
	if historyListFlags.converged != "" {
		v, err := strconv.ParseBool(historyListFlags.converged)
		if err != nil {
			return fmt.Errorf("--converged must be true or false: %w", err)
		}
		q.Converged = &v
	}
	listing, err := svc.ListCalculations(ctx, q)
	if err != nil {
		return err
	}
	return writeJSON(cmd.OutOrStdout(), listing)
}

func runHistoryShow(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	svc, err := cli.requireHistory(ctx)
	if err != nil {
		return err
	}

	calc, err := svc.GetCalculation(ctx, args[0])
	if err == nil {
		return writeJSON(cmd.OutOrStdout(), calc)
	}
	if !schema.IsCode(err, schema.ErrCodeNotFound) {
		return err
	}
	cmp, err := svc.GetComparison(ctx, args[0])
	if err != nil {
		return err
	}
	return writeJSON(cmd.OutOrStdout(), cmp)
}

func runHistoryDelete(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	svc, err := cli.requireHistory(ctx)
	if err != nil {
		return err
	}
	if err := svc.Delete(ctx, args[0]); err != nil {
		return err
	}
	return writeJSON(cmd.OutOrStdout(), map[string]any{"ok": true, "id": args[0]})
}

func runHistoryClear(cmd *cobra.Command, _ []string) error {
	if !historyClearFlags.yes {
		return fmt.Errorf("refusing to delete all history without --yes")
	}
	ctx := cmd.Context()
	svc, err := cli.requireHistory(ctx)
	if err != nil {
		return err
	}
	counts, err := svc.Clear(ctx)
	if err != nil {
		return err
	}
	return writeJSON(cmd.OutOrStdout(), counts)
}

func runHistoryPrune(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	svc, err := cli.requireHistory(ctx)
	if err != nil {
		return err
	}
	olderThan := historyPruneFlags.olderThan
	if olderThan == 0 {
		if olderThan, err = cli.cfg.retention(); err != nil {
			return err
		}
	}
	counts, err := svc.Prune(ctx, olderThan)
	if err != nil {
		return err
	}
	return writeJSON(cmd.OutOrStdout(), counts)
}
