package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Olivier7017/abiconv/internal/config"
	"github.com/Olivier7017/abiconv/internal/database"
	"github.com/Olivier7017/abiconv/internal/report"
)

// NewHistoryCmd creates the history command.
// This command reads past sweeps and reports from the results store.
func NewHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history [FLOWDIR]",
		Short: "List recorded flows and their scheduler runs",
		Long: `History reads the results store: without arguments it lists every
recorded flow, with a flow directory it lists that flow's scheduler runs
and their verdicts.

Runs are recorded by 'abiconv run' and reports by 'abiconv report'; the
store lives in the XDG data directory (~/.local/share/abiconv).

Examples:
  # All recorded flows
  abiconv history

  # Scheduler runs of one flow
  abiconv history flow_si_conv

  # Reprint the latest stored report of a flow
  abiconv history flow_si_conv --latest`,
		Args: cobra.MaximumNArgs(1),
		RunE: runHistoryCmd,
	}

	cmd.Flags().BoolP("latest", "l", false,
		"Print the latest stored report of the flow")

	return cmd
}

// runHistoryCmd executes the history command.
func runHistoryCmd(cmd *cobra.Command, args []string) error {
	latest, err := cmd.Flags().GetBool("latest")
	if err != nil {
		return err
	}

	store, err := database.Open(config.XDGDataDir(), database.DefaultOptions())
	if err != nil {
		return fmt.Errorf("failed to open history store: %w", err)
	}
	defer store.Close()

	ctx := context.Background()

	if len(args) == 0 {
		return listRecordedFlows(ctx, store)
	}

	workdir := args[0]
	if abs, err := filepath.Abs(workdir); err == nil {
		workdir = abs
	}

	rec, err := store.FlowByWorkdir(ctx, workdir)
	if err != nil {
		return err
	}
	if rec == nil {
		fmt.Printf("No history recorded for %s\n", args[0])
		fmt.Println("\nUse 'abiconv run' to schedule the flow; runs are recorded as they happen.")
		return nil
	}

	if latest {
		return printLatestReport(ctx, store, rec)
	}
	return listRunHistory(ctx, store, rec)
}

// listRecordedFlows lists every flow in the store, most recent first.
func listRecordedFlows(ctx context.Context, store *database.Store) error {
	flows, err := store.ListFlows(ctx)
	if err != nil {
		return fmt.Errorf("failed to list flows: %w", err)
	}

	if len(flows) == 0 {
		fmt.Println("No flows recorded yet.")
		fmt.Println("\nUse 'abiconv run <flowdir>' to schedule a flow; runs are recorded as they happen.")
		return nil
	}

	fmt.Printf("Recorded flows (%d):\n\n", len(flows))
	fmt.Printf("  %-12s  %-8s  %-20s  %s\n", "NAME", "FORMULA", "CREATED", "WORKDIR")
	fmt.Println("  " + strings.Repeat("-", 70))
	for _, f := range flows {
		fmt.Printf("  %-12s  %-8s  %-20s  %s\n",
			f.Name,
			f.Formula,
			f.Created.Format("2006-01-02 15:04:05"),
			f.Workdir,
		)
	}

	fmt.Println("\nUse 'abiconv history <flowdir>' to see a flow's scheduler runs.")
	return nil
}

// listRunHistory lists the scheduler runs of one flow, most recent first.
func listRunHistory(ctx context.Context, store *database.Store, rec *database.FlowRecord) error {
	runs, err := store.RunHistory(ctx, rec.ID)
	if err != nil {
		return fmt.Errorf("failed to get run history: %w", err)
	}

	if len(runs) == 0 {
		fmt.Printf("No runs recorded for %s\n", rec.Name)
		return nil
	}

	fmt.Printf("Run history for %s (%d runs):\n\n", rec.Name, len(runs))
	fmt.Printf("  %-8s  %-20s  %-30s  %s\n", "RUN", "STARTED", "TASKS", "VERDICT")
	fmt.Println("  " + strings.Repeat("-", 76))

	for _, run := range runs {
		fmt.Printf("  %-8s  %-20s  %-30s  %s\n",
			shortRunID(run.RunID),
			run.Started.Format("2006-01-02 15:04:05"),
			formatStatusCounts(run.StatusCounts),
			runVerdict(run),
		)
	}

	fmt.Println("\nUse 'abiconv history <flowdir> --latest' to reprint the latest report.")
	return nil
}

// printLatestReport reprints the most recent stored report of the flow.
func printLatestReport(ctx context.Context, store *database.Store, rec *database.FlowRecord) error {
	rep, err := store.LatestStudyReport(ctx, rec.ID)
	if err != nil {
		return err
	}
	if rep == nil {
		fmt.Printf("No report stored for %s\n", rec.Name)
		fmt.Println("\nUse 'abiconv report <flowdir>' to analyze the flow and store a report.")
		return nil
	}

	writer := report.NewSimpleWriter(os.Stdout, report.WithColor(isTerminal(os.Stdout)))
	_, err = writer.Write(rep)
	return err
}

// shortRunID truncates a run UUID to its first block for display.
func shortRunID(runID string) string {
	if len(runID) > 8 {
		return runID[:8]
	}
	return runID
}

// formatStatusCounts renders status counts as "Completed=4 Error=1",
// sorted by status name for stable output.
func formatStatusCounts(counts map[string]int) string {
	if len(counts) == 0 {
		return "-"
	}
	names := make([]string, 0, len(counts))
	for name := range counts {
		names = append(names, name)
	}
	sort.Strings(names)

	parts := make([]string, 0, len(names))
	for _, name := range names {
		parts = append(parts, fmt.Sprintf("%s=%d", name, counts[name]))
	}
	return strings.Join(parts, " ")
}

// runVerdict names the run's stored analysis outcome.
func runVerdict(run database.RunMetadata) string {
	if !run.HasReport {
		return "no report"
	}
	if run.Converged {
		return "converged"
	}
	return "not converged"
}
