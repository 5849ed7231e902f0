package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Olivier7017/abiconv/internal/events"
	"github.com/Olivier7017/abiconv/internal/flow"
)

// NewEventsCmd creates the events command.
func NewEventsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "events FLOWDIR",
		Short: "Show the engine diagnostics of a flow",
		Long: `Events lists the structured diagnostics the engine wrote into each
task's log: comments, warnings, errors and bugs, with a remediation hint
where one is known.

Examples:
  # All diagnostics of every task
  abiconv events flow_si_conv

  # One task only
  abiconv events flow_si_conv --task w0/t2

  # Warnings and worse across the flow
  abiconv events flow_si_conv --severity warning`,
		Args: cobra.ExactArgs(1),
		RunE: runEventsCmd,
	}

	cmd.Flags().StringP("task", "t", "",
		"Limit to one task, for example w0/t2")
	cmd.Flags().StringP("severity", "s", "comment",
		"Minimum severity to show: comment, warning, error or bug")

	return cmd
}

// runEventsCmd executes the events command.
func runEventsCmd(cmd *cobra.Command, args []string) error {
	taskID, err := cmd.Flags().GetString("task")
	if err != nil {
		return err
	}
	severityLabel, err := cmd.Flags().GetString("severity")
	if err != nil {
		return err
	}

	minSeverity, ok := events.ParseSeverity(severityLabel)
	if !ok {
		return fmt.Errorf("unknown severity %q (use comment, warning, error or bug)", severityLabel)
	}

	fl, err := flow.Open(args[0])
	if err != nil {
		return err
	}

	tasks := fl.AllTasks()
	if taskID != "" {
		t := fl.Task(taskID)
		if t == nil {
			return fmt.Errorf("no task %s in flow %s", taskID, fl.Name)
		}
		tasks = []*flow.Task{t}
	}

	logsFound := 0
	for _, t := range tasks {
		rep, err := events.ParseLogFile(t.LogPath())
		if err != nil {
			if errors.Is(err, events.ErrNoLogFile) {
				continue
			}
			return err
		}
		logsFound++
		printTaskEvents(t, rep, minSeverity)
	}

	if logsFound == 0 {
		fmt.Printf("No engine logs found in %s\n", fl.Workdir)
		fmt.Println("\nUse 'abiconv run' to schedule the engine runs first.")
	}
	return nil
}

// printTaskEvents prints one task's summary line and its events at or
// above the minimum severity.
func printTaskEvents(t *flow.Task, rep *events.Report, minSeverity events.Severity) {
	fmt.Printf("%s [%s]: %s\n", t.ID, t.Status, rep)

	for _, ev := range rep.Events {
		if ev.Severity < minSeverity {
			continue
		}
		fmt.Printf("  %s\n", ev)
		if hint := ev.Hint(); hint != "" {
			fmt.Printf("      hint: %s\n", hint)
		}
	}
}
