package main

import (
	"fmt"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/Olivier7017/abiconv/internal/tui"
)

// NewStatusCmd creates the status command.
func NewStatusCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status FLOWDIR",
		Short: "Show the task table of a flow",
		Long: `Status prints one row per task: the k-mesh, the lifecycle state, the
total energy once parsed, event counts and wall time.

With --watch the table runs full screen and refreshes on a timer, which
is the comfortable way to follow a sweep driven by 'abiconv run' in
another terminal.

Examples:
  # One-shot task table
  abiconv status flow_si_conv

  # Live view, refreshed every two seconds
  abiconv status flow_si_conv --watch

  # Live view with a slower refresh
  abiconv status flow_si_conv --watch --interval 10s`,
		Args: cobra.ExactArgs(1),
		RunE: runStatusCmd,
	}

	cmd.Flags().BoolP("watch", "w", false,
		"Refresh the table continuously in a full-screen view")
	cmd.Flags().Duration("interval", tui.DefaultInterval,
		"Refresh interval for --watch")

	return cmd
}

// runStatusCmd executes the status command.
func runStatusCmd(cmd *cobra.Command, args []string) error {
	watch, err := cmd.Flags().GetBool("watch")
	if err != nil {
		return err
	}
	interval, err := cmd.Flags().GetDuration("interval")
	if err != nil {
		return err
	}

	workdir := args[0]

	if watch {
		m := tui.NewModel(workdir, interval)
		p := tea.NewProgram(&m, tea.WithAltScreen())
		if _, err := p.Run(); err != nil {
			return fmt.Errorf("watch view failed: %w", err)
		}
		return nil
	}

	snap, err := tui.TakeSnapshot(workdir)
	if err != nil {
		return err
	}

	color := isTerminal(os.Stdout)
	fmt.Println(tui.RenderHeader(snap, color))
	fmt.Println()
	fmt.Println(tui.RenderTable(snap, color))
	return nil
}
