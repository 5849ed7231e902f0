package main

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Olivier7017/abiconv/internal/deck"
	"github.com/Olivier7017/abiconv/internal/flow"
)

// NewBuildCmd creates the build command.
func NewBuildCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "build STUDY.hcl",
		Short: "Build a flow directory tree from a study deck",
		Long: `Build parses and validates a study deck, then materializes it as a flow:
one task directory per k-mesh, each holding a complete engine input deck.

The flow directory defaults to flow_<study name> next to the deck. The
manifest (flow.yml) records every task and its state; 'abiconv run'
drives the flow from there.

Examples:
  # Build the flow for a study
  abiconv build study.hcl

  # Build into a specific directory
  abiconv build study.hcl -w /scratch/si_conv

  # Discard an existing flow and rebuild
  abiconv build study.hcl -f`,
		Args: cobra.ExactArgs(1),
		RunE: runBuildCmd,
	}

	cmd.Flags().StringP("workdir", "w", "",
		"Flow directory (default flow_<study name>)")
	cmd.Flags().BoolP("force", "f", false,
		"Remove an existing flow directory before building")

	return cmd
}

// runBuildCmd executes the build command.
func runBuildCmd(cmd *cobra.Command, args []string) error {
	workdir, err := cmd.Flags().GetString("workdir")
	if err != nil {
		return err
	}

	force, err := cmd.Flags().GetBool("force")
	if err != nil {
		return err
	}

	study, err := deck.Load(args[0])
	if err != nil {
		return err
	}

	if force {
		target := workdir
		if target == "" {
			target = flow.DefaultWorkdir(study.Name)
		}
		if err := os.RemoveAll(target); err != nil {
			return fmt.Errorf("failed to remove existing flow: %w", err)
		}
	}

	fl, err := flow.Build(study, workdir)
	if err != nil {
		if errors.Is(err, flow.ErrFlowExists) {
			return fmt.Errorf("%w (use -f to rebuild)", err)
		}
		return err
	}

	tasks := fl.AllTasks()
	fmt.Printf("Built flow %s: %d tasks in %s\n\n", fl.Name, len(tasks), fl.Workdir)

	fmt.Printf("  %-8s  %-10s  %s\n", "ID", "NGKPT", "DECK")
	fmt.Println("  " + strings.Repeat("-", 50))
	for _, t := range tasks {
		fmt.Printf("  %-8s  %-10s  %s\n",
			t.ID,
			fmt.Sprintf("%d %d %d", t.Ngkpt[0], t.Ngkpt[1], t.Ngkpt[2]),
			t.InputPath(),
		)
	}

	fmt.Printf("\nUse 'abiconv run %s' to schedule the engine runs.\n", fl.Workdir)
	return nil
}
