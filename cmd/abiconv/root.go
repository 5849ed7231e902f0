// Package main provides the entry point for the abiconv CLI.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// NewRootCmd creates the root command for abiconv.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "abiconv",
		Short: "K-point convergence studies for ABINIT-style DFT engines",
		Long: `abiconv automates k-point convergence studies for ABINIT-style DFT engines.
It expands a study definition into one input deck per k-mesh, schedules the
engine runs locally or on a queue, and analyzes the total energies to find
the coarsest converged mesh.

A study starts from an HCL deck (see 'abiconv new'), becomes a flow
directory tree (see 'abiconv build'), and runs to completion under the
polling scheduler (see 'abiconv run').`,
		Version:       getVersion(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Global flags that apply to all commands
	cmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose logging")

	// Add subcommands
	cmd.AddCommand(NewNewCmd())
	cmd.AddCommand(NewBuildCmd())
	cmd.AddCommand(NewRunCmd())
	cmd.AddCommand(NewStatusCmd())
	cmd.AddCommand(NewEventsCmd())
	cmd.AddCommand(NewReportCmd())
	cmd.AddCommand(NewHistoryCmd())
	cmd.AddCommand(NewDocCmd())
	cmd.AddCommand(NewDDBCmd())
	cmd.AddCommand(NewVersionCmd())

	return cmd
}

// Execute runs the root command.
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// getVerboseFlag retrieves the verbose flag from the command or its parent.
func getVerboseFlag(cmd *cobra.Command) bool {
	verbose, err := cmd.Flags().GetBool("verbose")
	if err != nil {
		verbose, err = cmd.Root().PersistentFlags().GetBool("verbose")
		if err != nil {
			return false
		}
	}
	return verbose
}
