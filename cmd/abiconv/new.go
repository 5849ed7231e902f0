package main

import (
	"embed"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/Olivier7017/abiconv/internal/config"
)

//go:embed templates/study.hcl
var studyTemplate embed.FS

// studyFileName is the default study deck file name.
const studyFileName = "study.hcl"

// NewNewCmd creates the new command.
func NewNewCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "new",
		Short: "Scaffold an example study deck",
		Long: `New creates an example study deck in the current directory.

The generated file is a complete silicon k-point convergence study with
every block commented. Edit the structure, the pseudopotentials and the
mesh sweep for your own material, then build the flow with
'abiconv build'.

Examples:
  # Create study.hcl in current directory
  abiconv new

  # Create the deck at a specific path
  abiconv new -o studies/mgo.hcl

  # Force overwrite existing file
  abiconv new -f

  # Also write default manager.yml and scheduler.yml
  abiconv new --with-config`,
		RunE: runNewCmd,
	}

	cmd.Flags().StringP("output", "o", studyFileName,
		"Output file path for the study deck")
	cmd.Flags().BoolP("force", "f", false,
		"Overwrite existing study deck")
	cmd.Flags().Bool("with-config", false,
		"Also write default manager.yml and scheduler.yml next to the deck")

	return cmd
}

// runNewCmd executes the new command.
func runNewCmd(cmd *cobra.Command, _ []string) error {
	outputPath, err := cmd.Flags().GetString("output")
	if err != nil {
		return err
	}

	force, err := cmd.Flags().GetBool("force")
	if err != nil {
		return err
	}

	withConfig, err := cmd.Flags().GetBool("with-config")
	if err != nil {
		return err
	}

	// Check if file already exists
	if !force {
		if _, err := os.Stat(outputPath); err == nil {
			return fmt.Errorf("study deck already exists: %s (use -f to overwrite)", outputPath)
		}
	}

	// Read template from embedded filesystem
	content, err := studyTemplate.ReadFile("templates/study.hcl")
	if err != nil {
		return fmt.Errorf("failed to read study template: %w", err)
	}

	// Create parent directories if needed
	dir := filepath.Dir(outputPath)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0750); err != nil {
			return fmt.Errorf("failed to create directory: %w", err)
		}
	}

	// Write study deck
	if err := os.WriteFile(outputPath, content, 0600); err != nil {
		return fmt.Errorf("failed to write study deck: %w", err)
	}

	fmt.Printf("Created study deck: %s\n", outputPath)

	if withConfig {
		configDir := dir
		if configDir == "" {
			configDir = "."
		}
		if err := config.WriteDefault(configDir); err != nil {
			return err
		}
		fmt.Printf("Created %s and %s in %s\n", config.ManagerFile, config.SchedulerFile, configDir)
	}

	fmt.Println("\nEdit the deck for your material, then:")
	fmt.Printf("  abiconv build %s\n", outputPath)

	return nil
}
