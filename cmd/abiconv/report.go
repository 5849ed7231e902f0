package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/Olivier7017/abiconv/internal/config"
	"github.com/Olivier7017/abiconv/internal/convergence"
	"github.com/Olivier7017/abiconv/internal/database"
	"github.com/Olivier7017/abiconv/internal/events"
	"github.com/Olivier7017/abiconv/internal/flow"
	"github.com/Olivier7017/abiconv/internal/model"
	"github.com/Olivier7017/abiconv/internal/outputs"
	"github.com/Olivier7017/abiconv/internal/report"
)

// NewReportCmd creates the report command.
func NewReportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "report FLOWDIR",
		Short: "Analyze a flow and write the convergence report",
		Long: `Report parses every task's output, runs the convergence analysis and
writes the study report: the energy sweep, the per-atom deviations from
the densest mesh and the verdict naming the coarsest converged mesh.

The report is also saved to the history store, so 'abiconv history' can
list past sweeps of the same flow.

Examples:
  # Human-readable report on stdout
  abiconv report flow_si_conv

  # JSON for tooling
  abiconv report flow_si_conv --json

  # Markdown saved to a file
  abiconv report flow_si_conv --markdown -o report.md

  # Re-analyze with a stricter tolerance than the deck's
  abiconv report flow_si_conv --tolerance 0.5`,
		Args: cobra.ExactArgs(1),
		RunE: runReportCmd,
	}

	// Output format flags
	cmd.Flags().BoolP("json", "j", false,
		"Output the report in JSON format")
	cmd.Flags().BoolP("markdown", "m", false,
		"Output the report in Markdown format")
	cmd.Flags().StringP("output", "o", "",
		"Write the report to a file instead of stdout")

	// Analysis flags
	cmd.Flags().Float64P("tolerance", "t", 0,
		"Override the deck's tolerance in meV per atom")
	cmd.Flags().Bool("no-store", false,
		"Do not save the report to the history store")

	return cmd
}

// runReportCmd executes the report command.
func runReportCmd(cmd *cobra.Command, args []string) error {
	jsonOutput, err := cmd.Flags().GetBool("json")
	if err != nil {
		return err
	}
	markdownOutput, err := cmd.Flags().GetBool("markdown")
	if err != nil {
		return err
	}
	outputPath, err := cmd.Flags().GetString("output")
	if err != nil {
		return err
	}
	tolerance, err := cmd.Flags().GetFloat64("tolerance")
	if err != nil {
		return err
	}
	noStore, err := cmd.Flags().GetBool("no-store")
	if err != nil {
		return err
	}

	fl, err := flow.Open(args[0])
	if err != nil {
		return err
	}

	summaries, evReports := collectArtifacts(fl)

	tol := fl.Study.ToleranceMeV
	if tolerance > 0 {
		tol = tolerance
	}

	analysis, err := convergence.Analyze(buildPoints(fl, summaries), fl.Study.NumAtoms, tol)
	if err != nil {
		// Too few usable energies still yields a report: the task table
		// without deltas or a verdict.
		if !errors.Is(err, convergence.ErrTooFewPoints) && !errors.Is(err, convergence.ErrNothingUsable) {
			return err
		}
		fmt.Fprintf(os.Stderr, "convergence analysis skipped: %v\n", err)
		analysis = nil
	}

	studyReport := report.Assemble(fl, analysis, summaries, evReports)

	if !noStore {
		saveReport(fl, studyReport)
	}

	return outputStudyReport(studyReport, outputPath, jsonOutput, markdownOutput, getVerboseFlag(cmd))
}

// collectArtifacts parses every task's main output and log, keyed by task
// ID. Missing artifacts are skipped; a task that never ran simply has no
// entry.
func collectArtifacts(fl *flow.Flow) (map[string]*outputs.Summary, map[string]*events.Report) {
	summaries := make(map[string]*outputs.Summary)
	evReports := make(map[string]*events.Report)

	for _, t := range fl.AllTasks() {
		if s, err := outputs.ParseOutputFile(t.OutputPath()); err == nil {
			summaries[t.ID] = s
		}
		if r, err := events.ParseLogFile(t.LogPath()); err == nil {
			evReports[t.ID] = r
		}
	}
	return summaries, evReports
}

// buildPoints turns the flow's tasks into analysis points. Only tasks
// that completed and produced a total energy count as usable; everything
// else enters with Ok false so the report can still list it.
func buildPoints(fl *flow.Flow, summaries map[string]*outputs.Summary) []convergence.Point {
	tasks := fl.AllTasks()
	points := make([]convergence.Point, 0, len(tasks))
	for _, t := range tasks {
		p := convergence.Point{TaskID: t.ID, Ngkpt: t.Ngkpt}
		if s, ok := summaries[t.ID]; ok && s.EtotalFound && t.Status == flow.StatusCompleted {
			p.Nkpt = s.Nkpt
			p.EtotalHa = s.Etotal
			p.Ok = true
		}
		points = append(points, p)
	}
	return points
}

// saveReport records the flow and the report in the history store. Store
// failures do not fail the command; the printed report matters more than
// its bookkeeping.
func saveReport(fl *flow.Flow, studyReport *model.StudyReport) {
	store, err := database.Open(config.XDGDataDir(), database.DefaultOptions())
	if err != nil {
		fmt.Fprintf(os.Stderr, "history store unavailable, report not recorded: %v\n", err)
		return
	}
	defer store.Close()

	ctx := context.Background()

	workdir := fl.Workdir
	if abs, err := filepath.Abs(workdir); err == nil {
		workdir = abs
	}

	flowID, err := store.UpsertFlow(ctx, &database.FlowRecord{
		Name:         fl.Name,
		Workdir:      workdir,
		Formula:      fl.Study.Formula,
		NumAtoms:     fl.Study.NumAtoms,
		ToleranceMeV: fl.Study.ToleranceMeV,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "history store unavailable, report not recorded: %v\n", err)
		return
	}

	if err := store.SaveStudyReport(ctx, flowID, studyReport); err != nil {
		fmt.Fprintf(os.Stderr, "failed to record report: %v\n", err)
	}
}

// outputStudyReport writes the report in the requested format to the
// requested destination.
func outputStudyReport(studyReport *model.StudyReport, outputPath string, jsonOutput, markdownOutput, verbose bool) error {
	// Determine output destination
	var output *os.File
	if outputPath != "" {
		// Create directories if they don't exist
		dir := filepath.Dir(outputPath)
		if dir != "" && dir != "." {
			if err := os.MkdirAll(dir, 0750); err != nil {
				return fmt.Errorf("failed to create output directory: %w", err)
			}
		}

		f, err := os.OpenFile(outputPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600) //nolint:gosec // User-provided report path is intentional
		if err != nil {
			return fmt.Errorf("failed to create output file: %w", err)
		}
		defer f.Close()
		output = f
	} else {
		output = os.Stdout
	}

	// JSON output (full report wrapped with the tool version)
	if jsonOutput {
		writer := report.NewFullJSONWriter(output, getVersion(), report.WithPrettyPrint())
		_, err := writer.Write(studyReport)
		return err
	}

	// Markdown output
	if markdownOutput {
		writer := report.NewMarkdownWriter(output)
		_, err := writer.Write(studyReport)
		return err
	}

	// Human-readable report (default)
	writer := report.NewSimpleWriter(output,
		report.WithColor(output == os.Stdout && isTerminal(os.Stdout)),
		report.WithVerbose(verbose),
	)
	_, err := writer.Write(studyReport)
	return err
}
