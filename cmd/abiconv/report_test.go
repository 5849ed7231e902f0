package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/Olivier7017/abiconv/internal/flow"
	"github.com/Olivier7017/abiconv/internal/outputs"
	"github.com/Olivier7017/abiconv/internal/report"
)

// writeTaskOutput writes a minimal engine main output into a task directory.
func writeTaskOutput(t *testing.T, workdir, taskID string, etotal string, nkpt int) {
	t.Helper()

	content := fmt.Sprintf(`
.Version 9.6.2 of ABINIT

 -outvars: echo values of preprocessed input variables --------
            natom           2
             nkpt          %d

     iter   Etot(hartree)      deltaE(h)  residm     vres2
 ETOT  1  %s    -8.860E+00 1.215E-02 8.129E+00

 At SCF step    1, etot is converged.

>>>>>>>>> Etotal= %sE+00

+Overall time at end (sec) : cpu=         11.9  wall=         12.0

 Calculation completed.
`, nkpt, etotal, etotal)

	path := filepath.Join(workdir, filepath.FromSlash(taskID), flow.OutputFile)
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write task output: %v", err)
	}
}

// completeAllTasks marks every task in the flow as completed.
func completeAllTasks(t *testing.T, workdir string) {
	t.Helper()

	fl, err := flow.Open(workdir)
	if err != nil {
		t.Fatalf("failed to open flow: %v", err)
	}
	for _, task := range fl.AllTasks() {
		task.Status = flow.StatusCompleted
	}
	if err := fl.Save(); err != nil {
		t.Fatalf("failed to save flow: %v", err)
	}
}

// TestNewReportCmd tests the report command creation.
func TestNewReportCmd(t *testing.T) {
	t.Parallel()

	cmd := NewReportCmd()

	t.Run("has correct use", func(t *testing.T) {
		t.Parallel()
		if cmd.Use != "report FLOWDIR" {
			t.Errorf("expected use 'report FLOWDIR', got %q", cmd.Use)
		}
	})

	t.Run("has format flags", func(t *testing.T) {
		t.Parallel()

		tests := []struct {
			name      string
			shorthand string
		}{
			{"json", "j"},
			{"markdown", "m"},
			{"output", "o"},
			{"tolerance", "t"},
		}

		for _, tt := range tests {
			flag := cmd.Flags().Lookup(tt.name)
			if flag == nil {
				t.Errorf("expected %s flag", tt.name)
				continue
			}
			if flag.Shorthand != tt.shorthand {
				t.Errorf("%s: expected shorthand %q, got %q", tt.name, tt.shorthand, flag.Shorthand)
			}
		}
	})

	t.Run("has no-store flag", func(t *testing.T) {
		t.Parallel()
		flag := cmd.Flags().Lookup("no-store")
		if flag == nil {
			t.Fatal("expected no-store flag")
		}
		if flag.DefValue != "false" {
			t.Errorf("expected default 'false', got %q", flag.DefValue)
		}
	})
}

// TestBuildPoints tests the status and energy gating of analysis points.
func TestBuildPoints(t *testing.T) {
	t.Parallel()

	fl := &flow.Flow{
		Works: []*flow.Work{{
			ID: "w0",
			Tasks: []*flow.Task{
				{ID: "w0/t0", Ngkpt: [3]int{2, 2, 2}, Status: flow.StatusCompleted},
				{ID: "w0/t1", Ngkpt: [3]int{4, 4, 4}, Status: flow.StatusCompleted},
				{ID: "w0/t2", Ngkpt: [3]int{6, 6, 6}, Status: flow.StatusError},
				{ID: "w0/t3", Ngkpt: [3]int{8, 8, 8}, Status: flow.StatusCompleted},
			},
		}},
	}

	summaries := map[string]*outputs.Summary{
		"w0/t0": {Etotal: -8.8660, EtotalFound: true, Nkpt: 2},
		// w0/t1 has no summary: the run never produced an output
		"w0/t2": {Etotal: -8.8661, EtotalFound: true, Nkpt: 16},
		"w0/t3": {EtotalFound: false},
	}

	points := buildPoints(fl, summaries)
	if len(points) != 4 {
		t.Fatalf("got %d points, expected 4", len(points))
	}

	t.Run("completed task with energy is usable", func(t *testing.T) {
		t.Parallel()
		p := points[0]
		if !p.Ok {
			t.Error("expected point to be usable")
		}
		if p.EtotalHa != -8.8660 {
			t.Errorf("EtotalHa = %v, expected -8.8660", p.EtotalHa)
		}
		if p.Nkpt != 2 {
			t.Errorf("Nkpt = %d, expected 2", p.Nkpt)
		}
	})

	t.Run("missing output is unusable", func(t *testing.T) {
		t.Parallel()
		if points[1].Ok {
			t.Error("expected point without a summary to be unusable")
		}
	})

	t.Run("failed task is unusable even with an energy", func(t *testing.T) {
		t.Parallel()
		if points[2].Ok {
			t.Error("expected errored task to be unusable")
		}
	})

	t.Run("completed task without energy is unusable", func(t *testing.T) {
		t.Parallel()
		if points[3].Ok {
			t.Error("expected energyless task to be unusable")
		}
	})
}

// TestCollectArtifacts tests per-task artifact parsing.
func TestCollectArtifacts(t *testing.T) {
	t.Parallel()

	workdir := buildTestFlow(t, t.TempDir())
	writeTaskOutput(t, workdir, "w0/t0", "-8.86620000000000", 2)

	logPath := filepath.Join(workdir, "w0", "t1", flow.LogFile)
	if err := os.WriteFile(logPath, []byte(testLog), 0600); err != nil {
		t.Fatalf("failed to write test log: %v", err)
	}

	fl, err := flow.Open(workdir)
	if err != nil {
		t.Fatalf("failed to open flow: %v", err)
	}

	summaries, evReports := collectArtifacts(fl)

	if _, ok := summaries["w0/t0"]; !ok {
		t.Error("expected a summary for w0/t0")
	}
	if _, ok := summaries["w0/t1"]; ok {
		t.Error("expected no summary for w0/t1 (no output written)")
	}
	if s := summaries["w0/t0"]; s != nil && !s.EtotalFound {
		t.Error("expected the parsed output to carry an energy")
	}

	if _, ok := evReports["w0/t1"]; !ok {
		t.Error("expected an event report for w0/t1")
	}
	if _, ok := evReports["w0/t0"]; ok {
		t.Error("expected no event report for w0/t0 (no log written)")
	}
}

// TestRunReportCmd tests the report command execution.
func TestRunReportCmd(t *testing.T) {
	t.Run("fails on a directory that is not a flow", func(t *testing.T) {
		cmd := NewReportCmd()
		cmd.SetArgs([]string{t.TempDir(), "--no-store"})

		err := cmd.Execute()
		if err == nil {
			t.Fatal("expected error for non-flow directory")
		}
		if !strings.Contains(err.Error(), "not a flow directory") {
			t.Errorf("expected 'not a flow directory' error, got %v", err)
		}
	})

	t.Run("writes a JSON report to a file", func(t *testing.T) {
		tmpDir := t.TempDir()
		workdir := buildTestFlow(t, tmpDir)

		// Two completed runs 2.4e-5 Ha apart: 0.33 meV/atom, within the
		// deck's 1.0 meV/atom tolerance.
		writeTaskOutput(t, workdir, "w0/t0", "-8.86620000000000", 2)
		writeTaskOutput(t, workdir, "w0/t1", "-8.86622389600749", 10)
		completeAllTasks(t, workdir)

		outputPath := filepath.Join(tmpDir, "out", "report.json")

		cmd := NewReportCmd()
		cmd.SetArgs([]string{workdir, "--json", "-o", outputPath, "--no-store"})

		if err := cmd.Execute(); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		data, err := os.ReadFile(outputPath)
		if err != nil {
			t.Fatalf("failed to read report: %v", err)
		}

		var parsed report.JSONReport
		if err := json.Unmarshal(data, &parsed); err != nil {
			t.Fatalf("report is not valid JSON: %v", err)
		}

		if parsed.Version == "" {
			t.Error("expected a tool version in the report")
		}
		if parsed.Report == nil {
			t.Fatal("expected a report payload")
		}
		if parsed.Report.FlowName != "si_test" {
			t.Errorf("FlowName = %q, expected %q", parsed.Report.FlowName, "si_test")
		}
		if len(parsed.Report.Points) != 2 {
			t.Fatalf("got %d points, expected 2", len(parsed.Report.Points))
		}
		if !parsed.Report.Converged {
			t.Error("expected the sweep to converge")
		}
		if parsed.Report.ConvergedNgkpt != [3]int{2, 2, 2} {
			t.Errorf("ConvergedNgkpt = %v, expected [2 2 2]", parsed.Report.ConvergedNgkpt)
		}
		if parsed.Report.ReferenceTaskID != "w0/t1" {
			t.Errorf("ReferenceTaskID = %q, expected %q", parsed.Report.ReferenceTaskID, "w0/t1")
		}
	})

	t.Run("tolerance override changes the verdict", func(t *testing.T) {
		tmpDir := t.TempDir()
		workdir := buildTestFlow(t, tmpDir)

		writeTaskOutput(t, workdir, "w0/t0", "-8.86620000000000", 2)
		writeTaskOutput(t, workdir, "w0/t1", "-8.86622389600749", 10)
		completeAllTasks(t, workdir)

		outputPath := filepath.Join(tmpDir, "report.json")

		// 0.33 meV/atom sits above a 0.1 meV/atom tolerance
		cmd := NewReportCmd()
		cmd.SetArgs([]string{workdir, "--json", "-o", outputPath, "--no-store", "-t", "0.1"})

		if err := cmd.Execute(); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		data, err := os.ReadFile(outputPath)
		if err != nil {
			t.Fatalf("failed to read report: %v", err)
		}

		var parsed report.JSONReport
		if err := json.Unmarshal(data, &parsed); err != nil {
			t.Fatalf("report is not valid JSON: %v", err)
		}
		if parsed.Report.Converged {
			t.Error("expected the sweep to miss the tightened tolerance")
		}
		if parsed.Report.ToleranceMeVAtom != 0.1 {
			t.Errorf("ToleranceMeVAtom = %g, expected 0.1", parsed.Report.ToleranceMeVAtom)
		}
	})

	t.Run("prints a table even when analysis is impossible", func(t *testing.T) {
		// Note: Not using t.Parallel() because this test captures os.Stdout

		workdir := buildTestFlow(t, t.TempDir())

		// Capture output
		oldStdout := os.Stdout
		r, w, _ := os.Pipe()
		os.Stdout = w

		cmd := NewReportCmd()
		cmd.SetArgs([]string{workdir, "--no-store"})
		execErr := cmd.Execute()

		w.Close()
		os.Stdout = oldStdout

		if execErr != nil {
			t.Fatalf("unexpected error: %v", execErr)
		}

		var buf bytes.Buffer
		_, _ = buf.ReadFrom(r)
		output := buf.String()

		expectedStrings := []string{
			"K-POINT CONVERGENCE REPORT",
			"si_test",
			"SWEEP",
			"w0/t0",
			"w0/t1",
			"VERDICT:",
		}
		for _, expected := range expectedStrings {
			if !strings.Contains(output, expected) {
				t.Errorf("output missing expected string: %q", expected)
			}
		}
	})

	t.Run("writes a markdown report", func(t *testing.T) {
		tmpDir := t.TempDir()
		workdir := buildTestFlow(t, tmpDir)

		writeTaskOutput(t, workdir, "w0/t0", "-8.86620000000000", 2)
		writeTaskOutput(t, workdir, "w0/t1", "-8.86622389600749", 10)
		completeAllTasks(t, workdir)

		outputPath := filepath.Join(tmpDir, "report.md")

		cmd := NewReportCmd()
		cmd.SetArgs([]string{workdir, "--markdown", "-o", outputPath, "--no-store"})

		if err := cmd.Execute(); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		data, err := os.ReadFile(outputPath)
		if err != nil {
			t.Fatalf("failed to read report: %v", err)
		}
		if !strings.Contains(string(data), "#") {
			t.Error("expected markdown headings in the report")
		}
		if !strings.Contains(string(data), "si_test") {
			t.Error("expected the study name in the report")
		}
	})
}
