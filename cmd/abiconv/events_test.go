package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// testLog is a small engine log with one comment and one warning.
const testLog = `  ABINIT 9.6.2

--- !COMMENT
src_file: m_symfind.F90
src_line: 451
message: |
    Found symmetry group Fd-3m.
...

--- !WARNING
src_file: m_scfcv.F90
src_line: 312
message: |
    nstep 6 was not enough SCF cycles to converge.
...

--- !FinalSummary
program: abinit
num_warnings: 1
num_comments: 1
...
`

// TestNewEventsCmd tests the events command creation.
func TestNewEventsCmd(t *testing.T) {
	t.Parallel()

	cmd := NewEventsCmd()

	t.Run("has correct use", func(t *testing.T) {
		t.Parallel()
		if cmd.Use != "events FLOWDIR" {
			t.Errorf("expected use 'events FLOWDIR', got %q", cmd.Use)
		}
	})

	t.Run("has task flag", func(t *testing.T) {
		t.Parallel()
		flag := cmd.Flags().Lookup("task")
		if flag == nil {
			t.Fatal("expected task flag")
		}
		if flag.Shorthand != "t" {
			t.Errorf("expected shorthand 't', got %q", flag.Shorthand)
		}
	})

	t.Run("has severity flag", func(t *testing.T) {
		t.Parallel()
		flag := cmd.Flags().Lookup("severity")
		if flag == nil {
			t.Fatal("expected severity flag")
		}
		if flag.Shorthand != "s" {
			t.Errorf("expected shorthand 's', got %q", flag.Shorthand)
		}
		if flag.DefValue != "comment" {
			t.Errorf("expected default 'comment', got %q", flag.DefValue)
		}
	})
}

// TestRunEventsCmd tests the events command execution.
func TestRunEventsCmd(t *testing.T) {
	t.Run("fails on unknown severity", func(t *testing.T) {
		cmd := NewEventsCmd()
		cmd.SetArgs([]string{t.TempDir(), "-s", "loud"})

		err := cmd.Execute()
		if err == nil {
			t.Fatal("expected error for unknown severity")
		}
		if !strings.Contains(err.Error(), `unknown severity "loud"`) {
			t.Errorf("expected unknown severity error, got %v", err)
		}
	})

	t.Run("fails on a directory that is not a flow", func(t *testing.T) {
		cmd := NewEventsCmd()
		cmd.SetArgs([]string{t.TempDir()})

		err := cmd.Execute()
		if err == nil {
			t.Fatal("expected error for non-flow directory")
		}
		if !strings.Contains(err.Error(), "not a flow directory") {
			t.Errorf("expected 'not a flow directory' error, got %v", err)
		}
	})

	t.Run("fails on unknown task", func(t *testing.T) {
		workdir := buildTestFlow(t, t.TempDir())

		cmd := NewEventsCmd()
		cmd.SetArgs([]string{workdir, "-t", "w9/t9"})

		err := cmd.Execute()
		if err == nil {
			t.Fatal("expected error for unknown task")
		}
		if !strings.Contains(err.Error(), "no task w9/t9") {
			t.Errorf("expected 'no task' error, got %v", err)
		}
	})

	t.Run("reports when no logs exist", func(t *testing.T) {
		// Note: Not using t.Parallel() because this test captures os.Stdout

		workdir := buildTestFlow(t, t.TempDir())

		// Capture output
		oldStdout := os.Stdout
		r, w, _ := os.Pipe()
		os.Stdout = w

		cmd := NewEventsCmd()
		cmd.SetArgs([]string{workdir})
		execErr := cmd.Execute()

		w.Close()
		os.Stdout = oldStdout

		if execErr != nil {
			t.Fatalf("unexpected error: %v", execErr)
		}

		var buf bytes.Buffer
		_, _ = buf.ReadFrom(r)

		if !strings.Contains(buf.String(), "No engine logs found") {
			t.Errorf("expected no-logs message, got %q", buf.String())
		}
	})

	t.Run("prints diagnostics from task logs", func(t *testing.T) {
		// Note: Not using t.Parallel() because this test captures os.Stdout

		workdir := buildTestFlow(t, t.TempDir())
		logPath := filepath.Join(workdir, "w0", "t0", "run.log")
		if err := os.WriteFile(logPath, []byte(testLog), 0600); err != nil {
			t.Fatalf("failed to write test log: %v", err)
		}

		// Capture output
		oldStdout := os.Stdout
		r, w, _ := os.Pipe()
		os.Stdout = w

		cmd := NewEventsCmd()
		cmd.SetArgs([]string{workdir})
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
			"w0/t0 [Ready]:",
			"1 comments, 1 warnings, 0 errors, 0 bugs (completed)",
			"Found symmetry group Fd-3m.",
			"not enough SCF cycles",
		}
		for _, expected := range expectedStrings {
			if !strings.Contains(output, expected) {
				t.Errorf("output missing expected string: %q", expected)
			}
		}
	})

	t.Run("severity filter hides comments", func(t *testing.T) {
		// Note: Not using t.Parallel() because this test captures os.Stdout

		workdir := buildTestFlow(t, t.TempDir())
		logPath := filepath.Join(workdir, "w0", "t0", "run.log")
		if err := os.WriteFile(logPath, []byte(testLog), 0600); err != nil {
			t.Fatalf("failed to write test log: %v", err)
		}

		// Capture output
		oldStdout := os.Stdout
		r, w, _ := os.Pipe()
		os.Stdout = w

		cmd := NewEventsCmd()
		cmd.SetArgs([]string{workdir, "-s", "warning"})
		execErr := cmd.Execute()

		w.Close()
		os.Stdout = oldStdout

		if execErr != nil {
			t.Fatalf("unexpected error: %v", execErr)
		}

		var buf bytes.Buffer
		_, _ = buf.ReadFrom(r)
		output := buf.String()

		if strings.Contains(output, "Found symmetry group") {
			t.Error("expected the comment to be filtered out")
		}
		if !strings.Contains(output, "not enough SCF cycles") {
			t.Error("expected the warning to remain")
		}
	})
}
