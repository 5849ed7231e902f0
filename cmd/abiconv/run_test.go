package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/Olivier7017/abiconv/internal/config"
	"github.com/Olivier7017/abiconv/internal/flow"
)

// TestNewRunCmd tests the run command creation.
func TestNewRunCmd(t *testing.T) {
	t.Parallel()

	cmd := NewRunCmd()

	t.Run("has correct use", func(t *testing.T) {
		t.Parallel()
		if cmd.Use != "run FLOWDIR" {
			t.Errorf("expected use 'run FLOWDIR', got %q", cmd.Use)
		}
	})

	t.Run("has scheduling flags", func(t *testing.T) {
		t.Parallel()

		tests := []struct {
			name     string
			defValue string
		}{
			{"once", "false"},
			{"max-jobs", "0"},
			{"interval", "0s"},
			{"dry-run", "false"},
			{"no-store", "false"},
			{"log-json", "false"},
		}

		for _, tt := range tests {
			flag := cmd.Flags().Lookup(tt.name)
			if flag == nil {
				t.Errorf("expected %s flag", tt.name)
				continue
			}
			if flag.DefValue != tt.defValue {
				t.Errorf("%s: expected default %q, got %q", tt.name, tt.defValue, flag.DefValue)
			}
		}
	})

	t.Run("has manager flag", func(t *testing.T) {
		t.Parallel()
		flag := cmd.Flags().Lookup("manager")
		if flag == nil {
			t.Fatal("expected manager flag")
		}
		if flag.Shorthand != "m" {
			t.Errorf("expected shorthand 'm', got %q", flag.Shorthand)
		}
	})

	t.Run("has scheduler flag", func(t *testing.T) {
		t.Parallel()
		flag := cmd.Flags().Lookup("scheduler")
		if flag == nil {
			t.Fatal("expected scheduler flag")
		}
		if flag.Shorthand != "s" {
			t.Errorf("expected shorthand 's', got %q", flag.Shorthand)
		}
	})

	t.Run("requires exactly one argument", func(t *testing.T) {
		t.Parallel()
		cmd := NewRunCmd()
		cmd.SetArgs([]string{})
		if err := cmd.Execute(); err == nil {
			t.Error("expected error for missing argument")
		}
	})
}

// TestResolveConfigs tests configuration resolution and overrides.
func TestResolveConfigs(t *testing.T) {
	t.Parallel()

	t.Run("flag overrides win over file values", func(t *testing.T) {
		t.Parallel()

		flowDir := t.TempDir()
		managerPath := filepath.Join(flowDir, config.ManagerFile)
		if err := os.WriteFile(managerPath, []byte("max_jobs: 7\n"), 0600); err != nil {
			t.Fatalf("failed to write manager.yml: %v", err)
		}
		schedulerPath := filepath.Join(flowDir, config.SchedulerFile)
		if err := os.WriteFile(schedulerPath, []byte("interval: 1m\n"), 0600); err != nil {
			t.Fatalf("failed to write scheduler.yml: %v", err)
		}

		manager, schedCfg, err := resolveConfigs(managerPath, schedulerPath, flowDir, 2, 30*time.Second)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if manager.MaxJobs != 2 {
			t.Errorf("MaxJobs = %d, expected 2", manager.MaxJobs)
		}
		if schedCfg.Interval != config.Duration(30*time.Second) {
			t.Errorf("Interval = %v, expected 30s", schedCfg.Interval)
		}

		// Keys the file omits keep their defaults
		if manager.Binary != config.DefaultBinary {
			t.Errorf("Binary = %q, expected %q", manager.Binary, config.DefaultBinary)
		}
	})

	t.Run("zero overrides keep file values", func(t *testing.T) {
		t.Parallel()

		flowDir := t.TempDir()
		managerPath := filepath.Join(flowDir, config.ManagerFile)
		if err := os.WriteFile(managerPath, []byte("max_jobs: 7\n"), 0600); err != nil {
			t.Fatalf("failed to write manager.yml: %v", err)
		}
		schedulerPath := filepath.Join(flowDir, config.SchedulerFile)
		if err := os.WriteFile(schedulerPath, []byte("interval: 1m\n"), 0600); err != nil {
			t.Fatalf("failed to write scheduler.yml: %v", err)
		}

		manager, schedCfg, err := resolveConfigs(managerPath, schedulerPath, flowDir, 0, 0)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if manager.MaxJobs != 7 {
			t.Errorf("MaxJobs = %d, expected 7", manager.MaxJobs)
		}
		if schedCfg.Interval != config.Duration(time.Minute) {
			t.Errorf("Interval = %v, expected 1m", schedCfg.Interval)
		}
	})

	t.Run("rejects an invalid manager file", func(t *testing.T) {
		t.Parallel()

		flowDir := t.TempDir()
		managerPath := filepath.Join(flowDir, config.ManagerFile)
		if err := os.WriteFile(managerPath, []byte("adapter: carrier-pigeon\n"), 0600); err != nil {
			t.Fatalf("failed to write manager.yml: %v", err)
		}

		if _, _, err := resolveConfigs(managerPath, "", flowDir, 0, 0); err == nil {
			t.Error("expected error for invalid adapter")
		}
	})

	t.Run("fails on missing explicit path", func(t *testing.T) {
		t.Parallel()

		flowDir := t.TempDir()
		missing := filepath.Join(flowDir, "gone.yml")

		if _, _, err := resolveConfigs(missing, "", flowDir, 0, 0); err == nil {
			t.Error("expected error for missing explicit config")
		}
	})
}

// TestRunRunCmd tests the run command execution.
func TestRunRunCmd(t *testing.T) {
	t.Run("fails on a directory that is not a flow", func(t *testing.T) {
		cmd := NewRunCmd()
		cmd.SetArgs([]string{t.TempDir(), "--dry-run"})

		err := cmd.Execute()
		if err == nil {
			t.Fatal("expected error for non-flow directory")
		}
		if !strings.Contains(err.Error(), "not a flow directory") {
			t.Errorf("expected 'not a flow directory' error, got %v", err)
		}
	})

	t.Run("dry run lists planned launches without touching the manifest", func(t *testing.T) {
		// Note: Not using t.Parallel() because this test captures os.Stdout

		tmpDir := t.TempDir()
		workdir := buildTestFlow(t, tmpDir)

		// Pin the configuration so the XDG fallback never applies
		if err := config.WriteDefault(workdir); err != nil {
			t.Fatalf("failed to write config: %v", err)
		}

		before, err := os.ReadFile(filepath.Join(workdir, flow.ManifestFile))
		if err != nil {
			t.Fatalf("failed to read manifest: %v", err)
		}

		// Capture output
		oldStdout := os.Stdout
		r, w, _ := os.Pipe()
		os.Stdout = w

		cmd := NewRunCmd()
		cmd.SetArgs([]string{workdir, "--dry-run"})
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
			"would launch",
			"w0/t0",
			"w0/t1",
			"ngkpt 2 2 2",
			"ngkpt 4 4 4",
		}
		for _, expected := range expectedStrings {
			if !strings.Contains(output, expected) {
				t.Errorf("output missing expected string: %q", expected)
			}
		}

		after, err := os.ReadFile(filepath.Join(workdir, flow.ManifestFile))
		if err != nil {
			t.Fatalf("failed to read manifest: %v", err)
		}
		if !bytes.Equal(before, after) {
			t.Error("dry run modified the manifest")
		}
	})

	t.Run("dry run respects the launch budget", func(t *testing.T) {
		// Note: Not using t.Parallel() because this test captures os.Stdout

		tmpDir := t.TempDir()
		workdir := buildTestFlow(t, tmpDir)

		// One launch per cycle: the second task must wait
		managerPath := filepath.Join(workdir, config.ManagerFile)
		if err := os.WriteFile(managerPath, []byte("max_jobs: 1\n"), 0600); err != nil {
			t.Fatalf("failed to write manager.yml: %v", err)
		}
		schedulerPath := filepath.Join(workdir, config.SchedulerFile)
		if err := os.WriteFile(schedulerPath, []byte("interval: 1s\n"), 0600); err != nil {
			t.Fatalf("failed to write scheduler.yml: %v", err)
		}

		// Capture output
		oldStdout := os.Stdout
		r, w, _ := os.Pipe()
		os.Stdout = w

		cmd := NewRunCmd()
		cmd.SetArgs([]string{workdir, "--dry-run"})
		execErr := cmd.Execute()

		w.Close()
		os.Stdout = oldStdout

		if execErr != nil {
			t.Fatalf("unexpected error: %v", execErr)
		}

		var buf bytes.Buffer
		_, _ = buf.ReadFrom(r)
		output := buf.String()

		if !strings.Contains(output, "would launch") {
			t.Error("expected one task to launch")
		}
		if !strings.Contains(output, "would wait") {
			t.Error("expected the over-budget task to wait")
		}
	})
}
