package log

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"
	"time"
)

// TestConsoleHandlerRendersLine tests the compact line layout.
func TestConsoleHandlerRendersLine(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	logger := slog.New(NewConsoleHandler(&buf, &Options{Level: slog.LevelDebug}))

	logger.Info("task submitted", "task", "w0/t3", "job_id", 42)

	got := buf.String()
	expected := "INFO  task submitted task=w0/t3 job_id=42\n"
	if !strings.HasSuffix(got, expected) {
		t.Errorf("got %q, expected suffix %q", got, expected)
	}
}

// TestConsoleHandlerQuotesValues tests that values with spaces are quoted
// so lines stay splittable.
func TestConsoleHandlerQuotesValues(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	logger := slog.New(NewConsoleHandler(&buf, nil))

	logger.Warn("submission failed", "error", "exit status 1")

	got := buf.String()
	expected := `WARN  submission failed error="exit status 1"` + "\n"
	if !strings.HasSuffix(got, expected) {
		t.Errorf("got %q, expected suffix %q", got, expected)
	}
}

// TestConsoleHandlerLevelFilter tests that the default level hides debug
// and info records.
func TestConsoleHandlerLevelFilter(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name     string
		log      func(*slog.Logger)
		expected bool
	}{
		{"debug suppressed", func(l *slog.Logger) { l.Debug("x") }, false},
		{"info suppressed", func(l *slog.Logger) { l.Info("x") }, false},
		{"warn written", func(l *slog.Logger) { l.Warn("x") }, true},
		{"error written", func(l *slog.Logger) { l.Error("x") }, true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			var buf bytes.Buffer
			tc.log(slog.New(NewConsoleHandler(&buf, nil)))

			if got := buf.Len() > 0; got != tc.expected {
				t.Errorf("got output %q, expected written=%v", buf.String(), tc.expected)
			}
		})
	}
}

// TestConsoleHandlerGroups tests WithAttrs inheritance and dotted group
// prefixes.
func TestConsoleHandlerGroups(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	base := slog.New(NewConsoleHandler(&buf, &Options{Level: slog.LevelDebug}))
	logger := base.With("flow", "si_conv").WithGroup("queue")

	logger.Info("job polled", "id", 7)

	got := buf.String()
	expected := "INFO  job polled flow=si_conv queue.id=7\n"
	if !strings.HasSuffix(got, expected) {
		t.Errorf("got %q, expected suffix %q", got, expected)
	}

	buf.Reset()
	base.Info("inline group", slog.Group("", slog.String("a", "b")))
	if !strings.HasSuffix(buf.String(), "inline group a=b\n") {
		t.Errorf("got %q, expected inlined empty group", buf.String())
	}
}

// TestConsoleHandlerZeroTime tests that records without a timestamp skip
// the time column.
func TestConsoleHandlerZeroTime(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	h := NewConsoleHandler(&buf, &Options{Level: slog.LevelDebug})

	r := slog.NewRecord(time.Time{}, slog.LevelWarn, "engine stopped", 0)
	if err := h.Handle(context.Background(), r); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if got := buf.String(); got != "WARN  engine stopped\n" {
		t.Errorf("got %q, expected %q", got, "WARN  engine stopped\n")
	}
}

// TestConsoleHandlerColor tests that styling keeps the line content intact.
func TestConsoleHandlerColor(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	logger := slog.New(NewConsoleHandler(&buf, &Options{Level: slog.LevelDebug, Color: true}))

	logger.Warn("queue down", "task", "w0/t1")

	got := buf.String()
	for _, want := range []string{"WARN", "queue down", "w0/t1"} {
		if !strings.Contains(got, want) {
			t.Errorf("got %q, expected it to contain %q", got, want)
		}
	}
}

// TestNewConsoleLoggerVerbose tests the verbose level toggle.
func TestNewConsoleLoggerVerbose(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name     string
		verbose  bool
		expected bool
	}{
		{"quiet hides debug", false, false},
		{"verbose shows debug", true, true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			var buf bytes.Buffer
			NewConsoleLogger(&buf, tc.verbose, false).Debug("probe")

			if got := buf.Len() > 0; got != tc.expected {
				t.Errorf("got output %q, expected written=%v", buf.String(), tc.expected)
			}
		})
	}
}

// TestNewJSONLogger tests the JSON flavor used for collected output.
func TestNewJSONLogger(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	logger := NewJSONLogger(&buf, false)

	logger.Debug("hidden")
	if buf.Len() != 0 {
		t.Fatalf("got %q, expected no debug output", buf.String())
	}

	logger.Warn("queue down", "task", "w0/t2")

	var m map[string]any
	if err := json.Unmarshal(buf.Bytes(), &m); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if m["msg"] != "queue down" {
		t.Errorf("got msg %q, expected %q", m["msg"], "queue down")
	}
	if m["level"] != "WARN" {
		t.Errorf("got level %q, expected %q", m["level"], "WARN")
	}
	if m["task"] != "w0/t2" {
		t.Errorf("got task %q, expected %q", m["task"], "w0/t2")
	}
}
