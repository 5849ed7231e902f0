package events

import (
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// sampleLog mimics a real engine log: iteration noise interleaved with event
// documents and a final summary.
const sampleLog = `  ABINIT 9.6.2
  Give name for formatted input file:
run.abi

--- !COMMENT
src_file: m_symfind.F90
src_line: 451
message: |
    Found symmetry group Fd-3m.
...

 iter   Etot(hartree)      deltaE(h)  residm     vres2
 ETOT  1  -8.8597346702033    -8.860E+00 3.243E-03 8.580E+00

--- !WARNING
src_file: m_scfcv.F90
src_line: 312
message: |
    nstep 6 was not enough SCF cycles to converge.
...

--- !ScfConvergenceWarning
src_file: m_scfcv.F90
src_line: 320
message: |
    Fermi energy moved between the last cycles.
...

--- !FinalSummary
program: abinit
version: 9.6.2
start_datetime: Mon Apr  4 17:10:01 2022
end_datetime: Mon Apr  4 17:10:22 2022
overall_cpu_time:          21.1
overall_wall_time:         21.4
mpi_procs: 1
omp_threads: 1
num_warnings: 2
num_comments: 1
...
`

// TestParseLogEvents tests parsing of a realistic log with mixed noise.
func TestParseLogEvents(t *testing.T) {
	t.Parallel()

	report, err := ParseLog(strings.NewReader(sampleLog))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if got := len(report.Events); got != 3 {
		t.Fatalf("expected 3 events, got %d", got)
	}
	if report.NumComments() != 1 {
		t.Errorf("expected 1 comment, got %d", report.NumComments())
	}
	if report.NumWarnings() != 2 {
		t.Errorf("expected 2 warnings, got %d", report.NumWarnings())
	}
	if report.NumErrors() != 0 {
		t.Errorf("expected 0 errors, got %d", report.NumErrors())
	}

	first := report.Events[0]
	if first.Tag != "COMMENT" {
		t.Errorf("first event tag = %q, expected COMMENT", first.Tag)
	}
	if first.Message != "Found symmetry group Fd-3m." {
		t.Errorf("first event message = %q", first.Message)
	}
	if first.SrcFile != "m_symfind.F90" || first.SrcLine != 451 {
		t.Errorf("first event source = %s:%d", first.SrcFile, first.SrcLine)
	}

	if !report.Completed {
		t.Error("expected report to be completed via FinalSummary")
	}
	if !report.RunCompleted() {
		t.Error("expected RunCompleted to be true")
	}
	if report.OverallCPUTime != time.Duration(21.1*float64(time.Second)) {
		t.Errorf("overall cpu time = %v", report.OverallCPUTime)
	}
	if report.OverallWallTime != time.Duration(21.4*float64(time.Second)) {
		t.Errorf("overall wall time = %v", report.OverallWallTime)
	}
}

// TestParseLogError tests that an error document marks the run failed even
// when a completion marker never appears.
func TestParseLogError(t *testing.T) {
	t.Parallel()

	log := `--- !ERROR
src_file: m_drivexc.F90
src_line: 780
message: |
    Input ixc 999 is not implemented.
...
`
	report, err := ParseLog(strings.NewReader(log))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if report.NumErrors() != 1 {
		t.Fatalf("expected 1 error event, got %d", report.NumErrors())
	}
	if !report.HasFatalEvents() {
		t.Error("expected fatal events")
	}
	if report.RunCompleted() {
		t.Error("expected RunCompleted to be false")
	}
}

// TestParseLogCompletionMarker tests the plain-text completion line used by
// engine versions that do not write a FinalSummary document.
func TestParseLogCompletionMarker(t *testing.T) {
	t.Parallel()

	log := "some output\n Calculation completed.\n"
	report, err := ParseLog(strings.NewReader(log))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !report.Completed {
		t.Error("expected completion marker to be recognized")
	}
	if len(report.Events) != 0 {
		t.Errorf("expected no events, got %d", len(report.Events))
	}
}

// TestParseLogTruncated tests a document cut off by a killed run.
func TestParseLogTruncated(t *testing.T) {
	t.Parallel()

	log := `--- !WARNING
src_file: m_scfcv.F90
src_line: 312
message: |
    The run was killed right he`
	report, err := ParseLog(strings.NewReader(log))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(report.Events) != 1 {
		t.Fatalf("expected 1 truncated event, got %d", len(report.Events))
	}
	if report.Completed {
		t.Error("truncated log must not be completed")
	}
	if !strings.Contains(report.Events[0].Message, "killed right he") {
		t.Errorf("expected partial message to survive, got %q", report.Events[0].Message)
	}
}

// TestParseLogOversizedDocument tests that a document blowing past the
// line cap degrades to one event without swallowing the rest of the log.
func TestParseLogOversizedDocument(t *testing.T) {
	t.Parallel()

	var sb strings.Builder
	sb.WriteString("--- !ERROR\nmessage: |\n")
	for i := 0; i < 2*maxDocLines; i++ {
		sb.WriteString("    filler line that never ends\n")
	}
	sb.WriteString("...\n\n")
	sb.WriteString("--- !ScfConvergenceWarning\nmessage: |\n    Still parsed.\n...\n")
	sb.WriteString("\n Calculation completed.\n")

	report, err := ParseLog(strings.NewReader(sb.String()))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(report.Events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(report.Events))
	}
	if report.Events[0].Severity != SeverityError {
		t.Errorf("expected capped event to keep its tag severity, got %v", report.Events[0].Severity)
	}
	if report.Events[1].Tag != "ScfConvergenceWarning" {
		t.Errorf("expected the document after the capped one, got %q", report.Events[1].Tag)
	}
	if report.Events[1].Message != "Still parsed." {
		t.Errorf("expected second event to parse normally, got %q", report.Events[1].Message)
	}
	if !report.Completed {
		t.Error("expected completion marker after the capped document")
	}
}

// TestParseLogMalformedBody tests that broken YAML degrades to a raw event
// instead of aborting the parse.
func TestParseLogMalformedBody(t *testing.T) {
	t.Parallel()

	log := `--- !WARNING
	tabs are not valid yaml indentation
...

--- !COMMENT
message: |
    Still parsed.
...
`
	report, err := ParseLog(strings.NewReader(log))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(report.Events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(report.Events))
	}
	if report.Events[0].Severity != SeverityWarning {
		t.Errorf("expected malformed event to keep its tag severity, got %v", report.Events[0].Severity)
	}
	if !strings.Contains(report.Events[0].Message, "tabs are not valid") {
		t.Errorf("expected raw body as message, got %q", report.Events[0].Message)
	}
	if report.Events[1].Message != "Still parsed." {
		t.Errorf("expected second event to parse normally, got %q", report.Events[1].Message)
	}
}

// TestParseLogFileMissing tests the missing-file sentinel.
func TestParseLogFileMissing(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "run.log")
	report, err := ParseLogFile(path)
	if !errors.Is(err, ErrNoLogFile) {
		t.Fatalf("expected ErrNoLogFile, got %v", err)
	}
	if report == nil || len(report.Events) != 0 {
		t.Error("expected an empty report alongside ErrNoLogFile")
	}
}

// TestReportString tests the one-line summary form.
func TestReportString(t *testing.T) {
	t.Parallel()

	report := &Report{
		Events: []Event{
			{Tag: "COMMENT", Severity: SeverityComment},
			{Tag: "WARNING", Severity: SeverityWarning},
		},
		Completed: true,
	}
	got := report.String()
	want := "1 comments, 1 warnings, 0 errors, 0 bugs (completed)"
	if got != want {
		t.Errorf("String() = %q, expected %q", got, want)
	}
}

// TestEventString tests the rendered event line.
func TestEventString(t *testing.T) {
	t.Parallel()

	ev := Event{
		Tag:      "ScfConvergenceWarning",
		Severity: SeverityWarning,
		Message:  "not converged",
		SrcFile:  "m_scfcv.F90",
		SrcLine:  312,
	}
	got := ev.String()
	want := "WARNING (ScfConvergenceWarning): not converged [m_scfcv.F90:312]"
	if got != want {
		t.Errorf("String() = %q, expected %q", got, want)
	}
}
