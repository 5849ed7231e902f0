package events

import (
	"fmt"
	"strings"
	"time"
)

// Event is one structured document from the engine log.
type Event struct {
	// Tag is the YAML tag of the document without the leading "!",
	// e.g. "WARNING" or "ScfConvergenceWarning".
	Tag string `json:"tag"`

	// Severity is the classification of the event. Known tags are resolved
	// through the class registry; unknown tags fall back on name heuristics.
	Severity Severity `json:"severity"`

	// Message is the human-readable text of the event, trimmed of the
	// trailing newline the engine's block scalars carry.
	Message string `json:"message"`

	// SrcFile is the engine source file that reported the event, when given.
	SrcFile string `json:"src_file,omitempty"`

	// SrcLine is the line in SrcFile, when given.
	SrcLine int `json:"src_line,omitempty"`
}

// String renders the event the way the engine's own summary does:
// the severity label, the message, and the source location when known.
func (e Event) String() string {
	var sb strings.Builder
	sb.WriteString(e.Severity.String())
	if e.Tag != "" && e.Tag != e.Severity.String() {
		fmt.Fprintf(&sb, " (%s)", e.Tag)
	}
	sb.WriteString(": ")
	sb.WriteString(e.Message)
	if e.SrcFile != "" {
		fmt.Fprintf(&sb, " [%s:%d]", e.SrcFile, e.SrcLine)
	}
	return sb.String()
}

// Hint returns the remediation hint registered for the event's class,
// or an empty string when none is known.
func (e Event) Hint() string {
	return HintFor(e.Tag)
}

// Report aggregates the events of one engine run together with the
// run-completion facts derived from the same streams.
type Report struct {
	// Events holds every parsed event in log order.
	Events []Event `json:"events"`

	// Completed is true when the run reached its normal completion marker,
	// either the final-summary document or the plain completion line in the
	// main output.
	Completed bool `json:"completed"`

	// OverallWallTime is the engine-reported wall time of the whole run,
	// zero when the final summary did not carry one.
	OverallWallTime time.Duration `json:"overall_wall_time,omitempty"`

	// OverallCPUTime is the engine-reported CPU time of the whole run.
	OverallCPUTime time.Duration `json:"overall_cpu_time,omitempty"`
}

// filter returns the events matching the given severity, in log order.
func (r *Report) filter(s Severity) []Event {
	var out []Event
	for _, ev := range r.Events {
		if ev.Severity == s {
			out = append(out, ev)
		}
	}
	return out
}

// Comments returns the informational events in log order.
func (r *Report) Comments() []Event { return r.filter(SeverityComment) }

// Warnings returns the warning events in log order.
func (r *Report) Warnings() []Event { return r.filter(SeverityWarning) }

// Errors returns the error events in log order.
func (r *Report) Errors() []Event { return r.filter(SeverityError) }

// Bugs returns the bug events in log order.
func (r *Report) Bugs() []Event { return r.filter(SeverityBug) }

// NumComments returns the number of comment events.
func (r *Report) NumComments() int { return len(r.Comments()) }

// NumWarnings returns the number of warning events.
func (r *Report) NumWarnings() int { return len(r.Warnings()) }

// NumErrors returns the number of error events.
func (r *Report) NumErrors() int { return len(r.Errors()) }

// NumBugs returns the number of bug events.
func (r *Report) NumBugs() int { return len(r.Bugs()) }

// HasFatalEvents reports whether any error or bug event was recorded.
func (r *Report) HasFatalEvents() bool {
	for _, ev := range r.Events {
		if ev.Severity.IsFatal() {
			return true
		}
	}
	return false
}

// RunCompleted reports whether the run finished normally: the completion
// marker was seen and no fatal event occurred. The engine halts on the first
// error, so a fatal event and a completion marker are mutually exclusive in
// practice; checking both guards against truncated logs.
func (r *Report) RunCompleted() bool {
	return r.Completed && !r.HasFatalEvents()
}

// CountsBySeverity returns the number of events per severity.
func (r *Report) CountsBySeverity() map[Severity]int {
	counts := make(map[Severity]int, 4)
	for _, ev := range r.Events {
		counts[ev.Severity]++
	}
	return counts
}

// String summarizes the report in the one-line form used by status output,
// e.g. "3 comments, 1 warning, 0 errors (completed)".
func (r *Report) String() string {
	state := "not completed"
	if r.RunCompleted() {
		state = "completed"
	}
	return fmt.Sprintf("%d comments, %d warnings, %d errors, %d bugs (%s)",
		r.NumComments(), r.NumWarnings(), r.NumErrors(), r.NumBugs(), state)
}
