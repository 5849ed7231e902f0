package events

import "strings"

// Severity classifies an engine log event by how it affects the run.
//
// The ordering is meaningful: higher values are more serious. Comment and
// Warning runs continue; an Error halts the engine at the point it is
// reported; a Bug indicates an internal inconsistency in the engine and is
// treated at least as seriously as an error.
type Severity int

const (
	// SeverityComment is an informational message with no effect on the run.
	// Examples: symmetry detection notes, default-value announcements.
	SeverityComment Severity = iota

	// SeverityWarning flags a condition the user should review. The run
	// continues. Examples: SCF cycle count exhausted, accuracy degraded.
	SeverityWarning

	// SeverityError is a fatal condition. The engine stops at the point the
	// error is reported and the task must be considered failed.
	SeverityError

	// SeverityBug marks an internal inconsistency of the engine itself.
	// Like an error it terminates the run, but it should be reported
	// upstream rather than fixed in the input deck.
	SeverityBug
)

// String returns the upper-case label the engine itself uses for the severity.
func (s Severity) String() string {
	switch s {
	case SeverityComment:
		return "COMMENT"
	case SeverityWarning:
		return "WARNING"
	case SeverityError:
		return "ERROR"
	case SeverityBug:
		return "BUG"
	default:
		return "UNKNOWN"
	}
}

// ParseSeverity converts a label such as "warning" or "ERROR" into a
// Severity. The second return value reports whether the label was recognized.
func ParseSeverity(label string) (Severity, bool) {
	switch {
	case strings.EqualFold(label, "comment"):
		return SeverityComment, true
	case strings.EqualFold(label, "warning"):
		return SeverityWarning, true
	case strings.EqualFold(label, "error"):
		return SeverityError, true
	case strings.EqualFold(label, "bug"):
		return SeverityBug, true
	default:
		return SeverityComment, false
	}
}

// IsFatal reports whether events of this severity terminate the run.
func (s Severity) IsFatal() bool {
	return s == SeverityError || s == SeverityBug
}
