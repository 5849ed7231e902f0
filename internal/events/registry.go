package events

import "strings"

// Class describes a known event class: its severity and, where a standard
// remedy exists, a hint the report writers can attach to it.
type Class struct {
	Severity Severity
	Hint     string
}

// classRegistry maps the YAML tags the engine is known to emit to their
// classification. Tags not listed here are classified by ClassifyTag's
// suffix heuristics, so the registry only needs the classes that either
// carry a hint or whose name does not state its own severity.
var classRegistry = map[string]Class{
	// Base classes. These carry the severity in the tag itself.
	"COMMENT": {Severity: SeverityComment},
	"WARNING": {Severity: SeverityWarning},
	"ERROR":   {Severity: SeverityError},
	"BUG":     {Severity: SeverityBug},

	// Convergence warnings. The engine finished the step but the iterative
	// cycle did not reach its tolerance; the scheduler restarts such tasks.
	"ScfConvergenceWarning": {
		Severity: SeverityWarning,
		Hint:     "The self-consistent cycle did not converge. Increase nstep, or review diemac and the mixing parameters.",
	},
	"NscfConvergenceWarning": {
		Severity: SeverityWarning,
		Hint:     "The non-self-consistent cycle did not converge. Increase nstep or loosen tolwfr.",
	},
	"RelaxConvergenceWarning": {
		Severity: SeverityWarning,
		Hint:     "The structural relaxation did not converge within ntime steps. Increase ntime or start from a better geometry.",
	},
	"QPSConvergenceWarning": {
		Severity: SeverityWarning,
		Hint:     "The quasi-particle self-consistent cycle did not converge.",
	},
	"PedanticWarning": {
		Severity: SeverityWarning,
		Hint:     "Usually harmless. Reported only at high verbosity.",
	},

	// Errors with a standard remedy.
	"TolSymError": {
		Severity: SeverityError,
		Hint:     "The structure breaks its own symmetry beyond tolsym. Re-symmetrize the coordinates or raise tolsym.",
	},
	"KpointsError": {
		Severity: SeverityError,
		Hint:     "The k-point mesh is inconsistent with the lattice. Check ngkpt, shiftk and kptopt.",
	},
	"PseudoFormatError": {
		Severity: SeverityError,
		Hint:     "A pseudopotential file could not be read. Check pseudo_dir and the file format.",
	},

	// Internal inconsistencies.
	"AbinitBug": {
		Severity: SeverityBug,
		Hint:     "Internal engine inconsistency. Report it upstream with the input deck attached.",
	},
}

// ClassifyTag resolves a document tag to a severity. Registered tags win;
// for the rest the tag name itself is inspected, mirroring the engine's
// convention of suffixing event classes with their base severity.
func ClassifyTag(tag string) Severity {
	if c, ok := classRegistry[tag]; ok {
		return c.Severity
	}
	switch {
	case strings.Contains(tag, "Bug"):
		return SeverityBug
	case strings.Contains(tag, "Error"):
		return SeverityError
	case strings.Contains(tag, "Warning"):
		return SeverityWarning
	default:
		return SeverityComment
	}
}

// HintFor returns the remediation hint registered for a tag, or "" when the
// tag is unknown or carries no hint.
func HintFor(tag string) string {
	return classRegistry[tag].Hint
}

// KnownTags returns the registered tags. Intended for documentation output;
// the slice is freshly allocated and safe to sort or modify.
func KnownTags() []string {
	tags := make([]string, 0, len(classRegistry))
	for tag := range classRegistry {
		tags = append(tags, tag)
	}
	return tags
}
