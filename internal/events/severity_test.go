package events

import "testing"

// TestSeverityString tests the String method of Severity.
func TestSeverityString(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		severity Severity
		expected string
	}{
		{SeverityComment, "COMMENT"},
		{SeverityWarning, "WARNING"},
		{SeverityError, "ERROR"},
		{SeverityBug, "BUG"},
		{Severity(999), "UNKNOWN"},
	}

	for _, tc := range testCases {
		t.Run(tc.expected, func(t *testing.T) {
			t.Parallel()
			if got := tc.severity.String(); got != tc.expected {
				t.Errorf("got %q, expected %q", got, tc.expected)
			}
		})
	}
}

// TestParseSeverity tests label parsing in both cases.
func TestParseSeverity(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		label    string
		expected Severity
		ok       bool
	}{
		{"comment", SeverityComment, true},
		{"COMMENT", SeverityComment, true},
		{"Warning", SeverityWarning, true},
		{"error", SeverityError, true},
		{"BUG", SeverityBug, true},
		{"fatal", SeverityComment, false},
		{"", SeverityComment, false},
	}

	for _, tc := range testCases {
		t.Run(tc.label, func(t *testing.T) {
			t.Parallel()
			got, ok := ParseSeverity(tc.label)
			if ok != tc.ok {
				t.Fatalf("ParseSeverity(%q) ok = %v, expected %v", tc.label, ok, tc.ok)
			}
			if ok && got != tc.expected {
				t.Errorf("ParseSeverity(%q) = %v, expected %v", tc.label, got, tc.expected)
			}
		})
	}
}

// TestSeverityOrdering tests that severities escalate in declaration order.
func TestSeverityOrdering(t *testing.T) {
	t.Parallel()

	if SeverityComment >= SeverityWarning {
		t.Error("expected SeverityComment < SeverityWarning")
	}
	if SeverityWarning >= SeverityError {
		t.Error("expected SeverityWarning < SeverityError")
	}
	if SeverityError >= SeverityBug {
		t.Error("expected SeverityError < SeverityBug")
	}
}

// TestSeverityIsFatal tests the fatality classification.
func TestSeverityIsFatal(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		severity Severity
		fatal    bool
	}{
		{SeverityComment, false},
		{SeverityWarning, false},
		{SeverityError, true},
		{SeverityBug, true},
	}

	for _, tc := range testCases {
		t.Run(tc.severity.String(), func(t *testing.T) {
			t.Parallel()
			if got := tc.severity.IsFatal(); got != tc.fatal {
				t.Errorf("IsFatal() = %v, expected %v", got, tc.fatal)
			}
		})
	}
}

// TestClassifyTag tests registry lookups and the suffix heuristics.
func TestClassifyTag(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		tag      string
		expected Severity
	}{
		// Registered classes
		{"COMMENT", SeverityComment},
		{"WARNING", SeverityWarning},
		{"ERROR", SeverityError},
		{"BUG", SeverityBug},
		{"ScfConvergenceWarning", SeverityWarning},
		{"TolSymError", SeverityError},
		{"AbinitBug", SeverityBug},

		// Unregistered tags resolved by name
		{"HaydockConvergenceWarning", SeverityWarning},
		{"ChiEvalError", SeverityError},
		{"StrangeNewBug", SeverityBug},
		{"SymmetryNote", SeverityComment},
	}

	for _, tc := range testCases {
		t.Run(tc.tag, func(t *testing.T) {
			t.Parallel()
			if got := ClassifyTag(tc.tag); got != tc.expected {
				t.Errorf("ClassifyTag(%q) = %v, expected %v", tc.tag, got, tc.expected)
			}
		})
	}
}

// TestHintFor tests that known classes carry hints and unknown ones do not.
func TestHintFor(t *testing.T) {
	t.Parallel()

	if hint := HintFor("ScfConvergenceWarning"); hint == "" {
		t.Error("expected a hint for ScfConvergenceWarning")
	}
	if hint := HintFor("WARNING"); hint != "" {
		t.Errorf("expected no hint for the bare WARNING class, got %q", hint)
	}
	if hint := HintFor("NoSuchTag"); hint != "" {
		t.Errorf("expected no hint for an unknown tag, got %q", hint)
	}
}
