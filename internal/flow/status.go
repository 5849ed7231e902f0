package flow

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"
	"gopkg.in/yaml.v3"
)

// Status is the lifecycle state of a task.
type Status int

const (
	// StatusInit is a task whose dependencies are not satisfied yet.
	StatusInit Status = iota
	// StatusReady is a task that can be submitted.
	StatusReady
	// StatusSubmitted is a task handed to the queue but not observed
	// running yet.
	StatusSubmitted
	// StatusRunning is a task the queue reports as executing.
	StatusRunning
	// StatusDone is a task whose job finished and awaits analysis.
	StatusDone
	// StatusUnconverged is an analyzed task that needs a restart.
	StatusUnconverged
	// StatusError is a task that failed; terminal.
	StatusError
	// StatusCompleted is an analyzed, successful task; terminal.
	StatusCompleted
)

// String returns the manifest spelling of the status.
func (s Status) String() string {
	switch s {
	case StatusInit:
		return "Init"
	case StatusReady:
		return "Ready"
	case StatusSubmitted:
		return "Submitted"
	case StatusRunning:
		return "Running"
	case StatusDone:
		return "Done"
	case StatusUnconverged:
		return "Unconverged"
	case StatusError:
		return "Error"
	case StatusCompleted:
		return "Completed"
	default:
		return "Unknown"
	}
}

// ParseStatus converts a manifest spelling back into a Status.
func ParseStatus(s string) (Status, error) {
	for st := StatusInit; st <= StatusCompleted; st++ {
		if st.String() == s {
			return st, nil
		}
	}
	return StatusInit, fmt.Errorf("unknown status %q", s)
}

// IsTerminal reports whether the task will never change state again.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusError
}

// Color returns the ANSI color used by the status table and the watch UI.
func (s Status) Color() lipgloss.Color {
	switch s {
	case StatusReady:
		return lipgloss.Color("6") // cyan
	case StatusSubmitted:
		return lipgloss.Color("4") // blue
	case StatusRunning:
		return lipgloss.Color("3") // yellow
	case StatusDone:
		return lipgloss.Color("12") // bright blue
	case StatusUnconverged:
		return lipgloss.Color("5") // magenta
	case StatusError:
		return lipgloss.Color("1") // red
	case StatusCompleted:
		return lipgloss.Color("2") // green
	default:
		return lipgloss.Color("8") // gray
	}
}

// MarshalYAML writes the status as its string spelling so flow.yml stays
// readable and diffable.
func (s Status) MarshalYAML() (any, error) {
	return s.String(), nil
}

// UnmarshalYAML reads the string spelling.
func (s *Status) UnmarshalYAML(value *yaml.Node) error {
	var raw string
	if err := value.Decode(&raw); err != nil {
		return err
	}
	parsed, err := ParseStatus(raw)
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// validTransitions is the status machine. Submitted may jump straight to
// Done: a short job can finish between two scheduler polls, so the running
// state is never observed. Unconverged goes to Ready on restart and to
// Error once the restart budget is spent.
var validTransitions = map[Status][]Status{
	StatusInit:        {StatusReady},
	StatusReady:       {StatusSubmitted},
	StatusSubmitted:   {StatusRunning, StatusDone, StatusError},
	StatusRunning:     {StatusDone, StatusError},
	StatusDone:        {StatusCompleted, StatusUnconverged, StatusError},
	StatusUnconverged: {StatusReady, StatusError},
}

// CanTransition reports whether the status machine permits from → to.
func CanTransition(from, to Status) bool {
	for _, next := range validTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}
