package flow

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/Olivier7017/abiconv/internal/input"
)

// Well-known file names inside a task directory.
const (
	DeckFile   = "run.abi"
	OutputFile = "run.abo"
	LogFile    = "run.log"
	ErrFile    = "run.err"
	ScriptFile = "job.sh"
)

// dataDirs are created alongside the deck in every task directory.
var dataDirs = []string{"indata", "outdata", "tmpdata"}

// Task is one engine run: a deck, its k-mesh and its lifecycle state.
type Task struct {
	// ID is the node ID, of the form w<i>/t<j>.
	ID string `yaml:"id"`

	// Dir is the task directory. Open rebases it on the flow workdir, so
	// the manifest survives moving the tree.
	Dir string `yaml:"dir"`

	// Ngkpt is the k-mesh this task samples.
	Ngkpt [3]int `yaml:"ngkpt,flow"`

	// Status is the lifecycle state.
	Status Status `yaml:"status"`

	// Restarts counts how many times the task has been resubmitted.
	Restarts int `yaml:"restarts"`

	// DepIDs lists node IDs that must complete before this task leaves
	// Init. Empty for k-sweep tasks.
	DepIDs []string `yaml:"deps,omitempty"`

	// JobID is the queue identifier of the last submission.
	JobID string `yaml:"job_id,omitempty"`

	SubmittedAt *time.Time `yaml:"submitted_at,omitempty"`
	StartedAt   *time.Time `yaml:"started_at,omitempty"`
	FinishedAt  *time.Time `yaml:"finished_at,omitempty"`

	// Input is the deck. Populated by Build; nil after Open, where the
	// deck already sits on disk as run.abi.
	Input *input.Input `yaml:"-"`
}

// InputPath returns the deck path.
func (t *Task) InputPath() string { return filepath.Join(t.Dir, DeckFile) }

// OutputPath returns the main-output path.
func (t *Task) OutputPath() string { return filepath.Join(t.Dir, OutputFile) }

// LogPath returns the log-stream path.
func (t *Task) LogPath() string { return filepath.Join(t.Dir, LogFile) }

// ErrPath returns the error-stream path.
func (t *Task) ErrPath() string { return filepath.Join(t.Dir, ErrFile) }

// ScriptPath returns the submission-script path.
func (t *Task) ScriptPath() string { return filepath.Join(t.Dir, ScriptFile) }

// Transition moves the task to the given status, stamping the lifecycle
// timestamps. Moves the status machine does not permit are rejected.
func (t *Task) Transition(to Status) error {
	if !CanTransition(t.Status, to) {
		return fmt.Errorf("%w: %s: %s -> %s", ErrBadTransition, t.ID, t.Status, to)
	}

	now := time.Now().UTC()
	switch to {
	case StatusSubmitted:
		t.SubmittedAt = &now
	case StatusRunning:
		t.StartedAt = &now
	case StatusDone, StatusError:
		if t.FinishedAt == nil {
			t.FinishedAt = &now
		}
	}
	t.Status = to
	return nil
}

// PrepareRestart readies an unconverged task for another submission. The
// previous output streams are kept by renaming them with the restart index
// (run.abo.0, run.abo.1, ...), then the task returns to Ready.
func (t *Task) PrepareRestart(maxRestarts int) error {
	if t.Status != StatusUnconverged {
		return fmt.Errorf("%w: %s: %s -> %s", ErrBadTransition, t.ID, t.Status, StatusReady)
	}
	if t.Restarts >= maxRestarts {
		return fmt.Errorf("%w: %s after %d restarts", ErrRestartLimit, t.ID, t.Restarts)
	}

	suffix := "." + strconv.Itoa(t.Restarts)
	for _, name := range []string{OutputFile, LogFile, ErrFile} {
		src := filepath.Join(t.Dir, name)
		if _, err := os.Stat(src); err != nil {
			continue
		}
		if err := os.Rename(src, src+suffix); err != nil {
			return fmt.Errorf("failed to archive %s for restart: %w", name, err)
		}
	}

	t.Restarts++
	t.JobID = ""
	t.SubmittedAt = nil
	t.StartedAt = nil
	t.FinishedAt = nil
	if err := t.Transition(StatusReady); err != nil {
		return err
	}
	return nil
}

// Work is a group of related tasks, w<i> in the tree.
type Work struct {
	ID    string  `yaml:"id"`
	Dir   string  `yaml:"dir"`
	Tasks []*Task `yaml:"tasks"`
}

// NodeID formats a node ID from work and task indices.
func NodeID(work, task int) string {
	return fmt.Sprintf("w%d/t%d", work, task)
}

// ParseNodeID splits a node ID of the form w<i>/t<j> into its indices.
func ParseNodeID(id string) (work, task int, err error) {
	w, t, ok := strings.Cut(id, "/")
	if !ok {
		return 0, 0, fmt.Errorf("%w: %q", ErrBadNodeID, id)
	}
	if !strings.HasPrefix(w, "w") || !strings.HasPrefix(t, "t") {
		return 0, 0, fmt.Errorf("%w: %q", ErrBadNodeID, id)
	}

	work, err = strconv.Atoi(w[1:])
	if err != nil || work < 0 {
		return 0, 0, fmt.Errorf("%w: %q", ErrBadNodeID, id)
	}
	task, err = strconv.Atoi(t[1:])
	if err != nil || task < 0 {
		return 0, 0, fmt.Errorf("%w: %q", ErrBadNodeID, id)
	}
	return work, task, nil
}
