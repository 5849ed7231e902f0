package launcher

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/Olivier7017/abiconv/internal/config"
	"github.com/Olivier7017/abiconv/internal/flow"
)

// Launcher errors.
var (
	// ErrUnknownAdapter is returned when the manager names an adapter
	// that does not exist.
	ErrUnknownAdapter = errors.New("unknown launch adapter")

	// ErrEngineNotFound is returned by the shell adapter when the engine
	// binary cannot be resolved before launching.
	ErrEngineNotFound = errors.New("engine binary not found")

	// ErrWouldClobber is returned when a submission would overwrite an
	// existing main output. Restarts must archive outputs first.
	ErrWouldClobber = errors.New("task directory already has a main output")

	// ErrNoScript is returned when the job script is missing.
	ErrNoScript = errors.New("job script not found")

	// ErrQueueUnavailable is returned by queue adapters when the queue
	// utility itself (sbatch, squeue, qsub, ...) cannot be executed.
	// It separates a broken environment from a job that merely left
	// the queue.
	ErrQueueUnavailable = errors.New("queue utility unavailable")
)

// Queue-level stream files in the task directory. The engine's own streams
// stay run.log and run.err via the script's redirect; these capture what
// the script prints around it (module loads, queue prologue).
const (
	QueueOutFile = "queue.qout"
	QueueErrFile = "queue.qerr"
)

// DefaultRetryWindow bounds submission retries for queue adapters.
const DefaultRetryWindow = 30 * time.Second

// Spec describes one submission.
type Spec struct {
	// Dir is the task directory; commands run with it as working
	// directory so relative paths in the script resolve there.
	Dir string

	// Script is the job script path.
	Script string

	// Stdout and Stderr receive the script-level output. Empty values
	// default to queue.qout and queue.qerr in Dir.
	Stdout string
	Stderr string

	// Env is exported to the job on top of the parent environment.
	Env map[string]string
}

// Adapter launches and tracks engine jobs.
type Adapter interface {
	// Name returns the adapter name as used in manager.yml.
	Name() string

	// Submit starts the job described by spec and returns its job ID.
	Submit(ctx context.Context, spec Spec) (string, error)

	// Running reports whether the job is still queued or executing.
	Running(ctx context.Context, jobID string) (bool, error)

	// Cancel stops the job. Cancelling an unknown job is a no-op.
	Cancel(ctx context.Context, jobID string) error
}

// Option configures an adapter.
type Option func(*options)

type options struct {
	retryWindow time.Duration
}

// WithRetryWindow bounds how long queue adapters retry transient
// submission failures.
func WithRetryWindow(d time.Duration) Option {
	return func(o *options) {
		o.retryWindow = d
	}
}

func buildOptions(opts []Option) options {
	o := options{retryWindow: DefaultRetryWindow}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// ForName selects the adapter the manager configuration names.
func ForName(m *config.Manager, opts ...Option) (Adapter, error) {
	switch m.Adapter {
	case "shell":
		return NewShell(m), nil
	case "slurm":
		return NewSlurm(m, opts...), nil
	case "pbs":
		return NewPBS(m, opts...), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownAdapter, m.Adapter)
	}
}

// validateSpec enforces the submission preconditions shared by all
// adapters: the script exists and no main output would be clobbered.
func validateSpec(spec Spec) error {
	if _, err := os.Stat(spec.Script); err != nil {
		return fmt.Errorf("%w: %s", ErrNoScript, spec.Script)
	}
	out := filepath.Join(spec.Dir, flow.OutputFile)
	if _, err := os.Stat(out); err == nil {
		return fmt.Errorf("%w: %s", ErrWouldClobber, out)
	}
	return nil
}

// streamPaths resolves the script-level output files.
func streamPaths(spec Spec) (string, string) {
	stdout, stderr := spec.Stdout, spec.Stderr
	if stdout == "" {
		stdout = filepath.Join(spec.Dir, QueueOutFile)
	}
	if stderr == "" {
		stderr = filepath.Join(spec.Dir, QueueErrFile)
	}
	return stdout, stderr
}
