package launcher

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"regexp"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/Olivier7017/abiconv/internal/config"
)

// Slurm submits job scripts with sbatch and tracks them through squeue.
// Transient submission failures (controller busy, socket timeouts) are
// retried with exponential backoff; a missing sbatch is permanent.
type Slurm struct {
	manager *config.Manager
	opts    options
}

// NewSlurm creates the Slurm adapter.
func NewSlurm(m *config.Manager, opts ...Option) *Slurm {
	return &Slurm{manager: m, opts: buildOptions(opts)}
}

// Name returns "slurm".
func (s *Slurm) Name() string { return "slurm" }

// sbatchJobID matches sbatch's "Submitted batch job 123" reply.
var sbatchJobID = regexp.MustCompile(`Submitted batch job (\d+)`)

// Submit runs sbatch in the task directory.
func (s *Slurm) Submit(ctx context.Context, spec Spec) (string, error) {
	if err := validateSpec(spec); err != nil {
		return "", err
	}

	var jobID string
	submit := func() error {
		out, err := queueCommand(ctx, spec.Dir, spec.Env, "sbatch", spec.Script)
		if err != nil {
			return err
		}
		id, err := parseSbatchOutput(out)
		if err != nil {
			return backoff.Permanent(err)
		}
		jobID = id
		return nil
	}

	if err := retrySubmit(ctx, submit, s.opts.retryWindow); err != nil {
		return "", fmt.Errorf("sbatch failed: %w", err)
	}
	return jobID, nil
}

// parseSbatchOutput extracts the job ID from sbatch's stdout.
func parseSbatchOutput(out string) (string, error) {
	m := sbatchJobID.FindStringSubmatch(out)
	if m == nil {
		return "", fmt.Errorf("unrecognized sbatch reply: %q", strings.TrimSpace(out))
	}
	return m[1], nil
}

// Running asks squeue for the job's state. A job squeue no longer knows
// has left the queue, which is not an error.
func (s *Slurm) Running(ctx context.Context, jobID string) (bool, error) {
	out, err := queueCommand(ctx, "", nil, "squeue", "--noheader", "--format=%T", "--job", jobID)
	if err != nil {
		if errors.Is(err, ErrQueueUnavailable) {
			return false, err
		}
		// squeue exits non-zero for unknown (completed, purged) jobs.
		return false, nil
	}
	state := strings.TrimSpace(out)
	if state == "" {
		return false, nil
	}
	switch state {
	case "COMPLETED", "FAILED", "CANCELLED", "TIMEOUT", "OUT_OF_MEMORY", "NODE_FAIL":
		return false, nil
	}
	return true, nil
}

// Cancel scancels the job. Unknown jobs are a no-op.
func (s *Slurm) Cancel(ctx context.Context, jobID string) error {
	if _, err := queueCommand(ctx, "", nil, "scancel", jobID); err != nil {
		if errors.Is(err, ErrQueueUnavailable) {
			return fmt.Errorf("scancel %s: %w", jobID, err)
		}
		// Unknown job: already finished or purged.
		return nil
	}
	return nil
}

// queueCommand runs a queue utility and returns its combined output. The
// output is part of the error for failed commands, since queue tools put
// their diagnostics there.
func queueCommand(ctx context.Context, dir string, env map[string]string, name string, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, name, args...) //nolint:gosec // Queue utility names are fixed, arguments are job data
	cmd.Dir = dir
	cmd.Env = mergedEnv(env)

	out, err := cmd.CombinedOutput()
	if err != nil {
		var execErr *exec.Error
		if errors.As(err, &execErr) {
			// The utility itself is missing; retrying cannot help.
			return "", backoff.Permanent(fmt.Errorf("%w: %s: %v", ErrQueueUnavailable, name, err))
		}
		return "", fmt.Errorf("%s: %w: %s", name, err, strings.TrimSpace(string(out)))
	}
	return string(out), nil
}

// retrySubmit retries op with exponential backoff inside the window.
func retrySubmit(ctx context.Context, op func() error, window time.Duration) error {
	policy := backoff.NewExponentialBackOff()
	policy.MaxElapsedTime = window
	return backoff.Retry(op, backoff.WithContext(policy, ctx))
}
