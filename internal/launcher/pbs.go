package launcher

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/cenkalti/backoff/v4"

	"github.com/Olivier7017/abiconv/internal/config"
)

// PBS submits job scripts with qsub and tracks them through qstat.
type PBS struct {
	manager *config.Manager
	opts    options
}

// NewPBS creates the PBS adapter.
func NewPBS(m *config.Manager, opts ...Option) *PBS {
	return &PBS{manager: m, opts: buildOptions(opts)}
}

// Name returns "pbs".
func (p *PBS) Name() string { return "pbs" }

// Submit runs qsub in the task directory. qsub prints the job ID alone on
// stdout ("123.sched01").
func (p *PBS) Submit(ctx context.Context, spec Spec) (string, error) {
	if err := validateSpec(spec); err != nil {
		return "", err
	}

	var jobID string
	submit := func() error {
		out, err := queueCommand(ctx, spec.Dir, spec.Env, "qsub", spec.Script)
		if err != nil {
			return err
		}
		id := strings.TrimSpace(out)
		if id == "" {
			return backoff.Permanent(fmt.Errorf("empty qsub reply"))
		}
		jobID = id
		return nil
	}

	if err := retrySubmit(ctx, submit, p.opts.retryWindow); err != nil {
		return "", fmt.Errorf("qsub failed: %w", err)
	}
	return jobID, nil
}

// Running asks qstat about the job. qstat exits non-zero once the job has
// left the queue, which is the expected end state, not an error.
func (p *PBS) Running(ctx context.Context, jobID string) (bool, error) {
	out, err := queueCommand(ctx, "", nil, "qstat", jobID)
	if err != nil {
		if errors.Is(err, ErrQueueUnavailable) {
			return false, err
		}
		// Unknown job means it finished.
		return false, nil
	}
	// A held or exiting job still occupies the queue; only state C is
	// done on servers that keep finished jobs listed briefly.
	for _, line := range strings.Split(out, "\n") {
		fields := strings.Fields(line)
		if len(fields) >= 5 && strings.HasPrefix(fields[0], strings.SplitN(jobID, ".", 2)[0]) {
			if fields[4] == "C" {
				return false, nil
			}
			return true, nil
		}
	}
	return false, nil
}

// Cancel qdels the job. Unknown jobs are a no-op.
func (p *PBS) Cancel(ctx context.Context, jobID string) error {
	if _, err := queueCommand(ctx, "", nil, "qdel", jobID); err != nil {
		if errors.Is(err, ErrQueueUnavailable) {
			return fmt.Errorf("qdel %s: %w", jobID, err)
		}
		return nil
	}
	return nil
}
