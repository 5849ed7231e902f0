package launcher

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/Olivier7017/abiconv/internal/config"
)

// cancelGrace is how long Cancel waits after SIGTERM before SIGKILL.
const cancelGrace = 5 * time.Second

// Shell runs job scripts as local processes. Each job gets its own process
// group so Cancel can take down the script and the engine it spawned in
// one signal.
type Shell struct {
	manager *config.Manager

	mu   sync.Mutex
	jobs map[string]*shellJob
}

type shellJob struct {
	cmd  *exec.Cmd
	done chan struct{}
}

// NewShell creates the shell adapter.
func NewShell(m *config.Manager) *Shell {
	return &Shell{
		manager: m,
		jobs:    make(map[string]*shellJob),
	}
}

// Name returns "shell".
func (s *Shell) Name() string { return "shell" }

// Submit starts the job script. The context bounds the submission only:
// a started job outlives the caller's context, like a queue job outlives
// its sbatch, and is stopped through Cancel. The engine binary is
// resolved up front so a missing installation fails the task immediately
// instead of producing an empty log; the check is skipped when pre-run
// lines exist, since those may provide the binary (module load).
func (s *Shell) Submit(ctx context.Context, spec Spec) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if err := validateSpec(spec); err != nil {
		return "", err
	}
	if len(s.manager.PreRun) == 0 {
		if err := s.checkEngine(); err != nil {
			return "", err
		}
	}

	stdout, stderr := streamPaths(spec)
	outFile, err := os.Create(stdout) //nolint:gosec // Path is built from the task directory
	if err != nil {
		return "", fmt.Errorf("failed to open %s: %w", stdout, err)
	}
	errFile, err := os.Create(stderr) //nolint:gosec // Path is built from the task directory
	if err != nil {
		outFile.Close()
		return "", fmt.Errorf("failed to open %s: %w", stderr, err)
	}

	cmd := exec.Command("/bin/sh", spec.Script) //nolint:gosec // Running the rendered job script is the point
	cmd.Dir = spec.Dir
	cmd.Stdout = outFile
	cmd.Stderr = errFile
	cmd.Env = mergedEnv(spec.Env)
	// Own process group, so Cancel takes the script and the engine it
	// spawned down in one signal; the engine is the script's child.
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	if err := cmd.Start(); err != nil {
		outFile.Close()
		errFile.Close()
		return "", fmt.Errorf("failed to start job script: %w", err)
	}

	job := &shellJob{cmd: cmd, done: make(chan struct{})}
	jobID := strconv.Itoa(cmd.Process.Pid)

	s.mu.Lock()
	s.jobs[jobID] = job
	s.mu.Unlock()

	go func() {
		defer close(job.done)
		defer outFile.Close()
		defer errFile.Close()
		_ = cmd.Wait() //nolint:errcheck // Exit status is judged from the output files
	}()

	return jobID, nil
}

// Running reports whether the job's process is still alive. Jobs started
// by an earlier scheduler process are not tracked; for those the process
// group is probed directly.
func (s *Shell) Running(_ context.Context, jobID string) (bool, error) {
	s.mu.Lock()
	job, tracked := s.jobs[jobID]
	s.mu.Unlock()

	if tracked {
		select {
		case <-job.done:
			return false, nil
		default:
			return true, nil
		}
	}

	pid, err := strconv.Atoi(jobID)
	if err != nil {
		return false, fmt.Errorf("malformed shell job ID %q: %w", jobID, err)
	}
	// Signal 0 probes the process group without touching it.
	if err := syscall.Kill(-pid, 0); err != nil {
		return false, nil
	}
	return true, nil
}

// Cancel kills the job's process group. Unknown jobs are a no-op.
func (s *Shell) Cancel(_ context.Context, jobID string) error {
	pid, err := strconv.Atoi(jobID)
	if err != nil {
		return nil
	}

	s.mu.Lock()
	job, tracked := s.jobs[jobID]
	s.mu.Unlock()

	if tracked {
		select {
		case <-job.done:
			return nil
		default:
		}
	}

	if err := syscall.Kill(-pid, syscall.SIGTERM); err != nil {
		// Already gone.
		return nil //nolint:nilerr // Cancelling a finished job is a no-op
	}
	if tracked {
		// Escalate if the script ignores SIGTERM.
		select {
		case <-job.done:
		case <-time.After(cancelGrace):
			_ = syscall.Kill(-pid, syscall.SIGKILL) //nolint:errcheck // Group may have exited in the window
			<-job.done
		}
	}
	return nil
}

// checkEngine resolves the configured binary: absolute and relative paths
// are stat'ed, bare names searched on PATH.
func (s *Shell) checkEngine() error {
	binary := s.manager.Binary
	if strings.ContainsRune(binary, filepath.Separator) {
		if _, err := os.Stat(binary); err != nil {
			return fmt.Errorf("%w: %s", ErrEngineNotFound, binary)
		}
		return nil
	}
	if _, err := exec.LookPath(binary); err != nil {
		return fmt.Errorf("%w: %q not on PATH", ErrEngineNotFound, binary)
	}
	return nil
}

// mergedEnv layers the spec environment over the parent's, keys sorted for
// reproducible job scripts.
func mergedEnv(extra map[string]string) []string {
	if len(extra) == 0 {
		return nil // nil means inherit
	}
	env := os.Environ()
	keys := make([]string, 0, len(extra))
	for k := range extra {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		env = append(env, k+"="+extra[k])
	}
	return env
}
