package config

import (
	"path/filepath"
	"time"

	"github.com/adrg/xdg"
)

// Default configuration values.
// These mirror the conventions of the original automation tooling where
// applicable and are meant to work on a workstation with no config at all.
const (
	// DefaultAdapter runs jobs as local shell processes. Cluster users
	// switch to "slurm" or "pbs" in manager.yml.
	DefaultAdapter = "shell"

	// DefaultBinary is the engine executable searched on PATH.
	DefaultBinary = "abinit"

	// DefaultMpiProcs of 1 runs the engine serially. Parallel runs are an
	// explicit choice because a sensible process count depends on the
	// machine and the k-point count.
	DefaultMpiProcs = 1

	// DefaultMpiRunner launches parallel engine runs when MpiProcs > 1.
	DefaultMpiRunner = "mpirun"

	// DefaultMaxJobs of 4 concurrent jobs keeps a typical workstation
	// responsive while a convergence sweep runs. Cluster queues can take
	// far more; raise it in manager.yml.
	DefaultMaxJobs = 4

	// DefaultInterval between scheduler polls. Engine runs last minutes,
	// so polling faster than this only burns CPU on stat calls.
	DefaultInterval = 5 * time.Second

	// DefaultMaxRestarts bounds how often an unconverged task is
	// resubmitted. Two restarts triple the step budget, which resolves
	// most slow SCF cases; more usually points at a bad input.
	DefaultMaxRestarts = 2

	// DefaultMaxErrors aborts the scheduler once this many tasks fail.
	// Three failures in one sweep almost always share a root cause, so
	// burning the remaining meshes is pointless.
	DefaultMaxErrors = 3

	// AppName is the application name used for XDG directory paths.
	AppName = "abiconv"

	// ManagerFile is the manager configuration file name.
	ManagerFile = "manager.yml"

	// SchedulerFile is the scheduler configuration file name.
	SchedulerFile = "scheduler.yml"
)

// Queue holds the directives emitted into queue submission scripts.
type Queue struct {
	// Name is the partition (Slurm) or queue (PBS) to submit to.
	Name string `yaml:"name,omitempty"`

	// Walltime is the job time limit in the queue system's own format,
	// for example "12:00:00".
	Walltime string `yaml:"walltime,omitempty"`

	// Account is the allocation to charge, if the site requires one.
	Account string `yaml:"account,omitempty"`
}

// Manager describes how engine jobs are launched.
//
// Design decision: We use a single flat struct plus one Queue sub-struct
// instead of per-adapter structs. The shell adapter simply ignores the
// queue directives, which keeps one manager.yml portable between a laptop
// and a cluster.
type Manager struct {
	// Adapter selects the launch backend: "shell", "slurm" or "pbs".
	Adapter string `yaml:"adapter"`

	// Binary is the engine executable, either a bare name searched on
	// PATH or an absolute path.
	Binary string `yaml:"binary"`

	// MpiProcs is the number of MPI processes per job. 1 runs serially
	// without the runner prefix.
	MpiProcs int `yaml:"mpi_procs"`

	// MpiRunner is the MPI launcher prefix used when MpiProcs > 1.
	MpiRunner string `yaml:"mpi_runner"`

	// PreRun lines are emitted into the job script before the engine
	// invocation, typically "module load" commands.
	PreRun []string `yaml:"pre_run,omitempty"`

	// Env variables are exported in the job script.
	Env map[string]string `yaml:"env,omitempty"`

	// MaxJobs caps how many jobs may be Submitted or Running at once.
	MaxJobs int `yaml:"max_jobs"`

	// Queue holds the queue directives for the slurm and pbs adapters.
	Queue Queue `yaml:"queue,omitempty"`
}

// NewManager creates a Manager with default values.
//
// Design decision: We use a constructor instead of relying on zero values
// because the defaults are non-zero, and loading merges the file over this
// struct so omitted keys keep their defaults.
func NewManager() *Manager {
	return &Manager{
		Adapter:   DefaultAdapter,
		Binary:    DefaultBinary,
		MpiProcs:  DefaultMpiProcs,
		MpiRunner: DefaultMpiRunner,
		MaxJobs:   DefaultMaxJobs,
	}
}

// Validate checks the manager configuration, returning the first problem
// found. Fixing one error often makes later ones irrelevant.
func (m *Manager) Validate() error {
	switch m.Adapter {
	case "shell", "slurm", "pbs":
	default:
		return ErrInvalidAdapter
	}
	if m.Binary == "" {
		return ErrNoBinary
	}
	if m.MpiProcs <= 0 {
		return ErrInvalidMpiProcs
	}
	if m.MpiProcs > 1 && m.MpiRunner == "" {
		return ErrNoMpiRunner
	}
	if m.MaxJobs <= 0 {
		return ErrInvalidMaxJobs
	}
	return nil
}

// Scheduler describes the polling loop.
type Scheduler struct {
	// Interval between scheduler cycles.
	Interval Duration `yaml:"interval"`

	// MaxLaunches caps submissions per cycle. 0 means no per-cycle cap
	// beyond the manager's MaxJobs.
	MaxLaunches int `yaml:"max_launches"`

	// MaxRestarts bounds resubmissions of an unconverged task.
	MaxRestarts int `yaml:"max_restarts"`

	// MaxErrors aborts the run once this many tasks fail. 0 disables
	// the budget.
	MaxErrors int `yaml:"max_errors"`

	// WallClock bounds the whole scheduler run. 0 means unlimited.
	WallClock Duration `yaml:"wall_clock"`
}

// NewScheduler creates a Scheduler with default values.
func NewScheduler() *Scheduler {
	return &Scheduler{
		Interval:    Duration(DefaultInterval),
		MaxRestarts: DefaultMaxRestarts,
		MaxErrors:   DefaultMaxErrors,
	}
}

// Validate checks the scheduler configuration.
func (s *Scheduler) Validate() error {
	if s.Interval <= 0 {
		return ErrInvalidInterval
	}
	if s.MaxLaunches < 0 {
		return ErrNegativeLaunches
	}
	if s.MaxRestarts < 0 {
		return ErrNegativeRestarts
	}
	if s.MaxErrors < 0 {
		return ErrNegativeErrors
	}
	if s.WallClock < 0 {
		return ErrNegativeWallClock
	}
	return nil
}

// XDGDataDir returns the XDG data directory for abiconv.
// On Linux: ~/.local/share/abiconv
func XDGDataDir() string {
	return filepath.Join(xdg.DataHome, AppName)
}

// XDGConfigDir returns the XDG config directory for abiconv.
// On Linux: ~/.config/abiconv
func XDGConfigDir() string {
	return filepath.Join(xdg.ConfigHome, AppName)
}

// XDGCacheDir returns the XDG cache directory for abiconv.
// On Linux: ~/.cache/abiconv
func XDGCacheDir() string {
	return filepath.Join(xdg.CacheHome, AppName)
}
