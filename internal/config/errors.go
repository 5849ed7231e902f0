package config

import "errors"

// Configuration validation errors.
// These errors are returned by the Validate methods and provide specific
// information about what is wrong with the configuration.
//
// Design decision: We use package-level sentinel errors rather than
// creating new error instances in Validate(). This allows callers to use
// errors.Is() for programmatic error handling while still providing
// human-readable messages. Using errors.New() here rather than fmt.Errorf()
// because we don't need to include dynamic values in these messages.
var (
	// ErrConfigNotFound is returned when a configuration file does not exist.
	ErrConfigNotFound = errors.New("configuration file not found")

	// ErrInvalidAdapter is returned when the adapter name is not one of
	// shell, slurm or pbs.
	ErrInvalidAdapter = errors.New("invalid adapter: must be shell, slurm or pbs")

	// ErrNoBinary is returned when the engine binary name is empty.
	ErrNoBinary = errors.New("no engine binary configured")

	// ErrInvalidMpiProcs is returned when the MPI process count is not positive.
	ErrInvalidMpiProcs = errors.New("invalid mpi_procs: must be positive")

	// ErrNoMpiRunner is returned when mpi_procs asks for a parallel run
	// but no runner command is configured.
	ErrNoMpiRunner = errors.New("mpi_procs > 1 requires an mpi_runner")

	// ErrInvalidMaxJobs is returned when the concurrent job cap is not positive.
	ErrInvalidMaxJobs = errors.New("invalid max_jobs: must be positive")

	// ErrInvalidInterval is returned when the scheduler interval is not positive.
	// A zero interval would poll in a tight loop.
	ErrInvalidInterval = errors.New("invalid interval: must be positive")

	// ErrNegativeLaunches is returned when the per-cycle launch cap is negative.
	// Use 0 for no per-cycle cap.
	ErrNegativeLaunches = errors.New("invalid max_launches: must be non-negative")

	// ErrNegativeRestarts is returned when the restart budget is negative.
	// Use 0 to forbid restarts entirely.
	ErrNegativeRestarts = errors.New("invalid max_restarts: must be non-negative")

	// ErrNegativeErrors is returned when the error budget is negative.
	// Use 0 to disable the budget.
	ErrNegativeErrors = errors.New("invalid max_errors: must be non-negative")

	// ErrNegativeWallClock is returned when the wall-clock bound is negative.
	// Use 0 for an unbounded run.
	ErrNegativeWallClock = errors.New("invalid wall_clock: must be non-negative")
)
