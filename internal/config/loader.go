package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// LoadManager loads a manager configuration from a YAML file, merged over
// the defaults: omitted keys keep their default values. The result is
// validated. If the file does not exist, it returns ErrConfigNotFound.
func LoadManager(path string) (*Manager, error) {
	m := NewManager()
	if err := loadYAML(path, m); err != nil {
		return nil, err
	}
	if err := m.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return m, nil
}

// LoadScheduler loads a scheduler configuration the same way.
func LoadScheduler(path string) (*Scheduler, error) {
	s := NewScheduler()
	if err := loadYAML(path, s); err != nil {
		return nil, err
	}
	if err := s.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return s, nil
}

func loadYAML(path string, v any) error {
	data, err := os.ReadFile(path) //nolint:gosec // User-provided config path is intentional
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%w: %s", ErrConfigNotFound, path)
		}
		return err
	}
	if err := yaml.Unmarshal(data, v); err != nil {
		return fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return nil
}

// Find searches for the named configuration file in the following order:
// 1. If explicit is specified, use it directly
// 2. Look in the flow directory
// 3. Look in the XDG config directory (~/.config/abiconv)
//
// Returns the path if found, or empty string if not found.
func Find(name, explicit, flowDir string) string {
	if explicit != "" {
		if _, err := os.Stat(explicit); err == nil {
			return explicit
		}
		return ""
	}

	if flowDir != "" {
		candidate := filepath.Join(flowDir, name)
		if _, err := os.Stat(candidate); err == nil {
			return candidate
		}
	}

	candidate := filepath.Join(XDGConfigDir(), name)
	if _, err := os.Stat(candidate); err == nil {
		return candidate
	}
	return ""
}

// ManagerFor resolves the manager configuration for a flow: an explicit
// path wins, then manager.yml in the flow directory, then the XDG config
// directory. With no file anywhere the defaults apply, so a bare
// workstation needs no configuration at all.
func ManagerFor(explicit, flowDir string) (*Manager, error) {
	path := Find(ManagerFile, explicit, flowDir)
	if path == "" {
		if explicit != "" {
			return nil, fmt.Errorf("%w: %s", ErrConfigNotFound, explicit)
		}
		return NewManager(), nil
	}
	return LoadManager(path)
}

// SchedulerFor resolves the scheduler configuration the same way.
func SchedulerFor(explicit, flowDir string) (*Scheduler, error) {
	path := Find(SchedulerFile, explicit, flowDir)
	if path == "" {
		if explicit != "" {
			return nil, fmt.Errorf("%w: %s", ErrConfigNotFound, explicit)
		}
		return NewScheduler(), nil
	}
	return LoadScheduler(path)
}

// defaultManagerYAML is written by WriteDefault. It spells out every knob
// with its default so users edit rather than consult documentation.
const defaultManagerYAML = `# abiconv manager configuration.
# How engine jobs are launched.

# Launch backend: shell (local processes), slurm or pbs.
adapter: shell

# Engine executable, bare name (searched on PATH) or absolute path.
binary: abinit

# MPI processes per job; 1 runs serially without the runner prefix.
mpi_procs: 1
mpi_runner: mpirun

# Lines run in the job script before the engine starts.
# pre_run:
#   - module load abinit

# Environment exported in the job script.
# env:
#   OMP_NUM_THREADS: "1"

# Maximum jobs submitted or running at once.
max_jobs: 4

# Queue directives, used by the slurm and pbs adapters only.
# queue:
#   name: debug
#   walltime: "12:00:00"
#   account: myproject
`

// defaultSchedulerYAML is written by WriteDefault.
const defaultSchedulerYAML = `# abiconv scheduler configuration.
# How the polling loop behaves.

# Time between scheduler cycles.
interval: 5s

# Submissions per cycle; 0 means no per-cycle cap beyond max_jobs.
max_launches: 0

# How often an unconverged task may be resubmitted.
max_restarts: 2

# Abort the run after this many failed tasks; 0 disables the budget.
max_errors: 3

# Bound on the whole scheduler run; 0 means unlimited.
wall_clock: 0s
`

// WriteDefault writes commented manager.yml and scheduler.yml files into
// dir, refusing to overwrite existing ones.
func WriteDefault(dir string) error {
	files := map[string]string{
		ManagerFile:   defaultManagerYAML,
		SchedulerFile: defaultSchedulerYAML,
	}
	for name, content := range files {
		path := filepath.Join(dir, name)
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("refusing to overwrite existing %s", path)
		}
		if err := os.WriteFile(path, []byte(content), 0644); err != nil { //nolint:gosec // Config templates are not sensitive
			return fmt.Errorf("failed to write %s: %w", path, err)
		}
	}
	return nil
}
