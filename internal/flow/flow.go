package flow

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/Olivier7017/abiconv/internal/deck"
)

// ManifestFile is the flow manifest name at the flow root.
const ManifestFile = "flow.yml"

// StudyMeta is the slice of the study the analysis needs after reopening
// a flow: the tolerance and the atom count for per-atom energies.
type StudyMeta struct {
	Description  string  `yaml:"description,omitempty"`
	ToleranceMeV float64 `yaml:"tolerance_mev_per_atom"`
	NumAtoms     int     `yaml:"natom"`
	Formula      string  `yaml:"formula"`
	PseudoDir    string  `yaml:"pseudo_dir"`
}

// Flow is a study's directory tree and task state.
type Flow struct {
	Name    string    `yaml:"name"`
	Workdir string    `yaml:"-"`
	Created time.Time `yaml:"created"`

	// SchedulerRunID identifies the scheduler run driving the flow, or
	// the last one that did. Results in the store are keyed by it.
	SchedulerRunID string `yaml:"scheduler_run_id,omitempty"`

	Study StudyMeta `yaml:"study"`
	Works []*Work   `yaml:"works"`
}

// DefaultWorkdir returns the conventional flow directory for a study name.
func DefaultWorkdir(studyName string) string {
	return "flow_" + studyName
}

// Build creates the directory tree for a study under workdir, writes every
// deck and the initial manifest. Tasks without dependencies start Ready.
// An empty workdir defaults to flow_<study name>.
func Build(study *deck.Study, workdir string) (*Flow, error) {
	if workdir == "" {
		workdir = DefaultWorkdir(study.Name)
	}
	if _, err := os.Stat(filepath.Join(workdir, ManifestFile)); err == nil {
		return nil, fmt.Errorf("%w: %s", ErrFlowExists, workdir)
	}

	inputs, err := study.Inputs()
	if err != nil {
		return nil, fmt.Errorf("failed to expand study %s: %w", study.Name, err)
	}

	work := &Work{ID: "w0", Dir: filepath.Join(workdir, "w0")}
	for i, in := range inputs {
		task := &Task{
			ID:     NodeID(0, i),
			Dir:    filepath.Join(work.Dir, fmt.Sprintf("t%d", i)),
			Ngkpt:  study.Ngkpt[i],
			Status: StatusReady,
			Input:  in,
		}
		if err := materialize(task); err != nil {
			return nil, err
		}
		work.Tasks = append(work.Tasks, task)
	}

	f := &Flow{
		Name:    study.Name,
		Workdir: workdir,
		Created: time.Now().UTC(),
		Study: StudyMeta{
			Description:  study.Description,
			ToleranceMeV: study.Tolerance,
			NumAtoms:     study.Structure.NumAtoms(),
			Formula:      study.Structure.Formula(),
			PseudoDir:    study.PseudoDir,
		},
		Works: []*Work{work},
	}
	if err := f.Save(); err != nil {
		return nil, err
	}
	return f, nil
}

// materialize creates a task directory with its data subdirectories and
// writes the deck.
func materialize(t *Task) error {
	for _, sub := range dataDirs {
		if err := os.MkdirAll(filepath.Join(t.Dir, sub), 0750); err != nil {
			return fmt.Errorf("failed to create task directory %s: %w", t.ID, err)
		}
	}
	if err := t.Input.WriteFile(t.InputPath()); err != nil {
		return fmt.Errorf("task %s: %w", t.ID, err)
	}
	return nil
}

// Open loads a flow from its manifest. Task directories named by the
// manifest must exist; missing ones are reported together in one error.
func Open(workdir string) (*Flow, error) {
	data, err := os.ReadFile(filepath.Join(workdir, ManifestFile))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrNotAFlow, workdir)
		}
		return nil, fmt.Errorf("failed to read manifest: %w", err)
	}

	var f Flow
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse manifest in %s: %w", workdir, err)
	}
	f.Workdir = workdir

	// Rebase directories on the workdir argument so a moved or renamed
	// flow directory still opens.
	for _, w := range f.Works {
		w.Dir = filepath.Join(workdir, w.ID)
		for _, task := range w.Tasks {
			task.Dir = filepath.Join(workdir, filepath.FromSlash(task.ID))
		}
	}

	var missing []string
	for _, task := range f.AllTasks() {
		if info, err := os.Stat(task.Dir); err != nil || !info.IsDir() {
			missing = append(missing, task.ID)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: %s", ErrMissingTaskDir, strings.Join(missing, ", "))
	}
	return &f, nil
}

// Save rewrites the manifest atomically: full write to a temp file in the
// flow root, then rename over flow.yml. A crash mid-save leaves the old
// manifest intact.
func (f *Flow) Save() error {
	data, err := yaml.Marshal(f)
	if err != nil {
		return fmt.Errorf("failed to marshal manifest: %w", err)
	}

	tmp, err := os.CreateTemp(f.Workdir, ManifestFile+".*")
	if err != nil {
		return fmt.Errorf("failed to create temp manifest: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to write temp manifest: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to close temp manifest: %w", err)
	}
	if err := os.Chmod(tmpName, 0644); err != nil { //nolint:gosec // Manifest is meant to be world-readable
		os.Remove(tmpName)
		return fmt.Errorf("failed to chmod temp manifest: %w", err)
	}
	if err := os.Rename(tmpName, filepath.Join(f.Workdir, ManifestFile)); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to replace manifest: %w", err)
	}
	return nil
}

// AllTasks returns every task in tree order.
func (f *Flow) AllTasks() []*Task {
	var tasks []*Task
	for _, w := range f.Works {
		tasks = append(tasks, w.Tasks...)
	}
	return tasks
}

// Task returns the task with the given node ID, or nil.
func (f *Flow) Task(id string) *Task {
	for _, t := range f.AllTasks() {
		if t.ID == id {
			return t
		}
	}
	return nil
}

// ReadyTasks returns the tasks that can be submitted now.
func (f *Flow) ReadyTasks() []*Task {
	var ready []*Task
	for _, t := range f.AllTasks() {
		if t.Status == StatusReady {
			ready = append(ready, t)
		}
	}
	return ready
}

// PromoteInit moves Init tasks whose dependencies are all Completed to
// Ready. Returns the number promoted.
func (f *Flow) PromoteInit() int {
	promoted := 0
	for _, t := range f.AllTasks() {
		if t.Status != StatusInit {
			continue
		}
		satisfied := true
		for _, dep := range t.DepIDs {
			d := f.Task(dep)
			if d == nil || d.Status != StatusCompleted {
				satisfied = false
				break
			}
		}
		if satisfied {
			if err := t.Transition(StatusReady); err == nil {
				promoted++
			}
		}
	}
	return promoted
}

// Counts tallies tasks per status.
func (f *Flow) Counts() map[Status]int {
	counts := make(map[Status]int)
	for _, t := range f.AllTasks() {
		counts[t.Status]++
	}
	return counts
}

// Completed reports whether every task reached a terminal status.
func (f *Flow) Completed() bool {
	for _, t := range f.AllTasks() {
		if !t.Status.IsTerminal() {
			return false
		}
	}
	return true
}

// ErrorCount returns the number of tasks in Error.
func (f *Flow) ErrorCount() int {
	n := 0
	for _, t := range f.AllTasks() {
		if t.Status == StatusError {
			n++
		}
	}
	return n
}

// Summary returns the status counts as a stable one-line string, ordered
// by status value, for logs.
func (f *Flow) Summary() string {
	counts := f.Counts()
	statuses := make([]Status, 0, len(counts))
	for s := range counts {
		statuses = append(statuses, s)
	}
	sort.Slice(statuses, func(i, j int) bool { return statuses[i] < statuses[j] })

	parts := make([]string, 0, len(statuses))
	for _, s := range statuses {
		parts = append(parts, fmt.Sprintf("%s=%d", s, counts[s]))
	}
	return strings.Join(parts, " ")
}
