package model

import (
	"fmt"
	"time"
)

// StudyReport is the complete outcome of one convergence study run.
// It carries the flow identity, one row per k-point mesh, the verdict of
// the convergence analysis and the engine diagnostics worth surfacing.
//
// Design decision: We use a single flat struct rather than many small ones
// to simplify serialization and database storage. Optional numeric fields
// are pointers so a task without a total energy serializes as absent
// instead of a misleading zero.
type StudyReport struct {
	// FlowName is the study name the flow was built from.
	FlowName string `json:"flow_name"`

	// Workdir is the flow directory the run operated on.
	Workdir string `json:"workdir"`

	// Formula is the reduced chemical formula of the structure.
	Formula string `json:"formula,omitempty"`

	// NumAtoms is the number of atoms in the cell; deltas are per atom.
	NumAtoms int `json:"natom"`

	// RunID identifies the scheduler run that produced this report.
	RunID string `json:"run_id,omitempty"`

	// Created is when the flow was built.
	Created time.Time `json:"created"`

	// Analyzed is when this report was assembled.
	Analyzed time.Time `json:"analyzed"`

	// ToleranceMeVAtom is the convergence criterion in meV per atom.
	ToleranceMeVAtom float64 `json:"tolerance_mev_per_atom"`

	// Converged is true when some mesh below the reference stays within
	// the tolerance together with every denser mesh.
	Converged bool `json:"converged"`

	// ConvergedNgkpt is the coarsest converged mesh. Only meaningful
	// when Converged is true.
	ConvergedNgkpt [3]int `json:"converged_ngkpt"`

	// ConvergedTaskID is the task that produced the converged mesh.
	ConvergedTaskID string `json:"converged_task_id,omitempty"`

	// ReferenceTaskID is the densest usable mesh all deltas compare to.
	ReferenceTaskID string `json:"reference_task_id,omitempty"`

	// ReferenceHa is the reference total energy in Hartree.
	ReferenceHa float64 `json:"reference_ha,omitempty"`

	// Points holds one row per mesh, sorted coarsest first.
	Points []TaskSummary `json:"points"`

	// === Severity Summary ===

	// CommentCount is the number of informational engine events.
	CommentCount int `json:"comment_count"`

	// WarningCount is the number of warning events.
	WarningCount int `json:"warning_count"`

	// ErrorCount is the number of error events.
	ErrorCount int `json:"error_count"`

	// BugCount is the number of bug events.
	BugCount int `json:"bug_count"`

	// Notable holds the diagnostics worth showing a human, typically the
	// warnings and all fatal events.
	Notable []EventNote `json:"notable,omitempty"`

	// FailedTasks lists the IDs of tasks that ended in the error state.
	FailedTasks []string `json:"failed_tasks,omitempty"`
}

// TaskSummary is one mesh's contribution to the study.
type TaskSummary struct {
	// TaskID is the node ID inside the flow, e.g. "w0/t2".
	TaskID string `json:"task_id"`

	// Ngkpt is the k-point mesh divisions of this task.
	Ngkpt [3]int `json:"ngkpt"`

	// Nkpt is the irreducible k-point count the engine echoed back,
	// zero when the output did not carry one.
	Nkpt int `json:"nkpt,omitempty"`

	// Status is the final task status label.
	Status string `json:"status"`

	// Restarts is how often the task was resubmitted.
	Restarts int `json:"restarts,omitempty"`

	// EtotalHa is the total free energy in Hartree, nil when the run
	// produced none.
	EtotalHa *float64 `json:"etotal_ha,omitempty"`

	// DeltaMeVAtom is the distance to the reference energy in meV per
	// atom, nil for the reference itself and for unusable points.
	DeltaMeVAtom *float64 `json:"delta_mev_per_atom,omitempty"`

	// WallTimeSec is the engine-reported wall time in seconds.
	WallTimeSec float64 `json:"wall_time_sec,omitempty"`

	// CPUTimeSec is the engine-reported CPU time in seconds.
	CPUTimeSec float64 `json:"cpu_time_sec,omitempty"`
}

// EventNote is an engine diagnostic carried into the report.
// It is a plain-string projection of a parsed event so reports stay
// serializable without dragging parser types along.
type EventNote struct {
	// TaskID is the task whose log reported the event.
	TaskID string `json:"task_id"`

	// Severity is the severity label, e.g. "WARNING".
	Severity string `json:"severity"`

	// Tag is the event class tag, e.g. "ScfConvergenceWarning".
	Tag string `json:"tag,omitempty"`

	// Message is the event text.
	Message string `json:"message"`

	// Hint is the remediation hint for the event class, when one is known.
	Hint string `json:"hint,omitempty"`
}

// NewStudyReport creates a report for the given flow.
func NewStudyReport(flowName, workdir string) *StudyReport {
	return &StudyReport{
		FlowName: flowName,
		Workdir:  workdir,
		Analyzed: time.Now(),
	}
}

// AddPoint appends one mesh row to the report.
func (r *StudyReport) AddPoint(p TaskSummary) {
	r.Points = append(r.Points, p)
	if p.Status == "Error" {
		r.FailedTasks = append(r.FailedTasks, p.TaskID)
	}
}

// AddNote records a notable diagnostic.
func (r *StudyReport) AddNote(n EventNote) {
	r.Notable = append(r.Notable, n)
}

// AddEventCounts accumulates the per-severity event totals of one task.
func (r *StudyReport) AddEventCounts(comments, warnings, errs, bugs int) {
	r.CommentCount += comments
	r.WarningCount += warnings
	r.ErrorCount += errs
	r.BugCount += bugs
}

// TotalEvents returns the number of engine events across all tasks.
func (r *StudyReport) TotalEvents() int {
	return r.CommentCount + r.WarningCount + r.ErrorCount + r.BugCount
}

// HasFailures reports whether any task ended in the error state.
func (r *StudyReport) HasFailures() bool {
	return len(r.FailedTasks) > 0
}

// Verdict renders the convergence outcome as a single line.
func (r *StudyReport) Verdict() string {
	if r.Converged {
		return fmt.Sprintf("converged at ngkpt %d %d %d (within %.1f meV/atom)",
			r.ConvergedNgkpt[0], r.ConvergedNgkpt[1], r.ConvergedNgkpt[2], r.ToleranceMeVAtom)
	}
	return fmt.Sprintf("not converged within %.1f meV/atom", r.ToleranceMeVAtom)
}
