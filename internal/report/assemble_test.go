package report

import (
	"testing"

	"github.com/Olivier7017/abiconv/internal/convergence"
	"github.com/Olivier7017/abiconv/internal/events"
	"github.com/Olivier7017/abiconv/internal/flow"
	"github.com/Olivier7017/abiconv/internal/outputs"
)

// testFlow builds an in-memory flow with three completed k-sweep tasks.
func testFlow() *flow.Flow {
	return &flow.Flow{
		Name:           "si_conv",
		Workdir:        "flow_si_conv",
		SchedulerRunID: "run-1",
		Study: flow.StudyMeta{
			ToleranceMeV: 1.0,
			NumAtoms:     2,
			Formula:      "Si2",
		},
		Works: []*flow.Work{{
			ID: "w0",
			Tasks: []*flow.Task{
				{ID: "w0/t0", Ngkpt: [3]int{2, 2, 2}, Status: flow.StatusCompleted},
				{ID: "w0/t1", Ngkpt: [3]int{4, 4, 4}, Status: flow.StatusCompleted, Restarts: 1},
				{ID: "w0/t2", Ngkpt: [3]int{6, 6, 6}, Status: flow.StatusCompleted},
			},
		}},
	}
}

// testAnalysis runs the convergence analysis for the test flow's sweep.
// The 4 4 4 mesh sits within 1 meV/atom of the 6 6 6 reference, the
// 2 2 2 mesh does not.
func testAnalysis(t *testing.T) *convergence.Result {
	t.Helper()
	points := []convergence.Point{
		{TaskID: "w0/t0", Ngkpt: [3]int{2, 2, 2}, Nkpt: 3, EtotalHa: -8.8600000000, Ok: true},
		{TaskID: "w0/t1", Ngkpt: [3]int{4, 4, 4}, Nkpt: 10, EtotalHa: -8.8662200000, Ok: true},
		{TaskID: "w0/t2", Ngkpt: [3]int{6, 6, 6}, Nkpt: 28, EtotalHa: -8.8662238960, Ok: true},
	}
	analysis, err := convergence.Analyze(points, 2, 1.0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return analysis
}

// TestAssemble tests the Assemble function
func TestAssemble(t *testing.T) {
	t.Parallel()

	t.Run("carries the analysis verdict and per-task rows", func(t *testing.T) {
		t.Parallel()

		fl := testFlow()
		analysis := testAnalysis(t)
		summaries := map[string]*outputs.Summary{
			"w0/t1": {Etotal: -8.8662200000, EtotalFound: true, Nkpt: 10, WallTimeSec: 12.5, CPUTimeSec: 11.9, Completed: true},
		}

		r := Assemble(fl, analysis, summaries, nil)

		if !r.Converged {
			t.Fatal("expected a converged report")
		}
		if r.ConvergedNgkpt != [3]int{4, 4, 4} {
			t.Errorf("got %v, expected %v", r.ConvergedNgkpt, [3]int{4, 4, 4})
		}
		if got, expected := r.ConvergedTaskID, "w0/t1"; got != expected {
			t.Errorf("got %q, expected %q", got, expected)
		}
		if got, expected := r.ReferenceTaskID, "w0/t2"; got != expected {
			t.Errorf("got %q, expected %q", got, expected)
		}
		if got, expected := r.RunID, "run-1"; got != expected {
			t.Errorf("got %q, expected %q", got, expected)
		}

		if got, expected := len(r.Points), 3; got != expected {
			t.Fatalf("got %d points, expected %d", got, expected)
		}
		coarse := r.Points[0]
		if coarse.TaskID != "w0/t0" {
			t.Errorf("got %q first, expected the coarsest mesh", coarse.TaskID)
		}
		if coarse.DeltaMeVAtom == nil {
			t.Error("expected a delta for the coarsest mesh")
		}
		if coarse.EtotalHa == nil || *coarse.EtotalHa != -8.86 {
			t.Errorf("got etotal %v, expected %v", coarse.EtotalHa, -8.86)
		}

		ref := r.Points[2]
		if ref.DeltaMeVAtom != nil {
			t.Errorf("reference row carries delta %v, expected none", *ref.DeltaMeVAtom)
		}

		mid := r.Points[1]
		if got, expected := mid.Restarts, 1; got != expected {
			t.Errorf("got %d restarts, expected %d", got, expected)
		}
		if got, expected := mid.WallTimeSec, 12.5; got != expected {
			t.Errorf("got wall time %v, expected %v", got, expected)
		}
		if got, expected := mid.Status, "Completed"; got != expected {
			t.Errorf("got %q, expected %q", got, expected)
		}
	})

	t.Run("folds engine events into counts and notes", func(t *testing.T) {
		t.Parallel()

		fl := testFlow()
		evReports := map[string]*events.Report{
			"w0/t0": {Events: []events.Event{
				{Tag: "COMMENT", Severity: events.SeverityComment, Message: "meta: fftalg=512"},
				{Tag: "ScfConvergenceWarning", Severity: events.SeverityWarning, Message: "nstep reached"},
			}},
			"w0/t2": {Events: []events.Event{
				{Tag: "COMMENT", Severity: events.SeverityComment, Message: "all points irreducible"},
			}},
		}

		r := Assemble(fl, testAnalysis(t), nil, evReports)

		if got, expected := r.CommentCount, 2; got != expected {
			t.Errorf("got %d comments, expected %d", got, expected)
		}
		if got, expected := r.WarningCount, 1; got != expected {
			t.Errorf("got %d warnings, expected %d", got, expected)
		}
		if got, expected := len(r.Notable), 1; got != expected {
			t.Fatalf("got %d notes, expected %d", got, expected)
		}
		note := r.Notable[0]
		if note.TaskID != "w0/t0" {
			t.Errorf("got %q, expected %q", note.TaskID, "w0/t0")
		}
		if note.Hint == "" {
			t.Error("expected the registered hint for ScfConvergenceWarning")
		}
	})

	t.Run("survives a missing analysis", func(t *testing.T) {
		t.Parallel()

		fl := testFlow()
		fl.Works[0].Tasks[2].Status = flow.StatusError
		summaries := map[string]*outputs.Summary{
			"w0/t0": {Etotal: -8.86, EtotalFound: true, Completed: true},
		}

		r := Assemble(fl, nil, summaries, nil)

		if r.Converged {
			t.Error("expected no verdict without analysis")
		}
		if got, expected := len(r.Points), 3; got != expected {
			t.Fatalf("got %d points, expected %d", got, expected)
		}
		if r.Points[0].EtotalHa == nil {
			t.Error("expected the parsed energy on the first row")
		}
		if r.Points[0].DeltaMeVAtom != nil {
			t.Error("expected no deltas without analysis")
		}
		if !r.HasFailures() {
			t.Error("expected the failed task to be recorded")
		}
		if got, expected := r.ToleranceMeVAtom, 1.0; got != expected {
			t.Errorf("got tolerance %v, expected %v", got, expected)
		}
	})
}
