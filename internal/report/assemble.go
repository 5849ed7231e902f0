package report

import (
	"math"

	"github.com/Olivier7017/abiconv/internal/convergence"
	"github.com/Olivier7017/abiconv/internal/events"
	"github.com/Olivier7017/abiconv/internal/flow"
	"github.com/Olivier7017/abiconv/internal/model"
	"github.com/Olivier7017/abiconv/internal/outputs"
)

// Assemble builds a StudyReport from a flow, its convergence analysis and
// the per-task parse results. analysis may be nil when too few tasks
// produced usable energies; the report then lists the tasks without
// deltas or a verdict. Both maps are keyed by task ID and may be sparse.
func Assemble(fl *flow.Flow, analysis *convergence.Result, summaries map[string]*outputs.Summary, evReports map[string]*events.Report) *model.StudyReport {
	r := model.NewStudyReport(fl.Name, fl.Workdir)
	r.Formula = fl.Study.Formula
	r.NumAtoms = fl.Study.NumAtoms
	r.ToleranceMeVAtom = fl.Study.ToleranceMeV
	r.RunID = fl.SchedulerRunID
	r.Created = fl.Created

	if analysis != nil {
		r.ToleranceMeVAtom = analysis.ToleranceMeVAtom
		r.Converged = analysis.Converged
		r.ReferenceTaskID = analysis.ReferenceID
		r.ReferenceHa = analysis.ReferenceHa
		if analysis.ConvergedIndex >= 0 {
			r.ConvergedNgkpt = analysis.ConvergedNgkpt
			r.ConvergedTaskID = analysis.Points[analysis.ConvergedIndex].TaskID
		}
		for i, p := range analysis.Points {
			r.AddPoint(taskSummary(fl, p, analysis.DeltasMeVAtom[i], analysis.ReferenceID, summaries))
		}
	} else {
		for _, t := range fl.AllTasks() {
			p := convergence.Point{TaskID: t.ID, Ngkpt: t.Ngkpt}
			if s, ok := summaries[t.ID]; ok && s.EtotalFound {
				p.EtotalHa = s.Etotal
				p.Ok = true
			}
			r.AddPoint(taskSummary(fl, p, math.NaN(), "", summaries))
		}
	}

	collectEvents(r, fl, evReports)
	return r
}

// taskSummary builds one report row from the analysis point and the
// task's own records.
func taskSummary(fl *flow.Flow, p convergence.Point, delta float64, referenceID string, summaries map[string]*outputs.Summary) model.TaskSummary {
	row := model.TaskSummary{
		TaskID: p.TaskID,
		Ngkpt:  p.Ngkpt,
		Nkpt:   p.Nkpt,
	}

	if t := fl.Task(p.TaskID); t != nil {
		row.Status = t.Status.String()
		row.Restarts = t.Restarts
	}

	if p.Ok {
		e := p.EtotalHa
		row.EtotalHa = &e
	}
	// The reference's delta is zero by construction; leave it absent so
	// the writers can label the row instead.
	if p.Ok && p.TaskID != referenceID && !math.IsNaN(delta) {
		d := delta
		row.DeltaMeVAtom = &d
	}

	if s, ok := summaries[p.TaskID]; ok {
		if row.Nkpt == 0 {
			row.Nkpt = s.Nkpt
		}
		row.WallTimeSec = s.WallTimeSec
		row.CPUTimeSec = s.CPUTimeSec
	}
	return row
}

// collectEvents folds each task's parsed events into the report: counts
// for all of them, notes for everything above comment level.
func collectEvents(r *model.StudyReport, fl *flow.Flow, evReports map[string]*events.Report) {
	for _, t := range fl.AllTasks() {
		rep, ok := evReports[t.ID]
		if !ok || rep == nil {
			continue
		}
		r.AddEventCounts(rep.NumComments(), rep.NumWarnings(), rep.NumErrors(), rep.NumBugs())
		for _, ev := range rep.Events {
			if ev.Severity == events.SeverityComment {
				continue
			}
			r.AddNote(model.EventNote{
				TaskID:   t.ID,
				Severity: ev.Severity.String(),
				Tag:      ev.Tag,
				Message:  ev.Message,
				Hint:     ev.Hint(),
			})
		}
	}
}
