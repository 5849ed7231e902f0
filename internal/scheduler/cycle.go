package scheduler

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/Olivier7017/abiconv/internal/database"
	"github.com/Olivier7017/abiconv/internal/events"
	"github.com/Olivier7017/abiconv/internal/flow"
	"github.com/Olivier7017/abiconv/internal/launcher"
	"github.com/Olivier7017/abiconv/internal/outputs"
)

// defaultNstep is the engine's own SCF step budget when the deck does
// not set one.
const defaultNstep = 30

// cycle runs one scheduler pass. The order matters: reaping first frees
// job slots and may return tasks to Unconverged, restarting refills
// Ready, and launching fills the freed slots within the same pass.
func (s *Scheduler) cycle(ctx context.Context, outcome *Outcome) error {
	s.reap(ctx, outcome)
	s.restart(ctx, outcome)
	s.fl.PromoteInit()
	return s.launch(ctx, outcome)
}

// reap polls every submitted or running task and classifies the ones
// whose jobs left the queue.
func (s *Scheduler) reap(ctx context.Context, outcome *Outcome) {
	for _, t := range s.fl.AllTasks() {
		if t.Status != flow.StatusSubmitted && t.Status != flow.StatusRunning {
			continue
		}

		running, err := s.adapter.Running(ctx, t.JobID)
		if err != nil {
			// Leave the task as is; the next pass retries.
			s.logger.Warn("job state unavailable",
				"task", t.ID,
				"job_id", t.JobID,
				"error", err,
			)
			continue
		}

		if running {
			if t.Status == flow.StatusSubmitted {
				if err := t.Transition(flow.StatusRunning); err == nil {
					s.logger.Info("task running", "task", t.ID, "job_id", t.JobID)
				}
			}
			continue
		}

		s.reapTask(ctx, t, outcome)
	}
}

// reapTask classifies one finished job and persists its results.
func (s *Scheduler) reapTask(ctx context.Context, t *flow.Task, outcome *Outcome) {
	if err := t.Transition(flow.StatusDone); err != nil {
		s.logger.Error("cannot mark task done", "task", t.ID, "error", err)
		return
	}

	evReport, summary := s.parseArtifacts(t)

	next := classify(evReport, summary)
	if next == flow.StatusUnconverged && t.Restarts >= s.cfg.MaxRestarts {
		// No restart budget left, so another pass cannot help.
		next = flow.StatusError
	}
	if err := t.Transition(next); err != nil {
		s.logger.Error("cannot classify task", "task", t.ID, "error", err)
		return
	}

	switch next {
	case flow.StatusCompleted:
		attrs := []any{"task", t.ID}
		if summary != nil && summary.EtotalFound {
			attrs = append(attrs, "etotal_ha", summary.Etotal)
		}
		s.logger.Info("task completed", attrs...)
	case flow.StatusUnconverged:
		s.logger.Info("task unconverged",
			"task", t.ID,
			"restarts", t.Restarts,
		)
	case flow.StatusError:
		outcome.Failed++
		s.logger.Warn("task failed",
			"task", t.ID,
			"reason", failureReason(evReport, summary, t.Restarts),
		)
	}

	s.persist(ctx, t, evReport, summary)
}

// parseArtifacts reads the engine's log and main output for a task.
// Either may be missing or truncated after a crash; classification then
// works with what exists.
func (s *Scheduler) parseArtifacts(t *flow.Task) (*events.Report, *outputs.Summary) {
	evReport, err := events.ParseLogFile(t.LogPath())
	if err != nil {
		if !errors.Is(err, events.ErrNoLogFile) {
			s.logger.Warn("log parse failed", "task", t.ID, "error", err)
		}
		evReport = nil
	}

	summary, err := outputs.ParseOutputFile(t.OutputPath())
	if err != nil {
		if !errors.Is(err, outputs.ErrNoOutputFile) {
			s.logger.Warn("output parse failed", "task", t.ID, "error", err)
		}
		summary = nil
	}
	return evReport, summary
}

// classify decides what a finished job made of its task.
//
// A fatal event marks the task failed no matter how the job exited: the
// engine halts on the first error, so whatever output exists is not
// trustworthy. A job that left the queue without a completion marker
// failed too, whether it was killed, ran out of walltime or crashed
// before the closing summary. A completed run that logged a convergence
// warning finished its steps without reaching the SCF tolerance and is
// restarted rather than believed.
func classify(evReport *events.Report, summary *outputs.Summary) flow.Status {
	if evReport != nil && evReport.HasFatalEvents() {
		return flow.StatusError
	}

	completed := (evReport != nil && evReport.Completed) ||
		(summary != nil && summary.Completed)
	if !completed {
		return flow.StatusError
	}

	if evReport != nil && hasConvergenceWarning(evReport) {
		return flow.StatusUnconverged
	}
	return flow.StatusCompleted
}

// hasConvergenceWarning reports whether the engine logged an iterative
// cycle that ran out of steps. The engine names every such event class
// with a ConvergenceWarning suffix.
func hasConvergenceWarning(r *events.Report) bool {
	for _, ev := range r.Events {
		if strings.HasSuffix(ev.Tag, "ConvergenceWarning") {
			return true
		}
	}
	return false
}

// failureReason names, for the log, why a task was classified Error.
func failureReason(evReport *events.Report, summary *outputs.Summary, restarts int) string {
	if evReport != nil && evReport.HasFatalEvents() {
		for _, ev := range evReport.Events {
			if ev.Severity.IsFatal() {
				return ev.Tag
			}
		}
	}
	if classify(evReport, summary) == flow.StatusUnconverged {
		return fmt.Sprintf("unconverged after %d restarts", restarts)
	}
	return "run not completed"
}

// restart returns unconverged tasks to Ready with a doubled SCF step
// budget. Tasks over the restart limit are failed; reap pre-screens for
// that, so the limit branch only fires when a resumed flow carries
// unconverged tasks from a run with a looser limit.
func (s *Scheduler) restart(ctx context.Context, outcome *Outcome) {
	for _, t := range s.fl.AllTasks() {
		if t.Status != flow.StatusUnconverged {
			continue
		}

		if err := t.PrepareRestart(s.cfg.MaxRestarts); err != nil {
			if errors.Is(err, flow.ErrRestartLimit) {
				evReport, summary := s.parseArtifacts(t)
				if terr := t.Transition(flow.StatusError); terr != nil {
					s.logger.Error("cannot fail task", "task", t.ID, "error", terr)
					continue
				}
				outcome.Failed++
				s.logger.Warn("task failed",
					"task", t.ID,
					"reason", fmt.Sprintf("unconverged after %d restarts", t.Restarts),
				)
				s.persist(ctx, t, evReport, summary)
				continue
			}
			s.logger.Error("restart failed", "task", t.ID, "error", err)
			continue
		}

		if err := raiseNstep(t.InputPath()); err != nil {
			s.logger.Warn("could not raise nstep", "task", t.ID, "error", err)
		}
		outcome.Restarted++
		s.logger.Info("task restarted", "task", t.ID, "attempt", t.Restarts)
	}
}

// raiseNstep doubles the deck's SCF step budget in place. A deck that
// never set nstep ran with the engine default, so the first escalation
// appends twice that.
func raiseNstep(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	lines := strings.Split(string(data), "\n")
	for i, line := range lines {
		fields := strings.Fields(line)
		if len(fields) < 2 || fields[0] != "nstep" {
			continue
		}
		n, err := strconv.Atoi(fields[1])
		if err != nil {
			return fmt.Errorf("malformed nstep line %q in %s", line, path)
		}
		lines[i] = fmt.Sprintf("nstep %d", 2*n)
		return os.WriteFile(path, []byte(strings.Join(lines, "\n")), 0644) //nolint:gosec // Deck must stay group-readable for queue systems
	}

	var sb strings.Builder
	sb.Write(data)
	if len(data) > 0 && data[len(data)-1] != '\n' {
		sb.WriteByte('\n')
	}
	fmt.Fprintf(&sb, "nstep %d\n", 2*defaultNstep)
	return os.WriteFile(path, []byte(sb.String()), 0644) //nolint:gosec // Deck must stay group-readable for queue systems
}

// launch submits ready tasks concurrently, keeping at most the manager's
// MaxJobs in flight and at most MaxLaunches per pass.
//
// Design decision: Per-task submission failures are logged and the task
// stays Ready for the next pass, because queue hiccups recover on their
// own. A missing engine binary or queue utility fails every submission
// identically, so those two abort the run instead of warning once per
// cycle forever.
func (s *Scheduler) launch(ctx context.Context, outcome *Outcome) error {
	active := 0
	for _, t := range s.fl.AllTasks() {
		if t.Status == flow.StatusSubmitted || t.Status == flow.StatusRunning {
			active++
		}
	}

	budget := s.manager.MaxJobs - active
	if s.cfg.MaxLaunches > 0 && budget > s.cfg.MaxLaunches {
		budget = s.cfg.MaxLaunches
	}
	if budget <= 0 {
		return nil
	}

	ready := s.fl.ReadyTasks()
	if len(ready) > budget {
		ready = ready[:budget]
	}
	if len(ready) == 0 {
		return nil
	}

	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.manager.MaxJobs)

	for _, t := range ready {
		g.Go(func() error {
			// Check for cancellation before submitting.
			select {
			case <-gctx.Done():
				return gctx.Err()
			default:
			}

			if err := s.submit(gctx, t); err != nil {
				if errors.Is(err, launcher.ErrEngineNotFound) ||
					errors.Is(err, launcher.ErrQueueUnavailable) {
					return err
				}
				s.logger.Warn("submission failed", "task", t.ID, "error", err)
				// Don't return the error to the errgroup; the other
				// submissions should continue.
				return nil
			}

			mu.Lock()
			outcome.Launched++
			mu.Unlock()
			return nil
		})
	}
	return g.Wait()
}

// submit writes the job script and hands one task to the adapter.
// The script is regenerated on every submission so manager.yml edits
// between passes take effect.
func (s *Scheduler) submit(ctx context.Context, t *flow.Task) error {
	script := launcher.ScriptFor(s.manager, jobName(s.fl.Name, t.ID))
	if err := launcher.WriteScript(t.ScriptPath(), script); err != nil {
		return err
	}

	jobID, err := s.adapter.Submit(ctx, launcher.Spec{
		Dir:    t.Dir,
		Script: t.ScriptPath(),
	})
	if err != nil {
		return err
	}

	t.JobID = jobID
	if err := t.Transition(flow.StatusSubmitted); err != nil {
		return err
	}
	s.logger.Info("task submitted",
		"task", t.ID,
		"job_id", jobID,
		"adapter", s.adapter.Name(),
	)
	return nil
}

// jobName builds the queue-visible job name for a task. Queue systems
// dislike slashes in job names.
func jobName(flowName, taskID string) string {
	return flowName + "_" + strings.ReplaceAll(taskID, "/", "_")
}

// persist records the task's state in the results store, if one is set.
func (s *Scheduler) persist(ctx context.Context, t *flow.Task, evReport *events.Report, summary *outputs.Summary) {
	if s.store == nil {
		return
	}

	res := &database.TaskResult{
		FlowID:   s.flowID,
		RunID:    s.runID,
		TaskID:   t.ID,
		Ngkpt:    t.Ngkpt,
		Status:   t.Status.String(),
		Restarts: t.Restarts,
	}
	if summary != nil {
		res.Nkpt = summary.Nkpt
		res.WallTimeSec = summary.WallTimeSec
		res.CPUTimeSec = summary.CPUTimeSec
		if summary.EtotalFound {
			etotal := summary.Etotal
			res.EtotalHa = &etotal
		}
	}
	if err := s.store.SaveTaskResult(ctx, res); err != nil {
		s.logger.Warn("failed to record task result", "task", t.ID, "error", err)
	}

	if evReport != nil && len(evReport.Events) > 0 {
		if err := s.store.SaveEvents(ctx, s.flowID, s.runID, t.ID, evReport.Events); err != nil {
			s.logger.Warn("failed to record events", "task", t.ID, "error", err)
		}
	}
}
