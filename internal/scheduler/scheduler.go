package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/Olivier7017/abiconv/internal/config"
	"github.com/Olivier7017/abiconv/internal/database"
	"github.com/Olivier7017/abiconv/internal/flow"
	"github.com/Olivier7017/abiconv/internal/launcher"
)

// Scheduler run errors.
var (
	// ErrErrorBudget is returned by Run when the number of failed tasks
	// reaches the configured MaxErrors.
	ErrErrorBudget = errors.New("error budget exhausted")

	// ErrWallClock is returned by Run when the configured wall-clock
	// limit expires before the flow completes.
	ErrWallClock = errors.New("wall clock limit reached")
)

// shutdownTimeout bounds the queue calls of an abnormal stop. The shell
// adapter may block for its kill grace per job, so this must cover a full
// set of in-flight jobs.
const shutdownTimeout = 30 * time.Second

// Scheduler drives one flow. It owns no goroutines between cycles; all
// state lives in the flow manifest, which is saved after every cycle.
type Scheduler struct {
	// fl is the flow being driven.
	fl *flow.Flow

	// manager describes how jobs are launched.
	manager *config.Manager

	// cfg holds the polling-loop settings.
	cfg *config.Scheduler

	// adapter launches and tracks jobs. Defaults to the adapter the
	// manager names; tests inject fakes through WithAdapter.
	adapter launcher.Adapter

	// store records task results and events, nil to run without history.
	store  *database.Store
	flowID int64

	// logger is used for structured logging during the run.
	logger *slog.Logger

	// runID identifies this scheduler run in the results store.
	runID string

	// callback, when set, observes the flow after each saved cycle.
	callback func(cycle int, fl *flow.Flow)
}

// Option is a function that configures a Scheduler.
// This follows the functional options pattern for clean API design.
type Option func(*Scheduler)

// WithLogger sets a custom logger for the scheduler.
// If not set, the default logger is used.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Scheduler) {
		s.logger = logger
	}
}

// WithStore records flow, task results and engine events in the given
// results store as they are reaped. Without it the run is not recorded.
func WithStore(store *database.Store) Option {
	return func(s *Scheduler) {
		s.store = store
	}
}

// WithAdapter overrides the launch adapter the manager configuration
// names. Tests use it to inject a fake queue.
func WithAdapter(adapter launcher.Adapter) Option {
	return func(s *Scheduler) {
		s.adapter = adapter
	}
}

// WithCallback registers a function called after every cycle, once the
// manifest is saved. The run command uses it to print progress; the
// callback must not mutate the flow.
func WithCallback(fn func(cycle int, fl *flow.Flow)) Option {
	return func(s *Scheduler) {
		s.callback = fn
	}
}

// New creates a Scheduler for the flow with the given options.
func New(fl *flow.Flow, manager *config.Manager, cfg *config.Scheduler, opts ...Option) (*Scheduler, error) {
	s := &Scheduler{
		fl:      fl,
		manager: manager,
		cfg:     cfg,
		runID:   uuid.NewString(),
	}

	for _, opt := range opts {
		opt(s)
	}

	if s.logger == nil {
		s.logger = slog.Default()
	}
	if s.adapter == nil {
		adapter, err := launcher.ForName(manager)
		if err != nil {
			return nil, err
		}
		s.adapter = adapter
	}
	return s, nil
}

// RunID returns the identifier this run records its results under.
func (s *Scheduler) RunID() string { return s.runID }

// Outcome summarizes a scheduler run.
type Outcome struct {
	// Completed reports whether every task reached a terminal status.
	Completed bool

	// Launched counts successful submissions, restarts included.
	Launched int

	// Restarted counts tasks returned to Ready after an unconverged run.
	Restarted int

	// Failed counts tasks that ended in Error.
	Failed int

	// Cycles counts scheduler passes.
	Cycles int

	// Elapsed is the wall time of the whole run.
	Elapsed time.Duration
}

// String renders the outcome as a one-line summary.
func (o *Outcome) String() string {
	return fmt.Sprintf("cycles=%d launched=%d restarted=%d failed=%d elapsed=%s",
		o.Cycles, o.Launched, o.Restarted, o.Failed, o.Elapsed.Round(time.Millisecond))
}

// Run polls the flow to completion. Every interval it reaps finished
// jobs, restarts unconverged tasks and launches ready ones, saving the
// manifest after each pass.
//
// Run stops when the flow completes, when MaxErrors tasks have failed,
// when the wall-clock limit expires or when ctx is cancelled. On the
// abnormal stops, in-flight jobs are cancelled through the adapter and
// classified from whatever the engine managed to write before the
// manifest is saved a last time.
func (s *Scheduler) Run(ctx context.Context) (*Outcome, error) {
	start := time.Now()
	outcome := &Outcome{}

	if err := s.begin(ctx); err != nil {
		outcome.Elapsed = time.Since(start)
		return outcome, err
	}

	runErr := s.loop(ctx, outcome)

	outcome.Completed = s.fl.Completed()
	outcome.Elapsed = time.Since(start)
	s.logger.Info("scheduler finished",
		"flow", s.fl.Name,
		"run_id", s.runID,
		"completed", outcome.Completed,
		"summary", s.fl.Summary(),
		"elapsed", outcome.Elapsed,
	)
	return outcome, runErr
}

// RunOnce performs a single pass and returns without waiting: reap what
// already finished, restart what can be restarted, fire every ready task
// up to the job cap. Calling it repeatedly drives the flow the same way
// Run does, at whatever rhythm the caller chooses.
func (s *Scheduler) RunOnce(ctx context.Context) (*Outcome, error) {
	start := time.Now()
	outcome := &Outcome{}

	if err := s.begin(ctx); err != nil {
		outcome.Elapsed = time.Since(start)
		return outcome, err
	}

	cycleErr := s.cycle(ctx, outcome)
	outcome.Cycles = 1

	if err := s.fl.Save(); err != nil && cycleErr == nil {
		cycleErr = err
	}
	if s.callback != nil {
		s.callback(outcome.Cycles, s.fl)
	}

	outcome.Completed = s.fl.Completed()
	outcome.Elapsed = time.Since(start)
	return outcome, cycleErr
}

// begin stamps the run ID into the manifest and registers the flow in
// the results store.
//
// Design decision: An interrupted run leaves its ID in the manifest, and
// begin adopts it instead of minting a fresh one. Resuming after a crash
// or a Ctrl-C therefore keeps all results of the sweep under a single
// run in the store.
func (s *Scheduler) begin(ctx context.Context) error {
	if s.fl.SchedulerRunID != "" && !s.fl.Completed() {
		s.runID = s.fl.SchedulerRunID
	}
	s.fl.SchedulerRunID = s.runID
	if err := s.fl.Save(); err != nil {
		return err
	}

	s.recordFlow(ctx)

	s.logger.Info("scheduler started",
		"flow", s.fl.Name,
		"run_id", s.runID,
		"adapter", s.adapter.Name(),
		"interval", s.cfg.Interval.Std(),
		"max_jobs", s.manager.MaxJobs,
	)
	return nil
}

// recordFlow registers the flow in the results store. A store failure
// disables recording for the run rather than blocking it; the sweep
// itself matters more than its bookkeeping.
func (s *Scheduler) recordFlow(ctx context.Context) {
	if s.store == nil {
		return
	}

	workdir := s.fl.Workdir
	if abs, err := filepath.Abs(workdir); err == nil {
		workdir = abs
	}

	rec := &database.FlowRecord{
		Name:         s.fl.Name,
		Workdir:      workdir,
		Formula:      s.fl.Study.Formula,
		NumAtoms:     s.fl.Study.NumAtoms,
		ToleranceMeV: s.fl.Study.ToleranceMeV,
	}
	id, err := s.store.UpsertFlow(ctx, rec)
	if err != nil {
		s.logger.Warn("results store unavailable, run will not be recorded", "error", err)
		s.store = nil
		return
	}
	s.flowID = id
}

// loop is the polling loop behind Run.
func (s *Scheduler) loop(ctx context.Context, outcome *Outcome) error {
	interval := s.cfg.Interval.Std()
	if interval <= 0 {
		interval = config.DefaultInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var deadline time.Time
	if s.cfg.WallClock > 0 {
		deadline = time.Now().Add(s.cfg.WallClock.Std())
	}

	for {
		// Check for cancellation before starting the pass.
		select {
		case <-ctx.Done():
			s.shutdown(outcome)
			return ctx.Err()
		default:
		}

		cycleErr := s.cycle(ctx, outcome)

		if err := s.fl.Save(); err != nil {
			s.logger.Error("failed to save manifest", "flow", s.fl.Name, "error", err)
			if cycleErr == nil {
				cycleErr = err
			}
		}
		outcome.Cycles++
		if s.callback != nil {
			s.callback(outcome.Cycles, s.fl)
		}

		if cycleErr != nil {
			// A broken environment fails every later pass the same way.
			s.shutdown(outcome)
			return cycleErr
		}
		if s.fl.Completed() {
			return nil
		}
		if s.cfg.MaxErrors > 0 && s.fl.ErrorCount() >= s.cfg.MaxErrors {
			s.shutdown(outcome)
			return fmt.Errorf("%w: %d tasks in error", ErrErrorBudget, s.fl.ErrorCount())
		}
		if !deadline.IsZero() && !time.Now().Before(deadline) {
			s.shutdown(outcome)
			return fmt.Errorf("%w after %s", ErrWallClock, s.cfg.WallClock)
		}

		select {
		case <-ctx.Done():
			s.shutdown(outcome)
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// shutdown abandons in-flight jobs on an abnormal stop: cancel through
// the adapter, then classify each task from whatever reached disk. A job
// that finished between the last poll and the cancel is reaped normally;
// a killed one has no completion marker and lands in Error.
func (s *Scheduler) shutdown(outcome *Outcome) {
	var active []*flow.Task
	for _, t := range s.fl.AllTasks() {
		if t.Status == flow.StatusSubmitted || t.Status == flow.StatusRunning {
			active = append(active, t)
		}
	}
	if len(active) == 0 {
		return
	}

	// The run context is usually already cancelled here, so the queue
	// calls get a fresh, bounded one.
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	for _, t := range active {
		if err := s.adapter.Cancel(ctx, t.JobID); err != nil {
			s.logger.Warn("failed to cancel job",
				"task", t.ID,
				"job_id", t.JobID,
				"error", err,
			)
		}
		// Classify from disk even when the cancel failed: the saved
		// manifest must reflect what the engine wrote, not the queue's
		// willingness to answer.
		s.reapTask(ctx, t, outcome)
	}

	if err := s.fl.Save(); err != nil {
		s.logger.Error("failed to save manifest", "flow", s.fl.Name, "error", err)
	}
}
