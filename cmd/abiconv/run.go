package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/Olivier7017/abiconv/internal/config"
	"github.com/Olivier7017/abiconv/internal/database"
	"github.com/Olivier7017/abiconv/internal/flow"
	"github.com/Olivier7017/abiconv/internal/launcher"
	"github.com/Olivier7017/abiconv/internal/log"
	"github.com/Olivier7017/abiconv/internal/scheduler"
)

// NewRunCmd creates the run command.
func NewRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run FLOWDIR",
		Short: "Schedule the engine runs of a flow",
		Long: `Run drives a flow to completion with the polling scheduler: every
interval it collects finished jobs, restarts unconverged tasks up to the
restart budget, and launches ready tasks up to the job cap.

The manager configuration (manager.yml) selects the launch backend: local
shell processes by default, Slurm or PBS on a cluster. Configuration is
looked up in the flow directory first, then in the XDG config directory;
with no file anywhere the defaults apply.

Interrupting the run (Ctrl-C) cancels in-flight jobs and saves the
manifest; running again resumes where the flow stopped.

Examples:
  # Run a flow to completion with local shell jobs
  abiconv run flow_si_conv

  # Single scheduler pass, then return (for cron or external loops)
  abiconv run flow_si_conv --once

  # Cap concurrent jobs and poll faster
  abiconv run flow_si_conv --max-jobs 2 --interval 2s

  # Show what would be launched without submitting anything
  abiconv run flow_si_conv --dry-run`,
		Args: cobra.ExactArgs(1),
		RunE: runRunCmd,
	}

	// Scheduling flags
	cmd.Flags().Bool("once", false,
		"Perform a single scheduler pass and return")
	cmd.Flags().Int("max-jobs", 0,
		"Override the manager's concurrent job cap")
	cmd.Flags().Duration("interval", 0,
		"Override the polling interval (for example 2s, 1m)")
	cmd.Flags().Bool("dry-run", false,
		"Print planned launches without submitting")

	// Configuration flags
	cmd.Flags().StringP("manager", "m", "",
		"Path to manager.yml (default: flow directory, then XDG config)")
	cmd.Flags().StringP("scheduler", "s", "",
		"Path to scheduler.yml (default: flow directory, then XDG config)")
	cmd.Flags().Bool("no-store", false,
		"Do not record results in the history store")
	cmd.Flags().Bool("log-json", false,
		"Emit scheduler logs as JSON lines (for log collectors)")

	return cmd
}

// runRunCmd executes the run command.
func runRunCmd(cmd *cobra.Command, args []string) error {
	once, err := cmd.Flags().GetBool("once")
	if err != nil {
		return err
	}
	maxJobs, err := cmd.Flags().GetInt("max-jobs")
	if err != nil {
		return err
	}
	interval, err := cmd.Flags().GetDuration("interval")
	if err != nil {
		return err
	}
	dryRun, err := cmd.Flags().GetBool("dry-run")
	if err != nil {
		return err
	}
	managerPath, err := cmd.Flags().GetString("manager")
	if err != nil {
		return err
	}
	schedulerPath, err := cmd.Flags().GetString("scheduler")
	if err != nil {
		return err
	}
	noStore, err := cmd.Flags().GetBool("no-store")
	if err != nil {
		return err
	}
	logJSON, err := cmd.Flags().GetBool("log-json")
	if err != nil {
		return err
	}

	workdir := args[0]
	fl, err := flow.Open(workdir)
	if err != nil {
		return err
	}

	manager, schedCfg, err := resolveConfigs(managerPath, schedulerPath, workdir, maxJobs, interval)
	if err != nil {
		return err
	}

	// Set up structured logging
	verbose := getVerboseFlag(cmd)
	logger := setupLogger(verbose, logJSON)
	slog.SetDefault(logger)

	if dryRun {
		return printPlan(fl, manager, schedCfg)
	}

	// Set up context with signal handling for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle interrupt signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		logger.Info("received shutdown signal, cancelling...")
		cancel()
	}()

	opts := []scheduler.Option{
		scheduler.WithLogger(logger),
		scheduler.WithCallback(progressPrinter()),
	}

	if !noStore {
		store, storeErr := database.Open(config.XDGDataDir(), database.DefaultOptions())
		if storeErr != nil {
			logger.Warn("results store unavailable, continuing without history", "error", storeErr)
		} else {
			defer store.Close()
			opts = append(opts, scheduler.WithStore(store))
		}
	}

	sched, err := scheduler.New(fl, manager, schedCfg, opts...)
	if err != nil {
		return err
	}

	var outcome *scheduler.Outcome
	if once {
		outcome, err = sched.RunOnce(ctx)
	} else {
		outcome, err = sched.Run(ctx)
	}

	fmt.Printf("\nFlow %s: %s\n", fl.Name, fl.Summary())
	fmt.Printf("Scheduler: %s\n", outcome)
	if err != nil {
		return err
	}

	// Distinct exit code for completed flows with failed tasks, so shell
	// scripts can branch without parsing output.
	if fl.ErrorCount() > 0 {
		fmt.Fprintf(os.Stderr, "%d task(s) ended in error; see 'abiconv events %s'\n",
			fl.ErrorCount(), workdir)
		os.Exit(2)
	}

	if outcome.Completed && !once {
		fmt.Printf("\nUse 'abiconv report %s' to analyze convergence.\n", workdir)
	}
	return nil
}

// resolveConfigs loads the manager and scheduler configuration for the
// flow and applies the command-line overrides, re-validating afterwards.
func resolveConfigs(managerPath, schedulerPath, workdir string, maxJobs int, interval time.Duration) (*config.Manager, *config.Scheduler, error) {
	manager, err := config.ManagerFor(managerPath, workdir)
	if err != nil {
		return nil, nil, err
	}
	schedCfg, err := config.SchedulerFor(schedulerPath, workdir)
	if err != nil {
		return nil, nil, err
	}

	if maxJobs > 0 {
		manager.MaxJobs = maxJobs
	}
	if interval > 0 {
		schedCfg.Interval = config.Duration(interval)
	}

	if err := manager.Validate(); err != nil {
		return nil, nil, fmt.Errorf("manager configuration: %w", err)
	}
	if err := schedCfg.Validate(); err != nil {
		return nil, nil, fmt.Errorf("scheduler configuration: %w", err)
	}
	return manager, schedCfg, nil
}

// printPlan lists the tasks the first scheduler cycle would launch.
func printPlan(fl *flow.Flow, manager *config.Manager, schedCfg *config.Scheduler) error {
	adapter, err := launcher.ForName(manager)
	if err != nil {
		return err
	}

	// Promote in memory only; a dry run must not touch the manifest.
	fl.PromoteInit()
	ready := fl.ReadyTasks()

	budget := manager.MaxJobs
	if schedCfg.MaxLaunches > 0 && schedCfg.MaxLaunches < budget {
		budget = schedCfg.MaxLaunches
	}

	fmt.Printf("Flow %s: %s\n", fl.Name, fl.Summary())
	fmt.Printf("Adapter %s, binary %s, %d MPI proc(s), %d job(s) per cycle\n\n",
		adapter.Name(), manager.Binary, manager.MpiProcs, budget)

	if len(ready) == 0 {
		fmt.Println("Nothing to launch.")
		return nil
	}

	for i, t := range ready {
		marker := "would launch"
		if i >= budget {
			marker = "would wait "
		}
		fmt.Printf("  %s  %-8s  ngkpt %d %d %d\n",
			marker, t.ID, t.Ngkpt[0], t.Ngkpt[1], t.Ngkpt[2])
	}
	return nil
}

// progressPrinter returns a scheduler callback that prints the flow
// summary whenever it changes between cycles.
func progressPrinter() func(cycle int, fl *flow.Flow) {
	var last string
	return func(cycle int, fl *flow.Flow) {
		summary := fl.Summary()
		if summary == last {
			return
		}
		last = summary
		fmt.Printf("cycle %d: %s\n", cycle, summary)
	}
}

// setupLogger creates a structured logger based on verbosity setting.
func setupLogger(verbose, json bool) *slog.Logger {
	if json {
		return log.NewJSONLogger(os.Stderr, verbose)
	}
	return log.NewConsoleLogger(os.Stderr, verbose, isTerminal(os.Stderr))
}

// isTerminal reports whether f is attached to a terminal, gating color.
func isTerminal(f *os.File) bool {
	info, err := f.Stat()
	if err != nil {
		return false
	}
	return info.Mode()&os.ModeCharDevice != 0
}
