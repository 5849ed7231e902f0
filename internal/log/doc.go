// Package log provides the loggers used across the application, built on
// top of the standard slog package.
//
// Two flavors exist:
//   - ConsoleHandler renders compact, optionally colorized lines for
//     terminals: a short timestamp, a styled level tag, the message and
//     the attributes as key=value pairs.
//   - NewJSONLogger wraps the standard JSON handler for runs whose output
//     is collected by another tool.
//
// Verbose mode lowers the level to Debug; the default level is Warn so
// scheduler progress stays quiet unless asked for.
//
// # Usage
//
//	logger := log.NewConsoleLogger(os.Stderr, verbose, color)
//	logger.Info("task submitted",
//	    "task", "w0/t3",
//	    "job_id", jobID,
//	)
//	slog.SetDefault(logger)
package log
