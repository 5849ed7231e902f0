// Package launcher turns tasks into running engine jobs.
//
// An Adapter abstracts the launch backend: the shell adapter runs job
// scripts as local process groups, the slurm and pbs adapters submit them
// to a queue system and poll it. ScriptFor renders the job.sh that all
// three execute, including queue directives, environment exports and the
// engine invocation.
package launcher
