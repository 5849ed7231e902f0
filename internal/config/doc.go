// Package config provides the manager and scheduler configuration for
// abiconv. The manager describes how engine jobs are launched (adapter,
// binary, MPI setup, queue directives); the scheduler describes how the
// polling loop behaves (interval, restart and error budgets).
package config
