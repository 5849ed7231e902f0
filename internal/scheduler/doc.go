// Package scheduler drives every task of a flow to a terminal status.
//
// The scheduler polls the launch adapter on a fixed interval. Each cycle
// reaps finished jobs and classifies them from the engine's log and main
// output, returns unconverged tasks to Ready with a larger step budget,
// and submits ready tasks up to the manager's job cap. The manifest is
// saved after every cycle, so killing the scheduler loses at most one
// interval of bookkeeping and a later run resumes where it stopped.
package scheduler
