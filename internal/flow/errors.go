package flow

import "errors"

// Flow lifecycle errors.
//
// Design decision: We use package-level sentinel errors rather than
// creating new error instances at each return site. Callers such as the
// CLI distinguish "not a flow directory" from genuine I/O failures with
// errors.Is(); dynamic context (paths, task IDs) is added by wrapping.
var (
	// ErrNotAFlow is returned by Open when the directory has no flow.yml
	// manifest.
	ErrNotAFlow = errors.New("not a flow directory: no flow.yml manifest")

	// ErrFlowExists is returned by Build when the target directory
	// already contains a manifest. Building would clobber task state.
	ErrFlowExists = errors.New("flow already exists in target directory")

	// ErrBadNodeID is returned by ParseNodeID for anything that is not
	// of the form w<i>/t<j>.
	ErrBadNodeID = errors.New("malformed node ID, expected w<i>/t<j>")

	// ErrBadTransition is returned by Transition for a move the status
	// machine does not permit.
	ErrBadTransition = errors.New("invalid status transition")

	// ErrMissingTaskDir is returned by Open when the manifest references
	// task directories that no longer exist on disk.
	ErrMissingTaskDir = errors.New("manifest references missing task directories")

	// ErrRestartLimit is returned by PrepareRestart when the task has
	// already been restarted the maximum number of times.
	ErrRestartLimit = errors.New("restart limit reached")
)
