// Package flow owns the on-disk layout and lifecycle of a convergence study.
//
// A flow is a directory tree with one work per sweep and one numbered task
// per k-mesh:
//
//	flow_si_kconv/
//	  flow.yml          manifest: statuses, restarts, timestamps
//	  w0/
//	    t0/
//	      run.abi       input deck
//	      run.abo       main output (summary stream)
//	      run.log       log stream
//	      run.err       error stream
//	      job.sh        submission script
//	      indata/ outdata/ tmpdata/
//	    t1/ ...
//
// The manifest is the source of truth for task state and is rewritten
// atomically after every transition batch. Walk rechecks the tree itself
// so `status` can report facts the manifest cannot know, such as output
// sizes while the engine is still writing.
package flow
