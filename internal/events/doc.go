// Package events parses the structured event documents that the simulation
// engine writes to its log stream and classifies them by severity.
//
// The engine reports every noteworthy condition as a small YAML document
// embedded in the otherwise free-form log:
//
//	--- !WARNING
//	src_file: m_scfcv.F90
//	src_line: 312
//	message: |
//	    nstep 30 was not enough SCF cycles to converge.
//	...
//
// Three severities carry user-facing meaning: comments are informational,
// warnings flag conditions worth reviewing, and errors halt the run. A fourth
// severity, bug, marks internal inconsistencies of the engine itself.
//
// ParseLog collects the documents in order into a Report, which also records
// whether the run reached its normal completion marker. The package keeps a
// registry of known event classes so that reports can attach remediation
// hints to recurring conditions such as unconverged SCF cycles.
package events
