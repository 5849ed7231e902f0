package report

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/Olivier7017/abiconv/internal/model"
)

// Terminal styles for the verdict line.
var (
	convergedStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("42")) // Green

	unconvergedStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(lipgloss.Color("196")) // Red

	failureStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("208")) // Orange
)

// SimpleWriter outputs human-readable text reports.
// This format is designed for terminal display: plain ASCII sections with
// the verdict line color-coded through lipgloss.
//
// Design decision: Only the verdict carries color. The tables stay plain
// text so the report pipes cleanly into files and other tools, and
// WithColor(false) turns even the verdict off for scripting.
type SimpleWriter struct {
	baseWriter

	// color enables the styled verdict line.
	color bool

	// verbose enables additional detail in the output.
	verbose bool
}

// SimpleWriterOption configures a SimpleWriter.
type SimpleWriterOption func(*SimpleWriter)

// WithColor toggles the styled verdict line.
func WithColor(color bool) SimpleWriterOption {
	return func(w *SimpleWriter) {
		w.color = color
	}
}

// WithVerbose enables verbose output with additional details.
func WithVerbose(verbose bool) SimpleWriterOption {
	return func(w *SimpleWriter) {
		w.verbose = verbose
	}
}

// NewSimpleWriter creates a SimpleWriter that outputs to the given writer.
func NewSimpleWriter(output io.Writer, opts ...SimpleWriterOption) *SimpleWriter {
	w := &SimpleWriter{
		baseWriter: newBaseWriter(output),
		color:      true,
		verbose:    false,
	}

	for _, opt := range opts {
		opt(w)
	}

	return w
}

// Write outputs the report in human-readable format.
func (w *SimpleWriter) Write(report *model.StudyReport) (int, error) {
	var sb strings.Builder

	w.writeHeader(&sb, report)
	w.writeSweep(&sb, report)
	w.writeEvents(&sb, report)
	w.writeVerdict(&sb, report)

	return w.output.Write([]byte(sb.String()))
}

// writeHeader writes the report header with study information.
func (w *SimpleWriter) writeHeader(sb *strings.Builder, report *model.StudyReport) {
	sb.WriteString("\n")
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n")
	sb.WriteString("                   K-POINT CONVERGENCE REPORT\n")
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n\n")

	fmt.Fprintf(sb, "Study:      %s (%s)\n", report.FlowName, report.Workdir)
	if report.Formula != "" {
		fmt.Fprintf(sb, "Formula:    %s (%d atoms)\n", report.Formula, report.NumAtoms)
	}
	if report.RunID != "" {
		fmt.Fprintf(sb, "Run:        %s\n", report.RunID)
	}
	fmt.Fprintf(sb, "Analyzed:   %s\n", report.Analyzed.Format("2006-01-02 15:04:05 MST"))
	fmt.Fprintf(sb, "Tolerance:  %.3f meV/atom\n", report.ToleranceMeVAtom)
	sb.WriteString("\n")
}

// writeSweep writes the per-mesh table.
func (w *SimpleWriter) writeSweep(sb *strings.Builder, report *model.StudyReport) {
	sb.WriteString(strings.Repeat("-", 70))
	sb.WriteString("\n")
	sb.WriteString("SWEEP\n")
	sb.WriteString(strings.Repeat("-", 70))
	sb.WriteString("\n\n")

	if len(report.Points) == 0 {
		sb.WriteString("  No results\n\n")
		return
	}

	fmt.Fprintf(sb, "  %-8s %-10s %5s  %-11s %16s  %12s\n",
		"TASK", "NGKPT", "NKPT", "STATUS", "ETOTAL (Ha)", "DELTA (meV)")
	for _, p := range report.Points {
		mesh := fmt.Sprintf("%d %d %d", p.Ngkpt[0], p.Ngkpt[1], p.Ngkpt[2])
		nkpt := "-"
		if p.Nkpt > 0 {
			nkpt = fmt.Sprintf("%d", p.Nkpt)
		}
		etotal := "-"
		if p.EtotalHa != nil {
			etotal = fmt.Sprintf("%.8f", *p.EtotalHa)
		}
		delta := "-"
		switch {
		case p.DeltaMeVAtom != nil:
			delta = fmt.Sprintf("%.3f", *p.DeltaMeVAtom)
		case p.TaskID == report.ReferenceTaskID && p.TaskID != "":
			delta = "ref"
		}
		fmt.Fprintf(sb, "  %-8s %-10s %5s  %-11s %16s  %12s\n",
			p.TaskID, mesh, nkpt, p.Status, etotal, delta)

		if w.verbose && p.WallTimeSec > 0 {
			fmt.Fprintf(sb, "           wall %.1fs, cpu %.1fs, restarts %d\n",
				p.WallTimeSec, p.CPUTimeSec, p.Restarts)
		}
	}
	sb.WriteString("\n")
}

// writeEvents writes the engine diagnostics section.
func (w *SimpleWriter) writeEvents(sb *strings.Builder, report *model.StudyReport) {
	if report.TotalEvents() == 0 && len(report.Notable) == 0 {
		return
	}

	sb.WriteString(strings.Repeat("-", 70))
	sb.WriteString("\n")
	sb.WriteString("ENGINE EVENTS\n")
	sb.WriteString(strings.Repeat("-", 70))
	sb.WriteString("\n\n")

	fmt.Fprintf(sb, "  COMMENTS: %d\n", report.CommentCount)
	fmt.Fprintf(sb, "  WARNINGS: %d\n", report.WarningCount)
	fmt.Fprintf(sb, "  ERRORS:   %d\n", report.ErrorCount)
	fmt.Fprintf(sb, "  BUGS:     %d\n", report.BugCount)
	sb.WriteString("\n")

	for _, n := range report.Notable {
		label := n.Severity
		if n.Tag != "" && n.Tag != n.Severity {
			label = fmt.Sprintf("%s (%s)", n.Severity, n.Tag)
		}
		fmt.Fprintf(sb, "  [!] %s in %s: %s\n", label, n.TaskID, n.Message)
		if n.Hint != "" {
			fmt.Fprintf(sb, "      hint: %s\n", n.Hint)
		}
	}
	if len(report.Notable) > 0 {
		sb.WriteString("\n")
	}
}

// writeVerdict writes the colored verdict and the footer rule.
func (w *SimpleWriter) writeVerdict(sb *strings.Builder, report *model.StudyReport) {
	sb.WriteString(strings.Repeat("-", 70))
	sb.WriteString("\n")

	verdict := report.Verdict()
	if w.color {
		if report.Converged {
			verdict = convergedStyle.Render(verdict)
		} else {
			verdict = unconvergedStyle.Render(verdict)
		}
	}
	fmt.Fprintf(sb, "VERDICT: %s\n", verdict)

	if report.HasFailures() {
		failed := fmt.Sprintf("%d task(s) failed: %s",
			len(report.FailedTasks), strings.Join(report.FailedTasks, ", "))
		if w.color {
			failed = failureStyle.Render(failed)
		}
		fmt.Fprintf(sb, "         %s\n", failed)
	}

	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n")
}
