package report

import (
	"fmt"
	"io"
	"strconv"

	"github.com/nao1215/markdown"
	"github.com/nao1215/markdown/mermaid/piechart"

	"github.com/Olivier7017/abiconv/internal/model"
)

// MarkdownWriter outputs reports in Markdown format.
// This format is designed for documentation and sharing.
//
// Design decision: We use the nao1215/markdown library for fluent markdown
// generation which provides:
// 1. Type-safe markdown generation
// 2. Support for tables, lists, and code blocks
// 3. GitHub-flavored markdown alerts
type MarkdownWriter struct {
	baseWriter
}

// NewMarkdownWriter creates a MarkdownWriter that outputs to the given writer.
func NewMarkdownWriter(output io.Writer) *MarkdownWriter {
	return &MarkdownWriter{
		baseWriter: newBaseWriter(output),
	}
}

// Write outputs the report in Markdown format.
func (w *MarkdownWriter) Write(report *model.StudyReport) (int, error) {
	md := markdown.NewMarkdown(w.output)

	w.writeHeader(md, report)
	w.writeSweep(md, report)
	w.writeEvents(md, report)
	w.writeFooter(md)

	return len(md.String()), md.Build()
}

// writeHeader writes the report header with study information.
func (w *MarkdownWriter) writeHeader(md *markdown.Markdown, report *model.StudyReport) {
	md.H1("K-point Convergence Report")
	md.PlainText("")

	rows := [][]string{
		{"Study", "`" + report.FlowName + "`"},
		{"Flow directory", "`" + report.Workdir + "`"},
	}
	if report.Formula != "" {
		rows = append(rows, []string{"Formula", report.Formula})
		rows = append(rows, []string{"Atoms", strconv.Itoa(report.NumAtoms)})
	}
	if report.RunID != "" {
		rows = append(rows, []string{"Run", "`" + report.RunID + "`"})
	}
	rows = append(rows,
		[]string{"Analyzed", report.Analyzed.Format("2006-01-02 15:04:05 MST")},
		[]string{"Tolerance", fmt.Sprintf("%.3f meV/atom", report.ToleranceMeVAtom)},
		[]string{"Verdict", w.verdictText(report)},
	)

	md.Table(markdown.TableSet{
		Header: []string{"Property", "Value"},
		Rows:   rows,
	})
	md.PlainText("")
}

// verdictText returns the verdict with a status marker.
func (w *MarkdownWriter) verdictText(report *model.StudyReport) string {
	if report.Converged {
		return "✅ " + report.Verdict()
	}
	return "❌ " + report.Verdict()
}

// writeSweep writes the per-mesh results table and the outcome alert.
func (w *MarkdownWriter) writeSweep(md *markdown.Markdown, report *model.StudyReport) {
	md.H2("Sweep")
	md.PlainText("")

	if len(report.Points) == 0 {
		md.PlainText("No results.")
		md.PlainText("")
		return
	}

	rows := make([][]string, len(report.Points))
	for i, p := range report.Points {
		etotal := "-"
		if p.EtotalHa != nil {
			etotal = fmt.Sprintf("%.8f", *p.EtotalHa)
		}
		delta := "-"
		switch {
		case p.DeltaMeVAtom != nil:
			delta = fmt.Sprintf("%.3f", *p.DeltaMeVAtom)
		case p.TaskID == report.ReferenceTaskID && p.TaskID != "":
			delta = "reference"
		}
		nkpt := "-"
		if p.Nkpt > 0 {
			nkpt = strconv.Itoa(p.Nkpt)
		}
		wall := "-"
		if p.WallTimeSec > 0 {
			wall = fmt.Sprintf("%.1f", p.WallTimeSec)
		}
		rows[i] = []string{
			"`" + p.TaskID + "`",
			fmt.Sprintf("%d %d %d", p.Ngkpt[0], p.Ngkpt[1], p.Ngkpt[2]),
			nkpt,
			p.Status,
			etotal,
			delta,
			wall,
		}
	}

	md.Table(markdown.TableSet{
		Header: []string{"Task", "ngkpt", "nkpt", "Status", "Etotal (Ha)", "Delta (meV/atom)", "Wall (s)"},
		Rows:   rows,
	})
	md.PlainText("")

	w.writeAlert(md, report)
}

// writeAlert writes an appropriate alert for the study outcome.
func (w *MarkdownWriter) writeAlert(md *markdown.Markdown, report *model.StudyReport) {
	switch {
	case report.HasFailures():
		md.Cautionf(
			"%d task(s) failed; the verdict rests on the remaining meshes. Check the engine events below.",
			len(report.FailedTasks),
		)
	case report.Converged:
		md.Tipf(
			"Use `ngkpt %d %d %d` for production runs of this structure.",
			report.ConvergedNgkpt[0], report.ConvergedNgkpt[1], report.ConvergedNgkpt[2],
		)
	default:
		md.Warningf(
			"No mesh reached %.3f meV/atom. Extend the sweep with denser meshes.",
			report.ToleranceMeVAtom,
		)
	}
	md.PlainText("")
}

// writeEvents writes the engine diagnostics section.
func (w *MarkdownWriter) writeEvents(md *markdown.Markdown, report *model.StudyReport) {
	md.H2("Engine Events")
	md.PlainText("")

	if report.TotalEvents() == 0 {
		md.PlainText("No events reported.")
		md.PlainText("")
		return
	}

	md.Table(markdown.TableSet{
		Header: []string{"Severity", "Count"},
		Rows: [][]string{
			{"⚪ Comment", strconv.Itoa(report.CommentCount)},
			{"🟡 Warning", strconv.Itoa(report.WarningCount)},
			{"🔴 Error", strconv.Itoa(report.ErrorCount)},
			{"💥 Bug", strconv.Itoa(report.BugCount)},
			{"**Total**", "**" + strconv.Itoa(report.TotalEvents()) + "**"},
		},
	})
	md.PlainText("")

	w.writePieChart(md, report)

	// Notable diagnostics with their hints, collapsible to keep the
	// report skimmable.
	for _, n := range report.Notable {
		title := fmt.Sprintf("%s in %s", n.Severity, n.TaskID)
		if n.Tag != "" && n.Tag != n.Severity {
			title = fmt.Sprintf("%s (%s) in %s", n.Severity, n.Tag, n.TaskID)
		}
		body := n.Message
		if n.Hint != "" {
			body += "\n\nHint: " + n.Hint
		}
		md.Details(title, body)
	}
	if len(report.Notable) > 0 {
		md.PlainText("")
	}
}

// writePieChart writes a mermaid pie chart of the severity distribution.
func (w *MarkdownWriter) writePieChart(md *markdown.Markdown, report *model.StudyReport) {
	chart := piechart.NewPieChart(
		io.Discard,
		piechart.WithTitle("Event Severity Distribution"),
		piechart.WithShowData(true),
	)

	if report.CommentCount > 0 {
		chart.LabelAndIntValue("Comment", uint64(report.CommentCount))
	}
	if report.WarningCount > 0 {
		chart.LabelAndIntValue("Warning", uint64(report.WarningCount))
	}
	if report.ErrorCount > 0 {
		chart.LabelAndIntValue("Error", uint64(report.ErrorCount))
	}
	if report.BugCount > 0 {
		chart.LabelAndIntValue("Bug", uint64(report.BugCount))
	}

	md.PlainText("")
	md.CodeBlocks(markdown.SyntaxHighlightMermaid, chart.String())
	md.PlainText("")
}

// writeFooter writes the report footer.
func (w *MarkdownWriter) writeFooter(md *markdown.Markdown) {
	md.HorizontalRule()
	md.PlainText("")
	md.PlainTextf("*Report generated by [abiconv](https://github.com/Olivier7017/abiconv)*")
}
