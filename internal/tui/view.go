package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("15")).
			Background(lipgloss.Color("25")). // Deep blue
			Padding(0, 1)

	headStyle = lipgloss.NewStyle().Bold(true)

	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240")) // Grey

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("1")) // Red

	spinnerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("6")) // Cyan
)

// View renders watch mode: a title block, the scrolling task table and a
// one-line footer.
func (m Model) View() string {
	if m.Quitting {
		return ""
	}

	var sb strings.Builder
	sb.WriteString(titleStyle.Render("abiconv"))
	sb.WriteByte(' ')

	switch {
	case m.Snapshot == nil && m.Err != nil:
		sb.WriteString(errorStyle.Render(fmt.Sprintf("cannot read flow: %v", m.Err)))
		sb.WriteString("\n\n")
	case m.Snapshot == nil:
		sb.WriteString(m.Spinner.View())
		sb.WriteString(" loading flow...\n\n")
	default:
		fl := m.Snapshot.Flow
		fmt.Fprintf(&sb, "%s (%s)  tolerance %.1f meV/atom\n", fl.Name, fl.Study.Formula, fl.Study.ToleranceMeV)
		if fl.Completed() {
			sb.WriteString(fl.Summary())
		} else {
			sb.WriteString(m.Spinner.View())
			sb.WriteByte(' ')
			sb.WriteString(fl.Summary())
		}
		sb.WriteByte('\n')
	}

	if m.Ready {
		sb.WriteString(m.Viewport.View())
	}
	sb.WriteByte('\n')

	footer := "q quit · up/down scroll · refreshed " + m.refreshedAt()
	sb.WriteString(dimStyle.Render(footer))
	return sb.String()
}

// refreshedAt formats the time of the last good snapshot.
func (m Model) refreshedAt() string {
	if m.Snapshot == nil {
		return "never"
	}
	return m.Snapshot.Taken.Format("15:04:05")
}

// RenderTable renders the task table of a snapshot. Color toggles lipgloss
// styling of the status column; styles are applied after padding so the
// columns stay aligned.
func RenderTable(s *Snapshot, color bool) string {
	var sb strings.Builder

	head := fmt.Sprintf("%-8s %-10s %-12s %15s %5s %5s %4s %9s",
		"TASK", "NGKPT", "STATUS", "ETOTAL(HA)", "NKPT", "WARN", "ERR", "WALL")
	if color {
		head = headStyle.Render(head)
	}
	sb.WriteString(head)
	sb.WriteByte('\n')

	for _, r := range s.Rows {
		status := fmt.Sprintf("%-12s", r.Status)
		if color {
			status = lipgloss.NewStyle().Foreground(r.Status.Color()).Render(status)
		}
		fmt.Fprintf(&sb, "%-8s %-10s %s %15s %5s %5d %4d %9s\n",
			r.ID,
			fmt.Sprintf("%d %d %d", r.Ngkpt[0], r.Ngkpt[1], r.Ngkpt[2]),
			status,
			formatEtotal(r.EtotalHa),
			formatCount(r.Nkpt),
			r.Warnings,
			r.Errors,
			formatWall(r.WallTimeSec),
		)
	}
	return sb.String()
}

// RenderHeader renders the summary lines the status command prints above
// the table.
func RenderHeader(s *Snapshot, color bool) string {
	fl := s.Flow
	title := fmt.Sprintf("%s (%s)  tolerance %.1f meV/atom", fl.Name, fl.Study.Formula, fl.Study.ToleranceMeV)
	if color {
		title = headStyle.Render(title)
	}
	return title + "\n" + fl.Summary() + "\n"
}

func formatEtotal(v *float64) string {
	if v == nil {
		return "-"
	}
	return fmt.Sprintf("%.8f", *v)
}

func formatCount(n int) string {
	if n == 0 {
		return "-"
	}
	return fmt.Sprintf("%d", n)
}

func formatWall(sec float64) string {
	if sec <= 0 {
		return "-"
	}
	return fmt.Sprintf("%.1fs", sec)
}
