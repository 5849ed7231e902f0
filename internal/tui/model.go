// Package tui implements watch mode: a terminal view of a running flow
// that reloads the manifest and the task artifacts on a fixed tick. The
// same table renderer backs the one-shot status command.
package tui

import (
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/Olivier7017/abiconv/internal/events"
	"github.com/Olivier7017/abiconv/internal/flow"
	"github.com/Olivier7017/abiconv/internal/outputs"
)

// DefaultInterval is the refresh period of watch mode.
const DefaultInterval = 2 * time.Second

// Row is one task line of the status table.
type Row struct {
	ID       string
	Ngkpt    [3]int
	Status   flow.Status
	Restarts int

	// Columns read from the task's artifacts. EtotalHa is nil and the
	// counts stay zero until the matching stream exists.
	EtotalHa    *float64
	Nkpt        int
	Warnings    int
	Errors      int
	WallTimeSec float64
}

// Snapshot is one observation of a flow's on-disk state.
type Snapshot struct {
	Flow  *flow.Flow
	Rows  []Row
	Taken time.Time
}

// TakeSnapshot reopens the flow at workdir and assembles the status rows,
// reading whatever artifacts each task has produced so far.
func TakeSnapshot(workdir string) (*Snapshot, error) {
	fl, err := flow.Open(workdir)
	if err != nil {
		return nil, err
	}

	s := &Snapshot{Flow: fl, Taken: time.Now()}
	for _, t := range fl.AllTasks() {
		row := Row{
			ID:       t.ID,
			Ngkpt:    t.Ngkpt,
			Status:   t.Status,
			Restarts: t.Restarts,
		}

		if summary, err := outputs.ParseOutputFile(t.OutputPath()); err == nil {
			row.Nkpt = summary.Nkpt
			row.WallTimeSec = summary.WallTimeSec
			if summary.EtotalFound {
				etotal := summary.Etotal
				row.EtotalHa = &etotal
			}
		}
		if evReport, err := events.ParseLogFile(t.LogPath()); err == nil {
			row.Warnings = evReport.NumWarnings()
			row.Errors = evReport.NumErrors() + evReport.NumBugs()
		}

		s.Rows = append(s.Rows, row)
	}
	return s, nil
}

// Model holds the watch mode state.
type Model struct {
	// Data
	Workdir  string
	Interval time.Duration
	Snapshot *Snapshot
	Err      error

	// UI state
	WindowSize tea.WindowSizeMsg
	Spinner    spinner.Model
	Viewport   viewport.Model
	Ready      bool
	Quitting   bool
}

// NewModel returns the initial watch state for the flow at workdir. A
// non-positive interval falls back to DefaultInterval.
func NewModel(workdir string, interval time.Duration) Model {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return Model{
		Workdir:  workdir,
		Interval: interval,
		Spinner:  spinner.New(spinner.WithSpinner(spinner.MiniDot), spinner.WithStyle(spinnerStyle)),
	}
}

// Init starts the spinner, the first load and the refresh tick.
func (m Model) Init() tea.Cmd {
	return tea.Batch(m.Spinner.Tick, refreshCmd(m.Workdir), tickCmd(m.Interval))
}
