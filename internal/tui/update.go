package tui

import (
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
)

// MsgSnapshot delivers a fresh observation of the flow.
type MsgSnapshot *Snapshot

// MsgError reports a failed refresh.
type MsgError error

// MsgTick asks for the next refresh.
type MsgTick time.Time

// Layout constants: lines above and below the viewport.
const (
	headerHeight = 3
	footerHeight = 2
)

// Update handles events.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.WindowSize = msg
		height := msg.Height - headerHeight - footerHeight
		if height < 3 {
			height = 3
		}
		if !m.Ready {
			m.Viewport = viewport.New(msg.Width, height)
			m.Ready = true
		} else {
			m.Viewport.Width = msg.Width
			m.Viewport.Height = height
		}
		m.syncViewport()
		return m, nil

	case MsgSnapshot:
		m.Err = nil
		m.Snapshot = msg
		m.syncViewport()
		return m, nil

	case MsgError:
		// Keep the last good snapshot on screen; a transient read error
		// during a manifest rewrite heals on the next tick.
		m.Err = msg
		return m, nil

	case MsgTick:
		return m, tea.Batch(refreshCmd(m.Workdir), tickCmd(m.Interval))

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.Spinner, cmd = m.Spinner.Update(msg)
		return m, cmd

	case tea.KeyMsg:
		switch msg.String() {
		case "q", "esc", "ctrl+c":
			m.Quitting = true
			return m, tea.Quit
		}
	}

	// Remaining keys scroll the table.
	var cmd tea.Cmd
	m.Viewport, cmd = m.Viewport.Update(msg)
	return m, cmd
}

// syncViewport refreshes the scrollable table, keeping the scroll offset.
func (m *Model) syncViewport() {
	if !m.Ready || m.Snapshot == nil {
		return
	}
	m.Viewport.SetContent(RenderTable(m.Snapshot, true))
}

// refreshCmd loads a snapshot in the background.
func refreshCmd(workdir string) tea.Cmd {
	return func() tea.Msg {
		s, err := TakeSnapshot(workdir)
		if err != nil {
			return MsgError(err)
		}
		return MsgSnapshot(s)
	}
}

// tickCmd schedules the next refresh.
func tickCmd(interval time.Duration) tea.Cmd {
	return tea.Tick(interval, func(t time.Time) tea.Msg {
		return MsgTick(t)
	})
}
