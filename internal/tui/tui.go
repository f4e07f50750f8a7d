// Package tui is the interactive terminal canvas. Every gesture goes through
// a canvas.Session, so the terminal view obeys the same locks and gating as
// any other replica.
package tui

import (
	"clarity-canvas/internal/canvas"

	tea "github.com/charmbracelet/bubbletea"
)

type Options struct {
	Session   *canvas.Session
	Workspace string
	// Changes is signalled (non-blocking) whenever the store changed behind
	// the view, e.g. from a relay event.
	Changes <-chan struct{}
	// Status is an optional one-line connection summary for the status bar.
	Status func() string
}

func Run(opts Options) error {
	applyColorProfilePreference()
	applyThemePreference()
	applyGlyphPreference()

	m := newCanvasModel(opts)
	_, err := tea.NewProgram(m, tea.WithAltScreen()).Run()
	return err
}
