package tui

import (
	"errors"
	"fmt"

	"clarity-canvas/internal/canvas"
	"clarity-canvas/internal/model"
	"clarity-canvas/internal/mutate"
	"clarity-canvas/internal/opstate"

	tea "github.com/charmbracelet/bubbletea"
)

func (m canvasModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.input.Width = max(10, msg.Width-len(m.input.Prompt)-2)
		return m, nil

	case tickMsg:
		// Settle windows and locks expire on their own; redraw to show it.
		return m, tick()

	case changedMsg:
		m.ensureSelection()
		return m, m.waitForChange()

	case minibufferClearMsg:
		if msg.seq == m.minibufferSeq {
			m.minibuffer = ""
			m.minibufferWarn = false
		}
		return m, nil

	case tea.KeyMsg:
		switch m.mode {
		case modeDrag:
			return m.updateDrag(msg)
		case modeResize:
			return m.updateResize(msg)
		case modeEdit:
			return m.updateEdit(msg)
		default:
			return m.updateNormal(msg)
		}
	}
	return m, nil
}

func (m canvasModel) updateNormal(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		m.quitting = true
		return m, tea.Quit

	case "tab":
		m.cycleSelection(1)
		return m, nil
	case "shift+tab":
		m.cycleSelection(-1)
		return m, nil

	case "left", "h":
		m.cam.X -= panCells * m.stepX()
		return m, nil
	case "right", "l":
		m.cam.X += panCells * m.stepX()
		return m, nil
	case "up", "k":
		m.cam.Y -= panCells * m.stepY()
		return m, nil
	case "down", "j":
		m.cam.Y += panCells * m.stepY()
		return m, nil

	case "+", "=":
		m.setZoom(m.zoom * 2)
		return m, nil
	case "-":
		m.setZoom(m.zoom / 2)
		return m, nil

	case "c":
		if t, ok := m.selectedTask(); ok {
			m.centerOn(t.Bounds())
		} else if g, ok := m.selectedGroup(); ok {
			m.centerOn(g.Bounds)
		}
		return m, nil

	case "m", " ":
		if m.selected == "" {
			return m, nil
		}
		if !m.sess.BeginDrag([]string{m.selected}) {
			return m, m.showWarning(busyText(m.sess.Machine().Current()))
		}
		m.mode = modeDrag
		return m, nil

	case "s":
		g, ok := m.selectedGroup()
		if !ok {
			return m, m.showWarning("select a group to resize")
		}
		if !m.sess.BeginResize(g.ID, opstate.HandleSE) {
			return m, m.showWarning(busyText(m.sess.Machine().Current()))
		}
		m.resizeOrig = g.Bounds
		m.mode = modeResize
		return m, nil

	case "e", "enter":
		return m.beginEdit()

	case "n":
		c := m.viewCenter()
		pos := model.Point{X: c.X - model.DefaultTaskWidth/2, Y: c.Y - model.DefaultTaskHeight/2}
		t, err := m.sess.CreateTask("New task", pos, false)
		if err != nil {
			return m, m.showWarning(err.Error())
		}
		m.selected = t.ID
		return m.beginEdit()

	case "g":
		c := m.viewCenter()
		b := model.Rect{Point: model.Point{X: c.X - 150, Y: c.Y - 200}, Size: model.Size{Width: 300, Height: 400}}
		g, err := m.sess.CreateGroup("New group", "", b)
		if err != nil {
			return m, m.showWarning(err.Error())
		}
		m.selected = g.ID
		return m.beginEdit()

	case "R":
		res, err := m.sess.RolloverDefault()
		if err != nil {
			return m, m.showWarning(err.Error())
		}
		if res.Reason != mutate.ReasonSuccess {
			return m, m.showWarning("rollover: " + res.Reason)
		}
		return m, m.showMinibuffer(fmt.Sprintf("rollover: moved %d task(s)", res.MovedCount))
	}
	return m, nil
}

func (m canvasModel) updateDrag(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	var dx, dy float64
	switch msg.String() {
	case "left", "h":
		dx = -m.stepX()
	case "right", "l":
		dx = m.stepX()
	case "up", "k":
		dy = -m.stepY()
	case "down", "j":
		dy = m.stepY()
	case "H":
		dx = -10 * m.stepX()
	case "L":
		dx = 10 * m.stepX()
	case "K":
		dy = -10 * m.stepY()
	case "J":
		dy = 10 * m.stepY()

	case "enter", "m", " ":
		m.mode = modeNormal
		written, err := m.sess.EndDrag()
		if err != nil {
			return m, m.showWarning(err.Error())
		}
		m.ensureSelection()
		if len(written) == 0 {
			return m, nil
		}
		return m, m.showMinibuffer(m.placementText())

	case "esc", "ctrl+c":
		m.sess.CancelDrag()
		m.mode = modeNormal
		return m, nil

	default:
		return m, nil
	}

	if err := m.sess.DragBy(dx, dy); err != nil {
		if errors.Is(err, canvas.ErrNoGesture) {
			m.mode = modeNormal
		}
		return m, m.showWarning(err.Error())
	}
	return m, nil
}

func (m canvasModel) updateResize(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	_, b, ok := m.sess.ResizePreview()
	if !ok {
		m.mode = modeNormal
		return m, nil
	}
	switch msg.String() {
	case "left", "h":
		b.Width = max(0, b.Width-m.stepX())
	case "right", "l":
		b.Width += m.stepX()
	case "up", "k":
		b.Height = max(0, b.Height-m.stepY())
	case "down", "j":
		b.Height += m.stepY()

	case "enter", "s":
		m.mode = modeNormal
		res, err := m.sess.EndResize()
		if err != nil {
			return m, m.showWarning(err.Error())
		}
		if !res.Changed {
			return m, nil
		}
		return m, m.showMinibuffer(fmt.Sprintf("resized %s: %d task(s) re-resolved", res.Group.Name, len(res.Reparented)))

	case "esc", "ctrl+c":
		m.mode = modeNormal
		if err := m.sess.ResizeTo(m.resizeOrig); err == nil {
			_, _ = m.sess.EndResize()
		}
		return m, nil

	default:
		return m, nil
	}

	if err := m.sess.ResizeTo(b); err != nil {
		return m, m.showWarning(err.Error())
	}
	return m, nil
}

func (m canvasModel) beginEdit() (tea.Model, tea.Cmd) {
	if m.selected == "" {
		return m, nil
	}
	if !m.sess.BeginEdit(m.selected) {
		return m, m.showWarning("nothing to edit")
	}
	m.mode = modeEdit
	m.input.SetValue(m.selectedTitle())
	m.input.CursorEnd()
	return m, m.input.Focus()
}

func (m canvasModel) updateEdit(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "enter":
		m.mode = modeNormal
		m.input.Blur()
		if err := m.sess.CommitEdit(m.input.Value()); err != nil {
			return m, m.showWarning(err.Error())
		}
		return m, nil
	case "esc", "ctrl+c":
		m.mode = modeNormal
		m.input.Blur()
		m.sess.CancelEdit()
		return m, nil
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m *canvasModel) cycleSelection(dir int) {
	ids := m.nodeIDs()
	if len(ids) == 0 {
		m.selected = ""
		return
	}
	idx := -1
	for i, id := range ids {
		if id == m.selected {
			idx = i
			break
		}
	}
	idx = (idx + dir + len(ids)) % len(ids)
	m.selected = ids[idx]
}

// ensureSelection keeps the selection on an existing node after remote changes.
func (m *canvasModel) ensureSelection() {
	ids := m.nodeIDs()
	for _, id := range ids {
		if id == m.selected {
			return
		}
	}
	m.selected = ""
	if len(ids) > 0 {
		m.selected = ids[0]
	}
}

func (m *canvasModel) setZoom(z float64) {
	c := m.viewCenter()
	m.zoom = min(maxZoom, max(minZoom, z))
	m.centerOn(model.Rect{Point: c})
}

// placementText reports where the selected node ended up.
func (m canvasModel) placementText() string {
	st := m.sess.Store()
	var parent *string
	title := ""
	if t, ok := st.FindTask(m.selected); ok {
		parent, title = t.ParentID, t.Title
	} else if g, ok := st.FindGroup(m.selected); ok {
		parent, title = g.ParentID, g.Name
	}
	pid := model.ParentString(parent)
	if pid == "" {
		return title + " -> canvas"
	}
	if g, ok := st.FindGroup(pid); ok {
		return title + " -> " + g.Name
	}
	return title + " -> " + pid
}

func busyText(st opstate.State) string {
	return "busy: " + string(st.Type)
}
