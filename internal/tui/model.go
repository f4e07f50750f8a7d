package tui

import (
	"math"
	"strings"
	"time"

	"clarity-canvas/internal/canvas"
	"clarity-canvas/internal/model"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
)

type mode int

const (
	modeNormal mode = iota
	modeDrag
	modeResize
	modeEdit
)

const (
	// Canvas units per terminal cell at zoom level 1.
	unitsPerCol = 10.0
	unitsPerRow = 20.0

	minZoom = 0.25
	maxZoom = 4.0

	panCells = 4
)

type changedMsg struct{}

type tickMsg struct{}

type minibufferClearMsg struct{ seq int }

type canvasModel struct {
	sess      *canvas.Session
	workspace string
	changes   <-chan struct{}
	status    func() string

	width  int
	height int

	// cam is the canvas point drawn at the top-left cell.
	cam  model.Point
	zoom float64

	selected string
	mode     mode

	// resizeOrig restores the group when a resize is cancelled.
	resizeOrig model.Rect

	input textinput.Model

	minibuffer     string
	minibufferWarn bool
	minibufferSeq  int

	quitting bool
}

func newCanvasModel(opts Options) canvasModel {
	in := textinput.New()
	in.Prompt = "title: "
	in.CharLimit = 200

	m := canvasModel{
		sess:      opts.Session,
		workspace: strings.TrimSpace(opts.Workspace),
		changes:   opts.Changes,
		status:    opts.Status,
		width:     100,
		height:    30,
		zoom:      1,
		input:     in,
	}
	if ids := m.nodeIDs(); len(ids) > 0 {
		m.selected = ids[0]
	}
	return m
}

func (m canvasModel) Init() tea.Cmd {
	return tea.Batch(tick(), m.waitForChange())
}

func tick() tea.Cmd {
	return tea.Tick(250*time.Millisecond, func(time.Time) tea.Msg { return tickMsg{} })
}

func (m canvasModel) waitForChange() tea.Cmd {
	if m.changes == nil {
		return nil
	}
	ch := m.changes
	return func() tea.Msg {
		if _, ok := <-ch; !ok {
			return nil
		}
		return changedMsg{}
	}
}

// nodeIDs is the selection order: groups in creation order, then tasks.
func (m canvasModel) nodeIDs() []string {
	st := m.sess.Store()
	groups := st.Groups()
	tasks := st.Tasks()
	out := make([]string, 0, len(groups)+len(tasks))
	for _, g := range groups {
		out = append(out, g.ID)
	}
	for _, t := range tasks {
		out = append(out, t.ID)
	}
	return out
}

func (m canvasModel) selectedTask() (model.Task, bool) {
	return m.sess.Store().FindTask(m.selected)
}

func (m canvasModel) selectedGroup() (model.Group, bool) {
	return m.sess.Store().FindGroup(m.selected)
}

func (m canvasModel) selectedTitle() string {
	if t, ok := m.selectedTask(); ok {
		return t.Title
	}
	if g, ok := m.selectedGroup(); ok {
		return g.Name
	}
	return ""
}

// cell converts canvas units to terminal cells at the current zoom.
func (m canvasModel) cell(p model.Point) (int, int) {
	col := (p.X - m.cam.X) * m.zoom / unitsPerCol
	row := (p.Y - m.cam.Y) * m.zoom / unitsPerRow
	return int(math.Floor(col)), int(math.Floor(row))
}

func (m canvasModel) cellSpan(s model.Size) (int, int) {
	return int(s.Width * m.zoom / unitsPerCol), int(s.Height * m.zoom / unitsPerRow)
}

// stepX and stepY are the canvas distance of one cell.
func (m canvasModel) stepX() float64 { return unitsPerCol / m.zoom }
func (m canvasModel) stepY() float64 { return unitsPerRow / m.zoom }

func (m canvasModel) canvasRows() int {
	// header + status + help
	h := m.height - 3
	if m.mode == modeEdit {
		h--
	}
	if h < 1 {
		h = 1
	}
	return h
}

// viewCenter is the canvas point under the middle of the view.
func (m canvasModel) viewCenter() model.Point {
	return model.Point{
		X: m.cam.X + float64(m.width)/2*m.stepX(),
		Y: m.cam.Y + float64(m.canvasRows())/2*m.stepY(),
	}
}

func (m *canvasModel) centerOn(r model.Rect) {
	c := r.Center()
	m.cam = model.Point{
		X: c.X - float64(m.width)/2*m.stepX(),
		Y: c.Y - float64(m.canvasRows())/2*m.stepY(),
	}
}

func (m *canvasModel) showMinibuffer(text string) tea.Cmd {
	return m.flash(text, false)
}

func (m *canvasModel) showWarning(text string) tea.Cmd {
	return m.flash(text, true)
}

func (m *canvasModel) flash(text string, warn bool) tea.Cmd {
	m.minibuffer = text
	m.minibufferWarn = warn
	m.minibufferSeq++
	seq := m.minibufferSeq
	return tea.Tick(4*time.Second, func(time.Time) tea.Msg { return minibufferClearMsg{seq: seq} })
}
