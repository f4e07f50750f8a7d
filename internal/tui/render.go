package tui

import (
	"fmt"
	"sort"
	"strings"

	"clarity-canvas/internal/containment"
	"clarity-canvas/internal/model"

	"github.com/charmbracelet/lipgloss"
	xansi "github.com/charmbracelet/x/ansi"
)

type cellClass uint8

const (
	classBlank cellClass = iota
	classGroup
	classGroupTitle
	classTask
	classSelected
	classPreview
	classLocked
)

func (c cellClass) style() lipgloss.Style {
	switch c {
	case classGroup:
		return styleGroup
	case classGroupTitle:
		return styleGroupTitle
	case classTask:
		return styleTask
	case classSelected:
		return styleSelected
	case classPreview:
		return stylePreview
	case classLocked:
		return styleLocked
	default:
		return lipgloss.NewStyle()
	}
}

type grid struct {
	w, h  int
	runes [][]rune
	class [][]cellClass
}

func newGrid(w, h int) *grid {
	g := &grid{w: w, h: h, runes: make([][]rune, h), class: make([][]cellClass, h)}
	for y := range h {
		g.runes[y] = []rune(strings.Repeat(" ", w))
		g.class[y] = make([]cellClass, w)
	}
	return g
}

func (g *grid) set(x, y int, r rune, c cellClass) {
	if x < 0 || y < 0 || x >= g.w || y >= g.h {
		return
	}
	g.runes[y][x] = r
	g.class[y][x] = c
}

func (g *grid) text(x, y, maxW int, s string, c cellClass) {
	i := 0
	for _, r := range s {
		if i >= maxW {
			break
		}
		g.set(x+i, y, r, c)
		i++
	}
}

// box outlines a w by h cell rectangle; degenerate sizes draw a single row or column.
func (g *grid) box(x, y, w, h int, b boxGlyphs, c cellClass) {
	if w < 1 || h < 1 {
		return
	}
	if w == 1 || h == 1 {
		for dy := range h {
			for dx := range w {
				g.set(x+dx, y+dy, b.h, c)
			}
		}
		return
	}
	for dx := 1; dx < w-1; dx++ {
		g.set(x+dx, y, b.h, c)
		g.set(x+dx, y+h-1, b.h, c)
	}
	for dy := 1; dy < h-1; dy++ {
		g.set(x, y+dy, b.v, c)
		g.set(x+w-1, y+dy, b.v, c)
	}
	g.set(x, y, b.tl, c)
	g.set(x+w-1, y, b.tr, c)
	g.set(x, y+h-1, b.bl, c)
	g.set(x+w-1, y+h-1, b.br, c)
}

func (g *grid) render() string {
	var sb strings.Builder
	for y := range g.h {
		start := 0
		for x := 1; x <= g.w; x++ {
			if x < g.w && g.class[y][x] == g.class[y][start] {
				continue
			}
			seg := string(g.runes[y][start:x])
			if c := g.class[y][start]; c == classBlank {
				sb.WriteString(seg)
			} else {
				sb.WriteString(c.style().Render(seg))
			}
			start = x
		}
		if y < g.h-1 {
			sb.WriteByte('\n')
		}
	}
	return sb.String()
}

// preview applies the in-flight drag or resize to a copy of the store so the
// view shows where things will land.
type preview struct {
	groups []model.Group
	tasks  []model.Task
	moving map[string]bool
}

func (m canvasModel) preview() preview {
	st := m.sess.Store()
	p := preview{groups: st.Groups(), tasks: st.Tasks(), moving: map[string]bool{}}

	if ids, delta, ok := m.sess.DragPreview(); ok {
		subtree := map[string]bool{}
		for _, id := range ids {
			p.moving[id] = true
			if _, ok := st.FindGroup(id); ok {
				subtree[id] = true
				for d := range containment.Descendants(id, p.groups) {
					subtree[d] = true
				}
			}
		}
		for i := range p.groups {
			if subtree[p.groups[i].ID] {
				p.groups[i].Bounds.Point = p.groups[i].Bounds.Point.Add(delta.X, delta.Y)
				p.moving[p.groups[i].ID] = true
			}
		}
		for i := range p.tasks {
			t := &p.tasks[i]
			if p.moving[t.ID] || subtree[model.ParentString(t.ParentID)] {
				t.Position = t.Position.Add(delta.X, delta.Y)
				p.moving[t.ID] = true
			}
		}
	}

	if id, b, ok := m.sess.ResizePreview(); ok {
		for i := range p.groups {
			if p.groups[i].ID == id {
				p.groups[i].Bounds = b
				p.moving[id] = true
			}
		}
	}
	return p
}

func (m canvasModel) View() string {
	if m.quitting {
		return ""
	}
	w := max(10, m.width)
	rows := m.canvasRows()
	g := newGrid(w, rows)
	p := m.preview()
	locks := m.sess.Locks()

	classFor := func(id string, base cellClass) cellClass {
		switch {
		case id == m.selected:
			return classSelected
		case p.moving[id]:
			return classPreview
		case locks.IsLocked(id):
			return classLocked
		}
		return base
	}

	// Larger groups first so nested groups draw on top.
	groups := append([]model.Group(nil), p.groups...)
	sort.SliceStable(groups, func(i, j int) bool { return groups[i].Bounds.Area() > groups[j].Bounds.Area() })
	for _, grp := range groups {
		x, y := m.cell(grp.Bounds.Point)
		cw, ch := m.cellSpan(grp.Bounds.Size)
		cw, ch = max(cw, 2), max(ch, 2)
		g.box(x, y, cw, ch, groupBox(), classFor(grp.ID, classGroup))
		label := " " + grp.Name + " "
		if grp.Role != "" {
			label = " " + grp.Name + " (" + grp.Role + ") "
		}
		titleClass := classFor(grp.ID, classGroupTitle)
		g.text(x+1, y, cw-2, label, titleClass)
	}

	for _, t := range p.tasks {
		x, y := m.cell(t.Position)
		cw, ch := m.cellSpan(t.Size)
		cw, ch = max(cw, 4), max(ch, 1)
		c := classFor(t.ID, classTask)
		title := t.Title
		if t.Done {
			title = "✓ " + title
		}
		if locks.IsLocked(t.ID) {
			title = glyphLock() + " " + title
		}
		if ch < 3 {
			g.text(x, y, cw, "["+title+"]", c)
			continue
		}
		g.box(x, y, cw, ch, taskBox(), c)
		g.text(x+1, y+1, cw-2, title, c)
	}

	parts := []string{m.headerLine(w), g.render()}
	if m.mode == modeEdit {
		parts = append(parts, renderInputLine(w, m.input.View()))
	}
	parts = append(parts, m.statusLine(w), m.helpLine(w))
	return strings.Join(parts, "\n")
}

func (m canvasModel) headerLine(w int) string {
	ws := m.workspace
	if ws == "" {
		ws = "-"
	}
	s := fmt.Sprintf("Clarity canvas  workspace=%s  zoom=%gx  cam=(%.0f,%.0f)", ws, m.zoom, m.cam.X, m.cam.Y)
	return styleHeader.Render(xansi.Truncate(s, w, "…"))
}

func (m canvasModel) statusLine(w int) string {
	st := m.sess.Machine().Current()
	state := string(st.Type)
	if !st.ExpiresAt.IsZero() {
		if left := st.ExpiresAt.Sub(m.sess.Machine().Now()); left > 0 {
			state = fmt.Sprintf("%s %.1fs", state, left.Seconds())
		}
	}
	stats := m.sess.Ingestor().Stats()
	s := fmt.Sprintf(" %s  locks=%d  remote +%d -%d", state, m.sess.Locks().Len(), stats.Accepted, stats.Dropped)
	if m.status != nil {
		if extra := strings.TrimSpace(m.status()); extra != "" {
			s += "  " + extra
		}
	}
	if sel := m.selectedTitle(); sel != "" {
		s += "  [" + sel + "]"
	}
	line := styleStatus.Render(padRight(xansi.Truncate(s, w, "…"), w))
	if m.minibuffer == "" {
		return line
	}
	mb := styleMinibuffer
	if m.minibufferWarn {
		mb = styleWarn
	}
	return mb.Render(xansi.Truncate(" "+m.minibuffer, w, "…"))
}

func (m canvasModel) helpLine(w int) string {
	var s string
	switch m.mode {
	case modeDrag:
		s = "arrows/hjkl: move  HJKL: move x10  enter: drop  esc: cancel"
	case modeResize:
		s = "arrows/hjkl: width/height  enter: apply  esc: cancel"
	case modeEdit:
		s = "enter: save  esc: cancel"
	default:
		s = "tab: select  m: move  s: resize  e: edit  n: task  g: group  R: rollover  c: center  +/-: zoom  q: quit"
	}
	return styleHelp.Render(xansi.Truncate(s, w, "…"))
}

func renderInputLine(w int, inputView string) string {
	// Inputs must stay on one visual line.
	inputView = strings.ReplaceAll(inputView, "\n", " ")
	inputView = strings.ReplaceAll(inputView, "\r", " ")
	line := lipgloss.PlaceHorizontal(
		w,
		lipgloss.Left,
		" "+inputView+" ",
		lipgloss.WithWhitespaceChars(" "),
		lipgloss.WithWhitespaceBackground(colorInputBg),
	)
	if xansi.StringWidth(line) > w {
		line = xansi.Cut(line, 0, w) + "\x1b[0m"
	}
	return line
}

func padRight(s string, w int) string {
	if n := xansi.StringWidth(s); n < w {
		return s + strings.Repeat(" ", w-n)
	}
	return s
}
