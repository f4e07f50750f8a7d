// Package opstate holds the canvas interaction state machine: the single
// answer to "what kind of canvas interaction is happening right now".
//
// Exactly one state is active. Active gestures (dragging, resizing, editing)
// can only start from idle; a second concurrent gesture is refused, not queued.
package opstate

import (
	"io"
	"log/slog"
	"slices"
	"sync"
	"time"

	"clarity-canvas/internal/clock"
)

type Type string

const (
	Idle           Type = "idle"
	Dragging       Type = "dragging"
	DragSettling   Type = "drag-settling"
	Resizing       Type = "resizing"
	ResizeSettling Type = "resize-settling"
	Editing        Type = "editing"
	SyncingLocal   Type = "syncing-local"
	SyncingRemote  Type = "syncing-remote"
)

type Origin string

const (
	OriginLocal  Origin = "local"
	OriginRemote Origin = "remote"
)

// Handle names the resize grip being dragged.
type Handle string

const (
	HandleN  Handle = "n"
	HandleNE Handle = "ne"
	HandleE  Handle = "e"
	HandleSE Handle = "se"
	HandleS  Handle = "s"
	HandleSW Handle = "sw"
	HandleW  Handle = "w"
	HandleNW Handle = "nw"
)

func (h Handle) Valid() bool {
	switch h {
	case HandleN, HandleNE, HandleE, HandleSE, HandleS, HandleSW, HandleW, HandleNW:
		return true
	}
	return false
}

const (
	DefaultDragSettle   = 3000 * time.Millisecond
	DefaultResizeSettle = 1000 * time.Millisecond
)

// State is a snapshot of the machine. Only the fields relevant to Type are set.
type State struct {
	Type      Type      `json:"type"`
	MovingIDs []string  `json:"movingIds,omitempty"`
	GroupID   string    `json:"groupId,omitempty"`
	Handle    Handle    `json:"handle,omitempty"`
	EntityID  string    `json:"entityId,omitempty"`
	ExpiresAt time.Time `json:"expiresAt,omitzero"`
}

func (s State) clone() State {
	s.MovingIDs = slices.Clone(s.MovingIDs)
	return s
}

type Transition struct {
	From State
	To   State
	At   time.Time
}

type Options struct {
	Clock        clock.Clock
	Logger       *slog.Logger
	DragSettle   time.Duration
	ResizeSettle time.Duration
}

type Machine struct {
	clk          clock.Clock
	log          *slog.Logger
	dragSettle   time.Duration
	resizeSettle time.Duration
	settle       *clock.Slot

	mu        sync.Mutex
	state     State
	listeners []func(Transition)
}

func New(opts Options) *Machine {
	clk := opts.Clock
	if clk == nil {
		clk = clock.Real()
	}
	log := opts.Logger
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	drag := opts.DragSettle
	if drag <= 0 {
		drag = DefaultDragSettle
	}
	resize := opts.ResizeSettle
	if resize <= 0 {
		resize = DefaultResizeSettle
	}
	return &Machine{
		clk:          clk,
		log:          log,
		dragSettle:   drag,
		resizeSettle: resize,
		settle:       clock.NewSlot(clk),
		state:        State{Type: Idle},
	}
}

func (m *Machine) DragSettle() time.Duration   { return m.dragSettle }
func (m *Machine) ResizeSettle() time.Duration { return m.resizeSettle }
func (m *Machine) Now() time.Time              { return m.clk.Now() }

// OnTransition registers fn to be called after every state change. Listeners
// run outside the machine lock and may query the machine.
func (m *Machine) OnTransition(fn func(Transition)) {
	if fn == nil {
		return
	}
	m.mu.Lock()
	m.listeners = append(m.listeners, fn)
	m.mu.Unlock()
}

// Current returns the active state, expiring a lapsed settle window first.
func (m *Machine) Current() State {
	m.mu.Lock()
	tr := m.expireLocked()
	st := m.state.clone()
	m.mu.Unlock()
	m.emit(tr)
	return st
}

func (m *Machine) CurrentType() Type { return m.Current().Type }

func (m *Machine) StartDrag(ids []string) bool {
	set := normalizeIDs(ids)
	if len(set) == 0 {
		return false
	}
	return m.start(State{Type: Dragging, MovingIDs: set})
}

// EndDrag moves a drag of exactly ids into its settle window.
func (m *Machine) EndDrag(ids []string) bool {
	set := normalizeIDs(ids)
	m.mu.Lock()
	if m.state.Type != Dragging || !slices.Equal(m.state.MovingIDs, set) {
		cur := m.state.Type
		m.mu.Unlock()
		m.log.Debug("opstate: end drag refused", "state", cur, "ids", set)
		return false
	}
	tr := m.setLocked(State{
		Type:      DragSettling,
		MovingIDs: set,
		ExpiresAt: m.clk.Now().Add(m.dragSettle),
	})
	m.mu.Unlock()
	m.armSettle(m.dragSettle, DragSettling)
	m.emit(tr)
	return true
}

func (m *Machine) StartResize(groupID string, handle Handle) bool {
	if groupID == "" {
		return false
	}
	return m.start(State{Type: Resizing, GroupID: groupID, Handle: handle})
}

func (m *Machine) EndResize(groupID string) bool {
	m.mu.Lock()
	if m.state.Type != Resizing || m.state.GroupID != groupID {
		cur := m.state.Type
		m.mu.Unlock()
		m.log.Debug("opstate: end resize refused", "state", cur, "group", groupID)
		return false
	}
	tr := m.setLocked(State{
		Type:      ResizeSettling,
		GroupID:   groupID,
		ExpiresAt: m.clk.Now().Add(m.resizeSettle),
	})
	m.mu.Unlock()
	m.armSettle(m.resizeSettle, ResizeSettling)
	m.emit(tr)
	return true
}

// SetEditing enters editing unconditionally. An open editor always wins over
// whatever gesture or settle window was in progress.
func (m *Machine) SetEditing(entityID string) {
	m.settle.Cancel()
	m.mu.Lock()
	tr := m.setLocked(State{Type: Editing, EntityID: entityID})
	m.mu.Unlock()
	m.emit(tr)
}

func (m *Machine) ClearEditing() {
	m.mu.Lock()
	if m.state.Type != Editing {
		m.mu.Unlock()
		return
	}
	tr := m.setLocked(State{Type: Idle})
	m.mu.Unlock()
	m.emit(tr)
}

// SetSyncing marks a bulk reconciliation pass. It is allowed from idle or from
// another syncing state; sync passes are serialized by the caller.
func (m *Machine) SetSyncing(origin Origin) bool {
	next := SyncingLocal
	if origin == OriginRemote {
		next = SyncingRemote
	}
	m.mu.Lock()
	expired := m.expireLocked()
	switch m.state.Type {
	case Idle, SyncingLocal, SyncingRemote:
	default:
		cur := m.state.Type
		m.mu.Unlock()
		m.emit(expired)
		m.log.Debug("opstate: syncing refused", "state", cur, "origin", origin)
		return false
	}
	tr := m.setLocked(State{Type: next})
	m.mu.Unlock()
	m.emit(expired)
	m.emit(tr)
	return true
}

func (m *Machine) ClearSyncing() {
	m.mu.Lock()
	if m.state.Type != SyncingLocal && m.state.Type != SyncingRemote {
		m.mu.Unlock()
		return
	}
	tr := m.setLocked(State{Type: Idle})
	m.mu.Unlock()
	m.emit(tr)
}

// Reset returns to idle and drops any pending settle callback.
func (m *Machine) Reset() {
	m.settle.Cancel()
	m.mu.Lock()
	tr := m.setLocked(State{Type: Idle})
	m.mu.Unlock()
	m.emit(tr)
}

func (m *Machine) IsIdle() bool     { return m.CurrentType() == Idle }
func (m *Machine) IsDragging() bool { return m.CurrentType() == Dragging }
func (m *Machine) IsResizing() bool { return m.CurrentType() == Resizing }
func (m *Machine) IsEditing() bool  { return m.CurrentType() == Editing }

func (m *Machine) IsSettling() bool {
	t := m.CurrentType()
	return t == DragSettling || t == ResizeSettling
}

// IsLocked is true for every state except idle and the syncing states.
func (m *Machine) IsLocked() bool {
	switch m.CurrentType() {
	case Idle, SyncingLocal, SyncingRemote:
		return false
	}
	return true
}

func (m *Machine) CanAcceptRemoteUpdate() bool {
	return !m.IsLocked()
}

// Involves reports whether entityID is the subject of the current state.
func (m *Machine) Involves(entityID string) bool {
	st := m.Current()
	switch st.Type {
	case Dragging, DragSettling:
		_, ok := slices.BinarySearch(st.MovingIDs, entityID)
		return ok
	case Resizing, ResizeSettling:
		return st.GroupID == entityID
	case Editing:
		return st.EntityID == entityID
	}
	return false
}

func (m *Machine) start(next State) bool {
	m.mu.Lock()
	expired := m.expireLocked()
	if m.state.Type != Idle {
		cur := m.state.Type
		m.mu.Unlock()
		m.emit(expired)
		m.log.Debug("opstate: gesture refused", "state", cur, "want", next.Type)
		return false
	}
	tr := m.setLocked(next)
	m.mu.Unlock()
	m.emit(expired)
	m.emit(tr)
	return true
}

func (m *Machine) armSettle(d time.Duration, want Type) {
	m.settle.Schedule(d, func() {
		m.mu.Lock()
		if m.state.Type != want {
			m.mu.Unlock()
			return
		}
		tr := m.setLocked(State{Type: Idle})
		m.mu.Unlock()
		m.emit(tr)
	})
}

// expireLocked applies the lazy settle expiry. Callers hold m.mu.
func (m *Machine) expireLocked() *Transition {
	switch m.state.Type {
	case DragSettling, ResizeSettling:
	default:
		return nil
	}
	if !m.clk.Now().After(m.state.ExpiresAt) {
		return nil
	}
	return m.setLocked(State{Type: Idle})
}

func (m *Machine) setLocked(next State) *Transition {
	tr := &Transition{From: m.state, To: next.clone(), At: m.clk.Now()}
	m.state = next
	return tr
}

func (m *Machine) emit(tr *Transition) {
	if tr == nil {
		return
	}
	m.log.Debug("opstate: transition", "from", tr.From.Type, "to", tr.To.Type)
	m.mu.Lock()
	ls := slices.Clone(m.listeners)
	m.mu.Unlock()
	for _, fn := range ls {
		fn(*tr)
	}
}

func normalizeIDs(ids []string) []string {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id != "" {
			out = append(out, id)
		}
	}
	slices.Sort(out)
	return slices.Compact(out)
}
