package canvas

import (
	"errors"
	"strings"
	"time"

	"clarity-canvas/internal/model"
	"clarity-canvas/internal/mutate"
	"clarity-canvas/internal/opstate"
)

// ErrNoGesture is returned when a gesture step has no gesture to act on.
var ErrNoGesture = errors.New("no gesture in progress")

// BeginDrag starts dragging ids, which may mix tasks and groups. It is
// refused unless the canvas is idle and every id exists.
func (s *Session) BeginDrag(ids []string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids = cleanIDs(ids)
	d := &dragState{ids: ids, tasks: map[string]model.Point{}, groups: map[string]model.Point{}}
	for _, id := range ids {
		if t, ok := s.st.FindTask(id); ok {
			d.tasks[id] = t.Position
			continue
		}
		if g, ok := s.st.FindGroup(id); ok {
			d.groups[id] = g.Bounds.Point
			continue
		}
		return false
	}
	if !s.machine.StartDrag(ids) {
		return false
	}
	s.drag = d
	return true
}

// DragBy accumulates a pointer delta. Nothing is written until EndDrag.
func (s *Session) DragBy(dx, dy float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.drag == nil || !s.machine.IsDragging() {
		return ErrNoGesture
	}
	s.drag.delta = s.drag.delta.Add(dx, dy)
	return nil
}

// DragPreview returns the ids being dragged and the accumulated offset.
func (s *Session) DragPreview() ([]string, model.Point, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.drag == nil {
		return nil, model.Point{}, false
	}
	return append([]string(nil), s.drag.ids...), s.drag.delta, true
}

// EndDrag commits the drag: groups move first and carry their subtree, then
// the remaining tasks move and re-resolve their parent. Every written entity
// is locked for the drag settle window. It returns the written ids.
func (s *Session) EndDrag() ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d := s.drag
	if d == nil {
		return nil, ErrNoGesture
	}
	s.drag = nil
	if !s.machine.EndDrag(d.ids) {
		return nil, ErrNoGesture
	}
	if d.delta == (model.Point{}) {
		return nil, nil
	}

	settle := s.machine.DragSettle()
	var written []string
	carried := map[string]bool{}
	for _, id := range d.ids {
		origin, ok := d.groups[id]
		if !ok || carried[id] {
			continue
		}
		res, err := mutate.MoveGroup(s.st, id, origin.Add(d.delta.X, d.delta.Y))
		if err != nil {
			return written, s.partialDrag(written, err)
		}
		s.locks.LockFor(id, model.EntityKindGroup, settle)
		s.emitGroupBounds(res.Group)
		written = append(written, id)
		for _, cid := range res.Carried {
			carried[cid] = true
			written = append(written, cid)
			s.emitCarried(cid, settle)
		}
	}
	for _, id := range d.ids {
		origin, ok := d.tasks[id]
		if !ok || carried[id] {
			continue
		}
		res, err := mutate.MoveTask(s.st, id, origin.Add(d.delta.X, d.delta.Y))
		if err != nil {
			return written, s.partialDrag(written, err)
		}
		s.locks.LockFor(id, model.EntityKindTask, settle)
		s.emitPosition(id, res.Task.Position, res.Task.ParentID)
		written = append(written, id)
	}
	s.changed()
	return written, nil
}

// partialDrag still hands the entities written before err to the saver.
func (s *Session) partialDrag(written []string, err error) error {
	if len(written) > 0 {
		s.changed()
	}
	return err
}

func (s *Session) emitCarried(id string, settle time.Duration) {
	if t, ok := s.st.FindTask(id); ok {
		s.locks.LockFor(id, model.EntityKindTask, settle)
		s.emitPosition(id, t.Position, t.ParentID)
		return
	}
	if g, ok := s.st.FindGroup(id); ok {
		s.locks.LockFor(id, model.EntityKindGroup, settle)
		s.emitGroupBounds(g)
	}
}

// CancelDrag abandons a drag without writing anything.
func (s *Session) CancelDrag() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.drag == nil || !s.machine.IsDragging() {
		return false
	}
	s.drag = nil
	s.machine.Reset()
	return true
}

// BeginResize starts resizing groupID from handle.
func (s *Session) BeginResize(groupID string, handle opstate.Handle) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !handle.Valid() {
		return false
	}
	g, ok := s.st.FindGroup(groupID)
	if !ok {
		return false
	}
	if !s.machine.StartResize(groupID, handle) {
		return false
	}
	s.resize = &resizeState{groupID: groupID, bounds: g.Bounds}
	return true
}

// ResizeTo records the bounds the group should end up with.
func (s *Session) ResizeTo(bounds model.Rect) error {
	if err := bounds.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.resize == nil || !s.machine.IsResizing() {
		return ErrNoGesture
	}
	s.resize.bounds = bounds
	return nil
}

// ResizePreview returns the group being resized and its pending bounds.
func (s *Session) ResizePreview() (string, model.Rect, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.resize == nil {
		return "", model.Rect{}, false
	}
	return s.resize.groupID, s.resize.bounds, true
}

// EndResize commits the pending bounds and locks the group for the resize
// settle window.
func (s *Session) EndResize() (mutate.GroupChangeResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r := s.resize
	if r == nil {
		return mutate.GroupChangeResult{}, ErrNoGesture
	}
	s.resize = nil
	if !s.machine.EndResize(r.groupID) {
		return mutate.GroupChangeResult{}, ErrNoGesture
	}
	res, err := mutate.ResizeGroup(s.st, r.groupID, r.bounds)
	if err != nil || !res.Changed {
		return res, err
	}
	s.locks.LockFor(r.groupID, model.EntityKindGroup, s.machine.ResizeSettle())
	s.emitGroupBounds(res.Group)
	s.changed()
	return res, nil
}

// BeginEdit opens the inline editor on a task or group. Editing always wins
// over any gesture in progress, which is abandoned.
func (s *Session) BeginEdit(entityID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.st.FindTask(entityID); !ok {
		if _, ok := s.st.FindGroup(entityID); !ok {
			return false
		}
	}
	s.drag = nil
	s.resize = nil
	s.machine.SetEditing(entityID)
	return true
}

// CommitEdit renames the entity being edited and closes the editor.
func (s *Session) CommitEdit(title string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.machine.Current()
	if st.Type != opstate.Editing {
		return ErrNoGesture
	}
	defer s.machine.ClearEditing()

	title = strings.TrimSpace(title)
	if t, ok := s.st.FindTask(st.EntityID); ok {
		if t.Title == title {
			return nil
		}
		t.Title = title
		if err := s.st.UpsertTask(t); err != nil {
			return err
		}
		s.emitTask(t)
		s.changed()
		return nil
	}
	if g, ok := s.st.FindGroup(st.EntityID); ok {
		if g.Name == title {
			return nil
		}
		g.Name = title
		if err := s.st.UpsertGroup(g); err != nil {
			return err
		}
		s.emitGroup(g)
		s.changed()
		return nil
	}
	return mutate.NotFoundError{Kind: model.EntityKindTask, ID: st.EntityID}
}

func (s *Session) CancelEdit() {
	s.machine.ClearEditing()
}
