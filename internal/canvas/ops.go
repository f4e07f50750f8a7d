package canvas

import (
	"strings"

	"clarity-canvas/internal/containment"
	"clarity-canvas/internal/model"
	"clarity-canvas/internal/mutate"
	"clarity-canvas/internal/realtime"
	"clarity-canvas/internal/store"
)

// The operations below are one-shot edits outside any pointer gesture, as
// issued by the CLI. They are refused while a gesture is active or the entity
// is locked.

func (s *Session) CreateTask(title string, pos model.Point, inbox bool) (model.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, err := store.NewID("task")
	if err != nil {
		return model.Task{}, err
	}
	t := model.Task{
		ID:        id,
		Title:     strings.TrimSpace(title),
		Position:  pos,
		Size:      model.Size{Width: model.DefaultTaskWidth, Height: model.DefaultTaskHeight},
		IsInInbox: inbox,
	}
	if err := t.Bounds().Validate(); err != nil {
		return model.Task{}, err
	}
	t.ParentID = model.ParentPtr(containment.ResolveParent(containment.NodeFromTask(t), s.st.Groups()))
	if err := s.st.UpsertTask(t); err != nil {
		return model.Task{}, err
	}
	t, _ = s.st.FindTask(id)
	s.emitTask(t)
	s.changed()
	return t, nil
}

func (s *Session) CreateGroup(name, role string, bounds model.Rect) (model.Group, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := bounds.Validate(); err != nil {
		return model.Group{}, err
	}
	id, err := store.NewID("grp")
	if err != nil {
		return model.Group{}, err
	}
	g := model.Group{ID: id, Name: strings.TrimSpace(name), Role: strings.TrimSpace(role), Bounds: bounds}
	g.ParentID = model.ParentPtr(containment.ResolveGroupParent(g, s.st.Groups()))
	if err := s.st.UpsertGroup(g); err != nil {
		return model.Group{}, err
	}
	if _, err := mutate.ReresolveTasks(s.st); err != nil {
		return model.Group{}, err
	}
	g, _ = s.st.FindGroup(id)
	s.emitGroup(g)
	s.changed()
	return g, nil
}

func (s *Session) MoveTask(id string, pos model.Point) (mutate.TaskMoveResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.gate.ShouldAcceptRemoteUpdate(id) {
		return mutate.TaskMoveResult{}, mutate.ErrRefused
	}
	res, err := mutate.MoveTask(s.st, id, pos)
	if err != nil || !res.Changed {
		return res, err
	}
	s.locks.Lock(id, model.EntityKindTask)
	s.emitPosition(id, res.Task.Position, res.Task.ParentID)
	s.changed()
	return res, nil
}

func (s *Session) MoveGroup(id string, pos model.Point) (mutate.GroupChangeResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.gate.ShouldAcceptRemoteUpdate(id) {
		return mutate.GroupChangeResult{}, mutate.ErrRefused
	}
	res, err := mutate.MoveGroup(s.st, id, pos)
	if err != nil || !res.Changed {
		return res, err
	}
	ttl := s.locks.TTL(model.EntityKindGroup)
	s.locks.Lock(id, model.EntityKindGroup)
	s.emitGroupBounds(res.Group)
	for _, cid := range res.Carried {
		s.emitCarried(cid, ttl)
	}
	s.changed()
	return res, nil
}

func (s *Session) ResizeGroup(id string, bounds model.Rect) (mutate.GroupChangeResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.gate.ShouldAcceptRemoteUpdate(id) {
		return mutate.GroupChangeResult{}, mutate.ErrRefused
	}
	res, err := mutate.ResizeGroup(s.st, id, bounds)
	if err != nil || !res.Changed {
		return res, err
	}
	s.locks.Lock(id, model.EntityKindGroup)
	s.emitGroupBounds(res.Group)
	s.changed()
	return res, nil
}

func (s *Session) ReparentGroup(id, parentID string) (mutate.GroupChangeResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.gate.ShouldAcceptRemoteUpdate(id) {
		return mutate.GroupChangeResult{}, mutate.ErrRefused
	}
	res, err := mutate.ReparentGroup(s.st, id, parentID)
	if err != nil || !res.Changed {
		return res, err
	}
	s.emit(realtime.GroupParent, id, func(ev *realtime.Event) {
		ev.ParentID = res.Group.ParentID
	})
	s.changed()
	return res, nil
}

func (s *Session) emitTask(t model.Task) {
	s.emit(realtime.TaskUpsert, t.ID, func(ev *realtime.Event) {
		ev.Task = &t
	})
}

func (s *Session) emitGroup(g model.Group) {
	s.emit(realtime.GroupUpsert, g.ID, func(ev *realtime.Event) {
		ev.Group = &g
	})
}
