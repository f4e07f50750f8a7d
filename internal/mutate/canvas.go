package mutate

import (
	"strings"

	"clarity-canvas/internal/containment"
	"clarity-canvas/internal/model"
	"clarity-canvas/internal/store"
)

type TaskMoveResult struct {
	Task         model.Task
	PrevParentID string
	Changed      bool
	EventPayload map[string]any
}

// MoveTask sets the task's absolute position and re-derives its parent from
// containment. The previous parent is kept while it still contains the task.
//
// Callers are responsible for persisting and appending the position event.
func MoveTask(st store.NodeStore, taskID string, pos model.Point) (TaskMoveResult, error) {
	return placeTask(st, taskID, pos, nil, false)
}

// PlaceTask applies a position issued by another replica. recorded is the
// parent that replica recorded and stands in for the local record when
// containment is re-derived, so both sides apply the stability rule to the
// same parent.
func PlaceTask(st store.NodeStore, taskID string, pos model.Point, recorded *string) (TaskMoveResult, error) {
	return placeTask(st, taskID, pos, recorded, true)
}

func placeTask(st store.NodeStore, taskID string, pos model.Point, recorded *string, useRecorded bool) (TaskMoveResult, error) {
	taskID = strings.TrimSpace(taskID)
	t, ok := st.FindTask(taskID)
	if !ok {
		return TaskMoveResult{}, NotFoundError{Kind: model.EntityKindTask, ID: taskID}
	}
	if err := (model.Rect{Point: pos, Size: t.Size}).Validate(); err != nil {
		return TaskMoveResult{}, err
	}

	prev := model.ParentString(t.ParentID)
	next := t
	next.Position = pos
	if useRecorded {
		next.ParentID = recorded
	}
	parent := containment.ResolveParent(containment.NodeFromTask(next), st.Groups())
	if pos == t.Position && parent == prev {
		return TaskMoveResult{Task: t, PrevParentID: prev}, nil
	}
	if err := st.UpdateTaskPosition(taskID, pos, model.ParentPtr(parent)); err != nil {
		return TaskMoveResult{}, err
	}
	next.ParentID = model.ParentPtr(parent)
	return TaskMoveResult{
		Task:         next,
		PrevParentID: prev,
		Changed:      true,
		EventPayload: positionPayload(pos, parent),
	}, nil
}

type GroupChangeResult struct {
	Group        model.Group
	PrevParentID string
	// Carried lists the descendant groups and member tasks translated with a move.
	Carried []string
	// Reparented lists tasks whose derived parent changed.
	Reparented   []string
	Changed      bool
	EventPayload map[string]any
}

// MoveGroup moves a group to pos and carries its subtree along: descendant
// groups and tasks recorded under the subtree are translated by the same delta.
func MoveGroup(st store.NodeStore, groupID string, pos model.Point) (GroupChangeResult, error) {
	groupID = strings.TrimSpace(groupID)
	groups := st.Groups()
	g, ok := findGroup(groups, groupID)
	if !ok {
		return GroupChangeResult{}, NotFoundError{Kind: model.EntityKindGroup, ID: groupID}
	}
	dx, dy := pos.X-g.Bounds.X, pos.Y-g.Bounds.Y
	if dx == 0 && dy == 0 {
		return GroupChangeResult{Group: g, PrevParentID: model.ParentString(g.ParentID)}, nil
	}

	next := g.Bounds
	next.Point = pos
	if err := next.Validate(); err != nil {
		return GroupChangeResult{}, err
	}
	if err := st.UpdateGroupBounds(groupID, next); err != nil {
		return GroupChangeResult{}, err
	}

	subtree := containment.Descendants(groupID, groups)
	var carried []string
	for _, d := range groups {
		if !subtree[d.ID] {
			continue
		}
		b := d.Bounds
		b.Point = b.Point.Add(dx, dy)
		if err := st.UpdateGroupBounds(d.ID, b); err != nil {
			return GroupChangeResult{}, err
		}
		carried = append(carried, d.ID)
	}
	subtree[groupID] = true
	for _, t := range st.Tasks() {
		if !subtree[model.ParentString(t.ParentID)] {
			continue
		}
		if err := st.UpdateTaskPosition(t.ID, t.Position.Add(dx, dy), t.ParentID); err != nil {
			return GroupChangeResult{}, err
		}
		carried = append(carried, t.ID)
	}

	res, err := settleGroup(st, groupID)
	if err != nil {
		return GroupChangeResult{}, err
	}
	res.Carried = carried
	res.EventPayload = map[string]any{
		"bounds":   boundsPayload(res.Group.Bounds),
		"parentId": nullable(model.ParentString(res.Group.ParentID)),
	}
	return res, nil
}

// ResizeGroup replaces a group's bounds. Tasks are re-resolved afterwards so
// shrinking a group releases tasks it no longer contains and growing it adopts
// tasks it now covers.
func ResizeGroup(st store.NodeStore, groupID string, bounds model.Rect) (GroupChangeResult, error) {
	groupID = strings.TrimSpace(groupID)
	if err := bounds.Validate(); err != nil {
		return GroupChangeResult{}, err
	}
	g, ok := st.FindGroup(groupID)
	if !ok {
		return GroupChangeResult{}, NotFoundError{Kind: model.EntityKindGroup, ID: groupID}
	}
	if g.Bounds == bounds {
		return GroupChangeResult{Group: g, PrevParentID: model.ParentString(g.ParentID)}, nil
	}
	if err := st.UpdateGroupBounds(groupID, bounds); err != nil {
		return GroupChangeResult{}, err
	}
	res, err := settleGroup(st, groupID)
	if err != nil {
		return GroupChangeResult{}, err
	}
	res.EventPayload = map[string]any{
		"bounds":   boundsPayload(bounds),
		"parentId": nullable(model.ParentString(res.Group.ParentID)),
	}
	return res, nil
}

// ReparentGroup sets a group's recorded parent explicitly. parentID "" moves
// the group to the root.
func ReparentGroup(st store.NodeStore, groupID, parentID string) (GroupChangeResult, error) {
	groupID = strings.TrimSpace(groupID)
	parentID = strings.TrimSpace(parentID)
	groups := st.Groups()
	g, ok := findGroup(groups, groupID)
	if !ok {
		return GroupChangeResult{}, NotFoundError{Kind: model.EntityKindGroup, ID: groupID}
	}
	prev := model.ParentString(g.ParentID)
	if err := checkGroupParent(groups, groupID, parentID); err != nil {
		return GroupChangeResult{}, err
	}
	if prev == parentID {
		return GroupChangeResult{Group: g, PrevParentID: prev}, nil
	}
	if err := st.UpdateGroupParent(groupID, model.ParentPtr(parentID)); err != nil {
		return GroupChangeResult{}, err
	}
	g.ParentID = model.ParentPtr(parentID)
	return GroupChangeResult{
		Group:        g,
		PrevParentID: prev,
		Changed:      true,
		EventPayload: map[string]any{"parentId": nullable(parentID)},
	}, nil
}

// PlaceGroup applies bounds and a recorded parent issued by another replica.
// A pure translation carries the subtree like MoveGroup; the carried nodes'
// own events then land on positions already applied. A parent change is held
// to the ReparentGroup rules.
func PlaceGroup(st store.NodeStore, groupID string, bounds model.Rect, recorded *string) (GroupChangeResult, error) {
	groupID = strings.TrimSpace(groupID)
	if err := bounds.Validate(); err != nil {
		return GroupChangeResult{}, err
	}
	groups := st.Groups()
	g, ok := findGroup(groups, groupID)
	if !ok {
		return GroupChangeResult{}, NotFoundError{Kind: model.EntityKindGroup, ID: groupID}
	}
	if parent := model.ParentString(recorded); parent != model.ParentString(g.ParentID) {
		if err := checkGroupParent(groups, groupID, parent); err != nil {
			return GroupChangeResult{}, err
		}
		if err := st.UpdateGroupParent(groupID, model.ParentPtr(parent)); err != nil {
			return GroupChangeResult{}, err
		}
	}
	if bounds.Size == g.Bounds.Size && bounds.Point != g.Bounds.Point {
		return MoveGroup(st, groupID, bounds.Point)
	}
	return ResizeGroup(st, groupID, bounds)
}

// UpsertGroup stores a whole group record issued by another replica and
// re-derives task parents. The record's parent is checked like ReparentGroup
// whenever it differs from the stored one.
func UpsertGroup(st store.NodeStore, g model.Group) error {
	g.ID = strings.TrimSpace(g.ID)
	if err := g.Bounds.Validate(); err != nil {
		return err
	}
	parent := model.ParentString(g.ParentID)
	if cur, ok := st.FindGroup(g.ID); !ok || parent != model.ParentString(cur.ParentID) {
		if err := checkGroupParent(st.Groups(), g.ID, parent); err != nil {
			return err
		}
	}
	if err := st.UpsertGroup(g); err != nil {
		return err
	}
	_, err := ReresolveTasks(st)
	return err
}

// ReresolveTasks re-derives every task's parent from its current position and
// writes the ones that changed. It returns the changed task ids.
func ReresolveTasks(st store.NodeStore) ([]string, error) {
	groups := st.Groups()
	var changed []string
	for _, t := range st.Tasks() {
		parent := containment.ResolveParent(containment.NodeFromTask(t), groups)
		if parent == model.ParentString(t.ParentID) {
			continue
		}
		if err := st.UpdateTaskPosition(t.ID, t.Position, model.ParentPtr(parent)); err != nil {
			return changed, err
		}
		changed = append(changed, t.ID)
	}
	return changed, nil
}

// settleGroup re-derives the group's own parent and then every task's parent
// after the group's geometry changed.
func settleGroup(st store.NodeStore, groupID string) (GroupChangeResult, error) {
	groups := st.Groups()
	g, ok := findGroup(groups, groupID)
	if !ok {
		return GroupChangeResult{}, NotFoundError{Kind: model.EntityKindGroup, ID: groupID}
	}
	prev := model.ParentString(g.ParentID)
	if parent := containment.ResolveGroupParent(g, groups); parent != prev {
		if err := st.UpdateGroupParent(groupID, model.ParentPtr(parent)); err != nil {
			return GroupChangeResult{}, err
		}
		g.ParentID = model.ParentPtr(parent)
	}
	reparented, err := ReresolveTasks(st)
	if err != nil {
		return GroupChangeResult{}, err
	}
	return GroupChangeResult{Group: g, PrevParentID: prev, Reparented: reparented, Changed: true}, nil
}

// checkGroupParent reports whether parentID may become groupID's parent: it
// must exist and must not be the group or one of its descendants.
func checkGroupParent(groups []model.Group, groupID, parentID string) error {
	if parentID == "" {
		return nil
	}
	if _, ok := findGroup(groups, parentID); !ok {
		return NotFoundError{Kind: model.EntityKindGroup, ID: parentID}
	}
	if parentID == groupID || containment.IsAncestor(groupID, parentID, groups) {
		return ErrCycle
	}
	return nil
}

func findGroup(groups []model.Group, id string) (model.Group, bool) {
	for _, g := range groups {
		if g.ID == id {
			return g, true
		}
	}
	return model.Group{}, false
}

func positionPayload(pos model.Point, parentID string) map[string]any {
	return map[string]any{
		"x":        pos.X,
		"y":        pos.Y,
		"parentId": nullable(parentID),
	}
}

func boundsPayload(r model.Rect) map[string]any {
	return map[string]any{"x": r.X, "y": r.Y, "width": r.Width, "height": r.Height}
}

func nullable(id string) any {
	if id == "" {
		return nil
	}
	return id
}
