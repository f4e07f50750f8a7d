package mutate

import (
	"errors"
	"strings"

	"clarity-canvas/internal/containment"
	"clarity-canvas/internal/model"
)

// Batch re-containment reasons.
const (
	ReasonSuccess = "success"
	ReasonNoTasks = "no-tasks"
	// ReasonBusy is reported when a gesture is active and the pass did not start.
	ReasonBusy = "busy"
)

// MissingGroupReason names the reason reported when the group for role is absent.
func MissingGroupReason(role string) string {
	return "no-" + strings.ToLower(strings.TrimSpace(role)) + "-group"
}

// Layout is the top-left flow layout used to place tasks inside a group.
type Layout struct {
	Padding    float64
	Header     float64
	RowSpacing float64
}

func DefaultLayout() Layout {
	return Layout{Padding: 20, Header: 60, RowSpacing: 70}
}

// Slot returns the absolute position of the i-th row inside g.
func (l Layout) Slot(g model.Group, i int) model.Point {
	return model.Point{
		X: g.Bounds.X + l.Padding,
		Y: g.Bounds.Y + l.Header + l.Padding + float64(i)*l.RowSpacing,
	}
}

// Reader is the read side the batch operation needs.
type Reader interface {
	Groups() []model.Group
	Tasks() []model.Task
}

// PositionWriter is the normal task update path. Writes may be refused with
// ErrRefused; refused tasks are skipped, never retried.
type PositionWriter interface {
	UpdateTaskPosition(id string, pos model.Point, parentID *string) error
}

type RolloverResult struct {
	Reason     string   `json:"reason"`
	MovedCount int      `json:"movedCount"`
	Skipped    int      `json:"skipped,omitempty"`
	Moved      []string `json:"moved,omitempty"`
}

// MoveGroupMembersToGroup moves every task resolving into the group named by
// fromRole into the group named by toRole, stacking them below the
// destination's existing members. Inbox tasks are never moved.
//
// A missing group yields a reason and no writes. Only unexpected write
// failures are returned as errors.
func MoveGroupMembersToGroup(r Reader, w PositionWriter, fromRole, toRole string, layout Layout) (RolloverResult, error) {
	groups := r.Groups()
	src, ok := model.GroupByRole(groups, fromRole)
	if !ok {
		return RolloverResult{Reason: MissingGroupReason(fromRole)}, nil
	}
	dst, ok := model.GroupByRole(groups, toRole)
	if !ok {
		return RolloverResult{Reason: MissingGroupReason(toRole)}, nil
	}

	var (
		matched  []model.Task
		existing int
	)
	for _, t := range r.Tasks() {
		if t.IsInInbox {
			continue
		}
		switch containment.ResolveParent(containment.NodeFromTask(t), groups) {
		case src.ID:
			matched = append(matched, t)
		case dst.ID:
			existing++
		}
	}
	if len(matched) == 0 || src.ID == dst.ID {
		return RolloverResult{Reason: ReasonNoTasks}, nil
	}

	res := RolloverResult{Reason: ReasonSuccess}
	row := existing
	for _, t := range matched {
		pos := layout.Slot(dst, row)
		node := containment.NodeFromTask(t)
		node.Position = pos
		node.CurrentParentID = dst.ID
		parent := containment.ResolveParent(node, groups)

		if err := w.UpdateTaskPosition(t.ID, pos, model.ParentPtr(parent)); err != nil {
			if errors.Is(err, ErrRefused) {
				res.Skipped++
				continue
			}
			return res, err
		}
		res.MovedCount++
		res.Moved = append(res.Moved, t.ID)
		row++
	}
	return res, nil
}
