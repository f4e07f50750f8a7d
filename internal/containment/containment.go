// Package containment decides which group owns a node from raw coordinates.
//
// Results are a derived projection. The authoritative parent lives on the
// task or group record; resolution only decides whether to change it.
package containment

import (
	"fmt"
	"sort"

	"clarity-canvas/internal/model"
)

// Node is a task or group as the resolver sees it. Position is absolute.
type Node struct {
	ID              string
	Position        model.Point
	Width           float64
	Height          float64
	CurrentParentID string
}

func NodeFromTask(t model.Task) Node {
	return Node{
		ID:              t.ID,
		Position:        t.Position,
		Width:           t.Size.Width,
		Height:          t.Size.Height,
		CurrentParentID: model.ParentString(t.ParentID),
	}
}

func NodeFromGroup(g model.Group) Node {
	return Node{
		ID:              g.ID,
		Position:        g.Bounds.Point,
		Width:           g.Bounds.Width,
		Height:          g.Bounds.Height,
		CurrentParentID: model.ParentString(g.ParentID),
	}
}

func (n Node) Center() model.Point {
	return model.Point{X: n.Position.X + n.Width/2, Y: n.Position.Y + n.Height/2}
}

// ResolveParent returns the id of the group that should own node, or "" for
// the canvas root.
//
// The node's center is tested against each group, edges included. When several
// groups match, the recorded parent wins if it still matches; otherwise the
// smallest area wins, ties broken by candidate order.
func ResolveParent(node Node, groups []model.Group) string {
	mustValidNode(node)
	return pick(node, matching(node.Center(), node.ID, groups, nil))
}

// ResolveGroupParent resolves the parent of group g, never returning g itself
// or one of its descendants.
func ResolveGroupParent(g model.Group, groups []model.Group) string {
	node := NodeFromGroup(g)
	mustValidNode(node)
	excluded := Descendants(g.ID, groups)
	excluded[g.ID] = true
	return pick(node, matching(node.Center(), g.ID, groups, excluded))
}

// Candidates returns every group containing p, innermost first.
func Candidates(p model.Point, groups []model.Group) []model.Group {
	return matching(p, "", groups, nil)
}

func matching(p model.Point, selfID string, groups []model.Group, excluded map[string]bool) []model.Group {
	out := make([]model.Group, 0, 4)
	for _, g := range groups {
		mustValidBounds(g)
		if g.ID == selfID || excluded[g.ID] {
			continue
		}
		if g.Bounds.Contains(p) {
			out = append(out, g)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Bounds.Area() < out[j].Bounds.Area()
	})
	return out
}

func pick(node Node, matches []model.Group) string {
	if len(matches) == 0 {
		return ""
	}
	if node.CurrentParentID != "" {
		for _, g := range matches {
			if g.ID == node.CurrentParentID {
				return g.ID
			}
		}
	}
	return matches[0].ID
}

// Negative sizes mean upstream data corruption, not a race.
func mustValidBounds(g model.Group) {
	if err := g.Bounds.Validate(); err != nil {
		panic(fmt.Sprintf("containment: group %s: %v", g.ID, err))
	}
}

func mustValidNode(n Node) {
	r := model.Rect{Point: n.Position, Size: model.Size{Width: n.Width, Height: n.Height}}
	if err := r.Validate(); err != nil {
		panic(fmt.Sprintf("containment: node %s: %v", n.ID, err))
	}
}
