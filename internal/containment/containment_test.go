package containment

import (
	"math"
	"math/rand"
	"testing"

	"clarity-canvas/internal/model"
)

func grp(id string, x, y, w, h float64, parent string) model.Group {
	return model.Group{
		ID:       id,
		Name:     id,
		Bounds:   model.Rect{Point: model.Point{X: x, Y: y}, Size: model.Size{Width: w, Height: h}},
		ParentID: model.ParentPtr(parent),
	}
}

// nodeAt returns a zero-size node whose center is (x, y).
func nodeAt(id string, x, y float64, parent string) Node {
	return Node{ID: id, Position: model.Point{X: x, Y: y}, CurrentParentID: parent}
}

func TestResolveParent_OutsideAllGroupsIsRoot(t *testing.T) {
	groups := []model.Group{grp("today", 0, 0, 200, 200, ""), grp("overdue", 500, 0, 300, 400, "")}
	if got := ResolveParent(nodeAt("t", 900, 900, ""), groups); got != "" {
		t.Fatalf("expected root; got %q", got)
	}
	if got := ResolveParent(nodeAt("t", 1, 1, ""), nil); got != "" {
		t.Fatalf("expected root with no groups; got %q", got)
	}
}

func TestResolveParent_UsesCenterNotCorner(t *testing.T) {
	groups := []model.Group{grp("g", 0, 0, 100, 100, "")}
	// Top-left inside, center outside.
	n := Node{ID: "t", Position: model.Point{X: 80, Y: 80}, Width: 60, Height: 60}
	if got := ResolveParent(n, groups); got != "" {
		t.Fatalf("expected root when center is outside; got %q", got)
	}
	// Top-left outside, center inside.
	n = Node{ID: "t", Position: model.Point{X: -20, Y: -20}, Width: 60, Height: 60}
	if got := ResolveParent(n, groups); got != "g" {
		t.Fatalf("expected g when center is inside; got %q", got)
	}
}

func TestResolveParent_EdgesAreInside(t *testing.T) {
	groups := []model.Group{grp("g", 10, 20, 100, 50, "")}
	for _, p := range []model.Point{{X: 10, Y: 20}, {X: 110, Y: 70}, {X: 10, Y: 70}, {X: 110, Y: 20}, {X: 60, Y: 20}} {
		if got := ResolveParent(nodeAt("t", p.X, p.Y, ""), groups); got != "g" {
			t.Fatalf("expected edge point %+v inside; got %q", p, got)
		}
	}
	if got := ResolveParent(nodeAt("t", 110.0001, 70, ""), groups); got != "" {
		t.Fatalf("expected just-outside point to be root; got %q", got)
	}
}

func TestResolveParent_WholeInteriorResolvesToSingleGroup(t *testing.T) {
	g := grp("g", -37.5, 12.25, 240, 130, "")
	groups := []model.Group{g, grp("far", 1000, 1000, 50, 50, "")}

	for x := g.Bounds.X + 0.5; x < g.Bounds.X+g.Bounds.Width; x += 7.5 {
		for y := g.Bounds.Y + 0.5; y < g.Bounds.Y+g.Bounds.Height; y += 6.5 {
			if got := ResolveParent(nodeAt("t", x, y, ""), groups); got != "g" {
				t.Fatalf("point (%g,%g): expected g; got %q", x, y, got)
			}
		}
	}

	rng := rand.New(rand.NewSource(7))
	for i := 0; i < 2000; i++ {
		x := g.Bounds.X + rng.Float64()*g.Bounds.Width
		y := g.Bounds.Y + rng.Float64()*g.Bounds.Height
		if got := ResolveParent(nodeAt("t", x, y, "far"), groups); got != "g" {
			t.Fatalf("random point (%g,%g): expected g; got %q", x, y, got)
		}
	}
}

func TestResolveParent_NestedSmallestAreaWins(t *testing.T) {
	groups := []model.Group{
		grp("outer", 0, 0, 1000, 1000, ""),
		grp("middle", 100, 100, 500, 500, "outer"),
		grp("inner", 200, 200, 100, 100, "middle"),
	}
	cases := []struct {
		x, y float64
		want string
	}{
		{250, 250, "inner"},
		{150, 150, "middle"},
		{50, 50, "outer"},
		{2000, 2000, ""},
	}
	for _, tc := range cases {
		if got := ResolveParent(nodeAt("t", tc.x, tc.y, ""), groups); got != tc.want {
			t.Fatalf("(%g,%g): expected %q; got %q", tc.x, tc.y, tc.want, got)
		}
	}
}

func TestResolveParent_StabilityBeatsArea(t *testing.T) {
	groups := []model.Group{
		grp("p", 0, 0, 400, 400, ""),
		grp("s", 100, 100, 100, 100, ""),
	}
	n := nodeAt("t", 150, 150, "p")
	if got := ResolveParent(n, groups); got != "p" {
		t.Fatalf("expected current parent p to be kept; got %q", got)
	}

	// Once p no longer contains the point, resolution starts from scratch.
	n = nodeAt("t", 150, 150, "gone")
	if got := ResolveParent(n, groups); got != "s" {
		t.Fatalf("expected smallest group s; got %q", got)
	}
	n = nodeAt("t", 450, 450, "p")
	if got := ResolveParent(n, append(groups, grp("q", 420, 420, 100, 100, ""))); got != "q" {
		t.Fatalf("expected re-resolution to q after leaving p; got %q", got)
	}
}

func TestResolveParent_SiblingSharedEdgeIsDeterministic(t *testing.T) {
	left := grp("left", 0, 0, 100, 100, "")
	right := grp("right", 100, 0, 100, 100, "")

	n := nodeAt("t", 100, 50, "")
	if got := ResolveParent(n, []model.Group{left, right}); got != "left" {
		t.Fatalf("expected first candidate to win equal-area tie; got %q", got)
	}
	if got := ResolveParent(n, []model.Group{right, left}); got != "right" {
		t.Fatalf("expected candidate order to decide; got %q", got)
	}
	for i := 0; i < 10; i++ {
		if got := ResolveParent(n, []model.Group{left, right}); got != "left" {
			t.Fatalf("resolution not stable across calls: %q", got)
		}
	}
	// A recorded parent still holding the point keeps it.
	n.CurrentParentID = "right"
	if got := ResolveParent(n, []model.Group{left, right}); got != "right" {
		t.Fatalf("expected recorded parent to win; got %q", got)
	}
}

func TestResolveParent_IgnoresSelf(t *testing.T) {
	groups := []model.Group{grp("g", 0, 0, 100, 100, "")}
	n := Node{ID: "g", Position: model.Point{X: 0, Y: 0}, Width: 100, Height: 100}
	if got := ResolveParent(n, groups); got != "" {
		t.Fatalf("expected a group never to contain itself; got %q", got)
	}
}

func TestResolveGroupParent_ExcludesDescendants(t *testing.T) {
	groups := []model.Group{
		grp("a", 0, 0, 300, 300, ""),
		grp("b", 50, 50, 200, 200, "a"),
		grp("c", 60, 60, 180, 180, "b"),
		grp("host", -100, -100, 1000, 1000, ""),
	}
	// a's center (150,150) is inside its own descendants b and c; neither may own it.
	if got := ResolveGroupParent(groups[0], groups); got != "host" {
		t.Fatalf("expected host; got %q", got)
	}
	if got := ResolveGroupParent(groups[2], groups); got != "b" {
		t.Fatalf("expected c to resolve to b; got %q", got)
	}
}

func TestResolveParent_PanicsOnNegativeBounds(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatalf("expected panic for negative width")
		}
	}()
	ResolveParent(nodeAt("t", 1, 1, ""), []model.Group{grp("bad", 0, 0, -5, 10, "")})
}

func TestResolveParent_PanicsOnNonFiniteNode(t *testing.T) {
	groups := []model.Group{grp("today", 0, 0, 200, 200, "")}
	for _, n := range []Node{
		nodeAt("inf-x", math.Inf(1), 10, ""),
		nodeAt("neginf-y", 10, math.Inf(-1), ""),
		{ID: "inf-w", Position: model.Point{X: 10, Y: 10}, Width: math.Inf(1)},
		{ID: "nan-h", Position: model.Point{X: 10, Y: 10}, Height: math.NaN()},
	} {
		func() {
			defer func() {
				if recover() == nil {
					t.Fatalf("expected panic for node %s", n.ID)
				}
			}()
			ResolveParent(n, groups)
		}()
	}
}

func TestCandidates_InnermostFirst(t *testing.T) {
	groups := []model.Group{
		grp("outer", 0, 0, 1000, 1000, ""),
		grp("inner", 10, 10, 100, 100, "outer"),
	}
	got := Candidates(model.Point{X: 20, Y: 20}, groups)
	if len(got) != 2 || got[0].ID != "inner" || got[1].ID != "outer" {
		t.Fatalf("unexpected candidates: %+v", got)
	}
}
