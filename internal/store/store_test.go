package store

import (
	"errors"
	"testing"
	"time"

	"clarity-canvas/internal/model"
)

func rect(x, y, w, h float64) model.Rect {
	return model.Rect{Point: model.Point{X: x, Y: y}, Size: model.Size{Width: w, Height: h}}
}

func sampleDB(t *testing.T) *DB {
	t.Helper()
	db := NewDB()
	if err := db.UpsertGroup(model.Group{ID: "grp-a", Name: "A", Role: "today", Bounds: rect(0, 0, 200, 200)}); err != nil {
		t.Fatalf("UpsertGroup: %v", err)
	}
	if err := db.UpsertGroup(model.Group{ID: "grp-b", Name: "Overdue", Bounds: rect(500, 0, 300, 400)}); err != nil {
		t.Fatalf("UpsertGroup: %v", err)
	}
	if err := db.UpsertTask(model.Task{ID: "task-1", Title: "one", Position: model.Point{X: 50, Y: 50}, Size: model.Size{Width: 20, Height: 20}}); err != nil {
		t.Fatalf("UpsertTask: %v", err)
	}
	return db
}

func TestDB_UpdatesAndLookups(t *testing.T) {
	db := sampleDB(t)
	fixed := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	db.SetNow(func() time.Time { return fixed })

	parent := "grp-a"
	if err := db.UpdateTaskPosition("task-1", model.Point{X: 10, Y: 11}, &parent); err != nil {
		t.Fatalf("UpdateTaskPosition: %v", err)
	}
	parent = "mutated-after-call"
	got, ok := db.FindTask("task-1")
	if !ok {
		t.Fatalf("expected task")
	}
	if got.Position != (model.Point{X: 10, Y: 11}) || model.ParentString(got.ParentID) != "grp-a" {
		t.Fatalf("unexpected task after update: %+v", got)
	}
	if !got.UpdatedAt.Equal(fixed) {
		t.Fatalf("expected UpdatedAt from SetNow; got %v", got.UpdatedAt)
	}

	var nf NotFoundError
	if err := db.UpdateTaskPosition("missing", model.Point{}, nil); !errors.As(err, &nf) || nf.Kind != model.EntityKindTask {
		t.Fatalf("expected task NotFoundError; got %v", err)
	}
	if err := db.UpdateGroupBounds("grp-a", rect(0, 0, -1, 5)); !errors.Is(err, model.ErrInvalidBounds) {
		t.Fatalf("expected ErrInvalidBounds; got %v", err)
	}
	if err := db.UpdateGroupParent("grp-a", model.ParentPtr("nope")); !errors.As(err, &nf) {
		t.Fatalf("expected NotFoundError for unknown parent; got %v", err)
	}

	if g, ok := db.GroupByRole("TODAY"); !ok || g.ID != "grp-a" {
		t.Fatalf("expected role lookup to find grp-a; got %+v ok=%v", g, ok)
	}
	if g, ok := db.GroupByRole("overdue"); !ok || g.ID != "grp-b" {
		t.Fatalf("expected name fallback to find grp-b; got %+v ok=%v", g, ok)
	}
	if _, ok := db.GroupByRole("inbox"); ok {
		t.Fatalf("expected no inbox group")
	}
}

func TestDB_ReadsReturnCopies(t *testing.T) {
	db := sampleDB(t)
	tasks := db.Tasks()
	tasks[0].Title = "changed"
	tasks[0].ParentID = model.ParentPtr("x")
	if got, _ := db.FindTask("task-1"); got.Title != "one" || got.ParentID != nil {
		t.Fatalf("Tasks() leaked internal state: %+v", got)
	}
}

func TestDB_SeedDefaultGroupsIsIdempotent(t *testing.T) {
	db := NewDB()
	created, err := db.SeedDefaultGroups()
	if err != nil {
		t.Fatalf("SeedDefaultGroups: %v", err)
	}
	if len(created) != 3 {
		t.Fatalf("expected 3 groups; got %d", len(created))
	}
	created, err = db.SeedDefaultGroups()
	if err != nil || len(created) != 0 {
		t.Fatalf("expected second seed to be a no-op; got %v %v", created, err)
	}
	for _, role := range []string{RoleInbox, RoleToday, RoleOverdue} {
		if _, ok := db.GroupByRole(role); !ok {
			t.Fatalf("missing %s group", role)
		}
	}
}

func TestDB_DeleteTask(t *testing.T) {
	db := sampleDB(t)
	if !db.DeleteTask("task-1") {
		t.Fatalf("expected delete to report true")
	}
	if db.DeleteTask("task-1") {
		t.Fatalf("expected second delete to report false")
	}
	if len(db.Tasks()) != 0 {
		t.Fatalf("expected no tasks")
	}
}

func TestNewID(t *testing.T) {
	id, err := NewID("task")
	if err != nil {
		t.Fatalf("NewID: %v", err)
	}
	if len(id) != len("task-")+8 || id[:5] != "task-" {
		t.Fatalf("unexpected id %q", id)
	}
	a := NewEventID(time.Unix(100, 0))
	b := NewEventID(time.Unix(200, 0))
	if !(a < b) {
		t.Fatalf("expected event ids to sort by time: %s !< %s", a, b)
	}
}
