package store

import (
	"errors"
	"strings"
	"testing"
)

func TestLoadWire_YAML(t *testing.T) {
	doc := `
version: 1
groups:
  - id: grp-today
    name: Today
    role: today
    bounds: {x: 0, y: 0, width: 200, height: 200}
  - id: grp-inner
    name: Inner
    parentId: grp-today
    bounds: {x: 10, y: 10, width: 50, height: 50}
tasks:
  - id: task-1
    title: Write report
    position: {x: 50, y: 50}
`
	db, err := LoadWire([]byte(doc))
	if err != nil {
		t.Fatalf("LoadWire: %v", err)
	}
	g, ok := db.FindGroup("grp-inner")
	if !ok || g.Bounds.Width != 50 || g.ParentID == nil || *g.ParentID != "grp-today" {
		t.Fatalf("unexpected inner group: %+v", g)
	}
	task, ok := db.FindTask("task-1")
	if !ok || task.Size.Width == 0 {
		t.Fatalf("expected default task size; got %+v", task)
	}
	if len(db.Wire().Groups) != 2 {
		t.Fatalf("expected wire export to carry groups")
	}
}

func TestLoadWire_JSON(t *testing.T) {
	doc := `{"groups":[{"id":"g","name":"G","bounds":{"x":1,"y":2,"width":3,"height":4}}],"tasks":[]}`
	db, err := LoadWire([]byte(doc))
	if err != nil {
		t.Fatalf("LoadWire: %v", err)
	}
	if g, ok := db.FindGroup("g"); !ok || g.Bounds.X != 1 || g.Bounds.Height != 4 {
		t.Fatalf("unexpected group: %+v", g)
	}
}

func TestLoadWire_Rejects(t *testing.T) {
	cases := map[string]string{
		"cycle": `
groups:
  - {id: a, parentId: b, bounds: {x: 0, y: 0, width: 1, height: 1}}
  - {id: b, parentId: a, bounds: {x: 0, y: 0, width: 1, height: 1}}
`,
		"dangling": `
tasks:
  - {id: t, parentId: ghost, position: {x: 0, y: 0}}
`,
		"negative": `
groups:
  - {id: a, bounds: {x: 0, y: 0, width: -1, height: 1}}
`,
		"duplicate": `
groups:
  - {id: a, bounds: {x: 0, y: 0, width: 1, height: 1}}
tasks:
  - {id: a, position: {x: 0, y: 0}}
`,
	}
	for name, doc := range cases {
		if _, err := LoadWire([]byte(doc)); err == nil {
			t.Fatalf("%s: expected error", name)
		}
	}
	_, err := LoadWire([]byte(strings.TrimSpace(cases["cycle"])))
	if !errors.Is(err, ErrParentCycle) {
		t.Fatalf("expected ErrParentCycle; got %v", err)
	}
}
