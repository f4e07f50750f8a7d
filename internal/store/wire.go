package store

import (
	"fmt"
	"strings"

	"clarity-canvas/internal/model"

	"gopkg.in/yaml.v3"
)

// Wire is the import/export form of a canvas. YAML is the native format;
// JSON documents parse too.
type Wire struct {
	Version int           `json:"version" yaml:"version"`
	Groups  []model.Group `json:"groups" yaml:"groups"`
	Tasks   []model.Task  `json:"tasks" yaml:"tasks"`
}

func (db *DB) Wire() Wire {
	snap := db.Snapshot()
	return Wire{Version: snap.Version, Groups: snap.groups, Tasks: snap.tasks}
}

// LoadWire parses a snapshot document and validates ids, bounds and parents.
func LoadWire(b []byte) (*DB, error) {
	var w Wire
	if err := yaml.Unmarshal(b, &w); err != nil {
		return nil, fmt.Errorf("parse canvas snapshot: %w", err)
	}
	return FromWire(w)
}

func FromWire(w Wire) (*DB, error) {
	db := NewDB()
	if w.Version > 0 {
		db.Version = w.Version
	}
	seen := map[string]bool{}
	for _, g := range w.Groups {
		if strings.TrimSpace(g.ID) == "" {
			return nil, ErrMissingID
		}
		if seen[g.ID] {
			return nil, fmt.Errorf("duplicate id: %s", g.ID)
		}
		seen[g.ID] = true
		if err := g.Bounds.Validate(); err != nil {
			return nil, fmt.Errorf("group %s: %w", g.ID, err)
		}
	}
	for _, t := range w.Tasks {
		if strings.TrimSpace(t.ID) == "" {
			return nil, ErrMissingID
		}
		if seen[t.ID] {
			return nil, fmt.Errorf("duplicate id: %s", t.ID)
		}
		seen[t.ID] = true
		if t.Size.Width == 0 && t.Size.Height == 0 {
			t.Size = model.Size{Width: model.DefaultTaskWidth, Height: model.DefaultTaskHeight}
		}
		if err := t.Bounds().Validate(); err != nil {
			return nil, fmt.Errorf("task %s: %w", t.ID, err)
		}
		db.tasks = append(db.tasks, cloneTask(t))
	}
	for _, g := range w.Groups {
		db.groups = append(db.groups, cloneGroup(g))
	}
	if err := db.checkParents(); err != nil {
		return nil, err
	}
	return db, nil
}

// checkParents rejects dangling parent ids and group parent cycles.
func (db *DB) checkParents() error {
	groupIDs := map[string]string{}
	for _, g := range db.groups {
		groupIDs[g.ID] = model.ParentString(g.ParentID)
	}
	for _, g := range db.groups {
		if p := model.ParentString(g.ParentID); p != "" {
			if _, ok := groupIDs[p]; !ok {
				return NotFoundError{Kind: model.EntityKindGroup, ID: p}
			}
		}
		seen := map[string]bool{g.ID: true}
		for cur := groupIDs[g.ID]; cur != ""; cur = groupIDs[cur] {
			if seen[cur] {
				return fmt.Errorf("group %s: %w", g.ID, ErrParentCycle)
			}
			seen[cur] = true
		}
	}
	for _, t := range db.tasks {
		if p := model.ParentString(t.ParentID); p != "" {
			if _, ok := groupIDs[p]; !ok {
				return NotFoundError{Kind: model.EntityKindGroup, ID: p}
			}
		}
	}
	return nil
}
