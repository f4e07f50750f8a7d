package store

import (
	"clarity-canvas/internal/model"
)

const (
	RoleInbox   = "inbox"
	RoleToday   = "today"
	RoleOverdue = "overdue"
)

// SeedDefaultGroups adds the Inbox/Today/Overdue columns when missing.
// It returns the ids of the groups it created.
func (db *DB) SeedDefaultGroups() ([]string, error) {
	defaults := []struct {
		role string
		name string
		x    float64
	}{
		{RoleInbox, "Inbox", 0},
		{RoleToday, "Today", 400},
		{RoleOverdue, "Overdue", 800},
	}
	var created []string
	for _, d := range defaults {
		if _, ok := db.GroupByRole(d.role); ok {
			continue
		}
		id, err := NewID("grp")
		if err != nil {
			return created, err
		}
		g := model.Group{
			ID:     id,
			Name:   d.name,
			Role:   d.role,
			Bounds: model.Rect{Point: model.Point{X: d.x, Y: 0}, Size: model.Size{Width: 300, Height: 600}},
		}
		if err := db.UpsertGroup(g); err != nil {
			return created, err
		}
		created = append(created, id)
	}
	return created, nil
}
