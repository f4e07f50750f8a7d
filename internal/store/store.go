package store

import (
	"context"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"clarity-canvas/internal/model"
)

const dirName = ".clarity-canvas"

// NodeStore is the node/group store the canvas engine reads and writes.
// Reads are synchronous over in-memory state; persistence happens elsewhere.
type NodeStore interface {
	Groups() []model.Group
	Tasks() []model.Task
	FindGroup(id string) (model.Group, bool)
	FindTask(id string) (model.Task, bool)
	UpdateTaskPosition(id string, pos model.Point, parentID *string) error
	UpdateGroupBounds(id string, bounds model.Rect) error
	UpdateGroupParent(id string, parentID *string) error
	UpsertTask(t model.Task) error
	UpsertGroup(g model.Group) error
}

// DB is the in-memory canvas snapshot of one workspace.
type DB struct {
	Version int

	mu     sync.RWMutex
	groups []model.Group
	tasks  []model.Task
	now    func() time.Time
}

var _ NodeStore = (*DB)(nil)

type Store struct {
	Dir string
}

func NewDB() *DB {
	return &DB{Version: 1}
}

// SetNow overrides the timestamp source used for CreatedAt/UpdatedAt.
func (db *DB) SetNow(fn func() time.Time) {
	db.mu.Lock()
	db.now = fn
	db.mu.Unlock()
}

func (db *DB) stamp() time.Time {
	if db.now != nil {
		return db.now().UTC()
	}
	return time.Now().UTC()
}

func DiscoverDir(start string) (string, bool) {
	dir := start
	for {
		candidate := filepath.Join(dir, dirName)
		if st, err := os.Stat(candidate); err == nil && st.IsDir() {
			return candidate, true
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", false
		}
		dir = parent
	}
}

func WorkspaceDir(name string) (string, error) {
	name, err := NormalizeWorkspaceName(name)
	if err != nil {
		return "", err
	}
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "workspaces", name), nil
}

func (s Store) Ensure() error {
	return os.MkdirAll(s.Dir, 0o755)
}

func (s Store) Load() (*DB, error) {
	if err := s.Ensure(); err != nil {
		return nil, err
	}
	return s.LoadSQLite(context.Background())
}

func (s Store) Save(db *DB) error {
	return s.SaveSQLite(context.Background(), db)
}

// Groups returns a copy of the groups in creation order.
func (db *DB) Groups() []model.Group {
	db.mu.RLock()
	defer db.mu.RUnlock()
	out := make([]model.Group, len(db.groups))
	for i, g := range db.groups {
		out[i] = cloneGroup(g)
	}
	return out
}

func (db *DB) Tasks() []model.Task {
	db.mu.RLock()
	defer db.mu.RUnlock()
	out := make([]model.Task, len(db.tasks))
	for i, t := range db.tasks {
		out[i] = cloneTask(t)
	}
	return out
}

func (db *DB) FindGroup(id string) (model.Group, bool) {
	db.mu.RLock()
	defer db.mu.RUnlock()
	if i := db.groupIndex(id); i >= 0 {
		return cloneGroup(db.groups[i]), true
	}
	return model.Group{}, false
}

func (db *DB) FindTask(id string) (model.Task, bool) {
	db.mu.RLock()
	defer db.mu.RUnlock()
	if i := db.taskIndex(id); i >= 0 {
		return cloneTask(db.tasks[i]), true
	}
	return model.Task{}, false
}

// GroupByRole finds a group by role, falling back to a case-insensitive name match.
func (db *DB) GroupByRole(role string) (model.Group, bool) {
	db.mu.RLock()
	defer db.mu.RUnlock()
	g, ok := model.GroupByRole(db.groups, role)
	return cloneGroup(g), ok
}

func (db *DB) UpdateTaskPosition(id string, pos model.Point, parentID *string) error {
	if err := (model.Rect{Point: pos}).Validate(); err != nil {
		return err
	}
	db.mu.Lock()
	defer db.mu.Unlock()
	i := db.taskIndex(id)
	if i < 0 {
		return NotFoundError{Kind: model.EntityKindTask, ID: id}
	}
	t := &db.tasks[i]
	t.Position = pos
	t.ParentID = clonePtr(parentID)
	t.UpdatedAt = db.stamp()
	return nil
}

func (db *DB) UpdateGroupBounds(id string, bounds model.Rect) error {
	if err := bounds.Validate(); err != nil {
		return err
	}
	db.mu.Lock()
	defer db.mu.Unlock()
	i := db.groupIndex(id)
	if i < 0 {
		return NotFoundError{Kind: model.EntityKindGroup, ID: id}
	}
	g := &db.groups[i]
	g.Bounds = bounds
	g.UpdatedAt = db.stamp()
	return nil
}

// UpdateGroupParent sets the parent without checking for cycles; callers
// go through mutate.ReparentGroup for that.
func (db *DB) UpdateGroupParent(id string, parentID *string) error {
	db.mu.Lock()
	defer db.mu.Unlock()
	i := db.groupIndex(id)
	if i < 0 {
		return NotFoundError{Kind: model.EntityKindGroup, ID: id}
	}
	if parentID != nil && db.groupIndex(*parentID) < 0 {
		return NotFoundError{Kind: model.EntityKindGroup, ID: *parentID}
	}
	g := &db.groups[i]
	g.ParentID = clonePtr(parentID)
	g.UpdatedAt = db.stamp()
	return nil
}

// UpsertTask replaces the task with the same id or appends it.
func (db *DB) UpsertTask(t model.Task) error {
	if strings.TrimSpace(t.ID) == "" {
		return ErrMissingID
	}
	if err := t.Bounds().Validate(); err != nil {
		return err
	}
	db.mu.Lock()
	defer db.mu.Unlock()
	now := db.stamp()
	if t.CreatedAt.IsZero() {
		t.CreatedAt = now
	}
	t.UpdatedAt = now
	t = cloneTask(t)
	if i := db.taskIndex(t.ID); i >= 0 {
		db.tasks[i] = t
		return nil
	}
	db.tasks = append(db.tasks, t)
	return nil
}

func (db *DB) UpsertGroup(g model.Group) error {
	if strings.TrimSpace(g.ID) == "" {
		return ErrMissingID
	}
	if err := g.Bounds.Validate(); err != nil {
		return err
	}
	db.mu.Lock()
	defer db.mu.Unlock()
	now := db.stamp()
	if g.CreatedAt.IsZero() {
		g.CreatedAt = now
	}
	g.UpdatedAt = now
	g = cloneGroup(g)
	if i := db.groupIndex(g.ID); i >= 0 {
		db.groups[i] = g
		return nil
	}
	db.groups = append(db.groups, g)
	return nil
}

// DeleteTask removes a task. It reports whether the task existed.
func (db *DB) DeleteTask(id string) bool {
	db.mu.Lock()
	defer db.mu.Unlock()
	i := db.taskIndex(id)
	if i < 0 {
		return false
	}
	db.tasks = slices.Delete(db.tasks, i, i+1)
	return true
}

// Snapshot returns a deep copy suitable for persisting without holding the lock.
func (db *DB) Snapshot() *DB {
	db.mu.RLock()
	defer db.mu.RUnlock()
	out := &DB{Version: db.Version}
	out.groups = make([]model.Group, len(db.groups))
	for i, g := range db.groups {
		out.groups[i] = cloneGroup(g)
	}
	out.tasks = make([]model.Task, len(db.tasks))
	for i, t := range db.tasks {
		out.tasks[i] = cloneTask(t)
	}
	return out
}

func (db *DB) groupIndex(id string) int {
	for i := range db.groups {
		if db.groups[i].ID == id {
			return i
		}
	}
	return -1
}

func (db *DB) taskIndex(id string) int {
	for i := range db.tasks {
		if db.tasks[i].ID == id {
			return i
		}
	}
	return -1
}

func cloneGroup(g model.Group) model.Group {
	g.ParentID = clonePtr(g.ParentID)
	return g
}

func cloneTask(t model.Task) model.Task {
	t.ParentID = clonePtr(t.ParentID)
	return t
}

func clonePtr(p *string) *string {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
