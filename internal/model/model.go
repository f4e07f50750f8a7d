package model

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"time"
)

// EntityKind identifies what a canvas entity id refers to.
type EntityKind string

const (
	EntityKindTask  EntityKind = "task"
	EntityKindGroup EntityKind = "group"
)

func (k EntityKind) Valid() bool {
	return k == EntityKindTask || k == EntityKindGroup
}

// Point is an absolute canvas coordinate. Nothing on the canvas stores a
// coordinate relative to its parent.
type Point struct {
	X float64 `json:"x" yaml:"x"`
	Y float64 `json:"y" yaml:"y"`
}

func (p Point) Add(dx, dy float64) Point {
	return Point{X: p.X + dx, Y: p.Y + dy}
}

type Size struct {
	Width  float64 `json:"width" yaml:"width"`
	Height float64 `json:"height" yaml:"height"`
}

// Rect is a top-left anchored rectangle in canvas root coordinates.
type Rect struct {
	Point `yaml:",inline"`
	Size  `yaml:",inline"`
}

var ErrInvalidBounds = errors.New("invalid bounds")

// Validate rejects negative or non-finite sizes and non-finite positions.
func (r Rect) Validate() error {
	for _, v := range []float64{r.X, r.Y, r.Width, r.Height} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%w: non-finite value", ErrInvalidBounds)
		}
	}
	if r.Width < 0 || r.Height < 0 {
		return fmt.Errorf("%w: negative size %gx%g", ErrInvalidBounds, r.Width, r.Height)
	}
	return nil
}

func (r Rect) Center() Point {
	return Point{X: r.X + r.Width/2, Y: r.Y + r.Height/2}
}

func (r Rect) Area() float64 {
	return r.Width * r.Height
}

// Contains reports whether p lies in r, edges included.
func (r Rect) Contains(p Point) bool {
	return p.X >= r.X && p.X <= r.X+r.Width && p.Y >= r.Y && p.Y <= r.Y+r.Height
}

// Group is a container node. Groups nest through ParentID and never form a cycle.
type Group struct {
	ID       string  `json:"id" yaml:"id"`
	Name     string  `json:"name" yaml:"name"`
	Role     string  `json:"role,omitempty" yaml:"role,omitempty"`
	Bounds   Rect    `json:"bounds" yaml:"bounds"`
	ParentID *string `json:"parentId,omitempty" yaml:"parentId,omitempty"`

	CreatedAt time.Time `json:"createdAt" yaml:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt" yaml:"updatedAt"`
}

const (
	DefaultTaskWidth  = 160
	DefaultTaskHeight = 60
)

type Task struct {
	ID       string  `json:"id" yaml:"id"`
	Title    string  `json:"title" yaml:"title"`
	Position Point   `json:"position" yaml:"position"`
	Size     Size    `json:"size" yaml:"size"`
	ParentID *string `json:"parentId,omitempty" yaml:"parentId,omitempty"`

	// IsInInbox is an explicit flag; inbox membership is never inferred from coordinates.
	IsInInbox bool `json:"isInInbox" yaml:"isInInbox"`
	Done      bool `json:"done" yaml:"done"`

	CreatedAt time.Time `json:"createdAt" yaml:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt" yaml:"updatedAt"`
}

func (t Task) Bounds() Rect {
	return Rect{Point: t.Position, Size: t.Size}
}

// LockEntry shields one entity from remote position writes until ExpiresAt.
type LockEntry struct {
	EntityID   string     `json:"entityId"`
	EntityKind EntityKind `json:"entityKind"`
	ExpiresAt  time.Time  `json:"expiresAt"`
}

// Event is an entry of the workspace event log.
type Event struct {
	ID         string     `json:"id"`
	TS         time.Time  `json:"ts"`
	Origin     string     `json:"origin"`
	ReplicaID  string     `json:"replicaId,omitempty"`
	EntityKind EntityKind `json:"entityKind"`
	EntityID   string     `json:"entityId"`
	Type       string     `json:"type"`
	Payload    any        `json:"payload"`
}

// ParentString returns "" for root.
func ParentString(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}

// ParentPtr returns nil for root.
func ParentPtr(id string) *string {
	if id == "" {
		return nil
	}
	return &id
}

// GroupByRole finds a group by role, falling back to a case-insensitive name match.
func GroupByRole(groups []Group, role string) (Group, bool) {
	role = strings.TrimSpace(role)
	if role == "" {
		return Group{}, false
	}
	for _, g := range groups {
		if strings.EqualFold(g.Role, role) {
			return g, true
		}
	}
	for _, g := range groups {
		if strings.EqualFold(strings.TrimSpace(g.Name), role) {
			return g, true
		}
	}
	return Group{}, false
}
