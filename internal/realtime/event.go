// Package realtime carries canvas change events between replicas over a
// websocket relay. The relay rebroadcasts every event to every client,
// including the sender, so writers observe an echo of their own writes.
package realtime

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"clarity-canvas/internal/model"

	json "github.com/goccy/go-json"
	"github.com/oklog/ulid/v2"
)

type EventType string

const (
	TaskPosition EventType = "task.position"
	TaskUpsert   EventType = "task.upsert"
	GroupBounds  EventType = "group.bounds"
	GroupParent  EventType = "group.parent"
	GroupUpsert  EventType = "group.upsert"
)

func (t EventType) Kind() model.EntityKind {
	if strings.HasPrefix(string(t), "group.") {
		return model.EntityKindGroup
	}
	return model.EntityKindTask
}

// Event is one entity change on the wire. Exactly one payload field is set,
// matching Type. ParentID travels with position, bounds and parent events;
// nil means the canvas root.
type Event struct {
	ID        string           `json:"id"`
	ReplicaID string           `json:"replicaId"`
	Kind      model.EntityKind `json:"kind"`
	EntityID  string           `json:"entityId"`
	Type      EventType        `json:"type"`
	IssuedAt  time.Time        `json:"issuedAt"`

	Position *model.Point `json:"position,omitempty"`
	Bounds   *model.Rect  `json:"bounds,omitempty"`
	ParentID *string      `json:"parentId,omitempty"`
	Task     *model.Task  `json:"task,omitempty"`
	Group    *model.Group `json:"group,omitempty"`
}

var ErrInvalidEvent = errors.New("invalid event")

// NewEvent stamps an event with a fresh sortable id.
func NewEvent(replicaID string, typ EventType, entityID string, at time.Time) Event {
	return Event{
		ID:        ulid.MustNew(ulid.Timestamp(at), ulid.DefaultEntropy()).String(),
		ReplicaID: replicaID,
		Kind:      typ.Kind(),
		EntityID:  entityID,
		Type:      typ,
		IssuedAt:  at.UTC(),
	}
}

func (e Event) Validate() error {
	if strings.TrimSpace(e.ID) == "" || strings.TrimSpace(e.EntityID) == "" {
		return fmt.Errorf("%w: missing id", ErrInvalidEvent)
	}
	if !e.Kind.Valid() || e.Kind != e.Type.Kind() {
		return fmt.Errorf("%w: kind %q does not match type %q", ErrInvalidEvent, e.Kind, e.Type)
	}
	switch e.Type {
	case TaskPosition:
		if e.Position == nil {
			return fmt.Errorf("%w: %s without position", ErrInvalidEvent, e.Type)
		}
	case GroupBounds:
		if e.Bounds == nil {
			return fmt.Errorf("%w: %s without bounds", ErrInvalidEvent, e.Type)
		}
		if err := e.Bounds.Validate(); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidEvent, err)
		}
	case GroupParent:
	case TaskUpsert:
		if e.Task == nil || e.Task.ID != e.EntityID {
			return fmt.Errorf("%w: %s payload mismatch", ErrInvalidEvent, e.Type)
		}
	case GroupUpsert:
		if e.Group == nil || e.Group.ID != e.EntityID {
			return fmt.Errorf("%w: %s payload mismatch", ErrInvalidEvent, e.Type)
		}
	default:
		return fmt.Errorf("%w: unknown type %q", ErrInvalidEvent, e.Type)
	}
	return nil
}

func Encode(e Event) ([]byte, error) {
	return json.Marshal(e)
}

func Decode(b []byte) (Event, error) {
	var e Event
	if err := json.Unmarshal(b, &e); err != nil {
		return Event{}, fmt.Errorf("%w: %v", ErrInvalidEvent, err)
	}
	if err := e.Validate(); err != nil {
		return Event{}, err
	}
	return e, nil
}
