package syncgate

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"clarity-canvas/internal/model"
	"clarity-canvas/internal/mutate"
	"clarity-canvas/internal/opstate"
	"clarity-canvas/internal/realtime"
	"clarity-canvas/internal/store"
)

type Outcome int

const (
	Accepted Outcome = iota
	Dropped
	// Echo is this replica's own event coming back from the relay.
	Echo
	Failed
)

func (o Outcome) String() string {
	switch o {
	case Accepted:
		return "accepted"
	case Dropped:
		return "dropped"
	case Echo:
		return "echo"
	default:
		return "failed"
	}
}

type Stats struct {
	Accepted int `json:"accepted"`
	Dropped  int `json:"dropped"`
	Echoes   int `json:"echoes"`
	Failed   int `json:"failed"`
}

// Confirmer releases a lock once this replica's own write is seen persisted.
type Confirmer interface {
	Confirm(entityID, eventID string) bool
}

// Syncer marks bulk passes on the operation state.
type Syncer interface {
	SetSyncing(origin opstate.Origin) bool
	ClearSyncing()
}

type EventRecorder interface {
	AppendEvent(ctx context.Context, ev model.Event) (model.Event, error)
}

type IngestorOptions struct {
	Gate      *Gate
	Store     store.NodeStore
	ReplicaID string

	Confirmer Confirmer
	Syncer    Syncer
	Events    EventRecorder
	// OnApplied runs after an accepted event changed the store.
	OnApplied func(realtime.Event)
	Logger    *slog.Logger
}

// Ingestor applies relay events to the local store through the gate.
type Ingestor struct {
	opts   IngestorOptions
	logger *slog.Logger

	mu    sync.Mutex
	stats Stats
}

func NewIngestor(opts IngestorOptions) *Ingestor {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Ingestor{opts: opts, logger: logger}
}

func (in *Ingestor) Stats() Stats {
	in.mu.Lock()
	defer in.mu.Unlock()
	return in.stats
}

// Handle processes one event. Errors are reported only for Failed outcomes.
func (in *Ingestor) Handle(ctx context.Context, ev realtime.Event) (Outcome, error) {
	out, err := in.handle(ctx, ev)
	in.mu.Lock()
	switch out {
	case Accepted:
		in.stats.Accepted++
	case Dropped:
		in.stats.Dropped++
	case Echo:
		in.stats.Echoes++
	case Failed:
		in.stats.Failed++
	}
	in.mu.Unlock()
	return out, err
}

// HandleBatch applies a burst of events as one remote sync pass. When a
// gesture is active the pass is not marked and the gate drops what it must.
func (in *Ingestor) HandleBatch(ctx context.Context, evs []realtime.Event) Stats {
	if in.opts.Syncer != nil && in.opts.Syncer.SetSyncing(opstate.OriginRemote) {
		defer in.opts.Syncer.ClearSyncing()
	}
	before := in.Stats()
	for _, ev := range evs {
		if _, err := in.Handle(ctx, ev); err != nil {
			in.logger.Warn("sync: apply failed", "event", ev.ID, "entity", ev.EntityID, "err", err)
		}
	}
	after := in.Stats()
	return Stats{
		Accepted: after.Accepted - before.Accepted,
		Dropped:  after.Dropped - before.Dropped,
		Echoes:   after.Echoes - before.Echoes,
		Failed:   after.Failed - before.Failed,
	}
}

func (in *Ingestor) handle(ctx context.Context, ev realtime.Event) (Outcome, error) {
	if err := ev.Validate(); err != nil {
		return Failed, err
	}
	if in.opts.ReplicaID != "" && ev.ReplicaID == in.opts.ReplicaID {
		if in.opts.Confirmer != nil {
			in.opts.Confirmer.Confirm(ev.EntityID, ev.ID)
		}
		return Echo, nil
	}
	if !in.opts.Gate.ShouldAcceptRemoteUpdate(ev.EntityID) {
		in.logger.Debug("sync: dropped remote update", "entity", ev.EntityID, "type", ev.Type)
		return Dropped, nil
	}
	if err := in.apply(ev); err != nil {
		return Failed, err
	}
	if in.opts.Events != nil {
		_, err := in.opts.Events.AppendEvent(ctx, model.Event{
			ID:         ev.ID,
			TS:         ev.IssuedAt,
			Origin:     store.OriginRemote,
			ReplicaID:  ev.ReplicaID,
			EntityKind: ev.Kind,
			EntityID:   ev.EntityID,
			Type:       string(ev.Type),
			Payload:    Payload(ev),
		})
		if err != nil {
			in.logger.Warn("sync: event log append failed", "event", ev.ID, "err", err)
		}
	}
	if in.opts.OnApplied != nil {
		in.opts.OnApplied(ev)
	}
	return Accepted, nil
}

// apply writes a remote event. Parents recorded by the sender take part in
// containment so both replicas resolve against the same current parent, and
// group parents go through the cycle checks.
func (in *Ingestor) apply(ev realtime.Event) error {
	st := in.opts.Store
	switch ev.Type {
	case realtime.TaskPosition:
		_, err := mutate.PlaceTask(st, ev.EntityID, *ev.Position, ev.ParentID)
		return err
	case realtime.TaskUpsert:
		t := *ev.Task
		if err := st.UpsertTask(t); err != nil {
			return err
		}
		_, err := mutate.PlaceTask(st, t.ID, t.Position, t.ParentID)
		return err
	case realtime.GroupBounds:
		_, err := mutate.PlaceGroup(st, ev.EntityID, *ev.Bounds, ev.ParentID)
		return err
	case realtime.GroupParent:
		_, err := mutate.ReparentGroup(st, ev.EntityID, model.ParentString(ev.ParentID))
		return err
	case realtime.GroupUpsert:
		return mutate.UpsertGroup(st, *ev.Group)
	}
	return fmt.Errorf("%w: unknown type %q", realtime.ErrInvalidEvent, ev.Type)
}

// Payload returns the part of ev recorded in the event log.
func Payload(ev realtime.Event) any {
	switch {
	case ev.Position != nil:
		return map[string]any{"x": ev.Position.X, "y": ev.Position.Y, "parentId": ev.ParentID}
	case ev.Bounds != nil:
		return map[string]any{"bounds": ev.Bounds, "parentId": ev.ParentID}
	case ev.Task != nil:
		return ev.Task
	case ev.Group != nil:
		return ev.Group
	default:
		return map[string]any{"parentId": ev.ParentID}
	}
}
