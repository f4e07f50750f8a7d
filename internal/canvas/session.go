// Package canvas composes the interaction state machine, the position locks,
// the reconciliation gate and the store into one Session per canvas view.
package canvas

import (
	"context"
	"io"
	"log/slog"
	"slices"
	"strings"
	"sync"

	"clarity-canvas/internal/clock"
	"clarity-canvas/internal/model"
	"clarity-canvas/internal/mutate"
	"clarity-canvas/internal/opstate"
	"clarity-canvas/internal/poslock"
	"clarity-canvas/internal/realtime"
	"clarity-canvas/internal/store"
	"clarity-canvas/internal/syncgate"
)

// Publisher is the realtime outbox.
type Publisher interface {
	Publish(ev realtime.Event) error
}

// Notifier is told when the store changed and should be persisted.
type Notifier interface {
	Notify()
}

type Options struct {
	Store     store.NodeStore
	Clock     clock.Clock
	Logger    *slog.Logger
	ReplicaID string
	Config    store.CanvasConfig

	Saver     Notifier
	Events    syncgate.EventRecorder
	Publisher Publisher
	// OnChange runs after any local or remote change reached the store.
	OnChange func()
}

// Session is one canvas instance. Sessions share nothing; tests may build as
// many as they like.
type Session struct {
	st        store.NodeStore
	clk       clock.Clock
	log       *slog.Logger
	replicaID string
	cfg       store.CanvasConfig

	machine *opstate.Machine
	locks   *poslock.Registry
	gate    *syncgate.Gate
	ingest  *syncgate.Ingestor

	saver    Notifier
	events   syncgate.EventRecorder
	onChange func()

	// mu serializes multi-step operations against the store.
	mu     sync.Mutex
	pub    Publisher
	drag   *dragState
	resize *resizeState

	sentMu   sync.Mutex
	lastSent map[string]string
}

type dragState struct {
	ids    []string
	delta  model.Point
	tasks  map[string]model.Point
	groups map[string]model.Point
}

type resizeState struct {
	groupID string
	bounds  model.Rect
}

func New(opts Options) *Session {
	clk := opts.Clock
	if clk == nil {
		clk = clock.Real()
	}
	log := opts.Logger
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	cfg := opts.Config.Resolved()

	s := &Session{
		st:        opts.Store,
		clk:       clk,
		log:       log,
		replicaID: opts.ReplicaID,
		cfg:       cfg,
		saver:     opts.Saver,
		events:    opts.Events,
		onChange:  opts.OnChange,
		pub:       opts.Publisher,
		lastSent:  map[string]string{},
	}
	s.machine = opstate.New(opstate.Options{
		Clock:        clk,
		Logger:       log,
		DragSettle:   cfg.DragSettle(),
		ResizeSettle: cfg.ResizeSettle(),
	})
	s.locks = poslock.New(poslock.Options{
		Clock:    clk,
		TaskTTL:  cfg.TaskLock(),
		GroupTTL: cfg.GroupLock(),
	})
	s.gate = syncgate.NewGate(s.machine, s.locks)
	s.ingest = syncgate.NewIngestor(syncgate.IngestorOptions{
		Gate:      s.gate,
		Store:     s.st,
		ReplicaID: s.replicaID,
		Confirmer: s,
		Syncer:    s.machine,
		Events:    s.events,
		OnApplied: func(realtime.Event) { s.changed() },
		Logger:    log,
	})
	return s
}

func (s *Session) Machine() *opstate.Machine    { return s.machine }
func (s *Session) Locks() *poslock.Registry     { return s.locks }
func (s *Session) Gate() *syncgate.Gate         { return s.gate }
func (s *Session) Store() store.NodeStore       { return s.st }
func (s *Session) Ingestor() *syncgate.Ingestor { return s.ingest }
func (s *Session) ReplicaID() string            { return s.replicaID }

// SetPublisher swaps the outbox, e.g. once a relay connection is up.
func (s *Session) SetPublisher(p Publisher) {
	s.mu.Lock()
	s.pub = p
	s.mu.Unlock()
}

// HandleRemote runs one relay event through the gate.
func (s *Session) HandleRemote(ctx context.Context, ev realtime.Event) (syncgate.Outcome, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ingest.Handle(ctx, ev)
}

// Confirm releases the lock on entityID when eventID is the last event this
// session sent for it. Older echoes leave the lock alone.
func (s *Session) Confirm(entityID, eventID string) bool {
	s.sentMu.Lock()
	last, ok := s.lastSent[entityID]
	if !ok || last != eventID {
		s.sentMu.Unlock()
		return false
	}
	delete(s.lastSent, entityID)
	s.sentMu.Unlock()
	released := s.locks.Unlock(entityID)
	s.log.Debug("canvas: confirmed", "entity", entityID, "event", eventID, "released", released)
	return released
}

// Reset drops every gesture, lock and pending confirmation.
func (s *Session) Reset() {
	s.mu.Lock()
	s.drag = nil
	s.resize = nil
	s.mu.Unlock()
	s.sentMu.Lock()
	clear(s.lastSent)
	s.sentMu.Unlock()
	s.machine.Reset()
	s.locks.ClearAll()
}

// UpdateTaskPosition is the normal path for programmatic position writes. It
// is refused with mutate.ErrRefused while the entity is locked or a gesture
// is active.
func (s *Session) UpdateTaskPosition(id string, pos model.Point, parentID *string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.updateTaskPositionLocked(id, pos, parentID)
}

func (s *Session) updateTaskPositionLocked(id string, pos model.Point, parentID *string) error {
	if !s.gate.ShouldAcceptRemoteUpdate(id) {
		return mutate.ErrRefused
	}
	if err := s.st.UpdateTaskPosition(id, pos, parentID); err != nil {
		return err
	}
	s.locks.Lock(id, model.EntityKindTask)
	s.emitPosition(id, pos, parentID)
	s.changed()
	return nil
}

// Rollover moves every task from the fromRole group into the toRole group as
// one local sync pass.
func (s *Session) Rollover(fromRole, toRole string, layout mutate.Layout) (mutate.RolloverResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.machine.SetSyncing(opstate.OriginLocal) {
		return mutate.RolloverResult{Reason: mutate.ReasonBusy}, nil
	}
	defer s.machine.ClearSyncing()
	return mutate.MoveGroupMembersToGroup(s.st, lockedWriter{s}, fromRole, toRole, layout)
}

// RolloverDefault runs Rollover with the configured roles and layout.
func (s *Session) RolloverDefault() (mutate.RolloverResult, error) {
	r := s.cfg.Rollover
	l := s.cfg.Layout
	return s.Rollover(r.From, r.To, mutate.Layout{Padding: l.Padding, Header: l.Header, RowSpacing: l.RowSpacing})
}

// lockedWriter writes through the session while Rollover holds s.mu.
type lockedWriter struct{ s *Session }

func (w lockedWriter) UpdateTaskPosition(id string, pos model.Point, parentID *string) error {
	return w.s.updateTaskPositionLocked(id, pos, parentID)
}

func (s *Session) emitPosition(id string, pos model.Point, parentID *string) {
	s.emit(realtime.TaskPosition, id, func(ev *realtime.Event) {
		p := pos
		ev.Position = &p
		ev.ParentID = parentID
	})
}

func (s *Session) emitGroupBounds(g model.Group) {
	s.emit(realtime.GroupBounds, g.ID, func(ev *realtime.Event) {
		b := g.Bounds
		ev.Bounds = &b
		ev.ParentID = g.ParentID
	})
}

// emit publishes a local change, remembers it for echo confirmation and
// appends it to the event log. Transport failures never fail the local write.
func (s *Session) emit(typ realtime.EventType, entityID string, fill func(*realtime.Event)) {
	ev := realtime.NewEvent(s.replicaID, typ, entityID, s.clk.Now())
	fill(&ev)

	if s.pub != nil {
		s.sentMu.Lock()
		s.lastSent[entityID] = ev.ID
		s.sentMu.Unlock()
		if err := s.pub.Publish(ev); err != nil {
			s.log.Warn("canvas: publish failed", "entity", entityID, "type", typ, "err", err)
		}
	}
	if s.events != nil {
		_, err := s.events.AppendEvent(context.Background(), model.Event{
			ID:         ev.ID,
			TS:         ev.IssuedAt,
			Origin:     store.OriginLocal,
			ReplicaID:  s.replicaID,
			EntityKind: ev.Kind,
			EntityID:   entityID,
			Type:       string(typ),
			Payload:    syncgate.Payload(ev),
		})
		if err != nil {
			s.log.Warn("canvas: event log append failed", "entity", entityID, "err", err)
		}
	}
}

func (s *Session) changed() {
	if s.saver != nil {
		s.saver.Notify()
	}
	if s.onChange != nil {
		s.onChange()
	}
}

func cleanIDs(ids []string) []string {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id = strings.TrimSpace(id); id != "" {
			out = append(out, id)
		}
	}
	slices.Sort(out)
	return slices.Compact(out)
}
