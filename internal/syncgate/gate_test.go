package syncgate

import (
	"testing"
	"time"

	"clarity-canvas/internal/clock"
	"clarity-canvas/internal/model"
	"clarity-canvas/internal/opstate"
	"clarity-canvas/internal/poslock"
)

var epoch = time.Date(2026, 4, 1, 8, 0, 0, 0, time.UTC)

func newGate() (*Gate, *opstate.Machine, *poslock.Registry, *clock.Virtual) {
	v := clock.NewVirtual(epoch)
	m := opstate.New(opstate.Options{Clock: v})
	r := poslock.New(poslock.Options{Clock: v})
	return NewGate(m, r), m, r, v
}

func TestGate_RejectsDuringGestures(t *testing.T) {
	g, m, _, v := newGate()
	if !g.ShouldAcceptRemoteUpdate("t1") {
		t.Fatalf("expected idle to accept")
	}

	m.StartDrag([]string{"t1"})
	if g.ShouldAcceptRemoteUpdate("t1") || g.ShouldAcceptRemoteUpdate("other") {
		t.Fatalf("expected dragging to reject every entity")
	}
	m.EndDrag([]string{"t1"})
	if g.ShouldAcceptRemoteUpdate("other") {
		t.Fatalf("expected settling to reject")
	}
	v.Advance(opstate.DefaultDragSettle + time.Millisecond)
	if !g.ShouldAcceptRemoteUpdate("other") {
		t.Fatalf("expected accept once settled")
	}

	m.SetEditing("t1")
	if g.ShouldAcceptRemoteUpdate("t2") {
		t.Fatalf("expected editing to reject")
	}
	m.ClearEditing()

	if !m.SetSyncing(opstate.OriginRemote) || !g.ShouldAcceptRemoteUpdate("t2") {
		t.Fatalf("expected syncing to accept")
	}
}

func TestGate_RespectsLockTTL(t *testing.T) {
	g, _, r, v := newGate()
	r.Lock("t1", model.EntityKindTask)

	v.Advance(poslock.DefaultTaskTTL - time.Millisecond)
	if g.ShouldAcceptRemoteUpdate("t1") {
		t.Fatalf("expected locked entity to be rejected")
	}
	if !g.ShouldAcceptRemoteUpdate("t2") {
		t.Fatalf("expected unrelated entity to be accepted")
	}

	v.Advance(2 * time.Millisecond)
	if !g.ShouldAcceptRemoteUpdate("t1") {
		t.Fatalf("expected lock to lapse without unlock")
	}
}
