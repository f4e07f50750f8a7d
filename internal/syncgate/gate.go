// Package syncgate decides whether remote changes may touch local state and
// applies the ones that may.
package syncgate

// StateView is the operation state the gate consults.
type StateView interface {
	CanAcceptRemoteUpdate() bool
}

// LockView is the per-entity lock registry the gate consults.
type LockView interface {
	IsLocked(entityID string) bool
}

// Gate is the admission check run before any remote mutation is applied.
// A refused update is dropped, never queued: the relay re-sends current state
// on the next change.
type Gate struct {
	state StateView
	locks LockView
}

func NewGate(state StateView, locks LockView) *Gate {
	return &Gate{state: state, locks: locks}
}

func (g *Gate) ShouldAcceptRemoteUpdate(entityID string) bool {
	if !g.state.CanAcceptRemoteUpdate() {
		return false
	}
	return !g.locks.IsLocked(entityID)
}
