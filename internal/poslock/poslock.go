// Package poslock keeps short-lived per-entity locks that shield an entity
// from remote position writes after a local gesture ends.
//
// Expiry is checked lazily on read; there is no background sweep.
package poslock

import (
	"sort"
	"sync"
	"time"

	"clarity-canvas/internal/clock"
	"clarity-canvas/internal/model"
)

const (
	DefaultTaskTTL  = 1000 * time.Millisecond
	DefaultGroupTTL = 3000 * time.Millisecond
)

type Options struct {
	Clock    clock.Clock
	TaskTTL  time.Duration
	GroupTTL time.Duration
}

type Registry struct {
	clk      clock.Clock
	taskTTL  time.Duration
	groupTTL time.Duration

	mu      sync.Mutex
	entries map[string]model.LockEntry
}

func New(opts Options) *Registry {
	clk := opts.Clock
	if clk == nil {
		clk = clock.Real()
	}
	task := opts.TaskTTL
	if task <= 0 {
		task = DefaultTaskTTL
	}
	group := opts.GroupTTL
	if group <= 0 {
		group = DefaultGroupTTL
	}
	return &Registry{
		clk:      clk,
		taskTTL:  task,
		groupTTL: group,
		entries:  map[string]model.LockEntry{},
	}
}

// TTL returns the default lock duration for kind.
func (r *Registry) TTL(kind model.EntityKind) time.Duration {
	if kind == model.EntityKindGroup {
		return r.groupTTL
	}
	return r.taskTTL
}

// Lock inserts or refreshes the lock on entityID with the default TTL for kind.
func (r *Registry) Lock(entityID string, kind model.EntityKind) model.LockEntry {
	return r.LockFor(entityID, kind, r.TTL(kind))
}

// LockFor inserts or refreshes the lock with an explicit duration. A refresh
// replaces the expiry, so rapid successive gestures extend protection.
func (r *Registry) LockFor(entityID string, kind model.EntityKind, ttl time.Duration) model.LockEntry {
	e := model.LockEntry{
		EntityID:   entityID,
		EntityKind: kind,
		ExpiresAt:  r.clk.Now().Add(ttl),
	}
	r.mu.Lock()
	r.entries[entityID] = e
	r.mu.Unlock()
	return e
}

// Unlock releases entityID early. It reports whether a live lock was removed.
func (r *Registry) Unlock(entityID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[entityID]
	if !ok {
		return false
	}
	delete(r.entries, entityID)
	return !r.expired(e)
}

func (r *Registry) IsLocked(entityID string) bool {
	_, ok := r.Get(entityID)
	return ok
}

// Get returns the live entry for entityID, evicting it if it has lapsed.
func (r *Registry) Get(entityID string) (model.LockEntry, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[entityID]
	if !ok {
		return model.LockEntry{}, false
	}
	if r.expired(e) {
		delete(r.entries, entityID)
		return model.LockEntry{}, false
	}
	return e, true
}

// Active lists live entries ordered by entity id, evicting lapsed ones.
func (r *Registry) Active() []model.LockEntry {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]model.LockEntry, 0, len(r.entries))
	for id, e := range r.entries {
		if r.expired(e) {
			delete(r.entries, id)
			continue
		}
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].EntityID < out[j].EntityID })
	return out
}

func (r *Registry) ClearAll() {
	r.mu.Lock()
	r.entries = map[string]model.LockEntry{}
	r.mu.Unlock()
}

// Len counts stored entries, including lapsed ones not yet evicted.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

func (r *Registry) expired(e model.LockEntry) bool {
	return r.clk.Now().After(e.ExpiresAt)
}
