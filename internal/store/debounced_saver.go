package store

import (
	"context"
	"sync"
	"time"

	"clarity-canvas/internal/clock"
)

// DebouncedSaver persists a DB snapshot shortly after the last change. Canvas
// writes are applied in memory first; persistence is fire-and-forget.
type DebouncedSaver struct {
	store    Store
	db       *DB
	debounce time.Duration
	slot     *clock.Slot
	onError  func(error)

	mu      sync.Mutex
	pending bool
	running bool
	saves   int
}

type DebouncedSaverOpts struct {
	Store    Store
	DB       *DB
	Debounce time.Duration
	Clock    clock.Clock
	// OnError receives save failures. They are otherwise dropped; the next
	// change schedules another attempt.
	OnError func(error)
}

func NewDebouncedSaver(opts DebouncedSaverOpts) *DebouncedSaver {
	debounce := opts.Debounce
	if debounce <= 0 {
		debounce = 500 * time.Millisecond
	}
	return &DebouncedSaver{
		store:    opts.Store,
		db:       opts.DB,
		debounce: debounce,
		slot:     clock.NewSlot(opts.Clock),
		onError:  opts.OnError,
	}
}

func (d *DebouncedSaver) Notify() {
	if d == nil {
		return
	}
	d.mu.Lock()
	d.pending = true
	d.mu.Unlock()
	d.slot.Schedule(d.debounce, d.onTimer)
}

// Flush saves immediately if a change is pending.
func (d *DebouncedSaver) Flush(ctx context.Context) error {
	if d == nil {
		return nil
	}
	d.slot.Cancel()
	d.mu.Lock()
	if !d.pending {
		d.mu.Unlock()
		return nil
	}
	d.pending = false
	d.mu.Unlock()
	return d.save(ctx)
}

// Saves returns how many snapshots have been written.
func (d *DebouncedSaver) Saves() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.saves
}

func (d *DebouncedSaver) onTimer() {
	d.mu.Lock()
	if d.running {
		// Another save is in flight; try again to pick up pending changes.
		d.mu.Unlock()
		d.slot.Schedule(d.debounce, d.onTimer)
		return
	}
	if !d.pending {
		d.mu.Unlock()
		return
	}
	d.pending = false
	d.running = true
	d.mu.Unlock()

	if err := d.save(context.Background()); err != nil && d.onError != nil {
		d.onError(err)
	}

	d.mu.Lock()
	d.running = false
	again := d.pending
	d.mu.Unlock()
	if again {
		d.slot.Schedule(d.debounce, d.onTimer)
	}
}

func (d *DebouncedSaver) save(ctx context.Context) error {
	if err := d.store.SaveSQLite(ctx, d.db); err != nil {
		return err
	}
	d.mu.Lock()
	d.saves++
	d.mu.Unlock()
	return nil
}
