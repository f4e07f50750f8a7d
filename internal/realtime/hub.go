package realtime

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
)

// Bulk passes such as rollover publish many events back to back.
const defaultSubscriberBuffer = 1024

var ErrClosed = errors.New("realtime: hub closed")

// Filter selects the events a subscriber receives. nil means all.
type Filter func(Event) bool

type subscriber struct {
	ctx    context.Context
	filter Filter
	ch     chan Event
	closed atomic.Bool
}

// Hub fans events out to in-process subscribers. Slow subscribers lose events
// rather than block the publisher.
type Hub struct {
	mu          sync.RWMutex
	subscribers map[*subscriber]struct{}
	closed      atomic.Bool
	dropped     atomic.Int64
}

func NewHub() *Hub {
	return &Hub{subscribers: make(map[*subscriber]struct{})}
}

func (h *Hub) Publish(ev Event) error {
	if h.closed.Load() {
		return ErrClosed
	}

	h.mu.RLock()
	subs := make([]*subscriber, 0, len(h.subscribers))
	for sub := range h.subscribers {
		subs = append(subs, sub)
	}
	h.mu.RUnlock()

	for _, sub := range subs {
		if sub.closed.Load() {
			continue
		}
		if sub.filter != nil && !sub.filter(ev) {
			continue
		}
		h.trySend(sub, ev)
	}
	return nil
}

// Subscribe registers a subscriber until ctx is done. The returned channel is
// closed on unsubscribe or Shutdown.
func (h *Hub) Subscribe(ctx context.Context, filter Filter) (<-chan Event, error) {
	if h.closed.Load() {
		return nil, ErrClosed
	}
	sub := &subscriber{
		ctx:    ctx,
		filter: filter,
		ch:     make(chan Event, defaultSubscriberBuffer),
	}

	h.mu.Lock()
	if h.closed.Load() {
		h.mu.Unlock()
		return nil, ErrClosed
	}
	h.subscribers[sub] = struct{}{}
	h.mu.Unlock()

	go h.monitorContext(sub)
	return sub.ch, nil
}

// Subscribers returns the number of live subscribers.
func (h *Hub) Subscribers() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subscribers)
}

// Dropped returns how many deliveries were lost to full buffers.
func (h *Hub) Dropped() int64 {
	return h.dropped.Load()
}

func (h *Hub) Shutdown() {
	if !h.closed.CompareAndSwap(false, true) {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	for sub := range h.subscribers {
		if sub.closed.CompareAndSwap(false, true) {
			close(sub.ch)
		}
	}
	h.subscribers = nil
}

func (h *Hub) monitorContext(sub *subscriber) {
	<-sub.ctx.Done()
	h.removeSubscriber(sub)
}

func (h *Hub) removeSubscriber(sub *subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.subscribers == nil {
		return
	}
	if _, ok := h.subscribers[sub]; !ok {
		return
	}
	delete(h.subscribers, sub)
	if sub.closed.CompareAndSwap(false, true) {
		close(sub.ch)
	}
}

func (h *Hub) trySend(sub *subscriber, ev Event) {
	// The channel may be closed concurrently by removeSubscriber.
	defer func() {
		if r := recover(); r != nil {
			sub.closed.Store(true)
		}
	}()
	select {
	case sub.ch <- ev:
	default:
		h.dropped.Add(1)
	}
}
