package clock

import (
	"container/heap"
	"sync"
	"time"
)

// Virtual is a manually advanced clock. Callbacks run synchronously on the
// goroutine calling Advance or Set, in deadline order (ties by scheduling order).
type Virtual struct {
	mu    sync.Mutex
	now   time.Time
	seq   uint64
	queue timerQueue
}

func NewVirtual(start time.Time) *Virtual {
	return &Virtual{now: start}
}

func (v *Virtual) Now() time.Time {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.now
}

func (v *Virtual) AfterFunc(d time.Duration, f func()) Timer {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.seq++
	t := &virtualTimer{v: v, at: v.now.Add(d), seq: v.seq, fn: f}
	heap.Push(&v.queue, t)
	return t
}

// Advance moves time forward by d, firing every callback that comes due.
func (v *Virtual) Advance(d time.Duration) {
	v.mu.Lock()
	target := v.now.Add(d)
	v.mu.Unlock()
	v.Set(target)
}

// Set moves time to t (never backwards), firing due callbacks. Callbacks
// scheduled by a firing callback run too if they fall at or before t.
func (v *Virtual) Set(t time.Time) {
	for {
		v.mu.Lock()
		if len(v.queue) == 0 || v.queue[0].at.After(t) {
			if t.After(v.now) {
				v.now = t
			}
			v.mu.Unlock()
			return
		}
		next := heap.Pop(&v.queue).(*virtualTimer)
		if next.at.After(v.now) {
			v.now = next.at
		}
		next.fired = true
		fn := next.fn
		v.mu.Unlock()
		fn()
	}
}

// Pending returns the number of armed callbacks.
func (v *Virtual) Pending() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return len(v.queue)
}

type virtualTimer struct {
	v     *Virtual
	at    time.Time
	seq   uint64
	fn    func()
	index int
	fired bool
}

func (t *virtualTimer) Stop() bool {
	t.v.mu.Lock()
	defer t.v.mu.Unlock()
	if t.fired || t.index < 0 {
		return false
	}
	heap.Remove(&t.v.queue, t.index)
	return true
}

type timerQueue []*virtualTimer

func (q timerQueue) Len() int { return len(q) }

func (q timerQueue) Less(i, j int) bool {
	if q[i].at.Equal(q[j].at) {
		return q[i].seq < q[j].seq
	}
	return q[i].at.Before(q[j].at)
}

func (q timerQueue) Swap(i, j int) {
	q[i], q[j] = q[j], q[i]
	q[i].index = i
	q[j].index = j
}

func (q *timerQueue) Push(x any) {
	t := x.(*virtualTimer)
	t.index = len(*q)
	*q = append(*q, t)
}

func (q *timerQueue) Pop() any {
	old := *q
	n := len(old)
	t := old[n-1]
	old[n-1] = nil
	t.index = -1
	*q = old[:n-1]
	return t
}
