// Package timer implements the engine's single ordered timer collection
// (spec.md §3 "Timer", §4.3). Timers are kept sorted by earliest expiry on a
// monotonic clock so system clock adjustments never disturb ordering.
package timer

import (
	"container/heap"
	"time"
)

// Callback is invoked when a timer fires. It must not block and must be
// safe to cancel other timers, including itself, from within the call
// (spec.md §4.3 "Ordering").
type Callback func(t *Timer, data interface{})

// Timer is a single scheduled callback.
type Timer struct {
	expiry   time.Time
	cb       Callback
	data     interface{}
	index    int // heap index, maintained by container/heap
	cancelled bool
}

// Expiry returns the monotonic expiry time.
func (t *Timer) Expiry() time.Time { return t.expiry }

// Queue is a min-heap of pending timers ordered by expiry.
type Queue struct {
	items timerHeap
	now   func() time.Time
}

// NewQueue returns an empty timer queue. now defaults to time.Now (which
// returns a monotonic reading as long as the value is never serialized).
func NewQueue() *Queue {
	return &Queue{now: time.Now}
}

// SetClock overrides the clock source; used by tests to control expiry
// deterministically.
func (q *Queue) SetClock(now func() time.Time) { q.now = now }

// Add schedules cb to run after delay, passing data through unchanged.
// Returns the Timer handle so the caller may Cancel it.
func (q *Queue) Add(delay time.Duration, cb Callback, data interface{}) *Timer {
	t := &Timer{
		expiry: q.now().Add(delay),
		cb:     cb,
		data:   data,
	}
	heap.Push(&q.items, t)
	return t
}

// Cancel removes t from the queue if still pending. Cancellation is
// synchronous: once Cancel returns, the callback is guaranteed not to fire
// (spec.md §5 "Cancellation").
func (q *Queue) Cancel(t *Timer) {
	if t.cancelled || t.index < 0 || t.index >= len(q.items) {
		return
	}
	t.cancelled = true
	heap.Remove(&q.items, t.index)
}

// Next returns the expiry of the earliest pending timer and true, or the
// zero time and false if the queue is empty.
func (q *Queue) Next() (time.Time, bool) {
	if len(q.items) == 0 {
		return time.Time{}, false
	}
	return q.items[0].expiry, true
}

// Len reports the number of pending timers.
func (q *Queue) Len() int { return len(q.items) }

// FireDue pops and invokes every timer whose expiry is not after now, in
// ascending expiry order, removing each timer before invoking its callback
// (spec.md §4.3 "Timer dispatch removes the fired timer before invoking its
// callback"). A callback that schedules new timers or cancels others during
// this call sees a consistent queue.
func (q *Queue) FireDue(now time.Time) {
	for len(q.items) > 0 && !q.items[0].expiry.After(now) {
		t := heap.Pop(&q.items).(*Timer)
		if t.cancelled {
			continue
		}
		t.cancelled = true // a fired timer cannot be cancelled nor re-fired
		t.cb(t, t.data)
	}
}

type timerHeap []*Timer

func (h timerHeap) Len() int            { return len(h) }
func (h timerHeap) Less(i, j int) bool  { return h[i].expiry.Before(h[j].expiry) }
func (h timerHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}

func (h *timerHeap) Push(x interface{}) {
	t := x.(*Timer)
	t.index = len(*h)
	*h = append(*h, t)
}

func (h *timerHeap) Pop() interface{} {
	old := *h
	n := len(old)
	t := old[n-1]
	old[n-1] = nil
	t.index = -1
	*h = old[:n-1]
	return t
}
