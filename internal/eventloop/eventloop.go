// Package eventloop implements the unified event loop of spec.md §4.3: a
// single loop multiplexing USB transport completions with timer-driven
// callbacks. Within one iteration, USB completions are dispatched before
// timers (spec.md §5 "Ordering").
package eventloop

import (
	"time"

	"fprint/internal/timer"
	"fprint/internal/transport"
)

// DefaultTimeout is used by HandleEvents, matching spec.md §4.3's "two
// second timeout".
const DefaultTimeout = 2 * time.Second

// Loop combines a Transport and a timer.Queue into the single dispatcher
// every public engine entry point runs on top of (spec.md §5).
type Loop struct {
	Transport transport.Transport
	Timers    *timer.Queue
	now       func() time.Time
}

// New returns a Loop driving t and owning a fresh timer queue.
func New(t transport.Transport) *Loop {
	return &Loop{Transport: t, Timers: timer.NewQueue(), now: time.Now}
}

// SetClock overrides the clock source used to decide which timers are due;
// used by tests.
func (l *Loop) SetClock(now func() time.Time) {
	l.now = now
	l.Timers.SetClock(now)
}

// HandleEventsTimeout blocks up to timeout, dispatches any USB completions
// that become ready, then invokes every timer whose expiry is now past.
// Returns the number of USB completions dispatched, or a negative errno on
// transport error.
func (l *Loop) HandleEventsTimeout(timeout time.Duration) (int, error) {
	n, err := l.Transport.HandleEvents(timeout)
	if err != nil {
		return n, err
	}
	l.Timers.FireDue(l.now())
	return n, nil
}

// HandleEvents is equivalent to HandleEventsTimeout(DefaultTimeout).
func (l *Loop) HandleEvents() (int, error) {
	return l.HandleEventsTimeout(DefaultTimeout)
}

// GetNextTimeout returns the minimum of the engine's next timer and
// maxWake (the transport's next required wake, supplied by the caller
// since Transport does not itself expose one), and whether any timeout is
// pending at all.
func (l *Loop) GetNextTimeout(maxWake time.Duration) (time.Duration, bool) {
	next, ok := l.Timers.Next()
	if !ok {
		if maxWake > 0 {
			return maxWake, true
		}
		return 0, false
	}
	d := next.Sub(l.now())
	if d < 0 {
		d = 0
	}
	if maxWake > 0 && maxWake < d {
		d = maxWake
	}
	return d, true
}

// GetPollFDs exposes the transport's watched descriptors so a caller with
// its own main loop can integrate (spec.md §4.3).
func (l *Loop) GetPollFDs() []transport.PollFD {
	return l.Transport.PollFDs()
}

// SetPollFDNotifiers forwards to the transport.
func (l *Loop) SetPollFDNotifiers(add, remove transport.PollFDNotifier) {
	l.Transport.SetPollFDNotifiers(add, remove)
}
