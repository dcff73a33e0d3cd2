// Package ssm implements the sequential state machine primitive of
// spec.md §3 "Session State Machine (SSM)" and §4.2. Protocol drivers
// compose an SSM per device to express a linear sequence of asynchronous
// USB exchanges: one step per outstanding transfer, advanced from the
// transfer's completion callback.
//
// This follows the design note in spec.md §9: rather than a struct of
// function pointers chained by "call next from completion" (the source's
// C idiom), the SSM here is driven by explicit Next/JumpTo/MarkAborted
// calls a driver issues from its own completion handlers, and composition
// of a child under a parent is an explicit StartSub call rather than a
// parent pointer threaded through callbacks.
package ssm

import "fmt"

// Handler is invoked every time the SSM enters a step, including step 0 on
// Start and any step reached via JumpTo.
type Handler func(s *SSM)

// Completion is invoked exactly once when the SSM reaches a terminal state,
// successfully or not.
type Completion func(s *SSM)

// SSM is a reusable sequential state machine. The zero value is not usable;
// construct with New.
type SSM struct {
	name      string
	nsteps    int
	cur       int
	handler   Handler
	completion Completion
	err       error
	completed bool
	started   bool
	parent    *SSM

	// Priv is scratch space a driver may use to stash per-step state; the
	// SSM does not interpret it. Exclusively owned by the driver per
	// spec.md §5 "Memory ownership".
	Priv interface{}
}

// New allocates an SSM with nsteps steps driven by handler. name is used
// only for diagnostics.
func New(name string, nsteps int, handler Handler) *SSM {
	if nsteps <= 0 {
		panic("ssm: nsteps must be positive")
	}
	return &SSM{
		name:      name,
		nsteps:    nsteps,
		handler:   handler,
		completed: true, // a fresh SSM behaves like a completed one for Start's assertion
	}
}

// CurrentStep returns the 0-based index of the step currently executing.
func (s *SSM) CurrentStep() int { return s.cur }

// NumSteps returns the total step count N.
func (s *SSM) NumSteps() int { return s.nsteps }

// Completed reports whether the SSM has reached a terminal state.
func (s *SSM) Completed() bool { return s.completed }

// Err returns the terminal error, or nil on success (spec.md §3 "error code
// (0 = success)").
func (s *SSM) Err() error { return s.err }

// Start begins (or restarts) the SSM: asserts it is completed or fresh,
// resets current=0, completed=false, err=nil, and invokes handler(s).
func (s *SSM) Start(completion Completion) {
	if !s.completed {
		panic(fmt.Sprintf("ssm %q: Start called while still running", s.name))
	}
	s.cur = 0
	s.err = nil
	s.completed = false
	s.started = true
	s.completion = completion
	s.handler(s)
}

// Next asserts the SSM is not completed, advances to the next step, and
// either invokes the handler for that step or — if current has reached N —
// marks the SSM completed successfully and invokes the completion callback.
// Invoking Next on the final step is the canonical way to mark success.
func (s *SSM) Next() {
	s.assertRunning("Next")
	s.cur++
	if s.cur >= s.nsteps {
		s.finish(nil)
		return
	}
	s.handler(s)
}

// JumpTo sets current to step (which must be < N) and invokes the handler.
func (s *SSM) JumpTo(step int) {
	s.assertRunning("JumpTo")
	if step < 0 || step >= s.nsteps {
		panic(fmt.Sprintf("ssm %q: JumpTo(%d) out of range [0,%d)", s.name, step, s.nsteps))
	}
	s.cur = step
	s.handler(s)
}

// MarkCompleted marks the SSM successful regardless of current step and
// invokes the completion callback.
func (s *SSM) MarkCompleted() {
	s.assertRunning("MarkCompleted")
	s.finish(nil)
}

// MarkAborted requires a non-nil err, stores it, marks the SSM completed,
// and invokes the completion callback. This is the canonical driver-side
// path for failing a protocol step (spec.md §7).
func (s *SSM) MarkAborted(err error) {
	if err == nil {
		panic(fmt.Sprintf("ssm %q: MarkAborted called with nil error", s.name))
	}
	s.assertRunning("MarkAborted")
	s.finish(err)
}

func (s *SSM) finish(err error) {
	s.err = err
	s.completed = true
	if s.completion != nil {
		s.completion(s)
	}
}

func (s *SSM) assertRunning(op string) {
	if s.completed {
		panic(fmt.Sprintf("ssm %q: %s called after completion", s.name, op))
	}
}

// StartSub starts child under parent: on child success it advances parent
// one step (Next); on child failure it aborts parent with the same error
// (MarkAborted). The child is considered freed at its terminal transition —
// callers must not reuse it afterward, matching spec.md §3's "the child SSM
// started under a parent ... is freed at its terminal transition" and §5's
// ownership rule that the parent exclusively owns a started child until
// then.
func StartSub(parent, child *SSM) {
	child.parent = parent
	child.Start(func(c *SSM) {
		if c.Err() != nil {
			parent.MarkAborted(c.Err())
			return
		}
		parent.Next()
	})
}
