package device

import (
	"fmt"

	"fprint/internal/corelog"
	"fprint/internal/corerr"
	"fprint/internal/eventloop"
	"fprint/internal/resultcode"
)

// Driver is the lifecycle contract an image-device adapter (internal/imgdev)
// or any other per-protocol driver implements against the session engine.
// Every method is asynchronous: it issues whatever USB exchange it needs
// and must eventually invoke the supplied callback from within the
// eventloop.Loop's dispatch (spec.md §5).
type Driver interface {
	// DriverID is stable across releases (spec.md §3 "Device").
	DriverID() uint16
	// DeviceType distinguishes incompatible sensor variants sharing a
	// driver.
	DeviceType() uint32
	// EnrollStageCount is N, the number of enroll stages this driver
	// requires.
	EnrollStageCount() int

	// Open runs the driver's open protocol; cb reports 0 on success or a
	// negative errno.
	Open(dev *Device, cb func(status int))
	// Close runs the driver's close protocol; cb is invoked unconditionally
	// once teardown completes.
	Close(dev *Device, cb func())

	// StartOp begins acquisition op; cb reports 0 on success ("started") or
	// a negative errno.
	StartOp(dev *Device, op OpKind, cb func(status int))
	// StopOp halts acquisition op. Drivers with no stop step must invoke cb
	// immediately (spec.md §4.1).
	StopOp(dev *Device, op OpKind, cb func())
}

// Device represents an opened sensor (spec.md §3 "Device"). It owns its own
// private state and callback slots; there is no cross-device sharing
// (spec.md §5).
type Device struct {
	driver Driver
	loop   *eventloop.Loop
	log    *corelog.Logger

	state State

	enrollStage int // counter on [0, N-1], spec.md §4.1 enroll staging policy

	// Priv is the driver's opaque private state (spec.md §3).
	Priv interface{}

	// terminal callbacks for the currently running (or just-finished)
	// acquisition; set by Start*, cleared once fired.
	onOpenDone   func(status int)
	onCloseDone  func()
	onStartDone  func(status int)
	onStopDone   func()
	onResult     func(result resultcode.Result, err error)
	onEnrollStage func(stage int, result resultcode.Result)
}

// New constructs a Device in the INITIAL state bound to driver and loop.
func New(driver Driver, loop *eventloop.Loop, tag string) *Device {
	return &Device{
		driver: driver,
		loop:   loop,
		log:    corelog.New(tag),
		state:  Initial,
	}
}

// State returns the current lifecycle state.
func (d *Device) State() State { return d.state }

// EnrollStage returns the current enroll stage counter on [0, N-1].
func (d *Device) EnrollStage() int { return d.enrollStage }

func (d *Device) illegal(event string) error {
	err := &IllegalTransitionError{From: d.state, Event: event}
	d.log.BugOn("%v", err)
	return err
}

// Open drives INITIAL -> INITIALIZING -> {INITIALIZED, ERROR}.
func (d *Device) Open(cb func(status int)) error {
	if d.state != Initial {
		return d.illegal("open")
	}
	d.state = Initializing
	d.onOpenDone = cb
	d.driver.Open(d, func(status int) {
		if d.state != Initializing {
			d.illegal("open-completion")
			return
		}
		if status == 0 {
			d.state = Initialized
		} else {
			d.state = ErrorState
		}
		done := d.onOpenDone
		d.onOpenDone = nil
		if done != nil {
			done(status)
		}
	})
	return nil
}

// Close drives INITIALIZED (or any terminal acquisition state) ->
// DEINITIALIZING -> DEINITIALIZED.
func (d *Device) Close(cb func()) error {
	if !d.closeable() {
		return d.illegal("close")
	}
	d.state = Deinitializing
	d.onCloseDone = cb
	d.driver.Close(d, func() {
		d.state = Deinitialized
		done := d.onCloseDone
		d.onCloseDone = nil
		if done != nil {
			done()
		}
	})
	return nil
}

func (d *Device) closeable() bool {
	if d.state == Initialized || d.state == ErrorState {
		return true
	}
	if op, ok := d.state.IsAcquisition(); ok {
		return d.state == doneState(op)
	}
	return false
}

// StartOp drives INITIALIZED -> X-STARTING -> X-RUNNING on driver
// "started(0)". A nonzero start status moves to ERROR and reports the
// negated code exactly once (spec.md §4.1, §7).
func (d *Device) StartOp(op OpKind, cb func(status int)) error {
	if d.state != Initialized {
		return d.illegal(fmt.Sprintf("start-%s", op))
	}
	d.state = startingState(op)
	d.onStartDone = cb
	d.enrollStage = 0
	d.driver.StartOp(d, op, func(status int) {
		if d.state != startingState(op) {
			d.illegal(fmt.Sprintf("start-%s-completion", op))
			return
		}
		done := d.onStartDone
		d.onStartDone = nil
		if status != 0 {
			d.state = ErrorState
			if done != nil {
				done(corerr.Negate(status))
			}
			return
		}
		d.state = runningState(op)
		if done != nil {
			done(0)
		}
	})
	return nil
}

// StopOp drives X-RUNNING or X-DONE or ERROR -> X-STOPPING -> INITIALIZED.
func (d *Device) StopOp(op OpKind, cb func()) error {
	if !d.stoppable(op) {
		return d.illegal(fmt.Sprintf("stop-%s", op))
	}
	prev := d.state
	d.state = stoppingState(op)
	d.onStopDone = cb
	d.driver.StopOp(d, op, func() {
		if d.state != stoppingState(op) {
			d.illegal(fmt.Sprintf("stop-%s-completion", op))
			return
		}
		d.state = Initialized
		done := d.onStopDone
		d.onStopDone = nil
		if done != nil {
			done()
		}
	})
	_ = prev
	return nil
}

func (d *Device) stoppable(op OpKind) bool {
	if d.state == ErrorState {
		return true
	}
	if d.state == runningState(op) {
		return true
	}
	if op.hasDone() && d.state == doneState(op) {
		return true
	}
	return false
}

// MarkOpDone transitions a verify/identify/capture acquisition to its DONE
// state; drivers (via internal/imgdev) call this once a terminal result has
// been produced but before the caller has issued Stop. Enroll has no DONE
// state and must not call this (spec.md §4.1).
func (d *Device) MarkOpDone(op OpKind) {
	if !op.hasDone() {
		d.illegal(fmt.Sprintf("mark-%s-done", op))
		return
	}
	if d.state != runningState(op) {
		d.illegal(fmt.Sprintf("mark-%s-done", op))
		return
	}
	d.state = doneState(op)
}

// FinishEnroll transitions an enroll acquisition directly back to
// INITIALIZED, the terminal step for enroll (spec.md §4.1: "enroll
// transitions directly back to INITIALIZED after the final stage").
func (d *Device) FinishEnroll() {
	if d.state != runningState(Enroll) {
		d.illegal("finish-enroll")
		return
	}
	d.state = Initialized
}

// ReportEnrollStage applies spec.md §4.1's enroll staging policy: PASS
// advances the counter, COMPLETE resets it, RETRY* leaves it unchanged,
// FAIL resets it. It does not change the lifecycle state; ending the
// enrollment is done separately through FinishEnroll.
func (d *Device) ReportEnrollStage(result resultcode.Result) {
	switch result {
	case resultcode.EnrollPass:
		d.enrollStage++
	case resultcode.EnrollComplete:
		d.enrollStage = 0
	case resultcode.EnrollFail:
		d.enrollStage = 0
	default:
		// RETRY* leaves the counter unchanged.
	}
	if d.onEnrollStage != nil {
		d.onEnrollStage(d.enrollStage, result)
	}
}

// SetEnrollStageCallback registers the callback fired on every PASS/RETRY*/
// COMPLETE/FAIL report during an enroll acquisition (spec.md §7: "Intermediate
// RETRY codes during enroll ... do fire the enroll stage callback").
func (d *Device) SetEnrollStageCallback(cb func(stage int, result resultcode.Result)) {
	d.onEnrollStage = cb
}

// SetResultCallback registers the callback fired with a verify/identify/
// capture acquisition's terminal result, or the error path if the
// acquisition fails outright (spec.md §7: "the caller always receives
// exactly one terminal callback per acquisition").
func (d *Device) SetResultCallback(cb func(result resultcode.Result, err error)) {
	d.onResult = cb
}

// ReportResult fires the registered result callback, if any.
func (d *Device) ReportResult(result resultcode.Result, err error) {
	if d.onResult != nil {
		d.onResult(result, err)
	}
}

// Loop exposes the shared event loop so a driver can submit transfers and
// timers through the same dispatcher the caller drives.
func (d *Device) Loop() *eventloop.Loop { return d.loop }

// Log exposes the per-device diagnostic logger.
func (d *Device) Log() *corelog.Logger { return d.log }
