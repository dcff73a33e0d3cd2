package fprint

import (
	"fprint/internal/device"
	"fprint/internal/eventloop"
	"fprint/internal/fpconfig"
	"fprint/internal/image"
	"fprint/internal/imgdev"
	"fprint/internal/match"
	"fprint/internal/resultcode"
	"fprint/internal/template"
	"fprint/internal/transport"
)

// Device is a claimed, opened sensor: the public handle combining the
// lifecycle engine (internal/device), the acquisition state machine
// (internal/imgdev), and the event loop that drives both.
type Device struct {
	reg     Registration
	devtype uint32

	loop    *eventloop.Loop
	session *imgdev.Session
	core    *device.Device
}

// Open claims transport t (typically an internal/transport.USBTransport
// opened against reg's VidPid, or internal/transport.NewFake for tests),
// builds the driver and extractor reg declares, and runs the open
// protocol. cfg supplies the matching tunables (fpconfig.Default() if the
// caller has none of its own).
func Open(reg Registration, vendor, product uint16, devtype uint32, t transport.Transport, cfg fpconfig.Config, cb func(status int)) (*Device, error) {
	driver, err := reg.NewImageDriver(vendor, product, devtype)
	if err != nil {
		return nil, err
	}
	extractor := imgdev.Extractor(nil)
	if reg.NewExtractor != nil {
		extractor = reg.NewExtractor()
	}

	session := imgdev.NewSession(driver, extractor)
	session.SetMatchParams(cfg.Match)
	session.SetMatchThreshold(cfg.MatchThreshold)

	loop := eventloop.New(t)
	core := device.New(session, loop, reg.Name)

	d := &Device{reg: reg, devtype: devtype, loop: loop, session: session, core: core}
	if err := core.Open(cb); err != nil {
		return nil, err
	}
	return d, nil
}

// Close runs the close protocol; cb is invoked unconditionally once
// teardown completes.
func (d *Device) Close(cb func()) error {
	return d.core.Close(cb)
}

// Loop exposes the event loop a caller must pump (HandleEvents or
// HandleEventsTimeout) for any callback on this Device to ever fire.
func (d *Device) Loop() *eventloop.Loop { return d.loop }

// State returns the device's current lifecycle state (spec.md §4.1).
func (d *Device) State() device.State { return d.core.State() }

// OnEnrollStage registers the callback fired for every PASS/RETRY*/FAIL
// report during an Enroll acquisition, distinct from the terminal callback
// (spec.md §7, SPEC_FULL.md §4.12).
func (d *Device) OnEnrollStage(cb func(stage int, result resultcode.Result)) {
	d.core.SetEnrollStageCallback(cb)
}

// OnResult registers the terminal callback for the current acquisition.
func (d *Device) OnResult(cb func(result resultcode.Result, err error)) {
	d.core.SetResultCallback(cb)
}

// StartEnroll begins an enroll acquisition.
func (d *Device) StartEnroll(cb func(status int)) error {
	return d.core.StartOp(device.Enroll, cb)
}

// StopEnroll halts an in-progress enroll acquisition.
func (d *Device) StopEnroll(cb func()) error { return d.core.StopOp(device.Enroll, cb) }

// EnrolledTemplate returns the template produced by the most recently
// completed Enroll acquisition, or nil.
func (d *Device) EnrolledTemplate() *template.Template { return d.session.EnrolledTemplate() }

// StartVerify begins a verify acquisition against gallery, the single
// previously-enrolled template rendered to match.Point form (see
// RenderForMatching).
func (d *Device) StartVerify(gallery []match.Point, cb func(status int)) error {
	d.session.SetGalleryTemplate(gallery)
	return d.core.StartOp(device.Verify, cb)
}

// StopVerify halts an in-progress verify acquisition.
func (d *Device) StopVerify(cb func()) error { return d.core.StopOp(device.Verify, cb) }

// StartIdentify begins an identify acquisition against the ordered gallery
// of enrolled templates.
func (d *Device) StartIdentify(gallery [][]match.Point, cb func(status int)) error {
	d.session.SetGalleryTemplates(gallery)
	return d.core.StartOp(device.Identify, cb)
}

// StopIdentify halts an in-progress identify acquisition.
func (d *Device) StopIdentify(cb func()) error { return d.core.StopOp(device.Identify, cb) }

// IdentifiedIndex returns the gallery index the most recent Identify
// acquisition matched, or -1.
func (d *Device) IdentifiedIndex() int { return d.session.IdentifiedIndex() }

// StartCapture begins a raw-image capture acquisition.
func (d *Device) StartCapture(cb func(status int)) error {
	return d.core.StartOp(device.Capture, cb)
}

// StopCapture halts an in-progress capture acquisition.
func (d *Device) StopCapture(cb func()) error { return d.core.StopOp(device.Capture, cb) }

// CapturedImage returns the image produced by the most recently completed
// Capture acquisition, or nil.
func (d *Device) CapturedImage() *image.Image { return d.session.CapturedImage() }

// ReportFingerStatus forwards a sensor's finger-presence notification into
// the acquisition state machine; concrete drivers call this from their own
// transport completion handlers.
func (d *Device) ReportFingerStatus(present bool) { d.session.ReportFingerStatus(present) }

// ImageCaptured forwards a sensor's captured image into the acquisition
// state machine.
func (d *Device) ImageCaptured(img *image.Image) { d.session.ImageCaptured(img) }

// SessionError forwards a sensor's protocol-level failure into the
// acquisition state machine, ending the acquisition with err.
func (d *Device) SessionError(err error) { d.session.SessionError(err) }
