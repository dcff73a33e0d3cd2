// Package imgdev implements the image-device acquisition state machine of
// spec.md §4.4 (C2): the per-acquisition phase machine (NONE, ACTIVATING,
// AWAIT-FINGER-ON, AWAIT-IMAGE, AWAIT-FINGER-OFF, DONE, DEACTIVATING) and
// the driver-facing callback contract that drives it, sitting between the
// lifecycle session engine (internal/device) and a concrete sensor's
// protocol driver.
package imgdev

import (
	"fprint/internal/device"
	"fprint/internal/image"
	"fprint/internal/match"
	"fprint/internal/minutiae"
	"fprint/internal/resultcode"
	"fprint/internal/template"
)

// MinAcceptableMinutiae is the per-image minutiae floor of spec.md §4.4;
// fewer than this and the capture is retried rather than accepted.
const MinAcceptableMinutiae = 10

// Phase is one state of the per-acquisition state machine.
type Phase int

const (
	PhaseNone Phase = iota
	PhaseActivating
	PhaseAwaitFingerOn
	PhaseAwaitImage
	PhaseAwaitFingerOff
	PhaseDone
	PhaseDeactivating
)

// ImageDriver is the protocol-specific adapter a concrete sensor driver
// implements; Session translates between it and the generic
// device.Driver/device.Device lifecycle contract.
type ImageDriver interface {
	DriverID() uint16
	DeviceType() uint32
	EnrollStageCount() int
	// FixedSize returns the driver's declared fixed image dimensions, or
	// (0, 0) if images carry their own dimensions.
	FixedSize() (width, height int)
	// Activate issues whatever transport exchange puts the sensor into the
	// requested acquisition mode; cb is the "activate_complete" callback.
	Activate(op device.OpKind, cb func(status int))
	// Deactivate tears the acquisition mode back down; cb is
	// "deactivate_complete".
	Deactivate(cb func())
	// SetCaptureState issues the transport state change to CAPTURE once a
	// finger is detected (spec.md §4.4's report_finger_status contract).
	SetCaptureState()
}

// Extractor turns a standardized image into a pruned minutiae list
// (internal/minutiae detection plus the internal/prune cascade). Session
// depends on the interface rather than the concrete pipeline so tests can
// substitute a canned extractor.
type Extractor interface {
	Extract(img *image.Image) (*minutiae.List, error)
}

// ExtractorFunc adapts a plain function to Extractor.
type ExtractorFunc func(img *image.Image) (*minutiae.List, error)

func (f ExtractorFunc) Extract(img *image.Image) (*minutiae.List, error) { return f(img) }

// Session drives one acquisition's worth of the phase machine on behalf of
// a device.Device; it implements device.Driver so it can be plugged
// directly into device.New.
type Session struct {
	driver    ImageDriver
	extractor Extractor

	matchParams    match.Params
	matchThreshold int

	dev   *device.Device
	op    device.OpKind
	phase Phase

	enrollTemplates []*template.Template
	finalTemplate   *template.Template

	galleryTemplate  []match.Point
	galleryTemplates [][]match.Point
	identifiedIndex  int

	capturedImage *image.Image

	pendingResult resultcode.Result
	pendingErr    error
}

// NewSession builds a Session around driver, using extractor to turn
// captured images into minutiae, and the Bozorth reference tunables and
// default threshold for matching.
func NewSession(driver ImageDriver, extractor Extractor) *Session {
	return &Session{
		driver:         driver,
		extractor:      extractor,
		matchParams:    match.DefaultParams(),
		matchThreshold: match.DefaultThreshold,
	}
}

// SetMatchParams overrides the matcher's tunables.
func (s *Session) SetMatchParams(p match.Params) { s.matchParams = p }

// SetMatchThreshold overrides the score a match is declared at or above.
func (s *Session) SetMatchThreshold(t int) { s.matchThreshold = t }

// SetGalleryTemplate sets the single enrolled template a Verify
// acquisition compares against.
func (s *Session) SetGalleryTemplate(pts []match.Point) { s.galleryTemplate = pts }

// SetGalleryTemplates sets the ordered set of enrolled templates an
// Identify acquisition searches.
func (s *Session) SetGalleryTemplates(gallery [][]match.Point) { s.galleryTemplates = gallery }

// IdentifiedIndex returns the gallery index the most recent Identify
// acquisition matched, or -1.
func (s *Session) IdentifiedIndex() int { return s.identifiedIndex }

// EnrolledTemplate returns the template produced by the most recently
// completed Enroll acquisition, or nil.
func (s *Session) EnrolledTemplate() *template.Template { return s.finalTemplate }

// CapturedImage returns the image produced by the most recently completed
// Capture acquisition, or nil.
func (s *Session) CapturedImage() *image.Image { return s.capturedImage }

// Phase returns the current acquisition phase.
func (s *Session) Phase() Phase { return s.phase }

// device.Driver implementation.

func (s *Session) DriverID() uint16      { return s.driver.DriverID() }
func (s *Session) DeviceType() uint32    { return s.driver.DeviceType() }
func (s *Session) EnrollStageCount() int { return s.driver.EnrollStageCount() }

// Open is a no-op handoff: image-device sensors typically need no
// additional protocol beyond USB claim, which happens below this layer.
func (s *Session) Open(dev *device.Device, cb func(status int)) {
	s.dev = dev
	cb(0)
}

func (s *Session) Close(dev *device.Device, cb func()) { cb() }

// StartOp implements spec.md §4.4's ACTIVATING phase.
func (s *Session) StartOp(dev *device.Device, op device.OpKind, cb func(status int)) {
	s.dev = dev
	s.op = op
	s.phase = PhaseActivating
	s.enrollTemplates = nil
	s.identifiedIndex = -1
	s.driver.Activate(op, func(status int) {
		if status != 0 {
			s.phase = PhaseNone
			cb(status)
			return
		}
		s.phase = PhaseAwaitFingerOn
		cb(0)
	})
}

// StopOp implements spec.md §4.4's DEACTIVATING phase.
func (s *Session) StopOp(dev *device.Device, op device.OpKind, cb func()) {
	s.phase = PhaseDeactivating
	s.driver.Deactivate(func() {
		s.phase = PhaseNone
		cb()
	})
}

// ReportFingerStatus implements the report_finger_status driver callback.
func (s *Session) ReportFingerStatus(present bool) {
	switch {
	case s.phase == PhaseAwaitFingerOn && present:
		s.phase = PhaseAwaitImage
		s.driver.SetCaptureState()
	case s.phase == PhaseAwaitFingerOff && !present:
		s.reportPendingResult()
	default:
		// other combinations ignored, per spec.md §4.4
	}
}

// SessionError implements the session_error driver callback: reports the
// error and ends the session without further phase transitions.
func (s *Session) SessionError(err error) {
	s.dev.ReportResult(0, err)
	s.phase = PhaseNone
}

// ImageCaptured implements the image_captured driver callback.
func (s *Session) ImageCaptured(img *image.Image) {
	if s.phase != PhaseAwaitImage {
		return // spec.md §4.4: only valid in AWAIT-IMAGE
	}
	w, h := s.driver.FixedSize()
	if err := image.Sanitize(img, w, h); err != nil {
		s.pendingErr = err
		s.phase = PhaseAwaitFingerOff
		return
	}
	image.Standardize(img)

	if s.op == device.Capture {
		s.capturedImage = img
		s.pendingResult = resultcode.CaptureComplete
		s.phase = PhaseAwaitFingerOff
		return
	}

	list, err := s.extractor.Extract(img)
	if err != nil {
		s.pendingErr = err
		s.phase = PhaseAwaitFingerOff
		return
	}
	if list.Len() < MinAcceptableMinutiae {
		s.pendingResult = retryResultFor(s.op)
		s.phase = PhaseAwaitFingerOff
		return
	}

	tpl := template.Encode(list)
	switch s.op {
	case device.Enroll:
		s.enrollTemplates = append(s.enrollTemplates, tpl)
		if len(s.enrollTemplates) >= s.driver.EnrollStageCount() {
			s.finalTemplate = mergeTemplates(s.enrollTemplates)
			s.pendingResult = resultcode.EnrollComplete
		} else {
			s.pendingResult = resultcode.EnrollPass
		}
	case device.Verify:
		pts := toMatchPoints(tpl, img.Height)
		score := match.Score(pts, s.galleryTemplate, s.matchParams)
		if score >= s.matchThreshold {
			s.pendingResult = resultcode.VerifyMatch
		} else {
			s.pendingResult = resultcode.VerifyNoMatch
		}
	case device.Identify:
		pts := toMatchPoints(tpl, img.Height)
		idx := match.Identify(pts, s.galleryTemplates, s.matchParams, s.matchThreshold)
		s.identifiedIndex = idx
		if idx >= 0 {
			s.pendingResult = resultcode.IdentifyMatch
		} else {
			s.pendingResult = resultcode.IdentifyNoMatch
		}
	}
	s.phase = PhaseAwaitFingerOff
}

func retryResultFor(op device.OpKind) resultcode.Result {
	switch op {
	case device.Enroll:
		return resultcode.EnrollRetry
	case device.Verify:
		return resultcode.VerifyRetry
	default:
		return resultcode.IdentifyRetry
	}
}

// reportPendingResult fires the result (and, for enroll, the stage)
// callback computed during ImageCaptured, then either returns the
// acquisition to AWAIT-FINGER-ON for another attempt or ends it.
func (s *Session) reportPendingResult() {
	if s.pendingErr != nil {
		err := s.pendingErr
		s.pendingErr = nil
		s.dev.ReportResult(0, err)
		s.phase = PhaseNone
		return
	}

	result := s.pendingResult
	if s.op == device.Enroll {
		s.dev.ReportEnrollStage(result)
	}
	s.dev.ReportResult(result, nil)

	if !isTerminal(s.op, result) {
		s.phase = PhaseAwaitFingerOn
		return
	}

	switch s.op {
	case device.Enroll:
		s.dev.FinishEnroll()
	default:
		s.dev.MarkOpDone(s.op)
	}
	s.phase = PhaseDone
}

func isTerminal(op device.OpKind, result resultcode.Result) bool {
	switch op {
	case device.Enroll:
		return result == resultcode.EnrollComplete || result == resultcode.EnrollFail
	case device.Capture:
		return true
	default: // Verify, Identify
		return !result.IsRetry()
	}
}

// mergeTemplates concatenates an enroll session's per-stage templates into
// one final template, re-sorting the merged entries the way Encode does.
func mergeTemplates(stages []*template.Template) *template.Template {
	list := minutiae.NewList()
	for _, t := range stages {
		for _, e := range t.Entries {
			list.Add(minutiae.Minutia{
				X: e.X, Y: e.Y,
				Direction:   thetaToDirection(e.Theta),
				Reliability: e.Quality,
			})
		}
	}
	return template.Encode(list)
}

// thetaToDirection inverts template.Encode's theta derivation well enough
// to round-trip through a re-encode during enroll-stage merging.
func thetaToDirection(theta int) int {
	// Round to the nearest direction (half away from zero): Encode rounded
	// d*180/NDIRS, so truncating here would lose a direction step.
	half := 90
	if theta < 0 {
		half = -90
	}
	d := (theta*minutiae.NDIRS + half) / 180
	return ((d % (2 * minutiae.NDIRS)) + 2*minutiae.NDIRS) % (2 * minutiae.NDIRS)
}

func toMatchPoints(t *template.Template, height int) []match.Point {
	rendered := template.Render(t, height)
	pts := make([]match.Point, len(rendered))
	for i, e := range rendered {
		pts[i] = match.Point{X: e.X, Y: e.Y, Theta: e.Theta}
	}
	return pts
}
