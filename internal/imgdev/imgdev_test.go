package imgdev

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fprint/internal/device"
	"fprint/internal/eventloop"
	"fprint/internal/image"
	"fprint/internal/minutiae"
	"fprint/internal/resultcode"
	"fprint/internal/transport"
)

type fakeImageDriver struct {
	enrollStages int
	activateErr  int
}

func (f *fakeImageDriver) DriverID() uint16      { return 1 }
func (f *fakeImageDriver) DeviceType() uint32    { return 1 }
func (f *fakeImageDriver) EnrollStageCount() int { return f.enrollStages }
func (f *fakeImageDriver) FixedSize() (int, int) { return 10, 10 }
func (f *fakeImageDriver) Activate(op device.OpKind, cb func(status int)) {
	cb(f.activateErr)
}
func (f *fakeImageDriver) Deactivate(cb func()) { cb() }
func (f *fakeImageDriver) SetCaptureState()      {}

func extractorWithCount(n int) Extractor {
	return ExtractorFunc(func(img *image.Image) (*minutiae.List, error) {
		list := minutiae.NewList()
		for i := 0; i < n; i++ {
			list.Add(minutiae.Minutia{X: i, Y: 0})
		}
		return list, nil
	})
}

func newTestDevice(driver device.Driver) *device.Device {
	loop := eventloop.New(transport.NewFake())
	dev := device.New(driver, loop, "test")
	dev.Open(func(int) {}) // acquisitions start from INITIALIZED
	return dev
}

func blankImage() *image.Image {
	img, _ := image.New(10, 10, make([]byte, 100), image.Flags{})
	return img
}

func TestEnrollRetryThenComplete(t *testing.T) {
	fd := &fakeImageDriver{enrollStages: 2}
	sess := NewSession(fd, extractorWithCount(5)) // below MinAcceptableMinutiae
	dev := newTestDevice(sess)

	var results []resultcode.Result
	var stages []int
	dev.SetResultCallback(func(r resultcode.Result, err error) {
		require.NoError(t, err)
		results = append(results, r)
	})
	dev.SetEnrollStageCallback(func(stage int, r resultcode.Result) {
		stages = append(stages, stage)
	})

	require.NoError(t, dev.StartOp(device.Enroll, func(status int) { require.Equal(t, 0, status) }))
	sess.ReportFingerStatus(true)
	sess.ImageCaptured(blankImage())
	sess.ReportFingerStatus(false)

	require.Len(t, results, 1)
	assert.Equal(t, resultcode.EnrollRetry, results[0])
	assert.Equal(t, PhaseAwaitFingerOn, sess.Phase())

	// Now supply enough minutiae for N=2 stages.
	sess2 := NewSession(fd, extractorWithCount(40))
	dev2 := newTestDevice(sess2)
	var results2 []resultcode.Result
	dev2.SetResultCallback(func(r resultcode.Result, err error) {
		require.NoError(t, err)
		results2 = append(results2, r)
	})
	require.NoError(t, dev2.StartOp(device.Enroll, func(status int) {}))
	for i := 0; i < 2; i++ {
		sess2.ReportFingerStatus(true)
		sess2.ImageCaptured(blankImage())
		sess2.ReportFingerStatus(false)
		if i < 1 {
			sess2.ReportFingerStatus(true) // re-arm for next stage
		}
	}

	require.Len(t, results2, 2)
	assert.Equal(t, resultcode.EnrollPass, results2[0])
	assert.Equal(t, resultcode.EnrollComplete, results2[1])
	assert.NotNil(t, sess2.EnrolledTemplate())
	assert.Equal(t, PhaseDone, sess2.Phase())
}

func TestCaptureCompletesImmediately(t *testing.T) {
	fd := &fakeImageDriver{}
	sess := NewSession(fd, extractorWithCount(0))
	dev := newTestDevice(sess)

	var got resultcode.Result
	dev.SetResultCallback(func(r resultcode.Result, err error) {
		require.NoError(t, err)
		got = r
	})
	require.NoError(t, dev.StartOp(device.Capture, func(status int) {}))
	sess.ReportFingerStatus(true)
	sess.ImageCaptured(blankImage())
	sess.ReportFingerStatus(false)

	assert.Equal(t, resultcode.CaptureComplete, got)
	assert.NotNil(t, sess.CapturedImage())
	assert.Equal(t, PhaseDone, sess.Phase())
}

func TestImageCapturedIgnoredOutsideAwaitImage(t *testing.T) {
	fd := &fakeImageDriver{}
	sess := NewSession(fd, extractorWithCount(0))
	dev := newTestDevice(sess)
	require.NoError(t, dev.StartOp(device.Capture, func(status int) {}))

	assert.Equal(t, PhaseAwaitFingerOn, sess.Phase())
	sess.ImageCaptured(blankImage()) // phase is AwaitFingerOn, not AwaitImage
	assert.Equal(t, PhaseAwaitFingerOn, sess.Phase())
}

func TestActivateFailurePropagatesStatus(t *testing.T) {
	fd := &fakeImageDriver{activateErr: -5}
	sess := NewSession(fd, extractorWithCount(0))
	dev := newTestDevice(sess)

	var status int
	require.NoError(t, dev.StartOp(device.Capture, func(s int) { status = s }))
	assert.Equal(t, -5, status)
	assert.Equal(t, PhaseNone, sess.Phase())
}
