package device

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fprint/internal/resultcode"
)

// fakeDriver completes every operation synchronously and records calls.
type fakeDriver struct {
	openCalls, closeCalls int
	startStatus           map[OpKind]int
}

func newFakeDriver() *fakeDriver {
	return &fakeDriver{startStatus: make(map[OpKind]int)}
}

func (f *fakeDriver) DriverID() uint16      { return 0x1234 }
func (f *fakeDriver) DeviceType() uint32    { return 0xAABBCCDD }
func (f *fakeDriver) EnrollStageCount() int { return 3 }

func (f *fakeDriver) Open(dev *Device, cb func(status int)) {
	f.openCalls++
	cb(0)
}

func (f *fakeDriver) Close(dev *Device, cb func()) {
	f.closeCalls++
	cb()
}

func (f *fakeDriver) StartOp(dev *Device, op OpKind, cb func(status int)) {
	cb(f.startStatus[op])
}

func (f *fakeDriver) StopOp(dev *Device, op OpKind, cb func()) {
	cb()
}

// TestOpenThenImmediateClose covers spec.md §8 scenario 1.
func TestOpenThenImmediateClose(t *testing.T) {
	drv := newFakeDriver()
	dev := New(drv, nil, "test")

	openCalls := 0
	require.NoError(t, dev.Open(func(status int) {
		openCalls++
		assert.Equal(t, 0, status)
		closeCalls := 0
		require.NoError(t, dev.Close(func() { closeCalls++ }))
		assert.Equal(t, 1, closeCalls)
	}))

	assert.Equal(t, 1, openCalls)
	assert.Equal(t, 1, drv.openCalls)
	assert.Equal(t, 1, drv.closeCalls)
	assert.Equal(t, Deinitialized, dev.State())
}

// failingOpenDriver fails Open with a negative status.
type failingOpenDriver struct{ fakeDriver }

func (f *failingOpenDriver) Open(dev *Device, cb func(status int)) {
	cb(-5)
}

func TestOpenFailureTransitionsToError(t *testing.T) {
	drv := &failingOpenDriver{fakeDriver: *newFakeDriver()}
	dev := New(drv, nil, "test")

	var status int
	require.NoError(t, dev.Open(func(s int) { status = s }))
	assert.Equal(t, -5, status)
	assert.Equal(t, ErrorState, dev.State())
}

func TestIllegalCloseFromInitial(t *testing.T) {
	drv := newFakeDriver()
	dev := New(drv, nil, "test")
	err := dev.Close(func() {})
	assert.Error(t, err)
}

func TestStartStopVerify(t *testing.T) {
	drv := newFakeDriver()
	dev := New(drv, nil, "test")
	require.NoError(t, dev.Open(func(int) {}))
	require.Equal(t, Initialized, dev.State())

	require.NoError(t, dev.StartOp(Verify, func(status int) {
		assert.Equal(t, 0, status)
	}))
	assert.Equal(t, VerifyRunning, dev.State())

	dev.MarkOpDone(Verify)
	assert.Equal(t, VerifyDone, dev.State())

	require.NoError(t, dev.StopOp(Verify, func() {}))
	assert.Equal(t, Initialized, dev.State())
}

// TestFailedStartReportsNegatedStatusOnce covers spec.md §4.1: "A nonzero
// start status moves to ERROR and reports the negated code exactly once."
func TestFailedStartReportsNegatedStatusOnce(t *testing.T) {
	drv := newFakeDriver()
	drv.startStatus[Capture] = 7
	dev := New(drv, nil, "test")
	require.NoError(t, dev.Open(func(int) {}))

	calls := 0
	var got int
	require.NoError(t, dev.StartOp(Capture, func(status int) {
		calls++
		got = status
	}))
	assert.Equal(t, 1, calls)
	assert.Equal(t, -7, got)
	assert.Equal(t, ErrorState, dev.State())
}

// TestEnrollStagingPolicy covers spec.md §4.1: PASS advances, COMPLETE
// resets, RETRY* leaves unchanged, and every report fires the stage
// callback (FAIL is covered by TestEnrollFailResetsStage).
func TestEnrollStagingPolicy(t *testing.T) {
	drv := newFakeDriver()
	dev := New(drv, nil, "test")
	require.NoError(t, dev.Open(func(int) {}))
	require.NoError(t, dev.StartOp(Enroll, func(int) {}))

	var reported []resultcode.Result
	dev.SetEnrollStageCallback(func(stage int, result resultcode.Result) {
		reported = append(reported, result)
	})

	dev.ReportEnrollStage(resultcode.EnrollPass)
	assert.Equal(t, 1, dev.EnrollStage())

	dev.ReportEnrollStage(resultcode.EnrollRetry)
	assert.Equal(t, 1, dev.EnrollStage()) // unchanged

	dev.ReportEnrollStage(resultcode.EnrollPass)
	assert.Equal(t, 2, dev.EnrollStage())

	dev.ReportEnrollStage(resultcode.EnrollComplete)
	assert.Equal(t, 0, dev.EnrollStage())

	assert.Equal(t, 4, len(reported))

	dev.FinishEnroll()
	assert.Equal(t, Initialized, dev.State())
}

func TestEnrollFailResetsStage(t *testing.T) {
	drv := newFakeDriver()
	dev := New(drv, nil, "test")
	require.NoError(t, dev.Open(func(int) {}))
	require.NoError(t, dev.StartOp(Enroll, func(int) {}))

	dev.ReportEnrollStage(resultcode.EnrollPass)
	dev.ReportEnrollStage(resultcode.EnrollFail)
	assert.Equal(t, 0, dev.EnrollStage())
}
