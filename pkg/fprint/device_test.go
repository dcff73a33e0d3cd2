package fprint

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fprint/internal/device"
	"fprint/internal/fpconfig"
	"fprint/internal/image"
	"fprint/internal/imgdev"
	"fprint/internal/minutiae"
	"fprint/internal/resultcode"
	"fprint/internal/template"
	"fprint/internal/transport"
)

type stubImageDriver struct{ enrollStages int }

func (s *stubImageDriver) DriverID() uint16      { return 0x10 }
func (s *stubImageDriver) DeviceType() uint32    { return 0x20 }
func (s *stubImageDriver) EnrollStageCount() int { return s.enrollStages }
func (s *stubImageDriver) FixedSize() (int, int) { return 10, 10 }
func (s *stubImageDriver) Activate(op device.OpKind, cb func(status int)) { cb(0) }
func (s *stubImageDriver) Deactivate(cb func())                          { cb() }
func (s *stubImageDriver) SetCaptureState()                              {}

func richExtractor() imgdev.Extractor {
	return imgdev.ExtractorFunc(func(img *image.Image) (*minutiae.List, error) {
		list := minutiae.NewList()
		for i := 0; i < 20; i++ {
			list.Add(minutiae.Minutia{X: i, Y: i % 5})
		}
		return list, nil
	})
}

func TestOpenAndEnrollThroughFacade(t *testing.T) {
	resetRegistry()
	defer resetRegistry()

	reg := Registration{
		Name:    "stub",
		VidPids: []VidPid{{Vendor: 0x10, Product: 0x20}},
		NewImageDriver: func(vendor, product uint16, devtype uint32) (imgdev.ImageDriver, error) {
			return &stubImageDriver{enrollStages: 1}, nil
		},
		NewExtractor: func() imgdev.Extractor { return richExtractor() },
	}
	RegisterDriver(reg)

	var openStatus int
	dev, err := Open(reg, 0x10, 0x20, 0, transport.NewFake(), fpconfig.Default(), func(status int) {
		openStatus = status
	})
	require.NoError(t, err)
	assert.Equal(t, 0, openStatus)
	assert.Equal(t, device.Initialized, dev.State())

	var result resultcode.Result
	dev.OnResult(func(r resultcode.Result, err error) {
		result = r
	})

	require.NoError(t, dev.StartEnroll(func(status int) { require.Equal(t, 0, status) }))
	dev.ReportFingerStatus(true)
	img, _ := image.New(10, 10, make([]byte, 100), image.Flags{})
	dev.ImageCaptured(img)
	dev.ReportFingerStatus(false)

	assert.Equal(t, resultcode.EnrollComplete, result)
	require.NotNil(t, dev.EnrolledTemplate())
}

func TestSavePrintThenLoadPrintRoundTripsThroughDiscoveryLayout(t *testing.T) {
	tmp := t.TempDir()
	t.Setenv("HOME", tmp)

	sp := &template.StoredPrint{
		DriverID:   0x1234,
		DeviceType: 0xAABBCCDD,
		DataType:   1,
		Entries:    [][]byte{[]byte("first-entry"), []byte("second-entry")},
	}

	require.NoError(t, SavePrint(0x1234, 0xAABBCCDD, 3, sp))

	loaded, err := LoadPrint(0x1234, 0xAABBCCDD, 3)
	require.NoError(t, err)
	assert.Equal(t, sp.DriverID, loaded.DriverID)
	assert.Equal(t, sp.DeviceType, loaded.DeviceType)
	assert.Equal(t, sp.Entries, loaded.Entries)

	_, err = LoadPrint(0x1234, 0xAABBCCDD, 0)
	assert.Error(t, err)
}
