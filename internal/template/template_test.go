package template

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fprint/internal/minutiae"
)

func TestEncodeSortsAndDedupes(t *testing.T) {
	list := minutiae.NewList()
	list.Add(minutiae.Minutia{X: 10, Y: 5, Reliability: minutiae.ReliabilityHigh})
	list.Add(minutiae.Minutia{X: 3, Y: 9, Reliability: minutiae.ReliabilityHigh})
	list.Add(minutiae.Minutia{X: 10, Y: 4, Reliability: minutiae.ReliabilityHigh})
	list.Add(minutiae.Minutia{X: 3, Y: 9, Reliability: minutiae.ReliabilityHigh})

	tpl := Encode(list)

	require.Len(t, tpl.Entries, 3)
	assert.Equal(t, 3, tpl.Entries[0].X)
	assert.Equal(t, 9, tpl.Entries[0].Y)
	assert.Equal(t, 10, tpl.Entries[1].X)
	assert.Equal(t, 4, tpl.Entries[1].Y)
	assert.Equal(t, 10, tpl.Entries[2].X)
	assert.Equal(t, 5, tpl.Entries[2].Y)
}

func TestEncodeCapsAtMaxFileMinutiaeKeepingHighestReliability(t *testing.T) {
	list := minutiae.NewList()
	for i := 0; i < MaxFileMinutiae+10; i++ {
		rel := minutiae.ReliabilityMedium
		if i < MaxFileMinutiae {
			rel = minutiae.ReliabilityHigh
		}
		list.Add(minutiae.Minutia{X: i, Y: 0, Reliability: rel})
	}

	tpl := Encode(list)

	require.Len(t, tpl.Entries, MaxFileMinutiae)
	for _, e := range tpl.Entries {
		assert.Less(t, e.X, MaxFileMinutiae)
	}
}

func TestInternalThetaRange(t *testing.T) {
	assert.Equal(t, 0, internalTheta(0))
	assert.LessOrEqual(t, internalTheta(31), 180)
	assert.Greater(t, internalTheta(31), -180)
}

func TestFP2RoundTrip(t *testing.T) {
	sp := &StoredPrint{
		DriverID:   0x1234,
		DeviceType: 0xAABBCCDD,
		DataType:   1,
		Entries: [][]byte{
			make([]byte, 50),
			make([]byte, 80),
		},
	}
	for i := range sp.Entries[0] {
		sp.Entries[0][i] = byte(i)
	}
	for i := range sp.Entries[1] {
		sp.Entries[1][i] = byte(255 - i)
	}

	data := sp.Serialize()
	got, err := Parse(data)
	require.NoError(t, err)

	assert.Equal(t, sp.DriverID, got.DriverID)
	assert.Equal(t, sp.DeviceType, got.DeviceType)
	assert.Equal(t, sp.DataType, got.DataType)
	require.Len(t, got.Entries, 2)
	assert.Equal(t, sp.Entries[0], got.Entries[0])
	assert.Equal(t, sp.Entries[1], got.Entries[1])
}

func TestParseLegacyFP1(t *testing.T) {
	data := append([]byte("FP1"), []byte{1, 2, 3, 4}...)
	got, err := Parse(data)
	require.NoError(t, err)
	require.Len(t, got.Entries, 1)
	assert.Equal(t, []byte{1, 2, 3, 4}, got.Entries[0])
}

func TestParseRejectsUnknownMagic(t *testing.T) {
	data := []byte("XXXXXXXXXX")
	_, err := Parse(data)
	assert.Error(t, err)
}

func TestParseRejectsTruncatedEntry(t *testing.T) {
	sp := &StoredPrint{DriverID: 1, DeviceType: 2, Entries: [][]byte{{1, 2, 3}}}
	data := sp.Serialize()
	_, err := Parse(data[:len(data)-2])
	assert.Error(t, err)
}

func TestRenderBottomLeftOrigin(t *testing.T) {
	tpl := &Template{Entries: []Entry{{X: 5, Y: 10, Theta: 90}}}
	out := Render(tpl, 100)
	require.Len(t, out, 1)
	assert.Equal(t, 5, out[0].X)
	assert.Equal(t, 90, out[0].Y)
	assert.Equal(t, 180, out[0].Theta)
}
