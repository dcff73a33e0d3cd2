package minutiae

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fprint/internal/image"
)

// drawRidgeEnding builds a binarized image with a single horizontal ridge
// that terminates partway across, producing a textbook ridge-ending
// pattern at the termination column.
func drawRidgeEnding(w, h, endCol int) []byte {
	px := make([]byte, w*h)
	row := h / 2
	for x := 0; x < w; x++ {
		if x <= endCol {
			px[row*w+x] = 1
		}
	}
	return px
}

func uniformBlocks(w, h, blockSize, dir int) *BlockMaps {
	b := NewBlockMaps(w, h, blockSize)
	for i := range b.Direction {
		b.Direction[i] = dir
	}
	return b
}

func TestDetectFindsRidgeEnding(t *testing.T) {
	w, h := 20, 12
	px := drawRidgeEnding(w, h, 10)
	img, err := image.New(w, h, px, image.Flags{Binarized: true})
	require.NoError(t, err)
	img.BinaryPixels = px

	blocks := uniformBlocks(w, h, 4, 4) // quadrant I direction, no high curvature

	list := Detect(img, blocks)
	require.Greater(t, list.Len(), 0)

	found := false
	for _, m := range list.Items() {
		if m.Type == RidgeEnding {
			found = true
		}
	}
	assert.True(t, found, "expected at least one ridge ending near the termination point")
}

func TestDetectDiscardsInvalidDirectionBlocks(t *testing.T) {
	w, h := 20, 12
	px := drawRidgeEnding(w, h, 10)
	img, err := image.New(w, h, px, image.Flags{Binarized: true})
	require.NoError(t, err)
	img.BinaryPixels = px

	blocks := NewBlockMaps(w, h, 4) // everything DirInvalid

	list := Detect(img, blocks)
	assert.Equal(t, 0, list.Len())
}

func TestDedupeMergesNearbyCompatibleMinutiae(t *testing.T) {
	list := NewList()
	list.Add(Minutia{X: 10, Y: 10, Type: RidgeEnding, Direction: 4})

	dedupeAndAdd(nil, list, Minutia{X: 12, Y: 10, Type: RidgeEnding, Direction: 5}, scanHorizontal, 4)

	assert.Equal(t, 1, list.Len(), "near-duplicate same-type close-direction minutia should merge")
}

func TestDedupeKeepsDistantMinutiae(t *testing.T) {
	list := NewList()
	list.Add(Minutia{X: 10, Y: 10, Type: RidgeEnding, Direction: 4})

	dedupeAndAdd(nil, list, Minutia{X: 40, Y: 40, Type: RidgeEnding, Direction: 4}, scanHorizontal, 4)

	assert.Equal(t, 2, list.Len())
}

func TestLowCurvatureDirectionTable(t *testing.T) {
	// Quadrant I (blockDir <= NDIRS/2 == 8).
	assert.Equal(t, 4+NDIRS, lowCurvatureDirection(scanHorizontal, true, 4))
	assert.Equal(t, 4, lowCurvatureDirection(scanHorizontal, false, 4))
	assert.Equal(t, 4, lowCurvatureDirection(scanVertical, true, 4))
	assert.Equal(t, 4+NDIRS, lowCurvatureDirection(scanVertical, false, 4))

	// Quadrant II (blockDir > NDIRS/2).
	assert.Equal(t, 12, lowCurvatureDirection(scanHorizontal, true, 12))
	assert.Equal(t, 12+NDIRS, lowCurvatureDirection(scanHorizontal, false, 12))
	assert.Equal(t, 12+NDIRS, lowCurvatureDirection(scanVertical, true, 12))
	assert.Equal(t, 12, lowCurvatureDirection(scanVertical, false, 12))
}

func TestMatchPatternRecognizesAppearingRidgeEnding(t *testing.T) {
	p, ok := matchPattern([3]bool{false, false, false}, [3]bool{false, true, false})
	require.True(t, ok)
	assert.Equal(t, RidgeEnding, p.typ)
	assert.True(t, p.appearing)
}

func TestMatchPatternNoMatch(t *testing.T) {
	_, ok := matchPattern([3]bool{true, false, true}, [3]bool{true, false, true})
	assert.False(t, ok)
}
