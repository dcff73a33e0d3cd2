package prune

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"fprint/internal/minutiae"
)

func blankBlocks(w, h, blockSize int) *minutiae.BlockMaps {
	b := minutiae.NewBlockMaps(w, h, blockSize)
	for i := range b.Direction {
		b.Direction[i] = 4
	}
	return b
}

func solidRidge(w, h int) *minutiae.BinaryImage {
	px := make([]byte, w*h)
	for i := range px {
		px[i] = 1
	}
	return minutiae.NewBinaryImage(w, h, px)
}

func TestP5RemovesMinutiaAtImageEdge(t *testing.T) {
	w, h := 40, 40
	list := minutiae.NewList()
	list.Add(minutiae.Minutia{X: 1, Y: 20, Type: minutiae.RidgeEnding, Direction: 4})
	list.Add(minutiae.Minutia{X: 20, Y: 20, Type: minutiae.RidgeEnding, Direction: 4})

	blocks := blankBlocks(w, h, 8)
	bin := solidRidge(w, h)

	p5NearInvalidBlock(list, blocks, bin)

	assert.Equal(t, 1, list.Len())
	assert.Equal(t, 20, list.At(0).X)
}

func TestP4RemovesMinutiaPointingAtInvalidBlock(t *testing.T) {
	w, h := 40, 40
	blocks := minutiae.NewBlockMaps(w, h, 8) // all DirInvalid
	list := minutiae.NewList()
	list.Add(minutiae.Minutia{X: 20, Y: 20, Type: minutiae.RidgeEnding, Direction: 0})

	p4PointingAtInvalidBlock(list, blocks)

	assert.Equal(t, 0, list.Len())
}

func TestP4KeepsMinutiaWithValidBlock(t *testing.T) {
	w, h := 40, 40
	blocks := blankBlocks(w, h, 8)
	list := minutiae.NewList()
	list.Add(minutiae.Minutia{X: 20, Y: 20, Type: minutiae.RidgeEnding, Direction: 0})

	p4PointingAtInvalidBlock(list, blocks)

	assert.Equal(t, 1, list.Len())
}

func TestP1SortsByYThenX(t *testing.T) {
	list := minutiae.NewList()
	list.Add(minutiae.Minutia{X: 10, Y: 5})
	list.Add(minutiae.Minutia{X: 3, Y: 9})
	list.Add(minutiae.Minutia{X: 10, Y: 4})
	list.Add(minutiae.Minutia{X: 1, Y: 4})

	p1Sort(list)

	got := list.Items()
	assert.Equal(t, 1, got[0].X)
	assert.Equal(t, 4, got[0].Y)
	assert.Equal(t, 10, got[1].X)
	assert.Equal(t, 4, got[1].Y)
	assert.Equal(t, 10, got[2].X)
	assert.Equal(t, 3, got[3].X)
}

func TestP11RemovesMinutiaNearPerimeter(t *testing.T) {
	w, h := 60, 30
	bin := minutiae.NewBinaryImage(w, h, make([]byte, w*h))
	for y := 5; y < 25; y++ {
		for x := 10; x < 50; x++ {
			bin.Set(x, y, true)
		}
	}
	list := minutiae.NewList()
	list.Add(minutiae.Minutia{X: 11, Y: 10, Type: minutiae.RidgeEnding}) // near left perimeter
	list.Add(minutiae.Minutia{X: 30, Y: 10, Type: minutiae.RidgeEnding}) // interior

	p11PerimeterPoints(list, bin, DefaultParams().MinPPDistance)

	assert.Equal(t, 1, list.Len())
	assert.Equal(t, 30, list.At(0).X)
}

func TestFreePathDetectsGap(t *testing.T) {
	w, h := 20, 5
	px := make([]byte, w*h)
	for x := 0; x < w; x++ {
		if x != 10 {
			px[2*w+x] = 1
		}
	}
	bin := minutiae.NewBinaryImage(w, h, px)
	a := minutiae.Minutia{X: 5, Y: 2}
	b := minutiae.Minutia{X: 15, Y: 2}
	assert.False(t, freePath(bin, a, b))
}

func TestRunDoesNotPanicOnEmptyList(t *testing.T) {
	w, h := 20, 20
	list := minutiae.NewList()
	blocks := blankBlocks(w, h, 8)
	bin := solidRidge(w, h)
	assert.NotPanics(t, func() { Run(list, blocks, bin, DefaultParams()) })
}
