package minutiae

import "fprint/internal/contour"

// binAdapter exposes a thresholded pixel buffer through contour.Binary.
type binAdapter struct {
	w, h int
	px   []byte // 0 = background, nonzero = foreground (ridge)
}

func newBinAdapter(width, height int, px []byte) *binAdapter {
	return &binAdapter{w: width, h: height, px: px}
}

func (b *binAdapter) At(x, y int) bool {
	if x < 0 || y < 0 || x >= b.w || y >= b.h {
		return false
	}
	return b.px[y*b.w+x] != 0
}

func (b *binAdapter) Width() int  { return b.w }
func (b *binAdapter) Height() int { return b.h }

// Set paints or clears the pixel at (x,y), used by the pruning cascade's
// island/lake fill (spec.md §4.7 P2).
func (b *binAdapter) Set(x, y int, v bool) {
	if x < 0 || y < 0 || x >= b.w || y >= b.h {
		return
	}
	if v {
		b.px[y*b.w+x] = 1
	} else {
		b.px[y*b.w+x] = 0
	}
}

var _ contour.Binary = (*binAdapter)(nil)

// BinaryImage is the exported handle onto a binarized pixel buffer other
// packages (the pruning cascade) trace contours over and, for P2's loop
// fill, mutate directly.
type BinaryImage = binAdapter

// NewBinaryImage wraps a binarized width x height pixel buffer (nonzero =
// ridge) for contour tracing and in-place editing.
func NewBinaryImage(width, height int, px []byte) *BinaryImage {
	return newBinAdapter(width, height, px)
}
