// Package assembly implements the frame/stripe assembly of spec.md §4.5
// (C2, swipe sensors only): movement estimation between successive swipe
// frames, blitting the result into a single canvas, and the alternative
// line-by-line assembly path for scanline sensors.
package assembly

import "fprint/internal/corerr"

// Frame is one narrow slice of a swipe capture.
type Frame struct {
	Width, Height int
	Pixels        []byte
	DX, DY        int // driver-reported displacement, 0 if unknown
}

// Offset is an estimated or driver-reported displacement.
type Offset struct{ DX, DY int }

// EstimateOffset implements spec.md §4.5's movement estimation: searches
// dx in [-8, 8) and dy in [2, height) for the offset minimizing the mean
// absolute pixel difference over the overlap region, normalized by overlap
// area, trying both frame orderings and keeping the one with smaller
// error. Ties keep the first-found minimum.
func EstimateOffset(prev, cur Frame) Offset {
	fwd, fwdErr := searchOffset(prev, cur)
	rev, revErr := searchOffset(cur, prev)
	if revErr < fwdErr {
		return Offset{DX: -rev.DX, DY: -rev.DY}
	}
	return fwd
}

func searchOffset(a, b Frame) (Offset, float64) {
	best := Offset{DX: 0, DY: 2}
	bestErr := -1.0
	for dy := 2; dy < a.Height; dy++ {
		for dx := -8; dx < 8; dx++ {
			err, n := overlapError(a, b, dx, dy)
			if n == 0 {
				continue
			}
			normalized := err / float64(n)
			if bestErr < 0 || normalized < bestErr {
				bestErr = normalized
				best = Offset{DX: dx, DY: dy}
			}
		}
	}
	if bestErr < 0 {
		bestErr = 0
	}
	return best, bestErr
}

// overlapError sums |a[x,y] - b[x+dx,y+dy]| over the region where both
// frames have pixels, returning the sum and the pixel count.
func overlapError(a, b Frame, dx, dy int) (float64, int) {
	sum := 0.0
	n := 0
	for y := 0; y < a.Height; y++ {
		by := y - dy
		if by < 0 || by >= b.Height {
			continue
		}
		for x := 0; x < a.Width; x++ {
			bx := x + dx
			if bx < 0 || bx >= b.Width {
				continue
			}
			av := int(a.Pixels[y*a.Width+x])
			bv := int(b.Pixels[by*b.Width+bx])
			d := av - bv
			if d < 0 {
				d = -d
			}
			sum += float64(d)
			n++
		}
	}
	return sum, n
}

// Blit assembles frames (each carrying its own displacement relative to
// the previous one, or (0,0) for the first) into a single canvas whose
// width is the frame width and whose height is the sum of |dy| across all
// frames plus one frame height, clipping writes to canvas bounds.
func Blit(frames []Frame) ([]byte, int, int, error) {
	if len(frames) == 0 {
		return nil, 0, 0, corerr.EINVAL
	}
	width := frames[0].Width
	height := frames[0].Height
	totalDY := 0
	for _, f := range frames {
		dy := f.DY
		if dy < 0 {
			dy = -dy
		}
		totalDY += dy
	}
	canvasHeight := totalDY + height
	canvas := make([]byte, width*canvasHeight)

	accX, accY := 0, 0
	for i, f := range frames {
		if i > 0 {
			accX += f.DX
			accY += f.DY
		}
		blitOne(canvas, width, canvasHeight, f, accX, accY)
	}
	return canvas, width, canvasHeight, nil
}

func blitOne(canvas []byte, canvasWidth, canvasHeight int, f Frame, ox, oy int) {
	for y := 0; y < f.Height; y++ {
		cy := oy + y
		if cy < 0 || cy >= canvasHeight {
			continue
		}
		for x := 0; x < f.Width; x++ {
			cx := ox + x
			if cx < 0 || cx >= canvasWidth {
				continue
			}
			canvas[cy*canvasWidth+cx] = f.Pixels[y*f.Width+x]
		}
	}
}

// Line is one scanline of a scanline-sensor capture.
type Line struct {
	Width  int
	Pixels []byte
}

// EstimateLineOffsets implements the line-assembly window search: for each
// line, search the next window lines (fewer near the end of the capture)
// for the index minimizing mean absolute deviation, returning the chosen
// offsets (one per line; the last line, which has no successor, gets 1).
func EstimateLineOffsets(lines []Line, window int) []int {
	offsets := make([]int, len(lines))
	for i := range offsets {
		offsets[i] = 1
	}
	for i := 0; i+1 < len(lines); i++ {
		limit := window
		if i+1+limit > len(lines) {
			limit = len(lines) - i - 1
		}
		bestOffset := 1
		bestErr := -1.0
		for w := 1; w <= limit; w++ {
			err := lineDeviation(lines[i], lines[i+w])
			if bestErr < 0 || err < bestErr {
				bestErr = err
				bestOffset = w
			}
		}
		offsets[i] = bestOffset
	}
	return offsets
}

func lineDeviation(a, b Line) float64 {
	n := a.Width
	if b.Width < n {
		n = b.Width
	}
	if n == 0 {
		return 0
	}
	sum := 0.0
	for i := 0; i < n; i++ {
		d := int(a.Pixels[i]) - int(b.Pixels[i])
		if d < 0 {
			d = -d
		}
		sum += float64(d)
	}
	return sum / float64(n)
}

// MedianFilter smooths an offset sequence with a centered window of the
// given odd size.
func MedianFilter(offsets []int, windowSize int) []int {
	if windowSize < 1 {
		windowSize = 1
	}
	half := windowSize / 2
	out := make([]int, len(offsets))
	buf := make([]int, 0, windowSize)
	for i := range offsets {
		buf = buf[:0]
		for j := i - half; j <= i+half; j++ {
			if j < 0 || j >= len(offsets) {
				continue
			}
			buf = append(buf, offsets[j])
		}
		out[i] = median(buf)
	}
	return out
}

func median(v []int) int {
	sorted := append([]int(nil), v...)
	for i := 1; i < len(sorted); i++ {
		for j := i; j > 0 && sorted[j] < sorted[j-1]; j-- {
			sorted[j], sorted[j-1] = sorted[j-1], sorted[j]
		}
	}
	return sorted[len(sorted)/2]
}

// ResampleLines linearly interpolates lines at cumulative offsets into
// targetCount evenly spaced output lines of fixed resolution.
func ResampleLines(lines []Line, offsets []int, targetCount int) []Line {
	if len(lines) == 0 || targetCount <= 0 {
		return nil
	}
	cumulative := make([]float64, len(lines))
	acc := 0.0
	for i, off := range offsets {
		cumulative[i] = acc
		acc += float64(off)
	}
	total := acc
	width := lines[0].Width

	out := make([]Line, targetCount)
	for i := 0; i < targetCount; i++ {
		pos := total * float64(i) / float64(targetCount-1+boolToInt(targetCount == 1))
		lo := findFloor(cumulative, pos)
		hi := lo + 1
		if hi >= len(lines) {
			hi = lo
		}
		frac := 0.0
		if hi != lo {
			span := cumulative[hi] - cumulative[lo]
			if span > 0 {
				frac = (pos - cumulative[lo]) / span
			}
		}
		out[i] = Line{Width: width, Pixels: interpolate(lines[lo], lines[hi], frac)}
	}
	return out
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func findFloor(cumulative []float64, pos float64) int {
	idx := 0
	for i, c := range cumulative {
		if c <= pos {
			idx = i
		} else {
			break
		}
	}
	return idx
}

func interpolate(a, b Line, frac float64) []byte {
	n := a.Width
	out := make([]byte, n)
	for i := 0; i < n; i++ {
		av := float64(a.Pixels[i])
		bv := av
		if i < len(b.Pixels) {
			bv = float64(b.Pixels[i])
		}
		out[i] = byte(av + (bv-av)*frac)
	}
	return out
}
