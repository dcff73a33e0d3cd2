package minutiae

import (
	"math"

	"fprint/internal/contour"
	"fprint/internal/image"
)

// MaxMinutiaDelta is the de-duplication radius of spec.md §4.6 step 6.
const MaxMinutiaDelta = 10

// DegreesPerDir converts a full-circle [0, 2*NDIRS) direction unit to
// degrees.
const DegreesPerDir = 360.0 / (2 * NDIRS)

// DirectionDiffDegrees returns the smallest angle between two full-circle
// directions, in [0, 180].
func DirectionDiffDegrees(a, b int) float64 {
	diff := math.Abs(float64(a-b)) * DegreesPerDir
	if diff > 180 {
		diff = 360 - diff
	}
	return diff
}

// Opposite returns the full-circle direction pointing the opposite way.
func Opposite(d int) int {
	return ((d+NDIRS)%(2*NDIRS) + 2*NDIRS) % (2 * NDIRS)
}

// DirectionVector returns the unit vector for a full-circle direction,
// using the same angle convention as directionFromLine.
func DirectionVector(d int) (dx, dy float64) {
	angle := float64(d) * math.Pi / NDIRS
	return math.Cos(angle), math.Sin(angle)
}

// patternEntry is one row of the ten-entry feature-pattern table of
// spec.md §4.6: a pair of 3-pixel runs along the scan axis (lineA ahead of
// lineB in scan order) that together characterize a ridge-ending or
// bifurcation, and whether the feature is appearing or disappearing.
type patternEntry struct {
	a, b      [3]bool
	typ       Type
	appearing bool
}

var featurePatterns = []patternEntry{
	{[3]bool{false, false, false}, [3]bool{false, true, false}, RidgeEnding, true},
	{[3]bool{false, true, false}, [3]bool{false, false, false}, RidgeEnding, false},
	{[3]bool{false, false, false}, [3]bool{true, true, true}, RidgeEnding, true},
	{[3]bool{true, true, true}, [3]bool{false, false, false}, RidgeEnding, false},
	{[3]bool{false, true, false}, [3]bool{true, true, true}, Bifurcation, true},
	{[3]bool{true, true, true}, [3]bool{false, true, false}, Bifurcation, false},
	{[3]bool{true, false, true}, [3]bool{true, true, true}, Bifurcation, true},
	{[3]bool{true, true, true}, [3]bool{true, false, true}, Bifurcation, false},
	{[3]bool{false, true, false}, [3]bool{true, false, true}, Bifurcation, true},
	{[3]bool{true, false, true}, [3]bool{false, true, false}, Bifurcation, false},
}

func matchPattern(a, b [3]bool) (patternEntry, bool) {
	for _, p := range featurePatterns {
		if p.a == a && p.b == b {
			return p, true
		}
	}
	return patternEntry{}, false
}

type scanOrientation int

const (
	scanHorizontal scanOrientation = iota
	scanVertical
)

// Detect runs the horizontal and vertical directional scans of spec.md
// §4.6 over img's binarized pixels (img.BinaryPixels when set, otherwise
// img.Pixels thresholded at 128 with dark pixels as ridge) using blocks as
// the ridge-flow/low-flow/high-curvature collaborator maps, and returns the
// de-duplicated minutiae list.
func Detect(img *image.Image, blocks *BlockMaps) *List {
	px := img.BinaryPixels
	if px == nil {
		px = thresholded(img)
	}
	bin := newBinAdapter(img.Width, img.Height, px)

	list := NewList()
	scanHorizontalPass(bin, blocks, list)
	scanVerticalPass(bin, blocks, list)
	return list
}

func thresholded(img *image.Image) []byte {
	out := make([]byte, img.Width*img.Height)
	for i, p := range img.Pixels[:img.Width*img.Height] {
		if p < 128 {
			out[i] = 1
		}
	}
	return out
}

func scanHorizontalPass(bin *binAdapter, blocks *BlockMaps, list *List) {
	for y := 0; y+1 < bin.h; y++ {
		for x := 1; x+1 < bin.w; x++ {
			a := [3]bool{bin.At(x-1, y), bin.At(x, y), bin.At(x+1, y)}
			b := [3]bool{bin.At(x-1, y+1), bin.At(x, y+1), bin.At(x+1, y+1)}
			p, ok := matchPattern(a, b)
			if !ok {
				continue
			}
			interiorRow := y
			if pickB(p, a[1], b[1]) {
				interiorRow = y + 1
			}
			exteriorRow := y
			if interiorRow == y {
				exteriorRow = y + 1
			}
			processFeature(bin, blocks, list, scanHorizontal, p, x, interiorRow, x, exteriorRow)
		}
	}
}

func scanVerticalPass(bin *binAdapter, blocks *BlockMaps, list *List) {
	for x := 0; x+1 < bin.w; x++ {
		for y := 1; y+1 < bin.h; y++ {
			a := [3]bool{bin.At(x, y-1), bin.At(x, y), bin.At(x, y+1)}
			b := [3]bool{bin.At(x+1, y-1), bin.At(x+1, y), bin.At(x+1, y+1)}
			p, ok := matchPattern(a, b)
			if !ok {
				continue
			}
			interiorCol := x
			if pickB(p, a[1], b[1]) {
				interiorCol = x + 1
			}
			exteriorCol := x
			if interiorCol == x {
				exteriorCol = x + 1
			}
			processFeature(bin, blocks, list, scanVertical, p, interiorCol, y, exteriorCol, y)
		}
	}
}

// pickB decides, per the commentary in spec.md §4.6 step 1, whether the
// interior pixel lies on the "B" line of the window: use B when only B's
// center is foreground, A when only A's, and fall back to the feature's
// appearing/disappearing orientation when both centers are foreground.
func pickB(p patternEntry, centerA, centerB bool) bool {
	if centerA && centerB {
		return p.appearing
	}
	return centerB
}

func processFeature(bin *binAdapter, blocks *BlockMaps, list *List, orient scanOrientation, p patternEntry, ix, iy, ex, ey int) {
	blockDir := blocks.DirectionAt(ix, iy)
	if blockDir == DirInvalid {
		return // step 2: discard on INVALID-direction block
	}

	var x, y, direction int
	if blocks.HighCurveAt(ix, iy) {
		adjX, adjY, dir, ok := highCurvatureAdjust(bin, ix, iy, ex, ey)
		if !ok {
			return
		}
		x, y, direction = adjX, adjY, dir
	} else {
		x, y = ix, iy
		direction = lowCurvatureDirection(orient, p.appearing, blockDir)
	}

	reliability := ReliabilityHigh
	if blocks.LowFlowAt(ix, iy) {
		reliability = ReliabilityMedium
	}

	m := Minutia{
		X: x, Y: y, EX: ex, EY: ey,
		Direction:   direction,
		Type:        p.typ,
		Appearing:   p.appearing,
		Reliability: reliability,
	}

	dedupeAndAdd(bin, list, m, orient, blockDir)
}

// lowCurvatureDirection implements the table in spec.md §4.6 step 4.
func lowCurvatureDirection(orient scanOrientation, appearing bool, blockDir int) int {
	quadrantI := blockDir <= NDIRS/2
	switch {
	case orient == scanHorizontal && appearing && quadrantI:
		return blockDir + NDIRS
	case orient == scanHorizontal && !appearing && quadrantI:
		return blockDir
	case orient == scanHorizontal && appearing && !quadrantI:
		return blockDir
	case orient == scanHorizontal && !appearing && !quadrantI:
		return blockDir + NDIRS
	case orient == scanVertical && appearing && quadrantI:
		return blockDir
	case orient == scanVertical && !appearing && quadrantI:
		return blockDir + NDIRS
	case orient == scanVertical && appearing && !quadrantI:
		return blockDir + NDIRS
	default: // vertical, !appearing, quadrant II
		return blockDir
	}
}

// highCurvatureAdjust implements spec.md §4.6 step 3: walk 14 pixels
// clockwise and 14 counter-clockwise (29 total) along the boundary from
// (x,y), find the point of highest curvature (the contour index minimizing
// the angle formed by the two 7-pixel-offset chords), and derive direction
// from that point to the chord endpoints' midpoint.
func highCurvatureAdjust(bin *binAdapter, x, y, ex, ey int) (int, int, int, bool) {
	start := contour.Point{X: x, Y: y}
	cw, resultCW := contour.Trace(bin, start, -1, 14, true)
	ccw, resultCCW := contour.Trace(bin, start, -1, 14, false)
	if resultCW == contour.Ignore || resultCCW == contour.Ignore {
		return 0, 0, 0, false
	}
	if resultCW == contour.Loop || resultCCW == contour.Loop {
		// A closed loop this close to the feature means the 29-point path
		// assembled below can't be trusted: the chord endpoints would be
		// measuring curvature against the contour's own closure rather
		// than the ridge's true boundary. Fill the loop so later tracing
		// doesn't re-enter it, and discard the feature.
		if resultCW == contour.Loop {
			runLoopProcedure(bin, cw)
		}
		if resultCCW == contour.Loop {
			runLoopProcedure(bin, ccw)
		}
		return 0, 0, 0, false
	}

	// Assemble the 29-point path: ccw reversed, start, cw.
	path := make([]contour.Point, 0, len(cw)+len(ccw)-1)
	for i := len(ccw) - 1; i > 0; i-- {
		path = append(path, ccw[i])
	}
	path = append(path, cw...)
	mid := len(ccw) - 1 // index of `start` within path

	bestIdx := mid
	bestAngle := math.MaxFloat64
	for i := 7; i < len(path)-7; i++ {
		v1x, v1y := float64(path[i-7].X-path[i].X), float64(path[i-7].Y-path[i].Y)
		v2x, v2y := float64(path[i+7].X-path[i].X), float64(path[i+7].Y-path[i].Y)
		angle := angleBetween(v1x, v1y, v2x, v2y)
		if angle < bestAngle {
			bestAngle = angle
			bestIdx = i
		}
	}

	best := path[bestIdx]
	var midX, midY float64
	if bestIdx-7 >= 0 && bestIdx+7 < len(path) {
		a, b := path[bestIdx-7], path[bestIdx+7]
		midX = float64(a.X+b.X) / 2
		midY = float64(a.Y+b.Y) / 2
	} else {
		midX, midY = float64(ex), float64(ey)
	}
	dir := directionFromLine(float64(best.X), float64(best.Y), midX, midY)
	return best.X, best.Y, dir, true
}

func angleBetween(x1, y1, x2, y2 float64) float64 {
	d1 := math.Hypot(x1, y1)
	d2 := math.Hypot(x2, y2)
	if d1 == 0 || d2 == 0 {
		return math.Pi
	}
	cos := (x1*x2 + y1*y2) / (d1 * d2)
	if cos > 1 {
		cos = 1
	}
	if cos < -1 {
		cos = -1
	}
	return math.Acos(cos)
}

// directionFromLine maps the line from (fromX,fromY) to (toX,toY) onto the
// full-circle [0, 2*NDIRS) direction space.
func directionFromLine(fromX, fromY, toX, toY float64) int {
	angle := math.Atan2(toY-fromY, toX-fromX) // (-pi, pi]
	if angle < 0 {
		angle += 2 * math.Pi
	}
	d := int(angle/(2*math.Pi)*(2*NDIRS) + 0.5)
	return d % (2 * NDIRS)
}

// runLoopProcedure handles a closed contour encountered while tracing
// (spec.md §4.6 step 3: "If while tracing the contour a closed loop is
// found, run the loop sub-procedure"). It clears every traced boundary
// pixel from bin via bin.Set (the loop's interior is left as it is; the
// pruning cascade's P2 fill, by contrast, paints pixels foreground); the
// caller discards the associated feature from further high-curvature
// processing.
func runLoopProcedure(bin *binAdapter, path []contour.Point) {
	for _, p := range path {
		bin.Set(p.X, p.Y, false)
	}
}

// dedupeAndAdd implements spec.md §4.6 step 6: a new minutia within
// MaxMinutiaDelta pixels of an existing one, of the same type, and with
// direction within 45 degrees is a duplicate. When the new one lies on the
// existing one's contour within MaxMinutiaDelta steps (either direction),
// keep whichever scan orientation matches its block's own direction;
// otherwise keep the existing entry. With a nil bin no contour is traced
// and the existing entry is kept.
func dedupeAndAdd(bin *binAdapter, list *List, m Minutia, orient scanOrientation, blockDir int) {
	items := list.Items()
	for i, o := range items {
		if o.Type != m.Type {
			continue
		}
		dx, dy := o.X-m.X, o.Y-m.Y
		if dx*dx+dy*dy > MaxMinutiaDelta*MaxMinutiaDelta {
			continue
		}
		if DirectionDiffDegrees(o.Direction, m.Direction) >= 45 {
			continue
		}
		// Duplicate found. If m lies on o's contour within MaxMinutiaDelta
		// steps either way, the scan orientation compatible with the block's
		// own direction wins; a horizontal scan is "compatible" with a
		// quadrant-I block direction and vertical with quadrant II, matching
		// the asymmetry the direction table encodes.
		shared := false
		if bin != nil {
			for _, cw := range []bool{true, false} {
				path, _ := contour.Trace(bin, contour.Point{X: o.X, Y: o.Y}, -1, MaxMinutiaDelta, cw)
				for _, p := range path {
					if p.X == m.X && p.Y == m.Y {
						shared = true
					}
				}
			}
		}
		quadrantI := blockDir <= NDIRS/2
		newCompatible := (orient == scanHorizontal) == quadrantI
		if shared && newCompatible {
			items[i] = m
		}
		return
	}
	list.Add(m)
}
