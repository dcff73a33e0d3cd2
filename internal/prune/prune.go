// Package prune implements the eleven-pass false-minutiae cascade of
// spec.md §4.7 (C3). Each pass runs over the survivors of the previous one;
// passes that need contour information use internal/contour against the
// binarized image the minutiae were detected from.
package prune

import (
	"math"

	"fprint/internal/contour"
	"fprint/internal/minutiae"
)

// Tunables, named after the spec.md §4.7 constants they implement.
const (
	MaxRMTestDist         = 16
	MaxHalfLoop           = 30
	SmallLoopLen          = 15
	TransDirPix           = 4
	InvBlockMargin        = 4
	RMValidNbrMin         = 7
	MaxHookLen            = 30
	MaxOverlapDist        = 8
	MaxOverlapJoinDist    = 6
	MalformationSteps1    = 10
	MalformationSteps2    = 20
	MinMalformationRatio  = 2.0
	MaxMalformationDist   = 20
	PoresTransR           = 3
	PoresPerpSteps        = 12
	PoresStepsFwd         = 10
	PoresStepsBwd         = 8
	PoresMaxRatio         = 2.25
	// MinPPDistance is not given a numeric default in the source material;
	// 8 pixels (roughly half a ridge period) is used here and is exposed so
	// callers needing a different value can override it (see Run).
	MinPPDistance = 8

	oppositeAngleThresholdDeg = 123.75
)

// Params lets callers override the perimeter-distance tunable the source
// left unspecified, without touching the rest of the cascade's constants.
type Params struct {
	MinPPDistance int
}

// DefaultParams returns the cascade's documented tunables.
func DefaultParams() Params {
	return Params{MinPPDistance: MinPPDistance}
}

// Run executes P1 through P11 in order against list, mutating bin in place
// for P2's loop fill and consulting blocks for the block-relative passes.
func Run(list *minutiae.List, blocks *minutiae.BlockMaps, bin *minutiae.BinaryImage, params Params) {
	p1Sort(list)
	p2IslandsAndLakes(list, bin)
	p3SmallHoles(list, bin)
	p4PointingAtInvalidBlock(list, blocks)
	p5NearInvalidBlock(list, blocks, bin)
	p6SideMinutiaAdjustment(list, bin)
	p7Hooks(list, bin)
	p8Overlaps(list, bin)
	p9Malformations(list, blocks, bin)
	p10Pores(list, blocks, bin)
	p11PerimeterPoints(list, bin, params.MinPPDistance)
}

func p1Sort(list *minutiae.List) {
	items := list.Items()
	// Insertion sort: lists are small (tens to low hundreds of entries) and
	// this keeps the pass allocation-free.
	for i := 1; i < len(items); i++ {
		for j := i; j > 0 && less(items[j], items[j-1]); j-- {
			items[j], items[j-1] = items[j-1], items[j]
		}
	}
}

func less(a, b minutiae.Minutia) bool {
	if a.Y != b.Y {
		return a.Y < b.Y
	}
	return a.X < b.X
}

func dist2(a, b minutiae.Minutia) int {
	dx, dy := a.X-b.X, a.Y-b.Y
	return dx*dx + dy*dy
}

func withinPixels(a, b minutiae.Minutia, r int) bool {
	return dist2(a, b) <= r*r
}

func oppositeDirections(a, b minutiae.Minutia) bool {
	return minutiae.DirectionDiffDegrees(a.Direction, b.Direction) >= oppositeAngleThresholdDeg
}

// p2IslandsAndLakes implements P2: for adjacent same-type pairs within
// MaxRMTestDist whose directions are near-opposite, the first minutia's
// contour is traced clockwise for up to MaxHalfLoop steps; if that trace
// closes back on its start, the loop is filled and both minutiae removed.
// The second minutia's contour is not traced, so a loop longer than
// MaxHalfLoop steps is not detected.
func p2IslandsAndLakes(list *minutiae.List, bin *minutiae.BinaryImage) {
	items := list.Items()
	remove := make(map[int]bool)
	for i := 0; i < len(items); i++ {
		if remove[i] {
			continue
		}
		for j := i + 1; j < len(items); j++ {
			if remove[j] {
				continue
			}
			a, b := items[i], items[j]
			if a.Type != b.Type {
				continue
			}
			if !withinPixels(a, b, MaxRMTestDist) || !oppositeDirections(a, b) {
				continue
			}
			path, result := contour.Trace(bin, contour.Point{X: a.X, Y: a.Y}, -1, MaxHalfLoop, true)
			if result != contour.Loop {
				continue
			}
			fillLoop(bin, path)
			remove[i], remove[j] = true, true
		}
	}
	applyRemoval(list, remove)
}

// fillLoop paints every pixel enclosed by a closed contour path, using the
// path's bounding box and an even-odd fill — adequate for the small,
// roughly convex loops islands/lakes produce.
func fillLoop(bin *minutiae.BinaryImage, path []contour.Point) {
	if len(path) == 0 {
		return
	}
	minX, maxX, minY, maxY := path[0].X, path[0].X, path[0].Y, path[0].Y
	for _, p := range path {
		if p.X < minX {
			minX = p.X
		}
		if p.X > maxX {
			maxX = p.X
		}
		if p.Y < minY {
			minY = p.Y
		}
		if p.Y > maxY {
			maxY = p.Y
		}
	}
	on := make(map[contour.Point]bool, len(path))
	for _, p := range path {
		on[p] = true
	}
	for y := minY; y <= maxY; y++ {
		inside := false
		for x := minX; x <= maxX; x++ {
			if on[contour.Point{X: x, Y: y}] {
				bin.Set(x, y, true)
				continue
			}
			// Parity against the boundary row above decides inside/outside.
			if on[contour.Point{X: x, Y: y - 1}] {
				inside = !inside
			}
			if inside {
				bin.Set(x, y, true)
			}
		}
	}
}

// p3SmallHoles implements P3: a bifurcation whose own contour closes into a
// short loop is removed.
func p3SmallHoles(list *minutiae.List, bin *minutiae.BinaryImage) {
	items := list.Items()
	remove := make(map[int]bool)
	for i, m := range items {
		if m.Type != minutiae.Bifurcation {
			continue
		}
		path, result := contour.Trace(bin, contour.Point{X: m.X, Y: m.Y}, -1, SmallLoopLen, true)
		if result == contour.Loop && len(path) <= SmallLoopLen+1 {
			remove[i] = true
		}
	}
	applyRemoval(list, remove)
}

// p4PointingAtInvalidBlock implements P4.
func p4PointingAtInvalidBlock(list *minutiae.List, blocks *minutiae.BlockMaps) {
	items := list.Items()
	remove := make(map[int]bool)
	for i, m := range items {
		dx, dy := minutiae.DirectionVector(minutiae.Opposite(m.Direction))
		tx := m.X + int(math.Round(dx*TransDirPix))
		ty := m.Y + int(math.Round(dy*TransDirPix))
		if blocks.DirectionAt(tx, ty) == minutiae.DirInvalid {
			remove[i] = true
		}
	}
	applyRemoval(list, remove)
}

// p5NearInvalidBlock implements P5.
func p5NearInvalidBlock(list *minutiae.List, blocks *minutiae.BlockMaps, bin *minutiae.BinaryImage) {
	items := list.Items()
	remove := make(map[int]bool)
	for i, m := range items {
		if m.X < InvBlockMargin || m.Y < InvBlockMargin ||
			m.X >= bin.Width()-InvBlockMargin || m.Y >= bin.Height()-InvBlockMargin {
			remove[i] = true
			continue
		}
		col, row := m.X/blocks.BlockSize, m.Y/blocks.BlockSize
		localX, localY := m.X%blocks.BlockSize, m.Y%blocks.BlockSize
		nearEdge := localX < InvBlockMargin || localY < InvBlockMargin ||
			blocks.BlockSize-localX <= InvBlockMargin || blocks.BlockSize-localY <= InvBlockMargin
		if !nearEdge {
			continue
		}
		if blocks.DirectionAt(m.X, m.Y) == minutiae.DirInvalid && blocks.ValidNeighborCount8(col, row) < RMValidNbrMin {
			remove[i] = true
		}
	}
	applyRemoval(list, remove)
}

// p6SideMinutiaAdjustment implements P6.
func p6SideMinutiaAdjustment(list *minutiae.List, bin *minutiae.BinaryImage) {
	items := list.Items()
	remove := make(map[int]bool)
	for i := range items {
		m := items[i]
		cw, resCW := contour.Trace(bin, contour.Point{X: m.X, Y: m.Y}, -1, 15, true)
		ccw, resCCW := contour.Trace(bin, contour.Point{X: m.X, Y: m.Y}, -1, 15, false)
		if resCW == contour.Ignore || resCCW == contour.Ignore {
			remove[i] = true
			continue
		}
		path := make([]contour.Point, 0, len(cw)+len(ccw)-1)
		for k := len(ccw) - 1; k > 0; k-- {
			path = append(path, ccw[k])
		}
		path = append(path, cw...)

		angle := float64(m.Direction) * math.Pi / minutiae.NDIRS
		sin, cos := math.Sin(-angle), math.Cos(-angle)
		rotatedY := make([]float64, len(path))
		for k, p := range path {
			rotatedY[k] = float64(p.X)*sin + float64(p.Y)*cos
		}

		minima := localExtrema(rotatedY, true)
		switch len(minima) {
		case 1:
			items[i].X = path[minima[0]].X
			items[i].Y = path[minima[0]].Y
		case 2:
			best := minima[0]
			if rotatedY[minima[1]] < rotatedY[best] {
				best = minima[1]
			}
			items[i].X = path[best].X
			items[i].Y = path[best].Y
		default:
			remove[i] = true
		}
	}
	applyRemoval(list, remove)
}

// localExtrema returns indices of strict local minima (or maxima if
// minima is false) in y, ignoring the endpoints.
func localExtrema(y []float64, minima bool) []int {
	var out []int
	for i := 1; i < len(y)-1; i++ {
		if minima && y[i] < y[i-1] && y[i] < y[i+1] {
			out = append(out, i)
		}
		if !minima && y[i] > y[i-1] && y[i] > y[i+1] {
			out = append(out, i)
		}
	}
	return out
}

// p7Hooks implements P7.
func p7Hooks(list *minutiae.List, bin *minutiae.BinaryImage) {
	items := list.Items()
	remove := make(map[int]bool)
	for i := 0; i < len(items); i++ {
		if remove[i] {
			continue
		}
		for j := i + 1; j < len(items); j++ {
			if remove[j] {
				continue
			}
			a, b := items[i], items[j]
			if a.Type == b.Type {
				continue
			}
			if !withinPixels(a, b, MaxRMTestDist) || !oppositeDirections(a, b) {
				continue
			}
			_, result := contour.Trace(bin, contour.Point{X: a.X, Y: a.Y}, -1, MaxHookLen, true)
			if result == contour.Complete || result == contour.Loop {
				remove[i], remove[j] = true, true
			}
		}
	}
	applyRemoval(list, remove)
}

// p8Overlaps implements P8.
func p8Overlaps(list *minutiae.List, bin *minutiae.BinaryImage) {
	items := list.Items()
	remove := make(map[int]bool)
	for i := 0; i < len(items); i++ {
		if remove[i] {
			continue
		}
		for j := i + 1; j < len(items); j++ {
			if remove[j] {
				continue
			}
			a, b := items[i], items[j]
			if a.Type != b.Type {
				continue
			}
			if !withinPixels(a, b, MaxOverlapDist) {
				continue
			}
			diff := minutiae.DirectionDiffDegrees(a.Direction, b.Direction)
			if diff < 20 {
				continue // not divergent enough to be a spurious overlap
			}
			joinDir := joinDirectionDegrees(a, b)
			oppA := directionDegrees(minutiae.Opposite(a.Direction))
			within90 := angularDiff(joinDir, oppA) <= 90
			closeAndFree := withinPixels(a, b, MaxOverlapJoinDist) && freePath(bin, a, b)
			if within90 || closeAndFree {
				remove[i], remove[j] = true, true
			}
		}
	}
	applyRemoval(list, remove)
}

func directionDegrees(d int) float64 {
	return float64(d) * (360.0 / (2 * minutiae.NDIRS))
}

func joinDirectionDegrees(a, b minutiae.Minutia) float64 {
	angle := math.Atan2(float64(b.Y-a.Y), float64(b.X-a.X))
	deg := angle * 180 / math.Pi
	if deg < 0 {
		deg += 360
	}
	return deg
}

func angularDiff(a, b float64) float64 {
	d := math.Abs(a - b)
	if d > 180 {
		d = 360 - d
	}
	return d
}

// freePath reports whether every pixel on the straight line between a and
// b is foreground (no intervening valley), using a Bresenham walk.
func freePath(bin *minutiae.BinaryImage, a, b minutiae.Minutia) bool {
	x0, y0, x1, y1 := a.X, a.Y, b.X, b.Y
	dx := abs(x1 - x0)
	dy := -abs(y1 - y0)
	sx, sy := sign(x1-x0), sign(y1-y0)
	err := dx + dy
	for {
		if !bin.At(x0, y0) {
			return false
		}
		if x0 == x1 && y0 == y1 {
			return true
		}
		e2 := 2 * err
		if e2 >= dy {
			err += dy
			x0 += sx
		}
		if e2 <= dx {
			err += dx
			y0 += sy
		}
	}
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

func sign(v int) int {
	switch {
	case v > 0:
		return 1
	case v < 0:
		return -1
	default:
		return 0
	}
}

// p9Malformations implements P9.
func p9Malformations(list *minutiae.List, blocks *minutiae.BlockMaps, bin *minutiae.BinaryImage) {
	items := list.Items()
	remove := make(map[int]bool)
	for i, m := range items {
		cw1, r1 := contour.Trace(bin, contour.Point{X: m.X, Y: m.Y}, -1, MalformationSteps1, true)
		ccw1, r1b := contour.Trace(bin, contour.Point{X: m.X, Y: m.Y}, -1, MalformationSteps1, false)
		cw2, r2 := contour.Trace(bin, contour.Point{X: m.X, Y: m.Y}, -1, MalformationSteps2, true)
		ccw2, r2b := contour.Trace(bin, contour.Point{X: m.X, Y: m.Y}, -1, MalformationSteps2, false)
		if anyBad(r1, r1b, r2, r2b) {
			remove[i] = true
			continue
		}
		inner := crossDistance(cw1, ccw1)
		outer := crossDistance(cw2, ccw2)
		if inner == 0 || outer/inner > MinMalformationRatio {
			remove[i] = true
			continue
		}
		if blocks.LowFlowAt(m.X, m.Y) && outer > MaxMalformationDist {
			remove[i] = true
		}
	}
	applyRemoval(list, remove)
}

func anyBad(results ...contour.Result) bool {
	for _, r := range results {
		if r == contour.Ignore {
			return true
		}
		if r == contour.Loop {
			return true
		}
	}
	return false
}

func crossDistance(cw, ccw []contour.Point) float64 {
	if len(cw) == 0 || len(ccw) == 0 {
		return 0
	}
	a, b := cw[len(cw)-1], ccw[len(ccw)-1]
	dx, dy := float64(a.X-b.X), float64(a.Y-b.Y)
	return math.Hypot(dx, dy)
}

// p10Pores implements P10.
func p10Pores(list *minutiae.List, blocks *minutiae.BlockMaps, bin *minutiae.BinaryImage) {
	items := list.Items()
	remove := make(map[int]bool)
	for i, m := range items {
		if !blocks.LowFlowAt(m.X, m.Y) && !blocks.HighCurveAt(m.X, m.Y) {
			continue
		}
		dx, dy := minutiae.DirectionVector(minutiae.Opposite(m.Direction))
		rx := m.X + int(math.Round(dx*PoresTransR))
		ry := m.Y + int(math.Round(dy*PoresTransR))

		px, dy2 := minutiae.DirectionVector(m.Direction + minutiae.NDIRS/2)
		var p, q contour.Point
		foundP, foundQ := false, false
		for step := 1; step <= PoresPerpSteps && !(foundP && foundQ); step++ {
			cx := rx + int(math.Round(px*float64(step)))
			cy := ry + int(math.Round(dy2*float64(step)))
			if !foundP && bin.At(cx, cy) != bin.At(rx, ry) {
				p = contour.Point{X: cx, Y: cy}
				foundP = true
			}
			cx2 := rx - int(math.Round(px*float64(step)))
			cy2 := ry - int(math.Round(dy2*float64(step)))
			if !foundQ && bin.At(cx2, cy2) != bin.At(rx, ry) {
				q = contour.Point{X: cx2, Y: cy2}
				foundQ = true
			}
		}
		if !foundP || !foundQ {
			continue
		}
		aPath, ra := contour.Trace(bin, p, -1, PoresStepsFwd, true)
		bPath, rb := contour.Trace(bin, p, -1, PoresStepsBwd, false)
		cPath, rc := contour.Trace(bin, q, -1, PoresStepsFwd, true)
		dPath, rd := contour.Trace(bin, q, -1, PoresStepsBwd, false)
		if anyBad(ra, rb, rc, rd) {
			continue
		}
		ab := crossDistance(aPath, bPath)
		cd := crossDistance(cPath, dPath)
		if cd == 0 {
			continue
		}
		if (ab*ab)/(cd*cd) <= PoresMaxRatio {
			remove[i] = true
		}
	}
	applyRemoval(list, remove)
}

// p11PerimeterPoints implements P11.
func p11PerimeterPoints(list *minutiae.List, bin *minutiae.BinaryImage, minDist int) {
	w, h := bin.Width(), bin.Height()
	leftDown := make([]int, h)
	rightDown := make([]int, h)
	for y := 0; y < h; y++ {
		leftDown[y], rightDown[y] = -1, -1
		for x := 0; x < w; x++ {
			if bin.At(x, y) {
				if leftDown[y] == -1 {
					leftDown[y] = x
				}
				rightDown[y] = x
			}
		}
	}
	leftUp := make([]int, h)
	rightUp := make([]int, h)
	for y := h - 1; y >= 0; y-- {
		leftUp[y], rightUp[y] = -1, -1
		for x := w - 1; x >= 0; x-- {
			if bin.At(x, y) {
				rightUp[y] = x
			}
		}
		for x := 0; x < w; x++ {
			if bin.At(x, y) {
				leftUp[y] = x
				break
			}
		}
	}

	globalLeftMin, globalRightMax := w, -1
	for y := 0; y < h; y++ {
		if leftDown[y] >= 0 && leftDown[y] < globalLeftMin {
			globalLeftMin = leftDown[y]
		}
		if rightDown[y] > globalRightMax {
			globalRightMax = rightDown[y]
		}
	}

	var perimeter []contour.Point
	for y := 0; y < h; y++ {
		left, right := leftDown[y], rightDown[y]
		if left == -1 {
			left, right = leftUp[y], rightUp[y]
		} else if left == globalLeftMin {
			left = leftUp[y]
			if left == -1 {
				left = leftDown[y]
			}
		}
		if right == globalRightMax && rightUp[y] >= 0 {
			right = rightUp[y]
		}
		if left >= 0 {
			perimeter = append(perimeter, contour.Point{X: left, Y: y})
		}
		if right >= 0 {
			perimeter = append(perimeter, contour.Point{X: right, Y: y})
		}
	}

	items := list.Items()
	remove := make(map[int]bool)
	for i, m := range items {
		for _, p := range perimeter {
			dx, dy := m.X-p.X, m.Y-p.Y
			if dx*dx+dy*dy <= minDist*minDist {
				remove[i] = true
				break
			}
		}
	}
	applyRemoval(list, remove)
}

func applyRemoval(list *minutiae.List, remove map[int]bool) {
	idx := 0
	list.RemoveWhere(func(minutiae.Minutia) bool {
		keep := !remove[idx]
		idx++
		return keep
	})
}
