// Package contour implements the iterative boundary walker the spec.md §9
// design note calls for ("write an iterative walker that returns a
// Complete | Loop | Incomplete | Ignore enum; the loop handler invokes the
// walker again rather than recursing through callbacks"), replacing the
// source's recursive trace-then-reinvoke style.
//
// The walker follows the 8-connected black/white boundary of a binarized
// image using Moore-neighbor tracing: at each step it looks for the next
// foreground pixel among the 8 neighbors of the current one, starting just
// past the direction it arrived from, so it hugs the boundary rather than
// cutting across the interior.
package contour

// Point is a pixel coordinate.
type Point struct{ X, Y int }

// Binary is the minimal binarized-image accessor the walker needs.
type Binary interface {
	At(x, y int) bool // true = foreground (ridge)
	Width() int
	Height() int
}

// Result classifies how a trace ended.
type Result int

const (
	Incomplete Result = iota // not returned by Trace (a trace that uses all its steps is Complete)
	Complete                 // ran the requested number of steps cleanly
	Loop                     // returned to its own starting point
	Ignore                   // found no foreground neighbor to continue to; caller should discard
)

// clockwise neighbor offsets starting at North.
var dirs = [8][2]int{
	{0, -1}, {1, -1}, {1, 0}, {1, 1},
	{0, 1}, {-1, 1}, {-1, 0}, {-1, -1},
}

// Trace walks up to steps pixels along the boundary starting at start.
// fromDir is the backtrack direction, an index into the clockwise neighbor
// table pointing back toward the previous pixel; the first neighbor search
// starts just past it (pass -1 if there is no prior pixel). When
// clockwise is false the neighbor search runs counter-clockwise instead.
// Returns the visited points (including start) and how the trace ended.
func Trace(bin Binary, start Point, fromDir int, steps int, clockwise bool) ([]Point, Result) {
	path := []Point{start}
	cur := start
	backtrack := fromDir

	for i := 0; i < steps; i++ {
		next, dir, ok := nextBoundaryPixel(bin, cur, backtrack, clockwise)
		if !ok {
			return path, Ignore
		}
		if next.X < 0 || next.Y < 0 || next.X >= bin.Width() || next.Y >= bin.Height() {
			return path, Ignore
		}
		if len(path) >= 3 && next == start {
			path = append(path, next)
			return path, Loop
		}
		path = append(path, next)
		cur = next
		backtrack = (dir + 4) % 8 // next search resumes from where we came from
	}
	return path, Complete
}

// nextBoundaryPixel finds the next foreground neighbor of cur, scanning
// clockwise (or counter-clockwise) starting just past backtrack.
func nextBoundaryPixel(bin Binary, cur Point, backtrack int, clockwise bool) (Point, int, bool) {
	start := 0
	if backtrack >= 0 {
		start = (backtrack + 1) % 8
	}
	for i := 0; i < 8; i++ {
		var idx int
		if clockwise {
			idx = (start + i) % 8
		} else {
			idx = ((start-i)%8 + 8) % 8
		}
		d := dirs[idx]
		p := Point{cur.X + d[0], cur.Y + d[1]}
		if p.X < 0 || p.Y < 0 || p.X >= bin.Width() || p.Y >= bin.Height() {
			continue
		}
		if bin.At(p.X, p.Y) {
			return p, idx, true
		}
	}
	return Point{}, 0, false
}

// ExteriorOf returns a neighbor of p that is background (the "adjacent
// exterior edge point" of spec.md §3), preferring the 4-connected
// neighbors in the canonical N,E,S,W order.
func ExteriorOf(bin Binary, p Point) (Point, bool) {
	for _, d := range [4][2]int{{0, -1}, {1, 0}, {0, 1}, {-1, 0}} {
		q := Point{p.X + d[0], p.Y + d[1]}
		if q.X < 0 || q.Y < 0 || q.X >= bin.Width() || q.Y >= bin.Height() {
			continue
		}
		if !bin.At(q.X, q.Y) {
			return q, true
		}
	}
	return Point{}, false
}
