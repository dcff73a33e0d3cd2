package minutiae

// DirInvalid marks a block with no reliable ridge-flow direction
// (spec.md GLOSSARY "Direction map").
const DirInvalid = -1

// BlockMaps carries the per-block collaborator data spec.md §4.6 says
// detection is "told ... by its collaborator" rather than deriving itself:
// a block-level ridge-flow direction map, a low-flow map, and a
// high-curvature map, all indexed by block row/column.
type BlockMaps struct {
	BlockSize int // pixels per block side
	Cols      int
	Rows      int
	Direction []int  // [0,NDIRS) or DirInvalid, len == Rows*Cols
	LowFlow   []bool // len == Rows*Cols
	HighCurve []bool // len == Rows*Cols
}

// NewBlockMaps allocates maps sized for a width x height image using
// blockSize-pixel blocks, all blocks initialized DirInvalid/false.
func NewBlockMaps(width, height, blockSize int) *BlockMaps {
	cols := (width + blockSize - 1) / blockSize
	rows := (height + blockSize - 1) / blockSize
	dir := make([]int, rows*cols)
	for i := range dir {
		dir[i] = DirInvalid
	}
	return &BlockMaps{
		BlockSize: blockSize,
		Cols:      cols,
		Rows:      rows,
		Direction: dir,
		LowFlow:   make([]bool, rows*cols),
		HighCurve: make([]bool, rows*cols),
	}
}

func (b *BlockMaps) blockIndex(x, y int) (int, bool) {
	col := x / b.BlockSize
	row := y / b.BlockSize
	if col < 0 || col >= b.Cols || row < 0 || row >= b.Rows {
		return 0, false
	}
	return row*b.Cols + col, true
}

// DirectionAt returns the block direction covering pixel (x,y), or
// DirInvalid if (x,y) falls outside the map.
func (b *BlockMaps) DirectionAt(x, y int) int {
	i, ok := b.blockIndex(x, y)
	if !ok {
		return DirInvalid
	}
	return b.Direction[i]
}

// LowFlowAt reports whether the block covering (x,y) is low-flow.
func (b *BlockMaps) LowFlowAt(x, y int) bool {
	i, ok := b.blockIndex(x, y)
	return ok && b.LowFlow[i]
}

// HighCurveAt reports whether the block covering (x,y) is high-curvature.
func (b *BlockMaps) HighCurveAt(x, y int) bool {
	i, ok := b.blockIndex(x, y)
	return ok && b.HighCurve[i]
}

// ValidNeighborCount8 counts the 8-neighbor blocks of (col,row) with a
// valid (non-INVALID) direction, used by pruning pass P5.
func (b *BlockMaps) ValidNeighborCount8(col, row int) int {
	n := 0
	for dy := -1; dy <= 1; dy++ {
		for dx := -1; dx <= 1; dx++ {
			if dx == 0 && dy == 0 {
				continue
			}
			c, r := col+dx, row+dy
			if c < 0 || c >= b.Cols || r < 0 || r >= b.Rows {
				continue
			}
			if b.Direction[r*b.Cols+c] != DirInvalid {
				n++
			}
		}
	}
	return n
}
