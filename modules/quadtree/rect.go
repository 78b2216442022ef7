package quadtree

import (
	"math"
)

const (
	// Bits used by the grid on the horizontal axes.
	GridBitsXZ = 8

	// Bits used by the grid on the vertical axis.
	GridBitsY = 5

	GridSizeXZ = 1 << GridBitsXZ
	GridSizeY  = 1 << GridBitsY

	// The largest depth whose finest level still maps one cell per horizontal
	// grid unit.
	MaxDepth = GridBitsXZ + 1

	// Shrinks the max corner of a box before flooring so that an edge sitting
	// exactly on a grid line does not spill into the next cell.
	quantizeEpsilon = 0.01
)

// GridRect is a box in grid space. Max coordinates are exclusive: a rect
// covers the cells [X0, X1) x [Y0, Y1) x [Z0, Z1) and is at least one cell
// thick on every axis.
type GridRect struct {
	X0, X1 int
	Y0, Y1 int
	Z0, Z1 int
}

// Convert maps a world space box into grid space. Out of range input is
// clamped so that the result always covers at least one valid cell.
func Convert(b Box, offset Vector3f, scale Vector3f) GridRect {
	lo := MulPerAxis(Add(b.Min, offset), scale)
	hi := MulPerAxis(Add(b.Max, offset), scale)

	r := GridRect{
		X0: floor(lo.X),
		X1: floor(hi.X - quantizeEpsilon),
		Y0: floor(lo.Y),
		Y1: floor(hi.Y - quantizeEpsilon),
		Z0: floor(lo.Z),
		Z1: floor(hi.Z - quantizeEpsilon),
	}

	// Max corners are inclusive until here.
	r.X0, r.X1 = clampSpan(r.X0, r.X1+1, GridSizeXZ)
	r.Y0, r.Y1 = clampSpan(r.Y0, r.Y1+1, GridSizeY)
	r.Z0, r.Z1 = clampSpan(r.Z0, r.Z1+1, GridSizeXZ)
	return r
}

// YMask returns the vertical occupancy bits of the rect: one bit per grid
// unit in [Y0, Y1).
func (r GridRect) YMask() uint32 {
	return spanMask(r.Y0, r.Y1)
}

func (r GridRect) Width() int {
	return r.X1 - r.X0
}

func (r GridRect) Height() int {
	return r.Y1 - r.Y0
}

func (r GridRect) Depth() int {
	return r.Z1 - r.Z0
}

func spanMask(lo, hi int) uint32 {
	return uint32((uint64(1)<<uint(hi) - 1) &^ (uint64(1)<<uint(lo) - 1))
}

func clampSpan(lo, hi, size int) (int, int) {
	lo = min(max(lo, 0), size-1)
	hi = min(max(hi, lo+1), size)
	return lo, hi
}

func floor(v float32) int {
	f := math.Floor(float64(v))
	switch {
	case math.IsNaN(f):
		return 0
	case f < math.MinInt32:
		return math.MinInt32
	case f > math.MaxInt32:
		return math.MaxInt32
	}
	return int(f)
}
