// Package subset implements N-D rectangular array subsets: construction,
// row-major iteration, byte-range computation, and intersection arithmetic.
// It is the sole source of truth for element and byte layout used by the
// codec pipeline, the sharding codec, and the chunk engine.
package subset

import (
	"fmt"

	"github.com/zarr-go/zarrcore/zarrerrors"
)

// ArraySubset is a half-open N-D rectangle [Start, Start+Shape).
type ArraySubset struct {
	Start []uint64
	Shape []uint64
}

// New constructs a subset from a start coordinate and a shape. The slices
// are copied so the caller may reuse them.
func New(start, shape []uint64) (ArraySubset, error) {
	if len(start) != len(shape) {
		return ArraySubset{}, fmt.Errorf("%w: start has %d dims, shape has %d", zarrerrors.ErrIncompatibleDimensionality, len(start), len(shape))
	}
	s := ArraySubset{Start: append([]uint64(nil), start...), Shape: append([]uint64(nil), shape...)}
	return s, nil
}

// FromRanges constructs a subset from per-dimension [lo, hi) ranges.
func FromRanges(ranges [][2]uint64) ArraySubset {
	start := make([]uint64, len(ranges))
	shape := make([]uint64, len(ranges))
	for i, r := range ranges {
		start[i] = r[0]
		shape[i] = r[1] - r[0]
	}
	return ArraySubset{Start: start, Shape: shape}
}

// Full returns the subset covering the entirety of shape.
func Full(shape []uint64) ArraySubset {
	return ArraySubset{Start: make([]uint64, len(shape)), Shape: append([]uint64(nil), shape...)}
}

// Dimensionality returns the number of dimensions.
func (s ArraySubset) Dimensionality() int { return len(s.Shape) }

// NumElements returns the total element count covered by the subset.
func (s ArraySubset) NumElements() uint64 {
	if len(s.Shape) == 0 {
		return 1 // scalar (0-D) subset covers exactly one element
	}
	n := uint64(1)
	for _, d := range s.Shape {
		n *= d
	}
	return n
}

// End returns, per dimension, the exclusive upper bound Start+Shape.
func (s ArraySubset) End() []uint64 {
	end := make([]uint64, len(s.Shape))
	for i := range s.Shape {
		end[i] = s.Start[i] + s.Shape[i]
	}
	return end
}

// validateAgainst checks dimensionality and bounds against a containing shape.
func (s ArraySubset) validateAgainst(containing []uint64) error {
	if len(s.Shape) != len(containing) {
		return fmt.Errorf("%w: subset has %d dims, containing shape has %d", zarrerrors.ErrIncompatibleDimensionality, len(s.Shape), len(containing))
	}
	for i := range s.Shape {
		if s.Start[i]+s.Shape[i] > containing[i] {
			return fmt.Errorf("%w: dim %d start=%d shape=%d containing=%d", zarrerrors.ErrIncompatibleArraySubsetAndShape, i, s.Start[i], s.Shape[i], containing[i])
		}
	}
	return nil
}

// strides returns C-order (row-major) strides for shape, in elements.
func strides(shape []uint64) []uint64 {
	s := make([]uint64, len(shape))
	stride := uint64(1)
	for i := len(shape) - 1; i >= 0; i-- {
		s[i] = stride
		stride *= shape[i]
	}
	return s
}

// Indices returns the row-major linearised flat indices of every element in
// s, relative to containing. The sequence is deterministic and restartable.
func (s ArraySubset) Indices(containing []uint64) ([]uint64, error) {
	if err := s.validateAgainst(containing); err != nil {
		return nil, err
	}
	if len(s.Shape) == 0 {
		return []uint64{0}, nil
	}
	containingStrides := strides(containing)
	out := make([]uint64, 0, s.NumElements())
	rel := make([]uint64, len(s.Shape))
	for {
		flat := uint64(0)
		for i, r := range rel {
			flat += (s.Start[i] + r) * containingStrides[i]
		}
		out = append(out, flat)

		i := len(rel) - 1
		for ; i >= 0; i-- {
			rel[i]++
			if rel[i] < s.Shape[i] {
				break
			}
			rel[i] = 0
		}
		if i < 0 {
			break
		}
	}
	return out, nil
}

// Run is a contiguous span of flat indices: [Start, Start+Length).
type Run struct {
	Start  uint64
	Length uint64
}

// ContiguousIndices returns the subset's row-major traversal as a sequence
// of maximal contiguous runs: non-overlapping, covering, and ordered.
func (s ArraySubset) ContiguousIndices(containing []uint64) ([]Run, error) {
	if err := s.validateAgainst(containing); err != nil {
		return nil, err
	}
	if len(s.Shape) == 0 {
		return []Run{{Start: 0, Length: 1}}, nil
	}

	// The last dimension is contiguous in one run of length Shape[last] when
	// it spans a prefix of containing's last dimension; runs may additionally
	// merge across dimensions when this subset spans a full row of the
	// containing shape in every trailing dimension (the common "entire chunk"
	// or "entire row" shortcut).
	contiguousDimsFromEnd := 0
	for i := len(s.Shape) - 1; i >= 0; i-- {
		if s.Shape[i] == containing[i] {
			contiguousDimsFromEnd++
			continue
		}
		break
	}
	if contiguousDimsFromEnd == len(s.Shape) {
		idx, _ := s.Indices(containing)
		return []Run{{Start: idx[0], Length: s.NumElements()}}, nil
	}

	containingStrides := strides(containing)
	runLen := uint64(1)
	for i := len(s.Shape) - contiguousDimsFromEnd; i < len(s.Shape); i++ {
		runLen *= s.Shape[i]
	}
	outerShape := s.Shape[:len(s.Shape)-contiguousDimsFromEnd]
	outerStart := s.Start[:len(s.Shape)-contiguousDimsFromEnd]

	if len(outerShape) == 0 {
		idx, _ := s.Indices(containing)
		return []Run{{Start: idx[0], Length: runLen}}, nil
	}

	var runs []Run
	rel := make([]uint64, len(outerShape))
	for {
		flat := uint64(0)
		for i, r := range rel {
			flat += (outerStart[i] + r) * containingStrides[i]
		}
		runs = append(runs, Run{Start: flat, Length: runLen})

		i := len(rel) - 1
		for ; i >= 0; i-- {
			rel[i]++
			if rel[i] < outerShape[i] {
				break
			}
			rel[i] = 0
		}
		if i < 0 {
			break
		}
	}
	return runs, nil
}

// ByteRange is a (offset, length) pair in bytes within a flat buffer. A
// Length of 0 means "everything from Offset to the end of the value" rather
// than an empty range; this lets a partial decoder request a whole encoded
// value (of otherwise-unknown length, e.g. compressed bytes) through the
// same range-read path used for true sub-ranges.
type ByteRange struct {
	Offset uint64
	Length uint64
}

// ByteRanges converts ContiguousIndices into byte offsets/lengths for a
// fixed element size.
func (s ArraySubset) ByteRanges(containing []uint64, elemSize uint64) ([]ByteRange, error) {
	runs, err := s.ContiguousIndices(containing)
	if err != nil {
		return nil, err
	}
	out := make([]ByteRange, len(runs))
	for i, r := range runs {
		out[i] = ByteRange{Offset: r.Start * elemSize, Length: r.Length * elemSize}
	}
	return out, nil
}

// Intersect returns the overlap of s and other, and false if they are disjoint.
func (s ArraySubset) Intersect(other ArraySubset) (ArraySubset, bool) {
	if len(s.Shape) != len(other.Shape) {
		return ArraySubset{}, false
	}
	start := make([]uint64, len(s.Shape))
	shape := make([]uint64, len(s.Shape))
	sEnd, oEnd := s.End(), other.End()
	for i := range s.Shape {
		lo := max64(s.Start[i], other.Start[i])
		hi := min64(sEnd[i], oEnd[i])
		if lo >= hi {
			return ArraySubset{}, false
		}
		start[i] = lo
		shape[i] = hi - lo
	}
	return ArraySubset{Start: start, Shape: shape}, true
}

// Contains reports whether s fully contains other.
func (s ArraySubset) Contains(other ArraySubset) bool {
	if len(s.Shape) != len(other.Shape) {
		return false
	}
	sEnd, oEnd := s.End(), other.End()
	for i := range s.Shape {
		if other.Start[i] < s.Start[i] || oEnd[i] > sEnd[i] {
			return false
		}
	}
	return true
}

// Relate translates other's start into s's coordinate frame: the returned
// subset has the same Shape as other but Start expressed relative to s.Start.
// other must be contained in a shape that overlaps s; callers typically call
// this after Intersect.
func (s ArraySubset) Relate(other ArraySubset) ArraySubset {
	rel := make([]uint64, len(other.Start))
	for i := range other.Start {
		rel[i] = other.Start[i] - s.Start[i]
	}
	return ArraySubset{Start: rel, Shape: append([]uint64(nil), other.Shape...)}
}

// Equal reports whether two subsets describe the same rectangle.
func (s ArraySubset) Equal(other ArraySubset) bool {
	if len(s.Start) != len(other.Start) {
		return false
	}
	for i := range s.Start {
		if s.Start[i] != other.Start[i] || s.Shape[i] != other.Shape[i] {
			return false
		}
	}
	return true
}

func max64(a, b uint64) uint64 {
	if a > b {
		return a
	}
	return b
}

func min64(a, b uint64) uint64 {
	if a < b {
		return a
	}
	return b
}
