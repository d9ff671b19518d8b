// Package zbytes holds the bytes for one array region or chunk, in either
// the fixed-size element layout or the Arrow-like variable-length (data,
// offsets) layout, and provides the slicing and merging primitives the
// codec pipeline and chunk engine build on.
package zbytes

import (
	"fmt"

	"github.com/zarr-go/zarrcore/subset"
	"github.com/zarr-go/zarrcore/zarrerrors"
)

// ArrayBytes is a tagged union: exactly one of Fixed or Variable is set,
// determined by the data type the buffer was created for.
type ArrayBytes struct {
	// Fixed holds num_elements*element_size bytes, row-major, when non-nil.
	Fixed []byte

	// Variable holds concatenated per-element bytes plus an offsets array
	// of length num_elements+1. Data and Offsets are both non-nil (possibly
	// empty) when this is a variable-length buffer.
	Data    []byte
	Offsets []uint64

	variable bool
}

// NewFixed wraps a fixed-length buffer.
func NewFixed(data []byte) ArrayBytes {
	return ArrayBytes{Fixed: data}
}

// NewVariable wraps a (data, offsets) pair.
func NewVariable(data []byte, offsets []uint64) ArrayBytes {
	return ArrayBytes{Data: data, Offsets: offsets, variable: true}
}

// IsVariable reports whether this buffer uses the variable-length layout.
func (b ArrayBytes) IsVariable() bool { return b.variable }

// NumElements returns the element count implied by the layout.
func (b ArrayBytes) NumElements(elemSize uint64) uint64 {
	if b.variable {
		if len(b.Offsets) == 0 {
			return 0
		}
		return uint64(len(b.Offsets) - 1)
	}
	if elemSize == 0 {
		return 0
	}
	return uint64(len(b.Fixed)) / elemSize
}

// FillValue produces an all-fill-value buffer for numElements elements of a
// fixed-size data type of width elemSize.
func FillValue(numElements, elemSize uint64, fillValue []byte) ArrayBytes {
	out := make([]byte, numElements*elemSize)
	for i := uint64(0); i < numElements; i++ {
		copy(out[i*elemSize:(i+1)*elemSize], fillValue)
	}
	return NewFixed(out)
}

// FillValueVariable produces a variable-length buffer of numElements copies
// of a variable-length fill element.
func FillValueVariable(numElements uint64, fillElement []byte) ArrayBytes {
	data := make([]byte, 0, numElements*uint64(len(fillElement)))
	offsets := make([]uint64, numElements+1)
	for i := uint64(0); i < numElements; i++ {
		data = append(data, fillElement...)
		offsets[i+1] = uint64(len(data))
	}
	return NewVariable(data, offsets)
}

// Validate checks the buffer against the expected element count and
// (for fixed layouts) element size.
func (b ArrayBytes) Validate(numElements, elemSize uint64) error {
	if b.variable {
		if uint64(len(b.Offsets)) != numElements+1 {
			return fmt.Errorf("%w: expected %d offsets, got %d", zarrerrors.ErrInvalidVariableSizedArrayOffsets, numElements+1, len(b.Offsets))
		}
		if len(b.Offsets) == 0 {
			return nil
		}
		if b.Offsets[0] != 0 {
			return fmt.Errorf("%w: offsets[0]=%d, want 0", zarrerrors.ErrInvalidVariableSizedArrayOffsets, b.Offsets[0])
		}
		if b.Offsets[len(b.Offsets)-1] != uint64(len(b.Data)) {
			return fmt.Errorf("%w: terminal offset %d != data length %d", zarrerrors.ErrInvalidVariableSizedArrayOffsets, b.Offsets[len(b.Offsets)-1], len(b.Data))
		}
		for i := 0; i+1 < len(b.Offsets); i++ {
			if b.Offsets[i] > b.Offsets[i+1] {
				return fmt.Errorf("%w: offsets not monotonic at index %d", zarrerrors.ErrInvalidVariableSizedArrayOffsets, i)
			}
		}
		return nil
	}

	want := numElements * elemSize
	if uint64(len(b.Fixed)) != want {
		return fmt.Errorf("%w: expected %d bytes, got %d", zarrerrors.ErrExpectedFixedLengthBytes, want, len(b.Fixed))
	}
	return nil
}

// Element returns the bytes for element i (fixed layout only needs elemSize).
func (b ArrayBytes) Element(i uint64, elemSize uint64) []byte {
	if b.variable {
		return b.Data[b.Offsets[i]:b.Offsets[i+1]]
	}
	return b.Fixed[i*elemSize : (i+1)*elemSize]
}

// Extract returns the bytes of the sub-region s within a buffer whose shape
// is containing.
func (b ArrayBytes) Extract(s subset.ArraySubset, containing []uint64, elemSize uint64) (ArrayBytes, error) {
	if b.variable {
		idx, err := s.Indices(containing)
		if err != nil {
			return ArrayBytes{}, err
		}
		data := make([]byte, 0)
		offsets := make([]uint64, len(idx)+1)
		for i, flat := range idx {
			data = append(data, b.Element(flat, 0)...)
			offsets[i+1] = uint64(len(data))
		}
		return NewVariable(data, offsets), nil
	}

	ranges, err := s.ByteRanges(containing, elemSize)
	if err != nil {
		return ArrayBytes{}, err
	}
	total := uint64(0)
	for _, r := range ranges {
		total += r.Length
	}
	out := make([]byte, 0, total)
	for _, r := range ranges {
		out = append(out, b.Fixed[r.Offset:r.Offset+r.Length]...)
	}
	return NewFixed(out), nil
}

// Update writes src into the sub-region s of a buffer whose shape is
// containing, returning the updated buffer. For the fixed layout the
// receiver's bytes are copied and the write is applied to the copy, so the
// receiver is left unchanged; for the variable layout a new (data, offsets) pair is rebuilt because
// element lengths may change.
func (b ArrayBytes) Update(s subset.ArraySubset, containing []uint64, elemSize uint64, src ArrayBytes) (ArrayBytes, error) {
	if b.variable != src.variable {
		if b.variable {
			return ArrayBytes{}, zarrerrors.ErrExpectedVariableLengthBytes
		}
		return ArrayBytes{}, zarrerrors.ErrExpectedFixedLengthBytes
	}

	if b.variable {
		idx, err := s.Indices(containing)
		if err != nil {
			return ArrayBytes{}, err
		}
		total := uint64(len(idx) - 1)
		_ = total
		if src.NumElements(0) != uint64(len(idx)) {
			return ArrayBytes{}, fmt.Errorf("%w: update covers %d elements, source has %d", zarrerrors.ErrInvalidVariableSizedArrayOffsets, len(idx), src.NumElements(0))
		}

		touched := make(map[uint64]bool, len(idx))
		for _, flat := range idx {
			touched[flat] = true
		}

		total64 := uint64(1)
		for _, d := range containing {
			total64 *= d
		}
		data := make([]byte, 0, len(b.Data)+len(src.Data))
		offsets := make([]uint64, total64+1)
		srcPos := 0
		for flat := uint64(0); flat < total64; flat++ {
			var elem []byte
			if touched[flat] {
				elem = src.Element(uint64(srcPos), 0)
				srcPos++
			} else {
				elem = b.Element(flat, 0)
			}
			data = append(data, elem...)
			offsets[flat+1] = uint64(len(data))
		}
		return NewVariable(data, offsets), nil
	}

	ranges, err := s.ByteRanges(containing, elemSize)
	if err != nil {
		return ArrayBytes{}, err
	}
	if uint64(len(src.Fixed)) != sumRangeLengths(ranges) {
		return ArrayBytes{}, fmt.Errorf("%w: update region is %d bytes, source has %d", zarrerrors.ErrInvalidBytesLength, sumRangeLengths(ranges), len(src.Fixed))
	}

	out := append([]byte(nil), b.Fixed...)
	pos := uint64(0)
	for _, r := range ranges {
		copy(out[r.Offset:r.Offset+r.Length], src.Fixed[pos:pos+r.Length])
		pos += r.Length
	}
	return NewFixed(out), nil
}

func sumRangeLengths(ranges []subset.ByteRange) uint64 {
	total := uint64(0)
	for _, r := range ranges {
		total += r.Length
	}
	return total
}

// ChunkPiece pairs a decoded chunk's bytes with the subset of the output
// array it covers.
type ChunkPiece struct {
	Bytes         ArrayBytes
	SubsetInArray subset.ArraySubset
	// ChunkShape is the shape the chunk's own bytes are laid out in; the
	// SubsetInArray relative to the chunk's origin selects from it.
	ChunkShape    []uint64
	SubsetInChunk subset.ArraySubset
}

// Merge materialises an array subset's bytes from a set of chunk pieces that
// cover it exactly once. For the variable-length layout a two-pass layout
// (size, then cumulative offset, then copy) avoids per-element allocation.
func Merge(outShape []uint64, elemSize uint64, pieces []ChunkPiece, variable bool) (ArrayBytes, error) {
	if !variable {
		total := uint64(1)
		for _, d := range outShape {
			total *= d
		}
		out := make([]byte, total*elemSize)
		outBuf := NewFixed(out)
		for _, p := range pieces {
			extracted, err := p.Bytes.Extract(p.SubsetInChunk, p.ChunkShape, elemSize)
			if err != nil {
				return ArrayBytes{}, err
			}
			updated, err := outBuf.Update(p.SubsetInArray, outShape, elemSize, extracted)
			if err != nil {
				return ArrayBytes{}, err
			}
			outBuf = updated
		}
		return outBuf, nil
	}

	total := uint64(1)
	for _, d := range outShape {
		total *= d
	}
	lengths := make([]uint64, total)
	for _, p := range pieces {
		idx, err := p.SubsetInArray.Indices(outShape)
		if err != nil {
			return ArrayBytes{}, err
		}
		chunkIdx, err := p.SubsetInChunk.Indices(p.ChunkShape)
		if err != nil {
			return ArrayBytes{}, err
		}
		for i, flat := range idx {
			elem := p.Bytes.Element(chunkIdx[i], 0)
			lengths[flat] = uint64(len(elem))
		}
	}

	offsets := make([]uint64, total+1)
	for i := uint64(0); i < total; i++ {
		offsets[i+1] = offsets[i] + lengths[i]
	}
	data := make([]byte, offsets[total])

	for _, p := range pieces {
		idx, err := p.SubsetInArray.Indices(outShape)
		if err != nil {
			return ArrayBytes{}, err
		}
		chunkIdx, err := p.SubsetInChunk.Indices(p.ChunkShape)
		if err != nil {
			return ArrayBytes{}, err
		}
		for i, flat := range idx {
			elem := p.Bytes.Element(chunkIdx[i], 0)
			copy(data[offsets[flat]:offsets[flat+1]], elem)
		}
	}
	return NewVariable(data, offsets), nil
}

// Equal reports whether two buffers have identical contents.
func (b ArrayBytes) Equal(other ArrayBytes) bool {
	if b.variable != other.variable {
		return false
	}
	if b.variable {
		if len(b.Offsets) != len(other.Offsets) || len(b.Data) != len(other.Data) {
			return false
		}
		for i := range b.Offsets {
			if b.Offsets[i] != other.Offsets[i] {
				return false
			}
		}
		for i := range b.Data {
			if b.Data[i] != other.Data[i] {
				return false
			}
		}
		return true
	}
	if len(b.Fixed) != len(other.Fixed) {
		return false
	}
	for i := range b.Fixed {
		if b.Fixed[i] != other.Fixed[i] {
			return false
		}
	}
	return true
}

// IsFillValue reports whether a fixed-layout buffer is entirely the given
// element-sized fill pattern.
func (b ArrayBytes) IsFillValue(elemSize uint64, fillValue []byte) bool {
	if b.variable || elemSize == 0 {
		return false
	}
	if len(b.Fixed)%int(elemSize) != 0 {
		return false
	}
	for i := 0; i < len(b.Fixed); i += int(elemSize) {
		for j := 0; j < int(elemSize); j++ {
			if b.Fixed[i+j] != fillValue[j] {
				return false
			}
		}
	}
	return true
}
