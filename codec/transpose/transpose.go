// Package transpose implements the "transpose" array->array codec: it
// permutes a chunk's dimensions according to a fixed order. Grounded on
// original_source/zarrs/src/array/codec/array_to_array/transpose/transpose_codec.rs.
package transpose

import (
	"context"
	"fmt"

	"github.com/zarr-go/zarrcore/codec"
	"github.com/zarr-go/zarrcore/subset"
	"github.com/zarr-go/zarrcore/zarrerrors"
	"github.com/zarr-go/zarrcore/zbytes"
)

// Codec implements codec.ArrayToArrayCodec. Order[i] gives, for output
// dimension i, the source (decoded) dimension it is drawn from.
type Codec struct {
	Order []int
}

func New(order []int) Codec { return Codec{Order: append([]int(nil), order...)} }

func (c Codec) Identifier() string { return "transpose" }

func (c Codec) Configuration() any { return map[string]any{"order": c.Order} }

func (c Codec) inversePermutation() []int {
	inv := make([]int, len(c.Order))
	for i, v := range c.Order {
		inv[v] = i
	}
	return inv
}

func permute[T any](in []T, order []int) []T {
	out := make([]T, len(in))
	for i, o := range order {
		out[i] = in[o]
	}
	return out
}

// EncodedRepresentation returns the permuted shape (data type and fill value
// are unchanged by a transpose).
func (c Codec) EncodedRepresentation(rep codec.Representation) (codec.Representation, error) {
	if len(c.Order) != len(rep.Shape) {
		return codec.Representation{}, fmt.Errorf("%w: transpose order has %d dims, shape has %d", zarrerrors.ErrIncompatibleDimensionality, len(c.Order), len(rep.Shape))
	}
	out := rep
	out.Shape = permute(rep.Shape, c.Order)
	return out, nil
}

func (c Codec) RecommendedConcurrency(codec.Representation) codec.RecommendedConcurrency {
	return codec.RecommendedConcurrency{Min: 1, Max: 1}
}

func strides(shape []uint64) []uint64 {
	s := make([]uint64, len(shape))
	acc := uint64(1)
	for i := len(shape) - 1; i >= 0; i-- {
		s[i] = acc
		acc *= shape[i]
	}
	return s
}

// transposeFixed copies elements from src (laid out row-major per srcShape)
// into a new buffer laid out row-major per the permuted shape, where
// outDim i is drawn from src dimension order[i].
func transposeFixed(src []byte, srcShape []uint64, order []int, elemSize uint64) []byte {
	dstShape := permute(srcShape, order)
	srcStrides := strides(srcShape)
	n := len(srcShape)

	total := uint64(1)
	for _, d := range dstShape {
		total *= d
	}
	out := make([]byte, total*elemSize)

	dstIdx := make([]uint64, n)
	for flat := uint64(0); flat < total; flat++ {
		rem := flat
		for i := n - 1; i >= 0; i-- {
			if dstShape[i] == 0 {
				dstIdx[i] = 0
				continue
			}
			dstIdx[i] = rem % dstShape[i]
			rem /= dstShape[i]
		}
		srcOffset := uint64(0)
		for dstDim, srcDim := range order {
			srcOffset += dstIdx[dstDim] * srcStrides[srcDim]
		}
		copy(out[flat*elemSize:(flat+1)*elemSize], src[srcOffset*elemSize:(srcOffset+1)*elemSize])
	}
	return out
}

func (c Codec) Encode(ctx context.Context, input zbytes.ArrayBytes, rep codec.Representation, opts codec.Options) (zbytes.ArrayBytes, error) {
	if err := input.Validate(rep.NumElements(), rep.DataType.Size); err != nil {
		return zbytes.ArrayBytes{}, err
	}
	if len(c.Order) != len(rep.Shape) {
		return zbytes.ArrayBytes{}, fmt.Errorf("%w: transpose order has %d dims, shape has %d", zarrerrors.ErrIncompatibleDimensionality, len(c.Order), len(rep.Shape))
	}
	if rep.DataType.Variable {
		return zbytes.ArrayBytes{}, fmt.Errorf("%w: transpose does not support variable-length data type %s", zarrerrors.ErrUnsupportedDataType, rep.DataType.Name)
	}
	return zbytes.NewFixed(transposeFixed(input.Fixed, rep.Shape, c.Order, rep.DataType.Size)), nil
}

// Decode reverses Encode: rep here is the decoded (pre-transpose)
// representation, and input is laid out per the encoded (permuted) shape.
func (c Codec) Decode(ctx context.Context, input zbytes.ArrayBytes, rep codec.Representation, opts codec.Options) (zbytes.ArrayBytes, error) {
	encodedRep, err := c.EncodedRepresentation(rep)
	if err != nil {
		return zbytes.ArrayBytes{}, err
	}
	if err := input.Validate(encodedRep.NumElements(), rep.DataType.Size); err != nil {
		return zbytes.ArrayBytes{}, err
	}
	inv := c.inversePermutation()
	return zbytes.NewFixed(transposeFixed(input.Fixed, encodedRep.Shape, inv, rep.DataType.Size)), nil
}

func (c Codec) PartialDecoder(inner codec.PartialDecoder, rep codec.Representation, opts codec.Options) (codec.PartialDecoder, error) {
	return &partialDecoder{inner: inner, codec: c, rep: rep}, nil
}

func (c Codec) PartialEncoder(innerDecoder codec.PartialDecoder, innerEncoder codec.PartialEncoder, rep codec.Representation, opts codec.Options) (codec.PartialEncoder, error) {
	return &partialEncoder{innerDecoder: innerDecoder, innerEncoder: innerEncoder, codec: c, rep: rep}, nil
}

// partialDecoder translates requested regions (in decoded/un-transposed
// space) into the permuted regions the inner decoder understands, then
// transposes each result back. Grounded on
// original_source/src/array/codec/array_to_array/transpose/transpose_partial_decoder.rs.
type partialDecoder struct {
	inner codec.PartialDecoder
	codec Codec
	rep   codec.Representation
}

func (p *partialDecoder) PartialDecode(ctx context.Context, regions []subset.ArraySubset, opts codec.Options) ([]zbytes.ArrayBytes, error) {
	order := p.codec.Order
	permuted := make([]subset.ArraySubset, len(regions))
	for i, r := range regions {
		start := permute(r.Start, order)
		shape := permute(r.Shape, order)
		ps, err := subset.New(start, shape)
		if err != nil {
			return nil, err
		}
		permuted[i] = ps
	}

	results, err := p.inner.PartialDecode(ctx, permuted, opts)
	if err != nil {
		return nil, err
	}

	out := make([]zbytes.ArrayBytes, len(regions))
	for i, ab := range results {
		out[i] = zbytes.NewFixed(transposeFixed(ab.Fixed, permuted[i].Shape, inverseOrder(order), p.rep.DataType.Size))
	}
	return out, nil
}

func inverseOrder(order []int) []int {
	inv := make([]int, len(order))
	for i, v := range order {
		inv[v] = i
	}
	return inv
}

type partialEncoder struct {
	innerDecoder codec.PartialDecoder
	innerEncoder codec.PartialEncoder
	codec        Codec
	rep          codec.Representation
}

func (p *partialEncoder) PartialEncode(ctx context.Context, updates []codec.Update, opts codec.Options) error {
	order := p.codec.Order
	translated := make([]codec.Update, len(updates))
	for i, u := range updates {
		start := permute(u.Subset.Start, order)
		shape := permute(u.Subset.Shape, order)
		ps, err := subset.New(start, shape)
		if err != nil {
			return err
		}
		transposed := zbytes.NewFixed(transposeFixed(u.Bytes.Fixed, u.Subset.Shape, order, p.rep.DataType.Size))
		translated[i] = codec.Update{Subset: ps, Bytes: transposed}
	}
	return p.innerEncoder.PartialEncode(ctx, translated, opts)
}
