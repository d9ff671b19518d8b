package codec

import (
	"context"
	"fmt"

	"github.com/zarr-go/zarrcore/store"
	"github.com/zarr-go/zarrcore/subset"
	"github.com/zarr-go/zarrcore/zarrerrors"
	"github.com/zarr-go/zarrcore/zbytes"
)

// Pipeline is an ordered composition of codecs terminating in exactly one
// array->bytes codec (invariant 3, §3): ArrayToArray (c1..ck, applied in
// order during encode), exactly one ArrayToBytes, and BytesToBytes
// (d1..dm, applied in order during encode).
type Pipeline struct {
	ArrayToArray []ArrayToArrayCodec
	ArrayToBytes ArrayToBytesCodec
	BytesToBytes []BytesToBytesCodec
}

// representationChain returns [R0, R1, ..., Rk]: R0 is the input
// representation, Ri is the representation after ArrayToArray[i-1].
func (p Pipeline) representationChain(rep Representation) ([]Representation, error) {
	chain := make([]Representation, len(p.ArrayToArray)+1)
	chain[0] = rep
	cur := rep
	for i, c := range p.ArrayToArray {
		next, err := c.EncodedRepresentation(cur)
		if err != nil {
			return nil, fmt.Errorf("zarr: codec %s: %w", c.Identifier(), err)
		}
		chain[i+1] = next
		cur = next
	}
	return chain, nil
}

// sizeChain returns [S0, S1, ..., Sm]: S0 is the array->bytes codec's
// output size at the final array->array representation, Si is the size
// after BytesToBytes[i-1].
func (p Pipeline) sizeChain(finalRep Representation) []Size {
	sizes := make([]Size, len(p.BytesToBytes)+1)
	sizes[0] = p.ArrayToBytes.EncodedSize(finalRep)
	cur := sizes[0]
	for i, d := range p.BytesToBytes {
		cur = d.EncodedSize(cur)
		sizes[i+1] = cur
	}
	return sizes
}

// Encode runs array->array codecs in order, the array->bytes codec, then
// bytes->bytes codecs in order (§4.3 pipeline semantics).
func (p Pipeline) Encode(ctx context.Context, input zbytes.ArrayBytes, rep Representation, opts Options) ([]byte, error) {
	cur := input
	curRep := rep
	for _, c := range p.ArrayToArray {
		var err error
		cur, err = c.Encode(ctx, cur, curRep, opts)
		if err != nil {
			return nil, fmt.Errorf("zarr: codec %s encode: %w", c.Identifier(), err)
		}
		curRep, err = c.EncodedRepresentation(curRep)
		if err != nil {
			return nil, err
		}
	}

	raw, err := p.ArrayToBytes.Encode(ctx, cur, curRep, opts)
	if err != nil {
		return nil, fmt.Errorf("zarr: codec %s encode: %w", p.ArrayToBytes.Identifier(), err)
	}

	for _, d := range p.BytesToBytes {
		raw, err = d.Encode(ctx, raw, opts)
		if err != nil {
			return nil, fmt.Errorf("zarr: codec %s encode: %w", d.Identifier(), err)
		}
	}
	return raw, nil
}

// Decode reverses Encode (§4.3 pipeline semantics), validating the final
// result against rep.
func (p Pipeline) Decode(ctx context.Context, input []byte, rep Representation, opts Options) (zbytes.ArrayBytes, error) {
	repChain, err := p.representationChain(rep)
	if err != nil {
		return zbytes.ArrayBytes{}, err
	}
	finalRep := repChain[len(repChain)-1]
	sizes := p.sizeChain(finalRep)

	raw := input
	for i := len(p.BytesToBytes) - 1; i >= 0; i-- {
		raw, err = p.BytesToBytes[i].Decode(ctx, raw, sizes[i], opts)
		if err != nil {
			return zbytes.ArrayBytes{}, fmt.Errorf("zarr: codec %s decode: %w", p.BytesToBytes[i].Identifier(), err)
		}
	}

	cur, err := p.ArrayToBytes.Decode(ctx, raw, finalRep, opts)
	if err != nil {
		return zbytes.ArrayBytes{}, fmt.Errorf("zarr: codec %s decode: %w", p.ArrayToBytes.Identifier(), err)
	}

	for i := len(p.ArrayToArray) - 1; i >= 0; i-- {
		cur, err = p.ArrayToArray[i].Decode(ctx, cur, repChain[i], opts)
		if err != nil {
			return zbytes.ArrayBytes{}, fmt.Errorf("zarr: codec %s decode: %w", p.ArrayToArray[i].Identifier(), err)
		}
	}

	if err := cur.Validate(rep.NumElements(), rep.DataType.Size); err != nil {
		return zbytes.ArrayBytes{}, fmt.Errorf("%w: %v", zarrerrors.ErrUnexpectedChunkDecodedSize, err)
	}
	return cur, nil
}

// EncodedSize returns the pipeline's encoded-size bound for rep, by
// composing each stage's encoded_representation/encoded_size (§4.3).
func (p Pipeline) EncodedSize(rep Representation) (Size, error) {
	repChain, err := p.representationChain(rep)
	if err != nil {
		return Size{}, err
	}
	finalRep := repChain[len(repChain)-1]
	sizes := p.sizeChain(finalRep)
	return sizes[len(sizes)-1], nil
}

// RecommendedConcurrency is the minimum across all stages for Max, and the
// maximum across all stages for Min (§4.3).
func (p Pipeline) RecommendedConcurrency(rep Representation) RecommendedConcurrency {
	repChain, _ := p.representationChain(rep)
	result := RecommendedConcurrency{Min: 1, Max: 1 << 30}
	accumulate := func(rc RecommendedConcurrency) {
		if rc.Min > result.Min {
			result.Min = rc.Min
		}
		if rc.Max < result.Max {
			result.Max = rc.Max
		}
	}
	for i, c := range p.ArrayToArray {
		accumulate(c.RecommendedConcurrency(repChain[i]))
	}
	finalRep := repChain[len(repChain)-1]
	accumulate(p.ArrayToBytes.RecommendedConcurrency(finalRep))
	for _, d := range p.BytesToBytes {
		accumulate(d.RecommendedConcurrency())
	}
	if result.Max < result.Min {
		result.Max = result.Min
	}
	return result
}

// PartialDecoder builds the chain of partial decoders from the store
// outward (§4.3): storage -> bytes->bytes (reverse order) -> array->bytes
// -> array->array (reverse order). The resulting handle decodes enumerated
// regions expressed as subsets of rep (R0).
func (p Pipeline) PartialDecoder(ctx context.Context, st store.Store, key string, rep Representation, opts Options) (PartialDecoder, error) {
	repChain, err := p.representationChain(rep)
	if err != nil {
		return nil, err
	}
	finalRep := repChain[len(repChain)-1]
	sizes := p.sizeChain(finalRep)

	var bpd BytesPartialDecoder = &StorePartialDecoder{Store: st, Key: key}
	for i := len(p.BytesToBytes) - 1; i >= 0; i-- {
		bpd, err = p.BytesToBytes[i].PartialDecoder(bpd, sizes[i], opts)
		if err != nil {
			return nil, err
		}
	}

	pd, err := p.ArrayToBytes.PartialDecoder(bpd, finalRep, opts)
	if err != nil {
		return nil, err
	}

	for i := len(p.ArrayToArray) - 1; i >= 0; i-- {
		pd, err = p.ArrayToArray[i].PartialDecoder(pd, repChain[i], opts)
		if err != nil {
			return nil, err
		}
	}
	return pd, nil
}

// PartialEncoder builds the mirror-image chain, terminating at a storage
// partial encoder that writes byte ranges or erases the key.
func (p Pipeline) PartialEncoder(ctx context.Context, st store.Store, key string, rep Representation, opts Options) (PartialEncoder, error) {
	repChain, err := p.representationChain(rep)
	if err != nil {
		return nil, err
	}
	finalRep := repChain[len(repChain)-1]
	sizes := p.sizeChain(finalRep)

	var bpd BytesPartialDecoder = &StorePartialDecoder{Store: st, Key: key}
	var bpe BytesPartialEncoder = &StorePartialEncoder{Store: st, Key: key}
	for i := len(p.BytesToBytes) - 1; i >= 0; i-- {
		bpe, err = p.BytesToBytes[i].PartialEncoder(bpd, bpe, sizes[i], opts)
		if err != nil {
			return nil, err
		}
		bpd, err = p.BytesToBytes[i].PartialDecoder(bpd, sizes[i], opts)
		if err != nil {
			return nil, err
		}
	}

	pe, err := p.ArrayToBytes.PartialEncoder(bpd, bpe, finalRep, opts)
	if err != nil {
		return nil, err
	}
	pd, err := p.ArrayToBytes.PartialDecoder(bpd, finalRep, opts)
	if err != nil {
		return nil, err
	}

	for i := len(p.ArrayToArray) - 1; i >= 0; i-- {
		pe, err = p.ArrayToArray[i].PartialEncoder(pd, pe, repChain[i], opts)
		if err != nil {
			return nil, err
		}
		if i > 0 {
			pd, err = p.ArrayToArray[i].PartialDecoder(pd, repChain[i], opts)
			if err != nil {
				return nil, err
			}
		}
	}
	return pe, nil
}

// DecodeRegions is a convenience that builds a partial decoder and decodes
// regions in one call.
func (p Pipeline) DecodeRegions(ctx context.Context, st store.Store, key string, rep Representation, regions []subset.ArraySubset, opts Options) ([]zbytes.ArrayBytes, error) {
	pd, err := p.PartialDecoder(ctx, st, key, rep, opts)
	if err != nil {
		return nil, err
	}
	return pd.PartialDecode(ctx, regions, opts)
}
