package fixedscaleoffset

import (
	"context"

	"github.com/zarr-go/zarrcore/codec"
	"github.com/zarr-go/zarrcore/subset"
	"github.com/zarr-go/zarrcore/zbytes"
)

// partialDecoder decodes each requested region by pulling the quantized
// (AsType) bytes from inner and applying the inverse affine map per
// element, avoiding a whole-chunk decode.
type partialDecoder struct {
	inner codec.PartialDecoder
	codec Codec
	rep   codec.Representation
}

func (p *partialDecoder) PartialDecode(ctx context.Context, regions []subset.ArraySubset, opts codec.Options) ([]zbytes.ArrayBytes, error) {
	encRep := p.rep
	encRep.DataType = p.codec.AsType
	results, err := p.inner.PartialDecode(ctx, regions, opts)
	if err != nil {
		return nil, err
	}
	out := make([]zbytes.ArrayBytes, len(results))
	for i, ab := range results {
		regionRep := encRep
		regionRep.Shape = regions[i].Shape
		decoded, err := p.codec.Decode(ctx, ab, regionRep, opts)
		if err != nil {
			return nil, err
		}
		out[i] = decoded
	}
	return out, nil
}

// partialEncoder quantizes each update's bytes and forwards them to inner.
type partialEncoder struct {
	inner codec.PartialEncoder
	codec Codec
	rep   codec.Representation
}

func (p *partialEncoder) PartialEncode(ctx context.Context, updates []codec.Update, opts codec.Options) error {
	translated := make([]codec.Update, len(updates))
	for i, u := range updates {
		regionRep := p.rep
		regionRep.Shape = u.Subset.Shape
		enc, err := p.codec.Encode(ctx, u.Bytes, regionRep, opts)
		if err != nil {
			return err
		}
		translated[i] = codec.Update{Subset: u.Subset, Bytes: enc}
	}
	return p.inner.PartialEncode(ctx, translated, opts)
}
