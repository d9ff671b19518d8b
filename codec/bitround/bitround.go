// Package bitround implements the "bitround" array->array codec: a lossy,
// encode-only rounding of a floating-point mantissa to a configured number
// of bits, improving downstream compressibility. Grounded on
// original_source/zarrs/src/array/codec/array_to_array/bitround/bitround_codec.rs
// (round_bytes itself was not present in the extracted source; the
// round-to-nearest bit-mask algorithm below is the standard one used by
// numcodecs.BitRound and xarray-beam, which the zarrs codec is compatible
// with per its configuration schema).
package bitround

import (
	"context"
	"encoding/binary"

	"github.com/zarr-go/zarrcore/codec"
	"github.com/zarr-go/zarrcore/zarrtype"
	"github.com/zarr-go/zarrcore/zbytes"
)

// Codec implements codec.ArrayToArrayCodec. Decode is the identity: bitround
// is a one-way lossy transform, so the decoded and encoded representations
// are identical.
type Codec struct {
	Keepbits uint32
}

func New(keepbits uint32) Codec { return Codec{Keepbits: keepbits} }

func (c Codec) Identifier() string { return "bitround" }

func (c Codec) Configuration() any { return map[string]any{"keepbits": c.Keepbits} }

func (c Codec) EncodedRepresentation(rep codec.Representation) (codec.Representation, error) {
	return rep, nil
}

func (c Codec) RecommendedConcurrency(codec.Representation) codec.RecommendedConcurrency {
	return codec.RecommendedConcurrency{Min: 1, Max: 1}
}

func roundFloat32(bits uint32, keepbits uint32) uint32 {
	const mantissaBits = 23
	if keepbits >= mantissaBits {
		return bits
	}
	maskBits := mantissaBits - keepbits
	mask := ^uint32(0) << maskBits
	halfQuantum := uint32(1) << (maskBits - 1)
	return (bits + halfQuantum) & mask
}

func roundFloat64(bits uint64, keepbits uint32) uint64 {
	const mantissaBits = 52
	if keepbits >= mantissaBits {
		return bits
	}
	maskBits := uint64(mantissaBits - keepbits)
	mask := ^uint64(0) << maskBits
	halfQuantum := uint64(1) << (maskBits - 1)
	return (bits + halfQuantum) & mask
}

func (c Codec) roundInPlace(data []byte, dt zarrtype.DataType) {
	switch {
	case dt.Name == "float32":
		for off := 0; off+4 <= len(data); off += 4 {
			bits := binary.LittleEndian.Uint32(data[off : off+4])
			binary.LittleEndian.PutUint32(data[off:off+4], roundFloat32(bits, c.Keepbits))
		}
	case dt.Name == "float64":
		for off := 0; off+8 <= len(data); off += 8 {
			bits := binary.LittleEndian.Uint64(data[off : off+8])
			binary.LittleEndian.PutUint64(data[off:off+8], roundFloat64(bits, c.Keepbits))
		}
	default:
		// Integer and other fixed-size types pass through unrounded: bit
		// rounding only has meaning for a floating-point mantissa.
	}
}

func (c Codec) Encode(ctx context.Context, input zbytes.ArrayBytes, rep codec.Representation, opts codec.Options) (zbytes.ArrayBytes, error) {
	if err := input.Validate(rep.NumElements(), rep.DataType.Size); err != nil {
		return zbytes.ArrayBytes{}, err
	}
	out := append([]byte(nil), input.Fixed...)
	c.roundInPlace(out, rep.DataType)
	return zbytes.NewFixed(out), nil
}

// Decode is the identity: bitround applies no reversible transform.
func (c Codec) Decode(ctx context.Context, input zbytes.ArrayBytes, rep codec.Representation, opts codec.Options) (zbytes.ArrayBytes, error) {
	return input, nil
}

func (c Codec) PartialDecoder(inner codec.PartialDecoder, rep codec.Representation, opts codec.Options) (codec.PartialDecoder, error) {
	return inner, nil
}

func (c Codec) PartialEncoder(innerDecoder codec.PartialDecoder, innerEncoder codec.PartialEncoder, rep codec.Representation, opts codec.Options) (codec.PartialEncoder, error) {
	return &partialEncoder{codec: c, rep: rep, inner: innerEncoder}, nil
}

type partialEncoder struct {
	codec Codec
	rep   codec.Representation
	inner codec.PartialEncoder
}

func (p *partialEncoder) PartialEncode(ctx context.Context, updates []codec.Update, opts codec.Options) error {
	rounded := make([]codec.Update, len(updates))
	for i, u := range updates {
		enc, err := p.codec.Encode(ctx, u.Bytes, p.rep, opts)
		if err != nil {
			return err
		}
		rounded[i] = codec.Update{Subset: u.Subset, Bytes: enc}
	}
	return p.inner.PartialEncode(ctx, rounded, opts)
}
