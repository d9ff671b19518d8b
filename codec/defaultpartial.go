package codec

import (
	"context"
	"fmt"

	"github.com/zarr-go/zarrcore/store"
	"github.com/zarr-go/zarrcore/subset"
	"github.com/zarr-go/zarrcore/zbytes"
)

// DefaultArrayToBytesPartialDecoder is the fallback partial decoder for an
// ArrayToBytesCodec that exposes no cheaper random-access strategy: it reads
// the whole encoded value via inner, decodes it in full, then extracts each
// requested region. Grounded on
// original_source/zarrs/src/array/codec/bytes_partial_decoder_default_sync.rs.
type DefaultArrayToBytesPartialDecoder struct {
	Inner   BytesPartialDecoder
	Codec   ArrayToBytesCodec
	Rep     Representation
	Options Options
}

func (d *DefaultArrayToBytesPartialDecoder) readWhole(ctx context.Context) ([]byte, error) {
	size := d.Codec.EncodedSize(d.Rep)
	if size.Kind == SizeUnbounded {
		return nil, fmt.Errorf("zarr: codec %s has no bounded encoded size, cannot use default whole-chunk partial decoder", d.Codec.Identifier())
	}
	parts, err := d.Inner.DecodeRanges(ctx, []subset.ByteRange{{Offset: 0, Length: size.Size}})
	if err != nil {
		return nil, err
	}
	if len(parts) == 0 {
		return nil, nil
	}
	return parts[0], nil
}

func (d *DefaultArrayToBytesPartialDecoder) PartialDecode(ctx context.Context, regions []subset.ArraySubset, opts Options) ([]zbytes.ArrayBytes, error) {
	encoded, err := d.readWhole(ctx)
	if err != nil {
		return nil, err
	}

	elemSize := d.Rep.DataType.Size
	if encoded == nil {
		out := make([]zbytes.ArrayBytes, len(regions))
		for i, r := range regions {
			if d.Rep.DataType.Variable {
				out[i] = zbytes.FillValueVariable(r.NumElements(), d.Rep.FillValue)
			} else {
				out[i] = zbytes.FillValue(r.NumElements(), elemSize, d.Rep.FillValue)
			}
		}
		return out, nil
	}

	full, err := d.Codec.Decode(ctx, encoded, d.Rep, opts)
	if err != nil {
		return nil, err
	}

	out := make([]zbytes.ArrayBytes, len(regions))
	for i, r := range regions {
		ab, err := full.Extract(r, d.Rep.Shape, elemSize)
		if err != nil {
			return nil, err
		}
		out[i] = ab
	}
	return out, nil
}

// DefaultArrayToBytesPartialEncoder is the fallback partial encoder for an
// ArrayToBytesCodec: it decodes the whole value (or starts from fill value),
// applies each update in memory, re-encodes, and writes back the whole
// value. A codec whose EncodedSize reports SizeUnbounded is rejected with an
// error. Grounded on
// original_source/zarrs/src/array/codec/bytes_partial_encoder_default.rs.
type DefaultArrayToBytesPartialEncoder struct {
	InnerDecoder BytesPartialDecoder
	InnerEncoder BytesPartialEncoder
	Codec        ArrayToBytesCodec
	Rep          Representation
	Options      Options
}

func (d *DefaultArrayToBytesPartialEncoder) PartialEncode(ctx context.Context, updates []Update, opts Options) error {
	size := d.Codec.EncodedSize(d.Rep)
	if size.Kind == SizeUnbounded {
		return fmt.Errorf("zarr: codec %s has an unbounded encoded size, which the default partial encoder does not support", d.Codec.Identifier())
	}
	var encoded []byte
	if size.Kind != SizeUnbounded {
		parts, err := d.InnerDecoder.DecodeRanges(ctx, []subset.ByteRange{{Offset: 0, Length: size.Size}})
		if err != nil {
			return err
		}
		if len(parts) > 0 {
			encoded = parts[0]
		}
	}

	elemSize := d.Rep.DataType.Size
	var full zbytes.ArrayBytes
	var err error
	if encoded == nil {
		if d.Rep.DataType.Variable {
			full = zbytes.FillValueVariable(d.Rep.NumElements(), d.Rep.FillValue)
		} else {
			full = zbytes.FillValue(d.Rep.NumElements(), elemSize, d.Rep.FillValue)
		}
	} else {
		full, err = d.Codec.Decode(ctx, encoded, d.Rep, opts)
		if err != nil {
			return err
		}
	}

	for _, u := range updates {
		full, err = full.Update(u.Subset, d.Rep.Shape, elemSize, u.Bytes)
		if err != nil {
			return err
		}
	}

	reencoded, err := d.Codec.Encode(ctx, full, d.Rep, opts)
	if err != nil {
		return err
	}
	return d.InnerEncoder.EncodeRanges(ctx, []store.OffsetBytes{{Offset: 0, Bytes: reencoded}})
}

// DefaultBytesToBytesPartialDecoder is the fallback partial decoder shared
// by every bytes->bytes codec with no cheaper random-access strategy
// (compression and checksum codecs): it reads and decodes the whole
// upstream value, then slices out each requested range. Grounded on
// original_source/zarrs/src/array/codec/bytes_to_bytes_partial_decoder_default.rs.
type DefaultBytesToBytesPartialDecoder struct {
	Inner       BytesPartialDecoder
	Codec       BytesToBytesCodec
	DecodedSize Size
	Options     Options
}

func (d *DefaultBytesToBytesPartialDecoder) DecodeRanges(ctx context.Context, ranges []subset.ByteRange) ([][]byte, error) {
	parts, err := d.Inner.DecodeRanges(ctx, []subset.ByteRange{{Offset: 0, Length: 0}})
	if err != nil {
		return nil, err
	}
	if len(parts) == 0 || parts[0] == nil {
		return make([][]byte, len(ranges)), nil
	}
	full, err := d.Codec.Decode(ctx, parts[0], d.DecodedSize, d.Options)
	if err != nil {
		return nil, err
	}
	out := make([][]byte, len(ranges))
	for i, r := range ranges {
		length := r.Length
		if length == 0 {
			length = uint64(len(full)) - r.Offset
		}
		out[i] = full[r.Offset : r.Offset+length]
	}
	return out, nil
}

// DefaultBytesToBytesPartialEncoder is the fallback partial encoder shared
// by every bytes->bytes codec: decode the whole upstream value (or start
// empty), apply byte-range writes, re-encode, and store the whole value.
// Grounded on
// original_source/zarrs/src/array/codec/bytes_to_bytes_partial_encoder_default.rs.
type DefaultBytesToBytesPartialEncoder struct {
	InnerDecoder BytesPartialDecoder
	InnerEncoder BytesPartialEncoder
	Codec        BytesToBytesCodec
	DecodedSize  Size
	Options      Options
}

func (d *DefaultBytesToBytesPartialEncoder) EncodeRanges(ctx context.Context, writes []store.OffsetBytes) error {
	parts, err := d.InnerDecoder.DecodeRanges(ctx, []subset.ByteRange{{Offset: 0, Length: 0}})
	if err != nil {
		return err
	}
	var full []byte
	if len(parts) > 0 && parts[0] != nil {
		full, err = d.Codec.Decode(ctx, parts[0], d.DecodedSize, d.Options)
		if err != nil {
			return err
		}
	}

	maxEnd := uint64(len(full))
	for _, w := range writes {
		if end := w.Offset + uint64(len(w.Bytes)); end > maxEnd {
			maxEnd = end
		}
	}
	if uint64(len(full)) < maxEnd {
		grown := make([]byte, maxEnd)
		copy(grown, full)
		full = grown
	}
	for _, w := range writes {
		copy(full[w.Offset:], w.Bytes)
	}

	reencoded, err := d.Codec.Encode(ctx, full, d.Options)
	if err != nil {
		return err
	}
	return d.InnerEncoder.EncodeRanges(ctx, []store.OffsetBytes{{Offset: 0, Bytes: reencoded}})
}

func (d *DefaultBytesToBytesPartialEncoder) Erase(ctx context.Context) error {
	return d.InnerEncoder.Erase(ctx)
}
