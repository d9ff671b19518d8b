// Package bytescodec implements the "bytes" array->bytes codec: it lays out
// a fixed-size data type's decoded elements as raw bytes, reversing
// endianness when the configured endian differs from native. Grounded on
// original_source/zarrs/src/array/codec/array_to_bytes/bytes/bytes_codec.rs.
package bytescodec

import (
	"context"
	"encoding/binary"
	"fmt"

	"github.com/zarr-go/zarrcore/codec"
	"github.com/zarr-go/zarrcore/zarrerrors"
	"github.com/zarr-go/zarrcore/zbytes"
)

// Endian is the byte order this codec encodes multi-byte elements in.
type Endian int

const (
	// EndianNone is valid only for single-byte data types.
	EndianNone Endian = iota
	EndianLittle
	EndianBig
)

func nativeEndian() Endian {
	var x uint16 = 1
	b := []byte{0, 0}
	binary.NativeEndian.PutUint16(b, x)
	if b[0] == 1 {
		return EndianLittle
	}
	return EndianBig
}

// Codec implements codec.ArrayToBytesCodec.
type Codec struct {
	Endian Endian
}

// New constructs a bytes codec. endian is EndianNone only for 1-byte types.
func New(endian Endian) Codec { return Codec{Endian: endian} }

func (c Codec) Identifier() string { return "bytes" }

func (c Codec) Configuration() any {
	cfg := map[string]any{}
	switch c.Endian {
	case EndianLittle:
		cfg["endian"] = "little"
	case EndianBig:
		cfg["endian"] = "big"
	}
	return cfg
}

func (c Codec) RecommendedConcurrency(codec.Representation) codec.RecommendedConcurrency {
	return codec.RecommendedConcurrency{Min: 1, Max: 1}
}

func (c Codec) EncodedSize(rep codec.Representation) codec.Size {
	if rep.DataType.Variable {
		return codec.Size{Kind: codec.SizeUnbounded}
	}
	return codec.Size{Kind: codec.SizeFixed, Size: rep.NumElements() * rep.DataType.Size}
}

func (c Codec) validate(rep codec.Representation, length int) error {
	if rep.DataType.Variable {
		return fmt.Errorf("%w: %s codec does not support variable-length data type %s", zarrerrors.ErrUnsupportedDataType, c.Identifier(), rep.DataType.Name)
	}
	want := int(rep.NumElements() * rep.DataType.Size)
	if length != want {
		return fmt.Errorf("%w: expected %d bytes, got %d", zarrerrors.ErrInvalidBytesLength, want, length)
	}
	if rep.DataType.Size > 1 && c.Endian == EndianNone {
		return fmt.Errorf("%w: element size %d requires an explicit endianness", zarrerrors.ErrUnsupportedDataType, rep.DataType.Size)
	}
	return nil
}

func (c Codec) transform(value []byte, elemSize uint64) []byte {
	if elemSize <= 1 || c.Endian == EndianNone {
		return value
	}
	if c.Endian == nativeEndian() {
		return value
	}
	out := append([]byte(nil), value...)
	reverseElements(out, elemSize)
	return out
}

func reverseElements(b []byte, elemSize uint64) {
	n := uint64(len(b))
	for off := uint64(0); off < n; off += elemSize {
		lo, hi := off, off+elemSize-1
		for lo < hi {
			b[lo], b[hi] = b[hi], b[lo]
			lo++
			hi--
		}
	}
}

func (c Codec) Encode(ctx context.Context, input zbytes.ArrayBytes, rep codec.Representation, opts codec.Options) ([]byte, error) {
	if err := c.validate(rep, len(input.Fixed)); err != nil {
		return nil, err
	}
	return c.transform(input.Fixed, rep.DataType.Size), nil
}

func (c Codec) Decode(ctx context.Context, input []byte, rep codec.Representation, opts codec.Options) (zbytes.ArrayBytes, error) {
	if err := c.validate(rep, len(input)); err != nil {
		return zbytes.ArrayBytes{}, err
	}
	return zbytes.NewFixed(c.transform(input, rep.DataType.Size)), nil
}

func (c Codec) PartialDecoder(inner codec.BytesPartialDecoder, rep codec.Representation, opts codec.Options) (codec.PartialDecoder, error) {
	return &partialDecoder{inner: inner, codec: c, rep: rep}, nil
}

func (c Codec) PartialEncoder(inner codec.BytesPartialDecoder, innerEnc codec.BytesPartialEncoder, rep codec.Representation, opts codec.Options) (codec.PartialEncoder, error) {
	return &codec.DefaultArrayToBytesPartialEncoder{
		InnerDecoder: inner,
		InnerEncoder: innerEnc,
		Codec:        c,
		Rep:          rep,
		Options:      opts,
	}, nil
}
