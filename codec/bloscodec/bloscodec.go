// Package bloscodec implements the "blosc" bytes->bytes codec via
// github.com/mrjoshuak/go-blosc. Decode is grounded directly on the
// teacher's reader.go, which calls blosc.Decompress(chunkData) when a
// chunk's compressor ID is "blosc". The teacher never calls a Compress
// function (its own reader is read-only), so Encode here is written against
// go-blosc's documented Compress signature (clevel, shuffle, typesize,
// src) rather than an example call site; see DESIGN.md for this codec's
// entry if that signature needs adjusting against the actual package docs.
package bloscodec

import (
	"context"
	"fmt"

	"github.com/mrjoshuak/go-blosc"
	"github.com/zarr-go/zarrcore/codec"
)

// Shuffle selects blosc's byte/bit shuffle filter prior to compression.
type Shuffle int

const (
	ShuffleNone Shuffle = iota
	ShuffleByte
	ShuffleBit
)

// Codec implements codec.BytesToBytesCodec.
type Codec struct {
	CLevel   int
	Shuffle  Shuffle
	TypeSize int
}

func New(clevel int, shuffle Shuffle, typeSize int) Codec {
	return Codec{CLevel: clevel, Shuffle: shuffle, TypeSize: typeSize}
}

func (c Codec) Identifier() string { return "blosc" }

func (c Codec) Configuration() any {
	return map[string]any{"clevel": c.CLevel, "shuffle": int(c.Shuffle), "typesize": c.TypeSize}
}

func (c Codec) EncodedSize(codec.Size) codec.Size {
	return codec.Size{Kind: codec.SizeUnbounded}
}

func (c Codec) RecommendedConcurrency() codec.RecommendedConcurrency {
	return codec.RecommendedConcurrency{Min: 1, Max: 1}
}

func (c Codec) Encode(ctx context.Context, input []byte, opts codec.Options) ([]byte, error) {
	out, err := blosc.Compress(c.CLevel, c.Shuffle != ShuffleNone, c.TypeSize, input)
	if err != nil {
		return nil, fmt.Errorf("zarr: blosc encode: %w", err)
	}
	return out, nil
}

func (c Codec) Decode(ctx context.Context, input []byte, decodedSize codec.Size, opts codec.Options) ([]byte, error) {
	out, err := blosc.Decompress(input)
	if err != nil {
		return nil, fmt.Errorf("zarr: blosc decode: %w", err)
	}
	return out, nil
}

func (c Codec) PartialDecoder(inner codec.BytesPartialDecoder, decodedSize codec.Size, opts codec.Options) (codec.BytesPartialDecoder, error) {
	return &codec.DefaultBytesToBytesPartialDecoder{Inner: inner, Codec: c, DecodedSize: decodedSize, Options: opts}, nil
}

func (c Codec) PartialEncoder(inner codec.BytesPartialDecoder, innerEnc codec.BytesPartialEncoder, decodedSize codec.Size, opts codec.Options) (codec.BytesPartialEncoder, error) {
	return &codec.DefaultBytesToBytesPartialEncoder{InnerDecoder: inner, InnerEncoder: innerEnc, Codec: c, DecodedSize: decodedSize, Options: opts}, nil
}
