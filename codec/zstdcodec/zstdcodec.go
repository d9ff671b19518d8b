// Package zstdcodec implements the "zstd" bytes->bytes codec via
// github.com/klauspost/compress/zstd, the same library and
// NewReader/DecodeAll pattern the teacher's Dataset.NextBatch uses for
// decompressing Zarr V2 chunks.
package zstdcodec

import (
	"context"
	"fmt"

	"github.com/klauspost/compress/zstd"
	"github.com/zarr-go/zarrcore/codec"
)

// Codec implements codec.BytesToBytesCodec.
type Codec struct {
	// Level is the compression level (klauspost/compress/zstd.EncoderLevel).
	Level int
	// Checksum enables zstd's own frame checksum.
	Checksum bool
}

func New(level int, checksum bool) Codec { return Codec{Level: level, Checksum: checksum} }

func (c Codec) Identifier() string { return "zstd" }

func (c Codec) Configuration() any {
	return map[string]any{"level": c.Level, "checksum": c.Checksum}
}

func (c Codec) EncodedSize(codec.Size) codec.Size {
	return codec.Size{Kind: codec.SizeUnbounded}
}

func (c Codec) RecommendedConcurrency() codec.RecommendedConcurrency {
	return codec.RecommendedConcurrency{Min: 1, Max: 1}
}

func (c Codec) Encode(ctx context.Context, input []byte, opts codec.Options) ([]byte, error) {
	encOpts := []zstd.EOption{zstd.WithEncoderLevel(zstd.EncoderLevelFromZstd(c.Level))}
	if c.Checksum {
		encOpts = append(encOpts, zstd.WithEncoderCRC(true))
	}
	enc, err := zstd.NewWriter(nil, encOpts...)
	if err != nil {
		return nil, fmt.Errorf("zarr: zstd encoder: %w", err)
	}
	defer enc.Close()
	return enc.EncodeAll(input, nil), nil
}

func (c Codec) Decode(ctx context.Context, input []byte, decodedSize codec.Size, opts codec.Options) ([]byte, error) {
	dec, err := zstd.NewReader(nil)
	if err != nil {
		return nil, fmt.Errorf("zarr: zstd decoder: %w", err)
	}
	defer dec.Close()
	out, err := dec.DecodeAll(input, nil)
	if err != nil {
		return nil, fmt.Errorf("zarr: zstd decode: %w", err)
	}
	return out, nil
}

func (c Codec) PartialDecoder(inner codec.BytesPartialDecoder, decodedSize codec.Size, opts codec.Options) (codec.BytesPartialDecoder, error) {
	return &codec.DefaultBytesToBytesPartialDecoder{Inner: inner, Codec: c, DecodedSize: decodedSize, Options: opts}, nil
}

func (c Codec) PartialEncoder(inner codec.BytesPartialDecoder, innerEnc codec.BytesPartialEncoder, decodedSize codec.Size, opts codec.Options) (codec.BytesPartialEncoder, error) {
	return &codec.DefaultBytesToBytesPartialEncoder{InnerDecoder: inner, InnerEncoder: innerEnc, Codec: c, DecodedSize: decodedSize, Options: opts}, nil
}
