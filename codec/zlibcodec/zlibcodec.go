// Package zlibcodec implements the "zlib" bytes->bytes codec (the Zarr V2
// "zlib" compressor alias per zarrconfig.Config.CodecAliasesV2) via
// github.com/klauspost/compress/zlib, mirroring the rest of this corpus's
// preference for klauspost/compress over the standard library.
package zlibcodec

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"github.com/klauspost/compress/zlib"
	"github.com/zarr-go/zarrcore/codec"
)

// Codec implements codec.BytesToBytesCodec.
type Codec struct {
	Level int
}

func New(level int) Codec { return Codec{Level: level} }

func (c Codec) Identifier() string { return "zlib" }

func (c Codec) Configuration() any { return map[string]any{"level": c.Level} }

func (c Codec) EncodedSize(codec.Size) codec.Size {
	return codec.Size{Kind: codec.SizeUnbounded}
}

func (c Codec) RecommendedConcurrency() codec.RecommendedConcurrency {
	return codec.RecommendedConcurrency{Min: 1, Max: 1}
}

func (c Codec) Encode(ctx context.Context, input []byte, opts codec.Options) ([]byte, error) {
	level := c.Level
	if level == 0 {
		level = zlib.DefaultCompression
	}
	var buf bytes.Buffer
	w, err := zlib.NewWriterLevel(&buf, level)
	if err != nil {
		return nil, fmt.Errorf("zarr: zlib encoder: %w", err)
	}
	if _, err := w.Write(input); err != nil {
		return nil, fmt.Errorf("zarr: zlib encode: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("zarr: zlib encode: %w", err)
	}
	return buf.Bytes(), nil
}

func (c Codec) Decode(ctx context.Context, input []byte, decodedSize codec.Size, opts codec.Options) ([]byte, error) {
	r, err := zlib.NewReader(bytes.NewReader(input))
	if err != nil {
		return nil, fmt.Errorf("zarr: zlib decoder: %w", err)
	}
	defer r.Close()
	out, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("zarr: zlib decode: %w", err)
	}
	return out, nil
}

func (c Codec) PartialDecoder(inner codec.BytesPartialDecoder, decodedSize codec.Size, opts codec.Options) (codec.BytesPartialDecoder, error) {
	return &codec.DefaultBytesToBytesPartialDecoder{Inner: inner, Codec: c, DecodedSize: decodedSize, Options: opts}, nil
}

func (c Codec) PartialEncoder(inner codec.BytesPartialDecoder, innerEnc codec.BytesPartialEncoder, decodedSize codec.Size, opts codec.Options) (codec.BytesPartialEncoder, error) {
	return &codec.DefaultBytesToBytesPartialEncoder{InnerDecoder: inner, InnerEncoder: innerEnc, Codec: c, DecodedSize: decodedSize, Options: opts}, nil
}
