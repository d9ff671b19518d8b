// Package gzipcodec implements the "gzip" bytes->bytes codec via
// github.com/klauspost/compress/gzip, a drop-in faster replacement for the
// standard library's compress/gzip that the rest of this corpus favors for
// compression concerns.
package gzipcodec

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"github.com/klauspost/compress/gzip"
	"github.com/zarr-go/zarrcore/codec"
)

// Codec implements codec.BytesToBytesCodec.
type Codec struct {
	Level int
}

func New(level int) Codec { return Codec{Level: level} }

func (c Codec) Identifier() string { return "gzip" }

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
		level = gzip.DefaultCompression
	}
	var buf bytes.Buffer
	w, err := gzip.NewWriterLevel(&buf, level)
	if err != nil {
		return nil, fmt.Errorf("zarr: gzip encoder: %w", err)
	}
	if _, err := w.Write(input); err != nil {
		return nil, fmt.Errorf("zarr: gzip encode: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("zarr: gzip encode: %w", err)
	}
	return buf.Bytes(), nil
}

func (c Codec) Decode(ctx context.Context, input []byte, decodedSize codec.Size, opts codec.Options) ([]byte, error) {
	r, err := gzip.NewReader(bytes.NewReader(input))
	if err != nil {
		return nil, fmt.Errorf("zarr: gzip decoder: %w", err)
	}
	defer r.Close()
	out, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("zarr: gzip decode: %w", err)
	}
	return out, nil
}

func (c Codec) PartialDecoder(inner codec.BytesPartialDecoder, decodedSize codec.Size, opts codec.Options) (codec.BytesPartialDecoder, error) {
	return &codec.DefaultBytesToBytesPartialDecoder{Inner: inner, Codec: c, DecodedSize: decodedSize, Options: opts}, nil
}

func (c Codec) PartialEncoder(inner codec.BytesPartialDecoder, innerEnc codec.BytesPartialEncoder, decodedSize codec.Size, opts codec.Options) (codec.BytesPartialEncoder, error) {
	return &codec.DefaultBytesToBytesPartialEncoder{InnerDecoder: inner, InnerEncoder: innerEnc, Codec: c, DecodedSize: decodedSize, Options: opts}, nil
}
