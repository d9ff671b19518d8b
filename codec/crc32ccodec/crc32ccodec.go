// Package crc32ccodec implements the "crc32c" bytes->bytes codec: it
// appends a 4-byte little-endian CRC-32C (Castagnoli) trailer on encode and
// validates/strips it on decode. No third-party library in this corpus
// exposes Castagnoli CRC-32; the standard library's hash/crc32 with
// crc32.MakeTable(crc32.Castagnoli) is the direct, allocation-free way to
// compute it, so this codec is one of the justified stdlib-only exceptions
// (see DESIGN.md).
package crc32ccodec

import (
	"context"
	"encoding/binary"
	"hash/crc32"
	"sync"

	"github.com/zarr-go/zarrcore/codec"
	"github.com/zarr-go/zarrcore/subset"
	"github.com/zarr-go/zarrcore/zarrerrors"
)

var castagnoliTable = crc32.MakeTable(crc32.Castagnoli)

// Codec implements codec.BytesToBytesCodec. Because its transform is a
// constant-size trailer rather than a full re-encode, it implements true
// partial decoding (see PartialDecoder); partial encoding uses the
// whole-value default, codec.DefaultBytesToBytesPartialEncoder.
type Codec struct{}

func New() Codec { return Codec{} }

func (c Codec) Identifier() string { return "crc32c" }

func (c Codec) Configuration() any { return map[string]any{} }

func (c Codec) EncodedSize(input codec.Size) codec.Size {
	if input.Kind == codec.SizeUnbounded {
		return codec.Size{Kind: codec.SizeUnbounded}
	}
	return codec.Size{Kind: input.Kind, Size: input.Size + 4}
}

func (c Codec) RecommendedConcurrency() codec.RecommendedConcurrency {
	return codec.RecommendedConcurrency{Min: 1, Max: 1}
}

func (c Codec) Encode(ctx context.Context, input []byte, opts codec.Options) ([]byte, error) {
	sum := crc32.Checksum(input, castagnoliTable)
	out := make([]byte, len(input)+4)
	copy(out, input)
	binary.LittleEndian.PutUint32(out[len(input):], sum)
	return out, nil
}

func (c Codec) Decode(ctx context.Context, input []byte, decodedSize codec.Size, opts codec.Options) ([]byte, error) {
	if len(input) < 4 {
		return nil, zarrerrors.ErrInvalidBytesLength
	}
	data := input[:len(input)-4]
	trailer := binary.LittleEndian.Uint32(input[len(input)-4:])
	if opts.ValidateChecksums {
		if got := crc32.Checksum(data, castagnoliTable); got != trailer {
			return nil, zarrerrors.ErrChecksumMismatch
		}
	}
	return data, nil
}

// PartialDecoder passes explicit byte-range requests straight through to
// inner when checksum validation is off (true partial decoding: the 4-byte
// trailer never needs to be re-derived to serve a bounded range read, since
// it sits past every decoded-data offset inner knows about). When
// opts.ValidateChecksums is set, every call instead routes through a single
// cached whole-value read that verifies the checksum once before any range
// is served, so a corrupted chunk surfaces ErrChecksumMismatch on a bounded
// partial read exactly as it would on a full Decode. A range with
// Length == 0 ("read to the end of the decoded value") always needs the
// whole-value path regardless of validation, since inner's own "to the end"
// includes this codec's trailer.
func (c Codec) PartialDecoder(inner codec.BytesPartialDecoder, decodedSize codec.Size, opts codec.Options) (codec.BytesPartialDecoder, error) {
	return &partialDecoder{inner: inner, validate: opts.ValidateChecksums}, nil
}

func (c Codec) PartialEncoder(inner codec.BytesPartialDecoder, innerEnc codec.BytesPartialEncoder, decodedSize codec.Size, opts codec.Options) (codec.BytesPartialEncoder, error) {
	return &codec.DefaultBytesToBytesPartialEncoder{InnerDecoder: inner, InnerEncoder: innerEnc, Codec: c, DecodedSize: decodedSize, Options: opts}, nil
}

type partialDecoder struct {
	inner    codec.BytesPartialDecoder
	validate bool

	mu       sync.Mutex
	fetched  bool
	data     []byte
	fetchErr error
}

// wholeData reads the trailer-stripped decoded value once, validating the
// checksum if required, and caches the result for subsequent calls on this
// decoder.
func (p *partialDecoder) wholeData(ctx context.Context) ([]byte, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.fetched {
		return p.data, p.fetchErr
	}
	p.fetched = true

	whole, err := p.inner.DecodeRanges(ctx, []subset.ByteRange{{Offset: 0, Length: 0}})
	if err != nil {
		p.fetchErr = err
		return nil, err
	}
	if len(whole) == 0 || whole[0] == nil {
		return nil, nil
	}
	if len(whole[0]) < 4 {
		p.fetchErr = zarrerrors.ErrInvalidBytesLength
		return nil, p.fetchErr
	}
	data := whole[0][:len(whole[0])-4]
	if p.validate {
		trailer := binary.LittleEndian.Uint32(whole[0][len(whole[0])-4:])
		if got := crc32.Checksum(data, castagnoliTable); got != trailer {
			p.fetchErr = zarrerrors.ErrChecksumMismatch
			return nil, p.fetchErr
		}
	}
	p.data = data
	return data, nil
}

func (p *partialDecoder) DecodeRanges(ctx context.Context, ranges []subset.ByteRange) ([][]byte, error) {
	needsWhole := p.validate
	if !needsWhole {
		for _, r := range ranges {
			if r.Length == 0 {
				needsWhole = true
				break
			}
		}
	}
	if !needsWhole {
		return p.inner.DecodeRanges(ctx, ranges)
	}

	data, err := p.wholeData(ctx)
	if err != nil {
		return nil, err
	}
	out := make([][]byte, len(ranges))
	if data == nil {
		return out, nil
	}
	for i, r := range ranges {
		end := r.Offset + r.Length
		if r.Length == 0 {
			end = uint64(len(data))
		}
		out[i] = data[r.Offset:end]
	}
	return out, nil
}
