// Package codec implements the staged array<->bytes transformation chain
// of §4.3: array->array codecs, exactly one array->bytes codec, and
// bytes->bytes codecs, composed into a Pipeline that drives encode, decode,
// partial decode, partial encode, concurrency negotiation, and encoded-size
// bounds. Grounded on original_source/zarrs/src/array/codec/{options,
// bytes_partial_decoder_default_sync,bytes_to_bytes_partial_decoder_default}.rs.
package codec

import (
	"context"

	"github.com/zarr-go/zarrcore/store"
	"github.com/zarr-go/zarrcore/subset"
	"github.com/zarr-go/zarrcore/zarrtype"
	"github.com/zarr-go/zarrcore/zbytes"
)

// Representation is the chunk representation triple (shape, data type,
// fill value) a codec encodes or decodes against.
type Representation struct {
	Shape     []uint64
	DataType  zarrtype.DataType
	FillValue []byte
}

// NumElements returns the element count implied by Shape.
func (r Representation) NumElements() uint64 {
	n := uint64(1)
	for _, d := range r.Shape {
		n *= d
	}
	return n
}

// SizeKind classifies an encoded byte-size prediction.
type SizeKind int

const (
	// SizeFixed means every encode of a chunk at this representation
	// produces exactly Size bytes.
	SizeFixed SizeKind = iota
	// SizeBounded means every encode produces at most Size bytes.
	SizeBounded
	// SizeUnbounded means no useful upper bound is known.
	SizeUnbounded
)

// Size describes a codec's output byte-size prediction for a given input.
type Size struct {
	Kind SizeKind
	Size uint64 // meaningful for SizeFixed and SizeBounded
}

// RecommendedConcurrency is a codec's advertised internal parallel capacity.
type RecommendedConcurrency struct {
	Min int
	Max int
}

// Options carries per-call codec settings, mirroring
// zarrs/src/array/codec/options.rs: validate_checksums, store_empty_chunks,
// concurrent_target, experimental_partial_encoding.
type Options struct {
	ValidateChecksums           bool
	StoreEmptyChunks            bool
	ConcurrentTarget            int
	ExperimentalPartialEncoding bool
}

// DefaultOptions returns encode/decode options matching §6's defaults.
func DefaultOptions() Options {
	return Options{
		ValidateChecksums: true,
		ConcurrentTarget:  4,
	}
}

// Codec is the capability surface shared by all three codec shapes:
// stable identification and JSON-round-trippable configuration.
type Codec interface {
	Identifier() string
	Configuration() any
}

// ArrayToArrayCodec transforms decoded array bytes at one representation
// into array bytes at another (same data type, possibly different shape).
type ArrayToArrayCodec interface {
	Codec

	Encode(ctx context.Context, input zbytes.ArrayBytes, rep Representation, opts Options) (zbytes.ArrayBytes, error)
	Decode(ctx context.Context, input zbytes.ArrayBytes, rep Representation, opts Options) (zbytes.ArrayBytes, error)

	// EncodedRepresentation returns the representation produced by Encode.
	EncodedRepresentation(rep Representation) (Representation, error)

	RecommendedConcurrency(rep Representation) RecommendedConcurrency

	// PartialDecoder builds a partial decoder for this codec's decoded
	// output, wrapping a partial decoder for its encoded input (rep).
	PartialDecoder(inner PartialDecoder, rep Representation, opts Options) (PartialDecoder, error)

	// PartialEncoder builds a partial encoder for this codec's decoded
	// input, wrapping inner decode/encode access to its encoded output.
	PartialEncoder(innerDecoder PartialDecoder, innerEncoder PartialEncoder, rep Representation, opts Options) (PartialEncoder, error)
}

// ArrayToBytesCodec transforms decoded array bytes into raw bytes. A
// pipeline contains exactly one (invariant 3, §3).
type ArrayToBytesCodec interface {
	Codec

	Encode(ctx context.Context, input zbytes.ArrayBytes, rep Representation, opts Options) ([]byte, error)
	Decode(ctx context.Context, input []byte, rep Representation, opts Options) (zbytes.ArrayBytes, error)

	EncodedSize(rep Representation) Size

	RecommendedConcurrency(rep Representation) RecommendedConcurrency

	// PartialDecoder builds a partial decoder for this codec's decoded
	// output, wrapping byte-range access (inner) to its encoded input.
	PartialDecoder(inner BytesPartialDecoder, rep Representation, opts Options) (PartialDecoder, error)

	// PartialEncoder builds a partial encoder for this codec's decoded
	// input, wrapping byte-range access to its encoded output.
	PartialEncoder(inner BytesPartialDecoder, innerEnc BytesPartialEncoder, rep Representation, opts Options) (PartialEncoder, error)
}

// BytesToBytesCodec transforms raw bytes into other raw bytes (e.g.
// compression, checksums).
type BytesToBytesCodec interface {
	Codec

	Encode(ctx context.Context, input []byte, opts Options) ([]byte, error)
	Decode(ctx context.Context, input []byte, decodedSize Size, opts Options) ([]byte, error)

	EncodedSize(inputSize Size) Size

	RecommendedConcurrency() RecommendedConcurrency

	PartialDecoder(inner BytesPartialDecoder, decodedSize Size, opts Options) (BytesPartialDecoder, error)
	PartialEncoder(inner BytesPartialDecoder, innerEnc BytesPartialEncoder, decodedSize Size, opts Options) (BytesPartialEncoder, error)
}

// BytesPartialDecoder supports random-access reads of byte ranges from an
// encoded (possibly still-transformed) byte stream, terminating at the
// store. Every link in a bytes->bytes partial-decoder chain implements this.
type BytesPartialDecoder interface {
	// DecodeRanges returns the decoded bytes in each requested range. A
	// nil slice at index i means the underlying data is absent (fill value).
	DecodeRanges(ctx context.Context, ranges []subset.ByteRange) ([][]byte, error)
}

// BytesPartialEncoder supports random-access writes of byte ranges,
// terminating at the store's SetPartial/Set.
type BytesPartialEncoder interface {
	EncodeRanges(ctx context.Context, writes []store.OffsetBytes) error
	// Erase removes the underlying encoded value entirely (used when an
	// update reduces a chunk to all-fill-value and StoreEmptyChunks is off).
	Erase(ctx context.Context) error
}

// PartialDecoder supports random-access decoding of enumerated regions of a
// codec's decoded output, expressed as array subsets in that codec's own
// representation (R0 at the head of the chain).
type PartialDecoder interface {
	PartialDecode(ctx context.Context, regions []subset.ArraySubset, opts Options) ([]zbytes.ArrayBytes, error)
}

// Update is one (subset, bytes) pair for a partial-encode call.
type Update struct {
	Subset subset.ArraySubset
	Bytes  zbytes.ArrayBytes
}

// PartialEncoder supports random-access updates of enumerated regions of a
// codec's decoded input.
type PartialEncoder interface {
	PartialEncode(ctx context.Context, updates []Update, opts Options) error
}
