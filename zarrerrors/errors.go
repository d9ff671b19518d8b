// Package zarrerrors collects the sentinel error kinds shared by the chunk
// engine, codec pipeline and sharding codec. Callers use errors.Is against
// these values; wrapped context (offending subset, expected/actual sizes,
// codec identifier) is added with fmt.Errorf("%w: ...") at the call site.
package zarrerrors

import "errors"

// Shape/region errors (§4.1, §7).
var (
	ErrIncompatibleDimensionality       = errors.New("zarr: incompatible dimensionality")
	ErrIncompatibleArraySubsetAndShape  = errors.New("zarr: array subset out of bounds for shape")
	ErrIncompatibleArraySubsetAndRegion = errors.New("zarr: array subset incompatible with chunk region")
	ErrInvalidChunkCoordinate           = errors.New("zarr: chunk coordinate out of bounds")
)

// Buffer errors (§4.2, §7).
var (
	ErrExpectedFixedLengthBytes       = errors.New("zarr: expected fixed-length array bytes")
	ErrExpectedVariableLengthBytes    = errors.New("zarr: expected variable-length array bytes")
	ErrInvalidVariableSizedArrayOffsets = errors.New("zarr: invalid variable-sized array offsets")
	ErrInvalidBytesLength             = errors.New("zarr: invalid bytes length")
)

// Codec errors (§4.3, §7).
var (
	ErrUnsupportedDataType       = errors.New("zarr: unsupported data type for codec")
	ErrUnexpectedChunkDecodedSize = errors.New("zarr: unexpected chunk decoded size")
	ErrInvalidArraySubset        = errors.New("zarr: invalid array subset for codec operation")
	ErrInvalidByteRange          = errors.New("zarr: invalid byte range")
	ErrChecksumMismatch          = errors.New("zarr: checksum mismatch")
)

// Sharding errors (§4.4, §7).
var (
	ErrInvalidShardIndex = errors.New("zarr: invalid shard index")
)

// Configuration errors (§7).
var (
	ErrInvalidMetadata            = errors.New("zarr: invalid metadata")
	ErrUnsupportedFormatVersion   = errors.New("zarr: unsupported zarr format version")
	ErrInvalidNodeType            = errors.New("zarr: invalid node type")
	ErrIncompatibleFillValue      = errors.New("zarr: fill value incompatible with data type")
	ErrInvalidChunkGridDimensionality = errors.New("zarr: chunk grid dimensionality mismatch")
	ErrInvalidDimensionNames      = errors.New("zarr: dimension names length mismatch")
	ErrPluginNotFound             = errors.New("zarr: plugin not found")
)

// Store errors (§7). Chunk-not-found is recovered internally as fill value
// and never surfaced; metadata-not-found is surfaced as ErrMissingMetadata.
var (
	ErrMissingMetadata = errors.New("zarr: missing metadata")
	ErrKeyNotFound     = errors.New("zarr: key not found")
)
