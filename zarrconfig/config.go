// Package zarrconfig holds the process-wide configuration surface of §6:
// defaults for codec options, metadata version handling, and the codec /
// data-type alias maps used when translating Zarr V2 metadata. Grounded on
// original_source/src/config.rs, generalised from a thread-local singleton
// into an explicit, passable Config value (idiomatic for a Go library:
// no hidden global mutable state required to use the package).
package zarrconfig

import "runtime"

// MetadataConvertVersion controls the Zarr version of metadata written by
// Array.StoreMetadata.
type MetadataConvertVersion int

const (
	MetadataConvertDefault MetadataConvertVersion = iota // keep existing version
	MetadataConvertV3
)

// MetadataEraseVersion controls which metadata versions Array.EraseMetadata
// removes.
type MetadataEraseVersion int

const (
	MetadataEraseDefault MetadataEraseVersion = iota // erase the version the array was created with
	MetadataEraseAll
	MetadataEraseV3
	MetadataEraseV2
)

// Config is the process-wide configuration surface (§6).
type Config struct {
	// ValidateChecksums enables checksum validation in checksum codecs
	// (e.g. crc32c) on decode. Default true.
	ValidateChecksums bool

	// StoreEmptyChunks, if false, erases (or skips storing) chunks whose
	// contents equal the fill value rather than writing them. Default false.
	StoreEmptyChunks bool

	// CodecConcurrentTarget is the default number of concurrent operations
	// to target for codec encode/decode. Values below 1 are treated as 1. Default
	// is the host's available parallelism.
	CodecConcurrentTarget int

	// ChunkConcurrentMinimum is the preferred minimum chunk concurrency for
	// multi-chunk array operations. Default 4.
	ChunkConcurrentMinimum int

	// ExperimentalCodecStoreMetadataIfEncodeOnly controls whether codecs
	// that perform irreversible encode-only transforms (e.g. bitround)
	// write their metadata. Default false.
	ExperimentalCodecStoreMetadataIfEncodeOnly bool

	// MetadataConvertVersion controls the version of written metadata.
	MetadataConvertVersion MetadataConvertVersion

	// MetadataEraseVersion controls which metadata versions are erased.
	MetadataEraseVersion MetadataEraseVersion

	// IncludeZarrsMetadata stamps a "_zarrs"-equivalent attribute
	// identifying this engine when writing array metadata. Default true.
	IncludeZarrsMetadata bool

	// ExperimentalPartialEncoding enables in-place read-modify-write of
	// shards rather than always rewriting the whole shard. Default false.
	ExperimentalPartialEncoding bool

	// CodecAliasesV3 and CodecAliasesV2 map alternate codec identifiers
	// (as seen in third-party metadata) onto this engine's registered
	// codec identifiers.
	CodecAliasesV3 map[string]string
	CodecAliasesV2 map[string]string

	// DataTypeAliasesV2 maps Zarr V2 dtype strings onto V3 data type names.
	DataTypeAliasesV2 map[string]string
}

// Default returns the default Config (§6 defaults).
func Default() Config {
	return Config{
		ValidateChecksums:       true,
		StoreEmptyChunks:        false,
		CodecConcurrentTarget:   runtime.GOMAXPROCS(0),
		ChunkConcurrentMinimum:  4,
		MetadataConvertVersion:  MetadataConvertDefault,
		MetadataEraseVersion:    MetadataEraseDefault,
		IncludeZarrsMetadata:    true,
		CodecAliasesV3: map[string]string{
			"zstd": "zstd",
			"gzip": "gzip",
			"blosc": "blosc",
		},
		CodecAliasesV2: map[string]string{
			"zlib":  "zlib",
			"blosc": "blosc",
		},
		DataTypeAliasesV2: map[string]string{
			"<f4": "float32",
			"<f8": "float64",
			"<i4": "int32",
			"<i8": "int64",
			"<u4": "uint32",
			"<u8": "uint64",
			"|b1": "bool",
		},
	}
}
