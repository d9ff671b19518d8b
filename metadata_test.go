package zarr_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	zarr "github.com/zarr-go/zarrcore"
	"github.com/zarr-go/zarrcore/chunkgrid"
	"github.com/zarr-go/zarrcore/codec/bytescodec"
	"github.com/zarr-go/zarrcore/store"
	"github.com/zarr-go/zarrcore/zarrconfig"
)

func TestLoadMetadata_V3(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemory()
	doc := `{
		"zarr_format": 3,
		"node_type": "array",
		"shape": [8, 8],
		"data_type": "uint16",
		"chunk_grid": {"name": "regular", "configuration": {"chunk_shape": [4, 4]}},
		"chunk_key_encoding": {"name": "default", "configuration": {"separator": "/"}},
		"fill_value": 0,
		"codecs": [
			{"name": "bytes", "configuration": {"endian": "little"}},
			{"name": "gzip", "configuration": {"level": 5}}
		],
		"attributes": {"units": "count"},
		"dimension_names": ["y", "x"]
	}`
	require.NoError(t, st.Set(ctx, "arr/zarr.json", []byte(doc)))

	meta, err := zarr.LoadMetadata(ctx, st, "arr", zarrconfig.Default())
	require.NoError(t, err)

	assert.Equal(t, 3, meta.ZarrFormat)
	assert.Equal(t, []uint64{8, 8}, meta.Shape)
	assert.Equal(t, "uint16", meta.DataType.Name)
	assert.Equal(t, []uint64{4, 4}, meta.ChunkGrid.(chunkgrid.Regular).ChunkShapeValue)
	assert.Equal(t, []byte{0, 0}, meta.FillValue)
	assert.NotNil(t, meta.Pipeline.ArrayToBytes)
	require.Len(t, meta.Pipeline.BytesToBytes, 1)
	assert.Equal(t, "gzip", meta.Pipeline.BytesToBytes[0].Identifier())
	assert.Equal(t, []string{"y", "x"}, meta.DimensionNames)
	assert.Equal(t, "count", meta.Attributes["units"])
}

func TestLoadMetadata_V3_RejectsUnsupportedVersion(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemory()
	require.NoError(t, st.Set(ctx, "arr/zarr.json", []byte(`{"zarr_format": 4}`)))

	_, err := zarr.LoadMetadata(ctx, st, "arr", zarrconfig.Default())
	require.Error(t, err)
}

func TestLoadMetadata_V3_RejectsMultipleArrayToBytesCodecs(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemory()
	doc := `{
		"zarr_format": 3,
		"shape": [2],
		"data_type": "uint8",
		"chunk_grid": {"name": "regular", "configuration": {"chunk_shape": [2]}},
		"chunk_key_encoding": {"name": "default"},
		"fill_value": 0,
		"codecs": [{"name": "bytes"}, {"name": "bytes"}]
	}`
	require.NoError(t, st.Set(ctx, "arr/zarr.json", []byte(doc)))

	_, err := zarr.LoadMetadata(ctx, st, "arr", zarrconfig.Default())
	require.Error(t, err)
}

func TestLoadMetadata_FallsBackToV2(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemory()
	doc := `{
		"zarr_format": 2,
		"shape": [4, 4],
		"chunks": [2, 2],
		"dtype": "<f4",
		"compressor": {"id": "zlib", "level": 3},
		"fill_value": 0.0
	}`
	require.NoError(t, st.Set(ctx, "arr/.zarray", []byte(doc)))

	meta, err := zarr.LoadMetadata(ctx, st, "arr", zarrconfig.Default())
	require.NoError(t, err)

	assert.Equal(t, 2, meta.ZarrFormat)
	assert.Equal(t, "float32", meta.DataType.Name)
	assert.Equal(t, []uint64{2, 2}, meta.ChunkGrid.(chunkgrid.Regular).ChunkShapeValue)
	require.Len(t, meta.Pipeline.BytesToBytes, 1)
	assert.Equal(t, "zlib", meta.Pipeline.BytesToBytes[0].Identifier())
}

func TestLoadMetadata_V2_AliasFallbackPreservesBigEndian(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemory()
	doc := `{
		"zarr_format": 2,
		"shape": [2, 2],
		"chunks": [2, 2],
		"dtype": ">M8",
		"fill_value": 0
	}`
	require.NoError(t, st.Set(ctx, "arr/.zarray", []byte(doc)))

	cfg := zarrconfig.Default()
	cfg.DataTypeAliasesV2 = map[string]string{">M8": "int64"}

	meta, err := zarr.LoadMetadata(ctx, st, "arr", cfg)
	require.NoError(t, err)
	assert.Equal(t, "int64", meta.DataType.Name)

	bc, ok := meta.Pipeline.ArrayToBytes.(bytescodec.Codec)
	require.True(t, ok)
	assert.Equal(t, bytescodec.EndianBig, bc.Endian, "alias-resolved big-endian V2 dtype must still produce a big-endian bytes codec")
}

func TestLoadMetadata_V3_DispatchesVlenUtf8(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemory()
	doc := `{
		"zarr_format": 3,
		"shape": [3],
		"data_type": "string",
		"chunk_grid": {"name": "regular", "configuration": {"chunk_shape": [3]}},
		"chunk_key_encoding": {"name": "default"},
		"fill_value": "",
		"codecs": [{"name": "vlen-utf8"}]
	}`
	require.NoError(t, st.Set(ctx, "arr/zarr.json", []byte(doc)))

	meta, err := zarr.LoadMetadata(ctx, st, "arr", zarrconfig.Default())
	require.NoError(t, err)
	assert.Equal(t, "string", meta.DataType.Name)
	require.NotNil(t, meta.Pipeline.ArrayToBytes)
	assert.Equal(t, "vlen-utf8", meta.Pipeline.ArrayToBytes.Identifier())
}

func TestLoadMetadata_MissingReturnsError(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemory()

	_, err := zarr.LoadMetadata(ctx, st, "nope", zarrconfig.Default())
	require.Error(t, err)
}

func TestLoadMetadata_ShardingIndexed(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemory()
	doc := `{
		"zarr_format": 3,
		"shape": [4, 4],
		"data_type": "uint8",
		"chunk_grid": {"name": "regular", "configuration": {"chunk_shape": [4, 4]}},
		"chunk_key_encoding": {"name": "default"},
		"fill_value": 0,
		"codecs": [{
			"name": "sharding_indexed",
			"configuration": {
				"chunk_shape": [2, 2],
				"codecs": [{"name": "bytes"}],
				"index_codecs": [{"name": "bytes"}, {"name": "crc32c"}],
				"index_location": "end"
			}
		}]
	}`
	require.NoError(t, st.Set(ctx, "arr/zarr.json", []byte(doc)))

	meta, err := zarr.LoadMetadata(ctx, st, "arr", zarrconfig.Default())
	require.NoError(t, err)
	assert.NotNil(t, meta.Pipeline.ArrayToBytes)
	assert.Equal(t, "sharding_indexed", meta.Pipeline.ArrayToBytes.Identifier())
}
