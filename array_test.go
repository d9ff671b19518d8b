package zarr_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	zarr "github.com/zarr-go/zarrcore"
	"github.com/zarr-go/zarrcore/chunkgrid"
	"github.com/zarr-go/zarrcore/codec"
	"github.com/zarr-go/zarrcore/codec/bytescodec"
	"github.com/zarr-go/zarrcore/keyenc"
	"github.com/zarr-go/zarrcore/store"
	"github.com/zarr-go/zarrcore/subset"
	"github.com/zarr-go/zarrcore/zarrconfig"
	"github.com/zarr-go/zarrcore/zarrtype"
	"github.com/zarr-go/zarrcore/zbytes"
)

func newU8Array(t *testing.T, shape, chunkShape []uint64) *zarr.Array {
	t.Helper()
	dt, err := zarrtype.Lookup("uint8")
	require.NoError(t, err)

	meta := zarr.Metadata{
		ZarrFormat:       3,
		Shape:            shape,
		DataType:         dt,
		ChunkGrid:        chunkgrid.Regular{ChunkShapeValue: chunkShape},
		ChunkKeyEncoding: keyenc.Default{},
		FillValue:        []byte{0},
		Pipeline:         codec.Pipeline{ArrayToBytes: bytescodec.New(bytescodec.EndianNone)},
	}
	return zarr.NewArray(store.NewMemory(), "arr", meta, zarrconfig.Default())
}

func fullU8(n int, start byte) zbytes.ArrayBytes {
	data := make([]byte, n)
	for i := range data {
		data[i] = start + byte(i)
	}
	return zbytes.NewFixed(data)
}

// TestArray_WholeChunkRoundTrip exercises the 8x8 u8 grid property from
// spec.md §8: storing and retrieving a chunk-aligned array subset returns
// exactly what was written.
func TestArray_WholeChunkRoundTrip(t *testing.T) {
	ctx := context.Background()
	a := newU8Array(t, []uint64{8, 8}, []uint64{4, 4})

	full := fullU8(64, 0)
	whole, err := subset.New([]uint64{0, 0}, []uint64{8, 8})
	require.NoError(t, err)

	require.NoError(t, a.StoreArraySubset(ctx, whole, full))

	got, err := a.RetrieveArraySubset(ctx, whole)
	require.NoError(t, err)
	assert.True(t, got.Equal(full))
}

func TestArray_MissingChunkReadsAsFillValue(t *testing.T) {
	ctx := context.Background()
	a := newU8Array(t, []uint64{4, 4}, []uint64{2, 2})

	got, err := a.RetrieveChunk(ctx, []uint64{0, 0})
	require.NoError(t, err)
	assert.True(t, got.IsFillValue(1, []byte{0}))
}

func TestArray_StoreChunkThenRetrieveChunkSubset(t *testing.T) {
	ctx := context.Background()
	a := newU8Array(t, []uint64{4, 4}, []uint64{4, 4})

	require.NoError(t, a.StoreChunk(ctx, []uint64{0, 0}, fullU8(16, 1)))

	s, err := subset.New([]uint64{1, 1}, []uint64{2, 2})
	require.NoError(t, err)
	got, err := a.RetrieveChunkSubset(ctx, []uint64{0, 0}, s)
	require.NoError(t, err)

	// rows 1-2, cols 1-2 of a 4x4 row-major buffer starting at 1: [6,7,10,11]
	assert.Equal(t, []byte{6, 7, 10, 11}, got.Fixed)
}

func TestArray_ArraySubsetSpanningMultipleChunks(t *testing.T) {
	ctx := context.Background()
	a := newU8Array(t, []uint64{4, 4}, []uint64{2, 2})

	full := fullU8(16, 0)
	whole, err := subset.New([]uint64{0, 0}, []uint64{4, 4})
	require.NoError(t, err)
	require.NoError(t, a.StoreArraySubset(ctx, whole, full))

	region, err := subset.New([]uint64{1, 1}, []uint64{2, 2})
	require.NoError(t, err)
	got, err := a.RetrieveArraySubset(ctx, region)
	require.NoError(t, err)

	// 4x4 row-major 0..15; subregion [1:3,1:3] = [5,6,9,10]
	assert.Equal(t, []byte{5, 6, 9, 10}, got.Fixed)
}

// TestArray_ChunkSubsetWritesAreSerialized exercises the 100x4
// concurrent-write-locking property from spec.md §8: many goroutines each
// write a disjoint one-element subset of the same chunk; all writes must
// land without data loss.
func TestArray_ChunkSubsetWritesAreSerialized(t *testing.T) {
	ctx := context.Background()
	a := newU8Array(t, []uint64{100, 4}, []uint64{100, 4})

	done := make(chan error, 400)
	for row := 0; row < 100; row++ {
		for col := 0; col < 4; col++ {
			row, col := row, col
			go func() {
				s, err := subset.New([]uint64{uint64(row), uint64(col)}, []uint64{1, 1})
				if err != nil {
					done <- err
					return
				}
				done <- a.StoreChunkSubset(ctx, []uint64{0, 0}, s, zbytes.NewFixed([]byte{byte(row + col)}))
			}()
		}
	}
	for i := 0; i < 400; i++ {
		require.NoError(t, <-done)
	}

	got, err := a.RetrieveChunk(ctx, []uint64{0, 0})
	require.NoError(t, err)
	for row := 0; row < 100; row++ {
		for col := 0; col < 4; col++ {
			assert.Equal(t, byte(row+col), got.Fixed[row*4+col])
		}
	}
}

func TestArray_AllFillValueWriteErasesChunk(t *testing.T) {
	ctx := context.Background()
	a := newU8Array(t, []uint64{4, 4}, []uint64{4, 4})

	require.NoError(t, a.StoreChunk(ctx, []uint64{0, 0}, fullU8(16, 1)))
	_, ok, err := a.RetrieveEncodedChunk(ctx, []uint64{0, 0})
	require.NoError(t, err)
	require.True(t, ok)

	fill := zbytes.FillValue(16, 1, []byte{0})
	require.NoError(t, a.StoreChunk(ctx, []uint64{0, 0}, fill))

	_, ok, err = a.RetrieveEncodedChunk(ctx, []uint64{0, 0})
	require.NoError(t, err)
	assert.False(t, ok, "writing an all-fill-value chunk should erase it rather than store it")
}

func TestArray_RetrieveChunksAndStoreChunks(t *testing.T) {
	ctx := context.Background()
	a := newU8Array(t, []uint64{4, 4}, []uint64{2, 2})

	full := fullU8(16, 0)
	// chunk-coordinate-space subset covering all four chunks.
	allChunks, err := subset.New([]uint64{0, 0}, []uint64{2, 2})
	require.NoError(t, err)
	require.NoError(t, a.StoreChunks(ctx, allChunks, full))

	// chunk-coordinate-space subset covering the bottom-right chunk only.
	chunksRegion, err := subset.New([]uint64{1, 1}, []uint64{1, 1})
	require.NoError(t, err)
	got, err := a.RetrieveChunks(ctx, chunksRegion)
	require.NoError(t, err)
	assert.Equal(t, []byte{10, 11, 14, 15}, got.Fixed)
}

func TestArray_ChunksWithData(t *testing.T) {
	ctx := context.Background()
	a := newU8Array(t, []uint64{4, 4}, []uint64{2, 2})

	require.NoError(t, a.StoreChunk(ctx, []uint64{0, 0}, fullU8(4, 1)))
	require.NoError(t, a.StoreChunk(ctx, []uint64{1, 1}, fullU8(4, 5)))

	keys, err := a.ChunksWithData(ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"arr/c/0/0", "arr/c/1/1"}, keys)
}

// TestArray_ChunksWithData_V2 exercises a V2 chunk key encoding, whose keys
// (e.g. "0.0") have no shared "c" prefix to list by.
func TestArray_ChunksWithData_V2(t *testing.T) {
	ctx := context.Background()
	dt, err := zarrtype.Lookup("uint8")
	require.NoError(t, err)

	meta := zarr.Metadata{
		ZarrFormat:       2,
		Shape:            []uint64{4, 4},
		DataType:         dt,
		ChunkGrid:        chunkgrid.Regular{ChunkShapeValue: []uint64{2, 2}},
		ChunkKeyEncoding: keyenc.V2{},
		FillValue:        []byte{0},
		Pipeline:         codec.Pipeline{ArrayToBytes: bytescodec.New(bytescodec.EndianNone)},
	}
	a := zarr.NewArray(store.NewMemory(), "arr", meta, zarrconfig.Default())

	require.NoError(t, a.StoreChunk(ctx, []uint64{0, 0}, fullU8(4, 1)))
	require.NoError(t, a.StoreChunk(ctx, []uint64{1, 1}, fullU8(4, 5)))
	require.NoError(t, a.Store.Set(ctx, "arr/.zarray", []byte(`{}`)))

	keys, err := a.ChunksWithData(ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"arr/0.0", "arr/1.1"}, keys)
}
