package zarrds_test

import (
	"context"
	"io"
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
	"github.com/zarr-go/zarrcore/zarrds"
	"github.com/zarr-go/zarrcore/zarrtype"
	"github.com/zarr-go/zarrcore/zbytes"
)

func newInt32Array(t *testing.T, rows, cols uint64) *zarr.Array {
	t.Helper()
	dt, err := zarrtype.Lookup("int32")
	require.NoError(t, err)

	meta := zarr.Metadata{
		ZarrFormat:       3,
		Shape:            []uint64{rows, cols},
		DataType:         dt,
		ChunkGrid:        chunkgrid.Regular{ChunkShapeValue: []uint64{2, cols}},
		ChunkKeyEncoding: keyenc.Default{},
		FillValue:        make([]byte, 4),
		Pipeline:         codec.Pipeline{ArrayToBytes: bytescodec.New(bytescodec.EndianLittle)},
	}
	a := zarr.NewArray(store.NewMemory(), "arr", meta, zarrconfig.Default())

	data := make([]byte, rows*cols*4)
	for i := uint64(0); i < rows*cols; i++ {
		data[i*4] = byte(i)
	}
	whole, err := subset.New([]uint64{0, 0}, []uint64{rows, cols})
	require.NoError(t, err)
	require.NoError(t, a.StoreArraySubset(context.Background(), whole, zbytes.NewFixed(data)))
	return a
}

func TestBatchReader_IteratesInOrder(t *testing.T) {
	a := newInt32Array(t, 5, 3)
	r, err := zarrds.NewBatchReader(a, 2)
	require.NoError(t, err)

	ctx := context.Background()
	var rowsSeen int
	for {
		batch, err := r.Next(ctx)
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		dims := batch.Shape().Dimensions
		rowsSeen += dims[0]
		assert.Equal(t, 3, dims[1])
	}
	assert.Equal(t, 5, rowsSeen)
}

func TestBatchReader_RejectsEmptyShape(t *testing.T) {
	dt, err := zarrtype.Lookup("int32")
	require.NoError(t, err)
	meta := zarr.Metadata{
		ZarrFormat:       3,
		Shape:            []uint64{},
		DataType:         dt,
		ChunkGrid:        chunkgrid.Regular{ChunkShapeValue: []uint64{}},
		ChunkKeyEncoding: keyenc.Default{},
		FillValue:        make([]byte, 4),
		Pipeline:         codec.Pipeline{ArrayToBytes: bytescodec.New(bytescodec.EndianLittle)},
	}
	a := zarr.NewArray(store.NewMemory(), "arr", meta, zarrconfig.Default())

	_, err = zarrds.NewBatchReader(a, 2)
	require.Error(t, err)
}

func TestBatchReader_RejectsNonPositiveBatchSize(t *testing.T) {
	a := newInt32Array(t, 4, 2)
	_, err := zarrds.NewBatchReader(a, 0)
	require.Error(t, err)
}
