package transpose_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/zarr-go/zarrcore/codec"
	"github.com/zarr-go/zarrcore/codec/transpose"
	"github.com/zarr-go/zarrcore/zarrtype"
	"github.com/zarr-go/zarrcore/zbytes"
)

func rep2x3() codec.Representation {
	dt, _ := zarrtype.Lookup("uint8")
	return codec.Representation{Shape: []uint64{2, 3}, DataType: dt, FillValue: []byte{0}}
}

func TestTranspose_EncodeDecode_RoundTrips(t *testing.T) {
	c := transpose.New([]int{1, 0})
	r := rep2x3()
	// row-major 2x3: [[0,1,2],[3,4,5]]
	input := zbytes.NewFixed([]byte{0, 1, 2, 3, 4, 5})

	encoded, err := c.Encode(context.Background(), input, r, codec.DefaultOptions())
	require.NoError(t, err)
	// transposed to 3x2: [[0,3],[1,4],[2,5]]
	require.Equal(t, []byte{0, 3, 1, 4, 2, 5}, encoded.Fixed)

	decoded, err := c.Decode(context.Background(), encoded, r, codec.DefaultOptions())
	require.NoError(t, err)
	require.Equal(t, input.Fixed, decoded.Fixed)
}

func TestTranspose_EncodedRepresentation_PermutesShape(t *testing.T) {
	c := transpose.New([]int{1, 0})
	out, err := c.EncodedRepresentation(rep2x3())
	require.NoError(t, err)
	require.Equal(t, []uint64{3, 2}, out.Shape)
}

func TestTranspose_DimensionalityMismatch(t *testing.T) {
	c := transpose.New([]int{0})
	_, err := c.EncodedRepresentation(rep2x3())
	require.Error(t, err)
}
