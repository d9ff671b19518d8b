package zlibcodec_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/zarr-go/zarrcore/codec"
	"github.com/zarr-go/zarrcore/codec/zlibcodec"
)

func TestZlib_EncodeDecode_RoundTrips(t *testing.T) {
	c := zlibcodec.New(6)
	input := []byte("some data to compress with zlib, some data to compress with zlib")
	encoded, err := c.Encode(context.Background(), input, codec.DefaultOptions())
	require.NoError(t, err)

	decoded, err := c.Decode(context.Background(), encoded, codec.Size{}, codec.DefaultOptions())
	require.NoError(t, err)
	require.Equal(t, input, decoded)
}
