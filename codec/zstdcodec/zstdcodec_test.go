package zstdcodec_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/zarr-go/zarrcore/codec"
	"github.com/zarr-go/zarrcore/codec/zstdcodec"
)

func TestZstd_EncodeDecode_RoundTrips(t *testing.T) {
	c := zstdcodec.New(3, false)
	input := []byte("the quick brown fox jumps over the lazy dog, repeated: the quick brown fox jumps over the lazy dog")
	encoded, err := c.Encode(context.Background(), input, codec.DefaultOptions())
	require.NoError(t, err)
	require.Less(t, len(encoded), len(input))

	decoded, err := c.Decode(context.Background(), encoded, codec.Size{}, codec.DefaultOptions())
	require.NoError(t, err)
	require.Equal(t, input, decoded)
}
