package bitround_test

import (
	"context"
	"encoding/binary"
	"math"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/zarr-go/zarrcore/codec"
	"github.com/zarr-go/zarrcore/codec/bitround"
	"github.com/zarr-go/zarrcore/zarrtype"
	"github.com/zarr-go/zarrcore/zbytes"
)

func TestBitround_Encode_ZerosTrailingMantissaBits(t *testing.T) {
	dt, _ := zarrtype.Lookup("float32")
	rep := codec.Representation{Shape: []uint64{1}, DataType: dt, FillValue: make([]byte, 4)}
	c := bitround.New(4)

	buf := make([]byte, 4)
	binary.LittleEndian.PutUint32(buf, math.Float32bits(3.14159265))
	input := zbytes.NewFixed(buf)

	out, err := c.Encode(context.Background(), input, rep, codec.DefaultOptions())
	require.NoError(t, err)

	bits := binary.LittleEndian.Uint32(out.Fixed)
	require.Equal(t, uint32(0), bits&((1<<(23-4))-1))
}

func TestBitround_Decode_IsIdentity(t *testing.T) {
	c := bitround.New(10)
	dt, _ := zarrtype.Lookup("float32")
	rep := codec.Representation{Shape: []uint64{1}, DataType: dt}
	input := zbytes.NewFixed([]byte{1, 2, 3, 4})
	out, err := c.Decode(context.Background(), input, rep, codec.DefaultOptions())
	require.NoError(t, err)
	require.Equal(t, input.Fixed, out.Fixed)
}
