package fixedscaleoffset_test

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/zarr-go/zarrcore/codec"
	"github.com/zarr-go/zarrcore/codec/fixedscaleoffset"
	"github.com/zarr-go/zarrcore/zarrtype"
	"github.com/zarr-go/zarrcore/zbytes"
)

func TestFixedScaleOffset_RoundTrips_ApproximatesOriginal(t *testing.T) {
	f64, _ := zarrtype.Lookup("float64")
	u8, _ := zarrtype.Lookup("uint8")
	c := fixedscaleoffset.New(10, 1000, f64, u8)

	rep := codec.Representation{Shape: []uint64{10}, DataType: f64}
	elements := []float64{1000, 1000.11111111, 1000.22222222, 1000.33333333, 1000.44444444,
		1000.55555556, 1000.66666667, 1000.77777778, 1000.88888889, 1001}

	buf := make([]byte, 0, 80)
	for _, e := range elements {
		b := make([]byte, 8)
		writeF64(b, e)
		buf = append(buf, b...)
	}
	input := zbytes.NewFixed(buf)

	encoded, err := c.Encode(context.Background(), input, rep, codec.DefaultOptions())
	require.NoError(t, err)
	require.Len(t, encoded.Fixed, 10)

	decodedRep := rep
	decodedRep.DataType = u8
	decoded, err := c.Decode(context.Background(), encoded, decodedRep, codec.DefaultOptions())
	require.NoError(t, err)

	want := []float64{1000, 1000.1, 1000.2, 1000.3, 1000.4, 1000.6, 1000.7, 1000.8, 1000.9, 1001}
	for i, w := range want {
		got := readF64(decoded.Fixed[i*8 : i*8+8])
		require.InDelta(t, w, got, 1e-9)
	}
}

func writeF64(b []byte, v float64) {
	bits := math.Float64bits(v)
	for i := 0; i < 8; i++ {
		b[i] = byte(bits >> (8 * i))
	}
}

func readF64(b []byte) float64 {
	var bits uint64
	for i := 0; i < 8; i++ {
		bits |= uint64(b[i]) << (8 * i)
	}
	return math.Float64frombits(bits)
}
