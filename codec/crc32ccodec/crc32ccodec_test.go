package crc32ccodec_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/zarr-go/zarrcore/codec"
	"github.com/zarr-go/zarrcore/codec/crc32ccodec"
	"github.com/zarr-go/zarrcore/subset"
)

func TestCrc32c_EncodeDecode_RoundTrips(t *testing.T) {
	c := crc32ccodec.New()
	input := []byte("hello zarr")
	encoded, err := c.Encode(context.Background(), input, codec.DefaultOptions())
	require.NoError(t, err)
	require.Len(t, encoded, len(input)+4)

	decoded, err := c.Decode(context.Background(), encoded, codec.Size{}, codec.DefaultOptions())
	require.NoError(t, err)
	require.Equal(t, input, decoded)
}

func TestCrc32c_Decode_DetectsCorruption(t *testing.T) {
	c := crc32ccodec.New()
	encoded, err := c.Encode(context.Background(), []byte("payload"), codec.DefaultOptions())
	require.NoError(t, err)
	encoded[0] ^= 0xFF

	_, err = c.Decode(context.Background(), encoded, codec.Size{}, codec.DefaultOptions())
	require.Error(t, err)
}

func TestCrc32c_Decode_SkipsValidationWhenDisabled(t *testing.T) {
	c := crc32ccodec.New()
	encoded, err := c.Encode(context.Background(), []byte("payload"), codec.DefaultOptions())
	require.NoError(t, err)
	encoded[0] ^= 0xFF

	opts := codec.DefaultOptions()
	opts.ValidateChecksums = false
	_, err = c.Decode(context.Background(), encoded, codec.Size{}, opts)
	require.NoError(t, err)
}

func TestCrc32c_EncodedSize_AddsFourBytes(t *testing.T) {
	c := crc32ccodec.New()
	size := c.EncodedSize(codec.Size{Kind: codec.SizeFixed, Size: 100})
	require.Equal(t, codec.Size{Kind: codec.SizeFixed, Size: 104}, size)
}

type fakeDecoder struct{ whole []byte }

func (f *fakeDecoder) DecodeRanges(ctx context.Context, ranges []subset.ByteRange) ([][]byte, error) {
	out := make([][]byte, len(ranges))
	for i, r := range ranges {
		end := r.Offset + r.Length
		if r.Length == 0 {
			end = uint64(len(f.whole))
		}
		out[i] = f.whole[r.Offset:end]
	}
	return out, nil
}

func TestCrc32c_PartialDecode_DetectsCorruptionOnBoundedRange(t *testing.T) {
	c := crc32ccodec.New()
	encoded, err := c.Encode(context.Background(), []byte("payload"), codec.DefaultOptions())
	require.NoError(t, err)
	encoded[0] ^= 0xFF

	pd, err := c.PartialDecoder(&fakeDecoder{whole: encoded}, codec.Size{}, codec.DefaultOptions())
	require.NoError(t, err)

	_, err = pd.DecodeRanges(context.Background(), []subset.ByteRange{{Offset: 0, Length: 3}})
	require.Error(t, err, "a true partial read over corrupted bytes must still surface a checksum error")
}

func TestCrc32c_PartialDecode_BoundedRangeMatchesWholeDecode(t *testing.T) {
	c := crc32ccodec.New()
	encoded, err := c.Encode(context.Background(), []byte("payload"), codec.DefaultOptions())
	require.NoError(t, err)

	pd, err := c.PartialDecoder(&fakeDecoder{whole: encoded}, codec.Size{}, codec.DefaultOptions())
	require.NoError(t, err)

	out, err := pd.DecodeRanges(context.Background(), []subset.ByteRange{{Offset: 0, Length: 3}, {Offset: 3, Length: 4}})
	require.NoError(t, err)
	require.Equal(t, []byte("pay"), out[0])
	require.Equal(t, []byte("load"), out[1])
}

func TestCrc32c_PartialDecode_SkipsValidationWhenDisabled(t *testing.T) {
	c := crc32ccodec.New()
	encoded, err := c.Encode(context.Background(), []byte("payload"), codec.DefaultOptions())
	require.NoError(t, err)
	encoded[0] ^= 0xFF

	opts := codec.DefaultOptions()
	opts.ValidateChecksums = false
	pd, err := c.PartialDecoder(&fakeDecoder{whole: encoded}, codec.Size{}, opts)
	require.NoError(t, err)

	_, err = pd.DecodeRanges(context.Background(), []subset.ByteRange{{Offset: 0, Length: 3}})
	require.NoError(t, err)
}
