package codec_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/zarr-go/zarrcore/codec"
	"github.com/zarr-go/zarrcore/subset"
	"github.com/zarr-go/zarrcore/zarrtype"
	"github.com/zarr-go/zarrcore/zbytes"
)

// rawBytesCodec is a minimal ArrayToBytesCodec test double: encode/decode is
// the identity on the Fixed buffer.
type rawBytesCodec struct{}

func (rawBytesCodec) Identifier() string    { return "raw" }
func (rawBytesCodec) Configuration() any    { return nil }
func (rawBytesCodec) EncodedSize(rep codec.Representation) codec.Size {
	return codec.Size{Kind: codec.SizeFixed, Size: rep.NumElements() * rep.DataType.Size}
}
func (rawBytesCodec) RecommendedConcurrency(codec.Representation) codec.RecommendedConcurrency {
	return codec.RecommendedConcurrency{Min: 1, Max: 1}
}
func (rawBytesCodec) Encode(ctx context.Context, input zbytes.ArrayBytes, rep codec.Representation, opts codec.Options) ([]byte, error) {
	return append([]byte(nil), input.Fixed...), nil
}
func (rawBytesCodec) Decode(ctx context.Context, input []byte, rep codec.Representation, opts codec.Options) (zbytes.ArrayBytes, error) {
	return zbytes.NewFixed(append([]byte(nil), input...)), nil
}
func (rawBytesCodec) PartialDecoder(inner codec.BytesPartialDecoder, rep codec.Representation, opts codec.Options) (codec.PartialDecoder, error) {
	return nil, nil
}
func (rawBytesCodec) PartialEncoder(inner codec.BytesPartialDecoder, innerEnc codec.BytesPartialEncoder, rep codec.Representation, opts codec.Options) (codec.PartialEncoder, error) {
	return nil, nil
}

type memBytesDecoder struct{ value []byte }

func (m *memBytesDecoder) DecodeRanges(ctx context.Context, ranges []subset.ByteRange) ([][]byte, error) {
	out := make([][]byte, len(ranges))
	for i, r := range ranges {
		if m.value == nil {
			continue
		}
		out[i] = m.value[r.Offset : r.Offset+r.Length]
	}
	return out, nil
}

func int32Rep(shape []uint64, fill int32) codec.Representation {
	dt, _ := zarrtype.Lookup("int32")
	fv := make([]byte, 4)
	fv[0] = byte(fill)
	return codec.Representation{Shape: shape, DataType: dt, FillValue: fv}
}

func TestDefaultArrayToBytesPartialDecoder_AbsentKeyYieldsFill(t *testing.T) {
	rep := int32Rep([]uint64{4}, 7)
	d := &codec.DefaultArrayToBytesPartialDecoder{
		Inner: &memBytesDecoder{value: nil},
		Codec: rawBytesCodec{},
		Rep:   rep,
	}
	region, err := subset.New([]uint64{1}, []uint64{2})
	require.NoError(t, err)
	out, err := d.PartialDecode(context.Background(), []subset.ArraySubset{region}, codec.DefaultOptions())
	require.NoError(t, err)
	require.Len(t, out, 1)
	require.Equal(t, uint64(2), out[0].NumElements(4))
}

func TestDefaultArrayToBytesPartialDecoder_ExtractsRegion(t *testing.T) {
	rep := int32Rep([]uint64{4}, 0)
	whole := make([]byte, 16)
	for i := 0; i < 4; i++ {
		whole[i*4] = byte(i + 1)
	}
	d := &codec.DefaultArrayToBytesPartialDecoder{
		Inner: &memBytesDecoder{value: whole},
		Codec: rawBytesCodec{},
		Rep:   rep,
	}
	region, err := subset.New([]uint64{1}, []uint64{2})
	require.NoError(t, err)
	out, err := d.PartialDecode(context.Background(), []subset.ArraySubset{region}, codec.DefaultOptions())
	require.NoError(t, err)
	require.Equal(t, []byte{2, 0, 0, 0, 3, 0, 0, 0}, out[0].Fixed)
}
