package sharding_test

import (
	"context"
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/zarr-go/zarrcore/codec"
	"github.com/zarr-go/zarrcore/codec/bytescodec"
	"github.com/zarr-go/zarrcore/codec/crc32ccodec"
	"github.com/zarr-go/zarrcore/sharding"
	"github.com/zarr-go/zarrcore/store"
	"github.com/zarr-go/zarrcore/subset"
	"github.com/zarr-go/zarrcore/zarrtype"
	"github.com/zarr-go/zarrcore/zbytes"
)

func uint32Rep(shape []uint64) codec.Representation {
	dt, _ := zarrtype.Lookup("uint32")
	return codec.Representation{Shape: shape, DataType: dt, FillValue: make([]byte, 4)}
}

func sequentialUint32(n int) []byte {
	out := make([]byte, n*4)
	for i := 0; i < n; i++ {
		binary.LittleEndian.PutUint32(out[i*4:], uint32(i))
	}
	return out
}

func newTestCodec(loc sharding.IndexLocation) *sharding.Codec {
	inner := codec.Pipeline{ArrayToBytes: bytescodec.New(bytescodec.EndianLittle)}
	index := codec.Pipeline{
		ArrayToBytes: bytescodec.New(bytescodec.EndianLittle),
		BytesToBytes: []codec.BytesToBytesCodec{crc32ccodec.New()},
	}
	return sharding.New([]uint64{2, 2}, inner, index, loc)
}

func TestSharding_EncodeDecode_RoundTrips(t *testing.T) {
	c := newTestCodec(sharding.IndexEnd)
	rep := uint32Rep([]uint64{4, 4})
	input := zbytes.NewFixed(sequentialUint32(16))

	encoded, err := c.Encode(context.Background(), input, rep, codec.DefaultOptions())
	require.NoError(t, err)

	decoded, err := c.Decode(context.Background(), encoded, rep, codec.DefaultOptions())
	require.NoError(t, err)
	require.Equal(t, input.Fixed, decoded.Fixed)
}

func TestSharding_EncodeDecode_IndexStart_RoundTrips(t *testing.T) {
	c := newTestCodec(sharding.IndexStart)
	rep := uint32Rep([]uint64{4, 4})
	input := zbytes.NewFixed(sequentialUint32(16))

	encoded, err := c.Encode(context.Background(), input, rep, codec.DefaultOptions())
	require.NoError(t, err)

	decoded, err := c.Decode(context.Background(), encoded, rep, codec.DefaultOptions())
	require.NoError(t, err)
	require.Equal(t, input.Fixed, decoded.Fixed)
}

func TestSharding_Encode_MarksEmptyInnerChunkMissing(t *testing.T) {
	c := newTestCodec(sharding.IndexEnd)
	rep := uint32Rep([]uint64{4, 4})
	// Top-left 2x2 inner chunk (rows 0-1, cols 0-1) stays all-zero (fill
	// value); the rest gets sequential data.
	data := sequentialUint32(16)
	for row := 0; row < 2; row++ {
		for col := 0; col < 2; col++ {
			idx := (row*4 + col) * 4
			for k := 0; k < 4; k++ {
				data[idx+k] = 0
			}
		}
	}
	input := zbytes.NewFixed(data)
	opts := codec.DefaultOptions()
	opts.StoreEmptyChunks = false

	encoded, err := c.Encode(context.Background(), input, rep, opts)
	require.NoError(t, err)

	// Only the three non-fill inner chunks (16 bytes each) precede the
	// index (4 entries of 16 bytes plus the 4-byte crc32c trailer), and
	// entry 0 (the top-left inner chunk) holds the missing sentinel.
	indexStart := len(encoded) - (4*16 + 4)
	require.Equal(t, 3*16, indexStart)
	require.Equal(t, ^uint64(0), binary.LittleEndian.Uint64(encoded[indexStart:]))
	require.Equal(t, ^uint64(0), binary.LittleEndian.Uint64(encoded[indexStart+8:]))

	decoded, err := c.Decode(context.Background(), encoded, rep, opts)
	require.NoError(t, err)
	require.Equal(t, data, decoded.Fixed)
}

func TestSharding_PartialDecode_ExtractsInnerChunk(t *testing.T) {
	ctx := context.Background()
	c := newTestCodec(sharding.IndexStart)
	rep := uint32Rep([]uint64{4, 4})
	input := zbytes.NewFixed(sequentialUint32(16))
	opts := codec.DefaultOptions()

	encoded, err := c.Encode(ctx, input, rep, opts)
	require.NoError(t, err)

	mem := store.NewMemory()
	require.NoError(t, mem.Set(ctx, "shard", encoded))

	pipeline := codec.Pipeline{ArrayToBytes: c}
	pd, err := pipeline.PartialDecoder(ctx, mem, "shard", rep, opts)
	require.NoError(t, err)

	region, err := subset.New([]uint64{2, 2}, []uint64{2, 2})
	require.NoError(t, err)
	out, err := pd.PartialDecode(ctx, []subset.ArraySubset{region}, opts)
	require.NoError(t, err)
	require.Len(t, out, 1)

	want, err := input.Extract(region, rep.Shape, 4)
	require.NoError(t, err)
	require.Equal(t, want.Fixed, out[0].Fixed)
}

func TestSharding_PartialDecode_MissingShardYieldsFill(t *testing.T) {
	ctx := context.Background()
	c := newTestCodec(sharding.IndexStart)
	rep := uint32Rep([]uint64{4, 4})
	opts := codec.DefaultOptions()

	mem := store.NewMemory()
	pipeline := codec.Pipeline{ArrayToBytes: c}
	pd, err := pipeline.PartialDecoder(ctx, mem, "shard", rep, opts)
	require.NoError(t, err)

	region, err := subset.New([]uint64{0, 0}, []uint64{2, 2})
	require.NoError(t, err)
	out, err := pd.PartialDecode(ctx, []subset.ArraySubset{region}, opts)
	require.NoError(t, err)
	require.Equal(t, make([]byte, 2*2*4), out[0].Fixed)
}

func TestSharding_PartialEncode_InPlace_UpdatesOneInnerChunk(t *testing.T) {
	ctx := context.Background()
	c := newTestCodec(sharding.IndexStart)
	rep := uint32Rep([]uint64{4, 4})
	input := zbytes.NewFixed(sequentialUint32(16))
	opts := codec.DefaultOptions()
	opts.ExperimentalPartialEncoding = true

	encoded, err := c.Encode(ctx, input, rep, opts)
	require.NoError(t, err)

	mem := store.NewMemory()
	require.NoError(t, mem.Set(ctx, "shard", encoded))

	pipeline := codec.Pipeline{ArrayToBytes: c}
	pe, err := pipeline.PartialEncoder(ctx, mem, "shard", rep, opts)
	require.NoError(t, err)

	region, err := subset.New([]uint64{2, 2}, []uint64{2, 2})
	require.NoError(t, err)
	replacement := zbytes.NewFixed([]byte{
		0xAA, 0, 0, 0, 0xBB, 0, 0, 0,
		0xCC, 0, 0, 0, 0xDD, 0, 0, 0,
	})
	require.NoError(t, pe.PartialEncode(ctx, []codec.Update{{Subset: region, Bytes: replacement}}, opts))

	stored, ok, err := mem.Get(ctx, "shard")
	require.NoError(t, err)
	require.True(t, ok)

	decoded, err := c.Decode(ctx, stored, rep, opts)
	require.NoError(t, err)

	want, err := input.Update(region, rep.Shape, 4, replacement)
	require.NoError(t, err)
	require.Equal(t, want.Fixed, decoded.Fixed)
}

func TestSharding_PartialEncode_FallsBackToWholeShardWhenDisabled(t *testing.T) {
	ctx := context.Background()
	c := newTestCodec(sharding.IndexEnd)
	rep := uint32Rep([]uint64{4, 4})
	input := zbytes.NewFixed(sequentialUint32(16))
	opts := codec.DefaultOptions()

	encoded, err := c.Encode(ctx, input, rep, opts)
	require.NoError(t, err)

	mem := store.NewMemory()
	require.NoError(t, mem.Set(ctx, "shard", encoded))

	pipeline := codec.Pipeline{ArrayToBytes: c}
	pe, err := pipeline.PartialEncoder(ctx, mem, "shard", rep, opts)
	require.NoError(t, err)

	region, err := subset.New([]uint64{0, 0}, []uint64{1, 1})
	require.NoError(t, err)
	replacement := zbytes.NewFixed([]byte{0x42, 0, 0, 0})
	require.NoError(t, pe.PartialEncode(ctx, []codec.Update{{Subset: region, Bytes: replacement}}, opts))

	stored, ok, err := mem.Get(ctx, "shard")
	require.NoError(t, err)
	require.True(t, ok)

	decoded, err := c.Decode(ctx, stored, rep, opts)
	require.NoError(t, err)
	want, err := input.Update(region, rep.Shape, 4, replacement)
	require.NoError(t, err)
	require.Equal(t, want.Fixed, decoded.Fixed)
}
