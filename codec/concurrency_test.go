package codec_test

import (
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/zarr-go/zarrcore/codec"
)

func TestConcurrency_SaturatesChunkFirst(t *testing.T) {
	cc, dc := codec.Concurrency(16, 100, codec.RecommendedConcurrency{Min: 1, Max: 8}, 4)
	require.Equal(t, 4, cc)
	require.Equal(t, 4, dc)
	require.LessOrEqual(t, cc*dc, 16)
}

func TestConcurrency_FewChunksFallsBackToCodec(t *testing.T) {
	cc, dc := codec.Concurrency(16, 2, codec.RecommendedConcurrency{Min: 1, Max: 8}, 4)
	require.Equal(t, 2, cc)
	require.Equal(t, 8, dc)
	require.LessOrEqual(t, cc*dc, 16)
}

func TestConcurrency_CodecMinimumRespected(t *testing.T) {
	cc, dc := codec.Concurrency(4, 100, codec.RecommendedConcurrency{Min: 4, Max: 8}, 4)
	require.GreaterOrEqual(t, dc, 4)
	require.GreaterOrEqual(t, cc, 1)
}

func TestConcurrency_SingleChunkUsesCodecConcurrency(t *testing.T) {
	cc, dc := codec.Concurrency(8, 1, codec.RecommendedConcurrency{Min: 1, Max: 8}, 4)
	require.Equal(t, 1, cc)
	require.Equal(t, 8, dc)
}

func TestConcurrency_ZeroTargetTreatedAsOne(t *testing.T) {
	cc, dc := codec.Concurrency(0, 10, codec.RecommendedConcurrency{Min: 1, Max: 4}, 4)
	require.Equal(t, 1, cc)
	require.Equal(t, 1, dc)
}
