package subset_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zarr-go/zarrcore/subset"
)

func TestIndices_RowMajor(t *testing.T) {
	s, err := subset.New([]uint64{0, 0}, []uint64{2, 2})
	require.NoError(t, err)

	idx, err := s.Indices([]uint64{2, 4})
	require.NoError(t, err)
	assert.Equal(t, []uint64{0, 1, 4, 5}, idx)
}

func TestIndices_OffsetSubset(t *testing.T) {
	s, err := subset.New([]uint64{1, 1}, []uint64{2, 2})
	require.NoError(t, err)

	idx, err := s.Indices([]uint64{4, 4})
	require.NoError(t, err)
	assert.Equal(t, []uint64{5, 6, 9, 10}, idx)
}

func TestIndices_DimensionalityMismatch(t *testing.T) {
	s, err := subset.New([]uint64{0, 0}, []uint64{2, 2})
	require.NoError(t, err)

	_, err = s.Indices([]uint64{4, 4, 4})
	require.Error(t, err)
}

func TestIndices_OutOfBounds(t *testing.T) {
	s, err := subset.New([]uint64{3, 0}, []uint64{2, 2})
	require.NoError(t, err)

	_, err = s.Indices([]uint64{4, 4})
	require.Error(t, err)
}

func TestContiguousIndices_FullRow(t *testing.T) {
	s, err := subset.New([]uint64{0, 0}, []uint64{4, 4})
	require.NoError(t, err)

	runs, err := s.ContiguousIndices([]uint64{4, 4})
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, subset.Run{Start: 0, Length: 16}, runs[0])
}

func TestContiguousIndices_PartialRows(t *testing.T) {
	s, err := subset.New([]uint64{0, 1}, []uint64{2, 2})
	require.NoError(t, err)

	runs, err := s.ContiguousIndices([]uint64{2, 4})
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, subset.Run{Start: 1, Length: 2}, runs[0])
	assert.Equal(t, subset.Run{Start: 5, Length: 2}, runs[1])
}

func TestByteRanges(t *testing.T) {
	s, err := subset.New([]uint64{0, 1}, []uint64{2, 2})
	require.NoError(t, err)

	ranges, err := s.ByteRanges([]uint64{2, 4}, 4)
	require.NoError(t, err)
	require.Len(t, ranges, 2)
	assert.Equal(t, subset.ByteRange{Offset: 4, Length: 8}, ranges[0])
	assert.Equal(t, subset.ByteRange{Offset: 20, Length: 8}, ranges[1])
}

func TestIntersectAndRelate(t *testing.T) {
	a := subset.Full([]uint64{4, 4})
	b, err := subset.New([]uint64{2, 2}, []uint64{4, 4})
	require.NoError(t, err)

	inter, ok := a.Intersect(b)
	require.True(t, ok)
	assert.Equal(t, []uint64{2, 2}, inter.Start)
	assert.Equal(t, []uint64{2, 2}, inter.Shape)

	rel := b.Relate(inter)
	assert.Equal(t, []uint64{0, 0}, rel.Start)
	assert.Equal(t, []uint64{2, 2}, rel.Shape)
}

func TestIntersect_Disjoint(t *testing.T) {
	a, _ := subset.New([]uint64{0, 0}, []uint64{2, 2})
	b, _ := subset.New([]uint64{5, 5}, []uint64{2, 2})

	_, ok := a.Intersect(b)
	assert.False(t, ok)
}

func TestContains(t *testing.T) {
	outer := subset.Full([]uint64{8, 8})
	inner, _ := subset.New([]uint64{2, 2}, []uint64{4, 4})
	assert.True(t, outer.Contains(inner))
	assert.False(t, inner.Contains(outer))
}

func TestNumElements_Scalar(t *testing.T) {
	s := subset.ArraySubset{}
	assert.Equal(t, uint64(1), s.NumElements())
}
