package store_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gocloud.dev/blob/memblob"

	"github.com/zarr-go/zarrcore/store"
)

func TestBlob_GetSetErase(t *testing.T) {
	ctx := context.Background()
	bucket := memblob.OpenBucket(nil)
	defer bucket.Close()

	s := store.NewBlob(bucket)

	_, ok, err := s.Get(ctx, "c/0/0")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.Set(ctx, "c/0/0", []byte("hello world")))

	v, ok, err := s.Get(ctx, "c/0/0")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []byte("hello world"), v)

	parts, ok, err := s.GetPartial(ctx, "c/0/0", []store.ByteRange{{Offset: 6, Length: 5}})
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []byte("world"), parts[0])

	parts, ok, err = s.GetPartial(ctx, "c/0/0", []store.ByteRange{{Offset: 6, Length: 0}})
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []byte("world"), parts[0])

	existed, err := s.Erase(ctx, "c/0/0")
	require.NoError(t, err)
	assert.True(t, existed)
}

func TestBlob_ListPrefix(t *testing.T) {
	ctx := context.Background()
	bucket := memblob.OpenBucket(nil)
	defer bucket.Close()

	s := store.NewBlob(bucket)
	require.NoError(t, s.Set(ctx, "arr/c/0", []byte("a")))
	require.NoError(t, s.Set(ctx, "arr/c/1", []byte("b")))

	keys, err := s.ListPrefix(ctx, "arr/c/")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"arr/c/0", "arr/c/1"}, keys)
}
