package store

import (
	"context"
	"fmt"
	"io"

	"gocloud.dev/blob"
	"gocloud.dev/gcerrors"

	"github.com/zarr-go/zarrcore/zarrerrors"
)

// Blob adapts a gocloud.dev/blob.Bucket to the Store contract. Grounded on
// the teacher's Reader/Dataset, which open a bucket with blob.OpenBucket
// and read/write keys directly; this adapter generalises that to the full
// Store contract used by the chunk engine and sharding codec. Range reads
// use (*blob.Bucket).NewRangeReader; range writes have no gocloud.dev
// primitive, so SetPartial falls back to read-modify-write of the whole
// object. SupportsPartial reports true for both, so callers that check it
// route range writes through that whole-object SetPartial.
type Blob struct {
	bucket *blob.Bucket
}

// NewBlob wraps an already-opened bucket. Callers own the bucket's lifetime
// (Close it when done); Blob does not close it.
func NewBlob(bucket *blob.Bucket) *Blob {
	return &Blob{bucket: bucket}
}

// Open opens a bucket at the given gocloud.dev URL (e.g. "file:///path",
// "mem://", "s3://bucket") and wraps it.
func Open(ctx context.Context, urlstr string) (*Blob, error) {
	bucket, err := blob.OpenBucket(ctx, urlstr)
	if err != nil {
		return nil, fmt.Errorf("zarr: failed to open bucket %q: %w", urlstr, err)
	}
	return &Blob{bucket: bucket}, nil
}

func (b *Blob) Close() error { return b.bucket.Close() }

func (b *Blob) SupportsPartial() bool { return true }

func (b *Blob) Get(ctx context.Context, key string) ([]byte, bool, error) {
	r, err := b.bucket.NewReader(ctx, key, nil)
	if err != nil {
		if gcerrors.Code(err) == gcerrors.NotFound {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("zarr: failed to read key %q: %w", key, err)
	}
	defer r.Close()

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, false, fmt.Errorf("zarr: failed to read key %q: %w", key, err)
	}
	return data, true, nil
}

func (b *Blob) GetPartial(ctx context.Context, key string, ranges []ByteRange) ([][]byte, bool, error) {
	out := make([][]byte, len(ranges))
	for i, r := range ranges {
		// gocloud.dev/blob treats a negative length as "read to the end",
		// which is exactly what ByteRange.Length == 0 means here.
		length := int64(-1)
		if r.Length != 0 {
			length = int64(r.Length)
		}
		rdr, err := b.bucket.NewRangeReader(ctx, key, int64(r.Offset), length, nil)
		if err != nil {
			if gcerrors.Code(err) == gcerrors.NotFound {
				return nil, false, nil
			}
			return nil, false, fmt.Errorf("zarr: failed range-read key %q: %w", key, err)
		}
		data, err := io.ReadAll(rdr)
		rdr.Close()
		if err != nil {
			return nil, false, fmt.Errorf("zarr: failed range-read key %q: %w", key, err)
		}
		if r.Length != 0 && uint64(len(data)) != r.Length {
			return nil, false, fmt.Errorf("%w: key %q range [%d,%d)", zarrerrors.ErrInvalidByteRange, key, r.Offset, r.Offset+r.Length)
		}
		out[i] = data
	}
	return out, true, nil
}

func (b *Blob) Set(ctx context.Context, key string, value []byte) error {
	w, err := b.bucket.NewWriter(ctx, key, nil)
	if err != nil {
		return fmt.Errorf("zarr: failed to open writer for key %q: %w", key, err)
	}
	if _, err := w.Write(value); err != nil {
		w.Close()
		return fmt.Errorf("zarr: failed to write key %q: %w", key, err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("zarr: failed to close writer for key %q: %w", key, err)
	}
	return nil
}

// SetPartial is a read-modify-write fallback: gocloud.dev/blob exposes no
// range-write primitive portable across providers.
func (b *Blob) SetPartial(ctx context.Context, key string, writes []OffsetBytes) error {
	data, ok, err := b.Get(ctx, key)
	if err != nil {
		return err
	}
	if !ok {
		return zarrerrors.ErrKeyNotFound
	}
	maxEnd := uint64(len(data))
	for _, w := range writes {
		if end := w.Offset + uint64(len(w.Bytes)); end > maxEnd {
			maxEnd = end
		}
	}
	if maxEnd > uint64(len(data)) {
		grown := make([]byte, maxEnd)
		copy(grown, data)
		data = grown
	}
	for _, w := range writes {
		copy(data[w.Offset:], w.Bytes)
	}
	return b.Set(ctx, key, data)
}

func (b *Blob) Erase(ctx context.Context, key string) (bool, error) {
	if _, err := b.bucket.Attributes(ctx, key); err != nil {
		if gcerrors.Code(err) == gcerrors.NotFound {
			return false, nil
		}
		return false, fmt.Errorf("zarr: failed to stat key %q: %w", key, err)
	}
	if err := b.bucket.Delete(ctx, key); err != nil {
		if gcerrors.Code(err) == gcerrors.NotFound {
			return false, nil
		}
		return false, fmt.Errorf("zarr: failed to delete key %q: %w", key, err)
	}
	return true, nil
}

func (b *Blob) ErasePrefix(ctx context.Context, prefix string) error {
	keys, err := b.ListPrefix(ctx, prefix)
	if err != nil {
		return err
	}
	for _, k := range keys {
		if _, err := b.Erase(ctx, k); err != nil {
			return err
		}
	}
	return nil
}

func (b *Blob) ListPrefix(ctx context.Context, prefix string) ([]string, error) {
	var out []string
	iter := b.bucket.List(&blob.ListOptions{Prefix: prefix})
	for {
		obj, err := iter.Next(ctx)
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("zarr: failed to list prefix %q: %w", prefix, err)
		}
		out = append(out, obj.Key)
	}
	return out, nil
}
