// Package store defines the key-value store collaborator (§6) the chunk
// engine and sharding codec read and write chunks through, plus two
// implementations: an in-memory store for tests, and a thin adapter over
// gocloud.dev/blob grounded on the teacher's Reader/Dataset bucket use.
package store

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/zarr-go/zarrcore/zarrerrors"
)

// ByteRange is an offset/length pair for a range read or write. A Length of
// 0 means "everything from Offset to the end of the stored value", not an
// empty read; GetPartial implementations must resolve this against the
// value's actual length rather than returning an empty slice.
type ByteRange struct {
	Offset uint64
	Length uint64
}

// OffsetBytes pairs a byte offset with the bytes to write there, for a
// range write (set_partial).
type OffsetBytes struct {
	Offset uint64
	Bytes  []byte
}

// Store is the minimal key-value store contract of §6: get/get_partial,
// set/set_partial, erase/erase_prefix, list_prefix. Partial read/write are
// optional; a Store that cannot support them should return
// zarrerrors.ErrKeyNotFound-free but always-nil results so callers fall
// back to whole-object GET/PUT (the sharding and partial encoders do this
// via the SupportsPartial capability check).
type Store interface {
	// Get returns the full value at key, or (nil, false, nil) if absent.
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// GetPartial returns the bytes at each requested range, or
	// (nil, false, nil) if the key is absent. Returns
	// zarrerrors.ErrInvalidByteRange if a range exceeds the stored value.
	GetPartial(ctx context.Context, key string, ranges []ByteRange) ([][]byte, bool, error)

	// Set writes the full value at key, replacing any prior value.
	Set(ctx context.Context, key string, value []byte) error

	// SetPartial writes byte ranges into an existing value at key. The key
	// must already exist; ranges may extend the value.
	SetPartial(ctx context.Context, key string, writes []OffsetBytes) error

	// Erase deletes key, reporting whether it existed.
	Erase(ctx context.Context, key string) (bool, error)

	// ErasePrefix deletes every key with the given prefix.
	ErasePrefix(ctx context.Context, prefix string) error

	// ListPrefix lists every key with the given prefix.
	ListPrefix(ctx context.Context, prefix string) ([]string, error)

	// SupportsPartial reports whether GetPartial/SetPartial are true range
	// operations rather than whole-object fallbacks.
	SupportsPartial() bool
}

// Memory is an in-memory Store, primarily for tests and small arrays.
type Memory struct {
	mu   sync.RWMutex
	data map[string][]byte
}

// NewMemory constructs an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{data: make(map[string][]byte)}
}

func (m *Memory) SupportsPartial() bool { return true }

func (m *Memory) Get(_ context.Context, key string) ([]byte, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.data[key]
	if !ok {
		return nil, false, nil
	}
	return append([]byte(nil), v...), true, nil
}

func (m *Memory) GetPartial(_ context.Context, key string, ranges []ByteRange) ([][]byte, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.data[key]
	if !ok {
		return nil, false, nil
	}
	out := make([][]byte, len(ranges))
	for i, r := range ranges {
		if r.Offset > uint64(len(v)) {
			return nil, false, zarrerrors.ErrInvalidByteRange
		}
		end := r.Offset + r.Length
		if r.Length == 0 {
			end = uint64(len(v))
		}
		if end > uint64(len(v)) {
			return nil, false, zarrerrors.ErrInvalidByteRange
		}
		out[i] = append([]byte(nil), v[r.Offset:end]...)
	}
	return out, true, nil
}

func (m *Memory) Set(_ context.Context, key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = append([]byte(nil), value...)
	return nil
}

func (m *Memory) SetPartial(_ context.Context, key string, writes []OffsetBytes) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.data[key]
	if !ok {
		return zarrerrors.ErrKeyNotFound
	}
	maxEnd := uint64(len(v))
	for _, w := range writes {
		if end := w.Offset + uint64(len(w.Bytes)); end > maxEnd {
			maxEnd = end
		}
	}
	if maxEnd > uint64(len(v)) {
		grown := make([]byte, maxEnd)
		copy(grown, v)
		v = grown
	}
	for _, w := range writes {
		copy(v[w.Offset:], w.Bytes)
	}
	m.data[key] = v
	return nil
}

func (m *Memory) Erase(_ context.Context, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.data[key]
	delete(m.data, key)
	return ok, nil
}

func (m *Memory) ErasePrefix(_ context.Context, prefix string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for k := range m.data {
		if strings.HasPrefix(k, prefix) {
			delete(m.data, k)
		}
	}
	return nil
}

func (m *Memory) ListPrefix(_ context.Context, prefix string) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []string
	for k := range m.data {
		if strings.HasPrefix(k, prefix) {
			out = append(out, k)
		}
	}
	sort.Strings(out)
	return out, nil
}
