// Package sharding implements the sharding_indexed array->bytes codec
// (§4.4): one outer chunk ("shard") holds a regular grid of inner chunks,
// each independently encoded through an inner codec pipeline, plus an index
// of (offset, nbytes) pairs encoded through its own codec pipeline. This
// lets many small inner chunks share one store object while keeping direct
// random access to any of them. Grounded on spec.md §4.4 (no
// original_source/ Rust body for the sharding codec proper survived
// extraction, only sharding_codec_builder.rs, which is too sparse to copy
// logic from) and on the chunk-grid/array-bytes primitives built for the
// rest of this engine.
package sharding

import (
	"context"
	"encoding/binary"
	"fmt"

	"github.com/zarr-go/zarrcore/chunkgrid"
	"github.com/zarr-go/zarrcore/codec"
	"github.com/zarr-go/zarrcore/subset"
	"github.com/zarr-go/zarrcore/zarrerrors"
	"github.com/zarr-go/zarrcore/zarrtype"
	"github.com/zarr-go/zarrcore/zbytes"
)

// IndexLocation selects where the encoded index sits within the shard.
type IndexLocation int

const (
	IndexEnd IndexLocation = iota
	IndexStart
)

func (l IndexLocation) String() string {
	if l == IndexStart {
		return "start"
	}
	return "end"
}

// indexEntrySize is the encoded size of one (offset, nbytes) index entry:
// two 64-bit little-endian unsigned integers.
const indexEntrySize = 16

// missingSentinel is the all-ones 64-bit value marking an absent inner chunk.
const missingSentinel = ^uint64(0)

var indexEntryDataType = zarrtype.DataType{Name: "uint64", Kind: zarrtype.KindUint, Size: 8}

// Codec is the sharding_indexed codec (§4.4).
type Codec struct {
	InnerChunkShape []uint64
	InnerPipeline   codec.Pipeline
	IndexPipeline   codec.Pipeline
	IndexLocation   IndexLocation
}

func New(innerChunkShape []uint64, inner, index codec.Pipeline, loc IndexLocation) *Codec {
	return &Codec{InnerChunkShape: innerChunkShape, InnerPipeline: inner, IndexPipeline: index, IndexLocation: loc}
}

func (c *Codec) Identifier() string { return "sharding_indexed" }

func (c *Codec) Configuration() any {
	return map[string]any{
		"chunk_shape":    c.InnerChunkShape,
		"index_location": c.IndexLocation.String(),
	}
}

// innerRepresentation returns the per-inner-chunk representation, checking
// that InnerChunkShape evenly divides rep.Shape (§4.4's configuration
// invariant).
func (c *Codec) innerRepresentation(rep codec.Representation) (codec.Representation, error) {
	if len(c.InnerChunkShape) != len(rep.Shape) {
		return codec.Representation{}, fmt.Errorf("%w: shard has %d dims, inner chunk shape has %d", zarrerrors.ErrIncompatibleDimensionality, len(rep.Shape), len(c.InnerChunkShape))
	}
	for i, d := range rep.Shape {
		if c.InnerChunkShape[i] == 0 || d%c.InnerChunkShape[i] != 0 {
			return codec.Representation{}, fmt.Errorf("%w: inner chunk shape %v does not evenly divide shard shape %v", zarrerrors.ErrInvalidArraySubset, c.InnerChunkShape, rep.Shape)
		}
	}
	return codec.Representation{Shape: c.InnerChunkShape, DataType: rep.DataType, FillValue: rep.FillValue}, nil
}

// gridShape returns the number of inner chunks per dimension.
func (c *Codec) gridShape(rep codec.Representation) []uint64 {
	return chunkgrid.Regular{ChunkShapeValue: c.InnerChunkShape}.GridShape(rep.Shape)
}

// numInnerChunks returns P, the total inner chunk count.
func numInnerChunks(grid []uint64) uint64 {
	p := uint64(1)
	for _, d := range grid {
		p *= d
	}
	return p
}

// gridCoord decomposes a row-major flat inner-chunk index into a coordinate.
func gridCoord(flat uint64, grid []uint64) []uint64 {
	coord := make([]uint64, len(grid))
	for i := len(grid) - 1; i >= 0; i-- {
		coord[i] = flat % grid[i]
		flat /= grid[i]
	}
	return coord
}

// innerSubset returns the full-array subset covered by inner chunk flat.
func innerSubset(flat uint64, grid []uint64, innerShape []uint64) subset.ArraySubset {
	coord := gridCoord(flat, grid)
	start := make([]uint64, len(coord))
	for i, c := range coord {
		start[i] = c * innerShape[i]
	}
	s, _ := subset.New(start, innerShape)
	return s
}

func (c *Codec) indexRepresentation(p uint64) codec.Representation {
	return codec.Representation{
		Shape:     []uint64{p, 2},
		DataType:  indexEntryDataType,
		FillValue: make([]byte, 8),
	}
}

// indexEncodedSize returns the index pipeline's encoded byte length, which
// must be deterministic (SizeFixed): the shard layout needs to know exactly
// where the index ends (IndexStart) or begins (IndexEnd) without decoding
// the inner-chunks region first.
func (c *Codec) indexEncodedSize(p uint64) (uint64, error) {
	size, err := c.IndexPipeline.EncodedSize(c.indexRepresentation(p))
	if err != nil {
		return 0, err
	}
	if size.Kind != codec.SizeFixed {
		return 0, fmt.Errorf("%w: index codec pipeline must have a fixed encoded size", zarrerrors.ErrInvalidShardIndex)
	}
	return size.Size, nil
}

func readEntry(raw []byte, i int) (offset, nbytes uint64) {
	base := i * indexEntrySize
	return binary.LittleEndian.Uint64(raw[base:]), binary.LittleEndian.Uint64(raw[base+8:])
}

func writeEntry(raw []byte, i int, offset, nbytes uint64) {
	base := i * indexEntrySize
	binary.LittleEndian.PutUint64(raw[base:], offset)
	binary.LittleEndian.PutUint64(raw[base+8:], nbytes)
}

// decodeIndex decodes the index bytes into P (offset, nbytes) entries.
func (c *Codec) decodeIndex(ctx context.Context, encoded []byte, p uint64, opts codec.Options) ([]byte, error) {
	ab, err := c.IndexPipeline.Decode(ctx, encoded, c.indexRepresentation(p), opts)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", zarrerrors.ErrInvalidShardIndex, err)
	}
	want := p * 2 * 8
	if uint64(len(ab.Fixed)) != want {
		return nil, fmt.Errorf("%w: decoded index is %d bytes, want %d", zarrerrors.ErrInvalidShardIndex, len(ab.Fixed), want)
	}
	return ab.Fixed, nil
}

// splitShard separates a shard's raw bytes into (indexBytes, innerBytes)
// according to IndexLocation, given the index's known encoded length.
func (c *Codec) splitShard(raw []byte, indexLen uint64) (indexBytes, innerBytes []byte, err error) {
	if uint64(len(raw)) < indexLen {
		return nil, nil, fmt.Errorf("%w: shard is %d bytes, shorter than index length %d", zarrerrors.ErrInvalidShardIndex, len(raw), indexLen)
	}
	if c.IndexLocation == IndexStart {
		return raw[:indexLen], raw[indexLen:], nil
	}
	split := uint64(len(raw)) - indexLen
	return raw[split:], raw[:split], nil
}

func (c *Codec) joinShard(indexBytes, innerBytes []byte) []byte {
	out := make([]byte, 0, len(indexBytes)+len(innerBytes))
	if c.IndexLocation == IndexStart {
		out = append(out, indexBytes...)
		out = append(out, innerBytes...)
	} else {
		out = append(out, innerBytes...)
		out = append(out, indexBytes...)
	}
	return out
}

// Encode implements §4.4's encoding algorithm.
func (c *Codec) Encode(ctx context.Context, input zbytes.ArrayBytes, rep codec.Representation, opts codec.Options) ([]byte, error) {
	innerRep, err := c.innerRepresentation(rep)
	if err != nil {
		return nil, err
	}
	grid := c.gridShape(rep)
	p := numInnerChunks(grid)
	elemSize := rep.DataType.Size

	index := make([]byte, p*indexEntrySize)
	var innerRegion []byte
	for flat := uint64(0); flat < p; flat++ {
		s := innerSubset(flat, grid, c.InnerChunkShape)
		chunkBytes, err := input.Extract(s, rep.Shape, elemSize)
		if err != nil {
			return nil, err
		}

		if !opts.StoreEmptyChunks && !rep.DataType.Variable && chunkBytes.IsFillValue(elemSize, rep.FillValue) {
			writeEntry(index, int(flat), missingSentinel, missingSentinel)
			continue
		}

		encoded, err := c.InnerPipeline.Encode(ctx, chunkBytes, innerRep, opts)
		if err != nil {
			return nil, fmt.Errorf("zarr: sharding: inner chunk %d: %w", flat, err)
		}
		writeEntry(index, int(flat), uint64(len(innerRegion)), uint64(len(encoded)))
		innerRegion = append(innerRegion, encoded...)
	}

	encodedIndex, err := c.IndexPipeline.Encode(ctx, zbytes.NewFixed(index), c.indexRepresentation(p), opts)
	if err != nil {
		return nil, fmt.Errorf("zarr: sharding: index: %w", err)
	}
	return c.joinShard(encodedIndex, innerRegion), nil
}

// Decode implements §4.4's decoding algorithm.
func (c *Codec) Decode(ctx context.Context, input []byte, rep codec.Representation, opts codec.Options) (zbytes.ArrayBytes, error) {
	innerRep, err := c.innerRepresentation(rep)
	if err != nil {
		return zbytes.ArrayBytes{}, err
	}
	grid := c.gridShape(rep)
	p := numInnerChunks(grid)
	elemSize := rep.DataType.Size

	indexLen, err := c.indexEncodedSize(p)
	if err != nil {
		return zbytes.ArrayBytes{}, err
	}
	encodedIndex, innerRegion, err := c.splitShard(input, indexLen)
	if err != nil {
		return zbytes.ArrayBytes{}, err
	}
	index, err := c.decodeIndex(ctx, encodedIndex, p, opts)
	if err != nil {
		return zbytes.ArrayBytes{}, err
	}

	var out zbytes.ArrayBytes
	if rep.DataType.Variable {
		out = zbytes.FillValueVariable(rep.NumElements(), rep.FillValue)
	} else {
		out = zbytes.FillValue(rep.NumElements(), elemSize, rep.FillValue)
	}

	for flat := uint64(0); flat < p; flat++ {
		offset, nbytes := readEntry(index, int(flat))
		if offset == missingSentinel && nbytes == missingSentinel {
			continue
		}
		if offset+nbytes > uint64(len(innerRegion)) {
			return zbytes.ArrayBytes{}, fmt.Errorf("%w: inner chunk %d range [%d,%d) exceeds shard inner region of %d bytes", zarrerrors.ErrInvalidShardIndex, flat, offset, offset+nbytes, len(innerRegion))
		}
		segment := innerRegion[offset : offset+nbytes]
		chunkBytes, err := c.InnerPipeline.Decode(ctx, segment, innerRep, opts)
		if err != nil {
			return zbytes.ArrayBytes{}, fmt.Errorf("zarr: sharding: inner chunk %d: %w", flat, err)
		}
		s := innerSubset(flat, grid, c.InnerChunkShape)
		out, err = out.Update(s, rep.Shape, elemSize, chunkBytes)
		if err != nil {
			return zbytes.ArrayBytes{}, err
		}
	}
	return out, nil
}

// EncodedSize returns a bound on the shard's encoded size when both the
// index and inner pipelines predict one; otherwise SizeUnbounded (most
// configurations compress inner chunks, so this is the common case).
func (c *Codec) EncodedSize(rep codec.Representation) codec.Size {
	innerRep, err := c.innerRepresentation(rep)
	if err != nil {
		return codec.Size{Kind: codec.SizeUnbounded}
	}
	grid := c.gridShape(rep)
	p := numInnerChunks(grid)

	indexSize, err := c.IndexPipeline.EncodedSize(c.indexRepresentation(p))
	if err != nil || indexSize.Kind == codec.SizeUnbounded {
		return codec.Size{Kind: codec.SizeUnbounded}
	}
	innerSize, err := c.InnerPipeline.EncodedSize(innerRep)
	if err != nil || innerSize.Kind == codec.SizeUnbounded {
		return codec.Size{Kind: codec.SizeUnbounded}
	}
	return codec.Size{Kind: codec.SizeBounded, Size: indexSize.Size + p*innerSize.Size}
}

// RecommendedConcurrency reports the inner pipeline's concurrency scaled by
// the number of independently-parallelisable inner chunks.
func (c *Codec) RecommendedConcurrency(rep codec.Representation) codec.RecommendedConcurrency {
	innerRep, err := c.innerRepresentation(rep)
	if err != nil {
		return codec.RecommendedConcurrency{Min: 1, Max: 1}
	}
	grid := c.gridShape(rep)
	p := numInnerChunks(grid)
	inner := c.InnerPipeline.RecommendedConcurrency(innerRep)
	maxc := inner.Max
	if scaled := int(p) * inner.Max; scaled > maxc {
		maxc = scaled
	}
	if maxc < inner.Min {
		maxc = inner.Min
	}
	return codec.RecommendedConcurrency{Min: inner.Min, Max: maxc}
}
