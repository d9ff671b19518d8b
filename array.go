package zarr

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/zarr-go/zarrcore/chunkgrid"
	"github.com/zarr-go/zarrcore/codec"
	"github.com/zarr-go/zarrcore/keyenc"
	"github.com/zarr-go/zarrcore/store"
	"github.com/zarr-go/zarrcore/subset"
	"github.com/zarr-go/zarrcore/zarrconfig"
	"github.com/zarr-go/zarrcore/zarrerrors"
	"github.com/zarr-go/zarrcore/zbytes"
)

// Array is the chunk engine: it translates whole-chunk, chunk-subset and
// array-subset operations into pipeline calls against a Store, fanning out
// across chunks and enforcing per-chunk write exclusion for subset writes.
// Grounded on the teacher's Reader (ReadRegion/ReadChunk/copyND) and
// Dataset, generalised from a fixed V2 flat-dtype reader to the V3 codec
// pipeline, N-D chunk grid and read/write symmetry this engine provides.
type Array struct {
	Store  store.Store
	Path   string
	Meta   Metadata
	Config zarrconfig.Config

	// Logger receives debug/warning diagnostics from chunk fan-out. Nil
	// falls back to a no-op logger; NewArray sets DefaultLogger.
	Logger Logger

	lockMu     sync.Mutex
	chunkLocks map[string]*sync.Mutex
}

// NewArray constructs an Array over an already-loaded Metadata document.
func NewArray(st store.Store, path string, meta Metadata, cfg zarrconfig.Config) *Array {
	return &Array{Store: st, Path: path, Meta: meta, Config: cfg, Logger: DefaultLogger, chunkLocks: make(map[string]*sync.Mutex)}
}

func (a *Array) logger() Logger {
	if a.Logger == nil {
		return noopLogger{}
	}
	return a.Logger
}

// OpenArray loads an array's metadata document and constructs an Array.
func OpenArray(ctx context.Context, st store.Store, path string, cfg zarrconfig.Config) (*Array, error) {
	meta, err := LoadMetadata(ctx, st, path, cfg)
	if err != nil {
		return nil, err
	}
	return NewArray(st, path, *meta, cfg), nil
}

func (a *Array) elemSize() uint64 { return a.Meta.DataType.Size }

func (a *Array) chunkKeyString(coord []uint64) string {
	key := a.Meta.ChunkKeyEncoding.ChunkKey(coord)
	if a.Path == "" {
		return key
	}
	return a.Path + "/" + key
}

func (a *Array) lockFor(key string) *sync.Mutex {
	a.lockMu.Lock()
	defer a.lockMu.Unlock()
	l, ok := a.chunkLocks[key]
	if !ok {
		l = &sync.Mutex{}
		a.chunkLocks[key] = l
	}
	return l
}

// chunkRepresentation returns the nominal (boundary-unclipped) codec
// representation for the chunk at coord: the shape every pipeline encode
// and decode call for this chunk uses, regardless of array bounds.
func (a *Array) chunkRepresentation(coord []uint64) (codec.Representation, error) {
	shape, err := a.Meta.ChunkGrid.NominalChunkShape(coord)
	if err != nil {
		return codec.Representation{}, err
	}
	return codec.Representation{Shape: shape, DataType: a.Meta.DataType, FillValue: a.Meta.FillValue}, nil
}

// codecOptions derives per-call codec Options from the Array's Config and
// the codec concurrency negotiated for a multi-chunk operation (§4.3/§4.5);
// concurrentTarget is the budget allotted to a single chunk's codec calls.
func (a *Array) codecOptions(concurrentTarget int) codec.Options {
	return codec.Options{
		ValidateChecksums:           a.Config.ValidateChecksums,
		StoreEmptyChunks:            a.Config.StoreEmptyChunks,
		ConcurrentTarget:            concurrentTarget,
		ExperimentalPartialEncoding: a.Config.ExperimentalPartialEncoding,
	}
}

func (a *Array) fillValueBytes(rep codec.Representation) zbytes.ArrayBytes {
	if a.Meta.DataType.Variable {
		return zbytes.FillValueVariable(rep.NumElements(), a.Meta.FillValue)
	}
	return zbytes.FillValue(rep.NumElements(), a.elemSize(), a.Meta.FillValue)
}

// RetrieveChunkIfExists decodes the chunk at coord, or reports it absent.
func (a *Array) RetrieveChunkIfExists(ctx context.Context, coord []uint64) (zbytes.ArrayBytes, bool, error) {
	return a.retrieveChunkIfExists(ctx, coord, a.codecOptions(a.Config.CodecConcurrentTarget))
}

func (a *Array) retrieveChunkIfExists(ctx context.Context, coord []uint64, opts codec.Options) (zbytes.ArrayBytes, bool, error) {
	rep, err := a.chunkRepresentation(coord)
	if err != nil {
		return zbytes.ArrayBytes{}, false, err
	}
	raw, ok, err := a.Store.Get(ctx, a.chunkKeyString(coord))
	if err != nil {
		return zbytes.ArrayBytes{}, false, err
	}
	if !ok {
		return zbytes.ArrayBytes{}, false, nil
	}
	decoded, err := a.Meta.Pipeline.Decode(ctx, raw, rep, opts)
	if err != nil {
		return zbytes.ArrayBytes{}, false, err
	}
	return decoded, true, nil
}

// RetrieveChunk decodes the chunk at coord, synthesising fill-value bytes
// of the chunk's nominal shape if it is absent (fast path: the pipeline is
// never touched on a miss).
func (a *Array) RetrieveChunk(ctx context.Context, coord []uint64) (zbytes.ArrayBytes, error) {
	return a.retrieveChunk(ctx, coord, a.codecOptions(a.Config.CodecConcurrentTarget))
}

func (a *Array) retrieveChunk(ctx context.Context, coord []uint64, opts codec.Options) (zbytes.ArrayBytes, error) {
	decoded, ok, err := a.retrieveChunkIfExists(ctx, coord, opts)
	if err != nil {
		return zbytes.ArrayBytes{}, err
	}
	if ok {
		return decoded, nil
	}
	rep, err := a.chunkRepresentation(coord)
	if err != nil {
		return zbytes.ArrayBytes{}, err
	}
	return a.fillValueBytes(rep), nil
}

// RetrieveEncodedChunk returns the raw (still encoded) bytes stored for
// coord, without running them through the pipeline.
func (a *Array) RetrieveEncodedChunk(ctx context.Context, coord []uint64) ([]byte, bool, error) {
	return a.Store.Get(ctx, a.chunkKeyString(coord))
}

// StoreChunk validates data against the chunk's representation and writes
// it, erasing the key instead of encoding when data is entirely fill value
// and StoreEmptyChunks is off.
func (a *Array) StoreChunk(ctx context.Context, coord []uint64, data zbytes.ArrayBytes) error {
	return a.storeChunk(ctx, coord, data, a.codecOptions(a.Config.CodecConcurrentTarget))
}

func (a *Array) storeChunk(ctx context.Context, coord []uint64, data zbytes.ArrayBytes, opts codec.Options) error {
	rep, err := a.chunkRepresentation(coord)
	if err != nil {
		return err
	}
	if err := data.Validate(rep.NumElements(), a.elemSize()); err != nil {
		return err
	}
	if !a.Config.StoreEmptyChunks && !a.Meta.DataType.Variable && data.IsFillValue(a.elemSize(), a.Meta.FillValue) {
		_, err := a.Store.Erase(ctx, a.chunkKeyString(coord))
		return err
	}
	encoded, err := a.Meta.Pipeline.Encode(ctx, data, rep, opts)
	if err != nil {
		return err
	}
	return a.Store.Set(ctx, a.chunkKeyString(coord), encoded)
}

// EraseChunk deletes the chunk at coord, reporting whether it existed.
func (a *Array) EraseChunk(ctx context.Context, coord []uint64) (bool, error) {
	return a.Store.Erase(ctx, a.chunkKeyString(coord))
}

// RetrieveChunkSubset reads one region of a single chunk, delegating to
// RetrieveChunk when the region is the entire chunk.
func (a *Array) RetrieveChunkSubset(ctx context.Context, coord []uint64, s subset.ArraySubset) (zbytes.ArrayBytes, error) {
	return a.retrieveChunkSubset(ctx, coord, s, a.codecOptions(a.Config.CodecConcurrentTarget))
}

func (a *Array) retrieveChunkSubset(ctx context.Context, coord []uint64, s subset.ArraySubset, opts codec.Options) (zbytes.ArrayBytes, error) {
	rep, err := a.chunkRepresentation(coord)
	if err != nil {
		return zbytes.ArrayBytes{}, err
	}
	if subset.Full(rep.Shape).Equal(s) {
		return a.retrieveChunk(ctx, coord, opts)
	}

	pd, err := a.Meta.Pipeline.PartialDecoder(ctx, a.Store, a.chunkKeyString(coord), rep, opts)
	if err != nil {
		return zbytes.ArrayBytes{}, err
	}
	out, err := pd.PartialDecode(ctx, []subset.ArraySubset{s}, opts)
	if err != nil {
		return zbytes.ArrayBytes{}, err
	}
	return out[0], nil
}

// StoreChunkSubset writes one region of a single chunk, delegating to
// StoreChunk when the region is the entire chunk. Partial writes acquire
// the chunk's exclusion lock and either partially encode in place (when
// enabled) or read-modify-write the whole chunk.
func (a *Array) StoreChunkSubset(ctx context.Context, coord []uint64, s subset.ArraySubset, data zbytes.ArrayBytes) error {
	return a.storeChunkSubset(ctx, coord, s, data, a.codecOptions(a.Config.CodecConcurrentTarget))
}

func (a *Array) storeChunkSubset(ctx context.Context, coord []uint64, s subset.ArraySubset, data zbytes.ArrayBytes, opts codec.Options) error {
	rep, err := a.chunkRepresentation(coord)
	if err != nil {
		return err
	}
	if subset.Full(rep.Shape).Equal(s) {
		return a.storeChunk(ctx, coord, data, opts)
	}

	key := a.chunkKeyString(coord)
	lock := a.lockFor(key)
	lock.Lock()
	defer lock.Unlock()

	if a.Config.ExperimentalPartialEncoding {
		pe, err := a.Meta.Pipeline.PartialEncoder(ctx, a.Store, key, rep, opts)
		if err != nil {
			return err
		}
		return pe.PartialEncode(ctx, []codec.Update{{Subset: s, Bytes: data}}, opts)
	}

	whole, err := a.retrieveChunk(ctx, coord, opts)
	if err != nil {
		return err
	}
	updated, err := whole.Update(s, rep.Shape, a.elemSize(), data)
	if err != nil {
		return err
	}
	return a.storeChunk(ctx, coord, updated, opts)
}

// chunkOverlap is one chunk's contribution to an array-subset operation:
// the chunk coordinate, the chunk-relative subset it must read/write, and
// the corresponding subset of the caller's array-space buffer.
type chunkOverlap struct {
	coord         []uint64
	subsetInChunk subset.ArraySubset
	subsetInArray subset.ArraySubset // relative to the operation's own subset, i.e. the caller's buffer frame
}

// intersectingChunks enumerates, in row-major order, every chunk that
// overlaps s along with the chunk-relative and buffer-relative sub-regions.
func (a *Array) intersectingChunks(s subset.ArraySubset) ([]chunkOverlap, error) {
	grid := a.Meta.ChunkGrid
	dims := len(a.Meta.Shape)
	if s.Dimensionality() != dims {
		return nil, fmt.Errorf("%w: subset has %d dims, array has %d", zarrerrors.ErrIncompatibleDimensionality, s.Dimensionality(), dims)
	}
	if dims == 0 {
		overlap, ok := subset.Full(nil).Intersect(s)
		if !ok {
			return nil, nil
		}
		return []chunkOverlap{{coord: nil, subsetInChunk: overlap, subsetInArray: s.Relate(overlap)}}, nil
	}

	end := s.End()
	loIdx := make([]uint64, dims)
	hiIdx := make([]uint64, dims)
	for d := 0; d < dims; d++ {
		lo, hi := chunkIndexRange(grid, d, s.Start[d], end[d])
		loIdx[d] = lo
		hiIdx[d] = hi
	}

	var out []chunkOverlap
	coord := append([]uint64(nil), loIdx...)
	for {
		chunkValidShape, err := grid.ChunkShape(coord, a.Meta.Shape)
		if err != nil {
			return nil, err
		}
		origin := grid.ChunkOrigin(coord)
		chunkValidSubset := subset.ArraySubset{Start: origin, Shape: chunkValidShape}

		if overlap, ok := s.Intersect(chunkValidSubset); ok {
			out = append(out, chunkOverlap{
				coord:         append([]uint64(nil), coord...),
				subsetInChunk: chunkValidSubset.Relate(overlap),
				subsetInArray: s.Relate(overlap),
			})
		}

		i := dims - 1
		for ; i >= 0; i-- {
			coord[i]++
			if coord[i] <= hiIdx[i] {
				break
			}
			coord[i] = loIdx[i]
		}
		if i < 0 {
			break
		}
	}
	return out, nil
}

// chunkIndexRange returns the inclusive [lo, hi] chunk-index range along
// dimension d overlapping the array-space half-open range [lo, hi).
func chunkIndexRange(grid chunkgrid.Grid, d int, lo, hi uint64) (uint64, uint64) {
	switch g := grid.(type) {
	case chunkgrid.Regular:
		return lo / g.ChunkShapeValue[d], (hi - 1) / g.ChunkShapeValue[d]
	case chunkgrid.Rectangular:
		lens := g.ChunkShapes[d]
		var cum uint64
		var loIdx, hiIdx uint64
		for i, l := range lens {
			start, end := cum, cum+l
			if lo >= start && lo < end {
				loIdx = uint64(i)
			}
			if hi-1 >= start && hi-1 < end {
				hiIdx = uint64(i)
			}
			cum = end
		}
		return loIdx, hiIdx
	default:
		n := grid.GridShape([]uint64{hi})[0]
		return 0, n - 1
	}
}

// RetrieveArraySubset assembles the decoded bytes of an arbitrary array
// region, fanning out across the chunks it intersects (§4.5).
func (a *Array) RetrieveArraySubset(ctx context.Context, s subset.ArraySubset) (zbytes.ArrayBytes, error) {
	overlaps, err := a.intersectingChunks(s)
	if err != nil {
		return zbytes.ArrayBytes{}, err
	}
	if len(overlaps) == 0 {
		rep := codec.Representation{Shape: s.Shape, DataType: a.Meta.DataType, FillValue: a.Meta.FillValue}
		return a.fillValueBytes(rep), nil
	}

	if len(overlaps) == 1 {
		o := overlaps[0]
		chunkRep, err := a.chunkRepresentation(o.coord)
		if err != nil {
			return zbytes.ArrayBytes{}, err
		}
		if subset.Full(chunkRep.Shape).Equal(o.subsetInChunk) && subset.Full(s.Shape).Equal(o.subsetInArray) {
			return a.RetrieveChunk(ctx, o.coord)
		}
	}

	rc := a.Meta.Pipeline.RecommendedConcurrency(codec.Representation{Shape: chunkNominalShapeOrFirstDim(a, overlaps), DataType: a.Meta.DataType, FillValue: a.Meta.FillValue})
	chunkConcurrency, codecConcurrency := codec.Concurrency(a.Config.CodecConcurrentTarget, len(overlaps), rc, a.Config.ChunkConcurrentMinimum)
	a.logger().Debugf("retrieving array subset %v across %d chunks with chunk concurrency %d, codec concurrency %d", s, len(overlaps), chunkConcurrency, codecConcurrency)

	pieces := make([]zbytes.ChunkPiece, len(overlaps))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(chunkConcurrency)
	opts := a.codecOptions(codecConcurrency)
	for i, o := range overlaps {
		i, o := i, o
		g.Go(func() error {
			rep, err := a.chunkRepresentation(o.coord)
			if err != nil {
				return err
			}
			pd, err := a.Meta.Pipeline.PartialDecoder(gctx, a.Store, a.chunkKeyString(o.coord), rep, opts)
			if err != nil {
				return err
			}
			out, err := pd.PartialDecode(gctx, []subset.ArraySubset{o.subsetInChunk}, opts)
			if err != nil {
				return err
			}
			pieces[i] = zbytes.ChunkPiece{
				Bytes:         out[0],
				SubsetInArray: o.subsetInArray,
				ChunkShape:    o.subsetInChunk.Shape,
				SubsetInChunk: subset.Full(o.subsetInChunk.Shape),
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return zbytes.ArrayBytes{}, err
	}

	return zbytes.Merge(s.Shape, a.elemSize(), pieces, a.Meta.DataType.Variable)
}

// chunkNominalShapeOrFirstDim is a best-effort representation used only to
// query the pipeline's recommended concurrency before fan-out; any
// intersecting chunk's nominal shape is representative since most codecs'
// concurrency advice does not vary the answer by input size.
func chunkNominalShapeOrFirstDim(a *Array, overlaps []chunkOverlap) []uint64 {
	if len(overlaps) == 0 {
		return a.Meta.Shape
	}
	shape, err := a.Meta.ChunkGrid.NominalChunkShape(overlaps[0].coord)
	if err != nil {
		a.logger().Warnf("chunk grid could not report a nominal shape for chunk %v, falling back to array shape for concurrency advice: %v", overlaps[0].coord, err)
		return a.Meta.Shape
	}
	return shape
}

// StoreArraySubset writes data (shaped like s) into the array, fanning out
// across the chunks it intersects and preferring whole-chunk writes where
// the subset fully covers a chunk.
func (a *Array) StoreArraySubset(ctx context.Context, s subset.ArraySubset, data zbytes.ArrayBytes) error {
	overlaps, err := a.intersectingChunks(s)
	if err != nil {
		return err
	}
	if len(overlaps) == 0 {
		return nil
	}

	rc := a.Meta.Pipeline.RecommendedConcurrency(codec.Representation{Shape: chunkNominalShapeOrFirstDim(a, overlaps), DataType: a.Meta.DataType, FillValue: a.Meta.FillValue})
	chunkConcurrency, codecConcurrency := codec.Concurrency(a.Config.CodecConcurrentTarget, len(overlaps), rc, a.Config.ChunkConcurrentMinimum)
	a.logger().Debugf("storing array subset %v across %d chunks with chunk concurrency %d, codec concurrency %d", s, len(overlaps), chunkConcurrency, codecConcurrency)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(chunkConcurrency)
	opts := a.codecOptions(codecConcurrency)
	for _, o := range overlaps {
		o := o
		g.Go(func() error {
			piece, err := data.Extract(o.subsetInArray, s.Shape, a.elemSize())
			if err != nil {
				return err
			}
			if err := a.storeChunkSubset(gctx, o.coord, o.subsetInChunk, piece, opts); err != nil {
				a.logger().Warnf("storing subset of chunk %v failed: %v", o.coord, err)
				return err
			}
			return nil
		})
	}
	return g.Wait()
}

// RetrieveChunks reads the array region covered by a half-open range of
// chunk coordinates, expressed in terms of RetrieveArraySubset (§4.5).
func (a *Array) RetrieveChunks(ctx context.Context, chunksSubset subset.ArraySubset) (zbytes.ArrayBytes, error) {
	s, err := a.chunksSubsetToArraySubset(chunksSubset)
	if err != nil {
		return zbytes.ArrayBytes{}, err
	}
	return a.RetrieveArraySubset(ctx, s)
}

// StoreChunks writes data into the array region covered by a half-open
// range of chunk coordinates, expressed in terms of StoreArraySubset.
func (a *Array) StoreChunks(ctx context.Context, chunksSubset subset.ArraySubset, data zbytes.ArrayBytes) error {
	s, err := a.chunksSubsetToArraySubset(chunksSubset)
	if err != nil {
		return err
	}
	return a.StoreArraySubset(ctx, s, data)
}

// chunksSubsetToArraySubset converts a subset expressed in chunk-grid
// coordinates into the array-space subset it covers, clipped to the
// array's own shape along every dimension.
func (a *Array) chunksSubsetToArraySubset(chunksSubset subset.ArraySubset) (subset.ArraySubset, error) {
	dims := len(a.Meta.Shape)
	if chunksSubset.Dimensionality() != dims {
		return subset.ArraySubset{}, fmt.Errorf("%w: chunks subset has %d dims, array has %d", zarrerrors.ErrIncompatibleDimensionality, chunksSubset.Dimensionality(), dims)
	}
	start := make([]uint64, dims)
	end := make([]uint64, dims)
	chunksEnd := chunksSubset.End()
	for d := 0; d < dims; d++ {
		startCoord := make([]uint64, dims)
		startCoord[d] = chunksSubset.Start[d]
		start[d] = a.Meta.ChunkGrid.ChunkOrigin(startCoord)[d]

		lastCoord := make([]uint64, dims)
		lastCoord[d] = chunksEnd[d] - 1
		lastOrigin := a.Meta.ChunkGrid.ChunkOrigin(lastCoord)[d]
		lastShape, err := a.Meta.ChunkGrid.ChunkShape(lastCoord, a.Meta.Shape)
		if err != nil {
			return subset.ArraySubset{}, err
		}
		e := lastOrigin + lastShape[d]
		if e > a.Meta.Shape[d] {
			e = a.Meta.Shape[d]
		}
		end[d] = e
	}
	shape := make([]uint64, dims)
	for d := 0; d < dims; d++ {
		shape[d] = end[d] - start[d]
	}
	return subset.ArraySubset{Start: start, Shape: shape}, nil
}

// ChunksWithData lists the chunk keys (relative to the array's path) that
// currently have stored data, via the store's prefix listing. Grounded on
// the teacher's bucket-listing use in Reader/Dataset, generalised to a
// plain existence scan over chunk keys (no decode). The listing prefix
// depends on the array's chunk key encoding: V3's keyenc.Default keys all
// share the "c" prefix, but V2's keyenc.V2 keys (e.g. "0.0") have none, so
// that encoding lists the whole array directory and filters out the V2
// metadata documents instead.
func (a *Array) ChunksWithData(ctx context.Context) ([]string, error) {
	prefix := a.Path
	if prefix != "" {
		prefix += "/"
	}

	if _, isV2 := a.Meta.ChunkKeyEncoding.(keyenc.V2); isV2 {
		keys, err := a.Store.ListPrefix(ctx, prefix)
		if err != nil {
			return nil, err
		}
		out := make([]string, 0, len(keys))
		for _, k := range keys {
			switch strings.TrimPrefix(k, prefix) {
			case ".zarray", ".zattrs", ".zgroup":
				continue
			}
			out = append(out, k)
		}
		return out, nil
	}

	keys, err := a.Store.ListPrefix(ctx, prefix+"c")
	if err != nil {
		return nil, err
	}
	return keys, nil
}

// EraseMetadata removes the array's metadata document(s), honouring
// Config.MetadataEraseVersion.
func (a *Array) EraseMetadata(ctx context.Context) error {
	v := a.Config.MetadataEraseVersion
	if v == zarrconfig.MetadataEraseDefault {
		if a.Meta.ZarrFormat == 2 {
			v = zarrconfig.MetadataEraseV2
		} else {
			v = zarrconfig.MetadataEraseV3
		}
	}
	var errV3, errV2 error
	if v == zarrconfig.MetadataEraseAll || v == zarrconfig.MetadataEraseV3 {
		_, errV3 = a.Store.Erase(ctx, metadataKeyV3(a.Path))
	}
	if v == zarrconfig.MetadataEraseAll || v == zarrconfig.MetadataEraseV2 {
		_, errV2 = a.Store.Erase(ctx, metadataKeyV2(a.Path))
	}
	if errV3 != nil {
		return errV3
	}
	return errV2
}
