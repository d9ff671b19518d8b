// Package chunkgrid implements the function mapping an N-D array index to
// (chunk coordinate, in-chunk index): the regular grid (equal chunk shape
// throughout) and the rectangular grid (per-dimension chunk length
// sequences), per §3 of the data model.
package chunkgrid

import (
	"fmt"

	"github.com/zarr-go/zarrcore/zarrerrors"
)

// Grid maps array shape and indices to chunks.
type Grid interface {
	// GridShape returns the number of chunks along each dimension for the
	// given array shape.
	GridShape(arrayShape []uint64) []uint64

	// ChunkShape returns the shape of the chunk at chunkCoord: the uniform
	// grid shape, or (for boundary chunks) that shape truncated to the
	// array bounds. This is the chunk's *valid* region, used to intersect
	// it against a requested array subset; it is not the shape the codec
	// pipeline encodes against (see NominalChunkShape).
	ChunkShape(chunkCoord []uint64, arrayShape []uint64) ([]uint64, error)

	// NominalChunkShape returns the full shape the codec pipeline encodes
	// and decodes a chunk at chunkCoord against, regardless of array
	// bounds: a boundary chunk still stores a full chunk's worth of
	// elements, the portion beyond the array's logical shape holding fill
	// value. For Rectangular grids this coincides with ChunkShape, since a
	// rectangular grid's per-chunk lengths never overrun the array.
	NominalChunkShape(chunkCoord []uint64) ([]uint64, error)

	// ChunkOrigin returns the array-space start coordinate of chunkCoord.
	ChunkOrigin(chunkCoord []uint64) []uint64

	// Dimensionality returns the number of dimensions this grid describes.
	Dimensionality() int
}

// Regular is a chunk grid with equal chunk shape throughout.
type Regular struct {
	ChunkShapeValue []uint64
}

func (r Regular) Dimensionality() int { return len(r.ChunkShapeValue) }

func (r Regular) GridShape(arrayShape []uint64) []uint64 {
	grid := make([]uint64, len(arrayShape))
	for i := range arrayShape {
		grid[i] = ceilDiv(arrayShape[i], r.ChunkShapeValue[i])
	}
	return grid
}

func (r Regular) ChunkShape(chunkCoord []uint64, arrayShape []uint64) ([]uint64, error) {
	if len(chunkCoord) != len(r.ChunkShapeValue) || len(arrayShape) != len(r.ChunkShapeValue) {
		return nil, fmt.Errorf("%w: grid has %d dims", zarrerrors.ErrIncompatibleDimensionality, len(r.ChunkShapeValue))
	}
	shape := make([]uint64, len(chunkCoord))
	for i := range chunkCoord {
		start := chunkCoord[i] * r.ChunkShapeValue[i]
		if start >= arrayShape[i] {
			return nil, fmt.Errorf("%w: chunk coord %d at dim %d", zarrerrors.ErrInvalidChunkCoordinate, chunkCoord[i], i)
		}
		end := start + r.ChunkShapeValue[i]
		if end > arrayShape[i] {
			end = arrayShape[i]
		}
		shape[i] = end - start
	}
	return shape, nil
}

func (r Regular) NominalChunkShape(chunkCoord []uint64) ([]uint64, error) {
	if len(chunkCoord) != len(r.ChunkShapeValue) {
		return nil, fmt.Errorf("%w: grid has %d dims", zarrerrors.ErrIncompatibleDimensionality, len(r.ChunkShapeValue))
	}
	return append([]uint64(nil), r.ChunkShapeValue...), nil
}

func (r Regular) ChunkOrigin(chunkCoord []uint64) []uint64 {
	origin := make([]uint64, len(chunkCoord))
	for i := range chunkCoord {
		origin[i] = chunkCoord[i] * r.ChunkShapeValue[i]
	}
	return origin
}

// Rectangular is a chunk grid whose chunk length varies per dimension via a
// per-dimension sequence of chunk lengths (the last entry in each dimension
// may be shorter, covering the array's remainder).
type Rectangular struct {
	// ChunkShapes[dim] lists the chunk lengths along dimension dim, in order.
	ChunkShapes [][]uint64
}

func (r Rectangular) Dimensionality() int { return len(r.ChunkShapes) }

func (r Rectangular) GridShape(arrayShape []uint64) []uint64 {
	grid := make([]uint64, len(r.ChunkShapes))
	for i := range r.ChunkShapes {
		grid[i] = uint64(len(r.ChunkShapes[i]))
	}
	return grid
}

func (r Rectangular) ChunkShape(chunkCoord []uint64, arrayShape []uint64) ([]uint64, error) {
	if len(chunkCoord) != len(r.ChunkShapes) {
		return nil, fmt.Errorf("%w: grid has %d dims", zarrerrors.ErrIncompatibleDimensionality, len(r.ChunkShapes))
	}
	shape := make([]uint64, len(chunkCoord))
	for i, c := range chunkCoord {
		if c >= uint64(len(r.ChunkShapes[i])) {
			return nil, fmt.Errorf("%w: chunk coord %d at dim %d", zarrerrors.ErrInvalidChunkCoordinate, c, i)
		}
		shape[i] = r.ChunkShapes[i][c]
	}
	return shape, nil
}

func (r Rectangular) NominalChunkShape(chunkCoord []uint64) ([]uint64, error) {
	return r.ChunkShape(chunkCoord, nil)
}

func (r Rectangular) ChunkOrigin(chunkCoord []uint64) []uint64 {
	origin := make([]uint64, len(chunkCoord))
	for i, c := range chunkCoord {
		var sum uint64
		for j := uint64(0); j < c; j++ {
			sum += r.ChunkShapes[i][j]
		}
		origin[i] = sum
	}
	return origin
}

func ceilDiv(a, b uint64) uint64 {
	if b == 0 {
		return 0
	}
	return (a + b - 1) / b
}
