// Package keyenc implements the chunk key encoding: the function mapping a
// chunk coordinate to a store key. Grounded on the teacher's ChunkKey
// (zarr/chunk.go), generalised to both the V3 "c/i0/i1" default convention
// and the V2 "i0.i1" convention with a configurable separator.
package keyenc

import (
	"strconv"
	"strings"
)

// Encoding maps a chunk coordinate to a store key suffix (relative to the
// array's path; the caller joins it with "<array_path>/").
type Encoding interface {
	ChunkKey(coord []uint64) string
}

// Default is the Zarr V3 default chunk key encoding: a "c" prefix followed
// by the coordinate joined with Separator (e.g. "c/0/1/2"). A 0-D array's
// single chunk has the key "c".
type Default struct {
	Separator string // "/" by default
}

func (d Default) sep() string {
	if d.Separator == "" {
		return "/"
	}
	return d.Separator
}

func (d Default) ChunkKey(coord []uint64) string {
	if len(coord) == 0 {
		return "c"
	}
	var sb strings.Builder
	sb.WriteString("c")
	sep := d.sep()
	for _, c := range coord {
		sb.WriteString(sep)
		sb.WriteString(strconv.FormatUint(c, 10))
	}
	return sb.String()
}

// V2 is the Zarr V2 chunk key encoding: the coordinate joined with
// Separator ("." by default), with no prefix. A 0-D array's single chunk
// has the key "0".
type V2 struct {
	Separator string // "." by default
}

func (v V2) sep() string {
	if v.Separator == "" {
		return "."
	}
	return v.Separator
}

func (v V2) ChunkKey(coord []uint64) string {
	if len(coord) == 0 {
		return "0"
	}
	if len(coord) == 1 {
		return strconv.FormatUint(coord[0], 10)
	}
	var sb strings.Builder
	sep := v.sep()
	for i, c := range coord {
		if i > 0 {
			sb.WriteString(sep)
		}
		sb.WriteString(strconv.FormatUint(c, 10))
	}
	return sb.String()
}
