// Package zarrtype describes Zarr data types and fill values: the element
// semantics and byte width that the codec pipeline and chunk engine encode
// and decode against. Grounded on the teacher's ParseDType (numpy-style
// dtype strings) generalised to Zarr V3 identifiers.
package zarrtype

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/zarr-go/zarrcore/zarrerrors"
)

// Kind identifies the element semantics of a DataType.
type Kind int

const (
	KindBool Kind = iota
	KindInt
	KindUint
	KindFloat
	KindComplex
	KindRawBits
	KindString // variable-length UTF-8
	KindBytes  // variable-length raw bytes
)

// DataType is a tag identifying element semantics and size. Size is either
// fixed (bytes per element) or variable (per-element length stored
// separately in an ArrayBytes offsets array).
type DataType struct {
	Name     string // Zarr V3 identifier, e.g. "int32", "float64", "string"
	Kind     Kind
	Size     uint64 // bytes per element; 0 for variable-length types
	Variable bool
}

var registry = map[string]DataType{
	"bool":       {Name: "bool", Kind: KindBool, Size: 1},
	"int8":       {Name: "int8", Kind: KindInt, Size: 1},
	"int16":      {Name: "int16", Kind: KindInt, Size: 2},
	"int32":      {Name: "int32", Kind: KindInt, Size: 4},
	"int64":      {Name: "int64", Kind: KindInt, Size: 8},
	"uint8":      {Name: "uint8", Kind: KindUint, Size: 1},
	"uint16":     {Name: "uint16", Kind: KindUint, Size: 2},
	"uint32":     {Name: "uint32", Kind: KindUint, Size: 4},
	"uint64":     {Name: "uint64", Kind: KindUint, Size: 8},
	"float32":    {Name: "float32", Kind: KindFloat, Size: 4},
	"float64":    {Name: "float64", Kind: KindFloat, Size: 8},
	"complex64":  {Name: "complex64", Kind: KindComplex, Size: 8},
	"complex128": {Name: "complex128", Kind: KindComplex, Size: 16},
	"string":     {Name: "string", Kind: KindString, Variable: true},
	"bytes":      {Name: "bytes", Kind: KindBytes, Variable: true},
}

// Lookup resolves a Zarr V3 data type identifier.
func Lookup(name string) (DataType, error) {
	if dt, ok := registry[name]; ok {
		return dt, nil
	}
	if strings.HasPrefix(name, "r") {
		if bits, err := strconv.Atoi(name[1:]); err == nil && bits > 0 && bits%8 == 0 {
			return DataType{Name: name, Kind: KindRawBits, Size: uint64(bits / 8)}, nil
		}
	}
	return DataType{}, fmt.Errorf("%w: %s", zarrerrors.ErrUnsupportedDataType, name)
}

// ParseNumpyDType parses a numpy-style dtype string ("<f4", "|b1", ">i8")
// into a Zarr V3 DataType. Grounded on the teacher's ParseDType; extended
// here to accept big-endian ('>') strings, surfaced via the endianness on
// the bytes codec rather than rejected outright.
func ParseNumpyDType(s string) (DataType, bool, error) {
	if len(s) < 3 {
		return DataType{}, false, fmt.Errorf("%w: invalid dtype %q", zarrerrors.ErrUnsupportedDataType, s)
	}
	endian := s[0]
	if endian != '<' && endian != '>' && endian != '|' {
		return DataType{}, false, fmt.Errorf("%w: invalid dtype %q", zarrerrors.ErrUnsupportedDataType, s)
	}
	bigEndian := endian == '>'

	kind := s[1]
	size, err := strconv.Atoi(s[2:])
	if err != nil {
		return DataType{}, false, fmt.Errorf("%w: invalid size in dtype %q", zarrerrors.ErrUnsupportedDataType, s)
	}

	var name string
	switch kind {
	case 'b':
		name = "bool"
	case 'i':
		name = fmt.Sprintf("int%d", size*8)
	case 'u':
		name = fmt.Sprintf("uint%d", size*8)
	case 'f':
		name = fmt.Sprintf("float%d", size*8)
	case 'c':
		name = fmt.Sprintf("complex%d", size*8)
	default:
		return DataType{}, false, fmt.Errorf("%w: unsupported dtype kind %q in %q", zarrerrors.ErrUnsupportedDataType, string(kind), s)
	}

	dt, err := Lookup(name)
	if err != nil {
		return DataType{}, false, err
	}
	return dt, bigEndian, nil
}

// ValidateFillValue checks a decoded fill-value byte pattern against a
// fixed-size data type's width (invariant 2, §3).
func ValidateFillValue(dt DataType, fillValue []byte) error {
	if dt.Variable {
		return nil
	}
	if uint64(len(fillValue)) != dt.Size {
		return fmt.Errorf("%w: data type %s has width %d, fill value has %d bytes", zarrerrors.ErrIncompatibleFillValue, dt.Name, dt.Size, len(fillValue))
	}
	return nil
}

// DefaultFillValue returns the zero-valued fill pattern for dt (all-zero
// bytes for fixed-size types, an empty element for variable-length types).
func DefaultFillValue(dt DataType) []byte {
	if dt.Variable {
		return []byte{}
	}
	return make([]byte, dt.Size)
}

// NaNFloat32Bytes and NaNFloat64Bytes return the little-endian NaN byte
// pattern that fill-value JSON decoding produces for the "NaN" literal (§6).
func NaNFloat32Bytes() []byte {
	b := make([]byte, 4)
	putUint32LE(b, math.Float32bits(float32(math.NaN())))
	return b
}

func NaNFloat64Bytes() []byte {
	b := make([]byte, 8)
	putUint64LE(b, math.Float64bits(math.NaN()))
	return b
}

func putUint32LE(b []byte, v uint32) {
	b[0] = byte(v)
	b[1] = byte(v >> 8)
	b[2] = byte(v >> 16)
	b[3] = byte(v >> 24)
}

func putUint64LE(b []byte, v uint64) {
	for i := 0; i < 8; i++ {
		b[i] = byte(v >> (8 * i))
	}
}
