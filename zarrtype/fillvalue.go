package zarrtype

import (
	"encoding/binary"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/zarr-go/zarrcore/zarrerrors"
)

// DecodeFillValueJSON converts a decoded JSON fill-value literal (§6) into
// the element-sized byte pattern used by the chunk engine: a bool literal,
// a signed/unsigned JSON number, a float (JSON number, "Infinity",
// "-Infinity", "NaN", or "0x<hex>" big-endian bit pattern), a 2-element
// array of floats for complex, a JSON array of per-byte unsigned integers
// for raw bits, or a JSON string for the string data type.
func DecodeFillValueJSON(dt DataType, v any) ([]byte, error) {
	switch dt.Kind {
	case KindBool:
		b, ok := v.(bool)
		if !ok {
			return nil, fmt.Errorf("%w: expected bool fill value for %s", zarrerrors.ErrIncompatibleFillValue, dt.Name)
		}
		if b {
			return []byte{1}, nil
		}
		return []byte{0}, nil

	case KindInt:
		n, err := jsonNumberToInt64(v)
		if err != nil {
			return nil, err
		}
		return intBytes(n, dt.Size), nil

	case KindUint:
		n, err := jsonNumberToUint64(v)
		if err != nil {
			return nil, err
		}
		return uintBytes(n, dt.Size), nil

	case KindFloat:
		return decodeFloatFillValue(v, dt.Size)

	case KindComplex:
		arr, ok := v.([]any)
		if !ok || len(arr) != 2 {
			return nil, fmt.Errorf("%w: expected 2-element array for complex fill value", zarrerrors.ErrIncompatibleFillValue)
		}
		half := dt.Size / 2
		re, err := decodeFloatFillValue(arr[0], half)
		if err != nil {
			return nil, err
		}
		im, err := decodeFloatFillValue(arr[1], half)
		if err != nil {
			return nil, err
		}
		return append(re, im...), nil

	case KindRawBits:
		arr, ok := v.([]any)
		if !ok {
			return nil, fmt.Errorf("%w: expected byte array for raw-bits fill value", zarrerrors.ErrIncompatibleFillValue)
		}
		out := make([]byte, len(arr))
		for i, e := range arr {
			n, err := jsonNumberToUint64(e)
			if err != nil {
				return nil, err
			}
			if n > 255 {
				return nil, fmt.Errorf("%w: raw-bits byte %d out of range", zarrerrors.ErrIncompatibleFillValue, n)
			}
			out[i] = byte(n)
		}
		return out, nil

	case KindString, KindBytes:
		s, ok := v.(string)
		if !ok {
			return nil, fmt.Errorf("%w: expected string fill value for %s", zarrerrors.ErrIncompatibleFillValue, dt.Name)
		}
		return []byte(s), nil
	}
	return nil, fmt.Errorf("%w: no fill-value decoding for kind %v", zarrerrors.ErrIncompatibleFillValue, dt.Kind)
}

func decodeFloatFillValue(v any, size uint64) ([]byte, error) {
	if s, ok := v.(string); ok {
		switch s {
		case "Infinity":
			return floatBytes(math.Inf(1), size), nil
		case "-Infinity":
			return floatBytes(math.Inf(-1), size), nil
		case "NaN":
			return floatBytes(math.NaN(), size), nil
		}
		if strings.HasPrefix(s, "0x") {
			raw, err := strconv.ParseUint(s[2:], 16, 64)
			if err != nil {
				return nil, fmt.Errorf("%w: invalid hex float fill value %q", zarrerrors.ErrIncompatibleFillValue, s)
			}
			b := make([]byte, size)
			switch size {
			case 4:
				binary.BigEndian.PutUint32(b, uint32(raw))
			case 8:
				binary.BigEndian.PutUint64(b, raw)
			default:
				return nil, fmt.Errorf("%w: hex float fill value unsupported for width %d", zarrerrors.ErrIncompatibleFillValue, size)
			}
			return b, nil
		}
		return nil, fmt.Errorf("%w: invalid float fill value string %q", zarrerrors.ErrIncompatibleFillValue, s)
	}

	f, err := jsonNumberToFloat64(v)
	if err != nil {
		return nil, err
	}
	return floatBytes(f, size), nil
}

func floatBytes(f float64, size uint64) []byte {
	b := make([]byte, size)
	switch size {
	case 4:
		binary.LittleEndian.PutUint32(b, math.Float32bits(float32(f)))
	case 8:
		binary.LittleEndian.PutUint64(b, math.Float64bits(f))
	}
	return b
}

func intBytes(n int64, size uint64) []byte {
	b := make([]byte, size)
	switch size {
	case 1:
		b[0] = byte(n)
	case 2:
		binary.LittleEndian.PutUint16(b, uint16(n))
	case 4:
		binary.LittleEndian.PutUint32(b, uint32(n))
	case 8:
		binary.LittleEndian.PutUint64(b, uint64(n))
	}
	return b
}

func uintBytes(n uint64, size uint64) []byte {
	b := make([]byte, size)
	switch size {
	case 1:
		b[0] = byte(n)
	case 2:
		binary.LittleEndian.PutUint16(b, uint16(n))
	case 4:
		binary.LittleEndian.PutUint32(b, uint32(n))
	case 8:
		binary.LittleEndian.PutUint64(b, n)
	}
	return b
}

func jsonNumberToInt64(v any) (int64, error) {
	switch n := v.(type) {
	case float64:
		return int64(n), nil
	case int64:
		return n, nil
	}
	return 0, fmt.Errorf("%w: expected numeric fill value, got %T", zarrerrors.ErrIncompatibleFillValue, v)
}

func jsonNumberToUint64(v any) (uint64, error) {
	switch n := v.(type) {
	case float64:
		if n < 0 {
			return 0, fmt.Errorf("%w: negative value for unsigned fill value", zarrerrors.ErrIncompatibleFillValue)
		}
		return uint64(n), nil
	case uint64:
		return n, nil
	}
	return 0, fmt.Errorf("%w: expected numeric fill value, got %T", zarrerrors.ErrIncompatibleFillValue, v)
}

func jsonNumberToFloat64(v any) (float64, error) {
	switch n := v.(type) {
	case float64:
		return n, nil
	case int64:
		return float64(n), nil
	}
	return 0, fmt.Errorf("%w: expected numeric fill value, got %T", zarrerrors.ErrIncompatibleFillValue, v)
}
