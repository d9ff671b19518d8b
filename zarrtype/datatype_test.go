package zarrtype_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zarr-go/zarrcore/zarrtype"
)

func TestParseNumpyDType(t *testing.T) {
	tests := []struct {
		input       string
		expectedStr string
		expectedSz  uint64
		bigEndian   bool
		expectErr   bool
	}{
		{"<f4", "float32", 4, false, false},
		{"<i8", "int64", 8, false, false},
		{"|b1", "bool", 1, false, false},
		{">f4", "float32", 4, true, false},
		{"x2", "", 0, false, true},
		{"<x4", "", 0, false, true},
		{"<i", "", 0, false, true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			dt, big, err := zarrtype.ParseNumpyDType(tt.input)
			if tt.expectErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expectedStr, dt.Name)
			assert.Equal(t, tt.expectedSz, dt.Size)
			assert.Equal(t, tt.bigEndian, big)
		})
	}
}

func TestLookup_RawBits(t *testing.T) {
	dt, err := zarrtype.Lookup("r16")
	require.NoError(t, err)
	assert.Equal(t, uint64(2), dt.Size)
	assert.Equal(t, zarrtype.KindRawBits, dt.Kind)
}

func TestValidateFillValue(t *testing.T) {
	dt, err := zarrtype.Lookup("int32")
	require.NoError(t, err)
	require.NoError(t, zarrtype.ValidateFillValue(dt, []byte{0, 0, 0, 0}))
	require.Error(t, zarrtype.ValidateFillValue(dt, []byte{0, 0}))
}

func TestDecodeFillValueJSON_Float(t *testing.T) {
	dt, err := zarrtype.Lookup("float64")
	require.NoError(t, err)

	b, err := zarrtype.DecodeFillValueJSON(dt, "NaN")
	require.NoError(t, err)
	require.Len(t, b, 8)

	b, err = zarrtype.DecodeFillValueJSON(dt, 1.5)
	require.NoError(t, err)
	require.Len(t, b, 8)
}

func TestDecodeFillValueJSON_RawBits(t *testing.T) {
	dt, err := zarrtype.Lookup("r16")
	require.NoError(t, err)

	b, err := zarrtype.DecodeFillValueJSON(dt, []any{float64(1), float64(2)})
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2}, b)
}
