package base62

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncode(t *testing.T) {
	tests := []struct {
		in   uint64
		want string
	}{
		{0, "0"},
		{9, "9"},
		{10, "a"},
		{35, "z"},
		{36, "A"},
		{61, "Z"},
		{62, "10"},
		{3843, "ZZ"},
		{3844, "100"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, Encode(tt.in), "Encode(%d)", tt.in)
	}
}

func TestDecode_RoundTrip(t *testing.T) {
	for _, n := range []uint64{0, 1, 61, 62, 123456789, math.MaxInt64, math.MaxUint64} {
		got, err := Decode(Encode(n))
		require.NoError(t, err)
		assert.Equal(t, n, got)
	}
}

func TestDecode_Errors(t *testing.T) {
	_, err := Decode("")
	assert.ErrorIs(t, err, ErrEmpty)

	_, err = Decode("ab-c")
	assert.ErrorIs(t, err, ErrInvalidChar)

	_, err = Decode("ZZZZZZZZZZZZ")
	assert.ErrorIs(t, err, ErrOverflow)
}

func TestEncodeWithPadding(t *testing.T) {
	assert.Equal(t, "00000a", EncodeWithPadding(10, 6))
	assert.Equal(t, "100", EncodeWithPadding(3844, 2))
	assert.Equal(t, "0", EncodeWithPadding(0, 0))

	n, err := Decode(EncodeWithPadding(12345, 10))
	require.NoError(t, err)
	assert.Equal(t, uint64(12345), n)
}
