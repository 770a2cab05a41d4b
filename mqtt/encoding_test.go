package mqtt

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeDecodeString(t *testing.T) {
	var buf bytes.Buffer
	n, err := encodeString(&buf, "benchmark/puppet")
	require.NoError(t, err)
	assert.Equal(t, 2+len("benchmark/puppet"), n)

	s, n2, err := decodeString(&buf)
	require.NoError(t, err)
	assert.Equal(t, "benchmark/puppet", s)
	assert.Equal(t, n, n2)
}

func TestEncodeStringTooLong(t *testing.T) {
	var buf bytes.Buffer
	_, err := encodeString(&buf, strings.Repeat("x", 65536))
	assert.ErrorIs(t, err, ErrStringTooLong)
}

func TestEncodeStringInvalidUTF8(t *testing.T) {
	var buf bytes.Buffer
	_, err := encodeString(&buf, string([]byte{0xff, 0xfe}))
	assert.ErrorIs(t, err, ErrInvalidUTF8)
}

func TestEncodeDecodeBinary(t *testing.T) {
	t.Run("round trip", func(t *testing.T) {
		var buf bytes.Buffer
		data := []byte{0x01, 0x02, 0x03}
		_, err := encodeBinary(&buf, data)
		require.NoError(t, err)

		decoded, _, err := decodeBinary(&buf)
		require.NoError(t, err)
		assert.Equal(t, data, decoded)
	})

	t.Run("empty data", func(t *testing.T) {
		var buf bytes.Buffer
		_, err := encodeBinary(&buf, nil)
		require.NoError(t, err)
		assert.Equal(t, []byte{0x00, 0x00}, buf.Bytes())

		decoded, _, err := decodeBinary(&buf)
		require.NoError(t, err)
		assert.Nil(t, decoded)
	})
}

func TestEncodeDecodeVarint(t *testing.T) {
	cases := []struct {
		value uint32
		size  int
	}{
		{0, 1},
		{127, 1},
		{128, 2},
		{16383, 2},
		{16384, 3},
		{2097151, 3},
		{2097152, 4},
		{maxVarint, 4},
	}

	for _, tc := range cases {
		var buf bytes.Buffer
		n, err := encodeVarint(&buf, tc.value)
		require.NoError(t, err)
		assert.Equal(t, tc.size, n, "encoded size for %d", tc.value)
		assert.Equal(t, tc.size, varintSize(tc.value))

		value, n2, err := decodeVarint(&buf)
		require.NoError(t, err)
		assert.Equal(t, tc.value, value)
		assert.Equal(t, tc.size, n2)
	}
}

func TestEncodeVarintTooLarge(t *testing.T) {
	var buf bytes.Buffer
	_, err := encodeVarint(&buf, maxVarint+1)
	assert.ErrorIs(t, err, ErrVarintTooLarge)
}

func TestDecodeVarintMalformed(t *testing.T) {
	// Five continuation bytes exceed the four byte maximum.
	r := bytes.NewReader([]byte{0x80, 0x80, 0x80, 0x80, 0x01})
	_, _, err := decodeVarint(r)
	assert.Error(t, err)
}
