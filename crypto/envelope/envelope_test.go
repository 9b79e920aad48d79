package envelope

import (
	"crypto/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func randomKey(t *testing.T) Key {
	t.Helper()
	var k Key
	_, err := rand.Read(k[:])
	require.NoError(t, err)
	return k
}

func TestRoundTrip(t *testing.T) {
	key := randomKey(t)

	cases := []struct {
		name    string
		format  byte
		payload []byte
	}{
		{"json", FormatJSON, []byte(`{"hello":"world"}`)},
		{"upload chunk", FormatUploadChunk, make([]byte, 4096)},
		{"gzip json", FormatGzipJSON, []byte(`{"a":[1,2,3,4,5,6,7,8,9,10]}`)},
		{"empty payload", FormatJSON, []byte{}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			frame, err := Encode(key, tc.format, tc.payload)
			require.NoError(t, err)

			format, payload, err := Decode(key, frame)
			require.NoError(t, err)
			assert.Equal(t, tc.format, format)
			assert.Equal(t, tc.payload, payload)
		})
	}
}

func TestBitFlipCausesDecodeFailure(t *testing.T) {
	key := randomKey(t)
	frame, err := Encode(key, FormatJSON, []byte(`{"x":1}`))
	require.NoError(t, err)

	for i := range frame {
		mutated := append([]byte(nil), frame...)
		mutated[i] ^= 0x01
		_, _, err := Decode(key, mutated)
		assert.Error(t, err, "byte %d should cause a decode failure", i)
	}
}

func TestNonceUniqueness(t *testing.T) {
	key := randomKey(t)
	seen := make(map[string]bool)

	const n = 10000
	for i := 0; i < n; i++ {
		frame, err := Encode(key, FormatJSON, []byte("x"))
		require.NoError(t, err)
		nonce := string(frame[1 : 1+nonceSize])
		require.False(t, seen[nonce], "duplicate nonce at iteration %d", i)
		seen[nonce] = true
	}
}

func TestDecodeRejectsUnknownVersion(t *testing.T) {
	key := randomKey(t)
	frame, err := Encode(key, FormatJSON, []byte("x"))
	require.NoError(t, err)
	frame[0] = 0x99

	_, _, err = Decode(key, frame)
	assert.Error(t, err)
}

func TestDecodeRejectsShortFrames(t *testing.T) {
	key := randomKey(t)
	_, _, err := Decode(key, []byte{0x01, 0x02, 0x03})
	assert.Error(t, err)
}

func TestDecodeRejectsWrongKey(t *testing.T) {
	keyA := randomKey(t)
	keyB := randomKey(t)
	frame, err := Encode(keyA, FormatJSON, []byte("x"))
	require.NoError(t, err)

	_, _, err = Decode(keyB, frame)
	assert.Error(t, err)
}
