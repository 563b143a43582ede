package hash

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCRC32C(t *testing.T) {
	// check value of the Castagnoli polynomial
	assert.Equal(t, uint32(0xE3069283), CRC32C([]byte("123456789")))
	assert.Equal(t, uint32(0), CRC32C(nil))
}

func TestFooter(t *testing.T) {
	buf := AppendFooter([]byte("payload"))
	require.Len(t, buf, len("payload")+FooterSize)

	payload, stored, actual, ok := SplitFooter(buf)
	require.True(t, ok)
	assert.Equal(t, "payload", string(payload))
	assert.Equal(t, stored, actual)

	buf[0] ^= 0x01
	_, stored, actual, ok = SplitFooter(buf)
	require.True(t, ok)
	assert.NotEqual(t, stored, actual)

	_, _, _, ok = SplitFooter([]byte{1, 2, 3})
	assert.False(t, ok)

	payload, stored, actual, ok = SplitFooter(AppendFooter(nil))
	require.True(t, ok)
	assert.Empty(t, payload)
	assert.Equal(t, stored, actual)
}

func TestBase64(t *testing.T) {
	assert.Equal(t, "4waSgw==", Base64([]byte("123456789")))
}
