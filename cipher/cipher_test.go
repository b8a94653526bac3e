package cipher

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig() Config {
	return Config{
		Key:   []byte("an example very very secret key!"),
		Nonce: []byte("fixed-nonce!"),
	}
}

func TestNewRejectsBadKeyMaterial(t *testing.T) {
	_, err := New(Config{Key: []byte("short"), Nonce: []byte("fixed-nonce!")})
	assert.Error(t, err)

	_, err = New(Config{Key: testConfig().Key, Nonce: []byte("short")})
	assert.Error(t, err)

	_, err = New(Config{})
	assert.Error(t, err)
}

func TestEncryptDecryptRoundtrip(t *testing.T) {
	c, err := New(testConfig())
	require.NoError(t, err)

	ciphertext, tag, err := c.Encrypt("a@x.com")
	require.NoError(t, err)
	require.NotEmpty(t, ciphertext)
	require.Len(t, tag, TagSize)

	plain, err := c.Decrypt(ciphertext, tag)
	require.NoError(t, err)
	assert.Equal(t, "a@x.com", plain)
}

func TestEncryptDeterministic(t *testing.T) {
	c, err := New(testConfig())
	require.NoError(t, err)

	ct1, tag1, err := c.Encrypt("a@x.com")
	require.NoError(t, err)
	ct2, tag2, err := c.Encrypt("a@x.com")
	require.NoError(t, err)

	// Equality lookups depend on deterministic output.
	assert.Equal(t, ct1, ct2)
	assert.Equal(t, tag1, tag2)

	ct3, _, err := c.Encrypt("b@x.com")
	require.NoError(t, err)
	assert.NotEqual(t, ct1, ct3)
}

func TestDecryptRejectsTampering(t *testing.T) {
	c, err := New(testConfig())
	require.NoError(t, err)

	ciphertext, tag, err := c.Encrypt("a@x.com")
	require.NoError(t, err)

	flippedCT := append([]byte(nil), ciphertext...)
	flippedCT[0] ^= 0x01
	_, err = c.Decrypt(flippedCT, tag)
	assert.True(t, errors.Is(err, ErrDecryptFailed))

	flippedTag := append([]byte(nil), tag...)
	flippedTag[0] ^= 0x01
	_, err = c.Decrypt(ciphertext, flippedTag)
	assert.True(t, errors.Is(err, ErrDecryptFailed))
}

func TestDecryptRejectsMalformedInput(t *testing.T) {
	c, err := New(testConfig())
	require.NoError(t, err)

	_, _, err = c.Encrypt("")
	assert.Error(t, err)

	_, err = c.Decrypt(nil, make([]byte, TagSize))
	assert.True(t, errors.Is(err, ErrDecryptFailed))

	_, err = c.Decrypt([]byte("ciphertext"), []byte("short tag"))
	assert.True(t, errors.Is(err, ErrDecryptFailed))
}

func TestDifferentKeysCannotDecrypt(t *testing.T) {
	c1, err := New(testConfig())
	require.NoError(t, err)
	c2, err := New(Config{
		Key:   []byte("another 32 byte secret key here!"),
		Nonce: []byte("fixed-nonce!"),
	})
	require.NoError(t, err)

	ciphertext, tag, err := c1.Encrypt("a@x.com")
	require.NoError(t, err)

	_, err = c2.Decrypt(ciphertext, tag)
	assert.True(t, errors.Is(err, ErrDecryptFailed))
}
