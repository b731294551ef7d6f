package cipher

import (
	"encoding/base64"
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testKey() string {
	return "0123456789abcdef0123456789abcdef0123456789abcdef0123456789abcdef"
}

func TestEncryptDecryptRoundTrip(t *testing.T) {
	c, err := New(testKey())
	require.NoError(t, err)

	env, err := c.Encrypt("hello, secure world")
	require.NoError(t, err)
	assert.NotEmpty(t, env.IV)
	assert.NotEmpty(t, env.Message)
	assert.NotEmpty(t, env.HMAC)

	plaintext, err := c.Decrypt(env)
	require.NoError(t, err)
	assert.Equal(t, "hello, secure world", plaintext)
}

func TestDecryptRejectsTamperedCiphertext(t *testing.T) {
	c, err := New(testKey())
	require.NoError(t, err)

	env, err := c.Encrypt("payload")
	require.NoError(t, err)

	raw, err := base64.StdEncoding.DecodeString(env.Message)
	require.NoError(t, err)
	raw[0] ^= 0xFF
	env.Message = base64.StdEncoding.EncodeToString(raw)

	_, err = c.Decrypt(env)
	assert.ErrorIs(t, err, ErrAuthenticationFailed)
}

func TestDecryptRejectsWrongTag(t *testing.T) {
	c, err := New(testKey())
	require.NoError(t, err)

	env, err := c.Encrypt("payload")
	require.NoError(t, err)
	env.HMAC = base64.StdEncoding.EncodeToString([]byte("wrong tag 20 bytes!!"))

	_, err = c.Decrypt(env)
	assert.ErrorIs(t, err, ErrAuthenticationFailed)
}

func TestDecryptRejectsMalformedBase64(t *testing.T) {
	c, err := New(testKey())
	require.NoError(t, err)

	_, err = c.Decrypt(&Envelope{IV: "!!!", Message: "!!!", HMAC: "!!!"})
	assert.ErrorIs(t, err, ErrAuthenticationFailed)
}

func TestNewRejectsWrongKeyLength(t *testing.T) {
	_, err := New(hex.EncodeToString([]byte("too short")))
	assert.Error(t, err)
}

func TestTagUsesMacKeyNotRawKey(t *testing.T) {
	// The MAC input is SHA-1(rawKey), never rawKey itself: assert the tag
	// changes if that derivation is skipped by constructing two ciphers
	// whose raw keys differ but whose SHA-1 happens to collide is
	// infeasible to test directly, so instead assert two distinct keys
	// produce distinct tags over the same plaintext/IV.
	c1, err := New(testKey())
	require.NoError(t, err)
	c2, err := New("fedcba9876543210fedcba9876543210fedcba9876543210fedcba9876543210"[:64])
	require.NoError(t, err)

	env1, err := c1.Encrypt("same plaintext")
	require.NoError(t, err)
	_, err = c2.Decrypt(env1)
	assert.ErrorIs(t, err, ErrAuthenticationFailed)
}
