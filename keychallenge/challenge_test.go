package keychallenge

import (
	"crypto/sha256"
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChallengeRoundTrip(t *testing.T) {
	key := []byte("0123456789abcdef0123456789abcdef")
	server := New(key)

	sc, err := server.ServerChallenge()
	require.NoError(t, err)
	require.NotEmpty(t, sc)

	cc := "client-nonce"
	h := sha256.New()
	h.Write([]byte("1"))
	h.Write(key)
	h.Write([]byte(sc))
	h.Write([]byte(cc))
	cr := hex.EncodeToString(h.Sum(nil))

	sr, err := server.Verify(cc, cr)
	require.NoError(t, err)

	h2 := sha256.New()
	h2.Write([]byte("0"))
	h2.Write(key)
	h2.Write([]byte(sc))
	h2.Write([]byte(cc))
	expectedSr := hex.EncodeToString(h2.Sum(nil))
	assert.Equal(t, expectedSr, sr)
}

func TestChallengeRejectsWrongResponse(t *testing.T) {
	server := New([]byte("key-material"))
	_, err := server.ServerChallenge()
	require.NoError(t, err)

	_, err = server.Verify("cc", "deadbeef")
	assert.ErrorIs(t, err, ErrAuthFailed)
}

func TestChallengeRejectsMalformedHex(t *testing.T) {
	server := New([]byte("key-material"))
	_, err := server.ServerChallenge()
	require.NoError(t, err)

	_, err = server.Verify("cc", "not-hex-at-all")
	assert.ErrorIs(t, err, ErrAuthFailed)
}

func TestChallengeDomainSeparation(t *testing.T) {
	key := []byte("key-material")
	server := New(key)
	sc, err := server.ServerChallenge()
	require.NoError(t, err)

	// Using the server's own "0"-prefixed digest as a forged client response
	// must not validate: the prefixes are not interchangeable.
	forged := server.digest("0", "cc")
	_, err = server.Verify("cc", hex.EncodeToString(forged))
	assert.ErrorIs(t, err, ErrAuthFailed)
	_ = sc
}
