// Package keychallenge implements the stored-key two-round nonce challenge
// used to reconnect a previously paired client without repeating SRP.
package keychallenge

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"math/big"
)

// ErrAuthFailed reports a client response that does not match the expected
// proof, surfaced to the wire as AUTH_FAILED{"Keys do not match"}.
var ErrAuthFailed = errors.New("keychallenge: keys do not match")

// Challenge runs one reconnection challenge over a previously persisted
// shared Key. It is stateful only for the lifetime of the two rounds.
type Challenge struct {
	key []byte
	sc  string
}

// New starts a challenge over the given long-term key bytes, hashed as
// given; the connection passes the KeyContainer's hex Key string as ASCII.
func New(key []byte) *Challenge {
	return &Challenge{key: key}
}

// ServerChallenge generates the 32 random bytes interpreted as a
// big-endian arbitrary-precision integer and rendered as a lowercase
// decimal string, per spec §4.3.
func (c *Challenge) ServerChallenge() (sc string, err error) {
	raw := make([]byte, 32)
	if _, err := rand.Read(raw); err != nil {
		return "", err
	}
	n := new(big.Int).SetBytes(raw)
	c.sc = n.String()
	return c.sc, nil
}

// Verify checks the client's response cc/cr against the expected proof and,
// on success, returns the server's counter-proof sr.
//
//	cr' = lowercase_hex(SHA-256("1" || Key || sc || cc))
//	sr  = lowercase_hex(SHA-256("0" || Key || sc || cc))
//
// The domain-separation prefixes "1"/"0" are bit-exact per the wire
// compatibility contract and must never be swapped.
func (c *Challenge) Verify(cc, cr string) (sr string, err error) {
	expected := c.digest("1", cc)
	given, decErr := hex.DecodeString(cr)
	if decErr != nil || subtle.ConstantTimeCompare(given, expected) != 1 {
		return "", ErrAuthFailed
	}
	return hex.EncodeToString(c.digest("0", cc)), nil
}

func (c *Challenge) digest(prefix, cc string) []byte {
	h := sha256.New()
	h.Write([]byte(prefix))
	h.Write(c.key)
	h.Write([]byte(c.sc))
	h.Write([]byte(cc))
	return h.Sum(nil)
}
