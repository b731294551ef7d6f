// Package srp implements the server role of SRP-6a (Secure Remote Password,
// revision 6a) for first-contact mutual authentication: deriving a verifier
// from a freshly generated visual password, producing B, validating A,
// verifying the client's M1, and emitting M2 and the shared session key K.
//
// The group arithmetic follows the RFC 5054 safe-prime convention; the
// transcript hash is the "paper" construction
// M1 = H(H(N) XOR H(g) || H(I) || s || A || B || K), not the simplified
// M = H(K,A,B,I,s,N,g) construction some SRP libraries use, because this
// protocol's wire format is fixed by an existing client. H is SHA-256: the
// persisted long-term key (KeyContainer.Key, 32 bytes) is K = H(S), and the
// exploit-marker sentinel is itself a SHA-256 digest, so the transcript
// hash must produce 32-byte output — distinct from the cipher's SHA-1 MAC
// in package cipher, which is a separate, deliberately legacy construction.
package srp

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"math/big"
)

type stage int

const (
	stageNew stage = iota
	stageVerifierReady
	stageChallenged
	stageAuthenticated
)

// Engine runs one SRP-6a handshake. It is stateful only for the lifetime of
// a single pairing attempt and is reset on failure or on a repeated
// identifyToServer (spec §4.2). It carries no lock: the connection state
// machine that owns it processes one connection's envelopes serially.
type Engine struct {
	group *Group

	stage    stage
	username string
	salt     []byte
	verifier *big.Int

	b *big.Int
	A *big.Int
	B *big.Int

	k       []byte
	sharedK []byte
	expectM []byte
}

// NewEngine creates an SRP-6a server engine over the given group.
func NewEngine(group *Group) *Engine {
	if group == nil {
		group = DefaultGroup()
	}
	e := &Engine{group: group}
	e.k = e.hash(group.N.Bytes(), pad(group.G, group.Size))
	return e
}

// Reset discards all handshake state, as required whenever the client
// restarts pairing (a second identifyToServer on the same connection).
func (e *Engine) Reset() {
	e.stage = stageNew
	e.username = ""
	e.salt = nil
	e.verifier = nil
	e.b = nil
	e.A = nil
	e.B = nil
	e.sharedK = nil
	e.expectM = nil
}

// NewVisualPassword generates a 32-bit random visual password, renders it as
// a short human-typable string, and derives the verifier v = g^x mod N for
// username I with x = H(salt || H(I || ":" || password)). The password
// itself is never transmitted; the caller shows it to the user via the
// external dialog collaborator.
func (e *Engine) NewVisualPassword(username string) (password string, err error) {
	var bits [4]byte
	if _, err := rand.Read(bits[:]); err != nil {
		return "", fmt.Errorf("srp: generating visual password: %w", err)
	}
	n := uint32(bits[0])<<24 | uint32(bits[1])<<16 | uint32(bits[2])<<8 | uint32(bits[3])
	password = renderVisualPassword(n)

	salt := make([]byte, e.group.Size)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("srp: generating salt: %w", err)
	}

	inner := e.hash([]byte(username + ":" + password))
	x := e.hashInt(salt, inner)
	v := new(big.Int).Exp(e.group.G, x, e.group.N)

	e.username = username
	e.salt = salt
	e.verifier = v
	e.stage = stageVerifierReady
	return password, nil
}

// Username returns the identity presented in the most recent
// NewVisualPassword call.
func (e *Engine) Username() string {
	return e.username
}

// renderVisualPassword formats a 32-bit value as a 10-digit, hyphen-grouped
// decimal string, e.g. "123-456-7890".
func renderVisualPassword(n uint32) string {
	s := fmt.Sprintf("%010d", n)
	return s[0:3] + "-" + s[3:6] + "-" + s[6:10]
}

// Handshake processes the client's identifyToServer{I, A} and returns the
// server's salt and public value B.
func (e *Engine) Handshake(I, A string) (s, B string, err error) {
	if I == "" {
		return "", "", &ErrMissingParam{Field: "I"}
	}
	if A == "" {
		return "", "", &ErrMissingParam{Field: "A"}
	}

	if e.stage != stageVerifierReady {
		// identifyToServer arrived without a verifier prepared for this
		// connection (e.g. pairing was never started); nothing to do but
		// report the same stage-mismatch the caller drops silently.
		return "", "", ErrStageMismatch
	}

	Abig, ok := new(big.Int).SetString(A, 16)
	if !ok {
		return "", "", &ErrMissingParam{Field: "A"}
	}
	if new(big.Int).Mod(Abig, e.group.N).Sign() == 0 {
		return "", "", &ErrInvalidPublicValue{Which: "A"}
	}

	b, err := rand.Int(rand.Reader, e.group.N)
	if err != nil {
		return "", "", fmt.Errorf("srp: generating b: %w", err)
	}

	// B = (k*v + g^b) mod N
	kv := new(big.Int).Mul(new(big.Int).SetBytes(e.k), e.verifier)
	gb := new(big.Int).Exp(e.group.G, b, e.group.N)
	Bbig := new(big.Int).Mod(new(big.Int).Add(kv, gb), e.group.N)

	u := e.hashInt(pad(Abig, e.group.Size), pad(Bbig, e.group.Size))

	// S = (A * v^u)^b mod N
	vu := new(big.Int).Exp(e.verifier, u, e.group.N)
	base := new(big.Int).Mod(new(big.Int).Mul(Abig, vu), e.group.N)
	S := new(big.Int).Exp(base, b, e.group.N)

	K := e.hash(S.Bytes())

	hN := e.hash(e.group.N.Bytes())
	hg := e.hash(e.group.G.Bytes())
	xorNG := xorBytes(hN, hg)
	hI := e.hash([]byte(e.username))

	M1 := e.hash(xorNG, hI, e.salt, pad(Abig, e.group.Size), pad(Bbig, e.group.Size), K)

	e.b = b
	e.A = Abig
	e.B = Bbig
	e.sharedK = K
	e.expectM = M1
	e.stage = stageChallenged

	return hex.EncodeToString(e.salt), hex.EncodeToString(Bbig.Bytes()), nil
}

// Authenticate verifies the client's M1 in constant time. On success it
// returns M2 and the session key K (hex-encoded, 32 bytes) to be reused as
// the long-term symmetric key. A proofToServer received before a completed
// Handshake is reported as ErrStageMismatch and must be silently dropped by
// the caller, not surfaced to the wire.
func (e *Engine) Authenticate(M string) (m2, keyHex string, err error) {
	if e.stage != stageChallenged {
		return "", "", ErrStageMismatch
	}

	given, decErr := hex.DecodeString(M)
	if decErr != nil || subtle.ConstantTimeCompare(given, e.expectM) != 1 {
		e.stage = stageNew
		return "", "", ErrAuthFailed
	}

	e.stage = stageAuthenticated
	M2 := e.hash(pad(e.A, e.group.Size), e.expectM, e.sharedK)
	return hex.EncodeToString(M2), hex.EncodeToString(e.sharedK), nil
}

func (e *Engine) hash(parts ...[]byte) []byte {
	h := sha256.New()
	for _, p := range parts {
		h.Write(p)
	}
	return h.Sum(nil)
}

func (e *Engine) hashInt(parts ...[]byte) *big.Int {
	return new(big.Int).SetBytes(e.hash(parts...))
}

func xorBytes(a, b []byte) []byte {
	out := make([]byte, len(a))
	for i := range a {
		out[i] = a[i] ^ b[i]
	}
	return out
}
