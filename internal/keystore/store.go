package keystore

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/xml"
	"fmt"
	"io"

	"golang.org/x/crypto/pbkdf2"
)

// Tier selects the persistence strategy for a Container, per spec.md §4.4.
type Tier int

const (
	// TierUnset (0) and TierHigh (3) never persist; the user re-pairs.
	TierUnset Tier = 0
	TierLow   Tier = 1
	TierMedium Tier = 2
	TierHigh  Tier = 3
)

// ConfigBag is the process-wide get/set string abstraction standing in for
// the host application's configuration storage. spec.md treats this as an
// external collaborator; keeagentd backs it with config.FileBag or
// config.MemoryBag.
type ConfigBag interface {
	Get(key string) (string, bool)
	Set(key, value string) error
}

// sealEntropy is the fixed entropy spec.md §4.4 specifies for tier-2
// sealing in place of the OS per-user data-protection primitive the
// original implementation uses (Windows DPAPI). No pack example wraps a
// real OS-keychain library, so this stands in for that primitive with a
// PBKDF2-derived AES-GCM seal, as resolved in DESIGN.md.
var sealEntropy = []byte{172, 218, 37, 36, 15}

const (
	tierMarkerPlain  byte = 1
	tierMarkerSealed byte = 2

	pbkdf2Iterations = 4096
	pbkdf2KeyLen     = 32
)

// keyPrefix is the config-bag key prefix under which Containers are
// stored, one entry per username: KeePassRPC.Key.<username>.
const keyPrefix = "KeePassRPC.Key."

// Store persists and retrieves Containers against a ConfigBag at a chosen
// security tier.
type Store struct {
	bag ConfigBag
}

// New creates a Store backed by the given ConfigBag.
func New(bag ConfigBag) *Store {
	return &Store{bag: bag}
}

// Save persists c under its Username at the given tier. TierUnset and
// TierHigh return ErrNotPersisted without touching the bag, matching the
// spec's "do not persist; the user must re-pair" rule for those tiers.
func (s *Store) Save(tier Tier, c *Container) error {
	if tier == TierUnset || tier == TierHigh {
		return ErrNotPersisted
	}

	xmlBytes, err := xml.Marshal(c)
	if err != nil {
		return fmt.Errorf("keystore: marshaling container: %w", err)
	}

	var payload []byte
	switch tier {
	case TierLow:
		payload = append([]byte{tierMarkerPlain}, xmlBytes...)
	case TierMedium:
		sealed, err := seal(xmlBytes)
		if err != nil {
			return fmt.Errorf("keystore: sealing container: %w", err)
		}
		payload = append([]byte{tierMarkerSealed}, sealed...)
	default:
		return fmt.Errorf("keystore: unknown tier %d", tier)
	}

	return s.bag.Set(keyPrefix+c.Username, base64.StdEncoding.EncodeToString(payload))
}

// Load retrieves the Container stored for username. Per spec.md §4.4, any
// decoding or unseal failure — including nothing stored at all, or the
// stored Key being the exploit-marker sentinel — returns ErrNoStoredKey,
// never a distinguishable lower-level error.
func (s *Store) Load(username string) (*Container, error) {
	raw, ok := s.bag.Get(keyPrefix + username)
	if !ok || raw == "" {
		return nil, ErrNoStoredKey
	}

	payload, err := base64.StdEncoding.DecodeString(raw)
	if err != nil || len(payload) < 1 {
		return nil, ErrNoStoredKey
	}

	var xmlBytes []byte
	switch payload[0] {
	case tierMarkerPlain:
		xmlBytes = payload[1:]
	case tierMarkerSealed:
		xmlBytes, err = unseal(payload[1:])
		if err != nil {
			return nil, ErrNoStoredKey
		}
	default:
		return nil, ErrNoStoredKey
	}

	var c Container
	if err := xml.Unmarshal(xmlBytes, &c); err != nil {
		return nil, ErrNoStoredKey
	}

	if IsExploitMarker(c.Key) {
		return nil, ErrNoStoredKey
	}

	return &c, nil
}

// seal derives a key from the fixed entropy via PBKDF2 and seals plaintext
// with AES-256-GCM, prepending the nonce to the ciphertext.
func seal(plaintext []byte) ([]byte, error) {
	key := pbkdf2.Key(sealEntropy, sealEntropy, pbkdf2Iterations, pbkdf2KeyLen, sha256.New)

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, err
	}

	return gcm.Seal(nonce, nonce, plaintext, nil), nil
}

// unseal reverses seal.
func unseal(sealed []byte) ([]byte, error) {
	key := pbkdf2.Key(sealEntropy, sealEntropy, pbkdf2Iterations, pbkdf2KeyLen, sha256.New)

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}

	if len(sealed) < gcm.NonceSize() {
		return nil, fmt.Errorf("keystore: sealed blob too short")
	}
	nonce, ciphertext := sealed[:gcm.NonceSize()], sealed[gcm.NonceSize():]
	return gcm.Open(nil, nonce, ciphertext, nil)
}
