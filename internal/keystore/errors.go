package keystore

import "errors"

// ErrNoStoredKey is returned whenever a Load should cause the caller to
// fall through to fresh SRP pairing: nothing was stored, the stored blob
// failed to decode or unseal, or the stored key is the exploit-marker
// sentinel. Per spec.md §4.4 this is deliberately not a distinguishable
// error — any of these causes collapses to the same "no key" outcome.
var ErrNoStoredKey = errors.New("keystore: no stored key")

// ErrNotPersisted is returned by Save for Tier3/Tier0, where the spec
// requires the container never touch the config bag at all.
var ErrNotPersisted = errors.New("keystore: security tier does not persist")
