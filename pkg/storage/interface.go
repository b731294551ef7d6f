package storage

import (
	"context"
	"time"
)

// PairingStore defines the interface for the pairing audit trail: a
// write-mostly log of handshake attempts, never consulted to gate
// authorization.
type PairingStore interface {
	// Create appends one pairing audit record.
	Create(ctx context.Context, record *PairingRecord) error

	// List returns the most recent records for username, newest first.
	List(ctx context.Context, username string, limit, offset int) ([]*PairingRecord, error)

	// Count returns the total number of recorded attempts.
	Count(ctx context.Context) (int64, error)
}

// NonceStore gives the stored-key challenge (keychallenge) a persistent
// replay guard for its server-generated sc value, surviving process
// restarts.
type NonceStore interface {
	// CheckAndStore atomically records sc as used, failing if it has
	// already been recorded.
	CheckAndStore(ctx context.Context, sc string, expiresAt time.Time) error

	// IsUsed reports whether sc has already been recorded and has not
	// yet expired.
	IsUsed(ctx context.Context, sc string) (bool, error)

	// DeleteExpired removes expired entries, returning the count removed.
	DeleteExpired(ctx context.Context) (int64, error)

	// Count returns the total number of stored entries.
	Count(ctx context.Context) (int64, error)
}

// Store combines the pairing audit trail and replay-nonce guard.
type Store interface {
	PairingStore() PairingStore
	NonceStore() NonceStore

	// Close closes the storage connection.
	Close() error

	// Ping checks the storage connection.
	Ping(ctx context.Context) error
}
