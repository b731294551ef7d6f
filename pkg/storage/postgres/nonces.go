package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// NonceStore implements storage.NonceStore for PostgreSQL against a
// table of this shape:
//
//	CREATE TABLE challenge_nonces (
//	  sc         TEXT PRIMARY KEY,
//	  used_at    TIMESTAMPTZ NOT NULL,
//	  expires_at TIMESTAMPTZ NOT NULL
//	);
type NonceStore struct {
	db *pgxpool.Pool
}

// CheckAndStore atomically checks whether sc has already been recorded
// and, if not, records it.
func (n *NonceStore) CheckAndStore(ctx context.Context, sc string, expiresAt time.Time) error {
	tx, err := n.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	var exists bool
	checkQuery := `SELECT EXISTS(SELECT 1 FROM challenge_nonces WHERE sc = $1)`
	if err := tx.QueryRow(ctx, checkQuery, sc).Scan(&exists); err != nil {
		return fmt.Errorf("failed to check sc: %w", err)
	}
	if exists {
		return fmt.Errorf("sc already used: %s", sc)
	}

	insertQuery := `
		INSERT INTO challenge_nonces (sc, used_at, expires_at)
		VALUES ($1, $2, $3)
	`
	if _, err := tx.Exec(ctx, insertQuery, sc, time.Now(), expiresAt); err != nil {
		return fmt.Errorf("failed to store sc: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// IsUsed reports whether sc has been recorded and has not yet expired.
func (n *NonceStore) IsUsed(ctx context.Context, sc string) (bool, error) {
	query := `
		SELECT EXISTS(
			SELECT 1 FROM challenge_nonces
			WHERE sc = $1 AND expires_at > NOW()
		)
	`
	var used bool
	if err := n.db.QueryRow(ctx, query, sc).Scan(&used); err != nil {
		return false, fmt.Errorf("failed to check sc: %w", err)
	}
	return used, nil
}

// DeleteExpired deletes all expired entries.
func (n *NonceStore) DeleteExpired(ctx context.Context) (int64, error) {
	result, err := n.db.Exec(ctx, `DELETE FROM challenge_nonces WHERE expires_at <= NOW()`)
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired entries: %w", err)
	}
	return result.RowsAffected(), nil
}

// Count returns the total number of stored, non-expired entries.
func (n *NonceStore) Count(ctx context.Context) (int64, error) {
	var count int64
	err := n.db.QueryRow(ctx, `SELECT COUNT(*) FROM challenge_nonces WHERE expires_at > NOW()`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count entries: %w", err)
	}
	return count, nil
}
