// SAGE - Secure Agent Guarantee Engine
// Copyright (C) 2025 SAGE-X-project
//
// This file is part of SAGE.
//
// SAGE is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// SAGE is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with SAGE. If not, see <https://www.gnu.org/licenses/>.

package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/google/uuid"

	"github.com/keeagent/keeagentd/pkg/storage"
)

// PairingStore implements storage.PairingStore for PostgreSQL. Expects a
// table of this shape:
//
//	CREATE TABLE pairing_records (
//	  id                  UUID PRIMARY KEY,
//	  username            TEXT NOT NULL,
//	  client_display_name TEXT NOT NULL,
//	  outcome             TEXT NOT NULL,
//	  security_level      INT NOT NULL,
//	  remote_addr         TEXT NOT NULL,
//	  timestamp           TIMESTAMPTZ NOT NULL
//	);
type PairingStore struct {
	db *pgxpool.Pool
}

// Create appends one pairing audit record.
func (p *PairingStore) Create(ctx context.Context, record *storage.PairingRecord) error {
	if record.ID == "" {
		record.ID = uuid.NewString()
	}

	query := `
		INSERT INTO pairing_records (id, username, client_display_name, outcome, security_level, remote_addr, timestamp)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err := p.db.Exec(ctx, query,
		record.ID,
		record.Username,
		record.ClientDisplayName,
		string(record.Outcome),
		record.SecurityLevel,
		record.RemoteAddr,
		record.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("failed to create pairing record: %w", err)
	}
	return nil
}

// List returns the most recent records for username, newest first.
func (p *PairingStore) List(ctx context.Context, username string, limit, offset int) ([]*storage.PairingRecord, error) {
	query := `
		SELECT id, username, client_display_name, outcome, security_level, remote_addr, timestamp
		FROM pairing_records
		WHERE username = $1
		ORDER BY timestamp DESC
		LIMIT $2 OFFSET $3
	`
	rows, err := p.db.Query(ctx, query, username, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list pairing records: %w", err)
	}
	defer rows.Close()

	var records []*storage.PairingRecord
	for rows.Next() {
		var r storage.PairingRecord
		var outcome string
		if err := rows.Scan(&r.ID, &r.Username, &r.ClientDisplayName, &outcome, &r.SecurityLevel, &r.RemoteAddr, &r.Timestamp); err != nil {
			return nil, fmt.Errorf("failed to scan pairing record: %w", err)
		}
		r.Outcome = storage.Outcome(outcome)
		records = append(records, &r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating pairing records: %w", err)
	}
	return records, nil
}

// Count returns the total number of recorded attempts.
func (p *PairingStore) Count(ctx context.Context) (int64, error) {
	var count int64
	err := p.db.QueryRow(ctx, `SELECT COUNT(*) FROM pairing_records`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count pairing records: %w", err)
	}
	return count, nil
}
