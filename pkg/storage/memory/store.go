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

package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/keeagent/keeagentd/pkg/storage"
)

// nonceEntry tracks one recorded sc value's expiry.
type nonceEntry struct {
	expiresAt time.Time
}

// Store implements storage.Store with in-memory maps. Every record is
// lost on restart; use the postgres package when the audit trail or the
// sc replay guard needs to survive a process restart.
type Store struct {
	records map[string]*storage.PairingRecord
	nonces  map[string]nonceEntry

	recordsMu sync.RWMutex
	noncesMu  sync.RWMutex

	pairingStore *PairingStore
	nonceStore   *NonceStore
}

// NewStore creates a new in-memory store.
func NewStore() *Store {
	s := &Store{
		records: make(map[string]*storage.PairingRecord),
		nonces:  make(map[string]nonceEntry),
	}
	s.pairingStore = &PairingStore{store: s}
	s.nonceStore = &NonceStore{store: s}
	return s
}

func (s *Store) PairingStore() storage.PairingStore { return s.pairingStore }
func (s *Store) NonceStore() storage.NonceStore     { return s.nonceStore }

// Close is a no-op for the memory store.
func (s *Store) Close() error { return nil }

// Ping always succeeds for the memory store.
func (s *Store) Ping(ctx context.Context) error { return nil }

// Clear removes all data (useful for testing).
func (s *Store) Clear() {
	s.recordsMu.Lock()
	s.records = make(map[string]*storage.PairingRecord)
	s.recordsMu.Unlock()

	s.noncesMu.Lock()
	s.nonces = make(map[string]nonceEntry)
	s.noncesMu.Unlock()
}

// PairingStore implements storage.PairingStore.
type PairingStore struct {
	store *Store
}

func (p *PairingStore) Create(ctx context.Context, record *storage.PairingRecord) error {
	p.store.recordsMu.Lock()
	defer p.store.recordsMu.Unlock()

	if record.ID == "" {
		record.ID = uuid.NewString()
	}
	recordCopy := *record
	p.store.records[record.ID] = &recordCopy
	return nil
}

func (p *PairingStore) List(ctx context.Context, username string, limit, offset int) ([]*storage.PairingRecord, error) {
	p.store.recordsMu.RLock()
	defer p.store.recordsMu.RUnlock()

	var matched []*storage.PairingRecord
	for _, r := range p.store.records {
		if r.Username == username {
			rc := *r
			matched = append(matched, &rc)
		}
	}

	// Newest first.
	for i := 0; i < len(matched); i++ {
		for j := i + 1; j < len(matched); j++ {
			if matched[j].Timestamp.After(matched[i].Timestamp) {
				matched[i], matched[j] = matched[j], matched[i]
			}
		}
	}

	if offset >= len(matched) {
		return []*storage.PairingRecord{}, nil
	}
	end := offset + limit
	if end > len(matched) || limit <= 0 {
		end = len(matched)
	}
	return matched[offset:end], nil
}

func (p *PairingStore) Count(ctx context.Context) (int64, error) {
	p.store.recordsMu.RLock()
	defer p.store.recordsMu.RUnlock()
	return int64(len(p.store.records)), nil
}

// NonceStore implements storage.NonceStore, tracking the keychallenge
// package's server-generated sc values to defend against a captured
// response being replayed after a process restart.
type NonceStore struct {
	store *Store
}

func (n *NonceStore) CheckAndStore(ctx context.Context, sc string, expiresAt time.Time) error {
	n.store.noncesMu.Lock()
	defer n.store.noncesMu.Unlock()

	if existing, exists := n.store.nonces[sc]; exists && time.Now().Before(existing.expiresAt) {
		return fmt.Errorf("sc already used: %s", sc)
	}

	n.store.nonces[sc] = nonceEntry{expiresAt: expiresAt}
	return nil
}

func (n *NonceStore) IsUsed(ctx context.Context, sc string) (bool, error) {
	n.store.noncesMu.RLock()
	defer n.store.noncesMu.RUnlock()

	entry, exists := n.store.nonces[sc]
	if !exists {
		return false, nil
	}
	if time.Now().After(entry.expiresAt) {
		return false, nil
	}
	return true, nil
}

func (n *NonceStore) DeleteExpired(ctx context.Context) (int64, error) {
	n.store.noncesMu.Lock()
	defer n.store.noncesMu.Unlock()

	now := time.Now()
	var count int64
	for sc, entry := range n.store.nonces {
		if now.After(entry.expiresAt) {
			delete(n.store.nonces, sc)
			count++
		}
	}
	return count, nil
}

func (n *NonceStore) Count(ctx context.Context) (int64, error) {
	n.store.noncesMu.RLock()
	defer n.store.noncesMu.RUnlock()
	return int64(len(n.store.nonces)), nil
}
