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

package credential

import (
	"context"
	"math/big"
	"sync"
)

// MemoryStore is a RWMutex-guarded map, returning deep copies on every
// read/write so a caller can never mutate store state through an aliased
// *Record.
type MemoryStore struct {
	mu    sync.RWMutex
	creds map[string]*Record
}

// NewMemoryStore creates an empty in-memory credential store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{creds: make(map[string]*Record)}
}

func copyRecord(rec *Record) *Record {
	cp := *rec
	cp.Salt = append([]byte(nil), rec.Salt...)
	if rec.Verifier != nil {
		cp.Verifier = new(big.Int).Set(rec.Verifier)
	}
	return &cp
}

func (m *MemoryStore) Register(_ context.Context, rec *Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.creds[rec.Username]; exists {
		return ErrExists
	}
	m.creds[rec.Username] = copyRecord(rec)
	return nil
}

func (m *MemoryStore) Lookup(_ context.Context, username string) (*Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	rec, ok := m.creds[username]
	if !ok {
		return nil, ErrNotFound
	}
	return copyRecord(rec), nil
}

func (m *MemoryStore) Unregister(_ context.Context, username string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.creds, username)
	return nil
}

func (m *MemoryStore) Close() error { return nil }
