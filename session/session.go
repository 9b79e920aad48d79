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

// Package session persists resumable sessions: the binding of a
// sessionId to the SRP-derived session key that lets a client skip a
// full SRP handshake on reconnect.
package session

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned by Get when no live session matches the id.
var ErrNotFound = errors.New("session: not found")

// ErrExpired is returned by Get when a session exists but its TTL has
// elapsed; the caller should treat this the same as ErrNotFound for
// wire purposes but it is reported distinctly for logging.
var ErrExpired = errors.New("session: expired")

// Session is the persisted resumable-session record.
type Session struct {
	ID         string
	Username   string
	SessionKey [32]byte
	CreatedAt  time.Time
	LastUsedAt time.Time
	TTL        time.Duration
}

// Expired reports whether the session's TTL has elapsed as of now.
func (s *Session) Expired(now time.Time) bool {
	return now.After(s.CreatedAt.Add(s.TTL))
}

// Store persists resumable sessions. Implementations must make Get/Create/
// Touch/Delete safe for concurrent use, per the "session store: map
// operations atomic" resource-model rule.
type Store interface {
	// Create persists a new session. It is an error to reuse an existing ID.
	Create(ctx context.Context, sess *Session) error
	// Get looks up a session by id, returning ErrNotFound/ErrExpired as
	// appropriate. It does not mutate LastUsedAt; call Touch for that.
	Get(ctx context.Context, id string) (*Session, error)
	// Touch updates LastUsedAt to now.
	Touch(ctx context.Context, id string) error
	// Delete removes a session explicitly (revoke).
	Delete(ctx context.Context, id string) error
	// DeleteExpired purges every session whose TTL has elapsed, returning
	// the count removed. Called periodically by the cleanup loop.
	DeleteExpired(ctx context.Context) (int, error)
	// Close releases any resources (DB pool, open files) held by the store.
	Close() error
}
