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

// Package credential persists the SRP verifier materialized from the
// register/unregister journal: {username -> (salt, verifier, createdAt)}.
// It never stores a password or a derived session key.
package credential

import (
	"context"
	"errors"
	"math/big"
	"time"

	"github.com/relaywire/relaywire/srp"
)

// ErrNotFound is returned when no credential is registered for a username.
var ErrNotFound = errors.New("credential: not found")

// ErrExists is returned by Register when the username is already taken.
var ErrExists = errors.New("credential: already registered")

// Record is the materialized view of one registered user: everything the
// SRP server needs to run a handshake, and nothing else.
type Record struct {
	Username  string
	Salt      []byte
	Verifier  *big.Int
	CreatedAt time.Time
}

// ToSRPVerifier adapts a Record to the shape srp.NewServerHandshake expects.
func (r *Record) ToSRPVerifier() *srp.Verifier {
	return &srp.Verifier{Salt: r.Salt, Verifier: r.Verifier}
}

// Store persists registered credentials. Implementations must make
// Register/Lookup/Unregister safe for concurrent use.
type Store interface {
	// Register adds a new credential. It is an error to re-register an
	// existing username; the caller must Unregister first.
	Register(ctx context.Context, rec *Record) error
	// Lookup finds a credential by username, returning ErrNotFound if none
	// exists. The server never reveals to the wire whether this returned
	// ErrNotFound or an invalid proof — both fail identically.
	Lookup(ctx context.Context, username string) (*Record, error)
	// Unregister removes a credential.
	Unregister(ctx context.Context, username string) error
	// Close releases any resources held by the store.
	Close() error
}
