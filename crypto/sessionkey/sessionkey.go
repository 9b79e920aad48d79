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

// Package sessionkey implements the one fixed mapping from an SRP shared
// secret to a secretbox key: SHA-512, truncated to 32 bytes. Both sides of
// a handshake must compute this identically for the wire to work.
package sessionkey

import "crypto/sha512"

// Size is the length in bytes of a derived session key.
const Size = 32

// Derive hashes the raw SRP shared secret K with SHA-512 and returns the
// leading 32 bytes as the secretbox key.
func Derive(k []byte) [Size]byte {
	full := sha512.Sum512(k)
	var out [Size]byte
	copy(out[:], full[:Size])
	return out
}
