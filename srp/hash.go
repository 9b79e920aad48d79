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

package srp

import (
	"crypto/rand"
	"crypto/sha256"
	"math/big"
)

// hashBytes is H() applied to the concatenation of its arguments.
func hashBytes(parts ...[]byte) []byte {
	h := sha256.New()
	for _, p := range parts {
		h.Write(p)
	}
	return h.Sum(nil)
}

// hashInt is H() applied to the concatenation of its arguments, returned
// as a big-endian integer.
func hashInt(parts ...[]byte) *big.Int {
	return new(big.Int).SetBytes(hashBytes(parts...))
}

// xorBytes xors two equal-length byte slices.
func xorBytes(a, b []byte) []byte {
	out := make([]byte, len(a))
	for i := range a {
		out[i] = a[i] ^ b[i]
	}
	return out
}

// randomBigInt returns a cryptographically random integer in [1, N), used
// for the ephemeral private values a and b.
func randomBigInt() *big.Int {
	for {
		buf := make([]byte, nBytes)
		if _, err := rand.Read(buf); err != nil {
			panic("srp: random source failed: " + err.Error())
		}
		r := new(big.Int).SetBytes(buf)
		if r.Sign() != 0 && r.Cmp(N) < 0 {
			return r
		}
	}
}

// k is the SRP-6a multiplier, H(N || pad(g)).
func multiplierK() *big.Int {
	return hashInt(N.Bytes(), pad(g))
}
