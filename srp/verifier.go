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
	"math/big"
)

// saltSize is the minimum salt length required by the data model (>= 16 B).
const saltSize = 16

// Verifier is what the credential store persists for a registered user:
// the salt and password verifier. The password itself is never stored.
type Verifier struct {
	Salt     []byte
	Verifier *big.Int
}

// NewVerifier computes a fresh salt and verifier for (username, password):
// x = H(salt || H(username ":" password)), v = g^x mod N.
func NewVerifier(username, password string) (*Verifier, error) {
	salt := make([]byte, saltSize)
	if _, err := rand.Read(salt); err != nil {
		return nil, err
	}
	return verifierWithSalt(username, password, salt), nil
}

// verifierWithSalt computes the verifier for a caller-supplied salt; used
// by NewVerifier once it has drawn a random salt.
func verifierWithSalt(username, password string, salt []byte) *Verifier {
	inner := hashBytes([]byte(username + ":" + password))
	x := hashInt(salt, inner)
	v := new(big.Int).Exp(g, x, N)
	return &Verifier{Salt: salt, Verifier: v}
}
