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
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"math/big"

	"github.com/relaywire/relaywire/crypto/sessionkey"
)

// ClientProof is what the client sends after receiving a server
// challenge: its public ephemeral A and proof M1, both hex.
type ClientProof struct {
	A  string
	M1 string
}

// ClientHandshake drives one client-side SRP exchange.
type ClientHandshake struct {
	identity string
	password string

	a *big.Int
	A *big.Int

	m1   []byte
	k    []byte
	sKey [sessionkey.Size]byte
}

// NewClientHandshake begins the client side of a handshake, computing the
// ephemeral public value A = g^a mod N, later sent on srp_proof.
func NewClientHandshake(identity, password string) *ClientHandshake {
	a := randomBigInt()
	A := new(big.Int).Exp(g, a, N)
	return &ClientHandshake{identity: identity, password: password, a: a, A: A}
}

// PublicValue returns the client's ephemeral public value A as hex; it is
// carried on the srp_proof message, not on srp_hello.
func (c *ClientHandshake) PublicValue() string {
	return hex.EncodeToString(c.A.Bytes())
}

// Finish consumes the server's challenge (hex salt and B) and computes
// the client proof. It rejects B == 0 mod N exactly as the server
// rejects A == 0 mod N.
func (c *ClientHandshake) Finish(saltHex, bHex string) (*ClientProof, error) {
	salt, err := hex.DecodeString(saltHex)
	if err != nil {
		return nil, fmt.Errorf("srp: malformed salt")
	}
	B, ok := new(big.Int).SetString(bHex, 16)
	if !ok {
		return nil, fmt.Errorf("srp: malformed server public value")
	}
	if new(big.Int).Mod(B, N).Sign() == 0 {
		return nil, fmt.Errorf("srp: invalid server public value")
	}

	u := hashInt(pad(c.A), pad(B))
	if u.Sign() == 0 {
		return nil, fmt.Errorf("srp: invalid scrambling parameter")
	}

	inner := hashBytes([]byte(c.identity + ":" + c.password))
	x := hashInt(salt, inner)

	k := multiplierK()
	gx := new(big.Int).Exp(g, x, N)
	kgx := new(big.Int).Mul(k, gx)

	// S = (B - k*g^x)^(a + u*x) mod N
	base := new(big.Int).Sub(B, kgx)
	base.Mod(base, N)
	exp := new(big.Int).Mul(u, x)
	exp.Add(exp, c.a)
	S := new(big.Int).Exp(base, exp, N)

	K := hashBytes(S.Bytes())
	c.k = K
	c.m1 = computeM1(c.identity, salt, c.A, B, K)
	c.sKey = sessionkey.Derive(K)

	return &ClientProof{
		A:  hex.EncodeToString(c.A.Bytes()),
		M1: hex.EncodeToString(c.m1),
	}, nil
}

// CheckServerProof verifies the server's M2 against the client's own
// computation of H(A || M1 || K).
func (c *ClientHandshake) CheckServerProof(m2Hex string) bool {
	expected := computeM2(c.A, c.m1, c.k)
	return subtle.ConstantTimeCompare(expected, mustDecodeHex(m2Hex)) == 1
}

// SessionKey returns the 32-byte secretbox key derived from the SRP
// shared secret.
func (c *ClientHandshake) SessionKey() [sessionkey.Size]byte {
	return c.sKey
}
