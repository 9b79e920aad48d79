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

// ServerChallenge is what the server sends in response to srp_hello: the
// stored salt and the server's public ephemeral value B, both hex.
type ServerChallenge struct {
	Salt string
	B    string
}

// ServerVerify is what the server sends after a valid client proof: its
// own proof M2.
type ServerVerify struct {
	M2 string
}

// ServerHandshake drives one server-side SRP exchange for a single
// connection attempt. It is stateful between Challenge and Verify and
// must be discarded afterward (the data model's ephemeral SRP session).
type ServerHandshake struct {
	identity string
	salt     []byte
	v        *big.Int

	b *big.Int
	B *big.Int

	k    []byte // raw shared secret K
	sKey [sessionkey.Size]byte
}

// NewServerHandshake begins the server side of a handshake for identity,
// given the verifier looked up from the credential store.
func NewServerHandshake(identity string, ver *Verifier) *ServerHandshake {
	return &ServerHandshake{
		identity: identity,
		salt:     ver.Salt,
		v:        ver.Verifier,
	}
}

// Challenge computes B = (kv + g^b) mod N for a fresh random b and
// returns the wire challenge.
func (s *ServerHandshake) Challenge() *ServerChallenge {
	s.b = randomBigInt()
	k := multiplierK()

	gb := new(big.Int).Exp(g, s.b, N)
	kv := new(big.Int).Mul(k, s.v)
	B := new(big.Int).Add(kv, gb)
	B.Mod(B, N)
	s.B = B

	return &ServerChallenge{
		Salt: hex.EncodeToString(s.salt),
		B:    hex.EncodeToString(s.B.Bytes()),
	}
}

// Verify checks the client's proof against hex-encoded A and M1, per
// M1' = H(H(N) xor H(g) || H(identity) || salt || A || B || K). On
// success it returns the server's own proof M2 and leaves SessionKey
// populated; on failure it returns an error and the handshake must be
// discarded (close invalid_proof, identical wording for bad identity or
// bad proof).
func (s *ServerHandshake) Verify(aHex, m1Hex string) (*ServerVerify, error) {
	A, ok := new(big.Int).SetString(aHex, 16)
	if !ok {
		return nil, fmt.Errorf("srp: malformed client public value")
	}
	if new(big.Int).Mod(A, N).Sign() == 0 {
		return nil, fmt.Errorf("srp: invalid client public value")
	}

	u := hashInt(pad(A), pad(s.B))
	if u.Sign() == 0 {
		return nil, fmt.Errorf("srp: invalid scrambling parameter")
	}

	// S = (A * v^u)^b mod N
	vu := new(big.Int).Exp(s.v, u, N)
	avu := new(big.Int).Mul(A, vu)
	avu.Mod(avu, N)
	S := new(big.Int).Exp(avu, s.b, N)

	K := hashBytes(S.Bytes())
	s.k = K

	expected := computeM1(s.identity, s.salt, A, s.B, K)
	if subtle.ConstantTimeCompare(expected, mustDecodeHex(m1Hex)) != 1 {
		return nil, fmt.Errorf("srp: client proof mismatch")
	}

	m2 := computeM2(A, expected, K)
	s.sKey = sessionkey.Derive(K)

	return &ServerVerify{M2: hex.EncodeToString(m2)}, nil
}

// SessionKey returns the 32-byte secretbox key derived from the SRP
// shared secret.
func (s *ServerHandshake) SessionKey() [sessionkey.Size]byte {
	return s.sKey
}

func mustDecodeHex(s string) []byte {
	b, err := hex.DecodeString(s)
	if err != nil {
		return nil
	}
	return b
}

// computeM1 implements M1 = H(H(N) xor H(g) || H(identity) || salt || A || B || K).
func computeM1(identity string, salt []byte, A, B *big.Int, K []byte) []byte {
	hn := hashBytes(N.Bytes())
	hg := hashBytes(g.Bytes())
	hi := hashBytes([]byte(identity))
	return hashBytes(xorBytes(hn, hg), hi, salt, A.Bytes(), B.Bytes(), K)
}

// computeM2 implements M2 = H(A || M1 || K).
func computeM2(A *big.Int, m1, K []byte) []byte {
	return hashBytes(A.Bytes(), m1, K)
}
