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

// Package srp implements SRP-6a mutual authentication fixed to the
// RFC 5054 2048-bit group, generator 2, and SHA-256 — the only
// parameterization this wire protocol speaks.
package srp

import "math/big"

// n2048Hex is the RFC 5054 2048-bit safe prime.
const n2048Hex = "AC6BDB41324A9A9BF166DE5E1389582FAF72B6651987EE07FC3192943DB56050A37329CBB4A099ED8193E0757767A13DD52312AB4B03310DCD7F48A9DA04FD50E8083969EDB767B0CF6095179A163AB3661A05FBD5FAAAE82918A9962F0B93B855F97993EC975EEAA80D740ADBF4FF747359D041D5C33EA71D281E446B14773BCA97B43A23FB801676BD207A436C6481F1D2B9078717461A5B9D32E688F87748544523B524B0D57D5EA77A2775D2ECFA032CFBDBF52FB3786160279004E57AE6AF874E7303CE53299CCC041C7BC308D82A5698F3A8D0C38271AE35F8E9DBFBB694B5C803D89F7AE435DE236D525F54759B65E372FCD68EF20FA7111F9E4AFF73"

// N is the shared 2048-bit safe prime, g the generator. Both sides of a
// handshake use exactly these two constants.
var (
	N = mustHex(n2048Hex)
	g = big.NewInt(2)
	// nBytes is the byte length of N, used to zero-pad A, B and g before
	// hashing so the digest inputs are position-independent of leading
	// zero bytes, matching RFC 5054 convention.
	nBytes = (N.BitLen() + 7) / 8
)

func mustHex(s string) *big.Int {
	n, ok := new(big.Int).SetString(s, 16)
	if !ok {
		panic("srp: malformed group prime")
	}
	return n
}

// pad left-pads x's big-endian bytes to nBytes length.
func pad(x *big.Int) []byte {
	b := x.Bytes()
	if len(b) >= nBytes {
		return b
	}
	out := make([]byte, nBytes)
	copy(out[nBytes-len(b):], b)
	return out
}
