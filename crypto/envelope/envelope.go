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

// Package envelope implements the binary frame carried on every post-auth
// message: version || nonce || ciphertext, sealed with XSalsa20-Poly1305.
package envelope

import (
	"bytes"
	"compress/gzip"
	"crypto/rand"
	"fmt"
	"io"

	"golang.org/x/crypto/nacl/secretbox"
)

// Version is the sole envelope wire version this package produces and
// accepts. It is distinct from the inner format byte.
const Version byte = 0x01

// Inner format bytes.
const (
	FormatJSON        byte = 0x01
	FormatUploadChunk byte = 0x02
	FormatGzipJSON    byte = 0x03
)

const (
	nonceSize = 24
	tagSize   = secretbox.Overhead
	// minFrameLen is version(1) + nonce(24) + poly1305 tag(16).
	minFrameLen = 1 + nonceSize + tagSize
)

// Key is a 32-byte secretbox key, normally produced by
// crypto/sessionkey.Derive.
type Key = [32]byte

// Encode seals format||payload under key with a fresh random nonce and
// returns version||nonce||ciphertext. If format is FormatGzipJSON, payload
// is gzipped before sealing.
func Encode(key Key, format byte, payload []byte) ([]byte, error) {
	inner := payload
	if format == FormatGzipJSON {
		compressed, err := gzipCompress(payload)
		if err != nil {
			return nil, fmt.Errorf("envelope: compress: %w", err)
		}
		inner = compressed
	}

	var nonce [nonceSize]byte
	if _, err := rand.Read(nonce[:]); err != nil {
		return nil, fmt.Errorf("envelope: nonce: %w", err)
	}

	plaintext := make([]byte, 0, 1+len(inner))
	plaintext = append(plaintext, format)
	plaintext = append(plaintext, inner...)

	sealed := secretbox.Seal(nil, plaintext, &nonce, &key)

	out := make([]byte, 0, 1+nonceSize+len(sealed))
	out = append(out, Version)
	out = append(out, nonce[:]...)
	out = append(out, sealed...)
	return out, nil
}

// Decode opens a version||nonce||ciphertext frame under key, returning
// the inner format byte and payload. For FormatGzipJSON, payload is
// already gunzipped — callers always receive plain JSON bytes for that
// format. Decode never leaks partial plaintext on failure.
func Decode(key Key, frame []byte) (format byte, payload []byte, err error) {
	if len(frame) < minFrameLen {
		return 0, nil, fmt.Errorf("envelope: frame too short")
	}
	if frame[0] != Version {
		return 0, nil, fmt.Errorf("envelope: unknown version %d", frame[0])
	}

	var nonce [nonceSize]byte
	copy(nonce[:], frame[1:1+nonceSize])
	ciphertext := frame[1+nonceSize:]

	plaintext, ok := secretbox.Open(nil, ciphertext, &nonce, &key)
	if !ok {
		return 0, nil, fmt.Errorf("envelope: decryption failed")
	}
	if len(plaintext) < 1 {
		return 0, nil, fmt.Errorf("envelope: empty plaintext")
	}

	format = plaintext[0]
	body := plaintext[1:]

	if format == FormatGzipJSON {
		decompressed, derr := gzipDecompress(body)
		if derr != nil {
			return 0, nil, fmt.Errorf("envelope: decompress: %w", derr)
		}
		return format, decompressed, nil
	}
	return format, body, nil
}

func gzipCompress(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	if _, err := zw.Write(data); err != nil {
		return nil, err
	}
	if err := zw.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func gzipDecompress(data []byte) ([]byte, error) {
	zr, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	defer zr.Close()
	return io.ReadAll(zr)
}
