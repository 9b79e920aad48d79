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

package wire

import (
	"encoding/binary"
	"fmt"

	"github.com/google/uuid"
)

// uploadIDLen is the fixed 16-byte binary length of an uploadId inside a
// chunk payload (it is a raw UUID, not its hex/text form).
const uploadIDLen = 16

// offsetLen is the byte length of the big-endian chunk offset.
const offsetLen = 8

// chunkHeaderLen is uploadId || offset, before the chunk's data bytes.
const chunkHeaderLen = uploadIDLen + offsetLen

// Chunk is a decoded upload chunk payload: uploadId(16B) || offset(u64 BE) || bytes.
type Chunk struct {
	UploadID uuid.UUID
	Offset   uint64
	Data     []byte
}

// EncodeChunk serializes a Chunk to its binary wire form.
func EncodeChunk(c Chunk) []byte {
	out := make([]byte, chunkHeaderLen+len(c.Data))
	copy(out[:uploadIDLen], c.UploadID[:])
	binary.BigEndian.PutUint64(out[uploadIDLen:chunkHeaderLen], c.Offset)
	copy(out[chunkHeaderLen:], c.Data)
	return out
}

// DecodeChunk parses a chunk payload, rejecting anything shorter than the
// fixed header.
func DecodeChunk(payload []byte) (Chunk, error) {
	if len(payload) < chunkHeaderLen {
		return Chunk{}, fmt.Errorf("wire: chunk payload too short (%d bytes)", len(payload))
	}
	var id uuid.UUID
	copy(id[:], payload[:uploadIDLen])
	offset := binary.BigEndian.Uint64(payload[uploadIDLen:chunkHeaderLen])
	data := payload[chunkHeaderLen:]
	return Chunk{UploadID: id, Offset: offset, Data: data}, nil
}
