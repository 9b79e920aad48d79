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

// Package transport abstracts the duplex byte stream a client drives the
// SRP handshake and then the envelope protocol over. Direct (LAN) and
// pair-server-relayed connections both satisfy Transport; everything
// above this layer — srp, envelope, protocol — never knows which one it
// is talking to.
package transport

import "context"

// Transport is an already-authenticated-at-the-socket-level duplex
// stream. Dial returns once the stream is ready to carry the SRP
// handshake; for a pair-server transport that means pairing has already
// been confirmed by the relay.
type Transport interface {
	// Dial establishes the underlying connection.
	Dial(ctx context.Context) error

	// WriteMessage sends one frame. messageType is a
	// gorilla/websocket message type constant (TextMessage or
	// BinaryMessage); callers use Text for the pre-auth SRP exchange
	// and Binary for everything after.
	WriteMessage(messageType int, data []byte) error

	// ReadMessage blocks for the next frame, returning its type and
	// payload.
	ReadMessage() (messageType int, data []byte, err error)

	// Close tears down the connection.
	Close() error
}
