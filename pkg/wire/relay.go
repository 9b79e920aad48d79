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

// Pair-server control message type tags. These are exchanged as JSON text
// frames on the relay's own WebSocket listener, before the socket becomes
// a blind byte pipe; they never carry an envelope.
const (
	TypeServerRegister  = "server_register"
	TypeClientConnect   = "client_connect"
	TypeClientConnected = "client_connected"
	TypeClientError     = "client_error"
	TypeServerPaired    = "server_paired"
)

// ServerRegister is sent by a relaying server to claim a username. At most
// one server may hold a username at a time.
type ServerRegister struct {
	Type     string `json:"type"`
	Username string `json:"username"`
}

// ClientConnect is sent by a client socket asking to be paired with the
// server currently registered under Username.
type ClientConnect struct {
	Type     string `json:"type"`
	Username string `json:"username"`
}

// ClientConnected confirms pairing to the client side.
type ClientConnected struct {
	Type string `json:"type"`
}

// ClientError reports a pairing failure to the client side:
// unknown_username, server_busy, or server_offline.
type ClientError struct {
	Type   string `json:"type"`
	Reason string `json:"reason"`
}

// ServerPaired confirms pairing to the server side and names the opaque
// client id it is now piped to.
type ServerPaired struct {
	Type     string `json:"type"`
	ClientID string `json:"clientId"`
}
