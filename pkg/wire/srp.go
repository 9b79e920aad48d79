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

// Package wire holds the JSON and binary message shapes shared by both
// sides of a connection, so neither a server nor client package defines
// its own copy.
package wire

// SRP handshake message type tags, carried as text frames before
// authentication.
const (
	TypeSRPHello           = "srp_hello"
	TypeSRPResume          = "srp_resume"
	TypeSRPServerChallenge = "srp_server_challenge"
	TypeSRPSessionResumed  = "srp_session_resumed"
	TypeSRPSessionInvalid  = "srp_session_invalid"
	TypeSRPProof           = "srp_proof"
	TypeSRPServerVerify    = "srp_server_verify"
	TypeSRPError           = "srp_error"
)

// SRPHello is srp_hello: client -> server, first message of a fresh
// handshake.
type SRPHello struct {
	Type             string         `json:"type"`
	Identity         string         `json:"identity"`
	BrowserProfileID string         `json:"browserProfileId,omitempty"`
	OriginMetadata   map[string]any `json:"originMetadata,omitempty"`
}

// SRPResume is srp_resume: client -> server, first message when
// attempting to reuse a previously issued session.
type SRPResume struct {
	Type      string `json:"type"`
	Identity  string `json:"identity"`
	SessionID string `json:"sessionId"`
	Proof     string `json:"proof"` // base64 envelope over {timestamp}
}

// SRPServerChallenge is srp_server_challenge: server -> client.
type SRPServerChallenge struct {
	Type string `json:"type"`
	Salt string `json:"salt"`
	B    string `json:"B"`
}

// SRPSessionResumed is srp_session_resumed: server -> client.
type SRPSessionResumed struct {
	Type      string `json:"type"`
	SessionID string `json:"sessionId"`
}

// SRPSessionInvalid is srp_session_invalid: server -> client.
type SRPSessionInvalid struct {
	Type   string `json:"type"`
	Reason string `json:"reason"` // "expired", "unknown", "bad_proof"
}

// SRPProof is srp_proof: client -> server.
type SRPProof struct {
	Type string `json:"type"`
	A    string `json:"A"`
	M1   string `json:"M1"`
}

// SRPServerVerify is srp_server_verify: server -> client.
type SRPServerVerify struct {
	Type      string `json:"type"`
	M2        string `json:"M2"`
	SessionID string `json:"sessionId"`
}

// SRPError is srp_error: server -> client, used for unknown identity and
// any other pre-auth failure the server does not want to leak details
// about.
type SRPError struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// Envelope resume payload decrypted from an SRPResume.Proof.
type ResumeProof struct {
	Timestamp int64 `json:"timestamp"`
}
