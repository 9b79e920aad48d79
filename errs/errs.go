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

// Package errs defines the closed set of error kinds the connection state
// machine can encounter, and how each maps to a WebSocket close code versus
// an in-band error report.
package errs

import (
	"errors"
	"fmt"
)

// Kind enumerates the nine error kinds.
type Kind int

const (
	// AuthRequired means a non-SRP message arrived before authentication.
	AuthRequired Kind = iota
	// InvalidProof means an SRP proof or resume proof failed verification.
	InvalidProof
	// SessionInvalid means a resume referenced an unknown or expired session.
	SessionInvalid
	// EnvelopeError means an envelope failed to decrypt or decode.
	EnvelopeError
	// ProtocolViolation means an app-protocol message violated ordering or
	// shape rules.
	ProtocolViolation
	// UploadError means a chunked upload violated offset/quota rules.
	UploadError
	// RequestError means a request handler returned an application error.
	RequestError
	// Timeout means a handshake or request exceeded its deadline.
	Timeout
	// ServerGoingAway means the server is shutting down the connection.
	ServerGoingAway
)

func (k Kind) String() string {
	switch k {
	case AuthRequired:
		return "auth_required"
	case InvalidProof:
		return "invalid_proof"
	case SessionInvalid:
		return "session_invalid"
	case EnvelopeError:
		return "envelope_error"
	case ProtocolViolation:
		return "protocol_violation"
	case UploadError:
		return "upload_error"
	case RequestError:
		return "request_error"
	case Timeout:
		return "timeout"
	case ServerGoingAway:
		return "server_going_away"
	default:
		return "unknown"
	}
}

// WebSocket close codes used by the connection state machine. Codes below
// 4000 are reserved by RFC 6455; the private-use range starts at 4000.
const (
	CloseAuthRequired      = 4001
	CloseInvalidProof      = 4002
	CloseEnvelopeError     = 4003
	CloseProtocolViolation = 4005
	CloseHandshakeTimeout  = 4008
	CloseGoingAway         = 4009
)

// CloseCode returns the WebSocket close code for kinds that always
// terminate the connection, and 0 for kinds that are reported in-band
// without closing: SessionInvalid (srp_session_invalid), UploadError
// (upload_error) and RequestError (response status >= 400) never close
// the socket. Timeout is the handshake timeout and closes with 4008; a
// per-request timeout is answered with a 504 response and does not use
// this kind.
func (k Kind) CloseCode() int {
	switch k {
	case AuthRequired:
		return CloseAuthRequired
	case InvalidProof:
		return CloseInvalidProof
	case EnvelopeError:
		return CloseEnvelopeError
	case ProtocolViolation:
		return CloseProtocolViolation
	case Timeout:
		return CloseHandshakeTimeout
	case ServerGoingAway:
		return CloseGoingAway
	default:
		return 0
	}
}

// Closes reports whether this kind always terminates the connection.
func (k Kind) Closes() bool {
	return k.CloseCode() != 0
}

// Error is a wire-facing error carrying a Kind and a human-readable
// message. It never differentiates "unknown user" from "wrong password"
// for InvalidProof — both use the same message by convention at the call
// site, per the authentication error-reporting rule.
type Error struct {
	Kind    Kind
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

// New creates an Error of the given kind.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap creates an Error of the given kind wrapping cause.
func Wrap(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Cause: cause}
}

// KindOf extracts the Kind from err if it (or something it wraps) is an
// *Error, and reports whether one was found.
func KindOf(err error) (Kind, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return 0, false
}

// AuthFailed is the single message used for every authentication failure,
// regardless of whether the username was unknown or the proof was wrong —
// the server does not allow a client to distinguish the two.
const AuthFailed = "authentication failed"
