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

package connection

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"time"

	"github.com/relaywire/relaywire/crypto/envelope"
	"github.com/relaywire/relaywire/errs"
	"github.com/relaywire/relaywire/internal/logger"
	"github.com/relaywire/relaywire/internal/metrics"
	"github.com/relaywire/relaywire/pkg/wire"
	"github.com/relaywire/relaywire/protocol"
	"github.com/relaywire/relaywire/session"
	"github.com/relaywire/relaywire/srp"
)

// resumeSkew is the clock tolerance §4.2 allows on a resume proof's
// embedded timestamp.
const resumeSkew = 5 * time.Minute

// dispatchHandshake handles one pre-auth text frame: srp_hello,
// srp_resume, or srp_proof, depending on the connection's current state.
func (c *Conn) dispatchHandshake(ctx context.Context, data []byte) error {
	var env wire.Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return errs.Wrap(errs.ProtocolViolation, "malformed_handshake_message", err)
	}

	c.mu.Lock()
	state := c.state
	c.mu.Unlock()

	switch env.Type {
	case wire.TypeSRPHello:
		if state != StateConnecting {
			return errs.New(errs.AuthRequired, "unexpected_hello")
		}
		return c.handleHello(ctx, data)
	case wire.TypeSRPResume:
		if state != StateConnecting {
			return errs.New(errs.AuthRequired, "unexpected_resume")
		}
		return c.handleResume(ctx, data)
	case wire.TypeSRPProof:
		if state != StateHelloSeen {
			return errs.New(errs.AuthRequired, "unexpected_proof")
		}
		return c.handleProof(ctx, data)
	default:
		return errs.New(errs.AuthRequired, "authentication required")
	}
}

func (c *Conn) handleHello(ctx context.Context, data []byte) error {
	start := time.Now()
	metrics.HandshakesInitiated.WithLabelValues("server").Inc()
	defer func() {
		metrics.HandshakeDuration.WithLabelValues("hello").Observe(time.Since(start).Seconds())
	}()

	var hello wire.SRPHello
	if err := json.Unmarshal(data, &hello); err != nil {
		return errs.Wrap(errs.ProtocolViolation, "malformed_hello", err)
	}

	rec, err := c.credentials.Lookup(ctx, hello.Identity)
	if err != nil {
		// §4.2: unknown identity is answered with srp_error{invalid_identity}
		// and the handshake is abandoned; the close that follows carries the
		// same InvalidProof code and message as a wrong proof.
		_ = c.sendText(wire.SRPError{Type: wire.TypeSRPError, Message: "invalid_identity"})
		metrics.HandshakesFailed.WithLabelValues("unknown_identity").Inc()
		return errs.New(errs.InvalidProof, errs.AuthFailed)
	}

	srpSrv := srp.NewServerHandshake(hello.Identity, rec.ToSRPVerifier())
	challenge := srpSrv.Challenge()

	c.mu.Lock()
	c.srpSrv = srpSrv
	c.username = hello.Identity
	c.state = StateHelloSeen
	c.mu.Unlock()

	return c.sendText(wire.SRPServerChallenge{
		Type: wire.TypeSRPServerChallenge,
		Salt: challenge.Salt,
		B:    challenge.B,
	})
}

func (c *Conn) handleProof(ctx context.Context, data []byte) error {
	start := time.Now()
	defer func() {
		metrics.HandshakeDuration.WithLabelValues("proof").Observe(time.Since(start).Seconds())
	}()

	var proof wire.SRPProof
	if err := json.Unmarshal(data, &proof); err != nil {
		return errs.Wrap(errs.ProtocolViolation, "malformed_proof", err)
	}

	c.mu.Lock()
	srpSrv := c.srpSrv
	username := c.username
	c.mu.Unlock()

	verify, err := srpSrv.Verify(proof.A, proof.M1)
	if err != nil {
		metrics.HandshakesFailed.WithLabelValues("bad_proof").Inc()
		return errs.Wrap(errs.InvalidProof, errs.AuthFailed, err)
	}

	sessID := wire.NewSessionID()
	key := srpSrv.SessionKey()
	now := time.Now()
	sess := &session.Session{
		ID:         sessID,
		Username:   username,
		SessionKey: key,
		CreatedAt:  now,
		LastUsedAt: now,
		TTL:        sessionTTL,
	}
	if err := c.sessions.Create(ctx, sess); err != nil {
		return fmt.Errorf("connection: persist session: %w", err)
	}

	c.authenticate(username, sessID, key)
	metrics.HandshakesCompleted.WithLabelValues("success").Inc()

	return c.sendText(wire.SRPServerVerify{
		Type:      wire.TypeSRPServerVerify,
		M2:        verify.M2,
		SessionID: sessID,
	})
}

func (c *Conn) handleResume(ctx context.Context, data []byte) error {
	start := time.Now()
	defer func() {
		metrics.HandshakeDuration.WithLabelValues("resume").Observe(time.Since(start).Seconds())
	}()

	var resume wire.SRPResume
	if err := json.Unmarshal(data, &resume); err != nil {
		return errs.Wrap(errs.ProtocolViolation, "malformed_resume", err)
	}

	sess, err := c.sessions.Get(ctx, resume.SessionID)
	if err != nil {
		reason := "unknown"
		if err == session.ErrExpired {
			reason = "expired"
		}
		metrics.SessionsResumed.WithLabelValues(reason).Inc()
		return c.sendText(wire.SRPSessionInvalid{Type: wire.TypeSRPSessionInvalid, Reason: reason})
	}
	if sess.Username != resume.Identity {
		metrics.SessionsResumed.WithLabelValues("unknown").Inc()
		return c.sendText(wire.SRPSessionInvalid{Type: wire.TypeSRPSessionInvalid, Reason: "unknown"})
	}

	if !c.verifyResumeProof(sess, resume.Proof) {
		metrics.SessionsResumed.WithLabelValues("bad_proof").Inc()
		return c.sendText(wire.SRPSessionInvalid{Type: wire.TypeSRPSessionInvalid, Reason: "bad_proof"})
	}

	_ = c.sessions.Touch(ctx, sess.ID)
	c.authenticate(sess.Username, sess.ID, sess.SessionKey)
	metrics.SessionsResumed.WithLabelValues("accepted").Inc()

	return c.sendText(wire.SRPSessionResumed{Type: wire.TypeSRPSessionResumed, SessionID: sess.ID})
}

// verifyResumeProof decrypts proof — a base64-encoded envelope frame
// carried inside the srp_resume text message — under the session's
// stored key and checks its embedded timestamp is within resumeSkew of
// now.
func (c *Conn) verifyResumeProof(sess *session.Session, proofB64 string) bool {
	raw, err := base64.StdEncoding.DecodeString(proofB64)
	if err != nil {
		return false
	}
	format, payload, err := envelope.Decode(sess.SessionKey, raw)
	if err != nil || format != envelope.FormatJSON {
		return false
	}
	var rp wire.ResumeProof
	if err := json.Unmarshal(payload, &rp); err != nil {
		return false
	}
	ts := time.UnixMilli(rp.Timestamp)
	skew := time.Since(ts)
	if skew < 0 {
		skew = -skew
	}
	return skew <= resumeSkew
}

// authenticate transitions the connection into the authenticated state:
// it fixes the session key, builds the app-protocol session, and starts
// accepting binary envelope frames.
func (c *Conn) authenticate(username, sessID string, key [32]byte) {
	c.mu.Lock()
	c.state = StateAuthenticated
	c.username = username
	c.sessID = sessID
	c.key = key
	proto := protocol.NewSession(c.Send, c.router, c.events, c.uploads, c.maxInflight)
	c.proto = proto
	c.mu.Unlock()
	c.log.Info("connection authenticated", logger.String("username", username), logger.String("sessionId", sessID))
}
