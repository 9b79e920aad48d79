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
	"encoding/json"

	"github.com/relaywire/relaywire/crypto/envelope"
	"github.com/relaywire/relaywire/errs"
	"github.com/relaywire/relaywire/internal/metrics"
	"github.com/relaywire/relaywire/pkg/wire"
)

// dispatchEnvelope decodes one post-auth binary frame and routes it to
// the app-protocol session. A returned closing error (EnvelopeError,
// ProtocolViolation, ...) tells Run to terminate the socket; anything
// else is reported in-band by the protocol layer itself.
func (c *Conn) dispatchEnvelope(ctx context.Context, frame []byte) error {
	c.mu.Lock()
	key := c.key
	proto := c.proto
	c.mu.Unlock()

	format, payload, err := envelope.Decode(key, frame)
	if err != nil {
		metrics.EnvelopeDecodeFailures.WithLabelValues("auth_failed").Inc()
		return errs.Wrap(errs.EnvelopeError, "invalid_envelope", err)
	}

	switch format {
	case envelope.FormatUploadChunk:
		metrics.EnvelopesOpened.WithLabelValues("upload_chunk").Inc()
		chunk, err := wire.DecodeChunk(payload)
		if err != nil {
			return errs.Wrap(errs.ProtocolViolation, "bad_chunk", err)
		}
		return proto.HandleUploadChunk(ctx, chunk)

	case envelope.FormatJSON, envelope.FormatGzipJSON:
		label := "json"
		if format == envelope.FormatGzipJSON {
			label = "gzip_json"
		}
		metrics.EnvelopesOpened.WithLabelValues(label).Inc()
		metrics.EnvelopeSize.Observe(float64(len(payload)))
		return c.dispatchAppMessage(ctx, proto, payload)

	default:
		metrics.EnvelopeDecodeFailures.WithLabelValues("bad_format").Inc()
		return errs.New(errs.EnvelopeError, "invalid_envelope")
	}
}

// dispatchAppMessage unmarshals the type tag of a decoded JSON payload
// and dispatches to the matching protocol.Session method.
func (c *Conn) dispatchAppMessage(ctx context.Context, proto interface {
	HandleRequest(context.Context, wire.Request)
	HandleSubscribe(context.Context, wire.Subscribe) error
	HandleUnsubscribe(wire.Unsubscribe) error
	HandleUploadStart(context.Context, wire.UploadStart) error
	HandleUploadEnd(context.Context, wire.UploadEnd) error
}, payload []byte) error {
	var env wire.Envelope
	if err := json.Unmarshal(payload, &env); err != nil {
		return errs.Wrap(errs.ProtocolViolation, "malformed_message", err)
	}

	switch env.Type {
	case wire.TypeRequest:
		var req wire.Request
		if err := json.Unmarshal(payload, &req); err != nil {
			return errs.Wrap(errs.ProtocolViolation, "malformed_request", err)
		}
		proto.HandleRequest(ctx, req)
		return nil

	case wire.TypeSubscribe:
		var sub wire.Subscribe
		if err := json.Unmarshal(payload, &sub); err != nil {
			return errs.Wrap(errs.ProtocolViolation, "malformed_subscribe", err)
		}
		return proto.HandleSubscribe(ctx, sub)

	case wire.TypeUnsubscribe:
		var unsub wire.Unsubscribe
		if err := json.Unmarshal(payload, &unsub); err != nil {
			return errs.Wrap(errs.ProtocolViolation, "malformed_unsubscribe", err)
		}
		return proto.HandleUnsubscribe(unsub)

	case wire.TypeUploadStart:
		var start wire.UploadStart
		if err := json.Unmarshal(payload, &start); err != nil {
			return errs.Wrap(errs.ProtocolViolation, "malformed_upload_start", err)
		}
		return proto.HandleUploadStart(ctx, start)

	case wire.TypeUploadEnd:
		var end wire.UploadEnd
		if err := json.Unmarshal(payload, &end); err != nil {
			return errs.Wrap(errs.ProtocolViolation, "malformed_upload_end", err)
		}
		return proto.HandleUploadEnd(ctx, end)

	case wire.TypeClientCapabilities:
		var caps wire.ClientCapabilities
		if err := json.Unmarshal(payload, &caps); err != nil {
			return errs.Wrap(errs.ProtocolViolation, "malformed_capabilities", err)
		}
		c.applyCapabilities(caps)
		return nil

	default:
		return errs.New(errs.ProtocolViolation, "unknown_message_type")
	}
}

// applyCapabilities records whether the client accepts gzip-compressed
// JSON payloads, per §4.1's "server MAY emit 0x03 only after receiving
// capabilities including it."
func (c *Conn) applyCapabilities(caps wire.ClientCapabilities) {
	gzipOK := false
	for _, f := range caps.Formats {
		if f == envelope.FormatGzipJSON {
			gzipOK = true
			break
		}
	}
	c.mu.Lock()
	c.gzipOK = gzipOK
	c.mu.Unlock()
}
