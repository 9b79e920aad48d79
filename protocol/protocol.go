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

// Package protocol implements the app-protocol multiplexer that runs
// inside one authenticated connection: request/response dispatch,
// subscription fan-out with replay-by-cursor and heartbeats, and the
// chunked-upload phase state machine. It never touches the wire
// directly — a connection supplies a SendFunc and the surrounding
// application supplies a Router/EventSource/UploadSink.
package protocol

import (
	"context"
	"encoding/json"
)

// Router is the application router contract the core consumes: it turns
// a decrypted request into a status/headers/body triple. The core never
// interprets method/path/body itself.
type Router interface {
	Deliver(ctx context.Context, method, path string, headers map[string]string, body json.RawMessage) (status int, headers map[string]string, body json.RawMessage, err error)
}

// YieldFunc is called by an EventSource for every event it produces, in
// order. eventID is nil for events that aren't part of the replayable
// cursor sequence (e.g. a one-off "connected" notice with nothing to
// replay). Returning an error stops the subscription.
type YieldFunc func(eventType string, eventID *int64, data json.RawMessage) error

// EventSource is the application event contract. Subscribe blocks,
// invoking yield for each event, until ctx is canceled (on unsubscribe
// or connection close) or it returns an error. If lastEventID is
// non-nil, the source MUST replay retained events strictly after that
// ID before switching to live delivery.
type EventSource interface {
	Subscribe(ctx context.Context, channel string, params json.RawMessage, lastEventID *int64, yield YieldFunc) error
}

// UploadHandle is a single in-progress upload's write destination.
type UploadHandle interface {
	// Write appends bytes at offset. The caller (Session) already
	// verified offset == bytesSoFar before calling.
	Write(ctx context.Context, offset uint64, data []byte) error
	// Finalize promotes the upload once its declared size has been
	// received, returning an opaque file descriptor for upload_complete.
	Finalize(ctx context.Context) (file json.RawMessage, err error)
	// Abort discards a partial upload; called on size mismatch or
	// connection close before upload_end.
	Abort()
}

// UploadSink opens new upload destinations.
type UploadSink interface {
	Start(ctx context.Context, projectID, sessionID, filename string, size int64, mimeType string) (UploadHandle, error)
}

// SendFunc hands one application message (a wire.Response, wire.Event,
// wire.UploadProgress, ...) to the connection for envelope encoding and
// write. Implementations must be safe for concurrent use — the
// connection is expected to serialize actual writes behind one queue.
type SendFunc func(v any) error
