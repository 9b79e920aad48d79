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

package protocol

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/relaywire/relaywire/errs"
	"github.com/relaywire/relaywire/internal/metrics"
	"github.com/relaywire/relaywire/pkg/wire"
)

// progressByteStep and progressMinInterval bound how often upload_progress
// is emitted: no more than once per 64 KiB *and* no more than once per
// 100 ms — the server waits for the rarer (slower) of the two to allow
// another update.
const (
	progressByteStep    = 64 * 1024
	progressMinInterval = 100 * time.Millisecond
)

type uploadState struct {
	mu sync.Mutex

	id       uuid.UUID
	size     int64
	handle   UploadHandle
	failed   bool // quota/size-mismatch already reported; drop further chunks
	finished bool

	bytesSoFar        uint64
	lastProgressBytes uint64
	lastProgressAt    time.Time
}

// handleUploadStart opens a write slot via the configured UploadSink. A
// quota rejection reports upload_error and leaves a failed placeholder so
// subsequent chunks for this id are silently dropped, per §4.5.
func (s *Session) handleUploadStart(ctx context.Context, start wire.UploadStart) error {
	id, err := uuid.Parse(start.UploadID)
	if err != nil {
		return errs.Wrap(errs.ProtocolViolation, "bad_upload_id", err)
	}

	s.mu.Lock()
	_, exists := s.uploads[id]
	s.mu.Unlock()
	if exists {
		return errs.New(errs.ProtocolViolation, "duplicate_upload")
	}

	state := &uploadState{id: id, size: start.Size, lastProgressAt: time.Now()}

	s.mu.Lock()
	s.uploads[id] = state
	s.mu.Unlock()

	handle, err := s.uploadSink.Start(ctx, start.ProjectID, start.SessionID, start.Filename, start.Size, start.MimeType)
	if err != nil {
		state.mu.Lock()
		state.failed = true
		state.mu.Unlock()
		metrics.UploadsCompleted.WithLabelValues("quota_exceeded").Inc()
		return s.send(wire.UploadError{Type: wire.TypeUploadError, UploadID: start.UploadID, Error: "quota_exceeded"})
	}
	state.handle = handle
	return nil
}

// handleUploadChunk appends one binary chunk. Returns a ProtocolViolation
// error (closing) for a chunk with an unknown upload id, an out-of-order
// offset, or a failed write; all other outcomes are reported in-band or
// silently ignored.
func (s *Session) handleUploadChunk(ctx context.Context, chunk wire.Chunk) error {
	s.mu.Lock()
	state, ok := s.uploads[chunk.UploadID]
	s.mu.Unlock()
	if !ok {
		// Chunk for an id we never saw upload_start for: treat as protocol
		// violation rather than silently accepting orphaned bytes.
		return errs.New(errs.ProtocolViolation, "unknown_upload")
	}

	state.mu.Lock()
	defer state.mu.Unlock()

	if state.failed || state.finished {
		return nil
	}

	switch {
	case chunk.Offset < state.bytesSoFar:
		return nil // duplicate, ignored
	case chunk.Offset > state.bytesSoFar:
		return errs.New(errs.ProtocolViolation, "upload_out_of_order")
	}

	if err := state.handle.Write(ctx, chunk.Offset, chunk.Data); err != nil {
		return errs.Wrap(errs.ProtocolViolation, "upload_write_failed", err)
	}
	state.bytesSoFar += uint64(len(chunk.Data))

	if state.shouldEmitProgress() {
		state.lastProgressBytes = state.bytesSoFar
		state.lastProgressAt = time.Now()
		bytesSoFar := state.bytesSoFar
		uploadID := chunk.UploadID.String()
		go func() {
			_ = s.send(wire.UploadProgress{Type: wire.TypeUploadProgress, UploadID: uploadID, BytesReceived: int64(bytesSoFar)})
		}()
	}
	return nil
}

func (u *uploadState) shouldEmitProgress() bool {
	sinceBytes := u.bytesSoFar - u.lastProgressBytes
	sinceTime := time.Since(u.lastProgressAt)
	return sinceBytes >= progressByteStep && sinceTime >= progressMinInterval
}

// handleUploadEnd finalizes or fails the upload depending on whether the
// declared size was reached exactly.
func (s *Session) handleUploadEnd(ctx context.Context, end wire.UploadEnd) error {
	id, err := uuid.Parse(end.UploadID)
	if err != nil {
		return errs.Wrap(errs.ProtocolViolation, "bad_upload_id", err)
	}

	s.mu.Lock()
	state, ok := s.uploads[id]
	s.mu.Unlock()
	if !ok {
		return errs.New(errs.ProtocolViolation, "unknown_upload")
	}

	state.mu.Lock()
	defer state.mu.Unlock()
	if state.failed || state.finished {
		return nil
	}
	state.finished = true

	if state.bytesSoFar != uint64(state.size) {
		metrics.UploadsCompleted.WithLabelValues("size_mismatch").Inc()
		state.handle.Abort()
		return s.send(wire.UploadError{Type: wire.TypeUploadError, UploadID: end.UploadID, Error: "size_mismatch"})
	}

	file, ferr := state.handle.Finalize(ctx)
	if ferr != nil {
		metrics.UploadsCompleted.WithLabelValues("finalize_error").Inc()
		return s.send(wire.UploadError{Type: wire.TypeUploadError, UploadID: end.UploadID, Error: "finalize_failed"})
	}
	metrics.UploadsCompleted.WithLabelValues("success").Inc()
	return s.send(wire.UploadComplete{Type: wire.TypeUploadComplete, UploadID: end.UploadID, File: file})
}

// abortAllUploads discards every in-flight upload; called on connection
// close, per the "uploads belonging to a connection that closes before
// upload_end are discarded" rule.
func (s *Session) abortAllUploads() {
	s.mu.Lock()
	states := make([]*uploadState, 0, len(s.uploads))
	for _, st := range s.uploads {
		states = append(states, st)
	}
	s.mu.Unlock()

	for _, st := range states {
		st.mu.Lock()
		if !st.finished && !st.failed && st.handle != nil {
			st.handle.Abort()
		}
		st.mu.Unlock()
	}
}
