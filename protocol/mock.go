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
	"encoding/json"
	"sync"
)

// EchoRouter replies to POST /echo with the request body unchanged and
// 404s everything else; used by the end-to-end "echo" scenario in §8.
type EchoRouter struct{}

func (EchoRouter) Deliver(_ context.Context, method, path string, _ map[string]string, body json.RawMessage) (int, map[string]string, json.RawMessage, error) {
	if method == "POST" && path == "/echo" {
		return 200, nil, body, nil
	}
	return 404, nil, json.RawMessage(`{"error":"not_found"}`), nil
}

// DeliverFunc adapts a bare function to the Router interface.
type DeliverFunc func(ctx context.Context, method, path string, headers map[string]string, body json.RawMessage) (int, map[string]string, json.RawMessage, error)

// MockRouter is a test double for Router that records every call and
// lets a test inject custom behavior, in the style of the teacher's
// transport.MockTransport.
type MockRouter struct {
	DeliverFunc DeliverFunc

	mu    sync.Mutex
	Calls []wireCall
}

type wireCall struct {
	Method string
	Path   string
}

func (m *MockRouter) Deliver(ctx context.Context, method, path string, headers map[string]string, body json.RawMessage) (int, map[string]string, json.RawMessage, error) {
	m.mu.Lock()
	m.Calls = append(m.Calls, wireCall{Method: method, Path: path})
	m.mu.Unlock()

	if m.DeliverFunc != nil {
		return m.DeliverFunc(ctx, method, path, headers, body)
	}
	return 200, nil, nil, nil
}

// MockEventSource replays a fixed slice of events then blocks until ctx
// is canceled. When lastEventID is set, events whose EventID is at or
// below it are skipped; events without an EventID are always replayed.
type MockEventSource struct {
	Events []MockEvent
}

type MockEvent struct {
	EventType string
	EventID   *int64
	Data      json.RawMessage
}

func (m *MockEventSource) Subscribe(ctx context.Context, _ string, _ json.RawMessage, lastEventID *int64, yield YieldFunc) error {
	for _, ev := range m.Events {
		if lastEventID != nil && ev.EventID != nil && *ev.EventID <= *lastEventID {
			continue
		}
		if err := yield(ev.EventType, ev.EventID, ev.Data); err != nil {
			return err
		}
	}
	<-ctx.Done()
	return ctx.Err()
}

// MockUploadSink accumulates writes in memory; used by tests exercising
// the upload state machine without a real filesystem.
type MockUploadSink struct {
	mu      sync.Mutex
	Handles map[string]*MockUploadHandle
}

func NewMockUploadSink() *MockUploadSink {
	return &MockUploadSink{Handles: make(map[string]*MockUploadHandle)}
}

func (m *MockUploadSink) Start(_ context.Context, projectID, sessionID, filename string, size int64, mimeType string) (UploadHandle, error) {
	h := &MockUploadHandle{Filename: filename, Size: size, MimeType: mimeType}
	m.mu.Lock()
	m.Handles[projectID+"/"+sessionID+"/"+filename] = h
	m.mu.Unlock()
	return h, nil
}

// MockUploadHandle is an in-memory UploadHandle.
type MockUploadHandle struct {
	mu       sync.Mutex
	Filename string
	Size     int64
	MimeType string
	Buf      []byte
	Aborted  bool
}

func (h *MockUploadHandle) Write(_ context.Context, offset uint64, data []byte) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if uint64(len(h.Buf)) < offset+uint64(len(data)) {
		grown := make([]byte, offset+uint64(len(data)))
		copy(grown, h.Buf)
		h.Buf = grown
	}
	copy(h.Buf[offset:], data)
	return nil
}

func (h *MockUploadHandle) Finalize(_ context.Context) (json.RawMessage, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return json.RawMessage(`{"size":` + itoa(len(h.Buf)) + `}`), nil
}

func (h *MockUploadHandle) Abort() {
	h.mu.Lock()
	h.Aborted = true
	h.mu.Unlock()
}

func itoa(n int) string {
	data, _ := json.Marshal(n)
	return string(data)
}
