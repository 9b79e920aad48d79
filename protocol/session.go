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

// defaultMaxInflightRequests bounds concurrent request dispatch per
// connection so one socket cannot exhaust the server's worker pool,
// per §5's "MUST bound its own in-flight work."
const defaultMaxInflightRequests = 64

// requestTimeout is the server's own upper bound on request handling; it
// replies 504 rather than hanging a slot forever, per §4.3.
const requestTimeout = 30 * time.Second

// Session is the per-connection application-protocol multiplexer. One
// Session exists for the lifetime of one authenticated connection.
type Session struct {
	send       SendFunc
	router     Router
	events     EventSource
	uploadSink UploadSink

	sem chan struct{}

	mu      sync.Mutex
	subs    map[string]*subscription
	uploads map[uuid.UUID]*uploadState
}

// NewSession builds a Session. maxInflight <= 0 uses the default.
func NewSession(send SendFunc, router Router, events EventSource, uploads UploadSink, maxInflight int) *Session {
	if maxInflight <= 0 {
		maxInflight = defaultMaxInflightRequests
	}
	return &Session{
		send:       send,
		router:     router,
		events:     events,
		uploadSink: uploads,
		sem:        make(chan struct{}, maxInflight),
		subs:       make(map[string]*subscription),
		uploads:    make(map[uuid.UUID]*uploadState),
	}
}

// HandleRequest dispatches one request asynchronously: responses may be
// interleaved, per §4.3. It acquires a slot from the in-flight semaphore,
// blocking the connection's read loop if the bound is exceeded — this is
// the "responses MUST block the worker producing them" backpressure rule.
func (s *Session) HandleRequest(ctx context.Context, req wire.Request) {
	s.sem <- struct{}{}
	go func() {
		defer func() { <-s.sem }()
		s.deliverRequest(ctx, req)
	}()
}

func (s *Session) deliverRequest(parent context.Context, req wire.Request) {
	start := time.Now()
	ctx, cancel := context.WithTimeout(parent, requestTimeout)
	defer cancel()

	status, headers, body, err := s.router.Deliver(ctx, req.Method, req.Path, req.Headers, req.Body)
	statusLabel := "ok"
	if err != nil {
		status = 504
		if ctx.Err() != nil {
			statusLabel = "timeout"
		} else {
			statusLabel = "error"
		}
	} else if status >= 400 {
		statusLabel = "app_error"
	}
	metrics.RequestsHandled.WithLabelValues(statusLabel).Inc()
	metrics.RequestDuration.Observe(time.Since(start).Seconds())

	_ = s.send(wire.Response{
		Type:    wire.TypeResponse,
		ID:      req.ID,
		Status:  status,
		Headers: headers,
		Body:    body,
	})
}

// HandleSubscribe starts a new subscription. Re-using a live
// subscriptionId is a protocol violation per §3's uniqueness invariant.
func (s *Session) HandleSubscribe(ctx context.Context, sub wire.Subscribe) error {
	s.mu.Lock()
	_, exists := s.subs[sub.SubscriptionID]
	s.mu.Unlock()
	if exists {
		return errs.New(errs.ProtocolViolation, "duplicate_subscription")
	}
	s.startSubscription(ctx, sub)
	return nil
}

// HandleUnsubscribe stops a subscription. An unknown id is a protocol
// violation, per §4.6's close-code table.
func (s *Session) HandleUnsubscribe(unsub wire.Unsubscribe) error {
	if !s.stopSubscription(unsub.SubscriptionID) {
		return errs.New(errs.ProtocolViolation, "unknown_subscription")
	}
	return nil
}

// HandleUploadStart, HandleUploadChunk, and HandleUploadEnd drive the
// three-phase upload state machine described in §4.5.
func (s *Session) HandleUploadStart(ctx context.Context, start wire.UploadStart) error {
	return s.handleUploadStart(ctx, start)
}

func (s *Session) HandleUploadChunk(ctx context.Context, chunk wire.Chunk) error {
	return s.handleUploadChunk(ctx, chunk)
}

func (s *Session) HandleUploadEnd(ctx context.Context, end wire.UploadEnd) error {
	return s.handleUploadEnd(ctx, end)
}

// Close releases every subscription and in-flight upload. Called once
// when the owning connection closes.
func (s *Session) Close() {
	s.stopAllSubscriptions()
	s.abortAllUploads()
}
