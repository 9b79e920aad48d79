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

// Package connection drives one WebSocket socket through the pre-auth SRP
// handshake and then the authenticated envelope/app-protocol loop. It is
// the one place that owns a *websocket.Conn: framing, crypto, and the
// application protocol are all reached through it but never touch the
// socket themselves.
package connection

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/relaywire/relaywire/credential"
	"github.com/relaywire/relaywire/crypto/envelope"
	"github.com/relaywire/relaywire/errs"
	"github.com/relaywire/relaywire/internal/logger"
	"github.com/relaywire/relaywire/internal/metrics"
	"github.com/relaywire/relaywire/protocol"
	"github.com/relaywire/relaywire/session"
	"github.com/relaywire/relaywire/srp"
)

// State is a position in the per-connection authentication state machine
// described by §4.6: connecting, then either the hello or resume branch,
// ending in authenticated or closed.
type State int

const (
	StateConnecting State = iota
	StateHelloSeen
	StateResumeSeen
	StateProofSeen
	StateAuthenticated
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateHelloSeen:
		return "srp-hello-seen"
	case StateResumeSeen:
		return "srp-resume-seen"
	case StateProofSeen:
		return "srp-proof-seen"
	case StateAuthenticated:
		return "authenticated"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// handshakeTimeout is the deadline from connecting to authenticated,
// per §4.2's "handshake must reach authenticated within 30 s."
const handshakeTimeout = 30 * time.Second

// sessionTTL bounds how long an issued sessionId may be resumed for.
const sessionTTL = 24 * time.Hour

// outboundQueueSize bounds the per-connection write queue; once full,
// Send blocks the goroutine producing it, per §5's backpressure rule.
const outboundQueueSize = 256

// Conn drives a single authenticated (or authenticating) WebSocket
// connection. One Conn exists for the lifetime of one socket.
type Conn struct {
	ws  *websocket.Conn
	log logger.Logger

	credentials credential.Store
	sessions    session.Store
	router      protocol.Router
	events      protocol.EventSource
	uploads     protocol.UploadSink
	maxInflight int

	mu       sync.Mutex
	state    State
	username string
	sessID   string
	key      envelope.Key
	srpSrv   *srp.ServerHandshake
	gzipOK   bool

	outbound chan outboundFrame
	writerWG sync.WaitGroup
	closeCh  chan struct{}
	closeErr error

	proto *protocol.Session
}

type outboundFrame struct {
	messageType int
	data        []byte
	closeCode   int // non-zero marks this frame as the terminal close control frame
	closeReason string
}

// Deps bundles the application-supplied collaborators a Conn needs. All
// fields are required except MaxInflight (0 selects protocol's default)
// and Logger (nil selects the default logger).
type Deps struct {
	Credentials credential.Store
	Sessions    session.Store
	Router      protocol.Router
	Events      protocol.EventSource
	Uploads     protocol.UploadSink
	MaxInflight int
	Logger      logger.Logger
}

// New wraps an already-upgraded WebSocket connection. The caller owns
// accepting the HTTP upgrade; New only drives the protocol from there.
func New(ws *websocket.Conn, deps Deps) *Conn {
	log := deps.Logger
	if log == nil {
		log = logger.GetDefaultLogger()
	}
	return &Conn{
		ws:          ws,
		log:         log,
		credentials: deps.Credentials,
		sessions:    deps.Sessions,
		router:      deps.Router,
		events:      deps.Events,
		uploads:     deps.Uploads,
		maxInflight: deps.MaxInflight,
		state:       StateConnecting,
		outbound:    make(chan outboundFrame, outboundQueueSize),
		closeCh:     make(chan struct{}),
	}
}

// Run drives the connection until it closes. It returns the read error
// that ended the loop (a *websocket.CloseError when the peer closed the
// socket), or nil when Run itself closed the connection after a closing
// error. It blocks until the socket is done.
func (c *Conn) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	c.writerWG.Add(1)
	go c.runWriter()

	deadline := time.Now().Add(handshakeTimeout)
	_ = c.ws.SetReadDeadline(deadline)

	timeoutTimer := time.AfterFunc(handshakeTimeout, func() {
		c.mu.Lock()
		authenticated := c.state == StateAuthenticated
		c.mu.Unlock()
		if !authenticated {
			c.closeWith(errs.New(errs.Timeout, "handshake_timeout"))
		}
	})
	defer timeoutTimer.Stop()

	var runErr error
runLoop:
	for {
		messageType, data, err := c.ws.ReadMessage()
		if err != nil {
			runErr = err
			break runLoop
		}

		c.mu.Lock()
		state := c.state
		c.mu.Unlock()

		if state == StateAuthenticated {
			if messageType != websocket.BinaryMessage {
				c.closeWith(errs.New(errs.EnvelopeError, "invalid_envelope"))
				break runLoop
			}
			if err := c.dispatchEnvelope(ctx, data); err != nil {
				if kind, ok := errs.KindOf(err); ok && kind.Closes() {
					c.closeWith(err)
					break runLoop
				}
				c.log.Warn("envelope dispatch error", logger.Error(err))
			}
			continue
		}

		if messageType != websocket.TextMessage {
			c.closeWith(errs.New(errs.AuthRequired, "authentication required"))
			break runLoop
		}
		if err := c.dispatchHandshake(ctx, data); err != nil {
			if kind, ok := errs.KindOf(err); ok && kind.Closes() {
				c.closeWith(err)
				break runLoop
			}
			c.log.Warn("handshake error", logger.Error(err))
			continue
		}
		c.mu.Lock()
		authenticated := c.state == StateAuthenticated
		c.mu.Unlock()
		if authenticated {
			timeoutTimer.Stop()
			_ = c.ws.SetReadDeadline(time.Time{})
			metrics.SessionsActive.Inc()
		}
	}

	cancel()
	c.finish()
	return runErr
}

// finish tears down per-connection state exactly once: subscriptions,
// uploads, the authenticated gauge, and the writer goroutine.
func (c *Conn) finish() {
	c.mu.Lock()
	wasAuthenticated := c.state == StateAuthenticated
	c.state = StateClosed
	proto := c.proto
	c.mu.Unlock()

	if proto != nil {
		proto.Close()
	}
	if wasAuthenticated {
		metrics.SessionsActive.Dec()
	}

	close(c.outbound)
	c.writerWG.Wait()
	_ = c.ws.Close()
}

// closeWith records the terminal error and queues the WebSocket close
// frame behind any already-enqueued messages, so the peer still sees
// e.g. a pending srp_error before the socket goes away. The read loop
// unwinds once ReadMessage next fails.
func (c *Conn) closeWith(err error) {
	code := 1000
	reason := "closed"
	if kind, ok := errs.KindOf(err); ok {
		if cc := kind.CloseCode(); cc != 0 {
			code = cc
		}
		reason = kind.String()
	}
	metrics.ConnectionsClosed.WithLabelValues(fmt.Sprintf("%d", code)).Inc()

	c.mu.Lock()
	c.closeErr = err
	c.mu.Unlock()

	defer func() { recover() }() // outbound may already be closed on a racing shutdown
	c.outbound <- outboundFrame{closeCode: code, closeReason: reason}
	_ = c.ws.SetReadDeadline(time.Now())
}

// Shutdown closes the connection from the server side, e.g. during a
// graceful server stop, per the ServerGoingAway kind (close 4009).
func (c *Conn) Shutdown() {
	c.closeWith(errs.New(errs.ServerGoingAway, "server_going_away"))
}

// runWriter is the single writer goroutine for this socket: every
// outbound frame, handshake, post-auth, or the terminal close control
// frame, passes through here so two goroutines never call the gorilla
// connection's write methods concurrently.
func (c *Conn) runWriter() {
	defer c.writerWG.Done()
	for frame := range c.outbound {
		if frame.closeCode != 0 {
			deadline := time.Now().Add(time.Second)
			msg := websocket.FormatCloseMessage(frame.closeCode, frame.closeReason)
			_ = c.ws.WriteControl(websocket.CloseMessage, msg, deadline)
			continue
		}
		_ = c.ws.SetWriteDeadline(time.Now().Add(10 * time.Second))
		if err := c.ws.WriteMessage(frame.messageType, frame.data); err != nil {
			c.log.Warn("write failed", logger.Error(err))
		}
	}
}

// enqueue hands a raw frame to the writer goroutine, blocking if the
// outbound queue is full — the backpressure rule from §5.
func (c *Conn) enqueue(messageType int, data []byte) {
	defer func() { recover() }() // outbound may already be closed on shutdown race
	c.outbound <- outboundFrame{messageType: messageType, data: data}
}

// sendText JSON-marshals v and enqueues it as a text frame; used only for
// pre-auth SRP messages.
func (c *Conn) sendText(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	c.enqueue(websocket.TextMessage, data)
	return nil
}

// Send implements protocol.SendFunc: it JSON-encodes v, seals it in an
// envelope under the connection's session key, and enqueues it as a
// binary frame. format is gzip JSON if the client announced support,
// else plain JSON.
func (c *Conn) Send(v any) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return err
	}

	c.mu.Lock()
	key := c.key
	format := envelope.FormatJSON
	if c.gzipOK {
		format = envelope.FormatGzipJSON
	}
	c.mu.Unlock()

	frame, err := envelope.Encode(key, format, payload)
	if err != nil {
		return err
	}
	formatLabel := "json"
	if format == envelope.FormatGzipJSON {
		formatLabel = "gzip_json"
	}
	metrics.EnvelopesSealed.WithLabelValues(formatLabel).Inc()

	c.enqueue(websocket.BinaryMessage, frame)
	return nil
}
