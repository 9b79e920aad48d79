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

// Package relay implements the pair server: a blind byte-pipe that
// matches exactly one registered server socket to one client socket per
// username and thereafter copies frames verbatim between them without
// ever interpreting their contents. It never sees a session key, never
// decrypts anything, and carries no application state beyond the
// username maps themselves.
package relay

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/relaywire/relaywire/internal/logger"
	"github.com/relaywire/relaywire/internal/metrics"
	"github.com/relaywire/relaywire/pkg/wire"
)

// registerReadTimeout bounds how long a newly-upgraded socket has to
// send its first control frame (server_register or client_connect).
const registerReadTimeout = 30 * time.Second

// pairedWriteTimeout is the "15s server_paired ACK" deadline from §4.7:
// the write of server_paired to the registered server socket must
// complete within this window or the server is treated as offline.
const pairedWriteTimeout = 15 * time.Second

// Server is the pair server. One Server instance owns the
// username -> registered-server-socket map for the process.
type Server struct {
	log      logger.Logger
	upgrader websocket.Upgrader
	limiters *limiterRegistry

	mu      sync.Mutex
	servers map[string]*registeredServer
}

// registeredServer is one server socket waiting for (or already piped
// to) a client. target is nil until a client successfully pairs. ready
// only flips true once the client side has finished writing its own
// client_connected reply — until then target is reserved (so a second
// client_connect is rejected as already-paired) but the server's read
// loop must not yet forward to it, or its own client_connected write
// would race a forwarded frame on the same client socket.
type registeredServer struct {
	conn *websocket.Conn

	mu     sync.Mutex
	target *websocket.Conn
	ready  bool
}

// Deps bundles the pair server's flood-limit configuration.
type Deps struct {
	RateLimitPerSec float64
	RateLimitBurst  int
	Logger          logger.Logger
}

// New builds a pair server ready to accept registrations and pairings.
func New(deps Deps) *Server {
	log := deps.Logger
	if log == nil {
		log = logger.GetDefaultLogger()
	}
	return &Server{
		log:      log,
		upgrader: websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }},
		limiters: newLimiterRegistry(deps.RateLimitPerSec, deps.RateLimitBurst),
		servers:  make(map[string]*registeredServer),
	}
}

// Handler returns the HTTP handler the relay's WebSocket listener mounts.
func (s *Server) Handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ws, err := s.upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		s.serve(ws)
	}
}

// serve reads exactly one control frame to learn whether this socket is
// registering as a server or connecting as a client, then dispatches to
// the matching, blocking handler. It never interprets anything after
// that first frame.
func (s *Server) serve(ws *websocket.Conn) {
	_ = ws.SetReadDeadline(time.Now().Add(registerReadTimeout))
	_, data, err := ws.ReadMessage()
	if err != nil {
		_ = ws.Close()
		return
	}
	_ = ws.SetReadDeadline(time.Time{})

	var env wire.Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		_ = ws.Close()
		return
	}

	switch env.Type {
	case wire.TypeServerRegister:
		var reg wire.ServerRegister
		if err := json.Unmarshal(data, &reg); err != nil || reg.Username == "" {
			_ = ws.Close()
			return
		}
		s.handleServerRegister(ws, reg.Username)

	case wire.TypeClientConnect:
		var connect wire.ClientConnect
		if err := json.Unmarshal(data, &connect); err != nil || connect.Username == "" {
			_ = ws.Close()
			return
		}
		s.handleClientConnect(ws, connect.Username)

	default:
		_ = ws.Close()
	}
}

// handleServerRegister claims username for ws and then reads frames from
// it for the rest of its life: before pairing there is nothing to
// forward, after pairing every frame is copied verbatim to the paired
// client. It returns only when ws closes.
func (s *Server) handleServerRegister(ws *websocket.Conn, username string) {
	if !s.limiters.allowPairSetup(username) {
		_ = ws.Close()
		return
	}

	rs := &registeredServer{conn: ws}
	s.mu.Lock()
	s.servers[username] = rs
	s.mu.Unlock()
	s.log.Info("relay: server registered", logger.String("username", username))

	defer func() {
		s.mu.Lock()
		if s.servers[username] == rs {
			delete(s.servers, username)
		}
		s.mu.Unlock()
		s.limiters.release(username)

		rs.mu.Lock()
		target := rs.target
		rs.mu.Unlock()
		if target != nil {
			_ = target.Close()
		}
		_ = ws.Close()
		s.log.Info("relay: server connection closed", logger.String("username", username))
	}()

	for {
		messageType, data, err := ws.ReadMessage()
		if err != nil {
			return
		}

		rs.mu.Lock()
		target := rs.target
		ready := rs.ready
		rs.mu.Unlock()
		if target == nil || !ready {
			continue // registered but not yet (fully) paired: nothing to forward to
		}

		s.limiters.throttle(username, len(data))
		metrics.RelayBytesRelayed.WithLabelValues("server_to_client").Add(float64(len(data)))
		if err := target.WriteMessage(messageType, data); err != nil {
			return
		}
	}
}

// handleClientConnect attempts to pair ws with the server registered as
// username, then, once paired, reads frames from ws for the rest of its
// life and copies each one verbatim to the paired server.
func (s *Server) handleClientConnect(ws *websocket.Conn, username string) {
	defer ws.Close()

	s.mu.Lock()
	rs, ok := s.servers[username]
	s.mu.Unlock()
	if !ok {
		metrics.RelayPairAttempts.WithLabelValues("no_server").Inc()
		_ = ws.WriteJSON(wire.ClientError{Type: wire.TypeClientError, Reason: "unknown_username"})
		return
	}
	if !s.limiters.allowPairSetup(username) {
		return
	}

	rs.mu.Lock()
	alreadyPaired := rs.target != nil
	if !alreadyPaired {
		rs.target = ws
	}
	rs.mu.Unlock()
	if alreadyPaired {
		metrics.RelayPairAttempts.WithLabelValues("already_paired").Inc()
		_ = ws.WriteJSON(wire.ClientError{Type: wire.TypeClientError, Reason: "server_busy"})
		return
	}

	_ = rs.conn.SetWriteDeadline(time.Now().Add(pairedWriteTimeout))
	ackErr := rs.conn.WriteJSON(wire.ServerPaired{Type: wire.TypeServerPaired, ClientID: wire.NewSessionID()})
	_ = rs.conn.SetWriteDeadline(time.Time{})
	if ackErr != nil {
		rs.mu.Lock()
		rs.target = nil
		rs.mu.Unlock()
		metrics.RelayPairAttempts.WithLabelValues("timeout").Inc()
		_ = ws.WriteJSON(wire.ClientError{Type: wire.TypeClientError, Reason: "server_offline"})
		return
	}

	if err := ws.WriteJSON(wire.ClientConnected{Type: wire.TypeClientConnected}); err != nil {
		rs.mu.Lock()
		rs.target = nil
		rs.mu.Unlock()
		return
	}

	// Only now may the registered server's read loop start forwarding
	// frames to ws: the client_connected write above is guaranteed to
	// have completed, so there is no longer a second writer that could
	// race it on this socket.
	rs.mu.Lock()
	rs.ready = true
	rs.mu.Unlock()

	metrics.RelayPairAttempts.WithLabelValues("paired").Inc()
	metrics.RelayPairsActive.Inc()
	s.log.Info("relay: paired", logger.String("username", username))

	defer func() {
		// The pipe is torn down from whichever side notices first; closing
		// the server socket here unblocks its ReadMessage loop so its own
		// cleanup (map removal, limiter release, metric) runs exactly once.
		rs.mu.Lock()
		if rs.target == ws {
			rs.target = nil
			rs.ready = false
		}
		rs.mu.Unlock()
		_ = rs.conn.Close()
		metrics.RelayPairsActive.Dec()
	}()

	for {
		messageType, data, err := ws.ReadMessage()
		if err != nil {
			return
		}
		s.limiters.throttle(username, len(data))
		metrics.RelayBytesRelayed.WithLabelValues("client_to_server").Add(float64(len(data)))
		if err := rs.conn.WriteMessage(messageType, data); err != nil {
			return
		}
	}
}
