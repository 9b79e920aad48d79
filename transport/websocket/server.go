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

package websocket

import (
	"net/http"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/relaywire/relaywire/connection"
	"github.com/relaywire/relaywire/internal/logger"
)

// Server accepts direct (LAN) WebSocket upgrades and hands each one to a
// fresh connection.Conn. It tracks live connections only so Shutdown can
// drain them; it otherwise owns no per-connection state.
type Server struct {
	upgrader websocket.Upgrader
	deps     connection.Deps
	log      logger.Logger

	mu    sync.Mutex
	conns map[*connection.Conn]struct{}
}

// NewServer builds a direct WebSocket server. deps is passed through to
// every connection.Conn it creates.
func NewServer(deps connection.Deps) *Server {
	log := deps.Logger
	if log == nil {
		log = logger.GetDefaultLogger()
	}
	return &Server{
		upgrader: websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }},
		deps:     deps,
		log:      log,
		conns:    make(map[*connection.Conn]struct{}),
	}
}

// Handler returns the http.Handler to mount at the WebSocket endpoint.
func (s *Server) Handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ws, err := s.upgrader.Upgrade(w, r, nil)
		if err != nil {
			s.log.Warn("websocket upgrade failed", logger.Error(err))
			return
		}

		conn := connection.New(ws, s.deps)
		s.track(conn)
		defer s.untrack(conn)

		if err := conn.Run(r.Context()); err != nil {
			s.log.Debug("connection closed", logger.Error(err))
		}
	}
}

func (s *Server) track(c *connection.Conn) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.conns[c] = struct{}{}
}

func (s *Server) untrack(c *connection.Conn) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.conns, c)
}

// Shutdown closes every live connection with the ServerGoingAway close
// code, per §4.6's "server shutting down" kind.
func (s *Server) Shutdown() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for c := range s.conns {
		c.Shutdown()
	}
}
