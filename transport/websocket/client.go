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

// Package websocket implements transport.Transport over a direct
// WebSocket connection, and over one relayed through the pair server.
package websocket

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/relaywire/relaywire/transport"
)

// DialTransport implements transport.Transport by dialing a WebSocket
// URL directly — the LAN path, with no pair server in front of it.
type DialTransport struct {
	url          string
	dialTimeout  time.Duration
	writeTimeout time.Duration

	mu   sync.Mutex
	conn *websocket.Conn
}

var _ transport.Transport = (*DialTransport)(nil)

// NewDialTransport builds a transport that connects directly to url.
func NewDialTransport(url string) *DialTransport {
	return &DialTransport{
		url:          url,
		dialTimeout:  30 * time.Second,
		writeTimeout: 10 * time.Second,
	}
}

// Dial opens the WebSocket connection.
func (t *DialTransport) Dial(ctx context.Context) error {
	dialer := &websocket.Dialer{HandshakeTimeout: t.dialTimeout}
	conn, resp, err := dialer.DialContext(ctx, t.url, nil)
	if err != nil {
		if resp != nil {
			return fmt.Errorf("websocket dial %s: http %d: %w", t.url, resp.StatusCode, err)
		}
		return fmt.Errorf("websocket dial %s: %w", t.url, err)
	}
	t.mu.Lock()
	t.conn = conn
	t.mu.Unlock()
	return nil
}

// WriteMessage implements transport.Transport.
func (t *DialTransport) WriteMessage(messageType int, data []byte) error {
	t.mu.Lock()
	conn := t.conn
	t.mu.Unlock()
	if conn == nil {
		return fmt.Errorf("websocket transport: not connected")
	}
	_ = conn.SetWriteDeadline(time.Now().Add(t.writeTimeout))
	return conn.WriteMessage(messageType, data)
}

// ReadMessage implements transport.Transport.
func (t *DialTransport) ReadMessage() (int, []byte, error) {
	t.mu.Lock()
	conn := t.conn
	t.mu.Unlock()
	if conn == nil {
		return 0, nil, fmt.Errorf("websocket transport: not connected")
	}
	return conn.ReadMessage()
}

// Close closes the underlying connection.
func (t *DialTransport) Close() error {
	t.mu.Lock()
	conn := t.conn
	t.conn = nil
	t.mu.Unlock()
	if conn == nil {
		return nil
	}
	_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	return conn.Close()
}
