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
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/gorilla/websocket"

	"github.com/relaywire/relaywire/pkg/wire"
	"github.com/relaywire/relaywire/transport"
)

// pairAckTimeout bounds how long a client_connect waits for the relay's
// client_connected/client_error reply.
const pairAckTimeout = 20 * time.Second

// PairTransport implements transport.Transport by dialing the pair
// server and completing the client_connect handshake before any SRP
// traffic flows. Once paired, it is indistinguishable from DialTransport
// to everything above it — the relay is a pre-wired byte stream.
type PairTransport struct {
	relayURL    string
	username    string
	dialTimeout time.Duration

	conn *websocket.Conn
}

var _ transport.Transport = (*PairTransport)(nil)

// NewPairTransport builds a transport that pairs with the server
// registered as username on the relay at relayURL before carrying any
// application traffic.
func NewPairTransport(relayURL, username string) *PairTransport {
	return &PairTransport{
		relayURL:    relayURL,
		username:    username,
		dialTimeout: 30 * time.Second,
	}
}

// Dial connects to the relay, sends client_connect, and blocks until the
// relay confirms pairing or reports why it cannot.
func (t *PairTransport) Dial(ctx context.Context) error {
	dialer := &websocket.Dialer{HandshakeTimeout: t.dialTimeout}
	conn, resp, err := dialer.DialContext(ctx, t.relayURL, nil)
	if err != nil {
		if resp != nil {
			return fmt.Errorf("pair dial %s: http %d: %w", t.relayURL, resp.StatusCode, err)
		}
		return fmt.Errorf("pair dial %s: %w", t.relayURL, err)
	}

	if err := conn.WriteJSON(wire.ClientConnect{Type: wire.TypeClientConnect, Username: t.username}); err != nil {
		_ = conn.Close()
		return fmt.Errorf("pair dial: send client_connect: %w", err)
	}

	_ = conn.SetReadDeadline(time.Now().Add(pairAckTimeout))
	var env wire.Envelope
	_, data, err := conn.ReadMessage()
	if err != nil {
		_ = conn.Close()
		return fmt.Errorf("pair dial: await pairing reply: %w", err)
	}
	if err := json.Unmarshal(data, &env); err != nil {
		_ = conn.Close()
		return fmt.Errorf("pair dial: malformed pairing reply: %w", err)
	}

	switch env.Type {
	case wire.TypeClientConnected:
		_ = conn.SetReadDeadline(time.Time{})
		t.conn = conn
		return nil
	case wire.TypeClientError:
		var clientErr wire.ClientError
		_ = json.Unmarshal(data, &clientErr)
		_ = conn.Close()
		return fmt.Errorf("pair dial: relay rejected: %s", clientErr.Reason)
	default:
		_ = conn.Close()
		return fmt.Errorf("pair dial: unexpected reply type %q", env.Type)
	}
}

// WriteMessage implements transport.Transport.
func (t *PairTransport) WriteMessage(messageType int, data []byte) error {
	if t.conn == nil {
		return fmt.Errorf("pair transport: not paired")
	}
	return t.conn.WriteMessage(messageType, data)
}

// ReadMessage implements transport.Transport.
func (t *PairTransport) ReadMessage() (int, []byte, error) {
	if t.conn == nil {
		return 0, nil, fmt.Errorf("pair transport: not paired")
	}
	return t.conn.ReadMessage()
}

// Close implements transport.Transport.
func (t *PairTransport) Close() error {
	if t.conn == nil {
		return nil
	}
	conn := t.conn
	t.conn = nil
	return conn.Close()
}
