package websocket

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	gorillaws "github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relaywire/relaywire/connection"
	"github.com/relaywire/relaywire/credential"
	"github.com/relaywire/relaywire/protocol"
	"github.com/relaywire/relaywire/relay"
	"github.com/relaywire/relaywire/session"
)

func newDirectServer(t *testing.T) (*httptest.Server, string) {
	t.Helper()
	srv := NewServer(connection.Deps{
		Credentials: credential.NewMemoryStore(),
		Sessions:    session.NewMemoryStore(),
		Router:      protocol.EchoRouter{},
		Events:      &protocol.MockEventSource{},
		Uploads:     protocol.NewMockUploadSink(),
	})
	mux := http.NewServeMux()
	mux.Handle("/ws", srv.Handler())
	httpSrv := httptest.NewServer(mux)
	url := "ws" + strings.TrimPrefix(httpSrv.URL, "http") + "/ws"
	return httpSrv, url
}

func TestDialTransportRoundTrip(t *testing.T) {
	httpSrv, url := newDirectServer(t)
	defer httpSrv.Close()

	tr := NewDialTransport(url)
	require.NoError(t, tr.Dial(context.Background()))
	defer tr.Close()

	require.NoError(t, tr.WriteMessage(gorillaws.TextMessage, []byte(`{"type":"srp_hello","identity":"nobody"}`)))

	mt, data, err := tr.ReadMessage()
	require.NoError(t, err)
	assert.Equal(t, gorillaws.TextMessage, mt)
	assert.Contains(t, string(data), "srp_error")
}

func TestDialTransportNotConnected(t *testing.T) {
	tr := NewDialTransport("ws://127.0.0.1:1/does-not-exist")
	err := tr.WriteMessage(gorillaws.BinaryMessage, []byte("x"))
	assert.Error(t, err)
	_, _, err = tr.ReadMessage()
	assert.Error(t, err)
}

func TestServerShutdownClosesTrackedConnections(t *testing.T) {
	srv := NewServer(connection.Deps{
		Credentials: credential.NewMemoryStore(),
		Sessions:    session.NewMemoryStore(),
		Router:      protocol.EchoRouter{},
		Events:      &protocol.MockEventSource{},
		Uploads:     protocol.NewMockUploadSink(),
	})
	mux := http.NewServeMux()
	mux.Handle("/ws", srv.Handler())
	httpSrv := httptest.NewServer(mux)
	defer httpSrv.Close()
	url := "ws" + strings.TrimPrefix(httpSrv.URL, "http") + "/ws"

	tr := NewDialTransport(url)
	require.NoError(t, tr.Dial(context.Background()))
	defer tr.Close()

	// Give the server a moment to register the connection before shutdown.
	time.Sleep(20 * time.Millisecond)
	srv.Shutdown()

	// The socket should observe a close from the server side.
	_, _, err := tr.ReadMessage()
	assert.Error(t, err)
}

func newTestRelay(t *testing.T) (*httptest.Server, string) {
	t.Helper()
	srv := relay.New(relay.Deps{RateLimitPerSec: 1 << 20, RateLimitBurst: 1 << 20})
	mux := http.NewServeMux()
	mux.Handle("/relay", srv.Handler())
	httpSrv := httptest.NewServer(mux)
	url := "ws" + strings.TrimPrefix(httpSrv.URL, "http") + "/relay"
	return httpSrv, url
}

func TestPairTransportUnknownUsername(t *testing.T) {
	httpSrv, url := newTestRelay(t)
	defer httpSrv.Close()

	tr := NewPairTransport(url, "nobody-registered")
	err := tr.Dial(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown_username")
}

func TestPairTransportPassthrough(t *testing.T) {
	httpSrv, url := newTestRelay(t)
	defer httpSrv.Close()

	serverSide, _, err := gorillaws.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer serverSide.Close()
	require.NoError(t, serverSide.WriteJSON(map[string]string{
		"type":     "server_register",
		"username": "carol",
	}))

	clientTr := NewPairTransport(url, "carol")
	require.NoError(t, clientTr.Dial(context.Background()))
	defer clientTr.Close()

	// Drain the server_paired control frame before the pipe goes opaque.
	_, _, err = serverSide.ReadMessage()
	require.NoError(t, err)

	payload := []byte("hello through the relay")
	require.NoError(t, clientTr.WriteMessage(gorillaws.BinaryMessage, payload))

	mt, data, err := serverSide.ReadMessage()
	require.NoError(t, err)
	assert.Equal(t, gorillaws.BinaryMessage, mt)
	assert.Equal(t, payload, data)
}
