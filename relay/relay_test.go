package relay

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relaywire/relaywire/pkg/wire"
)

func newTestRelay(t *testing.T) (*httptest.Server, string) {
	t.Helper()
	srv := New(Deps{RateLimitPerSec: 1 << 20, RateLimitBurst: 1 << 20})
	mux := http.NewServeMux()
	mux.Handle("/relay", srv.Handler())
	httpSrv := httptest.NewServer(mux)
	url := "ws" + strings.TrimPrefix(httpSrv.URL, "http") + "/relay"
	return httpSrv, url
}

func dialRelay(t *testing.T, url string) *websocket.Conn {
	t.Helper()
	ws, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	return ws
}

func TestPairAndBidirectionalPassthrough(t *testing.T) {
	httpSrv, url := newTestRelay(t)
	defer httpSrv.Close()

	serverSide := dialRelay(t, url)
	defer serverSide.Close()
	require.NoError(t, serverSide.WriteJSON(wire.ServerRegister{Type: wire.TypeServerRegister, Username: "bob"}))

	clientSide := dialRelay(t, url)
	defer clientSide.Close()
	require.NoError(t, clientSide.WriteJSON(wire.ClientConnect{Type: wire.TypeClientConnect, Username: "bob"}))

	var paired wire.ServerPaired
	require.NoError(t, serverSide.ReadJSON(&paired))
	assert.Equal(t, wire.TypeServerPaired, paired.Type)
	assert.NotEmpty(t, paired.ClientID)

	var connected wire.ClientConnected
	require.NoError(t, clientSide.ReadJSON(&connected))
	assert.Equal(t, wire.TypeClientConnected, connected.Type)

	payload := make([]byte, 256*1024)
	for i := range payload {
		payload[i] = byte(i)
	}
	require.NoError(t, clientSide.WriteMessage(websocket.BinaryMessage, payload))
	_, got, err := serverSide.ReadMessage()
	require.NoError(t, err)
	assert.Equal(t, payload, got)

	require.NoError(t, serverSide.WriteMessage(websocket.TextMessage, []byte("hello from server")))
	_, got2, err := clientSide.ReadMessage()
	require.NoError(t, err)
	assert.Equal(t, "hello from server", string(got2))
}

func TestClientConnectUnknownUsername(t *testing.T) {
	httpSrv, url := newTestRelay(t)
	defer httpSrv.Close()

	client := dialRelay(t, url)
	defer client.Close()
	require.NoError(t, client.WriteJSON(wire.ClientConnect{Type: wire.TypeClientConnect, Username: "ghost"}))

	var errMsg wire.ClientError
	require.NoError(t, client.ReadJSON(&errMsg))
	assert.Equal(t, "unknown_username", errMsg.Reason)
}

func TestClientConnectAlreadyPaired(t *testing.T) {
	httpSrv, url := newTestRelay(t)
	defer httpSrv.Close()

	serverSide := dialRelay(t, url)
	defer serverSide.Close()
	require.NoError(t, serverSide.WriteJSON(wire.ServerRegister{Type: wire.TypeServerRegister, Username: "carol"}))

	first := dialRelay(t, url)
	defer first.Close()
	require.NoError(t, first.WriteJSON(wire.ClientConnect{Type: wire.TypeClientConnect, Username: "carol"}))

	var paired wire.ServerPaired
	require.NoError(t, serverSide.ReadJSON(&paired))
	var connected wire.ClientConnected
	require.NoError(t, first.ReadJSON(&connected))

	second := dialRelay(t, url)
	defer second.Close()
	require.NoError(t, second.WriteJSON(wire.ClientConnect{Type: wire.TypeClientConnect, Username: "carol"}))

	var errMsg wire.ClientError
	require.NoError(t, second.ReadJSON(&errMsg))
	assert.Equal(t, "server_busy", errMsg.Reason)
}

func TestServerDisconnectClosesPairedClient(t *testing.T) {
	httpSrv, url := newTestRelay(t)
	defer httpSrv.Close()

	serverSide := dialRelay(t, url)
	require.NoError(t, serverSide.WriteJSON(wire.ServerRegister{Type: wire.TypeServerRegister, Username: "dave"}))

	clientSide := dialRelay(t, url)
	defer clientSide.Close()
	require.NoError(t, clientSide.WriteJSON(wire.ClientConnect{Type: wire.TypeClientConnect, Username: "dave"}))

	var paired wire.ServerPaired
	require.NoError(t, serverSide.ReadJSON(&paired))
	var connected wire.ClientConnected
	require.NoError(t, clientSide.ReadJSON(&connected))

	require.NoError(t, serverSide.Close())

	_ = clientSide.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, _, err := clientSide.ReadMessage()
	require.Error(t, err)
}

func TestReregisterAfterServerCloses(t *testing.T) {
	httpSrv, url := newTestRelay(t)
	defer httpSrv.Close()

	first := dialRelay(t, url)
	require.NoError(t, first.WriteJSON(wire.ServerRegister{Type: wire.TypeServerRegister, Username: "erin"}))
	require.NoError(t, first.Close())

	time.Sleep(100 * time.Millisecond)

	second := dialRelay(t, url)
	defer second.Close()
	require.NoError(t, second.WriteJSON(wire.ServerRegister{Type: wire.TypeServerRegister, Username: "erin"}))

	client := dialRelay(t, url)
	defer client.Close()
	require.NoError(t, client.WriteJSON(wire.ClientConnect{Type: wire.TypeClientConnect, Username: "erin"}))

	var connected wire.ClientConnected
	require.NoError(t, client.ReadJSON(&connected))
}
