package connection

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	gorillaws "github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relaywire/relaywire/credential"
	"github.com/relaywire/relaywire/crypto/envelope"
	"github.com/relaywire/relaywire/pkg/wire"
	"github.com/relaywire/relaywire/protocol"
	"github.com/relaywire/relaywire/session"
	"github.com/relaywire/relaywire/srp"
)

var upgrader = gorillaws.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}

type testServer struct {
	httpSrv     *httptest.Server
	credentials credential.Store
	sessions    session.Store
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	ts := &testServer{
		credentials: credential.NewMemoryStore(),
		sessions:    session.NewMemoryStore(),
	}
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		ws, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		conn := New(ws, Deps{
			Credentials: ts.credentials,
			Sessions:    ts.sessions,
			Router:      protocol.EchoRouter{},
			Events:      &protocol.MockEventSource{},
			Uploads:     protocol.NewMockUploadSink(),
		})
		_ = conn.Run(r.Context())
	})
	ts.httpSrv = httptest.NewServer(mux)
	return ts
}

func (ts *testServer) wsURL() string {
	return "ws" + strings.TrimPrefix(ts.httpSrv.URL, "http") + "/ws"
}

func (ts *testServer) register(t *testing.T, username, password string) {
	t.Helper()
	ver, err := srp.NewVerifier(username, password)
	require.NoError(t, err)
	require.NoError(t, ts.credentials.Register(context.Background(), &credential.Record{
		Username: username, Salt: ver.Salt, Verifier: ver.Verifier, CreatedAt: time.Now(),
	}))
}

func dial(t *testing.T, url string) *gorillaws.Conn {
	t.Helper()
	ws, _, err := gorillaws.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	return ws
}

// fullHandshake drives a complete srp_hello/srp_proof exchange over ws
// and returns the negotiated session id and key.
func fullHandshake(t *testing.T, ws *gorillaws.Conn, username, password string) (sessionID string, key [32]byte) {
	t.Helper()
	require.NoError(t, ws.WriteJSON(wire.SRPHello{Type: wire.TypeSRPHello, Identity: username}))

	var challenge wire.SRPServerChallenge
	require.NoError(t, ws.ReadJSON(&challenge))
	require.Equal(t, wire.TypeSRPServerChallenge, challenge.Type)

	client := srp.NewClientHandshake(username, password)
	proof, err := client.Finish(challenge.Salt, challenge.B)
	require.NoError(t, err)

	require.NoError(t, ws.WriteJSON(wire.SRPProof{Type: wire.TypeSRPProof, A: proof.A, M1: proof.M1}))

	var verify wire.SRPServerVerify
	require.NoError(t, ws.ReadJSON(&verify))
	require.True(t, client.CheckServerProof(verify.M2))
	require.NotEmpty(t, verify.SessionID)

	return verify.SessionID, client.SessionKey()
}

func sendRequest(t *testing.T, ws *gorillaws.Conn, key [32]byte, req wire.Request) {
	t.Helper()
	body, err := json.Marshal(req)
	require.NoError(t, err)
	frame, err := envelope.Encode(key, envelope.FormatJSON, body)
	require.NoError(t, err)
	require.NoError(t, ws.WriteMessage(gorillaws.BinaryMessage, frame))
}

func readResponse(t *testing.T, ws *gorillaws.Conn, key [32]byte) wire.Response {
	t.Helper()
	_, data, err := ws.ReadMessage()
	require.NoError(t, err)
	_, payload, err := envelope.Decode(key, data)
	require.NoError(t, err)
	var resp wire.Response
	require.NoError(t, json.Unmarshal(payload, &resp))
	return resp
}

func TestFullHandshakeAndEchoRequest(t *testing.T) {
	ts := newTestServer(t)
	defer ts.httpSrv.Close()
	ts.register(t, "alice", "correct horse battery staple")

	ws := dial(t, ts.wsURL())
	defer ws.Close()

	_, key := fullHandshake(t, ws, "alice", "correct horse battery staple")

	sendRequest(t, ws, key, wire.Request{
		Type: wire.TypeRequest, ID: "req-1", Method: "POST", Path: "/echo",
		Body: json.RawMessage(`{"x":1}`),
	})

	resp := readResponse(t, ws, key)
	assert.Equal(t, "req-1", resp.ID)
	assert.Equal(t, 200, resp.Status)
	assert.JSONEq(t, `{"x":1}`, string(resp.Body))
}

func TestWrongPasswordFailsHandshake(t *testing.T) {
	ts := newTestServer(t)
	defer ts.httpSrv.Close()
	ts.register(t, "bob", "the-real-password")

	ws := dial(t, ts.wsURL())
	defer ws.Close()

	require.NoError(t, ws.WriteJSON(wire.SRPHello{Type: wire.TypeSRPHello, Identity: "bob"}))
	var challenge wire.SRPServerChallenge
	require.NoError(t, ws.ReadJSON(&challenge))

	client := srp.NewClientHandshake("bob", "wrong-password")
	proof, err := client.Finish(challenge.Salt, challenge.B)
	require.NoError(t, err)
	require.NoError(t, ws.WriteJSON(wire.SRPProof{Type: wire.TypeSRPProof, A: proof.A, M1: proof.M1}))

	_, _, err = ws.ReadMessage()
	require.Error(t, err)
	closeErr, ok := err.(*gorillaws.CloseError)
	require.True(t, ok)
	assert.Equal(t, 4002, closeErr.Code)
}

func TestUnknownIdentityClosesInvalidProof(t *testing.T) {
	ts := newTestServer(t)
	defer ts.httpSrv.Close()

	ws := dial(t, ts.wsURL())
	defer ws.Close()

	require.NoError(t, ws.WriteJSON(wire.SRPHello{Type: wire.TypeSRPHello, Identity: "ghost"}))

	var srpErr wire.SRPError
	require.NoError(t, ws.ReadJSON(&srpErr))
	assert.Equal(t, "invalid_identity", srpErr.Message)

	_, _, err := ws.ReadMessage()
	require.Error(t, err)
	closeErr, ok := err.(*gorillaws.CloseError)
	require.True(t, ok)
	assert.Equal(t, 4002, closeErr.Code)
}

func TestTamperedEnvelopeClosesWithEnvelopeError(t *testing.T) {
	ts := newTestServer(t)
	defer ts.httpSrv.Close()
	ts.register(t, "carol", "hunter2-but-longer")

	ws := dial(t, ts.wsURL())
	defer ws.Close()

	_, key := fullHandshake(t, ws, "carol", "hunter2-but-longer")

	body, err := json.Marshal(wire.Request{Type: wire.TypeRequest, ID: "req-x", Method: "GET", Path: "/echo"})
	require.NoError(t, err)
	frame, err := envelope.Encode(key, envelope.FormatJSON, body)
	require.NoError(t, err)
	frame[len(frame)-1] ^= 0xFF // flip the last ciphertext byte

	require.NoError(t, ws.WriteMessage(gorillaws.BinaryMessage, frame))

	_, _, err = ws.ReadMessage()
	require.Error(t, err)
	closeErr, ok := err.(*gorillaws.CloseError)
	require.True(t, ok)
	assert.Equal(t, 4003, closeErr.Code)
}

func TestResumeAfterReconnect(t *testing.T) {
	ts := newTestServer(t)
	defer ts.httpSrv.Close()
	ts.register(t, "dave", "another-long-password")

	ws1 := dial(t, ts.wsURL())
	sessionID, key := fullHandshake(t, ws1, "dave", "another-long-password")
	ws1.Close()

	ws2 := dial(t, ts.wsURL())
	defer ws2.Close()

	proofBody, err := json.Marshal(wire.ResumeProof{Timestamp: time.Now().UnixMilli()})
	require.NoError(t, err)
	proofFrame, err := envelope.Encode(key, envelope.FormatJSON, proofBody)
	require.NoError(t, err)
	proofB64 := base64.StdEncoding.EncodeToString(proofFrame)

	require.NoError(t, ws2.WriteJSON(wire.SRPResume{
		Type: wire.TypeSRPResume, Identity: "dave", SessionID: sessionID, Proof: proofB64,
	}))

	var resumed wire.SRPSessionResumed
	require.NoError(t, ws2.ReadJSON(&resumed))
	assert.Equal(t, sessionID, resumed.SessionID)

	sendRequest(t, ws2, key, wire.Request{Type: wire.TypeRequest, ID: "req-2", Method: "POST", Path: "/echo", Body: json.RawMessage(`{"y":2}`)})
	resp := readResponse(t, ws2, key)
	assert.Equal(t, 200, resp.Status)
}

func TestResumeWithUnknownSessionIsInvalid(t *testing.T) {
	ts := newTestServer(t)
	defer ts.httpSrv.Close()

	ws := dial(t, ts.wsURL())
	defer ws.Close()

	require.NoError(t, ws.WriteJSON(wire.SRPResume{
		Type: wire.TypeSRPResume, Identity: "nobody", SessionID: "ghost-session", Proof: "bm90LXJlYWw=",
	}))

	var invalid wire.SRPSessionInvalid
	require.NoError(t, ws.ReadJSON(&invalid))
	assert.Equal(t, "unknown", invalid.Reason)
}
