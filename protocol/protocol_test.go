package protocol

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relaywire/relaywire/errs"
	"github.com/relaywire/relaywire/pkg/wire"
)

type recordingSender struct {
	mu  sync.Mutex
	got []any
}

func (r *recordingSender) send(v any) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.got = append(r.got, v)
	return nil
}

func (r *recordingSender) snapshot() []any {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]any, len(r.got))
	copy(out, r.got)
	return out
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	require.Fail(t, "condition never became true")
}

func TestHandleRequestEchoesBody(t *testing.T) {
	rec := &recordingSender{}
	sess := NewSession(rec.send, EchoRouter{}, &MockEventSource{}, NewMockUploadSink(), 0)

	sess.HandleRequest(context.Background(), wire.Request{
		Type: wire.TypeRequest, ID: "req-1", Method: "POST", Path: "/echo",
		Body: json.RawMessage(`{"x":1}`),
	})

	waitFor(t, time.Second, func() bool { return len(rec.snapshot()) == 1 })
	resp := rec.snapshot()[0].(wire.Response)
	assert.Equal(t, "req-1", resp.ID)
	assert.Equal(t, 200, resp.Status)
	assert.JSONEq(t, `{"x":1}`, string(resp.Body))
}

func TestHandleRequestUnknownPathIs404(t *testing.T) {
	rec := &recordingSender{}
	sess := NewSession(rec.send, EchoRouter{}, &MockEventSource{}, NewMockUploadSink(), 0)

	sess.HandleRequest(context.Background(), wire.Request{Type: wire.TypeRequest, ID: "req-2", Method: "GET", Path: "/nope"})

	waitFor(t, time.Second, func() bool { return len(rec.snapshot()) == 1 })
	resp := rec.snapshot()[0].(wire.Response)
	assert.Equal(t, 404, resp.Status)
}

func TestSubscribeEmitsConnectedThenEvents(t *testing.T) {
	rec := &recordingSender{}
	id1 := int64(1)
	events := &MockEventSource{Events: []MockEvent{
		{EventType: "progress", EventID: &id1, Data: json.RawMessage(`{"pct":50}`)},
	}}
	sess := NewSession(rec.send, EchoRouter{}, events, NewMockUploadSink(), 0)

	err := sess.HandleSubscribe(context.Background(), wire.Subscribe{
		Type: wire.TypeSubscribe, SubscriptionID: "sub-1", Channel: "activity",
	})
	require.NoError(t, err)

	waitFor(t, time.Second, func() bool { return len(rec.snapshot()) >= 2 })
	got := rec.snapshot()
	first := got[0].(wire.Event)
	assert.Equal(t, "connected", first.EventType)
	second := got[1].(wire.Event)
	assert.Equal(t, "progress", second.EventType)
	require.NotNil(t, second.EventID)
	assert.Equal(t, int64(1), *second.EventID)

	require.NoError(t, sess.HandleUnsubscribe(wire.Unsubscribe{Type: wire.TypeUnsubscribe, SubscriptionID: "sub-1"}))
}

func TestDuplicateSubscriptionIDRejected(t *testing.T) {
	rec := &recordingSender{}
	sess := NewSession(rec.send, EchoRouter{}, &MockEventSource{}, NewMockUploadSink(), 0)

	require.NoError(t, sess.HandleSubscribe(context.Background(), wire.Subscribe{SubscriptionID: "dup", Channel: "activity"}))
	err := sess.HandleSubscribe(context.Background(), wire.Subscribe{SubscriptionID: "dup", Channel: "activity"})
	require.Error(t, err)
	kind, ok := errs.KindOf(err)
	require.True(t, ok)
	assert.Equal(t, errs.ProtocolViolation, kind)

	require.NoError(t, sess.HandleUnsubscribe(wire.Unsubscribe{SubscriptionID: "dup"}))
}

func TestUnsubscribeUnknownIsProtocolViolation(t *testing.T) {
	rec := &recordingSender{}
	sess := NewSession(rec.send, EchoRouter{}, &MockEventSource{}, NewMockUploadSink(), 0)

	err := sess.HandleUnsubscribe(wire.Unsubscribe{SubscriptionID: "ghost"})
	require.Error(t, err)
	kind, _ := errs.KindOf(err)
	assert.Equal(t, errs.ProtocolViolation, kind)
}

func TestUploadAppendOnlyRoundTrip(t *testing.T) {
	rec := &recordingSender{}
	sink := NewMockUploadSink()
	sess := NewSession(rec.send, EchoRouter{}, &MockEventSource{}, sink, 0)
	ctx := context.Background()

	uploadID := uuid.New()
	require.NoError(t, sess.HandleUploadStart(ctx, wire.UploadStart{
		UploadID: uploadID.String(), ProjectID: "p1", SessionID: "s1",
		Filename: "f.bin", Size: 10, MimeType: "application/octet-stream",
	}))

	require.NoError(t, sess.HandleUploadChunk(ctx, wire.Chunk{UploadID: uploadID, Offset: 0, Data: []byte("hello")}))
	// duplicate offset: ignored, not an error.
	require.NoError(t, sess.HandleUploadChunk(ctx, wire.Chunk{UploadID: uploadID, Offset: 0, Data: []byte("hello")}))
	require.NoError(t, sess.HandleUploadChunk(ctx, wire.Chunk{UploadID: uploadID, Offset: 5, Data: []byte("world")}))

	require.NoError(t, sess.HandleUploadEnd(ctx, wire.UploadEnd{UploadID: uploadID.String()}))

	waitFor(t, time.Second, func() bool {
		for _, v := range rec.snapshot() {
			if _, ok := v.(wire.UploadComplete); ok {
				return true
			}
		}
		return false
	})
}

func TestUploadOutOfOrderIsProtocolViolation(t *testing.T) {
	rec := &recordingSender{}
	sink := NewMockUploadSink()
	sess := NewSession(rec.send, EchoRouter{}, &MockEventSource{}, sink, 0)
	ctx := context.Background()

	uploadID := uuid.New()
	require.NoError(t, sess.HandleUploadStart(ctx, wire.UploadStart{
		UploadID: uploadID.String(), ProjectID: "p1", SessionID: "s1", Filename: "f.bin", Size: 10,
	}))

	err := sess.HandleUploadChunk(ctx, wire.Chunk{UploadID: uploadID, Offset: 5, Data: []byte("world")})
	require.Error(t, err)
	kind, _ := errs.KindOf(err)
	assert.Equal(t, errs.ProtocolViolation, kind)
}

func TestUploadSizeMismatchReportsInBand(t *testing.T) {
	rec := &recordingSender{}
	sink := NewMockUploadSink()
	sess := NewSession(rec.send, EchoRouter{}, &MockEventSource{}, sink, 0)
	ctx := context.Background()

	uploadID := uuid.New()
	require.NoError(t, sess.HandleUploadStart(ctx, wire.UploadStart{
		UploadID: uploadID.String(), ProjectID: "p1", SessionID: "s1", Filename: "f.bin", Size: 100,
	}))
	require.NoError(t, sess.HandleUploadChunk(ctx, wire.Chunk{UploadID: uploadID, Offset: 0, Data: []byte("short")}))

	err := sess.HandleUploadEnd(ctx, wire.UploadEnd{UploadID: uploadID.String()})
	require.NoError(t, err) // reported in-band, connection stays open

	found := false
	for _, v := range rec.snapshot() {
		if ue, ok := v.(wire.UploadError); ok && ue.Error == "size_mismatch" {
			found = true
		}
	}
	assert.True(t, found)
}

func TestDuplicateUploadIDIsProtocolViolation(t *testing.T) {
	rec := &recordingSender{}
	sink := NewMockUploadSink()
	sess := NewSession(rec.send, EchoRouter{}, &MockEventSource{}, sink, 0)
	ctx := context.Background()

	uploadID := uuid.New()
	require.NoError(t, sess.HandleUploadStart(ctx, wire.UploadStart{UploadID: uploadID.String(), Size: 5}))
	err := sess.HandleUploadStart(ctx, wire.UploadStart{UploadID: uploadID.String(), Size: 5})
	require.Error(t, err)
	kind, _ := errs.KindOf(err)
	assert.Equal(t, errs.ProtocolViolation, kind)
}

func TestCloseAbortsUploadsAndSubscriptions(t *testing.T) {
	rec := &recordingSender{}
	sink := NewMockUploadSink()
	events := &MockEventSource{}
	sess := NewSession(rec.send, EchoRouter{}, events, sink, 0)
	ctx := context.Background()

	uploadID := uuid.New()
	require.NoError(t, sess.HandleUploadStart(ctx, wire.UploadStart{UploadID: uploadID.String(), Size: 100}))
	require.NoError(t, sess.HandleSubscribe(ctx, wire.Subscribe{SubscriptionID: "s1", Channel: "activity"}))

	sess.Close()

	s := sess.uploads[uploadID]
	handle := s.handle.(*MockUploadHandle)
	assert.True(t, handle.Aborted)
	assert.Empty(t, sess.subs)
}
