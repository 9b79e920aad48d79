package wire

import (
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChunkRoundTrip(t *testing.T) {
	c := Chunk{UploadID: uuid.New(), Offset: 65536, Data: []byte("some file bytes")}
	encoded := EncodeChunk(c)

	decoded, err := DecodeChunk(encoded)
	require.NoError(t, err)
	assert.Equal(t, c.UploadID, decoded.UploadID)
	assert.Equal(t, c.Offset, decoded.Offset)
	assert.Equal(t, c.Data, decoded.Data)
}

func TestDecodeChunkRejectsShortPayload(t *testing.T) {
	_, err := DecodeChunk([]byte{1, 2, 3})
	assert.Error(t, err)
}

func TestRequestResponseJSONShape(t *testing.T) {
	req := Request{Type: TypeRequest, ID: "abc", Method: "GET", Path: "/health"}
	data, err := json.Marshal(req)
	require.NoError(t, err)

	var back map[string]any
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, "request", back["type"])
	assert.Equal(t, "GET", back["method"])
	assert.Equal(t, "/health", back["path"])
}

func TestEventOptionalEventID(t *testing.T) {
	ev := Event{Type: TypeEvent, SubscriptionID: "s1", EventType: "connected"}
	data, err := json.Marshal(ev)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "eventId")

	id := int64(7)
	ev.EventID = &id
	data, err = json.Marshal(ev)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"eventId":7`)
}
