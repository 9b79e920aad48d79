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

package wire

import "encoding/json"

// Application message type tags, carried as JSON inside an envelope of
// format FormatJSON or FormatGzipJSON.
const (
	TypeRequest            = "request"
	TypeResponse           = "response"
	TypeSubscribe          = "subscribe"
	TypeUnsubscribe        = "unsubscribe"
	TypeEvent              = "event"
	TypeUploadStart        = "upload_start"
	TypeUploadEnd          = "upload_end"
	TypeUploadProgress     = "upload_progress"
	TypeUploadComplete     = "upload_complete"
	TypeUploadError        = "upload_error"
	TypeClientCapabilities = "client_capabilities"
)

// Envelope is the minimal shape every application message shares; callers
// decode Type first, then unmarshal the full message.
type Envelope struct {
	Type string `json:"type"`
}

// Request is {type:"request", ...}.
type Request struct {
	Type    string            `json:"type"`
	ID      string            `json:"id"`
	Method  string            `json:"method"`
	Path    string            `json:"path"`
	Headers map[string]string `json:"headers,omitempty"`
	Body    json.RawMessage   `json:"body,omitempty"`
}

// Response is {type:"response", ...}, delivered exactly once per request ID.
type Response struct {
	Type    string            `json:"type"`
	ID      string            `json:"id"`
	Status  int               `json:"status"`
	Headers map[string]string `json:"headers,omitempty"`
	Body    json.RawMessage   `json:"body,omitempty"`
}

// Subscribe is {type:"subscribe", ...}.
type Subscribe struct {
	Type           string          `json:"type"`
	SubscriptionID string          `json:"subscriptionId"`
	Channel        string          `json:"channel"`
	LastEventID    *int64          `json:"lastEventId,omitempty"`
	Params         json.RawMessage `json:"params,omitempty"`
}

// Unsubscribe is {type:"unsubscribe", ...}.
type Unsubscribe struct {
	Type           string `json:"type"`
	SubscriptionID string `json:"subscriptionId"`
}

// Event is {type:"event", ...}.
type Event struct {
	Type           string          `json:"type"`
	SubscriptionID string          `json:"subscriptionId"`
	EventType      string          `json:"eventType"`
	EventID        *int64          `json:"eventId,omitempty"`
	Data           json.RawMessage `json:"data,omitempty"`
}

// UploadStart is {type:"upload_start", ...}.
type UploadStart struct {
	Type      string `json:"type"`
	UploadID  string `json:"uploadId"`
	ProjectID string `json:"projectId"`
	SessionID string `json:"sessionId"`
	Filename  string `json:"filename"`
	Size      int64  `json:"size"`
	MimeType  string `json:"mimeType"`
}

// UploadEnd is {type:"upload_end", ...}.
type UploadEnd struct {
	Type     string `json:"type"`
	UploadID string `json:"uploadId"`
}

// UploadProgress is {type:"upload_progress", ...}.
type UploadProgress struct {
	Type          string `json:"type"`
	UploadID      string `json:"uploadId"`
	BytesReceived int64  `json:"bytesReceived"`
}

// UploadComplete is {type:"upload_complete", ...}.
type UploadComplete struct {
	Type     string          `json:"type"`
	UploadID string          `json:"uploadId"`
	File     json.RawMessage `json:"file"`
}

// UploadError is {type:"upload_error", ...}.
type UploadError struct {
	Type     string `json:"type"`
	UploadID string `json:"uploadId"`
	Error    string `json:"error"`
}

// ClientCapabilities is {type:"client_capabilities", ...}, announcing
// which inner formats the client will accept.
type ClientCapabilities struct {
	Type    string  `json:"type"`
	Formats []uint8 `json:"formats"`
}
