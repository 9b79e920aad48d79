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

import "github.com/google/uuid"

// NewRequestID, NewSubscriptionID, and NewSessionID are opaque identifiers
// the server never interprets — it only echoes them back or uses them as
// map keys.
func NewRequestID() string      { return uuid.NewString() }
func NewSubscriptionID() string { return uuid.NewString() }
func NewSessionID() string      { return uuid.NewString() }

// NewUploadID returns a fresh 128-bit upload id.
func NewUploadID() uuid.UUID { return uuid.New() }
