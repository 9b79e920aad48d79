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

package credential

import (
	"bufio"
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math/big"
	"os"
	"sync"
	"time"
)

func encodeHexField(b []byte) string { return hex.EncodeToString(b) }

func decodeHexField(s string) ([]byte, error) { return hex.DecodeString(s) }

// journalOp is one line of the append-only register/unregister journal
// the storage contract describes for the credential store.
type journalOp struct {
	Op        string    `json:"op"` // "register" | "unregister"
	Username  string    `json:"username"`
	Salt      string    `json:"salt,omitempty"`     // hex
	Verifier  string    `json:"verifier,omitempty"` // hex
	CreatedAt time.Time `json:"createdAt,omitempty"`
}

// FileStore is a credential Store backed by an append-only journal file.
// On open it replays every line into an in-memory MemoryStore; every
// subsequent Register/Unregister appends one journalOp line before
// updating the in-memory view, so a crash loses at most the in-flight
// call. Grounded on the layered-config loader's fallback-and-replay
// style, generalized from "read config, apply in order" to "read
// journal, replay in order."
type FileStore struct {
	mu   sync.Mutex
	file *os.File
	mem  *MemoryStore
}

// OpenFileStore opens (creating if absent) the journal at path and
// replays its contents.
func OpenFileStore(path string) (*FileStore, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR|os.O_APPEND, 0o600)
	if err != nil {
		return nil, fmt.Errorf("credential: open journal: %w", err)
	}

	fs := &FileStore{file: f, mem: NewMemoryStore()}
	if err := fs.replay(); err != nil {
		f.Close()
		return nil, err
	}
	return fs, nil
}

func (fs *FileStore) replay() error {
	if _, err := fs.file.Seek(0, 0); err != nil {
		return fmt.Errorf("credential: seek journal: %w", err)
	}

	scanner := bufio.NewScanner(fs.file)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var op journalOp
		if err := json.Unmarshal(line, &op); err != nil {
			return fmt.Errorf("credential: corrupt journal line: %w", err)
		}
		switch op.Op {
		case "register":
			rec, err := opToRecord(op)
			if err != nil {
				return err
			}
			fs.mem.creds[rec.Username] = rec
		case "unregister":
			delete(fs.mem.creds, op.Username)
		default:
			return fmt.Errorf("credential: unknown journal op %q", op.Op)
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("credential: read journal: %w", err)
	}

	if _, err := fs.file.Seek(0, 2); err != nil {
		return fmt.Errorf("credential: seek journal end: %w", err)
	}
	return nil
}

func opToRecord(op journalOp) (*Record, error) {
	salt, err := decodeHexField(op.Salt)
	if err != nil {
		return nil, fmt.Errorf("credential: bad salt in journal: %w", err)
	}
	verifier, ok := new(big.Int).SetString(op.Verifier, 16)
	if !ok {
		return nil, fmt.Errorf("credential: bad verifier in journal for %s", op.Username)
	}
	return &Record{
		Username:  op.Username,
		Salt:      salt,
		Verifier:  verifier,
		CreatedAt: op.CreatedAt,
	}, nil
}

func (fs *FileStore) appendLine(op journalOp) error {
	data, err := json.Marshal(op)
	if err != nil {
		return fmt.Errorf("credential: encode journal entry: %w", err)
	}
	data = append(data, '\n')
	if _, err := fs.file.Write(data); err != nil {
		return fmt.Errorf("credential: write journal: %w", err)
	}
	return fs.file.Sync()
}

func (fs *FileStore) Register(ctx context.Context, rec *Record) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	if _, err := fs.mem.Lookup(ctx, rec.Username); err == nil {
		return ErrExists
	}

	op := journalOp{
		Op:        "register",
		Username:  rec.Username,
		Salt:      encodeHexField(rec.Salt),
		Verifier:  rec.Verifier.Text(16),
		CreatedAt: rec.CreatedAt,
	}
	if err := fs.appendLine(op); err != nil {
		return err
	}
	return fs.mem.Register(ctx, rec)
}

func (fs *FileStore) Lookup(ctx context.Context, username string) (*Record, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	return fs.mem.Lookup(ctx, username)
}

func (fs *FileStore) Unregister(ctx context.Context, username string) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	if err := fs.appendLine(journalOp{Op: "unregister", Username: username}); err != nil {
		return err
	}
	return fs.mem.Unregister(ctx, username)
}

func (fs *FileStore) Close() error {
	return fs.file.Close()
}
