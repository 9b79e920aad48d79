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

package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore persists resumable sessions in a "sessions" table, durable
// across server restarts, per the external-interfaces storage contract.
//
// Expected schema:
//
//	CREATE TABLE sessions (
//	  id            text PRIMARY KEY,
//	  username      text NOT NULL,
//	  session_key   bytea NOT NULL,
//	  created_at    timestamptz NOT NULL,
//	  last_used_at  timestamptz NOT NULL,
//	  ttl_seconds   bigint NOT NULL
//	);
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore opens a connection pool against dsn and verifies it
// with a ping.
func NewPostgresStore(ctx context.Context, dsn string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("session: connect: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("session: ping: %w", err)
	}
	return &PostgresStore{pool: pool}, nil
}

func (p *PostgresStore) Create(ctx context.Context, sess *Session) error {
	const query = `
		INSERT INTO sessions (id, username, session_key, created_at, last_used_at, ttl_seconds)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err := p.pool.Exec(ctx, query,
		sess.ID, sess.Username, sess.SessionKey[:],
		sess.CreatedAt, sess.LastUsedAt, int64(sess.TTL/time.Second),
	)
	if err != nil {
		return fmt.Errorf("session: create: %w", err)
	}
	return nil
}

func (p *PostgresStore) Get(ctx context.Context, id string) (*Session, error) {
	const query = `
		SELECT username, session_key, created_at, last_used_at, ttl_seconds
		FROM sessions WHERE id = $1
	`
	var (
		sess       Session
		key        []byte
		ttlSeconds int64
	)
	sess.ID = id

	err := p.pool.QueryRow(ctx, query, id).Scan(
		&sess.Username, &key, &sess.CreatedAt, &sess.LastUsedAt, &ttlSeconds,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("session: get: %w", err)
	}
	copy(sess.SessionKey[:], key)
	sess.TTL = time.Duration(ttlSeconds) * time.Second

	if sess.Expired(time.Now()) {
		return nil, ErrExpired
	}
	return &sess, nil
}

func (p *PostgresStore) Touch(ctx context.Context, id string) error {
	const query = `UPDATE sessions SET last_used_at = $1 WHERE id = $2`
	tag, err := p.pool.Exec(ctx, query, time.Now(), id)
	if err != nil {
		return fmt.Errorf("session: touch: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (p *PostgresStore) Delete(ctx context.Context, id string) error {
	const query = `DELETE FROM sessions WHERE id = $1`
	if _, err := p.pool.Exec(ctx, query, id); err != nil {
		return fmt.Errorf("session: delete: %w", err)
	}
	return nil
}

func (p *PostgresStore) DeleteExpired(ctx context.Context) (int, error) {
	const query = `DELETE FROM sessions WHERE created_at + (ttl_seconds * interval '1 second') <= now()`
	tag, err := p.pool.Exec(ctx, query)
	if err != nil {
		return 0, fmt.Errorf("session: delete expired: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

func (p *PostgresStore) Close() error {
	p.pool.Close()
	return nil
}
