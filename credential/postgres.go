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
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore persists registered credentials in a "credentials" table.
//
// Expected schema:
//
//	CREATE TABLE credentials (
//	  username    text PRIMARY KEY,
//	  salt        bytea NOT NULL,
//	  verifier    text NOT NULL,
//	  created_at  timestamptz NOT NULL
//	);
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore opens a connection pool against dsn and verifies it
// with a ping.
func NewPostgresStore(ctx context.Context, dsn string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("credential: connect: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("credential: ping: %w", err)
	}
	return &PostgresStore{pool: pool}, nil
}

func (p *PostgresStore) Register(ctx context.Context, rec *Record) error {
	const query = `
		INSERT INTO credentials (username, salt, verifier, created_at)
		VALUES ($1, $2, $3, $4)
	`
	_, err := p.pool.Exec(ctx, query, rec.Username, rec.Salt, rec.Verifier.Text(16), rec.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrExists
		}
		return fmt.Errorf("credential: register: %w", err)
	}
	return nil
}

func (p *PostgresStore) Lookup(ctx context.Context, username string) (*Record, error) {
	const query = `
		SELECT salt, verifier, created_at FROM credentials WHERE username = $1
	`
	var (
		rec         Record
		verifierHex string
	)
	rec.Username = username

	err := p.pool.QueryRow(ctx, query, username).Scan(&rec.Salt, &verifierHex, &rec.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("credential: lookup: %w", err)
	}

	v, ok := new(big.Int).SetString(verifierHex, 16)
	if !ok {
		return nil, fmt.Errorf("credential: corrupt verifier for %s", username)
	}
	rec.Verifier = v
	return &rec, nil
}

func (p *PostgresStore) Unregister(ctx context.Context, username string) error {
	const query = `DELETE FROM credentials WHERE username = $1`
	if _, err := p.pool.Exec(ctx, query, username); err != nil {
		return fmt.Errorf("credential: unregister: %w", err)
	}
	return nil
}

func (p *PostgresStore) Close() error {
	p.pool.Close()
	return nil
}

// isUniqueViolation reports whether err is a Postgres unique-constraint
// violation (SQLSTATE 23505), i.e. a duplicate username.
func isUniqueViolation(err error) bool {
	var pgErr interface{ SQLState() string }
	if errors.As(err, &pgErr) {
		return pgErr.SQLState() == "23505"
	}
	return false
}
