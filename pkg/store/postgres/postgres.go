// Package postgres provides a PostgreSQL-backed implementation of
// [store.KV] for deployments where detected session fields must survive
// process restarts and be readable by other services (the record-review
// console, reporting jobs).
//
// Usage:
//
//	kv, err := postgres.New(ctx, dsn)
//	if err != nil { … }
//	defer kv.Close()
package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/medvoice/scribectl/pkg/store"
)

const ddlKV = `
CREATE TABLE IF NOT EXISTS scribe_kv (
    key        TEXT         PRIMARY KEY,
    value      TEXT         NOT NULL,
    updated_at TIMESTAMPTZ  NOT NULL DEFAULT now()
);`

// KV is a pgx-backed store.KV over a single scribe_kv table.
// All operations are safe for concurrent use.
type KV struct {
	pool *pgxpool.Pool
}

// New establishes a connection pool to the database at dsn and ensures the
// scribe_kv table exists.
func New(ctx context.Context, dsn string) (*KV, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres kv: parse dsn: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("postgres kv: create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres kv: ping: %w", err)
	}

	if _, err := pool.Exec(ctx, ddlKV); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres kv: migrate: %w", err)
	}

	return &KV{pool: pool}, nil
}

// Get implements store.KV.
func (k *KV) Get(ctx context.Context, key string) (string, bool, error) {
	const q = `SELECT value FROM scribe_kv WHERE key = $1`

	var value string
	err := k.pool.QueryRow(ctx, q, key).Scan(&value)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("postgres kv: get %q: %w", key, err)
	}
	return value, true, nil
}

// Set implements store.KV. It upserts the key with a fresh updated_at.
func (k *KV) Set(ctx context.Context, key, value string) error {
	const q = `
		INSERT INTO scribe_kv (key, value, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (key) DO UPDATE
		SET value = EXCLUDED.value, updated_at = now()`

	if _, err := k.pool.Exec(ctx, q, key, value); err != nil {
		return fmt.Errorf("postgres kv: set %q: %w", key, err)
	}
	return nil
}

// Delete implements store.KV.
func (k *KV) Delete(ctx context.Context, key string) error {
	const q = `DELETE FROM scribe_kv WHERE key = $1`

	if _, err := k.pool.Exec(ctx, q, key); err != nil {
		return fmt.Errorf("postgres kv: delete %q: %w", key, err)
	}
	return nil
}

// Close releases the connection pool.
func (k *KV) Close() {
	k.pool.Close()
}

var _ store.KV = (*KV)(nil)
