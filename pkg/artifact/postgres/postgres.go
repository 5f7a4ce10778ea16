// Package postgres implements artifact.Store on a PostgreSQL table, for
// deployments that already run a database but no object store.
//
// Usage:
//
//	store, err := postgres.New(ctx, dsn)
//	if err != nil { … }
//	defer store.Close()
package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/MrWong99/nmspgate/pkg/artifact"
)

// uniqueViolation is the SQLSTATE of a duplicate primary key.
const uniqueViolation = "23505"

const ddlArtifacts = `
CREATE TABLE IF NOT EXISTS debug_artifacts (
    key           TEXT         PRIMARY KEY,
    content_type  TEXT         NOT NULL DEFAULT '',
    data          BYTEA        NOT NULL,
    metadata      JSONB        NOT NULL DEFAULT '{}',
    created_at    TIMESTAMPTZ  NOT NULL DEFAULT now(),
    updated_at    TIMESTAMPTZ  NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_debug_artifacts_created_at
    ON debug_artifacts (created_at);
`

// Store is a PostgreSQL-backed [artifact.Store]. All operations are safe for
// concurrent use.
type Store struct {
	pool *pgxpool.Pool
}

var _ artifact.Store = (*Store)(nil)

// New connects to dsn, verifies the connection and runs [Migrate].
func New(ctx context.Context, dsn string) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres artifact store: parse dsn: %w", err)
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("postgres artifact store: create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres artifact store: ping: %w", err)
	}
	if err := Migrate(ctx, pool); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres artifact store: migrate: %w", err)
	}
	return &Store{pool: pool}, nil
}

// Migrate creates the artifact table if it does not exist. It is idempotent.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	if _, err := pool.Exec(ctx, ddlArtifacts); err != nil {
		return fmt.Errorf("create debug_artifacts: %w", err)
	}
	return nil
}

// Put inserts obj. A second Put of the same key fails with
// [artifact.ErrExists].
func (s *Store) Put(ctx context.Context, obj artifact.Object) error {
	meta := obj.Meta
	if meta == nil {
		meta = artifact.Metadata{}
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO debug_artifacts (key, content_type, data, metadata) VALUES ($1, $2, $3, $4)`,
		obj.Key, obj.ContentType, obj.Data, map[string]string(meta),
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return fmt.Errorf("postgres artifact store: put %s: %w", obj.Key, artifact.ErrExists)
		}
		return fmt.Errorf("postgres artifact store: put %s: %w", obj.Key, err)
	}
	return nil
}

// Annotate merges meta into the stored metadata with the jsonb || operator.
func (s *Store) Annotate(ctx context.Context, key string, meta artifact.Metadata) error {
	if meta == nil {
		meta = artifact.Metadata{}
	}
	tag, err := s.pool.Exec(ctx,
		`UPDATE debug_artifacts SET metadata = metadata || $2::jsonb, updated_at = now() WHERE key = $1`,
		key, map[string]string(meta),
	)
	if err != nil {
		return fmt.Errorf("postgres artifact store: annotate %s: %w", key, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("postgres artifact store: annotate %s: %w", key, artifact.ErrNotFound)
	}
	return nil
}

// Get returns the object stored under key.
func (s *Store) Get(ctx context.Context, key string) (*artifact.Object, error) {
	obj := artifact.Object{Key: key}
	var meta map[string]string
	err := s.pool.QueryRow(ctx,
		`SELECT content_type, data, metadata FROM debug_artifacts WHERE key = $1`, key,
	).Scan(&obj.ContentType, &obj.Data, &meta)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("postgres artifact store: get %s: %w", key, artifact.ErrNotFound)
		}
		return nil, fmt.Errorf("postgres artifact store: get %s: %w", key, err)
	}
	obj.Meta = meta
	return &obj, nil
}

// Ping checks the connection pool.
func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Close releases all pooled connections.
func (s *Store) Close() error {
	s.pool.Close()
	return nil
}
