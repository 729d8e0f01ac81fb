// Package storage implements the Postgres-backed repositories named in
// spec.md §6: completed games, player ratings, player stats, and
// accounts. Grounded on a storage/storage.go convention — same
// pgxpool.Pool-backed Store, same CREATE TABLE IF NOT EXISTS
// migration-on-connect idiom, same "NewStore returns (nil, nil) when
// databaseURL is empty" no-persistence escape hatch, and the same
// nil-receiver-safe methods so a disabled store is a no-op rather than
// a nil-pointer panic at every call site.
package storage

import (
	"context"
	"log/slog"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS accounts (
	account_id TEXT PRIMARY KEY,
	account_type SMALLINT NOT NULL DEFAULT 0,
	role SMALLINT NOT NULL DEFAULT 0,
	flags TEXT[] NOT NULL DEFAULT '{}',
	username TEXT NOT NULL DEFAULT '',
	email TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS idx_accounts_username ON accounts(username);

CREATE TABLE IF NOT EXISTS player_ratings (
	player_id TEXT PRIMARY KEY,
	rating DOUBLE PRECISION NOT NULL DEFAULT 1000,
	boost DOUBLE PRECISION NOT NULL DEFAULT 750,
	max_rating DOUBLE PRECISION NOT NULL DEFAULT 1000,
	rated_games_played INT NOT NULL DEFAULT 0,
	unrated_games_played INT NOT NULL DEFAULT 0,
	rating_age DOUBLE PRECISION NOT NULL DEFAULT 0,
	fatigue JSONB NOT NULL DEFAULT '{}'
);

CREATE TABLE IF NOT EXISTS player_stats (
	player_id TEXT PRIMARY KEY,
	rated_games_played INT NOT NULL DEFAULT 0,
	games_played INT NOT NULL DEFAULT 0,
	games_won INT NOT NULL DEFAULT 0,
	games_lost INT NOT NULL DEFAULT 0,
	games_drawn INT NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS completed_games (
	game_id TEXT PRIMARY KEY,
	match_id TEXT,
	white_id TEXT NOT NULL,
	black_id TEXT NOT NULL,
	white_username TEXT NOT NULL,
	black_username TEXT NOT NULL,
	settings JSONB NOT NULL,
	is_rated BOOLEAN NOT NULL,
	history JSONB NOT NULL,
	result JSONB NOT NULL,
	ended_at TIMESTAMPTZ NOT NULL,
	rating_delta_white DOUBLE PRECISION NOT NULL DEFAULT 0,
	rating_delta_black DOUBLE PRECISION NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS idx_completed_games_white ON completed_games(white_id);
CREATE INDEX IF NOT EXISTS idx_completed_games_black ON completed_games(black_id);
`

// Store is the shared Postgres handle every repository in this package
// is built on.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore connects to Postgres and applies the schema. If databaseURL
// is empty, NewStore returns (nil, nil): every repository built on a nil
// *Store is a safe no-op, matching a "persistence is
// optional in development" convention.
func NewStore(ctx context.Context, databaseURL string) (*Store, error) {
	if databaseURL == "" {
		return nil, nil
	}
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	for _, stmt := range strings.Split(strings.TrimSpace(schemaSQL), ";\n") {
		stmt = strings.TrimSpace(stmt)
		if stmt == "" {
			continue
		}
		if _, err := pool.Exec(ctx, stmt); err != nil {
			pool.Close()
			return nil, err
		}
	}
	slog.Info("connected to Postgres", "tag", "storage")
	return &Store{pool: pool}, nil
}

// Close closes the connection pool. Safe to call on a nil *Store.
func (s *Store) Close() {
	if s != nil && s.pool != nil {
		s.pool.Close()
	}
}
