package db

import (
	"context"
	"fmt"
	"log"

	"github.com/jackc/pgx/v5/pgxpool"
)

// DB holds the database connection pool
type DB struct {
	Pool *pgxpool.Pool
}

// NewDB connects to Postgres and checks the connection.
func NewDB(ctx context.Context, dbURL string) (*DB, error) {
	if dbURL == "" {
		return nil, fmt.Errorf("DATABASE_URL environment variable not set")
	}

	pool, err := pgxpool.New(ctx, dbURL)
	if err != nil {
		return nil, fmt.Errorf("unable to connect to database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("unable to reach database: %w", err)
	}

	log.Println("INFO: Connected to database")
	return &DB{Pool: pool}, nil
}

// Close closes the database connection
func (db *DB) Close() {
	db.Pool.Close()
}

const schema = `
CREATE TABLE IF NOT EXISTS app_user (
	id         UUID PRIMARY KEY,
	email      TEXT NOT NULL UNIQUE,
	name       TEXT NOT NULL DEFAULT '',
	google_id  TEXT NOT NULL DEFAULT '',
	picture    TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS generated_quiz (
	id         UUID PRIMARY KEY,
	user_id    UUID NOT NULL REFERENCES app_user(id) ON DELETE CASCADE,
	topic      TEXT NOT NULL,
	difficulty TEXT NOT NULL,
	questions  JSONB NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS generated_quiz_user_created_idx ON generated_quiz (user_id, created_at DESC);
`

// CreateSchema creates the tables the server needs if they do not exist.
func (db *DB) CreateSchema(ctx context.Context) error {
	if _, err := db.Pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}
