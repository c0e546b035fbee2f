package jwtstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/lib/pq" // PostgreSQL driver
)

// DB is a Store backed by a SQL database
type DB struct {
	*sql.DB
}

var _ Store = (*DB)(nil)

// New creates a new database connection
func New(driver, dsn string) (*DB, error) {
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &DB{DB: db}, nil
}

// Migrate creates the token table
func (db *DB) Migrate(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS jwt_tokens (
		key_hash VARCHAR(64) PRIMARY KEY,
		token TEXT NOT NULL,
		expires_at TIMESTAMP,
		updated_at TIMESTAMP NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_jwt_tokens_expires ON jwt_tokens(expires_at);
	`

	if _, err := db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	return nil
}

// Reset drops the token table (for testing)
func (db *DB) Reset(ctx context.Context) error {
	_, err := db.ExecContext(ctx, `DROP TABLE IF EXISTS jwt_tokens CASCADE;`)
	return err
}

func (db *DB) Get(ctx context.Context, key string) (string, error) {
	var token string
	err := db.QueryRowContext(ctx, `SELECT token FROM jwt_tokens WHERE key_hash = $1`, key).Scan(&token)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("failed to load token: %w", err)
	}
	return token, nil
}

func (db *DB) Put(ctx context.Context, key, token string, expires time.Time) error {
	var exp sql.NullTime
	if !expires.IsZero() {
		exp = sql.NullTime{Time: expires.UTC(), Valid: true}
	}

	_, err := db.ExecContext(ctx, `
		INSERT INTO jwt_tokens (key_hash, token, expires_at, updated_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (key_hash) DO UPDATE
		SET token = EXCLUDED.token, expires_at = EXCLUDED.expires_at, updated_at = EXCLUDED.updated_at
	`, key, token, exp, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to store token: %w", err)
	}
	return nil
}

func (db *DB) Delete(ctx context.Context, key string) error {
	if _, err := db.ExecContext(ctx, `DELETE FROM jwt_tokens WHERE key_hash = $1`, key); err != nil {
		return fmt.Errorf("failed to delete token: %w", err)
	}
	return nil
}

func (db *DB) Purge(ctx context.Context, now time.Time) (int64, error) {
	res, err := db.ExecContext(ctx, `DELETE FROM jwt_tokens WHERE expires_at IS NOT NULL AND expires_at < $1`, now.UTC())
	if err != nil {
		return 0, fmt.Errorf("failed to purge tokens: %w", err)
	}
	return res.RowsAffected()
}
