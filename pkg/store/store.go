// Package store persists every product ever observed to a local SQLite file.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS products (
	product_id TEXT PRIMARY KEY,
	title      TEXT,
	last_seen  INTEGER
)`

// Store wraps the SQLite database holding the products table. Rows are
// created on first observation and never deleted.
type Store struct {
	db *sql.DB
}

// Open opens (creating if necessary) the SQLite database at path.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening store %q: %w", path, err)
	}
	return &Store{db: db}, nil
}

// EnsureSchema idempotently creates the products table.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("ensuring schema: %w", err)
	}
	return nil
}

// Begin starts a run transaction. Every read and write of one monitor run
// happens inside it so a failed run leaves the store untouched.
func (s *Store) Begin(ctx context.Context) (*Run, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning run transaction: %w", err)
	}
	return &Run{tx: tx}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Run is the transactional view of the store for a single monitor run.
type Run struct {
	tx *sql.Tx
}

// Contains reports whether the product id has been observed before.
func (r *Run) Contains(ctx context.Context, id string) (bool, error) {
	var one int
	err := r.tx.QueryRowContext(ctx,
		`SELECT 1 FROM products WHERE product_id = ?`, id).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("checking product %q: %w", id, err)
	}
	return true, nil
}

// UpsertNew records a newly observed product, overwriting title and
// timestamp if the row somehow already exists.
func (r *Run) UpsertNew(ctx context.Context, id, title string, seenAt time.Time) error {
	_, err := r.tx.ExecContext(ctx,
		`INSERT OR REPLACE INTO products (product_id, title, last_seen) VALUES (?, ?, ?)`,
		id, title, seenAt.Unix())
	if err != nil {
		return fmt.Errorf("inserting product %q: %w", id, err)
	}
	return nil
}

// Touch refreshes the last-seen timestamp of a known product.
func (r *Run) Touch(ctx context.Context, id string, seenAt time.Time) error {
	_, err := r.tx.ExecContext(ctx,
		`UPDATE products SET last_seen = ? WHERE product_id = ?`,
		seenAt.Unix(), id)
	if err != nil {
		return fmt.Errorf("touching product %q: %w", id, err)
	}
	return nil
}

// Count returns the total number of stored products.
func (r *Run) Count(ctx context.Context) (int, error) {
	var n int
	if err := r.tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM products`).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting products: %w", err)
	}
	return n, nil
}

// Commit makes the run's writes durable.
func (r *Run) Commit() error {
	return r.tx.Commit()
}

// Rollback discards the run's writes. Safe to call after Commit.
func (r *Run) Rollback() error {
	if err := r.tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
		return err
	}
	return nil
}
