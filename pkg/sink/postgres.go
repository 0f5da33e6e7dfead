package sink

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/lib/pq"
)

// PGSink delivers record batches to a Postgres table using COPY for bulk
// insert. Each record is stored as a JSON payload with its ingestion time.
type PGSink[T any] struct {
	db    *sql.DB
	table string
}

// NewPGSink opens a connection pool for the given DSN.
// Table defaults to "records" when empty.
func NewPGSink[T any](dsn, table string) (*PGSink[T], error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if table == "" {
		table = "records"
	}
	return &PGSink[T]{db: db, table: table}, nil
}

// NewPGSinkWithDB creates a sink around an existing connection pool.
func NewPGSinkWithDB[T any](db *sql.DB, table string) *PGSink[T] {
	if table == "" {
		table = "records"
	}
	return &PGSink[T]{db: db, table: table}
}

// Deliver bulk-inserts the batch inside one transaction.
func (s *PGSink[T]) Deliver(ctx context.Context, batch []T) error {
	if len(batch) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, pq.CopyIn(s.table, "received_at", "payload"))
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("prepare copy: %w", err)
	}

	now := time.Now().UTC()
	for i, record := range batch {
		payload, err := json.Marshal(record)
		if err != nil {
			stmt.Close()
			tx.Rollback()
			return fmt.Errorf("marshal record %d: %w", i, err)
		}
		if _, err := stmt.ExecContext(ctx, now, payload); err != nil {
			stmt.Close()
			tx.Rollback()
			return fmt.Errorf("copy record %d: %w", i, err)
		}
	}

	// Flush the COPY buffer.
	if _, err := stmt.ExecContext(ctx); err != nil {
		stmt.Close()
		tx.Rollback()
		return fmt.Errorf("flush copy: %w", err)
	}
	if err := stmt.Close(); err != nil {
		tx.Rollback()
		return fmt.Errorf("close copy: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// Name identifies the sink.
func (s *PGSink[T]) Name() string { return "postgres" }

// Close closes the connection pool.
func (s *PGSink[T]) Close() error {
	return s.db.Close()
}
