package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"

	"boostmarket/internal/db"

	"github.com/jmoiron/sqlx"
)

type Execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// DB is the part of *sqlx.DB the adapter reads and deletes through.
type DB interface {
	Execer
	GetContext(ctx context.Context, dest any, query string, args ...any) error
}

// PostgresKV stores documents in the kv_entries table (see migrations/).
type PostgresKV struct {
	db       DB
	txRunner db.TxRunner
}

func NewPostgresKV(database DB, txRunner db.TxRunner) *PostgresKV {
	return &PostgresKV{db: database, txRunner: txRunner}
}

func (s *PostgresKV) Get(ctx context.Context, key string) (json.RawMessage, bool, error) {
	var value []byte
	err := s.db.GetContext(ctx, &value, `SELECT value FROM kv_entries WHERE key = $1`, key)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return json.RawMessage(value), true, nil
}

func (s *PostgresKV) Set(ctx context.Context, key string, value json.RawMessage) error {
	return s.txRunner.WithTx(ctx, func(tx *sqlx.Tx) error {
		return upsertEntry(ctx, tx, key, value)
	})
}

func (s *PostgresKV) Remove(ctx context.Context, key string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM kv_entries WHERE key = $1`, key)
	return err
}

func upsertEntry(ctx context.Context, tx Execer, key string, value json.RawMessage) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO kv_entries (key, value, updated_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = NOW()
	`, key, []byte(value))
	return err
}
