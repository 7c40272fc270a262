// Package pgstore backs the document store with a Postgres JSONB table.
// Transactions lock touched rows with SELECT ... FOR UPDATE, apply staged ops
// in Go, and write full documents back; serialization failures and deadlocks
// are retried before surfacing as store.ErrConflict.
package pgstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/dht-dimaond/diamond/internal/store"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const maxTxAttempts = 3

type Store struct {
	db *pgxpool.Pool
}

func New(db *pgxpool.Pool) *Store {
	return &Store{db: db}
}

func (s *Store) Get(ctx context.Context, collection, key string) (store.Document, error) {
	var raw []byte
	err := s.db.QueryRow(ctx,
		`SELECT data FROM documents WHERE collection = $1 AND key = $2`,
		collection, key,
	).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return decode(raw)
}

func (s *Store) Set(ctx context.Context, collection, key string, data store.Document, merge bool) error {
	return s.RunTransaction(ctx, func(tx store.Tx) error {
		tx.Set(collection, key, data, merge)
		return nil
	})
}

func (s *Store) Update(ctx context.Context, collection, key string, fields store.Document) error {
	return s.RunTransaction(ctx, func(tx store.Tx) error {
		tx.Update(collection, key, fields)
		return nil
	})
}

func (s *Store) QueryIn(ctx context.Context, collection, field string, values []any) ([]store.Document, error) {
	if len(values) == 0 {
		return nil, nil
	}
	if len(values) > store.MaxInClause {
		return nil, fmt.Errorf("pgstore: %d values exceed batch limit %d", len(values), store.MaxInClause)
	}

	probes := make([]string, len(values))
	for i, v := range values {
		probes[i] = store.FieldString(store.Normalize(v))
	}

	var rows pgx.Rows
	var err error
	if field == store.KeyField {
		rows, err = s.db.Query(ctx,
			`SELECT data FROM documents WHERE collection = $1 AND key = ANY($2) ORDER BY key`,
			collection, probes)
	} else {
		rows, err = s.db.Query(ctx,
			`SELECT data FROM documents WHERE collection = $1 AND data->>$2 = ANY($3) ORDER BY key`,
			collection, field, probes)
	}
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanDocs(rows)
}

func (s *Store) All(ctx context.Context, collection string) ([]store.Document, error) {
	rows, err := s.db.Query(ctx,
		`SELECT data FROM documents WHERE collection = $1 ORDER BY key`,
		collection)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanDocs(rows)
}

func (s *Store) RunTransaction(ctx context.Context, fn func(tx store.Tx) error) error {
	var lastErr error
	for attempt := 0; attempt < maxTxAttempts; attempt++ {
		err := s.runOnce(ctx, fn)
		if err == nil || !retryable(err) {
			return err
		}
		lastErr = err
	}
	return fmt.Errorf("%w: %v", store.ErrConflict, lastErr)
}

func (s *Store) runOnce(ctx context.Context, fn func(tx store.Tx) error) error {
	dbTx, err := s.db.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.RepeatableRead})
	if err != nil {
		return err
	}
	defer func() { _ = dbTx.Rollback(ctx) }()

	buf := &store.Buffer{}
	if err := fn(&pgTx{ctx: ctx, tx: dbTx, buf: buf}); err != nil {
		return err
	}

	fetch := func(collection, key string) (store.Document, error) {
		return getForUpdate(ctx, dbTx, collection, key)
	}
	put := func(collection, key string, doc store.Document) error {
		raw, err := json.Marshal(doc)
		if err != nil {
			return err
		}
		_, err = dbTx.Exec(ctx,
			`INSERT INTO documents (collection, key, data)
			 VALUES ($1, $2, $3)
			 ON CONFLICT (collection, key) DO UPDATE SET data = $3, updated_at = now()`,
			collection, key, raw)
		return err
	}
	if err := buf.Apply(fetch, put); err != nil {
		return err
	}

	return dbTx.Commit(ctx)
}

type pgTx struct {
	ctx context.Context
	tx  pgx.Tx
	buf *store.Buffer
}

func (t *pgTx) Get(collection, key string) (store.Document, error) {
	return getForUpdate(t.ctx, t.tx, collection, key)
}

func (t *pgTx) Set(collection, key string, data store.Document, merge bool) {
	t.buf.Set(collection, key, data, merge)
}

func (t *pgTx) Update(collection, key string, fields store.Document) {
	t.buf.Update(collection, key, fields)
}

func getForUpdate(ctx context.Context, tx pgx.Tx, collection, key string) (store.Document, error) {
	var raw []byte
	err := tx.QueryRow(ctx,
		`SELECT data FROM documents WHERE collection = $1 AND key = $2 FOR UPDATE`,
		collection, key,
	).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return decode(raw)
}

func scanDocs(rows pgx.Rows) ([]store.Document, error) {
	var out []store.Document
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return nil, err
		}
		doc, err := decode(raw)
		if err != nil {
			return nil, err
		}
		out = append(out, doc)
	}
	return out, rows.Err()
}

func decode(raw []byte) (store.Document, error) {
	var doc store.Document
	if err := store.DecodeJSON(raw, &doc); err != nil {
		return nil, err
	}
	return doc, nil
}

// retryable reports whether the error is a serialization failure or deadlock
// that a fresh attempt can resolve.
func retryable(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "40001" || pgErr.Code == "40P01"
	}
	return false
}
