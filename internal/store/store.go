// Package store defines the document-database boundary the ledger components
// are written against: point reads, merge-writes, field-level updates with
// array-union and increment primitives, batched multi-get, and multi-document
// transactions with read-then-conditional-write semantics.
package store

import (
	"context"
	"errors"
)

// KeyField addresses the document key in QueryIn instead of a data field.
const KeyField = "__name__"

// MaxInClause is the store's batch-fetch limit. Callers with longer identity
// lists must chunk; Chunk below does the split.
const MaxInClause = 30

var (
	// ErrNotFound is returned by point reads of absent documents.
	ErrNotFound = errors.New("store: document not found")

	// ErrConflict marks a transient write conflict. The store retries
	// conflicting transactions itself; callers only ever see this after
	// retries are exhausted.
	ErrConflict = errors.New("store: write conflict")
)

// Document is the wire form of a stored document. Numbers are json.Number so
// that values survive a round trip without float drift.
type Document map[string]any

// Tx is the view of the store inside a transaction. Reads observe committed
// state; writes are staged and applied atomically when the transaction
// function returns nil. An error from the function discards every staged
// write — no partial application.
type Tx interface {
	Get(collection, key string) (Document, error)
	Set(collection, key string, data Document, merge bool)
	Update(collection, key string, fields Document)
}

// Store is the document database consumed by every repository and manager.
type Store interface {
	Get(ctx context.Context, collection, key string) (Document, error)
	Set(ctx context.Context, collection, key string, data Document, merge bool) error
	Update(ctx context.Context, collection, key string, fields Document) error

	// QueryIn returns documents whose field (or key, when field is
	// KeyField) equals one of values. len(values) must not exceed
	// MaxInClause.
	QueryIn(ctx context.Context, collection, field string, values []any) ([]Document, error)

	// All scans a whole collection. Used by offline consistency jobs only.
	All(ctx context.Context, collection string) ([]Document, error)

	// RunTransaction executes fn with transactional get + conditional
	// write across documents. On write conflict the whole function is
	// retried.
	RunTransaction(ctx context.Context, fn func(tx Tx) error) error
}

// Chunk splits values into MaxInClause-sized batches.
func Chunk(values []any) [][]any {
	var out [][]any
	for len(values) > MaxInClause {
		out = append(out, values[:MaxInClause])
		values = values[MaxInClause:]
	}
	if len(values) > 0 {
		out = append(out, values)
	}
	return out
}
