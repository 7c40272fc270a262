// Package memstore is an in-memory document store used by tests. Transactions
// take the store lock for their whole duration, so concurrent transactions
// serialize instead of conflicting; staged writes still apply all-or-nothing,
// which is what the atomicity tests exercise.
package memstore

import (
	"context"
	"sort"
	"sync"

	"github.com/dht-dimaond/diamond/internal/store"
)

type Store struct {
	mu   sync.Mutex
	data map[string]map[string]store.Document
}

func New() *Store {
	return &Store{data: make(map[string]map[string]store.Document)}
}

func (s *Store) Get(ctx context.Context, collection, key string) (store.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.getLocked(collection, key)
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
	s.mu.Lock()
	defer s.mu.Unlock()

	want := make(map[string]bool, len(values))
	for _, v := range values {
		want[store.FieldString(store.Normalize(v))] = true
	}

	var out []store.Document
	for _, key := range s.sortedKeys(collection) {
		doc := s.data[collection][key]
		var probe string
		if field == store.KeyField {
			probe = key
		} else {
			probe = store.FieldString(doc[field])
		}
		if want[probe] {
			out = append(out, clone(doc))
		}
	}
	return out, nil
}

func (s *Store) All(ctx context.Context, collection string) ([]store.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []store.Document
	for _, key := range s.sortedKeys(collection) {
		out = append(out, clone(s.data[collection][key]))
	}
	return out, nil
}

func (s *Store) RunTransaction(ctx context.Context, fn func(tx store.Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	buf := &store.Buffer{}
	if err := fn(&memTx{store: s, buf: buf}); err != nil {
		return err
	}
	return buf.Apply(s.getLocked, s.putLocked)
}

func (s *Store) getLocked(collection, key string) (store.Document, error) {
	doc, ok := s.data[collection][key]
	if !ok {
		return nil, store.ErrNotFound
	}
	return clone(doc), nil
}

func (s *Store) putLocked(collection, key string, doc store.Document) error {
	if s.data[collection] == nil {
		s.data[collection] = make(map[string]store.Document)
	}
	s.data[collection][key] = doc
	return nil
}

func (s *Store) sortedKeys(collection string) []string {
	keys := make([]string, 0, len(s.data[collection]))
	for k := range s.data[collection] {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

type memTx struct {
	store *Store
	buf   *store.Buffer
}

func (t *memTx) Get(collection, key string) (store.Document, error) {
	return t.store.getLocked(collection, key)
}

func (t *memTx) Set(collection, key string, data store.Document, merge bool) {
	t.buf.Set(collection, key, data, merge)
}

func (t *memTx) Update(collection, key string, fields store.Document) {
	t.buf.Update(collection, key, fields)
}

func clone(doc store.Document) store.Document {
	out, err := store.Encode(doc)
	if err != nil {
		return doc
	}
	return out
}
