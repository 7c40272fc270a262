package store

const (
	opSet = iota
	opMerge
	opUpdate
)

type stagedOp struct {
	kind       int
	collection string
	key        string
	data       Document
}

// Buffer collects staged transaction writes. Both store implementations run
// their transactions through it: the function under RunTransaction records
// writes here, and Apply replays them against current state only after the
// function has returned nil.
type Buffer struct {
	ops []stagedOp
}

func (b *Buffer) Set(collection, key string, data Document, merge bool) {
	kind := opSet
	if merge {
		kind = opMerge
	}
	b.ops = append(b.ops, stagedOp{kind: kind, collection: collection, key: key, data: data})
}

func (b *Buffer) Update(collection, key string, fields Document) {
	b.ops = append(b.ops, stagedOp{kind: opUpdate, collection: collection, key: key, data: fields})
}

// Empty reports whether the transaction staged any writes.
func (b *Buffer) Empty() bool { return len(b.ops) == 0 }

// Apply replays staged ops in order. fetch reads the current committed
// document (ErrNotFound when absent); put writes the final form back. Later
// ops in the same transaction observe earlier staged writes.
func (b *Buffer) Apply(fetch func(collection, key string) (Document, error), put func(collection, key string, doc Document) error) error {
	type docKey struct{ collection, key string }
	cache := make(map[docKey]Document)
	var order []docKey

	load := func(k docKey) (Document, bool, error) {
		if doc, ok := cache[k]; ok {
			return doc, true, nil
		}
		doc, err := fetch(k.collection, k.key)
		if err == ErrNotFound {
			return nil, false, nil
		}
		if err != nil {
			return nil, false, err
		}
		return doc, true, nil
	}

	for _, op := range b.ops {
		k := docKey{op.collection, op.key}
		cur, exists, err := load(k)
		if err != nil {
			return err
		}
		var next Document
		switch op.kind {
		case opSet:
			next = MergeDocs(Document{}, op.data)
		case opMerge:
			if !exists {
				cur = Document{}
			}
			next = MergeDocs(cur, op.data)
		case opUpdate:
			if !exists {
				return ErrNotFound
			}
			next = ApplyFields(cur, op.data)
		}
		if _, ok := cache[k]; !ok {
			order = append(order, k)
		}
		cache[k] = next
	}

	for _, k := range order {
		if err := put(k.collection, k.key, cache[k]); err != nil {
			return err
		}
	}
	return nil
}
