package store

import (
	"encoding/json"
	"errors"
	"testing"
)

type applyRig struct {
	docs map[string]Document
	puts int
}

func newApplyRig() *applyRig {
	return &applyRig{docs: make(map[string]Document)}
}

func (r *applyRig) fetch(collection, key string) (Document, error) {
	doc, ok := r.docs[collection+"/"+key]
	if !ok {
		return nil, ErrNotFound
	}
	return doc, nil
}

func (r *applyRig) put(collection, key string, doc Document) error {
	r.docs[collection+"/"+key] = doc
	r.puts++
	return nil
}

func TestBufferLaterOpsSeeStagedWrites(t *testing.T) {
	rig := newApplyRig()

	buf := &Buffer{}
	buf.Set("users", "1", Document{"balance": float64(0)}, false)
	buf.Update("users", "1", Document{"balance": Increment(10)})
	buf.Update("users", "1", Document{"balance": Increment(5)})

	if err := buf.Apply(rig.fetch, rig.put); err != nil {
		t.Fatalf("apply: %v", err)
	}

	n, ok := rig.docs["users/1"]["balance"].(json.Number)
	if !ok {
		t.Fatalf("expected json.Number balance, got %T", rig.docs["users/1"]["balance"])
	}
	if f, _ := n.Float64(); f != 15 {
		t.Fatalf("expected 15, got %v", n)
	}
	if rig.puts != 1 {
		t.Fatalf("expected a single coalesced put, got %d", rig.puts)
	}
}

func TestBufferUpdateMissingDoc(t *testing.T) {
	rig := newApplyRig()

	buf := &Buffer{}
	buf.Update("users", "missing", Document{"balance": Increment(1)})

	if err := buf.Apply(rig.fetch, rig.put); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if rig.puts != 0 {
		t.Fatalf("no writes expected on failed apply, got %d", rig.puts)
	}
}

func TestBufferSetOverwrites(t *testing.T) {
	rig := newApplyRig()
	rig.docs["users/1"] = Document{"old": true}

	buf := &Buffer{}
	buf.Set("users", "1", Document{"fresh": true}, false)
	if err := buf.Apply(rig.fetch, rig.put); err != nil {
		t.Fatalf("apply: %v", err)
	}

	if _, ok := rig.docs["users/1"]["old"]; ok {
		t.Fatalf("non-merge set kept old fields: %v", rig.docs["users/1"])
	}
}

func TestBufferMergePreserves(t *testing.T) {
	rig := newApplyRig()
	rig.docs["users/1"] = Document{"old": true}

	buf := &Buffer{}
	buf.Set("users", "1", Document{"fresh": true}, true)
	if err := buf.Apply(rig.fetch, rig.put); err != nil {
		t.Fatalf("apply: %v", err)
	}

	doc := rig.docs["users/1"]
	if doc["old"] != true || doc["fresh"] != true {
		t.Fatalf("merge set lost fields: %v", doc)
	}
}

func TestBufferEmpty(t *testing.T) {
	buf := &Buffer{}
	if !buf.Empty() {
		t.Fatalf("fresh buffer should be empty")
	}
	buf.Update("users", "1", Document{"x": 1})
	if buf.Empty() {
		t.Fatalf("buffer with staged op should not be empty")
	}
}
