package store

import (
	"encoding/json"
	"fmt"
	"reflect"
	"strconv"
	"strings"
)

// arrayUnion appends values to an array field with set semantics: an element
// already present is not appended again, even under concurrent retry.
type arrayUnion struct{ values []any }

// increment adds delta to a numeric field, treating an absent field as zero.
type increment struct{ delta float64 }

// ArrayUnion builds an array-union field operation for Update/Set fields.
func ArrayUnion(values ...any) any { return arrayUnion{values: values} }

// Increment builds an increment field operation for Update/Set fields.
func Increment(delta float64) any { return increment{delta: delta} }

// ApplyFields applies an Update fields map onto a document. Keys may be
// dot-separated paths ("missions.twitter.claimed"); intermediate maps are
// created as needed. Shared by every Store implementation so that field-op
// semantics cannot diverge between the real store and the test store.
func ApplyFields(doc Document, fields Document) Document {
	if doc == nil {
		doc = Document{}
	}
	for path, value := range fields {
		setPath(doc, strings.Split(path, "."), value)
	}
	return doc
}

// MergeDocs deep-merges src into dst (Set with merge=true).
func MergeDocs(dst, src Document) Document {
	if dst == nil {
		dst = Document{}
	}
	for k, v := range src {
		if sub, ok := v.(map[string]any); ok {
			if cur, ok := dst[k].(map[string]any); ok {
				dst[k] = map[string]any(MergeDocs(Document(cur), Document(sub)))
				continue
			}
		}
		dst[k] = applyOp(dst[k], v)
	}
	return dst
}

func setPath(m map[string]any, path []string, value any) {
	last := len(path) - 1
	for _, p := range path[:last] {
		next, ok := m[p].(map[string]any)
		if !ok {
			next = map[string]any{}
			m[p] = next
		}
		m = next
	}
	m[path[last]] = applyOp(m[path[last]], value)
}

func applyOp(current, value any) any {
	switch op := value.(type) {
	case arrayUnion:
		arr, _ := current.([]any)
		for _, v := range op.values {
			nv := Normalize(v)
			if !containsValue(arr, nv) {
				arr = append(arr, nv)
			}
		}
		return arr
	case increment:
		return json.Number(strconv.FormatFloat(numberOf(current)+op.delta, 'f', -1, 64))
	default:
		return Normalize(value)
	}
}

func containsValue(arr []any, v any) bool {
	for _, e := range arr {
		if reflect.DeepEqual(e, v) {
			return true
		}
	}
	return false
}

func numberOf(v any) float64 {
	switch n := v.(type) {
	case json.Number:
		f, _ := n.Float64()
		return f
	case float64:
		return n
	case int64:
		return float64(n)
	case int:
		return float64(n)
	case nil:
		return 0
	default:
		return 0
	}
}

// FieldString renders a document field the way QueryIn compares it: the
// canonical JSON text of the value.
func FieldString(v any) string {
	switch s := v.(type) {
	case string:
		return s
	case json.Number:
		return s.String()
	case nil:
		return ""
	default:
		return fmt.Sprint(Normalize(s))
	}
}
