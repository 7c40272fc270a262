package store

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Encode converts a typed value into its Document form. Numbers come back as
// json.Number, matching what implementations return from reads.
func Encode(v any) (Document, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("store: encode: %w", err)
	}
	var doc Document
	if err := DecodeJSON(raw, &doc); err != nil {
		return nil, err
	}
	return doc, nil
}

// Decode converts a Document back into a typed value.
func Decode(doc Document, v any) error {
	raw, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("store: decode: %w", err)
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("store: decode: %w", err)
	}
	return nil
}

// DecodeJSON unmarshals raw JSON preserving numbers as json.Number.
func DecodeJSON(raw []byte, v any) error {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("store: decode json: %w", err)
	}
	return nil
}

// Normalize runs a value through the JSON codec so that in-memory writes and
// field-op arguments compare equal to values read back from storage.
func Normalize(v any) any {
	raw, err := json.Marshal(v)
	if err != nil {
		return v
	}
	var out any
	if err := DecodeJSON(raw, &out); err != nil {
		return v
	}
	return out
}
