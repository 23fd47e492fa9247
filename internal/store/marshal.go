package store

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// marshalDoc converts a record to the JSON document stored in kv.
// HTML escaping is disabled so species names and comments are stored as typed.
func marshalDoc(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, fmt.Errorf("marshal %T: %w", v, err)
	}
	// Encoder adds a trailing newline, remove it
	return bytes.TrimSuffix(buf.Bytes(), []byte("\n")), nil
}

// unmarshalDoc parses a stored document into a record.
func unmarshalDoc[T any](doc []byte) (T, error) {
	var v T
	if err := json.Unmarshal(doc, &v); err != nil {
		return v, fmt.Errorf("unmarshal %T: %w", v, err)
	}
	return v, nil
}

// unmarshalDocs parses a list of stored documents.
// Returns an empty slice (not nil) for no documents.
func unmarshalDocs[T any](docs [][]byte) ([]T, error) {
	out := make([]T, 0, len(docs))
	for _, d := range docs {
		v, err := unmarshalDoc[T](d)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}
