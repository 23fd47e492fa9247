package kv

import (
	"fmt"
	"slices"
)

// IndexSchema declares a non-unique secondary index.
// KeyPath with more than one element builds a compound key.
type IndexSchema struct {
	Name    string
	KeyPath []string
}

// StoreSchema declares an object store keyed by the field at KeyPath.
type StoreSchema struct {
	Name    string
	KeyPath string
	Indexes []IndexSchema
}

// Schema is the set of object stores a database must contain.
type Schema struct {
	Stores []StoreSchema
}

// index returns the named index of the store.
func (s StoreSchema) index(name string) (IndexSchema, bool) {
	for _, idx := range s.Indexes {
		if idx.Name == name {
			return idx, true
		}
	}
	return IndexSchema{}, false
}

// validate checks that names are present and unique.
func (s Schema) validate() error {
	seen := make(map[string]bool, len(s.Stores))
	for _, st := range s.Stores {
		if st.Name == "" {
			return fmt.Errorf("schema: object store without name")
		}
		if seen[st.Name] {
			return fmt.Errorf("schema: duplicate object store %q", st.Name)
		}
		seen[st.Name] = true
		if st.KeyPath == "" {
			return fmt.Errorf("schema: object store %q has no key path", st.Name)
		}

		idxSeen := make(map[string]bool, len(st.Indexes))
		for _, idx := range st.Indexes {
			if idx.Name == "" || len(idx.KeyPath) == 0 || slices.Contains(idx.KeyPath, "") {
				return fmt.Errorf("schema: object store %q has an incomplete index", st.Name)
			}
			if idxSeen[idx.Name] {
				return fmt.Errorf("schema: object store %q has duplicate index %q", st.Name, idx.Name)
			}
			idxSeen[idx.Name] = true
		}
	}
	return nil
}
