package kv

import "fmt"

// Txn is the scope handed to a Transaction callback.
// It must not be used after the callback returns.
type Txn struct {
	etx   engineTx
	mode  Mode
	scope map[string]StoreSchema
}

func (t *Txn) store(name string, write bool) (StoreSchema, error) {
	s, ok := t.scope[name]
	if !ok {
		return StoreSchema{}, fmt.Errorf("%w: %q", ErrNotInScope, name)
	}
	if write && t.mode != ReadWrite {
		return StoreSchema{}, fmt.Errorf("%w: write to %q", ErrReadOnly, name)
	}
	return s, nil
}

// Get returns the document stored under key, or ErrNotFound.
func (t *Txn) Get(store string, key Key) ([]byte, error) {
	if _, err := t.store(store, false); err != nil {
		return nil, err
	}
	doc, found, err := t.etx.get(store, key)
	if err != nil {
		return nil, fmt.Errorf("get %s[%s]: %w", store, key, err)
	}
	if !found {
		return nil, fmt.Errorf("get %s[%s]: %w", store, key, ErrNotFound)
	}
	return doc, nil
}

// GetAll returns every document in the store ordered by primary key.
// Returns an empty slice (not nil) for an empty store.
func (t *Txn) GetAll(store string) ([][]byte, error) {
	if _, err := t.store(store, false); err != nil {
		return nil, err
	}
	entries, err := t.etx.scan(store)
	if err != nil {
		return nil, fmt.Errorf("get all %s: %w", store, err)
	}
	docs := make([][]byte, 0, len(entries))
	for _, e := range entries {
		docs = append(docs, e.doc)
	}
	return docs, nil
}

// GetAllByIndex returns the documents whose index key equals key, ordered
// by primary key. Returns an empty slice when nothing matches.
func (t *Txn) GetAllByIndex(store, index string, key Key) ([][]byte, error) {
	s, err := t.store(store, false)
	if err != nil {
		return nil, err
	}
	if _, ok := s.index(index); !ok {
		return nil, fmt.Errorf("%w: %s.%s", ErrUnknownIndex, store, index)
	}
	pks, err := t.etx.scanIndex(store, index, key)
	if err != nil {
		return nil, fmt.Errorf("get all %s by %s: %w", store, index, err)
	}
	docs := make([][]byte, 0, len(pks))
	for _, pk := range pks {
		doc, found, err := t.etx.get(store, pk)
		if err != nil {
			return nil, fmt.Errorf("get all %s by %s: %w", store, index, err)
		}
		if found {
			docs = append(docs, doc)
		}
	}
	return docs, nil
}

// GetByIndex returns the first document (lowest primary key) whose index
// key equals key, or ErrNotFound.
func (t *Txn) GetByIndex(store, index string, key Key) ([]byte, error) {
	docs, err := t.GetAllByIndex(store, index, key)
	if err != nil {
		return nil, err
	}
	if len(docs) == 0 {
		return nil, fmt.Errorf("get %s by %s[%s]: %w", store, index, key, ErrNotFound)
	}
	return docs[0], nil
}

// Put inserts doc or overwrites the document with the same primary key.
func (t *Txn) Put(store string, doc []byte) (Key, error) {
	return t.write(store, doc, false)
}

// Add inserts doc, failing with ErrDuplicateKey if its primary key exists.
func (t *Txn) Add(store string, doc []byte) (Key, error) {
	return t.write(store, doc, true)
}

func (t *Txn) write(store string, doc []byte, insertOnly bool) (Key, error) {
	s, err := t.store(store, true)
	if err != nil {
		return "", err
	}
	fields, err := decodeDoc(doc)
	if err != nil {
		return "", err
	}
	pk, ok, err := keyAt(fields, []string{s.KeyPath})
	if err != nil {
		return "", err
	}
	if !ok {
		return "", fmt.Errorf("%w: %s needs %q", ErrMissingKey, store, s.KeyPath)
	}

	old, found, err := t.etx.get(store, pk)
	if err != nil {
		return "", fmt.Errorf("write %s[%s]: %w", store, pk, err)
	}
	if found && insertOnly {
		return "", fmt.Errorf("add %s[%s]: %w", store, pk, ErrDuplicateKey)
	}
	if found {
		if err := t.unindex(s, pk, old); err != nil {
			return "", err
		}
	}

	if insertOnly {
		inserted, err := t.etx.insert(store, pk, doc)
		if err != nil {
			return "", fmt.Errorf("add %s[%s]: %w", store, pk, err)
		}
		if !inserted {
			return "", fmt.Errorf("add %s[%s]: %w", store, pk, ErrDuplicateKey)
		}
	} else if err := t.etx.put(store, pk, doc); err != nil {
		return "", fmt.Errorf("put %s[%s]: %w", store, pk, err)
	}

	for _, idx := range s.Indexes {
		ikey, ok, err := keyAt(fields, idx.KeyPath)
		if err != nil {
			return "", fmt.Errorf("index %s.%s: %w", store, idx.Name, err)
		}
		if !ok {
			continue
		}
		if err := t.etx.addIndexEntry(store, idx.Name, ikey, pk); err != nil {
			return "", fmt.Errorf("index %s.%s: %w", store, idx.Name, err)
		}
	}
	return pk, nil
}

// unindex removes the index entries belonging to a stored document.
func (t *Txn) unindex(s StoreSchema, pk Key, doc []byte) error {
	if len(s.Indexes) == 0 {
		return nil
	}
	fields, err := decodeDoc(doc)
	if err != nil {
		return err
	}
	for _, idx := range s.Indexes {
		ikey, ok, err := keyAt(fields, idx.KeyPath)
		if err != nil || !ok {
			continue
		}
		if err := t.etx.removeIndexEntry(s.Name, idx.Name, ikey, pk); err != nil {
			return fmt.Errorf("unindex %s.%s: %w", s.Name, idx.Name, err)
		}
	}
	return nil
}

// Delete removes the document stored under key. Deleting a missing key is a no-op.
func (t *Txn) Delete(store string, key Key) error {
	s, err := t.store(store, true)
	if err != nil {
		return err
	}
	old, found, err := t.etx.get(store, key)
	if err != nil {
		return fmt.Errorf("delete %s[%s]: %w", store, key, err)
	}
	if !found {
		return nil
	}
	if err := t.unindex(s, key, old); err != nil {
		return err
	}
	if err := t.etx.remove(store, key); err != nil {
		return fmt.Errorf("delete %s[%s]: %w", store, key, err)
	}
	return nil
}

// Count returns the number of documents in the store.
func (t *Txn) Count(store string) (int, error) {
	if _, err := t.store(store, false); err != nil {
		return 0, err
	}
	n, err := t.etx.count(store)
	if err != nil {
		return 0, fmt.Errorf("count %s: %w", store, err)
	}
	return n, nil
}

// ForEach calls fn for every document in primary key order, stopping at
// the first error. The iteration works on a snapshot taken before the first
// call, so fn may write to the same store.
func (t *Txn) ForEach(store string, fn func(key Key, doc []byte) error) error {
	if _, err := t.store(store, false); err != nil {
		return err
	}
	entries, err := t.etx.scan(store)
	if err != nil {
		return fmt.Errorf("iterate %s: %w", store, err)
	}
	for _, e := range entries {
		if err := fn(e.key, e.doc); err != nil {
			return err
		}
	}
	return nil
}
