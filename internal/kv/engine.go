package kv

import "context"

// engine is the embedded storage backend. Implementations only move
// encoded keys and opaque documents; key extraction, index maintenance and
// scope checks live in Txn.
type engine interface {
	begin(ctx context.Context, writable bool) (engineTx, error)
	close() error
}

// entry is one stored document with its primary key.
type entry struct {
	key Key
	doc []byte
}

type engineTx interface {
	version() (int, error)
	setVersion(v int) error

	storeKeyPath(store string) (keyPath string, exists bool, err error)
	createStore(store, keyPath string) error
	indexKeyPath(store, index string) (keyPath []string, exists bool, err error)
	createIndex(store, index string, keyPath []string) error

	get(store string, pk Key) (doc []byte, found bool, err error)
	scan(store string) ([]entry, error)
	scanIndex(store, index string, ikey Key) ([]Key, error)
	insert(store string, pk Key, doc []byte) (inserted bool, err error)
	put(store string, pk Key, doc []byte) error
	remove(store string, pk Key) error
	count(store string) (int, error)

	addIndexEntry(store, index string, ikey, pk Key) error
	removeIndexEntry(store, index string, ikey, pk Key) error

	commit() error
	rollback() error
}
