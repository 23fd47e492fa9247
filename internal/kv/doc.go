// Package kv is an embedded, versioned key-value document store.
//
// A database holds named object stores. Each store keys its JSON documents
// by one field (the key path) and may declare non-unique secondary indexes
// over one or more fields. Open creates missing stores and indexes in a
// single upgrade transaction and records the schema version.
//
// All reads and writes go through Transaction, which scopes a callback to a
// set of stores. A callback error rolls back every write made inside it.
//
// Two engines implement the storage: SQLite (github.com/mattn/go-sqlite3)
// and bbolt (go.etcd.io/bbolt). Both order keys by the byte encoding of Key,
// so iteration order is identical across engines.
package kv
