package kv

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
)

// Mode selects whether a transaction may write.
type Mode int

const (
	// ReadOnly transactions fail writes with ErrReadOnly.
	ReadOnly Mode = iota
	// ReadWrite transactions may Put, Add and Delete.
	ReadWrite
)

func (m Mode) String() string {
	if m == ReadWrite {
		return "readwrite"
	}
	return "readonly"
}

// Supported engine names for Options.Engine.
const (
	EngineSQLite = "sqlite"
	EngineBolt   = "bolt"
)

// Options configures Open.
type Options struct {
	// Path is the database file. It is created if missing.
	Path string

	// Engine is EngineSQLite (default) or EngineBolt.
	Engine string

	// Name identifies the database in logs.
	Name string

	// Version is the schema version, at least 1. Opening with a version lower
	// than the stored one fails with ErrVersion.
	Version int

	// Schema lists the stores and indexes that must exist after Open.
	Schema Schema

	// Logger receives debug output about upgrades. Defaults to slog.Default().
	Logger *slog.Logger
}

// DB is an open database handle shared by all transactions.
type DB struct {
	name    string
	version int
	eng     engine
	stores  map[string]StoreSchema
	logger  *slog.Logger
}

// Open opens or creates the database and ensures every store and index in
// the schema exists. Existing stores and indexes are left untouched; indexes
// added to a store that already holds records are backfilled.
//
// This function is idempotent - safe to call multiple times.
func Open(ctx context.Context, opts Options) (*DB, error) {
	if opts.Version < 1 {
		return nil, fmt.Errorf("%w: version must be >= 1, got %d", ErrStoreUnavailable, opts.Version)
	}
	if err := opts.Schema.validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	eng, err := openEngine(opts.Engine, opts.Path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
	}

	db := &DB{
		name:    opts.Name,
		version: opts.Version,
		eng:     eng,
		stores:  make(map[string]StoreSchema, len(opts.Schema.Stores)),
		logger:  logger.With("db", opts.Name),
	}
	for _, s := range opts.Schema.Stores {
		db.stores[s.Name] = s
	}

	if err := db.upgrade(ctx, opts.Schema); err != nil {
		_ = eng.close()
		return nil, fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
	}

	return db, nil
}

func openEngine(kind, path string) (engine, error) {
	switch kind {
	case "", EngineSQLite:
		return openSQLite(path)
	case EngineBolt:
		return openBolt(path)
	default:
		return nil, fmt.Errorf("unknown engine %q", kind)
	}
}

// upgrade creates missing stores and indexes in a single write transaction.
func (db *DB) upgrade(ctx context.Context, schema Schema) error {
	tx, err := db.eng.begin(ctx, true)
	if err != nil {
		return fmt.Errorf("begin upgrade: %w", err)
	}
	defer tx.rollback() // No-op if committed

	current, err := tx.version()
	if err != nil {
		return fmt.Errorf("read version: %w", err)
	}
	if current > db.version {
		return fmt.Errorf("%w: requested version %d is lower than stored version %d", ErrVersion, db.version, current)
	}

	for _, s := range schema.Stores {
		keyPath, exists, err := tx.storeKeyPath(s.Name)
		if err != nil {
			return err
		}
		if exists && keyPath != s.KeyPath {
			return fmt.Errorf("%w: store %q has key path %q, want %q", ErrSchemaConflict, s.Name, keyPath, s.KeyPath)
		}
		if !exists {
			if err := tx.createStore(s.Name, s.KeyPath); err != nil {
				return fmt.Errorf("create store %q: %w", s.Name, err)
			}
			db.logger.Debug("created object store", "store", s.Name, "key_path", s.KeyPath)
		}

		for _, idx := range s.Indexes {
			idxPath, exists, err := tx.indexKeyPath(s.Name, idx.Name)
			if err != nil {
				return err
			}
			if exists {
				if !slices.Equal(idxPath, idx.KeyPath) {
					return fmt.Errorf("%w: index %s.%s has key path %v, want %v", ErrSchemaConflict, s.Name, idx.Name, idxPath, idx.KeyPath)
				}
				continue
			}
			if err := tx.createIndex(s.Name, idx.Name, idx.KeyPath); err != nil {
				return fmt.Errorf("create index %s.%s: %w", s.Name, idx.Name, err)
			}
			n, err := backfill(tx, s.Name, idx)
			if err != nil {
				return fmt.Errorf("backfill index %s.%s: %w", s.Name, idx.Name, err)
			}
			db.logger.Debug("created index", "store", s.Name, "index", idx.Name, "backfilled", n)
		}
	}

	if current < db.version {
		if err := tx.setVersion(db.version); err != nil {
			return fmt.Errorf("set version: %w", err)
		}
		db.logger.Debug("upgraded database", "from", current, "to", db.version)
	}

	if err := ctx.Err(); err != nil {
		return err
	}
	return tx.commit()
}

// backfill indexes the records already present in a store.
func backfill(tx engineTx, store string, idx IndexSchema) (int, error) {
	entries, err := tx.scan(store)
	if err != nil {
		return 0, err
	}
	n := 0
	for _, e := range entries {
		fields, err := decodeDoc(e.doc)
		if err != nil {
			return n, err
		}
		ikey, ok, err := keyAt(fields, idx.KeyPath)
		if err != nil || !ok {
			continue
		}
		if err := tx.addIndexEntry(store, idx.Name, ikey, e.key); err != nil {
			return n, err
		}
		n++
	}
	return n, nil
}

// Close closes the underlying engine.
func (db *DB) Close() error {
	if db == nil || db.eng == nil {
		return nil
	}
	err := db.eng.close()
	db.eng = nil
	return err
}

// Name returns the database name given to Open.
func (db *DB) Name() string {
	return db.name
}

// Version returns the schema version the database was opened with.
func (db *DB) Version() int {
	return db.version
}

// Stores returns the sorted names of the object stores in the schema.
func (db *DB) Stores() []string {
	names := make([]string, 0, len(db.stores))
	for n := range db.stores {
		names = append(names, n)
	}
	slices.Sort(names)
	return names
}

// Transaction runs fn inside a transaction scoped to the named stores.
//
// If fn returns an error, or the commit fails, the transaction is rolled
// back and the error is returned wrapped in ErrTransactionAborted. Work done
// by separate Transaction calls is not atomic as a whole.
func (db *DB) Transaction(ctx context.Context, stores []string, mode Mode, fn func(*Txn) error) error {
	if db.eng == nil {
		return abort(ErrStoreUnavailable)
	}
	if len(stores) == 0 {
		return abort(fmt.Errorf("%w: empty scope", ErrNotInScope))
	}
	scope := make(map[string]StoreSchema, len(stores))
	for _, name := range stores {
		s, ok := db.stores[name]
		if !ok {
			return abort(fmt.Errorf("%w: %q", ErrUnknownStore, name))
		}
		scope[name] = s
	}
	if err := ctx.Err(); err != nil {
		return abort(err)
	}

	etx, err := db.eng.begin(ctx, mode == ReadWrite)
	if err != nil {
		return abort(fmt.Errorf("begin: %w", err))
	}

	t := &Txn{etx: etx, mode: mode, scope: scope}
	if err := fn(t); err != nil {
		_ = etx.rollback()
		return abort(err)
	}
	if err := ctx.Err(); err != nil {
		_ = etx.rollback()
		return abort(err)
	}

	if mode == ReadOnly {
		_ = etx.rollback()
		return nil
	}
	if err := etx.commit(); err != nil {
		return abort(fmt.Errorf("commit: %w", err))
	}
	return nil
}

// View is Transaction with ReadOnly mode.
func (db *DB) View(ctx context.Context, stores []string, fn func(*Txn) error) error {
	return db.Transaction(ctx, stores, ReadOnly, fn)
}

// Update is Transaction with ReadWrite mode.
func (db *DB) Update(ctx context.Context, stores []string, fn func(*Txn) error) error {
	return db.Transaction(ctx, stores, ReadWrite, fn)
}

func abort(err error) error {
	if errors.Is(err, ErrTransactionAborted) {
		return err
	}
	return fmt.Errorf("%w: %w", ErrTransactionAborted, err)
}
