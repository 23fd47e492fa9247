package kv

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"strings"

	_ "github.com/mattn/go-sqlite3"
)

//go:embed schema.sql
var schemaSQL string

// sqliteEngine stores every object store in shared tables of one SQLite file.
type sqliteEngine struct {
	db *sql.DB
}

// sqlitePragmas are applied to the single connection in order. The value is
// what the pragma reads back as.
var sqlitePragmas = []struct{ name, set, want string }{
	{"journal_mode", "WAL", "wal"},
	{"synchronous", "NORMAL", "1"},
	{"busy_timeout", "5000", "5000"},
	{"foreign_keys", "ON", "1"},
}

// openSQLite opens the file at path on one connection, so transactions
// serialize, and installs the catalog tables.
func openSQLite(path string) (*sqliteEngine, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	steps := []struct {
		what string
		run  func() error
	}{
		{"connect", db.Ping},
		{"configure", func() error { return applyPragmas(db) }},
		{"install catalog", func() error { _, err := db.Exec(schemaSQL); return err }},
	}
	for _, step := range steps {
		if err := step.run(); err != nil {
			db.Close()
			return nil, fmt.Errorf("sqlite %s: %s: %w", path, step.what, err)
		}
	}
	return &sqliteEngine{db: db}, nil
}

func applyPragmas(db *sql.DB) error {
	for _, p := range sqlitePragmas {
		if _, err := db.Exec(fmt.Sprintf("PRAGMA %s = %s", p.name, p.set)); err != nil {
			return fmt.Errorf("pragma %s: %w", p.name, err)
		}
	}
	return nil
}

func (e *sqliteEngine) begin(ctx context.Context, _ bool) (engineTx, error) {
	tx, err := e.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	return &sqliteTx{ctx: ctx, tx: tx}, nil
}

func (e *sqliteEngine) close() error {
	if e.db == nil {
		return nil
	}
	return e.db.Close()
}

// pragma reads back the current value of a pragma.
func (e *sqliteEngine) pragma(name string) (string, error) {
	var value string
	if err := e.db.QueryRow("PRAGMA " + name).Scan(&value); err != nil {
		return "", fmt.Errorf("pragma %s: %w", name, err)
	}
	return value, nil
}

type sqliteTx struct {
	ctx context.Context
	tx  *sql.Tx
}

func (t *sqliteTx) version() (int, error) {
	var v int
	if err := t.tx.QueryRowContext(t.ctx, "PRAGMA user_version").Scan(&v); err != nil {
		return 0, fmt.Errorf("get user_version: %w", err)
	}
	return v, nil
}

func (t *sqliteTx) setVersion(v int) error {
	if _, err := t.tx.ExecContext(t.ctx, fmt.Sprintf("PRAGMA user_version = %d", v)); err != nil {
		return fmt.Errorf("set user_version: %w", err)
	}
	return nil
}

func (t *sqliteTx) storeKeyPath(store string) (string, bool, error) {
	var keyPath string
	err := t.tx.QueryRowContext(t.ctx, `SELECT key_path FROM object_stores WHERE name = ?`, store).Scan(&keyPath)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("query object store: %w", err)
	}
	return keyPath, true, nil
}

func (t *sqliteTx) createStore(store, keyPath string) error {
	_, err := t.tx.ExecContext(t.ctx, `
		INSERT INTO object_stores (name, key_path) VALUES (?, ?)
		ON CONFLICT(name) DO NOTHING
	`, store, keyPath)
	return err
}

func (t *sqliteTx) indexKeyPath(store, index string) ([]string, bool, error) {
	var keyPath string
	err := t.tx.QueryRowContext(t.ctx, `
		SELECT key_path FROM store_indexes WHERE store = ? AND name = ?
	`, store, index).Scan(&keyPath)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("query index: %w", err)
	}
	return strings.Split(keyPath, ","), true, nil
}

func (t *sqliteTx) createIndex(store, index string, keyPath []string) error {
	_, err := t.tx.ExecContext(t.ctx, `
		INSERT INTO store_indexes (store, name, key_path) VALUES (?, ?, ?)
		ON CONFLICT(store, name) DO NOTHING
	`, store, index, strings.Join(keyPath, ","))
	return err
}

func (t *sqliteTx) get(store string, pk Key) ([]byte, bool, error) {
	var doc []byte
	err := t.tx.QueryRowContext(t.ctx, `
		SELECT doc FROM records WHERE store = ? AND pk = ?
	`, store, []byte(pk)).Scan(&doc)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return doc, true, nil
}

func (t *sqliteTx) scan(store string) ([]entry, error) {
	rows, err := t.tx.QueryContext(t.ctx, `
		SELECT pk, doc FROM records WHERE store = ? ORDER BY pk ASC
	`, store)
	if err != nil {
		return nil, fmt.Errorf("query records: %w", err)
	}
	defer rows.Close()

	entries := []entry{}
	for rows.Next() {
		var pk, doc []byte
		if err := rows.Scan(&pk, &doc); err != nil {
			return nil, fmt.Errorf("scan record: %w", err)
		}
		entries = append(entries, entry{key: Key(pk), doc: doc})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate records: %w", err)
	}
	return entries, nil
}

func (t *sqliteTx) scanIndex(store, index string, ikey Key) ([]Key, error) {
	rows, err := t.tx.QueryContext(t.ctx, `
		SELECT pk FROM index_entries
		WHERE store = ? AND idx = ? AND ikey = ?
		ORDER BY pk ASC
	`, store, index, []byte(ikey))
	if err != nil {
		return nil, fmt.Errorf("query index entries: %w", err)
	}
	defer rows.Close()

	pks := []Key{}
	for rows.Next() {
		var pk []byte
		if err := rows.Scan(&pk); err != nil {
			return nil, fmt.Errorf("scan index entry: %w", err)
		}
		pks = append(pks, Key(pk))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate index entries: %w", err)
	}
	return pks, nil
}

// insert uses ON CONFLICT DO NOTHING so a duplicate primary key is reported
// as inserted=false instead of a constraint error.
func (t *sqliteTx) insert(store string, pk Key, doc []byte) (bool, error) {
	result, err := t.tx.ExecContext(t.ctx, `
		INSERT INTO records (store, pk, doc) VALUES (?, ?, ?)
		ON CONFLICT(store, pk) DO NOTHING
	`, store, []byte(pk), doc)
	if err != nil {
		return false, err
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return n > 0, nil
}

func (t *sqliteTx) put(store string, pk Key, doc []byte) error {
	_, err := t.tx.ExecContext(t.ctx, `
		INSERT INTO records (store, pk, doc) VALUES (?, ?, ?)
		ON CONFLICT(store, pk) DO UPDATE SET doc = excluded.doc
	`, store, []byte(pk), doc)
	return err
}

func (t *sqliteTx) remove(store string, pk Key) error {
	_, err := t.tx.ExecContext(t.ctx, `
		DELETE FROM records WHERE store = ? AND pk = ?
	`, store, []byte(pk))
	return err
}

func (t *sqliteTx) count(store string) (int, error) {
	var n int
	err := t.tx.QueryRowContext(t.ctx, `SELECT COUNT(*) FROM records WHERE store = ?`, store).Scan(&n)
	return n, err
}

func (t *sqliteTx) addIndexEntry(store, index string, ikey, pk Key) error {
	_, err := t.tx.ExecContext(t.ctx, `
		INSERT INTO index_entries (store, idx, ikey, pk) VALUES (?, ?, ?, ?)
		ON CONFLICT DO NOTHING
	`, store, index, []byte(ikey), []byte(pk))
	return err
}

func (t *sqliteTx) removeIndexEntry(store, index string, ikey, pk Key) error {
	_, err := t.tx.ExecContext(t.ctx, `
		DELETE FROM index_entries WHERE store = ? AND idx = ? AND ikey = ? AND pk = ?
	`, store, index, []byte(ikey), []byte(pk))
	return err
}

func (t *sqliteTx) commit() error {
	return t.tx.Commit()
}

func (t *sqliteTx) rollback() error {
	return t.tx.Rollback()
}
