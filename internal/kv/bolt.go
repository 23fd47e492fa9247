package kv

import (
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"strings"
	"time"

	"go.etcd.io/bbolt"
)

// Bucket layout:
//
//	__kv_meta__            version, store:<name>, index:<store>\x00<name>
//	s:<store>/records      pk -> doc
//	s:<store>/idx:<index>  uvarint(len(ikey)) ikey pk -> empty
var (
	bucketMeta    = []byte("__kv_meta__")
	bucketRecords = []byte("records")
	keyVersion    = []byte("version")
)

func storeBucketName(store string) []byte {
	return []byte("s:" + store)
}

func indexBucketName(index string) []byte {
	return []byte("idx:" + index)
}

func storeMetaKey(store string) []byte {
	return []byte("store:" + store)
}

func indexMetaKey(store, index string) []byte {
	return []byte("index:" + store + "\x00" + index)
}

// indexEntryKey prefixes ikey with its length so a prefix scan for one ikey
// never matches a longer ikey that starts with the same bytes.
func indexEntryKey(ikey, pk Key) []byte {
	buf := make([]byte, 0, binary.MaxVarintLen64+len(ikey)+len(pk))
	buf = binary.AppendUvarint(buf, uint64(len(ikey)))
	buf = append(buf, ikey...)
	buf = append(buf, pk...)
	return buf
}

type boltEngine struct {
	db *bbolt.DB
}

func openBolt(path string) (*boltEngine, error) {
	db, err := bbolt.Open(path, 0o600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketMeta)
		return err
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("creating bucket %s: %w", bucketMeta, err)
	}
	return &boltEngine{db: db}, nil
}

func (e *boltEngine) begin(_ context.Context, writable bool) (engineTx, error) {
	tx, err := e.db.Begin(writable)
	if err != nil {
		return nil, err
	}
	return &boltTx{tx: tx}, nil
}

func (e *boltEngine) close() error {
	if e.db == nil {
		return nil
	}
	return e.db.Close()
}

type boltTx struct {
	tx   *bbolt.Tx
	done bool
}

func (t *boltTx) meta() (*bbolt.Bucket, error) {
	b := t.tx.Bucket(bucketMeta)
	if b == nil {
		return nil, fmt.Errorf("meta bucket not found")
	}
	return b, nil
}

// records returns the record bucket of a store, or nil if it was never created.
func (t *boltTx) records(store string) *bbolt.Bucket {
	sb := t.tx.Bucket(storeBucketName(store))
	if sb == nil {
		return nil
	}
	return sb.Bucket(bucketRecords)
}

func (t *boltTx) index(store, index string) *bbolt.Bucket {
	sb := t.tx.Bucket(storeBucketName(store))
	if sb == nil {
		return nil
	}
	return sb.Bucket(indexBucketName(index))
}

func (t *boltTx) version() (int, error) {
	m, err := t.meta()
	if err != nil {
		return 0, err
	}
	v := m.Get(keyVersion)
	if v == nil {
		return 0, nil
	}
	if len(v) != 8 {
		return 0, fmt.Errorf("corrupt version value")
	}
	return int(binary.BigEndian.Uint64(v)), nil
}

func (t *boltTx) setVersion(v int) error {
	m, err := t.meta()
	if err != nil {
		return err
	}
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], uint64(v))
	return m.Put(keyVersion, buf[:])
}

func (t *boltTx) storeKeyPath(store string) (string, bool, error) {
	m, err := t.meta()
	if err != nil {
		return "", false, err
	}
	v := m.Get(storeMetaKey(store))
	if v == nil {
		return "", false, nil
	}
	return string(v), true, nil
}

func (t *boltTx) createStore(store, keyPath string) error {
	m, err := t.meta()
	if err != nil {
		return err
	}
	sb, err := t.tx.CreateBucketIfNotExists(storeBucketName(store))
	if err != nil {
		return fmt.Errorf("creating bucket for %s: %w", store, err)
	}
	if _, err := sb.CreateBucketIfNotExists(bucketRecords); err != nil {
		return fmt.Errorf("creating records bucket for %s: %w", store, err)
	}
	return m.Put(storeMetaKey(store), []byte(keyPath))
}

func (t *boltTx) indexKeyPath(store, index string) ([]string, bool, error) {
	m, err := t.meta()
	if err != nil {
		return nil, false, err
	}
	v := m.Get(indexMetaKey(store, index))
	if v == nil {
		return nil, false, nil
	}
	return strings.Split(string(v), ","), true, nil
}

func (t *boltTx) createIndex(store, index string, keyPath []string) error {
	m, err := t.meta()
	if err != nil {
		return err
	}
	sb := t.tx.Bucket(storeBucketName(store))
	if sb == nil {
		return fmt.Errorf("store %q has no bucket", store)
	}
	if _, err := sb.CreateBucketIfNotExists(indexBucketName(index)); err != nil {
		return fmt.Errorf("creating index bucket %s.%s: %w", store, index, err)
	}
	return m.Put(indexMetaKey(store, index), []byte(strings.Join(keyPath, ",")))
}

func (t *boltTx) get(store string, pk Key) ([]byte, bool, error) {
	b := t.records(store)
	if b == nil {
		return nil, false, nil
	}
	v := b.Get([]byte(pk))
	if v == nil {
		return nil, false, nil
	}
	// Values are only valid for the life of the transaction.
	doc := make([]byte, len(v))
	copy(doc, v)
	return doc, true, nil
}

func (t *boltTx) scan(store string) ([]entry, error) {
	entries := []entry{}
	b := t.records(store)
	if b == nil {
		return entries, nil
	}
	c := b.Cursor()
	for k, v := c.First(); k != nil; k, v = c.Next() {
		doc := make([]byte, len(v))
		copy(doc, v)
		entries = append(entries, entry{key: Key(k), doc: doc})
	}
	return entries, nil
}

func (t *boltTx) scanIndex(store, index string, ikey Key) ([]Key, error) {
	pks := []Key{}
	b := t.index(store, index)
	if b == nil {
		return pks, nil
	}
	prefix := indexEntryKey(ikey, "")
	c := b.Cursor()
	for k, _ := c.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, _ = c.Next() {
		pks = append(pks, Key(k[len(prefix):]))
	}
	return pks, nil
}

func (t *boltTx) insert(store string, pk Key, doc []byte) (bool, error) {
	b := t.records(store)
	if b == nil {
		return false, fmt.Errorf("store %q has no bucket", store)
	}
	if b.Get([]byte(pk)) != nil {
		return false, nil
	}
	if err := b.Put([]byte(pk), doc); err != nil {
		return false, err
	}
	return true, nil
}

func (t *boltTx) put(store string, pk Key, doc []byte) error {
	b := t.records(store)
	if b == nil {
		return fmt.Errorf("store %q has no bucket", store)
	}
	return b.Put([]byte(pk), doc)
}

func (t *boltTx) remove(store string, pk Key) error {
	b := t.records(store)
	if b == nil {
		return nil
	}
	return b.Delete([]byte(pk))
}

func (t *boltTx) count(store string) (int, error) {
	b := t.records(store)
	if b == nil {
		return 0, nil
	}
	n := 0
	c := b.Cursor()
	for k, _ := c.First(); k != nil; k, _ = c.Next() {
		n++
	}
	return n, nil
}

func (t *boltTx) addIndexEntry(store, index string, ikey, pk Key) error {
	b := t.index(store, index)
	if b == nil {
		return fmt.Errorf("index %s.%s has no bucket", store, index)
	}
	return b.Put(indexEntryKey(ikey, pk), []byte{})
}

func (t *boltTx) removeIndexEntry(store, index string, ikey, pk Key) error {
	b := t.index(store, index)
	if b == nil {
		return nil
	}
	return b.Delete(indexEntryKey(ikey, pk))
}

func (t *boltTx) commit() error {
	t.done = true
	return t.tx.Commit()
}

// rollback may be called after commit; bbolt reports ErrTxClosed then,
// which is dropped so deferred rollbacks stay quiet.
func (t *boltTx) rollback() error {
	if t.done {
		return nil
	}
	t.done = true
	return t.tx.Rollback()
}
