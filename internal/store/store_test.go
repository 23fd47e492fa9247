package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/inventario/internal/kv"
)

func TestOpen_Idempotent(t *testing.T) {
	forEachEngine(t, func(t *testing.T, engine string) {
		path := filepath.Join(t.TempDir(), "test.db")
		for i := 0; i < 3; i++ {
			s, err := Open(context.Background(), Options{Path: path, Engine: engine})
			require.NoError(t, err, "iteration %d", i)
			assert.Equal(t, []string{StoreImages, StoreMetadata, StoreRows}, s.DB().Stores())
			assert.Equal(t, SchemaVersion, s.DB().Version())
			require.NoError(t, s.Close())
		}
	})
}

func TestOpen_GeneratesSessionID(t *testing.T) {
	s, err := Open(context.Background(), Options{Path: filepath.Join(t.TempDir(), "test.db")})
	require.NoError(t, err)
	defer s.Close()
	assert.Len(t, s.ID(), 36, "UUIDv7 string form")
}

func TestOpen_Unavailable(t *testing.T) {
	_, err := Open(context.Background(), Options{Path: filepath.Join(t.TempDir(), "missing", "dir", "test.db")})
	assert.ErrorIs(t, err, kv.ErrStoreUnavailable)
}

func TestOpen_UpgradesVersionOneDatabase(t *testing.T) {
	forEachEngine(t, func(t *testing.T, engine string) {
		ctx := context.Background()
		path := filepath.Join(t.TempDir(), "test.db")

		// Version 1 had no natural_key index.
		v1 := Schema()
		v1.Stores[1].Indexes = v1.Stores[1].Indexes[:2]
		db, err := kv.Open(ctx, kv.Options{Path: path, Engine: engine, Name: DBName, Version: 1, Schema: v1})
		require.NoError(t, err)
		require.NoError(t, db.Update(ctx, []string{StoreRows}, func(tx *kv.Txn) error {
			_, err := tx.Put(StoreRows, []byte(`{"id":7,"row_number":1,"inv_id":"A1","especie":null,"n":null,"d":12,"di":null,"dd":null,"h":null,"dmay":null,"dmen":null,"rmay":null,"rmen":null,"dbh":null}`))
			return err
		}))
		require.NoError(t, db.Close())

		s, err := Open(ctx, Options{Path: path, Engine: engine})
		require.NoError(t, err)
		defer s.Close()

		row, err := s.RowByNumber(ctx, "A1", 1)
		require.NoError(t, err)
		assert.Equal(t, int64(7), row.ID)
	})
}

func TestClose_Twice(t *testing.T) {
	s := createTestSession(t)
	require.NoError(t, s.Close())
	require.NoError(t, s.Close())

	_, err := s.ListInventories(context.Background())
	assert.ErrorIs(t, err, kv.ErrStoreUnavailable)
}

func TestListInventories_EmptyAndOrdered(t *testing.T) {
	s := createTestSession(t)
	ctx := context.Background()

	invs, err := s.ListInventories(ctx)
	require.NoError(t, err)
	assert.NotNil(t, invs)
	assert.Empty(t, invs)

	seedInventory(t, s, "b2")
	seedInventory(t, s, "a1")

	invs, err = s.ListInventories(ctx)
	require.NoError(t, err)
	require.Len(t, invs, 2)
	assert.Equal(t, "A1", invs[0].InvID)
	assert.Equal(t, "B2", invs[1].InvID)
}
