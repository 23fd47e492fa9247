package store

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/inventario/internal/kv"
)

func TestDeleteRow_ExampleScenario(t *testing.T) {
	forEachEngine(t, func(t *testing.T, engine string) {
		s := createTestSessionWith(t, engine)
		ctx := context.Background()
		rows := seedInventory(t, s, "A1", 12, 9)
		secondID := rows[1].ID

		require.NoError(t, s.DeleteRow(ctx, rows[0].ID))

		stored, err := s.RowsByInventory(ctx, "A1")
		require.NoError(t, err)
		require.Len(t, stored, 1)
		assert.Equal(t, secondID, stored[0].ID, "updated in place")
		assert.Equal(t, 1, stored[0].RowNumber)
		assert.Equal(t, 9.0, *stored[0].D)

		live := s.Rows()
		require.Len(t, live, 1)
		assert.Equal(t, stored[0], live[0])
	})
}

func TestDeleteRow_RemovesOnlyItsImages(t *testing.T) {
	s := createTestSession(t)
	ctx := context.Background()
	rows := seedInventory(t, s, "A1", 12, 9)

	putTestImage(t, s, rows[0])
	putTestImage(t, s, rows[0])
	kept := putTestImage(t, s, rows[1])

	require.NoError(t, s.DeleteRow(ctx, rows[0].ID))

	gone, err := s.ImagesByRow(ctx, rows[0].ID)
	require.NoError(t, err)
	assert.Empty(t, gone)

	left, err := s.ImagesByInventory(ctx, "A1")
	require.NoError(t, err)
	require.Len(t, left, 1)
	assert.Equal(t, kept.ID, left[0].ID)
}

func TestDeleteRow_RenumbersFollowingRows(t *testing.T) {
	s := createTestSession(t)
	ctx := context.Background()
	rows := seedInventory(t, s, "A1", 1, 2, 3, 4, 5)

	// Remove k=2 of n=5.
	require.NoError(t, s.DeleteRow(ctx, rows[1].ID))

	stored, err := s.RowsByInventory(ctx, "A1")
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2, 3, 4}, rowNumbers(stored))
	assert.Equal(t, []float64{1, 3, 4, 5}, diameters(stored))
	assert.Equal(t, []int64{rows[0].ID, rows[2].ID, rows[3].ID, rows[4].ID},
		[]int64{stored[0].ID, stored[1].ID, stored[2].ID, stored[3].ID})

	for n := 1; n <= 4; n++ {
		r, err := s.RowByNumber(ctx, "A1", n)
		require.NoError(t, err, "natural key %d", n)
		assert.Equal(t, n, r.RowNumber)
	}
	_, err = s.RowByNumber(ctx, "A1", 5)
	assert.ErrorIs(t, err, ErrRowNotFound)

	assert.Equal(t, []int{1, 2, 3, 4}, rowNumbers(s.Rows()))
}

func TestDeleteRow_DoesNotRenumberOtherInventories(t *testing.T) {
	s := createTestSession(t)
	ctx := context.Background()
	a := seedInventory(t, s, "A1", 1, 2)
	seedInventory(t, s, "B2", 7, 8)

	require.NoError(t, s.DeleteRow(ctx, a[0].ID))

	b, err := s.RowsByInventory(ctx, "B2")
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2}, rowNumbers(b))
}

func TestDeleteRow_MissingRow(t *testing.T) {
	s := createTestSession(t)
	err := s.DeleteRow(context.Background(), 424242)

	var ce *CascadeError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, "DeleteRow", ce.Op)
	assert.Equal(t, StepFetchImages, ce.Step)
	assert.Equal(t, "424242", ce.Key)
	assert.ErrorIs(t, err, ErrRowNotFound)
}

func TestDeleteRow_HaltsOnFirstFailure(t *testing.T) {
	s := createTestSession(t)
	rows := seedInventory(t, s, "A1", 12)
	putTestImage(t, s, rows[0])

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := s.DeleteRow(ctx, rows[0].ID)

	var ce *CascadeError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, StepFetchImages, ce.Step)
	assert.ErrorIs(t, err, context.Canceled)

	// Nothing after the failed step ran.
	assert.Equal(t, 1, countRecords(t, s, StoreRows))
	assert.Equal(t, 1, countRecords(t, s, StoreImages))
}

func TestDeleteInventory_RemovesEverything(t *testing.T) {
	forEachEngine(t, func(t *testing.T, engine string) {
		s := createTestSessionWith(t, engine)
		ctx := context.Background()
		a := seedInventory(t, s, "A1", 12, 9)
		putTestImage(t, s, a[0])
		putTestImage(t, s, a[1])
		b := seedInventory(t, s, "B2", 30)
		putTestImage(t, s, b[0])

		require.NoError(t, s.DeleteInventory(ctx, "a1"))

		_, err := s.GetInventory(ctx, "A1")
		assert.ErrorIs(t, err, ErrInventoryNotFound)
		rows, err := s.RowsByInventory(ctx, "A1")
		require.NoError(t, err)
		assert.Empty(t, rows)
		images, err := s.ImagesByInventory(ctx, "A1")
		require.NoError(t, err)
		assert.Empty(t, images)

		// B2 keeps everything and stays current.
		rows, err = s.RowsByInventory(ctx, "B2")
		require.NoError(t, err)
		assert.Len(t, rows, 1)
		images, err = s.ImagesByInventory(ctx, "B2")
		require.NoError(t, err)
		assert.Len(t, images, 1)
		cur, ok := s.Current()
		require.True(t, ok)
		assert.Equal(t, "B2", cur.InvID)
	})
}

func TestDeleteInventory_ResetsCurrentSession(t *testing.T) {
	s := createTestSession(t)
	seedInventory(t, s, "A1", 12)

	require.NoError(t, s.DeleteInventory(context.Background(), "A1"))
	_, ok := s.Current()
	assert.False(t, ok)
	assert.Empty(t, s.Rows())
	assert.Zero(t, countRecords(t, s, StoreRows))
}

func TestDeleteInventory_MissingIsNoop(t *testing.T) {
	s := createTestSession(t)
	assert.NoError(t, s.DeleteInventory(context.Background(), "nope"))
}

func TestDeleteInventory_ClosedSession(t *testing.T) {
	s := createTestSession(t)
	require.NoError(t, s.Close())

	err := s.DeleteInventory(context.Background(), "A1")
	var ce *CascadeError
	require.True(t, errors.As(err, &ce))
	assert.Equal(t, "DeleteInventory", ce.Op)
	assert.Equal(t, StepFetchImages, ce.Step)
	assert.ErrorIs(t, err, kv.ErrStoreUnavailable)
}
