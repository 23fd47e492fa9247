package store

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roach88/inventario/internal/kv"
	"github.com/roach88/inventario/internal/model"
	"github.com/roach88/inventario/internal/testutil"
)

var engines = []string{kv.EngineSQLite, kv.EngineBolt}

// forEachEngine runs fn once per kv engine.
func forEachEngine(t *testing.T, fn func(t *testing.T, engine string)) {
	t.Helper()
	for _, e := range engines {
		t.Run(e, func(t *testing.T) { fn(t, e) })
	}
}

// createTestSession opens a session on a fresh database with a
// deterministic clock and a prompter that always says yes.
func createTestSession(t *testing.T) *Session {
	t.Helper()
	return createTestSessionWith(t, kv.EngineSQLite)
}

func createTestSessionWith(t *testing.T, engine string) *Session {
	t.Helper()
	prompter := testutil.NewScriptedPrompter()
	prompter.Default = true
	s, err := Open(context.Background(), Options{
		Path:      filepath.Join(t.TempDir(), "test.db"),
		Engine:    engine,
		IDs:       testutil.NewDeterministicClock(),
		Prompter:  prompter,
		Logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
		SessionID: "test-session",
	})
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

// seedInventory saves metadata and one row per diameter, returning the
// stored rows in order.
func seedInventory(t *testing.T, s *Session, invID string, diameters ...float64) []model.Row {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, s.NewInventory(ctx, invID))
	_, err := s.SaveMetadata(ctx, model.Inventory{InvID: invID, Date: "2024-05-01"})
	require.NoError(t, err)
	for _, d := range diameters {
		_, err := s.AddRow(testutil.RowWithD(d))
		require.NoError(t, err)
	}
	res, err := s.Save(ctx)
	require.NoError(t, err)
	require.Empty(t, res.Failed)
	return s.Rows()
}

// putTestImage stores a small PNG attached to row.
func putTestImage(t *testing.T, s *Session, row model.Row) model.Image {
	t.Helper()
	id := s.ids.Next()
	src := model.DataURL("image/png", testutil.PNG(2, 2))
	img, err := s.PutImage(context.Background(), model.Image{
		ID:        id,
		Src:       src,
		Extension: model.Text("png"),
		Size:      model.EstimateSize(src),
		RowID:     row.ID,
		InvID:     row.InvID,
	})
	require.NoError(t, err)
	return img
}

func countRecords(t *testing.T, s *Session, store string) int {
	t.Helper()
	var n int
	err := s.DB().View(context.Background(), []string{store}, func(tx *kv.Txn) error {
		var err error
		n, err = tx.Count(store)
		return err
	})
	require.NoError(t, err)
	return n
}

func diameters(rows []model.Row) []float64 {
	out := make([]float64, 0, len(rows))
	for _, r := range rows {
		if r.D == nil {
			out = append(out, 0)
			continue
		}
		out = append(out, *r.D)
	}
	return out
}

func rowNumbers(rows []model.Row) []int {
	out := make([]int, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.RowNumber)
	}
	return out
}
