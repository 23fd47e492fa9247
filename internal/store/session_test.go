package store

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/inventario/internal/model"
	"github.com/roach88/inventario/internal/testutil"
)

func TestSaveMetadata_Declined(t *testing.T) {
	s := createTestSession(t)
	ctx := context.Background()
	s.prompt = testutil.NewScriptedPrompter(false)

	_, err := s.SaveMetadata(ctx, model.Inventory{InvID: "A1"})
	assert.ErrorIs(t, err, ErrNotConfirmed)

	_, err = s.GetInventory(ctx, "A1")
	assert.ErrorIs(t, err, ErrInventoryNotFound)
	_, ok := s.Current()
	assert.False(t, ok)
}

func TestSaveMetadata_LocksInventoryID(t *testing.T) {
	s := createTestSession(t)
	ctx := context.Background()

	saved, err := s.SaveMetadata(ctx, model.Inventory{InvID: "a1", Comments: "first"})
	require.NoError(t, err)
	assert.Equal(t, "A1", saved.InvID)

	_, err = s.SaveMetadata(ctx, model.Inventory{InvID: "B2"})
	assert.ErrorIs(t, err, ErrImmutableID)

	// Same id, new values.
	_, err = s.SaveMetadata(ctx, model.Inventory{InvID: "A1", Comments: "second"})
	require.NoError(t, err)
	got, err := s.GetInventory(ctx, "A1")
	require.NoError(t, err)
	assert.Equal(t, "second", got.Comments)
}

func TestSaveMetadata_InvalidNeverPrompts(t *testing.T) {
	s := createTestSession(t)
	p := testutil.NewScriptedPrompter()
	s.prompt = p

	_, err := s.SaveMetadata(context.Background(), model.Inventory{InvID: "A1", Date: "yesterday"})
	var ve *model.ValidationError
	assert.ErrorAs(t, err, &ve)
	assert.Empty(t, p.Questions())
}

func TestSaveMetadata_RowsAddedBeforeFollow(t *testing.T) {
	s := createTestSession(t)
	ctx := context.Background()

	require.NoError(t, s.NewInventory(ctx, "draft"))
	_, err := s.AddRow(testutil.RowWithD(5))
	require.NoError(t, err)

	_, err = s.SaveMetadata(ctx, model.Inventory{InvID: "P1"})
	require.NoError(t, err)
	assert.Equal(t, "P1", s.Rows()[0].InvID)
}

func TestAddRow_RequiresInventory(t *testing.T) {
	s := createTestSession(t)
	_, err := s.AddRow(model.Row{})
	assert.ErrorIs(t, err, ErrNoInventory)
	assert.ErrorIs(t, s.UpdateRow(1, func(*model.Row) {}), ErrNoInventory)
}

func TestAddRow_AssignsPositionAndID(t *testing.T) {
	s := createTestSession(t)
	require.NoError(t, s.NewInventory(context.Background(), "A1"))

	r1, err := s.AddRow(model.Row{ID: 999, RowNumber: 42, InvID: "ignored"})
	require.NoError(t, err)
	r2, err := s.AddRow(model.Row{})
	require.NoError(t, err)

	assert.Equal(t, testutil.BaseID, r1.ID)
	assert.Equal(t, 1, r1.RowNumber)
	assert.Equal(t, "A1", r1.InvID)
	assert.Equal(t, 2, r2.RowNumber)
	assert.Greater(t, r2.ID, r1.ID)
	assert.True(t, s.Dirty())
}

func TestUpdateRow_KeepsIdentity(t *testing.T) {
	s := createTestSession(t)
	rows := seedInventory(t, s, "A1", 12)

	require.NoError(t, s.UpdateRow(1, func(r *model.Row) {
		r.ID = 1
		r.RowNumber = 9
		r.H = model.Float(21.5)
	}))
	live := s.Rows()[0]
	assert.Equal(t, rows[0].ID, live.ID)
	assert.Equal(t, 1, live.RowNumber)
	assert.Equal(t, 21.5, *live.H)
	assert.True(t, s.Dirty())

	assert.ErrorIs(t, s.UpdateRow(7, func(*model.Row) {}), ErrRowNotFound)
}

func TestSave_ClearsDirty(t *testing.T) {
	s := createTestSession(t)
	seedInventory(t, s, "A1", 12)
	assert.False(t, s.Dirty())

	_, err := s.AddRow(testutil.RowWithD(3))
	require.NoError(t, err)
	assert.True(t, s.Dirty())

	res, err := s.Save(context.Background())
	require.NoError(t, err)
	assert.Len(t, res.Inserted, 1)
	assert.Len(t, res.Updated, 1)
	assert.False(t, s.Dirty())
}

func TestLoadInventory(t *testing.T) {
	s := createTestSession(t)
	ctx := context.Background()
	seedInventory(t, s, "A1", 12, 9)
	seedInventory(t, s, "B2", 30)

	inv, err := s.LoadInventory(ctx, "a1")
	require.NoError(t, err)
	assert.Equal(t, "A1", inv.InvID)
	assert.Equal(t, []float64{12, 9}, diameters(s.Rows()))
	assert.False(t, s.Dirty())

	_, err = s.LoadInventory(ctx, "missing")
	assert.ErrorIs(t, err, ErrInventoryNotFound)
}

func TestLoadInventory_ConfirmsWhenDirty(t *testing.T) {
	s := createTestSession(t)
	ctx := context.Background()
	seedInventory(t, s, "A1", 12)
	_, err := s.AddRow(testutil.RowWithD(1))
	require.NoError(t, err)

	p := testutil.NewScriptedPrompter(false, true)
	s.prompt = p

	_, err = s.LoadInventory(ctx, "A1")
	assert.ErrorIs(t, err, ErrNotConfirmed)
	assert.Len(t, s.Rows(), 2, "unsaved row kept")

	_, err = s.LoadInventory(ctx, "A1")
	require.NoError(t, err)
	assert.Len(t, s.Rows(), 1, "unsaved row discarded")
	assert.Len(t, p.Questions(), 2)
}

func TestSelectRow_Toggles(t *testing.T) {
	s := createTestSession(t)
	seedInventory(t, s, "A1", 1, 2, 3)

	require.NoError(t, s.SelectRow(1))
	require.NoError(t, s.SelectRow(3))
	assert.Equal(t, []int{1, 3}, s.Selected())

	require.NoError(t, s.SelectRow(1))
	assert.Equal(t, []int{3}, s.Selected())

	s.ClearSelection()
	assert.Equal(t, []int{}, s.Selected())

	assert.ErrorIs(t, s.SelectRow(4), ErrRowNotFound)
}

func TestRemoveSelectedRows_Declined(t *testing.T) {
	s := createTestSession(t)
	ctx := context.Background()
	rows := seedInventory(t, s, "A1", 12, 9)
	putTestImage(t, s, rows[0])
	require.NoError(t, s.SelectRow(1))

	s.prompt = testutil.NewScriptedPrompter(false)
	assert.ErrorIs(t, s.RemoveSelectedRows(ctx), ErrNotConfirmed)

	assert.Equal(t, 2, countRecords(t, s, StoreRows))
	assert.Equal(t, 1, countRecords(t, s, StoreImages))
	assert.Len(t, s.Rows(), 2)
}

func TestRemoveSelectedRows_NothingSelected(t *testing.T) {
	s := createTestSession(t)
	seedInventory(t, s, "A1", 12)
	p := testutil.NewScriptedPrompter()
	s.prompt = p

	assert.ErrorIs(t, s.RemoveSelectedRows(context.Background()), ErrSelection)
	assert.Empty(t, p.Questions(), "no prompt without a selection")
}

func TestRemoveSelectedRows_ExampleScenario(t *testing.T) {
	s := createTestSession(t)
	ctx := context.Background()
	rows := seedInventory(t, s, "A1", 12, 9)
	require.NoError(t, s.SelectRow(1))

	require.NoError(t, s.RemoveSelectedRows(ctx))

	live := s.Rows()
	require.Len(t, live, 1)
	assert.Equal(t, rows[1].ID, live[0].ID)
	assert.Equal(t, 1, live[0].RowNumber)
	assert.Equal(t, 9.0, *live[0].D)
	assert.Empty(t, s.Selected())
}

func TestRemoveSelectedRows_SeveralAndUnsaved(t *testing.T) {
	s := createTestSession(t)
	ctx := context.Background()
	seedInventory(t, s, "A1", 1, 2, 3, 4)
	_, err := s.AddRow(testutil.RowWithD(5)) // unsaved row 5
	require.NoError(t, err)

	require.NoError(t, s.SelectRow(2))
	require.NoError(t, s.SelectRow(4))
	require.NoError(t, s.SelectRow(5))
	require.NoError(t, s.RemoveSelectedRows(ctx))

	assert.Equal(t, []int{1, 2}, rowNumbers(s.Rows()))
	assert.Equal(t, []float64{1, 3}, diameters(s.Rows()))

	stored, err := s.RowsByInventory(ctx, "A1")
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2}, rowNumbers(stored))
	assert.Equal(t, []float64{1, 3}, diameters(stored))
}

func TestAttachImage(t *testing.T) {
	s := createTestSession(t)
	ctx := context.Background()
	rows := seedInventory(t, s, "A1", 12, 9)
	pic := testutil.PNG(8, 8)

	_, err := s.AttachImage(ctx, "photo.png", pic, false)
	assert.ErrorIs(t, err, ErrSelection, "none selected")

	require.NoError(t, s.SelectRow(1))
	require.NoError(t, s.SelectRow(2))
	_, err = s.AttachImage(ctx, "photo.png", pic, false)
	assert.ErrorIs(t, err, ErrSelection, "two selected")
	require.NoError(t, s.SelectRow(1))

	_, err = s.AttachImage(ctx, "photo.gif", pic, false)
	assert.ErrorIs(t, err, model.ErrUnsupportedImage)

	img, err := s.AttachImage(ctx, "IMG_0001.PNG", pic, false)
	require.NoError(t, err)
	assert.Equal(t, rows[1].ID, img.RowID)
	assert.Equal(t, "A1", img.InvID)
	assert.Equal(t, "png", *img.Extension)
	assert.True(t, strings.HasPrefix(img.Src, "data:image/png;base64,"))
	assert.Equal(t, model.EstimateSize(img.Src), img.Size)
	assert.Equal(t, model.CaptureDate(img.ID), img.CaptureDate)

	_, data, err := model.ParseDataURL(img.Src)
	require.NoError(t, err)
	assert.Equal(t, pic, data)

	images, err := s.ImagesByRow(ctx, rows[1].ID)
	require.NoError(t, err)
	assert.Len(t, images, 1)
}

func TestAttachImage_Compress(t *testing.T) {
	s := createTestSession(t)
	seedInventory(t, s, "A1", 12)
	require.NoError(t, s.SelectRow(1))

	img, err := s.AttachImage(context.Background(), "field.jpg", testutil.PNG(8, 8), true)
	require.NoError(t, err)
	assert.Equal(t, "jpeg", *img.Extension)
	assert.True(t, strings.HasPrefix(img.Src, "data:image/jpeg;base64,"))
}

func TestAttachImage_NeedsSavedMetadataAndRow(t *testing.T) {
	s := createTestSession(t)
	ctx := context.Background()

	require.NoError(t, s.NewInventory(ctx, "A1"))
	_, err := s.AddRow(testutil.RowWithD(12))
	require.NoError(t, err)
	require.NoError(t, s.SelectRow(1))

	_, err = s.AttachImage(ctx, "p.png", testutil.PNG(2, 2), false)
	assert.ErrorIs(t, err, ErrMetadataNotSaved)

	_, err = s.SaveMetadata(ctx, model.Inventory{InvID: "A1"})
	require.NoError(t, err)
	_, err = s.AttachImage(ctx, "p.png", testutil.PNG(2, 2), false)
	assert.ErrorIs(t, err, ErrRowNotFound, "row not saved yet")
	assert.Zero(t, countRecords(t, s, StoreImages))
}

func TestRemoveInventory_Confirms(t *testing.T) {
	s := createTestSession(t)
	ctx := context.Background()
	seedInventory(t, s, "A1", 12)

	p := testutil.NewScriptedPrompter(false, true)
	s.prompt = p

	assert.ErrorIs(t, s.RemoveInventory(ctx, "A1"), ErrNotConfirmed)
	_, err := s.GetInventory(ctx, "A1")
	require.NoError(t, err)

	require.NoError(t, s.RemoveInventory(ctx, "A1"))
	_, err = s.GetInventory(ctx, "A1")
	assert.ErrorIs(t, err, ErrInventoryNotFound)
	assert.Contains(t, p.Questions()[0], "A1")
}
