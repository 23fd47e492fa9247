package store

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/roach88/inventario/internal/model"
)

// Prompter asks the user to confirm an action.
type Prompter interface {
	Confirm(ctx context.Context, question string) (bool, error)
}

// AlwaysConfirm answers yes to every question.
type AlwaysConfirm struct{}

// Confirm implements Prompter.
func (AlwaysConfirm) Confirm(context.Context, string) (bool, error) {
	return true, nil
}

// PromptFunc adapts a function to Prompter.
type PromptFunc func(ctx context.Context, question string) (bool, error)

// Confirm implements Prompter.
func (f PromptFunc) Confirm(ctx context.Context, question string) (bool, error) {
	return f(ctx, question)
}

func (s *Session) confirm(ctx context.Context, question string) error {
	ok, err := s.prompt.Confirm(ctx, question)
	if err != nil {
		return fmt.Errorf("confirm: %w", err)
	}
	if !ok {
		return ErrNotConfirmed
	}
	return nil
}

// Current returns the saved metadata of the inventory being edited.
func (s *Session) Current() (model.Inventory, bool) {
	if s.current == nil {
		return model.Inventory{}, false
	}
	return *s.current, true
}

// InventoryID returns the inv_id being edited, saved or not. It is empty
// before NewInventory or LoadInventory.
func (s *Session) InventoryID() string {
	return s.invID
}

// Rows returns a copy of the live rows ordered by row_number.
func (s *Session) Rows() []model.Row {
	return slices.Clone(s.rows)
}

// Dirty reports whether live rows have changes not yet saved.
func (s *Session) Dirty() bool {
	return s.dirty
}

// Selected returns the row numbers of the selected rows in ascending order.
func (s *Session) Selected() []int {
	nums := []int{}
	for _, r := range s.rows {
		if s.selected[r.ID] {
			nums = append(nums, r.RowNumber)
		}
	}
	return nums
}

// SaveMetadata saves the current inventory's metadata after confirmation
// and makes it the session's inventory. Once saved, the inv_id is locked:
// saving under another id returns ErrImmutableID.
func (s *Session) SaveMetadata(ctx context.Context, inv model.Inventory) (model.Inventory, error) {
	inv.InvID = model.NormalizeInventoryID(inv.InvID)
	if s.current != nil && s.current.InvID != inv.InvID {
		return model.Inventory{}, fmt.Errorf("%w: %s is loaded, got %s", ErrImmutableID, s.current.InvID, inv.InvID)
	}
	if err := model.Validate(inv); err != nil {
		return model.Inventory{}, err
	}
	if err := s.confirm(ctx, fmt.Sprintf("Save metadata for inventory %s?", inv.InvID)); err != nil {
		return model.Inventory{}, err
	}

	saved, err := s.PutInventory(ctx, inv)
	if err != nil {
		return model.Inventory{}, err
	}
	if s.invID != saved.InvID {
		// Rows added before the first save follow the inventory.
		for i := range s.rows {
			s.rows[i].InvID = saved.InvID
		}
	}
	s.current = &saved
	s.invID = saved.InvID
	return saved, nil
}

// LoadInventory replaces the session state with a stored inventory and its
// rows. Unsaved row changes are discarded only after confirmation.
func (s *Session) LoadInventory(ctx context.Context, invID string) (model.Inventory, error) {
	invID = model.NormalizeInventoryID(invID)
	if s.dirty {
		if err := s.confirm(ctx, fmt.Sprintf("Discard unsaved rows and load inventory %s?", invID)); err != nil {
			return model.Inventory{}, err
		}
	}

	inv, err := s.GetInventory(ctx, invID)
	if err != nil {
		return model.Inventory{}, err
	}
	rows, err := s.RowsByInventory(ctx, invID)
	if err != nil {
		return model.Inventory{}, err
	}

	s.reset()
	s.current = &inv
	s.invID = inv.InvID
	s.rows = rows
	s.logger.Info("inventory loaded", "inv_id", invID, "rows", len(rows))
	return inv, nil
}

// NewInventory starts editing an unsaved inventory. Rows can be added
// before its metadata is saved.
func (s *Session) NewInventory(ctx context.Context, invID string) error {
	invID = model.NormalizeInventoryID(invID)
	if invID == "" {
		return fmt.Errorf("%w: empty inventory id", ErrNoInventory)
	}
	if s.dirty {
		if err := s.confirm(ctx, fmt.Sprintf("Discard unsaved rows and start inventory %s?", invID)); err != nil {
			return err
		}
	}
	s.reset()
	s.invID = invID
	return nil
}

// AddRow appends a blank-or-filled row at the next position of the
// current inventory. The row is persisted by SaveRows.
func (s *Session) AddRow(values model.Row) (model.Row, error) {
	if s.invID == "" {
		return model.Row{}, ErrNoInventory
	}
	values.ID = s.ids.Next()
	values.InvID = s.invID
	values.RowNumber = len(s.rows) + 1
	s.rows = append(s.rows, values)
	s.dirty = true
	return values, nil
}

// UpdateRow edits the live row at position n.
func (s *Session) UpdateRow(n int, edit func(*model.Row)) error {
	i, err := s.rowIndex(n)
	if err != nil {
		return err
	}
	r := s.rows[i]
	edit(&r)
	// Identity and position are owned by the session.
	r.ID, r.InvID, r.RowNumber = s.rows[i].ID, s.rows[i].InvID, s.rows[i].RowNumber
	s.rows[i] = r
	s.dirty = true
	return nil
}

// Save persists every live row through the reconciler. Live rows take the
// ids they were stored under. Dirty stays set if any row failed.
func (s *Session) Save(ctx context.Context) (SaveResult, error) {
	if s.invID == "" {
		return SaveResult{}, ErrNoInventory
	}
	res := s.SaveRows(ctx, s.rows)

	stored := make(map[int]model.Row, len(res.Inserted)+len(res.Updated))
	for _, r := range slices.Concat(res.Inserted, res.Updated) {
		stored[r.RowNumber] = r
	}
	for i, r := range s.rows {
		sr, ok := stored[r.RowNumber]
		if !ok {
			continue
		}
		if s.selected[r.ID] && sr.ID != r.ID {
			delete(s.selected, r.ID)
			s.selected[sr.ID] = true
		}
		s.rows[i] = sr
	}
	s.dirty = len(res.Failed) > 0
	return res, nil
}

// SelectRow toggles the selection of the live row at position n.
func (s *Session) SelectRow(n int) error {
	i, err := s.rowIndex(n)
	if err != nil {
		return err
	}
	id := s.rows[i].ID
	if s.selected[id] {
		delete(s.selected, id)
	} else {
		s.selected[id] = true
	}
	return nil
}

// ClearSelection deselects every row.
func (s *Session) ClearSelection() {
	clear(s.selected)
}

// RemoveSelectedRows deletes the selected rows after confirmation. Stored
// rows go through the DeleteRow cascade; rows never saved are dropped from
// the live list only. Rows are removed from the highest position down.
func (s *Session) RemoveSelectedRows(ctx context.Context) error {
	victims := []model.Row{}
	for _, r := range s.rows {
		if s.selected[r.ID] {
			victims = append(victims, r)
		}
	}
	if len(victims) == 0 {
		return fmt.Errorf("%w: no rows selected", ErrSelection)
	}
	if err := s.confirm(ctx, fmt.Sprintf("Delete %d selected row(s)?", len(victims))); err != nil {
		return err
	}

	slices.SortFunc(victims, func(a, b model.Row) int { return cmp.Compare(b.RowNumber, a.RowNumber) })
	for _, v := range victims {
		err := s.DeleteRow(ctx, v.ID)
		if errors.Is(err, ErrRowNotFound) {
			var ce *CascadeError
			if errors.As(err, &ce) && ce.Step == StepFetchImages {
				s.forgetRow(v)
				s.dirty = true
				continue
			}
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// AttachImage stores a photograph for the single selected row.
//
// The inventory metadata and the row must already be saved. Only jpg, jpeg
// and png files are accepted. With compress set, the picture is halved in
// both dimensions and re-encoded; non-PNG input is stored as jpeg.
func (s *Session) AttachImage(ctx context.Context, filename string, data []byte, compress bool) (model.Image, error) {
	var row *model.Row
	for i := range s.rows {
		if s.selected[s.rows[i].ID] {
			if row != nil {
				return model.Image{}, fmt.Errorf("%w: select exactly one row", ErrSelection)
			}
			row = &s.rows[i]
		}
	}
	if row == nil {
		return model.Image{}, fmt.Errorf("%w: select exactly one row", ErrSelection)
	}
	if s.current == nil {
		return model.Image{}, fmt.Errorf("%w: %s", ErrMetadataNotSaved, s.invID)
	}

	ext := model.ExtensionOf(filename)
	if err := model.CheckExtension(ext); err != nil {
		return model.Image{}, err
	}
	if _, err := s.GetRow(ctx, row.ID); err != nil {
		return model.Image{}, fmt.Errorf("attach image: save rows first: %w", err)
	}

	if compress {
		var err error
		data, ext, err = model.Compress(data, ext)
		if err != nil {
			return model.Image{}, fmt.Errorf("attach image: %w", err)
		}
	}

	id := s.ids.Next()
	src := model.DataURL(model.MimeType(ext), data)
	img := model.Image{
		ID:          id,
		Src:         src,
		Extension:   model.Text(ext),
		Size:        model.EstimateSize(src),
		CaptureDate: model.CaptureDate(id),
		RowID:       row.ID,
		InvID:       s.invID,
	}
	return s.PutImage(ctx, img)
}

// RemoveInventory deletes an inventory and everything it owns after
// confirmation.
func (s *Session) RemoveInventory(ctx context.Context, invID string) error {
	invID = model.NormalizeInventoryID(invID)
	if err := s.confirm(ctx, fmt.Sprintf("Delete inventory %s with all its rows and images?", invID)); err != nil {
		return err
	}
	return s.DeleteInventory(ctx, invID)
}

func (s *Session) rowIndex(n int) (int, error) {
	if s.invID == "" {
		return 0, ErrNoInventory
	}
	for i, r := range s.rows {
		if r.RowNumber == n {
			return i, nil
		}
	}
	return 0, fmt.Errorf("%w: %s #%d", ErrRowNotFound, s.invID, n)
}

// forgetRow drops a deleted row from the live list and shifts the rows
// after it up by one.
func (s *Session) forgetRow(deleted model.Row) {
	if s.invID != deleted.InvID {
		return
	}
	delete(s.selected, deleted.ID)
	kept := s.rows[:0]
	for _, r := range s.rows {
		if r.ID == deleted.ID {
			continue
		}
		if r.RowNumber > deleted.RowNumber {
			r.RowNumber--
		}
		kept = append(kept, r)
	}
	s.rows = kept
}

func (s *Session) reset() {
	s.current = nil
	s.invID = ""
	s.rows = nil
	clear(s.selected)
	s.dirty = false
}
