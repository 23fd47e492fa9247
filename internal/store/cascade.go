package store

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/roach88/inventario/internal/kv"
	"github.com/roach88/inventario/internal/model"
)

// DeleteRow removes a row after its images, then renumbers the rows that
// followed it in the same inventory.
//
// Steps, each committed before the next starts:
//
//	FetchImages → DeleteImages → DeleteRow → Renumber
//
// The first failing step stops the sequence and is returned as a
// *CascadeError. The session's live rows are updated once DeleteRow has
// committed.
func (s *Session) DeleteRow(ctx context.Context, id int64) error {
	row, err := s.deleteRow(ctx, "DeleteRow", id)
	if err != nil {
		return err
	}
	if err := s.renumberAfter(ctx, row); err != nil {
		return err
	}
	s.logger.Info("row deleted", "id", id, "inv_id", row.InvID, "row_number", row.RowNumber)
	return nil
}

// deleteRow runs FetchImages, DeleteImages and DeleteRow for one row and
// returns the deleted record.
func (s *Session) deleteRow(ctx context.Context, op string, id int64) (model.Row, error) {
	key := strconv.FormatInt(id, 10)
	fail := func(step string, err error) error {
		return &CascadeError{Op: op, Step: step, Key: key, Err: err}
	}
	db, err := s.database()
	if err != nil {
		return model.Row{}, fail(StepFetchImages, err)
	}

	var row model.Row
	var imageIDs []int64
	err = db.View(ctx, []string{StoreRows, StoreImages}, func(tx *kv.Txn) error {
		doc, err := tx.Get(StoreRows, kv.Int(id))
		if errors.Is(err, kv.ErrNotFound) {
			return fmt.Errorf("%w: id %d", ErrRowNotFound, id)
		}
		if err != nil {
			return err
		}
		if row, err = unmarshalDoc[model.Row](doc); err != nil {
			return err
		}
		imageIDs, err = imageIDsBy(tx, IndexRowID, kv.Int(id))
		return err
	})
	if err != nil {
		return model.Row{}, fail(StepFetchImages, err)
	}

	if err := s.deleteImages(ctx, imageIDs); err != nil {
		return model.Row{}, fail(StepDeleteImages, err)
	}

	err = db.Update(ctx, []string{StoreRows}, func(tx *kv.Txn) error {
		return tx.Delete(StoreRows, kv.Int(id))
	})
	if err != nil {
		return model.Row{}, fail(StepDeleteRow, err)
	}
	s.logger.Debug("row removed", "id", id, "images", len(imageIDs))

	s.forgetRow(row)
	return row, nil
}

// renumberAfter decrements row_number of every stored row of the same
// inventory positioned after the deleted one, in one transaction.
func (s *Session) renumberAfter(ctx context.Context, deleted model.Row) error {
	db, err := s.database()
	if err != nil {
		return &CascadeError{Op: "DeleteRow", Step: StepRenumber, Key: strconv.FormatInt(deleted.ID, 10), Err: err}
	}
	shifted := 0
	err = db.Update(ctx, []string{StoreRows}, func(tx *kv.Txn) error {
		rows, err := fetchRows(tx, deleted.InvID)
		if err != nil {
			return err
		}
		for _, r := range rows {
			if r.RowNumber <= deleted.RowNumber {
				continue
			}
			r.RowNumber--
			if err := putRow(tx, r); err != nil {
				return err
			}
			shifted++
		}
		return nil
	})
	if err != nil {
		return &CascadeError{Op: "DeleteRow", Step: StepRenumber, Key: strconv.FormatInt(deleted.ID, 10), Err: err}
	}
	s.logger.Debug("rows renumbered", "inv_id", deleted.InvID, "after", deleted.RowNumber, "shifted", shifted)
	return nil
}

// DeleteInventory removes an inventory after its images and before its rows.
//
// Steps, each committed before the next starts:
//
//	FetchImages → DeleteImages → DeleteMetadata → FetchRows → DeleteEachRow
//
// Each row deletion cascades to that row's images, which are already gone
// by then. Rows are not renumbered. Deleting an inventory that does not
// exist succeeds without changes. The session is reset if it was working
// on this inventory.
func (s *Session) DeleteInventory(ctx context.Context, invID string) error {
	invID = model.NormalizeInventoryID(invID)
	const op = "DeleteInventory"
	fail := func(step string, err error) error {
		return &CascadeError{Op: op, Step: step, Key: invID, Err: err}
	}
	db, err := s.database()
	if err != nil {
		return fail(StepFetchImages, err)
	}

	var imageIDs []int64
	err = db.View(ctx, []string{StoreImages}, func(tx *kv.Txn) error {
		var err error
		imageIDs, err = imageIDsBy(tx, IndexInvID, kv.String(invID))
		return err
	})
	if err != nil {
		return fail(StepFetchImages, err)
	}

	if err := s.deleteImages(ctx, imageIDs); err != nil {
		return fail(StepDeleteImages, err)
	}

	err = db.Update(ctx, []string{StoreMetadata}, func(tx *kv.Txn) error {
		return tx.Delete(StoreMetadata, kv.String(invID))
	})
	if err != nil {
		return fail(StepDeleteMetadata, err)
	}

	var rows []model.Row
	err = db.View(ctx, []string{StoreRows}, func(tx *kv.Txn) error {
		var err error
		rows, err = fetchRows(tx, invID)
		return err
	})
	if err != nil {
		return fail(StepFetchRows, err)
	}

	for _, r := range rows {
		if _, err := s.deleteRow(ctx, op, r.ID); err != nil {
			return fail(StepDeleteEachRow, err)
		}
	}

	if s.invID == invID {
		s.reset()
	}
	s.logger.Info("inventory deleted", "inv_id", invID, "rows", len(rows), "images", len(imageIDs))
	return nil
}

// deleteImages removes images by id in a single transaction.
func (s *Session) deleteImages(ctx context.Context, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}
	db, err := s.database()
	if err != nil {
		return err
	}
	return db.Update(ctx, []string{StoreImages}, func(tx *kv.Txn) error {
		for _, id := range ids {
			if err := tx.Delete(StoreImages, kv.Int(id)); err != nil {
				return err
			}
		}
		return nil
	})
}

func imageIDsBy(tx *kv.Txn, index string, key kv.Key) ([]int64, error) {
	docs, err := tx.GetAllByIndex(StoreImages, index, key)
	if err != nil {
		return nil, err
	}
	images, err := unmarshalDocs[model.Image](docs)
	if err != nil {
		return nil, err
	}
	ids := make([]int64, 0, len(images))
	for _, img := range images {
		ids = append(ids, img.ID)
	}
	return ids, nil
}
