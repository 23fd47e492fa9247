package store

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/roach88/inventario/internal/kv"
	"github.com/roach88/inventario/internal/model"
)

// GetInventory returns the metadata saved under invID.
// Returns ErrInventoryNotFound if none exists.
func (s *Session) GetInventory(ctx context.Context, invID string) (model.Inventory, error) {
	invID = model.NormalizeInventoryID(invID)
	db, err := s.database()
	if err != nil {
		return model.Inventory{}, err
	}

	var inv model.Inventory
	err = db.View(ctx, []string{StoreMetadata}, func(tx *kv.Txn) error {
		doc, err := tx.Get(StoreMetadata, kv.String(invID))
		if err != nil {
			return err
		}
		inv, err = unmarshalDoc[model.Inventory](doc)
		return err
	})
	if errors.Is(err, kv.ErrNotFound) {
		return model.Inventory{}, fmt.Errorf("%w: %s", ErrInventoryNotFound, invID)
	}
	if err != nil {
		return model.Inventory{}, fmt.Errorf("get inventory %s: %w", invID, err)
	}
	return inv, nil
}

// ListInventories returns every saved inventory ordered by inv_id.
// Returns an empty slice (not nil) if there are none.
func (s *Session) ListInventories(ctx context.Context) ([]model.Inventory, error) {
	db, err := s.database()
	if err != nil {
		return nil, err
	}

	var invs []model.Inventory
	err = db.View(ctx, []string{StoreMetadata}, func(tx *kv.Txn) error {
		docs, err := tx.GetAll(StoreMetadata)
		if err != nil {
			return err
		}
		invs, err = unmarshalDocs[model.Inventory](docs)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("list inventories: %w", err)
	}
	return invs, nil
}

// GetRow returns the row stored under its surrogate id.
func (s *Session) GetRow(ctx context.Context, id int64) (model.Row, error) {
	db, err := s.database()
	if err != nil {
		return model.Row{}, err
	}

	var row model.Row
	err = db.View(ctx, []string{StoreRows}, func(tx *kv.Txn) error {
		doc, err := tx.Get(StoreRows, kv.Int(id))
		if err != nil {
			return err
		}
		row, err = unmarshalDoc[model.Row](doc)
		return err
	})
	if errors.Is(err, kv.ErrNotFound) {
		return model.Row{}, fmt.Errorf("%w: id %d", ErrRowNotFound, id)
	}
	if err != nil {
		return model.Row{}, fmt.Errorf("get row %d: %w", id, err)
	}
	return row, nil
}

// RowByNumber returns the row at a 1-based position of an inventory.
func (s *Session) RowByNumber(ctx context.Context, invID string, n int) (model.Row, error) {
	invID = model.NormalizeInventoryID(invID)
	db, err := s.database()
	if err != nil {
		return model.Row{}, err
	}

	var row model.Row
	err = db.View(ctx, []string{StoreRows}, func(tx *kv.Txn) error {
		doc, err := tx.GetByIndex(StoreRows, IndexNaturalKey, naturalKey(invID, n))
		if err != nil {
			return err
		}
		row, err = unmarshalDoc[model.Row](doc)
		return err
	})
	if errors.Is(err, kv.ErrNotFound) {
		return model.Row{}, fmt.Errorf("%w: %s #%d", ErrRowNotFound, invID, n)
	}
	if err != nil {
		return model.Row{}, fmt.Errorf("get row %s #%d: %w", invID, n, err)
	}
	return row, nil
}

// RowsByInventory returns the rows of an inventory ordered by row_number.
// Returns an empty slice (not nil) if there are none.
func (s *Session) RowsByInventory(ctx context.Context, invID string) ([]model.Row, error) {
	invID = model.NormalizeInventoryID(invID)
	db, err := s.database()
	if err != nil {
		return nil, err
	}

	var rows []model.Row
	err = db.View(ctx, []string{StoreRows}, func(tx *kv.Txn) error {
		var err error
		rows, err = fetchRows(tx, invID)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("rows of %s: %w", invID, err)
	}
	return rows, nil
}

// ImagesByInventory returns the images of an inventory ordered by id.
// Returns an empty slice (not nil) if there are none.
func (s *Session) ImagesByInventory(ctx context.Context, invID string) ([]model.Image, error) {
	invID = model.NormalizeInventoryID(invID)
	images, err := s.images(ctx, IndexInvID, kv.String(invID))
	if err != nil {
		return nil, fmt.Errorf("images of %s: %w", invID, err)
	}
	return images, nil
}

// ImagesByRow returns the images attached to a row ordered by id.
func (s *Session) ImagesByRow(ctx context.Context, rowID int64) ([]model.Image, error) {
	images, err := s.images(ctx, IndexRowID, kv.Int(rowID))
	if err != nil {
		return nil, fmt.Errorf("images of row %d: %w", rowID, err)
	}
	return images, nil
}

func (s *Session) images(ctx context.Context, index string, key kv.Key) ([]model.Image, error) {
	db, err := s.database()
	if err != nil {
		return nil, err
	}
	var images []model.Image
	err = db.View(ctx, []string{StoreImages}, func(tx *kv.Txn) error {
		docs, err := tx.GetAllByIndex(StoreImages, index, key)
		if err != nil {
			return err
		}
		images, err = unmarshalDocs[model.Image](docs)
		return err
	})
	return images, err
}

// fetchRows reads the rows of an inventory inside a transaction,
// ordered by row_number then id.
func fetchRows(tx *kv.Txn, invID string) ([]model.Row, error) {
	docs, err := tx.GetAllByIndex(StoreRows, IndexInvID, kv.String(invID))
	if err != nil {
		return nil, err
	}
	rows, err := unmarshalDocs[model.Row](docs)
	if err != nil {
		return nil, err
	}
	slices.SortStableFunc(rows, func(a, b model.Row) int {
		return cmp.Or(cmp.Compare(a.RowNumber, b.RowNumber), cmp.Compare(a.ID, b.ID))
	})
	return rows, nil
}

func naturalKey(invID string, n int) kv.Key {
	return kv.Compound(kv.String(invID), kv.Int(int64(n)))
}
