package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/roach88/inventario/internal/kv"
	"github.com/roach88/inventario/internal/model"
)

// Outcome says how the reconciler persisted a row.
type Outcome int

const (
	// Inserted means the row was added as a new record.
	Inserted Outcome = iota + 1
	// Updated means an existing record with the same natural key, or the
	// same surrogate id, was overwritten.
	Updated
)

func (o Outcome) String() string {
	switch o {
	case Inserted:
		return "inserted"
	case Updated:
		return "updated"
	}
	return "unknown"
}

// SaveResult reports each candidate of a SaveRows batch.
// Inserted and Updated hold the rows as stored, with their final ids.
type SaveResult struct {
	Inserted []model.Row
	Updated  []model.Row
	Failed   []*RowError
}

// PutInventory upserts inventory metadata by inv_id.
// The id is normalized before it is stored.
func (s *Session) PutInventory(ctx context.Context, inv model.Inventory) (model.Inventory, error) {
	inv.InvID = model.NormalizeInventoryID(inv.InvID)
	if err := model.Validate(inv); err != nil {
		return model.Inventory{}, fmt.Errorf("put inventory: %w", err)
	}
	doc, err := marshalDoc(inv)
	if err != nil {
		return model.Inventory{}, fmt.Errorf("put inventory: %w", err)
	}
	db, err := s.database()
	if err != nil {
		return model.Inventory{}, err
	}

	err = db.Update(ctx, []string{StoreMetadata}, func(tx *kv.Txn) error {
		_, err := tx.Put(StoreMetadata, doc)
		return err
	})
	if err != nil {
		return model.Inventory{}, fmt.Errorf("put inventory %s: %w", inv.InvID, err)
	}
	s.logger.Debug("inventory saved", "inv_id", inv.InvID)
	return inv, nil
}

// PutImage upserts an image by id. The owning inventory's metadata must
// already be saved; otherwise ErrMetadataNotSaved is returned and nothing
// is written.
func (s *Session) PutImage(ctx context.Context, img model.Image) (model.Image, error) {
	img.InvID = model.NormalizeInventoryID(img.InvID)
	if img.CaptureDate == "" {
		img.CaptureDate = model.CaptureDate(img.ID)
	}
	if err := model.Validate(img); err != nil {
		return model.Image{}, fmt.Errorf("put image: %w", err)
	}
	doc, err := marshalDoc(img)
	if err != nil {
		return model.Image{}, fmt.Errorf("put image: %w", err)
	}
	db, err := s.database()
	if err != nil {
		return model.Image{}, err
	}

	// Checking metadata and writing the image share one transaction.
	err = db.Update(ctx, []string{StoreMetadata, StoreImages}, func(tx *kv.Txn) error {
		if _, err := tx.Get(StoreMetadata, kv.String(img.InvID)); err != nil {
			if errors.Is(err, kv.ErrNotFound) {
				return fmt.Errorf("%w: %s", ErrMetadataNotSaved, img.InvID)
			}
			return err
		}
		_, err := tx.Put(StoreImages, doc)
		return err
	})
	if err != nil {
		return model.Image{}, fmt.Errorf("put image %d: %w", img.ID, err)
	}
	s.logger.Debug("image saved", "id", img.ID, "row_id", img.RowID, "inv_id", img.InvID)
	return img, nil
}

// SaveRow reconciles one candidate row with the store in its own
// transaction and returns the row as stored.
//
// The candidate supersedes any record sharing its natural key
// (inv_id, row_number) and takes over that record's surrogate id.
// Without such a record the candidate is added under its own id. If that
// id is already taken by a record of the same inventory, the record is
// the same logical row at its old position and is overwritten in place;
// if it belongs to another inventory the candidate gets a fresh id.
func (s *Session) SaveRow(ctx context.Context, cand model.Row) (model.Row, Outcome, error) {
	cand.InvID = model.NormalizeInventoryID(cand.InvID)
	if err := model.Validate(cand); err != nil {
		return model.Row{}, 0, err
	}
	db, err := s.database()
	if err != nil {
		return model.Row{}, 0, err
	}

	var outcome Outcome
	err = db.Update(ctx, []string{StoreRows}, func(tx *kv.Txn) error {
		var err error
		cand, outcome, err = s.reconcile(tx, cand)
		return err
	})
	if err != nil {
		return model.Row{}, 0, fmt.Errorf("save row %s #%d: %w", cand.InvID, cand.RowNumber, err)
	}
	s.logger.Debug("row saved", "id", cand.ID, "inv_id", cand.InvID, "row_number", cand.RowNumber, "outcome", outcome)
	return cand, outcome, nil
}

func (s *Session) reconcile(tx *kv.Txn, cand model.Row) (model.Row, Outcome, error) {
	docs, err := tx.GetAllByIndex(StoreRows, IndexNaturalKey, naturalKey(cand.InvID, cand.RowNumber))
	if err != nil {
		return cand, 0, fmt.Errorf("lookup natural key: %w", err)
	}
	matches, err := unmarshalDocs[model.Row](docs)
	if err != nil {
		return cand, 0, err
	}

	var existing *model.Row
	for i := range matches {
		if matches[i].InvID == cand.InvID {
			existing = &matches[i]
			break
		}
	}

	if existing == nil {
		return s.addRow(tx, cand)
	}

	cand.ID = existing.ID
	if err := putRow(tx, cand); err != nil {
		return cand, 0, err
	}
	return cand, Updated, nil
}

// maxFreshIDs bounds the ids drawn when a candidate's id belongs to another
// inventory's row.
const maxFreshIDs = 1000

// addRow inserts cand, resolving a surrogate id collision.
func (s *Session) addRow(tx *kv.Txn, cand model.Row) (model.Row, Outcome, error) {
	doc, err := marshalDoc(cand)
	if err != nil {
		return cand, 0, err
	}
	_, err = tx.Add(StoreRows, doc)
	if err == nil {
		return cand, Inserted, nil
	}
	if !errors.Is(err, kv.ErrDuplicateKey) {
		return cand, 0, err
	}

	old, err := tx.Get(StoreRows, kv.Int(cand.ID))
	if err != nil {
		return cand, 0, err
	}
	prev, err := unmarshalDoc[model.Row](old)
	if err != nil {
		return cand, 0, err
	}
	if prev.InvID == cand.InvID {
		if err := putRow(tx, cand); err != nil {
			return cand, 0, err
		}
		return cand, Updated, nil
	}

	s.logger.Debug("surrogate id taken by another inventory", "id", cand.ID, "owner", prev.InvID)
	taken := cand.ID
	for range maxFreshIDs {
		cand.ID = s.ids.Next()
		doc, err = marshalDoc(cand)
		if err != nil {
			return cand, 0, err
		}
		_, err = tx.Add(StoreRows, doc)
		if err == nil {
			return cand, Inserted, nil
		}
		if !errors.Is(err, kv.ErrDuplicateKey) {
			return cand, 0, err
		}
	}
	return cand, 0, fmt.Errorf("no free surrogate id after %d attempts from %d", maxFreshIDs, taken)
}

func putRow(tx *kv.Txn, r model.Row) error {
	doc, err := marshalDoc(r)
	if err != nil {
		return err
	}
	_, err = tx.Put(StoreRows, doc)
	return err
}

// SaveRows reconciles each candidate independently. A failing candidate is
// reported in Failed and does not stop the others.
func (s *Session) SaveRows(ctx context.Context, cands []model.Row) SaveResult {
	res := SaveResult{
		Inserted: []model.Row{},
		Updated:  []model.Row{},
		Failed:   []*RowError{},
	}
	for _, c := range cands {
		row, outcome, err := s.SaveRow(ctx, c)
		if err != nil {
			s.logger.Warn("row not saved", "inv_id", c.InvID, "row_number", c.RowNumber, "error", err)
			res.Failed = append(res.Failed, &RowError{RowNumber: c.RowNumber, ID: c.ID, Err: err})
			continue
		}
		if outcome == Inserted {
			res.Inserted = append(res.Inserted, row)
		} else {
			res.Updated = append(res.Updated, row)
		}
	}
	return res
}
