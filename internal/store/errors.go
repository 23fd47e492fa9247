package store

import (
	"errors"
	"fmt"
)

var (
	// ErrNotConfirmed is returned when the user declines a confirmation
	// prompt. Nothing has been changed.
	ErrNotConfirmed = errors.New("not confirmed")

	// ErrNoInventory is returned by row operations before an inventory is
	// loaded or saved in the session.
	ErrNoInventory = errors.New("no inventory loaded")

	// ErrInventoryNotFound is returned when no metadata exists for an inv_id.
	ErrInventoryNotFound = errors.New("inventory not found")

	// ErrRowNotFound is returned for unknown row ids or row numbers.
	ErrRowNotFound = errors.New("row not found")

	// ErrImmutableID is returned when saving metadata under a different
	// inv_id than the one already saved in the session.
	ErrImmutableID = errors.New("inventory id cannot change once saved")

	// ErrSelection is returned when an operation needs a different number
	// of selected rows.
	ErrSelection = errors.New("invalid row selection")

	// ErrMetadataNotSaved is returned when an image is attached before the
	// owning inventory's metadata was saved.
	ErrMetadataNotSaved = errors.New("inventory metadata not saved")
)

// Cascade steps, in execution order.
const (
	StepFetchImages    = "FetchImages"
	StepDeleteImages   = "DeleteImages"
	StepDeleteRow      = "DeleteRow"
	StepRenumber       = "Renumber"
	StepDeleteMetadata = "DeleteMetadata"
	StepFetchRows      = "FetchRows"
	StepDeleteEachRow  = "DeleteEachRow"
)

// CascadeError reports the step at which a cascading delete stopped.
// Steps before Step have committed; later steps did not run.
type CascadeError struct {
	Op   string // "DeleteRow" or "DeleteInventory"
	Step string
	Key  string
	Err  error
}

// Error implements the error interface.
func (e *CascadeError) Error() string {
	return fmt.Sprintf("%s %s: step %s: %v", e.Op, e.Key, e.Step, e.Err)
}

// Unwrap returns the underlying error.
func (e *CascadeError) Unwrap() error {
	return e.Err
}

// RowError reports one candidate row that could not be saved.
type RowError struct {
	RowNumber int
	ID        int64
	Err       error
}

// Error implements the error interface.
func (e *RowError) Error() string {
	return fmt.Sprintf("row %d (id %d): %v", e.RowNumber, e.ID, e.Err)
}

// Unwrap returns the underlying error.
func (e *RowError) Unwrap() error {
	return e.Err
}
