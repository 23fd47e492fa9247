package kv

import "errors"

// Sentinel errors returned by the adapter. Callers match them with errors.Is;
// most are returned wrapped with the store name or key for context.
var (
	// ErrStoreUnavailable wraps any failure to open or upgrade the database.
	ErrStoreUnavailable = errors.New("store unavailable")

	// ErrTransactionAborted wraps any error that rolled back a transaction.
	ErrTransactionAborted = errors.New("transaction aborted")

	// ErrDuplicateKey is returned by Add when the primary key already exists.
	ErrDuplicateKey = errors.New("duplicate key")

	// ErrNotFound is returned by Get and GetByIndex when no record matches.
	ErrNotFound = errors.New("not found")

	// ErrVersion is returned when the database was opened with a version
	// lower than the one already stored.
	ErrVersion = errors.New("version error")

	// ErrUnknownStore is returned for object store names missing from the schema.
	ErrUnknownStore = errors.New("unknown object store")

	// ErrUnknownIndex is returned for index names missing from the store schema.
	ErrUnknownIndex = errors.New("unknown index")

	// ErrNotInScope is returned when a transaction touches a store it was not opened on.
	ErrNotInScope = errors.New("object store not in transaction scope")

	// ErrReadOnly is returned for writes inside a ReadOnly transaction.
	ErrReadOnly = errors.New("transaction is read-only")

	// ErrMissingKey is returned when a document lacks its primary key field.
	ErrMissingKey = errors.New("document has no primary key")

	// ErrInvalidKey is returned for values that cannot be encoded as keys.
	ErrInvalidKey = errors.New("invalid key")

	// ErrInvalidDocument is returned for values that are not JSON objects.
	ErrInvalidDocument = errors.New("invalid document")

	// ErrSchemaConflict is returned when a persisted store or index exists with
	// a different key path than the requested schema.
	ErrSchemaConflict = errors.New("schema conflict")
)
