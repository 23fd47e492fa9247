package store

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/roach88/inventario/internal/kv"
	"github.com/roach88/inventario/internal/model"
)

// Database name and schema version.
// Version history:
// 1 - inv_metadata, rows (inv_id, row_number), images (inv_id, row_id)
// 2 - rows.natural_key compound index over (inv_id, row_number)
const (
	DBName        = "inventario"
	SchemaVersion = 2
)

// Object store names.
const (
	StoreMetadata = "inv_metadata"
	StoreRows     = "rows"
	StoreImages   = "images"
)

// Secondary index names.
const (
	IndexInvID      = "inv_id"
	IndexRowNumber  = "row_number"
	IndexNaturalKey = "natural_key"
	IndexRowID      = "row_id"
)

// Schema returns the persisted object stores and indexes.
func Schema() kv.Schema {
	return kv.Schema{Stores: []kv.StoreSchema{
		{Name: StoreMetadata, KeyPath: "inv_id"},
		{Name: StoreRows, KeyPath: "id", Indexes: []kv.IndexSchema{
			{Name: IndexInvID, KeyPath: []string{"inv_id"}},
			{Name: IndexRowNumber, KeyPath: []string{"row_number"}},
			{Name: IndexNaturalKey, KeyPath: []string{"inv_id", "row_number"}},
		}},
		{Name: StoreImages, KeyPath: "id", Indexes: []kv.IndexSchema{
			{Name: IndexInvID, KeyPath: []string{"inv_id"}},
			{Name: IndexRowID, KeyPath: []string{"row_id"}},
		}},
	}}
}

// Options configures Open.
type Options struct {
	// Path is the database file.
	Path string

	// Engine selects the kv engine: kv.EngineSQLite (default) or kv.EngineBolt.
	Engine string

	// IDs hands out surrogate ids for rows and images. Defaults to a
	// model.Clock starting after the largest stored row or image id.
	IDs model.IDSource

	// Prompter confirms destructive operations. Defaults to AlwaysConfirm.
	Prompter Prompter

	// Logger defaults to slog.Default().
	Logger *slog.Logger

	// SessionID labels log output. Defaults to a new UUIDv7.
	SessionID string
}

// Session is one user's working context over the database.
// A Session is not safe for concurrent use.
type Session struct {
	db     *kv.DB
	ids    model.IDSource
	prompt Prompter
	logger *slog.Logger
	id     string

	// In-memory state of the inventory being edited.
	current  *model.Inventory // saved metadata; nil until saved or loaded
	invID    string           // inventory the live rows belong to
	rows     []model.Row      // ordered by RowNumber
	selected map[int64]bool   // selected row ids
	dirty    bool             // live rows differ from the store
}

// Open opens the database, creating or upgrading its object stores, and
// returns a session over it. Failures wrap kv.ErrStoreUnavailable.
func Open(ctx context.Context, opts Options) (*Session, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	id := opts.SessionID
	if id == "" {
		id = uuid.Must(uuid.NewV7()).String()
	}
	logger = logger.With("session", id)

	db, err := kv.Open(ctx, kv.Options{
		Path:    opts.Path,
		Engine:  opts.Engine,
		Name:    DBName,
		Version: SchemaVersion,
		Schema:  Schema(),
		Logger:  logger,
	})
	if err != nil {
		return nil, fmt.Errorf("open session: %w", err)
	}

	s := &Session{
		db:       db,
		ids:      opts.IDs,
		prompt:   opts.Prompter,
		logger:   logger,
		id:       id,
		selected: make(map[int64]bool),
	}
	if s.ids == nil {
		last, err := maxStoredID(ctx, db)
		if err != nil {
			db.Close()
			return nil, fmt.Errorf("open session: %w: %w", kv.ErrStoreUnavailable, err)
		}
		s.ids = model.NewClockAt(last)
	}
	if s.prompt == nil {
		s.prompt = AlwaysConfirm{}
	}
	logger.Debug("session opened", "path", opts.Path, "engine", opts.Engine)
	return s, nil
}

// maxStoredID returns the largest row or image id in db, or 0.
func maxStoredID(ctx context.Context, db *kv.DB) (int64, error) {
	var last int64
	err := db.View(ctx, []string{StoreRows, StoreImages}, func(tx *kv.Txn) error {
		for _, store := range []string{StoreRows, StoreImages} {
			err := tx.ForEach(store, func(key kv.Key, _ []byte) error {
				if id, ok := key.Int64(); ok && id > last {
					last = id
				}
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	return last, err
}

// Close closes the database handle.
// Should be called when the session is no longer needed.
func (s *Session) Close() error {
	if s.db == nil {
		return nil
	}
	s.logger.Debug("session closed")
	err := s.db.Close()
	s.db = nil
	return err
}

// ID returns the session id used in logs.
func (s *Session) ID() string {
	return s.id
}

// DB returns the underlying kv database for direct transactions.
// Use with caution - prefer using Session methods when available.
func (s *Session) DB() *kv.DB {
	return s.db
}

// Logger returns the session logger.
func (s *Session) Logger() *slog.Logger {
	return s.logger
}

func (s *Session) database() (*kv.DB, error) {
	if s.db == nil {
		return nil, fmt.Errorf("session closed: %w", kv.ErrStoreUnavailable)
	}
	return s.db, nil
}
