package model

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/errors"
)

//go:embed schema.cue
var schemaCUE string

// ValidationError reports a record that does not satisfy its definition.
type ValidationError struct {
	Record  string `json:"record"`
	Path    string `json:"path,omitempty"`
	Message string `json:"message"`
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("invalid %s: %s: %s", e.Record, e.Path, e.Message)
	}
	return fmt.Sprintf("invalid %s: %s", e.Record, e.Message)
}

// A cue.Context is not safe for concurrent use.
var (
	schemaMu   sync.Mutex
	schemaCtx  *cue.Context
	schemaVal  cue.Value
	schemaErr  error
	schemaOnce sync.Once
)

func loadSchema() error {
	schemaOnce.Do(func() {
		schemaCtx = cuecontext.New()
		schemaVal = schemaCtx.CompileString(schemaCUE, cue.Filename("schema.cue"))
		if err := schemaVal.Err(); err != nil {
			schemaErr = fmt.Errorf("compile record schema: %w", err)
		}
	})
	return schemaErr
}

// Validate checks an Inventory, Row or Image against its CUE definition.
// It returns a *ValidationError describing the first violation.
func Validate(rec Record) error {
	var def string
	switch rec.(type) {
	case Inventory, *Inventory:
		def = "#Inventory"
	case Row, *Row:
		def = "#Row"
	case Image, *Image:
		def = "#Image"
	default:
		return fmt.Errorf("validate: unsupported record type %T", rec)
	}
	if err := loadSchema(); err != nil {
		return err
	}

	// Nil pointers must reach CUE as null, which Encode does not produce.
	raw, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("validate: marshal %T: %w", rec, err)
	}

	schemaMu.Lock()
	defer schemaMu.Unlock()

	v := schemaCtx.CompileBytes(raw, cue.Filename(strings.TrimPrefix(def, "#")+".json"))
	if err := v.Err(); err != nil {
		return fmt.Errorf("validate: compile %T: %w", rec, err)
	}
	unified := schemaVal.LookupPath(cue.ParsePath(def)).Unify(v)
	if err := unified.Validate(cue.Concrete(true)); err != nil {
		return toValidationError(strings.TrimPrefix(def, "#"), err)
	}
	return nil
}

// toValidationError keeps the first CUE error with its field path.
func toValidationError(record string, err error) *ValidationError {
	ve := &ValidationError{Record: record, Message: err.Error()}
	errs := errors.Errors(err)
	if len(errs) == 0 {
		return ve
	}
	first := errs[0]
	path := first.Path()
	if len(path) > 0 && strings.HasPrefix(path[0], "#") {
		path = path[1:]
	}
	ve.Path = strings.Join(path, ".")
	format, args := first.Msg()
	ve.Message = fmt.Sprintf(format, args...)
	return ve
}
