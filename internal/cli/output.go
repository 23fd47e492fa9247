package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/roach88/inventario/internal/kv"
	"github.com/roach88/inventario/internal/model"
	"github.com/roach88/inventario/internal/store"
)

// Exit codes for CLI commands.
const (
	ExitSuccess      = 0 // Successful execution, including cancelled prompts and empty exports
	ExitFailure      = 1 // Operation failure (validation, missing row, aborted transaction, etc.)
	ExitCommandError = 2 // Command error (bad flags, config, database unavailable, etc.)
)

// ExitError carries the process exit code of a failed command.
type ExitError struct {
	Code    int
	Message string
	Err     error
}

func (e *ExitError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *ExitError) Unwrap() error {
	return e.Err
}

func NewExitError(code int, message string) *ExitError {
	return &ExitError{Code: code, Message: message}
}

func WrapExitError(code int, message string, err error) *ExitError {
	return &ExitError{Code: code, Message: message, Err: err}
}

// GetExitCode returns the exit code for err: ExitSuccess for nil, the code of
// a wrapped ExitError, otherwise ExitFailure.
func GetExitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return ExitFailure
}

// OutputFormatter writes command results as text or as JSON envelopes.
type OutputFormatter struct {
	Format    string
	Writer    io.Writer
	ErrWriter io.Writer // warnings and diagnostics; Writer when nil
	Verbose   bool
}

// CLIResponse is the standard JSON response format for CLI output.
type CLIResponse struct {
	Status  string    `json:"status"`            // "ok", "notice" or "error"
	Data    any       `json:"data,omitempty"`    // success payload
	Message string    `json:"message,omitempty"` // notice text
	Error   *CLIError `json:"error,omitempty"`   // error details
}

// CLIError is the error structure for CLI responses.
type CLIError struct {
	Code    string `json:"code"` // see codeFor
	Message string `json:"message"`
	Details any    `json:"details,omitempty"` // additional context
}

func (f *OutputFormatter) encode(resp CLIResponse) error {
	enc := json.NewEncoder(f.Writer)
	enc.SetEscapeHTML(false)
	return enc.Encode(resp)
}

// Success writes data, using its String method in text mode.
func (f *OutputFormatter) Success(data any) error {
	return f.Result(data, fmt.Sprint(data))
}

// Result outputs data as JSON, or text in text mode.
func (f *OutputFormatter) Result(data any, text string) error {
	if f.Format == "json" {
		return f.encode(CLIResponse{Status: "ok", Data: data})
	}
	fmt.Fprintln(f.Writer, text)
	return nil
}

// Notice reports an outcome that is not a failure, such as a declined
// confirmation.
func (f *OutputFormatter) Notice(message string) error {
	if f.Format == "json" {
		return f.encode(CLIResponse{Status: "notice", Message: message})
	}
	fmt.Fprintln(f.Writer, message)
	return nil
}

// Error writes an error response. Text mode shows details only when verbose.
func (f *OutputFormatter) Error(code, message string, details any) error {
	if f.Format == "json" {
		return f.encode(CLIResponse{
			Status: "error",
			Error: &CLIError{
				Code:    code,
				Message: message,
				Details: details,
			},
		})
	}

	fmt.Fprintf(f.Writer, "Error [%s]: %s\n", code, message)
	if f.Verbose && details != nil {
		fmt.Fprintf(f.Writer, "Details: %v\n", details)
	}
	return nil
}

// VerboseLog writes a diagnostic line when verbose.
func (f *OutputFormatter) VerboseLog(format string, args ...any) {
	if !f.Verbose {
		return
	}
	fmt.Fprintf(f.GetErrWriter(), format+"\n", args...)
}

func (f *OutputFormatter) GetErrWriter() io.Writer {
	if f.ErrWriter != nil {
		return f.ErrWriter
	}
	return f.Writer
}

// Failure writes err as a classified error response.
func (f *OutputFormatter) Failure(err error) error {
	return f.Error(codeFor(err), err.Error(), detailsFor(err))
}

// codeFor classifies an error for JSON responses:
//
//	E001 invalid record       E002 inventory or row not found
//	E003 cascade stopped      E004 editing state (selection, metadata, id)
//	E005 unsupported image    E006 transaction aborted
//	E100 anything else
func codeFor(err error) string {
	var ve *model.ValidationError
	var ce *store.CascadeError
	switch {
	case errors.As(err, &ve):
		return "E001"
	case errors.Is(err, store.ErrInventoryNotFound), errors.Is(err, store.ErrRowNotFound):
		return "E002"
	case errors.As(err, &ce):
		return "E003"
	case errors.Is(err, store.ErrSelection), errors.Is(err, store.ErrImmutableID),
		errors.Is(err, store.ErrMetadataNotSaved), errors.Is(err, store.ErrNoInventory):
		return "E004"
	case errors.Is(err, model.ErrUnsupportedImage):
		return "E005"
	case errors.Is(err, kv.ErrTransactionAborted):
		return "E006"
	}
	return "E100"
}

func detailsFor(err error) any {
	var ve *model.ValidationError
	if errors.As(err, &ve) {
		return ve
	}
	var ce *store.CascadeError
	if errors.As(err, &ce) {
		return map[string]string{"op": ce.Op, "key": ce.Key, "step": ce.Step}
	}
	return nil
}
