package export

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/roach88/inventario/internal/model"
)

// Encode serializes records as comma-separated lines. The header row is
// taken from the first record's column names; all records are assumed to
// share that shape. Null fields become empty. Lines are joined with "\n"
// and the output has no trailing newline. An empty slice encodes to "".
func Encode[R model.Record](records []R) (string, error) {
	if len(records) == 0 {
		return "", nil
	}

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	header := records[0].Fields()
	names := make([]string, len(header))
	for i, f := range header {
		names[i] = f.Name
	}
	if err := w.Write(names); err != nil {
		return "", fmt.Errorf("encode header: %w", err)
	}

	for i, rec := range records {
		fields := rec.Fields()
		values := make([]string, len(fields))
		for j, f := range fields {
			if !f.Null {
				values[j] = f.Value
			}
		}
		if err := w.Write(values); err != nil {
			return "", fmt.Errorf("encode record %d: %w", i, err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return "", fmt.Errorf("encode: %w", err)
	}
	return strings.TrimSuffix(buf.String(), "\n"), nil
}

// setter is a record that can assign a column from its text form.
type setter[T any] interface {
	*T
	Set(name, value string) error
}

// ParseRows reads rows back from Encode output.
func ParseRows(data string) ([]model.Row, error) {
	return parse[model.Row](data)
}

// ParseInventories reads inventory metadata back from Encode output.
func ParseInventories(data string) ([]model.Inventory, error) {
	return parse[model.Inventory](data)
}

func parse[T any, P setter[T]](data string) ([]T, error) {
	out := []T{}
	if data == "" {
		return out, nil
	}

	r := csv.NewReader(strings.NewReader(data))
	header, err := r.Read()
	if err != nil {
		return nil, fmt.Errorf("parse header: %w", err)
	}

	for line := 2; ; line++ {
		values, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("parse line %d: %w", line, err)
		}
		var rec T
		for i, name := range header {
			if err := P(&rec).Set(name, values[i]); err != nil {
				return nil, fmt.Errorf("parse line %d: %w", line, err)
			}
		}
		out = append(out, rec)
	}
	return out, nil
}
