package model

import (
	"fmt"
	"strconv"
	"time"
)

// Measurements are the numeric row columns in export order.
var Measurements = []string{"n", "d", "di", "dd", "h", "dmay", "dmen", "rmay", "rmen", "dbh"}

// Field is one named column of a record. Null marks a blank value.
type Field struct {
	Name  string
	Value string
	Null  bool
}

// Record is implemented by every persisted entity. Fields returns the
// columns in a fixed order that matches the JSON document.
type Record interface {
	Fields() []Field
}

// Inventory is the metadata of one field survey, keyed by InvID.
type Inventory struct {
	InvID      string   `json:"inv_id"`
	Date       string   `json:"date"`
	StartPoint *float64 `json:"start_point"`
	EndPoint   *float64 `json:"end_point"`
	Comments   string   `json:"comments"`
}

// Fields implements Record.
func (inv Inventory) Fields() []Field {
	return []Field{
		text("inv_id", inv.InvID),
		text("date", inv.Date),
		number("start_point", inv.StartPoint),
		number("end_point", inv.EndPoint),
		text("comments", inv.Comments),
	}
}

// Set assigns a column parsed from its text form. Empty numbers become nil.
func (inv *Inventory) Set(name, value string) error {
	switch name {
	case "inv_id":
		inv.InvID = value
	case "date":
		inv.Date = value
	case "start_point":
		return parseNumber(name, value, &inv.StartPoint)
	case "end_point":
		return parseNumber(name, value, &inv.EndPoint)
	case "comments":
		inv.Comments = value
	default:
		return fmt.Errorf("inventory: unknown column %q", name)
	}
	return nil
}

// Row is one measured tree. ID is the surrogate key; (InvID, RowNumber)
// is the natural key.
type Row struct {
	ID        int64    `json:"id"`
	RowNumber int      `json:"row_number"`
	InvID     string   `json:"inv_id"`
	Especie   *string  `json:"especie"`
	N         *float64 `json:"n"`
	D         *float64 `json:"d"`
	DI        *float64 `json:"di"`
	DD        *float64 `json:"dd"`
	H         *float64 `json:"h"`
	DMay      *float64 `json:"dmay"`
	DMen      *float64 `json:"dmen"`
	RMay      *float64 `json:"rmay"`
	RMen      *float64 `json:"rmen"`
	DBH       *float64 `json:"dbh"`
}

// Measurement returns a pointer to the named measurement field, or nil for
// an unknown name.
func (r *Row) Measurement(name string) **float64 {
	switch name {
	case "n":
		return &r.N
	case "d":
		return &r.D
	case "di":
		return &r.DI
	case "dd":
		return &r.DD
	case "h":
		return &r.H
	case "dmay":
		return &r.DMay
	case "dmen":
		return &r.DMen
	case "rmay":
		return &r.RMay
	case "rmen":
		return &r.RMen
	case "dbh":
		return &r.DBH
	}
	return nil
}

// Fields implements Record.
func (r Row) Fields() []Field {
	fields := []Field{
		text("id", strconv.FormatInt(r.ID, 10)),
		text("row_number", strconv.Itoa(r.RowNumber)),
		text("inv_id", r.InvID),
		nullableText("especie", r.Especie),
	}
	for _, m := range Measurements {
		fields = append(fields, number(m, *r.Measurement(m)))
	}
	return fields
}

// Set assigns a column parsed from its text form. Empty values become nil.
func (r *Row) Set(name, value string) error {
	switch name {
	case "id":
		id, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			return fmt.Errorf("row: column id: %w", err)
		}
		r.ID = id
	case "row_number":
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("row: column row_number: %w", err)
		}
		r.RowNumber = n
	case "inv_id":
		r.InvID = value
	case "especie":
		if value == "" {
			r.Especie = nil
		} else {
			r.Especie = &value
		}
	default:
		p := r.Measurement(name)
		if p == nil {
			return fmt.Errorf("row: unknown column %q", name)
		}
		return parseNumber(name, value, p)
	}
	return nil
}

// Image is one photograph attached to a row. ID is the capture time in
// milliseconds since the Unix epoch.
type Image struct {
	ID          int64   `json:"id"`
	Src         string  `json:"src"`
	Extension   *string `json:"extension"`
	Size        int64   `json:"size"`
	CaptureDate string  `json:"capture_date"`
	RowID       int64   `json:"row_id"`
	InvID       string  `json:"inv_id"`
}

// Fields implements Record. The payload is left out.
func (img Image) Fields() []Field {
	return []Field{
		text("id", strconv.FormatInt(img.ID, 10)),
		nullableText("extension", img.Extension),
		text("size", strconv.FormatInt(img.Size, 10)),
		text("capture_date", img.CaptureDate),
		text("row_id", strconv.FormatInt(img.RowID, 10)),
		text("inv_id", img.InvID),
	}
}

// CaptureDateLayout formats capture dates as UTC with millisecond precision.
const CaptureDateLayout = "2006-01-02T15:04:05.000Z07:00"

// CaptureDate derives the capture date from an image id.
func CaptureDate(id int64) string {
	return time.UnixMilli(id).UTC().Format(CaptureDateLayout)
}

// Float returns a pointer to f, for building records in code.
func Float(f float64) *float64 {
	return &f
}

// Text returns a pointer to s, or nil for an empty string.
func Text(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func text(name, value string) Field {
	return Field{Name: name, Value: value}
}

func nullableText(name string, value *string) Field {
	if value == nil {
		return Field{Name: name, Null: true}
	}
	return Field{Name: name, Value: *value}
}

func number(name string, value *float64) Field {
	if value == nil {
		return Field{Name: name, Null: true}
	}
	return Field{Name: name, Value: strconv.FormatFloat(*value, 'f', -1, 64)}
}

func parseNumber(name, value string, dst **float64) error {
	if value == "" {
		*dst = nil
		return nil
	}
	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return fmt.Errorf("column %s: %w", name, err)
	}
	*dst = &f
	return nil
}
