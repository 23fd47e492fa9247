package cli

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/roach88/inventario/internal/model"
)

// recordsTable renders records as an aligned table with a header taken
// from the first record. Null values print as "-".
func recordsTable[R model.Record](records []R) string {
	if len(records) == 0 {
		return "(none)"
	}
	var b strings.Builder
	tw := tabwriter.NewWriter(&b, 0, 0, 2, ' ', 0)

	header := records[0].Fields()
	names := make([]string, len(header))
	for i, f := range header {
		names[i] = strings.ToUpper(f.Name)
	}
	fmt.Fprintln(tw, strings.Join(names, "\t"))

	for _, rec := range records {
		fields := rec.Fields()
		values := make([]string, len(fields))
		for i, f := range fields {
			switch {
			case f.Null:
				values[i] = "-"
			case f.Value == "":
				values[i] = `""`
			default:
				values[i] = f.Value
			}
		}
		fmt.Fprintln(tw, strings.Join(values, "\t"))
	}
	_ = tw.Flush()
	return strings.TrimSuffix(b.String(), "\n")
}

// recordText renders one record as "name: value" lines.
func recordText(rec model.Record) string {
	fields := rec.Fields()
	lines := make([]string, len(fields))
	for i, f := range fields {
		v := f.Value
		if f.Null {
			v = "-"
		}
		lines[i] = fmt.Sprintf("%-12s %s", f.Name+":", v)
	}
	return strings.Join(lines, "\n")
}

// imageView is an image without its payload, for listings.
type imageView struct {
	ID          int64   `json:"id"`
	Extension   *string `json:"extension"`
	Size        int64   `json:"size"`
	CaptureDate string  `json:"capture_date"`
	RowID       int64   `json:"row_id"`
	InvID       string  `json:"inv_id"`
}

func newImageView(img model.Image) imageView {
	return imageView{
		ID:          img.ID,
		Extension:   img.Extension,
		Size:        img.Size,
		CaptureDate: img.CaptureDate,
		RowID:       img.RowID,
		InvID:       img.InvID,
	}
}

func imageViews(images []model.Image) []imageView {
	out := make([]imageView, 0, len(images))
	for _, img := range images {
		out = append(out, newImageView(img))
	}
	return out
}

// Fields implements model.Record.
func (v imageView) Fields() []model.Field {
	return model.Image{
		ID:          v.ID,
		Extension:   v.Extension,
		Size:        v.Size,
		CaptureDate: v.CaptureDate,
		RowID:       v.RowID,
		InvID:       v.InvID,
	}.Fields()
}
