package export

import (
	"archive/zip"
	"bytes"
	"fmt"
	"strconv"
	"strings"

	"github.com/roach88/inventario/internal/model"
)

// ImageDir is the archive folder holding photographs.
const ImageDir = "images"

// File is one entry of an export archive.
type File struct {
	Name string
	Data []byte
}

// RowsFileName returns the archive name of the rows CSV.
func RowsFileName(invID string) string {
	return "inventario_" + invID + ".csv"
}

// MetadataFileName returns the archive name of the metadata CSV.
func MetadataFileName(invID string) string {
	return "metadatos_" + invID + ".csv"
}

// ArchiveName returns the download name of an inventory's archive.
func ArchiveName(invID string) string {
	return invID + ".zip"
}

// ImageFileName returns images/<row_id>_<capture day>_<id>.<ext>.
func ImageFileName(img model.Image, ext string) string {
	day := img.CaptureDate
	if len(day) > 10 {
		day = day[:10]
	}
	name := strings.Join([]string{
		strconv.FormatInt(img.RowID, 10),
		day,
		strconv.FormatInt(img.ID, 10),
	}, "_")
	return ImageDir + "/" + name + "." + ext
}

// BuildArchive writes files into a zip archive in the given order.
func BuildArchive(files []File) ([]byte, error) {
	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	for _, f := range files {
		fw, err := w.Create(f.Name)
		if err != nil {
			return nil, fmt.Errorf("create %s: %w", f.Name, err)
		}
		if _, err := fw.Write(f.Data); err != nil {
			return nil, fmt.Errorf("write %s: %w", f.Name, err)
		}
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("close archive: %w", err)
	}
	return buf.Bytes(), nil
}
