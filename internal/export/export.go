package export

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/roach88/inventario/internal/model"
	"github.com/roach88/inventario/internal/store"
)

// ErrEmptyExport is returned when the inventory has no saved metadata.
// Nothing is downloaded.
var ErrEmptyExport = errors.New("nothing to export: inventory metadata not saved")

// Source reads the records of one inventory. *store.Session implements it.
type Source interface {
	GetInventory(ctx context.Context, invID string) (model.Inventory, error)
	RowsByInventory(ctx context.Context, invID string) ([]model.Row, error)
	ImagesByInventory(ctx context.Context, invID string) ([]model.Image, error)
}

// Downloader hands a finished archive to its destination.
type Downloader interface {
	Download(ctx context.Context, name string, data []byte) error
}

// MalformedImageError describes an image that could not be exported as
// stored. Skipped reports whether the image was left out of the archive;
// otherwise it was written under a fallback name.
type MalformedImageError struct {
	ImageID int64
	Skipped bool
	Err     error
}

func (e *MalformedImageError) Error() string {
	if e.Skipped {
		return fmt.Sprintf("image %d skipped: %v", e.ImageID, e.Err)
	}
	return fmt.Sprintf("image %d: %v", e.ImageID, e.Err)
}

func (e *MalformedImageError) Unwrap() error {
	return e.Err
}

var errNoExtension = errors.New("missing extension")

// Result summarizes a finished export.
type Result struct {
	Name     string
	Files    []string
	Size     int
	Warnings []*MalformedImageError
}

// Pipeline exports inventories as zip archives.
type Pipeline struct {
	src    Source
	dl     Downloader
	logger *slog.Logger
}

// New creates a pipeline. A nil logger discards output.
func New(src Source, dl Downloader, logger *slog.Logger) *Pipeline {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Pipeline{src: src, dl: dl, logger: logger}
}

// Export collects the metadata, rows and images of invID into an archive
// and downloads it as <inv_id>.zip. It returns ErrEmptyExport when the
// metadata was never saved. Image problems are reported as warnings and
// never abort the export.
func (p *Pipeline) Export(ctx context.Context, invID string) (Result, error) {
	inv, err := p.src.GetInventory(ctx, invID)
	if errors.Is(err, store.ErrInventoryNotFound) {
		return Result{}, fmt.Errorf("%w: %s", ErrEmptyExport, model.NormalizeInventoryID(invID))
	}
	if err != nil {
		return Result{}, fmt.Errorf("export: fetch metadata: %w", err)
	}
	invID = inv.InvID

	rows, err := p.src.RowsByInventory(ctx, invID)
	if err != nil {
		return Result{}, fmt.Errorf("export: fetch rows: %w", err)
	}
	rowsCSV, err := Encode(rows)
	if err != nil {
		return Result{}, fmt.Errorf("export: rows: %w", err)
	}
	metaCSV, err := Encode([]model.Inventory{inv})
	if err != nil {
		return Result{}, fmt.Errorf("export: metadata: %w", err)
	}

	images, err := p.src.ImagesByInventory(ctx, invID)
	if err != nil {
		return Result{}, fmt.Errorf("export: fetch images: %w", err)
	}

	files := []File{}
	if len(rows) > 0 {
		files = append(files, File{Name: RowsFileName(invID), Data: []byte(rowsCSV)})
	}
	files = append(files, File{Name: MetadataFileName(invID), Data: []byte(metaCSV)})

	res := Result{Name: ArchiveName(invID)}
	for _, img := range images {
		f, warn := imageFile(img)
		if warn != nil {
			p.logger.Warn("export image", "inv_id", invID, "image_id", img.ID, "error", warn.Err, "skipped", warn.Skipped)
			res.Warnings = append(res.Warnings, warn)
		}
		if f != nil {
			files = append(files, *f)
		}
	}

	data, err := BuildArchive(files)
	if err != nil {
		return Result{}, fmt.Errorf("export: %w", err)
	}
	if err := p.dl.Download(ctx, res.Name, data); err != nil {
		return Result{}, fmt.Errorf("export: download %s: %w", res.Name, err)
	}

	for _, f := range files {
		res.Files = append(res.Files, f.Name)
	}
	res.Size = len(data)
	p.logger.Info("inventory exported", "inv_id", invID, "archive", res.Name,
		"rows", len(rows), "images", len(images), "bytes", res.Size)
	return res, nil
}

// imageFile decodes an image payload and names its archive entry. A nil
// file means the image is skipped.
func imageFile(img model.Image) (*File, *MalformedImageError) {
	mime, data, err := model.ParseDataURL(img.Src)
	if err != nil {
		return nil, &MalformedImageError{ImageID: img.ID, Skipped: true, Err: err}
	}

	var warn *MalformedImageError
	ext := ""
	if img.Extension != nil {
		ext = strings.TrimSpace(*img.Extension)
	}
	if ext == "" {
		ext = model.ExtensionForMime(mime)
		if ext == "" {
			ext = "bin"
		}
		warn = &MalformedImageError{ImageID: img.ID, Err: fmt.Errorf("%w: named .%s", errNoExtension, ext)}
	}
	return &File{Name: ImageFileName(img, ext), Data: data}, warn
}
