package cli

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/natefinch/atomic"
)

// FileDownloader saves exported archives into a directory, replacing
// existing files atomically.
type FileDownloader struct {
	Dir string
}

// Download implements export.Downloader.
func (d FileDownloader) Download(ctx context.Context, name string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := os.MkdirAll(d.Dir, 0o750); err != nil {
		return fmt.Errorf("create export dir: %w", err)
	}
	path := filepath.Join(d.Dir, filepath.Base(name))
	if err := atomic.WriteFile(path, bytes.NewReader(data)); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

// Path returns where an archive of the given name is written.
func (d FileDownloader) Path(name string) string {
	return filepath.Join(d.Dir, filepath.Base(name))
}
