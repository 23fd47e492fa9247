package cli

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileDownloader(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "exports")
	d := FileDownloader{Dir: dir}
	ctx := context.Background()

	require.NoError(t, d.Download(ctx, "A1.zip", []byte("first")))
	require.NoError(t, d.Download(ctx, "A1.zip", []byte("second")))

	path := d.Path("A1.zip")
	assert.Equal(t, filepath.Join(dir, "A1.zip"), path)
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "second", string(data))
}

func TestFileDownloader_StripsDirectories(t *testing.T) {
	dir := t.TempDir()
	d := FileDownloader{Dir: dir}
	require.NoError(t, d.Download(context.Background(), "../../A1.zip", []byte("x")))
	assert.FileExists(t, filepath.Join(dir, "A1.zip"))
	assert.Equal(t, filepath.Join(dir, "A1.zip"), d.Path("../A1.zip"))
}

func TestFileDownloader_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	dir := t.TempDir()
	err := FileDownloader{Dir: dir}.Download(ctx, "A1.zip", []byte("x"))
	assert.ErrorIs(t, err, context.Canceled)
	assert.NoFileExists(t, filepath.Join(dir, "A1.zip"))
}
