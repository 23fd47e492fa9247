package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/inventario/internal/export"
)

// ExportOptions holds flags for the export command.
type ExportOptions struct {
	*RootOptions
	Out string
}

// NewExportCommand creates the export command.
func NewExportCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ExportOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "export <inv-id>",
		Short: "Export an inventory as a zip archive",
		Long: `Export the metadata, rows and photographs of an inventory as <inv-id>.zip.

The archive holds inventario_<inv-id>.csv, metadatos_<inv-id>.csv and an
images/ folder. An inventory whose metadata was never saved is not exported.

Example:
  inventario export A1 --out ./exports`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExport(opts, cmd, args[0])
		},
	}

	cmd.Flags().StringVarP(&opts.Out, "out", "o", "", "output directory (default from config export_dir)")
	return cmd
}

func runExport(opts *ExportOptions, cmd *cobra.Command, invID string) error {
	s, done, err := opts.openSession(cmd, nil)
	if err != nil {
		return err
	}
	defer done()

	dl := opts.downloader(opts.Out)

	res, err := export.New(s, dl, opts.logger).Export(cmd.Context(), invID)
	if err != nil {
		return opts.finish(cmd, err)
	}

	out := opts.formatter(cmd)
	for _, w := range res.Warnings {
		out.VerboseLog("warning: %v", w)
	}
	text := fmt.Sprintf("Exported %s (%d files, %d bytes).", res.Name, len(res.Files), res.Size)
	if fd, ok := dl.(FileDownloader); ok {
		text = fmt.Sprintf("Exported %s (%d files, %d bytes).", fd.Path(res.Name), len(res.Files), res.Size)
	}
	if n := len(res.Warnings); n > 0 {
		text += fmt.Sprintf(" %d image warning(s).", n)
	}
	return out.Result(res, text)
}
