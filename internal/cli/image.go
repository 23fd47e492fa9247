package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
)

// NewImageCommand creates the image command group.
func NewImageCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "image",
		Aliases: []string{"pic"},
		Short:   "Manage row photographs",
	}
	cmd.AddCommand(newImageAttachCommand(opts))
	cmd.AddCommand(newImageListCommand(opts))
	return cmd
}

func newImageAttachCommand(opts *RootOptions) *cobra.Command {
	var compress bool
	cmd := &cobra.Command{
		Use:   "attach <inv-id> <row-number> <file>",
		Short: "Attach a jpg or png photograph to a saved row",
		Long: `Attach a photograph to a saved row. Only .jpg, .jpeg and .png files are
accepted. With --compress the picture is halved in both dimensions and
re-encoded; non-PNG pictures are stored as jpeg.`,
		Args: cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			n, err := parseRowNumber(args[1])
			if err != nil {
				return err
			}
			data, err := os.ReadFile(args[2])
			if err != nil {
				return WrapExitError(ExitCommandError, "failed to read image", err)
			}

			s, done, err := opts.openSession(cmd, nil)
			if err != nil {
				return err
			}
			defer done()

			if err := loadForEdit(cmd, s, args[0]); err != nil {
				return opts.finish(cmd, err)
			}
			if err := s.SelectRow(n); err != nil {
				return opts.finish(cmd, err)
			}
			img, err := s.AttachImage(cmd.Context(), filepath.Base(args[2]), data, compress)
			if err != nil {
				return opts.finish(cmd, err)
			}
			return opts.formatter(cmd).Result(newImageView(img),
				fmt.Sprintf("Attached image %d (%s, %d bytes) to row %d of %s.", img.ID, *img.Extension, img.Size, n, img.InvID))
		},
	}
	cmd.Flags().BoolVar(&compress, "compress", false, "halve the picture and re-encode it")
	return cmd
}

func newImageListCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "list <inv-id>",
		Short: "List the photographs of an inventory",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, done, err := opts.openSession(cmd, nil)
			if err != nil {
				return err
			}
			defer done()

			images, err := s.ImagesByInventory(cmd.Context(), args[0])
			if err != nil {
				return opts.finish(cmd, err)
			}
			views := imageViews(images)
			return opts.formatter(cmd).Result(views, recordsTable(views))
		},
	}
}
