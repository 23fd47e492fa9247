package cli

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/inventario/internal/model"
	"github.com/roach88/inventario/internal/store"
)

// NewInventoryCommand creates the inventory command group.
func NewInventoryCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "inventory",
		Aliases: []string{"inv"},
		Short:   "Manage inventory metadata",
	}
	cmd.AddCommand(newInventoryListCommand(opts))
	cmd.AddCommand(newInventoryShowCommand(opts))
	cmd.AddCommand(newInventorySaveCommand(opts))
	cmd.AddCommand(newInventoryDeleteCommand(opts))
	return cmd
}

func newInventoryListCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List saved inventories",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, done, err := opts.openSession(cmd, nil)
			if err != nil {
				return err
			}
			defer done()

			invs, err := s.ListInventories(cmd.Context())
			if err != nil {
				return opts.finish(cmd, err)
			}
			return opts.formatter(cmd).Result(invs, recordsTable(invs))
		},
	}
}

// inventoryDetail is the show payload.
type inventoryDetail struct {
	Inventory model.Inventory `json:"inventory"`
	Rows      []model.Row     `json:"rows"`
	Images    []imageView     `json:"images"`
}

func (d inventoryDetail) String() string {
	var b strings.Builder
	b.WriteString(recordText(d.Inventory))
	b.WriteString("\n\nRows:\n")
	b.WriteString(recordsTable(d.Rows))
	b.WriteString("\n\nImages:\n")
	b.WriteString(recordsTable(d.Images))
	return b.String()
}

func newInventoryShowCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "show <inv-id>",
		Short: "Show an inventory with its rows and images",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, done, err := opts.openSession(cmd, nil)
			if err != nil {
				return err
			}
			defer done()

			ctx := cmd.Context()
			inv, err := s.GetInventory(ctx, args[0])
			if err != nil {
				return opts.finish(cmd, err)
			}
			rows, err := s.RowsByInventory(ctx, inv.InvID)
			if err != nil {
				return opts.finish(cmd, err)
			}
			images, err := s.ImagesByInventory(ctx, inv.InvID)
			if err != nil {
				return opts.finish(cmd, err)
			}
			return opts.formatter(cmd).Success(inventoryDetail{Inventory: inv, Rows: rows, Images: imageViews(images)})
		},
	}
}

// inventoryFlags maps flag names to metadata columns.
var inventoryFlags = map[string]string{
	"date":        "date",
	"start-point": "start_point",
	"end-point":   "end_point",
	"comments":    "comments",
}

func newInventorySaveCommand(opts *RootOptions) *cobra.Command {
	values := map[string]*string{}

	cmd := &cobra.Command{
		Use:   "save <inv-id>",
		Short: "Create or update inventory metadata",
		Long: `Create or update the metadata of an inventory. Only the given flags
change; other values are kept.

Example:
  inventario inventory save A1 --date 2024-05-01 --comments "north slope"`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, done, err := opts.openSession(cmd, nil)
			if err != nil {
				return err
			}
			defer done()

			ctx := cmd.Context()
			inv, err := s.LoadInventory(ctx, args[0])
			if errors.Is(err, store.ErrInventoryNotFound) {
				err = s.NewInventory(ctx, args[0])
				inv = model.Inventory{InvID: args[0]}
			}
			if err != nil {
				return opts.finish(cmd, err)
			}

			for flag, column := range inventoryFlags {
				if !cmd.Flags().Changed(flag) {
					continue
				}
				if err := inv.Set(column, *values[flag]); err != nil {
					return WrapExitError(ExitCommandError, "invalid --"+flag, err)
				}
			}

			saved, err := s.SaveMetadata(ctx, inv)
			if err != nil {
				return opts.finish(cmd, err)
			}
			return opts.formatter(cmd).Result(saved, fmt.Sprintf("Saved inventory %s.", saved.InvID))
		},
	}

	for flag, column := range inventoryFlags {
		values[flag] = cmd.Flags().String(flag, "", "metadata "+column)
	}
	return cmd
}

func newInventoryDeleteCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <inv-id>",
		Short: "Delete an inventory with all its rows and images",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, done, err := opts.openSession(cmd, nil)
			if err != nil {
				return err
			}
			defer done()

			invID := model.NormalizeInventoryID(args[0])
			if err := s.RemoveInventory(cmd.Context(), invID); err != nil {
				return opts.finish(cmd, err)
			}
			return opts.formatter(cmd).Result(map[string]string{"deleted": invID}, fmt.Sprintf("Deleted inventory %s.", invID))
		},
	}
}
