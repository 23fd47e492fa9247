package cli

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/roach88/inventario/internal/model"
	"github.com/roach88/inventario/internal/store"
)

// NewRowCommand creates the row command group.
func NewRowCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "row",
		Short: "Manage measured trees of an inventory",
	}
	cmd.AddCommand(newRowListCommand(opts))
	cmd.AddCommand(newRowAddCommand(opts))
	cmd.AddCommand(newRowSetCommand(opts))
	cmd.AddCommand(newRowDeleteCommand(opts))
	return cmd
}

// rowColumns are the editable row columns, each exposed as a flag.
var rowColumns = append([]string{"especie"}, model.Measurements...)

// rowFlags registers one string flag per editable column.
type rowFlags map[string]*string

func addRowFlags(cmd *cobra.Command) rowFlags {
	flags := rowFlags{}
	for _, col := range rowColumns {
		flags[col] = cmd.Flags().String(col, "", col+" value (empty clears)")
	}
	return flags
}

// apply copies the flags given on the command line into r.
func (f rowFlags) apply(cmd *cobra.Command, r *model.Row) error {
	for _, col := range rowColumns {
		if !cmd.Flags().Changed(col) {
			continue
		}
		if err := r.Set(col, *f[col]); err != nil {
			return WrapExitError(ExitCommandError, "invalid --"+col, err)
		}
	}
	return nil
}

// loadForEdit loads a saved inventory into the session.
func loadForEdit(cmd *cobra.Command, s *store.Session, invID string) error {
	if _, err := s.LoadInventory(cmd.Context(), invID); err != nil {
		if errors.Is(err, store.ErrInventoryNotFound) {
			return fmt.Errorf("%w (save its metadata first)", err)
		}
		return err
	}
	return nil
}

// saveRows persists the session rows and reports the first failure.
func saveRows(cmd *cobra.Command, s *store.Session) error {
	res, err := s.Save(cmd.Context())
	if err != nil {
		return err
	}
	if len(res.Failed) > 0 {
		return res.Failed[0]
	}
	return nil
}

func parseRowNumber(arg string) (int, error) {
	n, err := strconv.Atoi(arg)
	if err != nil || n < 1 {
		return 0, NewExitError(ExitCommandError, fmt.Sprintf("invalid row number %q", arg))
	}
	return n, nil
}

func newRowListCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "list <inv-id>",
		Short: "List the rows of an inventory",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, done, err := opts.openSession(cmd, nil)
			if err != nil {
				return err
			}
			defer done()

			rows, err := s.RowsByInventory(cmd.Context(), args[0])
			if err != nil {
				return opts.finish(cmd, err)
			}
			return opts.formatter(cmd).Result(rows, recordsTable(rows))
		},
	}
}

func newRowAddCommand(opts *RootOptions) *cobra.Command {
	var flags rowFlags
	cmd := &cobra.Command{
		Use:   "add <inv-id>",
		Short: "Append a row to an inventory",
		Long: `Append a row at the next position of a saved inventory.

Example:
  inventario row add A1 --especie "Pinus radiata" --d 12 --h 8.5`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, done, err := opts.openSession(cmd, nil)
			if err != nil {
				return err
			}
			defer done()

			if err := loadForEdit(cmd, s, args[0]); err != nil {
				return opts.finish(cmd, err)
			}
			var values model.Row
			if err := flags.apply(cmd, &values); err != nil {
				return err
			}
			added, err := s.AddRow(values)
			if err != nil {
				return opts.finish(cmd, err)
			}
			if err := saveRows(cmd, s); err != nil {
				return opts.finish(cmd, err)
			}

			row := s.Rows()[added.RowNumber-1]
			return opts.formatter(cmd).Result(row, fmt.Sprintf("Added row %d to %s.", row.RowNumber, row.InvID))
		},
	}
	flags = addRowFlags(cmd)
	return cmd
}

func newRowSetCommand(opts *RootOptions) *cobra.Command {
	var flags rowFlags
	cmd := &cobra.Command{
		Use:   "set <inv-id> <row-number>",
		Short: "Change values of a row",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			n, err := parseRowNumber(args[1])
			if err != nil {
				return err
			}
			s, done, err := opts.openSession(cmd, nil)
			if err != nil {
				return err
			}
			defer done()

			if err := loadForEdit(cmd, s, args[0]); err != nil {
				return opts.finish(cmd, err)
			}
			var applyErr error
			err = s.UpdateRow(n, func(r *model.Row) { applyErr = flags.apply(cmd, r) })
			if applyErr != nil {
				return applyErr
			}
			if err != nil {
				return opts.finish(cmd, err)
			}
			if err := saveRows(cmd, s); err != nil {
				return opts.finish(cmd, err)
			}

			row := s.Rows()[n-1]
			return opts.formatter(cmd).Result(row, fmt.Sprintf("Updated row %d of %s.", n, row.InvID))
		},
	}
	flags = addRowFlags(cmd)
	return cmd
}

func newRowDeleteCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <inv-id> <row-number>",
		Short: "Delete a row with its images and renumber the rest",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			n, err := parseRowNumber(args[1])
			if err != nil {
				return err
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
			if err := s.RemoveSelectedRows(cmd.Context()); err != nil {
				return opts.finish(cmd, err)
			}

			cur, _ := s.Current()
			return opts.formatter(cmd).Result(
				map[string]any{"inv_id": cur.InvID, "deleted": n, "rows": len(s.Rows())},
				fmt.Sprintf("Deleted row %d of %s.", n, cur.InvID))
		},
	}
}
