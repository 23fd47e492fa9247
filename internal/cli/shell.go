package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/peterh/liner"
	"github.com/spf13/cobra"

	"github.com/roach88/inventario/internal/export"
	"github.com/roach88/inventario/internal/model"
	"github.com/roach88/inventario/internal/store"
)

var shellCommands = []string{
	"help", "list", "new", "load", "meta", "rows", "add", "set", "select", "clear",
	"save", "rm", "pic", "images", "export", "delete-inv", "quit",
}

// NewShellCommand creates the interactive shell command.
func NewShellCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "shell",
		Short: "Edit inventories interactively",
		Long: `Start an interactive shell over one editing session. Rows are edited in
memory and written with "save"; destructive commands ask for confirmation.
Type "help" inside the shell for commands.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runShell(opts, cmd)
		},
	}
}

func runShell(opts *RootOptions, cmd *cobra.Command) error {
	line := liner.NewLiner()
	defer line.Close()
	line.SetCtrlCAborts(true)
	line.SetCompleter(func(prefix string) []string {
		var out []string
		for _, c := range shellCommands {
			if strings.HasPrefix(c, strings.ToLower(prefix)) {
				out = append(out, c)
			}
		}
		return out
	})

	var prompter store.Prompter
	if opts.Prompter == nil && !opts.Yes {
		prompter = sharedPrompter(line, cmd.OutOrStdout())
	}
	s, done, err := opts.openSession(cmd, prompter)
	if err != nil {
		return err
	}
	defer done()

	sh := NewShell(s, export.New(s, opts.downloader(""), opts.logger), cmd.OutOrStdout())
	return sh.Run(cmd.Context(), line)
}

// Shell runs inventory editing commands against one session.
type Shell struct {
	session  *store.Session
	exporter *export.Pipeline
	out      io.Writer
}

// NewShell creates a shell writing its output to out.
func NewShell(s *store.Session, exporter *export.Pipeline, out io.Writer) *Shell {
	return &Shell{session: s, exporter: exporter, out: out}
}

// Run reads commands until quit or end of input.
func (sh *Shell) Run(ctx context.Context, line *liner.State) error {
	fmt.Fprintln(sh.out, `inventario shell. Type "help" for commands.`)
	for {
		input, err := line.Prompt(sh.prompt())
		if err != nil {
			if errors.Is(err, liner.ErrPromptAborted) || errors.Is(err, io.EOF) {
				fmt.Fprintln(sh.out)
				return nil
			}
			return fmt.Errorf("reading input: %w", err)
		}
		if strings.TrimSpace(input) == "" {
			continue
		}
		line.AppendHistory(input)

		quit, err := sh.Exec(ctx, input)
		sh.report(err)
		if quit {
			return nil
		}
	}
}

func (sh *Shell) prompt() string {
	id := sh.session.InventoryID()
	if id == "" {
		return "inventario> "
	}
	if sh.session.Dirty() {
		return id + "*> "
	}
	return id + "> "
}

func (sh *Shell) report(err error) {
	switch {
	case err == nil:
	case errors.Is(err, store.ErrNotConfirmed):
		fmt.Fprintln(sh.out, "Cancelled.")
	case errors.Is(err, export.ErrEmptyExport):
		fmt.Fprintln(sh.out, err)
	default:
		fmt.Fprintf(sh.out, "Error: %v\n", err)
	}
}

// Exec runs one command line. It reports whether the shell should exit.
func (sh *Shell) Exec(ctx context.Context, input string) (bool, error) {
	args, err := splitArgs(input)
	if err != nil {
		return false, err
	}
	if len(args) == 0 {
		return false, nil
	}
	name, args := strings.ToLower(args[0]), args[1:]
	s := sh.session

	switch name {
	case "quit", "exit", "q":
		if s.Dirty() {
			fmt.Fprintln(sh.out, "Unsaved rows discarded.")
		}
		return true, nil

	case "help", "?":
		sh.help()

	case "list", "ls":
		invs, err := s.ListInventories(ctx)
		if err != nil {
			return false, err
		}
		fmt.Fprintln(sh.out, recordsTable(invs))

	case "new":
		if len(args) != 1 {
			return false, errUsage("new <inv-id>")
		}
		if err := s.NewInventory(ctx, args[0]); err != nil {
			return false, err
		}
		fmt.Fprintf(sh.out, "New inventory %s. Save its metadata with \"meta\".\n", s.InventoryID())

	case "load":
		if len(args) != 1 {
			return false, errUsage("load <inv-id>")
		}
		inv, err := s.LoadInventory(ctx, args[0])
		if err != nil {
			return false, err
		}
		fmt.Fprintf(sh.out, "Loaded %s with %d rows.\n", inv.InvID, len(s.Rows()))

	case "meta":
		return false, sh.meta(ctx, args)

	case "rows":
		sh.rows()

	case "add":
		var values model.Row
		if err := assign(&values, args); err != nil {
			return false, err
		}
		row, err := s.AddRow(values)
		if err != nil {
			return false, err
		}
		fmt.Fprintf(sh.out, "Added row %d.\n", row.RowNumber)

	case "set":
		if len(args) < 2 {
			return false, errUsage("set <row-number> column=value...")
		}
		n, err := parseRowNumber(args[0])
		if err != nil {
			return false, err
		}
		var assignErr error
		if err := s.UpdateRow(n, func(r *model.Row) { assignErr = assign(r, args[1:]) }); err != nil {
			return false, err
		}
		if assignErr != nil {
			return false, assignErr
		}

	case "select", "sel":
		if len(args) == 0 {
			return false, errUsage("select <row-number>...")
		}
		for _, a := range args {
			n, err := parseRowNumber(a)
			if err != nil {
				return false, err
			}
			if err := s.SelectRow(n); err != nil {
				return false, err
			}
		}
		fmt.Fprintf(sh.out, "Selected: %v\n", s.Selected())

	case "clear":
		s.ClearSelection()

	case "save":
		res, err := s.Save(ctx)
		if err != nil {
			return false, err
		}
		fmt.Fprintf(sh.out, "Saved: %d new, %d updated, %d failed.\n", len(res.Inserted), len(res.Updated), len(res.Failed))
		for _, f := range res.Failed {
			fmt.Fprintf(sh.out, "  %v\n", f)
		}

	case "rm":
		if err := s.RemoveSelectedRows(ctx); err != nil {
			return false, err
		}
		fmt.Fprintf(sh.out, "%d rows left.\n", len(s.Rows()))

	case "pic":
		return false, sh.pic(ctx, args)

	case "images":
		images, err := s.ImagesByInventory(ctx, s.InventoryID())
		if err != nil {
			return false, err
		}
		fmt.Fprintln(sh.out, recordsTable(imageViews(images)))

	case "export":
		invID := s.InventoryID()
		if len(args) == 1 {
			invID = args[0]
		}
		if invID == "" {
			return false, errUsage("export <inv-id>")
		}
		res, err := sh.exporter.Export(ctx, invID)
		if err != nil {
			return false, err
		}
		fmt.Fprintf(sh.out, "Exported %s (%d files).\n", res.Name, len(res.Files))
		for _, w := range res.Warnings {
			fmt.Fprintf(sh.out, "  warning: %v\n", w)
		}

	case "delete-inv":
		if len(args) != 1 {
			return false, errUsage("delete-inv <inv-id>")
		}
		if err := s.RemoveInventory(ctx, args[0]); err != nil {
			return false, err
		}
		fmt.Fprintf(sh.out, "Deleted inventory %s.\n", model.NormalizeInventoryID(args[0]))

	default:
		return false, fmt.Errorf("unknown command %q (type \"help\" for commands)", name)
	}
	return false, nil
}

func (sh *Shell) meta(ctx context.Context, args []string) error {
	s := sh.session
	inv, ok := s.Current()
	if !ok {
		if s.InventoryID() == "" {
			return store.ErrNoInventory
		}
		inv = model.Inventory{InvID: s.InventoryID()}
	}
	if len(args) == 0 && ok {
		fmt.Fprintln(sh.out, recordText(inv))
		return nil
	}
	if err := assign(&inv, args); err != nil {
		return err
	}
	saved, err := s.SaveMetadata(ctx, inv)
	if err != nil {
		return err
	}
	fmt.Fprintf(sh.out, "Saved metadata for %s.\n", saved.InvID)
	return nil
}

func (sh *Shell) rows() {
	rows := sh.session.Rows()
	fmt.Fprintln(sh.out, recordsTable(rows))
	if sel := sh.session.Selected(); len(sel) > 0 {
		fmt.Fprintf(sh.out, "Selected: %v\n", sel)
	}
}

func (sh *Shell) pic(ctx context.Context, args []string) error {
	compress := slices.Contains(args, "--compress")
	args = slices.DeleteFunc(slices.Clone(args), func(a string) bool { return a == "--compress" })
	if len(args) != 1 {
		return errUsage("pic <file> [--compress]")
	}
	data, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("read image: %w", err)
	}
	img, err := sh.session.AttachImage(ctx, filepath.Base(args[0]), data, compress)
	if err != nil {
		return err
	}
	fmt.Fprintf(sh.out, "Attached image %d (%s, %d bytes).\n", img.ID, *img.Extension, img.Size)
	return nil
}

func (sh *Shell) help() {
	fmt.Fprint(sh.out, `Commands:
  list                         saved inventories
  new <inv-id>                 start a new inventory
  load <inv-id>                load a saved inventory
  meta [column=value...]       show or save metadata (date, start_point, end_point, comments)
  rows                         show live rows
  add [column=value...]        append a row (especie, n, d, di, dd, h, dmay, dmen, rmay, rmen, dbh)
  set <n> column=value...      change row n
  select <n>...                toggle row selection
  clear                        clear the selection
  save                         save all rows
  rm                           delete the selected rows
  pic <file> [--compress]      attach a jpg or png to the selected row
  images                       list photographs of the inventory
  export [inv-id]              write <inv-id>.zip
  delete-inv <inv-id>          delete an inventory with its rows and images
  quit                         leave the shell
`)
}

func errUsage(usage string) error {
	return fmt.Errorf("usage: %s", usage)
}

// assigner is a record that accepts column assignments.
type assigner interface {
	Set(name, value string) error
}

// assign applies column=value arguments to rec.
func assign(rec assigner, args []string) error {
	for _, a := range args {
		name, value, ok := strings.Cut(a, "=")
		if !ok {
			return fmt.Errorf("expected column=value, got %q", a)
		}
		name = strings.ToLower(strings.TrimSpace(name))
		if name == "id" || name == "row_number" || name == "inv_id" {
			return fmt.Errorf("column %s cannot be assigned", name)
		}
		if err := rec.Set(name, value); err != nil {
			return err
		}
	}
	return nil
}

// splitArgs splits a command line on spaces. Double quotes group words.
func splitArgs(input string) ([]string, error) {
	var args []string
	var cur strings.Builder
	inQuote, inArg := false, false
	for _, r := range input {
		switch {
		case r == '"':
			inQuote = !inQuote
			inArg = true
		case !inQuote && (r == ' ' || r == '\t'):
			if inArg {
				args = append(args, cur.String())
				cur.Reset()
				inArg = false
			}
		default:
			cur.WriteRune(r)
			inArg = true
		}
	}
	if inQuote {
		return nil, errors.New("unterminated quote")
	}
	if inArg {
		args = append(args, cur.String())
	}
	return args, nil
}
