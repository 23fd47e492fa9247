package cli

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"slices"

	"github.com/spf13/cobra"

	"github.com/roach88/inventario/internal/config"
	"github.com/roach88/inventario/internal/export"
	"github.com/roach88/inventario/internal/kv"
	"github.com/roach88/inventario/internal/model"
	"github.com/roach88/inventario/internal/store"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose bool
	Format  string // "json" | "text"
	DB      string
	Engine  string
	Config  string
	Yes     bool

	// Env is the environment read when loading configuration.
	Env []string

	// Prompter overrides confirmation prompts (for testing).
	// If nil, --yes selects store.AlwaysConfirm and otherwise prompts on the terminal.
	Prompter store.Prompter

	// IDs overrides the row and image id source (for testing).
	// If nil, the session uses model.NewClock().
	IDs model.IDSource

	// Downloader overrides where exported archives go (for testing).
	// If nil, archives are written to the export directory.
	Downloader export.Downloader

	cfg    config.Config
	logger *slog.Logger
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the inventario CLI.
func NewRootCommand() *cobra.Command {
	return newRootCommand(&RootOptions{Env: os.Environ()})
}

func newRootCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "inventario",
		Short: "inventario - forestry inventory field data",
		Long: `Record forestry inventories offline: plot metadata, one row per measured
tree and photographs, stored in a local database and exported as a zip archive.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return opts.setup(cmd)
		},
	}

	// Global flags
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().StringVar(&opts.DB, "db", "", "path to the inventory database")
	cmd.PersistentFlags().StringVar(&opts.Engine, "engine", "", "storage engine (sqlite|bolt)")
	cmd.PersistentFlags().StringVar(&opts.Config, "config", "", "config file (.yaml or .jsonc)")
	cmd.PersistentFlags().BoolVarP(&opts.Yes, "yes", "y", false, "answer yes to every confirmation")

	// Add subcommands
	cmd.AddCommand(NewInventoryCommand(opts))
	cmd.AddCommand(NewRowCommand(opts))
	cmd.AddCommand(NewImageCommand(opts))
	cmd.AddCommand(NewExportCommand(opts))
	cmd.AddCommand(NewShellCommand(opts))

	return cmd
}

// setup validates global flags, then loads configuration and the logger.
// Flags override config values.
func (o *RootOptions) setup(cmd *cobra.Command) error {
	if !isValidFormat(o.Format) {
		return NewExitError(ExitCommandError, fmt.Sprintf("invalid format %q: must be one of %v", o.Format, ValidFormats))
	}

	cfg, err := config.Load(o.Config, o.Env)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load config", err)
	}
	flags := cmd.Flags()
	if flags.Changed("db") {
		cfg.DB = o.DB
	}
	if flags.Changed("engine") {
		cfg.Engine = o.Engine
	}
	if err := cfg.Validate(); err != nil {
		return WrapExitError(ExitCommandError, "invalid options", err)
	}

	logger, err := config.NewLogger(cmd.ErrOrStderr(), cfg.Log, o.Verbose)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to configure logging", err)
	}
	o.cfg = cfg
	o.logger = logger
	return nil
}

// downloader returns where archives exported to dir are written.
func (o *RootOptions) downloader(dir string) export.Downloader {
	if o.Downloader != nil {
		return o.Downloader
	}
	if dir == "" {
		dir = o.cfg.ExportDir
	}
	return FileDownloader{Dir: dir}
}

// formatter returns an OutputFormatter writing to the command's streams.
func (o *RootOptions) formatter(cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{
		Format:    o.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   o.Verbose,
	}
}

// openSession opens the configured database. The returned function closes
// the session and any terminal prompter.
func (o *RootOptions) openSession(cmd *cobra.Command, prompter store.Prompter) (*store.Session, func(), error) {
	var closePrompter func()
	if prompter == nil {
		prompter = o.Prompter
	}
	if prompter == nil {
		if o.Yes {
			prompter = store.AlwaysConfirm{}
		} else {
			lp := NewLinerPrompter(cmd.OutOrStdout())
			prompter = lp
			closePrompter = lp.Close
		}
	}

	o.logger.Debug("opening database", "path", o.cfg.DB, "engine", o.cfg.Engine)
	s, err := store.Open(cmd.Context(), store.Options{
		Path:     o.cfg.DB,
		Engine:   o.cfg.Engine,
		IDs:      o.IDs,
		Prompter: prompter,
		Logger:   o.logger,
	})
	if err != nil {
		if closePrompter != nil {
			closePrompter()
		}
		return nil, nil, WrapExitError(ExitCommandError, "failed to open database", err)
	}

	return s, func() {
		if closeErr := s.Close(); closeErr != nil {
			o.logger.Error("error closing database", "error", closeErr)
		}
		if closePrompter != nil {
			closePrompter()
		}
	}, nil
}

// finish turns an operation error into CLI output and an exit code.
// Declined confirmations and empty exports are notices, not failures.
func (o *RootOptions) finish(cmd *cobra.Command, err error) error {
	if err == nil {
		return nil
	}
	out := o.formatter(cmd)

	var exitErr *ExitError
	switch {
	case errors.Is(err, store.ErrNotConfirmed):
		return out.Notice("Cancelled.")
	case errors.Is(err, export.ErrEmptyExport):
		return out.Notice(err.Error())
	case errors.As(err, &exitErr):
		return err
	case errors.Is(err, kv.ErrStoreUnavailable):
		return WrapExitError(ExitCommandError, "database unavailable", err)
	}

	o.logger.Debug("operation failed", "error", err)
	if o.Format == "json" {
		_ = out.Failure(err)
	}
	return WrapExitError(ExitFailure, "operation failed", err)
}

// isValidFormat checks if the format is one of the allowed values.
func isValidFormat(format string) bool {
	return slices.Contains(ValidFormats, format)
}
