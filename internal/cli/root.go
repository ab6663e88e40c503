package cli

import (
	"fmt"
	"io"
	"log/slog"
	"slices"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/gymtrack/internal/config"
	"github.com/roach88/gymtrack/internal/engine"
	"github.com/roach88/gymtrack/internal/model"
	"github.com/roach88/gymtrack/internal/store"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose    bool
	Format     string // "json" | "text"
	ConfigPath string
	Database   string
	Actor      string
	Role       string

	// Clock and IDs override the engine defaults (for testing).
	Clock engine.Clock
	IDs   engine.IDGenerator
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the gymtrack CLI.
func NewRootCommand() *cobra.Command {
	return newRootCommand(&RootOptions{})
}

func newRootCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "gymtrack",
		Short: "gymtrack - gym machine reservations",
		Long: `Book gym machines in fixed time increments, track their status and
let the reconciler move reservations through their lifecycle.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !isValidFormat(opts.Format) {
				return NewExitError(ExitCommandError,
					fmt.Sprintf("invalid format %q: must be one of %v", opts.Format, ValidFormats))
			}
			return nil
		},
	}

	// Global flags
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().StringVar(&opts.ConfigPath, "config", "", "config file (default "+config.Path()+")")
	cmd.PersistentFlags().StringVar(&opts.Database, "db", "", "path to SQLite database (overrides config)")
	cmd.PersistentFlags().StringVar(&opts.Actor, "actor", "", "id of the user performing the command")
	cmd.PersistentFlags().StringVar(&opts.Role, "role", "member", "role of the actor (member|trainer|admin)")

	cmd.AddCommand(NewServeCommand(opts))
	cmd.AddCommand(NewTickCommand(opts))
	cmd.AddCommand(NewBookCommand(opts))
	cmd.AddCommand(NewCancelCommand(opts))
	cmd.AddCommand(NewUpcomingCommand(opts))
	cmd.AddCommand(NewAvailabilityCommand(opts))
	cmd.AddCommand(NewResourceCommand(opts))
	cmd.AddCommand(NewConfigCommand(opts))

	return cmd
}

// isValidFormat checks if the format is one of the allowed values.
func isValidFormat(format string) bool {
	return slices.Contains(ValidFormats, format)
}

// output builds the formatter for cmd.
func (o *RootOptions) output(cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{
		Format:    o.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   o.Verbose,
	}
}

// configPath returns --config or the default location.
func (o *RootOptions) configPath() string {
	if o.ConfigPath != "" {
		return o.ConfigPath
	}
	return config.Path()
}

// loadConfig reads the config file and applies flag overrides.
func (o *RootOptions) loadConfig() (*config.Config, error) {
	cfg, err := config.Load(o.configPath())
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to load config", err)
	}
	if o.Database != "" {
		cfg.Database = o.Database
	}
	return cfg, nil
}

// actor resolves --actor and --role.
func (o *RootOptions) actor() (model.Actor, error) {
	if strings.TrimSpace(o.Actor) == "" {
		return model.Actor{}, NewExitError(ExitCommandError, "--actor is required")
	}
	role, err := model.ParseRole(o.Role)
	if err != nil {
		return model.Actor{}, WrapExitError(ExitCommandError, "invalid --role", err)
	}
	return model.Actor{ID: strings.TrimSpace(o.Actor), Role: role}, nil
}

// newLogger builds the stderr text logger. --verbose forces debug.
func newLogger(w io.Writer, level string, verbose bool) (*slog.Logger, error) {
	parsed, err := parseLevel(level)
	if err != nil {
		return nil, err
	}
	if verbose {
		parsed = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: parsed})), nil
}

func parseLevel(level string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "", "info":
		return slog.LevelInfo, nil
	case "debug":
		return slog.LevelDebug, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return 0, fmt.Errorf("unknown log level %q", level)
}

// app is everything a command needs to talk to the database.
type app struct {
	cfg    *config.Config
	store  *store.Store
	svc    *engine.Service
	logger *slog.Logger
	out    *OutputFormatter
}

// open loads config, configures logging and opens the store.
func (o *RootOptions) open(cmd *cobra.Command) (*app, error) {
	cfg, err := o.loadConfig()
	if err != nil {
		return nil, err
	}

	logger, err := newLogger(cmd.ErrOrStderr(), cfg.LogLevel, o.Verbose)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "invalid log level", err)
	}
	slog.SetDefault(logger)

	logger.Debug("opening database", "path", cfg.Database, "driver", cfg.Driver)
	st, err := store.Open(cfg.Database, store.WithDriver(cfg.Driver))
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to open database", err)
	}

	svcOpts := []engine.Option{
		engine.WithGranularity(cfg.GranularityMinutes),
		engine.WithMaxMinutes(cfg.MaxMinutes),
		engine.WithLogger(logger),
	}
	if o.Clock != nil {
		svcOpts = append(svcOpts, engine.WithClock(o.Clock))
	}
	if o.IDs != nil {
		svcOpts = append(svcOpts, engine.WithIDGenerator(o.IDs))
	}

	return &app{
		cfg:    cfg,
		store:  st,
		svc:    engine.New(st, svcOpts...),
		logger: logger,
		out:    o.output(cmd),
	}, nil
}

// reconciler builds a reconciler sharing the app's store and clock.
func (a *app) reconciler(o *RootOptions, opts ...engine.ReconcilerOption) *engine.Reconciler {
	base := []engine.ReconcilerOption{
		engine.WithInterval(a.cfg.TickInterval.Std()),
		engine.WithReconcilerLogger(a.logger),
	}
	if o.Clock != nil {
		base = append(base, engine.WithReconcilerClock(o.Clock))
	}
	return engine.NewReconciler(a.store, append(base, opts...)...)
}

func (a *app) Close() {
	if err := a.store.Close(); err != nil {
		a.logger.Error("error closing database", "error", err)
	}
}
