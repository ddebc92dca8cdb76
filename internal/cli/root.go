// Package cli wires the ptask command tree onto the task service.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/BuzzLyutic/ptask/internal/config"
	"github.com/BuzzLyutic/ptask/internal/logging"
	"github.com/BuzzLyutic/ptask/internal/model"
	"github.com/BuzzLyutic/ptask/internal/repo"
	"github.com/BuzzLyutic/ptask/internal/service"
	"github.com/BuzzLyutic/ptask/internal/storage"
	"github.com/BuzzLyutic/ptask/pkg/respond"
)

const skipSetup = "ptask/skip-setup"

type globalFlags struct {
	configPath string
	dataFile   string
	debug      bool
	verbose    bool
	jsonOut    bool
}

// App holds what one invocation needs. It is built per process; nothing is global.
type App struct {
	out     io.Writer
	errOut  io.Writer
	version string
	now     func() time.Time

	flags   globalFlags
	cfg     config.Config
	logger  *zap.Logger
	svc     *service.TaskService
	styles  styles
	cleanup func()
}

type Option func(*App)

func WithVersion(v string) Option {
	return func(a *App) { a.version = v }
}

// WithClock pins the time source; tests use it.
func WithClock(now func() time.Time) Option {
	return func(a *App) { a.now = now }
}

func newApp(stdout, stderr io.Writer, opts ...Option) *App {
	a := &App{
		out:     stdout,
		errOut:  stderr,
		version: "dev",
		now:     time.Now,
		logger:  zap.NewNop(),
		cleanup: func() {},
	}
	for _, opt := range opts {
		opt(a)
	}
	a.styles = newStyles(stdout)
	return a
}

// Run executes one command line and returns the process exit code.
func Run(ctx context.Context, args []string, stdout, stderr io.Writer, opts ...Option) int {
	a := newApp(stdout, stderr, opts...)
	defer func() { a.cleanup() }()

	root := a.rootCmd()
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)

	if err := root.ExecuteContext(ctx); err != nil {
		return a.fail(err)
	}
	return 0
}

func (a *App) rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "ptask",
		Short: "Productivity tracker for tasks, time estimates and reports",
		Long: `ptask keeps a list of tasks in a single JSON file and reports on them.

Tasks move from pending to in_progress to completed, or to cancelled.`,
		Version:           a.version,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: a.setup,
		Annotations:       map[string]string{skipSetup: "true"},
		// без Args cobra сама собирает ошибку "unknown command" строкой
		Args: func(cmd *cobra.Command, args []string) error {
			if len(args) > 0 {
				return usageError{fmt.Errorf("unknown command %q for %q", args[0], cmd.CommandPath())}
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}
	root.SetFlagErrorFunc(func(cmd *cobra.Command, err error) error {
		return usageError{err}
	})

	pf := root.PersistentFlags()
	pf.StringVar(&a.flags.configPath, "config", "", "config file (default "+config.DefaultPath()+")")
	pf.StringVar(&a.flags.dataFile, "data-file", "", "task file (overrides PTASK_DATA_FILE)")
	pf.BoolVar(&a.flags.debug, "debug", false, "enable debug logging")
	pf.BoolVar(&a.flags.verbose, "verbose", false, "enable verbose output")
	pf.BoolVar(&a.flags.jsonOut, "json", false, "print results as JSON")

	root.AddCommand(
		a.addCmd(),
		a.listCmd(),
		a.showCmd(),
		a.updateCmd(),
		a.startCmd(),
		a.cancelCmd(),
		a.completeCmd(),
		a.deleteCmd(),
		a.statsCmd(),
		a.reportCmd(),
		a.exportCmd(),
		a.backupCmd(),
		a.configCmd(),
		a.versionCmd(),
	)
	return root
}

// setup loads config and builds logger, storage, repository and service.
func (a *App) setup(cmd *cobra.Command, args []string) error {
	if cmd.Annotations[skipSetup] == "true" {
		return nil
	}

	cfg, err := config.Load(a.flags.configPath)
	if err != nil {
		return &model.ValidationError{Field: "config", Value: a.flags.configPath, Reason: err.Error()}
	}
	if a.flags.dataFile != "" {
		cfg.DataFile = a.flags.dataFile
	}
	a.cfg = cfg

	logger, cleanup, err := logging.New(logging.Options{
		Level:   cfg.LogLevel,
		File:    cfg.LogFile,
		Debug:   a.flags.debug,
		Verbose: a.flags.verbose,
		Stderr:  a.errOut,
	})
	if err != nil {
		return &model.ValidationError{Field: "log", Value: cfg.LogLevel, Reason: err.Error()}
	}
	a.logger, a.cleanup = logger, cleanup
	a.logger.Debug("Debug mode enabled", zap.String("data_file", cfg.DataFile), zap.String("command", cmd.Name()))
	if a.flags.verbose {
		a.logger.Info("Verbose mode enabled")
	}

	store := storage.NewFileStore(cfg.DataFile,
		storage.WithLockTimeout(cfg.LockTimeout),
		storage.WithLogger(logger),
	)
	r := repo.NewTaskRepo(store, repo.WithLogger(logger), repo.WithClock(a.now))
	a.svc = service.NewTaskService(r,
		service.WithLogger(logger),
		service.WithClock(a.now),
		service.WithDefaultCategory(cfg.DefaultCategory),
		service.WithDataFile(cfg.DataFile),
		service.WithWorkers(cfg.Workers),
	)
	return nil
}

// usageError marks bad flags or arguments; it exits like a validation error.
type usageError struct{ err error }

func (e usageError) Error() string { return e.err.Error() }
func (e usageError) Unwrap() error { return e.err }

func exactArgs(n int) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if err := cobra.ExactArgs(n)(cmd, args); err != nil {
			return usageError{err}
		}
		return nil
	}
}

func minArgs(n int) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if err := cobra.MinimumNArgs(n)(cmd, args); err != nil {
			return usageError{err}
		}
		return nil
	}
}

// Exit codes per failure kind.
var exitCodes = map[service.Kind]int{
	service.KindValidation:        2,
	service.KindNotFound:          3,
	service.KindInvalidTransition: 4,
	service.KindCorruptData:       5,
	service.KindBusy:              6,
	service.KindIO:                7,
	service.KindInternal:          1,
}

func describe(err error) service.Failure {
	var ue usageError
	if errors.As(err, &ue) {
		return service.Failure{Kind: service.KindValidation, Message: err.Error()}
	}
	return service.Describe(err)
}

// ExitCode maps an error to the process exit status.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	return exitCodes[describe(err).Kind]
}

func (a *App) fail(err error) int {
	f := describe(err)
	if f.Kind == service.KindInternal {
		a.logger.Error("command failed", zap.Error(err))
	} else {
		a.logger.Debug("command failed", zap.String("kind", string(f.Kind)), zap.Error(err))
	}

	if isReported(err) {
		return exitCodes[f.Kind]
	}
	if a.flags.jsonOut {
		_ = respond.Error(a.out, respond.ErrorBody{Error: f.Message, Kind: string(f.Kind), Field: f.Field, Value: f.Value})
	} else {
		fmt.Fprintln(a.errOut, a.styles.fail.Render("Error: "+f.Message))
	}
	return exitCodes[f.Kind]
}

// print writes v as JSON in --json mode, otherwise calls human.
func (a *App) print(v interface{}, human func(w io.Writer)) error {
	if a.flags.jsonOut {
		return respond.JSON(a.out, v)
	}
	human(a.out)
	return nil
}
