package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/roach88/datastack/internal/config"
	"github.com/roach88/datastack/internal/stack"
)

// openStack opens the stack behind every session. Tests replace it.
var openStack = stack.New

// session is one command's open stack.
type session struct {
	stack  *stack.Stack
	logger *slog.Logger
	out    *OutputFormatter
}

// openSession loads the config and opens its stack. Errors are command
// errors: nothing ran yet.
func openSession(opts *RootOptions, cmd *cobra.Command) (*session, error) {
	cfg, path, err := loadConfig(opts)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to load config", err)
	}

	logger := newLogger(cfg.Log, opts.Verbose, cmd.ErrOrStderr())
	if path == "" {
		logger.Debug("no config file found, using defaults")
	} else {
		logger.Debug("config loaded", "path", path)
	}

	s, err := openStack(*cfg,
		stack.WithLogger(logger),
		stack.WithErrorLogger(stack.NewConsoleLogger(cmd.ErrOrStderr())),
	)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to open store", err)
	}

	return &session{stack: s, logger: logger, out: opts.formatter(cmd)}, nil
}

func loadConfig(opts *RootOptions) (*config.Config, string, error) {
	if opts.ConfigPath != "" {
		return config.LoadFromPath(opts.ConfigPath)
	}
	return config.Load()
}

// newLogger builds the slog logger from the log section of the config.
// --verbose forces debug level.
func newLogger(lc config.LogConfig, verbose bool, w io.Writer) *slog.Logger {
	level := slog.LevelInfo
	if err := level.UnmarshalText([]byte(lc.Level)); err != nil {
		level = slog.LevelInfo
	}
	if verbose {
		level = slog.LevelDebug
	}

	handlerOpts := &slog.HandlerOptions{Level: level}
	if lc.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, handlerOpts))
	}
	return slog.New(slog.NewTextHandler(w, handlerOpts))
}

// persist saves the foreground and root synchronously.
func (s *session) persist(ctx context.Context) error {
	var saveErr error
	s.stack.Persist(ctx, true, func(err error) { saveErr = err })
	if saveErr != nil {
		return WrapExitError(ExitFailure, "failed to save", saveErr)
	}
	return nil
}

// fetch runs a foreground fetch and reports its error, unlike
// Stack.FetchMany which only logs it.
func (s *session) fetch(ctx context.Context, entity string, opts ...stack.FetchOption) ([]*stack.Object, error) {
	objs, err := s.stack.Foreground().Fetch(ctx, s.stack.NewRequest(entity, opts...))
	if err != nil {
		_ = s.out.Error(ErrCodeFetch, err.Error(), nil)
		return nil, WrapExitError(ExitFailure, "failed to fetch "+entity, err)
	}
	return objs, nil
}

func (s *session) close() {
	if err := s.stack.Close(); err != nil {
		s.logger.Error("error closing store", "error", err)
	}
}

// entity checks that name is declared by the model.
func (s *session) entity(name string) error {
	if _, ok := s.stack.Model().Entity(name); !ok {
		return NewExitError(ExitCommandError,
			fmt.Sprintf("unknown entity %q (known: %v)", name, s.stack.Model().EntityNames()))
	}
	return nil
}
