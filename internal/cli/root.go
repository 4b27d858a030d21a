package cli

import (
	"context"
	"errors"
	"io"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/shakram02/go-chatdb/internal/config"
	"github.com/shakram02/go-chatdb/internal/logging"
	"github.com/shakram02/go-chatdb/internal/session"
)

// NewRootCommand creates the chatdb command. It takes no arguments: every
// connection detail is prompted for, and tuning comes from CHATDB_ variables
// or a .env file.
func NewRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "chatdb",
		Short: "ChatDB - explore databases through generated queries",
		Long: "An interactive menu for MySQL, PostgreSQL, SQLite, DuckDB and MongoDB that shows\n" +
			"the schema, generates validated sample queries and translates simple\n" +
			"natural-language requests into queries.",
		Args: func(cmd *cobra.Command, args []string) error {
			if err := cobra.NoArgs(cmd, args); err != nil {
				return WrapExitError(ExitCommandError, "invalid arguments", err)
			}
			return nil
		},
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), cmd.InOrStdin(), cmd.OutOrStdout(), cmd.ErrOrStderr())
		},
	}

	return cmd
}

func run(ctx context.Context, stdin io.Reader, stdout, stderr io.Writer) error {
	cfg, err := config.Load()
	if err != nil {
		return WrapExitError(ExitCommandError, "configuration error", err)
	}

	logger, closeLogger, err := logging.New(cfg.Logging)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to set up logging", err)
	}
	defer closeLogger()

	prompter := newPrompter(stdin, stdout)
	defer prompter.Close()

	s, err := session.New(session.Options{
		Config:   cfg,
		Prompter: prompter,
		Out:      stdout,
		Progress: stderr,
		Logger:   logger,
	})
	if err != nil {
		return WrapExitError(ExitFailure, "failed to start session", err)
	}

	if err := s.Run(ctx); err != nil {
		if errors.Is(err, context.Canceled) {
			logger.Info("session interrupted", zap.String("session", s.ID()))
			return nil
		}
		return WrapExitError(ExitFailure, "session failed", err)
	}
	return nil
}

func newPrompter(stdin io.Reader, stdout io.Writer) session.Prompter {
	if f, ok := stdin.(*os.File); ok {
		return session.NewPrompter(f, stdout)
	}
	return session.NewLinePrompter(stdin, stdout, true)
}
