package relational

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/xwb1989/sqlparser"
	"go.uber.org/zap"

	chatdberrors "github.com/shakram02/go-chatdb/internal/errors"
)

// ScriptExtension is the only file type accepted for relational uploads.
const ScriptExtension = ".sql"

// IngestFile applies a SQL script file statement by statement.
func (s *Store) IngestFile(ctx context.Context, path string) (int, error) {
	if !strings.EqualFold(filepath.Ext(path), ScriptExtension) {
		return 0, chatdberrors.Newf(chatdberrors.ErrTypeValidation, "invalid file format for %s: %s", s.dialect.Name(), path).
			WithSuggestion("Provide a .sql file")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return 0, chatdberrors.Newf(chatdberrors.ErrTypeFileSystem, "file not found: %s", path)
		}
		return 0, chatdberrors.Wrapf(err, chatdberrors.ErrTypeFileSystem, "failed to read %s", path)
	}

	return s.ExecScript(ctx, string(data))
}

// ExecScript splits a script into statements and executes them in order. It
// stops at the first failing statement and returns how many succeeded.
func (s *Store) ExecScript(ctx context.Context, script string) (int, error) {
	pieces, err := sqlparser.SplitStatementToPieces(script)
	if err != nil {
		return 0, chatdberrors.Wrap(err, chatdberrors.ErrTypeParse, "failed to split SQL script")
	}

	executed := 0
	for i, piece := range pieces {
		statement := strings.TrimSpace(piece)
		if statement == "" {
			continue
		}

		if err := s.exec(ctx, statement); err != nil {
			return executed, chatdberrors.Wrapf(err, chatdberrors.ErrTypeExecution, "statement %d failed", i+1)
		}
		executed++
	}

	s.logger.Info("script executed",
		zap.String("database", s.databaseName),
		zap.Int("statements", executed))
	return executed, nil
}

// DropTables drops the named tables after checking each against the live
// table list.
func (s *Store) DropTables(ctx context.Context, names []string) error {
	existing, err := s.ListTables(ctx)
	if err != nil {
		return err
	}
	known := make(map[string]bool, len(existing))
	for _, name := range existing {
		known[name] = true
	}
	for _, name := range names {
		if !known[name] {
			return chatdberrors.Newf(chatdberrors.ErrTypeValidation, "unknown table %q", name)
		}
	}

	for _, name := range names {
		if err := s.exec(ctx, "DROP TABLE "+s.dialect.QuoteIdent(name)); err != nil {
			return chatdberrors.Wrapf(err, chatdberrors.ErrTypeExecution, "failed to drop table %q", name)
		}
		s.logger.Info("table dropped", zap.String("table", name))
	}
	return nil
}

// EnsureDatabase creates the named database unless it already exists.
func (s *Store) EnsureDatabase(ctx context.Context, name string) error {
	m, err := s.manager()
	if err != nil {
		return err
	}

	query, args := m.DatabaseExistsQuery(name)
	found, err := s.queryStrings(ctx, query, args...)
	if err != nil {
		return chatdberrors.Wrapf(err, chatdberrors.ErrTypeExecution, "failed to look up database %q", name)
	}
	if len(found) > 0 {
		return nil
	}

	if err := s.exec(ctx, m.CreateDatabaseStatement(name)); err != nil {
		return chatdberrors.Wrapf(err, chatdberrors.ErrTypeExecution, "failed to create database %q", name)
	}
	s.logger.Info("database created", zap.String("database", name))
	return nil
}

// SwitchDatabase reconnects to another database on the same server.
func (s *Store) SwitchDatabase(ctx context.Context, name string) error {
	m, err := s.manager()
	if err != nil {
		return err
	}

	dsn, err := m.WithDatabase(s.dsn, name)
	if err != nil {
		return err
	}
	db, err := openDB(ctx, s.dialect, dsn, s.opts)
	if err != nil {
		return err
	}

	_ = s.db.Close()
	s.db, s.dsn, s.databaseName = db, dsn, name
	s.logger.Info("switched database", zap.String("database", name))
	return nil
}

// ListDatabases lists the user databases on the server.
func (s *Store) ListDatabases(ctx context.Context) ([]string, error) {
	m, err := s.manager()
	if err != nil {
		return nil, err
	}
	names, err := s.queryStrings(ctx, m.ListDatabasesQuery())
	if err != nil {
		return nil, chatdberrors.Wrap(err, chatdberrors.ErrTypeExecution, "failed to list databases")
	}
	return names, nil
}

// DropDatabase drops the connected database. The store stays open without
// a current database.
func (s *Store) DropDatabase(ctx context.Context) error {
	dropper, ok := s.dialect.(DatabaseDropper)
	if !ok {
		return chatdberrors.Newf(chatdberrors.ErrTypeUnsupported, "dropping the entire schema is not supported for %s", s.dialect.Name()).
			WithSuggestion("Drop specific tables instead")
	}
	if s.databaseName == "" {
		return chatdberrors.New(chatdberrors.ErrTypeValidation, "no database is currently selected")
	}

	name := s.databaseName
	if err := s.exec(ctx, dropper.DropDatabaseStatement(name)); err != nil {
		return chatdberrors.Wrapf(err, chatdberrors.ErrTypeExecution, "failed to drop database %q", name)
	}
	s.databaseName = ""
	s.logger.Info("database dropped", zap.String("database", name))
	return nil
}

func (s *Store) manager() (DatabaseManager, error) {
	m, ok := s.dialect.(DatabaseManager)
	if !ok {
		return nil, chatdberrors.Newf(chatdberrors.ErrTypeUnsupported, "%s does not support switching databases", s.dialect.Name())
	}
	return m, nil
}

func (s *Store) exec(ctx context.Context, statement string) error {
	ctx, cancel := s.statementContext(ctx)
	defer cancel()
	_, err := s.db.ExecContext(ctx, statement)
	return err
}
