// Package session runs the interactive ChatDB menus as an explicit state
// machine over one open connection.
package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/shakram02/go-chatdb/internal/catalog"
	"github.com/shakram02/go-chatdb/internal/config"
	chatdberrors "github.com/shakram02/go-chatdb/internal/errors"
	"github.com/shakram02/go-chatdb/internal/logging"
	"github.com/shakram02/go-chatdb/internal/nlq"
)

// State is a menu the session is in.
type State int

const (
	StateMain State = iota
	StateStore
	StateQueries
	StateExit
)

func (s State) String() string {
	switch s {
	case StateMain:
		return "main"
	case StateStore:
		return "store"
	case StateQueries:
		return "queries"
	case StateExit:
		return "exit"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// Options configures a Session. Prompter and Out are required.
type Options struct {
	Config   *config.Config
	Prompter Prompter
	Out      io.Writer
	Progress io.Writer // spinner output, nil disables it
	Opener   Opener    // DefaultOpener when nil
	Logger   *zap.Logger
}

// Session is one interactive run of the tool.
type Session struct {
	id      string
	cfg     *config.Config
	in      Prompter
	out     *Printer
	open    Opener
	catalog *catalog.Catalog
	rules   *nlq.Rules
	logger  *zap.Logger

	conn       Conn
	generator  *catalog.Generator
	translator *nlq.Translator
	generated  []catalog.Query
}

type menuItem struct {
	label string
	run   func(ctx context.Context) (State, error)
}

// New builds a session with the built-in template and pattern catalogs.
func New(opts Options) (*Session, error) {
	if opts.Prompter == nil || opts.Out == nil {
		return nil, chatdberrors.New(chatdberrors.ErrTypeInternal, "a session needs a prompter and an output writer")
	}
	cfg := opts.Config
	if cfg == nil {
		cfg = config.Default()
	}

	c, err := catalog.Default()
	if err != nil {
		return nil, chatdberrors.Wrap(err, chatdberrors.ErrTypeConfig, "failed to load query templates")
	}
	rules, err := nlq.DefaultRules()
	if err != nil {
		return nil, chatdberrors.Wrap(err, chatdberrors.ErrTypeConfig, "failed to load natural language patterns")
	}

	id := uuid.NewString()
	logger := logging.OrNop(opts.Logger).With(zap.String("session", id))

	open := opts.Opener
	if open == nil {
		open = DefaultOpener(cfg.Connection, logger)
	}

	return &Session{
		id:      id,
		cfg:     cfg,
		in:      opts.Prompter,
		out:     NewPrinter(opts.Out, opts.Progress, cfg.Terminal),
		open:    open,
		catalog: c,
		rules:   rules,
		logger:  logger,
	}, nil
}

// ID identifies the session in logs.
func (s *Session) ID() string { return s.id }

// Run loops over the menus until the user exits or input ends. Operation
// failures are printed and never end the session; only a cancelled context
// or a broken prompter is returned.
func (s *Session) Run(ctx context.Context) error {
	s.logger.Info("session started")
	defer s.disconnect(context.WithoutCancel(ctx))

	state := StateMain
	for state != StateExit {
		if err := ctx.Err(); err != nil {
			return err
		}

		next, err := s.step(ctx, state)
		if errors.Is(err, io.EOF) {
			s.logger.Info("input closed")
			break
		}
		if err != nil {
			return err
		}

		if next != state {
			s.logger.Debug("state transition",
				zap.Stringer("from", state),
				zap.Stringer("to", next))
		}
		state = next
	}

	s.out.Info("Exiting ChatDB. Have a good day :)")
	return nil
}

func (s *Session) step(ctx context.Context, state State) (State, error) {
	switch state {
	case StateMain:
		return s.mainMenu(ctx)
	case StateStore:
		if s.conn == nil {
			return StateMain, nil
		}
		return s.storeMenu(ctx)
	case StateQueries:
		if s.conn == nil {
			return StateMain, nil
		}
		return s.queriesMenu(ctx)
	}
	return StateExit, chatdberrors.Newf(chatdberrors.ErrTypeInternal, "unknown session state %s", state)
}

// menu prints numbered items with a trailing "0" entry and runs the chosen
// one. Invalid input stays in current.
func (s *Session) menu(ctx context.Context, current State, title string, items []menuItem, back menuItem) (State, error) {
	s.out.Heading("%s", title)
	for i, item := range items {
		s.out.Info("%d. %s", i+1, item.label)
	}
	s.out.Info("0. %s", back.label)

	answer, err := s.in.Prompt(fmt.Sprintf("Choose an option (0-%d): ", len(items)))
	if err != nil {
		return current, err
	}

	n, convErr := strconv.Atoi(strings.TrimSpace(answer))
	switch {
	case convErr != nil || n < 0 || n > len(items):
		s.out.Info("Invalid choice. Please enter a number from 0 to %d.", len(items))
		return current, nil
	case n == 0:
		return back.run(ctx)
	}
	return items[n-1].run(ctx)
}

func (s *Session) mainMenu(ctx context.Context) (State, error) {
	var items []menuItem
	for kind := KindMySQL; kind <= KindDuckDB; kind++ {
		items = append(items, menuItem{
			label: "Connect to " + kind.String(),
			run:   func(ctx context.Context) (State, error) { return s.connect(ctx, kind) },
		})
	}
	exit := menuItem{label: "Exit", run: func(context.Context) (State, error) { return StateExit, nil }}
	return s.menu(ctx, StateMain, "--- ChatDB Main Menu ---", items, exit)
}

func (s *Session) storeMenu(ctx context.Context) (State, error) {
	n := s.nouns()
	features := s.cfg.Features

	items := []menuItem{{label: fmt.Sprintf("Show %s and %s", n.items, n.fields), run: s.showSchema}}
	if features.Upload {
		items = append(items, menuItem{label: "Upload a dataset", run: s.upload})
	}
	if features.Drop {
		items = append(items, menuItem{label: fmt.Sprintf("Drop %s or the %s", n.items, n.scope), run: s.drop})
	}
	items = append(items, menuItem{
		label: "Sample queries",
		run:   func(context.Context) (State, error) { return StateQueries, nil },
	})
	if features.NaturalLanguage {
		items = append(items, menuItem{label: "Enter a natural language query", run: s.naturalLanguage})
	}

	back := menuItem{label: "Back to main menu", run: func(ctx context.Context) (State, error) {
		s.disconnect(ctx)
		return StateMain, nil
	}}
	return s.menu(ctx, StateStore, fmt.Sprintf("--- %s Options ---", s.conn.Label()), items, back)
}

func (s *Session) queriesMenu(ctx context.Context) (State, error) {
	items := []menuItem{{label: "Generate sample queries", run: s.sampleQueries}}
	if s.cfg.Features.Constructs {
		names := s.catalog.ConstructNames(s.conn.Store())
		if len(names) > 2 {
			names = names[:2]
		}
		items = append(items, menuItem{
			label: fmt.Sprintf("Generate queries with specific constructs (e.g., %s)", strings.Join(names, ", ")),
			run:   s.constructQueries,
		})
	}
	items = append(items, menuItem{label: "Execute a generated query", run: s.executeGenerated})

	back := menuItem{label: "Back", run: func(context.Context) (State, error) { return StateStore, nil }}
	return s.menu(ctx, StateQueries, "What would you like to do next?", items, back)
}

func (s *Session) connect(ctx context.Context, kind Kind) (State, error) {
	target, err := s.promptTarget(kind)
	if err != nil {
		return StateMain, err
	}

	stop := s.out.Spin("Connecting to " + kind.String())
	conn, err := s.open(ctx, target)
	stop()
	if err != nil {
		s.report(err)
		return StateMain, nil
	}

	if err := s.attach(conn); err != nil {
		_ = conn.Close(ctx)
		s.report(err)
		return StateMain, nil
	}
	s.out.Info("Connected to %s database '%s'.", conn.Label(), conn.DatabaseName())

	if conn.Store() == catalog.StoreDocument {
		if names, err := conn.ListTargets(ctx); err == nil && len(names) == 0 {
			s.out.Info("Database '%s' has no collections yet. Upload a dataset to get started.", conn.DatabaseName())
		}
	}
	return StateStore, nil
}

func (s *Session) promptTarget(kind Kind) (Target, error) {
	t := Target{Kind: kind}
	var err error
	switch kind {
	case KindMongoDB:
		if t.URI, err = s.ask("Enter the MongoDB connection string", "mongodb://"+s.cfg.Connection.DefaultHost+":27017"); err != nil {
			return t, err
		}
		t.Database, err = s.ask("Enter the MongoDB database name", "")
		return t, err

	case KindSQLite, KindDuckDB:
		t.Params.Path, err = s.ask(fmt.Sprintf("Enter the %s database file path", kind), "")
		return t, err
	}

	port := "3306"
	if kind == KindPostgreSQL {
		port = "5432"
	}
	p := &t.Params
	if p.Host, err = s.ask(fmt.Sprintf("Enter %s host", kind), s.cfg.Connection.DefaultHost); err != nil {
		return t, err
	}
	if p.Port, err = s.ask(fmt.Sprintf("Enter %s port", kind), port); err != nil {
		return t, err
	}
	if p.User, err = s.ask(fmt.Sprintf("Enter %s username", kind), ""); err != nil {
		return t, err
	}
	if p.Password, err = s.in.PromptPassword(fmt.Sprintf("Enter %s password: ", kind)); err != nil {
		return t, err
	}
	if p.Database, err = s.ask(fmt.Sprintf("Enter %s database name", kind), ""); err != nil {
		return t, err
	}
	if kind == KindPostgreSQL {
		p.SSLMode, err = s.ask("Enter PostgreSQL SSL mode", "prefer")
	}
	return t, err
}

// attach makes conn the session's connection and builds the generator and
// translator for its store kind.
func (s *Session) attach(conn Conn) error {
	strategy := s.cfg.Matcher.RelationalMatch
	if conn.Store() == catalog.StoreDocument {
		strategy = s.cfg.Matcher.DocumentMatch
	}

	translator, err := nlq.NewTranslator(s.rules, conn.Store(), conn.SQLDialect(), nlq.Options{
		Strategy: strategy,
		Cutoff:   s.cfg.Matcher.Cutoff,
		Logger:   s.logger,
	})
	if err != nil {
		return err
	}

	s.conn = conn
	s.translator = translator
	s.generated = nil
	s.generator = catalog.NewGenerator(s.catalog, conn.Store(), conn, conn.SQLDialect(), catalog.GeneratorOptions{
		AttemptFactor: s.cfg.Generator.AttemptFactor,
		Seed:          s.cfg.Generator.Seed,
		Logger:        s.logger,
		OnCandidate: func(q catalog.Query) {
			s.logger.Debug("validating candidate",
				zap.String("target", q.Target),
				zap.String("template", q.Template))
		},
	})
	return nil
}

func (s *Session) disconnect(ctx context.Context) {
	if s.conn == nil {
		return
	}
	if err := s.conn.Close(ctx); err != nil {
		s.logger.Warn("failed to close connection", zap.Error(err))
	}
	s.conn, s.generator, s.translator, s.generated = nil, nil, nil, nil
}

// ask prompts for a value, falling back to def on an empty answer.
func (s *Session) ask(label, def string) (string, error) {
	if def != "" {
		label = fmt.Sprintf("%s (default: '%s')", label, def)
	}
	answer, err := s.in.Prompt(label + ": ")
	if err != nil {
		return "", err
	}
	answer = strings.TrimSpace(answer)
	if answer == "" {
		return def, nil
	}
	return answer, nil
}

func (s *Session) confirm(question string) (bool, error) {
	answer, err := s.in.Prompt(question + " (yes/no): ")
	if err != nil {
		return false, err
	}
	return strings.EqualFold(strings.TrimSpace(answer), "yes"), nil
}

func (s *Session) report(err error) {
	s.logger.Warn("operation failed",
		zap.String("type", string(chatdberrors.GetType(err))),
		zap.Error(err))
	s.out.Error(err)
}

type nouns struct {
	items, Items, fields, scope string
}

func (s *Session) nouns() nouns {
	if s.conn != nil && s.conn.Store() == catalog.StoreDocument {
		return nouns{"collections", "Collections", "fields", "database"}
	}
	return nouns{"tables", "Tables", "columns", "schema"}
}
