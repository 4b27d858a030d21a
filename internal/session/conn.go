package session

import (
	"context"

	"go.uber.org/zap"

	"github.com/shakram02/go-chatdb/internal/catalog"
	"github.com/shakram02/go-chatdb/internal/config"
	"github.com/shakram02/go-chatdb/internal/document"
	"github.com/shakram02/go-chatdb/internal/relational"
	"github.com/shakram02/go-chatdb/internal/schema"
)

// Kind is a store the main menu can connect to. Values are menu numbers.
type Kind int

const (
	KindMySQL Kind = iota + 1
	KindMongoDB
	KindPostgreSQL
	KindSQLite
	KindDuckDB
)

var kindNames = map[Kind]string{
	KindMySQL:      "MySQL",
	KindMongoDB:    "MongoDB",
	KindPostgreSQL: "PostgreSQL",
	KindSQLite:     "SQLite",
	KindDuckDB:     "DuckDB",
}

var kindDrivers = map[Kind]string{
	KindMySQL:      "mysql",
	KindPostgreSQL: "postgres",
	KindSQLite:     "sqlite",
	KindDuckDB:     "duckdb",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return "unknown"
}

// Target is what the connection prompts collected.
type Target struct {
	Kind     Kind
	Params   relational.ConnParams
	URI      string // MongoDB only
	Database string // MongoDB only
}

// Conn is the open connection a session works against.
type Conn interface {
	catalog.Executor
	Label() string
	DatabaseName() string
	Store() catalog.Store
	SQLDialect() catalog.SQLDialect
	Introspect(ctx context.Context) (*schema.Schema, error)
	// ListTargets lists table or collection names.
	ListTargets(ctx context.Context) ([]string, error)
	Close(ctx context.Context) error
}

// Opener opens a connection to a target.
type Opener func(ctx context.Context, t Target) (Conn, error)

// DefaultOpener opens real stores tuned by the connection configuration.
func DefaultOpener(cfg config.ConnectionConfig, logger *zap.Logger) Opener {
	return func(ctx context.Context, t Target) (Conn, error) {
		if t.Kind == KindMongoDB {
			store, err := document.Open(ctx, t.URI, t.Database, document.Options{
				ConnectTimeout: cfg.ConnectTimeout,
				QueryTimeout:   cfg.QueryTimeout,
				Logger:         logger,
			})
			if err != nil {
				return nil, err
			}
			return &documentConn{store: store}, nil
		}

		d, err := relational.Lookup(kindDrivers[t.Kind])
		if err != nil {
			return nil, err
		}
		dsn, err := d.BuildDSN(t.Params)
		if err != nil {
			return nil, err
		}
		store, err := relational.Open(ctx, d, dsn, relational.Options{
			MaxOpenConns:   cfg.MaxOpenConns,
			MaxIdleConns:   cfg.MaxIdleConns,
			ConnectTimeout: cfg.ConnectTimeout,
			QueryTimeout:   cfg.QueryTimeout,
			Logger:         logger,
		})
		if err != nil {
			return nil, err
		}
		return &relationalConn{store: store}, nil
	}
}

type relationalConn struct {
	store *relational.Store
}

func (c *relationalConn) Execute(ctx context.Context, q catalog.Query, limit int) (*catalog.Result, error) {
	return c.store.Execute(ctx, q, limit)
}

func (c *relationalConn) Label() string                  { return c.store.Dialect().Name() }
func (c *relationalConn) DatabaseName() string           { return c.store.DatabaseName() }
func (c *relationalConn) Store() catalog.Store           { return catalog.StoreRelational }
func (c *relationalConn) SQLDialect() catalog.SQLDialect { return c.store.Dialect() }

func (c *relationalConn) Introspect(ctx context.Context) (*schema.Schema, error) {
	return c.store.Introspect(ctx)
}

func (c *relationalConn) ListTargets(ctx context.Context) ([]string, error) {
	return c.store.ListTables(ctx)
}

func (c *relationalConn) Close(context.Context) error {
	return c.store.Close()
}

// manager reports whether the dialect can create and switch databases.
func (c *relationalConn) manager() bool {
	_, ok := c.store.Dialect().(relational.DatabaseManager)
	return ok
}

// dropper reports whether the dialect can drop the whole database.
func (c *relationalConn) dropper() bool {
	_, ok := c.store.Dialect().(relational.DatabaseDropper)
	return ok
}

type documentConn struct {
	store *document.Store
}

func (c *documentConn) Execute(ctx context.Context, q catalog.Query, limit int) (*catalog.Result, error) {
	return c.store.Execute(ctx, q, limit)
}

func (c *documentConn) Label() string                  { return document.StoreName }
func (c *documentConn) DatabaseName() string           { return c.store.DatabaseName() }
func (c *documentConn) Store() catalog.Store           { return catalog.StoreDocument }
func (c *documentConn) SQLDialect() catalog.SQLDialect { return nil }

func (c *documentConn) Introspect(ctx context.Context) (*schema.Schema, error) {
	return c.store.Introspect(ctx)
}

func (c *documentConn) ListTargets(ctx context.Context) ([]string, error) {
	return c.store.ListCollections(ctx)
}

func (c *documentConn) Close(ctx context.Context) error {
	return c.store.Close(ctx)
}
