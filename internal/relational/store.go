package relational

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/shakram02/go-chatdb/internal/catalog"
	chatdberrors "github.com/shakram02/go-chatdb/internal/errors"
	"github.com/shakram02/go-chatdb/internal/logging"
)

// Connection pool defaults
const (
	ConnectionTimeout  = 10 * time.Second
	MaxConnectionsIdle = 5
	MaxConnectionsOpen = 10
)

// Options tunes a Store. Zero values fall back to the defaults above.
type Options struct {
	MaxOpenConns   int
	MaxIdleConns   int
	ConnectTimeout time.Duration
	QueryTimeout   time.Duration // 0 disables the per statement timeout
	Logger         *zap.Logger
}

func (o Options) withDefaults() Options {
	if o.MaxOpenConns <= 0 {
		o.MaxOpenConns = MaxConnectionsOpen
	}
	if o.MaxIdleConns <= 0 {
		o.MaxIdleConns = MaxConnectionsIdle
	}
	if o.ConnectTimeout <= 0 {
		o.ConnectTimeout = ConnectionTimeout
	}
	o.Logger = logging.OrNop(o.Logger)
	return o
}

// Store is an open connection to one relational database.
type Store struct {
	db           *sql.DB
	dialect      Dialect
	dsn          string
	databaseName string
	opts         Options
	logger       *zap.Logger
}

var _ catalog.Executor = (*Store)(nil)

// Open connects to the database and verifies the connection with a ping.
func Open(ctx context.Context, d Dialect, dsn string, opts Options) (*Store, error) {
	opts = opts.withDefaults()

	db, err := openDB(ctx, d, dsn, opts)
	if err != nil {
		return nil, err
	}

	s := &Store{
		db:           db,
		dialect:      d,
		dsn:          dsn,
		databaseName: d.DatabaseName(dsn),
		opts:         opts,
		logger:       opts.Logger.With(zap.String("driver", d.DriverName())),
	}
	s.logger.Info("connected", zap.String("database", s.databaseName))
	return s, nil
}

func openDB(ctx context.Context, d Dialect, dsn string, opts Options) (*sql.DB, error) {
	db, err := sql.Open(d.DriverName(), dsn)
	if err != nil {
		return nil, chatdberrors.NewConnectionError(d.Name(), err)
	}

	db.SetMaxIdleConns(opts.MaxIdleConns)
	db.SetMaxOpenConns(opts.MaxOpenConns)
	db.SetConnMaxLifetime(time.Hour)

	pingCtx, cancel := context.WithTimeout(ctx, opts.ConnectTimeout)
	defer cancel()

	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, chatdberrors.NewConnectionError(d.Name(), err)
	}
	return db, nil
}

// Dialect returns the dialect the store was opened with.
func (s *Store) Dialect() Dialect { return s.dialect }

// DatabaseName is the connected database, or "" after it was dropped.
func (s *Store) DatabaseName() string { return s.databaseName }

// Close releases the connection pool.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	s.logger.Info("connection closed", zap.String("database", s.databaseName))
	return s.db.Close()
}

// Execute validates a generated statement as read-only and runs it inside a
// read-only transaction. At most limit rows are fetched when limit is
// positive.
func (s *Store) Execute(ctx context.Context, q catalog.Query, limit int) (*catalog.Result, error) {
	if err := s.dialect.ValidateQuery(q.Statement); err != nil {
		return nil, chatdberrors.Wrap(err, chatdberrors.ErrTypeValidation, "query rejected")
	}
	return s.readOnlyQuery(ctx, q.Statement, q.Args, limit)
}

// readOnlyQuery runs statement on a dedicated connection. The transaction is
// always rolled back.
func (s *Store) readOnlyQuery(ctx context.Context, statement string, args []any, limit int) (*catalog.Result, error) {
	ctx, cancel := s.statementContext(ctx)
	defer cancel()

	conn, err := s.db.Conn(ctx)
	if err != nil {
		return nil, chatdberrors.Wrap(err, chatdberrors.ErrTypeExecution, "failed to acquire connection")
	}
	defer conn.Close()

	tx, err := s.dialect.BeginReadOnly(ctx, conn)
	if err != nil {
		s.endReadOnly(ctx, conn)
		return nil, chatdberrors.Wrap(err, chatdberrors.ErrTypeExecution, "failed to start read-only transaction")
	}

	var result *catalog.Result
	rows, err := tx.QueryContext(ctx, statement, args...)
	if err != nil {
		err = chatdberrors.Wrap(err, chatdberrors.ErrTypeExecution, "query error")
	} else {
		result, err = scanRows(rows, limit)
	}

	if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
		s.logger.Warn("rollback failed", zap.Error(rbErr))
	}
	s.endReadOnly(ctx, conn)
	return result, err
}

// endReadOnly discards conn when it cannot be switched back to read-write.
func (s *Store) endReadOnly(ctx context.Context, conn *sql.Conn) {
	if err := s.dialect.EndReadOnly(context.WithoutCancel(ctx), conn); err != nil {
		s.logger.Warn("discarding connection left read-only", zap.Error(err))
		_ = conn.Raw(func(any) error { return driver.ErrBadConn })
	}
}

func scanRows(rows *sql.Rows, limit int) (*catalog.Result, error) {
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, chatdberrors.Wrap(err, chatdberrors.ErrTypeExecution, "failed to get columns")
	}

	result := &catalog.Result{Columns: columns}
	for rows.Next() {
		if limit > 0 && len(result.Rows) >= limit {
			break
		}

		values := make([]any, len(columns))
		valuePtrs := make([]any, len(columns))
		for i := range values {
			valuePtrs[i] = &values[i]
		}

		if err := rows.Scan(valuePtrs...); err != nil {
			return nil, chatdberrors.Wrapf(err, chatdberrors.ErrTypeExecution, "failed to scan row %d", len(result.Rows)+1)
		}

		for i, val := range values {
			if b, ok := val.([]byte); ok {
				values[i] = string(b)
			}
		}
		result.Rows = append(result.Rows, values)
	}

	if err := rows.Err(); err != nil {
		return nil, chatdberrors.Wrap(err, chatdberrors.ErrTypeExecution, "row iteration error")
	}
	return result, nil
}

func (s *Store) statementContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.opts.QueryTimeout > 0 {
		return context.WithTimeout(ctx, s.opts.QueryTimeout)
	}
	return context.WithCancel(ctx)
}

// queryStrings runs a metadata query returning one string column.
func (s *Store) queryStrings(ctx context.Context, query string, args ...any) ([]string, error) {
	ctx, cancel := s.statementContext(ctx)
	defer cancel()

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}
