// Package relational connects to SQL databases, introspects their schema and
// executes generated statements through a per-database Dialect.
package relational

import (
	"context"
	"database/sql"
	"sort"
	"strings"

	chatdberrors "github.com/shakram02/go-chatdb/internal/errors"
)

// ConnParams holds what the connection prompts collect.
type ConnParams struct {
	Host     string
	Port     string
	User     string
	Password string
	Database string
	Path     string // file backed databases
	SSLMode  string
}

// ColumnInfo is one row of a column listing.
type ColumnInfo struct {
	Name       string
	Type       string
	PrimaryKey bool
}

// KeyInfo is one primary or foreign key column.
type KeyInfo struct {
	Column    string
	Primary   bool
	RefTable  string
	RefColumn string
}

// Dialect defines the contract for database-specific behavior.
type Dialect interface {
	// Name is the display name, e.g. "MySQL".
	Name() string

	// DriverName returns the database/sql driver name.
	DriverName() string

	// BuildDSN constructs a DSN from prompted connection parameters.
	BuildDSN(p ConnParams) (string, error)

	// DatabaseName extracts the database or file name from a DSN.
	DatabaseName(dsn string) string

	ListTablesQuery(databaseName string) (string, []any)
	ReadSchemaQuery(databaseName, tableName string) (string, []any)
	ScanColumn(rows *sql.Rows) (ColumnInfo, error)
	KeysQuery(databaseName, tableName string) (string, []any)
	ScanKey(rows *sql.Rows) (KeyInfo, error)

	QuoteIdent(name string) string
	Placeholder(n int) string

	// ValidateQuery rejects anything but a single read-only statement.
	ValidateQuery(sql string) error

	// BeginReadOnly opens the transaction generated statements run in. The
	// database itself refuses writes inside it, or they are rolled back.
	BeginReadOnly(ctx context.Context, conn *sql.Conn) (*sql.Tx, error)

	// EndReadOnly restores conn after that transaction is rolled back.
	EndReadOnly(ctx context.Context, conn *sql.Conn) error

	// RemoveStringsAndComments strips string literals and comments from SQL
	// for safe keyword detection.
	RemoveStringsAndComments(sql string) string
}

// DatabaseManager is implemented by dialects that can create databases and
// reconnect to them.
type DatabaseManager interface {
	DatabaseExistsQuery(name string) (string, []any)
	CreateDatabaseStatement(name string) string
	ListDatabasesQuery() string
	WithDatabase(dsn, name string) (string, error)
}

// DatabaseDropper is implemented by dialects that can drop the database they
// are connected to.
type DatabaseDropper interface {
	DropDatabaseStatement(name string) string
}

var dialects = map[string]Dialect{
	"mysql":    &MySQLDialect{},
	"postgres": &PostgresDialect{},
	"sqlite":   &SQLiteDialect{},
	"duckdb":   &DuckDBDialect{},
}

// Lookup returns the dialect registered under a driver name.
func Lookup(driver string) (Dialect, error) {
	d, ok := dialects[strings.ToLower(driver)]
	if !ok {
		return nil, chatdberrors.Newf(chatdberrors.ErrTypeUnsupported, "unsupported database driver %q", driver).
			WithSuggestion("Supported drivers: " + strings.Join(Drivers(), ", "))
	}
	return d, nil
}

// Drivers lists the registered driver names.
func Drivers() []string {
	names := make([]string, 0, len(dialects))
	for name := range dialects {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// beginReadOnlyTx starts a transaction the driver opens as READ ONLY.
func beginReadOnlyTx(ctx context.Context, conn *sql.Conn) (*sql.Tx, error) {
	return conn.BeginTx(ctx, &sql.TxOptions{ReadOnly: true})
}

func quoteDouble(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// informationSchemaKeysQuery lists primary and foreign key columns through
// the standard information_schema views.
func informationSchemaKeysQuery(schemaName, tablePlaceholder string) string {
	return `SELECT kcu.column_name, tc.constraint_type, rkcu.table_name, rkcu.column_name
		FROM information_schema.table_constraints tc
		JOIN information_schema.key_column_usage kcu
			ON kcu.constraint_name = tc.constraint_name
			AND kcu.table_schema = tc.table_schema
			AND kcu.table_name = tc.table_name
		LEFT JOIN information_schema.referential_constraints rc
			ON rc.constraint_name = tc.constraint_name
			AND rc.constraint_schema = tc.table_schema
		LEFT JOIN information_schema.key_column_usage rkcu
			ON rkcu.constraint_name = rc.unique_constraint_name
			AND rkcu.constraint_schema = rc.unique_constraint_schema
			AND rkcu.ordinal_position = kcu.position_in_unique_constraint
		WHERE tc.table_schema = '` + schemaName + `'
			AND tc.table_name = ` + tablePlaceholder + `
			AND tc.constraint_type IN ('PRIMARY KEY', 'FOREIGN KEY')
		ORDER BY kcu.ordinal_position`
}

// scanConstraintRow reads (column, constraint type, referenced table,
// referenced column).
func scanConstraintRow(rows *sql.Rows) (KeyInfo, error) {
	var column, kind string
	var refTable, refColumn sql.NullString
	if err := rows.Scan(&column, &kind, &refTable, &refColumn); err != nil {
		return KeyInfo{}, err
	}
	return KeyInfo{
		Column:    column,
		Primary:   strings.EqualFold(kind, "PRIMARY KEY"),
		RefTable:  refTable.String,
		RefColumn: refColumn.String,
	}, nil
}
