package relational

import (
	"context"
	"database/sql"
	"fmt"
	"net"
	"net/url"
	"strings"

	"github.com/lib/pq"

	chatdberrors "github.com/shakram02/go-chatdb/internal/errors"
)

const (
	postgresDefaultPort    = "5432"
	postgresDefaultSSLMode = "prefer"
)

// PostgresDialect implements Dialect for PostgreSQL databases.
type PostgresDialect struct{}

var postgresStripper = stripper{dollarQuotes: true}

var (
	postgresForbiddenPatterns = []denyRule{
		patternRule(`(?i)\bCOPY\s+.*\bTO\b`, "COPY ... TO"),
		patternRule(`(?i)\bCOPY\s+.*\bFROM\b`, "COPY ... FROM"),
	}
	postgresForbiddenFunctions = functionRules(
		"pg_read_file", "pg_read_binary_file", "pg_ls_dir", "lo_import", "lo_export",
	)
	postgresDoSFunctions = functionRules(
		"pg_sleep", "pg_sleep_for", "pg_sleep_until",
		"pg_advisory_lock", "pg_advisory_xact_lock", "pg_try_advisory_lock",
	)
	postgresExtraKeywords = keywordRules(
		"CALL", "EXECUTE", "COPY", "LISTEN", "NOTIFY", "PREPARE", "DEALLOCATE", "VACUUM", "REINDEX", "CLUSTER",
	)
)

func (d *PostgresDialect) Name() string       { return "PostgreSQL" }
func (d *PostgresDialect) DriverName() string { return "postgres" }

func (d *PostgresDialect) BuildDSN(p ConnParams) (string, error) {
	if p.User == "" {
		return "", chatdberrors.New(chatdberrors.ErrTypeValidation, "a PostgreSQL username is required")
	}
	if p.Database == "" {
		return "", chatdberrors.New(chatdberrors.ErrTypeValidation, "a PostgreSQL database name is required")
	}

	host, port, sslmode := p.Host, p.Port, p.SSLMode
	if host == "" {
		host = "localhost"
	}
	if port == "" {
		port = postgresDefaultPort
	}
	if sslmode == "" {
		sslmode = postgresDefaultSSLMode
	}

	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(p.User, p.Password),
		Host:     net.JoinHostPort(host, port),
		Path:     "/" + p.Database,
		RawQuery: url.Values{"sslmode": {sslmode}}.Encode(),
	}
	return u.String(), nil
}

func (d *PostgresDialect) DatabaseName(dsn string) string {
	u, err := url.Parse(dsn)
	if err != nil {
		return ""
	}
	return strings.TrimPrefix(u.Path, "/")
}

func (d *PostgresDialect) ListTablesQuery(databaseName string) (string, []any) {
	return `SELECT table_name FROM information_schema.tables
		WHERE table_schema = 'public' AND table_catalog = $1 AND table_type = 'BASE TABLE'
		ORDER BY table_name`, []any{databaseName}
}

func (d *PostgresDialect) ReadSchemaQuery(databaseName, tableName string) (string, []any) {
	return `SELECT column_name, data_type
		FROM information_schema.columns
		WHERE table_catalog = $1 AND table_schema = 'public' AND table_name = $2
		ORDER BY ordinal_position`, []any{databaseName, tableName}
}

func (d *PostgresDialect) ScanColumn(rows *sql.Rows) (ColumnInfo, error) {
	var c ColumnInfo
	if err := rows.Scan(&c.Name, &c.Type); err != nil {
		return ColumnInfo{}, err
	}
	return c, nil
}

func (d *PostgresDialect) KeysQuery(_, tableName string) (string, []any) {
	return informationSchemaKeysQuery("public", "$1"), []any{tableName}
}

func (d *PostgresDialect) ScanKey(rows *sql.Rows) (KeyInfo, error) {
	return scanConstraintRow(rows)
}

func (d *PostgresDialect) QuoteIdent(name string) string {
	return pq.QuoteIdentifier(name)
}

func (d *PostgresDialect) Placeholder(n int) string { return fmt.Sprintf("$%d", n) }

func (d *PostgresDialect) ValidateQuery(sqlQuery string) error {
	cleaned := postgresStripper.keywordText(sqlQuery)

	if err := validateCommon(sqlQuery, cleaned); err != nil {
		return err
	}
	if err := checkRules(sqlQuery, postgresForbiddenPatterns, "pattern"); err != nil {
		return err
	}
	if err := checkRules(sqlQuery, postgresForbiddenFunctions, "pattern"); err != nil {
		return err
	}
	if err := checkRules(sqlQuery, postgresDoSFunctions, "function"); err != nil {
		return err
	}
	return checkRules(cleaned, postgresExtraKeywords, "keyword")
}

// RemoveStringsAndComments handles $$ dollar-quoted strings; there are no #
// comments, backtick identifiers or backslash escapes.
func (d *PostgresDialect) RemoveStringsAndComments(sql string) string {
	return postgresStripper.strip(sql)
}

func (d *PostgresDialect) DatabaseExistsQuery(name string) (string, []any) {
	return `SELECT datname FROM pg_database WHERE datname = $1`, []any{name}
}

func (d *PostgresDialect) CreateDatabaseStatement(name string) string {
	return "CREATE DATABASE " + d.QuoteIdent(name)
}

func (d *PostgresDialect) ListDatabasesQuery() string {
	return `SELECT datname FROM pg_database WHERE NOT datistemplate ORDER BY datname`
}

func (d *PostgresDialect) WithDatabase(dsn, name string) (string, error) {
	u, err := url.Parse(dsn)
	if err != nil {
		return "", chatdberrors.Wrap(err, chatdberrors.ErrTypeConfig, "invalid PostgreSQL DSN")
	}
	u.Path = "/" + name
	return u.String(), nil
}

func (d *PostgresDialect) BeginReadOnly(ctx context.Context, conn *sql.Conn) (*sql.Tx, error) {
	return beginReadOnlyTx(ctx, conn)
}

func (d *PostgresDialect) EndReadOnly(context.Context, *sql.Conn) error { return nil }
