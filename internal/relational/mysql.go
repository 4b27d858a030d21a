package relational

import (
	"context"
	"database/sql"
	"net"
	"strings"

	"github.com/go-sql-driver/mysql"

	chatdberrors "github.com/shakram02/go-chatdb/internal/errors"
)

const mysqlDefaultPort = "3306"

// MySQLDialect implements Dialect for MySQL databases.
type MySQLDialect struct{}

var mysqlStripper = stripper{hashComments: true, backslashEscapes: true, doubleIsString: true, backticks: true}

var (
	mysqlForbiddenPatterns = []denyRule{
		patternRule(`(?i)\bINTO\s+OUTFILE\b`, "INTO OUTFILE"),
		patternRule(`(?i)\bINTO\s+DUMPFILE\b`, "INTO DUMPFILE"),
		patternRule(`(?i)\bLOAD_FILE\s*\(`, "LOAD_FILE()"),
		patternRule(`(?i)\bINTO\s+@`, "INTO @variable"),
	}
	mysqlDoSFunctions = functionRules(
		"SLEEP", "BENCHMARK", "GET_LOCK", "RELEASE_LOCK", "IS_FREE_LOCK", "IS_USED_LOCK",
		"WAIT_FOR_EXECUTED_GTID_SET", "WAIT_UNTIL_SQL_THREAD_AFTER_GTIDS",
		"MASTER_POS_WAIT", "SOURCE_POS_WAIT",
	)
	mysqlExtraKeywords = keywordRules("CALL", "EXEC", "EXECUTE", "REPLACE", "LOAD", "HANDLER", "RENAME")
)

func (d *MySQLDialect) Name() string       { return "MySQL" }
func (d *MySQLDialect) DriverName() string { return "mysql" }

func (d *MySQLDialect) BuildDSN(p ConnParams) (string, error) {
	if p.User == "" {
		return "", chatdberrors.New(chatdberrors.ErrTypeValidation, "a MySQL username is required")
	}

	host, port := p.Host, p.Port
	if host == "" {
		host = "localhost"
	}
	if port == "" {
		port = mysqlDefaultPort
	}

	cfg := mysql.NewConfig()
	cfg.User = p.User
	cfg.Passwd = p.Password
	cfg.Net = "tcp"
	cfg.Addr = net.JoinHostPort(host, port)
	cfg.DBName = p.Database
	return cfg.FormatDSN(), nil
}

func (d *MySQLDialect) DatabaseName(dsn string) string {
	cfg, err := mysql.ParseDSN(dsn)
	if err != nil {
		return ""
	}
	return cfg.DBName
}

func (d *MySQLDialect) ListTablesQuery(databaseName string) (string, []any) {
	return `SELECT table_name FROM information_schema.tables
		WHERE table_schema = ? AND table_type = 'BASE TABLE'
		ORDER BY table_name`, []any{databaseName}
}

func (d *MySQLDialect) ReadSchemaQuery(databaseName, tableName string) (string, []any) {
	return `SELECT column_name, column_type, column_key
		FROM information_schema.columns
		WHERE table_schema = ? AND table_name = ?
		ORDER BY ordinal_position`, []any{databaseName, tableName}
}

func (d *MySQLDialect) ScanColumn(rows *sql.Rows) (ColumnInfo, error) {
	var name, colType string
	var colKey sql.NullString
	if err := rows.Scan(&name, &colType, &colKey); err != nil {
		return ColumnInfo{}, err
	}
	return ColumnInfo{Name: name, Type: colType, PrimaryKey: colKey.String == "PRI"}, nil
}

func (d *MySQLDialect) KeysQuery(databaseName, tableName string) (string, []any) {
	return `SELECT column_name,
			CASE WHEN constraint_name = 'PRIMARY' THEN 'PRIMARY KEY' ELSE 'FOREIGN KEY' END,
			referenced_table_name, referenced_column_name
		FROM information_schema.key_column_usage
		WHERE table_schema = ? AND table_name = ?
			AND (constraint_name = 'PRIMARY' OR referenced_table_name IS NOT NULL)
		ORDER BY ordinal_position`, []any{databaseName, tableName}
}

func (d *MySQLDialect) ScanKey(rows *sql.Rows) (KeyInfo, error) {
	return scanConstraintRow(rows)
}

func (d *MySQLDialect) QuoteIdent(name string) string {
	return "`" + strings.ReplaceAll(name, "`", "``") + "`"
}

func (d *MySQLDialect) Placeholder(int) string { return "?" }

func (d *MySQLDialect) ValidateQuery(sqlQuery string) error {
	cleaned := mysqlStripper.keywordText(sqlQuery)

	if err := validateCommon(sqlQuery, cleaned); err != nil {
		return err
	}
	if err := checkRules(sqlQuery, mysqlForbiddenPatterns, "pattern"); err != nil {
		return err
	}
	if err := checkRules(sqlQuery, mysqlDoSFunctions, "function"); err != nil {
		return err
	}
	return checkRules(cleaned, mysqlExtraKeywords, "keyword")
}

// RemoveStringsAndComments supports # comments, backtick identifiers and
// backslash escaping in strings.
func (d *MySQLDialect) RemoveStringsAndComments(sql string) string {
	return mysqlStripper.strip(sql)
}

func (d *MySQLDialect) DatabaseExistsQuery(name string) (string, []any) {
	return `SELECT schema_name FROM information_schema.schemata WHERE schema_name = ?`, []any{name}
}

func (d *MySQLDialect) CreateDatabaseStatement(name string) string {
	return "CREATE DATABASE IF NOT EXISTS " + d.QuoteIdent(name)
}

func (d *MySQLDialect) ListDatabasesQuery() string {
	return `SELECT schema_name FROM information_schema.schemata
		WHERE schema_name NOT IN ('information_schema', 'mysql', 'performance_schema', 'sys')
		ORDER BY schema_name`
}

func (d *MySQLDialect) WithDatabase(dsn, name string) (string, error) {
	cfg, err := mysql.ParseDSN(dsn)
	if err != nil {
		return "", chatdberrors.Wrap(err, chatdberrors.ErrTypeConfig, "invalid MySQL DSN")
	}
	cfg.DBName = name
	return cfg.FormatDSN(), nil
}

func (d *MySQLDialect) DropDatabaseStatement(name string) string {
	return "DROP DATABASE " + d.QuoteIdent(name)
}

func (d *MySQLDialect) BeginReadOnly(ctx context.Context, conn *sql.Conn) (*sql.Tx, error) {
	return beginReadOnlyTx(ctx, conn)
}

func (d *MySQLDialect) EndReadOnly(context.Context, *sql.Conn) error { return nil }
