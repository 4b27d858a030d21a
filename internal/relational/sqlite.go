package relational

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"regexp"
	"strings"

	_ "modernc.org/sqlite"

	chatdberrors "github.com/shakram02/go-chatdb/internal/errors"
)

// SQLiteDialect implements Dialect for SQLite database files.
type SQLiteDialect struct{}

var sqliteStripper = stripper{backticks: true, brackets: true}

var (
	sqliteForbiddenFunctions = functionRules("load_extension", "writefile", "edit", "fts3_tokenizer")
	sqliteExtraKeywords      = keywordRules("REPLACE", "ATTACH", "DETACH", "REINDEX", "VACUUM")
	pragmaWritePattern       = regexp.MustCompile(`(?i)\bPRAGMA\s+\w+\s*=`)
)

func (d *SQLiteDialect) Name() string       { return "SQLite" }
func (d *SQLiteDialect) DriverName() string { return "sqlite" }

func (d *SQLiteDialect) BuildDSN(p ConnParams) (string, error) {
	if p.Path == "" {
		return "", chatdberrors.New(chatdberrors.ErrTypeValidation, "a SQLite database file path is required")
	}
	return p.Path, nil
}

func (d *SQLiteDialect) DatabaseName(dsn string) string {
	return fileDatabaseName(dsn, ".db", ".sqlite", ".sqlite3")
}

func (d *SQLiteDialect) ListTablesQuery(string) (string, []any) {
	return `SELECT name FROM sqlite_master WHERE type = 'table' AND name NOT LIKE 'sqlite_%' ORDER BY name`, nil
}

// ReadSchemaQuery embeds the table name since PRAGMA cannot take parameters.
func (d *SQLiteDialect) ReadSchemaQuery(_, tableName string) (string, []any) {
	return fmt.Sprintf("PRAGMA table_info(%s)", sqliteString(tableName)), nil
}

// ScanColumn reads a PRAGMA table_info row: cid, name, type, notnull,
// dflt_value, pk.
func (d *SQLiteDialect) ScanColumn(rows *sql.Rows) (ColumnInfo, error) {
	var cid, notNull, pk int
	var name, colType string
	var dflt sql.NullString
	if err := rows.Scan(&cid, &name, &colType, &notNull, &dflt, &pk); err != nil {
		return ColumnInfo{}, err
	}
	return ColumnInfo{Name: name, Type: colType, PrimaryKey: pk > 0}, nil
}

// KeysQuery lists foreign keys only; primary keys come from table_info.
func (d *SQLiteDialect) KeysQuery(_, tableName string) (string, []any) {
	return fmt.Sprintf("PRAGMA foreign_key_list(%s)", sqliteString(tableName)), nil
}

// ScanKey reads a PRAGMA foreign_key_list row: id, seq, table, from, to,
// on_update, on_delete, match. A NULL "to" references the primary key.
func (d *SQLiteDialect) ScanKey(rows *sql.Rows) (KeyInfo, error) {
	var id, seq int
	var table, from string
	var to sql.NullString
	var onUpdate, onDelete, match sql.NullString
	if err := rows.Scan(&id, &seq, &table, &from, &to, &onUpdate, &onDelete, &match); err != nil {
		return KeyInfo{}, err
	}
	return KeyInfo{Column: from, RefTable: table, RefColumn: to.String}, nil
}

func (d *SQLiteDialect) QuoteIdent(name string) string { return quoteDouble(name) }

func (d *SQLiteDialect) Placeholder(int) string { return "?" }

func (d *SQLiteDialect) ValidateQuery(sqlQuery string) error {
	cleaned := sqliteStripper.keywordText(sqlQuery)

	if err := validateCommon(sqlQuery, cleaned); err != nil {
		return err
	}
	if err := checkRules(sqlQuery, sqliteForbiddenFunctions, "pattern"); err != nil {
		return err
	}
	if err := checkRules(cleaned, sqliteExtraKeywords, "keyword"); err != nil {
		return err
	}

	// read PRAGMAs stay allowed
	if pragmaWritePattern.MatchString(cleaned) {
		return chatdberrors.New(chatdberrors.ErrTypeValidation, "PRAGMA writes are not allowed")
	}
	return nil
}

// BeginReadOnly switches conn to query_only before opening the transaction.
func (d *SQLiteDialect) BeginReadOnly(ctx context.Context, conn *sql.Conn) (*sql.Tx, error) {
	if _, err := conn.ExecContext(ctx, "PRAGMA query_only = ON"); err != nil {
		return nil, err
	}
	return conn.BeginTx(ctx, nil)
}

func (d *SQLiteDialect) EndReadOnly(ctx context.Context, conn *sql.Conn) error {
	_, err := conn.ExecContext(ctx, "PRAGMA query_only = OFF")
	return err
}

// RemoveStringsAndComments keeps backtick and [bracket] identifiers; there
// are no # comments or backslash escapes.
func (d *SQLiteDialect) RemoveStringsAndComments(sql string) string {
	return sqliteStripper.strip(sql)
}

func sqliteString(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

// fileDatabaseName is the file name of a path DSN without query string or
// the given extensions.
func fileDatabaseName(dsn string, extensions ...string) string {
	path := dsn
	if idx := strings.Index(path, "?"); idx != -1 {
		path = path[:idx]
	}
	path = strings.TrimPrefix(path, "file:")
	name := filepath.Base(path)
	for _, ext := range extensions {
		name = strings.TrimSuffix(name, ext)
	}
	return name
}
