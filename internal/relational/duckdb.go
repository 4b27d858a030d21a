package relational

import (
	"context"
	"database/sql"

	_ "github.com/marcboeker/go-duckdb" // DuckDB driver

	chatdberrors "github.com/shakram02/go-chatdb/internal/errors"
)

// DuckDBDialect implements Dialect for DuckDB database files.
type DuckDBDialect struct{}

var duckdbStripper = stripper{}

var (
	// table functions that read or write local files
	duckdbFileFunctions = functionRules(
		"read_csv", "read_csv_auto", "read_parquet", "read_json", "read_json_auto",
		"read_ndjson", "read_text", "read_blob", "glob", "parquet_scan",
	)
	duckdbExtraKeywords = keywordRules(
		"COPY", "ATTACH", "DETACH", "INSTALL", "LOAD", "EXPORT", "IMPORT", "PRAGMA", "CALL", "CHECKPOINT", "VACUUM",
	)
)

func (d *DuckDBDialect) Name() string       { return "DuckDB" }
func (d *DuckDBDialect) DriverName() string { return "duckdb" }

func (d *DuckDBDialect) BuildDSN(p ConnParams) (string, error) {
	if p.Path == "" {
		return "", chatdberrors.New(chatdberrors.ErrTypeValidation, "a DuckDB database file path is required")
	}
	return p.Path, nil
}

func (d *DuckDBDialect) DatabaseName(dsn string) string {
	if dsn == "" || dsn == ":memory:" {
		return "memory"
	}
	return fileDatabaseName(dsn, ".duckdb", ".db")
}

func (d *DuckDBDialect) ListTablesQuery(string) (string, []any) {
	return `SELECT table_name FROM information_schema.tables
		WHERE table_schema = 'main' AND table_type = 'BASE TABLE'
		ORDER BY table_name`, nil
}

func (d *DuckDBDialect) ReadSchemaQuery(_, tableName string) (string, []any) {
	return `SELECT column_name, data_type
		FROM information_schema.columns
		WHERE table_schema = 'main' AND table_name = ?
		ORDER BY ordinal_position`, []any{tableName}
}

func (d *DuckDBDialect) ScanColumn(rows *sql.Rows) (ColumnInfo, error) {
	var c ColumnInfo
	if err := rows.Scan(&c.Name, &c.Type); err != nil {
		return ColumnInfo{}, err
	}
	return c, nil
}

func (d *DuckDBDialect) KeysQuery(_, tableName string) (string, []any) {
	return informationSchemaKeysQuery("main", "?"), []any{tableName}
}

func (d *DuckDBDialect) ScanKey(rows *sql.Rows) (KeyInfo, error) {
	return scanConstraintRow(rows)
}

func (d *DuckDBDialect) QuoteIdent(name string) string { return quoteDouble(name) }

func (d *DuckDBDialect) Placeholder(int) string { return "?" }

func (d *DuckDBDialect) ValidateQuery(sqlQuery string) error {
	cleaned := duckdbStripper.keywordText(sqlQuery)

	if err := validateCommon(sqlQuery, cleaned); err != nil {
		return err
	}
	if err := checkRules(sqlQuery, duckdbFileFunctions, "function"); err != nil {
		return err
	}
	return checkRules(cleaned, duckdbExtraKeywords, "keyword")
}

// BeginReadOnly opens a plain transaction: the driver rejects READ ONLY
// transactions and access_mode is fixed when the file is opened, so writes
// are undone by the rollback instead.
func (d *DuckDBDialect) BeginReadOnly(ctx context.Context, conn *sql.Conn) (*sql.Tx, error) {
	return conn.BeginTx(ctx, nil)
}

func (d *DuckDBDialect) EndReadOnly(context.Context, *sql.Conn) error { return nil }

// RemoveStringsAndComments follows standard SQL quoting: single quoted
// strings and double quoted identifiers.
func (d *DuckDBDialect) RemoveStringsAndComments(sql string) string {
	return duckdbStripper.strip(sql)
}
