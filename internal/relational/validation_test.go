package relational

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shakram02/go-chatdb/internal/catalog"
	chatdberrors "github.com/shakram02/go-chatdb/internal/errors"
	"github.com/shakram02/go-chatdb/internal/schema"
)

func allDialects() []Dialect {
	return []Dialect{&MySQLDialect{}, &PostgresDialect{}, &SQLiteDialect{}, &DuckDBDialect{}}
}

func TestValidateQueryAllowed(t *testing.T) {
	allowed := []string{
		"SELECT * FROM users",
		"SELECT id, name FROM users WHERE id = 1",
		"select * from users",
		"SHOW TABLES",
		"DESCRIBE users",
		"DESC users",
		"EXPLAIN SELECT * FROM users",
		"WITH t AS (SELECT 1 AS x) SELECT x FROM t",
		"SELECT * FROM settings",
		"SELECT * FROM user_settings WHERE setting_name = 'theme'",
		"SELECT created_at FROM orders",
		"SELECT updated_at FROM products",
		"SELECT deleted FROM items",
		"SELECT update2, drop_count FROM items",
		"SELECT * FROM users WHERE name = 'DROP TABLE users'",
		"SELECT 1;",
	}

	for _, d := range allDialects() {
		for _, query := range allowed {
			t.Run(d.Name()+"/"+query, func(t *testing.T) {
				assert.NoError(t, d.ValidateQuery(query))
			})
		}
	}
}

func TestValidateQueryAllowsKeywordIdentifiers(t *testing.T) {
	for _, d := range allDialects() {
		for _, name := range []string{"drop", "update2", "Delete Me", "insert"} {
			query := "SELECT " + d.QuoteIdent(name) + " FROM " + d.QuoteIdent("orders")
			t.Run(d.Name()+"/"+name, func(t *testing.T) {
				assert.NoError(t, d.ValidateQuery(query))
			})
		}

		t.Run(d.Name()+"/keyword outside identifier", func(t *testing.T) {
			query := "WITH " + d.QuoteIdent("x") + " AS (DELETE FROM orders RETURNING *) SELECT * FROM " + d.QuoteIdent("x")
			err := d.ValidateQuery(query)
			require.Error(t, err)
			assert.Contains(t, err.Error(), "DELETE")
		})
	}
}

func TestValidateQueryBlockedEverywhere(t *testing.T) {
	blocked := []struct {
		query       string
		shouldBlock string
	}{
		{"INSERT INTO users VALUES (1, 'test')", "INSERT"},
		{"UPDATE users SET name = 'test'", "UPDATE"},
		{"DELETE FROM users", "DELETE"},
		{"DROP TABLE users", "DROP"},
		{"CREATE TABLE test (id INT)", "CREATE"},
		{"ALTER TABLE users ADD COLUMN age INT", "ALTER"},
		{"TRUNCATE TABLE users", "TRUNCATE"},
		{"GRANT ALL ON *.* TO 'user'", "GRANT"},
		{"REVOKE ALL ON *.* FROM 'user'", "REVOKE"},
		{"SET @var = 1", "SET"},
		{"SELECT 1; DROP TABLE users", "multiple statements"},
		{"SELECT 1; -- comment\nDROP TABLE users", "multiple statements"},
		{"WITH gone AS (DELETE FROM users RETURNING *) SELECT * FROM gone", "DELETE"},
	}

	for _, d := range allDialects() {
		for _, tc := range blocked {
			t.Run(d.Name()+"/"+tc.query, func(t *testing.T) {
				err := d.ValidateQuery(tc.query)
				require.Error(t, err, "expected %s to be blocked", tc.shouldBlock)
				assert.True(t, chatdberrors.IsType(err, chatdberrors.ErrTypeValidation))
			})
		}
	}
}

func TestValidateQueryBlockedPerDialect(t *testing.T) {
	tests := []struct {
		dialect Dialect
		queries []string
	}{
		{&MySQLDialect{}, []string{
			"CALL some_procedure()",
			"EXECUTE some_statement",
			"SELECT * INTO OUTFILE '/tmp/data.txt' FROM users",
			"SELECT * INTO DUMPFILE '/tmp/data.bin' FROM users",
			"SELECT LOAD_FILE('/etc/passwd')",
			"SELECT SLEEP(10)",
			"SELECT BENCHMARK(1000000, SHA1('test'))",
			"SELECT GET_LOCK('lock', 10)",
			"SELECT id INTO @x FROM users",
			"LOAD DATA INFILE '/tmp/data.txt' INTO TABLE users",
			"REPLACE INTO users VALUES (1, 'test')",
			"HANDLER users OPEN",
			"RENAME TABLE users TO users_old",
		}},
		{&PostgresDialect{}, []string{
			"SELECT pg_sleep(10)",
			"SELECT pg_sleep_for('5 seconds')",
			"SELECT pg_sleep_until('2025-01-01')",
			"SELECT pg_advisory_lock(1)",
			"SELECT pg_advisory_xact_lock(1)",
			"SELECT pg_try_advisory_lock(1)",
			"SELECT pg_read_file('/etc/passwd')",
			"SELECT pg_read_binary_file('/etc/passwd')",
			"SELECT pg_ls_dir('/tmp')",
			"SELECT lo_import('/etc/passwd')",
			"SELECT lo_export(12345, '/tmp/out')",
			"COPY users TO '/tmp/data.csv'",
			"COPY users FROM '/tmp/data.csv'",
			"LISTEN channel",
			"NOTIFY channel",
			"PREPARE stmt AS SELECT 1",
			"DEALLOCATE stmt",
			"VACUUM users",
			"REINDEX TABLE users",
			"CLUSTER users",
		}},
		{&SQLiteDialect{}, []string{
			"SELECT load_extension('hack.so')",
			"SELECT writefile('/tmp/data', content)",
			"SELECT edit(content)",
			"SELECT fts3_tokenizer('simple')",
			"REPLACE INTO users VALUES (1, 'test')",
			"ATTACH DATABASE '/tmp/other.db' AS other",
			"DETACH DATABASE other",
			"REINDEX users",
			"VACUUM",
			"EXPLAIN PRAGMA journal_mode = WAL",
			"EXPLAIN PRAGMA foreign_keys = ON",
		}},
		{&DuckDBDialect{}, []string{
			"SELECT * FROM read_csv('/etc/passwd')",
			"SELECT * FROM read_parquet('data/*.parquet')",
			"SELECT * FROM glob('/home/*')",
			"EXPLAIN COPY users TO 'out.csv'",
			"EXPLAIN PRAGMA database_list",
			"ATTACH 'other.duckdb'",
			"INSTALL httpfs",
		}},
	}

	for _, tt := range tests {
		for _, query := range tt.queries {
			t.Run(tt.dialect.Name()+"/"+query, func(t *testing.T) {
				assert.Error(t, tt.dialect.ValidateQuery(query))
			})
		}
	}
}

func TestValidateQueryEmpty(t *testing.T) {
	for _, d := range allDialects() {
		t.Run(d.Name(), func(t *testing.T) {
			assert.Error(t, d.ValidateQuery(""))
			assert.Error(t, d.ValidateQuery("   "))
		})
	}
}

func TestValidateQueryCommentInjection(t *testing.T) {
	queries := []string{
		"SELECT 1 -- ; DROP TABLE users",
		"SELECT 1 /* ; DROP TABLE users */",
	}

	for _, d := range allDialects() {
		for _, query := range queries {
			t.Run(d.Name()+"/"+query, func(t *testing.T) {
				assert.NoError(t, d.ValidateQuery(query))
			})
		}
	}

	assert.NoError(t, (&MySQLDialect{}).ValidateQuery("SELECT 1 # ; DROP TABLE users"))
}

func TestRemoveStringsAndComments(t *testing.T) {
	common := []struct {
		name     string
		input    string
		expected string
	}{
		{"single-quoted string stripped", "SELECT * FROM users WHERE name = 'DROP TABLE'", "SELECT * FROM users WHERE name = ''"},
		{"escaped quote stripped", "SELECT * FROM users WHERE name = 'it''s'", "SELECT * FROM users WHERE name = ''"},
		{"-- comment stripped", "SELECT * FROM users -- comment", "SELECT * FROM users  "},
		{"/* */ comment stripped", "SELECT * FROM users /* comment */", "SELECT * FROM users  "},
	}

	for _, d := range allDialects() {
		for _, tc := range common {
			t.Run(d.Name()+"/"+tc.name, func(t *testing.T) {
				assert.Equal(t, tc.expected, d.RemoveStringsAndComments(tc.input))
			})
		}
	}

	dialectSpecific := []struct {
		name     string
		dialect  Dialect
		input    string
		expected string
	}{
		{"mysql backtick identifier preserved", &MySQLDialect{}, "SELECT * FROM `table_name`", "SELECT * FROM `table_name`"},
		{"mysql hash comment stripped", &MySQLDialect{}, "SELECT 1 # DROP", "SELECT 1  "},
		{"mysql double quotes are strings", &MySQLDialect{}, `SELECT "DROP" FROM t`, `SELECT "" FROM t`},
		{"mysql backslash escape", &MySQLDialect{}, `SELECT 'a\'DROP' FROM t`, `SELECT '' FROM t`},
		{"postgres double-quoted identifier preserved", &PostgresDialect{}, `SELECT * FROM "table_name"`, `SELECT * FROM "table_name"`},
		{"postgres hash is not a comment", &PostgresDialect{}, "SELECT # FROM users", "SELECT # FROM users"},
		{"postgres bind parameters kept", &PostgresDialect{}, "SELECT * FROM t WHERE a > $1 AND b < $2", "SELECT * FROM t WHERE a > $1 AND b < $2"},
		{"postgres dollar quoting", &PostgresDialect{}, "SELECT $$DROP TABLE users$$", "SELECT ''"},
		{"postgres tagged dollar quoting", &PostgresDialect{}, "SELECT $tag$DROP TABLE users$tag$", "SELECT ''"},
		{"sqlite bracket identifier preserved", &SQLiteDialect{}, "SELECT * FROM [table_name]", "SELECT * FROM [table_name]"},
		{"sqlite backtick identifier preserved", &SQLiteDialect{}, "SELECT * FROM `table_name`", "SELECT * FROM `table_name`"},
		{"sqlite hash is not a comment", &SQLiteDialect{}, "SELECT # FROM users", "SELECT # FROM users"},
		{"duckdb escaped identifier quote", &DuckDBDialect{}, `SELECT "a""b" FROM t`, `SELECT "a""b" FROM t`},
	}

	for _, tc := range dialectSpecific {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, tc.dialect.RemoveStringsAndComments(tc.input))
		})
	}
}

func TestGeneratedStatementsPassValidation(t *testing.T) {
	s := schema.New([]schema.Table{
		{Name: "orders", Fields: []schema.Field{
			{Name: "id", Type: "int", Category: schema.CategoryNumeric, PrimaryKey: true},
			{Name: "customer_id", Type: "int", Category: schema.CategoryNumeric, ForeignKey: true,
				References: &schema.Reference{Table: "customers", Column: "id"}},
			{Name: "status", Type: "varchar", Category: schema.CategoryText},
			{Name: "amount", Type: "decimal", Category: schema.CategoryNumeric},
			{Name: "placed_at", Type: "date", Category: schema.CategoryDate},
		}},
		{Name: "customers", Fields: []schema.Field{
			{Name: "id", Type: "int", Category: schema.CategoryNumeric, PrimaryKey: true},
			{Name: "name", Type: "text", Category: schema.CategoryText},
		}},
	})

	c, err := catalog.Default()
	require.NoError(t, err)
	sets := append([]string{catalog.SetSample}, c.ConstructNames(catalog.StoreRelational)...)

	for _, d := range allDialects() {
		g := catalog.NewGenerator(c, catalog.StoreRelational, nil, d, catalog.GeneratorOptions{Seed: 1})
		for _, set := range sets {
			candidates, failures := g.Candidates(s, set)
			require.Empty(t, failures, "%s %s", d.Name(), set)
			for _, q := range candidates {
				assert.NoError(t, d.ValidateQuery(q.Statement), "%s: %s", d.Name(), q.Statement)
			}
		}
	}
}
