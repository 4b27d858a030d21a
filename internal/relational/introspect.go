package relational

import (
	"context"

	"go.uber.org/zap"

	chatdberrors "github.com/shakram02/go-chatdb/internal/errors"
	"github.com/shakram02/go-chatdb/internal/schema"
)

// ListTables returns the table names of the connected database.
func (s *Store) ListTables(ctx context.Context) ([]string, error) {
	query, args := s.dialect.ListTablesQuery(s.databaseName)
	names, err := s.queryStrings(ctx, query, args...)
	if err != nil {
		return nil, chatdberrors.Wrap(err, chatdberrors.ErrTypeExecution, "failed to list tables")
	}
	return names, nil
}

// Introspect reads every table with its columns and keys. A database
// without any column is reported as an empty schema.
func (s *Store) Introspect(ctx context.Context) (*schema.Schema, error) {
	names, err := s.ListTables(ctx)
	if err != nil {
		return nil, err
	}

	tables := make([]schema.Table, 0, len(names))
	for _, name := range names {
		table, err := s.readTable(ctx, name)
		if err != nil {
			return nil, err
		}
		s.logger.Debug("introspected table",
			zap.String("table", name),
			zap.Int("columns", len(table.Fields)))
		tables = append(tables, table)
	}

	resolveImplicitReferences(tables)

	out := schema.New(tables)
	if out.Empty() {
		return nil, chatdberrors.NewEmptySchemaError(s.dialect.Name())
	}
	return out, nil
}

func (s *Store) readTable(ctx context.Context, name string) (schema.Table, error) {
	columns, err := s.readColumns(ctx, name)
	if err != nil {
		return schema.Table{}, chatdberrors.Wrapf(err, chatdberrors.ErrTypeExecution, "failed to read columns of %q", name)
	}
	keys, err := s.readKeys(ctx, name)
	if err != nil {
		return schema.Table{}, chatdberrors.Wrapf(err, chatdberrors.ErrTypeExecution, "failed to read keys of %q", name)
	}

	table := schema.Table{Name: name, Fields: make([]schema.Field, 0, len(columns))}
	index := make(map[string]int, len(columns))
	for _, c := range columns {
		index[c.Name] = len(table.Fields)
		table.Fields = append(table.Fields, schema.Field{
			Name:       c.Name,
			Type:       c.Type,
			Category:   schema.ClassifySQLType(c.Type),
			PrimaryKey: c.PrimaryKey,
		})
	}

	for _, k := range keys {
		i, ok := index[k.Column]
		if !ok {
			continue
		}
		f := &table.Fields[i]
		if k.Primary {
			f.PrimaryKey = true
		}
		if k.RefTable != "" {
			f.ForeignKey = true
			f.References = &schema.Reference{Table: k.RefTable, Column: k.RefColumn}
		}
	}

	return table, nil
}

func (s *Store) readColumns(ctx context.Context, table string) ([]ColumnInfo, error) {
	ctx, cancel := s.statementContext(ctx)
	defer cancel()

	query, args := s.dialect.ReadSchemaQuery(s.databaseName, table)
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ColumnInfo
	for rows.Next() {
		c, err := s.dialect.ScanColumn(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (s *Store) readKeys(ctx context.Context, table string) ([]KeyInfo, error) {
	ctx, cancel := s.statementContext(ctx)
	defer cancel()

	query, args := s.dialect.KeysQuery(s.databaseName, table)
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []KeyInfo
	for rows.Next() {
		k, err := s.dialect.ScanKey(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, k)
	}
	return out, rows.Err()
}

// resolveImplicitReferences points references without a column at the
// referenced table's primary key.
func resolveImplicitReferences(tables []schema.Table) {
	primary := map[string]string{}
	for _, t := range tables {
		for _, f := range t.Fields {
			if f.PrimaryKey {
				if _, seen := primary[t.Name]; !seen {
					primary[t.Name] = f.Name
				}
			}
		}
	}

	for ti := range tables {
		for fi := range tables[ti].Fields {
			ref := tables[ti].Fields[fi].References
			if ref == nil || ref.Column != "" {
				continue
			}
			if column, ok := primary[ref.Table]; ok {
				ref.Column = column
			} else {
				tables[ti].Fields[fi].References = nil
			}
		}
	}
}
