// Package schema describes introspected tables and collections and
// classifies their fields into the categories used by query templates.
package schema

import (
	"fmt"
	"slices"
	"sort"
	"strings"

	chatdberrors "github.com/shakram02/go-chatdb/internal/errors"
)

// Category is the inferred kind of a field's values.
type Category int

const (
	CategoryOther Category = iota
	CategoryNumeric
	CategoryText
	CategoryDate
)

func (c Category) String() string {
	switch c {
	case CategoryNumeric:
		return "numeric"
	case CategoryText:
		return "text"
	case CategoryDate:
		return "date"
	default:
		return "other"
	}
}

// Reference is the target of a foreign key.
type Reference struct {
	Table  string
	Column string
}

// Field describes one column or document field.
type Field struct {
	Name       string
	Type       string // declared type, or the sampled value's type name
	Category   Category
	PrimaryKey bool
	ForeignKey bool
	References *Reference
}

// IsIdentifier reports whether the field takes part in a primary or foreign key.
func (f Field) IsIdentifier() bool {
	return f.PrimaryKey || f.ForeignKey
}

// Table is the ordered field list of one table or collection.
type Table struct {
	Name   string
	Fields []Field
}

// Field looks up a field by exact name.
func (t Table) Field(name string) (Field, bool) {
	for _, f := range t.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}

// FieldNames returns the field names in declaration order.
func (t Table) FieldNames() []string {
	names := make([]string, 0, len(t.Fields))
	for _, f := range t.Fields {
		names = append(names, f.Name)
	}
	return names
}

// Schema is the set of tables or collections of one connected store.
type Schema struct {
	Tables []Table
}

// New returns a schema with tables sorted by name.
func New(tables []Table) *Schema {
	sorted := slices.Clone(tables)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Name < sorted[j].Name })
	return &Schema{Tables: sorted}
}

// Empty reports whether the schema has no table with at least one field.
func (s *Schema) Empty() bool {
	if s == nil {
		return true
	}
	for _, t := range s.Tables {
		if len(t.Fields) > 0 {
			return false
		}
	}
	return true
}

// Table looks up a table by exact name.
func (s *Schema) Table(name string) (Table, bool) {
	if s == nil {
		return Table{}, false
	}
	for _, t := range s.Tables {
		if t.Name == name {
			return t, true
		}
	}
	return Table{}, false
}

// Names returns the table names in schema order.
func (s *Schema) Names() []string {
	if s == nil {
		return nil
	}
	names := make([]string, 0, len(s.Tables))
	for _, t := range s.Tables {
		names = append(names, t.Name)
	}
	return names
}

// CheckIdentifiers verifies that table exists and holds every column.
// Identifiers that reach a statement must pass this check first.
func (s *Schema) CheckIdentifiers(table string, columns ...string) error {
	t, ok := s.Table(table)
	if !ok {
		return chatdberrors.Newf(chatdberrors.ErrTypeValidation, "unknown table %q", table)
	}

	var unknown []string
	for _, column := range columns {
		if _, ok := t.Field(column); !ok {
			unknown = append(unknown, column)
		}
	}
	if len(unknown) > 0 {
		return chatdberrors.Newf(chatdberrors.ErrTypeValidation,
			"unknown column(s) %s in table %q", strings.Join(unknown, ", "), table)
	}

	return nil
}

// String renders the schema one table per paragraph, as shown to users.
func (s *Schema) String() string {
	var b strings.Builder
	for i, t := range s.Tables {
		if i > 0 {
			b.WriteString("\n")
		}
		fmt.Fprintf(&b, "%s\n", t.Name)
		for _, f := range t.Fields {
			fmt.Fprintf(&b, " - %s (%s)%s\n", f.Name, f.Type, keyMarker(f))
		}
	}
	return b.String()
}

func keyMarker(f Field) string {
	switch {
	case f.PrimaryKey && f.ForeignKey:
		return " [PK, FK]"
	case f.PrimaryKey:
		return " [PK]"
	case f.References != nil:
		return fmt.Sprintf(" [FK -> %s.%s]", f.References.Table, f.References.Column)
	case f.ForeignKey:
		return " [FK]"
	}
	return ""
}
