package schema

import (
	"fmt"
	"sort"
)

// Selector kinds referenced by query template slots.
const (
	SelectMeasure       = "measure"
	SelectNumeric       = "numeric"
	SelectText          = "text"
	SelectDate          = "date"
	SelectGroup         = "group"
	SelectDocumentGroup = "document_group"
	SelectSortable      = "sortable"
	SelectForeignKey    = "foreign_key"
)

var selectors = map[string]func(Table) []Field{
	SelectMeasure:       Table.Measures,
	SelectNumeric:       Table.Numerics,
	SelectText:          Table.Texts,
	SelectDate:          Table.Dates,
	SelectGroup:         Table.GroupKeys,
	SelectDocumentGroup: Table.DocumentGroups,
	SelectSortable:      Table.Sortables,
	SelectForeignKey:    Table.ForeignKeys,
}

// Select returns the fields of t matching a selector kind.
func (t Table) Select(kind string) ([]Field, error) {
	fn, ok := selectors[kind]
	if !ok {
		return nil, fmt.Errorf("unknown field selector %q", kind)
	}
	return fn(t), nil
}

// SelectorKinds lists the known selector kinds.
func SelectorKinds() []string {
	kinds := make([]string, 0, len(selectors))
	for k := range selectors {
		kinds = append(kinds, k)
	}
	sort.Strings(kinds)
	return kinds
}

// Measures are numeric fields that are not keys, the ones worth aggregating.
func (t Table) Measures() []Field {
	return t.filter(func(f Field) bool {
		return f.Category == CategoryNumeric && !f.IsIdentifier()
	})
}

func (t Table) Numerics() []Field {
	return t.filter(func(f Field) bool { return f.Category == CategoryNumeric })
}

func (t Table) Texts() []Field {
	return t.filter(func(f Field) bool { return f.Category == CategoryText })
}

func (t Table) Dates() []Field {
	return t.filter(func(f Field) bool { return f.Category == CategoryDate })
}

// GroupKeys are text columns followed by primary key columns.
func (t Table) GroupKeys() []Field {
	keys := t.Texts()
	for _, f := range t.Fields {
		if f.PrimaryKey && f.Category != CategoryText {
			keys = append(keys, f)
		}
	}
	return keys
}

// DocumentGroups are text fields followed by date fields.
func (t Table) DocumentGroups() []Field {
	return append(t.Texts(), t.Dates()...)
}

// Sortables are numeric, then text, then date fields.
func (t Table) Sortables() []Field {
	out := t.Numerics()
	out = append(out, t.Texts()...)
	return append(out, t.Dates()...)
}

// ForeignKeys are foreign key columns with a known referenced column.
func (t Table) ForeignKeys() []Field {
	return t.filter(func(f Field) bool { return f.ForeignKey && f.References != nil })
}

func (t Table) filter(keep func(Field) bool) []Field {
	var out []Field
	for _, f := range t.Fields {
		if keep(f) {
			out = append(out, f)
		}
	}
	return out
}
