package catalog

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	chatdberrors "github.com/shakram02/go-chatdb/internal/errors"
	"github.com/shakram02/go-chatdb/internal/schema"
)

// TablePlaceholder is bound to the table or collection a query targets.
const TablePlaceholder = "table"

var placeholderPattern = regexp.MustCompile(`\{(\w+)\}`)

// Bindings maps placeholder names to values.
type Bindings struct {
	Tables    map[string]string // identifiers naming tables
	Columns   map[string]string // identifiers naming columns or fields
	Operators map[string]string // canonical comparison operators
	Literals  map[string]any

	owners map[string]string // column placeholder -> owning table, when not the target
}

// NewBindings returns bindings targeting table.
func NewBindings(table string) Bindings {
	return Bindings{
		Tables:    map[string]string{TablePlaceholder: table},
		Columns:   map[string]string{},
		Operators: map[string]string{},
		Literals:  map[string]any{},
		owners:    map[string]string{},
	}
}

// Check verifies every bound table and column against the live schema.
// Columns belong to target unless they were bound from a reference.
func (b Bindings) Check(s *schema.Schema, target string) error {
	for _, table := range b.Tables {
		if _, ok := s.Table(table); !ok {
			return chatdberrors.Newf(chatdberrors.ErrTypeValidation, "unknown table %q", table)
		}
	}
	for owner, columns := range b.columnsByTable(target) {
		if err := s.CheckIdentifiers(owner, columns...); err != nil {
			return err
		}
	}
	return nil
}

// SQLDialect quotes identifiers and numbers bind parameters.
type SQLDialect interface {
	QuoteIdent(name string) string
	Placeholder(n int) string
}

var (
	sqlOperators = map[string]string{
		"=": "=", "==": "=", "!=": "<>", "<>": "<>",
		">": ">", "<": "<", ">=": ">=", "<=": "<=",
	}
	documentOperators = map[string]string{
		"=": "$eq", "==": "$eq", "!=": "$ne", "<>": "$ne",
		">": "$gt", "<": "$lt", ">=": "$gte", "<=": "$lte",
	}
)

// RenderSQL fills a SQL statement. Identifiers are quoted by the dialect;
// literals become bind parameters returned in placeholder order.
func RenderSQL(statement string, b Bindings, d SQLDialect) (string, []any, error) {
	var args []any
	out, err := substitute(statement, func(name string) (string, error) {
		if table, ok := b.Tables[name]; ok {
			return d.QuoteIdent(table), nil
		}
		if column, ok := b.Columns[name]; ok {
			return d.QuoteIdent(column), nil
		}
		if op, ok := b.Operators[name]; ok {
			return mapOperator(sqlOperators, op)
		}
		if lit, ok := b.Literals[name]; ok {
			args = append(args, lit)
			return d.Placeholder(len(args)), nil
		}
		return "", missingPlaceholder(name)
	})
	if err != nil {
		return "", nil, err
	}
	return out, args, nil
}

// RenderDocument fills an Extended JSON statement. Identifiers are escaped
// for use inside JSON strings and literals are emitted as JSON values.
func RenderDocument(statement string, b Bindings) (string, error) {
	out, err := substitute(statement, func(name string) (string, error) {
		if table, ok := b.Tables[name]; ok {
			return jsonStringContent(table)
		}
		if column, ok := b.Columns[name]; ok {
			return jsonStringContent(column)
		}
		if op, ok := b.Operators[name]; ok {
			return mapOperator(documentOperators, op)
		}
		if lit, ok := b.Literals[name]; ok {
			data, err := json.Marshal(lit)
			if err != nil {
				return "", chatdberrors.Wrapf(err, chatdberrors.ErrTypeSubstitution, "cannot encode literal %q", name)
			}
			return string(data), nil
		}
		return "", missingPlaceholder(name)
	})
	if err != nil {
		return "", err
	}

	if !json.Valid([]byte(out)) {
		return "", chatdberrors.Newf(chatdberrors.ErrTypeSubstitution, "rendered statement is not valid JSON: %s", out)
	}
	return out, nil
}

// RenderText fills a title or description with plain values.
func RenderText(text string, b Bindings) (string, error) {
	return substitute(text, func(name string) (string, error) {
		if table, ok := b.Tables[name]; ok {
			return table, nil
		}
		if column, ok := b.Columns[name]; ok {
			return column, nil
		}
		if op, ok := b.Operators[name]; ok {
			return op, nil
		}
		if lit, ok := b.Literals[name]; ok {
			return fmt.Sprint(lit), nil
		}
		return "", missingPlaceholder(name)
	})
}

// Placeholders lists the distinct placeholder names of a text in order of
// first appearance.
func Placeholders(text string) []string {
	var out []string
	seen := map[string]bool{}
	for _, m := range placeholderPattern.FindAllStringSubmatch(text, -1) {
		if !seen[m[1]] {
			seen[m[1]] = true
			out = append(out, m[1])
		}
	}
	return out
}

func substitute(text string, resolve func(string) (string, error)) (string, error) {
	var firstErr error
	out := placeholderPattern.ReplaceAllStringFunc(text, func(match string) string {
		if firstErr != nil {
			return match
		}
		value, err := resolve(match[1 : len(match)-1])
		if err != nil {
			firstErr = err
			return match
		}
		return value
	})
	if firstErr != nil {
		return "", firstErr
	}
	return out, nil
}

func mapOperator(table map[string]string, op string) (string, error) {
	mapped, ok := table[strings.TrimSpace(op)]
	if !ok {
		return "", chatdberrors.Newf(chatdberrors.ErrTypeSubstitution, "unsupported operator %q", op)
	}
	return mapped, nil
}

func jsonStringContent(s string) (string, error) {
	data, err := json.Marshal(s)
	if err != nil {
		return "", chatdberrors.Wrap(err, chatdberrors.ErrTypeSubstitution, "cannot encode identifier")
	}
	return string(data[1 : len(data)-1]), nil
}

func missingPlaceholder(name string) error {
	return chatdberrors.Newf(chatdberrors.ErrTypeSubstitution, "no value bound for placeholder {%s}", name)
}
