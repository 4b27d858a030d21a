// Package catalog holds the query template catalog, fills templates from
// introspected schemas and validates the resulting queries against a live
// store.
package catalog

import (
	"context"
	"fmt"
	"strings"
)

// Store is the kind of store a query targets.
type Store string

const (
	StoreRelational Store = "relational"
	StoreDocument   Store = "document"
)

// Document operations.
const (
	OpFind      = "find"
	OpAggregate = "aggregate"
)

// Query is a fully substituted template bound to one table or collection.
type Query struct {
	Title       string
	Description string
	Target      string // table or collection
	Store       Store
	Template    string
	Kind        string
	Construct   string
	Op          string // document stores only
	Statement   string
	Args        []any
}

// Key identifies a query for de-duplication.
func (q Query) Key() string {
	var b strings.Builder
	b.WriteString(q.Target)
	b.WriteByte(0)
	b.WriteString(q.Op)
	b.WriteByte(0)
	b.WriteString(q.Statement)
	for _, arg := range q.Args {
		fmt.Fprintf(&b, "\x00%T:%v", arg, arg)
	}
	return b.String()
}

// Result is the tabular outcome of executing a query.
type Result struct {
	Columns []string
	Rows    [][]any
}

// Empty reports whether the result has no rows.
func (r *Result) Empty() bool {
	return r == nil || len(r.Rows) == 0
}

// Executor runs a query against a live store. A positive limit caps the
// number of rows fetched.
type Executor interface {
	Execute(ctx context.Context, q Query, limit int) (*Result, error)
}
