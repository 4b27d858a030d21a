package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	chatdberrors "github.com/shakram02/go-chatdb/internal/errors"
	"github.com/shakram02/go-chatdb/internal/schema"
)

// scriptedExecutor answers every query with the outcome chosen by respond.
type scriptedExecutor struct {
	respond func(Query) (*Result, error)
	calls   []Query
	limits  []int
}

func (e *scriptedExecutor) Execute(_ context.Context, q Query, limit int) (*Result, error) {
	e.calls = append(e.calls, q)
	e.limits = append(e.limits, limit)
	return e.respond(q)
}

func oneRow(Query) (*Result, error) {
	return &Result{Columns: []string{"x"}, Rows: [][]any{{1}}}, nil
}

func noRows(Query) (*Result, error) {
	return &Result{Columns: []string{"x"}}, nil
}

func failing(Query) (*Result, error) {
	return nil, errors.New("syntax error")
}

func ordersSchema() *schema.Schema {
	return schema.New([]schema.Table{{
		Name: "orders",
		Fields: []schema.Field{
			{Name: "customer", Type: "varchar", Category: schema.CategoryText},
			{Name: "amount", Type: "int", Category: schema.CategoryNumeric},
		},
	}})
}

func newTestGenerator(t *testing.T, store Store, exec Executor, factor int) *Generator {
	t.Helper()
	c, err := Default()
	require.NoError(t, err)
	return NewGenerator(c, store, exec, questionDialect{}, GeneratorOptions{AttemptFactor: factor, Seed: 7})
}

func TestGenerateAcceptsDistinctQueries(t *testing.T) {
	exec := &scriptedExecutor{respond: oneRow}
	g := newTestGenerator(t, StoreRelational, exec, 5)

	report, err := g.Generate(context.Background(), ordersSchema(), SetSample, 2)
	require.NoError(t, err)

	require.Len(t, report.Accepted, 2)
	assert.NotEqual(t, report.Accepted[0].Key(), report.Accepted[1].Key())
	assert.Equal(t, 2, report.Attempts)
	assert.Equal(t, []int{1, 1}, exec.limits)
	for _, q := range report.Accepted {
		assert.Equal(t, "orders", q.Target)
		assert.Equal(t, StoreRelational, q.Store)
		assert.Empty(t, q.Construct)
	}
}

func TestGenerateNeverExceedsAvailablePatterns(t *testing.T) {
	exec := &scriptedExecutor{respond: oneRow}
	g := newTestGenerator(t, StoreRelational, exec, 5)

	report, err := g.Generate(context.Background(), ordersSchema(), SetSample, 50)
	require.NoError(t, err)

	// one text and one numeric column: total, having, top, bottom, above,
	// between and partial match
	assert.Equal(t, 7, report.Candidates)
	assert.Len(t, report.Accepted, 7)

	seen := map[string]bool{}
	for _, q := range report.Accepted {
		assert.False(t, seen[q.Key()], "duplicate %s", q.Statement)
		seen[q.Key()] = true
	}
}

func TestGenerateZeroRowsDoNotConsumeAttempts(t *testing.T) {
	exec := &scriptedExecutor{respond: noRows}
	g := newTestGenerator(t, StoreRelational, exec, 1)

	report, err := g.Generate(context.Background(), ordersSchema(), SetSample, 1)
	require.NoError(t, err)

	assert.Empty(t, report.Accepted)
	assert.Empty(t, report.Failures)
	assert.Equal(t, 0, report.Attempts)
	assert.Len(t, exec.calls, report.Candidates)
}

func TestGenerateErrorsConsumeAttempts(t *testing.T) {
	exec := &scriptedExecutor{respond: failing}
	g := newTestGenerator(t, StoreRelational, exec, 2)

	report, err := g.Generate(context.Background(), ordersSchema(), SetSample, 1)
	require.NoError(t, err)

	assert.Empty(t, report.Accepted)
	assert.Equal(t, 2, report.Attempts)
	assert.Len(t, exec.calls, 2)
	require.Len(t, report.Failures, 2)
	assert.EqualError(t, report.Failures[0].Err, "syntax error")
}

func TestGenerateNeverRetriesACandidate(t *testing.T) {
	exec := &scriptedExecutor{respond: failing}
	g := newTestGenerator(t, StoreRelational, exec, 100)

	report, err := g.Generate(context.Background(), ordersSchema(), SetSample, 1)
	require.NoError(t, err)

	assert.Len(t, exec.calls, report.Candidates)
	seen := map[string]bool{}
	for _, q := range exec.calls {
		assert.False(t, seen[q.Key()])
		seen[q.Key()] = true
	}
}

func TestGenerateIsDeterministicForASeed(t *testing.T) {
	run := func() []string {
		exec := &scriptedExecutor{respond: oneRow}
		g := newTestGenerator(t, StoreRelational, exec, 5)
		report, err := g.Generate(context.Background(), ordersSchema(), SetSample, 3)
		require.NoError(t, err)
		var out []string
		for _, q := range report.Accepted {
			out = append(out, q.Statement)
		}
		return out
	}

	assert.Equal(t, run(), run())
}

func TestGenerateEmptySchema(t *testing.T) {
	g := newTestGenerator(t, StoreRelational, &scriptedExecutor{respond: oneRow}, 5)

	_, err := g.Generate(context.Background(), schema.New(nil), SetSample, 2)
	require.Error(t, err)
	assert.True(t, chatdberrors.IsType(err, chatdberrors.ErrTypeEmptySchema))
}

func TestGenerateStopsOnCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	exec := &scriptedExecutor{respond: func(Query) (*Result, error) {
		cancel()
		return nil, context.Canceled
	}}
	g := newTestGenerator(t, StoreRelational, exec, 5)

	_, err := g.Generate(ctx, ordersSchema(), SetSample, 2)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Len(t, exec.calls, 1)
}

func TestAggregatesStayWithinOneTable(t *testing.T) {
	s := schema.New([]schema.Table{
		{Name: "orders", Fields: []schema.Field{
			{Name: "customer", Category: schema.CategoryText},
			{Name: "amount", Category: schema.CategoryNumeric},
		}},
		{Name: "products", Fields: []schema.Field{
			{Name: "title", Category: schema.CategoryText},
			{Name: "price", Category: schema.CategoryNumeric},
		}},
	})
	own := map[string][]string{"orders": {"customer", "amount"}, "products": {"title", "price"}}
	other := map[string][]string{"orders": {"title", "price"}, "products": {"customer", "amount"}}

	g := newTestGenerator(t, StoreRelational, &scriptedExecutor{respond: oneRow}, 5)
	for _, set := range []string{SetSample, "GROUP BY", "HAVING"} {
		candidates, failures := g.Candidates(s, set)
		require.Empty(t, failures)
		for _, q := range candidates {
			if q.Kind != "aggregate" {
				continue
			}
			assert.Contains(t, q.Statement, "`"+own[q.Target][0]+"`")
			for _, col := range other[q.Target] {
				assert.NotContains(t, q.Statement, "`"+col+"`")
			}
		}
	}
}

func TestJoinCandidatesFollowForeignKeys(t *testing.T) {
	s := schema.New([]schema.Table{
		{Name: "orders", Fields: []schema.Field{
			{Name: "id", Category: schema.CategoryNumeric, PrimaryKey: true},
			{Name: "customer_id", Category: schema.CategoryNumeric, ForeignKey: true,
				References: &schema.Reference{Table: "customers", Column: "id"}},
		}},
		{Name: "customers", Fields: []schema.Field{
			{Name: "id", Category: schema.CategoryNumeric, PrimaryKey: true},
			{Name: "name", Category: schema.CategoryText},
		}},
	})

	g := newTestGenerator(t, StoreRelational, &scriptedExecutor{respond: oneRow}, 5)
	candidates, failures := g.Candidates(s, "JOIN")
	require.Empty(t, failures)
	require.Len(t, candidates, 1)

	q := candidates[0]
	assert.Equal(t, "JOIN", q.Construct)
	assert.Equal(t, "SELECT a.*, b.* FROM `orders` a JOIN `customers` b ON a.`customer_id` = b.`id` LIMIT 10", q.Statement)
	assert.Equal(t, "Join orders with customers", q.Title)
}

func TestJoinCandidateWithDanglingReferenceFails(t *testing.T) {
	s := schema.New([]schema.Table{
		{Name: "orders", Fields: []schema.Field{
			{Name: "customer_id", ForeignKey: true, References: &schema.Reference{Table: "customers", Column: "id"}},
		}},
	})

	g := newTestGenerator(t, StoreRelational, &scriptedExecutor{respond: oneRow}, 5)
	candidates, failures := g.Candidates(s, "JOIN")
	assert.Empty(t, candidates)
	require.Len(t, failures, 1)
	assert.True(t, chatdberrors.IsType(failures[0].Err, chatdberrors.ErrTypeValidation))
}

func TestDocumentCandidates(t *testing.T) {
	s := schema.New([]schema.Table{{
		Name: "sales",
		Fields: []schema.Field{
			schema.DocumentField("_id", "abc"),
			schema.DocumentField("store", "north"),
			schema.DocumentField("total", 12.5),
		},
	}})

	g := newTestGenerator(t, StoreDocument, &scriptedExecutor{respond: oneRow}, 5)
	for _, set := range []string{SetSample, "$match", "$group", "$sort", "$limit"} {
		candidates, failures := g.Candidates(s, set)
		require.Empty(t, failures, set)
		require.NotEmpty(t, candidates, set)

		for _, q := range candidates {
			assert.True(t, json.Valid([]byte(q.Statement)), q.Statement)
			assert.Contains(t, []string{OpFind, OpAggregate}, q.Op)
			if q.Op == OpAggregate {
				assert.True(t, strings.HasPrefix(q.Statement, "["), q.Statement)
			}
			assert.Equal(t, "sales", q.Target)
		}
	}
}

func TestDocumentGroupSumsMeasureByText(t *testing.T) {
	s := schema.New([]schema.Table{{
		Name: "orders",
		Fields: []schema.Field{
			schema.DocumentField("customer", "ann"),
			schema.DocumentField("amount", int32(3)),
		},
	}})

	g := newTestGenerator(t, StoreDocument, &scriptedExecutor{respond: oneRow}, 5)
	candidates, _ := g.Candidates(s, "$group")

	var statements []string
	for _, q := range candidates {
		statements = append(statements, q.Statement)
	}
	assert.Contains(t, statements, `[{"$group": {"_id": "$customer", "total": {"$sum": "$amount"}}}]`)
}
