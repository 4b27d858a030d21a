package catalog

import (
	"context"
	"math/rand/v2"
	"time"

	"go.uber.org/zap"

	chatdberrors "github.com/shakram02/go-chatdb/internal/errors"
	"github.com/shakram02/go-chatdb/internal/logging"
	"github.com/shakram02/go-chatdb/internal/schema"
)

const (
	defaultAttemptFactor = 5
	validationRowLimit   = 1
)

// Failure is a candidate dropped because it could not be built or executed.
type Failure struct {
	Query Query
	Err   error
}

// Report is the outcome of one generation request.
type Report struct {
	Accepted   []Query
	Failures   []Failure
	Candidates int
	Attempts   int
}

// GeneratorOptions tunes a Generator.
type GeneratorOptions struct {
	AttemptFactor int
	Seed          int64 // 0 picks a time based seed
	Logger        *zap.Logger
	// OnCandidate is called before each candidate is executed.
	OnCandidate func(Query)
}

// Generator fills templates from a schema and keeps the candidates that
// execute without error and return at least one row.
type Generator struct {
	catalog     *Catalog
	store       Store
	exec        Executor
	dialect     SQLDialect
	factor      int
	rng         *rand.Rand
	logger      *zap.Logger
	onCandidate func(Query)
}

// NewGenerator returns a generator for one store. dialect is required for
// relational stores and ignored for document stores.
func NewGenerator(c *Catalog, store Store, exec Executor, dialect SQLDialect, opts GeneratorOptions) *Generator {
	factor := opts.AttemptFactor
	if factor < 1 {
		factor = defaultAttemptFactor
	}

	seed := opts.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}

	return &Generator{
		catalog:     c,
		store:       store,
		exec:        exec,
		dialect:     dialect,
		factor:      factor,
		rng:         rand.New(rand.NewPCG(uint64(seed), uint64(seed)>>1|1)),
		logger:      logging.OrNop(opts.Logger),
		onCandidate: opts.OnCandidate,
	}
}

// Generate returns up to limit validated queries from a template set. Each
// pick is removed from the pool; an execution error costs one attempt, an
// empty result costs none. Generation stops at limit accepted queries,
// after AttemptFactor*limit attempts, or when the pool runs dry.
func (g *Generator) Generate(ctx context.Context, s *schema.Schema, set string, limit int) (*Report, error) {
	if s.Empty() {
		return nil, chatdberrors.NewEmptySchemaError(string(g.store))
	}

	pool, failures := g.Candidates(s, set)
	report := &Report{Failures: failures, Candidates: len(pool)}
	budget := g.factor * limit

	for len(report.Accepted) < limit && report.Attempts < budget && len(pool) > 0 {
		i := g.rng.IntN(len(pool))
		q := pool[i]
		pool[i] = pool[len(pool)-1]
		pool = pool[:len(pool)-1]

		if g.onCandidate != nil {
			g.onCandidate(q)
		}

		res, err := g.exec.Execute(ctx, q, validationRowLimit)
		if err != nil {
			if ctx.Err() != nil {
				return report, ctx.Err()
			}
			report.Attempts++
			report.Failures = append(report.Failures, Failure{Query: q, Err: err})
			g.logger.Warn("candidate query failed",
				zap.String("target", q.Target),
				zap.String("template", q.Template),
				zap.Error(err))
			continue
		}

		if res.Empty() {
			g.logger.Debug("candidate query returned no rows",
				zap.String("target", q.Target),
				zap.String("template", q.Template))
			continue
		}

		report.Attempts++
		report.Accepted = append(report.Accepted, q)
	}

	g.logger.Info("generated queries",
		zap.String("set", set),
		zap.Int("accepted", len(report.Accepted)),
		zap.Int("candidates", report.Candidates),
		zap.Int("attempts", report.Attempts))

	return report, nil
}

// Candidates enumerates every distinct query of a set over all tables.
// Templates that cannot be filled are reported as failures.
func (g *Generator) Candidates(s *schema.Schema, set string) ([]Query, []Failure) {
	var (
		out      []Query
		failures []Failure
		seen     = map[string]bool{}
	)

	construct := ""
	if set != SetSample {
		construct = set
	}

	for _, table := range s.Tables {
		for _, tmpl := range g.catalog.For(g.store).Templates {
			if !tmpl.InSet(set) {
				continue
			}

			for _, b := range bindSlots(table, tmpl) {
				q, err := g.build(s, table.Name, tmpl, b)
				if err != nil {
					failures = append(failures, Failure{
						Query: Query{Title: tmpl.Name, Target: table.Name, Store: g.store, Template: tmpl.Name},
						Err:   err,
					})
					continue
				}
				q.Construct = construct

				key := q.Key()
				if seen[key] {
					continue
				}
				seen[key] = true
				out = append(out, q)
			}
		}
	}

	return out, failures
}

func (g *Generator) build(s *schema.Schema, table string, tmpl Template, b Bindings) (Query, error) {
	if err := b.Check(s, table); err != nil {
		return Query{}, err
	}

	q := Query{
		Target:   table,
		Store:    g.store,
		Template: tmpl.Name,
		Kind:     tmpl.Kind,
		Op:       tmpl.Op,
	}

	var err error
	if q.Title, err = RenderText(tmpl.Title, b); err != nil {
		return Query{}, err
	}
	if q.Description, err = RenderText(tmpl.Description, b); err != nil {
		return Query{}, err
	}

	if g.store == StoreDocument {
		q.Statement, err = RenderDocument(tmpl.Statement, b)
	} else {
		q.Statement, q.Args, err = RenderSQL(tmpl.Statement, b, g.dialect)
	}
	if err != nil {
		return Query{}, err
	}

	return q, nil
}

// bindSlots returns one binding per combination of slot fields.
func bindSlots(table schema.Table, tmpl Template) []Bindings {
	base := NewBindings(table.Name)
	for name, value := range tmpl.Literals {
		base.Literals[name] = value
	}

	combos := []Bindings{base}
	for _, slot := range tmpl.Slots {
		fields, err := table.Select(slot.Kind)
		if err != nil || len(fields) == 0 {
			return nil
		}

		next := make([]Bindings, 0, len(combos)*len(fields))
		for _, combo := range combos {
			for _, f := range fields {
				b := combo.clone()
				b.Columns[slot.Name] = f.Name
				if f.References != nil {
					b.Tables[slot.Name+"_table"] = f.References.Table
					b.Columns[slot.Name+"_column"] = f.References.Column
					b.owners[slot.Name+"_column"] = f.References.Table
				}
				next = append(next, b)
			}
		}
		combos = next
	}

	return combos
}

func (b Bindings) clone() Bindings {
	c := Bindings{
		Tables:    make(map[string]string, len(b.Tables)),
		Columns:   make(map[string]string, len(b.Columns)),
		Operators: make(map[string]string, len(b.Operators)),
		Literals:  make(map[string]any, len(b.Literals)),
		owners:    make(map[string]string, len(b.owners)),
	}
	for k, v := range b.owners {
		c.owners[k] = v
	}
	for k, v := range b.Tables {
		c.Tables[k] = v
	}
	for k, v := range b.Columns {
		c.Columns[k] = v
	}
	for k, v := range b.Operators {
		c.Operators[k] = v
	}
	for k, v := range b.Literals {
		c.Literals[k] = v
	}
	return c
}

// columnsByTable groups bound columns by the table that owns them.
func (b Bindings) columnsByTable(target string) map[string][]string {
	out := map[string][]string{}
	for placeholder, column := range b.Columns {
		owner := target
		if o, ok := b.owners[placeholder]; ok {
			owner = o
		}
		out[owner] = append(out[owner], column)
	}
	return out
}
