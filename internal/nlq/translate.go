// Package nlq translates short natural-language requests into queries by
// matching an ordered list of regular expressions and mapping the captured
// phrases onto live schema fields.
package nlq

import (
	"encoding/json"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/shakram02/go-chatdb/internal/catalog"
	chatdberrors "github.com/shakram02/go-chatdb/internal/errors"
	"github.com/shakram02/go-chatdb/internal/logging"
	"github.com/shakram02/go-chatdb/internal/schema"
)

// Placeholders bound by the translator.
const (
	placeholderField      = "field"
	placeholderGroup      = "group"
	placeholderWhereField = "where_field"
	placeholderOp         = "op"
	placeholderValue      = "value"
	placeholderCondition  = "condition"
)

// Options tunes a Translator.
type Options struct {
	Strategy string  // config.MatchTokens or config.MatchSnake
	Cutoff   float64 // DefaultCutoff when zero
	Logger   *zap.Logger
}

// Translator turns natural-language input into a query for one store kind.
type Translator struct {
	rules   *Rules
	store   catalog.Store
	dialect catalog.SQLDialect
	matcher *Matcher
	logger  *zap.Logger
}

// NewTranslator returns a translator. dialect is required for relational
// stores and ignored for document stores.
func NewTranslator(r *Rules, store catalog.Store, dialect catalog.SQLDialect, opts Options) (*Translator, error) {
	if opts.Cutoff == 0 {
		opts.Cutoff = DefaultCutoff
	}
	m, err := NewMatcher(opts.Strategy, opts.Cutoff)
	if err != nil {
		return nil, chatdberrors.Wrap(err, chatdberrors.ErrTypeConfig, "invalid field matcher")
	}
	if store == catalog.StoreRelational && dialect == nil {
		return nil, chatdberrors.New(chatdberrors.ErrTypeInternal, "relational translator needs a SQL dialect")
	}

	return &Translator{
		rules:   r,
		store:   store,
		dialect: dialect,
		matcher: m,
		logger:  logging.OrNop(opts.Logger),
	}, nil
}

// Examples lists sample inputs the translator understands.
func (t *Translator) Examples() []string {
	return t.rules.Examples(t.store)
}

type match struct {
	pattern Pattern
	verb    string
	field   string
	group   string
	cond    string
}

// Translate maps input onto the schema. The first matching pattern wins; a
// phrase that maps to no field, or a condition that does not parse, rejects
// the whole request.
func (t *Translator) Translate(s *schema.Schema, input string) (catalog.Query, error) {
	text := Normalize(input)
	if text == "" {
		return catalog.Query{}, chatdberrors.New(chatdberrors.ErrTypeParse, "empty query")
	}
	if s == nil || s.Empty() {
		return catalog.Query{}, chatdberrors.NewEmptySchemaError(string(t.store))
	}

	m, ok := t.find(text)
	if !ok {
		err := chatdberrors.Newf(chatdberrors.ErrTypeParse, "no query pattern matches %q", text)
		for _, example := range t.Examples() {
			err = err.WithSuggestion("Try: " + example)
		}
		return catalog.Query{}, err
	}
	op := t.rules.Operations[m.pattern.Op]
	skeleton := op.Skeleton(t.store)

	field, err := t.mapPhrase(s, "field", m.field)
	if err != nil {
		return catalog.Query{}, err
	}
	mapped := []string{field}

	var group string
	if m.group != "" {
		if group, err = t.mapPhrase(s, "group", m.group); err != nil {
			return catalog.Query{}, err
		}
		mapped = append(mapped, group)
	}

	table, ok := tableFor(s, mapped...)
	if !ok {
		return catalog.Query{}, chatdberrors.Newf(chatdberrors.ErrTypeMapping,
			"no table or collection contains all of %s", strings.Join(mapped, ", "))
	}

	b := catalog.NewBindings(table)
	b.Columns[placeholderField] = field
	if group != "" {
		b.Columns[placeholderGroup] = group
	}

	statement, having := skeleton.Statement, ""
	var cond *Condition
	switch {
	case op.Condition == ConditionWhere:
		c, err := t.bindWhere(s, table, m.cond, b)
		if err != nil {
			return catalog.Query{}, err
		}
		cond = &c

	case m.cond != "":
		c, err := t.bindHaving(s, table, field, op, m.cond, b)
		if err != nil {
			return catalog.Query{}, err
		}
		cond = &c
		having = skeleton.Having
	}
	if cond != nil {
		b.Literals[placeholderCondition] = cond.String()
	}

	if err := b.Check(s, table); err != nil {
		return catalog.Query{}, chatdberrors.Wrap(err, chatdberrors.ErrTypeMapping, "mapped fields failed the schema check")
	}

	q := catalog.Query{
		Target:   table,
		Store:    t.store,
		Template: "nl:" + m.pattern.Name,
		Kind:     op.Kind,
		Op:       skeleton.Op,
	}
	if q.Title, err = catalog.RenderText(m.pattern.Title, b); err != nil {
		return catalog.Query{}, err
	}
	if q.Description, err = catalog.RenderText(m.pattern.Description, b); err != nil {
		return catalog.Query{}, err
	}
	if having != "" && op.Condition == ConditionHaving {
		q.Description += fmt.Sprintf(" Keeps groups where %s.", cond)
	}

	if err := t.render(&q, statement, having, b); err != nil {
		return catalog.Query{}, err
	}

	t.logger.Info("translated natural language query",
		zap.String("pattern", m.pattern.Name),
		zap.String("verb", m.verb),
		zap.String("target", table),
		zap.String("statement", q.Statement))
	return q, nil
}

func (t *Translator) find(text string) (match, bool) {
	for _, p := range t.rules.Patterns {
		if !p.AppliesTo(t.store) {
			continue
		}
		groups := p.re.FindStringSubmatch(text)
		if groups == nil {
			continue
		}

		get := func(name string) string {
			if i := p.re.SubexpIndex(name); i >= 0 {
				return strings.TrimSpace(groups[i])
			}
			return ""
		}
		return match{
			pattern: p,
			verb:    get("verb"),
			field:   get("field"),
			group:   get("group"),
			cond:    get("cond"),
		}, true
	}
	return match{}, false
}

// mapPhrase cleans a raw phrase and maps it to a field of any table.
func (t *Translator) mapPhrase(s *schema.Schema, role, raw string) (string, error) {
	phrase := clean(t.rules.filler, raw)
	if phrase == "" {
		return "", chatdberrors.Newf(chatdberrors.ErrTypeParse, "no %s name left in %q", role, raw)
	}

	field, ok := t.matcher.Match(phrase, allFieldNames(s))
	if !ok {
		return "", chatdberrors.Newf(chatdberrors.ErrTypeMapping, "could not map %s %q to any field", role, phrase).
			WithSuggestion("Use a field name shown in the schema")
	}
	return field, nil
}

func (t *Translator) bindWhere(s *schema.Schema, table, raw string, b catalog.Bindings) (Condition, error) {
	c, err := ParseCondition(raw)
	if err != nil {
		return Condition{}, err
	}

	tbl, _ := s.Table(table)
	field, ok := t.matcher.Match(c.Field, tbl.FieldNames())
	if !ok {
		return Condition{}, chatdberrors.Newf(chatdberrors.ErrTypeMapping, "could not map condition field %q to a field of %s", c.Field, table)
	}
	c.Field = field

	b.Columns[placeholderWhereField] = field
	b.Operators[placeholderOp] = c.Operator
	b.Literals[placeholderValue] = c.Value
	return c, nil
}

// bindHaving accepts a condition on the aggregate, named by one of the
// operation's aliases or by the aggregated field itself.
func (t *Translator) bindHaving(s *schema.Schema, table, field string, op Operation, raw string, b catalog.Bindings) (Condition, error) {
	c, err := ParseCondition(raw)
	if err != nil {
		return Condition{}, err
	}

	lhs := strings.ToLower(c.Field)
	allowed := false
	for _, alias := range op.Aliases {
		if lhs == alias {
			allowed = true
			break
		}
	}
	if !allowed {
		tbl, _ := s.Table(table)
		mapped, ok := t.matcher.Match(c.Field, tbl.FieldNames())
		allowed = ok && mapped == field
	}
	if !allowed {
		return Condition{}, chatdberrors.Newf(chatdberrors.ErrTypeParse, "HAVING condition must compare the aggregate, not %q", c.Field).
			WithSuggestion(fmt.Sprintf("Use one of: %s, %s", strings.Join(op.Aliases, ", "), field))
	}

	b.Operators[placeholderOp] = c.Operator
	b.Literals[placeholderValue] = c.Value
	return c, nil
}

func (t *Translator) render(q *catalog.Query, statement, having string, b catalog.Bindings) error {
	if t.store == catalog.StoreRelational {
		if having != "" {
			statement += " " + having
		}
		out, args, err := catalog.RenderSQL(statement, b, t.dialect)
		if err != nil {
			return err
		}
		q.Statement, q.Args = out, args
		return nil
	}

	out, err := catalog.RenderDocument(statement, b)
	if err != nil {
		return err
	}
	if having != "" {
		extra, err := catalog.RenderDocument(having, b)
		if err != nil {
			return err
		}
		if out, err = appendStages(out, extra); err != nil {
			return err
		}
	}
	q.Statement = out
	return nil
}

// appendStages concatenates two JSON pipelines.
func appendStages(pipeline, extra string) (string, error) {
	var stages, more []json.RawMessage
	if err := json.Unmarshal([]byte(pipeline), &stages); err != nil {
		return "", chatdberrors.Wrap(err, chatdberrors.ErrTypeSubstitution, "pipeline is not a JSON array")
	}
	if err := json.Unmarshal([]byte(extra), &more); err != nil {
		return "", chatdberrors.Wrap(err, chatdberrors.ErrTypeSubstitution, "pipeline is not a JSON array")
	}
	data, err := json.Marshal(append(stages, more...))
	if err != nil {
		return "", chatdberrors.Wrap(err, chatdberrors.ErrTypeSubstitution, "cannot encode pipeline")
	}
	return string(data), nil
}

func allFieldNames(s *schema.Schema) []string {
	var out []string
	for _, t := range s.Tables {
		out = append(out, t.FieldNames()...)
	}
	return out
}

// tableFor returns the first table, in schema order, holding every field.
func tableFor(s *schema.Schema, fields ...string) (string, bool) {
	for _, t := range s.Tables {
		found := true
		for _, f := range fields {
			if _, ok := t.Field(f); !ok {
				found = false
				break
			}
		}
		if found {
			return t.Name, true
		}
	}
	return "", false
}
