package nlq

import (
	_ "embed"
	"fmt"
	"regexp"
	"slices"

	"gopkg.in/yaml.v3"

	"github.com/shakram02/go-chatdb/internal/catalog"
)

//go:embed patterns.yaml
var defaultRules []byte

// Condition kinds an operation accepts.
const (
	ConditionHaving = "having"
	ConditionWhere  = "where"
)

// Pattern is one natural-language regular expression.
type Pattern struct {
	Name        string          `yaml:"name"`
	Op          string          `yaml:"op"`
	Stores      []catalog.Store `yaml:"stores"`
	Regex       string          `yaml:"regex"`
	Title       string          `yaml:"title"`
	Description string          `yaml:"description"`
	Example     string          `yaml:"example"`

	re *regexp.Regexp
}

// AppliesTo reports whether the pattern is used for a store kind.
func (p Pattern) AppliesTo(store catalog.Store) bool {
	return slices.Contains(p.Stores, store)
}

// Skeleton is the statement an operation renders to on one store kind.
type Skeleton struct {
	Op        string `yaml:"op"` // document stores only
	Statement string `yaml:"statement"`
	Having    string `yaml:"having"`
}

// Operation describes what a matched pattern builds.
type Operation struct {
	Kind       string    `yaml:"kind"`
	Condition  string    `yaml:"condition"`
	Aliases    []string  `yaml:"aliases"` // names a HAVING condition may use for the aggregate
	Relational *Skeleton `yaml:"relational"`
	Document   *Skeleton `yaml:"document"`
}

// Skeleton returns the operation's skeleton for a store kind, or nil.
func (o Operation) Skeleton(store catalog.Store) *Skeleton {
	if store == catalog.StoreDocument {
		return o.Document
	}
	return o.Relational
}

// Rules is a compiled pattern catalog.
type Rules struct {
	Filler     []string             `yaml:"filler"`
	Patterns   []Pattern            `yaml:"patterns"`
	Operations map[string]Operation `yaml:"operations"`

	filler *regexp.Regexp
}

// DefaultRules returns the built-in patterns.
func DefaultRules() (*Rules, error) {
	return LoadRules(defaultRules)
}

// LoadRules parses and compiles a YAML pattern catalog.
func LoadRules(data []byte) (*Rules, error) {
	var r Rules
	if err := yaml.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("failed to parse pattern catalog: %w", err)
	}

	filler, err := fillerPattern(r.Filler)
	if err != nil {
		return nil, fmt.Errorf("invalid filler words: %w", err)
	}
	r.filler = filler

	if len(r.Patterns) == 0 {
		return nil, fmt.Errorf("pattern catalog has no patterns")
	}

	for i := range r.Patterns {
		p := &r.Patterns[i]
		if p.re, err = regexp.Compile(p.Regex); err != nil {
			return nil, fmt.Errorf("pattern %s: %w", p.Name, err)
		}
		if p.re.SubexpIndex("field") < 0 {
			return nil, fmt.Errorf("pattern %s has no field group", p.Name)
		}
		if len(p.Stores) == 0 {
			return nil, fmt.Errorf("pattern %s applies to no store", p.Name)
		}

		op, ok := r.Operations[p.Op]
		if !ok {
			return nil, fmt.Errorf("pattern %s uses unknown operation %q", p.Name, p.Op)
		}
		if op.Condition != ConditionHaving && op.Condition != ConditionWhere {
			return nil, fmt.Errorf("operation %s has invalid condition kind %q", p.Op, op.Condition)
		}
		if op.Condition == ConditionWhere && p.re.SubexpIndex("cond") < 0 {
			return nil, fmt.Errorf("pattern %s needs a cond group for operation %s", p.Name, p.Op)
		}
		for _, store := range p.Stores {
			if store != catalog.StoreRelational && store != catalog.StoreDocument {
				return nil, fmt.Errorf("pattern %s has unknown store %q", p.Name, store)
			}
			if op.Skeleton(store) == nil {
				return nil, fmt.Errorf("operation %s has no %s statement", p.Op, store)
			}
		}
	}

	return &r, nil
}

// Examples lists one sample input per pattern of a store kind.
func (r *Rules) Examples(store catalog.Store) []string {
	var out []string
	for _, p := range r.Patterns {
		if p.AppliesTo(store) && p.Example != "" {
			out = append(out, p.Example)
		}
	}
	return out
}
