package catalog

import (
	_ "embed"
	"fmt"
	"regexp"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/shakram02/go-chatdb/internal/schema"
)

// SetSample names the template set used for sample queries.
const SetSample = "sample"

//go:embed templates.yaml
var defaultTemplates []byte

// Slot binds one placeholder to a field chosen by a schema selector.
type Slot struct {
	Name string `yaml:"name"`
	Kind string `yaml:"kind"`
}

// Template is a parameterized query skeleton.
type Template struct {
	Name        string         `yaml:"name"`
	Kind        string         `yaml:"kind"`
	Sets        []string       `yaml:"sets"`
	Slots       []Slot         `yaml:"slots"`
	Literals    map[string]any `yaml:"literals"`
	Op          string         `yaml:"op"`
	Title       string         `yaml:"title"`
	Description string         `yaml:"description"`
	Statement   string         `yaml:"statement"`
}

// InSet reports whether the template belongs to a set.
func (t Template) InSet(set string) bool {
	return slices.Contains(t.Sets, set)
}

// Construct is a named clause or stage users can ask examples for.
type Construct struct {
	Name        string   `yaml:"name"`
	Aliases     []string `yaml:"aliases"`
	Explanation string   `yaml:"explanation"`
}

// StoreCatalog is the template catalog of one store kind.
type StoreCatalog struct {
	Constructs []Construct `yaml:"constructs"`
	Templates  []Template  `yaml:"templates"`
}

// Catalog holds the templates of every store kind.
type Catalog struct {
	Relational StoreCatalog `yaml:"relational"`
	Document   StoreCatalog `yaml:"document"`
}

var (
	templateKinds = []string{"aggregate", "filter", "sort", "join", "exists", "limit"}
	spaceRun      = regexp.MustCompile(`\s+`)
)

// Default returns the built-in catalog.
func Default() (*Catalog, error) {
	return Load(defaultTemplates)
}

// Load parses and checks a YAML catalog.
func Load(data []byte) (*Catalog, error) {
	var c Catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("failed to parse template catalog: %w", err)
	}

	if err := c.validate(); err != nil {
		return nil, err
	}

	return &c, nil
}

// For returns the catalog of a store kind.
func (c *Catalog) For(store Store) *StoreCatalog {
	if store == StoreDocument {
		return &c.Document
	}
	return &c.Relational
}

// Construct resolves user input to a construct. Relational names match
// case-insensitively with collapsed spaces; document stages may omit the
// leading "$".
func (c *Catalog) Construct(store Store, input string) (Construct, bool) {
	want := normalizeConstruct(input)
	for _, construct := range c.For(store).Constructs {
		if normalizeConstruct(construct.Name) == want {
			return construct, true
		}
		for _, alias := range construct.Aliases {
			if normalizeConstruct(alias) == want {
				return construct, true
			}
		}
	}
	return Construct{}, false
}

// ConstructNames lists the construct names of a store kind.
func (c *Catalog) ConstructNames(store Store) []string {
	var out []string
	for _, construct := range c.For(store).Constructs {
		out = append(out, construct.Name)
	}
	return out
}

func normalizeConstruct(s string) string {
	return strings.ToUpper(spaceRun.ReplaceAllString(strings.TrimSpace(s), " "))
}

func (c *Catalog) validate() error {
	for _, store := range []Store{StoreRelational, StoreDocument} {
		sc := c.For(store)
		if len(sc.Templates) == 0 {
			return fmt.Errorf("template catalog has no %s templates", store)
		}

		sets := map[string]bool{SetSample: true}
		for _, construct := range sc.Constructs {
			sets[construct.Name] = true
		}

		seen := map[string]bool{}
		for _, t := range sc.Templates {
			if err := t.validate(store, sets); err != nil {
				return fmt.Errorf("%s template %q: %w", store, t.Name, err)
			}
			if seen[t.Name] {
				return fmt.Errorf("%s template %q is defined twice", store, t.Name)
			}
			seen[t.Name] = true
		}
	}
	return nil
}

func (t Template) validate(store Store, sets map[string]bool) error {
	if t.Name == "" || t.Statement == "" || t.Title == "" {
		return fmt.Errorf("name, title and statement are required")
	}
	if !slices.Contains(templateKinds, t.Kind) {
		return fmt.Errorf("unknown kind %q", t.Kind)
	}
	if len(t.Sets) == 0 {
		return fmt.Errorf("template belongs to no set")
	}
	for _, set := range t.Sets {
		if !sets[set] {
			return fmt.Errorf("unknown set %q", set)
		}
	}
	if store == StoreDocument && t.Op != OpFind && t.Op != OpAggregate {
		return fmt.Errorf("document templates need op find or aggregate, got %q", t.Op)
	}

	for _, slot := range t.Slots {
		if !slices.Contains(schema.SelectorKinds(), slot.Kind) {
			return fmt.Errorf("slot %q has unknown kind %q", slot.Name, slot.Kind)
		}
		if slot.Name == TablePlaceholder {
			return fmt.Errorf("slot name %q is reserved", slot.Name)
		}
	}

	return nil
}
