package query

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	dErrors "storegate/pkg/domain-errors"
)

// DefaultScrollSize is used when the configuration does not set scrollSize.
const DefaultScrollSize = 100

var rangeOperators = map[string]bool{"gt": true, "gte": true, "lt": true, "lte": true}

// Config is the immutable search configuration, loaded once at startup.
type Config struct {
	ChainAliases map[string]string
	ReturnFields []string
	ScrollSize   int
	Filters      []Filter
	Missing      []ExistsFilter
	Facets       FacetMapper
}

// Terms is a configured term value: a scalar, or a list that always yields a terms clause.
type Terms struct {
	Values []any
	Multi  bool
}

func (t *Terms) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.ScalarNode:
		var v any
		if err := node.Decode(&v); err != nil {
			return err
		}
		t.Values, t.Multi = []any{v}, false
	case yaml.SequenceNode:
		var vs []any
		if err := node.Decode(&vs); err != nil {
			return err
		}
		t.Values, t.Multi = vs, true
	default:
		return fmt.Errorf("line %d: term must be a scalar or a list", node.Line)
	}
	return nil
}

func (m *FacetMapper) UnmarshalYAML(node *yaml.Node) error {
	return eachEntry(node, func(key string, f Facet) error {
		if f.Field == "" {
			return fmt.Errorf("facet %q: field is required", key)
		}
		f.Key = key
		if f.DisplayName == "" {
			f.DisplayName = key
		}
		if f.BucketName == "" {
			f.BucketName = "key"
		}
		if f.CountName == "" {
			f.CountName = "count"
		}
		*m = append(*m, f)
		return nil
	})
}

type termFilterSpec struct {
	Field   string `yaml:"field"`
	Term    Terms  `yaml:"term"`
	Default bool   `yaml:"default"`
	Mode    string `yaml:"mode"`
}

type rangeFilterSpec struct {
	Field   string `yaml:"field"`
	Type    string `yaml:"type"`
	Range   any    `yaml:"range"`
	Default bool   `yaml:"default"`
}

type existsFilterSpec struct {
	Field   string `yaml:"field"`
	Default bool   `yaml:"default"`
}

type fileSpec struct {
	ChainAliases   map[string]string `yaml:"chainAliases"`
	ReturnFields   []string          `yaml:"returnFields"`
	ScrollSize     int               `yaml:"scrollSize"`
	TermFilters    yaml.Node         `yaml:"termFilters"`
	RangeFilters   yaml.Node         `yaml:"rangeFilters"`
	ExistsFilters  yaml.Node         `yaml:"existsFilters"`
	MissingFilters yaml.Node         `yaml:"missingFilters"`
	Facets         FacetMapper       `yaml:"facets"`
}

// Load reads and parses the search configuration file at path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read search config: %w", err)
	}
	return Parse(data)
}

// Parse builds a Config from YAML. Filters keep their document order: term filters
// first, then range, then exists.
func Parse(data []byte) (*Config, error) {
	var doc fileSpec
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse search config: %w", err)
	}
	if len(doc.ChainAliases) == 0 {
		return nil, fmt.Errorf("search config: chainAliases must not be empty")
	}

	cfg := &Config{
		ChainAliases: doc.ChainAliases,
		ReturnFields: doc.ReturnFields,
		ScrollSize:   doc.ScrollSize,
		Facets:       doc.Facets,
	}
	if cfg.ScrollSize <= 0 {
		cfg.ScrollSize = DefaultScrollSize
	}

	err := eachEntry(&doc.TermFilters, func(name string, s termFilterSpec) error {
		if s.Field == "" {
			return fmt.Errorf("term filter %q: field is required", name)
		}
		if s.Mode != "" && s.Mode != "AND" && s.Mode != "OR" {
			return fmt.Errorf("term filter %q: unsupported mode %q", name, s.Mode)
		}
		cfg.Filters = append(cfg.Filters, TermFilter{
			Name: name, Field: s.Field, Term: s.Term, Default: s.Default, AndMode: s.Mode == "AND",
		})
		return nil
	})
	if err != nil {
		return nil, err
	}

	err = eachEntry(&doc.RangeFilters, func(name string, s rangeFilterSpec) error {
		if s.Field == "" {
			return fmt.Errorf("range filter %q: field is required", name)
		}
		if !rangeOperators[s.Type] {
			return fmt.Errorf("range filter %q: unsupported type %q", name, s.Type)
		}
		cfg.Filters = append(cfg.Filters, RangeFilter{
			Name: name, Field: s.Field, Type: s.Type, Range: s.Range, Default: s.Default,
		})
		return nil
	})
	if err != nil {
		return nil, err
	}

	err = eachEntry(&doc.ExistsFilters, func(name string, s existsFilterSpec) error {
		if s.Field == "" {
			return fmt.Errorf("exists filter %q: field is required", name)
		}
		cfg.Filters = append(cfg.Filters, ExistsFilter{Name: name, Field: s.Field, Default: s.Default})
		return nil
	})
	if err != nil {
		return nil, err
	}

	err = eachEntry(&doc.MissingFilters, func(name string, s existsFilterSpec) error {
		if s.Field == "" {
			return fmt.Errorf("missing filter %q: field is required", name)
		}
		cfg.Missing = append(cfg.Missing, ExistsFilter{Name: name, Field: s.Field, Default: s.Default})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return cfg, nil
}

// KnownChain reports whether chainID has an index alias.
func (c *Config) KnownChain(chainID string) bool {
	_, ok := c.ChainAliases[chainID]
	return ok
}

// IndexFor returns the index alias for chainID.
func (c *Config) IndexFor(chainID string) (string, error) {
	alias, ok := c.ChainAliases[chainID]
	if !ok {
		return "", dErrors.New(dErrors.CodeUnknownChain, fmt.Sprintf("chain %s is not configured", chainID))
	}
	return alias, nil
}

// eachEntry decodes every value of a mapping node in document order.
func eachEntry[T any](node *yaml.Node, fn func(key string, v T) error) error {
	if node == nil || node.Kind == 0 {
		return nil
	}
	if node.Kind != yaml.MappingNode {
		return fmt.Errorf("line %d: expected a mapping", node.Line)
	}
	for i := 0; i+1 < len(node.Content); i += 2 {
		key := node.Content[i].Value
		var v T
		if err := node.Content[i+1].Decode(&v); err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
		if err := fn(key, v); err != nil {
			return err
		}
	}
	return nil
}
