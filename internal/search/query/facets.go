package query

import (
	"slices"
	"strings"
)

// Facet describes one aggregation dimension and how callers filter on it.
type Facet struct {
	Key         string            `yaml:"-"`
	Field       string            `yaml:"field"`
	DisplayName string            `yaml:"displayName"`
	Display     bool              `yaml:"display"`
	Order       map[string]string `yaml:"order"`
	Size        int               `yaml:"size"`
	BucketName  string            `yaml:"bucketName"`
	CountName   string            `yaml:"countName"`
	Child       FacetMapper       `yaml:"child"`
}

// FacetMapper is an ordered set of facets keyed by name.
type FacetMapper []Facet

// Lookup returns the facet registered under key.
func (m FacetMapper) Lookup(key string) (Facet, bool) {
	for _, f := range m {
		if f.Key == key {
			return f, true
		}
	}
	return Facet{}, false
}

// ParseParams splits the compact "name:value;name:value" encoding. Entries without
// a colon are ignored.
func ParseParams(raw string) map[string]string {
	out := make(map[string]string)
	if raw == "" {
		return out
	}
	for _, entry := range strings.Split(raw, ";") {
		name, value, ok := strings.Cut(entry, ":")
		if !ok {
			continue
		}
		out[name] = value
	}
	return out
}

// FacetFilters turns facet parameters into must and must-not clauses. Each value is
// split on "|"; values prefixed with "!" are negated. One value yields a term clause,
// several yield a terms clause. Parameters naming unknown facets are ignored.
func FacetFilters(mapper FacetMapper, params map[string]string) (must, mustNot []Clause) {
	for _, name := range sortedKeys(params) {
		facet, ok := mapper.Lookup(name)
		if !ok {
			continue
		}
		var pos, neg []any
		for _, part := range strings.Split(params[name], "|") {
			if rest, negated := strings.CutPrefix(part, "!"); negated {
				neg = append(neg, rest)
			} else {
				pos = append(pos, part)
			}
		}
		if c, ok := facetClause(facet.Field, pos); ok {
			must = append(must, c)
		}
		if c, ok := facetClause(facet.Field, neg); ok {
			mustNot = append(mustNot, c)
		}
	}
	return must, mustNot
}

func facetClause(field string, values []any) (Clause, bool) {
	switch len(values) {
	case 0:
		return nil, false
	case 1:
		return termClause(field, values[0]), true
	default:
		return termsClause(field, values), true
	}
}

// Aggregations builds the aggregation tree. With no requested facets every facet marked
// for display is included; otherwise only facets whose display name was requested.
// Child facets always follow the display flag.
func Aggregations(mapper FacetMapper, requested []string) map[string]any {
	aggs := make(map[string]any)
	for _, f := range mapper {
		include := f.Display
		if len(requested) > 0 {
			include = slices.Contains(requested, f.DisplayName)
		}
		if !include {
			continue
		}
		terms := map[string]any{"field": f.Field}
		if len(f.Order) > 0 {
			terms["order"] = f.Order
		}
		if f.Size > 0 {
			terms["size"] = f.Size
		}
		agg := map[string]any{"terms": terms}
		if len(f.Child) > 0 {
			if child := Aggregations(f.Child, nil); len(child) > 0 {
				agg["aggs"] = child
			}
		}
		aggs[f.Key] = agg
	}
	return aggs
}

// Bucket is one decoded aggregation bucket.
type Bucket map[string]any

// MapAggregationResult renames bucket keys and counts to the facet's configured names,
// descending into child aggregations found under each child's display name.
func MapAggregationResult(facet Facet, buckets []Bucket) []map[string]any {
	out := make([]map[string]any, 0, len(buckets))
	for _, b := range buckets {
		row := map[string]any{
			facet.BucketName: b["key"],
			facet.CountName:  b["doc_count"],
		}
		for _, child := range facet.Child {
			nested, ok := b[child.DisplayName].(map[string]any)
			if !ok {
				continue
			}
			row[child.DisplayName] = MapAggregationResult(child, toBuckets(nested["buckets"]))
		}
		out = append(out, row)
	}
	return out
}

func toBuckets(v any) []Bucket {
	raw, ok := v.([]any)
	if !ok {
		return nil
	}
	out := make([]Bucket, 0, len(raw))
	for _, item := range raw {
		if m, ok := item.(map[string]any); ok {
			out = append(out, Bucket(m))
		}
	}
	return out
}
