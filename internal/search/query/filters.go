package query

import "sort"

// Clause is one fragment of the search DSL, e.g. {"term": {"field": "value"}}.
type Clause map[string]any

// Value is a caller-supplied filter value. The zero Value is not set.
type Value struct {
	values []any
	multi  bool
	remove bool
}

// ValueOf sets a filter to a single value.
func ValueOf(v any) Value {
	return Value{values: []any{v}}
}

// ValuesOf sets a filter to a list of values. Lists always produce terms clauses,
// or one term clause per value for filters in AND mode.
func ValuesOf(vs ...any) Value {
	return Value{values: vs, multi: true}
}

// Removed suppresses a filter, including its configured default.
var Removed = Value{remove: true}

// Filter is a configured static filter: a TermFilter, RangeFilter or ExistsFilter.
type Filter interface {
	FilterName() string
	clauses(v Value, set bool) []Clause
}

// TermFilter matches a field against one or more exact values.
type TermFilter struct {
	Name    string
	Field   string
	Term    Terms
	Default bool
	// AndMode emits one term clause per caller value instead of a single terms clause.
	AndMode bool
}

// RangeFilter bounds a field with a range operator such as gte or lt.
type RangeFilter struct {
	Name    string
	Field   string
	Type    string
	Range   any
	Default bool
}

// ExistsFilter requires a field to be present. Any caller value disables it.
type ExistsFilter struct {
	Name    string
	Field   string
	Default bool
}

func (f TermFilter) FilterName() string   { return f.Name }
func (f RangeFilter) FilterName() string  { return f.Name }
func (f ExistsFilter) FilterName() string { return f.Name }

func (f TermFilter) clauses(v Value, set bool) []Clause {
	if set {
		if v.remove || len(v.values) == 0 {
			return nil
		}
		if v.multi && f.AndMode {
			out := make([]Clause, 0, len(v.values))
			for _, val := range v.values {
				out = append(out, termClause(f.Field, val))
			}
			return out
		}
		if v.multi {
			return []Clause{termsClause(f.Field, v.values)}
		}
		return []Clause{termClause(f.Field, v.values[0])}
	}
	if !f.Default || len(f.Term.Values) == 0 {
		return nil
	}
	if f.Term.Multi {
		return []Clause{termsClause(f.Field, f.Term.Values)}
	}
	return []Clause{termClause(f.Field, f.Term.Values[0])}
}

func (f RangeFilter) clauses(v Value, set bool) []Clause {
	if set {
		if v.remove || len(v.values) == 0 {
			return nil
		}
		return []Clause{RangeClause(f.Field, v.values[0], f.Type)}
	}
	if !f.Default {
		return nil
	}
	return []Clause{RangeClause(f.Field, f.Range, f.Type)}
}

func (f ExistsFilter) clauses(_ Value, set bool) []Clause {
	if set || !f.Default {
		return nil
	}
	return []Clause{existsClause(f.Field)}
}

// StaticFilters appends the clauses of every configured filter to existing. A caller
// value replaces a filter's default; filters without a value or default are omitted.
func StaticFilters(filters []Filter, existing []Clause, set map[string]Value) []Clause {
	out := existing
	for _, f := range filters {
		v, ok := set[f.FilterName()]
		out = append(out, f.clauses(v, ok)...)
	}
	return out
}

// MissingQuery appends an exists clause for each filter that is either requested
// by the caller or enabled by default. Callers put the result in must_not.
func MissingQuery(filters []ExistsFilter, existing []Clause, set map[string]Value) []Clause {
	out := existing
	for _, f := range filters {
		v, ok := set[f.Name]
		if v.remove {
			continue
		}
		if ok || f.Default {
			out = append(out, existsClause(f.Field))
		}
	}
	return out
}

// TermsFilter builds a terms clause from values, skipping empty strings.
func TermsFilter(field string, values ...string) Clause {
	kept := make([]any, 0, len(values))
	for _, v := range values {
		if v != "" {
			kept = append(kept, v)
		}
	}
	return termsClause(field, kept)
}

// RangeClause builds {"range": {field: {op: value}}}.
func RangeClause(field string, value any, op string) Clause {
	return Clause{"range": map[string]any{field: map[string]any{op: value}}}
}

// BuildFilters assembles a bool query, leaving out empty sections.
func BuildFilters(must, should, mustNot []Clause) Clause {
	b := map[string]any{}
	if len(must) > 0 {
		b["must"] = must
	}
	if len(should) > 0 {
		b["should"] = should
	}
	if len(mustNot) > 0 {
		b["must_not"] = mustNot
	}
	return Clause{"bool": b}
}

// WhitelistQuery is the base store query. Without a member id only stores open to
// everyone match; with one, stores whitelisting that member match too.
func WhitelistQuery(memberID string, validHomeDeliveryOnly bool) Clause {
	var must []Clause
	if memberID != "" {
		must = append(must, BuildFilters(nil, []Clause{
			termClause("whitelist", false),
			termsClause("whitelistedMembers", []any{memberID}),
		}, nil))
	} else {
		must = append(must, termClause("whitelist", false))
	}
	if validHomeDeliveryOnly {
		must = append(must, termClause("hasValidHomeDeliveryData", true))
	}
	return BuildFilters(must, nil, nil)
}

// PageOffset converts a 1-based page number into a hit offset.
func PageOffset(size, page int) int {
	if page > 1 {
		return (page - 1) * size
	}
	return 0
}

func termClause(field string, value any) Clause {
	return Clause{"term": map[string]any{field: value}}
}

func termsClause(field string, values []any) Clause {
	return Clause{"terms": map[string]any{field: values}}
}

func existsClause(field string) Clause {
	return Clause{"exists": map[string]any{"field": field}}
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
