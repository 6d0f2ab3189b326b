package service

import (
	"context"
	"encoding/json"
	"fmt"

	"storegate/internal/search/index"
	"storegate/internal/search/query"
	dErrors "storegate/pkg/domain-errors"
)

// SearchOptions is a faceted search over one chain's stores.
type SearchOptions struct {
	ChainID string
	// Facets is the compact "name:value;name:value" facet filter encoding.
	Facets string
	// Filters override configured static filter defaults by filter name.
	Filters map[string]query.Value
	// Aggregations limits the returned facets by display name. Empty returns every displayed facet.
	Aggregations []string
	MemberID     string
	Fields       []string
	Size         int
	Page         int
}

// SearchResult is one page of stores plus the facet counts of the whole result set.
type SearchResult struct {
	Total  int64                       `json:"total"`
	Stores []json.RawMessage           `json:"stores"`
	Facets map[string][]map[string]any `json:"facets"`
}

type facetedResponse struct {
	Hits struct {
		Total index.Total `json:"total"`
		Hits  []index.Hit `json:"hits"`
	} `json:"hits"`
	Aggregations map[string]struct {
		Buckets []query.Bucket `json:"buckets"`
	} `json:"aggregations"`
}

// SearchStores runs a paged, faceted query combining the configured static filters, the
// caller's facet filters and the member whitelist.
func (s *Service) SearchStores(ctx context.Context, opts SearchOptions) (*SearchResult, error) {
	idx, err := s.cfg.IndexFor(opts.ChainID)
	if err != nil {
		return nil, err
	}
	size := opts.Size
	if size <= 0 {
		size = defaultPageSize
	}

	must := query.StaticFilters(s.cfg.Filters, []query.Clause{query.WhitelistQuery(opts.MemberID, false)}, opts.Filters)
	facetMust, facetMustNot := query.FacetFilters(s.cfg.Facets, query.ParseParams(opts.Facets))
	must = append(must, facetMust...)
	mustNot := query.MissingQuery(s.cfg.Missing, facetMustNot, opts.Filters)

	body := map[string]any{
		"query": query.BuildFilters(must, nil, mustNot),
	}
	if aggs := query.Aggregations(s.cfg.Facets, opts.Aggregations); len(aggs) > 0 {
		body["aggs"] = aggs
	}

	raw, err := s.index.Search(ctx, index.SearchRequest{
		Index:        idx,
		Body:         body,
		Fields:       s.fields(opts.Fields),
		Size:         size,
		From:         query.PageOffset(size, opts.Page),
		FullResponse: true,
	})
	if err != nil {
		return nil, err
	}

	var res facetedResponse
	if err := json.Unmarshal(raw, &res); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, fmt.Sprintf("decode search response from %s", idx))
	}

	out := &SearchResult{
		Total:  int64(res.Hits.Total),
		Stores: index.Sources(res.Hits.Hits),
		Facets: make(map[string][]map[string]any, len(res.Aggregations)),
	}
	for key, agg := range res.Aggregations {
		facet, ok := s.cfg.Facets.Lookup(key)
		if !ok {
			continue
		}
		out.Facets[facet.DisplayName] = query.MapAggregationResult(facet, agg.Buckets)
	}
	return out, nil
}
