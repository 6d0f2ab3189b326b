package query

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseParams(t *testing.T) {
	assert.Equal(t, map[string]string{"color": "red|!blue", "size": "xl"}, ParseParams("color:red|!blue;size:xl"))
	assert.Equal(t, map[string]string{"a": "1"}, ParseParams("a:1;garbage;"))
	assert.Empty(t, ParseParams(""))
}

func TestFacetFilters(t *testing.T) {
	mapper := FacetMapper{
		{Key: "color", Field: "c"},
		{Key: "size", Field: "s"},
	}

	t.Run("positive and negated values", func(t *testing.T) {
		must, mustNot := FacetFilters(mapper, ParseParams("color:red|!blue"))
		assert.Equal(t, []Clause{{"term": map[string]any{"c": "red"}}}, must)
		assert.Equal(t, []Clause{{"term": map[string]any{"c": "blue"}}}, mustNot)
	})

	t.Run("several values become terms", func(t *testing.T) {
		must, mustNot := FacetFilters(mapper, ParseParams("size:s|m|!xl|!xxl"))
		assert.Equal(t, []Clause{{"terms": map[string]any{"s": []any{"s", "m"}}}}, must)
		assert.Equal(t, []Clause{{"terms": map[string]any{"s": []any{"xl", "xxl"}}}}, mustNot)
	})

	t.Run("unknown facets are ignored", func(t *testing.T) {
		must, mustNot := FacetFilters(mapper, ParseParams("brand:acme"))
		assert.Empty(t, must)
		assert.Empty(t, mustNot)
	})
}

func TestAggregations(t *testing.T) {
	mapper := FacetMapper{
		{Key: "region", Field: "region", DisplayName: "region", Display: true, Size: 50,
			Child: FacetMapper{{Key: "city", Field: "city", DisplayName: "city", Display: true}}},
		{Key: "services", Field: "services", DisplayName: "services", Order: map[string]string{"_count": "desc"}},
	}

	t.Run("default includes displayed facets with children", func(t *testing.T) {
		got := Aggregations(mapper, nil)
		assert.Equal(t, map[string]any{
			"region": map[string]any{
				"terms": map[string]any{"field": "region", "size": 50},
				"aggs": map[string]any{
					"city": map[string]any{"terms": map[string]any{"field": "city"}},
				},
			},
		}, got)
	})

	t.Run("explicit list selects by display name", func(t *testing.T) {
		got := Aggregations(mapper, []string{"services"})
		assert.Equal(t, map[string]any{
			"services": map[string]any{
				"terms": map[string]any{"field": "services", "order": map[string]string{"_count": "desc"}},
			},
		}, got)
	})
}

func TestMapAggregationResult(t *testing.T) {
	facet := Facet{
		BucketName: "name", CountName: "count",
		Child: FacetMapper{{DisplayName: "city", BucketName: "name", CountName: "count"}},
	}
	var buckets []Bucket
	require.NoError(t, json.Unmarshal([]byte(`[
		{"key":"east","doc_count":3,"city":{"buckets":[{"key":"Oslo","doc_count":2}]}},
		{"key":"west","doc_count":1}
	]`), &buckets))

	got := MapAggregationResult(facet, buckets)
	require.Len(t, got, 2)
	assert.Equal(t, "east", got[0]["name"])
	assert.Equal(t, float64(3), got[0]["count"])
	assert.Equal(t, []map[string]any{{"name": "Oslo", "count": float64(2)}}, got[0]["city"])
	assert.NotContains(t, got[1], "city")
}
