package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	CacheLookups         *prometheus.CounterVec
	CacheWriteFailures   prometheus.Counter
	Invalidations        *prometheus.CounterVec
	SourceQueryDuration  *prometheus.HistogramVec
	FilteredInvalidTotal prometheus.Counter
}

// New registers merchant metrics on reg. A nil reg uses the default registerer.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)
	return &Metrics{
		CacheLookups: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "storegate_merchant_cache_lookups_total",
			Help: "Merchant cache lookups by key family and outcome",
		}, []string{"family", "result"}),
		CacheWriteFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "storegate_merchant_cache_write_failures_total",
			Help: "Total number of failed merchant cache write-backs",
		}),
		Invalidations: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "storegate_merchant_cache_invalidations_total",
			Help: "Total number of chain cache invalidations",
		}, []string{"status"}),
		SourceQueryDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "storegate_merchant_table_query_duration_seconds",
			Help:    "Duration of durable table queries",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		}, []string{"operation"}),
		FilteredInvalidTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "storegate_merchant_filtered_invalid_total",
			Help: "Merchants dropped from list results for missing payment settings",
		}),
	}
}

func (m *Metrics) IncrementCacheHit(family string) {
	m.CacheLookups.WithLabelValues(family, "hit").Inc()
}

func (m *Metrics) IncrementCacheMiss(family string) {
	m.CacheLookups.WithLabelValues(family, "miss").Inc()
}

func (m *Metrics) IncrementCacheWriteFailure() {
	m.CacheWriteFailures.Inc()
}

func (m *Metrics) IncrementInvalidation(status string) {
	m.Invalidations.WithLabelValues(status).Inc()
}

func (m *Metrics) ObserveSourceQuery(operation string, start time.Time) {
	m.SourceQueryDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
}

func (m *Metrics) AddFilteredInvalid(count int) {
	m.FilteredInvalidTotal.Add(float64(count))
}
