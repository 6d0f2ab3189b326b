package proxy

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	Requests        *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
	BytesStreamed   prometheus.Counter
}

// NewMetrics registers proxy metrics on reg. A nil reg uses the default registerer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)
	return &Metrics{
		Requests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "storegate_proxy_requests_total",
			Help: "Outbound proxy requests by authorization class and status class",
		}, []string{"authorization", "status"}),
		RequestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "storegate_proxy_request_duration_seconds",
			Help:    "Duration of outbound proxy requests including the body",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 25, 50},
		}, []string{"authorization"}),
		BytesStreamed: factory.NewCounter(prometheus.CounterOpts{
			Name: "storegate_proxy_bytes_streamed_total",
			Help: "Bytes streamed from upstream backends to callers",
		}),
	}
}

func (m *Metrics) ObserveRequest(class AuthorizationClass, status int, d time.Duration) {
	m.Requests.WithLabelValues(string(class), statusClass(status)).Inc()
	m.RequestDuration.WithLabelValues(string(class)).Observe(d.Seconds())
}

func (m *Metrics) AddStreamed(n int) {
	m.BytesStreamed.Add(float64(n))
}

func statusClass(status int) string {
	if status < 100 || status > 599 {
		return "unknown"
	}
	return strconv.Itoa(status/100) + "xx"
}
