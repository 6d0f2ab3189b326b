package httptransport

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	request "storegate/pkg/platform/middleware/request"
)

// Registrar mounts a handler's routes.
type Registrar interface {
	Register(r chi.Router)
}

// RouterConfig carries the ambient pieces of the middleware stack.
type RouterConfig struct {
	Logger         *slog.Logger
	RequestTimeout time.Duration
	Metrics        *request.Metrics
	// Gatherer backs /metrics. Nil uses the default gatherer.
	Gatherer prometheus.Gatherer
}

// NewRouter wires the JSON endpoints behind a request timeout and mounts the streaming
// proxy outside it, since a timeout handler buffers the whole response.
func NewRouter(cfg RouterConfig, proxy Registrar, api ...Registrar) http.Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	gatherer := cfg.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}

	r := chi.NewRouter()
	r.Use(request.Recovery(logger))
	r.Use(request.RequestID)
	r.Use(request.Logger(logger))
	r.Use(request.LatencyMiddleware(cfg.Metrics))

	r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	r.Group(func(r chi.Router) {
		if cfg.RequestTimeout > 0 {
			r.Use(request.Timeout(cfg.RequestTimeout))
		}
		for _, h := range api {
			h.Register(r)
		}
	})

	if proxy != nil {
		proxy.Register(r)
	}
	return r
}
