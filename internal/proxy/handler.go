package proxy

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	dErrors "storegate/pkg/domain-errors"
	"storegate/pkg/platform/httputil"
	request "storegate/pkg/platform/middleware/request"
	"storegate/pkg/validation"
)

// Prefix is stripped from inbound paths before they are forwarded.
const Prefix = "/ngt"

// Forwarder streams a request to its backend.
type Forwarder interface {
	Do(ctx context.Context, req Request, sink http.ResponseWriter) (*Result, error)
}

type Handler struct {
	forwarder Forwarder
	router    *Router
	logger    *slog.Logger
}

func NewHandler(forwarder Forwarder, router *Router, logger *slog.Logger) *Handler {
	return &Handler{forwarder: forwarder, router: router, logger: logger}
}

func (h *Handler) Register(r chi.Router) {
	r.HandleFunc(Prefix+"/*", h.HandleProxy)
}

// HandleProxy forwards any method under Prefix. The forwarder always answers the caller.
func (h *Handler) HandleProxy(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := request.GetRequestID(ctx)

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, validation.MaxProxyBodySize))
	if err != nil {
		h.logger.WarnContext(ctx, "proxy request body rejected", "error", err, "request_id", requestID)
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "request body too large"))
		return
	}

	originalURL := strings.TrimPrefix(r.URL.RequestURI(), Prefix)
	if originalURL == "" {
		originalURL = "/"
	}
	if h.router != nil && h.router.ShouldPatch(originalURL) {
		h.logger.DebugContext(ctx, "incoming request should be patched", "request_id", requestID, "url", originalURL)
	}

	result, err := h.forwarder.Do(ctx, Request{
		Method: r.Method,
		URL:    originalURL,
		Header: r.Header,
		Body:   body,
	}, w)
	if err != nil {
		status := dErrors.StatusCode(err)
		if result != nil {
			status = result.StatusCode
		}
		h.logger.WarnContext(ctx, "proxied request returned an error",
			"request_id", requestID,
			"status", status,
			"error", err,
		)
	}
}
