package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"storegate/internal/merchant/models"
	"storegate/pkg/platform/httputil"
	"storegate/pkg/platform/middleware/admin"
	request "storegate/pkg/platform/middleware/request"
)

// Service defines the merchant lookups exposed over HTTP.
type Service interface {
	GetMerchant(ctx context.Context, gln string) (*models.Merchant, error)
	GetMerchantsForChain(ctx context.Context, chainID string) ([]models.Merchant, error)
	GetAllMerchants(ctx context.Context) ([]models.Merchant, error)
	InvalidateCache(ctx context.Context, chainID string) (bool, error)
}

type Handler struct {
	service      Service
	logger       *slog.Logger
	invalidateMW []func(http.Handler) http.Handler
}

type Option func(*Handler)

// WithInvalidateMiddleware guards the cache invalidation route.
func WithInvalidateMiddleware(mw ...func(http.Handler) http.Handler) Option {
	return func(h *Handler) {
		h.invalidateMW = append(h.invalidateMW, mw...)
	}
}

func New(service Service, logger *slog.Logger, opts ...Option) *Handler {
	h := &Handler{service: service, logger: logger}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

func (h *Handler) Register(r chi.Router) {
	r.Get("/merchants", h.HandleListMerchants)
	r.Get("/merchants/{gln}", h.HandleGetMerchant)
	r.Get("/chains/{chainId}/merchants", h.HandleChainMerchants)
	r.With(h.invalidateMW...).Post("/chains/{chainId}/merchants/invalidate", h.HandleInvalidate)
}

// HandleGetMerchant returns a single merchant by GLN.
func (h *Handler) HandleGetMerchant(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := request.GetRequestID(ctx)

	req := &MerchantRequest{GLN: chi.URLParam(r, "gln")}
	if !httputil.Prepare(w, req, h.logger, ctx, requestID) {
		return
	}

	merchant, err := h.service.GetMerchant(ctx, req.GLN)
	if err != nil {
		h.logger.ErrorContext(ctx, "get merchant failed", "error", err, "request_id", requestID, "gln", req.GLN)
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, toMerchantResponse(merchant))
}

// HandleChainMerchants returns the payment-valid merchants of a chain.
func (h *Handler) HandleChainMerchants(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := request.GetRequestID(ctx)

	req := &ChainRequest{ChainID: chi.URLParam(r, "chainId")}
	if !httputil.Prepare(w, req, h.logger, ctx, requestID) {
		return
	}

	merchants, err := h.service.GetMerchantsForChain(ctx, req.ChainID)
	if err != nil {
		h.logger.ErrorContext(ctx, "get chain merchants failed", "error", err, "request_id", requestID, "chain_id", req.ChainID)
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, toMerchantListResponse(merchants))
}

// HandleListMerchants returns every payment-valid merchant.
func (h *Handler) HandleListMerchants(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := request.GetRequestID(ctx)

	merchants, err := h.service.GetAllMerchants(ctx)
	if err != nil {
		h.logger.ErrorContext(ctx, "list merchants failed", "error", err, "request_id", requestID)
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, toMerchantListResponse(merchants))
}

// HandleInvalidate drops the cached merchant entries of a chain.
func (h *Handler) HandleInvalidate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := request.GetRequestID(ctx)

	req := &ChainRequest{ChainID: chi.URLParam(r, "chainId")}
	if !httputil.Prepare(w, req, h.logger, ctx, requestID) {
		return
	}

	ok, err := h.service.InvalidateCache(ctx, req.ChainID)
	if err != nil {
		h.logger.ErrorContext(ctx, "invalidate merchant cache failed", "error", err, "request_id", requestID, "chain_id", req.ChainID)
		httputil.WriteError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "merchant cache invalidated",
		"request_id", requestID,
		"chain_id", req.ChainID,
		"actor_id", admin.GetAdminActorID(ctx),
	)
	httputil.WriteJSON(w, http.StatusOK, &InvalidateResponse{ChainID: req.ChainID, Invalidated: ok})
}
