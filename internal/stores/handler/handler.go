package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"storegate/internal/stores/models"
	"storegate/internal/stores/service"
	dErrors "storegate/pkg/domain-errors"
	"storegate/pkg/platform/httputil"
	request "storegate/pkg/platform/middleware/request"
)

// Service defines the store lookups exposed over HTTP.
type Service interface {
	GetSingleStore(ctx context.Context, opts service.LookupOptions) (json.RawMessage, error)
	GetAllStores(ctx context.Context, opts service.LookupOptions) ([]json.RawMessage, error)
	GetSingleStoreFull(ctx context.Context, opts service.LookupOptions) (*models.Store, error)
	GetAllStoresFull(ctx context.Context, opts service.LookupOptions) ([]models.Store, error)
	GetStoresWithValidPaymentSettings(ctx context.Context, opts service.LookupOptions) ([]models.Store, error)
	GetStoreStatus(ctx context.Context, gln, chainID, memberID string) models.Status
	GetClosestInPostalCode(ctx context.Context, chainID, postalCode string, isStore bool) []models.ClosePickupPoint
	GetStoreBagFees(ctx context.Context, chainID, storeID string) ([]models.Bag, error)
	SearchStores(ctx context.Context, opts service.SearchOptions) (*service.SearchResult, error)
}

type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

func (h *Handler) Register(r chi.Router) {
	r.Route("/stores/{chainId}", func(r chi.Router) {
		r.Get("/", h.HandleAllStores)
		r.Get("/full", h.HandleAllStoresFull)
		r.Get("/payment-valid", h.HandlePaymentValidStores)
		r.Get("/search", h.HandleSearch)
		r.Get("/closest/{postalCode}", h.HandleClosest)
		r.Get("/{storeId}", h.HandleStore)
		r.Get("/{storeId}/full", h.HandleStoreFull)
		r.Get("/{storeId}/status", h.HandleStoreStatus)
		r.Get("/{storeId}/bags", h.HandleBagFees)
	})
}

// HandleAllStores returns the projected documents of every store in a chain.
func (h *Handler) HandleAllStores(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := request.GetRequestID(ctx)

	req := newStoreListRequest(r)
	if !httputil.Prepare(w, req, h.logger, ctx, requestID) {
		return
	}

	stores, err := h.service.GetAllStores(ctx, service.LookupOptions{
		ChainID:               req.ChainID,
		Fields:                req.Fields,
		MemberID:              req.MemberID,
		ValidHomeDeliveryOnly: req.validHomeDeliveryOnly(),
	})
	if err != nil {
		h.logger.ErrorContext(ctx, "get all stores failed", "error", err, "request_id", requestID, "chain_id", req.ChainID)
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, toStoreListResponse(stores))
}

// HandleAllStoresFull returns every store of a chain as a full record.
func (h *Handler) HandleAllStoresFull(w http.ResponseWriter, r *http.Request) {
	h.storeRecords(w, r, "get all store records failed", h.service.GetAllStoresFull)
}

// HandlePaymentValidStores returns the stores whose merchant can take payments.
func (h *Handler) HandlePaymentValidStores(w http.ResponseWriter, r *http.Request) {
	h.storeRecords(w, r, "get payment-valid stores failed", h.service.GetStoresWithValidPaymentSettings)
}

func (h *Handler) storeRecords(w http.ResponseWriter, r *http.Request, failure string,
	lookup func(context.Context, service.LookupOptions) ([]models.Store, error)) {
	ctx := r.Context()
	requestID := request.GetRequestID(ctx)

	req := newStoreListRequest(r)
	if !httputil.Prepare(w, req, h.logger, ctx, requestID) {
		return
	}

	stores, err := lookup(ctx, service.LookupOptions{
		ChainID:               req.ChainID,
		Fields:                req.Fields,
		MemberID:              req.MemberID,
		ValidHomeDeliveryOnly: req.validHomeDeliveryOnly(),
	})
	if err != nil {
		h.logger.ErrorContext(ctx, failure, "error", err, "request_id", requestID, "chain_id", req.ChainID)
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, toStoreRecordListResponse(stores))
}

// HandleStore returns the projected document of one store.
func (h *Handler) HandleStore(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := request.GetRequestID(ctx)

	req := newStoreRequest(r)
	if !httputil.Prepare(w, req, h.logger, ctx, requestID) {
		return
	}

	doc, err := h.service.GetSingleStore(ctx, service.LookupOptions{ChainID: req.ChainID, StoreID: req.StoreID, Fields: req.Fields})
	if err != nil {
		h.logger.ErrorContext(ctx, "get store failed", "error", err, "request_id", requestID, "chain_id", req.ChainID, "store_id", req.StoreID)
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, doc)
}

// HandleStoreFull returns one store as a full record.
func (h *Handler) HandleStoreFull(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := request.GetRequestID(ctx)

	req := newStoreRequest(r)
	if !httputil.Prepare(w, req, h.logger, ctx, requestID) {
		return
	}

	store, err := h.service.GetSingleStoreFull(ctx, service.LookupOptions{ChainID: req.ChainID, StoreID: req.StoreID, Fields: req.Fields})
	if err != nil {
		h.logger.ErrorContext(ctx, "get store record failed", "error", err, "request_id", requestID, "chain_id", req.ChainID, "store_id", req.StoreID)
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, store)
}

// HandleStoreStatus reports whether a store can take orders. It always answers 200.
func (h *Handler) HandleStoreStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := request.GetRequestID(ctx)

	req := newStoreRequest(r)
	if !httputil.Prepare(w, req, h.logger, ctx, requestID) {
		return
	}

	status := h.service.GetStoreStatus(ctx, req.StoreID, req.ChainID, req.MemberID)
	if !status.IsActive {
		h.logger.InfoContext(ctx, "store inactive", "request_id", requestID, "store_id", req.StoreID, "error_code", status.ErrorCode)
	}

	httputil.WriteJSON(w, http.StatusOK, status)
}

// HandleBagFees returns the bag products sold by a store.
func (h *Handler) HandleBagFees(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := request.GetRequestID(ctx)

	req := newStoreRequest(r)
	if !httputil.Prepare(w, req, h.logger, ctx, requestID) {
		return
	}

	bags, err := h.service.GetStoreBagFees(ctx, req.ChainID, req.StoreID)
	if err != nil {
		h.logger.ErrorContext(ctx, "get bag fees failed", "error", err, "request_id", requestID, "store_id", req.StoreID)
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, &BagFeesResponse{StoreID: req.StoreID, Bags: bags})
}

// HandleClosest returns stores or pickup points near a postal code.
func (h *Handler) HandleClosest(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := request.GetRequestID(ctx)

	req := &ClosestRequest{
		ChainID:    chi.URLParam(r, "chainId"),
		PostalCode: chi.URLParam(r, "postalCode"),
		Type:       r.URL.Query().Get("type"),
	}
	if !httputil.Prepare(w, req, h.logger, ctx, requestID) {
		return
	}

	points := h.service.GetClosestInPostalCode(ctx, req.ChainID, req.PostalCode, req.Type == "store")
	httputil.WriteJSON(w, http.StatusOK, &ClosestResponse{PostalCode: req.PostalCode, Type: req.Type, Points: points})
}

// HandleSearch runs a faceted, paged store search.
func (h *Handler) HandleSearch(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := request.GetRequestID(ctx)

	req, err := newSearchRequest(r)
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeInvalidArgument, "size and page must be integers"))
		return
	}
	if !httputil.Prepare(w, req, h.logger, ctx, requestID) {
		return
	}

	res, err := h.service.SearchStores(ctx, service.SearchOptions{
		ChainID:      req.ChainID,
		Facets:       req.Facets,
		Aggregations: req.Aggregations,
		Filters:      req.filters(),
		MemberID:     req.MemberID,
		Fields:       req.Fields,
		Size:         req.Size,
		Page:         req.Page,
	})
	if err != nil {
		h.logger.ErrorContext(ctx, "store search failed", "error", err, "request_id", requestID, "chain_id", req.ChainID)
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, res)
}
