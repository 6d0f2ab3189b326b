package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	merchantmodels "storegate/internal/merchant/models"
	"storegate/internal/platform/tracer"
	"storegate/internal/proxy"
	"storegate/internal/search/index"
	"storegate/internal/search/query"
	"storegate/internal/stores/mapper"
	"storegate/internal/stores/models"
	dErrors "storegate/pkg/domain-errors"
	"storegate/pkg/platform/circuit"
)

const (
	// DefaultClosestTTL is how long closest-point lookups stay cached.
	DefaultClosestTTL = 30 * time.Minute

	defaultPageSize = 20
	// defaultClosestTimeout bounds a shared closest lookup once it is detached from its caller.
	defaultClosestTimeout = 50 * time.Second

	storesKeyPrefix  = "butikker"
	pickupKeyPrefix  = "hentepunkter"
	storesPathKind   = "butikker"
	pickupPathKind   = "hentepunkter"
	clickAndCollect  = "click & collect"
	closestPathShape = "/tjenester/kjeder/%s/%s/avstand/postnummer/%s"
)

var statusFields = []string{"whitelist", "whitelistedMembers"}

// Index is the subset of the search index client used for store lookups.
type Index interface {
	Get(ctx context.Context, req index.GetRequest) (json.RawMessage, error)
	Search(ctx context.Context, req index.SearchRequest) (json.RawMessage, error)
	Scroll(ctx context.Context, req index.SearchRequest) ([]json.RawMessage, error)
}

// Merchants is the cache-aside merchant lookup.
type Merchants interface {
	GetMerchant(ctx context.Context, gln string) (*merchantmodels.Merchant, error)
	GetMerchantsForChain(ctx context.Context, chainID string) ([]merchantmodels.Merchant, error)
}

// Cache stores closest-point lookups.
type Cache interface {
	GetJSON(ctx context.Context, key string, dst any) error
	SetWithTTL(ctx context.Context, key string, ttl time.Duration, value any, raw bool) error
}

// Forwarder sends outbound requests to a resolved backend.
type Forwarder interface {
	Do(ctx context.Context, req proxy.Request, sink http.ResponseWriter) (*proxy.Result, error)
}

// Service answers store lookups by combining the search index, the merchant records
// and the click & collect backend.
type Service struct {
	cfg        *query.Config
	index      Index
	merchants  Merchants
	cache      Cache
	forwarder  Forwarder
	logger     *slog.Logger
	tracer     tracer.Tracer
	authz      string
	closestTTL time.Duration
	closestTO  time.Duration
	breaker    *circuit.Breaker
	flight     singleflight.Group
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithTracer(t tracer.Tracer) Option {
	return func(s *Service) {
		s.tracer = t
	}
}

// WithClickAndCollectAuthorization sets the Authorization header sent on closest-point lookups.
func WithClickAndCollectAuthorization(value string) Option {
	return func(s *Service) {
		s.authz = value
	}
}

// WithClosestTTL overrides the cache TTL for closest-point lookups.
func WithClosestTTL(ttl time.Duration) Option {
	return func(s *Service) {
		s.closestTTL = ttl
	}
}

// WithClosestTimeout bounds each backend call made for closest-point lookups.
func WithClosestTimeout(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.closestTO = d
		}
	}
}

// WithBreaker sets the circuit breaker guarding the click & collect backend.
func WithBreaker(b *circuit.Breaker) Option {
	return func(s *Service) {
		s.breaker = b
	}
}

func New(cfg *query.Config, idx Index, merchants Merchants, cache Cache, forwarder Forwarder, opts ...Option) *Service {
	s := &Service{
		cfg:        cfg,
		index:      idx,
		merchants:  merchants,
		cache:      cache,
		forwarder:  forwarder,
		logger:     slog.Default(),
		tracer:     tracer.NewNoop(),
		closestTTL: DefaultClosestTTL,
		closestTO:  defaultClosestTimeout,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.breaker == nil {
		s.breaker = circuit.New(clickAndCollect)
	}
	return s
}

// LookupOptions selects stores of one chain.
type LookupOptions struct {
	ChainID string
	StoreID string
	// Fields is an explicit source projection. Empty means the configured return fields.
	Fields                []string
	MemberID              string
	ValidHomeDeliveryOnly bool
	FullResponse          bool
}

// GetSingleStore returns the raw document of one store.
func (s *Service) GetSingleStore(ctx context.Context, opts LookupOptions) (json.RawMessage, error) {
	idx, err := s.cfg.IndexFor(opts.ChainID)
	if err != nil {
		return nil, err
	}
	if opts.StoreID == "" {
		return nil, dErrors.New(dErrors.CodeInvalidArgument, "store id is required")
	}
	return s.index.Get(ctx, index.GetRequest{
		Index:        idx,
		ID:           opts.StoreID,
		Fields:       s.fields(opts.Fields),
		FullResponse: opts.FullResponse,
	})
}

// GetAllStores returns the raw documents of every store in the chain visible to the member.
func (s *Service) GetAllStores(ctx context.Context, opts LookupOptions) ([]json.RawMessage, error) {
	idx, err := s.cfg.IndexFor(opts.ChainID)
	if err != nil {
		return nil, err
	}
	return s.index.Scroll(ctx, index.SearchRequest{
		Index:        idx,
		Body:         map[string]any{"query": query.WhitelistQuery(opts.MemberID, opts.ValidHomeDeliveryOnly)},
		Fields:       s.fields(opts.Fields),
		Size:         s.cfg.ScrollSize,
		FullResponse: opts.FullResponse,
	})
}

// GetSingleStoreFull returns one store mapped to a StoreRecord. Explicit fields are rejected.
func (s *Service) GetSingleStoreFull(ctx context.Context, opts LookupOptions) (*models.Store, error) {
	if err := rejectFields(opts); err != nil {
		return nil, err
	}
	opts.FullResponse = false
	raw, err := s.GetSingleStore(ctx, opts)
	if err != nil {
		return nil, err
	}
	store, err := mapper.ToStore(raw)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "map store")
	}
	return &store, nil
}

// GetAllStoresFull returns every visible store mapped to a StoreRecord. One bad document
// fails the whole batch.
func (s *Service) GetAllStoresFull(ctx context.Context, opts LookupOptions) ([]models.Store, error) {
	if err := rejectFields(opts); err != nil {
		return nil, err
	}
	opts.FullResponse = false
	raw, err := s.GetAllStores(ctx, opts)
	if err != nil {
		return nil, err
	}
	stores, err := mapper.ToStores(raw)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "map stores")
	}
	return stores, nil
}

// GetStoresWithValidPaymentSettings returns the stores whose merchant can take payments.
// The merchant list and the store list are fetched concurrently.
func (s *Service) GetStoresWithValidPaymentSettings(ctx context.Context, opts LookupOptions) ([]models.Store, error) {
	if !s.cfg.KnownChain(opts.ChainID) {
		return nil, dErrors.New(dErrors.CodeUnknownChain, fmt.Sprintf("chain %s is not configured", opts.ChainID))
	}

	var (
		merchants []merchantmodels.Merchant
		stores    []models.Store
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		merchants, err = s.merchants.GetMerchantsForChain(gctx, opts.ChainID)
		return err
	})
	g.Go(func() error {
		var err error
		stores, err = s.GetAllStoresFull(gctx, opts)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	valid := make(map[string]struct{}, len(merchants))
	for _, m := range merchants {
		if m.PaymentValid() {
			valid[m.GLN] = struct{}{}
		}
	}
	out := make([]models.Store, 0, len(stores))
	for _, st := range stores {
		if _, ok := valid[st.GLN]; ok {
			out = append(out, st)
		}
	}
	return out, nil
}

// GetStoreStatus reports whether the store can take orders from memberID. Failures are
// folded into the returned status and never surface as errors.
func (s *Service) GetStoreStatus(ctx context.Context, gln, chainID, memberID string) models.Status {
	ctx, span := s.tracer.Start(ctx, tracer.SpanStoreStatus,
		tracer.String(tracer.AttrDocID, gln),
		tracer.String(tracer.AttrMemberHash, tracer.HashMemberID(memberID)),
	)
	status := s.storeStatus(ctx, gln, chainID, memberID)
	span.SetAttributes(tracer.Bool(tracer.AttrStatus, status.IsActive))
	if status.ErrorCode != 0 {
		span.SetAttributes(tracer.Int(tracer.AttrStatusCode, status.ErrorCode))
	}
	span.End(nil)
	return status
}

func (s *Service) storeStatus(ctx context.Context, gln, chainID, memberID string) models.Status {
	raw, err := s.GetSingleStore(ctx, LookupOptions{ChainID: chainID, StoreID: gln, Fields: statusFields})
	if err != nil {
		return s.failedStatus(ctx, "store status lookup failed", gln, err)
	}

	var wl models.Whitelisting
	if err := json.Unmarshal(raw, &wl); err != nil {
		s.logger.ErrorContext(ctx, "decode store whitelist failed", "gln", gln, "error", err)
		return models.Inactive(models.StatusUnexpectedFailure)
	}
	if !wl.Allows(memberID) {
		return models.Inactive(models.StatusWhitelistViolation)
	}

	merchant, err := s.merchants.GetMerchant(ctx, gln)
	if err != nil {
		return s.failedStatus(ctx, "merchant lookup for store status failed", gln, err)
	}
	if !merchant.PaymentValid() {
		return models.Inactive(models.StatusInvalidPayment)
	}
	return models.Active()
}

// failedStatus maps a store or merchant lookup failure: anything not found is 100,
// the rest is 101.
func (s *Service) failedStatus(ctx context.Context, msg, gln string, err error) models.Status {
	if dErrors.HasCode(err, dErrors.CodeNotFound) || dErrors.StatusCode(err) == http.StatusNotFound {
		return models.Inactive(models.StatusStoreNotFound)
	}
	s.logger.ErrorContext(ctx, msg, "gln", gln, "error", err)
	return models.Inactive(models.StatusUnexpectedFailure)
}

// ClosestKey is the cache key for a closest-point lookup.
func ClosestKey(postalCode string, isStore bool) string {
	if isStore {
		return storesKeyPrefix + postalCode
	}
	return pickupKeyPrefix + postalCode
}

// GetClosestInPostalCode returns stores or pickup points ordered by distance from the
// postal code. Any failure yields an empty list.
func (s *Service) GetClosestInPostalCode(ctx context.Context, chainID, postalCode string, isStore bool) []models.ClosePickupPoint {
	key := ClosestKey(postalCode, isStore)

	var cached []models.ClosePickupPoint
	if err := s.cache.GetJSON(ctx, key, &cached); err == nil {
		return cached
	} else if !dErrors.HasCode(err, dErrors.CodeNotFound) {
		s.logger.WarnContext(ctx, "closest cache read failed", "key", key, "error", err)
	}

	if !s.breaker.Allow() {
		s.logger.WarnContext(ctx, "click & collect circuit open, skipping closest lookup", "chain_id", chainID, "postal_code", postalCode)
		return []models.ClosePickupPoint{}
	}

	// concurrent misses for the same chain and key share one backend call, which must
	// not die with whichever caller started it
	v, err, _ := s.flight.Do(chainID+"/"+key, func() (any, error) {
		fctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.closestTO)
		defer cancel()
		return s.fetchClosest(fctx, chainID, postalCode, isStore)
	})
	if err != nil {
		s.logger.ErrorContext(ctx, "closest lookup failed", "chain_id", chainID, "postal_code", postalCode, "error", err)
		return []models.ClosePickupPoint{}
	}
	points := v.([]models.ClosePickupPoint)

	if err := s.cache.SetWithTTL(ctx, key, s.closestTTL, points, false); err != nil {
		s.logger.WarnContext(ctx, "closest cache write failed", "key", key, "error", err)
	}
	return points
}

func (s *Service) fetchClosest(ctx context.Context, chainID, postalCode string, isStore bool) ([]models.ClosePickupPoint, error) {
	kind := pickupPathKind
	if isStore {
		kind = storesPathKind
	}
	header := http.Header{}
	header.Set(proxy.TargetHeader, clickAndCollect)
	header.Set("Content-Type", "application/json")
	if s.authz != "" {
		header.Set("Authorization", s.authz)
	}

	res, err := s.forwarder.Do(ctx, proxy.Request{
		Method: http.MethodGet,
		URL:    fmt.Sprintf(closestPathShape, chainID, kind, postalCode),
		Header: header,
	}, nil)
	if err == nil {
		var points []models.ClosePickupPoint
		if points, err = mapper.ToClosePickupPoints(res.Body); err == nil {
			s.recordBackend(ctx, true)
			return points, nil
		}
		err = fmt.Errorf("decode closest response: %w", err)
	}
	s.recordBackend(ctx, false)
	return nil, err
}

func (s *Service) recordBackend(ctx context.Context, ok bool) {
	var change circuit.StateChange
	if ok {
		_, change = s.breaker.RecordSuccess()
	} else {
		_, change = s.breaker.RecordFailure()
	}
	switch {
	case change.Opened:
		s.logger.WarnContext(ctx, "circuit opened", "breaker", s.breaker.Name())
	case change.Closed:
		s.logger.InfoContext(ctx, "circuit closed", "breaker", s.breaker.Name())
	}
}

// GetStoreBagFees returns the bag products sold by the store.
func (s *Service) GetStoreBagFees(ctx context.Context, chainID, storeID string) ([]models.Bag, error) {
	raw, err := s.GetSingleStore(ctx, LookupOptions{ChainID: chainID, StoreID: storeID, Fields: []string{"specialGoods"}})
	if err != nil {
		return nil, err
	}
	bags, ok, err := mapper.Bags(raw)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "map bag fees")
	}
	if !ok {
		return nil, dErrors.New(dErrors.CodeNotFound, fmt.Sprintf("store %s has no bag fees", storeID))
	}
	return bags, nil
}

func (s *Service) fields(requested []string) []string {
	if len(requested) > 0 {
		return requested
	}
	return s.cfg.ReturnFields
}

func rejectFields(opts LookupOptions) error {
	if len(opts.Fields) > 0 {
		return dErrors.New(dErrors.CodeUnsupportedOption, "field selection is not supported for full store records")
	}
	return nil
}
