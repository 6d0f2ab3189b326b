package service

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	merchantmetrics "storegate/internal/merchant/metrics"
	"storegate/internal/merchant/models"
	dErrors "storegate/pkg/domain-errors"
)

const (
	// DefaultTTL is how long merchant records and lists stay cached.
	DefaultTTL = 24 * time.Hour

	allMerchantsKey     = "merchants"
	merchantKeyPrefix   = "merchant-"
	defaultWriteTimeout = 5 * time.Second
)

// Cache is the subset of the TTL cache client used for merchant records.
type Cache interface {
	GetJSON(ctx context.Context, key string, dst any) error
	SetWithTTL(ctx context.Context, key string, ttl time.Duration, value any, raw bool) error
	Delete(ctx context.Context, key string) error
}

// Source is the durable merchant table.
type Source interface {
	Get(ctx context.Context, gln string) (models.Entity, error)
	QueryByChain(ctx context.Context, chainID string) ([]models.Entity, error)
	List(ctx context.Context) ([]models.Entity, error)
}

// Service implements cache-aside reads and invalidation for merchant records.
type Service struct {
	cache        Cache
	source       Source
	logger       *slog.Logger
	metrics      *merchantmetrics.Metrics
	ttl          time.Duration
	writeTimeout time.Duration
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithMetrics(m *merchantmetrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// WithTTL overrides the cache TTL for merchant entries.
func WithTTL(ttl time.Duration) Option {
	return func(s *Service) {
		s.ttl = ttl
	}
}

func New(cache Cache, source Source, opts ...Option) *Service {
	s := &Service{
		cache:        cache,
		source:       source,
		logger:       slog.Default(),
		ttl:          DefaultTTL,
		writeTimeout: defaultWriteTimeout,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// MerchantKey is the cache key for a single merchant.
func MerchantKey(gln string) string {
	return merchantKeyPrefix + gln
}

// ChainKey is the cache key for the payment-valid merchant list of a chain.
func ChainKey(chainID string) string {
	return merchantKeyPrefix + chainID
}

// GetMerchant returns the merchant for gln, reading through the cache.
func (s *Service) GetMerchant(ctx context.Context, gln string) (*models.Merchant, error) {
	if gln == "" {
		return nil, dErrors.New(dErrors.CodeInvalidArgument, "gln is required")
	}
	key := MerchantKey(gln)

	var cached models.Merchant
	if s.readCache(ctx, key, "merchant", &cached) {
		return &cached, nil
	}

	start := time.Now()
	entity, err := s.source.Get(ctx, gln)
	s.observeSource("get", start)
	if err != nil {
		return nil, err
	}
	merchant, err := models.ToMerchant(entity)
	if err != nil {
		return nil, dErrors.NewUpstream(http.StatusBadGateway, fmt.Sprintf("map merchant %s", gln), err)
	}
	if !merchant.HasPayexCredentials() {
		s.logger.WarnContext(ctx, "merchant is missing account number or encryption key",
			"gln", gln,
			"chain_id", merchant.ChainID,
		)
	}

	s.writeBack(ctx, key, merchant)
	return &merchant, nil
}

// GetMerchantsForChain returns the payment-valid merchants of a chain.
func (s *Service) GetMerchantsForChain(ctx context.Context, chainID string) ([]models.Merchant, error) {
	if chainID == "" {
		return nil, dErrors.New(dErrors.CodeInvalidArgument, "chain id is required")
	}
	return s.list(ctx, ChainKey(chainID), "chain", true, s.chainQuery(chainID))
}

func (s *Service) chainQuery(chainID string) func(context.Context) ([]models.Entity, error) {
	return func(ctx context.Context) ([]models.Entity, error) {
		return s.source.QueryByChain(ctx, chainID)
	}
}

// GetAllMerchants returns every payment-valid merchant.
func (s *Service) GetAllMerchants(ctx context.Context) ([]models.Merchant, error) {
	return s.list(ctx, allMerchantsKey, "all", true, s.source.List)
}

// list reads key through the cache. Without writeBack a miss is not cached, so a
// pending background write cannot outlive a later delete of the same key.
func (s *Service) list(ctx context.Context, key, family string, writeBack bool, query func(context.Context) ([]models.Entity, error)) ([]models.Merchant, error) {
	var cached []models.Merchant
	if s.readCache(ctx, key, family, &cached) {
		return cached, nil
	}

	start := time.Now()
	entities, err := query(ctx)
	s.observeSource(family, start)
	if err != nil {
		return nil, err
	}

	merchants := make([]models.Merchant, 0, len(entities))
	for _, e := range entities {
		m, err := models.ToMerchant(e)
		if err != nil {
			s.logger.WarnContext(ctx, "skipping unreadable merchant entity", "key", key, "error", err)
			continue
		}
		merchants = append(merchants, m)
	}
	valid := models.FilterPaymentValid(merchants)
	if s.metrics != nil {
		s.metrics.AddFilteredInvalid(len(entities) - len(valid))
	}
	if len(valid) == 0 {
		return nil, dErrors.NewUpstream(http.StatusInternalServerError,
			fmt.Sprintf("no merchants with valid payment settings for %s", key), nil)
	}

	if writeBack {
		s.writeBack(ctx, key, valid)
	}
	return valid, nil
}

// InvalidateCache removes every cached merchant of the chain together with the chain
// list and the global list. The first failing delete aborts the operation.
func (s *Service) InvalidateCache(ctx context.Context, chainID string) (bool, error) {
	if chainID == "" {
		return false, dErrors.New(dErrors.CodeInvalidArgument, "chain id is required")
	}
	merchants, err := s.list(ctx, ChainKey(chainID), "chain", false, s.chainQuery(chainID))
	if err != nil {
		s.incrementInvalidation("error")
		return false, err
	}

	keys := make([]string, 0, len(merchants)+2)
	for _, m := range merchants {
		keys = append(keys, MerchantKey(m.GLN))
	}
	keys = append(keys, ChainKey(chainID), allMerchantsKey)

	for _, key := range keys {
		if err := s.cache.Delete(ctx, key); err != nil {
			s.incrementInvalidation("error")
			s.logger.ErrorContext(ctx, "failed to invalidate merchant cache", "chain_id", chainID, "key", key, "error", err)
			return false, dErrors.Wrap(err, dErrors.CodeCacheUnavailable, fmt.Sprintf("invalidate %s", key))
		}
	}

	s.incrementInvalidation("ok")
	s.logger.InfoContext(ctx, "merchant cache invalidated", "chain_id", chainID, "keys", len(keys))
	return true, nil
}

// readCache reports whether key was found and decoded into dst. Any failure is a miss.
func (s *Service) readCache(ctx context.Context, key, family string, dst any) bool {
	if err := s.cache.GetJSON(ctx, key, dst); err != nil {
		if !dErrors.HasCode(err, dErrors.CodeNotFound) {
			s.logger.DebugContext(ctx, "merchant cache read failed", "key", key, "error", err)
		}
		if s.metrics != nil {
			s.metrics.IncrementCacheMiss(family)
		}
		return false
	}
	if s.metrics != nil {
		s.metrics.IncrementCacheHit(family)
	}
	return true
}

// writeBack stores value in the background. Failures are logged and never reach the caller.
func (s *Service) writeBack(ctx context.Context, key string, value any) {
	go func() {
		wctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.writeTimeout)
		defer cancel()
		if err := s.cache.SetWithTTL(wctx, key, s.ttl, value, false); err != nil {
			if s.metrics != nil {
				s.metrics.IncrementCacheWriteFailure()
			}
			s.logger.ErrorContext(wctx, "failed to cache merchant data", "key", key, "error", err)
		}
	}()
}

func (s *Service) observeSource(operation string, start time.Time) {
	if s.metrics != nil {
		s.metrics.ObserveSourceQuery(operation, start)
	}
}

func (s *Service) incrementInvalidation(status string) {
	if s.metrics != nil {
		s.metrics.IncrementInvalidation(status)
	}
}
