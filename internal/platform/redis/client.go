// Package redis implements the TTL cache client shared by every cache-aside component.
// It carries no business logic: keys, values and TTLs are chosen by the callers.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"

	"storegate/internal/platform/config"
	dErrors "storegate/pkg/domain-errors"
)

// Common TTLs used by callers of the cache.
const (
	TTLOneMinute = time.Minute
	TTLOneHour   = time.Hour
	TTLOneDay    = 24 * time.Hour
	TTLOneWeek   = 7 * TTLOneDay
)

// DefaultPingInterval keeps idle connections from being dropped by the cache host.
const DefaultPingInterval = 2 * time.Minute

var (
	redisPoolHits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "storegate_redis_pool_hits_total",
		Help: "Number of times a connection was found in the pool",
	})
	redisPoolMisses = promauto.NewCounter(prometheus.CounterOpts{
		Name: "storegate_redis_pool_misses_total",
		Help: "Number of times a connection was not found in the pool",
	})
	redisPoolTimeouts = promauto.NewCounter(prometheus.CounterOpts{
		Name: "storegate_redis_pool_timeouts_total",
		Help: "Number of times a connection was not obtained due to timeout",
	})
	redisPoolTotalConns = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "storegate_redis_pool_total_conns",
		Help: "Number of total connections in the pool",
	})
	redisPoolIdleConns = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "storegate_redis_pool_idle_conns",
		Help: "Number of idle connections in the pool",
	})
	redisPoolStaleConns = promauto.NewCounter(prometheus.CounterOpts{
		Name: "storegate_redis_pool_stale_conns_total",
		Help: "Number of stale connections removed from the pool",
	})
)

// Status is a snapshot of the cache connection.
type Status struct {
	Address    string `json:"address"`
	Connected  bool   `json:"connected"`
	TotalConns uint32 `json:"totalConns"`
	IdleConns  uint32 `json:"idleConns"`
	Timeouts   uint32 `json:"timeouts"`
}

// Client is the TTL cache client. It is constructed once at startup and handed to every
// component that needs the cache; all operations fail with CacheUnavailable until Connect succeeds.
type Client struct {
	cfg    config.RedisConfig
	logger *slog.Logger

	mu        sync.RWMutex
	rdb       *redis.Client
	lastStats *redis.PoolStats
	stopPing  context.CancelFunc

	connectGroup singleflight.Group
	newClient    func(*redis.Options) *redis.Client
}

// Option configures the Client.
type Option func(*Client)

// WithLogger sets the logger for the client.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// New creates an unconnected client from the provided configuration.
func New(cfg config.RedisConfig, opts ...Option) *Client {
	c := &Client{
		cfg:       cfg,
		logger:    slog.Default(),
		newClient: redis.NewClient,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.cfg.PingInterval <= 0 {
		c.cfg.PingInterval = DefaultPingInterval
	}
	return c
}

// Connect establishes the connection and starts the keep-alive ping.
// It is idempotent: once connected it returns nil, and concurrent callers share
// the outcome of the attempt already in flight.
func (c *Client) Connect(ctx context.Context) error {
	if c.connected() {
		return nil
	}
	_, err, _ := c.connectGroup.Do("connect", func() (any, error) {
		if c.connected() {
			return nil, nil
		}
		return nil, c.dial(ctx)
	})
	return err
}

func (c *Client) dial(ctx context.Context) error {
	if c.cfg.URL == "" {
		return dErrors.New(dErrors.CodeCacheUnavailable, "redis url is not configured")
	}
	opts, err := redis.ParseURL(c.cfg.URL)
	if err != nil {
		return fmt.Errorf("parse redis URL: %w", err)
	}

	if c.cfg.PoolSize > 0 {
		opts.PoolSize = c.cfg.PoolSize
	}
	opts.MinIdleConns = c.cfg.MinIdleConns
	if c.cfg.DialTimeout > 0 {
		opts.DialTimeout = c.cfg.DialTimeout
	}
	if c.cfg.ReadTimeout > 0 {
		opts.ReadTimeout = c.cfg.ReadTimeout
	}
	if c.cfg.WriteTimeout > 0 {
		opts.WriteTimeout = c.cfg.WriteTimeout
	}

	c.logger.InfoContext(ctx, "creating redis client", "addr", opts.Addr)
	rdb := c.newClient(opts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close() //nolint:errcheck // best-effort cleanup on init failure
		return dErrors.Wrap(err, dErrors.CodeCacheUnavailable, "redis ping failed")
	}

	pingCtx, cancel := context.WithCancel(context.Background())
	c.mu.Lock()
	c.rdb = rdb
	c.stopPing = cancel
	c.mu.Unlock()

	go c.keepAlive(pingCtx, rdb)
	c.logger.InfoContext(ctx, "redis connected", "addr", opts.Addr)
	return nil
}

// keepAlive pings the cache on a fixed interval and records pool statistics.
func (c *Client) keepAlive(ctx context.Context, rdb *redis.Client) {
	ticker := time.NewTicker(c.cfg.PingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := rdb.Ping(ctx).Err(); err != nil && ctx.Err() == nil {
				c.logger.Warn("redis keep-alive ping failed", "error", err)
			}
			c.RecordPoolStats()
		}
	}
}

func (c *Client) connected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.rdb != nil
}

// conn validates the key and returns the live connection.
func (c *Client) conn(key string) (*redis.Client, error) {
	c.mu.RLock()
	rdb := c.rdb
	c.mu.RUnlock()
	if rdb == nil {
		return nil, dErrors.New(dErrors.CodeCacheUnavailable, "redis is not connected")
	}
	if key == "" {
		return nil, dErrors.New(dErrors.CodeInvalidArgument, "missing key")
	}
	return rdb, nil
}

// Get returns the literal string stored under key.
//
// Errors: NotFound when the key does not exist; CacheUnavailable when not connected.
func (c *Client) Get(ctx context.Context, key string) (string, error) {
	rdb, err := c.conn(key)
	if err != nil {
		return "", err
	}
	val, err := rdb.Get(ctx, key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", dErrors.New(dErrors.CodeNotFound, fmt.Sprintf("key %q not found", key))
		}
		return "", fmt.Errorf("redis get %s: %w", key, err)
	}
	return val, nil
}

// GetJSON reads key and deserializes its canonical JSON form into dst.
func (c *Client) GetJSON(ctx context.Context, key string, dst any) error {
	val, err := c.Get(ctx, key)
	if err != nil {
		return err
	}
	if err := json.Unmarshal([]byte(val), dst); err != nil {
		return fmt.Errorf("decode cached %s: %w", key, err)
	}
	return nil
}

// Set stores value under key without expiry. With raw the value must be a string or
// []byte and is stored as is; otherwise it is stored in its canonical JSON form.
func (c *Client) Set(ctx context.Context, key string, value any, raw bool) error {
	return c.SetWithTTL(ctx, key, 0, value, raw)
}

// SetWithTTL stores value under key, expiring after ttl. A zero ttl persists the entry.
func (c *Client) SetWithTTL(ctx context.Context, key string, ttl time.Duration, value any, raw bool) error {
	rdb, err := c.conn(key)
	if err != nil {
		return err
	}
	if ttl < 0 {
		return dErrors.New(dErrors.CodeInvalidArgument, "ttl must not be negative")
	}
	payload, err := encode(value, raw)
	if err != nil {
		return err
	}
	if err := rdb.Set(ctx, key, payload, ttl).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", key, err)
	}
	return nil
}

func encode(value any, raw bool) (string, error) {
	if value == nil {
		return "", dErrors.New(dErrors.CodeInvalidArgument, "value cannot be empty")
	}
	if raw {
		switch v := value.(type) {
		case string:
			return v, nil
		case []byte:
			return string(v), nil
		default:
			return "", dErrors.New(dErrors.CodeInvalidArgument, fmt.Sprintf("raw value must be string or []byte, got %T", value))
		}
	}
	b, err := json.Marshal(value)
	if err != nil {
		return "", dErrors.Wrap(err, dErrors.CodeInvalidArgument, "encode cache value")
	}
	return string(b), nil
}

// Expire sets the time to live of an existing key.
func (c *Client) Expire(ctx context.Context, key string, ttl time.Duration) error {
	rdb, err := c.conn(key)
	if err != nil {
		return err
	}
	if err := rdb.Expire(ctx, key, ttl).Err(); err != nil {
		return fmt.Errorf("redis expire %s: %w", key, err)
	}
	return nil
}

// Delete removes key. Deleting a missing key is not an error.
func (c *Client) Delete(ctx context.Context, key string) error {
	rdb, err := c.conn(key)
	if err != nil {
		return err
	}
	if err := rdb.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("redis del %s: %w", key, err)
	}
	return nil
}

// Push inserts value at the head of the list stored at key and returns the new length.
func (c *Client) Push(ctx context.Context, key, value string) (int64, error) {
	rdb, err := c.conn(key)
	if err != nil {
		return 0, err
	}
	n, err := rdb.LPush(ctx, key, value).Result()
	if err != nil {
		return 0, fmt.Errorf("redis lpush %s: %w", key, err)
	}
	return n, nil
}

// Pop removes and returns the last element of the list stored at key.
func (c *Client) Pop(ctx context.Context, key string) (string, error) {
	rdb, err := c.conn(key)
	if err != nil {
		return "", err
	}
	val, err := rdb.RPop(ctx, key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", dErrors.New(dErrors.CodeNotFound, fmt.Sprintf("list %q is empty", key))
		}
		return "", fmt.Errorf("redis rpop %s: %w", key, err)
	}
	return val, nil
}

// Len returns the length of the list stored at key; a missing key is an empty list.
func (c *Client) Len(ctx context.Context, key string) (int64, error) {
	rdb, err := c.conn(key)
	if err != nil {
		return 0, err
	}
	n, err := rdb.LLen(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("redis llen %s: %w", key, err)
	}
	return n, nil
}

// Range returns list elements between start and stop inclusive. Negative offsets count from the tail.
func (c *Client) Range(ctx context.Context, key string, start, stop int64) ([]string, error) {
	rdb, err := c.conn(key)
	if err != nil {
		return nil, err
	}
	vals, err := rdb.LRange(ctx, key, start, stop).Result()
	if err != nil {
		return nil, fmt.Errorf("redis lrange %s: %w", key, err)
	}
	return vals, nil
}

// Trim keeps only the list elements between start and stop inclusive.
func (c *Client) Trim(ctx context.Context, key string, start, stop int64) error {
	rdb, err := c.conn(key)
	if err != nil {
		return err
	}
	if err := rdb.LTrim(ctx, key, start, stop).Err(); err != nil {
		return fmt.Errorf("redis ltrim %s: %w", key, err)
	}
	return nil
}

// AddToSet adds member to the set stored at key and returns the number of members added.
func (c *Client) AddToSet(ctx context.Context, key, member string) (int64, error) {
	rdb, err := c.conn(key)
	if err != nil {
		return 0, err
	}
	n, err := rdb.SAdd(ctx, key, member).Result()
	if err != nil {
		return 0, fmt.Errorf("redis sadd %s: %w", key, err)
	}
	return n, nil
}

// RemoveFromSet removes member from the set stored at key and returns the number removed.
func (c *Client) RemoveFromSet(ctx context.Context, key, member string) (int64, error) {
	rdb, err := c.conn(key)
	if err != nil {
		return 0, err
	}
	n, err := rdb.SRem(ctx, key, member).Result()
	if err != nil {
		return 0, fmt.Errorf("redis srem %s: %w", key, err)
	}
	return n, nil
}

// ZAdd adds member with score to the sorted set stored at key.
func (c *Client) ZAdd(ctx context.Context, key string, score float64, member string) (int64, error) {
	rdb, err := c.conn(key)
	if err != nil {
		return 0, err
	}
	n, err := rdb.ZAdd(ctx, key, redis.Z{Score: score, Member: member}).Result()
	if err != nil {
		return 0, fmt.Errorf("redis zadd %s: %w", key, err)
	}
	return n, nil
}

// ZRange returns sorted set members by rank, lowest score first.
func (c *Client) ZRange(ctx context.Context, key string, start, stop int64) ([]string, error) {
	rdb, err := c.conn(key)
	if err != nil {
		return nil, err
	}
	vals, err := rdb.ZRange(ctx, key, start, stop).Result()
	if err != nil {
		return nil, fmt.Errorf("redis zrange %s: %w", key, err)
	}
	return vals, nil
}

// ZRemRangeByRank removes sorted set members with rank between start and stop.
func (c *Client) ZRemRangeByRank(ctx context.Context, key string, start, stop int64) (int64, error) {
	rdb, err := c.conn(key)
	if err != nil {
		return 0, err
	}
	n, err := rdb.ZRemRangeByRank(ctx, key, start, stop).Result()
	if err != nil {
		return 0, fmt.Errorf("redis zremrangebyrank %s: %w", key, err)
	}
	return n, nil
}

// Scan returns every key matching pattern. SCAN may report a key more than once,
// so results are de-duplicated; iteration stops when the cursor returns to zero.
// This is a full keyspace walk and should be used sparingly.
func (c *Client) Scan(ctx context.Context, pattern string) ([]string, error) {
	rdb, err := c.conn(pattern)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]struct{})
	var found []string
	var cursor uint64
	for {
		keys, next, err := rdb.Scan(ctx, cursor, pattern, 0).Result()
		if err != nil {
			return nil, fmt.Errorf("redis scan %s: %w", pattern, err)
		}
		for _, k := range keys {
			if _, dup := seen[k]; dup {
				continue
			}
			seen[k] = struct{}{}
			found = append(found, k)
		}
		if next == 0 {
			return found, nil
		}
		cursor = next
	}
}

// Health checks if the Redis connection is healthy.
func (c *Client) Health(ctx context.Context) error {
	c.mu.RLock()
	rdb := c.rdb
	c.mu.RUnlock()
	if rdb == nil {
		return dErrors.New(dErrors.CodeCacheUnavailable, "redis is not connected")
	}
	return rdb.Ping(ctx).Err()
}

// Status returns misc status data for the cache connection.
func (c *Client) Status() Status {
	c.mu.RLock()
	rdb := c.rdb
	c.mu.RUnlock()
	if rdb == nil {
		return Status{}
	}
	stats := rdb.PoolStats()
	return Status{
		Address:    rdb.Options().Addr,
		Connected:  true,
		TotalConns: stats.TotalConns,
		IdleConns:  stats.IdleConns,
		Timeouts:   stats.Timeouts,
	}
}

// Close stops the keep-alive ping and closes the connection.
func (c *Client) Close() error {
	c.mu.Lock()
	rdb, stop := c.rdb, c.stopPing
	c.rdb, c.stopPing = nil, nil
	c.mu.Unlock()
	if stop != nil {
		stop()
	}
	if rdb == nil {
		return nil
	}
	return rdb.Close()
}

// RecordPoolStats updates Prometheus metrics with current pool statistics.
// The keep-alive loop calls this on every tick.
func (c *Client) RecordPoolStats() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.rdb == nil {
		return
	}
	stats := c.rdb.PoolStats()

	redisPoolTotalConns.Set(float64(stats.TotalConns))
	redisPoolIdleConns.Set(float64(stats.IdleConns))

	// Counters advance by the delta from the last recording.
	if c.lastStats != nil {
		if stats.Hits > c.lastStats.Hits {
			redisPoolHits.Add(float64(stats.Hits - c.lastStats.Hits))
		}
		if stats.Misses > c.lastStats.Misses {
			redisPoolMisses.Add(float64(stats.Misses - c.lastStats.Misses))
		}
		if stats.Timeouts > c.lastStats.Timeouts {
			redisPoolTimeouts.Add(float64(stats.Timeouts - c.lastStats.Timeouts))
		}
		if stats.StaleConns > c.lastStats.StaleConns {
			redisPoolStaleConns.Add(float64(stats.StaleConns - c.lastStats.StaleConns))
		}
	} else {
		redisPoolHits.Add(float64(stats.Hits))
		redisPoolMisses.Add(float64(stats.Misses))
		redisPoolTimeouts.Add(float64(stats.Timeouts))
		redisPoolStaleConns.Add(float64(stats.StaleConns))
	}

	c.lastStats = stats
}
