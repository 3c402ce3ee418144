// Package redis caches licence lookups in Redis.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/neomorfeo/taxireg/internal/domain"
	"github.com/neomorfeo/taxireg/internal/platform/config"
)

const (
	keyPrefix  = "taxireg:licence-info:"
	defaultTTL = 10 * time.Minute
)

// Compile-time check: Cache implements domain.LicenceCache.
var _ domain.LicenceCache = (*Cache)(nil)

// Cache stores LicenceInfo values as JSON, keyed by normalised VRM.
type Cache struct {
	client *redis.Client
	ttl    time.Duration
}

// New connects to Redis. Returns nil when the URL is empty (cache disabled).
func New(ctx context.Context, cfg config.RedisConfig) (*Cache, error) {
	if cfg.URL == "" {
		return nil, nil
	}

	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse redis URL: %w", err)
	}

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	return NewFromClient(client, cfg.TTL), nil
}

// NewFromClient wraps an existing client. A non-positive ttl uses the default.
func NewFromClient(client *redis.Client, ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = defaultTTL
	}
	return &Cache{client: client, ttl: ttl}
}

func (c *Cache) Get(ctx context.Context, vrm string) (domain.LicenceInfo, bool, error) {
	raw, err := c.client.Get(ctx, key(vrm)).Bytes()
	if errors.Is(err, redis.Nil) {
		return domain.LicenceInfo{}, false, nil
	}
	if err != nil {
		return domain.LicenceInfo{}, false, fmt.Errorf("reading cached licence info: %w", err)
	}

	var info domain.LicenceInfo
	if err := json.Unmarshal(raw, &info); err != nil {
		return domain.LicenceInfo{}, false, fmt.Errorf("decoding cached licence info: %w", err)
	}
	return info, true, nil
}

func (c *Cache) Set(ctx context.Context, info domain.LicenceInfo) error {
	raw, err := json.Marshal(info)
	if err != nil {
		return fmt.Errorf("encoding licence info: %w", err)
	}
	if err := c.client.Set(ctx, key(info.VRM), raw, c.ttl).Err(); err != nil {
		return fmt.Errorf("caching licence info: %w", err)
	}
	return nil
}

func (c *Cache) Evict(ctx context.Context, vrms []string) error {
	if len(vrms) == 0 {
		return nil
	}
	keys := make([]string, len(vrms))
	for i, vrm := range vrms {
		keys[i] = key(vrm)
	}
	if err := c.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("evicting licence info: %w", err)
	}
	return nil
}

// Health checks the Redis connection.
func (c *Cache) Health(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

func (c *Cache) Close() error {
	return c.client.Close()
}

func key(vrm string) string {
	return keyPrefix + strings.ToUpper(strings.ReplaceAll(vrm, " ", ""))
}
