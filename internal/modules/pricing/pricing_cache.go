package pricing

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"quickclean/internal/models"

	"github.com/go-redis/redis/v8"
)

const (
	cacheKey = "pricing:config"
	cacheTTL = 10 * time.Minute

	// storeAttempts bounds optimistic-lock retries when writers race on the key.
	storeAttempts = 3
)

// Cache holds the current price list between reads. Store never replaces a
// cached list with an older one, so a reader that fetched the row just before
// a replace cannot put the old prices back.
type Cache interface {
	Load(ctx context.Context) (*models.PricingConfig, bool, error)
	Store(ctx context.Context, cfg *models.PricingConfig) error
	Invalidate(ctx context.Context) error
}

type redisCache struct {
	client *redis.Client
}

// NewRedisCache wraps an existing client; the caller owns its lifecycle.
func NewRedisCache(client *redis.Client) Cache {
	return &redisCache{client: client}
}

func (c *redisCache) Load(ctx context.Context) (*models.PricingConfig, bool, error) {
	cfg, err := get(ctx, c.client)
	if err != nil {
		return nil, false, err
	}
	return cfg, cfg != nil, nil
}

func (c *redisCache) Store(ctx context.Context, cfg *models.PricingConfig) error {
	raw, err := json.Marshal(cfg)
	if err != nil {
		return err
	}
	txf := func(tx *redis.Tx) error {
		cur, err := get(ctx, tx)
		if err != nil {
			return err
		}
		if !supersedes(cur, cfg) {
			return nil
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, cacheKey, raw, cacheTTL)
			return nil
		})
		return err
	}
	for i := 0; i < storeAttempts; i++ {
		err = c.client.Watch(ctx, txf, cacheKey)
		if !errors.Is(err, redis.TxFailedErr) {
			return err
		}
	}
	return err
}

func (c *redisCache) Invalidate(ctx context.Context) error {
	return c.client.Del(ctx, cacheKey).Err()
}

// getter is satisfied by both *redis.Client and *redis.Tx.
type getter interface {
	Get(ctx context.Context, key string) *redis.StringCmd
}

// get returns nil without error when nothing is cached.
func get(ctx context.Context, r getter) (*models.PricingConfig, error) {
	raw, err := r.Get(ctx, cacheKey).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var cfg models.PricingConfig
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// supersedes reports whether next may overwrite cur.
func supersedes(cur, next *models.PricingConfig) bool {
	return cur == nil || !next.UpdatedAt.Before(cur.UpdatedAt)
}

// noCache is used when no Redis address is configured.
type noCache struct{}

func (noCache) Load(context.Context) (*models.PricingConfig, bool, error) { return nil, false, nil }
func (noCache) Store(context.Context, *models.PricingConfig) error       { return nil }
func (noCache) Invalidate(context.Context) error                         { return nil }
