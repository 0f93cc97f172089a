package redis

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"

	"citadel/internal/domain/pricing"
	"citadel/pkg/errors"
)

// Compile-time check
var _ pricing.Cache = (*PriceCache)(nil)

// PriceCache stores the latest validated price per asset with a TTL so
// that a dead feed cannot serve stale reads forever
type PriceCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewPriceCache creates a new price cache
func NewPriceCache(client *redis.Client, ttl time.Duration) *PriceCache {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &PriceCache{
		client: client,
		ttl:    ttl,
	}
}

// SetLatest stores the latest validated price for its asset
func (c *PriceCache) SetLatest(ctx context.Context, price *pricing.ValidatedPrice) error {
	data, err := json.Marshal(price)
	if err != nil {
		return errors.Wrap(err, "marshal validated price")
	}
	return c.client.Set(ctx, c.key(price.Asset), data, c.ttl).Err()
}

// GetLatest returns the cached validated price, or ErrNotFound
func (c *PriceCache) GetLatest(ctx context.Context, asset string) (*pricing.ValidatedPrice, error) {
	data, err := c.client.Get(ctx, c.key(asset)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, errors.Wrapf(errors.ErrNotFound, "no cached price for %s", asset)
		}
		return nil, errors.Wrap(err, "get cached price")
	}

	var price pricing.ValidatedPrice
	if err := json.Unmarshal(data, &price); err != nil {
		return nil, errors.Wrap(err, "unmarshal cached price")
	}

	return &price, nil
}

func (c *PriceCache) key(asset string) string {
	return "oracle:latest:" + asset
}
