package catalog

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/warebill/billing/internal/order"
)

// cachedPackaging wraps a lookup result so misses are cacheable too.
type cachedPackaging struct {
	Found     bool       `json:"found"`
	Packaging *Packaging `json:"packaging,omitempty"`
}

// CachedSource is a read-through Redis cache in front of a packaging source.
// Cost calculators receive it explicitly instead of relying on any
// process-global memoization. Cache failures degrade to the inner source.
type CachedSource struct {
	Inner Source
	R     *redis.Client
	TTL   time.Duration
}

// Packaging implements Source.
func (c *CachedSource) Packaging(ctx context.Context, customerID uuid.UUID, sku string) (*Packaging, error) {
	normalized := order.NormalizeSKU(sku)
	if c == nil || c.Inner == nil {
		return nil, nil
	}
	if c.R == nil || c.TTL <= 0 {
		return c.Inner.Packaging(ctx, customerID, normalized)
	}

	key := "catalog:packaging:" + customerID.String() + ":" + normalized
	if data, err := c.R.Get(ctx, key).Bytes(); err == nil {
		var cached cachedPackaging
		if err := json.Unmarshal(data, &cached); err == nil {
			if !cached.Found {
				return nil, nil
			}
			return cached.Packaging, nil
		}
	}

	pkg, err := c.Inner.Packaging(ctx, customerID, normalized)
	if err != nil {
		return nil, err
	}
	if data, err := json.Marshal(cachedPackaging{Found: pkg != nil, Packaging: pkg}); err == nil {
		_ = c.R.Set(ctx, key, data, c.TTL).Err()
	}
	return pkg, nil
}
