package catalog_test

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	redis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/warebill/billing/internal/catalog"
)

type countingSource struct {
	calls int
	pkg   *catalog.Packaging
}

func (s *countingSource) Packaging(_ context.Context, _ uuid.UUID, _ string) (*catalog.Packaging, error) {
	s.calls++
	return s.pkg, nil
}

func newTestRedis(t *testing.T) *redis.Client {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func TestCachedSourceReadThrough(t *testing.T) {
	inner := &countingSource{pkg: &catalog.Packaging{SKU: "ABC", Tiers: []catalog.Tier{{Label: "case", Quantity: 12}}}}
	cached := &catalog.CachedSource{Inner: inner, R: newTestRedis(t), TTL: time.Minute}

	customerID := uuid.New()
	ctx := context.Background()

	first, err := cached.Packaging(ctx, customerID, " abc ")
	require.NoError(t, err)
	require.NotNil(t, first)
	require.Equal(t, 1, inner.calls)

	// Second hit is served from Redis; the normalized SKU keys the entry.
	second, err := cached.Packaging(ctx, customerID, "ABC")
	require.NoError(t, err)
	require.NotNil(t, second)
	require.Equal(t, 1, inner.calls)

	size, ok := second.CaseSize()
	require.True(t, ok)
	require.Equal(t, int64(12), size)
}

func TestCachedSourceCachesMisses(t *testing.T) {
	inner := &countingSource{pkg: nil}
	cached := &catalog.CachedSource{Inner: inner, R: newTestRedis(t), TTL: time.Minute}

	ctx := context.Background()
	customerID := uuid.New()

	pkg, err := cached.Packaging(ctx, customerID, "GHOST")
	require.NoError(t, err)
	require.Nil(t, pkg)

	pkg, err = cached.Packaging(ctx, customerID, "GHOST")
	require.NoError(t, err)
	require.Nil(t, pkg)
	require.Equal(t, 1, inner.calls)
}

func TestCachedSourceWithoutRedisFallsThrough(t *testing.T) {
	inner := &countingSource{pkg: nil}
	cached := &catalog.CachedSource{Inner: inner}

	_, err := cached.Packaging(context.Background(), uuid.New(), "ABC")
	require.NoError(t, err)
	_, err = cached.Packaging(context.Background(), uuid.New(), "ABC")
	require.NoError(t, err)
	require.Equal(t, 2, inner.calls)
}
