package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonesrussell/linkguard/internal/domain"
)

func newTestCache(t *testing.T) (*LinkCache, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	return NewLinkCache(client, time.Hour), mr
}

func intPtr(v int) *int { return &v }

func TestLinkCacheRoundTrip(t *testing.T) {
	c, _ := newTestCache(t)
	ctx := context.Background()

	entry := &domain.CacheEntry{
		LinkID:         "id-1",
		DestinationURL: "https://example.com",
		AnalysisStatus: domain.AnalysisCompleted,
		SafetyRating:   intPtr(2),
		SafetyReason:   "phishing indicators",
	}
	require.NoError(t, c.Set(ctx, "abc1234", entry))

	got, err := c.Get(ctx, "abc1234")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, entry.LinkID, got.LinkID)
	assert.Equal(t, entry.DestinationURL, got.DestinationURL)
	require.NotNil(t, got.SafetyRating)
	assert.Equal(t, 2, *got.SafetyRating)
}

func TestLinkCacheMiss(t *testing.T) {
	c, _ := newTestCache(t)

	got, err := c.Get(context.Background(), "unknown")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestLinkCacheSetAppliesTTL(t *testing.T) {
	c, mr := newTestCache(t)

	require.NoError(t, c.Set(context.Background(), "abc1234", &domain.CacheEntry{
		LinkID:         "id-1",
		DestinationURL: "https://example.com",
		AnalysisStatus: domain.AnalysisPending,
	}))

	ttl := mr.TTL("link:abc1234")
	assert.Equal(t, time.Hour, ttl)
}

func TestLinkCacheDelete(t *testing.T) {
	c, _ := newTestCache(t)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "abc1234", &domain.CacheEntry{
		LinkID:         "id-1",
		DestinationURL: "https://example.com",
		AnalysisStatus: domain.AnalysisPending,
	}))
	require.NoError(t, c.Delete(ctx, "abc1234"))

	got, err := c.Get(ctx, "abc1234")
	require.NoError(t, err)
	assert.Nil(t, got)

	// Deleting an absent key is a no-op.
	require.NoError(t, c.Delete(ctx, "abc1234"))
}

func TestLinkCacheCorruptEntryBehavesAsMiss(t *testing.T) {
	c, mr := newTestCache(t)

	require.NoError(t, mr.Set("link:abc1234", "not json"))

	got, err := c.Get(context.Background(), "abc1234")
	require.NoError(t, err)
	assert.Nil(t, got)
}
