package resolver

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonesrussell/linkguard/internal/domain"
	"github.com/jonesrussell/linkguard/internal/logger"
)

type fakeLinkStore struct {
	mu    sync.Mutex
	links map[string]*domain.Link
	hits  map[string]int64
}

func newFakeLinkStore(links ...*domain.Link) *fakeLinkStore {
	s := &fakeLinkStore{links: map[string]*domain.Link{}, hits: map[string]int64{}}
	for _, l := range links {
		s.links[l.ShortCode] = l
	}
	return s
}

func (s *fakeLinkStore) GetByCode(_ context.Context, code string) (*domain.Link, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	link, ok := s.links[code]
	if !ok {
		return nil, domain.ErrLinkNotFound
	}
	copied := *link
	return &copied, nil
}

func (s *fakeLinkStore) IncrementHits(_ context.Context, id string, delta int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hits[id] += delta
	return nil
}

func (s *fakeLinkStore) hitsFor(id string) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hits[id]
}

type fakeCache struct {
	mu      sync.Mutex
	entries map[string]*domain.CacheEntry
	getErr  error
}

func newFakeCache() *fakeCache {
	return &fakeCache{entries: map[string]*domain.CacheEntry{}}
}

func (c *fakeCache) Get(_ context.Context, code string) (*domain.CacheEntry, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.getErr != nil {
		return nil, c.getErr
	}
	return c.entries[code], nil
}

func (c *fakeCache) Set(_ context.Context, code string, entry *domain.CacheEntry) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[code] = entry
	return nil
}

func ratingPtr(v int) *int { return &v }

func safeLink() *domain.Link {
	return &domain.Link{
		ID:             "id-safe",
		ShortCode:      "safe123",
		DestinationURL: "https://example.com",
		OwnerID:        "owner-1",
		AnalysisStatus: domain.AnalysisCompleted,
		SafetyRating:   ratingPtr(5),
	}
}

func unsafeLink() *domain.Link {
	return &domain.Link{
		ID:             "id-bad",
		ShortCode:      "bad1234",
		DestinationURL: "https://malware.example",
		OwnerID:        "owner-1",
		AnalysisStatus: domain.AnalysisCompleted,
		SafetyRating:   ratingPtr(1),
		SafetyReason:   "phishing indicators",
	}
}

func newTestResolver(store *fakeLinkStore, cache *fakeCache) (*Resolver, *HitBuffer) {
	hits := NewHitBuffer(store, 100, 10*time.Millisecond, logger.NewNop())
	hits.Start()
	return New(store, cache, hits, 3, logger.NewNop()), hits
}

func TestResolveUnknownCode(t *testing.T) {
	store := newFakeLinkStore()
	r, hits := newTestResolver(store, newFakeCache())
	defer hits.Stop()

	_, err := r.Resolve(context.Background(), "nope")
	require.ErrorIs(t, err, domain.ErrLinkNotFound)
}

func TestResolveMissPopulatesCacheAndIncrements(t *testing.T) {
	store := newFakeLinkStore(safeLink())
	cache := newFakeCache()
	r, hits := newTestResolver(store, cache)
	defer hits.Stop()

	res, err := r.Resolve(context.Background(), "safe123")
	require.NoError(t, err)

	assert.Equal(t, domain.ResolutionDirect, res.Kind)
	assert.Equal(t, "https://example.com", res.DestinationURL)
	assert.Equal(t, int64(1), store.hitsFor("id-safe"))

	cached, _ := cache.Get(context.Background(), "safe123")
	require.NotNil(t, cached)
	assert.Equal(t, "id-safe", cached.LinkID)
}

func TestResolveUnsafeLinkWarns(t *testing.T) {
	store := newFakeLinkStore(unsafeLink())
	r, hits := newTestResolver(store, newFakeCache())
	defer hits.Stop()

	res, err := r.Resolve(context.Background(), "bad1234")
	require.NoError(t, err)

	assert.Equal(t, domain.ResolutionWarning, res.Kind)
	assert.Equal(t, "https://malware.example", res.DestinationURL)
	assert.Equal(t, "phishing indicators", res.Justification)
}

func TestResolvePendingLinkRedirectsDirectly(t *testing.T) {
	link := safeLink()
	link.AnalysisStatus = domain.AnalysisPending
	link.SafetyRating = nil

	store := newFakeLinkStore(link)
	r, hits := newTestResolver(store, newFakeCache())
	defer hits.Stop()

	res, err := r.Resolve(context.Background(), "safe123")
	require.NoError(t, err)
	assert.Equal(t, domain.ResolutionDirect, res.Kind)
}

func TestResolveGatesOnEveryCallIncludingCacheHits(t *testing.T) {
	store := newFakeLinkStore()
	cache := newFakeCache()
	entry := unsafeLink().Projection()
	require.NoError(t, cache.Set(context.Background(), "bad1234", &entry))

	r, hits := newTestResolver(store, cache)
	defer hits.Stop()

	// The store is empty; the warning must come from the cached rating
	// being gated at resolve time.
	res, err := r.Resolve(context.Background(), "bad1234")
	require.NoError(t, err)
	assert.Equal(t, domain.ResolutionWarning, res.Kind)
}

func TestResolveCacheHitCountsLazily(t *testing.T) {
	store := newFakeLinkStore(safeLink())
	cache := newFakeCache()
	entry := safeLink().Projection()
	require.NoError(t, cache.Set(context.Background(), "safe123", &entry))

	r, hits := newTestResolver(store, cache)

	for range 5 {
		_, err := r.Resolve(context.Background(), "safe123")
		require.NoError(t, err)
	}

	// Stop drains and flushes the buffer.
	hits.Stop()
	assert.Equal(t, int64(5), store.hitsFor("id-safe"))
}

func TestResolveCacheErrorFallsBackToDatabase(t *testing.T) {
	store := newFakeLinkStore(safeLink())
	cache := newFakeCache()
	cache.getErr = errors.New("redis down")

	r, hits := newTestResolver(store, cache)
	defer hits.Stop()

	res, err := r.Resolve(context.Background(), "safe123")
	require.NoError(t, err)
	assert.Equal(t, domain.ResolutionDirect, res.Kind)
}

func TestConcurrentMissesEachIncrement(t *testing.T) {
	store := newFakeLinkStore(safeLink())
	cache := newFakeCache()
	hits := NewHitBuffer(store, 100, time.Hour, logger.NewNop())
	hits.Start()
	defer hits.Stop()

	// A cache that never stores keeps every resolution on the miss path.
	r := New(store, missOnlyCache{cache}, hits, 3, logger.NewNop())

	const n = 50
	var wg sync.WaitGroup
	for range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := r.Resolve(context.Background(), "safe123")
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(n), store.hitsFor("id-safe"))
}

type missOnlyCache struct{ inner *fakeCache }

func (m missOnlyCache) Get(context.Context, string) (*domain.CacheEntry, error) { return nil, nil }
func (m missOnlyCache) Set(ctx context.Context, code string, entry *domain.CacheEntry) error {
	return m.inner.Set(ctx, code, entry)
}
