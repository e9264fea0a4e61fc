// Package resolver performs short code resolution with a cache-aside
// lookup, a safety gate, and lazy hit counting.
package resolver

import (
	"context"
	"errors"
	"fmt"

	"github.com/jonesrussell/linkguard/internal/domain"
	"github.com/jonesrussell/linkguard/internal/logger"
	"github.com/jonesrussell/linkguard/internal/metrics"
)

// LinkStore is the subset of the link repository the resolver reads.
type LinkStore interface {
	GetByCode(ctx context.Context, code string) (*domain.Link, error)
	IncrementHits(ctx context.Context, id string, delta int64) error
}

// Cache is the projection cache the resolver consults before the database.
type Cache interface {
	Get(ctx context.Context, code string) (*domain.CacheEntry, error)
	Set(ctx context.Context, code string, entry *domain.CacheEntry) error
}

// Resolver resolves short codes to redirect decisions.
//
// The safety gate runs on every resolution, cached or not: a cached entry
// stores the rating, never the decision, so threshold changes take effect
// without invalidation.
type Resolver struct {
	links     LinkStore
	cache     Cache
	hits      *HitBuffer
	threshold int
	log       logger.Logger
}

// New creates a Resolver. threshold is the minimum safety rating for a
// direct redirect.
func New(links LinkStore, cache Cache, hits *HitBuffer, threshold int, log logger.Logger) *Resolver {
	return &Resolver{
		links:     links,
		cache:     cache,
		hits:      hits,
		threshold: threshold,
		log:       log,
	}
}

// Resolve maps a short code to a redirect decision. Unknown codes return
// domain.ErrLinkNotFound.
func (r *Resolver) Resolve(ctx context.Context, code string) (*domain.Resolution, error) {
	entry, err := r.cache.Get(ctx, code)
	if err != nil {
		// A cache outage degrades to database reads rather than failing
		// resolution.
		r.log.Warn("Cache lookup failed, falling back to database",
			logger.String("code", code),
			logger.Error(err),
		)
		entry = nil
	}

	if entry != nil {
		metrics.CacheHitsTotal.WithLabelValues("hit").Inc()
		r.hits.Record(entry.LinkID)
		return r.gate(entry), nil
	}
	metrics.CacheHitsTotal.WithLabelValues("miss").Inc()

	link, err := r.links.GetByCode(ctx, code)
	if err != nil {
		if errors.Is(err, domain.ErrLinkNotFound) {
			metrics.ResolutionsTotal.WithLabelValues(metrics.OutcomeNotFound).Inc()
			return nil, domain.ErrLinkNotFound
		}
		return nil, fmt.Errorf("resolve %q: %w", code, err)
	}

	// Synchronous fetch-add on the miss path; concurrent resolvers each
	// land their own increment.
	if err := r.links.IncrementHits(ctx, link.ID, 1); err != nil {
		r.log.Warn("Failed to increment hit count",
			logger.String("link_id", link.ID),
			logger.Error(err),
		)
	}

	projection := link.Projection()
	if err := r.cache.Set(ctx, code, &projection); err != nil {
		r.log.Warn("Failed to populate cache",
			logger.String("code", code),
			logger.Error(err),
		)
	}

	return r.gate(&projection), nil
}

// gate applies the safety threshold to a projection. Links without a
// completed analysis, or without a rating, redirect directly.
func (r *Resolver) gate(entry *domain.CacheEntry) *domain.Resolution {
	if entry.AnalysisStatus == domain.AnalysisCompleted &&
		entry.SafetyRating != nil && *entry.SafetyRating < r.threshold {
		metrics.ResolutionsTotal.WithLabelValues(metrics.OutcomeWarning).Inc()
		return &domain.Resolution{
			Kind:           domain.ResolutionWarning,
			DestinationURL: entry.DestinationURL,
			Justification:  entry.SafetyReason,
		}
	}

	metrics.ResolutionsTotal.WithLabelValues(metrics.OutcomeDirect).Inc()
	return &domain.Resolution{
		Kind:           domain.ResolutionDirect,
		DestinationURL: entry.DestinationURL,
	}
}
