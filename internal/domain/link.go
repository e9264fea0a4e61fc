// Package domain contains the core domain models for linkguard.
package domain

import (
	"time"

	"github.com/lib/pq"
)

// AnalysisStatus represents the content-analysis lifecycle of a link.
type AnalysisStatus string

const (
	AnalysisPending   AnalysisStatus = "pending"
	AnalysisCompleted AnalysisStatus = "completed"
	AnalysisFailed    AnalysisStatus = "failed"
)

// Link represents a short code mapped to a destination URL, together with
// the analysis results gathered for that destination.
type Link struct {
	ID             string         `db:"id"              json:"id"`
	ShortCode      string         `db:"short_code"      json:"short_code"`
	DestinationURL string         `db:"destination_url" json:"destination_url"`
	OwnerID        string         `db:"owner_id"        json:"owner_id"`
	HitCount       int64          `db:"hit_count"       json:"hit_count"`
	AnalysisStatus AnalysisStatus `db:"analysis_status" json:"analysis_status"`

	Summary            string         `db:"summary"             json:"summary,omitempty"`
	Tags               pq.StringArray `db:"tags"                json:"tags,omitempty"`
	SafetyRating       *int           `db:"safety_rating"       json:"safety_rating,omitempty"`
	SafetyReason       string         `db:"safety_reason"       json:"safety_reason,omitempty"`
	Category           string         `db:"category"            json:"category,omitempty"`
	CategoryConfidence float64        `db:"category_confidence" json:"category_confidence,omitempty"`
	CategoryReason     string         `db:"category_reason"     json:"category_reason,omitempty"`

	// CollectionIDs is one side of the symmetric link/collection relation;
	// the other side lives in Collection.LinkIDs.
	CollectionIDs pq.StringArray `db:"collection_ids" json:"collection_ids,omitempty"`

	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// CacheEntry is the redirect-relevant projection of a Link stored in the
// resolver cache, keyed by short code.
type CacheEntry struct {
	LinkID         string         `json:"link_id"`
	DestinationURL string         `json:"destination_url"`
	AnalysisStatus AnalysisStatus `json:"analysis_status"`
	SafetyRating   *int           `json:"safety_rating,omitempty"`
	SafetyReason   string         `json:"safety_reason,omitempty"`
}

// Projection returns the cacheable redirect projection of the link.
func (l *Link) Projection() CacheEntry {
	return CacheEntry{
		LinkID:         l.ID,
		DestinationURL: l.DestinationURL,
		AnalysisStatus: l.AnalysisStatus,
		SafetyRating:   l.SafetyRating,
		SafetyReason:   l.SafetyReason,
	}
}
