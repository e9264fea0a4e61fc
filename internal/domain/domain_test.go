package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFallbackResultIsNeutral(t *testing.T) {
	result := FallbackResult()

	assert.Equal(t, NeutralSafetyRating, result.Safety.Rating)
	assert.Equal(t, CategoryOther, result.Classification.Category)
	assert.NotNil(t, result.Tags)
	assert.Empty(t, result.Tags)
}

func TestValidCategory(t *testing.T) {
	assert.Equal(t, CategoryNews, ValidCategory("News"))
	assert.Equal(t, CategoryOther, ValidCategory("news"))
	assert.Equal(t, CategoryOther, ValidCategory(""))
	assert.Equal(t, CategoryOther, ValidCategory("Sportsball"))
}

func TestLinkProjection(t *testing.T) {
	rating := 2
	link := &Link{
		ID:             "id-1",
		ShortCode:      "abc1234",
		DestinationURL: "https://example.com",
		AnalysisStatus: AnalysisCompleted,
		SafetyRating:   &rating,
		SafetyReason:   "suspicious redirects",
		Summary:        "not part of the projection",
	}

	entry := link.Projection()
	assert.Equal(t, "id-1", entry.LinkID)
	assert.Equal(t, "https://example.com", entry.DestinationURL)
	assert.Equal(t, AnalysisCompleted, entry.AnalysisStatus)
	assert.Equal(t, 2, *entry.SafetyRating)
	assert.Equal(t, "suspicious redirects", entry.SafetyReason)
}

func TestJobExhausted(t *testing.T) {
	job := &AnalysisJob{RetryCount: 2, MaxRetries: 3}
	assert.False(t, job.Exhausted())

	job.RetryCount = 3
	assert.True(t, job.Exhausted())
}

func TestCollectionContains(t *testing.T) {
	c := &Collection{LinkIDs: []string{"a", "b"}}
	assert.True(t, c.Contains("a"))
	assert.False(t, c.Contains("c"))
}
