package domain

// Classification categories. The analysis provider is instructed to pick
// from this set; anything unrecognized falls back to CategoryOther.
const (
	CategoryNews          = "News"
	CategoryShopping      = "Shopping"
	CategoryTechnology    = "Technology"
	CategoryEntertainment = "Entertainment"
	CategoryFinance       = "Finance"
	CategoryEducation     = "Education"
	CategorySocial        = "Social"
	CategoryAdult         = "Adult"
	CategoryOther         = "Other"
)

// Categories lists every classification category in display order.
var Categories = []string{
	CategoryNews,
	CategoryShopping,
	CategoryTechnology,
	CategoryEntertainment,
	CategoryFinance,
	CategoryEducation,
	CategorySocial,
	CategoryAdult,
	CategoryOther,
}

// NeutralSafetyRating is the rating assigned when there is no content to
// judge. It sits exactly at the default gate threshold so unanalyzable
// destinations still redirect directly.
const NeutralSafetyRating = 3

// Safety holds the safety verdict for a destination.
type Safety struct {
	// Rating is 1 (dangerous) to 5 (safe).
	Rating        int    `json:"rating"`
	Justification string `json:"justification"`
}

// Classification holds the category verdict for a destination.
type Classification struct {
	Category   string  `json:"category"`
	Confidence float64 `json:"confidence"`
	Reason     string  `json:"reason"`
}

// AnalysisResult is the full output of analyzing a destination's content.
type AnalysisResult struct {
	Summary        string         `json:"summary"`
	Tags           []string       `json:"tags"`
	Safety         Safety         `json:"safety"`
	Classification Classification `json:"classification"`
}

// FallbackResult returns the deterministic result used when a destination
// yields no analyzable content. It never involves the analysis provider.
func FallbackResult() *AnalysisResult {
	return &AnalysisResult{
		Summary: "No content available for analysis.",
		Tags:    []string{},
		Safety: Safety{
			Rating:        NeutralSafetyRating,
			Justification: "Content could not be retrieved; no safety signals found.",
		},
		Classification: Classification{
			Category:   CategoryOther,
			Confidence: 0,
			Reason:     "No content available to classify.",
		},
	}
}

// ValidCategory returns category if it is a known category, else CategoryOther.
func ValidCategory(category string) string {
	for _, c := range Categories {
		if c == category {
			return category
		}
	}
	return CategoryOther
}
