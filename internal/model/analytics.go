package model

import "time"

// AnalyticsRecord is one row per completed generation attempt.
// Records are append-only; nothing updates them after insert.
type AnalyticsRecord struct {
	ID             int64     `db:"id" json:"id"`
	StyleID        string    `db:"style_id" json:"styleId"`
	CombinedWith   *string   `db:"combined_with" json:"combinedWith,omitempty"`
	QualityScore   float64   `db:"quality_score" json:"qualityScore"`
	GenerationTime float64   `db:"generation_time" json:"generationTime"` // seconds
	Success        bool      `db:"success" json:"success"`
	Guidance       float64   `db:"guidance" json:"guidance"`
	CreatedAt      time.Time `db:"created_at" json:"createdAt"`
}

// Partner returns the style this record was combined with, if any.
func (r AnalyticsRecord) Partner() (string, bool) {
	if r.CombinedWith == nil || *r.CombinedWith == "" {
		return "", false
	}
	return *r.CombinedWith, true
}

// Combination aggregates the records of one unordered style pair.
type Combination struct {
	Styles       [2]string `json:"styles"`
	Count        int       `json:"count"`
	AverageScore float64   `json:"averageScore"`
}

// Includes reports whether styleID is one side of the pair.
func (c Combination) Includes(styleID string) bool {
	return c.Styles[0] == styleID || c.Styles[1] == styleID
}

// Performance holds the speed/success/guidance aggregates of a style.
type Performance struct {
	GenerationSpeed float64 `json:"generationSpeed"`
	SuccessRate     float64 `json:"successRate"` // percent, 0..100
	AverageGuidance float64 `json:"averageGuidance"`
}

// StyleAnalytics is derived from the AnalyticsRecords of one style.
type StyleAnalytics struct {
	StyleID             string        `json:"styleId"`
	UsageCount          int           `json:"usageCount"`
	AverageQualityScore float64       `json:"averageQualityScore"`
	PopularCombinations []Combination `json:"popularCombinations"`
	Performance         Performance   `json:"performance"`
}

// ScoringCall tracks each call to a quality scorer for cost monitoring.
type ScoringCall struct {
	ID           int64     `db:"id" json:"id"`
	GenerationID string    `db:"generation_id" json:"generationId"`
	Provider     string    `db:"provider" json:"provider"`
	Model        string    `db:"model" json:"model"`
	Score        *float64  `db:"score" json:"score,omitempty"`
	Success      bool      `db:"success" json:"success"`
	DurationMs   *int64    `db:"duration_ms" json:"durationMs,omitempty"`
	CreatedAt    time.Time `db:"created_at" json:"createdAt"`
}
