package models

import (
	"time"
)

// Review is one ingested customer review, unique per (TargetID, ReviewID).
// ReviewID is the worker-supplied identifier when present, otherwise a
// stable hash derived from author+text (see common.FallbackReviewID).
type Review struct {
	TargetID string `json:"target_id" badgerhold:"index"`
	ReviewID string `json:"review_id"`

	Author string `json:"author"`
	Text   string `json:"text"`
	Rating int    `json:"rating"`
	// PublishedAt is the display-formatted date exactly as the worker
	// reported it. It is not renormalized.
	PublishedAt string `json:"published_at"`

	IngestedAt time.Time `json:"ingested_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// Key returns the composite storage key for this review
func (r *Review) Key() string {
	return r.TargetID + ":" + r.ReviewID
}

// ReviewStats aggregates ingested reviews by rating bucket.
// Computed over stored reviews, not over a task's expected total.
type ReviewStats struct {
	Total         int     `json:"total"`
	AverageRating float64 `json:"average_rating"`
	Positive      int     `json:"positive"` // rating >= 4
	Negative      int     `json:"negative"` // rating <= 2
	Neutral       int     `json:"neutral"`
}
