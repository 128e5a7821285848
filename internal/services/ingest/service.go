package ingest

import (
	"context"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/recensio/internal/common"
	"github.com/ternarybob/recensio/internal/interfaces"
	"github.com/ternarybob/recensio/internal/models"
)

// Service moves batch records into the deduplicated review store. Ingestion
// is idempotent: re-reading a rewritten batch file only upserts the same
// keys again, so the created count reflects genuinely new reviews.
type Service struct {
	reviews interfaces.ReviewStorage
	logger  arbor.ILogger
}

// NewService creates a new ingest service
func NewService(reviews interfaces.ReviewStorage, logger arbor.ILogger) *Service {
	return &Service{
		reviews: reviews,
		logger:  logger,
	}
}

// Ingest upserts a slice of batch records for one target and returns how
// many were newly created. Records without an ID get a stable fallback key
// derived from author and text; records with neither are dropped. A failed
// upsert is logged and skipped so one bad record cannot stall a run.
func (s *Service) Ingest(ctx context.Context, targetID string, batch []models.BatchReview) (int, error) {
	created := 0
	var lastErr error

	for i := range batch {
		record := &batch[i]

		reviewID := record.ID
		if reviewID == "" {
			reviewID = record.ReviewID
		}
		if reviewID == "" {
			if record.Author == "" && record.Text == "" {
				s.logger.Debug().Str("target_id", targetID).Msg("Dropping empty batch record")
				continue
			}
			reviewID = common.FallbackReviewID(record.Author, record.Text)
		}

		review := &models.Review{
			TargetID:    targetID,
			ReviewID:    reviewID,
			Author:      record.Author,
			Text:        record.Text,
			Rating:      record.Rating,
			PublishedAt: record.PublishedAt,
		}

		isNew, err := s.reviews.UpsertReview(ctx, review)
		if err != nil {
			s.logger.Warn().Err(err).
				Str("target_id", targetID).
				Str("review_id", reviewID).
				Msg("Failed to upsert review")
			lastErr = err
			continue
		}
		if isNew {
			created++
		}
	}

	return created, lastErr
}
