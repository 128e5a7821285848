package badger

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/recensio/internal/interfaces"
	"github.com/ternarybob/recensio/internal/models"
	"github.com/timshannon/badgerhold/v4"
)

// ReviewStorage implements the ReviewStorage interface for Badger.
// Reviews are keyed on targetID:reviewID, which makes the upsert naturally
// idempotent regardless of how many times the scanner re-emits a record.
type ReviewStorage struct {
	db     *BadgerDB
	logger arbor.ILogger
}

// NewReviewStorage creates a new ReviewStorage instance
func NewReviewStorage(db *BadgerDB, logger arbor.ILogger) interfaces.ReviewStorage {
	return &ReviewStorage{
		db:     db,
		logger: logger,
	}
}

func (s *ReviewStorage) UpsertReview(ctx context.Context, review *models.Review) (bool, error) {
	if review.TargetID == "" || review.ReviewID == "" {
		return false, fmt.Errorf("review target ID and review ID are required")
	}

	key := review.Key()
	now := time.Now()

	var existing models.Review
	err := s.db.Store().Get(key, &existing)
	switch err {
	case nil:
		// Overwrite payload fields, keep the original ingestion timestamp
		review.IngestedAt = existing.IngestedAt
		review.UpdatedAt = now
		if err := s.db.Store().Upsert(key, review); err != nil {
			return false, fmt.Errorf("failed to update review: %w", err)
		}
		return false, nil
	case badgerhold.ErrNotFound:
		review.IngestedAt = now
		review.UpdatedAt = now
		if err := s.db.Store().Upsert(key, review); err != nil {
			return false, fmt.Errorf("failed to insert review: %w", err)
		}
		return true, nil
	default:
		return false, fmt.Errorf("failed to read review: %w", err)
	}
}

func (s *ReviewStorage) GetReview(ctx context.Context, targetID, reviewID string) (*models.Review, error) {
	var review models.Review
	if err := s.db.Store().Get(targetID+":"+reviewID, &review); err != nil {
		if err == badgerhold.ErrNotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get review: %w", err)
	}
	return &review, nil
}

func (s *ReviewStorage) ListReviews(ctx context.Context, targetID string, page, perPage int) ([]*models.Review, error) {
	if page < 1 {
		page = 1
	}
	if perPage < 1 {
		perPage = 50
	}

	query := badgerhold.Where("TargetID").Eq(targetID).
		SortBy("IngestedAt").Reverse().
		Skip((page - 1) * perPage).
		Limit(perPage)

	var reviews []models.Review
	if err := s.db.Store().Find(&reviews, query); err != nil {
		return nil, fmt.Errorf("failed to list reviews: %w", err)
	}

	result := make([]*models.Review, len(reviews))
	for i := range reviews {
		result[i] = &reviews[i]
	}
	return result, nil
}

func (s *ReviewStorage) CountReviews(ctx context.Context, targetID string) (int, error) {
	count, err := s.db.Store().Count(&models.Review{}, badgerhold.Where("TargetID").Eq(targetID))
	if err != nil {
		return 0, fmt.Errorf("failed to count reviews: %w", err)
	}
	return int(count), nil
}

func (s *ReviewStorage) GetStats(ctx context.Context, targetID string) (*models.ReviewStats, error) {
	var reviews []models.Review
	if err := s.db.Store().Find(&reviews, badgerhold.Where("TargetID").Eq(targetID)); err != nil {
		return nil, fmt.Errorf("failed to load reviews for stats: %w", err)
	}

	stats := &models.ReviewStats{Total: len(reviews)}
	if stats.Total == 0 {
		return stats, nil
	}

	sum := 0
	for i := range reviews {
		rating := reviews[i].Rating
		sum += rating
		switch {
		case rating >= 4:
			stats.Positive++
		case rating <= 2:
			stats.Negative++
		default:
			stats.Neutral++
		}
	}
	stats.AverageRating = math.Round(float64(sum)/float64(stats.Total)*10) / 10

	return stats, nil
}

func (s *ReviewStorage) DeleteReviews(ctx context.Context, targetID string) (int, error) {
	count, err := s.CountReviews(ctx, targetID)
	if err != nil {
		return 0, err
	}
	if count == 0 {
		return 0, nil
	}

	if err := s.db.Store().DeleteMatching(&models.Review{}, badgerhold.Where("TargetID").Eq(targetID)); err != nil {
		return 0, fmt.Errorf("failed to delete reviews: %w", err)
	}

	s.logger.Info().Str("target_id", targetID).Int("count", count).Msg("Deleted stored reviews for target")
	return count, nil
}
