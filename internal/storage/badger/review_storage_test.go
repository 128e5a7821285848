package badger

import (
	"context"
	"fmt"
	"testing"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/recensio/internal/models"
)

func TestUpsertReviewIdempotent(t *testing.T) {
	db := newTestDB(t)
	storage := NewReviewStorage(db, arbor.NewLogger())
	ctx := context.Background()

	review := &models.Review{
		TargetID:    "42",
		ReviewID:    "rev-1",
		Author:      "Ivan",
		Text:        "Great coffee",
		Rating:      5,
		PublishedAt: "12 марта 2025",
	}

	created, err := storage.UpsertReview(ctx, review)
	if err != nil {
		t.Fatal(err)
	}
	if !created {
		t.Error("first upsert should create the review")
	}

	again := &models.Review{
		TargetID:    "42",
		ReviewID:    "rev-1",
		Author:      "Ivan",
		Text:        "Great coffee, edited",
		Rating:      4,
		PublishedAt: "12 марта 2025",
	}
	created, err = storage.UpsertReview(ctx, again)
	if err != nil {
		t.Fatal(err)
	}
	if created {
		t.Error("second upsert of the same key must not report created")
	}

	count, err := storage.CountReviews(ctx, "42")
	if err != nil {
		t.Fatal(err)
	}
	if count != 1 {
		t.Errorf("expected 1 stored review, got %d", count)
	}

	stored, err := storage.GetReview(ctx, "42", "rev-1")
	if err != nil {
		t.Fatal(err)
	}
	if stored.Text != "Great coffee, edited" || stored.Rating != 4 {
		t.Error("upsert did not overwrite payload fields")
	}
	if stored.IngestedAt.IsZero() {
		t.Error("ingestion timestamp not set")
	}
	if stored.UpdatedAt.Before(stored.IngestedAt) {
		t.Error("UpdatedAt should not precede IngestedAt")
	}
}

func TestListReviewsPagination(t *testing.T) {
	db := newTestDB(t)
	storage := NewReviewStorage(db, arbor.NewLogger())
	ctx := context.Background()

	for i := 1; i <= 7; i++ {
		_, err := storage.UpsertReview(ctx, &models.Review{
			TargetID: "42",
			ReviewID: fmt.Sprintf("rev-%d", i),
			Author:   "Author",
			Text:     fmt.Sprintf("review %d", i),
			Rating:   3,
		})
		if err != nil {
			t.Fatal(err)
		}
	}

	page1, err := storage.ListReviews(ctx, "42", 1, 5)
	if err != nil {
		t.Fatal(err)
	}
	if len(page1) != 5 {
		t.Errorf("expected 5 reviews on page 1, got %d", len(page1))
	}

	page2, err := storage.ListReviews(ctx, "42", 2, 5)
	if err != nil {
		t.Fatal(err)
	}
	if len(page2) != 2 {
		t.Errorf("expected 2 reviews on page 2, got %d", len(page2))
	}

	seen := make(map[string]bool)
	for _, r := range append(page1, page2...) {
		if seen[r.ReviewID] {
			t.Errorf("review %s appeared on multiple pages", r.ReviewID)
		}
		seen[r.ReviewID] = true
	}
}

func TestGetStatsBuckets(t *testing.T) {
	db := newTestDB(t)
	storage := NewReviewStorage(db, arbor.NewLogger())
	ctx := context.Background()

	ratings := []int{5, 5, 4, 3, 2, 1}
	for i, rating := range ratings {
		_, err := storage.UpsertReview(ctx, &models.Review{
			TargetID: "42",
			ReviewID: fmt.Sprintf("rev-%d", i),
			Rating:   rating,
		})
		if err != nil {
			t.Fatal(err)
		}
	}

	stats, err := storage.GetStats(ctx, "42")
	if err != nil {
		t.Fatal(err)
	}
	if stats.Total != 6 {
		t.Errorf("total = %d, want 6", stats.Total)
	}
	if stats.Positive != 3 {
		t.Errorf("positive = %d, want 3", stats.Positive)
	}
	if stats.Negative != 2 {
		t.Errorf("negative = %d, want 2", stats.Negative)
	}
	if stats.Neutral != 1 {
		t.Errorf("neutral = %d, want 1", stats.Neutral)
	}
	if stats.AverageRating != 3.3 {
		t.Errorf("average = %v, want 3.3", stats.AverageRating)
	}
}

func TestGetStatsEmpty(t *testing.T) {
	db := newTestDB(t)
	storage := NewReviewStorage(db, arbor.NewLogger())

	stats, err := storage.GetStats(context.Background(), "42")
	if err != nil {
		t.Fatal(err)
	}
	if stats.Total != 0 || stats.AverageRating != 0 {
		t.Errorf("expected zero stats, got %+v", stats)
	}
}

func TestDeleteReviewsIsScopedToTarget(t *testing.T) {
	db := newTestDB(t)
	storage := NewReviewStorage(db, arbor.NewLogger())
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if _, err := storage.UpsertReview(ctx, &models.Review{TargetID: "42", ReviewID: fmt.Sprintf("a-%d", i), Rating: 5}); err != nil {
			t.Fatal(err)
		}
	}
	if _, err := storage.UpsertReview(ctx, &models.Review{TargetID: "99", ReviewID: "b-1", Rating: 4}); err != nil {
		t.Fatal(err)
	}

	deleted, err := storage.DeleteReviews(ctx, "42")
	if err != nil {
		t.Fatal(err)
	}
	if deleted != 3 {
		t.Errorf("deleted = %d, want 3", deleted)
	}

	count, err := storage.CountReviews(ctx, "42")
	if err != nil {
		t.Fatal(err)
	}
	if count != 0 {
		t.Errorf("target 42 still has %d reviews", count)
	}

	count, err = storage.CountReviews(ctx, "99")
	if err != nil {
		t.Fatal(err)
	}
	if count != 1 {
		t.Error("delete crossed target boundaries")
	}
}
