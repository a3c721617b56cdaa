package repository

import (
	"context"
	"fmt"

	"Atlas/internal/model"
)

// ForkStore fork 关系
type ForkStore interface {
	CreateFork(ctx context.Context, f *model.ItineraryFork) error
	// ReconcileForkedCounts 按 itinerary_forks 重算 forked_count，返回被修正的行程数
	ReconcileForkedCounts(ctx context.Context) (int64, error)
}

func (s *gormStore) CreateFork(ctx context.Context, f *model.ItineraryFork) error {
	if err := s.writer(ctx).Create(f).Error; err != nil {
		return fmt.Errorf("create fork: %w", err)
	}
	return nil
}

const reconcileForkedCountsSQL = `
UPDATE itineraries AS i
SET forked_count = COALESCE(f.cnt, 0)
FROM itineraries AS t
LEFT JOIN (
	SELECT source_itinerary_id, COUNT(*) AS cnt
	FROM itinerary_forks
	GROUP BY source_itinerary_id
) AS f ON f.source_itinerary_id = t.id
WHERE i.id = t.id
  AND i.deleted_at IS NULL
  AND i.forked_count <> COALESCE(f.cnt, 0)`

func (s *gormStore) ReconcileForkedCounts(ctx context.Context) (int64, error) {
	res := s.writer(ctx).Exec(reconcileForkedCountsSQL)
	if res.Error != nil {
		return 0, fmt.Errorf("reconcile forked counts: %w", res.Error)
	}
	return res.RowsAffected, nil
}
