package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"Atlas/internal/model"
)

// DiffActionStore diff 处理记录
type DiffActionStore interface {
	CreateDiffActions(ctx context.Context, actions []model.DiffAction) error
	// ListDiffActions 按创建时间升序，后写的覆盖先写的
	ListDiffActions(ctx context.Context, itineraryID, snapshotID, actorID uuid.UUID) ([]model.DiffAction, error)
}

func (s *gormStore) CreateDiffActions(ctx context.Context, actions []model.DiffAction) error {
	if len(actions) == 0 {
		return nil
	}
	if err := s.writer(ctx).Create(&actions).Error; err != nil {
		return fmt.Errorf("create diff actions: %w", err)
	}
	return nil
}

func (s *gormStore) ListDiffActions(ctx context.Context, itineraryID, snapshotID, actorID uuid.UUID) ([]model.DiffAction, error) {
	list := make([]model.DiffAction, 0)
	err := s.reader(ctx).
		Where("itinerary_id = ? AND source_snapshot_id = ? AND actor_user_id = ?", itineraryID, snapshotID, actorID).
		Order("created_at").Order("id").
		Find(&list).Error
	if err != nil {
		return nil, fmt.Errorf("list diff actions: %w", err)
	}
	return list, nil
}
