package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"Atlas/internal/model"
	pkgerrors "Atlas/pkg/errors"
)

// SnapshotStore 快照只插入不更新
type SnapshotStore interface {
	// NextSnapshotVersion 当前最大 version_no + 1，需要在锁住行程的事务里调用
	NextSnapshotVersion(ctx context.Context, itineraryID uuid.UUID) (int, error)
	CreateSnapshot(ctx context.Context, snap *model.Snapshot) error
	GetSnapshot(ctx context.Context, id uuid.UUID) (*model.Snapshot, error)
	// LatestSnapshot 行程还没有快照时返回 nil, nil
	LatestSnapshot(ctx context.Context, itineraryID uuid.UUID) (*model.Snapshot, error)
}

func (s *gormStore) NextSnapshotVersion(ctx context.Context, itineraryID uuid.UUID) (int, error) {
	var latest int
	err := s.writer(ctx).Model(&model.Snapshot{}).
		Where("itinerary_id = ?", itineraryID).
		Select("COALESCE(MAX(version_no), 0)").
		Scan(&latest).Error
	if err != nil {
		return 0, fmt.Errorf("query snapshot version: %w", err)
	}
	return latest + 1, nil
}

func (s *gormStore) CreateSnapshot(ctx context.Context, snap *model.Snapshot) error {
	if err := s.writer(ctx).Create(snap).Error; err != nil {
		return fmt.Errorf("create snapshot: %w", err)
	}
	return nil
}

func (s *gormStore) GetSnapshot(ctx context.Context, id uuid.UUID) (*model.Snapshot, error) {
	var snap model.Snapshot
	if err := s.reader(ctx).Where("id = ?", id).First(&snap).Error; err != nil {
		return nil, notFound(err, pkgerrors.SnapshotNotFound)
	}
	return &snap, nil
}

func (s *gormStore) LatestSnapshot(ctx context.Context, itineraryID uuid.UUID) (*model.Snapshot, error) {
	var list []model.Snapshot
	err := s.reader(ctx).
		Where("itinerary_id = ?", itineraryID).
		Order("version_no DESC").
		Limit(1).
		Find(&list).Error
	if err != nil {
		return nil, fmt.Errorf("query latest snapshot: %w", err)
	}
	if len(list) == 0 {
		return nil, nil
	}
	return &list[0], nil
}
