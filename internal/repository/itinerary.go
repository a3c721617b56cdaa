package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"Atlas/internal/model"
	pkgerrors "Atlas/pkg/errors"
)

// ItineraryStore 行程读写
type ItineraryStore interface {
	GetItinerary(ctx context.Context, id uuid.UUID) (*model.Itinerary, error)
	// LockItinerary SELECT ... FOR UPDATE，只能在事务内调用
	LockItinerary(ctx context.Context, id uuid.UUID) (*model.Itinerary, error)
	CreateItinerary(ctx context.Context, it *model.Itinerary) error
	UpdateItinerary(ctx context.Context, it *model.Itinerary) error
	DeleteItinerary(ctx context.Context, id uuid.UUID) error
	ListItinerariesByOwner(ctx context.Context, ownerID uuid.UUID, offset, limit int) ([]model.Itinerary, int64, error)
	// ListPublicItineraries 广场：public 且 published，按创建时间倒序
	ListPublicItineraries(ctx context.Context, offset, limit int) ([]model.Itinerary, int64, error)
	IncrementForkedCount(ctx context.Context, id uuid.UUID, delta int64) error
}

func (s *gormStore) GetItinerary(ctx context.Context, id uuid.UUID) (*model.Itinerary, error) {
	var it model.Itinerary
	if err := s.reader(ctx).Where("id = ?", id).First(&it).Error; err != nil {
		return nil, notFound(err, pkgerrors.ItineraryNotFound)
	}
	return &it, nil
}

func (s *gormStore) LockItinerary(ctx context.Context, id uuid.UUID) (*model.Itinerary, error) {
	var it model.Itinerary
	err := s.writer(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", id).
		First(&it).Error
	if err != nil {
		return nil, notFound(err, pkgerrors.ItineraryNotFound)
	}
	return &it, nil
}

func (s *gormStore) CreateItinerary(ctx context.Context, it *model.Itinerary) error {
	if err := it.ValidateLineage(); err != nil {
		return err
	}
	if err := s.writer(ctx).Create(it).Error; err != nil {
		return fmt.Errorf("create itinerary: %w", err)
	}
	return nil
}

// UpdateItinerary 只更新元信息，forked_count 由计数器单独维护
func (s *gormStore) UpdateItinerary(ctx context.Context, it *model.Itinerary) error {
	if err := it.ValidateLineage(); err != nil {
		return err
	}
	res := s.writer(ctx).Model(it).
		Select("title", "destination", "days", "status", "visibility", "cover_image_url",
			"source_itinerary_id", "source_snapshot_id", "updated_at").
		Updates(it)
	if res.Error != nil {
		return fmt.Errorf("update itinerary: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return pkgerrors.ItineraryNotFound
	}
	return nil
}

// DeleteItinerary 行程软删除，条目物理删除
func (s *gormStore) DeleteItinerary(ctx context.Context, id uuid.UUID) error {
	return s.writer(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("itinerary_id = ?", id).Delete(&model.ItineraryItem{}).Error; err != nil {
			return fmt.Errorf("delete itinerary items: %w", err)
		}
		res := tx.Where("id = ?", id).Delete(&model.Itinerary{})
		if res.Error != nil {
			return fmt.Errorf("delete itinerary: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return pkgerrors.ItineraryNotFound
		}
		return nil
	})
}

func (s *gormStore) ListItinerariesByOwner(ctx context.Context, ownerID uuid.UUID, offset, limit int) ([]model.Itinerary, int64, error) {
	q := s.reader(ctx).Model(&model.Itinerary{}).Where("owner_id = ?", ownerID)

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("count itineraries: %w", err)
	}

	list := make([]model.Itinerary, 0, limit)
	err := q.Order("updated_at DESC").Order("id").Offset(offset).Limit(limit).Find(&list).Error
	if err != nil {
		return nil, 0, fmt.Errorf("list itineraries: %w", err)
	}
	return list, total, nil
}

func (s *gormStore) ListPublicItineraries(ctx context.Context, offset, limit int) ([]model.Itinerary, int64, error) {
	q := s.reader(ctx).Model(&model.Itinerary{}).
		Where("visibility = ? AND status = ?", model.VisibilityPublic, model.ItineraryStatusPublished)

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("count public itineraries: %w", err)
	}

	list := make([]model.Itinerary, 0, limit)
	err := q.Order("created_at DESC").Order("id").Offset(offset).Limit(limit).Find(&list).Error
	if err != nil {
		return nil, 0, fmt.Errorf("list public itineraries: %w", err)
	}
	return list, total, nil
}

func (s *gormStore) IncrementForkedCount(ctx context.Context, id uuid.UUID, delta int64) error {
	res := s.writer(ctx).Model(&model.Itinerary{}).
		Where("id = ?", id).
		UpdateColumn("forked_count", gorm.Expr("forked_count + ?", delta))
	if res.Error != nil {
		return fmt.Errorf("increment forked count: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return pkgerrors.ItineraryNotFound
	}
	return nil
}
