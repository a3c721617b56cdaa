package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"Atlas/internal/model"
	pkgerrors "Atlas/pkg/errors"
)

// ItemStore 行程条目读写
type ItemStore interface {
	// ListItems 按 (day_index, sort_order) 排序并带上 POI
	ListItems(ctx context.Context, itineraryID uuid.UUID) ([]model.ItineraryItem, error)
	GetItem(ctx context.Context, itineraryID, itemID uuid.UUID) (*model.ItineraryItem, error)
	CreateItems(ctx context.Context, items []model.ItineraryItem) error
	UpdateItem(ctx context.Context, item *model.ItineraryItem) error
	DeleteItem(ctx context.Context, itineraryID, itemID uuid.UUID) error
	// DeleteItems 删除行程的全部条目，返回删除数量
	DeleteItems(ctx context.Context, itineraryID uuid.UUID) (int64, error)
	// SlotTaken (day_index, sort_order) 是否已被其他条目占用
	SlotTaken(ctx context.Context, itineraryID uuid.UUID, dayIndex, sortOrder int, exceptID uuid.UUID) (bool, error)
}

func (s *gormStore) ListItems(ctx context.Context, itineraryID uuid.UUID) ([]model.ItineraryItem, error) {
	items := make([]model.ItineraryItem, 0)
	err := s.reader(ctx).
		Preload("POI").
		Where("itinerary_id = ?", itineraryID).
		Order("day_index").Order("sort_order").Order("poi_id").
		Find(&items).Error
	if err != nil {
		return nil, fmt.Errorf("list items: %w", err)
	}
	return items, nil
}

func (s *gormStore) GetItem(ctx context.Context, itineraryID, itemID uuid.UUID) (*model.ItineraryItem, error) {
	var item model.ItineraryItem
	err := s.reader(ctx).
		Preload("POI").
		Where("id = ? AND itinerary_id = ?", itemID, itineraryID).
		First(&item).Error
	if err != nil {
		return nil, notFound(err, pkgerrors.ItineraryItemNotFound)
	}
	return &item, nil
}

func (s *gormStore) CreateItems(ctx context.Context, items []model.ItineraryItem) error {
	if len(items) == 0 {
		return nil
	}
	// POI 已单独写入，这里不级联
	err := s.writer(ctx).Omit("POI").CreateInBatches(items, 200).Error
	if err != nil {
		if isDuplicateKey(err) {
			return pkgerrors.ItemSlotConflict
		}
		return fmt.Errorf("create items: %w", err)
	}
	return nil
}

func (s *gormStore) UpdateItem(ctx context.Context, item *model.ItineraryItem) error {
	res := s.writer(ctx).Model(item).
		Omit("POI").
		Select("day_index", "sort_order", "poi_id", "start_time", "duration_minutes", "cost", "tips", "updated_at").
		Updates(item)
	if res.Error != nil {
		if isDuplicateKey(res.Error) {
			return pkgerrors.ItemSlotConflict
		}
		return fmt.Errorf("update item: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return pkgerrors.ItineraryItemNotFound
	}
	return nil
}

func (s *gormStore) DeleteItem(ctx context.Context, itineraryID, itemID uuid.UUID) error {
	res := s.writer(ctx).
		Where("id = ? AND itinerary_id = ?", itemID, itineraryID).
		Delete(&model.ItineraryItem{})
	if res.Error != nil {
		return fmt.Errorf("delete item: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return pkgerrors.ItineraryItemNotFound
	}
	return nil
}

func (s *gormStore) DeleteItems(ctx context.Context, itineraryID uuid.UUID) (int64, error) {
	res := s.writer(ctx).Where("itinerary_id = ?", itineraryID).Delete(&model.ItineraryItem{})
	if res.Error != nil {
		return 0, fmt.Errorf("delete items: %w", res.Error)
	}
	return res.RowsAffected, nil
}

func (s *gormStore) SlotTaken(ctx context.Context, itineraryID uuid.UUID, dayIndex, sortOrder int, exceptID uuid.UUID) (bool, error) {
	var count int64
	err := s.writer(ctx).Model(&model.ItineraryItem{}).
		Where("itinerary_id = ? AND day_index = ? AND sort_order = ? AND id <> ?", itineraryID, dayIndex, sortOrder, exceptID).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("check item slot: %w", err)
	}
	return count > 0, nil
}
