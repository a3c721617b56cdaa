package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"Atlas/internal/model"
	pkgerrors "Atlas/pkg/errors"
)

// POIStore 本地 POI 库
type POIStore interface {
	GetPOI(ctx context.Context, id uuid.UUID) (*model.POI, error)
	// GetPOIs 批量查询，不存在的 id 不出现在结果里
	GetPOIs(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]*model.POI, error)
	CreatePOI(ctx context.Context, p *model.POI) error
	UpdatePOIParent(ctx context.Context, id uuid.UUID, parentID *uuid.UUID) error
	// UpdatePOI 覆盖除父级以外的可编辑字段
	UpdatePOI(ctx context.Context, p *model.POI) error
	// DeletePOI 软删除
	DeletePOI(ctx context.Context, id uuid.UUID) error
	// POIReferenced 是否还有条目引用该 POI
	POIReferenced(ctx context.Context, id uuid.UUID) (bool, error)
	ListPOIs(ctx context.Context, offset, limit int) ([]model.POI, int64, error)
	// FindPOIsByName 名称忽略大小写完全相等
	FindPOIsByName(ctx context.Context, name string) ([]model.POI, error)
	// SearchPOIs 名称包含 query，或 query 包含名称
	SearchPOIs(ctx context.Context, query string, limit int) ([]model.POI, error)
	// FindPOIByNameAndCoordinates 用于外部结果入库前去重，不存在时返回 nil, nil
	FindPOIByNameAndCoordinates(ctx context.Context, name string, coords model.Coordinates) (*model.POI, error)
	// FindCoordinatelessPOI 未解析地名入库前去重，不存在时返回 nil, nil
	FindCoordinatelessPOI(ctx context.Context, name string) (*model.POI, error)
}

// 坐标比较的容差，约 1 米
const coordinateEpsilon = 1e-5

func (s *gormStore) GetPOI(ctx context.Context, id uuid.UUID) (*model.POI, error) {
	var p model.POI
	if err := s.reader(ctx).Where("id = ?", id).First(&p).Error; err != nil {
		return nil, notFound(err, pkgerrors.POINotFound)
	}
	return &p, nil
}

func (s *gormStore) GetPOIs(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]*model.POI, error) {
	result := make(map[uuid.UUID]*model.POI, len(ids))
	if len(ids) == 0 {
		return result, nil
	}

	var list []model.POI
	if err := s.reader(ctx).Where("id IN ?", ids).Find(&list).Error; err != nil {
		return nil, fmt.Errorf("get pois: %w", err)
	}
	for i := range list {
		result[list[i].ID] = &list[i]
	}
	return result, nil
}

func (s *gormStore) CreatePOI(ctx context.Context, p *model.POI) error {
	if err := s.writer(ctx).Create(p).Error; err != nil {
		return fmt.Errorf("create poi: %w", err)
	}
	return nil
}

func (s *gormStore) UpdatePOIParent(ctx context.Context, id uuid.UUID, parentID *uuid.UUID) error {
	res := s.writer(ctx).Model(&model.POI{}).Where("id = ?", id).Update("parent_poi_id", parentID)
	if res.Error != nil {
		return fmt.Errorf("update poi parent: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return pkgerrors.POINotFound
	}
	return nil
}

func (s *gormStore) UpdatePOI(ctx context.Context, p *model.POI) error {
	res := s.writer(ctx).Model(&model.POI{}).
		Where("id = ?", p.ID).
		Select("name", "type", "longitude", "latitude", "address", "opening_hours", "ticket_price", "updated_at").
		Updates(p)
	if res.Error != nil {
		return fmt.Errorf("update poi: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return pkgerrors.POINotFound
	}
	return nil
}

func (s *gormStore) DeletePOI(ctx context.Context, id uuid.UUID) error {
	res := s.writer(ctx).Where("id = ?", id).Delete(&model.POI{})
	if res.Error != nil {
		return fmt.Errorf("delete poi: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return pkgerrors.POINotFound
	}
	return nil
}

func (s *gormStore) POIReferenced(ctx context.Context, id uuid.UUID) (bool, error) {
	var n int64
	err := s.writer(ctx).Model(&model.ItineraryItem{}).Where("poi_id = ?", id).Limit(1).Count(&n).Error
	if err != nil {
		return false, fmt.Errorf("count poi references: %w", err)
	}
	return n > 0, nil
}

func (s *gormStore) ListPOIs(ctx context.Context, offset, limit int) ([]model.POI, int64, error) {
	q := s.reader(ctx).Model(&model.POI{})

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("count pois: %w", err)
	}

	list := make([]model.POI, 0, limit)
	if err := q.Order("name").Order("id").Offset(offset).Limit(limit).Find(&list).Error; err != nil {
		return nil, 0, fmt.Errorf("list pois: %w", err)
	}
	return list, total, nil
}

func (s *gormStore) FindPOIsByName(ctx context.Context, name string) ([]model.POI, error) {
	list := make([]model.POI, 0)
	err := s.reader(ctx).
		Where("lower(name) = ?", strings.ToLower(strings.TrimSpace(name))).
		Order("updated_at DESC").Order("id").
		Find(&list).Error
	if err != nil {
		return nil, fmt.Errorf("find pois by name: %w", err)
	}
	return list, nil
}

func (s *gormStore) SearchPOIs(ctx context.Context, query string, limit int) ([]model.POI, error) {
	q := strings.ToLower(strings.TrimSpace(query))
	list := make([]model.POI, 0)
	if q == "" {
		return list, nil
	}

	err := s.reader(ctx).
		Where("lower(name) LIKE ? OR strpos(?, lower(name)) > 0", "%"+escapeLike(q)+"%", q).
		Order("length(name)").Order("id").
		Limit(limit).
		Find(&list).Error
	if err != nil {
		return nil, fmt.Errorf("search pois: %w", err)
	}
	return list, nil
}

func (s *gormStore) FindPOIByNameAndCoordinates(ctx context.Context, name string, coords model.Coordinates) (*model.POI, error) {
	var list []model.POI
	err := s.writer(ctx).
		Where("lower(name) = ?", strings.ToLower(strings.TrimSpace(name))).
		Where("abs(longitude - ?) < ? AND abs(latitude - ?) < ?",
			coords.Longitude, coordinateEpsilon, coords.Latitude, coordinateEpsilon).
		Order("created_at").Order("id").
		Limit(1).
		Find(&list).Error
	if err != nil {
		return nil, fmt.Errorf("find poi by coordinates: %w", err)
	}
	if len(list) == 0 {
		return nil, nil
	}
	return &list[0], nil
}

func (s *gormStore) FindCoordinatelessPOI(ctx context.Context, name string) (*model.POI, error) {
	var list []model.POI
	err := s.writer(ctx).
		Where("lower(name) = ?", strings.ToLower(strings.TrimSpace(name))).
		Where("longitude IS NULL AND latitude IS NULL").
		Order("created_at").Order("id").
		Limit(1).
		Find(&list).Error
	if err != nil {
		return nil, fmt.Errorf("find coordinateless poi: %w", err)
	}
	if len(list) == 0 {
		return nil, nil
	}
	return &list[0], nil
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}
