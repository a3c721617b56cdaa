package service

import (
	"context"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"Atlas/internal/model"
	"Atlas/internal/model/dto"
	"Atlas/internal/repository"
	pkgerrors "Atlas/pkg/errors"
	"Atlas/pkg/logger"
	"Atlas/utils"
)

// ItineraryService 行程与条目的增删改查，只有所有者可以写
type ItineraryService struct {
	store repository.Store
}

var (
	itineraryService *ItineraryService
	itineraryOnce    sync.Once
)

func Itinerary() *ItineraryService {
	itineraryOnce.Do(func() {
		itineraryService = NewItineraryService(repository.Default())
	})
	return itineraryService
}

func NewItineraryService(store repository.Store) *ItineraryService {
	return &ItineraryService{store: store}
}

func (s *ItineraryService) Create(ctx context.Context, ownerID uuid.UUID, req dto.CreateItineraryRequest) (*dto.ItineraryResponse, error) {
	it := &model.Itinerary{
		Title:         strings.TrimSpace(req.Title),
		Destination:   strings.TrimSpace(req.Destination),
		Days:          req.Days,
		OwnerID:       ownerID,
		Status:        model.ItineraryStatusDraft,
		Visibility:    model.VisibilityPrivate,
		CoverImageURL: req.CoverImageURL,
	}
	if it.Days == 0 {
		it.Days = 1
	}
	if req.Status != nil {
		it.Status = *req.Status
	}
	if req.Visibility != nil {
		it.Visibility = *req.Visibility
	}
	if err := validateItinerary(it); err != nil {
		return nil, err
	}

	if err := s.store.CreateItinerary(ctx, it); err != nil {
		return nil, err
	}

	logger.Logger.Info("Itinerary created",
		zap.String("itinerary_id", it.ID.String()),
		zap.String("owner_id", ownerID.String()),
	)
	return s.toResponse(ctx, s.store, it), nil
}

func (s *ItineraryService) ListMine(ctx context.Context, ownerID uuid.UUID, page dto.PageQuery) (*dto.ItineraryListResponse, error) {
	page.Normalize()
	list, total, err := s.store.ListItinerariesByOwner(ctx, ownerID, page.Offset, page.Limit)
	if err != nil {
		return nil, err
	}

	items := make([]dto.ItineraryResponse, 0, len(list))
	for i := range list {
		items = append(items, *s.toResponse(ctx, s.store, &list[i]))
	}
	return &dto.ItineraryListResponse{Items: items, Total: total, Offset: page.Offset, Limit: page.Limit}, nil
}

// Get 非本人只能读 public 行程
func (s *ItineraryService) Get(ctx context.Context, id, requesterID uuid.UUID) (*dto.ItineraryResponse, error) {
	it, err := s.store.GetItinerary(ctx, id)
	if err != nil {
		return nil, err
	}
	if !it.VisibleTo(requesterID) {
		return nil, pkgerrors.ItineraryNotVisible
	}
	return s.toResponse(ctx, s.store, it), nil
}

func (s *ItineraryService) Update(ctx context.Context, id, requesterID uuid.UUID, req dto.UpdateItineraryRequest) (*dto.ItineraryResponse, error) {
	var updated *model.Itinerary
	err := s.store.Transaction(ctx, func(tx repository.Store) error {
		it, err := lockOwned(ctx, tx, id, requesterID)
		if err != nil {
			return err
		}

		if req.Title != nil {
			it.Title = strings.TrimSpace(*req.Title)
		}
		if req.Destination != nil {
			it.Destination = strings.TrimSpace(*req.Destination)
		}
		if req.Days != nil {
			it.Days = *req.Days
		}
		if req.Status != nil {
			it.Status = *req.Status
		}
		if req.Visibility != nil {
			it.Visibility = *req.Visibility
		}
		if req.CoverImageURL != nil {
			if strings.TrimSpace(*req.CoverImageURL) == "" {
				it.CoverImageURL = nil
			} else {
				it.CoverImageURL = req.CoverImageURL
			}
		}
		if err := validateItinerary(it); err != nil {
			return err
		}

		// 缩短天数时不能把已有条目挤出范围
		if req.Days != nil {
			items, err := tx.ListItems(ctx, id)
			if err != nil {
				return err
			}
			for _, item := range items {
				if item.DayIndex >= it.Days {
					return pkgerrors.DayIndexOutOfRange.WithMessage("day %d still has items", item.DayIndex)
				}
			}
		}

		if err := tx.UpdateItinerary(ctx, it); err != nil {
			return err
		}
		updated = it
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.toResponse(ctx, s.store, updated), nil
}

func (s *ItineraryService) Delete(ctx context.Context, id, requesterID uuid.UUID) error {
	return s.store.Transaction(ctx, func(tx repository.Store) error {
		if _, err := lockOwned(ctx, tx, id, requesterID); err != nil {
			return err
		}
		if err := tx.DeleteItinerary(ctx, id); err != nil {
			return err
		}
		logger.Logger.Info("Itinerary deleted", zap.String("itinerary_id", id.String()))
		return nil
	})
}

// ListItems 可见即可读
func (s *ItineraryService) ListItems(ctx context.Context, id, requesterID uuid.UUID) (*dto.ItemListResponse, error) {
	it, err := s.store.GetItinerary(ctx, id)
	if err != nil {
		return nil, err
	}
	if !it.VisibleTo(requesterID) {
		return nil, pkgerrors.ItineraryNotVisible
	}
	return listItemResponses(ctx, s.store, id)
}

// CreateItem 与导入共用行程行锁
func (s *ItineraryService) CreateItem(ctx context.Context, id, requesterID uuid.UUID, req dto.CreateItemRequest) (*dto.ItemWithPOIResponse, error) {
	var created *model.ItineraryItem
	err := s.store.Transaction(ctx, func(tx repository.Store) error {
		it, err := lockOwned(ctx, tx, id, requesterID)
		if err != nil {
			return err
		}

		item := &model.ItineraryItem{
			ItineraryID: id,
			DayIndex:    req.DayIndex,
			SortOrder:   req.SortOrder,
			POIID:       req.POIID,
			StartTime:   req.StartTime,
			Tips:        req.Tips,
		}
		if req.DurationMinutes != nil {
			item.DurationMinutes = *req.DurationMinutes
		}
		if req.Cost != nil {
			item.Cost = *req.Cost
		}
		item.EnsureID()

		if err := s.checkItem(ctx, tx, it, item); err != nil {
			return err
		}
		if err := tx.CreateItems(ctx, []model.ItineraryItem{*item}); err != nil {
			return err
		}
		created = item
		return nil
	})
	if err != nil {
		return nil, err
	}

	item, err := s.store.GetItem(ctx, id, created.ID)
	if err != nil {
		return nil, err
	}
	resp := toItemResponse(item)
	return &resp, nil
}

func (s *ItineraryService) UpdateItem(ctx context.Context, id, itemID, requesterID uuid.UUID, req dto.UpdateItemRequest) (*dto.ItemWithPOIResponse, error) {
	err := s.store.Transaction(ctx, func(tx repository.Store) error {
		it, err := lockOwned(ctx, tx, id, requesterID)
		if err != nil {
			return err
		}
		item, err := tx.GetItem(ctx, id, itemID)
		if err != nil {
			return err
		}

		if req.DayIndex != nil {
			item.DayIndex = *req.DayIndex
		}
		if req.SortOrder != nil {
			item.SortOrder = *req.SortOrder
		}
		if req.POIID != nil {
			item.POIID = *req.POIID
		}
		if req.StartTime != nil {
			if strings.TrimSpace(*req.StartTime) == "" {
				item.StartTime = nil
			} else {
				item.StartTime = req.StartTime
			}
		}
		if req.DurationMinutes != nil {
			item.DurationMinutes = *req.DurationMinutes
		}
		if req.Cost != nil {
			item.Cost = *req.Cost
		}
		if req.Tips != nil {
			item.Tips = req.Tips
		}
		item.POI = nil

		if err := s.checkItem(ctx, tx, it, item); err != nil {
			return err
		}
		return tx.UpdateItem(ctx, item)
	})
	if err != nil {
		return nil, err
	}

	item, err := s.store.GetItem(ctx, id, itemID)
	if err != nil {
		return nil, err
	}
	resp := toItemResponse(item)
	return &resp, nil
}

func (s *ItineraryService) DeleteItem(ctx context.Context, id, itemID, requesterID uuid.UUID) error {
	return s.store.Transaction(ctx, func(tx repository.Store) error {
		if _, err := lockOwned(ctx, tx, id, requesterID); err != nil {
			return err
		}
		return tx.DeleteItem(ctx, id, itemID)
	})
}

// checkItem 规范化 start_time 并检查范围、POI 与位置占用
func (s *ItineraryService) checkItem(ctx context.Context, tx repository.Store, it *model.Itinerary, item *model.ItineraryItem) error {
	if item.DayIndex < 0 || item.DayIndex >= it.Days {
		return pkgerrors.DayIndexOutOfRange.WithMessage("day_index %d outside [0, %d)", item.DayIndex, it.Days)
	}
	if item.SortOrder < 1 {
		return pkgerrors.InvalidRequest.WithMessage("sort_order must be positive")
	}
	if item.DurationMinutes < 0 || item.Cost < 0 {
		return pkgerrors.InvalidRequest.WithMessage("duration_minutes and cost must not be negative")
	}
	if item.StartTime != nil {
		clock, ok := utils.NormalizeClock(*item.StartTime)
		if !ok {
			return pkgerrors.InvalidRequest.WithMessage("start_time must be HH:MM")
		}
		item.StartTime = &clock
	}
	if _, err := tx.GetPOI(ctx, item.POIID); err != nil {
		return err
	}

	taken, err := tx.SlotTaken(ctx, it.ID, item.DayIndex, item.SortOrder, item.ID)
	if err != nil {
		return err
	}
	if taken {
		return pkgerrors.ItemSlotConflict
	}
	return nil
}

// lockOwned 锁住行程行并校验所有者
func lockOwned(ctx context.Context, tx repository.Store, id, requesterID uuid.UUID) (*model.Itinerary, error) {
	it, err := tx.LockItinerary(ctx, id)
	if err != nil {
		return nil, err
	}
	if !it.OwnedBy(requesterID) {
		return nil, pkgerrors.ItineraryNotOwned
	}
	return it, nil
}

func validateItinerary(it *model.Itinerary) error {
	if !utils.ValidateText(it.Title, model.MaxTitleLength) {
		return pkgerrors.InvalidRequest.WithMessage("title must be 1-%d characters", model.MaxTitleLength)
	}
	if utf8.RuneCountInString(it.Destination) > model.MaxDestinationLength {
		return pkgerrors.InvalidRequest.WithMessage("destination must be at most %d characters", model.MaxDestinationLength)
	}
	if it.Days < 1 || it.Days > model.MaxDays {
		return pkgerrors.InvalidRequest.WithMessage("days must be between 1 and %d", model.MaxDays)
	}
	if !it.Status.Valid() {
		return pkgerrors.InvalidRequest.WithMessage("invalid status %q", it.Status)
	}
	if !it.Visibility.Valid() {
		return pkgerrors.InvalidRequest.WithMessage("invalid visibility %q", it.Visibility)
	}
	return nil
}

// toResponse fork 出来的行程附带来源标题与作者，来源被删除时留空
func (s *ItineraryService) toResponse(ctx context.Context, store repository.Store, it *model.Itinerary) *dto.ItineraryResponse {
	resp := &dto.ItineraryResponse{
		CreatedAt:             it.CreatedAt,
		UpdatedAt:             it.UpdatedAt,
		ID:                    it.ID,
		Title:                 it.Title,
		Destination:           it.Destination,
		Days:                  it.Days,
		CreatorUserID:         it.OwnerID,
		Status:                it.Status,
		Visibility:            it.Visibility,
		CoverImageURL:         it.CoverImageURL,
		ForkSourceItineraryID: it.SourceItineraryID,
		ForkSourceSnapshotID:  it.SourceSnapshotID,
	}
	if !it.IsForked() {
		return resp
	}

	src, err := store.GetItinerary(ctx, *it.SourceItineraryID)
	if err != nil {
		logger.Logger.Warn("Fork source unavailable",
			zap.String("itinerary_id", it.ID.String()),
			zap.Error(err),
		)
		return resp
	}
	title := src.Title
	author := displayNickname(nicknames(ctx, store, src.OwnerID), src.OwnerID)
	resp.ForkSourceTitle = &title
	resp.ForkSourceAuthorNickname = &author
	return resp
}

func listItemResponses(ctx context.Context, store repository.Store, id uuid.UUID) (*dto.ItemListResponse, error) {
	items, err := store.ListItems(ctx, id)
	if err != nil {
		return nil, err
	}
	resp := &dto.ItemListResponse{Items: make([]dto.ItemWithPOIResponse, 0, len(items))}
	for i := range items {
		resp.Items = append(resp.Items, toItemResponse(&items[i]))
	}
	return resp, nil
}

func toItemResponse(item *model.ItineraryItem) dto.ItemWithPOIResponse {
	return dto.ItemWithPOIResponse{
		ID:              item.ID,
		ItineraryID:     item.ItineraryID,
		DayIndex:        item.DayIndex,
		SortOrder:       item.SortOrder,
		StartTime:       item.StartTime,
		DurationMinutes: item.DurationMinutes,
		Cost:            item.Cost,
		Tips:            item.Tips,
		POI:             item.POI,
	}
}
