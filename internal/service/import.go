package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"Atlas/config"
	"Atlas/internal/cache"
	"Atlas/internal/model"
	"Atlas/internal/repository"
	pkgerrors "Atlas/pkg/errors"
	"Atlas/pkg/logger"
	"Atlas/utils"
)

const defaultImportLockTTL = 30 * time.Second

// ImportService 用候选行程整体替换行程条目
type ImportService struct {
	store   repository.Store
	locker  Locker
	lockTTL time.Duration
}

var (
	importService *ImportService
	importOnce    sync.Once
)

func Import() *ImportService {
	importOnce.Do(func() {
		importService = NewImportService(repository.Default(), cache.RedisLocker{}, config.Cfg.ImportLockTTL)
	})
	return importService
}

func NewImportService(store repository.Store, locker Locker, lockTTL time.Duration) *ImportService {
	if lockTTL <= 0 {
		lockTTL = defaultImportLockTTL
	}
	return &ImportService{store: store, locker: locker, lockTTL: lockTTL}
}

func importLockKey(itineraryID uuid.UUID) string {
	return "import:" + itineraryID.String()
}

// Commit 全部写入或全部不写；同一行程同时只允许一个导入，后来者直接返回 Conflict
func (s *ImportService) Commit(ctx context.Context, requesterID, itineraryID uuid.UUID, plan *model.CandidatePlan) (int, error) {
	it, err := s.store.GetItinerary(ctx, itineraryID)
	if err != nil {
		return 0, err
	}
	if !it.OwnedBy(requesterID) {
		return 0, pkgerrors.ItineraryNotOwned
	}
	if err := validateImportPlan(plan, it.Days); err != nil {
		return 0, err
	}

	release, ok, err := s.locker.TryLock(ctx, importLockKey(itineraryID), s.lockTTL)
	if err != nil {
		return 0, fmt.Errorf("acquire import lock: %w", err)
	}
	if !ok {
		return 0, pkgerrors.ImportInProgress
	}
	defer func() {
		if err := release(context.WithoutCancel(ctx)); err != nil {
			logger.Logger.Warn("Failed to release import lock",
				zap.String("itinerary_id", itineraryID.String()),
				zap.Error(err),
			)
		}
	}()

	var (
		removed int64
		count   int
	)
	err = s.store.Transaction(ctx, func(tx repository.Store) error {
		locked, err := tx.LockItinerary(ctx, itineraryID)
		if err != nil {
			return err
		}
		// 拿锁前行程可能被改过
		if !locked.OwnedBy(requesterID) {
			return pkgerrors.ItineraryNotOwned
		}
		if err := validateImportPlan(plan, locked.Days); err != nil {
			return err
		}

		m := &materializer{tx: tx}
		items := make([]model.ItineraryItem, 0, len(plan.Items))
		for _, ci := range plan.Items {
			poiID, err := m.materialize(ctx, ci.Match)
			if err != nil {
				return err
			}
			items = append(items, newImportedItem(itineraryID, poiID, ci))
		}

		removed, err = tx.DeleteItems(ctx, itineraryID)
		if err != nil {
			return err
		}
		if err := tx.CreateItems(ctx, items); err != nil {
			return err
		}
		count = len(items)
		return nil
	})
	if err != nil {
		logger.Logger.Error("Import transaction rolled back",
			zap.String("itinerary_id", itineraryID.String()),
			zap.Error(err),
		)
		return 0, err
	}

	logger.Logger.Info("Plan imported",
		zap.String("itinerary_id", itineraryID.String()),
		zap.Int64("replaced", removed),
		zap.Int("imported", count),
	)
	return count, nil
}

// validateImportPlan 任何写入之前完成全部校验
func validateImportPlan(plan *model.CandidatePlan, days int) error {
	if plan == nil || len(plan.Items) == 0 {
		return pkgerrors.ImportPlanEmpty
	}

	slots := make(map[[2]int]struct{}, len(plan.Items))
	for i, it := range plan.Items {
		if it.Match == nil {
			return pkgerrors.InvalidRequest.WithMessage("item %d has no poi", i)
		}
		if !utils.ValidateText(it.Match.PlaceName(), model.MaxTitleLength) {
			return pkgerrors.InvalidRequest.WithMessage("item %d has an invalid poi name", i)
		}
		if it.DayIndex < 0 || it.DayIndex >= days {
			return pkgerrors.DayIndexOutOfRange.WithMessage("item %d day_index %d outside [0, %d)", i, it.DayIndex, days)
		}
		if it.SortOrder < 1 {
			return pkgerrors.InvalidRequest.WithMessage("item %d sort_order must be positive", i)
		}
		slot := [2]int{it.DayIndex, it.SortOrder}
		if _, dup := slots[slot]; dup {
			return pkgerrors.ImportDuplicateSlot.WithMessage("day_index %d sort_order %d appears twice", it.DayIndex, it.SortOrder)
		}
		slots[slot] = struct{}{}

		if it.DurationMinutes != nil && *it.DurationMinutes < 0 {
			return pkgerrors.InvalidRequest.WithMessage("item %d duration_minutes must not be negative", i)
		}
		if it.Cost != nil && *it.Cost < 0 {
			return pkgerrors.InvalidRequest.WithMessage("item %d cost must not be negative", i)
		}
		if it.StartTime != nil {
			if _, ok := utils.NormalizeClock(*it.StartTime); !ok {
				return pkgerrors.InvalidRequest.WithMessage("item %d start_time must be HH:MM", i)
			}
		}
		if ext, ok := it.Match.(model.ExternalMatch); ok && !utils.ValidateCoordinates(ext.Coordinates.Longitude, ext.Coordinates.Latitude) {
			return pkgerrors.InvalidRequest.WithMessage("item %d has invalid coordinates", i)
		}
	}
	return nil
}

func newImportedItem(itineraryID, poiID uuid.UUID, ci model.CandidateItem) model.ItineraryItem {
	item := model.ItineraryItem{
		ItineraryID: itineraryID,
		DayIndex:    ci.DayIndex,
		SortOrder:   ci.SortOrder,
		POIID:       poiID,
		Tips:        ci.Tips,
	}
	if ci.StartTime != nil {
		clock, _ := utils.NormalizeClock(*ci.StartTime)
		item.StartTime = &clock
	}
	if ci.DurationMinutes != nil {
		item.DurationMinutes = *ci.DurationMinutes
	}
	if ci.Cost != nil {
		item.Cost = *ci.Cost
	}
	item.EnsureID()
	return item
}

// materializer 把预览里的地点落成 POI，必须在导入事务里使用
type materializer struct {
	tx repository.Store
}

func (m *materializer) materialize(ctx context.Context, match model.Match) (uuid.UUID, error) {
	switch v := match.(type) {
	case model.LocalMatch:
		p, err := m.tx.GetPOI(ctx, v.POIID)
		if err == nil {
			return p.ID, nil
		}
		if !errors.Is(err, pkgerrors.POINotFound) {
			return uuid.Nil, err
		}
		// 预览之后 POI 被删除，用值拷贝重建
		logger.Logger.Warn("Local POI disappeared before import, rebuilding",
			zap.String("poi_id", v.POIID.String()),
			zap.String("name", v.Name),
		)
		if v.Coordinates != nil {
			return m.upsertExternal(ctx, v.Name, v.Type, *v.Coordinates, v.Address, v.OpeningHours, v.TicketPrice)
		}
		return m.upsertUnresolved(ctx, v.Name, v.Type)
	case model.ExternalMatch:
		return m.upsertExternal(ctx, v.Name, v.Type, v.Coordinates, v.Address, nil, nil)
	case model.UnresolvedMatch:
		return m.upsertUnresolved(ctx, v.Name, v.Type)
	default:
		return uuid.Nil, pkgerrors.InvalidRequest.WithMessage("unsupported poi match %T", match)
	}
}

func (m *materializer) upsertExternal(ctx context.Context, name, typ string, coords model.Coordinates, address, openingHours *string, ticketPrice *float64) (uuid.UUID, error) {
	existing, err := m.tx.FindPOIByNameAndCoordinates(ctx, name, coords)
	if err != nil {
		return uuid.Nil, err
	}
	if existing != nil {
		return existing.ID, nil
	}

	lon, lat := coords.Longitude, coords.Latitude
	p := &model.POI{
		Name:         name,
		Type:         poiType(typ),
		Longitude:    &lon,
		Latitude:     &lat,
		Address:      address,
		OpeningHours: openingHours,
		TicketPrice:  ticketPrice,
	}
	if err := m.tx.CreatePOI(ctx, p); err != nil {
		return uuid.Nil, err
	}
	return p.ID, nil
}

func (m *materializer) upsertUnresolved(ctx context.Context, name, typ string) (uuid.UUID, error) {
	existing, err := m.tx.FindCoordinatelessPOI(ctx, name)
	if err != nil {
		return uuid.Nil, err
	}
	if existing != nil {
		return existing.ID, nil
	}

	p := &model.POI{Name: name, Type: poiType(typ)}
	if err := m.tx.CreatePOI(ctx, p); err != nil {
		return uuid.Nil, err
	}
	return p.ID, nil
}

func poiType(typ string) string {
	if typ == "" {
		return model.DefaultPOIType
	}
	return typ
}
