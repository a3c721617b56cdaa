package service

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"Atlas/internal/model"
	"Atlas/internal/model/dto"
	"Atlas/internal/queue"
	"Atlas/internal/repository"
	pkgerrors "Atlas/pkg/errors"
	"Atlas/pkg/logger"
)

// ForkService 复制他人行程并留下快照
type ForkService struct {
	store     repository.Store
	publisher ForkPublisher
}

var (
	forkService *ForkService
	forkOnce    sync.Once
)

func Fork() *ForkService {
	forkOnce.Do(func() {
		forkService = NewForkService(repository.Default(), queue.NewPublisher())
	})
	return forkService
}

func NewForkService(store repository.Store, publisher ForkPublisher) *ForkService {
	return &ForkService{store: store, publisher: publisher}
}

// Fork 快照、新行程、条目与 fork 记录在同一个事务里写入；forked_count 通过消息异步累加
func (s *ForkService) Fork(ctx context.Context, sourceID, requesterID uuid.UUID) (*dto.ForkResponse, error) {
	var (
		source *model.Itinerary
		snap   *model.Snapshot
		forked *model.Itinerary
	)

	err := s.store.Transaction(ctx, func(tx repository.Store) error {
		var err error
		// 锁住来源行程，保证 version_no 分配串行
		source, err = tx.LockItinerary(ctx, sourceID)
		if err != nil {
			return err
		}
		if !source.VisibleTo(requesterID) {
			return pkgerrors.ItineraryNotVisible
		}

		items, err := tx.ListItems(ctx, sourceID)
		if err != nil {
			return err
		}

		version, err := tx.NextSnapshotVersion(ctx, sourceID)
		if err != nil {
			return err
		}

		snap = &model.Snapshot{
			ItineraryID: sourceID,
			VersionNo:   version,
			Payload:     BuildSnapshotPayload(source, items),
		}
		if err := tx.CreateSnapshot(ctx, snap); err != nil {
			return err
		}

		forked = newForkedItinerary(snap, sourceID, requesterID)
		if err := tx.CreateItinerary(ctx, forked); err != nil {
			return err
		}

		if err := tx.CreateItems(ctx, itemsFromSnapshot(forked.ID, snap.Payload.Items)); err != nil {
			return err
		}

		return tx.CreateFork(ctx, &model.ItineraryFork{
			SourceItineraryID: sourceID,
			SourceSnapshotID:  snap.ID,
			ForkedItineraryID: forked.ID,
			ForkedByUserID:    requesterID,
		})
	})
	if err != nil {
		if _, ok := pkgerrors.AsDefinition(err); !ok {
			logger.Logger.Error("Fork transaction failed",
				zap.String("source_itinerary_id", sourceID.String()),
				zap.String("requester_id", requesterID.String()),
				zap.Error(err),
			)
			return nil, fmt.Errorf("fork itinerary: %w", err)
		}
		return nil, err
	}

	logger.Logger.Info("Itinerary forked",
		zap.String("source_itinerary_id", sourceID.String()),
		zap.String("forked_itinerary_id", forked.ID.String()),
		zap.String("snapshot_id", snap.ID.String()),
		zap.Int("version_no", snap.VersionNo),
		zap.Int("items", len(snap.Payload.Items)),
	)

	s.publishForked(ctx, snap, forked, requesterID)

	author := displayNickname(nicknames(ctx, s.store, source.OwnerID), source.OwnerID)
	return &dto.ForkResponse{
		NewItineraryID:       forked.ID,
		SnapshotID:           snap.ID,
		Title:                forked.Title,
		DisplayTitle:         ForkDisplayTitle(author, source.Title),
		SourceItineraryID:    sourceID,
		SourceTitle:          source.Title,
		SourceAuthorNickname: author,
	}, nil
}

// publishForked 发布失败不影响 fork 结果，对账任务会修正计数
func (s *ForkService) publishForked(ctx context.Context, snap *model.Snapshot, forked *model.Itinerary, requesterID uuid.UUID) {
	if s.publisher == nil {
		return
	}
	msg := model.ItineraryForkedMessage{
		SourceItineraryID: snap.ItineraryID,
		SourceSnapshotID:  snap.ID,
		ForkedItineraryID: forked.ID,
		ForkedByUserID:    requesterID,
		OccurredAt:        time.Now().UTC().Format(time.RFC3339),
	}
	if err := s.publisher.PublishItineraryForked(ctx, msg); err != nil {
		logger.Logger.Warn("Failed to publish itinerary forked event",
			zap.String("source_itinerary_id", snap.ItineraryID.String()),
			zap.String("forked_itinerary_id", forked.ID.String()),
			zap.Error(err),
		)
	}
}

// ForkDisplayTitle fork 后的展示标题，超长按字符截断
func ForkDisplayTitle(author, title string) string {
	label := []rune("来自@" + author + "：" + title)
	if len(label) > model.MaxTitleLength {
		label = label[:model.MaxTitleLength]
	}
	return string(label)
}

// BuildSnapshotPayload items 需要带上 POI
func BuildSnapshotPayload(it *model.Itinerary, items []model.ItineraryItem) model.SnapshotPayload {
	payload := model.SnapshotPayload{
		Meta:  model.NewSnapshotMeta(it),
		Items: make([]model.SnapshotItem, 0, len(items)),
	}
	for i := range items {
		payload.Items = append(payload.Items, model.NewSnapshotItem(&items[i]))
	}
	sort.SliceStable(payload.Items, func(i, j int) bool {
		return lessKey(payload.Items[i], payload.Items[j])
	})
	return payload
}

// newForkedItinerary 元信息原样取自快照，fork 与快照的 diff 才能为空
func newForkedItinerary(snap *model.Snapshot, sourceID, ownerID uuid.UUID) *model.Itinerary {
	srcID, snapID := sourceID, snap.ID
	meta := snap.Payload.Meta
	it := &model.Itinerary{
		Title:             meta.Title,
		Destination:       meta.Destination,
		Days:              meta.Days,
		OwnerID:           ownerID,
		Status:            model.ItineraryStatusDraft,
		Visibility:        model.VisibilityPrivate,
		CoverImageURL:     meta.CoverImageURL,
		SourceItineraryID: &srcID,
		SourceSnapshotID:  &snapID,
	}
	it.EnsureID()
	return it
}

func itemsFromSnapshot(itineraryID uuid.UUID, snapItems []model.SnapshotItem) []model.ItineraryItem {
	items := make([]model.ItineraryItem, 0, len(snapItems))
	for _, si := range snapItems {
		item := model.ItineraryItem{
			ItineraryID:     itineraryID,
			DayIndex:        si.DayIndex,
			SortOrder:       si.SortOrder,
			POIID:           si.POIID,
			StartTime:       si.StartTime,
			DurationMinutes: si.DurationMinutes,
			Cost:            si.Cost,
			Tips:            si.Tips,
		}
		item.EnsureID()
		items = append(items, item)
	}
	return items
}
