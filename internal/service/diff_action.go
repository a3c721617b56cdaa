package service

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"Atlas/internal/model"
	"Atlas/internal/model/dto"
	"Atlas/internal/repository"
	pkgerrors "Atlas/pkg/errors"
	"Atlas/pkg/logger"
)

const maxDiffActionsPerRequest = 200

// DiffActionService 记录用户对 diff 条目的处理
type DiffActionService struct {
	store repository.Store
}

var (
	diffActionService *DiffActionService
	diffActionOnce    sync.Once
)

func DiffAction() *DiffActionService {
	diffActionOnce.Do(func() {
		diffActionService = NewDiffActionService(repository.Default())
	})
	return diffActionService
}

func NewDiffActionService(store repository.Store) *DiffActionService {
	return &DiffActionService{store: store}
}

// Record 只追加；返回记录后每个 key 的最新状态
func (s *DiffActionService) Record(ctx context.Context, itineraryID, requesterID uuid.UUID, req dto.RecordDiffActionsRequest) (*dto.RecordDiffActionsResponse, error) {
	if len(req.Actions) == 0 {
		return nil, pkgerrors.DiffActionInvalid.WithMessage("actions must not be empty")
	}
	if len(req.Actions) > maxDiffActionsPerRequest {
		return nil, pkgerrors.DiffActionInvalid.WithMessage("at most %d actions per request", maxDiffActionsPerRequest)
	}

	it, snap, err := loadForkLineage(ctx, s.store, itineraryID, requesterID)
	if err != nil {
		return nil, err
	}

	// 同一批里后面的记录时间更晚，同一 key 以最后一条为准
	now := time.Now()
	actions := make([]model.DiffAction, 0, len(req.Actions))
	for i, a := range req.Actions {
		key := strings.TrimSpace(a.DiffKey)
		if key == "" || len(key) > 128 {
			return nil, pkgerrors.DiffActionInvalid.WithMessage("action %d has an invalid diff_key", i)
		}
		if !a.DiffType.Valid() {
			return nil, pkgerrors.DiffActionInvalid.WithMessage("action %d has an invalid diff_type %q", i, a.DiffType)
		}
		if !a.Action.Valid() {
			return nil, pkgerrors.DiffActionInvalid.WithMessage("action %d has an invalid action %q", i, a.Action)
		}
		actions = append(actions, model.DiffAction{
			CreatedAt:        now.Add(time.Duration(i) * time.Microsecond),
			ItineraryID:      it.ID,
			SourceSnapshotID: snap.ID,
			DiffKey:          key,
			DiffType:         a.DiffType,
			Action:           a.Action,
			Reason:           a.Reason,
			ActorUserID:      requesterID,
		})
	}

	if err := s.store.CreateDiffActions(ctx, actions); err != nil {
		return nil, err
	}

	all, err := s.store.ListDiffActions(ctx, it.ID, snap.ID, requesterID)
	if err != nil {
		return nil, err
	}

	logger.Logger.Info("Diff actions recorded",
		zap.String("itinerary_id", it.ID.String()),
		zap.Int("count", len(actions)),
	)
	return &dto.RecordDiffActionsResponse{
		Recorded:         len(actions),
		SourceSnapshotID: snap.ID,
		ActionStatuses:   latestActionStatuses(all),
	}, nil
}
