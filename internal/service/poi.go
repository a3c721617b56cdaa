package service

import (
	"context"
	"errors"
	"sort"
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

// MaxParentDepth 父级链最多展开的层数
const MaxParentDepth = 16

const maxPOITypeLength = 32

// POIService 本地 POI 库
type POIService struct {
	store repository.Store
}

var (
	poiService *POIService
	poiOnce    sync.Once
)

func POI() *POIService {
	poiOnce.Do(func() {
		poiService = NewPOIService(repository.Default())
	})
	return poiService
}

func NewPOIService(store repository.Store) *POIService {
	return &POIService{store: store}
}

func (s *POIService) Create(ctx context.Context, req dto.CreatePOIRequest) (*model.POI, error) {
	p := &model.POI{
		Name:         strings.TrimSpace(req.Name),
		Type:         strings.TrimSpace(req.Type),
		Longitude:    req.Longitude,
		Latitude:     req.Latitude,
		Address:      req.Address,
		OpeningHours: req.OpeningHours,
		TicketPrice:  req.TicketPrice,
	}
	if p.Type == "" {
		p.Type = model.DefaultPOIType
	}
	if !utils.ValidateText(p.Name, model.MaxTitleLength) {
		return nil, pkgerrors.InvalidRequest.WithMessage("name must be 1-%d characters", model.MaxTitleLength)
	}
	if utf8.RuneCountInString(p.Type) > maxPOITypeLength {
		return nil, pkgerrors.InvalidRequest.WithMessage("type must be at most %d characters", maxPOITypeLength)
	}
	// 手动创建的 POI 必须带坐标
	if p.Longitude == nil || p.Latitude == nil || !utils.ValidateCoordinates(*p.Longitude, *p.Latitude) {
		return nil, pkgerrors.InvalidRequest.WithMessage("valid longitude and latitude are required")
	}
	if p.TicketPrice != nil && *p.TicketPrice < 0 {
		return nil, pkgerrors.InvalidRequest.WithMessage("ticket_price must not be negative")
	}

	err := s.store.Transaction(ctx, func(tx repository.Store) error {
		p.EnsureID()
		if req.ParentPOIID != nil {
			if err := checkParent(ctx, tx, p.ID, *req.ParentPOIID); err != nil {
				return err
			}
			p.ParentPOIID = req.ParentPOIID
		}
		return tx.CreatePOI(ctx, p)
	})
	if err != nil {
		return nil, err
	}

	logger.Logger.Info("POI created", zap.String("poi_id", p.ID.String()), zap.String("name", p.Name))
	return p, nil
}

func (s *POIService) Get(ctx context.Context, id uuid.UUID) (*model.POI, error) {
	return s.store.GetPOI(ctx, id)
}

// Update 快照保存的是 POI 的值拷贝，这里的修改不会影响已有 diff
func (s *POIService) Update(ctx context.Context, id uuid.UUID, req dto.UpdatePOIRequest) (*model.POI, error) {
	if (req.Longitude == nil) != (req.Latitude == nil) {
		return nil, pkgerrors.InvalidRequest.WithMessage("longitude and latitude must be updated together")
	}

	var p *model.POI
	err := s.store.Transaction(ctx, func(tx repository.Store) error {
		cur, err := tx.GetPOI(ctx, id)
		if err != nil {
			return err
		}
		if req.Name != nil {
			cur.Name = strings.TrimSpace(*req.Name)
			if !utils.ValidateText(cur.Name, model.MaxTitleLength) {
				return pkgerrors.InvalidRequest.WithMessage("name must be 1-%d characters", model.MaxTitleLength)
			}
		}
		if req.Type != nil {
			cur.Type = strings.TrimSpace(*req.Type)
			if cur.Type == "" {
				cur.Type = model.DefaultPOIType
			}
			if utf8.RuneCountInString(cur.Type) > maxPOITypeLength {
				return pkgerrors.InvalidRequest.WithMessage("type must be at most %d characters", maxPOITypeLength)
			}
		}
		if req.Longitude != nil {
			if !utils.ValidateCoordinates(*req.Longitude, *req.Latitude) {
				return pkgerrors.InvalidRequest.WithMessage("valid longitude and latitude are required")
			}
			cur.Longitude, cur.Latitude = req.Longitude, req.Latitude
		}
		if req.Address != nil {
			cur.Address = req.Address
		}
		if req.OpeningHours != nil {
			cur.OpeningHours = req.OpeningHours
		}
		if req.TicketPrice != nil {
			if *req.TicketPrice < 0 {
				return pkgerrors.InvalidRequest.WithMessage("ticket_price must not be negative")
			}
			cur.TicketPrice = req.TicketPrice
		}
		p = cur
		return tx.UpdatePOI(ctx, cur)
	})
	if err != nil {
		return nil, err
	}
	return p, nil
}

// Delete 仍被条目引用的 POI 不能删除
func (s *POIService) Delete(ctx context.Context, id uuid.UUID) error {
	err := s.store.Transaction(ctx, func(tx repository.Store) error {
		if _, err := tx.GetPOI(ctx, id); err != nil {
			return err
		}
		used, err := tx.POIReferenced(ctx, id)
		if err != nil {
			return err
		}
		if used {
			return pkgerrors.POIInUse
		}
		return tx.DeletePOI(ctx, id)
	})
	if err != nil {
		return err
	}

	logger.Logger.Info("POI deleted", zap.String("poi_id", id.String()))
	return nil
}

func (s *POIService) List(ctx context.Context, page dto.PageQuery) (*dto.POIListResponse, error) {
	page.Normalize()
	list, total, err := s.store.ListPOIs(ctx, page.Offset, page.Limit)
	if err != nil {
		return nil, err
	}
	return &dto.POIListResponse{Items: list, Total: total, Offset: page.Offset, Limit: page.Limit}, nil
}

// Search 与解析管线使用同一套打分，结果按得分排序
func (s *POIService) Search(ctx context.Context, q dto.POISearchQuery) ([]model.POI, error) {
	query := strings.TrimSpace(q.Q)
	if query == "" {
		return nil, pkgerrors.InvalidRequest.WithMessage("q is required")
	}
	limit := q.Limit
	if limit <= 0 || limit > 50 {
		limit = 20
	}

	list, err := s.store.SearchPOIs(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	rankPOIs(query, q.Destination, list)
	return list, nil
}

// SetParent parentID 为 nil 时清除父级
func (s *POIService) SetParent(ctx context.Context, id uuid.UUID, parentID *uuid.UUID) error {
	return s.store.Transaction(ctx, func(tx repository.Store) error {
		if _, err := tx.GetPOI(ctx, id); err != nil {
			return err
		}
		if parentID != nil {
			if err := checkParent(ctx, tx, id, *parentID); err != nil {
				return err
			}
		}
		return tx.UpdatePOIParent(ctx, id, parentID)
	})
}

// ParentChain 从自身开始向上展开，遇到环、缺失的父级或深度上限即停止
func (s *POIService) ParentChain(ctx context.Context, id uuid.UUID) (*dto.POIParentChainResponse, error) {
	p, err := s.store.GetPOI(ctx, id)
	if err != nil {
		return nil, err
	}

	resp := &dto.POIParentChainResponse{Chain: []model.POI{*p}}
	seen := map[uuid.UUID]bool{p.ID: true}
	for cur := p; cur.ParentPOIID != nil; {
		if len(resp.Chain) > MaxParentDepth || seen[*cur.ParentPOIID] {
			resp.Truncated = true
			break
		}
		parent, err := s.store.GetPOI(ctx, *cur.ParentPOIID)
		if err != nil {
			if errors.Is(err, pkgerrors.POINotFound) {
				// 弱引用，父级可以不存在
				break
			}
			return nil, err
		}
		seen[parent.ID] = true
		resp.Chain = append(resp.Chain, *parent)
		cur = parent
	}
	return resp, nil
}

// checkParent 父级必须存在，且沿父级链向上不会回到自身
func checkParent(ctx context.Context, tx repository.Store, id, parentID uuid.UUID) error {
	if parentID == id {
		return pkgerrors.POIParentCycle
	}
	cur := parentID
	for depth := 0; depth <= MaxParentDepth; depth++ {
		p, err := tx.GetPOI(ctx, cur)
		if err != nil {
			if depth > 0 && errors.Is(err, pkgerrors.POINotFound) {
				return nil
			}
			return err
		}
		if p.ParentPOIID == nil {
			return nil
		}
		if *p.ParentPOIID == id {
			return pkgerrors.POIParentCycle
		}
		cur = *p.ParentPOIID
	}
	return pkgerrors.POIParentCycle.WithMessage("POI parent chain deeper than %d", MaxParentDepth)
}

// rankPOIs 稳定排序，得分高的在前
func rankPOIs(query, destination string, list []model.POI) {
	scores := make(map[uuid.UUID]float64, len(list))
	for i := range list {
		score := fuzzyScore(query, list[i].Name)
		if addressMentions(&list[i], destination) {
			score += 0.1
		}
		scores[list[i].ID] = score
	}
	sort.SliceStable(list, func(i, j int) bool { return scores[list[i].ID] > scores[list[j].ID] })
}
