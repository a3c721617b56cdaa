package service

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"Atlas/internal/model"
	"Atlas/internal/model/dto"
	"Atlas/internal/repository"
	pkgerrors "Atlas/pkg/errors"
)

// ExploreService 广场：只展示已发布的公开行程
type ExploreService struct {
	store repository.Store
	fork  *ForkService
}

var (
	exploreService *ExploreService
	exploreOnce    sync.Once
)

func Explore() *ExploreService {
	exploreOnce.Do(func() {
		exploreService = NewExploreService(repository.Default(), Fork())
	})
	return exploreService
}

func NewExploreService(store repository.Store, fork *ForkService) *ExploreService {
	return &ExploreService{store: store, fork: fork}
}

func (s *ExploreService) List(ctx context.Context, page dto.PageQuery) (*dto.PublicItineraryListResponse, error) {
	page.Normalize()
	store := s.store.ReadReplica()

	list, total, err := store.ListPublicItineraries(ctx, page.Offset, page.Limit)
	if err != nil {
		return nil, err
	}

	owners := make([]uuid.UUID, 0, len(list))
	for _, it := range list {
		owners = append(owners, it.OwnerID)
	}
	names := nicknames(ctx, store, owners...)

	items := make([]dto.PublicItineraryResponse, 0, len(list))
	for i := range list {
		items = append(items, toPublicResponse(&list[i], displayNickname(names, list[i].OwnerID)))
	}
	return &dto.PublicItineraryListResponse{Items: items, Total: total, Offset: page.Offset, Limit: page.Limit}, nil
}

func (s *ExploreService) Get(ctx context.Context, id uuid.UUID) (*dto.PublicItineraryResponse, error) {
	store := s.store.ReadReplica()
	it, err := loadPublished(ctx, store, id)
	if err != nil {
		return nil, err
	}
	resp := toPublicResponse(it, displayNickname(nicknames(ctx, store, it.OwnerID), it.OwnerID))
	return &resp, nil
}

func (s *ExploreService) ListItems(ctx context.Context, id uuid.UUID) (*dto.ItemListResponse, error) {
	store := s.store.ReadReplica()
	if _, err := loadPublished(ctx, store, id); err != nil {
		return nil, err
	}
	return listItemResponses(ctx, store, id)
}

// Fork 广场入口只允许 fork 已发布的公开行程
func (s *ExploreService) Fork(ctx context.Context, id, requesterID uuid.UUID) (*dto.ForkResponse, error) {
	if _, err := loadPublished(ctx, s.store, id); err != nil {
		return nil, err
	}
	return s.fork.Fork(ctx, id, requesterID)
}

// loadPublished 未发布或非公开的行程在广场上视为不存在
func loadPublished(ctx context.Context, store repository.Store, id uuid.UUID) (*model.Itinerary, error) {
	it, err := store.GetItinerary(ctx, id)
	if err != nil {
		return nil, err
	}
	if it.Visibility != model.VisibilityPublic || it.Status != model.ItineraryStatusPublished {
		return nil, pkgerrors.ItineraryNotFound
	}
	return it, nil
}

func toPublicResponse(it *model.Itinerary, author string) dto.PublicItineraryResponse {
	return dto.PublicItineraryResponse{
		CreatedAt:      it.CreatedAt,
		UpdatedAt:      it.UpdatedAt,
		ID:             it.ID,
		Title:          it.Title,
		Destination:    it.Destination,
		Days:           it.Days,
		Status:         it.Status,
		Visibility:     it.Visibility,
		CoverImageURL:  it.CoverImageURL,
		AuthorNickname: author,
		ForkedCount:    it.ForkedCount,
	}
}
