package service

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"Atlas/internal/model"
	"Atlas/internal/model/dto"
	pkgerrors "Atlas/pkg/errors"
)

func newExploreService(store *memStore, pub *fakePublisher) *ExploreService {
	return NewExploreService(store, NewForkService(store, pub))
}

func TestExploreListsOnlyPublishedPublic(t *testing.T) {
	store := newMemStore()
	_, public, _ := seedThreeStopTrip(t, store)
	owner := public.OwnerID
	seedItinerary(t, store, owner, func(it *model.Itinerary) { it.Status = model.ItineraryStatusDraft })
	seedItinerary(t, store, owner, func(it *model.Itinerary) { it.Visibility = model.VisibilityPrivate })
	anon := seedItinerary(t, store, uuid.New(), func(it *model.Itinerary) { it.Title = "无名作者的行程" })

	list, err := newExploreService(store, nil).List(context.Background(), dto.PageQuery{})
	require.NoError(t, err)
	assert.Equal(t, int64(2), list.Total)
	require.Len(t, list.Items, 2)

	authors := map[uuid.UUID]string{}
	for _, item := range list.Items {
		authors[item.ID] = item.AuthorNickname
	}
	assert.Equal(t, "小王", authors[public.ID])
	assert.Equal(t, anonymousNickname, authors[anon.ID])
}

func TestExploreHidesUnpublished(t *testing.T) {
	store := newMemStore()
	draft := seedItinerary(t, store, uuid.New(), func(it *model.Itinerary) { it.Status = model.ItineraryStatusDraft })
	svc := newExploreService(store, nil)

	_, err := svc.Get(context.Background(), draft.ID)
	assert.ErrorIs(t, err, pkgerrors.ItineraryNotFound)
	_, err = svc.ListItems(context.Background(), draft.ID)
	assert.ErrorIs(t, err, pkgerrors.ItineraryNotFound)
	_, err = svc.Fork(context.Background(), draft.ID, uuid.New())
	assert.ErrorIs(t, err, pkgerrors.ItineraryNotFound)
}

func TestExploreGetAndFork(t *testing.T) {
	store := newMemStore()
	pub := &fakePublisher{}
	_, source, _ := seedThreeStopTrip(t, store)
	svc := newExploreService(store, pub)
	ctx := context.Background()

	got, err := svc.Get(ctx, source.ID)
	require.NoError(t, err)
	assert.Equal(t, "小王", got.AuthorNickname)

	items, err := svc.ListItems(ctx, source.ID)
	require.NoError(t, err)
	assert.Len(t, items.Items, 3)

	resp, err := svc.Fork(ctx, source.ID, uuid.New())
	require.NoError(t, err)
	assert.Equal(t, source.ID, resp.SourceItineraryID)
	assert.Len(t, pub.msgs, 1)
}
