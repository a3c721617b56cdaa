package service

import (
	"context"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"Atlas/internal/model"
	pkgerrors "Atlas/pkg/errors"
)

func TestForkCopiesItemsIntoPrivateDraft(t *testing.T) {
	store := newMemStore()
	pub := &fakePublisher{}
	_, source, _ := seedThreeStopTrip(t, store)
	requester := seedUser(t, store, "小李")

	resp, err := NewForkService(store, pub).Fork(context.Background(), source.ID, requester)
	require.NoError(t, err)

	assert.Equal(t, source.ID, resp.SourceItineraryID)
	assert.Equal(t, "北京三日游", resp.Title)
	assert.Equal(t, "北京三日游", resp.SourceTitle)
	assert.Equal(t, "小王", resp.SourceAuthorNickname)
	assert.Equal(t, "来自@小王：北京三日游", resp.DisplayTitle)

	forked, err := store.GetItinerary(context.Background(), resp.NewItineraryID)
	require.NoError(t, err)
	assert.Equal(t, requester, forked.OwnerID)
	assert.Equal(t, model.ItineraryStatusDraft, forked.Status)
	assert.Equal(t, model.VisibilityPrivate, forked.Visibility)
	require.True(t, forked.IsForked())
	assert.Equal(t, source.ID, *forked.SourceItineraryID)
	assert.Equal(t, resp.SnapshotID, *forked.SourceSnapshotID)

	snap, err := store.GetSnapshot(context.Background(), resp.SnapshotID)
	require.NoError(t, err)
	assert.Equal(t, 1, snap.VersionNo)
	assert.Equal(t, source.ID, snap.ItineraryID)
	require.Len(t, snap.Payload.Items, 3)
	assert.Equal(t, "故宫", snap.Payload.Items[0].POIName)

	srcItems, err := store.ListItems(context.Background(), source.ID)
	require.NoError(t, err)
	newItems, err := store.ListItems(context.Background(), forked.ID)
	require.NoError(t, err)
	require.Len(t, newItems, len(srcItems))
	for i := range srcItems {
		assert.NotEqual(t, srcItems[i].ID, newItems[i].ID)
		assert.Equal(t, srcItems[i].DayIndex, newItems[i].DayIndex)
		assert.Equal(t, srcItems[i].SortOrder, newItems[i].SortOrder)
		assert.Equal(t, srcItems[i].POIID, newItems[i].POIID)
		assert.Equal(t, srcItems[i].Cost, newItems[i].Cost)
	}

	require.Len(t, pub.msgs, 1)
	assert.Equal(t, source.ID, pub.msgs[0].SourceItineraryID)
	assert.Equal(t, forked.ID, pub.msgs[0].ForkedItineraryID)
	assert.Equal(t, requester, pub.msgs[0].ForkedByUserID)

	// 源行程不受影响，计数由消费者异步累加
	after, err := store.GetItinerary(context.Background(), source.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(0), after.ForkedCount)
}

func TestForkSnapshotVersionsIncrease(t *testing.T) {
	store := newMemStore()
	_, source, _ := seedThreeStopTrip(t, store)
	svc := NewForkService(store, &fakePublisher{})

	first, err := svc.Fork(context.Background(), source.ID, seedUser(t, store, "甲"))
	require.NoError(t, err)
	second, err := svc.Fork(context.Background(), source.ID, seedUser(t, store, "乙"))
	require.NoError(t, err)

	s1, err := store.GetSnapshot(context.Background(), first.SnapshotID)
	require.NoError(t, err)
	s2, err := store.GetSnapshot(context.Background(), second.SnapshotID)
	require.NoError(t, err)
	assert.Equal(t, 1, s1.VersionNo)
	assert.Equal(t, 2, s2.VersionNo)
	assert.NotEqual(t, first.NewItineraryID, second.NewItineraryID)
}

func TestForkPrivateItineraryOfOthersRejected(t *testing.T) {
	store := newMemStore()
	owner := seedUser(t, store, "小王")
	source := seedItinerary(t, store, owner, func(it *model.Itinerary) {
		it.Visibility = model.VisibilityPrivate
	})

	_, err := NewForkService(store, &fakePublisher{}).Fork(context.Background(), source.ID, uuid.New())
	assert.ErrorIs(t, err, pkgerrors.ItineraryNotVisible)

	version, err := store.NextSnapshotVersion(context.Background(), source.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, version)
}

func TestForkOwnPrivateItinerary(t *testing.T) {
	store := newMemStore()
	owner := seedUser(t, store, "小王")
	source := seedItinerary(t, store, owner, func(it *model.Itinerary) {
		it.Visibility = model.VisibilityPrivate
		it.Status = model.ItineraryStatusDraft
	})

	resp, err := NewForkService(store, nil).Fork(context.Background(), source.ID, owner)
	require.NoError(t, err)
	assert.Equal(t, source.ID, resp.SourceItineraryID)
}

func TestForkMissingSource(t *testing.T) {
	store := newMemStore()
	_, err := NewForkService(store, nil).Fork(context.Background(), uuid.New(), uuid.New())
	assert.ErrorIs(t, err, pkgerrors.ItineraryNotFound)
}

func TestForkRollsBackWhenAnyWriteFails(t *testing.T) {
	store := newMemStore()
	_, source, _ := seedThreeStopTrip(t, store)
	requester := seedUser(t, store, "小李")
	pub := &fakePublisher{}
	store.failOn("CreateFork", errInjected)

	_, err := NewForkService(store, pub).Fork(context.Background(), source.ID, requester)
	require.ErrorIs(t, err, errInjected)

	mine, total, err := store.ListItinerariesByOwner(context.Background(), requester, 0, 10)
	require.NoError(t, err)
	assert.Zero(t, total)
	assert.Empty(t, mine)

	latest, err := store.LatestSnapshot(context.Background(), source.ID)
	require.NoError(t, err)
	assert.Nil(t, latest)
	assert.Empty(t, pub.msgs)
}

func TestForkSucceedsWhenPublishFails(t *testing.T) {
	store := newMemStore()
	_, source, _ := seedThreeStopTrip(t, store)

	resp, err := NewForkService(store, &fakePublisher{err: errInjected}).Fork(context.Background(), source.ID, uuid.New())
	require.NoError(t, err)

	_, err = store.GetItinerary(context.Background(), resp.NewItineraryID)
	assert.NoError(t, err)
}

func TestForkAuthorWithoutNickname(t *testing.T) {
	store := newMemStore()
	source := seedItinerary(t, store, uuid.New(), nil)

	resp, err := NewForkService(store, nil).Fork(context.Background(), source.ID, uuid.New())
	require.NoError(t, err)
	assert.Equal(t, anonymousNickname, resp.SourceAuthorNickname)
	assert.Equal(t, "来自@匿名用户：北京三日游", resp.DisplayTitle)
}

func TestForkDisplayTitleTruncated(t *testing.T) {
	title := strings.Repeat("长", model.MaxTitleLength)
	got := ForkDisplayTitle("小王", title)
	assert.Equal(t, model.MaxTitleLength, utf8.RuneCountInString(got))
	assert.True(t, strings.HasPrefix(got, "来自@小王："))
}

func TestBuildSnapshotPayloadSortsByKey(t *testing.T) {
	poiA, poiB := uuid.New(), uuid.New()
	it := &model.Itinerary{Title: "t", Destination: "d", Days: 2}
	items := []model.ItineraryItem{
		{DayIndex: 1, SortOrder: 1, POIID: poiA},
		{DayIndex: 0, SortOrder: 2, POIID: poiB},
		{DayIndex: 0, SortOrder: 1, POIID: poiA},
	}

	payload := BuildSnapshotPayload(it, items)
	require.Len(t, payload.Items, 3)
	assert.Equal(t, model.ItemKey(0, 1, poiA), payload.Items[0].Key())
	assert.Equal(t, model.ItemKey(0, 2, poiB), payload.Items[1].Key())
	assert.Equal(t, model.ItemKey(1, 1, poiA), payload.Items[2].Key())
	assert.Equal(t, "t", payload.Meta.Title)
}
