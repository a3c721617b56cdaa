package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"Atlas/internal/model"
)

type fakeLocker struct {
	mu      sync.Mutex
	held    map[string]bool
	err     error
	acquire int
}

func newFakeLocker() *fakeLocker {
	return &fakeLocker{held: map[string]bool{}}
}

func (l *fakeLocker) TryLock(ctx context.Context, key string, ttl time.Duration) (func(context.Context) error, bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.err != nil {
		return nil, false, l.err
	}
	if l.held[key] {
		return nil, false, nil
	}
	l.held[key] = true
	l.acquire++
	return func(context.Context) error {
		l.mu.Lock()
		defer l.mu.Unlock()
		delete(l.held, key)
		return nil
	}, true, nil
}

func (l *fakeLocker) isHeld(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.held[key]
}

type fakePublisher struct {
	mu   sync.Mutex
	msgs []model.ItineraryForkedMessage
	err  error
}

func (p *fakePublisher) PublishItineraryForked(ctx context.Context, msg model.ItineraryForkedMessage) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.msgs = append(p.msgs, msg)
	return nil
}

var errInjected = errors.New("injected failure")

func strPtr(s string) *string     { return &s }
func intPtr(v int) *int           { return &v }
func floatPtr(v float64) *float64 { return &v }

func seedUser(t *testing.T, store *memStore, nickname string) uuid.UUID {
	t.Helper()
	u := &model.User{Nickname: nickname}
	require.NoError(t, store.UpsertUser(context.Background(), u))
	return u.ID
}

func seedItinerary(t *testing.T, store *memStore, owner uuid.UUID, mutate func(*model.Itinerary)) *model.Itinerary {
	t.Helper()
	it := &model.Itinerary{
		Title:       "北京三日游",
		Destination: "北京",
		Days:        3,
		OwnerID:     owner,
		Status:      model.ItineraryStatusPublished,
		Visibility:  model.VisibilityPublic,
	}
	if mutate != nil {
		mutate(it)
	}
	require.NoError(t, store.CreateItinerary(context.Background(), it))
	return it
}

func seedPOI(t *testing.T, store *memStore, name string, lon, lat float64, address string) *model.POI {
	t.Helper()
	p := &model.POI{Name: name, Type: model.DefaultPOIType, Longitude: &lon, Latitude: &lat}
	if address != "" {
		p.Address = &address
	}
	require.NoError(t, store.CreatePOI(context.Background(), p))
	return p
}

func seedItem(t *testing.T, store *memStore, itineraryID uuid.UUID, day, sortOrder int, poiID uuid.UUID, cost float64) *model.ItineraryItem {
	t.Helper()
	item := model.ItineraryItem{
		ItineraryID:     itineraryID,
		DayIndex:        day,
		SortOrder:       sortOrder,
		POIID:           poiID,
		DurationMinutes: 60,
		Cost:            cost,
	}
	item.EnsureID()
	require.NoError(t, store.CreateItems(context.Background(), []model.ItineraryItem{item}))
	return &item
}

// seedThreeStopTrip 作者发布的三个条目的行程
func seedThreeStopTrip(t *testing.T, store *memStore) (author uuid.UUID, it *model.Itinerary, items []*model.ItineraryItem) {
	t.Helper()
	author = seedUser(t, store, "小王")
	it = seedItinerary(t, store, author, nil)
	gugong := seedPOI(t, store, "故宫", 116.397, 39.918, "北京市东城区景山前街4号")
	jingshan := seedPOI(t, store, "景山公园", 116.396, 39.925, "北京市西城区景山西街44号")
	yiheyuan := seedPOI(t, store, "颐和园", 116.273, 39.999, "北京市海淀区新建宫门路19号")
	items = []*model.ItineraryItem{
		seedItem(t, store, it.ID, 0, 1, gugong.ID, 60),
		seedItem(t, store, it.ID, 0, 2, jingshan.ID, 2),
		seedItem(t, store, it.ID, 1, 1, yiheyuan.ID, 30),
	}
	return author, it, items
}
