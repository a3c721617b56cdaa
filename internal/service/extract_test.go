package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"Atlas/internal/model"
	"Atlas/internal/planparser"
	pkgerrors "Atlas/pkg/errors"
	"Atlas/pkg/geocoder"
)

const exampleText = "Day 1: Forbidden City at 9:00 for 3 hours; Day 2: unknown tiny teahouse"

type stubParser struct {
	plan *planparser.ParsedPlan
	err  error
}

func (p *stubParser) Name() string { return "stub" }

func (p *stubParser) Parse(ctx context.Context, rawText string, hint planparser.Hint) (*planparser.ParsedPlan, error) {
	return p.plan, p.err
}

func newExtractFixture(t *testing.T, opts ExtractOptions) (*memStore, *geocoder.MockClient, *model.Itinerary, *ExtractService) {
	t.Helper()
	store := newMemStore()
	geo := geocoder.NewMockClient()
	owner := seedUser(t, store, "小王")
	it := seedItinerary(t, store, owner, func(it *model.Itinerary) {
		it.Status = model.ItineraryStatusDraft
		it.Visibility = model.VisibilityPrivate
	})
	svc := NewExtractService(store, planparser.NewRulesParser(), geo, opts)
	return store, geo, it, svc
}

func TestExtractExample(t *testing.T) {
	store, geo, it, svc := newExtractFixture(t, ExtractOptions{})
	gugong := seedPOI(t, store, "Forbidden City", 116.397, 39.918, "Beijing")

	plan, err := svc.Extract(context.Background(), it.OwnerID, exampleText, it.ID)
	require.NoError(t, err)

	require.Len(t, plan.Items, 2)
	assert.Equal(t, it.Title, plan.Title)
	assert.Equal(t, "北京", plan.Destination)
	assert.Equal(t, 2, plan.Days)
	assert.False(t, plan.LowConfidence)

	first := plan.Items[0]
	assert.Equal(t, 0, first.DayIndex)
	assert.Equal(t, 1, first.SortOrder)
	require.NotNil(t, first.StartTime)
	assert.Equal(t, "09:00", *first.StartTime)
	require.NotNil(t, first.DurationMinutes)
	assert.Equal(t, 180, *first.DurationMinutes)
	local, ok := first.Match.(model.LocalMatch)
	require.True(t, ok, "got %T", first.Match)
	assert.Equal(t, gugong.ID, local.POIID)

	second := plan.Items[1]
	assert.Equal(t, 1, second.DayIndex)
	assert.Equal(t, 1, second.SortOrder)
	assert.Equal(t, model.MatchSourceUnresolved, second.Match.Source())
	assert.Equal(t, "unknown tiny teahouse", second.Match.PlaceName())
	assert.Equal(t, []string{"unknown tiny teahouse"}, geo.Calls)
}

func TestExtractExternalMatch(t *testing.T) {
	store, geo, it, svc := newExtractFixture(t, ExtractOptions{})
	seedPOI(t, store, "Forbidden City", 116.397, 39.918, "")
	geo.Add("unknown tiny teahouse", &geocoder.Place{Name: "Tiny Teahouse", Longitude: 116.4, Latitude: 39.9, Address: strPtr("东城区")})

	plan, err := svc.Extract(context.Background(), it.OwnerID, exampleText, it.ID)
	require.NoError(t, err)

	ext, ok := plan.Items[1].Match.(model.ExternalMatch)
	require.True(t, ok, "got %T", plan.Items[1].Match)
	assert.Equal(t, "Tiny Teahouse", ext.Name)
	assert.Equal(t, model.Coordinates{Longitude: 116.4, Latitude: 39.9}, ext.Coordinates)
	assert.Equal(t, "restaurant", ext.Type)
}

func TestExtractCatalogNameAlwaysLocal(t *testing.T) {
	store, geo, it, svc := newExtractFixture(t, ExtractOptions{})
	seedPOI(t, store, "Forbidden City", 116.397, 39.918, "")
	geo.Add("Forbidden City", &geocoder.Place{Name: "Palace Museum", Longitude: 1, Latitude: 1})

	plan, err := svc.Extract(context.Background(), it.OwnerID, "Day 1: forbidden city", it.ID)
	require.NoError(t, err)

	require.Len(t, plan.Items, 1)
	assert.Equal(t, model.MatchSourceLocal, plan.Items[0].Match.Source())
	assert.Zero(t, geo.CallCount())
}

func TestExtractIsDeterministic(t *testing.T) {
	store, geo, it, svc := newExtractFixture(t, ExtractOptions{})
	seedPOI(t, store, "Forbidden City", 116.397, 39.918, "")
	geo.Add("unknown tiny teahouse", &geocoder.Place{Name: "Tiny Teahouse", Longitude: 116.4, Latitude: 39.9})

	a, err := svc.Extract(context.Background(), it.OwnerID, exampleText, it.ID)
	require.NoError(t, err)
	b, err := svc.Extract(context.Background(), it.OwnerID, exampleText, it.ID)
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestExtractFuzzyLocalMatch(t *testing.T) {
	store, _, it, svc := newExtractFixture(t, ExtractOptions{})
	// "故宫" 与 "故宫博物院" 的长度比得分不够，地址包含目的地才过线
	withCity := seedPOI(t, store, "故宫博物院", 116.397, 39.918, "北京市东城区景山前街4号")
	seedPOI(t, store, "沈阳故宫博物院", 123.456, 41.796, "沈阳市沈河区")

	plan, err := svc.Extract(context.Background(), it.OwnerID, "第一天：故宫", it.ID)
	require.NoError(t, err)

	local, ok := plan.Items[0].Match.(model.LocalMatch)
	require.True(t, ok, "got %T", plan.Items[0].Match)
	assert.Equal(t, withCity.ID, local.POIID)
}

func TestExtractNoDayMarkers(t *testing.T) {
	_, _, it, svc := newExtractFixture(t, ExtractOptions{})

	_, err := svc.Extract(context.Background(), it.OwnerID, "just some words about nothing", it.ID)
	vf, ok := pkgerrors.AsValidationFailure(err)
	require.True(t, ok, "got %v", err)
	assert.Equal(t, pkgerrors.CodeEmptyOrUnstructured, vf.ErrorCode)
	assert.NotEmpty(t, vf.SuggestedActions)
}

func TestExtractAllUnresolvedPolicies(t *testing.T) {
	text := "Day 1: 无名小馆"

	t.Run("low confidence", func(t *testing.T) {
		_, _, it, svc := newExtractFixture(t, ExtractOptions{AllUnresolvedPolicy: PolicyLowConfidence})
		plan, err := svc.Extract(context.Background(), it.OwnerID, text, it.ID)
		require.NoError(t, err)
		assert.True(t, plan.LowConfidence)
		assert.True(t, plan.AllUnresolved())
	})

	t.Run("reject", func(t *testing.T) {
		_, _, it, svc := newExtractFixture(t, ExtractOptions{AllUnresolvedPolicy: PolicyReject})
		_, err := svc.Extract(context.Background(), it.OwnerID, text, it.ID)
		vf, ok := pkgerrors.AsValidationFailure(err)
		require.True(t, ok, "got %v", err)
		assert.Equal(t, pkgerrors.CodeAllUnresolved, vf.ErrorCode)
	})
}

func TestExtractGeocoderFailureLeavesUnresolved(t *testing.T) {
	_, geo, it, svc := newExtractFixture(t, ExtractOptions{})
	geo.Err = errors.New("connection reset")

	plan, err := svc.Extract(context.Background(), it.OwnerID, "Day 1: Summer Palace", it.ID)
	require.NoError(t, err)
	assert.Equal(t, model.MatchSourceUnresolved, plan.Items[0].Match.Source())
}

func TestExtractGeocoderTimeout(t *testing.T) {
	_, geo, it, svc := newExtractFixture(t, ExtractOptions{ResolveTimeout: 20 * time.Millisecond})
	geo.Delay = make(chan struct{})

	start := time.Now()
	plan, err := svc.Extract(context.Background(), it.OwnerID, "Day 1: Summer Palace; Temple of Heaven", it.ID)
	require.NoError(t, err)
	assert.Less(t, time.Since(start), 2*time.Second)
	for _, item := range plan.Items {
		assert.Equal(t, model.MatchSourceUnresolved, item.Match.Source())
	}
}

func TestExtractRegroupsByDay(t *testing.T) {
	store := newMemStore()
	owner := uuid.New()
	it := seedItinerary(t, store, owner, func(it *model.Itinerary) { it.Days = 1 })
	parser := &stubParser{plan: &planparser.ParsedPlan{
		Items: []planparser.ParsedItem{
			{DayIndex: 1, Order: 1, Name: "A"},
			{DayIndex: 0, Order: 1, Name: "B"},
			{DayIndex: 1, Order: 2, Name: "C"},
		},
	}}
	svc := NewExtractService(store, parser, nil, ExtractOptions{})

	plan, err := svc.Extract(context.Background(), owner, "anything", it.ID)
	require.NoError(t, err)

	type slot struct {
		day, order int
		name       string
	}
	var got []slot
	for _, item := range plan.Items {
		got = append(got, slot{item.DayIndex, item.SortOrder, item.Match.PlaceName()})
	}
	assert.Equal(t, []slot{{0, 1, "B"}, {1, 1, "A"}, {1, 2, "C"}}, got)
	assert.Equal(t, 2, plan.Days)
	assert.Equal(t, it.Title, plan.Title)
	assert.Equal(t, it.Destination, plan.Destination)
	assert.Equal(t, model.DefaultPOIType, plan.Items[0].Match.PlaceType())
}

func TestExtractParserErrors(t *testing.T) {
	store := newMemStore()
	owner := uuid.New()
	it := seedItinerary(t, store, owner, nil)

	svc := NewExtractService(store, &stubParser{err: errors.New("llm 503")}, nil, ExtractOptions{})
	_, err := svc.Extract(context.Background(), owner, "Day 1: x", it.ID)
	assert.ErrorIs(t, err, pkgerrors.ParserUnavailable)

	svc = NewExtractService(store, &stubParser{err: planparser.NewFailure(pkgerrors.CodeUngroundedItems, "x", "y")}, nil, ExtractOptions{})
	_, err = svc.Extract(context.Background(), owner, "Day 1: x", it.ID)
	vf, ok := pkgerrors.AsValidationFailure(err)
	require.True(t, ok)
	assert.Equal(t, pkgerrors.CodeUngroundedItems, vf.ErrorCode)
}

func TestExtractInputChecks(t *testing.T) {
	_, _, it, svc := newExtractFixture(t, ExtractOptions{MaxRawTextLength: 10})
	ctx := context.Background()

	_, err := svc.Extract(ctx, it.OwnerID, "   ", it.ID)
	assert.ErrorIs(t, err, pkgerrors.InvalidRequest)

	_, err = svc.Extract(ctx, it.OwnerID, strings.Repeat("天", 11), it.ID)
	assert.ErrorIs(t, err, pkgerrors.InvalidRequest)

	_, err = svc.Extract(ctx, uuid.New(), "Day 1: x", it.ID)
	assert.ErrorIs(t, err, pkgerrors.ItineraryNotOwned)

	_, err = svc.Extract(ctx, it.OwnerID, "Day 1: x", uuid.New())
	assert.ErrorIs(t, err, pkgerrors.ItineraryNotFound)
}
