package service

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"

	"Atlas/internal/model"
	"Atlas/internal/repository"
	pkgerrors "Atlas/pkg/errors"
)

// DiffService 比较 fork 与其来源快照
type DiffService struct {
	store repository.Store
}

var (
	diffService *DiffService
	diffOnce    sync.Once
)

func Diff() *DiffService {
	diffOnce.Do(func() {
		diffService = NewDiffService(repository.Default())
	})
	return diffService
}

func NewDiffService(store repository.Store) *DiffService {
	return &DiffService{store: store}
}

// Diff 只读，不加锁；并发编辑时读到的是某一时刻的状态
func (s *DiffService) Diff(ctx context.Context, itineraryID, requesterID uuid.UUID) (*model.Diff, error) {
	store := s.store.ReadReplica()

	it, snap, err := loadForkLineage(ctx, store, itineraryID, requesterID)
	if err != nil {
		return nil, err
	}

	items, err := store.ListItems(ctx, it.ID)
	if err != nil {
		return nil, err
	}

	diff := BuildDiff(snap, it, items)

	latest, err := store.LatestSnapshot(ctx, snap.ItineraryID)
	if err != nil {
		return nil, err
	}
	if latest != nil && latest.VersionNo > snap.VersionNo {
		id := latest.ID
		diff.LatestSourceSnapshotID = &id
		diff.StaleWarning = true
	} else {
		id := snap.ID
		diff.LatestSourceSnapshotID = &id
	}

	actions, err := store.ListDiffActions(ctx, it.ID, snap.ID, requesterID)
	if err != nil {
		return nil, err
	}
	diff.ActionStatuses = latestActionStatuses(actions)

	return diff, nil
}

// loadForkLineage 校验归属与 fork 关系并取出来源快照
func loadForkLineage(ctx context.Context, store repository.Store, itineraryID, requesterID uuid.UUID) (*model.Itinerary, *model.Snapshot, error) {
	it, err := store.GetItinerary(ctx, itineraryID)
	if err != nil {
		return nil, nil, err
	}
	if !it.OwnedBy(requesterID) {
		return nil, nil, pkgerrors.ItineraryNotOwned
	}
	if !it.IsForked() {
		return nil, nil, pkgerrors.ItineraryNotForked
	}

	snap, err := store.GetSnapshot(ctx, *it.SourceSnapshotID)
	if err != nil {
		return nil, nil, err
	}
	return it, snap, nil
}

// latestActionStatuses actions 按时间升序，后出现的覆盖前面的
func latestActionStatuses(actions []model.DiffAction) map[string]string {
	statuses := make(map[string]string, len(actions))
	for _, a := range actions {
		statuses[a.DiffKey] = string(a.Action)
	}
	return statuses
}

// BuildDiff 纯函数：相同输入得到相同输出。current 的条目需要带上 POI
func BuildDiff(snap *model.Snapshot, current *model.Itinerary, items []model.ItineraryItem) *model.Diff {
	diff := &model.Diff{
		SourceSnapshotID:  snap.ID,
		SourceItineraryID: snap.ItineraryID,
		ForkedItineraryID: current.ID,
		MetadataDiffs:     diffMetadata(snap.Payload.Meta, current),
		AddedItems:        []model.DiffItemAdded{},
		RemovedItems:      []model.DiffItemRemoved{},
		ModifiedItems:     []model.DiffItemModified{},
		ActionStatuses:    map[string]string{},
	}

	base := indexByKey(snap.Payload.Items)
	cur := make([]model.SnapshotItem, 0, len(items))
	for i := range items {
		cur = append(cur, model.NewSnapshotItem(&items[i]))
	}
	now := indexByKey(cur)

	for _, it := range sortedItems(now) {
		before, ok := base[it.Key()]
		if !ok {
			diff.AddedItems = append(diff.AddedItems, model.DiffItemAdded{Key: it.Key(), Current: it})
			continue
		}
		if fields := diffItemFields(before, it); len(fields) > 0 {
			diff.ModifiedItems = append(diff.ModifiedItems, model.DiffItemModified{Key: it.Key(), Fields: fields})
		}
	}
	for _, it := range sortedItems(base) {
		if _, ok := now[it.Key()]; !ok {
			diff.RemovedItems = append(diff.RemovedItems, model.DiffItemRemoved{Key: it.Key(), Source: it})
		}
	}

	diff.Summary = model.DiffSummary{
		Added:    len(diff.AddedItems),
		Removed:  len(diff.RemovedItems),
		Modified: len(diff.ModifiedItems),
	}
	return diff
}

// diffMetadata 字段顺序固定
func diffMetadata(meta model.SnapshotMeta, it *model.Itinerary) []model.FieldDiff {
	diffs := make([]model.FieldDiff, 0)
	if meta.Title != it.Title {
		diffs = append(diffs, model.FieldDiff{Field: "title", Before: meta.Title, After: it.Title})
	}
	if meta.Destination != it.Destination {
		diffs = append(diffs, model.FieldDiff{Field: "destination", Before: meta.Destination, After: it.Destination})
	}
	if meta.Days != it.Days {
		diffs = append(diffs, model.FieldDiff{Field: "days", Before: meta.Days, After: it.Days})
	}
	if !equalStringPtr(meta.CoverImageURL, it.CoverImageURL) {
		diffs = append(diffs, model.FieldDiff{Field: "cover_image_url", Before: stringOrNil(meta.CoverImageURL), After: stringOrNil(it.CoverImageURL)})
	}
	return diffs
}

func diffItemFields(before, after model.SnapshotItem) []model.FieldDiff {
	var fields []model.FieldDiff
	if !equalStringPtr(before.StartTime, after.StartTime) {
		fields = append(fields, model.FieldDiff{Field: "start_time", Before: stringOrNil(before.StartTime), After: stringOrNil(after.StartTime)})
	}
	if before.DurationMinutes != after.DurationMinutes {
		fields = append(fields, model.FieldDiff{Field: "duration_minutes", Before: before.DurationMinutes, After: after.DurationMinutes})
	}
	if before.Cost != after.Cost {
		fields = append(fields, model.FieldDiff{Field: "cost", Before: before.Cost, After: after.Cost})
	}
	if !equalStringPtr(before.Tips, after.Tips) {
		fields = append(fields, model.FieldDiff{Field: "tips", Before: stringOrNil(before.Tips), After: stringOrNil(after.Tips)})
	}
	return fields
}

// indexByKey 同一集合内键不会重复：(itinerary, day, sort) 有唯一索引
func indexByKey(items []model.SnapshotItem) map[string]model.SnapshotItem {
	m := make(map[string]model.SnapshotItem, len(items))
	for _, it := range items {
		m[it.Key()] = it
	}
	return m
}

func sortedItems(m map[string]model.SnapshotItem) []model.SnapshotItem {
	list := make([]model.SnapshotItem, 0, len(m))
	for _, it := range m {
		list = append(list, it)
	}
	sort.Slice(list, func(i, j int) bool { return lessKey(list[i], list[j]) })
	return list
}

func lessKey(a, b model.SnapshotItem) bool {
	if a.DayIndex != b.DayIndex {
		return a.DayIndex < b.DayIndex
	}
	if a.SortOrder != b.SortOrder {
		return a.SortOrder < b.SortOrder
	}
	return a.POIID.String() < b.POIID.String()
}

func equalStringPtr(a, b *string) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

// stringOrNil nil 保持为 JSON null
func stringOrNil(s *string) interface{} {
	if s == nil {
		return nil
	}
	return *s
}
