package service

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"Atlas/internal/model"
	"Atlas/internal/repository"
	pkgerrors "Atlas/pkg/errors"
)

// memState 内存里的一份完整数据，事务在副本上执行，提交时整体替换
type memState struct {
	itineraries map[uuid.UUID]model.Itinerary
	items       map[uuid.UUID]model.ItineraryItem
	pois        map[uuid.UUID]model.POI
	snapshots   map[uuid.UUID]model.Snapshot
	forks       []model.ItineraryFork
	actions     []model.DiffAction
	users       map[uuid.UUID]model.User
}

func newMemState() *memState {
	return &memState{
		itineraries: map[uuid.UUID]model.Itinerary{},
		items:       map[uuid.UUID]model.ItineraryItem{},
		pois:        map[uuid.UUID]model.POI{},
		snapshots:   map[uuid.UUID]model.Snapshot{},
		users:       map[uuid.UUID]model.User{},
	}
}

func (s *memState) clone() *memState {
	c := newMemState()
	for k, v := range s.itineraries {
		c.itineraries[k] = v
	}
	for k, v := range s.items {
		c.items[k] = v
	}
	for k, v := range s.pois {
		c.pois[k] = v
	}
	for k, v := range s.snapshots {
		c.snapshots[k] = v
	}
	for k, v := range s.users {
		c.users[k] = v
	}
	c.forks = append(c.forks, s.forks...)
	c.actions = append(c.actions, s.actions...)
	return c
}

type memRoot struct {
	mu    sync.Mutex
	txMu  sync.Mutex
	state *memState
	clock time.Time

	// failures 按方法名注入错误
	failures map[string]error
	calls    map[string]int
}

// memStore 实现 repository.Store
type memStore struct {
	root *memRoot
	tx   *memState
}

var _ repository.Store = (*memStore)(nil)

func newMemStore() *memStore {
	return &memStore{root: &memRoot{
		state:    newMemState(),
		clock:    time.Date(2025, 3, 1, 8, 0, 0, 0, time.UTC),
		failures: map[string]error{},
		calls:    map[string]int{},
	}}
}

func (s *memStore) failOn(method string, err error) {
	s.root.mu.Lock()
	defer s.root.mu.Unlock()
	s.root.failures[method] = err
}

func (s *memStore) callCount(method string) int {
	s.root.mu.Lock()
	defer s.root.mu.Unlock()
	return s.root.calls[method]
}

// begin 返回当前可见的数据；非事务访问持有全局锁直到 done
func (s *memStore) begin(method string) (st *memState, now time.Time, done func(), err error) {
	s.root.mu.Lock()
	s.root.calls[method]++
	s.root.clock = s.root.clock.Add(time.Millisecond)
	now = s.root.clock
	if e := s.root.failures[method]; e != nil {
		s.root.mu.Unlock()
		return nil, now, nil, e
	}
	if s.tx != nil {
		s.root.mu.Unlock()
		return s.tx, now, func() {}, nil
	}
	return s.root.state, now, s.root.mu.Unlock, nil
}

func (s *memStore) Transaction(ctx context.Context, fn func(tx repository.Store) error) error {
	if s.tx != nil {
		return fn(s)
	}
	s.root.txMu.Lock()
	defer s.root.txMu.Unlock()

	s.root.mu.Lock()
	work := s.root.state.clone()
	s.root.mu.Unlock()

	if err := fn(&memStore{root: s.root, tx: work}); err != nil {
		return err
	}

	s.root.mu.Lock()
	s.root.state = work
	s.root.mu.Unlock()
	return nil
}

func (s *memStore) ReadReplica() repository.Store { return s }

// ---------- itineraries ----------

func (s *memStore) GetItinerary(ctx context.Context, id uuid.UUID) (*model.Itinerary, error) {
	st, _, done, err := s.begin("GetItinerary")
	if err != nil {
		return nil, err
	}
	defer done()
	it, ok := st.itineraries[id]
	if !ok {
		return nil, pkgerrors.ItineraryNotFound
	}
	return &it, nil
}

func (s *memStore) LockItinerary(ctx context.Context, id uuid.UUID) (*model.Itinerary, error) {
	st, _, done, err := s.begin("LockItinerary")
	if err != nil {
		return nil, err
	}
	defer done()
	it, ok := st.itineraries[id]
	if !ok {
		return nil, pkgerrors.ItineraryNotFound
	}
	return &it, nil
}

func (s *memStore) CreateItinerary(ctx context.Context, it *model.Itinerary) error {
	st, now, done, err := s.begin("CreateItinerary")
	if err != nil {
		return err
	}
	defer done()
	if err := it.ValidateLineage(); err != nil {
		return err
	}
	it.EnsureID()
	it.CreatedAt, it.UpdatedAt = now, now
	st.itineraries[it.ID] = *it
	return nil
}

func (s *memStore) UpdateItinerary(ctx context.Context, it *model.Itinerary) error {
	st, now, done, err := s.begin("UpdateItinerary")
	if err != nil {
		return err
	}
	defer done()
	if err := it.ValidateLineage(); err != nil {
		return err
	}
	cur, ok := st.itineraries[it.ID]
	if !ok {
		return pkgerrors.ItineraryNotFound
	}
	cur.Title, cur.Destination, cur.Days = it.Title, it.Destination, it.Days
	cur.Status, cur.Visibility, cur.CoverImageURL = it.Status, it.Visibility, it.CoverImageURL
	cur.UpdatedAt = now
	st.itineraries[it.ID] = cur
	*it = cur
	return nil
}

func (s *memStore) DeleteItinerary(ctx context.Context, id uuid.UUID) error {
	st, _, done, err := s.begin("DeleteItinerary")
	if err != nil {
		return err
	}
	defer done()
	if _, ok := st.itineraries[id]; !ok {
		return pkgerrors.ItineraryNotFound
	}
	for itemID, item := range st.items {
		if item.ItineraryID == id {
			delete(st.items, itemID)
		}
	}
	delete(st.itineraries, id)
	return nil
}

func (s *memStore) ListItinerariesByOwner(ctx context.Context, ownerID uuid.UUID, offset, limit int) ([]model.Itinerary, int64, error) {
	st, _, done, err := s.begin("ListItinerariesByOwner")
	if err != nil {
		return nil, 0, err
	}
	defer done()
	var list []model.Itinerary
	for _, it := range st.itineraries {
		if it.OwnerID == ownerID {
			list = append(list, it)
		}
	}
	sort.Slice(list, func(i, j int) bool { return list[i].UpdatedAt.After(list[j].UpdatedAt) })
	return paginate(list, offset, limit), int64(len(list)), nil
}

func (s *memStore) ListPublicItineraries(ctx context.Context, offset, limit int) ([]model.Itinerary, int64, error) {
	st, _, done, err := s.begin("ListPublicItineraries")
	if err != nil {
		return nil, 0, err
	}
	defer done()
	var list []model.Itinerary
	for _, it := range st.itineraries {
		if it.Visibility == model.VisibilityPublic && it.Status == model.ItineraryStatusPublished {
			list = append(list, it)
		}
	}
	sort.Slice(list, func(i, j int) bool { return list[i].CreatedAt.After(list[j].CreatedAt) })
	return paginate(list, offset, limit), int64(len(list)), nil
}

func (s *memStore) IncrementForkedCount(ctx context.Context, id uuid.UUID, delta int64) error {
	st, _, done, err := s.begin("IncrementForkedCount")
	if err != nil {
		return err
	}
	defer done()
	it, ok := st.itineraries[id]
	if !ok {
		return pkgerrors.ItineraryNotFound
	}
	it.ForkedCount += delta
	st.itineraries[id] = it
	return nil
}

func paginate[T any](list []T, offset, limit int) []T {
	if offset >= len(list) {
		return []T{}
	}
	end := offset + limit
	if end > len(list) {
		end = len(list)
	}
	return list[offset:end]
}

// ---------- items ----------

func (st *memState) withPOI(item model.ItineraryItem) model.ItineraryItem {
	if p, ok := st.pois[item.POIID]; ok {
		item.POI = &p
	} else {
		item.POI = nil
	}
	return item
}

func (s *memStore) ListItems(ctx context.Context, itineraryID uuid.UUID) ([]model.ItineraryItem, error) {
	st, _, done, err := s.begin("ListItems")
	if err != nil {
		return nil, err
	}
	defer done()
	list := make([]model.ItineraryItem, 0)
	for _, item := range st.items {
		if item.ItineraryID == itineraryID {
			list = append(list, st.withPOI(item))
		}
	}
	sort.Slice(list, func(i, j int) bool {
		a, b := list[i], list[j]
		if a.DayIndex != b.DayIndex {
			return a.DayIndex < b.DayIndex
		}
		if a.SortOrder != b.SortOrder {
			return a.SortOrder < b.SortOrder
		}
		return a.POIID.String() < b.POIID.String()
	})
	return list, nil
}

func (s *memStore) GetItem(ctx context.Context, itineraryID, itemID uuid.UUID) (*model.ItineraryItem, error) {
	st, _, done, err := s.begin("GetItem")
	if err != nil {
		return nil, err
	}
	defer done()
	item, ok := st.items[itemID]
	if !ok || item.ItineraryID != itineraryID {
		return nil, pkgerrors.ItineraryItemNotFound
	}
	item = st.withPOI(item)
	return &item, nil
}

func (st *memState) slotTaken(itineraryID uuid.UUID, day, sortOrder int, exceptID uuid.UUID) bool {
	for id, item := range st.items {
		if id != exceptID && item.ItineraryID == itineraryID && item.DayIndex == day && item.SortOrder == sortOrder {
			return true
		}
	}
	return false
}

func (s *memStore) CreateItems(ctx context.Context, items []model.ItineraryItem) error {
	st, now, done, err := s.begin("CreateItems")
	if err != nil {
		return err
	}
	defer done()
	// 批量写入要么全部成功要么全部失败
	staged := make([]model.ItineraryItem, 0, len(items))
	for _, item := range items {
		item.EnsureID()
		item.POI = nil
		item.CreatedAt, item.UpdatedAt = now, now
		if st.slotTaken(item.ItineraryID, item.DayIndex, item.SortOrder, item.ID) {
			return pkgerrors.ItemSlotConflict
		}
		for _, other := range staged {
			if other.ItineraryID == item.ItineraryID && other.DayIndex == item.DayIndex && other.SortOrder == item.SortOrder {
				return pkgerrors.ItemSlotConflict
			}
		}
		staged = append(staged, item)
	}
	for _, item := range staged {
		st.items[item.ID] = item
	}
	return nil
}

func (s *memStore) UpdateItem(ctx context.Context, item *model.ItineraryItem) error {
	st, now, done, err := s.begin("UpdateItem")
	if err != nil {
		return err
	}
	defer done()
	cur, ok := st.items[item.ID]
	if !ok || cur.ItineraryID != item.ItineraryID {
		return pkgerrors.ItineraryItemNotFound
	}
	if st.slotTaken(item.ItineraryID, item.DayIndex, item.SortOrder, item.ID) {
		return pkgerrors.ItemSlotConflict
	}
	next := *item
	next.POI = nil
	next.CreatedAt = cur.CreatedAt
	next.UpdatedAt = now
	st.items[item.ID] = next
	return nil
}

func (s *memStore) DeleteItem(ctx context.Context, itineraryID, itemID uuid.UUID) error {
	st, _, done, err := s.begin("DeleteItem")
	if err != nil {
		return err
	}
	defer done()
	item, ok := st.items[itemID]
	if !ok || item.ItineraryID != itineraryID {
		return pkgerrors.ItineraryItemNotFound
	}
	delete(st.items, itemID)
	return nil
}

func (s *memStore) DeleteItems(ctx context.Context, itineraryID uuid.UUID) (int64, error) {
	st, _, done, err := s.begin("DeleteItems")
	if err != nil {
		return 0, err
	}
	defer done()
	var n int64
	for id, item := range st.items {
		if item.ItineraryID == itineraryID {
			delete(st.items, id)
			n++
		}
	}
	return n, nil
}

func (s *memStore) SlotTaken(ctx context.Context, itineraryID uuid.UUID, dayIndex, sortOrder int, exceptID uuid.UUID) (bool, error) {
	st, _, done, err := s.begin("SlotTaken")
	if err != nil {
		return false, err
	}
	defer done()
	return st.slotTaken(itineraryID, dayIndex, sortOrder, exceptID), nil
}

// ---------- pois ----------

func (s *memStore) GetPOI(ctx context.Context, id uuid.UUID) (*model.POI, error) {
	st, _, done, err := s.begin("GetPOI")
	if err != nil {
		return nil, err
	}
	defer done()
	p, ok := st.pois[id]
	if !ok {
		return nil, pkgerrors.POINotFound
	}
	return &p, nil
}

func (s *memStore) GetPOIs(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]*model.POI, error) {
	st, _, done, err := s.begin("GetPOIs")
	if err != nil {
		return nil, err
	}
	defer done()
	result := make(map[uuid.UUID]*model.POI, len(ids))
	for _, id := range ids {
		if p, ok := st.pois[id]; ok {
			result[id] = &p
		}
	}
	return result, nil
}

func (s *memStore) CreatePOI(ctx context.Context, p *model.POI) error {
	st, now, done, err := s.begin("CreatePOI")
	if err != nil {
		return err
	}
	defer done()
	p.EnsureID()
	p.CreatedAt, p.UpdatedAt = now, now
	st.pois[p.ID] = *p
	return nil
}

func (s *memStore) UpdatePOIParent(ctx context.Context, id uuid.UUID, parentID *uuid.UUID) error {
	st, _, done, err := s.begin("UpdatePOIParent")
	if err != nil {
		return err
	}
	defer done()
	p, ok := st.pois[id]
	if !ok {
		return pkgerrors.POINotFound
	}
	p.ParentPOIID = parentID
	st.pois[id] = p
	return nil
}

func (s *memStore) UpdatePOI(ctx context.Context, p *model.POI) error {
	st, now, done, err := s.begin("UpdatePOI")
	if err != nil {
		return err
	}
	defer done()
	cur, ok := st.pois[p.ID]
	if !ok {
		return pkgerrors.POINotFound
	}
	next := *p
	next.ParentPOIID = cur.ParentPOIID
	next.CreatedAt, next.UpdatedAt = cur.CreatedAt, now
	st.pois[p.ID] = next
	return nil
}

func (s *memStore) DeletePOI(ctx context.Context, id uuid.UUID) error {
	st, _, done, err := s.begin("DeletePOI")
	if err != nil {
		return err
	}
	defer done()
	if _, ok := st.pois[id]; !ok {
		return pkgerrors.POINotFound
	}
	delete(st.pois, id)
	return nil
}

func (s *memStore) POIReferenced(ctx context.Context, id uuid.UUID) (bool, error) {
	st, _, done, err := s.begin("POIReferenced")
	if err != nil {
		return false, err
	}
	defer done()
	for _, item := range st.items {
		if item.POIID == id {
			return true, nil
		}
	}
	return false, nil
}

func (st *memState) sortedPOIs(filter func(model.POI) bool) []model.POI {
	list := make([]model.POI, 0)
	for _, p := range st.pois {
		if filter(p) {
			list = append(list, p)
		}
	}
	sort.Slice(list, func(i, j int) bool { return list[i].ID.String() < list[j].ID.String() })
	return list
}

func (s *memStore) ListPOIs(ctx context.Context, offset, limit int) ([]model.POI, int64, error) {
	st, _, done, err := s.begin("ListPOIs")
	if err != nil {
		return nil, 0, err
	}
	defer done()
	list := st.sortedPOIs(func(model.POI) bool { return true })
	return paginate(list, offset, limit), int64(len(list)), nil
}

func (s *memStore) FindPOIsByName(ctx context.Context, name string) ([]model.POI, error) {
	st, _, done, err := s.begin("FindPOIsByName")
	if err != nil {
		return nil, err
	}
	defer done()
	q := strings.ToLower(strings.TrimSpace(name))
	return st.sortedPOIs(func(p model.POI) bool { return strings.ToLower(p.Name) == q }), nil
}

func (s *memStore) SearchPOIs(ctx context.Context, query string, limit int) ([]model.POI, error) {
	st, _, done, err := s.begin("SearchPOIs")
	if err != nil {
		return nil, err
	}
	defer done()
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return []model.POI{}, nil
	}
	list := st.sortedPOIs(func(p model.POI) bool {
		n := strings.ToLower(p.Name)
		return strings.Contains(n, q) || strings.Contains(q, n)
	})
	sort.SliceStable(list, func(i, j int) bool { return len(list[i].Name) < len(list[j].Name) })
	if len(list) > limit {
		list = list[:limit]
	}
	return list, nil
}

func (s *memStore) FindPOIByNameAndCoordinates(ctx context.Context, name string, coords model.Coordinates) (*model.POI, error) {
	st, _, done, err := s.begin("FindPOIByNameAndCoordinates")
	if err != nil {
		return nil, err
	}
	defer done()
	q := strings.ToLower(strings.TrimSpace(name))
	list := st.sortedPOIs(func(p model.POI) bool {
		c := p.Coordinates()
		return strings.ToLower(p.Name) == q && c != nil &&
			abs(c.Longitude-coords.Longitude) < 1e-5 && abs(c.Latitude-coords.Latitude) < 1e-5
	})
	if len(list) == 0 {
		return nil, nil
	}
	return &list[0], nil
}

func (s *memStore) FindCoordinatelessPOI(ctx context.Context, name string) (*model.POI, error) {
	st, _, done, err := s.begin("FindCoordinatelessPOI")
	if err != nil {
		return nil, err
	}
	defer done()
	q := strings.ToLower(strings.TrimSpace(name))
	list := st.sortedPOIs(func(p model.POI) bool {
		return strings.ToLower(p.Name) == q && p.Longitude == nil && p.Latitude == nil
	})
	if len(list) == 0 {
		return nil, nil
	}
	return &list[0], nil
}

func abs(f float64) float64 {
	if f < 0 {
		return -f
	}
	return f
}

// ---------- snapshots / forks / actions / users ----------

func (s *memStore) NextSnapshotVersion(ctx context.Context, itineraryID uuid.UUID) (int, error) {
	st, _, done, err := s.begin("NextSnapshotVersion")
	if err != nil {
		return 0, err
	}
	defer done()
	latest := 0
	for _, snap := range st.snapshots {
		if snap.ItineraryID == itineraryID && snap.VersionNo > latest {
			latest = snap.VersionNo
		}
	}
	return latest + 1, nil
}

func (s *memStore) CreateSnapshot(ctx context.Context, snap *model.Snapshot) error {
	st, now, done, err := s.begin("CreateSnapshot")
	if err != nil {
		return err
	}
	defer done()
	for _, other := range st.snapshots {
		if other.ItineraryID == snap.ItineraryID && other.VersionNo == snap.VersionNo {
			return pkgerrors.Definition{Code: "DUPLICATE", Message: "duplicate snapshot version"}
		}
	}
	if snap.ID == uuid.Nil {
		snap.ID = uuid.New()
	}
	snap.CreatedAt = now
	st.snapshots[snap.ID] = *snap
	return nil
}

func (s *memStore) GetSnapshot(ctx context.Context, id uuid.UUID) (*model.Snapshot, error) {
	st, _, done, err := s.begin("GetSnapshot")
	if err != nil {
		return nil, err
	}
	defer done()
	snap, ok := st.snapshots[id]
	if !ok {
		return nil, pkgerrors.SnapshotNotFound
	}
	return &snap, nil
}

func (s *memStore) LatestSnapshot(ctx context.Context, itineraryID uuid.UUID) (*model.Snapshot, error) {
	st, _, done, err := s.begin("LatestSnapshot")
	if err != nil {
		return nil, err
	}
	defer done()
	var latest *model.Snapshot
	for _, snap := range st.snapshots {
		if snap.ItineraryID == itineraryID && (latest == nil || snap.VersionNo > latest.VersionNo) {
			cp := snap
			latest = &cp
		}
	}
	return latest, nil
}

func (s *memStore) CreateFork(ctx context.Context, f *model.ItineraryFork) error {
	st, now, done, err := s.begin("CreateFork")
	if err != nil {
		return err
	}
	defer done()
	if f.ID == uuid.Nil {
		f.ID = uuid.New()
	}
	f.CreatedAt = now
	st.forks = append(st.forks, *f)
	return nil
}

func (s *memStore) ReconcileForkedCounts(ctx context.Context) (int64, error) {
	st, _, done, err := s.begin("ReconcileForkedCounts")
	if err != nil {
		return 0, err
	}
	defer done()
	counts := map[uuid.UUID]int64{}
	for _, f := range st.forks {
		counts[f.SourceItineraryID]++
	}
	var fixed int64
	for id, it := range st.itineraries {
		if it.ForkedCount != counts[id] {
			it.ForkedCount = counts[id]
			st.itineraries[id] = it
			fixed++
		}
	}
	return fixed, nil
}

func (s *memStore) CreateDiffActions(ctx context.Context, actions []model.DiffAction) error {
	st, now, done, err := s.begin("CreateDiffActions")
	if err != nil {
		return err
	}
	defer done()
	for _, a := range actions {
		if a.ID == uuid.Nil {
			a.ID = uuid.New()
		}
		if a.CreatedAt.IsZero() {
			a.CreatedAt = now
		}
		st.actions = append(st.actions, a)
	}
	return nil
}

func (s *memStore) ListDiffActions(ctx context.Context, itineraryID, snapshotID, actorID uuid.UUID) ([]model.DiffAction, error) {
	st, _, done, err := s.begin("ListDiffActions")
	if err != nil {
		return nil, err
	}
	defer done()
	list := make([]model.DiffAction, 0)
	for _, a := range st.actions {
		if a.ItineraryID == itineraryID && a.SourceSnapshotID == snapshotID && a.ActorUserID == actorID {
			list = append(list, a)
		}
	}
	sort.SliceStable(list, func(i, j int) bool { return list[i].CreatedAt.Before(list[j].CreatedAt) })
	return list, nil
}

func (s *memStore) GetNicknames(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]string, error) {
	st, _, done, err := s.begin("GetNicknames")
	if err != nil {
		return nil, err
	}
	defer done()
	result := map[uuid.UUID]string{}
	for _, id := range ids {
		if u, ok := st.users[id]; ok {
			result[id] = u.Nickname
		}
	}
	return result, nil
}

func (s *memStore) UpsertUser(ctx context.Context, u *model.User) error {
	st, now, done, err := s.begin("UpsertUser")
	if err != nil {
		return err
	}
	defer done()
	u.EnsureID()
	u.UpdatedAt = now
	if cur, ok := st.users[u.ID]; ok {
		u.CreatedAt = cur.CreatedAt
	} else {
		u.CreatedAt = now
	}
	st.users[u.ID] = *u
	return nil
}
