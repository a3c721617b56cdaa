package queue

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"Atlas/internal/model"
	pkgerrors "Atlas/pkg/errors"
)

type fakeCounter struct {
	mu     sync.Mutex
	counts map[uuid.UUID]int64
	err    error
}

func (f *fakeCounter) IncrementForkedCount(ctx context.Context, id uuid.UUID, delta int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	if f.counts == nil {
		f.counts = make(map[uuid.UUID]int64)
	}
	f.counts[id] += delta
	return nil
}

type fakeMarker struct {
	mu     sync.Mutex
	marks  map[string]string
	tryErr error
}

func newFakeMarker() *fakeMarker {
	return &fakeMarker{marks: make(map[string]string)}
}

func (f *fakeMarker) TryMark(ctx context.Context, id string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.tryErr != nil {
		return false, f.tryErr
	}
	if _, ok := f.marks[id]; ok {
		return false, nil
	}
	f.marks[id] = "processing"
	return true, nil
}

func (f *fakeMarker) MarkDone(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.marks[id] = "completed"
	return nil
}

func (f *fakeMarker) Unmark(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.marks, id)
	return nil
}

func forkedBody(t *testing.T, msgID string, source uuid.UUID) []byte {
	t.Helper()
	body, err := json.Marshal(model.ItineraryForkedMessage{
		MessageID:         msgID,
		SourceItineraryID: source,
		SourceSnapshotID:  uuid.New(),
		ForkedItineraryID: uuid.New(),
		ForkedByUserID:    uuid.New(),
	})
	require.NoError(t, err)
	return body
}

func TestForkedCountHandlerIncrementsOnce(t *testing.T) {
	counter := &fakeCounter{}
	marker := newFakeMarker()
	h := NewForkedCountHandler(counter, marker)
	source := uuid.New()
	body := forkedBody(t, "fork_1", source)

	require.NoError(t, h.Handle(context.Background(), body))

	err := h.Handle(context.Background(), body)
	var skip *pkgerrors.SkipMessageError
	assert.True(t, errors.As(err, &skip))

	assert.Equal(t, int64(1), counter.counts[source])
	assert.Equal(t, "completed", marker.marks["fork_1"])
}

func TestForkedCountHandlerUnmarksOnFailure(t *testing.T) {
	counter := &fakeCounter{err: errors.New("db down")}
	marker := newFakeMarker()
	h := NewForkedCountHandler(counter, marker)
	source := uuid.New()
	body := forkedBody(t, "fork_2", source)

	err := h.Handle(context.Background(), body)
	require.Error(t, err)
	var skip *pkgerrors.SkipMessageError
	assert.False(t, errors.As(err, &skip))
	assert.NotContains(t, marker.marks, "fork_2")

	// 重投后可以成功
	counter.err = nil
	require.NoError(t, h.Handle(context.Background(), body))
	assert.Equal(t, int64(1), counter.counts[source])
}

func TestForkedCountHandlerSkipsMalformed(t *testing.T) {
	h := NewForkedCountHandler(&fakeCounter{}, newFakeMarker())

	var skip *pkgerrors.SkipMessageError
	assert.True(t, errors.As(h.Handle(context.Background(), []byte("{not json")), &skip))
	assert.True(t, errors.As(h.Handle(context.Background(), []byte(`{"message_id":""}`)), &skip))
}

func TestForkedCountHandlerProceedsWhenMarkerFails(t *testing.T) {
	counter := &fakeCounter{}
	marker := newFakeMarker()
	marker.tryErr = errors.New("redis down")
	h := NewForkedCountHandler(counter, marker)
	source := uuid.New()

	require.NoError(t, h.Handle(context.Background(), forkedBody(t, "fork_3", source)))
	assert.Equal(t, int64(1), counter.counts[source])
}
