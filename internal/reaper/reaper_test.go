package reaper

import (
	"context"
	"io"
	"sync"
	"testing"
	"time"

	"log/slog"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tusharbansal19/Scratch/internal/store"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeLiveness struct {
	mu      sync.Mutex
	idle    map[string]time.Time
	cleared []string
}

func (f *fakeLiveness) IdleSince() map[string]time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make(map[string]time.Time, len(f.idle))
	for k, v := range f.idle {
		out[k] = v
	}
	return out
}

func (f *fakeLiveness) ClearIdle(roomID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.idle, roomID)
	f.cleared = append(f.cleared, roomID)
}

type fakeRoomStore struct {
	rooms   map[string][]byte
	deleted []string
}

func (f *fakeRoomStore) GetRoom(_ context.Context, id string) (store.Room, error) {
	snap, ok := f.rooms[id]
	if !ok {
		return store.Room{}, store.ErrRoomNotFound
	}
	return store.Room{ID: id, Snapshot: snap}, nil
}

func (f *fakeRoomStore) DeleteRoom(_ context.Context, id string) error {
	delete(f.rooms, id)
	f.deleted = append(f.deleted, id)
	return nil
}

func newReaper(reg Liveness, db RoomStore) *Reaper {
	return New(testLogger(), reg, db, time.Minute, 5*time.Minute)
}

func TestSweepDeletesAbandonedEmptyRoom(t *testing.T) {
	reg := &fakeLiveness{idle: map[string]time.Time{"r1": time.Now().Add(-10 * time.Minute)}}
	db := &fakeRoomStore{rooms: map[string][]byte{"r1": []byte(`[]`)}}

	newReaper(reg, db).sweep(context.Background())

	assert.Equal(t, []string{"r1"}, db.deleted)
	assert.Empty(t, reg.IdleSince())
}

func TestSweepKeepsRoomWithContent(t *testing.T) {
	reg := &fakeLiveness{idle: map[string]time.Time{"r1": time.Now().Add(-10 * time.Minute)}}
	db := &fakeRoomStore{rooms: map[string][]byte{"r1": []byte(`[{"id":"o1"}]`)}}

	newReaper(reg, db).sweep(context.Background())

	assert.Empty(t, db.deleted)
	require.Contains(t, db.rooms, "r1")
	// Tracking still stops until the next empty transition.
	assert.Empty(t, reg.IdleSince())
}

func TestSweepSkipsRoomsWithinGrace(t *testing.T) {
	reg := &fakeLiveness{idle: map[string]time.Time{"r1": time.Now().Add(-time.Minute)}}
	db := &fakeRoomStore{rooms: map[string][]byte{"r1": []byte(`[]`)}}

	newReaper(reg, db).sweep(context.Background())

	assert.Empty(t, db.deleted)
	// Record survives: the room gets checked again next sweep.
	assert.Contains(t, reg.IdleSince(), "r1")
	assert.Empty(t, reg.cleared)
}

func TestSweepDropsRecordForMissingRoom(t *testing.T) {
	reg := &fakeLiveness{idle: map[string]time.Time{"gone": time.Now().Add(-10 * time.Minute)}}
	db := &fakeRoomStore{rooms: map[string][]byte{}}

	newReaper(reg, db).sweep(context.Background())

	assert.Empty(t, db.deleted)
	assert.Empty(t, reg.IdleSince())
}

func TestEmptySnapshot(t *testing.T) {
	assert.True(t, emptySnapshot(nil))
	assert.True(t, emptySnapshot([]byte(`[]`)))
	assert.False(t, emptySnapshot([]byte(`[{"id":"o1"}]`)))
	// Never delete what we can't parse.
	assert.False(t, emptySnapshot([]byte(`{broken`)))
}

func TestRunStopsOnCancel(t *testing.T) {
	reg := &fakeLiveness{idle: map[string]time.Time{}}
	db := &fakeRoomStore{rooms: map[string][]byte{}}
	r := New(testLogger(), reg, db, 10*time.Millisecond, time.Minute)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		r.Run(ctx)
		close(done)
	}()

	time.Sleep(30 * time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("reaper did not stop")
	}
}
