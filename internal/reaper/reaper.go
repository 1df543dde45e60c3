package reaper

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"log/slog"

	"github.com/tusharbansal19/Scratch/internal/store"
	"github.com/tusharbansal19/Scratch/pkg/metrics"
)

// Liveness exposes the registry's empty-since records.
type Liveness interface {
	IdleSince() map[string]time.Time
	ClearIdle(roomID string)
}

// RoomStore is the slice of the store the reaper needs.
type RoomStore interface {
	GetRoom(ctx context.Context, id string) (store.Room, error)
	DeleteRoom(ctx context.Context, id string) error
}

// Reaper periodically deletes rooms that have had no connections for the
// grace period and hold no content. Storage is the authority on content;
// the in-memory record only nominates candidates.
type Reaper struct {
	log   *slog.Logger
	reg   Liveness
	db    RoomStore
	every time.Duration
	grace time.Duration
}

func New(log *slog.Logger, reg Liveness, db RoomStore, every, grace time.Duration) *Reaper {
	if every <= 0 {
		every = time.Minute
	}
	if grace <= 0 {
		grace = 5 * time.Minute
	}
	return &Reaper{log: log, reg: reg, db: db, every: every, grace: grace}
}

// Run sweeps on a fixed period until ctx is cancelled.
func (r *Reaper) Run(ctx context.Context) {
	t := time.NewTicker(r.every)
	defer t.Stop()
	r.log.Info("reaper.started", "every", r.every, "grace", r.grace)

	for {
		select {
		case <-ctx.Done():
			r.log.Info("reaper.stopped")
			return
		case <-t.C:
			r.sweep(ctx)
		}
	}
}

// sweep checks every room past the grace period exactly once. Whatever the
// outcome, the record is cleared afterwards; tracking resumes on the next
// empty transition. A reconnect clears the record before we get here, so an
// active room is never considered.
func (r *Reaper) sweep(ctx context.Context) {
	now := time.Now()
	for roomID, since := range r.reg.IdleSince() {
		if now.Sub(since) < r.grace {
			continue
		}

		room, err := r.db.GetRoom(ctx, roomID)
		switch {
		case errors.Is(err, store.ErrRoomNotFound):
			// already gone, just stop tracking
		case err != nil:
			r.log.Error("reaper.load", "room", roomID, "err", err)
		case emptySnapshot(room.Snapshot):
			if err := r.db.DeleteRoom(ctx, roomID); err != nil {
				r.log.Error("reaper.delete", "room", roomID, "err", err)
			} else {
				metrics.RoomsReaped.Inc()
				r.log.Info("reaper.room.deleted", "room", roomID, "idle", now.Sub(since))
			}
		}
		r.reg.ClearIdle(roomID)
	}
}

// emptySnapshot reports whether the stored snapshot holds no objects. An
// undecodable snapshot counts as content: never delete what we can't read.
func emptySnapshot(snapshot []byte) bool {
	if len(snapshot) == 0 {
		return true
	}
	var objects []json.RawMessage
	if err := json.Unmarshal(snapshot, &objects); err != nil {
		return false
	}
	return len(objects) == 0
}
