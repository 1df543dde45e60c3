package persist

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"log/slog"

	"github.com/tusharbansal19/Scratch/pkg/metrics"
)

// Mutation op kinds, applied in order within one room's batch.
type Op int

const (
	OpAppend Op = iota // append Objects to the snapshot
	OpRemove           // remove the object with ObjectID
	OpClear            // replace the snapshot with an empty array
)

type Mutation struct {
	Op       Op
	Objects  []json.RawMessage // OpAppend only
	ObjectID string            // OpRemove only
}

// Mutator applies one room's ordered mutation batch. Implementations must
// stop at the first failing mutation; rooms are independent of each other.
type Mutator interface {
	ApplyMutations(ctx context.Context, roomID string, muts []Mutation) error
}

type buffered struct {
	roomID string
	ev     Event
}

// Worker drains the edit-event queue, buffers, and batches snapshot writes
// so the websocket hot path never waits on storage.
type Worker struct {
	log   *slog.Logger
	store Mutator

	q          *queue
	batchSize  int
	flushEvery time.Duration

	buf []buffered
}

func NewWorker(log *slog.Logger, store Mutator, batchSize int, flushEvery time.Duration) *Worker {
	if batchSize <= 0 {
		batchSize = 50
	}
	if flushEvery <= 0 {
		flushEvery = 500 * time.Millisecond
	}
	return &Worker{
		log:        log,
		store:      store,
		q:          newQueue(),
		batchSize:  batchSize,
		flushEvery: flushEvery,
	}
}

// Enqueue hands a raw inbound frame to the worker. Never blocks the caller.
func (w *Worker) Enqueue(roomID string, raw []byte) {
	w.q.push(item{roomID: roomID, raw: raw})
}

// Run processes the queue until ctx is cancelled, then flushes whatever is
// still buffered. A panicking iteration is logged and retried after a pause
// rather than killing the worker.
func (w *Worker) Run(ctx context.Context) {
	w.log.Info("persist.started", "batch_size", w.batchSize, "flush_interval", w.flushEvery)
	for {
		err := w.loop(ctx)
		if ctx.Err() != nil {
			w.finalFlush(ctx)
			w.log.Info("persist.stopped", "queued", w.q.len())
			return
		}
		w.log.Error("persist.loop", "err", err)
		select {
		case <-time.After(time.Second):
		case <-ctx.Done():
		}
	}
}

func (w *Worker) loop(ctx context.Context) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()

	lastFlush := time.Now()
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		// Wait for the next item, but never past the scheduled flush.
		wait := w.flushEvery - time.Since(lastFlush)
		if wait < 0 {
			wait = 0
		}
		if it, ok := w.q.pop(ctx, wait); ok {
			w.accept(it)
		}
		if ctx.Err() != nil {
			// leave the buffer for the shutdown flush
			return ctx.Err()
		}

		if len(w.buf) >= w.batchSize || time.Since(lastFlush) >= w.flushEvery {
			w.flush(ctx)
			lastFlush = time.Now()
		}
	}
}

// accept decodes one queued frame and buffers its persistable events.
// Malformed frames and non-persistable types are dropped here; the fanout
// path has already relayed them verbatim.
func (w *Worker) accept(it item) {
	var ev Event
	if err := json.Unmarshal(it.raw, &ev); err != nil || ev.Type == "" {
		w.log.Debug("persist.drop.malformed", "room", it.roomID, "size", len(it.raw))
		return
	}

	switch {
	case ev.Type == TypeBatch:
		// Unwrap, keeping only add/modify sub-events. Remove and clear
		// inside a batch wrapper are not applied; see the pinning test
		// before changing this.
		var subs []Event
		if err := json.Unmarshal(ev.Data, &subs); err != nil {
			w.log.Debug("persist.drop.malformed", "room", it.roomID, "size", len(it.raw))
			return
		}
		for _, sub := range subs {
			if sub.Type == TypeObjectAdded || sub.Type == TypeObjectModified {
				w.buf = append(w.buf, buffered{roomID: it.roomID, ev: sub})
			}
		}
	case persistable(ev.Type):
		w.buf = append(w.buf, buffered{roomID: it.roomID, ev: ev})
	}
}

// flush groups buffered events by room and submits each room's ordered
// mutation batch. A failed room is logged and dropped; other rooms proceed.
func (w *Worker) flush(ctx context.Context) {
	if len(w.buf) == 0 {
		return
	}

	order := make([]string, 0, 4)
	grouped := make(map[string][]Event, 4)
	for _, b := range w.buf {
		if _, ok := grouped[b.roomID]; !ok {
			order = append(order, b.roomID)
		}
		grouped[b.roomID] = append(grouped[b.roomID], b.ev)
	}
	n := len(w.buf)
	w.buf = w.buf[:0]

	for _, roomID := range order {
		events := grouped[roomID]
		muts := translate(events)
		if len(muts) == 0 {
			continue
		}
		if err := w.store.ApplyMutations(ctx, roomID, muts); err != nil {
			w.log.Error("persist.flush.room", "room", roomID, "events", len(events), "err", err)
			continue
		}
		metrics.EventsPersisted.Add(float64(len(events)))
	}

	metrics.Flushes.Inc()
	w.log.Debug("persist.flush", "events", n, "rooms", len(order))
}

// finalFlush runs the shutdown drain with a fresh context since the run
// context is already cancelled.
func (w *Worker) finalFlush(ctx context.Context) {
	flushCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	w.flush(flushCtx)
}

// translate turns one room's ordered events into ordered storage mutations.
// Consecutive appends coalesce into a single OpAppend so a burst of adds is
// one write.
func translate(events []Event) []Mutation {
	var muts []Mutation

	appendObj := func(obj json.RawMessage) {
		if n := len(muts); n > 0 && muts[n-1].Op == OpAppend {
			muts[n-1].Objects = append(muts[n-1].Objects, obj)
			return
		}
		muts = append(muts, Mutation{Op: OpAppend, Objects: []json.RawMessage{obj}})
	}

	for _, ev := range events {
		switch ev.Type {
		case TypeObjectAdded:
			appendObj(ev.Data)
		case TypeObjectModified:
			// Remove-then-append keeps at most one object per id.
			id := objectID(ev.Data)
			if id == "" {
				continue
			}
			muts = append(muts, Mutation{Op: OpRemove, ObjectID: id})
			appendObj(ev.Data)
		case TypeObjectRemoved:
			id := objectID(ev.Data)
			if id == "" {
				continue
			}
			muts = append(muts, Mutation{Op: OpRemove, ObjectID: id})
		case TypeBoardClear:
			muts = append(muts, Mutation{Op: OpClear})
		}
	}
	return muts
}
