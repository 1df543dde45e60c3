package ws

import (
	"sync"
	"time"

	"log/slog"

	"github.com/tusharbansal19/Scratch/pkg/metrics"
)

// Registry tracks the live local connections per room and the instant each
// room last dropped to zero connections (consumed by the reaper). All maps
// are guarded by one RWMutex; connect/disconnect run on connection
// goroutines and the reaper reads from its own.
type Registry struct {
	log *slog.Logger

	mu         sync.RWMutex
	rooms      map[string]map[*Conn]struct{}
	emptySince map[string]time.Time
}

func NewRegistry(log *slog.Logger) *Registry {
	return &Registry{
		log:        log,
		rooms:      map[string]map[*Conn]struct{}{},
		emptySince: map[string]time.Time{},
	}
}

// Connect registers a connection under a room. A pending empty-since record
// is dropped: the room is active again.
func (r *Registry) Connect(c *Conn, roomID string) {
	r.mu.Lock()
	set := r.rooms[roomID]
	if set == nil {
		set = map[*Conn]struct{}{}
		r.rooms[roomID] = set
	}
	set[c] = struct{}{}
	delete(r.emptySince, roomID)
	n := len(set)
	r.mu.Unlock()

	metrics.ConnectionsActive.Inc()
	r.log.Info("room.connect", "room", roomID, "conns", n)
}

// Disconnect removes a connection. When the room's set empties, the moment
// is recorded for the reaper. Unknown rooms are a no-op.
func (r *Registry) Disconnect(c *Conn, roomID string) {
	r.mu.Lock()
	set, ok := r.rooms[roomID]
	if !ok {
		r.mu.Unlock()
		return
	}
	delete(set, c)
	n := len(set)
	if n == 0 {
		delete(r.rooms, roomID)
		r.emptySince[roomID] = time.Now()
	}
	r.mu.Unlock()

	metrics.ConnectionsActive.Dec()
	r.log.Info("room.disconnect", "room", roomID, "conns", n)
}

// BroadcastLocal delivers the payload to every local connection in the room.
// Delivery is best-effort and independent per connection; a full send buffer
// is logged and skipped, never disconnected here.
func (r *Registry) BroadcastLocal(roomID string, payload []byte) {
	r.mu.RLock()
	set := r.rooms[roomID]
	conns := make([]*Conn, 0, len(set))
	for c := range set {
		conns = append(conns, c)
	}
	r.mu.RUnlock()

	for _, c := range conns {
		if !c.Send(payload) {
			r.log.Warn("room.broadcast.drop", "room", roomID, "size", len(payload))
		}
	}
}

// IdleSince returns a copy of the empty-since records.
func (r *Registry) IdleSince() map[string]time.Time {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]time.Time, len(r.emptySince))
	for id, t := range r.emptySince {
		out[id] = t
	}
	return out
}

// ClearIdle forgets a room's empty-since record. Tracking resumes on the
// next disconnect-to-empty transition.
func (r *Registry) ClearIdle(roomID string) {
	r.mu.Lock()
	delete(r.emptySince, roomID)
	r.mu.Unlock()
}
