package ws

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"log/slog"

	"github.com/google/uuid"

	"github.com/tusharbansal19/Scratch/internal/bus"
	"github.com/tusharbansal19/Scratch/internal/persist"
	"github.com/tusharbansal19/Scratch/internal/store"
	"github.com/tusharbansal19/Scratch/pkg/metrics"
)

// RoomStore is the slice of the store the websocket path needs.
type RoomStore interface {
	GetRoom(ctx context.Context, id string) (store.Room, error)
	ReplaceSnapshot(ctx context.Context, id string, snapshot []byte) error
}

// Hub ties one connection's lifecycle together: register with the local
// registry, send history, then relay every inbound frame to the fanout bus
// and the persistence queue. Neither relay step waits on storage.
type Hub struct {
	log    *slog.Logger
	bus    bus.Bus
	reg    *Registry
	db     RoomStore
	worker *persist.Worker
}

func NewHub(log *slog.Logger, b bus.Bus, reg *Registry, db RoomStore, worker *persist.Worker) *Hub {
	return &Hub{log: log, bus: b, reg: reg, db: db, worker: worker}
}

// ServeWS handles a new /ws/{room} connection
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	roomID := r.PathValue("room")
	if roomID == "" {
		http.Error(w, "room required", http.StatusBadRequest)
		return
	}

	conn, err := Accept(w, r)
	if err != nil {
		h.log.Error("ws.accept", "err", err)
		return
	}

	c := NewConn(conn, roomID)
	h.reg.Connect(c, roomID)

	// Outbound writer
	go c.WriteLoop(ctx)

	// Full current snapshot first, then the live stream
	h.sendHistory(ctx, c, roomID)

	// Inbound reader: publish for fanout, queue for persistence, resume.
	for {
		payload, ok := c.Read(ctx)
		if !ok {
			break
		}
		if err := h.bus.Publish(ctx, bus.Channel(roomID), payload); err != nil {
			h.log.Error("ws.publish", "room", roomID, "err", err)
		} else {
			metrics.BusPublished.Inc()
		}
		h.worker.Enqueue(roomID, payload)
	}

	h.reg.Disconnect(c, roomID)
	_ = c.Close()
}

// sendHistory loads the room snapshot and sends it as a single history
// message. Objects that predate id assignment get a fresh uuid, and the
// repaired snapshot is written back once.
func (h *Hub) sendHistory(ctx context.Context, c *Conn, roomID string) {
	room, err := h.db.GetRoom(ctx, roomID)
	if err != nil {
		if !errors.Is(err, store.ErrRoomNotFound) {
			h.log.Error("ws.history.load", "room", roomID, "err", err)
		}
		return
	}

	var objects []map[string]any
	if len(room.Snapshot) > 0 {
		if err := json.Unmarshal(room.Snapshot, &objects); err != nil {
			h.log.Error("ws.history.decode", "room", roomID, "err", err)
			return
		}
	}
	if objects == nil {
		objects = []map[string]any{}
	}

	dirty := false
	for _, obj := range objects {
		if id, _ := obj["id"].(string); id == "" {
			obj["id"] = uuid.NewString()
			dirty = true
		}
	}
	if dirty {
		repaired, err := json.Marshal(objects)
		if err == nil {
			err = h.db.ReplaceSnapshot(ctx, roomID, repaired)
		}
		if err != nil {
			h.log.Error("ws.history.backfill", "room", roomID, "err", err)
		}
	}

	msg, err := json.Marshal(map[string]any{
		"type": "history",
		"data": objects,
	})
	if err != nil {
		h.log.Error("ws.history.encode", "room", roomID, "err", err)
		return
	}
	if !c.Send(msg) {
		h.log.Warn("ws.history.drop", "room", roomID)
	}
}
