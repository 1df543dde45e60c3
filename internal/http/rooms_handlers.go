package httpx

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"log/slog"

	"github.com/google/uuid"

	"github.com/tusharbansal19/Scratch/internal/store"
	"github.com/tusharbansal19/Scratch/pkg/auth"
)

type RoomsAPI struct {
	DB  *store.Postgres
	Log *slog.Logger
}

type roomResponse struct {
	ID        string          `json:"id"`
	OwnerID   string          `json:"ownerId"`
	CreatedAt time.Time       `json:"createdAt"`
	Snapshot  json.RawMessage `json:"snapshot"`
}

// Create makes a new empty room with a short shareable id.
func (a *RoomsAPI) Create(w http.ResponseWriter, r *http.Request) {
	// 8 chars is enough for friendly URLs
	id := uuid.NewString()[:8]
	owner := auth.UserID(r.Context())

	room, err := a.DB.CreateRoom(r.Context(), id, owner)
	if err != nil {
		a.Log.Error("rooms.create", "err", err)
		http.Error(w, "could not create room", http.StatusInternalServerError)
		return
	}
	writeJSON(w, toRoomResponse(room))
}

// Get returns a room with its current snapshot
func (a *RoomsAPI) Get(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		http.Error(w, "id required", http.StatusBadRequest)
		return
	}

	room, err := a.DB.GetRoom(r.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrRoomNotFound) {
			http.Error(w, "room not found", http.StatusNotFound)
			return
		}
		a.Log.Error("rooms.get", "room", id, "err", err)
		http.Error(w, "could not load room", http.StatusInternalServerError)
		return
	}
	writeJSON(w, toRoomResponse(room))
}

func toRoomResponse(room store.Room) roomResponse {
	snap := json.RawMessage(room.Snapshot)
	if len(snap) == 0 {
		snap = json.RawMessage("[]")
	}
	return roomResponse{
		ID:        room.ID,
		OwnerID:   room.OwnerID,
		CreatedAt: room.CreatedAt,
		Snapshot:  snap,
	}
}
