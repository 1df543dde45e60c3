package persist

import "encoding/json"

// Edit event types carried in the {"type": ..., "data": ...} envelope.
const (
	TypeObjectAdded    = "object:added"
	TypeObjectModified = "object:modified"
	TypeObjectRemoved  = "object:removed"
	TypeBoardClear     = "board:clear"
	TypeBatch          = "batch"
)

// Event is the wire envelope for one edit. Data is a canvas object for
// add/modify/remove, absent for clear, and a list of sub-events for batch.
// The payload shape is not validated beyond the fields actually read.
type Event struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// persistable reports whether an event type mutates the room snapshot.
func persistable(t string) bool {
	switch t {
	case TypeObjectAdded, TypeObjectModified, TypeObjectRemoved, TypeBoardClear:
		return true
	}
	return false
}

// objectID pulls the caller-assigned id out of an opaque canvas object.
// Returns "" when the payload has no usable id.
func objectID(data json.RawMessage) string {
	var obj struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(data, &obj); err != nil {
		return ""
	}
	return obj.ID
}
