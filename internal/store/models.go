package store

import "time"

// Room is one collaborative canvas. Snapshot is the JSON array of canvas
// objects as stored; the store treats the objects themselves as opaque.
type Room struct {
	ID        string
	OwnerID   string
	Snapshot  []byte
	CreatedAt time.Time
	UpdatedAt time.Time
}
