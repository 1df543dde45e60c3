package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/tusharbansal19/Scratch/internal/persist"
)

var ErrRoomNotFound = errors.New("room not found")

// CreateRoom inserts an empty room owned by ownerID
func (p *Postgres) CreateRoom(ctx context.Context, id, ownerID string) (Room, error) {
	row := p.pool.QueryRow(ctx, `
		INSERT INTO rooms (id, owner_id)
		VALUES ($1, $2)
		RETURNING id, owner_id, snapshot, created_at, updated_at
	`, id, ownerID)
	return scanRoom(row)
}

// GetRoom fetches a room and its snapshot by id
func (p *Postgres) GetRoom(ctx context.Context, id string) (Room, error) {
	row := p.pool.QueryRow(ctx, `
		SELECT id, owner_id, snapshot, created_at, updated_at
		FROM rooms
		WHERE id = $1
	`, id)
	r, err := scanRoom(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Room{}, ErrRoomNotFound
	}
	return r, err
}

// DeleteRoom removes a room entirely. Missing rooms are not an error; the
// reaper can race a concurrent delete.
func (p *Postgres) DeleteRoom(ctx context.Context, id string) error {
	_, err := p.pool.Exec(ctx, `DELETE FROM rooms WHERE id = $1`, id)
	return err
}

// ReplaceSnapshot overwrites the whole snapshot array (used by the history
// id backfill and tests, not by the event pipeline)
func (p *Postgres) ReplaceSnapshot(ctx context.Context, id string, snapshot []byte) error {
	ct, err := p.pool.Exec(ctx, `
		UPDATE rooms
		SET snapshot = $2::jsonb, updated_at = now()
		WHERE id = $1
	`, id, string(snapshot))
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return ErrRoomNotFound
	}
	return nil
}

// ApplyMutations submits one room's ordered mutation batch as a single
// pipelined pgx batch. The implicit transaction stops at the first failure,
// so later mutations in the batch are never applied out of order.
func (p *Postgres) ApplyMutations(ctx context.Context, roomID string, muts []persist.Mutation) error {
	if len(muts) == 0 {
		return nil
	}

	b := &pgx.Batch{}
	for _, m := range muts {
		switch m.Op {
		case persist.OpAppend:
			arr, err := json.Marshal(m.Objects)
			if err != nil {
				return fmt.Errorf("encode append batch: %w", err)
			}
			b.Queue(`
				UPDATE rooms
				SET snapshot = snapshot || $2::jsonb, updated_at = now()
				WHERE id = $1
			`, roomID, string(arr))
		case persist.OpRemove:
			b.Queue(`
				UPDATE rooms
				SET snapshot = COALESCE(
					(SELECT jsonb_agg(e)
					 FROM jsonb_array_elements(snapshot) AS e
					 WHERE e->>'id' IS DISTINCT FROM $2),
					'[]'::jsonb
				), updated_at = now()
				WHERE id = $1
			`, roomID, m.ObjectID)
		case persist.OpClear:
			b.Queue(`
				UPDATE rooms
				SET snapshot = '[]'::jsonb, updated_at = now()
				WHERE id = $1
			`, roomID)
		}
	}

	br := p.pool.SendBatch(ctx, b)
	defer br.Close()
	for i := 0; i < b.Len(); i++ {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("mutation %d/%d: %w", i+1, b.Len(), err)
		}
	}
	p.log.Debug("room.mutations.applied", "room", roomID, "ops", b.Len())
	return br.Close()
}

func scanRoom(row pgx.Row) (Room, error) {
	var r Room
	if err := row.Scan(&r.ID, &r.OwnerID, &r.Snapshot, &r.CreatedAt, &r.UpdatedAt); err != nil {
		return Room{}, err
	}
	return r, nil
}
