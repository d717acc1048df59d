package store

import (
	"context"
	"time"

	"github.com/m-mizutani/goerr/v2"

	"github.com/lazypower/retain/internal/model"
)

// AddEvent records one access/reinforcement/contradiction event. Every
// counter mutation on a memory is attributed to exactly one such event
// (maintenance sweeps mutate without events; they are attributed by the
// sweep report instead).
func (db *DB) AddEvent(ctx context.Context, ev model.Event) error {
	at := ev.CreatedAt
	if at.IsZero() {
		at = time.Now()
	}
	_, err := db.ExecContext(ctx, `
		INSERT INTO access_events (memory_id, owner, session_id, kind, created_at)
		VALUES (?, ?, ?, ?, ?)
	`, ev.MemoryID, ev.Owner, ev.SessionID, string(ev.Kind), timeToMs(at))
	if err != nil {
		return goerr.Wrap(err, "add event", goerr.V("memory_id", ev.MemoryID), goerr.V("kind", ev.Kind))
	}
	return nil
}

// EventsByMemory returns all events for one memory, oldest first.
func (db *DB) EventsByMemory(ctx context.Context, memoryID string) ([]model.Event, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT id, memory_id, owner, session_id, kind, created_at
		FROM access_events WHERE memory_id = ? ORDER BY created_at
	`, memoryID)
	if err != nil {
		return nil, goerr.Wrap(err, "events by memory", goerr.V("memory_id", memoryID))
	}
	defer rows.Close()

	var events []model.Event
	for rows.Next() {
		var ev model.Event
		var kind string
		var createdAt int64
		if err := rows.Scan(&ev.ID, &ev.MemoryID, &ev.Owner, &ev.SessionID, &kind, &createdAt); err != nil {
			return nil, goerr.Wrap(err, "scan event")
		}
		ev.Kind = model.EventKind(kind)
		ev.CreatedAt = msToTime(createdAt)
		events = append(events, ev)
	}
	return events, rows.Err()
}

// CountOwnerEvents returns how many events of the given kind an owner has.
func (db *DB) CountOwnerEvents(ctx context.Context, owner string, kind model.EventKind) (int, error) {
	var count int
	err := db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM access_events WHERE owner = ? AND kind = ?
	`, owner, string(kind)).Scan(&count)
	if err != nil {
		return 0, goerr.Wrap(err, "count owner events", goerr.V("owner", owner))
	}
	return count, nil
}
