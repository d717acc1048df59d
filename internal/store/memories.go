package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/m-mizutani/goerr/v2"

	"github.com/lazypower/retain/internal/model"
)

const memoryColumns = `id, owner, content, tier, importance,
	access_count, reinforcement_count, contradiction_count, correction_count,
	access_sessions, access_times,
	created_at, tier_changed_at, last_accessed, last_contradicted, last_decayed,
	score_access, score_stability, score_engagement, score_semantic, score_composite, score_degraded,
	version`

func timeToMs(t time.Time) int64 { return t.UnixMilli() }

func msToTime(ms int64) time.Time { return time.UnixMilli(ms).UTC() }

func encodeJSON(v any) string {
	data, err := json.Marshal(v)
	if err != nil {
		return ""
	}
	return string(data)
}

// CreateMemory inserts a new memory record at version 1.
func (db *DB) CreateMemory(ctx context.Context, m *model.Memory) error {
	var contradicted *int64
	if m.LastContradicted != nil {
		v := timeToMs(*m.LastContradicted)
		contradicted = &v
	}

	_, err := db.ExecContext(ctx, `
		INSERT INTO memories (`+memoryColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 1)
	`, m.ID, m.Owner, m.Content, string(m.Tier), m.Importance,
		m.AccessCount, m.ReinforcementCount, m.ContradictionCount, m.CorrectionCount,
		encodeJSON(m.AccessSessions), encodeJSON(m.AccessTimes),
		timeToMs(m.CreatedAt), timeToMs(m.TierChangedAt), timeToMs(m.LastAccessedAt), contradicted, timeToMs(m.LastDecayedAt),
		m.Score.AccessPattern, m.Score.ContentStability, m.Score.UserEngagement,
		m.Score.SemanticImportance, m.Score.Composite, boolToInt(m.Score.Degraded))
	if err != nil {
		return goerr.Wrap(err, "create memory", goerr.V("id", m.ID))
	}
	m.Version = 1
	return nil
}

// GetMemory returns a memory by id, or model.ErrNotFound.
func (db *DB) GetMemory(ctx context.Context, id string) (*model.Memory, error) {
	row := db.QueryRowContext(ctx, `
		SELECT `+memoryColumns+` FROM memories WHERE id = ?
	`, id)

	m, err := scanMemory(row)
	if err == sql.ErrNoRows {
		return nil, goerr.Wrap(model.ErrNotFound, "get memory", goerr.V("id", id))
	}
	if err != nil {
		return nil, goerr.Wrap(err, "get memory", goerr.V("id", id))
	}
	return m, nil
}

// UpdateMemory persists a modified memory with optimistic concurrency:
// the write only lands if the stored version still matches m.Version.
// Returns model.ErrConflict on a lost race, model.ErrNotFound if the
// record was deleted underneath the caller.
func (db *DB) UpdateMemory(ctx context.Context, m *model.Memory) error {
	var contradicted *int64
	if m.LastContradicted != nil {
		v := timeToMs(*m.LastContradicted)
		contradicted = &v
	}

	result, err := db.ExecContext(ctx, `
		UPDATE memories SET
			content = ?, tier = ?, importance = ?,
			access_count = ?, reinforcement_count = ?, contradiction_count = ?, correction_count = ?,
			access_sessions = ?, access_times = ?,
			tier_changed_at = ?, last_accessed = ?, last_contradicted = ?, last_decayed = ?,
			score_access = ?, score_stability = ?, score_engagement = ?, score_semantic = ?,
			score_composite = ?, score_degraded = ?,
			version = version + 1
		WHERE id = ? AND version = ?
	`, m.Content, string(m.Tier), m.Importance,
		m.AccessCount, m.ReinforcementCount, m.ContradictionCount, m.CorrectionCount,
		encodeJSON(m.AccessSessions), encodeJSON(m.AccessTimes),
		timeToMs(m.TierChangedAt), timeToMs(m.LastAccessedAt), contradicted, timeToMs(m.LastDecayedAt),
		m.Score.AccessPattern, m.Score.ContentStability, m.Score.UserEngagement, m.Score.SemanticImportance,
		m.Score.Composite, boolToInt(m.Score.Degraded),
		m.ID, m.Version)
	if err != nil {
		return goerr.Wrap(err, "update memory", goerr.V("id", m.ID))
	}

	rows, _ := result.RowsAffected()
	if rows == 0 {
		var exists int
		if err := db.QueryRowContext(ctx, "SELECT COUNT(*) FROM memories WHERE id = ?", m.ID).Scan(&exists); err != nil {
			return goerr.Wrap(err, "check memory existence", goerr.V("id", m.ID))
		}
		if exists == 0 {
			return goerr.Wrap(model.ErrNotFound, "update memory", goerr.V("id", m.ID))
		}
		return goerr.Wrap(model.ErrConflict, "update memory", goerr.V("id", m.ID), goerr.V("version", m.Version))
	}

	m.Version++
	return nil
}

// DeleteMemory hard-deletes a memory. History and events cascade.
func (db *DB) DeleteMemory(ctx context.Context, id string) error {
	result, err := db.ExecContext(ctx, "DELETE FROM memories WHERE id = ?", id)
	if err != nil {
		return goerr.Wrap(err, "delete memory", goerr.V("id", id))
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return goerr.Wrap(model.ErrNotFound, "delete memory", goerr.V("id", id))
	}
	return nil
}

// ListByOwner returns all of one owner's memories, most important first.
func (db *DB) ListByOwner(ctx context.Context, owner string) ([]model.Memory, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT `+memoryColumns+` FROM memories WHERE owner = ?
		ORDER BY importance DESC, last_accessed DESC
	`, owner)
	if err != nil {
		return nil, goerr.Wrap(err, "list by owner", goerr.V("owner", owner))
	}
	defer rows.Close()
	return scanMemories(rows)
}

// ListOwners returns every owner scope present in the store.
func (db *DB) ListOwners(ctx context.Context) ([]string, error) {
	rows, err := db.QueryContext(ctx, "SELECT DISTINCT owner FROM memories ORDER BY owner")
	if err != nil {
		return nil, goerr.Wrap(err, "list owners")
	}
	defer rows.Close()

	var owners []string
	for rows.Next() {
		var o string
		if err := rows.Scan(&o); err != nil {
			return nil, goerr.Wrap(err, "scan owner")
		}
		owners = append(owners, o)
	}
	return owners, rows.Err()
}

// DeleteOwner removes all of one owner's memories. Returns the count removed.
func (db *DB) DeleteOwner(ctx context.Context, owner string) (int, error) {
	result, err := db.ExecContext(ctx, "DELETE FROM memories WHERE owner = ?", owner)
	if err != nil {
		return 0, goerr.Wrap(err, "delete owner memories", goerr.V("owner", owner))
	}
	n, _ := result.RowsAffected()
	return int(n), nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanMemory(row rowScanner) (*model.Memory, error) {
	var m model.Memory
	var tier string
	var sessions, times sql.NullString
	var createdAt, tierChangedAt, lastAccessed, lastDecayed int64
	var lastContradicted sql.NullInt64
	var degraded int

	err := row.Scan(&m.ID, &m.Owner, &m.Content, &tier, &m.Importance,
		&m.AccessCount, &m.ReinforcementCount, &m.ContradictionCount, &m.CorrectionCount,
		&sessions, &times,
		&createdAt, &tierChangedAt, &lastAccessed, &lastContradicted, &lastDecayed,
		&m.Score.AccessPattern, &m.Score.ContentStability, &m.Score.UserEngagement,
		&m.Score.SemanticImportance, &m.Score.Composite, &degraded,
		&m.Version)
	if err != nil {
		return nil, err
	}

	m.Tier = model.Tier(tier)
	m.CreatedAt = msToTime(createdAt)
	m.TierChangedAt = msToTime(tierChangedAt)
	m.LastAccessedAt = msToTime(lastAccessed)
	m.LastDecayedAt = msToTime(lastDecayed)
	m.Score.Degraded = degraded != 0
	if lastContradicted.Valid {
		t := msToTime(lastContradicted.Int64)
		m.LastContradicted = &t
	}
	if sessions.Valid && sessions.String != "" {
		json.Unmarshal([]byte(sessions.String), &m.AccessSessions)
	}
	if times.Valid && times.String != "" {
		json.Unmarshal([]byte(times.String), &m.AccessTimes)
	}
	return &m, nil
}

func scanMemories(rows *sql.Rows) ([]model.Memory, error) {
	var memories []model.Memory
	for rows.Next() {
		m, err := scanMemory(rows)
		if err != nil {
			return nil, goerr.Wrap(err, "scan memory row")
		}
		memories = append(memories, *m)
	}
	return memories, rows.Err()
}
