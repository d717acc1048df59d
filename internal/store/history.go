package store

import (
	"context"
	"time"

	"github.com/m-mizutani/goerr/v2"

	"github.com/lazypower/retain/internal/model"
)

// AppendScore records one promotion-score observation. The history is
// append-only and purely observational: it is written during cooldowns too.
func (db *DB) AppendScore(ctx context.Context, memoryID string, composite float64, at time.Time) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO score_history (memory_id, composite, recorded_at)
		VALUES (?, ?, ?)
	`, memoryID, composite, timeToMs(at))
	if err != nil {
		return goerr.Wrap(err, "append score", goerr.V("memory_id", memoryID))
	}
	return nil
}

// ScoreHistory returns the most recent score points for a memory, newest first.
func (db *DB) ScoreHistory(ctx context.Context, memoryID string, limit int) ([]model.ScorePoint, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT memory_id, composite, recorded_at
		FROM score_history WHERE memory_id = ?
		ORDER BY recorded_at DESC LIMIT ?
	`, memoryID, limit)
	if err != nil {
		return nil, goerr.Wrap(err, "score history", goerr.V("memory_id", memoryID))
	}
	defer rows.Close()

	var points []model.ScorePoint
	for rows.Next() {
		var p model.ScorePoint
		var recordedAt int64
		if err := rows.Scan(&p.MemoryID, &p.Composite, &recordedAt); err != nil {
			return nil, goerr.Wrap(err, "scan score point")
		}
		p.RecordedAt = msToTime(recordedAt)
		points = append(points, p)
	}
	return points, rows.Err()
}

// OwnerScoreSummary returns the history entry count and average composite
// across one owner's memories.
func (db *DB) OwnerScoreSummary(ctx context.Context, owner string) (entries int, avg float64, err error) {
	err = db.QueryRowContext(ctx, `
		SELECT COUNT(*), COALESCE(AVG(h.composite), 0)
		FROM score_history h
		JOIN memories m ON m.id = h.memory_id
		WHERE m.owner = ?
	`, owner).Scan(&entries, &avg)
	if err != nil {
		return 0, 0, goerr.Wrap(err, "owner score summary", goerr.V("owner", owner))
	}
	return entries, avg, nil
}
