package store

import (
	"github.com/m-mizutani/goerr/v2"
)

type migration struct {
	Version     int
	Description string
	SQL         string
}

var migrations = []migration{
	{
		Version:     1,
		Description: "memories: tiered memory records with optimistic concurrency",
		SQL: `
CREATE TABLE memories (
    id                  TEXT PRIMARY KEY,
    owner               TEXT NOT NULL,
    content             TEXT NOT NULL,
    tier                TEXT NOT NULL CHECK (tier IN ('working', 'short_term', 'long_term', 'core')),
    importance          REAL NOT NULL DEFAULT 0,

    -- Counters
    access_count        INTEGER NOT NULL DEFAULT 0,
    reinforcement_count INTEGER NOT NULL DEFAULT 0,
    contradiction_count INTEGER NOT NULL DEFAULT 0,
    correction_count    INTEGER NOT NULL DEFAULT 0,

    -- Access pattern signals (JSON-encoded)
    access_sessions     TEXT,
    access_times        TEXT,

    -- Instants (unix ms)
    created_at          INTEGER NOT NULL,
    tier_changed_at     INTEGER NOT NULL,
    last_accessed       INTEGER NOT NULL,
    last_contradicted   INTEGER,
    last_decayed        INTEGER NOT NULL,

    -- Last score breakdown
    score_access        REAL NOT NULL DEFAULT 0,
    score_stability     REAL NOT NULL DEFAULT 0,
    score_engagement    REAL NOT NULL DEFAULT 0,
    score_semantic      REAL NOT NULL DEFAULT 0,
    score_composite     REAL NOT NULL DEFAULT 0,
    score_degraded      INTEGER NOT NULL DEFAULT 0,

    -- Optimistic concurrency token
    version             INTEGER NOT NULL DEFAULT 1
);

CREATE INDEX idx_memories_owner      ON memories(owner);
CREATE INDEX idx_memories_owner_tier ON memories(owner, tier);
CREATE INDEX idx_memories_accessed   ON memories(last_accessed DESC);
`,
	},
	{
		Version:     2,
		Description: "score_history: append-only promotion score audit",
		SQL: `
CREATE TABLE score_history (
    id          INTEGER PRIMARY KEY,
    memory_id   TEXT NOT NULL,
    composite   REAL NOT NULL,
    recorded_at INTEGER NOT NULL,

    FOREIGN KEY (memory_id) REFERENCES memories(id) ON DELETE CASCADE
);

CREATE INDEX idx_history_memory ON score_history(memory_id, recorded_at);
`,
	},
	{
		Version:     3,
		Description: "access_events: per-trigger mutation attribution",
		SQL: `
CREATE TABLE access_events (
    id          INTEGER PRIMARY KEY,
    memory_id   TEXT NOT NULL,
    owner       TEXT NOT NULL,
    session_id  TEXT,
    kind        TEXT NOT NULL CHECK (kind IN ('read', 'reinforcement', 'contradiction')),
    created_at  INTEGER NOT NULL,

    FOREIGN KEY (memory_id) REFERENCES memories(id) ON DELETE CASCADE
);

CREATE INDEX idx_events_memory ON access_events(memory_id);
CREATE INDEX idx_events_owner  ON access_events(owner, created_at DESC);
`,
	},
}

func (db *DB) migrate() error {
	// Create schema_versions table if it doesn't exist
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_versions (
			version     INTEGER PRIMARY KEY,
			description TEXT NOT NULL,
			applied_at  INTEGER NOT NULL DEFAULT (strftime('%s', 'now') * 1000)
		)
	`)
	if err != nil {
		return goerr.Wrap(err, "create schema_versions")
	}

	for _, m := range migrations {
		var count int
		err := db.QueryRow("SELECT COUNT(*) FROM schema_versions WHERE version = ?", m.Version).Scan(&count)
		if err != nil {
			return goerr.Wrap(err, "check migration", goerr.V("version", m.Version))
		}
		if count > 0 {
			continue
		}

		tx, err := db.Begin()
		if err != nil {
			return goerr.Wrap(err, "begin migration", goerr.V("version", m.Version))
		}

		if _, err := tx.Exec(m.SQL); err != nil {
			tx.Rollback()
			return goerr.Wrap(err, "apply migration", goerr.V("version", m.Version), goerr.V("description", m.Description))
		}

		if _, err := tx.Exec(
			"INSERT INTO schema_versions (version, description) VALUES (?, ?)",
			m.Version, m.Description,
		); err != nil {
			tx.Rollback()
			return goerr.Wrap(err, "record migration", goerr.V("version", m.Version))
		}

		if err := tx.Commit(); err != nil {
			return goerr.Wrap(err, "commit migration", goerr.V("version", m.Version))
		}
	}

	return nil
}

// SchemaVersion returns the current schema version.
func (db *DB) SchemaVersion() (int, error) {
	var version int
	err := db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_versions").Scan(&version)
	return version, err
}
