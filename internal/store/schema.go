package store

import (
	"database/sql"
	"errors"
	"fmt"
)

const (
	TableArtifacts = "agent_artifacts"
	TableEvidence  = "score_evidence"
	TableScores    = "qscore_history"
	TableActivity  = "agent_activity"
)

// Columns shared across tables.
const (
	ColID        = "id"
	ColUserID    = "user_id"
	ColAgentID   = "agent_id"
	ColCreatedAt = "created_at_unix_ms"
)

var schemaColumns = map[string][]string{
	TableArtifacts: {
		ColID, "conversation_id", ColUserID, ColAgentID, "artifact_type", "title", "content", ColCreatedAt,
	},
	TableEvidence: {
		ColID, ColUserID, "dimension", "evidence_type", "title", "description", "data_value",
		"status", "points_awarded", "reviewed_at", ColCreatedAt,
	},
	TableScores: {
		ColID, ColUserID, "assessment_id", "previous_score_id", "overall_score", "percentile", "grade",
		"market_score", "product_score", "gtm_score", "financial_score", "team_score", "traction_score",
		"data_source", "source_artifact_type", ColCreatedAt,
	},
	TableActivity: {
		ColID, ColUserID, ColAgentID, "action_type", "description", "metadata", ColCreatedAt,
	},
}

var schemaIndex = func() map[string]map[string]struct{} {
	out := make(map[string]map[string]struct{}, len(schemaColumns))
	for table, cols := range schemaColumns {
		set := make(map[string]struct{}, len(cols))
		for _, c := range cols {
			set[c] = struct{}{}
		}
		out[table] = set
	}
	return out
}()

func tableColumns(table string) (map[string]struct{}, error) {
	cols, ok := schemaIndex[table]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownColumn, table)
	}
	return cols, nil
}

func initSchema(db *sql.DB) error {
	if db == nil {
		return errors.New("nil db")
	}
	if _, err := db.Exec(`PRAGMA journal_mode=WAL;`); err != nil {
		return fmt.Errorf("pragma journal_mode: %w", err)
	}
	if _, err := db.Exec(`PRAGMA busy_timeout=3000;`); err != nil {
		return fmt.Errorf("pragma busy_timeout: %w", err)
	}
	return migrateSchema(db)
}

func migrateSchema(db *sql.DB) error {
	if db == nil {
		return errors.New("nil db")
	}
	const targetVersion = 1

	var v int
	if err := db.QueryRow(`PRAGMA user_version;`).Scan(&v); err != nil {
		return fmt.Errorf("pragma user_version: %w", err)
	}
	if v >= targetVersion {
		return nil
	}

	tx, err := db.Begin()
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	// score_evidence deliberately has no unique constraint on
	// (user_id, evidence_type, data_value): dedup is a read-then-write check.
	stmts := []string{
		`
CREATE TABLE IF NOT EXISTS agent_artifacts (
  id TEXT PRIMARY KEY,
  conversation_id TEXT,
  user_id TEXT NOT NULL,
  agent_id TEXT NOT NULL,
  artifact_type TEXT NOT NULL,
  title TEXT NOT NULL DEFAULT '',
  content TEXT NOT NULL DEFAULT '{}',
  created_at_unix_ms INTEGER NOT NULL
);`,
		`CREATE INDEX IF NOT EXISTS idx_agent_artifacts_user_created ON agent_artifacts(user_id, created_at_unix_ms DESC);`,
		`
CREATE TABLE IF NOT EXISTS score_evidence (
  id TEXT PRIMARY KEY,
  user_id TEXT NOT NULL,
  dimension TEXT NOT NULL,
  evidence_type TEXT NOT NULL,
  title TEXT NOT NULL DEFAULT '',
  description TEXT NOT NULL DEFAULT '',
  data_value TEXT NOT NULL DEFAULT '',
  status TEXT NOT NULL DEFAULT 'pending',
  points_awarded INTEGER NOT NULL DEFAULT 0,
  reviewed_at TEXT,
  created_at_unix_ms INTEGER NOT NULL
);`,
		`CREATE INDEX IF NOT EXISTS idx_score_evidence_user_type ON score_evidence(user_id, evidence_type, data_value);`,
		`
CREATE TABLE IF NOT EXISTS qscore_history (
  id TEXT PRIMARY KEY,
  user_id TEXT NOT NULL,
  assessment_id TEXT,
  previous_score_id TEXT,
  overall_score INTEGER NOT NULL DEFAULT 0,
  percentile INTEGER,
  grade TEXT NOT NULL DEFAULT 'F',
  market_score INTEGER NOT NULL DEFAULT 0,
  product_score INTEGER NOT NULL DEFAULT 0,
  gtm_score INTEGER NOT NULL DEFAULT 0,
  financial_score INTEGER NOT NULL DEFAULT 0,
  team_score INTEGER NOT NULL DEFAULT 0,
  traction_score INTEGER NOT NULL DEFAULT 0,
  data_source TEXT NOT NULL DEFAULT 'assessment',
  source_artifact_type TEXT,
  created_at_unix_ms INTEGER NOT NULL
);`,
		`CREATE INDEX IF NOT EXISTS idx_qscore_history_user_created ON qscore_history(user_id, created_at_unix_ms DESC);`,
		`
CREATE TABLE IF NOT EXISTS agent_activity (
  id TEXT PRIMARY KEY,
  user_id TEXT NOT NULL,
  agent_id TEXT NOT NULL,
  action_type TEXT NOT NULL,
  description TEXT NOT NULL DEFAULT '',
  metadata TEXT NOT NULL DEFAULT '{}',
  created_at_unix_ms INTEGER NOT NULL
);`,
		`CREATE INDEX IF NOT EXISTS idx_agent_activity_user_created ON agent_activity(user_id, created_at_unix_ms DESC);`,
	}
	for _, stmt := range stmts {
		if _, err := tx.Exec(stmt); err != nil {
			return err
		}
	}
	if _, err := tx.Exec(fmt.Sprintf(`PRAGMA user_version = %d;`, targetVersion)); err != nil {
		return err
	}
	return tx.Commit()
}
