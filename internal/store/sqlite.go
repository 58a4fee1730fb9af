package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/ppiankov/text2med/internal/model"
)

// Store persists runs, chunks, claims and traces in SQLite
type Store struct {
	db *sql.DB
}

// Open opens (creating if needed) the database at path and migrates it
func Open(ctx context.Context, path string) (*Store, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, eris.Wrapf(err, "store: create dir for %s", path)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, eris.Wrap(err, "store: open")
	}
	// One connection keeps pragmas effective and serializes batch writers
	db.SetMaxOpenConns(1)

	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			_ = db.Close()
			return nil, eris.Wrapf(err, "store: exec %s", pragma)
		}
	}

	s := &Store{db: db}
	if err := s.Migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

const migration = `
CREATE TABLE IF NOT EXISTS runs (
	id                TEXT PRIMARY KEY,
	kind              TEXT NOT NULL,
	started_at        DATETIME NOT NULL,
	raw_documents     INTEGER NOT NULL DEFAULT 0,
	text_chunks       INTEGER NOT NULL DEFAULT 0,
	raw_claims        INTEGER NOT NULL DEFAULT 0,
	final_claims      INTEGER NOT NULL DEFAULT 0,
	retrieval_matches INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS text_chunks (
	run_id        TEXT NOT NULL REFERENCES runs(id),
	chunk_id      TEXT NOT NULL,
	facility_id   TEXT NOT NULL,
	facility_name TEXT,
	country       TEXT,
	doc_id        TEXT,
	chunk_index   INTEGER,
	source_type   TEXT,
	source_ref    TEXT,
	origin_field  TEXT,
	chunk_text    TEXT NOT NULL,
	PRIMARY KEY (run_id, chunk_id)
);

CREATE TABLE IF NOT EXISTS claims_raw (
	run_id      TEXT NOT NULL REFERENCES runs(id),
	facility_id TEXT NOT NULL,
	capability  TEXT NOT NULL,
	status      TEXT NOT NULL,
	payload     TEXT NOT NULL,
	PRIMARY KEY (run_id, facility_id, capability)
);

CREATE TABLE IF NOT EXISTS claims (
	facility_id      TEXT NOT NULL,
	capability       TEXT NOT NULL,
	run_id           TEXT NOT NULL REFERENCES runs(id),
	status           TEXT NOT NULL,
	confidence       REAL NOT NULL,
	confidence_label TEXT NOT NULL,
	flags            TEXT NOT NULL,
	payload          TEXT NOT NULL,
	updated_at       DATETIME NOT NULL,
	PRIMARY KEY (facility_id, capability)
);

CREATE TABLE IF NOT EXISTS retrieval_matches (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	run_id      TEXT NOT NULL REFERENCES runs(id),
	facility_id TEXT NOT NULL,
	capability  TEXT NOT NULL,
	chunk_id    TEXT NOT NULL,
	doc_id      TEXT,
	source_type TEXT,
	source_ref  TEXT,
	match_type  TEXT NOT NULL,
	keyword     TEXT NOT NULL,
	score       REAL NOT NULL
);

CREATE TABLE IF NOT EXISTS anomalies (
	run_id      TEXT NOT NULL REFERENCES runs(id),
	facility_id TEXT NOT NULL,
	capability  TEXT NOT NULL,
	status      TEXT NOT NULL,
	flags       TEXT NOT NULL,
	confidence  REAL NOT NULL,
	notes       TEXT,
	PRIMARY KEY (run_id, facility_id, capability)
);

CREATE INDEX IF NOT EXISTS idx_claims_status ON claims(status);
CREATE INDEX IF NOT EXISTS idx_claims_capability ON claims(capability);
CREATE INDEX IF NOT EXISTS idx_matches_run_facility ON retrieval_matches(run_id, facility_id);
`

// Migrate creates missing tables and indexes
func (s *Store) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, migration)
	return eris.Wrap(err, "store: migrate")
}

// Close releases the database
func (s *Store) Close() error {
	return s.db.Close()
}

// SaveRun records a run summary, assigning a new id when RunID is empty
func (s *Store) SaveRun(ctx context.Context, run model.RunSummary) (string, error) {
	if run.RunID == "" {
		run.RunID = uuid.New().String()
	}
	if run.StartedAt.IsZero() {
		run.StartedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO runs (id, kind, started_at, raw_documents, text_chunks, raw_claims, final_claims, retrieval_matches)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
			raw_documents=excluded.raw_documents, text_chunks=excluded.text_chunks,
			raw_claims=excluded.raw_claims, final_claims=excluded.final_claims,
			retrieval_matches=excluded.retrieval_matches`,
		run.RunID, run.Kind, run.StartedAt.UTC(), run.RawDocuments, run.TextChunks,
		run.RawClaims, run.FinalClaims, run.Matches,
	)
	if err != nil {
		return "", eris.Wrapf(err, "store: save run %s", run.RunID)
	}
	return run.RunID, nil
}

// Runs lists recorded runs, newest first
func (s *Store) Runs(ctx context.Context) ([]model.RunSummary, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, kind, started_at, raw_documents, text_chunks, raw_claims, final_claims, retrieval_matches
		 FROM runs ORDER BY started_at DESC`)
	if err != nil {
		return nil, eris.Wrap(err, "store: query runs")
	}
	defer func() { _ = rows.Close() }()

	var runs []model.RunSummary
	for rows.Next() {
		var r model.RunSummary
		if err := rows.Scan(&r.RunID, &r.Kind, &r.StartedAt, &r.RawDocuments, &r.TextChunks,
			&r.RawClaims, &r.FinalClaims, &r.Matches); err != nil {
			return nil, eris.Wrap(err, "store: scan run")
		}
		runs = append(runs, r)
	}
	return runs, eris.Wrap(rows.Err(), "store: iterate runs")
}

// inTx runs fn inside a transaction with one prepared statement
func (s *Store) inTx(ctx context.Context, query string, fn func(*sql.Stmt) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "store: begin")
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, query)
	if err != nil {
		return eris.Wrap(err, "store: prepare")
	}
	defer func() { _ = stmt.Close() }()

	if err := fn(stmt); err != nil {
		return err
	}
	return eris.Wrap(tx.Commit(), "store: commit")
}

// SaveChunks stores the chunk table of a run
func (s *Store) SaveChunks(ctx context.Context, runID string, chunks []model.TextChunk) error {
	return s.inTx(ctx,
		`INSERT OR REPLACE INTO text_chunks
		 (run_id, chunk_id, facility_id, facility_name, country, doc_id, chunk_index, source_type, source_ref, origin_field, chunk_text)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		func(stmt *sql.Stmt) error {
			for _, c := range chunks {
				if _, err := stmt.ExecContext(ctx, runID, c.ChunkID, c.FacilityID, c.FacilityName, c.Country,
					c.DocID, c.ChunkIndex, c.SourceType, c.SourceRef, c.OriginField, c.Text); err != nil {
					return eris.Wrapf(err, "store: insert chunk %s", c.ChunkID)
				}
			}
			return nil
		})
}

// SaveRawClaims stores pre-verification claims of a run
func (s *Store) SaveRawClaims(ctx context.Context, runID string, claims []model.Claim) error {
	return s.inTx(ctx,
		`INSERT OR REPLACE INTO claims_raw (run_id, facility_id, capability, status, payload) VALUES (?, ?, ?, ?, ?)`,
		func(stmt *sql.Stmt) error {
			for i := range claims {
				payload, err := json.Marshal(claims[i])
				if err != nil {
					return eris.Wrap(err, "store: marshal raw claim")
				}
				if _, err := stmt.ExecContext(ctx, runID, claims[i].FacilityID, claims[i].Capability,
					string(claims[i].Status), string(payload)); err != nil {
					return eris.Wrapf(err, "store: insert raw claim %s/%s", claims[i].FacilityID, claims[i].Capability)
				}
			}
			return nil
		})
}

// SaveClaims upserts final claims; each (facility, capability) keeps one row
func (s *Store) SaveClaims(ctx context.Context, runID string, claims []model.Claim) error {
	return s.inTx(ctx,
		`INSERT INTO claims (facility_id, capability, run_id, status, confidence, confidence_label, flags, payload, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(facility_id, capability) DO UPDATE SET
			run_id=excluded.run_id, status=excluded.status, confidence=excluded.confidence,
			confidence_label=excluded.confidence_label, flags=excluded.flags,
			payload=excluded.payload, updated_at=excluded.updated_at`,
		func(stmt *sql.Stmt) error {
			for i := range claims {
				c := &claims[i]
				payload, err := json.Marshal(c)
				if err != nil {
					return eris.Wrap(err, "store: marshal claim")
				}
				flags, _ := json.Marshal(c.Flags)
				updated := c.UpdatedAt
				if updated.IsZero() {
					updated = time.Now()
				}
				if _, err := stmt.ExecContext(ctx, c.FacilityID, c.Capability, runID, string(c.Status),
					c.Confidence, string(c.ConfidenceLabel), string(flags), string(payload), updated.UTC()); err != nil {
					return eris.Wrapf(err, "store: upsert claim %s/%s", c.FacilityID, c.Capability)
				}
			}
			return nil
		})
}

// SaveMatches stores the retrieval trace of a run
func (s *Store) SaveMatches(ctx context.Context, runID string, matches []model.ChunkMatch) error {
	return s.inTx(ctx,
		`INSERT INTO retrieval_matches
		 (run_id, facility_id, capability, chunk_id, doc_id, source_type, source_ref, match_type, keyword, score)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		func(stmt *sql.Stmt) error {
			for _, m := range matches {
				if _, err := stmt.ExecContext(ctx, runID, m.FacilityID, m.Capability, m.ChunkID, m.DocID,
					m.SourceType, m.SourceRef, string(m.MatchType), m.Keyword, m.Score); err != nil {
					return eris.Wrapf(err, "store: insert match %s/%s", m.Capability, m.ChunkID)
				}
			}
			return nil
		})
}

// SaveAnomalies stores claims flagged during re-verification
func (s *Store) SaveAnomalies(ctx context.Context, runID string, claims []model.Claim) error {
	return s.inTx(ctx,
		`INSERT OR REPLACE INTO anomalies (run_id, facility_id, capability, status, flags, confidence, notes)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		func(stmt *sql.Stmt) error {
			for i := range claims {
				c := &claims[i]
				flags, _ := json.Marshal(c.Flags)
				if _, err := stmt.ExecContext(ctx, runID, c.FacilityID, c.Capability, string(c.Status),
					string(flags), c.Confidence, c.VerificationNotes); err != nil {
					return eris.Wrapf(err, "store: insert anomaly %s/%s", c.FacilityID, c.Capability)
				}
			}
			return nil
		})
}

// LoadClaims returns every final claim ordered by facility and capability
func (s *Store) LoadClaims(ctx context.Context) ([]model.Claim, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT payload FROM claims ORDER BY facility_id, capability`)
	if err != nil {
		return nil, eris.Wrap(err, "store: query claims")
	}
	defer func() { _ = rows.Close() }()

	claims := make([]model.Claim, 0)
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, eris.Wrap(err, "store: scan claim")
		}
		var c model.Claim
		if err := json.Unmarshal([]byte(payload), &c); err != nil {
			return nil, eris.Wrap(err, "store: decode claim")
		}
		claims = append(claims, c)
	}
	return claims, eris.Wrap(rows.Err(), "store: iterate claims")
}

// CountMatches returns the number of stored retrieval matches for a run
func (s *Store) CountMatches(ctx context.Context, runID string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM retrieval_matches WHERE run_id = ?`, runID).Scan(&n)
	return n, eris.Wrap(err, "store: count matches")
}
