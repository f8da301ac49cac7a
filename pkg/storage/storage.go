// Package storage is a local SQLite cache of the ingestion run history.
// Progress is only observable by explicit re-fetch, so the cache keeps the
// last seen snapshot of every run and reports what changed between polls:
// runs that newly appeared and status transitions
// (pending -> running -> success | failed).
package storage

import (
	"context"
	"database/sql"
	"time"

	_ "modernc.org/sqlite"

	"github.com/ntewolde/local-buyer-intelligence/pkg/intel"
)

type DB struct {
	sql *sql.DB
}

func Open(path string) (*DB, error) {
	dsn := "file:" + path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		return nil, err
	}
	// Ensure schema exists for convenience.
	if _, err := db.Exec(`
CREATE TABLE IF NOT EXISTS ingestion_runs (
  id               TEXT PRIMARY KEY,
  geography_id     INTEGER,
  source_type      TEXT NOT NULL,
  status           TEXT NOT NULL CHECK (status IN ('pending','running','success','failed')),
  records_upserted INTEGER,
  error_message    TEXT,
  created_at       TEXT NOT NULL,
  started_at       TEXT,
  finished_at      TEXT,
  first_seen_at    DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
  last_seen_at     DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_runs_geography ON ingestion_runs(geography_id);
CREATE TABLE IF NOT EXISTS run_changes (
  id           INTEGER PRIMARY KEY,
  occurred_at  DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
  run_id       TEXT NOT NULL,
  geography_id INTEGER,
  source_type  TEXT NOT NULL,
  old_status   TEXT,
  new_status   TEXT NOT NULL,
  change_type  TEXT NOT NULL CHECK (change_type IN ('added','status_changed'))
);
CREATE INDEX IF NOT EXISTS idx_run_changes_time ON run_changes(occurred_at);
    `); err != nil {
		return nil, err
	}
	return &DB{sql: db}, nil
}

func (d *DB) Close() error {
	if d == nil || d.sql == nil {
		return nil
	}
	return d.sql.Close()
}

// UpsertRuns stores the latest snapshot of the run history and returns what
// changed since the previous one. Runs never disappear from the cache: the
// server keeps its history, and a run missing from one poll is far more
// likely a partial response than a deletion.
func (d *DB) UpsertRuns(ctx context.Context, runs []intel.IngestionRun) ([]Change, error) {
	now := time.Now().UTC()

	tx, err := d.sql.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return nil, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	rows, err := tx.QueryContext(ctx, "SELECT id, status FROM ingestion_runs")
	if err != nil {
		return nil, err
	}
	known := make(map[string]intel.RunStatus)
	for rows.Next() {
		var id, status string
		if err = rows.Scan(&id, &status); err != nil {
			rows.Close()
			return nil, err
		}
		known[id] = intel.RunStatus(status)
	}
	if err = rows.Close(); err != nil {
		return nil, err
	}

	var changes []Change
	for _, run := range runs {
		geoID := sql.NullInt64{}
		if run.GeographyID != nil {
			geoID = sql.NullInt64{Int64: int64(*run.GeographyID), Valid: true}
		}
		records := sql.NullInt64{}
		if run.RecordsUpserted != nil {
			records = sql.NullInt64{Int64: int64(*run.RecordsUpserted), Valid: true}
		}

		prevStatus, seen := known[run.ID]
		if !seen {
			_, err = tx.ExecContext(ctx, `INSERT INTO ingestion_runs(id, geography_id, source_type, status, records_upserted, error_message, created_at, started_at, finished_at, first_seen_at, last_seen_at) VALUES(?,?,?,?,?,?,?,?,?,CURRENT_TIMESTAMP,CURRENT_TIMESTAMP)`,
				run.ID, geoID, string(run.SourceType), string(run.Status), records, nullIfEmpty(run.ErrorMessage), run.CreatedAt.UTC().Format(time.RFC3339), formatTime(run.StartedAt), formatTime(run.FinishedAt))
			if err != nil {
				return nil, err
			}
			changes = append(changes, Change{OccurredAt: now, RunID: run.ID, GeographyID: geoIDValue(run), SourceType: run.SourceType, NewStatus: run.Status, ChangeType: "added"})
			if err = d.recordChange(ctx, tx, run, "", "added"); err != nil {
				return nil, err
			}
			continue
		}

		_, err = tx.ExecContext(ctx, `UPDATE ingestion_runs SET status = ?, records_upserted = ?, error_message = ?, started_at = ?, finished_at = ?, last_seen_at = CURRENT_TIMESTAMP WHERE id = ?`,
			string(run.Status), records, nullIfEmpty(run.ErrorMessage), formatTime(run.StartedAt), formatTime(run.FinishedAt), run.ID)
		if err != nil {
			return nil, err
		}
		if prevStatus != run.Status {
			changes = append(changes, Change{OccurredAt: now, RunID: run.ID, GeographyID: geoIDValue(run), SourceType: run.SourceType, OldStatus: prevStatus, NewStatus: run.Status, ChangeType: "status_changed"})
			if err = d.recordChange(ctx, tx, run, prevStatus, "status_changed"); err != nil {
				return nil, err
			}
		}
	}

	if err = tx.Commit(); err != nil {
		return nil, err
	}
	return changes, nil
}

func (d *DB) recordChange(ctx context.Context, tx *sql.Tx, run intel.IngestionRun, oldStatus intel.RunStatus, changeType string) error {
	geoID := sql.NullInt64{}
	if run.GeographyID != nil {
		geoID = sql.NullInt64{Int64: int64(*run.GeographyID), Valid: true}
	}
	_, err := tx.ExecContext(ctx, `INSERT INTO run_changes(occurred_at, run_id, geography_id, source_type, old_status, new_status, change_type) VALUES(CURRENT_TIMESTAMP, ?, ?, ?, ?, ?, ?)`,
		run.ID, geoID, string(run.SourceType), nullIfEmpty(string(oldStatus)), string(run.Status), changeType)
	return err
}

// ChangesSince returns recorded changes that occurred at or after the given
// time, oldest first.
func (d *DB) ChangesSince(ctx context.Context, since time.Time) ([]Change, error) {
	rows, err := d.sql.QueryContext(ctx, `SELECT occurred_at, run_id, geography_id, source_type, old_status, new_status, change_type FROM run_changes WHERE occurred_at >= ? ORDER BY occurred_at ASC, id ASC`, since.UTC().Format("2006-01-02 15:04:05"))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var changes []Change
	for rows.Next() {
		var (
			occurredAt string
			c          Change
			geoID      sql.NullInt64
			oldStatus  sql.NullString
			newStatus  string
		)
		if err := rows.Scan(&occurredAt, &c.RunID, &geoID, (*string)(&c.SourceType), &oldStatus, &newStatus, &c.ChangeType); err != nil {
			return nil, err
		}
		if t, perr := time.Parse("2006-01-02 15:04:05", occurredAt); perr == nil {
			c.OccurredAt = t
		}
		if geoID.Valid {
			c.GeographyID = int(geoID.Int64)
		}
		c.OldStatus = intel.RunStatus(oldStatus.String)
		c.NewStatus = intel.RunStatus(newStatus)
		changes = append(changes, c)
	}
	return changes, rows.Err()
}

// CachedRunCount reports how many runs the cache knows about.
func (d *DB) CachedRunCount(ctx context.Context) (int, error) {
	var n int
	err := d.sql.QueryRowContext(ctx, "SELECT COUNT(*) FROM ingestion_runs").Scan(&n)
	return n, err
}

func geoIDValue(run intel.IngestionRun) int {
	if run.GeographyID == nil {
		return 0
	}
	return *run.GeographyID
}

func formatTime(t *intel.Timestamp) any {
	if t == nil || t.IsZero() {
		return nil
	}
	return t.UTC().Format(time.RFC3339)
}

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}
