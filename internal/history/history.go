// Package history records every scan invocation in a SQLite database so
// operators can audit what was scanned, when, and with what outcome.
package history

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/aira-technology/tag-scanner/internal/model"
)

const schema = `
CREATE TABLE IF NOT EXISTS scans (
    id                         INTEGER PRIMARY KEY AUTOINCREMENT,
    scan_type                  TEXT NOT NULL,
    scope                      TEXT NOT NULL,
    requested                  TEXT NOT NULL,
    total_repositories_scanned INTEGER NOT NULL DEFAULT 0,
    repositories_with_tag      INTEGER NOT NULL DEFAULT 0,
    duration_seconds           REAL NOT NULL DEFAULT 0.0,
    started_at                 TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%SZ','now'))
);

CREATE INDEX IF NOT EXISTS idx_scans_started ON scans(started_at DESC);

CREATE TABLE IF NOT EXISTS scan_matches (
    id              INTEGER PRIMARY KEY AUTOINCREMENT,
    scan_id         INTEGER NOT NULL REFERENCES scans(id) ON DELETE CASCADE,
    tag_name        TEXT NOT NULL,
    repository_name TEXT NOT NULL,
    commit_id       TEXT NOT NULL DEFAULT '',
    author          TEXT NOT NULL DEFAULT '',
    date            TEXT NOT NULL DEFAULT '',
    repository_url  TEXT NOT NULL DEFAULT '',
    tag_url         TEXT NOT NULL DEFAULT ''
);

CREATE INDEX IF NOT EXISTS idx_scan_matches_scan ON scan_matches(scan_id);
`

// DB is the scan-history database.
type DB struct {
	*sql.DB
}

// Open opens (creating if needed) the history database at path.
func Open(path string) (*DB, error) {
	sqlDB, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys=ON",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	}
	for _, p := range pragmas {
		if _, err := sqlDB.Exec(p); err != nil {
			_ = sqlDB.Close()
			return nil, fmt.Errorf("exec pragma %q: %w", p, err)
		}
	}

	db := &DB{sqlDB}
	if _, err := db.Exec(schema); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return db, nil
}

// RecordScan stores a scan invocation and its matches, returning the record
// with its assigned id.
func (d *DB) RecordScan(ctx context.Context, scanType, scope, requested string, result *model.ScanResult) (*model.ScanRecord, error) {
	startedAt, err := time.Parse(time.RFC3339, result.ScanTimestamp)
	if err != nil {
		startedAt = time.Now().UTC()
	}

	tx, err := d.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx, `
		INSERT INTO scans (scan_type, scope, requested, total_repositories_scanned, repositories_with_tag, duration_seconds, started_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		scanType, scope, requested,
		result.TotalRepositoriesScanned, result.RepositoriesWithTag,
		result.ScanDurationSeconds, startedAt.UTC().Format(time.RFC3339))
	if err != nil {
		return nil, fmt.Errorf("insert scan: %w", err)
	}
	id, _ := res.LastInsertId()

	for _, m := range result.TagsFound {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO scan_matches (scan_id, tag_name, repository_name, commit_id, author, date, repository_url, tag_url)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			id, m.TagName, m.RepositoryName, m.CommitID, m.Author, m.Date, m.RepositoryURL, m.TagURL); err != nil {
			return nil, fmt.Errorf("insert match %s/%s: %w", m.RepositoryName, m.TagName, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}

	return &model.ScanRecord{
		ID:                       id,
		ScanType:                 scanType,
		Scope:                    scope,
		Requested:                requested,
		TotalRepositoriesScanned: result.TotalRepositoriesScanned,
		RepositoriesWithTag:      result.RepositoriesWithTag,
		DurationSeconds:          result.ScanDurationSeconds,
		StartedAt:                startedAt.UTC(),
	}, nil
}

// ListScans returns scan records newest first.
func (d *DB) ListScans(ctx context.Context, limit, offset int) ([]model.ScanRecord, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := d.QueryContext(ctx, `
		SELECT id, scan_type, scope, requested, total_repositories_scanned, repositories_with_tag, duration_seconds, started_at
		FROM scans ORDER BY started_at DESC, id DESC LIMIT ? OFFSET ?`, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []model.ScanRecord
	for rows.Next() {
		var r model.ScanRecord
		var ts string
		if err := rows.Scan(&r.ID, &r.ScanType, &r.Scope, &r.Requested,
			&r.TotalRepositoriesScanned, &r.RepositoriesWithTag, &r.DurationSeconds, &ts); err != nil {
			return nil, err
		}
		r.StartedAt = parseTime(ts)
		records = append(records, r)
	}
	return records, rows.Err()
}

// GetScan returns one scan record with its matches.
func (d *DB) GetScan(ctx context.Context, id int64) (*model.ScanRecord, error) {
	var r model.ScanRecord
	var ts string
	err := d.QueryRowContext(ctx, `
		SELECT id, scan_type, scope, requested, total_repositories_scanned, repositories_with_tag, duration_seconds, started_at
		FROM scans WHERE id = ?`, id).
		Scan(&r.ID, &r.ScanType, &r.Scope, &r.Requested,
			&r.TotalRepositoriesScanned, &r.RepositoriesWithTag, &r.DurationSeconds, &ts)
	if err != nil {
		return nil, err
	}
	r.StartedAt = parseTime(ts)

	rows, err := d.QueryContext(ctx, `
		SELECT tag_name, repository_name, commit_id, author, date, repository_url, tag_url
		FROM scan_matches WHERE scan_id = ? ORDER BY id`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var m model.TagMatch
		if err := rows.Scan(&m.TagName, &m.RepositoryName, &m.CommitID, &m.Author, &m.Date, &m.RepositoryURL, &m.TagURL); err != nil {
			return nil, err
		}
		r.Matches = append(r.Matches, m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return &r, nil
}

func parseTime(s string) time.Time {
	t, _ := time.Parse(time.RFC3339, s)
	return t
}
