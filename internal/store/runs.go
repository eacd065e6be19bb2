package store

import (
	"context"
	"fmt"
	"time"
)

// AnalysisRun is one completed analysis pass over a file.
type AnalysisRun struct {
	ID           int64         `json:"id"`
	FilePath     string        `json:"file_path"`
	Profile      string        `json:"profile"`
	RawCount     int           `json:"raw_count"`
	KeptCount    int           `json:"kept_count"`
	HighPriority int           `json:"high_priority"`
	Duration     time.Duration `json:"duration_ns"`
	AnalyzedAt   time.Time     `json:"analyzed_at"`
}

// RecordRun inserts an analysis run and returns its ID.
func (db *DB) RecordRun(ctx context.Context, run AnalysisRun) (int64, error) {
	result, err := db.conn.ExecContext(ctx,
		`INSERT INTO analysis_runs
		(file_path, profile, raw_count, kept_count, high_priority, duration_ms, analyzed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		run.FilePath, run.Profile, run.RawCount, run.KeptCount, run.HighPriority,
		run.Duration.Milliseconds(), run.AnalyzedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return 0, fmt.Errorf("recording run: %w", err)
	}
	return result.LastInsertId()
}

// RecentRuns returns up to limit runs, newest first. An empty filePath
// matches every file.
func (db *DB) RecentRuns(ctx context.Context, filePath string, limit int) ([]AnalysisRun, error) {
	if limit <= 0 {
		limit = 20
	}
	query := `SELECT id, file_path, profile, raw_count, kept_count, high_priority, duration_ms, analyzed_at
		FROM analysis_runs`
	args := []any{}
	if filePath != "" {
		query += " WHERE file_path = ?"
		args = append(args, filePath)
	}
	query += " ORDER BY id DESC LIMIT ?"
	args = append(args, limit)

	rows, err := db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying runs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var runs []AnalysisRun
	for rows.Next() {
		var (
			r          AnalysisRun
			durationMs int64
			analyzedAt string
		)
		if err := rows.Scan(&r.ID, &r.FilePath, &r.Profile, &r.RawCount, &r.KeptCount,
			&r.HighPriority, &durationMs, &analyzedAt); err != nil {
			return nil, err
		}
		r.Duration = time.Duration(durationMs) * time.Millisecond
		r.AnalyzedAt, _ = time.Parse(time.RFC3339Nano, analyzedAt)
		runs = append(runs, r)
	}
	return runs, rows.Err()
}
