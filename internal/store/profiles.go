package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/blackwell-systems/codehint/internal/learning"
	"github.com/blackwell-systems/codehint/internal/suggest"
)

var _ learning.Repository = (*DB)(nil)

// SchemaVersion returns the applied schema version.
func (db *DB) SchemaVersion() (int, error) {
	var v int
	err := db.conn.QueryRow("SELECT version FROM schema_version LIMIT 1").Scan(&v)
	return v, err
}

// LoadProfile reads a profile record. Malformed JSON columns are reported
// as learning.ErrCorruptRecord.
func (db *DB) LoadProfile(ctx context.Context, name string) (learning.Record, error) {
	row := db.conn.QueryRowContext(ctx,
		`SELECT name, type_weights, priority_weights, confidence_threshold, disabled_types,
		        total_suggestions, applied_suggestions, dismissed_suggestions, updated_at
		 FROM profiles WHERE name = ?`, name)

	var (
		r                      learning.Record
		typeW, prioW, disabled string
		updatedAt              string
		threshold              sql.NullFloat64
	)
	err := row.Scan(&r.Name, &typeW, &prioW, &threshold, &disabled,
		&r.TotalSuggestions, &r.AppliedSuggestions, &r.DismissedSuggestions, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return learning.Record{}, fmt.Errorf("%w: %s", learning.ErrProfileNotFound, name)
	}
	if err != nil {
		return learning.Record{}, fmt.Errorf("querying profile %s: %w", name, err)
	}

	if err := json.Unmarshal([]byte(typeW), &r.TypeWeights); err != nil {
		return learning.Record{}, fmt.Errorf("%w: type_weights: %w", learning.ErrCorruptRecord, err)
	}
	if err := json.Unmarshal([]byte(prioW), &r.PriorityWeights); err != nil {
		return learning.Record{}, fmt.Errorf("%w: priority_weights: %w", learning.ErrCorruptRecord, err)
	}
	if err := json.Unmarshal([]byte(disabled), &r.DisabledTypes); err != nil {
		return learning.Record{}, fmt.Errorf("%w: disabled_types: %w", learning.ErrCorruptRecord, err)
	}
	if threshold.Valid {
		r.ConfidenceThreshold = &threshold.Float64
	}
	r.UpdatedAt, _ = time.Parse(time.RFC3339Nano, updatedAt)
	return r, nil
}

// SaveProfile inserts or replaces a profile record.
func (db *DB) SaveProfile(ctx context.Context, r learning.Record) error {
	if err := learning.ValidateProfileName(r.Name); err != nil {
		return err
	}
	typeW, err := json.Marshal(r.TypeWeights)
	if err != nil {
		return fmt.Errorf("encoding type weights: %w", err)
	}
	prioW, err := json.Marshal(r.PriorityWeights)
	if err != nil {
		return fmt.Errorf("encoding priority weights: %w", err)
	}
	disabled := r.DisabledTypes
	if disabled == nil {
		disabled = []string{}
	}
	disabledJSON, err := json.Marshal(disabled)
	if err != nil {
		return fmt.Errorf("encoding disabled types: %w", err)
	}

	_, err = db.conn.ExecContext(ctx,
		`INSERT INTO profiles
		(name, type_weights, priority_weights, confidence_threshold, disabled_types,
		 total_suggestions, applied_suggestions, dismissed_suggestions, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET
			type_weights = excluded.type_weights,
			priority_weights = excluded.priority_weights,
			confidence_threshold = excluded.confidence_threshold,
			disabled_types = excluded.disabled_types,
			total_suggestions = excluded.total_suggestions,
			applied_suggestions = excluded.applied_suggestions,
			dismissed_suggestions = excluded.dismissed_suggestions,
			updated_at = excluded.updated_at`,
		r.Name, string(typeW), string(prioW), r.Threshold(), string(disabledJSON),
		r.TotalSuggestions, r.AppliedSuggestions, r.DismissedSuggestions,
		r.UpdatedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("saving profile %s: %w", r.Name, err)
	}
	return nil
}

// AppendFeedback inserts feedback events in one transaction.
func (db *DB) AppendFeedback(ctx context.Context, profile string, events []learning.Feedback) error {
	if len(events) == 0 {
		return nil
	}
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO feedback
		(profile, suggestion_id, suggestion_type, priority, applied, reason, original_confidence, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer func() { _ = stmt.Close() }()

	for _, f := range events {
		if _, err := stmt.ExecContext(ctx,
			profile, f.SuggestionID, string(f.Type), f.Priority.String(), f.Applied,
			f.Reason, f.OriginalConfidence, f.Timestamp.UTC().Format(time.RFC3339Nano),
		); err != nil {
			return fmt.Errorf("inserting feedback for %s: %w", f.SuggestionID, err)
		}
	}
	return tx.Commit()
}

// ListFeedback returns a profile's feedback in insertion order. Rows with
// an unknown priority are skipped.
func (db *DB) ListFeedback(ctx context.Context, profile string) ([]learning.Feedback, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT suggestion_id, suggestion_type, priority, applied, reason, original_confidence, created_at
		 FROM feedback WHERE profile = ? ORDER BY id`, profile)
	if err != nil {
		return nil, fmt.Errorf("querying feedback: %w", err)
	}
	defer func() { _ = rows.Close() }()

	out := []learning.Feedback{}
	for rows.Next() {
		var (
			f                    learning.Feedback
			typ, prio, createdAt string
			reason               sql.NullString
		)
		if err := rows.Scan(&f.SuggestionID, &typ, &prio, &f.Applied, &reason, &f.OriginalConfidence, &createdAt); err != nil {
			return nil, err
		}
		p, err := suggest.ParsePriority(prio)
		if err != nil {
			continue
		}
		f.Type = suggest.SuggestionType(typ)
		f.Priority = p
		f.Reason = reason.String
		f.Timestamp, _ = time.Parse(time.RFC3339Nano, createdAt)
		out = append(out, f)
	}
	return out, rows.Err()
}

// DeleteProfile removes a profile and its feedback.
func (db *DB) DeleteProfile(ctx context.Context, name string) error {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, "DELETE FROM feedback WHERE profile = ?", name); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM profiles WHERE name = ?", name); err != nil {
		return err
	}
	return tx.Commit()
}
