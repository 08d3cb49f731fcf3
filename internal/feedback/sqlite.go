package feedback

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db     *sql.DB
	dbPath string
}

// NewSQLiteStore creates a SQLite feedback store, creating the database
// file and schema if they don't exist.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// WAL mode for better concurrency
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set WAL mode: %w", err)
	}

	if err := createSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	return &SQLiteStore{db: db, dbPath: dbPath}, nil
}

// scanner is an interface for sql.Row and sql.Rows.
type scanner interface {
	Scan(dest ...interface{}) error
}

func scanFeedback(s scanner) (*Feedback, error) {
	fb := &Feedback{}
	var systemVerdict, clinicianVerdict string

	err := s.Scan(
		&fb.ID, &fb.PatientRef, &fb.TrialID, &fb.ScorePercent,
		&systemVerdict, &clinicianVerdict, &fb.Agreed,
		&fb.Notes, &fb.CreatedAt, &fb.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	fb.SystemVerdict = Verdict(systemVerdict)
	fb.ClinicianVerdict = Verdict(clinicianVerdict)
	return fb, nil
}

func createSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS match_feedback (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		patient_ref TEXT NOT NULL,
		trial_id TEXT NOT NULL,
		score_percent REAL NOT NULL DEFAULT 0,
		system_verdict TEXT NOT NULL,
		clinician_verdict TEXT NOT NULL,
		agreed INTEGER NOT NULL DEFAULT 0,
		notes TEXT DEFAULT '',
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		UNIQUE(patient_ref, trial_id)
	);

	CREATE INDEX IF NOT EXISTS idx_feedback_trial_id ON match_feedback(trial_id);
	CREATE INDEX IF NOT EXISTS idx_feedback_created_at ON match_feedback(created_at);
	`

	_, err := db.Exec(schema)
	return err
}

const sqliteSelectColumns = `id, patient_ref, trial_id, score_percent,
	system_verdict, clinician_verdict, agreed, notes, created_at, updated_at`

// Save stores or updates feedback for a patient/trial pair.
func (s *SQLiteStore) Save(ctx context.Context, feedback *Feedback) error {
	if !feedback.ClinicianVerdict.IsValid() {
		return fmt.Errorf("invalid clinician verdict: %q", feedback.ClinicianVerdict)
	}
	now := time.Now()

	var existingID int64
	err := s.db.QueryRowContext(ctx,
		"SELECT id FROM match_feedback WHERE patient_ref = ? AND trial_id = ?",
		feedback.PatientRef, feedback.TrialID,
	).Scan(&existingID)

	if err == nil {
		feedback.ID = existingID
		feedback.UpdatedAt = now

		_, err = s.db.ExecContext(ctx, `
			UPDATE match_feedback SET
				score_percent = ?,
				system_verdict = ?,
				clinician_verdict = ?,
				agreed = ?,
				notes = ?,
				updated_at = ?
			WHERE id = ?
		`,
			feedback.ScorePercent,
			string(feedback.SystemVerdict),
			string(feedback.ClinicianVerdict),
			feedback.Agreed,
			feedback.Notes,
			now,
			existingID,
		)
		return err
	}

	if err != sql.ErrNoRows {
		return fmt.Errorf("failed to check existing: %w", err)
	}

	feedback.CreatedAt = now
	feedback.UpdatedAt = now

	result, err := s.db.ExecContext(ctx, `
		INSERT INTO match_feedback (
			patient_ref, trial_id, score_percent,
			system_verdict, clinician_verdict, agreed,
			notes, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		feedback.PatientRef,
		feedback.TrialID,
		feedback.ScorePercent,
		string(feedback.SystemVerdict),
		string(feedback.ClinicianVerdict),
		feedback.Agreed,
		feedback.Notes,
		now,
		now,
	)
	if err != nil {
		return fmt.Errorf("failed to insert: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get insert ID: %w", err)
	}
	feedback.ID = id
	return nil
}

// Get retrieves feedback for a patient/trial pair.
func (s *SQLiteStore) Get(ctx context.Context, patientRef, trialID string) (*Feedback, error) {
	row := s.db.QueryRowContext(ctx, fmt.Sprintf(`
		SELECT %s FROM match_feedback
		WHERE patient_ref = ? AND trial_id = ?
		LIMIT 1
	`, sqliteSelectColumns), patientRef, trialID)

	fb, err := scanFeedback(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan: %w", err)
	}
	return fb, nil
}

// List returns feedback entries newest first.
func (s *SQLiteStore) List(ctx context.Context, limit, offset int) ([]*Feedback, error) {
	rows, err := s.db.QueryContext(ctx, fmt.Sprintf(`
		SELECT %s FROM match_feedback
		ORDER BY created_at DESC
		LIMIT ? OFFSET ?
	`, sqliteSelectColumns), limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to query: %w", err)
	}
	defer rows.Close()

	var result []*Feedback
	for rows.Next() {
		fb, err := scanFeedback(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		result = append(result, fb)
	}
	return result, rows.Err()
}

// Count returns total feedback entries.
func (s *SQLiteStore) Count(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM match_feedback").Scan(&count)
	return count, err
}

// Delete removes a feedback entry by ID.
func (s *SQLiteStore) Delete(ctx context.Context, id int64) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM match_feedback WHERE id = ?", id)
	return err
}

// ExportJSON writes all feedback as a JSON document.
func (s *SQLiteStore) ExportJSON(ctx context.Context, writer io.Writer) error {
	entries, err := s.List(ctx, -1, 0)
	if err != nil {
		return fmt.Errorf("failed to list feedback: %w", err)
	}

	export := Export{
		Version:    "1.0",
		ExportedAt: time.Now(),
		Count:      len(entries),
		Feedback:   entries,
	}

	encoder := json.NewEncoder(writer)
	encoder.SetIndent("", "  ")
	return encoder.Encode(export)
}

// Close closes the store.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
