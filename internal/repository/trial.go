// Package repository persists the trial catalog in PostgreSQL and serves
// read-mostly catalog snapshots through an expiring cache.
package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sirupsen/logrus"

	"github.com/trial-match-server/internal/domain"
)

// TrialRepository handles clinical trial persistence.
type TrialRepository struct {
	db  *pgxpool.Pool
	log *logrus.Logger
}

// NewTrialRepository creates a new trial repository.
func NewTrialRepository(db *pgxpool.Pool, logger *logrus.Logger) *TrialRepository {
	return &TrialRepository{db: db, log: logger}
}

// Upsert inserts or replaces a trial definition.
func (r *TrialRepository) Upsert(ctx context.Context, trial *domain.TrialDefinition) error {
	if err := trial.Validate(); err != nil {
		return fmt.Errorf("validating trial: %w", err)
	}

	inclusionJSON, err := json.Marshal(trial.InclusionCriteria)
	if err != nil {
		return fmt.Errorf("marshaling inclusion criteria: %w", err)
	}
	exclusionJSON, err := json.Marshal(trial.ExclusionCriteria)
	if err != nil {
		return fmt.Errorf("marshaling exclusion criteria: %w", err)
	}

	query := `
		INSERT INTO clinical_trials (
			id, title, phase, description, inclusion_criteria, exclusion_criteria,
			status, min_age, max_age, gender, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11
		)
		ON CONFLICT (id) DO UPDATE SET
			title = EXCLUDED.title,
			phase = EXCLUDED.phase,
			description = EXCLUDED.description,
			inclusion_criteria = EXCLUDED.inclusion_criteria,
			exclusion_criteria = EXCLUDED.exclusion_criteria,
			status = EXCLUDED.status,
			min_age = EXCLUDED.min_age,
			max_age = EXCLUDED.max_age,
			gender = EXCLUDED.gender,
			updated_at = EXCLUDED.updated_at`

	_, err = r.db.Exec(ctx, query,
		trial.ID,
		trial.Title,
		trial.Phase,
		trial.Description,
		inclusionJSON,
		exclusionJSON,
		trial.Status,
		trial.MinAge,
		trial.MaxAge,
		trial.Gender,
		trial.UpdatedAt,
	)
	if err != nil {
		r.log.WithFields(logrus.Fields{
			"trial_id": trial.ID,
			"error":    err,
		}).Error("Failed to upsert trial")
		return fmt.Errorf("upserting trial: %w", err)
	}

	r.log.WithFields(logrus.Fields{
		"trial_id": trial.ID,
		"status":   trial.Status,
	}).Info("Trial upserted")

	return nil
}

const trialColumns = `id, title, phase, description, inclusion_criteria,
	exclusion_criteria, status, min_age, max_age, gender, updated_at`

// GetByID retrieves one trial.
func (r *TrialRepository) GetByID(ctx context.Context, id string) (*domain.TrialDefinition, error) {
	query := fmt.Sprintf(`SELECT %s FROM clinical_trials WHERE id = $1`, trialColumns)

	trial, err := scanTrial(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("getting trial %s: %w", id, err)
	}
	return trial, nil
}

// GetCatalog retrieves every trial ordered by ID.
func (r *TrialRepository) GetCatalog(ctx context.Context) ([]domain.TrialDefinition, error) {
	query := fmt.Sprintf(`SELECT %s FROM clinical_trials ORDER BY id`, trialColumns)

	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("querying trial catalog: %w", err)
	}
	defer rows.Close()

	var catalog []domain.TrialDefinition
	for rows.Next() {
		trial, err := scanTrial(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning trial row: %w", err)
		}
		catalog = append(catalog, *trial)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating trial rows: %w", err)
	}

	r.log.WithField("count", len(catalog)).Debug("Loaded trial catalog")
	return catalog, nil
}

// Delete removes a trial.
func (r *TrialRepository) Delete(ctx context.Context, id string) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM clinical_trials WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("deleting trial %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// Count returns the catalog size.
func (r *TrialRepository) Count(ctx context.Context) (int, error) {
	var count int
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM clinical_trials`).Scan(&count); err != nil {
		return 0, fmt.Errorf("counting trials: %w", err)
	}
	return count, nil
}

func scanTrial(row pgx.Row) (*domain.TrialDefinition, error) {
	var trial domain.TrialDefinition
	var inclusionJSON, exclusionJSON []byte

	err := row.Scan(
		&trial.ID,
		&trial.Title,
		&trial.Phase,
		&trial.Description,
		&inclusionJSON,
		&exclusionJSON,
		&trial.Status,
		&trial.MinAge,
		&trial.MaxAge,
		&trial.Gender,
		&trial.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(inclusionJSON, &trial.InclusionCriteria); err != nil {
		return nil, fmt.Errorf("unmarshaling inclusion criteria: %w", err)
	}
	if err := json.Unmarshal(exclusionJSON, &trial.ExclusionCriteria); err != nil {
		return nil, fmt.Errorf("unmarshaling exclusion criteria: %w", err)
	}
	return &trial, nil
}
