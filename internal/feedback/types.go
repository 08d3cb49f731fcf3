// Package feedback stores clinician feedback on trial match results. It
// records whether a clinician agreed with the engine's eligibility call so
// scoring heuristics can be audited against real decisions.
package feedback

import (
	"context"
	"io"
	"time"
)

// Verdict is a clinician's eligibility decision for a patient/trial pair.
type Verdict string

const (
	VerdictEligible   Verdict = "eligible"
	VerdictIneligible Verdict = "ineligible"
	VerdictUncertain  Verdict = "uncertain"
)

// IsValid checks whether the verdict is a known value.
func (v Verdict) IsValid() bool {
	switch v {
	case VerdictEligible, VerdictIneligible, VerdictUncertain:
		return true
	}
	return false
}

// Feedback is one clinician review of a match result.
type Feedback struct {
	ID               int64     `json:"id,omitempty"`
	PatientRef       string    `json:"patient_ref"` // anonymized patient identifier
	TrialID          string    `json:"trial_id"`
	ScorePercent     float64   `json:"score_percent"`     // engine score at review time
	SystemVerdict    Verdict   `json:"system_verdict"`    // engine's call
	ClinicianVerdict Verdict   `json:"clinician_verdict"` // clinician's call
	Agreed           bool      `json:"agreed"`
	Notes            string    `json:"notes,omitempty"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// Store defines feedback storage operations.
type Store interface {
	// Save stores or updates feedback. Feedback for the same
	// patient_ref+trial_id pair is updated in place.
	Save(ctx context.Context, feedback *Feedback) error

	// Get retrieves feedback for a patient/trial pair, or nil when none
	// exists.
	Get(ctx context.Context, patientRef, trialID string) (*Feedback, error)

	// List returns feedback entries newest first, with pagination.
	List(ctx context.Context, limit, offset int) ([]*Feedback, error)

	// Count returns the total number of feedback entries.
	Count(ctx context.Context) (int64, error)

	// Delete removes a feedback entry by ID.
	Delete(ctx context.Context, id int64) error

	// ExportJSON exports all feedback to a JSON writer.
	ExportJSON(ctx context.Context, writer io.Writer) error

	// Close closes the store and releases resources.
	Close() error
}

// Export is the JSON export format.
type Export struct {
	Version    string      `json:"version"`
	ExportedAt time.Time   `json:"exported_at"`
	Count      int         `json:"count"`
	Feedback   []*Feedback `json:"feedback"`
}
