package domain

import (
	"errors"
	"fmt"
	"time"
)

// TrialDefinition is a clinical trial as supplied by the catalog.
// Definitions are long-lived, owned by the catalog, and read-only
// during a matching run.
type TrialDefinition struct {
	ID          string `json:"id" validate:"required"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	Phase       string `json:"phase,omitempty"`
	Status      string `json:"status"`

	// MinAge/MaxAge are inclusive bounds in whole years; nil means the
	// trial does not restrict that side.
	MinAge *int   `json:"min_age,omitempty"`
	MaxAge *int   `json:"max_age,omitempty"`
	Gender string `json:"gender,omitempty"` // "", "All", "Both", "Male", "Female"

	InclusionCriteria []Criterion `json:"inclusion_criteria"`
	ExclusionCriteria []Criterion `json:"exclusion_criteria"`

	UpdatedAt time.Time `json:"updated_at,omitempty"`
}

// Validate ensures the trial definition is usable for matching.
func (t *TrialDefinition) Validate() error {
	if t.ID == "" {
		return fmt.Errorf("trial validation: %w", errors.New("ID is required"))
	}
	if t.MinAge != nil && t.MaxAge != nil && *t.MinAge > *t.MaxAge {
		return fmt.Errorf("trial validation: min age %d exceeds max age %d", *t.MinAge, *t.MaxAge)
	}
	for i := range t.InclusionCriteria {
		if err := t.InclusionCriteria[i].Validate(); err != nil {
			return fmt.Errorf("trial %s inclusion criterion %d: %w", t.ID, i, err)
		}
	}
	for i := range t.ExclusionCriteria {
		if err := t.ExclusionCriteria[i].Validate(); err != nil {
			return fmt.Errorf("trial %s exclusion criterion %d: %w", t.ID, i, err)
		}
	}
	return nil
}

// CriteriaCount returns the total number of criteria on the trial.
func (t *TrialDefinition) CriteriaCount() int {
	return len(t.InclusionCriteria) + len(t.ExclusionCriteria)
}

// AcceptsGender reports whether the trial's gender restriction admits
// the given patient gender. An unknown patient gender is NOT rejected
// here; the detailed evaluator reports it as Undetermined instead.
func (t *TrialDefinition) AcceptsGender(g Gender) bool {
	switch normalizeToken(t.Gender) {
	case "", "all", "both", "any":
		return true
	}
	if !g.IsValid() {
		return true // unknown passes the coarse gate
	}
	return normalizeToken(t.Gender) == g.String()
}

// AcceptsAge reports whether the given age falls inside the trial's
// declared bounds. A nil age passes: the pre-filter never rejects on
// missing data.
func (t *TrialDefinition) AcceptsAge(age *int) bool {
	if age == nil {
		return true
	}
	if t.MinAge != nil && *age < *t.MinAge {
		return false
	}
	if t.MaxAge != nil && *age > *t.MaxAge {
		return false
	}
	return true
}
