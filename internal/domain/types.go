// Package domain contains the core business entities for oncology
// clinical-trial eligibility matching: patient profiles, trial
// definitions, eligibility criteria and per-criterion match results.
package domain

import (
	"errors"
	"fmt"
)

// CriterionType is the closed taxonomy of eligibility criterion kinds.
// Classification of free criterion text always yields exactly one of
// these values; unclassifiable text falls back to CriterionGeneric.
type CriterionType string

const (
	CriterionAge         CriterionType = "age"
	CriterionGender      CriterionType = "gender"
	CriterionDiagnosis   CriterionType = "diagnosis"
	CriterionStage       CriterionType = "stage"
	CriterionPerformance CriterionType = "performance"
	CriterionMutation    CriterionType = "mutation"
	CriterionMetastasis  CriterionType = "metastasis"
	CriterionTreatment   CriterionType = "treatment"
	CriterionLabValue    CriterionType = "lab_value"
	CriterionGeneric     CriterionType = "generic"
)

// Polarity distinguishes inclusion criteria (the patient must meet the
// text) from exclusion criteria (meeting the text disqualifies).
type Polarity string

const (
	Inclusion Polarity = "inclusion"
	Exclusion Polarity = "exclusion"
)

// Outcome is the three-valued result of evaluating a single criterion.
// Undetermined is distinct from Unsatisfied: it means the profile lacks
// the information needed to decide, while Unsatisfied is a definite
// mismatch. Scoring treats the two differently.
type Outcome string

const (
	Satisfied    Outcome = "satisfied"
	Unsatisfied  Outcome = "unsatisfied"
	Undetermined Outcome = "undetermined"
)

// Gender is the patient gender vocabulary used by eligibility matching.
// The empty string means the gender was not mentioned in the source
// record, which is different from either concrete value.
type Gender string

const (
	Male   Gender = "male"
	Female Gender = "female"
)

// TrialStatus values that make a trial a candidate for matching.
// Mirrors the registry status strings verbatim.
const (
	StatusRecruiting          = "Recruiting"
	StatusNotYetRecruiting    = "Not yet recruiting"
	StatusActiveNotRecruiting = "Active, not recruiting"
)

// Validation errors for matching data integrity.
var (
	ErrNotFound             = errors.New("not found")
	ErrInvalidCriterionType = errors.New("invalid criterion type")
	ErrInvalidPolarity      = errors.New("invalid criterion polarity")
	ErrInvalidOutcome       = errors.New("invalid match outcome")
	ErrInvalidGender        = errors.New("invalid gender")
	ErrEmptyCatalog         = errors.New("trial catalog is empty")
)

// IsValid reports whether the criterion type belongs to the closed taxonomy.
func (ct CriterionType) IsValid() bool {
	switch ct {
	case CriterionAge, CriterionGender, CriterionDiagnosis, CriterionStage,
		CriterionPerformance, CriterionMutation, CriterionMetastasis,
		CriterionTreatment, CriterionLabValue, CriterionGeneric:
		return true
	default:
		return false
	}
}

func (ct CriterionType) String() string {
	return string(ct)
}

// IsValid validates the polarity value.
func (p Polarity) IsValid() bool {
	switch p {
	case Inclusion, Exclusion:
		return true
	default:
		return false
	}
}

func (p Polarity) String() string {
	return string(p)
}

// IsValid validates the outcome value.
func (o Outcome) IsValid() bool {
	switch o {
	case Satisfied, Unsatisfied, Undetermined:
		return true
	default:
		return false
	}
}

func (o Outcome) String() string {
	return string(o)
}

// IsValid validates the gender vocabulary. The empty string (not
// mentioned) is deliberately not a valid concrete gender.
func (g Gender) IsValid() bool {
	switch g {
	case Male, Female:
		return true
	default:
		return false
	}
}

func (g Gender) String() string {
	return string(g)
}

// NormalizeGender maps the gender spellings seen in extraction output
// and registry records onto the closed vocabulary. Unrecognized or
// "not mentioned" input maps to the empty (unknown) gender.
func NormalizeGender(raw string) Gender {
	switch normalizeToken(raw) {
	case "male", "m", "man":
		return Male
	case "female", "f", "woman":
		return Female
	default:
		return ""
	}
}

// Criterion is a single eligibility rule extracted from a trial's
// eligibility text. Criteria are created once at ingestion time and are
// immutable thereafter.
type Criterion struct {
	Text     string        `json:"text" validate:"required"`
	Type     CriterionType `json:"type" validate:"required"`
	Polarity Polarity      `json:"polarity" validate:"required"`
}

// Validate ensures the criterion is usable by the evaluator.
func (c *Criterion) Validate() error {
	if c.Text == "" {
		return fmt.Errorf("criterion validation: %w", errors.New("text is required"))
	}
	if !c.Type.IsValid() {
		return fmt.Errorf("criterion validation: %w", ErrInvalidCriterionType)
	}
	if !c.Polarity.IsValid() {
		return fmt.Errorf("criterion validation: %w", ErrInvalidPolarity)
	}
	return nil
}

// ActiveStatuses returns the set of registry statuses that keep a trial
// eligible for candidate selection.
func ActiveStatuses() []string {
	return []string{StatusRecruiting, StatusNotYetRecruiting, StatusActiveNotRecruiting}
}

// IsActiveStatus reports whether the given registry status string makes
// the trial a matching candidate. Comparison is case-insensitive because
// registry exports are not consistent about casing.
func IsActiveStatus(status string) bool {
	n := normalizeToken(status)
	for _, s := range ActiveStatuses() {
		if n == normalizeToken(s) {
			return true
		}
	}
	return false
}
