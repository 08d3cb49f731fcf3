package service

import (
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/trial-match-server/internal/domain"
)

// PreFilter narrows the trial candidate set with cheap structural checks
// before detailed criterion evaluation. It is an optimization, not a
// correctness gate: any doubt passes the trial through.
type PreFilter struct {
	logger *logrus.Logger
}

// NewPreFilter creates a candidate pre-filter.
func NewPreFilter(logger *logrus.Logger) *PreFilter {
	return &PreFilter{logger: logger}
}

// Filter returns the trials worth detailed evaluation for the given patient.
func (f *PreFilter) Filter(profile *domain.PatientProfile, catalog []domain.TrialDefinition) []domain.TrialDefinition {
	candidates := make([]domain.TrialDefinition, 0, len(catalog))

	var keywords []string
	if profile.Diagnosis != "" {
		keywords = ExtractDiagnosisKeywords(profile.Diagnosis)
	}

	for _, trial := range catalog {
		if reason := f.rejectReason(profile, &trial, keywords); reason != "" {
			f.logger.WithFields(logrus.Fields{
				"trial_id": trial.ID,
				"reason":   reason,
			}).Debug("Pre-filter rejected trial")
			continue
		}
		candidates = append(candidates, trial)
	}

	f.logger.WithFields(logrus.Fields{
		"catalog_size": len(catalog),
		"candidates":   len(candidates),
	}).Info("Pre-filter narrowed candidate set")

	return candidates
}

// rejectReason returns a non-empty reason only when the trial is definitely
// not worth evaluating.
func (f *PreFilter) rejectReason(profile *domain.PatientProfile, trial *domain.TrialDefinition, keywords []string) string {
	if !domain.IsActiveStatus(trial.Status) {
		return "inactive status: " + trial.Status
	}
	if !trial.AcceptsAge(profile.Age) {
		return "age outside trial bounds"
	}
	if !trial.AcceptsGender(profile.Gender) {
		return "gender not accepted"
	}

	// Keyword overlap is only checked when the patient has a diagnosis that
	// yielded terms longer than three characters; otherwise every trial
	// passes this gate.
	applicable := false
	for _, kw := range keywords {
		if len(kw) > 3 {
			applicable = true
			break
		}
	}
	if !applicable {
		return ""
	}

	haystack := strings.ToLower(trial.Title + " " + trial.Description + " " + criteriaText(trial))
	for _, kw := range keywords {
		if len(kw) > 3 && strings.Contains(haystack, kw) {
			return ""
		}
	}
	return "no diagnosis keyword overlap"
}

func criteriaText(trial *domain.TrialDefinition) string {
	var sb strings.Builder
	for _, c := range trial.InclusionCriteria {
		sb.WriteString(c.Text)
		sb.WriteString(" ")
	}
	for _, c := range trial.ExclusionCriteria {
		sb.WriteString(c.Text)
		sb.WriteString(" ")
	}
	return sb.String()
}
