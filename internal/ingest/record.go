package ingest

import (
	"strings"
	"time"

	"github.com/trial-match-server/internal/domain"
)

// TrialRecord is a raw registry record, one row of a ClinicalTrials.gov
// style export.
type TrialRecord struct {
	NCTID           string `json:"nct_id"`
	OfficialTitle   string `json:"official_title"`
	BriefTitle      string `json:"brief_title"`
	BriefSummary    string `json:"brief_summary"`
	DetailedSummary string `json:"detailed_description"`
	Phase           string `json:"phase"`
	Status          string `json:"overall_status"`
	EligibilityText string `json:"eligibility_criteria"`
	MinimumAge      string `json:"minimum_age"`
	MaximumAge      string `json:"maximum_age"`
	Gender          string `json:"gender"`
}

// BuildTrial converts a raw record into a TrialDefinition, parsing and
// classifying its eligibility criteria. The official title is preferred
// over the brief one, and the brief summary over the detailed one.
func (p *CriteriaParser) BuildTrial(record TrialRecord) domain.TrialDefinition {
	title := record.OfficialTitle
	if title == "" {
		title = record.BriefTitle
	}
	description := record.BriefSummary
	if description == "" {
		description = record.DetailedSummary
	}

	inclusion, exclusion := p.Parse(record.EligibilityText)

	return domain.TrialDefinition{
		ID:                strings.TrimSpace(record.NCTID),
		Title:             strings.TrimSpace(title),
		Description:       strings.TrimSpace(description),
		Phase:             strings.TrimSpace(record.Phase),
		Status:            strings.TrimSpace(record.Status),
		MinAge:            ParseAgeYears(record.MinimumAge),
		MaxAge:            ParseAgeYears(record.MaximumAge),
		Gender:            strings.TrimSpace(record.Gender),
		InclusionCriteria: inclusion,
		ExclusionCriteria: exclusion,
		UpdatedAt:         time.Now().UTC(),
	}
}
