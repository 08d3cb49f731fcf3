package oracle

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/trial-match-server/internal/domain"
)

const matchingPromptTemplate = `# TASK
Analyze if the patient matches the clinical trial criteria and provide detailed explanations.

# INPUT
Patient Features: {{PATIENT_FEATURES}}
Clinical Trial: {{TRIAL}}

# EVALUATION CRITERIA
1. Inclusion Criteria
2. Exclusion Criteria
3. Age Requirements
4. Cancer Type and Stage
5. Performance Status
6. Previous Treatments
7. Biomarkers/Mutations

# OUTPUT FORMAT
Respond with a single JSON object:
{
    "match_score": 0-100,
    "explanation": "string",
    "matching_criteria": ["list of criteria the patient meets"],
    "conflicting_criteria": ["list of criteria the patient conflicts with"]
}`

const summaryPromptTemplate = `# TASK
Create a concise, patient-friendly summary of why this trial matches or doesn't match.

# INPUT
Match Analysis: {{MATCH_ANALYSIS}}

# FORMAT
Respond with a single JSON object:
{
    "summary": "2-3 sentence summary",
    "key_points": ["bullet points of most important factors"],
    "patient_guidance": "what the patient should discuss with their doctor"
}`

// BuildMatchingPrompt renders the trial matching prompt for one
// patient/trial pair.
func BuildMatchingPrompt(profile *domain.PatientProfile, trial *domain.TrialDefinition) (string, error) {
	patientJSON, err := json.Marshal(profile)
	if err != nil {
		return "", fmt.Errorf("marshal patient profile: %w", err)
	}

	// Criteria text only; evaluation internals don't belong in the prompt.
	trialPayload := map[string]any{
		"id":                 trial.ID,
		"title":              trial.Title,
		"description":        trial.Description,
		"phase":              trial.Phase,
		"inclusion_criteria": criteriaTexts(trial.InclusionCriteria),
		"exclusion_criteria": criteriaTexts(trial.ExclusionCriteria),
	}
	trialJSON, err := json.Marshal(trialPayload)
	if err != nil {
		return "", fmt.Errorf("marshal trial payload: %w", err)
	}

	prompt := strings.ReplaceAll(matchingPromptTemplate, "{{PATIENT_FEATURES}}", string(patientJSON))
	prompt = strings.ReplaceAll(prompt, "{{TRIAL}}", string(trialJSON))
	return prompt, nil
}

// BuildSummaryPrompt renders the patient-facing summary prompt for a
// completed match.
func BuildSummaryPrompt(match *domain.TrialMatch) (string, error) {
	matchJSON, err := json.Marshal(match)
	if err != nil {
		return "", fmt.Errorf("marshal match: %w", err)
	}
	return strings.ReplaceAll(summaryPromptTemplate, "{{MATCH_ANALYSIS}}", string(matchJSON)), nil
}

func criteriaTexts(criteria []domain.Criterion) []string {
	texts := make([]string, len(criteria))
	for i, c := range criteria {
		texts[i] = c.Text
	}
	return texts
}
