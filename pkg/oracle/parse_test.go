package oracle

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseEvaluation_Valid(t *testing.T) {
	raw := `{
		"match_score": 85,
		"explanation": "Patient meets the main inclusion criteria.",
		"matching_criteria": ["Age >= 18", "EGFR mutation"],
		"conflicting_criteria": []
	}`

	evaluation, err := ParseEvaluation(raw)
	require.NoError(t, err)
	assert.Equal(t, 85.0, evaluation.Score)
	assert.Equal(t, "Patient meets the main inclusion criteria.", evaluation.Explanation)
	assert.Equal(t, []string{"Age >= 18", "EGFR mutation"}, evaluation.MatchingCriteria)
	assert.Empty(t, evaluation.ConflictingCriteria)
	assert.False(t, evaluation.Fallback)
}

func TestParseEvaluation_MarkdownFences(t *testing.T) {
	raw := "```json\n{\"match_score\": 60, \"explanation\": \"partial fit\"}\n```"

	evaluation, err := ParseEvaluation(raw)
	require.NoError(t, err)
	assert.Equal(t, 60.0, evaluation.Score)
}

func TestParseEvaluation_LeadingProse(t *testing.T) {
	raw := `Here is my analysis:
{"match_score": 40, "explanation": "weak fit"}`

	evaluation, err := ParseEvaluation(raw)
	require.NoError(t, err)
	assert.Equal(t, 40.0, evaluation.Score)
}

func TestParseEvaluation_Malformed(t *testing.T) {
	cases := []struct {
		name string
		raw  string
	}{
		{"not json", "the patient is a great fit"},
		{"empty", ""},
		{"truncated", `{"match_score": 85, "explanation": "cut of`},
		{"missing score", `{"explanation": "no score field"}`},
		{"score out of range", `{"match_score": 150}`},
		{"score wrong type", `{"match_score": "high"}`},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ParseEvaluation(tc.raw)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrUnavailable)
		})
	}
}

func TestParseSummary(t *testing.T) {
	raw := `{"summary": "This trial is a strong match.", "key_points": ["EGFR positive"], "patient_guidance": "Discuss with your oncologist."}`

	summary, err := parseSummary(raw)
	require.NoError(t, err)
	assert.Equal(t, "This trial is a strong match.", summary.Summary)
	assert.Equal(t, []string{"EGFR positive"}, summary.KeyPoints)

	_, err = parseSummary(`{"key_points": []}`)
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestExtractJSON(t *testing.T) {
	assert.Equal(t, `{"a":1}`, extractJSON("```json\n{\"a\":1}\n```"))
	assert.Equal(t, `{"a":1}`, extractJSON(`prose {"a":1} trailing`))
	assert.Equal(t, "", extractJSON("no object here"))
}
