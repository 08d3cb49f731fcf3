package service

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/trial-match-server/internal/domain"
)

func inclusionResult(outcome domain.Outcome) domain.MatchResult {
	return domain.MatchResult{
		Criterion: domain.Criterion{Text: "x", Type: domain.CriterionGeneric, Polarity: domain.Inclusion},
		Outcome:   outcome,
	}
}

func exclusionResult(outcome domain.Outcome) domain.MatchResult {
	return domain.MatchResult{
		Criterion: domain.Criterion{Text: "x", Type: domain.CriterionGeneric, Polarity: domain.Exclusion},
		Outcome:   outcome,
	}
}

func TestAggregator_InclusionScoring(t *testing.T) {
	a := NewAggregator(UndeterminedIgnore)
	trial := &domain.TrialDefinition{ID: "NCT001", Title: "t"}

	match := a.Aggregate(trial, []domain.MatchResult{
		inclusionResult(domain.Satisfied),
		inclusionResult(domain.Satisfied),
		inclusionResult(domain.Unsatisfied),
		inclusionResult(domain.Unsatisfied),
	}, nil)

	assert.InDelta(t, 50.0, match.ScorePercent, 0.001)
	assert.Len(t, match.SatisfiedResults, 2)
	assert.Len(t, match.UnsatisfiedResults, 2)
}

// An exclusion criterion the patient meets must count against the trial,
// and one the patient does not meet must count in its favor.
func TestAggregator_ExclusionInversion(t *testing.T) {
	a := NewAggregator(UndeterminedIgnore)
	trial := &domain.TrialDefinition{ID: "NCT001", Title: "t"}

	met := a.Aggregate(trial, []domain.MatchResult{exclusionResult(domain.Satisfied)}, nil)
	assert.Zero(t, met.ScorePercent)
	assert.Len(t, met.UnsatisfiedResults, 1)

	notMet := a.Aggregate(trial, []domain.MatchResult{exclusionResult(domain.Unsatisfied)}, nil)
	assert.InDelta(t, 100.0, notMet.ScorePercent, 0.001)
	assert.Len(t, notMet.SatisfiedResults, 1)
}

func TestAggregator_UndeterminedPolicies(t *testing.T) {
	trial := &domain.TrialDefinition{ID: "NCT001", Title: "t"}
	results := []domain.MatchResult{
		inclusionResult(domain.Satisfied),
		inclusionResult(domain.Undetermined),
	}

	ignore := NewAggregator(UndeterminedIgnore).Aggregate(trial, results, nil)
	assert.InDelta(t, 100.0, ignore.ScorePercent, 0.001)
	assert.Len(t, ignore.UndeterminedResults, 1)

	conservative := NewAggregator(UndeterminedAsUnsatisfied).Aggregate(trial, results, nil)
	assert.InDelta(t, 50.0, conservative.ScorePercent, 0.001)

	permissive := NewAggregator(UndeterminedAsSatisfied).Aggregate(trial, results, nil)
	assert.InDelta(t, 100.0, permissive.ScorePercent, 0.001)
	assert.Empty(t, permissive.UndeterminedResults)
}

// Under the permissive policy an undetermined exclusion counts in the
// trial's favor, not as a met exclusion.
func TestAggregator_UndeterminedExclusionPermissive(t *testing.T) {
	trial := &domain.TrialDefinition{ID: "NCT001", Title: "t"}
	match := NewAggregator(UndeterminedAsSatisfied).Aggregate(trial, []domain.MatchResult{
		exclusionResult(domain.Undetermined),
	}, nil)
	assert.InDelta(t, 100.0, match.ScorePercent, 0.001)
}

func TestAggregator_SemanticScoreWhenNoDeterministic(t *testing.T) {
	a := NewAggregator(UndeterminedIgnore)
	trial := &domain.TrialDefinition{ID: "NCT001", Title: "t"}
	semantic := &domain.SemanticEvaluation{Score: 72, Explanation: "good fit"}

	match := a.Aggregate(trial, []domain.MatchResult{
		inclusionResult(domain.Undetermined),
	}, semantic)

	assert.InDelta(t, 72.0, match.ScorePercent, 0.001)
	assert.Equal(t, semantic, match.Semantic)
}

func TestAggregator_SemanticIgnoredWhenDeterministicPresent(t *testing.T) {
	a := NewAggregator(UndeterminedIgnore)
	trial := &domain.TrialDefinition{ID: "NCT001", Title: "t"}
	semantic := &domain.SemanticEvaluation{Score: 10}

	match := a.Aggregate(trial, []domain.MatchResult{
		inclusionResult(domain.Satisfied),
	}, semantic)

	assert.InDelta(t, 100.0, match.ScorePercent, 0.001)
}

func TestAggregator_FallbackSemanticNotUsedForScore(t *testing.T) {
	a := NewAggregator(UndeterminedIgnore)
	trial := &domain.TrialDefinition{ID: "NCT001", Title: "t"}
	semantic := &domain.SemanticEvaluation{Score: 90, Fallback: true}

	match := a.Aggregate(trial, []domain.MatchResult{
		inclusionResult(domain.Undetermined),
	}, semantic)

	assert.Zero(t, match.ScorePercent)
}

func TestRank(t *testing.T) {
	matches := []domain.TrialMatch{
		{TrialID: "NCT003", ScorePercent: 50},
		{TrialID: "NCT001", ScorePercent: 100},
		{TrialID: "NCT004", ScorePercent: 75},
		{TrialID: "NCT002", ScorePercent: 75},
	}

	ranked := Rank(matches, 0)
	ids := make([]string, len(ranked))
	for i, m := range ranked {
		ids[i] = m.TrialID
	}
	assert.Equal(t, []string{"NCT001", "NCT002", "NCT004", "NCT003"}, ids)

	// Input order is untouched.
	assert.Equal(t, "NCT003", matches[0].TrialID)

	top2 := Rank(matches, 2)
	assert.Len(t, top2, 2)
	assert.Equal(t, "NCT001", top2[0].TrialID)
}
