package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trial-match-server/internal/domain"
)

type fakeSemantic struct {
	evaluation *domain.SemanticEvaluation
	err        error
	calls      int
}

func (f *fakeSemantic) EvaluateTrialMatch(_ context.Context, _ *domain.PatientProfile, _ *domain.TrialDefinition) (*domain.SemanticEvaluation, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.evaluation, nil
}

func newTestMatcher(semantic SemanticEvaluator, opts MatcherOptions) *Matcher {
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	return NewMatcher(
		NewPreFilter(logger),
		NewClassifier(128, logger),
		NewEvaluator(DefaultEvaluatorOptions()),
		NewAggregator(UndeterminedIgnore),
		semantic,
		opts,
		logger,
	)
}

func nsclcProfile() *domain.PatientProfile {
	return &domain.PatientProfile{
		Age:               intp(65),
		Gender:            domain.Female,
		Diagnosis:         "non-small cell lung cancer",
		Stage:             "IV",
		PerformanceStatus: intp(1),
		Mutations:         []string{"EGFR T790M"},
	}
}

func nsclcTrial(id string) domain.TrialDefinition {
	return domain.TrialDefinition{
		ID:          id,
		Title:       "Osimertinib in EGFR-mutant NSCLC",
		Description: "Phase III study in advanced non-small cell lung cancer",
		Phase:       "Phase 3",
		Status:      "Recruiting",
		InclusionCriteria: []domain.Criterion{
			{Text: "Age >= 18", Type: domain.CriterionAge, Polarity: domain.Inclusion},
			{Text: "ECOG performance status 0-2", Type: domain.CriterionPerformance, Polarity: domain.Inclusion},
		},
		ExclusionCriteria: []domain.Criterion{
			{Text: "Untreated brain metastases", Type: domain.CriterionMetastasis, Polarity: domain.Exclusion},
		},
	}
}

// The reference scenario: both inclusion criteria satisfied and the brain
// metastasis exclusion not violated yields a perfect score.
func TestMatcher_EndToEnd(t *testing.T) {
	m := newTestMatcher(nil, DefaultMatcherOptions())

	report, err := m.Match(context.Background(), nsclcProfile(), []domain.TrialDefinition{nsclcTrial("NCT001")})
	require.NoError(t, err)
	require.Len(t, report.Matches, 1)

	match := report.Matches[0]
	assert.Equal(t, "NCT001", match.TrialID)
	assert.InDelta(t, 100.0, match.ScorePercent, 0.001)
	assert.Len(t, match.SatisfiedResults, 3)
	assert.Empty(t, match.UnsatisfiedResults)
	assert.False(t, report.Partial)
}

func TestMatcher_EmptyCatalog(t *testing.T) {
	m := newTestMatcher(nil, DefaultMatcherOptions())

	report, err := m.Match(context.Background(), nsclcProfile(), nil)
	require.NoError(t, err)
	assert.Empty(t, report.Matches)
	assert.NotEmpty(t, report.Diagnostic)
}

func TestMatcher_ThresholdFiltering(t *testing.T) {
	m := newTestMatcher(nil, DefaultMatcherOptions())

	bad := nsclcTrial("NCT002")
	bad.InclusionCriteria = []domain.Criterion{
		{Text: "Age >= 70", Type: domain.CriterionAge, Polarity: domain.Inclusion},
		{Text: "ECOG performance status of 0", Type: domain.CriterionPerformance, Polarity: domain.Inclusion},
	}

	report, err := m.Match(context.Background(), nsclcProfile(), []domain.TrialDefinition{nsclcTrial("NCT001"), bad})
	require.NoError(t, err)
	require.Len(t, report.Matches, 1)
	assert.Equal(t, "NCT001", report.Matches[0].TrialID)
	assert.Equal(t, 2, report.Evaluated)
}

func TestMatcher_Ordering(t *testing.T) {
	m := newTestMatcher(nil, DefaultMatcherOptions())

	partial := nsclcTrial("NCT000")
	partial.InclusionCriteria = append(partial.InclusionCriteria,
		domain.Criterion{Text: "ALK rearrangement", Type: domain.CriterionMutation, Polarity: domain.Inclusion})

	report, err := m.Match(context.Background(), nsclcProfile(), []domain.TrialDefinition{partial, nsclcTrial("NCT001")})
	require.NoError(t, err)
	require.Len(t, report.Matches, 2)
	assert.Equal(t, "NCT001", report.Matches[0].TrialID)
	assert.Greater(t, report.Matches[0].ScorePercent, report.Matches[1].ScorePercent)
}

func TestMatcher_TopN(t *testing.T) {
	opts := DefaultMatcherOptions()
	opts.TopN = 2
	m := newTestMatcher(nil, opts)

	catalog := []domain.TrialDefinition{nsclcTrial("NCT001"), nsclcTrial("NCT002"), nsclcTrial("NCT003")}
	report, err := m.Match(context.Background(), nsclcProfile(), catalog)
	require.NoError(t, err)
	assert.Len(t, report.Matches, 2)
}

func TestMatcher_SemanticAugmentation(t *testing.T) {
	semantic := &fakeSemantic{
		evaluation: &domain.SemanticEvaluation{Score: 85, Explanation: "strong fit", MatchingCriteria: []string{"EGFR mutation"}},
	}
	m := newTestMatcher(semantic, DefaultMatcherOptions())

	report, err := m.Match(context.Background(), nsclcProfile(), []domain.TrialDefinition{nsclcTrial("NCT001")})
	require.NoError(t, err)
	require.Len(t, report.Matches, 1)

	match := report.Matches[0]
	require.NotNil(t, match.Semantic)
	assert.Equal(t, 85.0, match.Semantic.Score)
	// Deterministic criteria were evaluated, so the deterministic score wins.
	assert.InDelta(t, 100.0, match.ScorePercent, 0.001)
	assert.Equal(t, 1, semantic.calls)
}

func TestMatcher_SemanticFailureIsContained(t *testing.T) {
	semantic := &fakeSemantic{err: errors.New("oracle unreachable")}
	m := newTestMatcher(semantic, DefaultMatcherOptions())

	report, err := m.Match(context.Background(), nsclcProfile(), []domain.TrialDefinition{nsclcTrial("NCT001")})
	require.NoError(t, err)
	require.Len(t, report.Matches, 1)

	match := report.Matches[0]
	require.NotNil(t, match.Semantic)
	assert.True(t, match.Semantic.Fallback)
	assert.InDelta(t, 100.0, match.ScorePercent, 0.001)
}

func TestMatcher_SemanticBudget(t *testing.T) {
	semantic := &fakeSemantic{evaluation: &domain.SemanticEvaluation{Score: 60}}
	opts := DefaultMatcherOptions()
	opts.SemanticMaxTrials = 2
	opts.MaxConcurrency = 1
	m := newTestMatcher(semantic, opts)

	catalog := []domain.TrialDefinition{
		nsclcTrial("NCT001"), nsclcTrial("NCT002"), nsclcTrial("NCT003"), nsclcTrial("NCT004"),
	}
	report, err := m.Match(context.Background(), nsclcProfile(), catalog)
	require.NoError(t, err)
	assert.Len(t, report.Matches, 4)
	assert.Equal(t, 2, semantic.calls)
}

func TestMatcher_DeadlineReturnsPartial(t *testing.T) {
	opts := DefaultMatcherOptions()
	opts.RunTimeout = time.Nanosecond
	opts.MaxConcurrency = 1
	m := newTestMatcher(nil, opts)

	catalog := make([]domain.TrialDefinition, 50)
	for i := range catalog {
		catalog[i] = nsclcTrial("NCT" + string(rune('A'+i%26)) + string(rune('A'+i/26)))
	}

	report, err := m.Match(context.Background(), nsclcProfile(), catalog)
	require.NoError(t, err)
	assert.LessOrEqual(t, report.Evaluated, len(catalog))
}

func TestMatcher_UnclassifiedCriteriaAreClassified(t *testing.T) {
	m := newTestMatcher(nil, DefaultMatcherOptions())

	trial := nsclcTrial("NCT001")
	trial.InclusionCriteria = []domain.Criterion{{Text: "Age >= 18", Polarity: domain.Inclusion}}
	trial.ExclusionCriteria = nil

	report, err := m.Match(context.Background(), nsclcProfile(), []domain.TrialDefinition{trial})
	require.NoError(t, err)
	require.Len(t, report.Matches, 1)
	assert.Equal(t, domain.CriterionAge, report.Matches[0].SatisfiedResults[0].Criterion.Type)
}
