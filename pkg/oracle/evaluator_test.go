package oracle

import (
	"context"
	"errors"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trial-match-server/internal/domain"
)

type fakeGenerator struct {
	response string
	err      error
	calls    int
}

func (f *fakeGenerator) Generate(_ context.Context, _ string) (string, error) {
	f.calls++
	if f.err != nil {
		return "", f.err
	}
	return f.response, nil
}

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	return logger
}

func testTrial() *domain.TrialDefinition {
	return &domain.TrialDefinition{
		ID:     "NCT001",
		Title:  "Osimertinib in EGFR-mutant NSCLC",
		Status: "Recruiting",
		InclusionCriteria: []domain.Criterion{
			{Text: "Age >= 18", Type: domain.CriterionAge, Polarity: domain.Inclusion},
		},
	}
}

func TestEvaluator_EvaluateTrialMatch(t *testing.T) {
	gen := &fakeGenerator{response: `{"match_score": 75, "explanation": "good fit", "matching_criteria": ["Age >= 18"]}`}
	e := NewEvaluator(gen, NewCapability("ollama", "llama3"), quietLogger())

	evaluation, err := e.EvaluateTrialMatch(context.Background(), &domain.PatientProfile{}, testTrial())
	require.NoError(t, err)
	assert.Equal(t, 75.0, evaluation.Score)
	assert.Equal(t, 1, gen.calls)
}

func TestEvaluator_GeneratorFailure(t *testing.T) {
	gen := &fakeGenerator{err: errors.New("connection refused")}
	e := NewEvaluator(gen, NewCapability("ollama", "llama3"), quietLogger())

	_, err := e.EvaluateTrialMatch(context.Background(), &domain.PatientProfile{}, testTrial())
	require.Error(t, err)
}

func TestEvaluator_MalformedResponse(t *testing.T) {
	gen := &fakeGenerator{response: "I think the patient qualifies."}
	e := NewEvaluator(gen, NewCapability("ollama", "llama3"), quietLogger())

	_, err := e.EvaluateTrialMatch(context.Background(), &domain.PatientProfile{}, testTrial())
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestEvaluator_UnavailableCapability(t *testing.T) {
	gen := &fakeGenerator{response: `{"match_score": 75}`}
	e := NewEvaluator(gen, Unavailable(), quietLogger())

	_, err := e.EvaluateTrialMatch(context.Background(), &domain.PatientProfile{}, testTrial())
	assert.ErrorIs(t, err, ErrUnavailable)
	assert.Zero(t, gen.calls, "no oracle call without capability")
}

func TestBuildMatchingPrompt(t *testing.T) {
	profile := &domain.PatientProfile{Diagnosis: "NSCLC"}
	prompt, err := BuildMatchingPrompt(profile, testTrial())
	require.NoError(t, err)
	assert.Contains(t, prompt, "NSCLC")
	assert.Contains(t, prompt, "Age >= 18")
	assert.NotContains(t, prompt, "{{PATIENT_FEATURES}}")
	assert.NotContains(t, prompt, "{{TRIAL}}")
}

func TestResilientGenerator_Retry(t *testing.T) {
	inner := &flakyGenerator{failures: 1, response: "ok"}
	g := NewResilientGenerator(inner, ResilientOptions{RetryCount: 1}, quietLogger())

	result, err := g.Generate(context.Background(), "prompt")
	require.NoError(t, err)
	assert.Equal(t, "ok", result)
	assert.Equal(t, 2, inner.calls)
}

func TestResilientGenerator_ExhaustedRetries(t *testing.T) {
	inner := &flakyGenerator{failures: 10}
	g := NewResilientGenerator(inner, ResilientOptions{RetryCount: 1}, quietLogger())

	_, err := g.Generate(context.Background(), "prompt")
	assert.ErrorIs(t, err, ErrUnavailable)
	assert.Equal(t, 2, inner.calls)
}

func TestResilientGenerator_BreakerOpens(t *testing.T) {
	inner := &flakyGenerator{failures: 100}
	g := NewResilientGenerator(inner, ResilientOptions{}, quietLogger())

	for i := 0; i < 5; i++ {
		_, err := g.Generate(context.Background(), "prompt")
		require.Error(t, err)
	}

	callsBefore := inner.calls
	_, err := g.Generate(context.Background(), "prompt")
	assert.ErrorIs(t, err, ErrUnavailable)
	assert.Equal(t, callsBefore, inner.calls, "open breaker fails fast without calling the oracle")
}

type flakyGenerator struct {
	failures int
	response string
	calls    int
}

func (f *flakyGenerator) Generate(_ context.Context, _ string) (string, error) {
	f.calls++
	if f.calls <= f.failures {
		return "", errors.New("transient failure")
	}
	return f.response, nil
}
