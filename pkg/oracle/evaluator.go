package oracle

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/trial-match-server/internal/domain"
)

// Evaluator runs semantic trial matching through a Generator. It satisfies
// the matcher's SemanticEvaluator dependency.
type Evaluator struct {
	generator  Generator
	capability Capability
	logger     *logrus.Logger
}

// NewEvaluator creates a semantic evaluator. The capability describes which
// backend the generator talks to.
func NewEvaluator(generator Generator, capability Capability, logger *logrus.Logger) *Evaluator {
	return &Evaluator{generator: generator, capability: capability, logger: logger}
}

// Capability reports the configured backend.
func (e *Evaluator) Capability() Capability {
	return e.capability
}

// EvaluateTrialMatch scores one patient/trial pair through the oracle. All
// failures map to ErrUnavailable; the caller keeps its deterministic result.
func (e *Evaluator) EvaluateTrialMatch(ctx context.Context, profile *domain.PatientProfile, trial *domain.TrialDefinition) (*domain.SemanticEvaluation, error) {
	if !e.capability.Available {
		return nil, ErrUnavailable
	}

	prompt, err := BuildMatchingPrompt(profile, trial)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	raw, err := e.generator.Generate(ctx, prompt)
	if err != nil {
		return nil, fmt.Errorf("oracle generate for trial %s: %w", trial.ID, err)
	}

	evaluation, err := ParseEvaluation(raw)
	if err != nil {
		e.logger.WithFields(logrus.Fields{
			"trial_id": trial.ID,
			"error":    err.Error(),
		}).Warn("Discarding unusable oracle response")
		return nil, err
	}

	e.logger.WithFields(logrus.Fields{
		"trial_id": trial.ID,
		"score":    evaluation.Score,
	}).Debug("Semantic evaluation complete")

	return evaluation, nil
}

// MatchSummary is a patient-friendly explanation of a completed match.
type MatchSummary struct {
	Summary         string   `json:"summary"`
	KeyPoints       []string `json:"key_points"`
	PatientGuidance string   `json:"patient_guidance"`
}

// SummarizeMatch asks the oracle for a short patient-facing explanation of
// a match result.
func (e *Evaluator) SummarizeMatch(ctx context.Context, match *domain.TrialMatch) (*MatchSummary, error) {
	if !e.capability.Available {
		return nil, ErrUnavailable
	}

	prompt, err := BuildSummaryPrompt(match)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	raw, err := e.generator.Generate(ctx, prompt)
	if err != nil {
		return nil, fmt.Errorf("oracle generate summary for trial %s: %w", match.TrialID, err)
	}

	return parseSummary(raw)
}
