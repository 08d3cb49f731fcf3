package service

import (
	"github.com/trial-match-server/internal/domain"
)

// UndeterminedPolicy decides how criteria with no deterministic outcome
// contribute to a trial's score.
type UndeterminedPolicy string

const (
	// UndeterminedIgnore excludes undetermined criteria from the score
	// denominator. This is the default.
	UndeterminedIgnore UndeterminedPolicy = "ignore"
	// UndeterminedAsUnsatisfied counts undetermined criteria against the
	// trial (conservative).
	UndeterminedAsUnsatisfied UndeterminedPolicy = "unsatisfied"
	// UndeterminedAsSatisfied counts undetermined criteria in the trial's
	// favor, reproducing the permissive legacy scoring.
	UndeterminedAsSatisfied UndeterminedPolicy = "satisfied"
)

// IsValid checks whether the policy is one of the known values.
func (p UndeterminedPolicy) IsValid() bool {
	switch p {
	case UndeterminedIgnore, UndeterminedAsUnsatisfied, UndeterminedAsSatisfied:
		return true
	}
	return false
}

// DefaultScoreThreshold is the minimum score for a trial to surface in
// match results.
const DefaultScoreThreshold = 50.0

// Aggregator folds per-criterion results into a trial-level score. Exclusion
// criteria are inverted: a raw Satisfied outcome on an exclusion means the
// patient meets the exclusionary text, which counts against the trial.
type Aggregator struct {
	policy UndeterminedPolicy
}

// NewAggregator creates an aggregator with the given undetermined policy.
// An unknown policy falls back to UndeterminedIgnore.
func NewAggregator(policy UndeterminedPolicy) *Aggregator {
	if !policy.IsValid() {
		policy = UndeterminedIgnore
	}
	return &Aggregator{policy: policy}
}

// Aggregate produces a TrialMatch from raw criterion results. The semantic
// evaluation, when present, is attached as-is; its score replaces the
// deterministic score only when no criterion produced a determined outcome.
func (a *Aggregator) Aggregate(trial *domain.TrialDefinition, results []domain.MatchResult, semantic *domain.SemanticEvaluation) domain.TrialMatch {
	match := domain.TrialMatch{
		TrialID:  trial.ID,
		Title:    trial.Title,
		Phase:    trial.Phase,
		Semantic: semantic,
	}

	good, total := 0, 0
	for _, r := range results {
		compatible := a.trialCompatible(r)

		switch {
		case r.Outcome == domain.Undetermined && a.policy == UndeterminedIgnore:
			match.UndeterminedResults = append(match.UndeterminedResults, r)
			continue
		case compatible:
			match.SatisfiedResults = append(match.SatisfiedResults, r)
			good++
		default:
			match.UnsatisfiedResults = append(match.UnsatisfiedResults, r)
		}
		total++
	}

	switch {
	case total > 0:
		match.ScorePercent = float64(good) / float64(total) * 100
	case semantic != nil && !semantic.Fallback:
		match.ScorePercent = semantic.Score
	default:
		match.ScorePercent = 0
	}

	return match
}

// trialCompatible maps a raw outcome to "good for this trial", applying
// exclusion inversion and the undetermined policy.
func (a *Aggregator) trialCompatible(r domain.MatchResult) bool {
	if r.Outcome == domain.Undetermined {
		// Only reached under the unsatisfied/satisfied policies; the ignore
		// policy filtered these out already. The policy names the trial-level
		// effect directly, so no polarity inversion applies.
		return a.policy == UndeterminedAsSatisfied
	}

	satisfied := r.Outcome == domain.Satisfied
	if r.Criterion.Polarity == domain.Exclusion {
		return !satisfied
	}
	return satisfied
}

// Meets reports whether a match clears the given score threshold.
func Meets(match domain.TrialMatch, threshold float64) bool {
	return match.ScorePercent >= threshold
}
