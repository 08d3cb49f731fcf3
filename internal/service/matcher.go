package service

import (
	"context"
	"errors"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/trial-match-server/internal/domain"
)

// SemanticEvaluator augments deterministic matching with an external
// text-generation oracle. Implementations must honor the context deadline
// and return an error when the oracle is unavailable or its response is
// unusable; errors never abort the matching run.
type SemanticEvaluator interface {
	EvaluateTrialMatch(ctx context.Context, profile *domain.PatientProfile, trial *domain.TrialDefinition) (*domain.SemanticEvaluation, error)
}

// MatcherOptions tune a matching run.
type MatcherOptions struct {
	ScoreThreshold    float64
	TopN              int // 0 = unbounded
	MaxConcurrency    int
	RunTimeout        time.Duration
	SemanticMaxTrials int // oracle call budget per run
}

// DefaultMatcherOptions returns the standard matching configuration.
func DefaultMatcherOptions() MatcherOptions {
	return MatcherOptions{
		ScoreThreshold:    DefaultScoreThreshold,
		MaxConcurrency:    8,
		RunTimeout:        2 * time.Minute,
		SemanticMaxTrials: 10,
	}
}

// Matcher orchestrates a matching run: pre-filter, per-trial deterministic
// evaluation in a bounded worker pool, optional semantic augmentation for
// the top candidates, then ranking.
type Matcher struct {
	prefilter  *PreFilter
	classifier *Classifier
	evaluator  *Evaluator
	aggregator *Aggregator
	semantic   SemanticEvaluator // nil when no oracle is configured
	opts       MatcherOptions
	logger     *logrus.Logger
}

// NewMatcher wires the matching pipeline. semantic may be nil.
func NewMatcher(
	prefilter *PreFilter,
	classifier *Classifier,
	evaluator *Evaluator,
	aggregator *Aggregator,
	semantic SemanticEvaluator,
	opts MatcherOptions,
	logger *logrus.Logger,
) *Matcher {
	if opts.MaxConcurrency <= 0 {
		opts.MaxConcurrency = 1
	}
	return &Matcher{
		prefilter:  prefilter,
		classifier: classifier,
		evaluator:  evaluator,
		aggregator: aggregator,
		semantic:   semantic,
		opts:       opts,
		logger:     logger,
	}
}

// Match runs the full pipeline. It never fails the whole run for a single
// trial or oracle problem; on deadline it returns the matches computed so
// far with Partial set.
func (m *Matcher) Match(ctx context.Context, profile *domain.PatientProfile, catalog []domain.TrialDefinition) (*domain.MatchReport, error) {
	report := &domain.MatchReport{Matches: []domain.TrialMatch{}}

	if len(catalog) == 0 {
		report.Diagnostic = domain.ErrEmptyCatalog.Error()
		return report, nil
	}

	if m.opts.RunTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, m.opts.RunTimeout)
		defer cancel()
	}

	candidates := m.prefilter.Filter(profile, catalog)
	report.Candidates = len(candidates)
	if len(candidates) == 0 {
		report.Diagnostic = "no candidate trials after pre-filter"
		return report, nil
	}

	matches, evaluated, partial := m.evaluateCandidates(ctx, profile, candidates)
	report.Evaluated = evaluated
	report.Partial = partial
	if partial {
		report.Diagnostic = "run deadline exceeded; ranking computed from partial results"
	}

	// Semantic augmentation runs before threshold filtering so trials with
	// no deterministically evaluable criteria can still surface on their
	// semantic score alone.
	ranked := Rank(matches, 0)
	if m.semantic != nil {
		ranked = m.augmentSemantic(ctx, profile, candidates, ranked)
	}

	surfaced := make([]domain.TrialMatch, 0, len(ranked))
	for _, match := range ranked {
		if Meets(match, m.opts.ScoreThreshold) {
			surfaced = append(surfaced, match)
		}
	}
	surfaced = Rank(surfaced, 0)

	if m.opts.TopN > 0 && len(surfaced) > m.opts.TopN {
		surfaced = surfaced[:m.opts.TopN]
	}
	report.Matches = surfaced

	m.logger.WithFields(logrus.Fields{
		"candidates": report.Candidates,
		"evaluated":  report.Evaluated,
		"matches":    len(report.Matches),
		"partial":    report.Partial,
	}).Info("Matching run complete")

	return report, nil
}

// evaluateCandidates runs deterministic evaluation for every candidate in a
// bounded worker pool. Each trial is independent; a deadline stops scheduling
// and the completed subset is returned.
func (m *Matcher) evaluateCandidates(ctx context.Context, profile *domain.PatientProfile, candidates []domain.TrialDefinition) ([]domain.TrialMatch, int, bool) {
	results := make([]*domain.TrialMatch, len(candidates))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(m.opts.MaxConcurrency)

	for i := range candidates {
		if gctx.Err() != nil {
			break
		}
		i := i
		g.Go(func() error {
			if gctx.Err() != nil {
				return gctx.Err()
			}
			match := m.evaluateTrial(profile, &candidates[i])
			results[i] = &match
			return nil
		})
	}

	err := g.Wait()
	partial := err != nil && errors.Is(err, context.DeadlineExceeded)

	matches := make([]domain.TrialMatch, 0, len(candidates))
	for _, r := range results {
		if r != nil {
			matches = append(matches, *r)
		}
	}
	return matches, len(matches), partial
}

// evaluateTrial evaluates every criterion of one trial and aggregates the
// outcome. Pure computation over immutable inputs.
func (m *Matcher) evaluateTrial(profile *domain.PatientProfile, trial *domain.TrialDefinition) domain.TrialMatch {
	results := make([]domain.MatchResult, 0, trial.CriteriaCount())

	for _, c := range trial.InclusionCriteria {
		results = append(results, m.evaluator.Evaluate(m.ensureClassified(c), profile))
	}
	for _, c := range trial.ExclusionCriteria {
		results = append(results, m.evaluator.Evaluate(m.ensureClassified(c), profile))
	}

	return m.aggregator.Aggregate(trial, results, nil)
}

// ensureClassified backfills the criterion type for catalogs whose ingestion
// did not classify criteria.
func (m *Matcher) ensureClassified(c domain.Criterion) domain.Criterion {
	if !c.Type.IsValid() {
		c.Type = m.classifier.Classify(c.Text)
	}
	return c
}

// augmentSemantic calls the oracle for the top surfaced matches, bounded by
// the per-run budget. Oracle failures mark the match fallback_mode instead
// of removing it.
func (m *Matcher) augmentSemantic(ctx context.Context, profile *domain.PatientProfile, candidates []domain.TrialDefinition, surfaced []domain.TrialMatch) []domain.TrialMatch {
	budget := m.opts.SemanticMaxTrials
	if budget <= 0 || budget > len(surfaced) {
		budget = len(surfaced)
	}

	byID := make(map[string]*domain.TrialDefinition, len(candidates))
	for i := range candidates {
		byID[candidates[i].ID] = &candidates[i]
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(m.opts.MaxConcurrency)

	for i := 0; i < budget; i++ {
		i := i
		trial, ok := byID[surfaced[i].TrialID]
		if !ok {
			continue
		}
		g.Go(func() error {
			evaluation, err := m.semantic.EvaluateTrialMatch(gctx, profile, trial)
			if err != nil {
				m.logger.WithFields(logrus.Fields{
					"trial_id": trial.ID,
					"error":    err.Error(),
				}).Warn("Semantic evaluation unavailable, keeping deterministic result")
				surfaced[i].Semantic = &domain.SemanticEvaluation{Fallback: true}
				return nil
			}
			surfaced[i].Semantic = evaluation
			if surfaced[i].DeterminedCount() == 0 && !evaluation.Fallback {
				surfaced[i].ScorePercent = evaluation.Score
			}
			return nil
		})
	}

	// Workers only write disjoint indices and never return errors.
	_ = g.Wait()
	return surfaced
}
