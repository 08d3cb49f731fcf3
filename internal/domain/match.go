package domain

// MatchResult is the outcome of evaluating one criterion against one
// patient profile. Results are created fresh per request and never
// mutated afterwards.
type MatchResult struct {
	Criterion   Criterion `json:"criterion"`
	Outcome     Outcome   `json:"outcome"`
	Explanation string    `json:"explanation"`
	Confidence  *float64  `json:"confidence,omitempty"`
}

// Satisfied is the legacy boolean view of the three-valued outcome.
// Undetermined reads as false here, which keeps the invariant that an
// absent profile field can never produce a false match.
func (r MatchResult) Satisfied() bool {
	return r.Outcome == Satisfied
}

// SemanticEvaluation is the optional augmentation produced by the
// semantic oracle for a single trial. Fallback is set when the oracle
// was unavailable or returned an unusable response and the match was
// scored from deterministic criteria only.
type SemanticEvaluation struct {
	Score               float64  `json:"score"`
	Explanation         string   `json:"explanation,omitempty"`
	MatchingCriteria    []string `json:"matching_criteria,omitempty"`
	ConflictingCriteria []string `json:"conflicting_criteria,omitempty"`
	Fallback            bool     `json:"fallback_mode"`
}

// TrialMatch is the trial-level match record returned to callers.
// Satisfied/Unsatisfied are reported from the patient's point of view:
// an exclusion criterion the patient does NOT meet appears in
// SatisfiedResults because it is compatible with enrollment.
type TrialMatch struct {
	TrialID      string  `json:"trial_id"`
	Title        string  `json:"title,omitempty"`
	Phase        string  `json:"phase,omitempty"`
	ScorePercent float64 `json:"score_percent"`

	SatisfiedResults    []MatchResult `json:"satisfied_results"`
	UnsatisfiedResults  []MatchResult `json:"unsatisfied_results"`
	UndeterminedResults []MatchResult `json:"undetermined_results"`

	Semantic *SemanticEvaluation `json:"semantic_evaluation,omitempty"`
}

// DeterminedCount is the number of criteria that produced a definite
// outcome for this trial.
func (m *TrialMatch) DeterminedCount() int {
	return len(m.SatisfiedResults) + len(m.UnsatisfiedResults)
}

// MatchReport wraps a completed matching run. Partial is set when the
// run deadline expired before every candidate was evaluated; Matches
// then holds the rankings computed so far.
type MatchReport struct {
	Matches    []TrialMatch `json:"matches"`
	Candidates int          `json:"candidates"`
	Evaluated  int          `json:"evaluated"`
	Partial    bool         `json:"partial,omitempty"`
	Diagnostic string       `json:"diagnostic,omitempty"`
}
