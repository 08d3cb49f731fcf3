package service

import (
	"sort"

	"github.com/trial-match-server/internal/domain"
)

// Rank orders matches by score descending, breaking ties by trial ID
// ascending so results are deterministic. topN <= 0 means unbounded.
func Rank(matches []domain.TrialMatch, topN int) []domain.TrialMatch {
	ranked := make([]domain.TrialMatch, len(matches))
	copy(ranked, matches)

	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].ScorePercent != ranked[j].ScorePercent {
			return ranked[i].ScorePercent > ranked[j].ScorePercent
		}
		return ranked[i].TrialID < ranked[j].TrialID
	})

	if topN > 0 && len(ranked) > topN {
		ranked = ranked[:topN]
	}
	return ranked
}
