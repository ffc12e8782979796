package relevance

import (
	"sort"

	"github.com/mohammad-safakhou/gamescout/internal/marketplace"
)

// RelaxedMinScore is the floor the filter falls back to when nothing passes
// the caller's threshold.
const RelaxedMinScore = 25.0

// FilterResult is the outcome of one filter-and-rank pass.
type FilterResult struct {
	Items []ScoredItem `json:"items"`
	// Relaxed is set when the caller's threshold was lowered to produce
	// any output; callers may surface a low-confidence banner.
	Relaxed bool `json:"relaxed"`
}

// FilterAndRank scores all items against the query, keeps those at or above
// minScore, and orders them by score descending with confidence as the
// tie-breaker. The contract is best effort: with non-empty input it returns
// at least one item, relaxing the threshold once and finally falling back to
// the top raw scores so the caller can decide how to present a weak result.
func FilterAndRank(items []marketplace.Item, query Query, minScore float64, maxResults int) FilterResult {
	if maxResults <= 0 {
		maxResults = 20
	}
	if minScore <= 0 {
		minScore = DefaultMinScore
	}

	kw := ExtractKeywords(query.Text)
	scored := make([]ScoredItem, 0, len(items))
	for _, it := range items {
		scored = append(scored, ScoreWithKeywords(it, kw))
	}
	sortScored(scored)

	kept := keepAbove(scored, minScore)
	if len(kept) > 0 {
		return FilterResult{Items: truncate(kept, maxResults)}
	}

	// Nothing passed: relax once to the fixed floor.
	kept = keepAbove(scored, RelaxedMinScore)
	if len(kept) > 0 {
		return FilterResult{Items: truncate(kept, maxResults), Relaxed: true}
	}

	// Still nothing: best guess is better than an empty answer.
	return FilterResult{Items: truncate(scored, maxResults), Relaxed: true}
}

func keepAbove(scored []ScoredItem, min float64) []ScoredItem {
	var out []ScoredItem
	for _, s := range scored {
		if s.Score >= min {
			out = append(out, s)
		}
	}
	return out
}

func truncate(s []ScoredItem, n int) []ScoredItem {
	if len(s) > n {
		return s[:n]
	}
	return s
}

func sortScored(scored []ScoredItem) {
	sort.SliceStable(scored, func(i, j int) bool {
		if scored[i].Score != scored[j].Score {
			return scored[i].Score > scored[j].Score
		}
		return confidenceRank(scored[i].Confidence) > confidenceRank(scored[j].Confidence)
	})
}
