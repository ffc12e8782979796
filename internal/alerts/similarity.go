package alerts

import (
	"strings"

	"github.com/mohammad-safakhou/gamescout/internal/relevance"
)

// Server-side filtering on the alert endpoint is approximate, so every
// candidate is re-validated locally with two title tests: a word-overlap
// ratio against the alert title, and a token-set (Jaccard) fallback for
// titles that reorder or pad the words.

// wordOverlapRatio returns the fraction of alert-title words found in the
// item text. Numeric words match under both arabic and roman spellings.
func wordOverlapRatio(alertTitle, itemText string) float64 {
	words := strings.Fields(relevance.NormalizeText(alertTitle))
	if len(words) == 0 {
		return 0
	}
	padded := " " + relevance.NormalizeText(itemText) + " "
	hits := 0
	for _, w := range words {
		for _, form := range relevance.NumericEquivalents(w) {
			if strings.Contains(padded, " "+form+" ") {
				hits++
				break
			}
		}
	}
	return float64(hits) / float64(len(words))
}

// tokenSetSimilarity is a Jaccard similarity over the two texts' token
// sets.
func tokenSetSimilarity(a, b string) float64 {
	setA := tokenSet(a)
	setB := tokenSet(b)
	if len(setA) == 0 || len(setB) == 0 {
		return 0
	}
	inter := 0
	for tok := range setA {
		if setB[tok] {
			inter++
		}
	}
	union := len(setA) + len(setB) - inter
	return float64(inter) / float64(union)
}

func tokenSet(s string) map[string]bool {
	set := make(map[string]bool)
	for _, tok := range strings.Fields(relevance.NormalizeText(s)) {
		set[tok] = true
	}
	return set
}
