package relevance

import (
	"strconv"
	"strings"
)

// Keywords is the decomposition of a free-text query into the token classes
// the scorer cares about. Extraction is deterministic: the same input always
// produces the same sets, in the same order.
type Keywords struct {
	// PlatformTokens holds canonical platform names (see platform.go).
	PlatformTokens []string
	// TitleTokens holds the remaining meaningful words of the query.
	TitleTokens []string
	// NumericTokens holds digit and roman-numeral tokens. These
	// disambiguate sequels ("11" in "dragon quest 11") and are kept
	// regardless of length.
	NumericTokens []string
}

// AllTokens returns every extracted token, platform tokens last. Used to
// compute the presence ratio over the whole query.
func (k Keywords) AllTokens() []string {
	out := make([]string, 0, len(k.TitleTokens)+len(k.NumericTokens)+len(k.PlatformTokens))
	out = append(out, k.TitleTokens...)
	out = append(out, k.NumericTokens...)
	out = append(out, k.PlatformTokens...)
	return out
}

var stopwords = map[string]bool{
	"the": true, "and": true, "for": true, "with": true, "von": true,
	"les": true, "des": true, "une": true, "pour": true, "avec": true,
	"der": true, "die": true, "das": true, "und": true, "fur": true,
	"new": true, "neuf": true, "neu": true, "game": true, "jeu": true,
	"spiel": true, "edition": true, "version": true, "complet": true,
	"complete": true, "bon": true, "etat": true, "tbe": true,
}

// ExtractKeywords parses a query into platform, title and numeric tokens.
// Multi-word platform aliases are consumed before their single-word
// substrings so "xbox series x" never also counts as "xbox".
func ExtractKeywords(query string) Keywords {
	normalized := NormalizeText(query)
	if normalized == "" {
		return Keywords{}
	}

	var kw Keywords
	seenPlatform := make(map[string]bool)
	addPlatform := func(p Platform) {
		if !seenPlatform[string(p)] {
			seenPlatform[string(p)] = true
			kw.PlatformTokens = append(kw.PlatformTokens, string(p))
		}
	}

	padded := " " + normalized + " "
	for _, a := range multiWordAliases {
		phrase := " " + a.alias + " "
		if strings.Contains(padded, phrase) {
			addPlatform(a.platform)
			padded = strings.ReplaceAll(padded, phrase, " ")
		}
	}

	seenTitle := make(map[string]bool)
	seenNumeric := make(map[string]bool)
	for _, tok := range strings.Fields(padded) {
		if p, ok := singleWordAliases[tok]; ok {
			addPlatform(p)
			continue
		}
		if isNumericToken(tok) {
			if !seenNumeric[tok] {
				seenNumeric[tok] = true
				kw.NumericTokens = append(kw.NumericTokens, tok)
			}
			continue
		}
		if len(tok) < 3 || stopwords[tok] {
			continue
		}
		if !seenTitle[tok] {
			seenTitle[tok] = true
			kw.TitleTokens = append(kw.TitleTokens, tok)
		}
	}
	return kw
}

func isNumericToken(tok string) bool {
	if tok == "" {
		return false
	}
	if _, err := strconv.Atoi(tok); err == nil {
		return true
	}
	_, ok := romanValue(tok)
	return ok
}

var romanDigits = map[byte]int{
	'i': 1, 'v': 5, 'x': 10, 'l': 50, 'c': 100, 'd': 500, 'm': 1000,
}

// romanValue parses a lowercase roman numeral. Single "i" and ambiguous
// short words like "mix" are rejected: a roman token must be at most
// reasonable sequel length and consist only of roman digits with
// non-increasing structure handled by the usual subtractive rule.
func romanValue(tok string) (int, bool) {
	if len(tok) == 0 || len(tok) > 7 {
		return 0, false
	}
	// "i" alone is almost always the English pronoun, never a sequel number.
	if tok == "i" {
		return 0, false
	}
	total := 0
	prev := 0
	for i := len(tok) - 1; i >= 0; i-- {
		v, ok := romanDigits[tok[i]]
		if !ok {
			return 0, false
		}
		if v < prev {
			total -= v
		} else {
			total += v
			prev = v
		}
	}
	// Sequel numbers live in a small range; anything else ("mix", "dl")
	// is far more likely to be a regular word.
	if total <= 0 || total > 30 {
		return 0, false
	}
	// Reject strings of roman letters that are not the canonical spelling
	// of their value (e.g. "iiv", "vx").
	if romanFromInt(total) != tok {
		return 0, false
	}
	return total, true
}

var romanTable = []struct {
	value  int
	symbol string
}{
	{10, "x"}, {9, "ix"}, {5, "v"}, {4, "iv"}, {1, "i"},
}

func romanFromInt(n int) string {
	if n <= 0 || n > 30 {
		return ""
	}
	var b strings.Builder
	for _, e := range romanTable {
		for n >= e.value {
			b.WriteString(e.symbol)
			n -= e.value
		}
	}
	return b.String()
}

// NumericEquivalents returns the spellings under which a numeric token may
// appear in a listing: the token itself plus its arabic/roman counterpart.
// "11" matches both "11" and "xi"; "xi" matches both as well.
func NumericEquivalents(tok string) []string {
	out := []string{tok}
	if n, err := strconv.Atoi(tok); err == nil {
		if r := romanFromInt(n); r != "" {
			out = append(out, r)
		}
		return out
	}
	if n, ok := romanValue(tok); ok {
		out = append(out, strconv.Itoa(n))
	}
	return out
}
