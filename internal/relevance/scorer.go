package relevance

import (
	"fmt"
	"strings"

	"github.com/mohammad-safakhou/gamescout/internal/marketplace"
)

// Confidence buckets a score for tie-breaking; it never feeds back into the
// score itself.
type Confidence string

const (
	ConfidenceLow    Confidence = "low"
	ConfidenceMedium Confidence = "medium"
	ConfidenceHigh   Confidence = "high"
)

func confidenceRank(c Confidence) int {
	switch c {
	case ConfidenceHigh:
		return 2
	case ConfidenceMedium:
		return 1
	default:
		return 0
	}
}

// ScoredItem pairs a listing with its relevance verdict. Recomputed on every
// call, never persisted as authoritative.
type ScoredItem struct {
	Item       marketplace.Item `json:"item"`
	Score      float64          `json:"score"`
	Reasons    []string         `json:"reasons"`
	Confidence Confidence       `json:"confidence"`
}

// Query is one ad hoc search request as the scorer sees it.
type Query struct {
	Text              string
	MinRelevanceScore float64
}

// DefaultMinScore is the relevance threshold applied when the caller does
// not set one.
const DefaultMinScore = 50.0

// Scoring constants. The relative ordering matters more than the literal
// values: a missing sequel number must hurt more than a missing word, which
// must hurt more than a missing platform.
const (
	presenceCeiling       = 50.0
	missingNumericPenalty = 28.0
	missingTitlePenalty   = 12.0
	missingPlatformWeight = 8.0
	alternateTitlePenalty = 20.0
	platformBonus         = 10.0
	upstreamSignalCeiling = 8.0
	wrongTypePenalty      = 30.0
	unknownTypePenalty    = 5.0

	highConfidenceFloor   = 60.0
	mediumConfidenceFloor = 40.0
)

// ruleInput carries everything a scoring rule may inspect, precomputed once
// per (item, query) pair.
type ruleInput struct {
	keywords  Keywords
	titleText string // normalized title
	fullText  string // normalized title + description
	platforms map[Platform]bool
	upstream  float64

	missingTitle   []string
	missingNumeric []string
	missingPlats   []string
	presentCount   int
	totalCount     int
}

// A scoringRule is a pure function from the precomputed input to a score
// delta and an optional human-readable reason. Rules run in order and their
// deltas sum; each is independently testable.
type scoringRule struct {
	name  string
	apply func(in ruleInput) (float64, []string)
}

var scoringRules = []scoringRule{
	{"presence_ratio", presenceRatioRule},
	{"missing_numeric", missingNumericRule},
	{"missing_title_token", missingTitleTokenRule},
	{"missing_platform", missingPlatformRule},
	{"alternate_title", alternateTitleRule},
	{"platform_bonus", platformBonusRule},
	{"upstream_signal", upstreamSignalRule},
	{"type_coherence", typeCoherenceRule},
}

// Score computes the relevance of item against query. Pure and
// deterministic: identical inputs always yield the identical score and
// reason list.
func Score(item marketplace.Item, query Query) ScoredItem {
	return ScoreWithKeywords(item, ExtractKeywords(query.Text))
}

// ScoreWithKeywords scores against pre-extracted keywords, letting callers
// extract once per query instead of once per item.
func ScoreWithKeywords(item marketplace.Item, kw Keywords) ScoredItem {
	in := buildRuleInput(item, kw)

	score := 0.0
	var reasons []string
	for _, rule := range scoringRules {
		delta, rs := rule.apply(in)
		score += delta
		reasons = append(reasons, rs...)
	}

	if score < 0 {
		score = 0
	}
	if score > 100 {
		score = 100
	}

	conf := ConfidenceLow
	switch {
	case score >= highConfidenceFloor:
		conf = ConfidenceHigh
	case score >= mediumConfidenceFloor:
		conf = ConfidenceMedium
	}

	return ScoredItem{Item: item, Score: score, Reasons: reasons, Confidence: conf}
}

func buildRuleInput(item marketplace.Item, kw Keywords) ruleInput {
	titleText := NormalizeText(item.Title)
	fullText := titleText
	if item.Description != "" {
		fullText = titleText + " " + NormalizeText(item.Description)
	}

	in := ruleInput{
		keywords:  kw,
		titleText: titleText,
		fullText:  fullText,
		platforms: make(map[Platform]bool),
		upstream:  item.SearchScore,
	}
	for _, p := range DetectPlatforms(fullText) {
		in.platforms[p] = true
	}

	padded := " " + fullText + " "
	for _, tok := range kw.TitleTokens {
		in.totalCount++
		if strings.Contains(padded, " "+tok+" ") {
			in.presentCount++
		} else {
			in.missingTitle = append(in.missingTitle, tok)
		}
	}
	for _, tok := range kw.NumericTokens {
		in.totalCount++
		if numericPresent(padded, tok) {
			in.presentCount++
		} else {
			in.missingNumeric = append(in.missingNumeric, tok)
		}
	}
	for _, tok := range kw.PlatformTokens {
		in.totalCount++
		if in.platforms[Platform(tok)] {
			in.presentCount++
		} else {
			in.missingPlats = append(in.missingPlats, tok)
		}
	}
	return in
}

// numericPresent checks a numeric token against the text under both its
// arabic and roman spellings, so "11" matches a title that says "XI".
func numericPresent(paddedText, tok string) bool {
	for _, form := range NumericEquivalents(tok) {
		if strings.Contains(paddedText, " "+form+" ") {
			return true
		}
	}
	return false
}

func presenceRatioRule(in ruleInput) (float64, []string) {
	if in.totalCount == 0 {
		return 0, nil
	}
	ratio := float64(in.presentCount) / float64(in.totalCount)
	delta := presenceCeiling * ratio

	var reasons []string
	if ratio >= 1 {
		reasons = append(reasons, "all query tokens present")
	} else {
		missing := make([]string, 0, len(in.missingTitle)+len(in.missingNumeric)+len(in.missingPlats))
		missing = append(missing, in.missingTitle...)
		missing = append(missing, in.missingNumeric...)
		missing = append(missing, in.missingPlats...)
		reasons = append(reasons, fmt.Sprintf("%d/%d query tokens present (missing: %s)",
			in.presentCount, in.totalCount, strings.Join(missing, ", ")))
	}
	return delta, reasons
}

func missingNumericRule(in ruleInput) (float64, []string) {
	if len(in.missingNumeric) == 0 {
		return 0, nil
	}
	delta := -missingNumericPenalty * float64(len(in.missingNumeric))
	return delta, []string{fmt.Sprintf("missing sequel number %s, likely a different installment",
		strings.Join(in.missingNumeric, ", "))}
}

func missingTitleTokenRule(in ruleInput) (float64, []string) {
	if len(in.missingTitle) == 0 {
		return 0, nil
	}
	delta := -missingTitlePenalty * float64(len(in.missingTitle))
	return delta, []string{fmt.Sprintf("missing title words: %s", strings.Join(in.missingTitle, ", "))}
}

func missingPlatformRule(in ruleInput) (float64, []string) {
	if len(in.missingPlats) == 0 {
		return 0, nil
	}
	return -missingPlatformWeight * float64(len(in.missingPlats)),
		[]string{fmt.Sprintf("platform %s not mentioned", strings.Join(in.missingPlats, ", "))}
}

// alternateTitleMarkers flag franchise spin-offs and re-releases. When the
// query carries a sequel number that the listing lacks, one of these in the
// listing text strongly suggests a different game entirely ("dragon quest
// treasures" vs "dragon quest 11").
var alternateTitleMarkers = []string{
	"treasures", "collection", "remake", "remaster", "remastered",
	"builders", "monsters", "heroes", "trilogy", "anthology", "legacy",
}

func alternateTitleRule(in ruleInput) (float64, []string) {
	if len(in.missingNumeric) == 0 {
		return 0, nil
	}
	padded := " " + in.fullText + " "
	for _, marker := range alternateTitleMarkers {
		if strings.Contains(padded, " "+marker+" ") {
			return -alternateTitlePenalty,
				[]string{fmt.Sprintf("looks like an alternate title (%q) while sequel number is absent", marker)}
		}
	}
	return 0, nil
}

func platformBonusRule(in ruleInput) (float64, []string) {
	for _, tok := range in.keywords.PlatformTokens {
		if in.platforms[Platform(tok)] {
			return platformBonus, []string{fmt.Sprintf("platform %s confirmed", tok)}
		}
	}
	return 0, nil
}

// upstreamSignalRule blends the marketplace's own relevance score in at low
// weight; local text matching always dominates.
func upstreamSignalRule(in ruleInput) (float64, []string) {
	if in.upstream <= 0 {
		return 0, nil
	}
	s := in.upstream
	if s > 1 {
		s = 1
	}
	return upstreamSignalCeiling * s, nil
}

// Product type classification for the coherence guard.
type productType string

const (
	typeGame      productType = "game"
	typeConsole   productType = "console"
	typeAccessory productType = "accessory"
	typeUnknown   productType = "unknown"
)

var typeKeywords = map[productType][]string{
	typeConsole: {
		"console", "konsole", "consola", "bundle", "oled", "slim pack",
	},
	typeAccessory: {
		"controller", "manette", "joycon", "joy con", "gamepad", "headset",
		"casque", "cable", "chargeur", "charger", "dock", "case", "etui",
		"housse", "skin", "coque", "pochette", "memory card", "carte memoire",
		"stylus", "amiibo", "figurine", "strap", "grip",
	},
	typeGame: {
		"cib", "cartridge", "cartouche", "disc", "disque", "blu ray",
		"boxed", "sealed", "blister", "notice", "loose",
	},
}

// classifyType prefers strong keywords in the title, falling back to the
// full text. Console and accessory markers win over game markers because a
// listing like "switch console + game" is being sold as a console.
func classifyType(titleText, fullText string) productType {
	for _, text := range []string{titleText, fullText} {
		padded := " " + text + " "
		for _, t := range []productType{typeConsole, typeAccessory, typeGame} {
			for _, kw := range typeKeywords[t] {
				if strings.Contains(padded, " "+kw+" ") {
					return t
				}
			}
		}
	}
	return typeUnknown
}

// queryImpliedType mirrors classifyType for the query side. A plain game
// title implies a game.
func queryImpliedType(kw Keywords) productType {
	text := strings.Join(kw.TitleTokens, " ")
	if t := classifyType(text, text); t != typeUnknown {
		return t
	}
	return typeGame
}

func typeCoherenceRule(in ruleInput) (float64, []string) {
	want := queryImpliedType(in.keywords)
	got := classifyType(in.titleText, in.fullText)
	switch {
	case got == typeUnknown:
		return -unknownTypePenalty, nil
	case got == want:
		return 0, nil
	default:
		return -wrongTypePenalty,
			[]string{fmt.Sprintf("listing looks like a %s, query asks for a %s", got, want)}
	}
}
