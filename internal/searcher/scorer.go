package searcher

import (
	"strings"
	"unicode/utf8"

	"github.com/dshills/medsearch-mcp/internal/textnorm"
	"github.com/dshills/medsearch-mcp/pkg/types"
)

// Score components. Tier scores are mutually exclusive; bonuses stack.
const (
	ExactNameScore   = 100 // normalized name equals the query
	PrefixScore      = 80  // name starts with the query
	PhraseScore      = 60  // query appears verbatim inside the name
	ScatteredScore   = 40  // every query word appears somewhere in the name
	DescriptionScore = 20  // every query word appears in the description only
	WeakMatchScore   = 5   // some, but not all, query words appear anywhere

	ProximityBonus    = 10 // scattered words close together in the name
	ProximityWindow   = 20 // max rune distance between first and last word
	PackageBonus      = 10
	WordBoundaryBonus = 5 // per query word found as a whole word in the name

	LongNamePenalty   = 5
	LongNameThreshold = 100 // runes
)

// Score rates how well record matches rawQuery. Zero means no match and the
// record should be excluded. Score is pure and deterministic.
//
// An empty or whitespace-only query scores 0. A query whose words are all
// shorter than textnorm.MinWordLength only matches through the phrase tiers
// (exact, prefix, substring).
func Score(record types.ServiceRecord, rawQuery string) int {
	query := strings.TrimSpace(textnorm.Normalize(rawQuery))
	if query == "" {
		return 0
	}

	name := textnorm.Normalize(record.Name)
	description := textnorm.Normalize(record.Description)
	words := textnorm.QueryWords(query)

	allInName := containsAll(name, words)
	allInDescription := containsAll(description, words)

	if !allInName && !allInDescription {
		if containsAny(name, description, words) {
			return WeakMatchScore
		}
		return 0
	}

	score := 0
	switch {
	case name == query:
		score += ExactNameScore
	case strings.HasPrefix(name, query):
		score += PrefixScore
	case strings.Contains(name, query):
		score += PhraseScore
	case len(words) > 0 && allInName:
		score += ScatteredScore
		if wordSpan(name, words) < ProximityWindow {
			score += ProximityBonus
		}
	case len(words) > 0 && allInDescription:
		score += DescriptionScore
	default:
		// Short-token query that matched no phrase tier
		return 0
	}

	if record.IsPackage() {
		score += PackageBonus
	}

	for _, w := range words {
		if textnorm.ContainsWord(name, w) {
			score += WordBoundaryBonus
		}
	}

	if utf8.RuneCountInString(name) > LongNameThreshold {
		score -= LongNamePenalty
	}

	return score
}

// containsAll reports whether every word is a substring of text.
// Vacuously true for no words.
func containsAll(text string, words []string) bool {
	for _, w := range words {
		if !strings.Contains(text, w) {
			return false
		}
	}
	return true
}

func containsAny(name, description string, words []string) bool {
	for _, w := range words {
		if strings.Contains(name, w) || strings.Contains(description, w) {
			return true
		}
	}
	return false
}

// wordSpan returns the rune distance from the first occurrence of the first
// query word to the first occurrence of the last query word in name.
// The result is negative when the last word appears first.
func wordSpan(name string, words []string) int {
	first := runeIndex(name, words[0])
	last := runeIndex(name, words[len(words)-1])
	return last - first
}

func runeIndex(s, substr string) int {
	i := strings.Index(s, substr)
	if i < 0 {
		return -1
	}
	return utf8.RuneCountInString(s[:i])
}
