// Package textnorm folds Vietnamese text into an accent-free, lowercase form
// for loose matching.
package textnorm

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// MinWordLength is the shortest query token that takes part in matching
const MinWordLength = 3

// combiningAccents covers the Combining Diacritical Marks block, which holds
// every tone and vowel mark Vietnamese uses after NFD decomposition.
var combiningAccents = &unicode.RangeTable{
	R16: []unicode.Range16{{Lo: 0x0300, Hi: 0x036f, Stride: 1}},
}

// Normalize lowercases s, decomposes it (NFD) and strips combining accent
// marks. The result is stable: Normalize(Normalize(s)) == Normalize(s).
// Letters without a decomposition, such as đ, are kept as-is.
func Normalize(s string) string {
	if s == "" {
		return ""
	}

	lower := strings.ToLower(s)
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(combiningAccents)))
	out, _, err := transform.String(t, lower)
	if err != nil {
		// Only reachable on invalid transformer state; the lowercase form is
		// still a usable match key.
		return lower
	}
	return out
}

// QueryWords splits an already normalized query on whitespace and drops
// tokens shorter than MinWordLength runes.
func QueryWords(normalized string) []string {
	fields := strings.Fields(normalized)
	words := fields[:0]
	for _, f := range fields {
		if utf8.RuneCountInString(f) >= MinWordLength {
			words = append(words, f)
		}
	}
	return words
}

// ContainsWord reports whether word occurs in text delimited by word
// boundaries: no letter, digit or underscore directly before or after it.
func ContainsWord(text, word string) bool {
	if word == "" {
		return false
	}

	offset := 0
	for {
		i := strings.Index(text[offset:], word)
		if i < 0 {
			return false
		}
		start := offset + i
		end := start + len(word)

		if boundaryBefore(text, start) && boundaryAfter(text, end) {
			return true
		}

		// Advance past the first rune of this occurrence
		_, size := utf8.DecodeRuneInString(text[start:])
		offset = start + size
	}
}

func boundaryBefore(text string, i int) bool {
	if i == 0 {
		return true
	}
	r, _ := utf8.DecodeLastRuneInString(text[:i])
	return !isWordRune(r)
}

func boundaryAfter(text string, i int) bool {
	if i >= len(text) {
		return true
	}
	r, _ := utf8.DecodeRuneInString(text[i:])
	return !isWordRune(r)
}

// isWordRune treats any Unicode letter as part of a word, so đ after
// normalization does not split a word.
func isWordRune(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r)
}
