// Package textnorm provides text normalization utilities for name matching.
// This is part of the platform layer and contains no business logic.
package textnorm

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// stripDiacritics decomposes to NFD, drops combining marks, and recomposes.
var stripDiacritics = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// Accommodation-type words that carry no identity on their own. They are only
// removed from names long enough to survive the removal, so a two-word name
// like "Ferienhaus Waldblick" keeps its type word.
var stopWords = map[string]struct{}{
	"hotel":         {},
	"pension":       {},
	"ferienwohnung": {},
	"ferienhaus":    {},
	"apartment":     {},
	"villa":         {},
	"resort":        {},
}

const minWordsForStopRemoval = 3

// Name normalizes a property or contact name for fuzzy comparison:
// diacritics stripped, lowercased, whitespace collapsed, and common
// accommodation stop words removed from names of three or more words.
func Name(s string) string {
	normalized := Fold(s)
	words := strings.Fields(normalized)
	if len(words) < minWordsForStopRemoval {
		return strings.Join(words, " ")
	}

	kept := make([]string, 0, len(words))
	for _, word := range words {
		if _, stop := stopWords[word]; stop {
			continue
		}
		kept = append(kept, word)
	}

	return strings.Join(kept, " ")
}

// Fold strips diacritics, lowercases, and collapses whitespace without
// removing any words.
func Fold(s string) string {
	if s == "" {
		return ""
	}

	folded, _, err := transform.String(stripDiacritics, s)
	if err != nil {
		folded = s
	}

	return strings.Join(strings.Fields(strings.ToLower(folded)), " ")
}

// Tokens returns the normalized name split into words.
func Tokens(s string) []string {
	normalized := Name(s)
	if normalized == "" {
		return nil
	}
	return strings.Split(normalized, " ")
}

// EmailDomain extracts the lowercased domain part of an email address.
// Returns an empty string when the input is not an address.
func EmailDomain(email string) string {
	trimmed := strings.ToLower(strings.TrimSpace(email))
	at := strings.LastIndex(trimmed, "@")
	if at < 0 || at == len(trimmed)-1 {
		return ""
	}
	return trimmed[at+1:]
}
