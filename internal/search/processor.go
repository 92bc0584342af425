package search

import (
	"strings"
	"unicode/utf8"
)

// QueryTerms lowercases query, splits it on whitespace and keeps distinct words of at least
// minLen runes, in first-seen order.
func QueryTerms(query string, minLen int) []string {
	seen := make(map[string]struct{})
	var terms []string
	for _, w := range strings.Fields(strings.ToLower(query)) {
		if utf8.RuneCountInString(w) < minLen {
			continue
		}
		if _, ok := seen[w]; ok {
			continue
		}
		seen[w] = struct{}{}
		terms = append(terms, w)
	}
	return terms
}
