// Package text prepares raw review text for tokenization. Normalization is
// deliberately lossy: everything outside lowercase ASCII letters, digits,
// apostrophes, and spaces is folded into single spaces, so the same review
// typed with different casing or punctuation produces the same token stream.
package text

import (
	"regexp"
	"strings"

	"golang.org/x/text/unicode/norm"
)

var nonToken = regexp.MustCompile(`[^a-z0-9' ]+`)

// Normalize lowercases s, replaces every run of characters outside
// [a-z0-9' ] with a single space, collapses whitespace, and trims.
// Empty input yields the empty string.
func Normalize(s string) string {
	if s == "" {
		return ""
	}

	s = norm.NFC.String(s)
	s = strings.ToLower(s)
	s = nonToken.ReplaceAllString(s, " ")

	return strings.Join(strings.Fields(s), " ")
}

// Tokens normalizes s and splits it into tokens. With dropStopwords set,
// tokens on the fixed English stopword list are removed after normalization.
func Tokens(s string, dropStopwords bool) []string {
	normalized := Normalize(s)
	if normalized == "" {
		return nil
	}

	fields := strings.Split(normalized, " ")
	if !dropStopwords {
		return fields
	}

	kept := fields[:0]

	for _, tok := range fields {
		if IsStopword(tok) {
			continue
		}

		kept = append(kept, tok)
	}

	return kept
}
