// File: internal/domain/text.go
package domain

import (
	"strings"
	"unicode"
)

// NormalizeText lowercases, replaces anything that is not a letter or digit
// with a space and collapses whitespace.
func NormalizeText(s string) string {
	if s == "" {
		return ""
	}
	var b strings.Builder
	b.Grow(len(s))
	space := true
	for _, r := range strings.ToLower(s) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
			space = false
			continue
		}
		if !space {
			b.WriteByte(' ')
			space = true
		}
	}
	return strings.TrimSpace(b.String())
}

// Tokens returns the set of normalized words in s.
func Tokens(s string) map[string]struct{} {
	fields := strings.Fields(NormalizeText(s))
	set := make(map[string]struct{}, len(fields))
	for _, f := range fields {
		set[f] = struct{}{}
	}
	return set
}

const (
	minTokenOverlap = 3
	minOverlapRatio = 0.55
)

// MatchesQuestion reports whether spoken text asks the given question, either
// verbatim (normalized substring) or as a close paraphrase.
func MatchesQuestion(spoken, question string) bool {
	nq := NormalizeText(question)
	ns := NormalizeText(spoken)
	if nq == "" || ns == "" {
		return false
	}
	if strings.Contains(ns, nq) {
		return true
	}

	qTokens := Tokens(nq)
	sTokens := Tokens(ns)
	overlap := 0
	for t := range qTokens {
		if _, ok := sTokens[t]; ok {
			overlap++
		}
	}
	smaller := len(qTokens)
	if len(sTokens) < smaller {
		smaller = len(sTokens)
	}
	if smaller < 1 {
		smaller = 1
	}
	ratio := float64(overlap) / float64(smaller)
	return overlap >= minTokenOverlap && ratio >= minOverlapRatio
}

// MatchesAnyVariant checks spoken text against both language variants.
func MatchesAnyVariant(spoken string, q BilingualText) bool {
	return MatchesQuestion(spoken, q.English) || MatchesQuestion(spoken, q.Swahili)
}
