// Package exercise implements answer checking and the per-session exercise
// state machine.
package exercise

import "strings"

// Leading Spanish definite articles dropped from a label before matching.
var articles = []string{"el ", "la ", "los ", "las "}

// Keyword returns the lower-cased label with at most one leading definite
// article removed.
func Keyword(label string) string {
	kw := strings.ToLower(label)
	for _, a := range articles {
		if strings.HasPrefix(kw, a) {
			return kw[len(a):]
		}
	}
	return kw
}

// Matches reports whether a spoken or typed candidate names correctLabel.
// The candidate only has to contain the label's keyword, so "el aguacate",
// "aguacate" and "es un aguacate" all match "El Aguacate". There is no fuzzy
// matching and no accent folding.
func Matches(candidate, correctLabel string) bool {
	normalized := strings.TrimSpace(strings.ToLower(candidate))
	return strings.Contains(normalized, Keyword(correctLabel))
}
