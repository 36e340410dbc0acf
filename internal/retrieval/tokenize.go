package retrieval

import (
	"strings"
	"unicode"
)

var stopwords = map[string]bool{
	"a": true, "an": true, "the": true, "is": true, "are": true, "was": true, "be": true,
	"what": true, "which": true, "who": true, "how": true, "when": true, "where": true, "why": true,
	"do": true, "does": true, "did": true, "of": true, "for": true, "to": true, "in": true,
	"on": true, "at": true, "and": true, "or": true, "me": true, "tell": true, "about": true,
	"please": true, "describe": true, "show": true, "list": true, "explain": true, "give": true,
	"i": true, "we": true, "our": true, "you": true, "can": true, "with": true, "by": true,
	"there": true, "any": true, "this": true, "that": true, "it": true, "my": true, "all": true,
	"from": true, "as": true, "into": true, "get": true, "have": true, "has": true,
}

// words splits s into lower-case alphanumeric runs, also splitting
// CamelCase identifiers (CustomerID -> customer, id, customerid).
func words(s string) []string {
	var out []string
	for _, raw := range strings.FieldsFunc(s, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	}) {
		lower := strings.ToLower(raw)
		out = append(out, lower)
		parts := camelParts(raw)
		if len(parts) > 1 {
			for _, p := range parts {
				out = append(out, strings.ToLower(p))
			}
		}
	}
	return out
}

func camelParts(s string) []string {
	runes := []rune(s)
	var parts []string
	start := 0
	for i := 1; i < len(runes); i++ {
		prev, cur := runes[i-1], runes[i]
		boundary := unicode.IsLower(prev) && unicode.IsUpper(cur)
		// "IDNumber" splits before the last upper of an acronym run.
		if !boundary && unicode.IsUpper(prev) && unicode.IsUpper(cur) && i+1 < len(runes) && unicode.IsLower(runes[i+1]) {
			boundary = true
		}
		if boundary {
			parts = append(parts, string(runes[start:i]))
			start = i
		}
	}
	return append(parts, string(runes[start:]))
}

// stem folds simple plurals so "requirements" matches "requirement".
func stem(w string) string {
	switch {
	case len(w) > 4 && strings.HasSuffix(w, "ies"):
		return w[:len(w)-3] + "y"
	case len(w) > 3 && strings.HasSuffix(w, "s") && !strings.HasSuffix(w, "ss"):
		return w[:len(w)-1]
	}
	return w
}

// queryTerms returns the distinct, stemmed, non-stopword terms of q in
// first-seen order.
func queryTerms(q string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, w := range strings.FieldsFunc(strings.ToLower(q), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	}) {
		if len(w) < 2 || stopwords[w] {
			continue
		}
		w = stem(w)
		if !seen[w] {
			seen[w] = true
			out = append(out, w)
		}
	}
	return out
}

func tokenSet(s string) map[string]bool {
	set := make(map[string]bool)
	for _, w := range words(s) {
		set[w] = true
		set[stem(w)] = true
	}
	return set
}
