package usecase

import (
	"strings"
	"unicode"
)

var keywordStopwords = map[string]struct{}{
	"a": {}, "about": {}, "an": {}, "and": {}, "are": {}, "as": {}, "at": {}, "be": {},
	"by": {}, "can": {}, "could": {}, "do": {}, "does": {}, "for": {}, "from": {},
	"has": {}, "have": {}, "how": {}, "i": {}, "if": {}, "in": {}, "is": {}, "it": {},
	"its": {}, "me": {}, "my": {}, "of": {}, "on": {}, "or": {}, "should": {}, "so": {},
	"that": {}, "the": {}, "their": {}, "there": {}, "these": {}, "this": {}, "to": {},
	"was": {}, "we": {}, "what": {}, "when": {}, "where": {}, "which": {}, "who": {},
	"why": {}, "will": {}, "with": {}, "would": {}, "you": {}, "your": {},
	"s": {}, "t": {},
}

func keywordProjection(text string) string {
	tokens := splitAlphaNumLower(text)
	kept := make([]string, 0, len(tokens))
	for _, token := range tokens {
		if _, stop := keywordStopwords[token]; stop {
			continue
		}
		kept = append(kept, token)
	}
	if len(kept) == 0 {
		return strings.ToLower(strings.TrimSpace(text))
	}
	return strings.Join(kept, " ")
}

func tokenOverlap(query, candidate map[string]struct{}) float64 {
	if len(query) == 0 || len(candidate) == 0 {
		return 0
	}
	matches := 0
	for token := range query {
		if _, ok := candidate[token]; ok {
			matches++
		}
	}
	return float64(matches) / float64(len(query))
}

func toTokenSet(s string) map[string]struct{} {
	tokens := splitAlphaNumLower(s)
	out := make(map[string]struct{}, len(tokens))
	for _, token := range tokens {
		out[token] = struct{}{}
	}
	return out
}

func splitAlphaNumLower(s string) []string {
	if s == "" {
		return nil
	}

	tokens := make([]string, 0, 16)
	var b strings.Builder
	for _, r := range s {
		r = unicode.ToLower(r)
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
			continue
		}
		if b.Len() > 0 {
			tokens = append(tokens, b.String())
			b.Reset()
		}
	}
	if b.Len() > 0 {
		tokens = append(tokens, b.String())
	}
	return tokens
}

// truncateRunes cuts s to at most limit runes and reports whether it did.
func truncateRunes(s string, limit int) (string, bool) {
	if limit <= 0 {
		return "", s != ""
	}
	count := 0
	for i := range s {
		if count == limit {
			return s[:i], true
		}
		count++
	}
	return s, false
}

func appendUnique(list []string, seen map[string]struct{}, value string) []string {
	if value == "" {
		return list
	}
	if _, ok := seen[value]; ok {
		return list
	}
	seen[value] = struct{}{}
	return append(list, value)
}
