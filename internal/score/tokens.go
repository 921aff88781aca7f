// Package score ranks search candidates: query tokenization for FTS and
// retry fingerprints, evidence-path extraction, file proximity, and the
// five-factor composite that orders results.
package score

import (
	"crypto/sha256"
	"encoding/hex"
	"regexp"
	"sort"
	"strings"
)

const (
	// queryMaxLen bounds how much of a raw query is tokenized.
	queryMaxLen = 500
	// maxTokens bounds the FTS term count per query.
	maxTokens = 20
)

var tokenRegex = regexp.MustCompile(`\w+`)

var stopwords = map[string]struct{}{
	"a": {}, "about": {}, "after": {}, "all": {}, "also": {}, "an": {},
	"and": {}, "any": {}, "are": {}, "as": {}, "at": {}, "be": {},
	"been": {}, "but": {}, "by": {}, "can": {}, "could": {}, "did": {},
	"do": {}, "does": {}, "for": {}, "from": {}, "had": {}, "has": {},
	"have": {}, "how": {}, "i": {}, "if": {}, "in": {}, "into": {},
	"is": {}, "it": {}, "its": {}, "just": {}, "me": {}, "my": {},
	"no": {}, "not": {}, "of": {}, "on": {}, "or": {}, "our": {},
	"should": {}, "so": {}, "some": {}, "than": {}, "that": {}, "the": {},
	"their": {}, "then": {}, "there": {}, "these": {}, "they": {}, "this": {},
	"to": {}, "was": {}, "we": {}, "what": {}, "when": {}, "with": {},
}

// Tokens extracts normalized query tokens: lowercase word runs, stopwords
// and single characters dropped, capped at 20. If filtering removes
// everything the stopword filter is skipped so queries made entirely of
// common words still match something.
func Tokens(query string) []string {
	if runes := []rune(query); len(runes) > queryMaxLen {
		query = string(runes[:queryMaxLen])
	}
	words := tokenRegex.FindAllString(strings.ToLower(query), -1)
	if len(words) == 0 {
		return nil
	}
	tokens := filterTokens(words, true)
	if len(tokens) == 0 {
		tokens = filterTokens(words, false)
	}
	if len(tokens) > maxTokens {
		tokens = tokens[:maxTokens]
	}
	return tokens
}

func filterTokens(words []string, dropStopwords bool) []string {
	tokens := make([]string, 0, len(words))
	for _, w := range words {
		if len(w) < 2 {
			continue
		}
		if dropStopwords {
			if _, ok := stopwords[w]; ok {
				continue
			}
		}
		tokens = append(tokens, w)
	}
	return tokens
}

// ContentTokens tokenizes entry text for similarity features: the same
// stopword and length filters as query tokens, but with no truncation,
// cap, or stopword fallback.
func ContentTokens(text string) []string {
	words := tokenRegex.FindAllString(strings.ToLower(text), -1)
	return filterTokens(words, true)
}

// FTSQuery builds the MATCH expression for a raw query. Tokens are joined
// with OR; bare lowercase terms cannot collide with FTS5 operators, which
// are uppercase-only. Empty string means nothing survived tokenization and
// the search should return no rows.
func FTSQuery(query string) string {
	return strings.Join(Tokens(query), " OR ")
}

// Fingerprint identifies equivalent queries for retry tracking: the hex
// SHA-256 of the sorted, de-duplicated token set. Empty when the query has
// no usable tokens.
func Fingerprint(query string) string {
	tokens := Tokens(query)
	if len(tokens) == 0 {
		return ""
	}
	seen := make(map[string]struct{}, len(tokens))
	uniq := make([]string, 0, len(tokens))
	for _, t := range tokens {
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		uniq = append(uniq, t)
	}
	sort.Strings(uniq)
	sum := sha256.Sum256([]byte(strings.Join(uniq, " ")))
	return hex.EncodeToString(sum[:])
}
