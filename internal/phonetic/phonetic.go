// Package phonetic matches misheard box labels against the labels that
// exist, using Double Metaphone codes to find candidates and Jaro-Winkler
// similarity to rank them.
//
// It backs the last, most permissive stage of box resolution: speech
// transcription often yields "kichen" for KITCHEN or "garaj" for GARAGE.
// Matching proceeds in two passes:
//
//  1. Phonetic candidates: a label whose word codes overlap the query's codes
//     is accepted when its Jaro-Winkler score reaches the phonetic threshold.
//  2. Fuzzy fallback: with no phonetic candidate, a label is accepted on pure
//     Jaro-Winkler similarity above the stricter fuzzy threshold.
//
// Labels shorter than [MinLength] runes never take part; single letters are
// resolved by exact comparison elsewhere, and "bea" must not become "B".
// Numeric tokens must agree exactly, so "shoes 2" never matches "SHOES 1".
package phonetic

import (
	"strings"
	"unicode"

	"github.com/antzucaro/matchr"
)

const (
	defaultPhoneticThreshold = 0.80
	defaultFuzzyThreshold    = 0.90

	// MinLength is the shortest label, in runes, considered for matching.
	MinLength = 3
)

// Option is a functional option for configuring a [Matcher].
type Option func(*Matcher)

// WithPhoneticThreshold sets the minimum Jaro-Winkler score for a label
// whose phonetic codes overlap the query. Default: 0.80.
func WithPhoneticThreshold(threshold float64) Option {
	return func(m *Matcher) {
		m.phoneticThreshold = threshold
	}
}

// WithFuzzyThreshold sets the minimum Jaro-Winkler score for a label with no
// phonetic overlap. Default: 0.90.
func WithFuzzyThreshold(threshold float64) Option {
	return func(m *Matcher) {
		m.fuzzyThreshold = threshold
	}
}

// Matcher resolves misheard labels. It is read-only after construction and
// safe for concurrent use.
type Matcher struct {
	phoneticThreshold float64
	fuzzyThreshold    float64
}

// New returns a [Matcher] configured with opts.
func New(opts ...Option) *Matcher {
	m := &Matcher{
		phoneticThreshold: defaultPhoneticThreshold,
		fuzzyThreshold:    defaultFuzzyThreshold,
	}
	for _, o := range opts {
		o(m)
	}
	return m
}

// Match returns the label from labels that best matches query. When matched
// is false, label is empty and score is 0. Ties keep the earlier label.
func (m *Matcher) Match(query string, labels []string) (label string, score float64, matched bool) {
	q := strings.ToLower(strings.Join(strings.Fields(query), " "))
	if runeLen(q) < MinLength || len(labels) == 0 {
		return "", 0, false
	}
	qTokens := strings.Fields(q)
	qCodes := codesForTokens(qTokens)
	qDigits := digitTokens(qTokens)

	var (
		best         string
		bestScore    float64
		bestPhonetic bool
	)
	for _, l := range labels {
		ll := strings.ToLower(strings.Join(strings.Fields(l), " "))
		if runeLen(ll) < MinLength {
			continue
		}
		lTokens := strings.Fields(ll)
		if digitTokens(lTokens) != qDigits {
			continue
		}

		jw := bestJWScore(qTokens, lTokens, q, ll)
		if codesOverlap(qCodes, codesForTokens(lTokens)) {
			if jw >= m.phoneticThreshold && (!bestPhonetic || jw > bestScore) {
				best, bestScore, bestPhonetic = l, jw, true
			}
			continue
		}
		if !bestPhonetic && jw >= m.fuzzyThreshold && jw > bestScore {
			best, bestScore = l, jw
		}
	}
	if best == "" {
		return "", 0, false
	}
	return best, bestScore, true
}

// codesForTokens returns the union of Double Metaphone codes for the
// alphabetic tokens.
func codesForTokens(tokens []string) map[string]struct{} {
	codes := make(map[string]struct{}, len(tokens)*2)
	for _, t := range tokens {
		if isNumeric(t) {
			continue
		}
		p, s := matchr.DoubleMetaphone(t)
		if p != "" {
			codes[p] = struct{}{}
		}
		if s != "" {
			codes[s] = struct{}{}
		}
	}
	return codes
}

func codesOverlap(a, b map[string]struct{}) bool {
	if len(a) > len(b) {
		a, b = b, a
	}
	for code := range a {
		if _, ok := b[code]; ok {
			return true
		}
	}
	return false
}

// bestJWScore is the higher of the full-string and space-stripped
// Jaro-Winkler scores. Pairwise token scores are not used: a label sharing
// one word with the query ("TOOLS 1" vs "tools shed") is a different box.
func bestJWScore(qTokens, lTokens []string, q, l string) float64 {
	score := matchr.JaroWinkler(q, l, false)
	if len(qTokens) > 1 || len(lTokens) > 1 {
		if s := matchr.JaroWinkler(strings.Join(qTokens, ""), strings.Join(lTokens, ""), false); s > score {
			score = s
		}
	}
	return score
}

// digitTokens joins the numeric tokens so they can be compared as a whole.
func digitTokens(tokens []string) string {
	var nums []string
	for _, t := range tokens {
		if isNumeric(t) {
			nums = append(nums, t)
		}
	}
	return strings.Join(nums, " ")
}

func isNumeric(tok string) bool {
	for _, r := range tok {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return tok != ""
}

func runeLen(s string) int {
	return len([]rune(strings.ReplaceAll(s, " ", "")))
}
