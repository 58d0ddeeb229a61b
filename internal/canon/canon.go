// Package canon provides the pure text normalisation used to compare item and
// box names.
//
// Nothing here performs I/O or keeps state. Empty input yields empty output.
// Canonical forms are for equality only and are never shown to a user; use
// [DisplaySingular] for the stored display name.
package canon

import (
	"regexp"
	"strings"
	"unicode"
)

// determiners are stripped once from the front of an item phrase.
var determiners = []string{
	"a", "an", "the", "some", "any", "another", "additional", "extra", "more",
}

// quantityPhrase matches "[<qty> ]<unit-word> of " at the start of a phrase,
// e.g. "3 sticks of" or "pack of". Unit words are accepted singular or plural.
var quantityPhrase = regexp.MustCompile(`(?i)^(?:(?:\d+|` + numberWordAlternation() + `)\s+)?` +
	`(?:sticks?|pieces?|bottles?|cans?|bags?|box(?:es)?|packs?|pairs?|sets?|rolls?|sheets?|cups?|slices?|loaf|loaves|bunch(?:es)?|bars?|tubes?|tubs?|cartons?|cases?|batch(?:es)?)` +
	`\s+of\s+`)

// trailingPunct matches sentence punctuation at the end of a phrase.
var trailingPunct = regexp.MustCompile(`[\s.,!?;:]+$`)

// descriptors are generic trailing nouns dropped by NormalizeItem.
var descriptors = map[string]bool{
	"items": true, "item": true, "pieces": true, "piece": true, "units": true, "unit": true,
}

var irregularPlurals = map[string]string{
	"children":  "child",
	"men":       "man",
	"women":     "woman",
	"people":    "person",
	"teeth":     "tooth",
	"feet":      "foot",
	"mice":      "mouse",
	"geese":     "goose",
	"oxen":      "ox",
	"lice":      "louse",
	"cacti":     "cactus",
	"fungi":     "fungus",
	"alumni":    "alumnus",
	"larvae":    "larva",
	"vertebrae": "vertebra",
	"knives":    "knife",
	"wives":     "wife",
	"lives":     "life",
	"wolves":    "wolf",
	"halves":    "half",
	"shelves":   "shelf",
	"leaves":    "leaf",
	"loaves":    "loaf",
	"thieves":   "thief",
	"scarves":   "scarf",
}

// Canonicalize lowercases name, trims it and collapses internal whitespace.
// It is idempotent.
func Canonicalize(name string) string {
	return strings.Join(strings.Fields(strings.ToLower(name)), " ")
}

// NormalizeToSingular reduces an item phrase to its lowercase singular form:
// "the batteries" becomes "battery" and "3 sticks of butter" becomes "butter".
// Only the final token is singularised.
func NormalizeToSingular(name string) string {
	return Canonicalize(strings.Join(singularTokens(name, false), " "))
}

// NormalizeItem is NormalizeToSingular that additionally drops a trailing
// generic descriptor such as "items" or "pieces" ("lego pieces" → "lego").
func NormalizeItem(name string) string {
	return Canonicalize(strings.Join(singularTokens(name, true), " "))
}

// DisplaySingular produces the singular name shown to users. It applies the
// same stripping as NormalizeItem but keeps tokens that were written in
// capitals, so "AA Batteries" becomes "AA battery" and "TVs" becomes "TV".
func DisplaySingular(name string) string {
	tokens := singularTokens(name, true)
	for i, tok := range tokens {
		if !isUpperWord(tok) {
			tokens[i] = strings.ToLower(tok)
		}
	}
	return strings.Join(tokens, " ")
}

// SingularizeToken returns the singular form of a single word.
//
// Tokens of two characters or fewer are returned unchanged. Irregular plurals
// take priority; an all-caps token of at most four characters is an acronym
// and only loses a trailing "s". Otherwise ordered suffix rules apply. Case is
// preserved for everything but irregular plurals.
func SingularizeToken(tok string) string {
	if len(tok) <= 2 {
		return tok
	}
	lower := strings.ToLower(tok)
	if s, ok := irregularPlurals[lower]; ok {
		return s
	}
	if isAcronym(tok) {
		if last := tok[len(tok)-1]; last == 's' || last == 'S' {
			return tok[:len(tok)-1]
		}
		return tok
	}

	n := len(lower)
	switch {
	case n > 4 && strings.HasSuffix(lower, "ies"):
		return tok[:n-3] + matchCase("y", tok[n-1:])
	case hasAnySuffix(lower, "xes", "zes", "ches", "shes", "sses"):
		return tok[:n-2]
	case n > 4 && strings.HasSuffix(lower, "ses"):
		return tok[:n-1]
	case strings.HasSuffix(lower, "s") && !hasAnySuffix(lower, "ss", "us", "is"):
		return tok[:n-1]
	}
	return tok
}

// singularTokens returns the item words with the final one singularised,
// optionally dropping a trailing descriptor first.
func singularTokens(name string, dropDescriptor bool) []string {
	tokens := itemTokens(name)
	if dropDescriptor && len(tokens) > 1 && descriptors[strings.ToLower(tokens[len(tokens)-1])] {
		tokens = tokens[:len(tokens)-1]
	}
	if len(tokens) == 0 {
		return nil
	}
	last := len(tokens) - 1
	tokens[last] = SingularizeToken(tokens[last])
	return tokens
}

// itemTokens strips trailing punctuation, one leading determiner and a
// leading quantity phrase, returning the remaining words with case intact.
func itemTokens(name string) []string {
	s := strings.Join(strings.Fields(name), " ")
	s = trailingPunct.ReplaceAllString(s, "")
	if fields := strings.Fields(s); len(fields) > 1 {
		first := strings.ToLower(fields[0])
		for _, d := range determiners {
			if first == d {
				s = strings.Join(fields[1:], " ")
				break
			}
		}
	}
	if loc := quantityPhrase.FindStringIndex(s); loc != nil && loc[1] < len(s) {
		s = s[loc[1]:]
	}
	return strings.Fields(s)
}

// isAcronym reports whether tok is at most four characters and, ignoring a
// trailing "s", consists solely of capital letters and digits.
func isAcronym(tok string) bool {
	if len(tok) > 4 {
		return false
	}
	stem := strings.TrimSuffix(strings.TrimSuffix(tok, "s"), "S")
	if stem == "" {
		return false
	}
	hasLetter := false
	for _, r := range stem {
		switch {
		case unicode.IsUpper(r):
			hasLetter = true
		case unicode.IsDigit(r):
		default:
			return false
		}
	}
	return hasLetter
}

// isUpperWord reports whether tok contains letters and all of them are capitals,
// ignoring a trailing lowercase "s" as in "TVs".
func isUpperWord(tok string) bool {
	if len(tok) < 2 {
		return false
	}
	hasLetter := false
	for _, r := range strings.TrimSuffix(tok, "s") {
		if unicode.IsLetter(r) {
			if !unicode.IsUpper(r) {
				return false
			}
			hasLetter = true
		}
	}
	return hasLetter
}

func hasAnySuffix(s string, suffixes ...string) bool {
	for _, suf := range suffixes {
		if strings.HasSuffix(s, suf) {
			return true
		}
	}
	return false
}

// matchCase returns repl in upper case when ref is upper case.
func matchCase(repl, ref string) string {
	if ref == strings.ToUpper(ref) && ref != strings.ToLower(ref) {
		return strings.ToUpper(repl)
	}
	return repl
}
