package canon

import (
	"strconv"
	"strings"
)

// singularToIrregular inverts irregularPlurals.
var singularToIrregular = func() map[string]string {
	m := make(map[string]string, len(irregularPlurals))
	for plural, single := range irregularPlurals {
		m[single] = plural
	}
	return m
}()

// Pluralize returns the plural of a singular display name by inflecting its
// last word, keeping the word's case. Acronyms get a bare "s" ("USB cables",
// "SSDs").
func Pluralize(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return ""
	}
	i := strings.LastIndexByte(name, ' ') + 1
	head, last := name[:i], name[i:]
	lower := strings.ToLower(last)

	if p, ok := singularToIrregular[lower]; ok {
		return head + matchCase(p, last)
	}
	if isAcronym(last) {
		return head + last + "s"
	}
	switch {
	case hasAnySuffix(lower, "s", "x", "z", "ch", "sh"):
		return head + last + "es"
	case strings.HasSuffix(lower, "y") && len(lower) > 1 && !strings.ContainsRune("aeiou", rune(lower[len(lower)-2])):
		return head + last[:len(last)-1] + "ies"
	}
	return head + last + "s"
}

// Count renders n of a singular display name: "1 battery", "3 batteries".
func Count(n int, name string) string {
	if n == 1 {
		return "1 " + name
	}
	return strconv.Itoa(n) + " " + Pluralize(name)
}
