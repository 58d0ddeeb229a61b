package canon

import (
	"strconv"
	"strings"
)

// numberWords maps spoken numbers to their values.
var numberWords = map[string]int{
	"one": 1, "two": 2, "three": 3, "four": 4, "five": 5,
	"six": 6, "seven": 7, "eight": 8, "nine": 9, "ten": 10,
	"eleven": 11, "twelve": 12, "thirteen": 13, "fourteen": 14, "fifteen": 15,
	"sixteen": 16, "seventeen": 17, "eighteen": 18, "nineteen": 19, "twenty": 20,
}

// numberWordOrder lists numberWords keys longest first so that regex
// alternations prefer "seventeen" over "seven".
var numberWordOrder = []string{
	"seventeen", "thirteen", "fourteen", "eighteen", "nineteen",
	"fifteen", "sixteen", "eleven", "twelve", "twenty",
	"three", "seven", "eight", "four", "five", "nine",
	"one", "two", "six", "ten",
}

func numberWordAlternation() string {
	return strings.Join(numberWordOrder, "|")
}

// NumberWordPattern is a regular-expression alternation of digits, number
// words and the articles "a"/"an", for use in quantity capture groups.
func NumberWordPattern() string {
	return `\d+|` + numberWordAlternation() + `|an|a|some`
}

// CountPattern is a regular-expression alternation of digits and number
// words, without the articles accepted by NumberWordPattern.
func CountPattern() string {
	return `\d+|` + numberWordAlternation()
}

// ParseQty converts a quantity token to an integer. Strings of ASCII digits
// yield their value, number words one through twenty their numeric value, and "a", "an"
// and "some" yield 1. Anything else defaults to 1.
func ParseQty(tok string) int {
	t := strings.ToLower(strings.TrimSpace(tok))
	switch t {
	case "a", "an", "some":
		return 1
	}
	if allDigits(t) {
		if n, err := strconv.Atoi(t); err == nil {
			return n
		}
	}
	if n, ok := numberWords[t]; ok {
		return n
	}
	return 1
}

// allDigits reports whether s is a non-empty run of ASCII digits. Signs are
// not digits, so "-3" and "+5" fall through to the default.
func allDigits(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

// NumberWord reports the value of a spoken number one through twenty.
func NumberWord(tok string) (int, bool) {
	n, ok := numberWords[strings.ToLower(tok)]
	return n, ok
}
