package canon

import (
	"regexp"
	"strconv"
	"strings"
)

// spokenLetters maps how speech-to-text renders a spelled letter back to the
// letter itself.
var spokenLetters = map[string]string{
	"a": "a", "ay": "a",
	"b": "b", "be": "b", "bee": "b",
	"c": "c", "see": "c", "cee": "c", "sea": "c",
	"d": "d", "dee": "d",
	"e": "e", "ee": "e",
	"f": "f", "ef": "f",
	"g": "g", "gee": "g",
	"h": "h", "aitch": "h",
	"i": "i",
	"j": "j", "jay": "j",
	"k": "k", "kay": "k",
	"l": "l", "el": "l", "ell": "l",
	"m": "m", "em": "m",
	"n": "n", "en": "n",
	"o": "o",
	"p": "p", "pee": "p",
	"q": "q", "queue": "q", "cue": "q",
	"r": "r", "ar": "r", "are": "r",
	"s": "s", "ess": "s",
	"t": "t", "tee": "t",
	"u": "u", "you": "u",
	"v": "v", "vee": "v",
	"w": "w",
	"x": "x",
	"y": "y", "why": "y",
	"z": "z", "zee": "z", "zed": "z",
}

var (
	doubleU      = regexp.MustCompile(`\bdouble\s+u\b`)
	fillerPrefix = regexp.MustCompile(`^(?:also|and|then|just|put(?:\s+it)?\s+in|put|it'?s\s+in|into|in)\s+`)
	asInLetter   = regexp.MustCompile(`^(\S+)\s+as\s+in\b`)
)

// SpokenLetter maps a spoken letter rendering ("bee", "are", "zed") to the
// lowercase letter. Single letters map to themselves.
func SpokenLetter(tok string) (string, bool) {
	l, ok := spokenLetters[strings.ToLower(tok)]
	return l, ok
}

// BoxName returns the canonical form of a box name: lowercased, trailing
// punctuation and a leading "box " removed, every token passed through the
// spoken-letter and number-word tables, then uppercased. "shoes one",
// "SHOES 1" and "box shoes 1." all yield "SHOES 1".
func BoxName(name string) string {
	s := Canonicalize(name)
	s = trailingPunct.ReplaceAllString(s, "")
	s = strings.TrimPrefix(s, "box ")
	s = doubleU.ReplaceAllString(s, "w")

	tokens := strings.Fields(s)
	for i, tok := range tokens {
		if l, ok := spokenLetters[tok]; ok {
			tokens[i] = l
		} else if n, ok := numberWords[tok]; ok {
			tokens[i] = strconv.Itoa(n)
		}
	}
	return strings.ToUpper(strings.Join(tokens, " "))
}

// ResolveSpokenBoxName matches a spoken reply such as "put it in bee" or
// "R as in Romeo" against existing box names. Conversational filler, the
// "<letter> as in <word>" form and a leading "box " are removed and spoken
// letters are mapped before trying, in order: case-insensitive equality, a
// single-letter token naming an existing box, and case-insensitive prefix.
// It returns the existing name exactly as given.
func ResolveSpokenBoxName(spoken string, existing []string) (string, bool) {
	s := Canonicalize(spoken)
	s = trailingPunct.ReplaceAllString(s, "")
	for {
		stripped := fillerPrefix.ReplaceAllString(s, "")
		if stripped == s {
			break
		}
		s = stripped
	}
	if m := asInLetter.FindStringSubmatch(s); m != nil {
		if l, ok := spokenLetters[m[1]]; ok {
			s = l
		}
	}
	s = strings.TrimPrefix(s, "box ")
	s = doubleU.ReplaceAllString(s, "w")
	if l, ok := spokenLetters[s]; ok {
		s = l
	}
	if s == "" {
		return "", false
	}

	for _, name := range existing {
		if strings.EqualFold(name, s) {
			return name, true
		}
	}
	for _, tok := range strings.Fields(s) {
		l, ok := spokenLetters[tok]
		if !ok {
			continue
		}
		for _, name := range existing {
			if strings.EqualFold(name, l) {
				return name, true
			}
		}
	}
	for _, name := range existing {
		if strings.HasPrefix(strings.ToLower(name), s) {
			return name, true
		}
	}
	return "", false
}
