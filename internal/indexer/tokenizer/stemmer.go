package tokenizer

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/kljensen/snowball"
)

// StemFunc maps a lower-cased token to its stem.
type StemFunc func(word string) string

// suffixRules is evaluated in order; the first matching rule wins. A rule
// only applies when the word is longer than minLen characters.
var suffixRules = []struct {
	suffix      string
	replacement string
	minLen      int
}{
	{"ies", "y", 4},
	{"es", "", 4},
	{"s", "", 3},
	{"ing", "", 5},
	{"ed", "", 4},
	{"er", "", 4},
	{"est", "", 5},
	{"ly", "", 4},
	{"tion", "", 6},
	{"ness", "", 6},
	{"ment", "", 6},
}

// Stem strips at most one common English suffix. Words shorter than three
// characters are returned untouched; anything longer is lower-cased.
func Stem(word string) string {
	if utf8.RuneCountInString(word) < 3 {
		return word
	}
	lower := strings.ToLower(word)
	n := utf8.RuneCountInString(lower)
	for _, rule := range suffixRules {
		if n > rule.minLen && strings.HasSuffix(lower, rule.suffix) {
			return lower[:len(lower)-len(rule.suffix)] + rule.replacement
		}
	}
	return lower
}

// SnowballStem stems with the English Snowball (Porter2) algorithm. It is
// an opt-in alternative to Stem and falls back to the lower-cased word when
// the stemmer rejects its input.
func SnowballStem(word string) string {
	if utf8.RuneCountInString(word) < 3 {
		return word
	}
	lower := strings.ToLower(word)
	stemmed, err := snowball.Stem(lower, "english", true)
	if err != nil || stemmed == "" {
		return lower
	}
	return stemmed
}

// CanonicalStemmerName lower-cases name and maps the empty name to
// "suffix".
func CanonicalStemmerName(name string) string {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		return "suffix"
	}
	return name
}

// StemmerByName resolves a configured stemmer name. The empty name selects
// the suffix stemmer.
func StemmerByName(name string) (StemFunc, error) {
	switch CanonicalStemmerName(name) {
	case "suffix":
		return Stem, nil
	case "snowball":
		return SnowballStem, nil
	default:
		return nil, fmt.Errorf("unknown stemmer %q", name)
	}
}
