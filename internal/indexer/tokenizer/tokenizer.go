// Package tokenizer splits raw text into sentences and word tokens and
// normalises tokens with a suffix-based stemmer.
package tokenizer

import (
	"strings"
	"unicode"
)

// Tokenize splits text on every run of characters that are neither letters
// nor numbers. Case is preserved; empty pieces are dropped.
func Tokenize(text string) []string {
	if text == "" {
		return nil
	}
	return strings.FieldsFunc(text, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})
}

// Sentences splits text on runs of sentence punctuation, quotes, colons,
// semicolons and newlines. Pieces are trimmed and empty ones dropped;
// duplicates are kept in their original order.
func Sentences(text string) []string {
	if text == "" {
		return nil
	}
	pieces := strings.FieldsFunc(text, isSentenceDelimiter)
	sentences := make([]string, 0, len(pieces))
	for _, p := range pieces {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		sentences = append(sentences, p)
	}
	return sentences
}

func isSentenceDelimiter(r rune) bool {
	switch r {
	case '.', '!', '?', ',', '"', '“', '”', '„', ':', ';', '\n':
		return true
	}
	return false
}

// Analyze tokenizes text, lower-cases every token and stems it. Order and
// duplicates are preserved. A nil stem function falls back to Stem.
func Analyze(text string, stem StemFunc) []string {
	if stem == nil {
		stem = Stem
	}
	tokens := Tokenize(text)
	if len(tokens) == 0 {
		return nil
	}
	stemmed := make([]string, len(tokens))
	for i, t := range tokens {
		stemmed[i] = stem(strings.ToLower(t))
	}
	return stemmed
}
