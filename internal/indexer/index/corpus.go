// Package index holds the sentence corpus built from a body of text: the
// sentences, one stemmed document per sentence, and a lazily extended IDF
// cache over those documents.
package index

import (
	"strings"
	"sync"

	"github.com/Adithya-Monish-Kumar-K/sentence-ranker/internal/indexer/tokenizer"
)

// TokenStats reports whole-corpus statistics for one stemmed token.
type TokenStats struct {
	Token string  `json:"token"`
	TF    float64 `json:"tf"`
	IDF   float64 `json:"idf"`
}

// Stats summarises a corpus.
type Stats struct {
	Sentences    int `json:"sentences"`
	Tokens       int `json:"tokens"`
	Vocabulary   int `json:"vocabulary"`
	IDFCacheSize int `json:"idf_cache_size"`
}

// Option configures a Corpus at construction time.
type Option func(*Corpus)

// WithStemmer replaces the default suffix stemmer.
func WithStemmer(stem tokenizer.StemFunc) Option {
	return func(c *Corpus) {
		if stem != nil {
			c.stem = stem
		}
	}
}

// Corpus is immutable after New except for the IDF cache, which only ever
// gains entries. It is safe for concurrent use.
type Corpus struct {
	raw       string
	tokens    []string
	stemmed   []string
	sentences []string
	docs      [][]string
	vocabSize int
	stem      tokenizer.StemFunc

	mu       sync.RWMutex
	idfCache map[string]float64
}

// New builds the corpus and precomputes IDF for every distinct stemmed token
// found in any sentence. It never fails; empty text gives an empty corpus.
func New(text string, opts ...Option) *Corpus {
	c := &Corpus{
		raw:  text,
		stem: tokenizer.Stem,
	}
	for _, opt := range opts {
		opt(c)
	}

	c.tokens = tokenizer.Tokenize(text)
	c.stemmed = tokenizer.Analyze(text, c.stem)
	c.sentences = tokenizer.Sentences(text)
	c.docs = make([][]string, len(c.sentences))
	for i, s := range c.sentences {
		c.docs[i] = tokenizer.Analyze(s, c.stem)
	}

	docFreq := make(map[string]int)
	for _, doc := range c.docs {
		seen := make(map[string]struct{}, len(doc))
		for _, t := range doc {
			if _, ok := seen[t]; ok {
				continue
			}
			seen[t] = struct{}{}
			docFreq[t]++
		}
	}
	c.idfCache = make(map[string]float64, len(docFreq))
	for t, df := range docFreq {
		c.idfCache[t] = idf(len(c.docs), df)
	}
	c.vocabSize = len(docFreq)
	return c
}

// Raw returns the text the corpus was built from.
func (c *Corpus) Raw() string { return c.raw }

// Len returns the number of sentences (and documents).
func (c *Corpus) Len() int { return len(c.sentences) }

// Sentence returns the i-th sentence.
func (c *Corpus) Sentence(i int) string { return c.sentences[i] }

// Document returns the stemmed tokens of the i-th sentence. Callers must not
// modify the returned slice.
func (c *Corpus) Document(i int) []string { return c.docs[i] }

// Sentences returns a copy of the sentences in corpus order.
func (c *Corpus) Sentences() []string {
	out := make([]string, len(c.sentences))
	copy(out, c.sentences)
	return out
}

// Documents returns a copy of the per-sentence stemmed documents.
func (c *Corpus) Documents() [][]string {
	out := make([][]string, len(c.docs))
	for i, d := range c.docs {
		out[i] = append([]string(nil), d...)
	}
	return out
}

// Tokens returns a copy of the unstemmed tokens of the whole text.
func (c *Corpus) Tokens() []string {
	return append([]string(nil), c.tokens...)
}

// Stem applies the corpus stemmer to a single token.
func (c *Corpus) Stem(token string) string {
	return c.stem(token)
}

// Analyze tokenizes and stems text with the corpus stemmer.
func (c *Corpus) Analyze(text string) []string {
	return tokenizer.Analyze(text, c.stem)
}

// IDF returns the cached IDF for a stemmed token, computing and caching it
// on a miss. Existing entries are never overwritten.
func (c *Corpus) IDF(token string) float64 {
	c.mu.RLock()
	v, ok := c.idfCache[token]
	c.mu.RUnlock()
	if ok {
		return v
	}

	v = InverseDocumentFrequency(token, c.docs)

	c.mu.Lock()
	defer c.mu.Unlock()
	if existing, ok := c.idfCache[token]; ok {
		return existing
	}
	c.idfCache[token] = v
	return v
}

// TF returns the frequency of the token's stem across the stemmed tokens of
// the whole text, not a single sentence.
func (c *Corpus) TF(token string) float64 {
	return TermFrequency(c.stem(strings.ToLower(token)), c.stemmed)
}

// TokenStats stems the lower-cased token and reports its whole-text TF and
// corpus IDF.
func (c *Corpus) TokenStats(token string) TokenStats {
	stemmed := c.stem(strings.ToLower(token))
	return TokenStats{
		Token: stemmed,
		TF:    TermFrequency(stemmed, c.stemmed),
		IDF:   c.IDF(stemmed),
	}
}

// IDFCacheSize returns the number of cached IDF entries.
func (c *Corpus) IDFCacheSize() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.idfCache)
}

// Stats returns sentence, token, vocabulary and cache counts.
func (c *Corpus) Stats() Stats {
	return Stats{
		Sentences:    len(c.sentences),
		Tokens:       len(c.tokens),
		Vocabulary:   c.vocabSize,
		IDFCacheSize: c.IDFCacheSize(),
	}
}
