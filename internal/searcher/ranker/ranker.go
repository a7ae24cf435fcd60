// Package ranker scores sentences against a query with TF-IDF weighted
// cosine similarity over a corpus index.
package ranker

import (
	"math"
	"sort"

	"github.com/Adithya-Monish-Kumar-K/sentence-ranker/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/sentence-ranker/internal/searcher/merger"
)

// ScoredSentence is one ranked sentence. Position is its index in the corpus.
type ScoredSentence struct {
	Sentence string  `json:"sentence"`
	Score    float64 `json:"score"`
	Position int     `json:"position"`
}

// Ranker answers ranking and similarity queries against one corpus.
type Ranker struct {
	corpus *index.Corpus
}

func New(corpus *index.Corpus) *Ranker {
	return &Ranker{corpus: corpus}
}

// Corpus returns the underlying index.
func (r *Ranker) Corpus() *index.Corpus {
	return r.corpus
}

// Similarity returns the TF-IDF cosine similarity of two pieces of text,
// in [0, 1]. Text without tokens scores 0.
func (r *Ranker) Similarity(a, b string) float64 {
	return r.cosine(r.corpus.Analyze(a), r.corpus.Analyze(b))
}

// Rank scores every sentence against query and returns those with a
// positive score, best first. Equal scores keep corpus order. topN > 0 caps
// the result length.
func (r *Ranker) Rank(query string, topN int) []ScoredSentence {
	terms := r.corpus.Analyze(query)
	if len(terms) == 0 {
		return []ScoredSentence{}
	}

	results := make([]ScoredSentence, 0)
	for i := 0; i < r.corpus.Len(); i++ {
		score := r.cosine(terms, r.corpus.Document(i))
		if score > 0 {
			results = append(results, ScoredSentence{
				Sentence: r.corpus.Sentence(i),
				Score:    score,
				Position: i,
			})
		}
	}

	if topN > 0 && topN < len(results) {
		return merger.Top(results, topN, better)
	}
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})
	return results
}

// Terms returns the stemmed tokens a query is scored on.
func (r *Ranker) Terms(query string) []string {
	return r.corpus.Analyze(query)
}

// TokenStats reports whole-text TF and corpus IDF for a token.
func (r *Ranker) TokenStats(token string) index.TokenStats {
	return r.corpus.TokenStats(token)
}

// Stats summarises the underlying corpus.
func (r *Ranker) Stats() index.Stats {
	return r.corpus.Stats()
}

func better(a, b ScoredSentence) bool {
	if a.Score != b.Score {
		return a.Score > b.Score
	}
	return a.Position < b.Position
}

// cosine builds TF-IDF vectors over the union of both word lists, in order
// of first appearance, and returns their cosine.
func (r *Ranker) cosine(wordsA, wordsB []string) float64 {
	if len(wordsA) == 0 || len(wordsB) == 0 {
		return 0
	}

	vocab := make([]string, 0, len(wordsA)+len(wordsB))
	seen := make(map[string]struct{}, len(wordsA)+len(wordsB))
	for _, list := range [][]string{wordsA, wordsB} {
		for _, w := range list {
			if _, ok := seen[w]; ok {
				continue
			}
			seen[w] = struct{}{}
			vocab = append(vocab, w)
		}
	}

	var dot, normA, normB float64
	for _, term := range vocab {
		idf := r.corpus.IDF(term)
		wa := index.TermFrequency(term, wordsA) * idf
		wb := index.TermFrequency(term, wordsB) * idf
		dot += wa * wb
		normA += wa * wa
		normB += wb * wb
	}

	magA, magB := math.Sqrt(normA), math.Sqrt(normB)
	if magA == 0 || magB == 0 {
		return 0
	}
	return math.Min(dot/(magA*magB), 1)
}
