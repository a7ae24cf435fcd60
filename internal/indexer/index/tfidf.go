package index

import "math"

// TermFrequency returns the share of words equal to token, or 0 for an
// empty word list.
func TermFrequency(token string, words []string) float64 {
	if len(words) == 0 {
		return 0
	}
	count := 0
	for _, w := range words {
		if w == token {
			count++
		}
	}
	return float64(count) / float64(len(words))
}

// InverseDocumentFrequency computes the smoothed IDF
// ln((N+1)/(df+1)) + 1 where df is the number of documents containing
// token at least once. An empty collection yields 0.
func InverseDocumentFrequency(token string, docs [][]string) float64 {
	if len(docs) == 0 {
		return 0
	}
	df := 0
	for _, doc := range docs {
		for _, w := range doc {
			if w == token {
				df++
				break
			}
		}
	}
	return idf(len(docs), df)
}

func idf(totalDocs, docFreq int) float64 {
	if totalDocs == 0 {
		return 0
	}
	return math.Log(float64(totalDocs+1)/float64(docFreq+1)) + 1
}
