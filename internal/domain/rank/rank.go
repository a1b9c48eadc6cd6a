// Package rank scores corpus records against a query vector by cosine
// similarity. The scan is O(corpus x dimension) per query, which is the
// scalability ceiling; the corpus here is tens of records.
package rank

import (
	"math"
	"sort"

	"github.com/sohae-kim/foliochat/internal/domain"
)

// CosineSimilarity returns dot(a,b) / (|a|*|b|). A zero or degenerate
// vector scores exactly 0: maximally dissimilar, never an error.
func CosineSimilarity(a, b []float32) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}

	var dot, normA, normB float64
	for i := 0; i < n; i++ {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}

	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

// Rank scores every record against query and returns the top topK by
// descending score. Ties keep corpus order (stable sort).
func Rank(query []float32, corpus []domain.ContentRecord, topK int) []domain.RankedResult {
	results := make([]domain.RankedResult, len(corpus))
	for i, rec := range corpus {
		results[i] = domain.RankedResult{
			ID:      rec.ID,
			Content: rec.Content,
			URL:     rec.URL,
			Score:   CosineSimilarity(query, rec.Embedding),
		}
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})

	if topK < len(results) {
		results = results[:topK]
	}
	return results
}
