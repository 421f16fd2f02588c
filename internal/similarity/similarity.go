package similarity

import (
	"fmt"
	"math"
	"sort"

	"github.com/quillfeed/quillfeed-backend/internal/domain/content"
)

// Cosine returns the cosine similarity of two equal-length vectors in
// [-1, 1]. A zero vector yields 0.
func Cosine(a, b content.Vector) (float64, error) {
	if len(a) != len(b) {
		return 0, fmt.Errorf("vector length mismatch: %d vs %d", len(a), len(b))
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0, nil
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB)), nil
}

// Match pairs an item id with its similarity to the query vector.
type Match struct {
	ItemID string  `json:"item_id"`
	Score  float64 `json:"score"`
}

// TopK scans candidates exhaustively and returns the k most similar, highest
// first. Candidates whose length does not match the query are skipped. Ties
// break on item id for stable output.
func TopK(query content.Vector, candidates map[string]content.Vector, k int) []Match {
	if k <= 0 || len(candidates) == 0 {
		return nil
	}
	matches := make([]Match, 0, len(candidates))
	for id, vec := range candidates {
		score, err := Cosine(query, vec)
		if err != nil {
			continue
		}
		matches = append(matches, Match{ItemID: id, Score: score})
	}
	sort.Slice(matches, func(i, j int) bool {
		if matches[i].Score != matches[j].Score {
			return matches[i].Score > matches[j].Score
		}
		return matches[i].ItemID < matches[j].ItemID
	})
	if len(matches) > k {
		matches = matches[:k]
	}
	return matches
}
