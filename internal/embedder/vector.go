package embedder

import "math"

// CosineSimilarity computes the cosine of the angle between two vectors,
// in [-1, 1]. Zero-norm vectors and mismatched dimensions yield 0 rather
// than an error so callers never divide by zero on degenerate input.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}

	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}

	if normA == 0 || normB == 0 {
		return 0
	}

	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

// SemanticScore remaps a cosine similarity from [-1, 1] onto [0, 1] for
// caller-facing scores: score = clamp((cosine+1)/2, 0, 1).
func SemanticScore(cosine float64) float64 {
	score := (cosine + 1) / 2
	if score < 0 {
		return 0
	}
	if score > 1 {
		return 1
	}
	return score
}
