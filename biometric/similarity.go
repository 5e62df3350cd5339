package biometric

import "math"

// CosineSimilarity returns the cosine of the angle between two vectors, or 0 when the
// dimensions differ or either vector has zero norm.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}

	var dot, normA, normB float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		normA += x * x
		normB += y * y
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

// Score maps similarity to a confidence in [0,1]; opposing vectors score 0.
func Score(a, b []float32) float64 {
	s := CosineSimilarity(a, b)
	if s < 0 {
		return 0
	}
	if s > 1 {
		return 1
	}
	return s
}

// ValidVector reports whether v is non-empty and contains only finite values.
func ValidVector(v []float32) bool {
	if len(v) == 0 {
		return false
	}
	for _, x := range v {
		f := float64(x)
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return false
		}
	}
	return true
}
