package score

import (
	"math"
	"strings"

	"github.com/paulyokota/feedforward/internal/model"
)

// platforms is the fixed list of social platforms the uniformity signal
// checks against. Cross-platform contamination (one signature silently
// mixing several platforms) is the most common grouping failure in this
// domain, so the list is matched against both product area and component.
var platforms = []string{
	"pinterest",
	"instagram",
	"facebook",
	"twitter",
	"tiktok",
	"linkedin",
	"youtube",
}

// Cosine returns the cosine similarity of two vectors. The second return
// is false when either vector is absent, zero-length, mismatched, or has
// zero magnitude; such pairs are excluded from pairwise means.
func Cosine(a, b []float64) (float64, bool) {
	if len(a) == 0 || len(b) == 0 || len(a) != len(b) {
		return 0, false
	}

	var dot, normA, normB float64
	for i := range a {
		dot += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}
	if normA == 0 || normB == 0 {
		return 0, false
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB)), true
}

// PairwiseCosine returns the cosine similarity of every pair of vectors
// that both exist. Missing or malformed vectors drop their pairs rather
// than dragging the mean down.
func PairwiseCosine(vectors [][]float64) []float64 {
	var sims []float64
	for i := 0; i < len(vectors); i++ {
		for j := i + 1; j < len(vectors); j++ {
			if sim, ok := Cosine(vectors[i], vectors[j]); ok {
				sims = append(sims, sim)
			}
		}
	}
	return sims
}

// Jaccard returns the Jaccard similarity of two symptom sets. Two empty
// sets are trivially identical.
func Jaccard(a, b map[string]bool) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 1.0
	}

	intersection := 0
	for s := range a {
		if b[s] {
			intersection++
		}
	}
	union := len(a) + len(b) - intersection
	if union == 0 {
		return 1.0
	}
	return float64(intersection) / float64(union)
}

// DetectPlatform returns the platform tag derived from the record's
// product area and component, or "" when no platform keyword matches.
func DetectPlatform(r model.ThemeRecord) string {
	haystack := strings.ToLower(r.ProductArea + " " + r.Component)
	for _, p := range platforms {
		if strings.Contains(haystack, p) {
			return p
		}
	}
	return ""
}

// clamp01 bounds a value to [0, 1].
func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
