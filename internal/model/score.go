package model

// SignalType classifies one weighted component of a confidence score.
type SignalType string

const (
	SignalSemanticSimilarity SignalType = "semantic_similarity"
	SignalIntentSimilarity   SignalType = "intent_similarity"
	SignalIntentHomogeneity  SignalType = "intent_homogeneity"
	SignalSymptomOverlap     SignalType = "symptom_overlap"
	SignalProductAreaMatch   SignalType = "product_area_match"
	SignalComponentMatch     SignalType = "component_match"
	SignalPlatformUniformity SignalType = "platform_uniformity"
)

// Signal is one sub-score with its raw value and weight, kept transparent
// so every confidence number can be explained from its breakdown.
type Signal struct {
	Type        SignalType             `json:"type"`
	Value       float64                `json:"value"`  // raw signal in [0, 1]
	Weight      float64                `json:"weight"` // calibrated constant
	Description string                 `json:"description"`
	Data        map[string]interface{} `json:"data,omitempty"`
}

// ConfidenceScore is a point-in-time coherence judgment for a candidate
// group: the weighted total in [0, 100] plus the per-signal breakdown.
// Scores are recomputed every run and never persisted.
type ConfidenceScore struct {
	Total   float64  `json:"total"`
	Signals []Signal `json:"signals"`
}

// Signal returns the breakdown entry for the given type, if present.
func (s *ConfidenceScore) Signal(t SignalType) (Signal, bool) {
	for _, sig := range s.Signals {
		if sig.Type == t {
			return sig, true
		}
	}
	return Signal{}, false
}
