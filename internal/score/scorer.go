package score

import (
	"context"
	"fmt"

	"github.com/montanaflynn/stats"

	"github.com/paulyokota/feedforward/internal/model"
)

// Calibrated signal weights. They sum to 1.0; the total confidence is
// 100 * weighted sum of raw signals.
const (
	weightSemantic    = 0.30
	weightIntent      = 0.20
	weightHomogeneity = 0.15
	weightSymptom     = 0.10
	weightProduct     = 0.10
	weightComponent   = 0.10
	weightPlatform    = 0.05
)

// neutralMidpoint stands in for similarity signals that cannot be
// computed (no embeddings available). Groups without embeddings are
// degraded to "unknown", never punished to zero.
const neutralMidpoint = 0.5

// Embedder computes text embeddings for intent similarity. A nil
// embedder degrades the intent signals to the neutral midpoint.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float64, error)
}

// Scorer computes the coherence confidence of candidate groups. The score
// is a prioritization signal for downstream review, not an auto-accept
// threshold: every group still goes through the quality gate.
type Scorer struct {
	embedder Embedder
}

// NewScorer creates a scorer. embedder may be nil.
func NewScorer(embedder Embedder) *Scorer {
	return &Scorer{embedder: embedder}
}

// Score computes the confidence score for a group. Deterministic for
// deterministic inputs: the same records and embeddings always produce
// the same score. Never fails; unavailable signals degrade to neutral.
func (s *Scorer) Score(ctx context.Context, group model.CandidateGroup) model.ConfidenceScore {
	n := group.Size()
	if n == 0 {
		return model.ConfidenceScore{}
	}

	signals := []model.Signal{
		s.semanticSimilarity(group),
	}
	intentSig, homogeneitySig := s.intentSignals(ctx, group)
	signals = append(signals, intentSig, homogeneitySig,
		s.symptomOverlap(group),
		s.fieldMatch(model.SignalProductAreaMatch, weightProduct, group, func(r model.ThemeRecord) string { return r.ProductArea }),
		s.fieldMatch(model.SignalComponentMatch, weightComponent, group, func(r model.ThemeRecord) string { return r.Component }),
		s.platformUniformity(group),
	)

	var total float64
	for _, sig := range signals {
		total += sig.Value * sig.Weight
	}

	return model.ConfidenceScore{
		Total:   clamp01(total) * 100,
		Signals: signals,
	}
}

// semanticSimilarity is the mean pairwise cosine similarity of the
// records' conversation embeddings.
func (s *Scorer) semanticSimilarity(group model.CandidateGroup) model.Signal {
	sig := model.Signal{
		Type:   model.SignalSemanticSimilarity,
		Weight: weightSemantic,
	}

	if group.Size() == 1 {
		sig.Value = 1.0
		sig.Description = "single record, trivially self-similar"
		return sig
	}

	vectors := make([][]float64, 0, group.Size())
	for _, r := range group.Records {
		vectors = append(vectors, r.Embedding)
	}

	sims := PairwiseCosine(vectors)
	if len(sims) == 0 {
		sig.Value = neutralMidpoint
		sig.Description = "no embedding pairs available, defaulting to neutral"
		sig.Data = map[string]interface{}{"pairs": 0, "neutral": neutralMidpoint}
		return sig
	}

	mean, _ := stats.Mean(sims)
	sig.Value = clamp01(mean)
	sig.Description = fmt.Sprintf("mean pairwise cosine over %d pairs: %.3f", len(sims), mean)
	sig.Data = map[string]interface{}{
		"pairs":   len(sims),
		"mean":    mean,
		"formula": "mean(cosine(e_i, e_j)) over pairs with embeddings",
	}
	return sig
}

// intentSignals computes intent similarity and intent homogeneity from
// on-the-fly intent embeddings. Homogeneity penalizes variance so a
// group with tight sub-clusters and an outlier scores below one with
// uniform moderate similarity.
func (s *Scorer) intentSignals(ctx context.Context, group model.CandidateGroup) (model.Signal, model.Signal) {
	intentSig := model.Signal{Type: model.SignalIntentSimilarity, Weight: weightIntent}
	homogSig := model.Signal{Type: model.SignalIntentHomogeneity, Weight: weightHomogeneity}

	if group.Size() == 1 {
		intentSig.Value = 1.0
		intentSig.Description = "single record, trivially self-similar"
		homogSig.Value = 1.0
		homogSig.Description = "single record, zero variance"
		return intentSig, homogSig
	}

	sims := s.intentPairSims(ctx, group)
	if sims == nil {
		intentSig.Value = neutralMidpoint
		intentSig.Description = "intent embeddings unavailable, defaulting to neutral"
		homogSig.Value = neutralMidpoint
		homogSig.Description = "intent embeddings unavailable, defaulting to neutral"
		return intentSig, homogSig
	}

	mean, _ := stats.Mean(sims)
	stddev, _ := stats.StandardDeviation(sims)

	intentSig.Value = clamp01(mean)
	intentSig.Description = fmt.Sprintf("mean pairwise intent similarity over %d pairs: %.3f", len(sims), mean)
	intentSig.Data = map[string]interface{}{"pairs": len(sims), "mean": mean}

	homogSig.Value = clamp01(mean * (1 - 2*stddev))
	homogSig.Description = fmt.Sprintf("homogeneity %.3f (mean %.3f, stddev %.3f)", homogSig.Value, mean, stddev)
	homogSig.Data = map[string]interface{}{
		"mean":    mean,
		"stddev":  stddev,
		"formula": "clamp(mean * (1 - 2*stddev), 0, 1)",
	}
	return intentSig, homogSig
}

// intentPairSims embeds the group's user intents and returns the pairwise
// similarities, or nil when embeddings cannot be computed.
func (s *Scorer) intentPairSims(ctx context.Context, group model.CandidateGroup) []float64 {
	if s.embedder == nil {
		return nil
	}

	texts := make([]string, 0, group.Size())
	for _, r := range group.Records {
		if r.UserIntent != "" {
			texts = append(texts, r.UserIntent)
		}
	}
	if len(texts) < 2 {
		return nil
	}

	vectors, err := s.embedder.Embed(ctx, texts)
	if err != nil || len(vectors) != len(texts) {
		return nil
	}

	sims := PairwiseCosine(vectors)
	if len(sims) == 0 {
		return nil
	}
	return sims
}

// symptomOverlap is the mean pairwise Jaccard similarity of symptom sets.
func (s *Scorer) symptomOverlap(group model.CandidateGroup) model.Signal {
	sig := model.Signal{Type: model.SignalSymptomOverlap, Weight: weightSymptom}

	if group.Size() == 1 {
		sig.Value = 1.0
		sig.Description = "single record, trivially self-similar"
		return sig
	}

	sets := make([]map[string]bool, group.Size())
	for i, r := range group.Records {
		sets[i] = r.SymptomSet()
	}

	var sum float64
	pairs := 0
	for i := 0; i < len(sets); i++ {
		for j := i + 1; j < len(sets); j++ {
			sum += Jaccard(sets[i], sets[j])
			pairs++
		}
	}

	sig.Value = clamp01(sum / float64(pairs))
	sig.Description = fmt.Sprintf("mean pairwise Jaccard over %d pairs: %.3f", pairs, sig.Value)
	sig.Data = map[string]interface{}{"pairs": pairs}
	return sig
}

// fieldMatch is 1.0 when every record shares the same value for a
// categorical field, else 0.0. Boolean, not fractional.
func (s *Scorer) fieldMatch(t model.SignalType, weight float64, group model.CandidateGroup, field func(model.ThemeRecord) string) model.Signal {
	sig := model.Signal{Type: t, Weight: weight}

	first := field(group.Records[0])
	for _, r := range group.Records[1:] {
		if field(r) != first {
			sig.Value = 0.0
			sig.Description = "records disagree"
			return sig
		}
	}
	sig.Value = 1.0
	sig.Description = fmt.Sprintf("all records share %q", first)
	return sig
}

// platformUniformity checks that the group does not silently mix social
// platforms. Identical tags score 1.0; otherwise the fraction held by the
// most common tag.
func (s *Scorer) platformUniformity(group model.CandidateGroup) model.Signal {
	sig := model.Signal{Type: model.SignalPlatformUniformity, Weight: weightPlatform}

	counts := make(map[string]int)
	for _, r := range group.Records {
		counts[DetectPlatform(r)]++
	}

	if len(counts) == 1 {
		sig.Value = 1.0
		for tag := range counts {
			if tag == "" {
				sig.Description = "no platform detected for any record"
			} else {
				sig.Description = fmt.Sprintf("all records on %s", tag)
			}
		}
		return sig
	}

	max := 0
	for _, c := range counts {
		if c > max {
			max = c
		}
	}
	sig.Value = float64(max) / float64(group.Size())
	sig.Description = fmt.Sprintf("mixed platforms: %d tags, dominant covers %d/%d records", len(counts), max, group.Size())
	sig.Data = map[string]interface{}{"tags": len(counts), "dominant": max, "total": group.Size()}
	return sig
}
