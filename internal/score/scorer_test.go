package score

import (
	"context"
	"fmt"
	"math"
	"testing"

	"github.com/paulyokota/feedforward/internal/model"
)

// fakeEmbedder returns a fixed vector per distinct text so intent
// similarity is fully deterministic in tests.
type fakeEmbedder struct {
	vectors map[string][]float64
	err     error
}

func (f *fakeEmbedder) Embed(_ context.Context, texts []string) ([][]float64, error) {
	if f.err != nil {
		return nil, f.err
	}
	out := make([][]float64, len(texts))
	for i, t := range texts {
		out[i] = f.vectors[t]
	}
	return out, nil
}

func billingRecord(id string, embedding []float64) model.ThemeRecord {
	return model.ThemeRecord{
		ConversationID: id,
		IssueSignature: "billing_cancellation_request",
		ProductArea:    "billing",
		Component:      "subscription",
		UserIntent:     "cancel my subscription",
		Symptoms:       []string{"cancel"},
		Embedding:      embedding,
		Excerpt:        "I would like to cancel my subscription before renewal please",
	}
}

func TestScorer_CoherentGroupScoresHigh(t *testing.T) {
	embedder := &fakeEmbedder{vectors: map[string][]float64{
		"cancel my subscription": {1, 0, 0},
	}}
	scorer := NewScorer(embedder)

	// Five records with pairwise cosine ~0.9 between neighbors.
	var records []model.ThemeRecord
	for i := 0; i < 5; i++ {
		angle := float64(i) * 0.08
		records = append(records, billingRecord(
			fmt.Sprintf("conv-%d", i),
			[]float64{math.Cos(angle), math.Sin(angle), 0},
		))
	}
	group := model.CandidateGroup{Signature: "billing_cancellation_request", Records: records}

	result := scorer.Score(context.Background(), group)

	if result.Total < 80 {
		t.Errorf("expected confidence >= 80 for coherent billing group, got %.1f", result.Total)
	}
	if result.Total > 100 {
		t.Errorf("expected confidence <= 100, got %.1f", result.Total)
	}
	if len(result.Signals) != 7 {
		t.Errorf("expected 7 signals in breakdown, got %d", len(result.Signals))
	}
}

func TestScorer_Boundedness(t *testing.T) {
	scorer := NewScorer(nil)

	cases := []struct {
		name  string
		group model.CandidateGroup
	}{
		{
			name:  "single record no embedding",
			group: model.CandidateGroup{Signature: "s", Records: []model.ThemeRecord{{ConversationID: "a", IssueSignature: "s"}}},
		},
		{
			name: "two records nothing in common",
			group: model.CandidateGroup{Signature: "s", Records: []model.ThemeRecord{
				{ConversationID: "a", IssueSignature: "s", ProductArea: "billing", Component: "checkout", Symptoms: []string{"charge"}},
				{ConversationID: "b", IssueSignature: "s", ProductArea: "scheduling", Component: "calendar", Symptoms: []string{"missing"}},
			}},
		},
		{
			name: "opposed embeddings",
			group: model.CandidateGroup{Signature: "s", Records: []model.ThemeRecord{
				{ConversationID: "a", IssueSignature: "s", Embedding: []float64{1, 0}},
				{ConversationID: "b", IssueSignature: "s", Embedding: []float64{-1, 0}},
			}},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			result := scorer.Score(context.Background(), tc.group)
			if result.Total < 0 || result.Total > 100 {
				t.Errorf("expected score in [0, 100], got %.2f", result.Total)
			}
		})
	}
}

func TestScorer_SingleRecordVacuouslyPerfect(t *testing.T) {
	scorer := NewScorer(nil)
	group := model.CandidateGroup{Signature: "s", Records: []model.ThemeRecord{
		{ConversationID: "a", IssueSignature: "s", ProductArea: "billing", UserIntent: "cancel"},
	}}

	result := scorer.Score(context.Background(), group)

	for _, sig := range result.Signals {
		if sig.Value != 1.0 {
			t.Errorf("signal %s: expected vacuous 1.0 for single record, got %.2f", sig.Type, sig.Value)
		}
	}
	if result.Total != 100 {
		t.Errorf("expected total 100 for single record, got %.2f", result.Total)
	}
}

func TestScorer_MissingEmbeddingsNeutralNotZero(t *testing.T) {
	scorer := NewScorer(nil)
	group := model.CandidateGroup{Signature: "s", Records: []model.ThemeRecord{
		{ConversationID: "a", IssueSignature: "s", ProductArea: "billing", Component: "subscription"},
		{ConversationID: "b", IssueSignature: "s", ProductArea: "billing", Component: "subscription"},
	}}

	result := scorer.Score(context.Background(), group)

	semantic, ok := result.Signal(model.SignalSemanticSimilarity)
	if !ok {
		t.Fatal("expected semantic similarity signal in breakdown")
	}
	if semantic.Value != neutralMidpoint {
		t.Errorf("expected neutral %.1f for missing embeddings, got %.2f", neutralMidpoint, semantic.Value)
	}
}

func TestScorer_EmbedderFailureDegradesGracefully(t *testing.T) {
	scorer := NewScorer(&fakeEmbedder{err: fmt.Errorf("rate limited")})
	group := model.CandidateGroup{Signature: "s", Records: []model.ThemeRecord{
		{ConversationID: "a", IssueSignature: "s", UserIntent: "cancel my plan"},
		{ConversationID: "b", IssueSignature: "s", UserIntent: "stop billing me"},
	}}

	result := scorer.Score(context.Background(), group)

	intent, _ := result.Signal(model.SignalIntentSimilarity)
	if intent.Value != neutralMidpoint {
		t.Errorf("expected neutral intent signal on embed failure, got %.2f", intent.Value)
	}
	homog, _ := result.Signal(model.SignalIntentHomogeneity)
	if homog.Value != neutralMidpoint {
		t.Errorf("expected neutral homogeneity on embed failure, got %.2f", homog.Value)
	}
}

func TestScorer_HomogeneityPenalizesVariance(t *testing.T) {
	// Uniform group: every intent identical. Split group: two tight
	// sub-clusters, similarities alternate between 1.0 and ~0.
	uniform := &fakeEmbedder{vectors: map[string][]float64{
		"a": {1, 0}, "b": {1, 0}, "c": {1, 0},
	}}
	split := &fakeEmbedder{vectors: map[string][]float64{
		"a": {1, 0}, "b": {1, 0}, "c": {0, 1},
	}}

	makeGroup := func() model.CandidateGroup {
		return model.CandidateGroup{Signature: "s", Records: []model.ThemeRecord{
			{ConversationID: "1", IssueSignature: "s", UserIntent: "a"},
			{ConversationID: "2", IssueSignature: "s", UserIntent: "b"},
			{ConversationID: "3", IssueSignature: "s", UserIntent: "c"},
		}}
	}

	uniformScore := NewScorer(uniform).Score(context.Background(), makeGroup())
	splitScore := NewScorer(split).Score(context.Background(), makeGroup())

	uh, _ := uniformScore.Signal(model.SignalIntentHomogeneity)
	sh, _ := splitScore.Signal(model.SignalIntentHomogeneity)

	if uh.Value != 1.0 {
		t.Errorf("expected homogeneity 1.0 for identical intents, got %.3f", uh.Value)
	}
	if sh.Value >= uh.Value {
		t.Errorf("expected split group homogeneity (%.3f) below uniform (%.3f)", sh.Value, uh.Value)
	}
}

func TestScorer_PlatformContaminationLowersScore(t *testing.T) {
	scorer := NewScorer(nil)

	mixed := model.CandidateGroup{Signature: "oauth_error", Records: []model.ThemeRecord{
		{ConversationID: "a", IssueSignature: "oauth_error", ProductArea: "pinterest publishing"},
		{ConversationID: "b", IssueSignature: "oauth_error", ProductArea: "instagram publishing"},
		{ConversationID: "c", IssueSignature: "oauth_error", ProductArea: "facebook publishing"},
	}}

	result := scorer.Score(context.Background(), mixed)

	platform, ok := result.Signal(model.SignalPlatformUniformity)
	if !ok {
		t.Fatal("expected platform uniformity signal")
	}
	want := 1.0 / 3.0
	if math.Abs(platform.Value-want) > 1e-9 {
		t.Errorf("expected platform uniformity %.3f for three platforms, got %.3f", want, platform.Value)
	}
}

func TestScorer_Deterministic(t *testing.T) {
	embedder := &fakeEmbedder{vectors: map[string][]float64{"x": {1, 0}, "y": {0.8, 0.6}}}
	scorer := NewScorer(embedder)
	group := model.CandidateGroup{Signature: "s", Records: []model.ThemeRecord{
		{ConversationID: "a", IssueSignature: "s", UserIntent: "x", Embedding: []float64{1, 0}},
		{ConversationID: "b", IssueSignature: "s", UserIntent: "y", Embedding: []float64{0.9, 0.1}},
	}}

	first := scorer.Score(context.Background(), group)
	second := scorer.Score(context.Background(), group)

	if first.Total != second.Total {
		t.Errorf("expected identical scores across calls, got %.6f then %.6f", first.Total, second.Total)
	}
}
