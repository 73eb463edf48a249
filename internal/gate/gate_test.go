package gate

import (
	"context"
	"fmt"
	"testing"

	"github.com/paulyokota/feedforward/internal/model"
	"github.com/paulyokota/feedforward/internal/score"
	"github.com/paulyokota/feedforward/internal/validate"
)

func newGate(minSize int, threshold float64) *QualityGate {
	return New(minSize, threshold, validate.NewEvidenceValidator(), score.NewScorer(nil))
}

func coherentGroup(size int) model.CandidateGroup {
	group := model.CandidateGroup{Signature: "billing_cancellation_request"}
	for i := 0; i < size; i++ {
		group.Records = append(group.Records, model.ThemeRecord{
			ConversationID: fmt.Sprintf("conv-%d", i),
			IssueSignature: group.Signature,
			ProductArea:    "billing",
			Component:      "subscription",
			Symptoms:       []string{"cancel"},
			Embedding:      []float64{1, 0, 0},
			Excerpt:        "I was charged after cancelling my subscription last week",
		})
	}
	return group
}

func TestEvaluate_CoherentGroupPasses(t *testing.T) {
	g := newGate(3, 50.0)

	result := g.Evaluate(context.Background(), coherentGroup(5))

	if !result.Passed {
		t.Fatalf("expected pass, got failure reason %q", result.FailureReason)
	}
	if result.FailureReason != "" {
		t.Errorf("expected empty failure reason on pass, got %q", result.FailureReason)
	}
}

func TestEvaluate_TooSmall(t *testing.T) {
	g := newGate(3, 50.0)

	result := g.Evaluate(context.Background(), coherentGroup(2))

	if result.Passed {
		t.Fatal("expected failure for group below minimum size")
	}
	if result.FailureReason != model.FailureTooSmall {
		t.Errorf("expected %q, got %q", model.FailureTooSmall, result.FailureReason)
	}
	// Sub-checks still computed for diagnostics.
	if !result.Evidence.IsValid {
		t.Error("expected evidence validation to run despite size failure")
	}
	if len(result.Confidence.Signals) == 0 {
		t.Error("expected confidence breakdown despite size failure")
	}
}

func TestEvaluate_InvalidEvidenceBeatsLowConfidence(t *testing.T) {
	g := newGate(3, 50.0)

	// Placeholder excerpt plus mixed categorical fields: both evidence
	// and confidence checks fail, but the reason must be the first
	// failing check in the fixed order.
	group := coherentGroup(3)
	group.Records[0].Excerpt = "To gather evidence: search Intercom for this theme"
	group.Records[1].ProductArea = "scheduling"
	group.Records[2].Component = "calendar"

	result := g.Evaluate(context.Background(), group)

	if result.Passed {
		t.Fatal("expected failure")
	}
	if result.FailureReason != model.FailureInvalidEvidence {
		t.Errorf("expected %q, got %q", model.FailureInvalidEvidence, result.FailureReason)
	}
}

func TestEvaluate_LowConfidence(t *testing.T) {
	g := newGate(3, 50.0)

	group := coherentGroup(3)
	// Scatter every similarity signal: distinct areas, components,
	// symptoms, and orthogonal embeddings.
	group.Records[0].ProductArea, group.Records[0].Component = "billing", "checkout"
	group.Records[1].ProductArea, group.Records[1].Component = "scheduling", "calendar"
	group.Records[2].ProductArea, group.Records[2].Component = "analytics", "reports"
	group.Records[0].Symptoms = []string{"charge"}
	group.Records[1].Symptoms = []string{"missing"}
	group.Records[2].Symptoms = []string{"slow"}
	group.Records[0].Embedding = []float64{1, 0, 0}
	group.Records[1].Embedding = []float64{0, 1, 0}
	group.Records[2].Embedding = []float64{0, 0, 1}

	result := g.Evaluate(context.Background(), group)

	if result.Passed {
		t.Fatalf("expected low-confidence failure, score %.1f", result.Confidence.Total)
	}
	if result.FailureReason != model.FailureLowConfidence {
		t.Errorf("expected %q, got %q", model.FailureLowConfidence, result.FailureReason)
	}
}

func TestEvaluate_SingleRecordFailsSizeDespitePerfectScore(t *testing.T) {
	g := newGate(3, 50.0)

	result := g.Evaluate(context.Background(), coherentGroup(1))

	if result.Confidence.Total != 100 {
		t.Errorf("expected vacuous score 100, got %.1f", result.Confidence.Total)
	}
	if result.Passed || result.FailureReason != model.FailureTooSmall {
		t.Errorf("expected too_small failure, got passed=%v reason=%q", result.Passed, result.FailureReason)
	}
}

func TestEvaluate_ConfigurableMinSize(t *testing.T) {
	g := newGate(2, 50.0)

	result := g.Evaluate(context.Background(), coherentGroup(2))
	if !result.Passed {
		t.Errorf("expected pass with min_group_size=2, got reason %q", result.FailureReason)
	}
}
