package gate

import (
	"context"

	"github.com/paulyokota/feedforward/internal/model"
	"github.com/paulyokota/feedforward/internal/score"
	"github.com/paulyokota/feedforward/internal/validate"
)

// QualityGate composes the minimum-size check, evidence validation, and
// confidence scoring into one pass/fail decision per candidate group.
// It is a pure decision function: acting on the result is the
// orchestrator's job.
type QualityGate struct {
	minGroupSize        int
	confidenceThreshold float64
	validator           *validate.EvidenceValidator
	scorer              *score.Scorer
}

// New creates a quality gate with the given thresholds.
func New(minGroupSize int, confidenceThreshold float64, validator *validate.EvidenceValidator, scorer *score.Scorer) *QualityGate {
	return &QualityGate{
		minGroupSize:        minGroupSize,
		confidenceThreshold: confidenceThreshold,
		validator:           validator,
		scorer:              scorer,
	}
}

// Evaluate runs all three checks and reports the result. Checks run in
// fixed order (size, evidence, confidence) and the failure reason is the
// first check that failed, so repeated runs log deterministically. All
// sub-results are computed even after a failure: the result doubles as
// the run's diagnostic record.
func (g *QualityGate) Evaluate(ctx context.Context, group model.CandidateGroup) model.QualityGateResult {
	return g.EvaluateScored(group, g.scorer.Score(ctx, group))
}

// EvaluateScored is Evaluate with a precomputed confidence score, for
// callers that already scored the group while ordering the batch.
func (g *QualityGate) EvaluateScored(group model.CandidateGroup, confidence model.ConfidenceScore) model.QualityGateResult {
	result := model.QualityGateResult{
		Signature:  group.Signature,
		Evidence:   g.validator.Validate(group),
		Confidence: confidence,
	}

	switch {
	case group.Size() < g.minGroupSize:
		result.FailureReason = model.FailureTooSmall
	case !result.Evidence.IsValid:
		result.FailureReason = model.FailureInvalidEvidence
	case confidence.Total < g.confidenceThreshold:
		result.FailureReason = model.FailureLowConfidence
	default:
		result.Passed = true
	}
	return result
}
