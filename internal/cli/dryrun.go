package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/paulyokota/feedforward/internal/gate"
	"github.com/paulyokota/feedforward/internal/model"
	"github.com/paulyokota/feedforward/internal/score"
	"github.com/paulyokota/feedforward/internal/signature"
	"github.com/paulyokota/feedforward/internal/validate"
)

// executeDryRun scores and gates the batch without touching stories,
// orphan pools, or the registry. Useful for tuning thresholds against a
// real export.
func executeDryRun(ctx context.Context, cfg *model.Config, records []model.ThemeRecord) error {
	embedder, err := buildEmbedder(cfg)
	if err != nil {
		return err
	}
	scorer := score.NewScorer(embedder)
	g := gate.New(cfg.Grouping.MinGroupSize, cfg.Grouping.ConfidenceThreshold, validate.NewEvidenceValidator(), scorer)

	for i := range records {
		records[i].IssueSignature = signature.Normalize(records[i].IssueSignature)
	}

	passed, failed := 0, 0
	for _, group := range model.GroupBySignature(records) {
		result := g.Evaluate(ctx, group)
		if result.Passed {
			passed++
			fmt.Printf("✓ %s: %d conversations, confidence %.1f\n",
				group.Signature, group.Size(), result.Confidence.Total)
		} else {
			failed++
			fmt.Printf("✗ %s: %d conversations, confidence %.1f (%s)\n",
				group.Signature, group.Size(), result.Confidence.Total, result.FailureReason)
		}

		if verbose {
			for _, sig := range result.Confidence.Signals {
				fmt.Printf("    %-22s %.3f × %.2f  %s\n", sig.Type, sig.Value, sig.Weight, sig.Description)
			}
			for _, w := range result.Evidence.Warnings {
				fmt.Printf("    warning: %s\n", w)
			}
			for _, e := range result.Evidence.Errors {
				fmt.Printf("    error: %s\n", e)
			}
		}
	}

	fmt.Fprintf(os.Stderr, "\nDry run: %d groups would pass, %d would fail. Nothing was written.\n", passed, failed)
	return nil
}
