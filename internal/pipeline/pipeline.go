// Package pipeline orchestrates a theme-grouping run: promote ready
// orphan pools, score and gate candidate groups, upsert tickets, and
// route gate failures back into the orphan accumulator.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/paulyokota/feedforward/internal/gate"
	"github.com/paulyokota/feedforward/internal/model"
	"github.com/paulyokota/feedforward/internal/notify"
	"github.com/paulyokota/feedforward/internal/orphan"
	"github.com/paulyokota/feedforward/internal/score"
	"github.com/paulyokota/feedforward/internal/signature"
	"github.com/paulyokota/feedforward/internal/ticket"
	"github.com/paulyokota/feedforward/internal/worker"
)

// Orchestrator wires the scorer, gate, registry, accumulator, and ticket
// store into one run loop. All collaborators are injected so tests run
// against in-memory stores and fake embedders.
type Orchestrator struct {
	config      *model.Config
	scorer      *score.Scorer
	gate        *gate.QualityGate
	registry    *signature.Registry
	accumulator *orphan.Accumulator
	tickets     ticket.Store
	notifier    notify.Notifier
}

// New creates an orchestrator. notifier may be nil; notifications are
// then dropped.
func New(cfg *model.Config, scorer *score.Scorer, g *gate.QualityGate, registry *signature.Registry, accumulator *orphan.Accumulator, tickets ticket.Store, notifier notify.Notifier) *Orchestrator {
	if notifier == nil {
		notifier = notify.NopNotifier{}
	}
	return &Orchestrator{
		config:      cfg,
		scorer:      scorer,
		gate:        g,
		registry:    registry,
		accumulator: accumulator,
		tickets:     tickets,
		notifier:    notifier,
	}
}

// Run processes one batch of theme records. Gate failures and orphaning
// are expected outcomes recorded in the result; a returned error means
// the run hit corrupt state (a registry cycle, a conversation claimed by
// two pools) and was halted.
func (o *Orchestrator) Run(ctx context.Context, records []model.ThemeRecord) (*model.ProcessingResult, error) {
	result := &model.ProcessingResult{}

	// Signatures normalize into a copy; the caller's records stay
	// untouched.
	batch := make([]model.ThemeRecord, len(records))
	copy(batch, records)
	for i := range batch {
		batch[i].IssueSignature = signature.Normalize(batch[i].IssueSignature)
	}
	if err := ctx.Err(); err != nil {
		for _, g := range model.GroupBySignature(batch) {
			o.recordCancelledGroup(result, g)
		}
		return result, err
	}

	// Pools that crossed the size threshold in earlier runs re-enter
	// the gating path alongside this batch.
	promoted, err := o.accumulator.PromoteReady(o.config.Grouping.MinGroupSize)
	if err != nil {
		return result, fmt.Errorf("promote orphan pools: %w", err)
	}

	groups := mergeGroups(model.GroupBySignature(batch), promoted)
	scored := o.scoreAll(ctx, groups)

	// A cancelled scoring pool drops jobs. Account for every dropped
	// group explicitly; conversations are never silently lost.
	if len(scored) < len(groups) {
		scoredSigs := make(map[string]bool, len(scored))
		for _, sg := range scored {
			scoredSigs[sg.group.Signature] = true
		}
		for _, g := range groups {
			if !scoredSigs[g.Signature] {
				o.recordCancelledGroup(result, g)
			}
		}
	}

	for i, sg := range scored {
		if ctx.Err() != nil {
			o.recordCancelled(result, scored[i:])
			return result, ctx.Err()
		}
		if err := o.processGroup(ctx, sg.group, sg.confidence, result); err != nil {
			return result, err
		}
	}

	// Orphan adds during this run may have pushed a pool over the
	// threshold. One promotion pass resolves those in the same run;
	// pools whose re-gate fails go back to accumulating.
	if err := o.promoteEndOfRun(ctx, result); err != nil {
		return result, err
	}

	return result, nil
}

type scoredGroup struct {
	group      model.CandidateGroup
	confidence model.ConfidenceScore
}

type scoreJob struct {
	scorer *score.Scorer
	group  model.CandidateGroup
}

func (j scoreJob) Execute(ctx context.Context) worker.Result {
	return scoredGroup{group: j.group, confidence: j.scorer.Score(ctx, j.group)}
}

// GetError implements worker.Result. Scoring never errors; missing
// signals degrade to their neutral midpoint instead.
func (scoredGroup) GetError() error { return nil }

// scoreAll scores groups concurrently, then orders them so a run over
// the same data always processes groups identically: confidence
// descending, then size descending, then signature.
func (o *Orchestrator) scoreAll(ctx context.Context, groups []model.CandidateGroup) []scoredGroup {
	pool := worker.NewPool(ctx, o.config.Concurrency.ScoringWorkers)
	pool.Start()
	for _, g := range groups {
		pool.Submit(scoreJob{scorer: o.scorer, group: g})
	}

	scored := make([]scoredGroup, 0, len(groups))
	for _, r := range pool.Wait() {
		scored = append(scored, r.(scoredGroup))
	}

	sort.Slice(scored, func(i, j int) bool {
		if scored[i].confidence.Total != scored[j].confidence.Total {
			return scored[i].confidence.Total > scored[j].confidence.Total
		}
		if scored[i].group.Size() != scored[j].group.Size() {
			return scored[i].group.Size() > scored[j].group.Size()
		}
		return scored[i].group.Signature < scored[j].group.Signature
	})
	return scored
}

func (o *Orchestrator) processGroup(ctx context.Context, group model.CandidateGroup, confidence model.ConfidenceScore, result *model.ProcessingResult) error {
	// The catch-all bucket holds the extractor's "could not classify"
	// leftovers. An incoherent catch-all group carries no signal worth
	// accumulating, so it is the one place auto-reject applies.
	if group.Signature == o.config.Grouping.CatchAllSignature &&
		confidence.Total < o.config.Grouping.AutoRejectThreshold {
		result.Rejected += group.Size()
		result.Outcomes = append(result.Outcomes, model.GroupOutcome{
			Signature:     group.Signature,
			Action:        model.ActionRejected,
			Reason:        model.FailureLowConfidence,
			Conversations: group.Size(),
			Confidence:    confidence.Total,
		})
		return nil
	}

	gated := o.gate.EvaluateScored(group, confidence)
	if !gated.Passed {
		return o.orphanGroup(group, gated, result)
	}
	return o.upsertTicket(ctx, group, gated, result)
}

// upsertTicket creates or updates the ticket owned by the group's
// canonical signature. Store failures are recorded per conversation and
// never halt the run.
func (o *Orchestrator) upsertTicket(ctx context.Context, group model.CandidateGroup, gated model.QualityGateResult, result *model.ProcessingResult) error {
	canonical := o.registry.GetCanonical(group.Signature)
	poorEvidence := len(gated.Evidence.Warnings) > 0

	existing, err := o.tickets.FindByCanonicalSignature(ctx, canonical)
	if err != nil {
		o.recordStoreError(result, group, "ticket_lookup", err)
		return nil
	}

	outcome := model.GroupOutcome{
		Signature:     group.Signature,
		Canonical:     canonical,
		Conversations: group.Size(),
		Confidence:    gated.Confidence.Total,
	}

	var t *model.Ticket
	if existing != nil {
		t, err = o.tickets.Update(ctx, existing.ID, model.EvidenceDelta{
			ConversationIDs: group.ConversationIDs(),
			PoorEvidence:    poorEvidence,
		})
		if err != nil {
			o.recordStoreError(result, group, "ticket_update", err)
			return nil
		}
		result.Updated++
		outcome.Action = model.ActionUpdated
	} else {
		t = ticket.New(canonical, group, poorEvidence)
		if err := o.tickets.Create(ctx, t); err != nil {
			o.recordStoreError(result, group, "ticket_create", err)
			return nil
		}
		result.Created++
		outcome.Action = model.ActionCreated
	}
	outcome.TicketID = t.ID
	result.Outcomes = append(result.Outcomes, outcome)

	// Review flags are best-effort. A failed Slack post never fails
	// a ticket that was already written.
	if gated.Confidence.Total < o.config.Grouping.ScrutinyThreshold {
		_ = o.notifier.LowConfidence(t, gated.Confidence.Total)
	}
	if poorEvidence {
		_ = o.notifier.PoorEvidence(t, gated.Evidence.Warnings)
	}
	return nil
}

// orphanGroup routes a failed group into the accumulator. A conversation
// already pooled under a different signature was re-signed by the
// extractor since it was orphaned, so it moves: removal from the old
// pool first, then the Add claims it here. Double membership surviving
// that is corrupt persisted state and halts the run.
func (o *Orchestrator) orphanGroup(group model.CandidateGroup, gated model.QualityGateResult, result *model.ProcessingResult) error {
	for _, r := range group.Records {
		owner, held := o.accumulator.Owner(r.ConversationID)
		if !held || owner == group.Signature {
			continue
		}
		if err := o.accumulator.Remove(owner, []string{r.ConversationID}); err != nil {
			o.recordStoreError(result, group, "orphan_move", err)
			return nil
		}
	}
	if err := o.accumulator.Add(group.Signature, group.Records); err != nil {
		if errors.Is(err, orphan.ErrDoubleMembership) {
			return fmt.Errorf("orphan pool conflict for %q: %w", group.Signature, err)
		}
		o.recordStoreError(result, group, "orphan_add", err)
		return nil
	}
	result.Orphaned += group.Size()
	result.Outcomes = append(result.Outcomes, model.GroupOutcome{
		Signature:     group.Signature,
		Action:        model.ActionOrphaned,
		Reason:        gated.FailureReason,
		Conversations: group.Size(),
		Confidence:    gated.Confidence.Total,
	})
	return nil
}

func (o *Orchestrator) promoteEndOfRun(ctx context.Context, result *model.ProcessingResult) error {
	promoted, err := o.accumulator.PromoteReady(o.config.Grouping.MinGroupSize)
	if err != nil {
		return fmt.Errorf("promote orphan pools: %w", err)
	}

	for _, pool := range promoted {
		group := pool.Group()
		gated := o.gate.Evaluate(ctx, group)
		if !gated.Passed {
			// The pool keeps accumulating; its size check already
			// passed, so this is an evidence or confidence failure
			// that more conversations may fix. Restore keeps the
			// pool's original creation time.
			if err := o.accumulator.Restore(pool); err != nil {
				return fmt.Errorf("restore orphan pool %q: %w", group.Signature, err)
			}
			continue
		}
		// A promoted pool's conversations were counted as orphaned when
		// they entered the pool; resolving them into a ticket undoes
		// that within the same run.
		if counted := o.outcomeOrphanCount(result, group.Signature); counted > 0 {
			result.Orphaned -= counted
		}
		if err := o.upsertTicket(ctx, group, gated, result); err != nil {
			return err
		}
	}
	return nil
}

// outcomeOrphanCount returns how many conversations this run recorded as
// orphaned under sig, so promotion can reverse the count.
func (o *Orchestrator) outcomeOrphanCount(result *model.ProcessingResult, sig string) int {
	total := 0
	for _, out := range result.Outcomes {
		if out.Signature == sig && out.Action == model.ActionOrphaned {
			total += out.Conversations
		}
	}
	return total
}

func (o *Orchestrator) recordStoreError(result *model.ProcessingResult, group model.CandidateGroup, stage string, err error) {
	for _, id := range group.ConversationIDs() {
		result.Errors = append(result.Errors, model.ProcessingError{
			ConversationID: id,
			Signature:      group.Signature,
			Stage:          stage,
			Message:        err.Error(),
		})
	}
}

func (o *Orchestrator) recordCancelled(result *model.ProcessingResult, remaining []scoredGroup) {
	for _, sg := range remaining {
		o.recordCancelledGroup(result, sg.group)
	}
}

func (o *Orchestrator) recordCancelledGroup(result *model.ProcessingResult, group model.CandidateGroup) {
	for _, id := range group.ConversationIDs() {
		result.Errors = append(result.Errors, model.ProcessingError{
			ConversationID: id,
			Signature:      group.Signature,
			Stage:          "gate",
			Message:        "run cancelled",
		})
	}
}

// mergeGroups folds promoted orphan pools into the batch's candidate
// groups, deduplicating conversations that appear in both.
func mergeGroups(groups []model.CandidateGroup, promoted []model.OrphanPool) []model.CandidateGroup {
	if len(promoted) == 0 {
		return groups
	}

	bySig := make(map[string]int, len(groups))
	for i, g := range groups {
		bySig[g.Signature] = i
	}

	for _, pool := range promoted {
		idx, ok := bySig[pool.Signature]
		if !ok {
			groups = append(groups, pool.Group())
			bySig[pool.Signature] = len(groups) - 1
			continue
		}

		seen := make(map[string]bool, groups[idx].Size())
		for _, r := range groups[idx].Records {
			seen[r.ConversationID] = true
		}
		for _, r := range pool.Records {
			if !seen[r.ConversationID] {
				groups[idx].Records = append(groups[idx].Records, r)
			}
		}
	}

	sort.Slice(groups, func(i, j int) bool {
		return groups[i].Signature < groups[j].Signature
	})
	return groups
}
