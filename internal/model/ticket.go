package model

import "time"

// Ticket is a persisted, implementation-ready story keyed by its canonical
// signature. The same canonical signature never owns two tickets: the
// orchestrator looks up before creating (upsert semantics) so repeated
// runs over overlapping data stay idempotent.
type Ticket struct {
	ID                 string    `json:"id"`
	CanonicalSignature string    `json:"canonical_signature"`
	Title              string    `json:"title"`
	ProductArea        string    `json:"product_area,omitempty"`
	Component          string    `json:"component,omitempty"`
	ConversationIDs    []string  `json:"conversation_ids"`
	Count              int       `json:"count"`
	PoorEvidence       bool      `json:"poor_evidence"`
	CreatedAt          time.Time `json:"created_at"`
	LastUpdatedAt      time.Time `json:"last_updated_at"`
}

// EvidenceDelta is the increment applied to an existing ticket when a new
// group arrives under its canonical signature. Conversation IDs are
// deduplicated against the ticket's existing bundle on apply.
type EvidenceDelta struct {
	ConversationIDs []string `json:"conversation_ids"`
	PoorEvidence    bool     `json:"poor_evidence"`
}

// PoolState tracks an orphan pool through its lifecycle. Pools accumulate
// conversations across runs until they reach the minimum group size, then
// are promoted back into the quality-gating path.
type PoolState string

const (
	PoolAccumulating PoolState = "accumulating"
	PoolPromotable   PoolState = "promotable"
	PoolPromoted     PoolState = "promoted"
)

// OrphanPool holds conversations that failed the minimum-size gate under
// one signature. The full records are retained so a promoted pool can be
// re-gated without refetching evidence.
//
// Invariant: AccumulatedCount == len(ConversationIDs) at all times.
type OrphanPool struct {
	Signature        string        `json:"signature"`
	ConversationIDs  []string      `json:"conversation_ids"`
	Records          []ThemeRecord `json:"records"`
	AccumulatedCount int           `json:"accumulated_count"`
	CreatedAt        time.Time     `json:"created_at"`
	LastUpdatedAt    time.Time     `json:"last_updated_at"`
}

// State reports the pool's position in the accumulation state machine.
func (p *OrphanPool) State(minGroupSize int) PoolState {
	if p.AccumulatedCount >= minGroupSize {
		return PoolPromotable
	}
	return PoolAccumulating
}

// Group converts the pool back into a candidate group for re-gating.
// Promotion never bypasses the quality gate.
func (p *OrphanPool) Group() CandidateGroup {
	records := make([]ThemeRecord, len(p.Records))
	copy(records, p.Records)
	return CandidateGroup{Signature: p.Signature, Records: records}
}
