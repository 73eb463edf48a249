package model

// FailureReason identifies the first quality-gate check a group failed.
// Gate failure is an expected outcome, not an error: failed groups are
// routed to the orphan accumulator.
type FailureReason string

const (
	FailureTooSmall        FailureReason = "too_small"
	FailureInvalidEvidence FailureReason = "invalid_evidence"
	FailureLowConfidence   FailureReason = "low_confidence"
)

// EvidenceQuality is the evidence validator's verdict on a candidate group.
// Errors block ticket creation; warnings only flag the ticket as having
// poor evidence.
type EvidenceQuality struct {
	IsValid  bool               `json:"is_valid"`
	Errors   []string           `json:"errors,omitempty"`
	Warnings []string           `json:"warnings,omitempty"`
	Coverage map[string]float64 `json:"coverage,omitempty"` // field -> fraction of records carrying it
}

// QualityGateResult is the typed pass/fail decision for one candidate
// group in one run. All sub-checks are computed even when an early one
// fails so the result is useful for logging.
type QualityGateResult struct {
	Signature     string          `json:"signature"`
	Passed        bool            `json:"passed"`
	Evidence      EvidenceQuality `json:"evidence"`
	Confidence    ConfidenceScore `json:"confidence"`
	FailureReason FailureReason   `json:"failure_reason,omitempty"`
}

// GroupAction describes what the orchestrator did with a candidate group.
type GroupAction string

const (
	ActionCreated  GroupAction = "created"
	ActionUpdated  GroupAction = "updated"
	ActionOrphaned GroupAction = "orphaned"
	ActionRejected GroupAction = "rejected"
)

// GroupOutcome is the per-group audit trail of a pipeline run.
type GroupOutcome struct {
	Signature     string        `json:"signature"`
	Canonical     string        `json:"canonical,omitempty"`
	Action        GroupAction   `json:"action"`
	Reason        FailureReason `json:"reason,omitempty"`
	TicketID      string        `json:"ticket_id,omitempty"`
	Conversations int           `json:"conversations"`
	Confidence    float64       `json:"confidence"`
}

// ProcessingError records a conversation the pipeline could not claim,
// with enough context to replay it manually. Conversations are never
// silently dropped.
type ProcessingError struct {
	ConversationID string `json:"conversation_id"`
	Signature      string `json:"signature"`
	Stage          string `json:"stage"`
	Message        string `json:"message"`
}

// ProcessingResult is the single source of truth for what a pipeline run
// did. Created and Updated count tickets; Orphaned and Rejected count
// conversations. A run with zero errors and many orphans is a successful
// run, not a degraded one.
type ProcessingResult struct {
	Created  int               `json:"created"`
	Updated  int               `json:"updated"`
	Orphaned int               `json:"orphaned"`
	Rejected int               `json:"rejected"`
	Outcomes []GroupOutcome    `json:"outcomes,omitempty"`
	Errors   []ProcessingError `json:"errors,omitempty"`
}
