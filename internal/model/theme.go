package model

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// ThemeRecord is one conversation's extracted product theme.
// Records are produced by the extractor and never mutated by the
// grouping core; missing optional fields degrade scoring gracefully.
type ThemeRecord struct {
	ConversationID string    `json:"conversation_id"`
	IssueSignature string    `json:"issue_signature"`
	ProductArea    string    `json:"product_area,omitempty"`
	Component      string    `json:"component,omitempty"`
	UserIntent     string    `json:"user_intent,omitempty"`
	Symptoms       []string  `json:"symptoms,omitempty"`
	Embedding      []float64 `json:"embedding,omitempty"`

	// Evidence metadata. ConversationID and Excerpt are required for
	// ticket creation; Email and IntercomURL are recommended.
	Excerpt     string `json:"excerpt,omitempty"`
	Email       string `json:"email,omitempty"`
	IntercomURL string `json:"intercom_url,omitempty"`
	OrgID       string `json:"org_id,omitempty"`
	UserID      string `json:"user_id,omitempty"`
	ContactID   string `json:"contact_id,omitempty"`
}

// Validate checks the fields every record must carry to enter the pipeline.
// Evidence-quality rules are stricter and live in the validator; this is
// only the ingestion boundary.
func (r *ThemeRecord) Validate() error {
	if strings.TrimSpace(r.ConversationID) == "" {
		return fmt.Errorf("missing conversation_id")
	}
	if strings.TrimSpace(r.IssueSignature) == "" {
		return fmt.Errorf("missing issue_signature (conversation %s)", r.ConversationID)
	}
	return nil
}

// SymptomSet returns the record's symptoms as a set.
func (r *ThemeRecord) SymptomSet() map[string]bool {
	set := make(map[string]bool, len(r.Symptoms))
	for _, s := range r.Symptoms {
		s = strings.ToLower(strings.TrimSpace(s))
		if s != "" {
			set[s] = true
		}
	}
	return set
}

// CandidateGroup is an ordered list of theme records sharing one
// issue signature at grouping time.
type CandidateGroup struct {
	Signature string        `json:"signature"`
	Records   []ThemeRecord `json:"records"`
}

// Size returns the number of records in the group.
func (g *CandidateGroup) Size() int {
	return len(g.Records)
}

// ConversationIDs returns the group's conversation IDs in record order.
func (g *CandidateGroup) ConversationIDs() []string {
	ids := make([]string, 0, len(g.Records))
	for _, r := range g.Records {
		ids = append(ids, r.ConversationID)
	}
	return ids
}

// GroupBySignature partitions records into candidate groups keyed by their
// issue signature. Each conversation lands in exactly one group per run:
// a conversation ID seen twice keeps its first record and the duplicate is
// dropped. Groups come back sorted by signature so downstream ordering is
// reproducible.
func GroupBySignature(records []ThemeRecord) []CandidateGroup {
	bySig := make(map[string][]ThemeRecord)
	seen := make(map[string]bool)

	for _, r := range records {
		if seen[r.ConversationID] {
			continue
		}
		seen[r.ConversationID] = true
		bySig[r.IssueSignature] = append(bySig[r.IssueSignature], r)
	}

	groups := make([]CandidateGroup, 0, len(bySig))
	for sig, recs := range bySig {
		groups = append(groups, CandidateGroup{Signature: sig, Records: recs})
	}
	sort.Slice(groups, func(i, j int) bool {
		return groups[i].Signature < groups[j].Signature
	})
	return groups
}

// ParseRecords decodes a JSON array of theme records and rejects malformed
// entries at the boundary rather than letting them propagate. Rejected
// entries are reported alongside the valid ones.
func ParseRecords(data []byte) ([]ThemeRecord, []error) {
	var raw []ThemeRecord
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, []error{fmt.Errorf("decode records: %w", err)}
	}

	var records []ThemeRecord
	var rejects []error
	for i, r := range raw {
		if err := r.Validate(); err != nil {
			rejects = append(rejects, fmt.Errorf("record %d: %w", i, err))
			continue
		}
		records = append(records, r)
	}
	return records, rejects
}
