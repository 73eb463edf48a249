package model

import (
	"testing"
)

func TestGroupBySignature(t *testing.T) {
	records := []ThemeRecord{
		{ConversationID: "c1", IssueSignature: "billing_refund"},
		{ConversationID: "c2", IssueSignature: "pinterest_oauth"},
		{ConversationID: "c3", IssueSignature: "billing_refund"},
		{ConversationID: "c1", IssueSignature: "pinterest_oauth"}, // duplicate conversation
	}

	groups := GroupBySignature(records)
	if len(groups) != 2 {
		t.Fatalf("groups = %d, want 2", len(groups))
	}

	// Sorted by signature.
	if groups[0].Signature != "billing_refund" || groups[1].Signature != "pinterest_oauth" {
		t.Errorf("group order = %q, %q", groups[0].Signature, groups[1].Signature)
	}

	// c1 keeps its first record; the duplicate under pinterest_oauth is dropped.
	if groups[0].Size() != 2 {
		t.Errorf("billing_refund size = %d, want 2", groups[0].Size())
	}
	if groups[1].Size() != 1 {
		t.Errorf("pinterest_oauth size = %d, want 1: duplicate conversation must not land twice", groups[1].Size())
	}
}

func TestParseRecordsRejectsMalformedEntries(t *testing.T) {
	data := []byte(`[
		{"conversation_id": "c1", "issue_signature": "billing_refund"},
		{"conversation_id": "", "issue_signature": "billing_refund"},
		{"conversation_id": "c3", "issue_signature": ""}
	]`)

	records, rejects := ParseRecords(data)
	if len(records) != 1 {
		t.Errorf("records = %d, want 1", len(records))
	}
	if len(rejects) != 2 {
		t.Errorf("rejects = %d, want 2", len(rejects))
	}
}

func TestParseRecordsInvalidJSON(t *testing.T) {
	records, rejects := ParseRecords([]byte("not json"))
	if records != nil {
		t.Errorf("records = %v, want nil", records)
	}
	if len(rejects) != 1 {
		t.Errorf("rejects = %d, want 1", len(rejects))
	}
}

func TestSymptomSetNormalizes(t *testing.T) {
	r := ThemeRecord{Symptoms: []string{" OAuth_Error ", "oauth_error", "", "timeout"}}
	set := r.SymptomSet()
	if len(set) != 2 {
		t.Errorf("set = %v, want 2 entries", set)
	}
	if !set["oauth_error"] || !set["timeout"] {
		t.Errorf("set = %v, missing normalized symptoms", set)
	}
}

func TestOrphanPoolState(t *testing.T) {
	pool := OrphanPool{AccumulatedCount: 2}
	if got := pool.State(3); got != PoolAccumulating {
		t.Errorf("State(3) = %s, want accumulating", got)
	}
	pool.AccumulatedCount = 3
	if got := pool.State(3); got != PoolPromotable {
		t.Errorf("State(3) = %s, want promotable", got)
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"defaults", func(*Config) {}, false},
		{"zero group size", func(c *Config) { c.Grouping.MinGroupSize = 0 }, true},
		{"threshold above 100", func(c *Config) { c.Grouping.ConfidenceThreshold = 101 }, true},
		{"auto-reject above confidence", func(c *Config) { c.Grouping.AutoRejectThreshold = 60 }, true},
		{"no workers", func(c *Config) { c.Concurrency.ScoringWorkers = 0 }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr && err == nil {
				t.Error("expected error, got nil")
			}
			if !tt.wantErr && err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		})
	}
}
