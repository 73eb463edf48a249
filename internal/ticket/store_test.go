package ticket

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/paulyokota/feedforward/internal/model"
)

func sampleGroup() model.CandidateGroup {
	return model.CandidateGroup{
		Signature: "billing_cancellation_requests",
		Records: []model.ThemeRecord{
			{ConversationID: "c1", IssueSignature: "billing_cancellation_requests", ProductArea: "billing", Component: "subscription"},
			{ConversationID: "c2", IssueSignature: "billing_cancellation_requests", ProductArea: "billing", Component: "subscription"},
			{ConversationID: "c3", IssueSignature: "billing_cancellation_requests", ProductArea: "billing", Component: "subscription"},
		},
	}
}

func TestNew_BuildsTicketFromGroup(t *testing.T) {
	group := sampleGroup()
	tk := New("billing_cancellation_requests", group, false)

	if tk.ID == "" {
		t.Error("expected generated ticket ID")
	}
	if tk.Title != "billing cancellation requests" {
		t.Errorf("unexpected title %q", tk.Title)
	}
	if tk.Count != 3 || len(tk.ConversationIDs) != 3 {
		t.Errorf("expected 3 conversations, got count=%d ids=%d", tk.Count, len(tk.ConversationIDs))
	}
	if tk.ProductArea != "billing" || tk.Component != "subscription" {
		t.Errorf("expected categorical tags copied from records, got %q/%q", tk.ProductArea, tk.Component)
	}
}

// runStoreContract exercises the upsert semantics every Store must hold.
func runStoreContract(t *testing.T, store Store) {
	t.Helper()
	ctx := context.Background()

	found, err := store.FindByCanonicalSignature(ctx, "billing_cancellation_requests")
	if err != nil {
		t.Fatalf("find on empty store: %v", err)
	}
	if found != nil {
		t.Fatal("expected nil ticket on empty store")
	}

	created := New("billing_cancellation_requests", sampleGroup(), false)
	if err := store.Create(ctx, created); err != nil {
		t.Fatalf("create: %v", err)
	}

	found, err = store.FindByCanonicalSignature(ctx, "billing_cancellation_requests")
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if found == nil || found.ID != created.ID {
		t.Fatalf("expected ticket %s, got %+v", created.ID, found)
	}

	// Merging an overlapping delta must deduplicate by conversation ID.
	updated, err := store.Update(ctx, created.ID, model.EvidenceDelta{
		ConversationIDs: []string{"c2", "c3", "c4"},
		PoorEvidence:    true,
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.Count != 4 {
		t.Errorf("expected 4 unique conversations after merge, got %d", updated.Count)
	}
	if !updated.PoorEvidence {
		t.Error("expected poor evidence flag to stick")
	}
	if !updated.LastUpdatedAt.After(created.CreatedAt) && !updated.LastUpdatedAt.Equal(created.CreatedAt) {
		t.Error("expected last_updated_at to be refreshed")
	}

	// Re-applying the same delta is a no-op on count.
	again, err := store.Update(ctx, created.ID, model.EvidenceDelta{ConversationIDs: []string{"c2", "c3", "c4"}})
	if err != nil {
		t.Fatalf("repeat update: %v", err)
	}
	if again.Count != 4 {
		t.Errorf("expected idempotent merge, got count %d", again.Count)
	}

	tickets, err := store.List(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(tickets) != 1 {
		t.Errorf("expected exactly one ticket, got %d", len(tickets))
	}
}

func TestMemoryStore_Contract(t *testing.T) {
	runStoreContract(t, NewMemoryStore())
}

func TestSQLiteStore_Contract(t *testing.T) {
	store, err := OpenSQLite(filepath.Join(t.TempDir(), "tickets.db"))
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	defer func() { _ = store.Close() }()

	runStoreContract(t, store)
}

func TestSQLiteStore_SurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tickets.db")
	ctx := context.Background()

	store, err := OpenSQLite(path)
	if err != nil {
		t.Fatal(err)
	}
	created := New("oauth_token_refresh", sampleGroup(), false)
	if err := store.Create(ctx, created); err != nil {
		t.Fatal(err)
	}
	if err := store.Close(); err != nil {
		t.Fatal(err)
	}

	reopened, err := OpenSQLite(path)
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = reopened.Close() }()

	found, err := reopened.FindByCanonicalSignature(ctx, "oauth_token_refresh")
	if err != nil {
		t.Fatal(err)
	}
	if found == nil || found.Count != 3 {
		t.Errorf("expected persisted ticket with 3 conversations, got %+v", found)
	}
}
