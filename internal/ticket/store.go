package ticket

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/paulyokota/feedforward/internal/model"
)

// Store persists tickets keyed by canonical signature. Implementations
// must make FindByCanonicalSignature/Create pairs safe to repeat: the
// orchestrator always looks up before creating, and a canonical
// signature never owns two tickets.
type Store interface {
	// FindByCanonicalSignature returns the ticket for sig, or nil when
	// no ticket exists under it.
	FindByCanonicalSignature(ctx context.Context, sig string) (*model.Ticket, error)

	// Create inserts a new ticket.
	Create(ctx context.Context, t *model.Ticket) error

	// Update merges an evidence delta into an existing ticket,
	// deduplicating conversation IDs, and returns the updated ticket.
	Update(ctx context.Context, id string, delta model.EvidenceDelta) (*model.Ticket, error)

	// List returns all tickets ordered by canonical signature.
	List(ctx context.Context) ([]model.Ticket, error)
}

// New builds a ticket from a gated candidate group. The title is derived
// from the canonical signature; evidence metadata comes from the group's
// records.
func New(canonical string, group model.CandidateGroup, poorEvidence bool) *model.Ticket {
	now := time.Now().UTC()
	t := &model.Ticket{
		ID:                 uuid.NewString(),
		CanonicalSignature: canonical,
		Title:              titleFor(canonical),
		ConversationIDs:    group.ConversationIDs(),
		Count:              group.Size(),
		PoorEvidence:       poorEvidence,
		CreatedAt:          now,
		LastUpdatedAt:      now,
	}
	if group.Size() > 0 {
		t.ProductArea = group.Records[0].ProductArea
		t.Component = group.Records[0].Component
	}
	return t
}

func titleFor(canonical string) string {
	return strings.ReplaceAll(canonical, "_", " ")
}

// mergeIDs appends the delta's conversation IDs that the ticket does not
// already hold, preserving order.
func mergeIDs(existing, incoming []string) []string {
	seen := make(map[string]bool, len(existing))
	for _, id := range existing {
		seen[id] = true
	}
	merged := existing
	for _, id := range incoming {
		if !seen[id] {
			seen[id] = true
			merged = append(merged, id)
		}
	}
	return merged
}

// MemoryStore is an in-memory Store used by tests and dry runs.
type MemoryStore struct {
	mu      sync.Mutex
	tickets map[string]*model.Ticket // keyed by ticket ID
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{tickets: make(map[string]*model.Ticket)}
}

// FindByCanonicalSignature implements Store.
func (s *MemoryStore) FindByCanonicalSignature(_ context.Context, sig string) (*model.Ticket, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, t := range s.tickets {
		if t.CanonicalSignature == sig {
			copied := *t
			return &copied, nil
		}
	}
	return nil, nil
}

// Create implements Store.
func (s *MemoryStore) Create(_ context.Context, t *model.Ticket) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	copied := *t
	s.tickets[t.ID] = &copied
	return nil
}

// Update implements Store.
func (s *MemoryStore) Update(_ context.Context, id string, delta model.EvidenceDelta) (*model.Ticket, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.tickets[id]
	if !ok {
		return nil, fmt.Errorf("update ticket %s: not found", id)
	}

	t.ConversationIDs = mergeIDs(t.ConversationIDs, delta.ConversationIDs)
	t.Count = len(t.ConversationIDs)
	if delta.PoorEvidence {
		t.PoorEvidence = true
	}
	t.LastUpdatedAt = time.Now().UTC()

	copied := *t
	return &copied, nil
}

// List implements Store.
func (s *MemoryStore) List(_ context.Context) ([]model.Ticket, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]model.Ticket, 0, len(s.tickets))
	for _, t := range s.tickets {
		out = append(out, *t)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CanonicalSignature < out[j].CanonicalSignature
	})
	return out, nil
}
