package orphan

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/paulyokota/feedforward/internal/model"
)

// ErrDoubleMembership reports a conversation found in two orphan pools.
// The accumulator never repairs this itself: a conversation moving to a
// new sub-signature must be removed from its old pool by the caller
// first, so double membership means silent data corruption and the run
// must halt.
var ErrDoubleMembership = errors.New("conversation already held by another orphan pool")

// nowFunc is injectable for tests.
var nowFunc = time.Now

// Accumulator persists groups that failed the minimum-size gate and
// merges newly arriving conversations into them across runs. Pools are
// append-only while accumulating; crossing the size threshold removes
// the pool and hands its records back to quality gating.
//
// State persists as one plain JSON document keyed by signature so
// external tooling can inspect or correct it between runs.
type Accumulator struct {
	mu    sync.Mutex
	path  string
	pools map[string]*model.OrphanPool
	owner map[string]string // conversation ID -> owning signature
}

type accumulatorState struct {
	Pools map[string]*model.OrphanPool `json:"pools"`
}

// NewAccumulator loads the pool store from path, which may not exist
// yet. An empty path keeps state in memory only (used by tests).
func NewAccumulator(path string) (*Accumulator, error) {
	a := &Accumulator{
		path:  path,
		pools: make(map[string]*model.OrphanPool),
		owner: make(map[string]string),
	}
	if path == "" {
		return a, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return a, nil
		}
		return nil, fmt.Errorf("load orphan pools: %w", err)
	}

	var state accumulatorState
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("decode orphan pools: %w", err)
	}
	for sig, pool := range state.Pools {
		a.pools[sig] = pool
		for _, id := range pool.ConversationIDs {
			if prev, taken := a.owner[id]; taken {
				return nil, fmt.Errorf("%w: %s in pools %q and %q (persisted state corrupt)", ErrDoubleMembership, id, prev, sig)
			}
			a.owner[id] = sig
		}
	}
	return a, nil
}

// Add appends records to the pool for signature, creating it on first
// use. Conversations already held by the same pool are skipped; a
// conversation held by a different pool fails the whole call with
// ErrDoubleMembership. Pool counts only grow here.
func (a *Accumulator) Add(sig string, records []model.ThemeRecord) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	for _, r := range records {
		if owner, taken := a.owner[r.ConversationID]; taken && owner != sig {
			return fmt.Errorf("%w: %s already in pool %q, cannot add to %q",
				ErrDoubleMembership, r.ConversationID, owner, sig)
		}
	}

	now := nowFunc().UTC()
	pool, ok := a.pools[sig]
	if !ok {
		pool = &model.OrphanPool{
			Signature: sig,
			CreatedAt: now,
		}
		a.pools[sig] = pool
	}

	for _, r := range records {
		if a.owner[r.ConversationID] == sig {
			continue
		}
		pool.ConversationIDs = append(pool.ConversationIDs, r.ConversationID)
		pool.Records = append(pool.Records, r)
		a.owner[r.ConversationID] = sig
	}
	pool.AccumulatedCount = len(pool.ConversationIDs)
	pool.LastUpdatedAt = now

	return a.saveLocked()
}

// PromoteReady removes every pool at or above minGroupSize and returns
// them, sorted by signature, as candidates for re-gating. Promotion
// never bypasses the quality gate; a pool whose re-gate fails is simply
// Add-ed back and keeps accumulating.
func (a *Accumulator) PromoteReady(minGroupSize int) ([]model.OrphanPool, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	var promoted []model.OrphanPool
	for sig, pool := range a.pools {
		if pool.AccumulatedCount < minGroupSize {
			continue
		}
		promoted = append(promoted, *pool)
		delete(a.pools, sig)
		for _, id := range pool.ConversationIDs {
			delete(a.owner, id)
		}
	}
	sort.Slice(promoted, func(i, j int) bool {
		return promoted[i].Signature < promoted[j].Signature
	})

	if len(promoted) == 0 {
		return nil, nil
	}
	if err := a.saveLocked(); err != nil {
		return nil, err
	}
	return promoted, nil
}

// Restore puts a promoted pool back after a failed re-gate, keeping its
// original creation time so pool age still reflects when the theme first
// appeared. A conversation held by another pool in the meantime fails
// with ErrDoubleMembership.
func (a *Accumulator) Restore(pool model.OrphanPool) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	for _, id := range pool.ConversationIDs {
		if owner, taken := a.owner[id]; taken && owner != pool.Signature {
			return fmt.Errorf("%w: %s already in pool %q, cannot restore %q",
				ErrDoubleMembership, id, owner, pool.Signature)
		}
	}

	existing, ok := a.pools[pool.Signature]
	if !ok {
		restored := pool
		restored.ConversationIDs = append([]string(nil), pool.ConversationIDs...)
		restored.Records = append([]model.ThemeRecord(nil), pool.Records...)
		restored.AccumulatedCount = len(restored.ConversationIDs)
		restored.LastUpdatedAt = nowFunc().UTC()
		a.pools[pool.Signature] = &restored
		for _, id := range restored.ConversationIDs {
			a.owner[id] = pool.Signature
		}
		return a.saveLocked()
	}

	// Same signature re-pooled since promotion. Merge, keeping the
	// earlier creation time.
	for i, id := range pool.ConversationIDs {
		if _, taken := a.owner[id]; taken {
			continue
		}
		existing.ConversationIDs = append(existing.ConversationIDs, id)
		existing.Records = append(existing.Records, pool.Records[i])
		a.owner[id] = pool.Signature
	}
	if pool.CreatedAt.Before(existing.CreatedAt) {
		existing.CreatedAt = pool.CreatedAt
	}
	existing.AccumulatedCount = len(existing.ConversationIDs)
	existing.LastUpdatedAt = nowFunc().UTC()
	return a.saveLocked()
}

// Remove takes conversations out of a pool. This is the explicit
// transactional step the orchestrator performs before re-adding a
// conversation under a new sub-signature. Empty pools are dropped.
func (a *Accumulator) Remove(sig string, conversationIDs []string) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	pool, ok := a.pools[sig]
	if !ok {
		return fmt.Errorf("remove from pool %q: no such pool", sig)
	}

	drop := make(map[string]bool, len(conversationIDs))
	for _, id := range conversationIDs {
		drop[id] = true
	}

	var keptIDs []string
	var keptRecords []model.ThemeRecord
	for i, id := range pool.ConversationIDs {
		if drop[id] {
			delete(a.owner, id)
			continue
		}
		keptIDs = append(keptIDs, id)
		keptRecords = append(keptRecords, pool.Records[i])
	}

	if len(keptIDs) == 0 {
		delete(a.pools, sig)
	} else {
		pool.ConversationIDs = keptIDs
		pool.Records = keptRecords
		pool.AccumulatedCount = len(keptIDs)
		pool.LastUpdatedAt = nowFunc().UTC()
	}

	return a.saveLocked()
}

// Owner reports which pool, if any, currently holds the conversation.
// The orchestrator consults this before Add so a conversation whose
// signature drifted between runs is moved rather than duplicated.
func (a *Accumulator) Owner(conversationID string) (string, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	sig, ok := a.owner[conversationID]
	return sig, ok
}

// Pool returns a copy of the pool for signature, if present.
func (a *Accumulator) Pool(sig string) (model.OrphanPool, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()

	pool, ok := a.pools[sig]
	if !ok {
		return model.OrphanPool{}, false
	}
	return *pool, true
}

// Pools returns copies of all pools sorted by signature, for inspection
// and export.
func (a *Accumulator) Pools() []model.OrphanPool {
	a.mu.Lock()
	defer a.mu.Unlock()

	out := make([]model.OrphanPool, 0, len(a.pools))
	for _, pool := range a.pools {
		out = append(out, *pool)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Signature < out[j].Signature
	})
	return out
}

func (a *Accumulator) saveLocked() error {
	if a.path == "" {
		return nil
	}

	data, err := json.MarshalIndent(accumulatorState{Pools: a.pools}, "", "  ")
	if err != nil {
		return fmt.Errorf("encode orphan pools: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(a.path), 0755); err != nil {
		return fmt.Errorf("create orphan store dir: %w", err)
	}
	if err := os.WriteFile(a.path, data, 0644); err != nil {
		return fmt.Errorf("write orphan pools: %w", err)
	}
	return nil
}
