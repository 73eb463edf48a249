package signature

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"sync"
)

// ErrCycle reports a signature equivalence cycle. Cycles mean the
// persisted state is corrupt, so callers must halt the run rather than
// keep mutating tickets on top of it.
var ErrCycle = errors.New("signature equivalence cycle")

var nonAlnum = regexp.MustCompile(`[^a-z0-9]+`)

// Normalize canonicalizes a signature string: lowercase, runs of
// whitespace and punctuation collapse to single underscores, leading and
// trailing underscores stripped. Idempotent.
func Normalize(sig string) string {
	s := strings.ToLower(strings.TrimSpace(sig))
	s = nonAlnum.ReplaceAllString(s, "_")
	return strings.Trim(s, "_")
}

// Registry tracks equivalences between extractor-produced signatures and
// their human-edited canonical forms, and reconciles aggregate counts
// across runs. The mapping is kept transitively closed on every write so
// lookups stay a single map access.
//
// State persists as one plain JSON document so external tooling can audit
// or correct it between runs.
type Registry struct {
	mu           sync.Mutex
	path         string
	equivalences map[string]string
}

type registryState struct {
	Equivalences map[string]string `json:"equivalences"`
}

// NewRegistry loads a registry from path, which may not exist yet. An
// empty path keeps the registry in memory only (used by tests).
func NewRegistry(path string) (*Registry, error) {
	r := &Registry{
		path:         path,
		equivalences: make(map[string]string),
	}
	if path == "" {
		return r, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return r, nil
		}
		return nil, fmt.Errorf("load registry: %w", err)
	}

	var state registryState
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("decode registry: %w", err)
	}
	for orig, canon := range state.Equivalences {
		r.equivalences[Normalize(orig)] = Normalize(canon)
	}
	return r, nil
}

// RegisterEquivalence records that original should resolve to canonical.
// Both sides are normalized. If canonical itself has an equivalence
// chain, the chain is resolved now so the stored value has no further
// mapping. Entries pointing at original are re-pointed for the same
// reason. State is saved before returning.
func (r *Registry) RegisterEquivalence(original, canonical string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	orig := Normalize(original)
	canon := Normalize(canonical)
	if orig == "" || canon == "" {
		return fmt.Errorf("register equivalence: empty signature (original=%q canonical=%q)", original, canonical)
	}

	if orig == canon {
		// A self-mapping undoes any previous rename of this signature.
		delete(r.equivalences, orig)
		return r.saveLocked()
	}

	resolved, err := r.resolveChain(canon, orig)
	if err != nil {
		return err
	}

	r.equivalences[orig] = resolved

	// Anything that used to resolve to orig would now be one hop away
	// from its terminal form; re-point it to keep lookups O(1).
	for from, to := range r.equivalences {
		if to == orig {
			r.equivalences[from] = resolved
		}
	}

	return r.saveLocked()
}

// resolveChain follows equivalences from sig until a terminal signature,
// failing if the walk reaches forbidden (which would close a cycle).
func (r *Registry) resolveChain(sig, forbidden string) (string, error) {
	seen := map[string]bool{}
	current := sig
	for {
		if current == forbidden {
			return "", fmt.Errorf("%w: %q -> %q", ErrCycle, forbidden, sig)
		}
		if seen[current] {
			return "", fmt.Errorf("%w: detected at %q", ErrCycle, current)
		}
		seen[current] = true

		next, ok := r.equivalences[current]
		if !ok {
			return current, nil
		}
		current = next
	}
}

// GetCanonical normalizes the signature and follows its equivalence
// entry, if any. The closure invariant makes a single lookup sufficient.
func (r *Registry) GetCanonical(sig string) string {
	r.mu.Lock()
	defer r.mu.Unlock()

	n := Normalize(sig)
	if canon, ok := r.equivalences[n]; ok {
		return canon
	}
	return n
}

// ReconcileCounts resolves every counted signature to its canonical form
// and sums counts per canonical signature. Signatures whose canonical
// form has no ticket in storyMapping are reported as orphans so renamed
// tickets can still be matched to extractor output. No count is ever
// lost or duplicated.
func (r *Registry) ReconcileCounts(counts map[string]int, storyMapping map[string]string) (map[string]int, []string) {
	stories := make(map[string]bool, len(storyMapping))
	for sig := range storyMapping {
		stories[Normalize(sig)] = true
	}

	reconciled := make(map[string]int, len(counts))
	var orphans []string
	for sig, count := range counts {
		canonical := r.GetCanonical(sig)
		reconciled[canonical] += count
		if !stories[canonical] {
			orphans = append(orphans, sig)
		}
	}
	sort.Strings(orphans)
	return reconciled, orphans
}

// Equivalences returns a copy of the mapping for export and auditing.
func (r *Registry) Equivalences() map[string]string {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make(map[string]string, len(r.equivalences))
	for k, v := range r.equivalences {
		out[k] = v
	}
	return out
}

// Save persists the current state. RegisterEquivalence already saves on
// every mutation; Save exists for callers that edit state in bulk.
func (r *Registry) Save() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.saveLocked()
}

func (r *Registry) saveLocked() error {
	if r.path == "" {
		return nil
	}

	data, err := json.MarshalIndent(registryState{Equivalences: r.equivalences}, "", "  ")
	if err != nil {
		return fmt.Errorf("encode registry: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(r.path), 0755); err != nil {
		return fmt.Errorf("create registry dir: %w", err)
	}
	if err := os.WriteFile(r.path, data, 0644); err != nil {
		return fmt.Errorf("write registry: %w", err)
	}
	return nil
}
