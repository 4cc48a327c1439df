// Package ledger holds the in-memory reservation ledger: every date slot
// and reservation for every experience. It is the only shared mutable
// state in the service. Mutations are serialized per experience so a
// check-and-reserve can never interleave with another writer on the same
// aggregate, while reads are lock-free against the last committed state.
package ledger

import (
	"sort"
	"sync"
	"sync/atomic"

	"github.com/tavolo-club/reservation-service/internal/domain"
)

type entry struct {
	// mu serializes mutations on this experience. The lock covers the
	// whole aggregate, not a single slot, because a dateless reserve has
	// to resolve the next available slot and append to it atomically.
	mu sync.Mutex

	// working is the mutable state, guarded by mu.
	working *domain.Experience

	// committed is the last state that persistence accepted. Readers
	// load it without locks; writers publish a fresh clone after a
	// successful commit. Never mutated in place.
	committed atomic.Pointer[domain.Experience]
}

// Ledger is the complete reservation state for all experiences
type Ledger struct {
	mu      sync.RWMutex
	entries map[string]*entry
}

// New creates an empty ledger
func New() *Ledger {
	return &Ledger{entries: make(map[string]*entry)}
}

// Seed replaces the ledger contents with the given experiences,
// typically the normalized result of a store load merged with the
// catalog. Not safe to call while requests are being served.
func (l *Ledger) Seed(exps []*domain.Experience) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.entries = make(map[string]*entry, len(exps))
	for _, exp := range exps {
		e := &entry{working: exp}
		e.committed.Store(exp.Clone())
		l.entries[exp.ID] = e
	}
}

// Get returns the last committed state of one experience. The returned
// value is shared and must be treated as read-only.
func (l *Ledger) Get(id string) (*domain.Experience, bool) {
	l.mu.RLock()
	e, ok := l.entries[id]
	l.mu.RUnlock()
	if !ok {
		return nil, false
	}
	return e.committed.Load(), true
}

// List returns the last committed state of every experience, ordered by
// id for deterministic output.
func (l *Ledger) List() []*domain.Experience {
	l.mu.RLock()
	out := make([]*domain.Experience, 0, len(l.entries))
	for _, e := range l.entries {
		out = append(out, e.committed.Load())
	}
	l.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Len returns the number of experiences
func (l *Ledger) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.entries)
}

// Update runs a validate-then-commit mutation against one experience.
//
// mutate receives the working state under the experience lock; it must
// either return an error without side effects or apply the full
// mutation. commit receives a snapshot of the whole ledger (the mutated
// experience plus the committed state of every other) and persists it.
// If commit fails the working state is rolled back, so the in-memory
// ledger never diverges from storage.
func (l *Ledger) Update(id string, mutate func(*domain.Experience) error, commit func([]*domain.Experience) error) error {
	l.mu.RLock()
	e, ok := l.entries[id]
	l.mu.RUnlock()
	if !ok {
		return domain.ErrExperienceNotFound
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	backup := e.working.Clone()
	if err := mutate(e.working); err != nil {
		e.working = backup
		return err
	}

	next := e.working.Clone()
	if commit != nil {
		if err := commit(l.snapshotWith(id, next)); err != nil {
			e.working = backup
			return err
		}
	}

	e.committed.Store(next)
	return nil
}

// snapshotWith assembles a persistable view: the pending clone for the
// experience being mutated, committed state for everything else. Only
// committed pointers are read, so no other entry lock is needed and two
// concurrent updates cannot deadlock.
func (l *Ledger) snapshotWith(id string, pending *domain.Experience) []*domain.Experience {
	l.mu.RLock()
	out := make([]*domain.Experience, 0, len(l.entries))
	for key, e := range l.entries {
		if key == id {
			out = append(out, pending)
			continue
		}
		out = append(out, e.committed.Load())
	}
	l.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
