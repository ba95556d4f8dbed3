package ensemble

import (
	"fmt"

	"github.com/google/uuid"
)

// History retains ensemble snapshots in commit order until they are pruned.
// It is not safe for concurrent use.
type History struct {
	snapshots []*Ensemble
	byID      map[uuid.UUID]*Ensemble
}

// NewHistory creates an empty History.
func NewHistory() *History {
	return &History{byID: make(map[uuid.UUID]*Ensemble)}
}

// Commit appends e and makes it the head.
func (h *History) Commit(e *Ensemble) error {
	if _, ok := h.byID[e.ID]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateSnapshot, e.ID)
	}
	h.snapshots = append(h.snapshots, e)
	h.byID[e.ID] = e
	return nil
}

// Head returns the most recently committed snapshot, or nil.
func (h *History) Head() *Ensemble {
	if len(h.snapshots) == 0 {
		return nil
	}
	return h.snapshots[len(h.snapshots)-1]
}

// Lookup returns the snapshot with the given ID.
func (h *History) Lookup(id uuid.UUID) (*Ensemble, bool) {
	e, ok := h.byID[id]
	return e, ok
}

// Len returns the number of retained snapshots.
func (h *History) Len() int { return len(h.snapshots) }

// Versions returns the retained snapshots, oldest first.
func (h *History) Versions() []*Ensemble {
	return append([]*Ensemble(nil), h.snapshots...)
}

// Lineage follows parent links from id back to the oldest retained ancestor.
// The result starts with the snapshot for id.
func (h *History) Lineage(id uuid.UUID) []*Ensemble {
	var out []*Ensemble
	for e, ok := h.byID[id]; ok; e, ok = h.byID[e.Parent] {
		out = append(out, e)
		if e.Parent == uuid.Nil {
			break
		}
	}
	return out
}

// Prune drops all but the newest keep snapshots and returns how many were removed.
// The head is always kept.
func (h *History) Prune(keep int) int {
	keep = max(keep, 1)
	if len(h.snapshots) <= keep {
		return 0
	}
	drop := len(h.snapshots) - keep
	for _, e := range h.snapshots[:drop] {
		delete(h.byID, e.ID)
	}
	h.snapshots = append([]*Ensemble(nil), h.snapshots[drop:]...)
	return drop
}
