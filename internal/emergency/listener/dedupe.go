package listener

import (
	"sync"

	"trailguard/internal/emergency/models"
)

// dedupeWindowSize bounds how many recent event keys are remembered. The key
// is a heuristic tuple, not a ledger-assigned identity; two distinct
// emergencies in the same block could in principle collide. Strengthening it
// needs a canonical per-extrinsic id from the chain client, which the
// contract does not promise.
const dedupeWindowSize = 128

// dedupeWindow suppresses exact repeats of recently seen events.
type dedupeWindow struct {
	mu    sync.Mutex
	seen  map[models.DedupeKey]struct{}
	order []models.DedupeKey
	limit int
}

func newDedupeWindow() *dedupeWindow {
	return &dedupeWindow{
		seen:  make(map[models.DedupeKey]struct{}),
		limit: dedupeWindowSize,
	}
}

// Observe returns false when the key was already in the window, true when the
// event is new (and now remembered).
func (w *dedupeWindow) Observe(key models.DedupeKey) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	if _, dup := w.seen[key]; dup {
		return false
	}
	w.seen[key] = struct{}{}
	w.order = append(w.order, key)
	if len(w.order) > w.limit {
		oldest := w.order[0]
		w.order = w.order[1:]
		delete(w.seen, oldest)
	}
	return true
}
