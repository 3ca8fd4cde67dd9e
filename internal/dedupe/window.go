// Package dedupe suppresses webhook re-deliveries of the same event within
// a sliding time window.
package dedupe

import (
	"sync"
	"time"

	"github.com/user/deckhand/internal/types"
)

// DefaultWindow is how long an event id stays on record.
const DefaultWindow = 5 * time.Minute

// Window is a thread-safe record of recently seen event ids. Expired entries
// are purged lazily on every lookup, so the map never grows past one window's
// worth of traffic and no background goroutine is needed.
type Window struct {
	mu     sync.Mutex
	seen   map[types.EventID]time.Time
	window time.Duration
}

// New creates a Window with the given TTL. A non-positive ttl falls back to
// DefaultWindow.
func New(ttl time.Duration) *Window {
	if ttl <= 0 {
		ttl = DefaultWindow
	}
	return &Window{
		seen:   make(map[types.EventID]time.Time),
		window: ttl,
	}
}

// SeenOrRecord purges expired entries, then atomically checks and records the
// event id. Returns true if the id was already seen within the window (the
// caller must drop the event), false if it is new and now recorded.
//
// An empty id is never treated as a duplicate: double-processing real input
// beats silently dropping it.
func (w *Window) SeenOrRecord(id types.EventID, now time.Time) bool {
	if id == "" {
		return false
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	for k, at := range w.seen {
		if now.Sub(at) > w.window {
			delete(w.seen, k)
		}
	}

	if at, ok := w.seen[id]; ok && now.Sub(at) <= w.window {
		return true
	}
	w.seen[id] = now
	return false
}

// Len returns the number of ids currently on record. Intended for tests.
func (w *Window) Len() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.seen)
}
