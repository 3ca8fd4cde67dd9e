// Package delivery routes outbound messages to the adapter for the
// conversation's platform.
package delivery

import (
	"context"
	"fmt"
	"sync"

	"github.com/user/deckhand/internal/types"
)

// Registry implements types.Responder by dispatching on the session key's
// platform prefix (e.g. "slack", "telegram").
type Registry struct {
	mu         sync.RWMutex
	responders map[string]types.Responder
}

// NewRegistry creates an empty delivery registry.
func NewRegistry() *Registry {
	return &Registry{
		responders: make(map[string]types.Responder),
	}
}

// Register adds a responder for the given platform.
func (r *Registry) Register(platform string, responder types.Responder) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.responders[platform] = responder
}

// Send dispatches to the responder registered for the reply's platform.
// Returns an error if no responder is registered.
func (r *Registry) Send(ctx context.Context, to types.Reply, text string) error {
	r.mu.RLock()
	responder, ok := r.responders[to.Key.Platform()]
	r.mu.RUnlock()

	if !ok {
		return fmt.Errorf("no responder for platform: %s", to.Key.Platform())
	}
	return responder.Send(ctx, to, text)
}
