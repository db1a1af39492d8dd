package checkout

import (
	"context"
	"sync"
	"time"
)

// Registry holds the active wizards. Wizard state is deliberately not
// persisted: closing a checkout discards it, matching the session-scoped
// lifecycle of the flow. Abandoned wizards are evicted after the idle TTL.
type Registry struct {
	mu      sync.Mutex
	entries map[string]*registryEntry
	ttl     time.Duration
}

type registryEntry struct {
	wizard   *Wizard
	lastSeen time.Time
}

// NewRegistry creates a Registry evicting wizards idle for longer than ttl.
func NewRegistry(ttl time.Duration) *Registry {
	return &Registry{
		entries: make(map[string]*registryEntry),
		ttl:     ttl,
	}
}

// Put registers a wizard.
func (r *Registry) Put(w *Wizard) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries[w.ID()] = &registryEntry{wizard: w, lastSeen: time.Now()}
}

// Get returns the wizard with the given id and refreshes its idle timer.
func (r *Registry) Get(id string) (*Wizard, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[id]
	if !ok {
		return nil, false
	}
	e.lastSeen = time.Now()
	return e.wizard, true
}

// Remove discards a wizard. Removing an unknown id is a no-op.
func (r *Registry) Remove(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.entries, id)
}

// Len returns the number of active wizards.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

// cleanup evicts wizards idle past the TTL.
func (r *Registry) cleanup(now time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, e := range r.entries {
		if now.Sub(e.lastSeen) >= r.ttl {
			delete(r.entries, id)
		}
	}
}

// StartCleanup launches a background goroutine that periodically evicts idle
// wizards. It stops when ctx is cancelled.
func (r *Registry) StartCleanup(ctx context.Context, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case now := <-ticker.C:
				r.cleanup(now)
			}
		}
	}()
}
