// Package session provides read/clear access to the persisted session
// identity: the cart and customer identifiers a storefront session carries.
package session

import (
	"context"
	"sync"
)

// Identity is the persisted local state of a storefront session. Either field
// may be empty for a session that has not added to cart or logged in yet;
// that is an expected state, not an error.
type Identity struct {
	CartID     string `json:"cartId"`
	CustomerID string `json:"customerId"`
}

// Store persists session identities keyed by session token.
//
// ClearCartID is the only mutation checkout performs: it removes the cart
// identifier after an order reaches confirmation, leaving the customer
// identifier intact.
type Store interface {
	Get(ctx context.Context, token string) (Identity, error)
	Put(ctx context.Context, token string, id Identity) error
	ClearCartID(ctx context.Context, token string) error
}

// MemoryStore is an in-process Store used in tests and single-node dev
// setups. Production deployments use the Redis-backed store.
type MemoryStore struct {
	mu         sync.RWMutex
	identities map[string]Identity
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{identities: make(map[string]Identity)}
}

// Get returns the identity for token. A missing token yields a zero Identity
// and no error.
func (s *MemoryStore) Get(_ context.Context, token string) (Identity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.identities[token], nil
}

// Put stores the identity for token.
func (s *MemoryStore) Put(_ context.Context, token string, id Identity) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.identities[token] = id
	return nil
}

// ClearCartID removes the cart identifier for token, keeping the customer
// identifier.
func (s *MemoryStore) ClearCartID(_ context.Context, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.identities[token]
	if !ok {
		return nil
	}
	id.CartID = ""
	s.identities[token] = id
	return nil
}
