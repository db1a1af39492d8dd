// Package redisstore persists session identities in Redis.
package redisstore

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/redis/go-redis/v9"

	"github.com/unisouk/storefront-checkout/internal/session"
)

const (
	keyPrefix       = "session:"
	fieldCartID     = "cartId"
	fieldCustomerID = "customerId"
)

// Store keeps one Redis hash per session token with the cart and customer
// identifier fields. Implements session.Store.
type Store struct {
	client *redis.Client
	ttl    time.Duration
}

var _ session.Store = (*Store)(nil)

// New creates a Store. ttl bounds the lifetime of each session hash; zero
// disables expiry.
func New(client *redis.Client, ttl time.Duration) *Store {
	return &Store{client: client, ttl: ttl}
}

func sessionKey(token string) string {
	return keyPrefix + token
}

// Get reads the identity for token. A missing session yields a zero Identity
// and no error.
func (s *Store) Get(ctx context.Context, token string) (session.Identity, error) {
	fields, err := s.client.HGetAll(ctx, sessionKey(token)).Result()
	if err != nil {
		return session.Identity{}, errors.Wrap(err, "read session")
	}
	return session.Identity{
		CartID:     fields[fieldCartID],
		CustomerID: fields[fieldCustomerID],
	}, nil
}

// Put stores the identity for token and refreshes its expiry.
func (s *Store) Put(ctx context.Context, token string, id session.Identity) error {
	key := sessionKey(token)
	pipe := s.client.TxPipeline()
	pipe.HSet(ctx, key, fieldCartID, id.CartID, fieldCustomerID, id.CustomerID)
	if s.ttl > 0 {
		pipe.Expire(ctx, key, s.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return errors.Wrap(err, "write session")
	}
	return nil
}

// ClearCartID removes the cart identifier for token, keeping the customer
// identifier and the hash's remaining expiry.
func (s *Store) ClearCartID(ctx context.Context, token string) error {
	if err := s.client.HDel(ctx, sessionKey(token), fieldCartID).Err(); err != nil {
		return errors.Wrap(err, "clear cart id")
	}
	return nil
}

// Ping reports whether Redis is reachable. Used by the readiness probe.
func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}
