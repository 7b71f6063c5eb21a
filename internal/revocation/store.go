package revocation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "revoked_token:"

// ErrUnavailable wraps any transport failure talking to the store. Callers
// must treat it as "answer unknown" and abort, never as "not revoked".
var ErrUnavailable = errors.New("revocation store unavailable")

// Store records explicitly revoked refresh tokens in an expiring key-value
// store. An entry's TTL equals the token's remaining validity, so the store
// self-cleans: once the token would have expired anyway the marker is gone
// and the answer reverts to "not revoked".
type Store struct {
	redis *redis.Client
}

func NewStore(client *redis.Client) *Store {
	return &Store{redis: client}
}

func key(token string) string {
	return keyPrefix + token
}

// MarkRevoked records the token as revoked for ttl. Re-marking the same
// token overwrites the marker and its TTL, so the call is idempotent.
func (s *Store) MarkRevoked(ctx context.Context, tok string, ttl time.Duration) error {
	if ttl <= 0 {
		// Already past natural expiry; nothing to record.
		return nil
	}
	if err := s.redis.Set(ctx, key(tok), "1", ttl).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

// IsRevoked reports whether the token carries a live revocation marker.
func (s *Store) IsRevoked(ctx context.Context, tok string) (bool, error) {
	n, err := s.redis.Exists(ctx, key(tok)).Result()
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return n > 0, nil
}
