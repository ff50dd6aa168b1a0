package token

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrRedisUnavailable is an exported constant or variable used by the authentication engine.
var ErrRedisUnavailable = errors.New("redis unavailable")

// Blacklist is the refresh-token revocation list. Rotation writes the
// superseded jti here with a TTL equal to the token's remaining lifetime,
// so entries disappear on their own once the token could no longer
// verify anyway.
type Blacklist struct {
	client *redis.Client
	prefix string
}

// NewBlacklist describes the newblacklist operation and its observable behavior.
//
// NewBlacklist does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func NewBlacklist(client *redis.Client, prefix string) *Blacklist {
	if prefix == "" {
		prefix = "ac"
	}
	return &Blacklist{client: client, prefix: prefix}
}

// Revoke marks jti as dead until the given expiry. Revoking an already
// expired jti is a no-op.
func (b *Blacklist) Revoke(ctx context.Context, jti string, expiresAt time.Time) error {
	ttl := time.Until(expiresAt)
	if ttl <= 0 {
		return nil
	}

	if err := b.client.Set(ctx, b.key(jti), "1", ttl).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

// IsRevoked reports whether jti sits on the revocation list.
func (b *Blacklist) IsRevoked(ctx context.Context, jti string) (bool, error) {
	n, err := b.client.Exists(ctx, b.key(jti)).Result()
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return n > 0, nil
}

// Ping verifies connectivity to the backing Redis.
func (b *Blacklist) Ping(ctx context.Context) error {
	if err := b.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

func (b *Blacklist) key(jti string) string {
	return b.prefix + ":revoked:" + jti
}
