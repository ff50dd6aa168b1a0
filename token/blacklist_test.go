package token

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func testBlacklist(t *testing.T) (*Blacklist, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	return NewBlacklist(client, "ac"), mr
}

func TestRevokeAndCheck(t *testing.T) {
	bl, _ := testBlacklist(t)
	ctx := context.Background()

	if err := bl.Revoke(ctx, "jti-1", time.Now().Add(time.Hour)); err != nil {
		t.Fatalf("Revoke error: %v", err)
	}

	revoked, err := bl.IsRevoked(ctx, "jti-1")
	if err != nil {
		t.Fatalf("IsRevoked error: %v", err)
	}
	if !revoked {
		t.Fatal("expected jti-1 to be revoked")
	}

	revoked, err = bl.IsRevoked(ctx, "jti-2")
	if err != nil {
		t.Fatalf("IsRevoked error: %v", err)
	}
	if revoked {
		t.Fatal("expected jti-2 to be clean")
	}
}

func TestRevocationExpiresWithToken(t *testing.T) {
	bl, mr := testBlacklist(t)
	ctx := context.Background()

	if err := bl.Revoke(ctx, "jti-1", time.Now().Add(time.Minute)); err != nil {
		t.Fatalf("Revoke error: %v", err)
	}

	mr.FastForward(2 * time.Minute)

	revoked, err := bl.IsRevoked(ctx, "jti-1")
	if err != nil {
		t.Fatalf("IsRevoked error: %v", err)
	}
	if revoked {
		t.Fatal("expected entry to lapse with the token lifetime")
	}
}

func TestRevokeAlreadyExpiredIsNoOp(t *testing.T) {
	bl, _ := testBlacklist(t)
	ctx := context.Background()

	if err := bl.Revoke(ctx, "jti-1", time.Now().Add(-time.Minute)); err != nil {
		t.Fatalf("Revoke error: %v", err)
	}

	revoked, err := bl.IsRevoked(ctx, "jti-1")
	if err != nil {
		t.Fatalf("IsRevoked error: %v", err)
	}
	if revoked {
		t.Fatal("expected no entry for an already expired token")
	}
}

func TestBlacklistRedisDown(t *testing.T) {
	bl, mr := testBlacklist(t)
	ctx := context.Background()

	mr.Close()

	if err := bl.Revoke(ctx, "jti-1", time.Now().Add(time.Hour)); !errors.Is(err, ErrRedisUnavailable) {
		t.Fatalf("expected ErrRedisUnavailable, got: %v", err)
	}
	if _, err := bl.IsRevoked(ctx, "jti-1"); !errors.Is(err, ErrRedisUnavailable) {
		t.Fatalf("expected ErrRedisUnavailable, got: %v", err)
	}
}
