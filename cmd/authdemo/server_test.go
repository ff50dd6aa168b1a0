package main

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/crmforge/authcore"
)

type singleUserStore struct {
	user authcore.User
}

func (s *singleUserStore) GetByIdentifier(_ context.Context, _, identifier string) (*authcore.User, error) {
	if identifier == s.user.Handle || strings.EqualFold(identifier, s.user.Email) {
		cp := s.user
		return &cp, nil
	}
	return nil, authcore.ErrUserNotFound
}

func (s *singleUserStore) GetByID(_ context.Context, id string) (*authcore.User, error) {
	if id == s.user.ID {
		cp := s.user
		return &cp, nil
	}
	return nil, authcore.ErrUserNotFound
}

func (s *singleUserStore) GetByEmail(_ context.Context, _, email string) (*authcore.User, error) {
	if strings.EqualFold(email, s.user.Email) {
		cp := s.user
		return &cp, nil
	}
	return nil, authcore.ErrUserNotFound
}

func (s *singleUserStore) UpdatePasswordHash(context.Context, string, string) error { return nil }
func (s *singleUserStore) UpdateLastLogin(context.Context, string, time.Time) error { return nil }

func (s *singleUserStore) RegisterFailedLogin(context.Context, string, time.Time, int, time.Duration) (bool, error) {
	return false, nil
}

func (s *singleUserStore) ResetFailedLogins(context.Context, string) error { return nil }
func (s *singleUserStore) ClearLock(context.Context, string) error         { return nil }
func (s *singleUserStore) SetActive(context.Context, string, bool) error   { return nil }

func newTestServer(t *testing.T) *server {
	t.Helper()

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })

	cfg := authcore.DefaultConfig()
	cfg.Token.PrivateKey = []byte("test-signing-secret-test-signing")

	engine, err := authcore.New().
		WithConfig(cfg).
		WithRedis(rdb).
		WithUserStore(&singleUserStore{user: authcore.User{
			ID:           "u1",
			TenantID:     "0",
			Handle:       "alice",
			Email:        "alice@example.com",
			PasswordHash: "stored-credential-hash",
			IsActive:     true,
		}}).
		Build()
	if err != nil {
		t.Fatalf("Build error: %v", err)
	}
	t.Cleanup(engine.Close)

	return &server{engine: engine, logger: zap.NewNop()}
}

func TestResetRequestResponsesIndistinguishable(t *testing.T) {
	h := newTestServer(t).router()

	post := func(email string) (int, string) {
		req := httptest.NewRequest(http.MethodPost, "/auth/password/reset",
			strings.NewReader(`{"email":"`+email+`"}`))
		req.Header.Set("Content-Type", "application/json")
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec.Code, rec.Body.String()
	}

	knownCode, knownBody := post("alice@example.com")
	unknownCode, unknownBody := post("nobody@example.com")

	if knownCode != http.StatusAccepted || unknownCode != http.StatusAccepted {
		t.Fatalf("expected 202 for both, got %d and %d", knownCode, unknownCode)
	}
	if knownBody != unknownBody {
		t.Fatalf("responses must not reveal address existence:\nknown:   %s\nunknown: %s", knownBody, unknownBody)
	}

	var body map[string]string
	if err := json.Unmarshal([]byte(knownBody), &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if _, leaked := body["token"]; leaked {
		t.Fatal("reset token must stay out of the response body")
	}
}
