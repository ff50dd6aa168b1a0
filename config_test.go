package authcore

import (
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(*Config)
		wantValid bool
	}{
		{
			name:      "defaults valid",
			mutate:    func(*Config) {},
			wantValid: true,
		},
		{
			name: "access ttl zero invalid",
			mutate: func(c *Config) {
				c.Token.AccessTTL = 0
			},
			wantValid: false,
		},
		{
			name: "refresh shorter than access invalid",
			mutate: func(c *Config) {
				c.Token.AccessTTL = 2 * time.Hour
				c.Token.RefreshTTL = 1 * time.Hour
			},
			wantValid: false,
		},
		{
			name: "signing method hs256 valid",
			mutate: func(c *Config) {
				c.Token.SigningMethod = "hs256"
			},
			wantValid: true,
		},
		{
			name: "signing method rs256 invalid",
			mutate: func(c *Config) {
				c.Token.SigningMethod = "rs256"
			},
			wantValid: false,
		},
		{
			name: "lockout threshold zero invalid",
			mutate: func(c *Config) {
				c.Lockout.Threshold = 0
			},
			wantValid: false,
		},
		{
			name: "negative lock duration invalid",
			mutate: func(c *Config) {
				c.Lockout.LockDuration = -time.Minute
			},
			wantValid: false,
		},
		{
			name: "negative session retention invalid",
			mutate: func(c *Config) {
				c.Session.EndedRetention = -time.Hour
			},
			wantValid: false,
		},
		{
			name: "argon2 memory below floor invalid",
			mutate: func(c *Config) {
				c.Password.Memory = 1024
			},
			wantValid: false,
		},
		{
			name: "argon2 zero passes invalid",
			mutate: func(c *Config) {
				c.Password.Time = 0
			},
			wantValid: false,
		},
		{
			name: "key length below floor invalid",
			mutate: func(c *Config) {
				c.Password.KeyLength = 8
			},
			wantValid: false,
		},
		{
			name: "similarity threshold above one invalid",
			mutate: func(c *Config) {
				c.Policy.SimilarityThreshold = 1.5
			},
			wantValid: false,
		},
		{
			name: "negative reset ttl invalid",
			mutate: func(c *Config) {
				c.Reset.TTL = -time.Hour
			},
			wantValid: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			cfg.Token.PrivateKey = []byte("test-signing-secret-test-signing")
			tt.mutate(&cfg)

			err := cfg.Validate()
			if tt.wantValid && err != nil {
				t.Fatalf("expected valid config, got: %v", err)
			}
			if !tt.wantValid && err == nil {
				t.Fatal("expected validation error, got nil")
			}
		})
	}
}

func TestBuilderRequiresStores(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Token.PrivateKey = []byte("test-signing-secret-test-signing")

	if _, err := New().WithConfig(cfg).Build(); err == nil {
		t.Fatal("expected Build to fail without a user store")
	}
}

func TestBuilderSingleUse(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	b := New().
		WithConfig(testConfig()).
		WithRedis(client).
		WithUserStore(newMemUserStore()).
		WithAttemptStore(&memAttemptStore{})

	engine, err := b.Build()
	if err != nil {
		t.Fatalf("Build error: %v", err)
	}
	t.Cleanup(engine.Close)

	if _, err := b.Build(); err == nil {
		t.Fatal("expected second Build on the same builder to fail")
	}
}
