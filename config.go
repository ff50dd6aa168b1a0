package authcore

import (
	"errors"
	"time"
)

// Config defines a public type used by authcore APIs.
//
// Config instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Config struct {
	Token    TokenConfig
	Lockout  LockoutConfig
	Session  SessionConfig
	Password PasswordConfig
	Policy   PolicyConfig
	Reset    ResetConfig
	Audit    AuditConfig
	Metrics  MetricsConfig
}

/*
====================================
TOKEN CONFIG
====================================
*/

// TokenConfig defines a public type used by authcore APIs.
//
// TokenConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type TokenConfig struct {
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
	SigningMethod string // "hs256" (default), "ed25519" optional
	PrivateKey    []byte
	PublicKey     []byte
	Issuer        string
	Leeway        time.Duration
	RedisPrefix   string // revocation list key prefix
}

/*
====================================
LOCKOUT CONFIG
====================================
*/

// LockoutConfig defines a public type used by authcore APIs.
//
// LockoutConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type LockoutConfig struct {
	Threshold    int
	LockDuration time.Duration
}

/*
====================================
SESSION CONFIG
====================================
*/

// SessionConfig defines a public type used by authcore APIs.
//
// SessionConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type SessionConfig struct {
	// EndedRetention is how long ended sessions are kept before
	// Engine.SweepSessions purges them.
	EndedRetention time.Duration

	// IdleCutoff is the inactivity window after which SweepSessions ends
	// a still-open session.
	IdleCutoff time.Duration
}

/*
====================================
PASSWORD CONFIG (argon2id parameters)
====================================
*/

// PasswordConfig defines a public type used by authcore APIs.
//
// PasswordConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type PasswordConfig struct {
	Memory         uint32
	Time           uint32
	Parallelism    uint8
	SaltLength     uint32
	KeyLength      uint32
	UpgradeOnLogin bool
}

/*
====================================
POLICY CONFIG (validation rules)
====================================
*/

// PolicyConfig defines a public type used by authcore APIs.
//
// PolicyConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type PolicyConfig struct {
	MinLength           int
	MinDigits           int
	MinUppercase        int
	MinSpecial          int
	SimilarityThreshold float64
	GeneratedLength     int
}

/*
====================================
RESET CONFIG
====================================
*/

// ResetConfig defines a public type used by authcore APIs.
//
// ResetConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type ResetConfig struct {
	Enabled bool
	TTL     time.Duration
	// Key signs reset tokens. Falls back to Token.PrivateKey when empty.
	Key []byte
}

/*
====================================
AUDIT CONFIG
====================================
*/

// AuditConfig defines a public type used by authcore APIs.
//
// AuditConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type AuditConfig struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
}

/*
====================================
METRICS CONFIG
====================================
*/

// MetricsConfig defines a public type used by authcore APIs.
//
// MetricsConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type MetricsConfig struct {
	Enabled bool
}

func defaultConfig() Config {
	return Config{
		Token: TokenConfig{
			AccessTTL:     1 * time.Hour,
			RefreshTTL:    7 * 24 * time.Hour,
			SigningMethod: "hs256",
			Issuer:        "authcore",
			Leeway:        30 * time.Second,
			RedisPrefix:   "ac",
		},
		Lockout: LockoutConfig{
			Threshold:    5,
			LockDuration: 30 * time.Minute,
		},
		Session: SessionConfig{
			EndedRetention: 30 * 24 * time.Hour,
			IdleCutoff:     7 * 24 * time.Hour,
		},
		Password: PasswordConfig{
			Memory:         65536,
			Time:           3,
			Parallelism:    2,
			SaltLength:     16,
			KeyLength:      32,
			UpgradeOnLogin: true,
		},
		Policy: PolicyConfig{
			MinLength:           8,
			MinDigits:           1,
			MinUppercase:        1,
			MinSpecial:          1,
			SimilarityThreshold: 0.7,
			GeneratedLength:     12,
		},
		Reset: ResetConfig{
			Enabled: true,
			TTL:     3 * 24 * time.Hour,
		},
		Audit: AuditConfig{
			Enabled:    false,
			BufferSize: 1024,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled: false,
		},
	}
}

// DefaultConfig returns the library defaults. Callers override the
// fields they care about and pass the result to [Builder.WithConfig].
func DefaultConfig() Config {
	return defaultConfig()
}

func cloneConfig(cfg Config) Config {
	out := cfg
	out.Token.PrivateKey = cloneBytes(cfg.Token.PrivateKey)
	out.Token.PublicKey = cloneBytes(cfg.Token.PublicKey)
	out.Reset.Key = cloneBytes(cfg.Reset.Key)
	return out
}

func cloneBytes(b []byte) []byte {
	if b == nil {
		return nil
	}

	out := make([]byte, len(b))
	copy(out, b)
	return out
}

// Validate describes the validate operation and its observable behavior.
//
// Validate may return an error when input validation, dependency calls, or security checks fail.
// Validate does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (c *Config) Validate() error {
	// Token
	if c.Token.AccessTTL <= 0 {
		return errors.New("Token AccessTTL must be > 0")
	}
	if c.Token.RefreshTTL <= 0 {
		return errors.New("Token RefreshTTL must be > 0")
	}
	if c.Token.RefreshTTL < c.Token.AccessTTL {
		return errors.New("Token RefreshTTL must be >= AccessTTL")
	}

	if c.Token.SigningMethod != "hs256" && c.Token.SigningMethod != "ed25519" {
		return errors.New("unsupported Token signing method")
	}
	if c.Token.SigningMethod == "hs256" && len(c.Token.PrivateKey) == 0 {
		return errors.New("hs256 requires PrivateKey")
	}
	if c.Token.SigningMethod == "ed25519" && (len(c.Token.PrivateKey) == 0 || len(c.Token.PublicKey) == 0) {
		return errors.New("ed25519 requires PrivateKey and PublicKey")
	}
	if c.Token.Leeway < 0 {
		return errors.New("Token Leeway must be >= 0")
	}

	// Lockout
	if c.Lockout.Threshold < 1 {
		return errors.New("Lockout Threshold must be >= 1")
	}
	if c.Lockout.LockDuration <= 0 {
		return errors.New("Lockout LockDuration must be > 0")
	}

	// Session
	if c.Session.EndedRetention < 0 {
		return errors.New("Session EndedRetention must be >= 0")
	}
	if c.Session.IdleCutoff < 0 {
		return errors.New("Session IdleCutoff must be >= 0")
	}

	// Password
	if c.Password.Memory < 8*1024 {
		return errors.New("Password Memory must be >= 8192 KB")
	}
	if c.Password.Time < 1 {
		return errors.New("Password Time must be >= 1")
	}
	if c.Password.Parallelism < 1 {
		return errors.New("Password Parallelism must be >= 1")
	}
	if c.Password.SaltLength < 16 {
		return errors.New("Password SaltLength must be >= 16")
	}
	if c.Password.KeyLength < 16 {
		return errors.New("Password KeyLength must be >= 16")
	}

	// Policy
	if c.Policy.MinLength < 1 {
		return errors.New("Policy MinLength must be >= 1")
	}
	if c.Policy.SimilarityThreshold <= 0 || c.Policy.SimilarityThreshold > 1 {
		return errors.New("Policy SimilarityThreshold must be in (0, 1]")
	}
	if c.Policy.GeneratedLength < c.Policy.MinLength {
		return errors.New("Policy GeneratedLength must be >= MinLength")
	}

	// Reset
	if c.Reset.Enabled {
		if c.Reset.TTL <= 0 {
			return errors.New("Reset TTL must be > 0")
		}
		if len(c.Reset.Key) == 0 && len(c.Token.PrivateKey) == 0 {
			return errors.New("Reset requires a signing key")
		}
	}

	// Audit
	if c.Audit.Enabled && c.Audit.BufferSize <= 0 {
		return errors.New("Audit BufferSize must be > 0")
	}

	return nil
}
