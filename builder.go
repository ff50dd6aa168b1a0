package authcore

import (
	"errors"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/crmforge/authcore/password"
	"github.com/crmforge/authcore/rbac"
	"github.com/crmforge/authcore/reset"
	"github.com/crmforge/authcore/sessions"
	"github.com/crmforge/authcore/token"
)

// Builder defines a public type used by authcore APIs.
//
// Builder instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Builder struct {
	config Config
	redis  *redis.Client

	users        UserStore
	attempts     LoginAttemptStore
	sessionStore sessions.Store
	rbacStore    rbac.Store

	logger    *zap.Logger
	auditSink AuditSink

	built bool
}

// New describes the new operation and its observable behavior.
//
// New may return an error when input validation, dependency calls, or security checks fail.
// New does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func New() *Builder {
	return &Builder{
		config: defaultConfig(),
	}
}

// WithConfig describes the withconfig operation and its observable behavior.
//
// WithConfig may return an error when input validation, dependency calls, or security checks fail.
// WithConfig does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithRedis describes the withredis operation and its observable behavior.
//
// The client backs the refresh-token revocation list; it is required.
// WithRedis may return an error when input validation, dependency calls, or security checks fail.
// WithRedis does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (b *Builder) WithRedis(client *redis.Client) *Builder {
	b.redis = client
	return b
}

// WithUserStore describes the withuserstore operation and its observable behavior.
//
// WithUserStore may return an error when input validation, dependency calls, or security checks fail.
// WithUserStore does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (b *Builder) WithUserStore(store UserStore) *Builder {
	b.users = store
	return b
}

// WithAttemptStore describes the withattemptstore operation and its observable behavior.
//
// Without an attempt store, login attempt records are silently skipped.
// WithAttemptStore may return an error when input validation, dependency calls, or security checks fail.
// WithAttemptStore does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (b *Builder) WithAttemptStore(store LoginAttemptStore) *Builder {
	b.attempts = store
	return b
}

// WithSessionStore describes the withsessionstore operation and its observable behavior.
//
// Defaults to the in-memory store, which does not survive restarts; use
// the gormstore implementation for durable sessions.
// WithSessionStore may return an error when input validation, dependency calls, or security checks fail.
// WithSessionStore does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (b *Builder) WithSessionStore(store sessions.Store) *Builder {
	b.sessionStore = store
	return b
}

// WithRBACStore describes the withrbacstore operation and its observable behavior.
//
// WithRBACStore may return an error when input validation, dependency calls, or security checks fail.
// WithRBACStore does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (b *Builder) WithRBACStore(store rbac.Store) *Builder {
	b.rbacStore = store
	return b
}

// WithLogger describes the withlogger operation and its observable behavior.
//
// WithLogger may return an error when input validation, dependency calls, or security checks fail.
// WithLogger does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (b *Builder) WithLogger(logger *zap.Logger) *Builder {
	b.logger = logger
	return b
}

// WithAuditSink describes the withauditsink operation and its observable behavior.
//
// WithAuditSink may return an error when input validation, dependency calls, or security checks fail.
// WithAuditSink does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	return b
}

// WithMetricsEnabled describes the withmetricsenabled operation and its observable behavior.
//
// WithMetricsEnabled may return an error when input validation, dependency calls, or security checks fail.
// WithMetricsEnabled does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

// Build describes the build operation and its observable behavior.
//
// Build may return an error when input validation, dependency calls, or security checks fail.
// Build does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (b *Builder) Build() (*Engine, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}

	cfg := cloneConfig(b.config)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if b.users == nil {
		return nil, errors.New("user store required")
	}
	if b.redis == nil {
		return nil, errors.New("redis client required")
	}

	engine := &Engine{
		config:   cfg,
		users:    b.users,
		attempts: b.attempts,
	}

	engine.logger = b.logger
	if engine.logger == nil {
		engine.logger = zap.NewNop()
	}

	sessionStore := b.sessionStore
	if sessionStore == nil {
		sessionStore = sessions.NewMemoryStore()
	}
	engine.sessions = sessions.NewRegistry(sessionStore)

	rbacStore := b.rbacStore
	if rbacStore == nil {
		rbacStore = rbac.NewMemoryStore()
	}
	engine.roles = rbac.NewResolver(rbacStore)

	tm, err := token.NewManager(token.Config{
		AccessTTL:     cfg.Token.AccessTTL,
		RefreshTTL:    cfg.Token.RefreshTTL,
		SigningMethod: token.SigningMethod(cfg.Token.SigningMethod),
		PrivateKey:    cloneBytes(cfg.Token.PrivateKey),
		PublicKey:     cloneBytes(cfg.Token.PublicKey),
		Issuer:        cfg.Token.Issuer,
		Leeway:        cfg.Token.Leeway,
	})
	if err != nil {
		return nil, err
	}
	engine.tokens = tm
	engine.blacklist = token.NewBlacklist(b.redis, cfg.Token.RedisPrefix)

	ph, err := password.NewHasher(password.HashConfig{
		Memory:      cfg.Password.Memory,
		Time:        cfg.Password.Time,
		Parallelism: cfg.Password.Parallelism,
		SaltLength:  cfg.Password.SaltLength,
		KeyLength:   cfg.Password.KeyLength,
	})
	if err != nil {
		return nil, err
	}
	engine.passwordHash = ph

	engine.policy = password.NewPolicy(password.PolicyConfig{
		MinLength:           cfg.Policy.MinLength,
		MinDigits:           cfg.Policy.MinDigits,
		MinUppercase:        cfg.Policy.MinUppercase,
		MinSpecial:          cfg.Policy.MinSpecial,
		SimilarityThreshold: cfg.Policy.SimilarityThreshold,
	})

	if cfg.Reset.Enabled {
		key := cfg.Reset.Key
		if len(key) == 0 {
			key = cfg.Token.PrivateKey
		}
		gen, err := reset.NewGenerator(key, cfg.Reset.TTL)
		if err != nil {
			return nil, err
		}
		engine.resetGen = gen
	}

	engine.metrics = NewMetrics(cfg.Metrics)
	engine.audit = newAuditDispatcher(cfg.Audit, b.auditSink, engine.metrics)

	b.built = true

	return engine, nil
}
