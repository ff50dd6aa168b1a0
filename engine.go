package authcore

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/crmforge/authcore/password"
	"github.com/crmforge/authcore/rbac"
	"github.com/crmforge/authcore/reset"
	"github.com/crmforge/authcore/sessions"
	"github.com/crmforge/authcore/token"
)

// Engine defines a public type used by authcore APIs.
//
// Engine instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Engine struct {
	config       Config
	users        UserStore
	attempts     LoginAttemptStore
	sessions     *sessions.Registry
	roles        *rbac.Resolver
	tokens       *token.Manager
	blacklist    *token.Blacklist
	passwordHash *password.Hasher
	policy       *password.Policy
	resetGen     *reset.Generator
	audit        *auditDispatcher
	metrics      *Metrics
	logger       *zap.Logger
}

// Close describes the close operation and its observable behavior.
//
// Close may return an error when input validation, dependency calls, or security checks fail.
// Close does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *Engine) Close() {
	if e == nil {
		return
	}
	if e.audit != nil {
		e.audit.Close()
	}
}

// AuditDropped describes the auditdropped operation and its observable behavior.
//
// AuditDropped may return an error when input validation, dependency calls, or security checks fail.
// AuditDropped does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *Engine) AuditDropped() uint64 {
	if e == nil || e.audit == nil {
		return 0
	}
	return e.audit.Dropped()
}

// MetricsSnapshot describes the metricssnapshot operation and its observable behavior.
//
// MetricsSnapshot may return an error when input validation, dependency calls, or security checks fail.
// MetricsSnapshot does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	if e == nil || e.metrics == nil {
		return MetricsSnapshot{Counters: map[MetricID]uint64{}}
	}
	return e.metrics.Snapshot()
}

func (e *Engine) metricInc(id MetricID) {
	if e == nil || e.metrics == nil {
		return
	}
	e.metrics.Inc(id)
}

// Authenticate verifies an identifier/password pair against the user
// store and enforces the failed-login lockout. Exactly one [LoginAttempt]
// record is written per call, whatever the outcome.
//
// The lockout check runs before password verification: a locked account
// reports ErrAccountLocked even when the submitted password is correct,
// so probing a locked account leaks nothing about the credential.
func (e *Engine) Authenticate(ctx context.Context, identifier, pass string) (*User, error) {
	if e == nil || e.users == nil || e.passwordHash == nil {
		return nil, ErrEngineNotReady
	}
	tenantID := tenantIDFromContext(ctx)

	user, err := e.users.GetByIdentifier(ctx, tenantID, identifier)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			e.metricInc(MetricLoginFailure)
			e.recordAttempt(ctx, tenantID, identifier, "", false, ReasonUserNotFound)
			e.emitAudit(ctx, auditEventLoginFailure, false, "", tenantID, "", ErrInvalidCredentials, func() map[string]string {
				return map[string]string{
					"identifier": identifier,
					"reason":     ReasonUserNotFound,
				}
			})
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	now := time.Now()
	if user.LockedAt(now) {
		e.metricInc(MetricLoginLocked)
		e.recordAttempt(ctx, tenantID, identifier, user.ID, false, ReasonAccountLocked)
		e.emitAudit(ctx, auditEventLoginFailure, false, user.ID, tenantID, "", ErrAccountLocked, func() map[string]string {
			return map[string]string{
				"identifier": identifier,
				"reason":     ReasonAccountLocked,
			}
		})
		return nil, ErrAccountLocked
	}

	ok, err := e.passwordHash.Verify(pass, user.PasswordHash)
	if err != nil || !ok {
		locked, regErr := e.users.RegisterFailedLogin(ctx, user.ID, now, e.config.Lockout.Threshold, e.config.Lockout.LockDuration)
		if regErr != nil {
			e.logger.Warn("failed login counter update failed", zap.Error(regErr))
		}
		e.metricInc(MetricLoginFailure)
		e.recordAttempt(ctx, tenantID, identifier, user.ID, false, ReasonInvalidPassword)
		if locked {
			e.metricInc(MetricLockoutTriggered)
			e.emitAudit(ctx, auditEventAccountLocked, false, user.ID, tenantID, "", ErrAccountLocked, func() map[string]string {
				return map[string]string{
					"identifier": identifier,
				}
			})
		} else {
			e.emitAudit(ctx, auditEventLoginFailure, false, user.ID, tenantID, "", ErrInvalidCredentials, func() map[string]string {
				return map[string]string{
					"identifier": identifier,
					"reason":     ReasonInvalidPassword,
				}
			})
		}
		return nil, ErrInvalidCredentials
	}

	if !user.IsActive {
		e.metricInc(MetricLoginFailure)
		e.recordAttempt(ctx, tenantID, identifier, user.ID, false, ReasonAccountDisabled)
		e.emitAudit(ctx, auditEventLoginFailure, false, user.ID, tenantID, "", ErrAccountDisabled, func() map[string]string {
			return map[string]string{
				"identifier": identifier,
				"reason":     ReasonAccountDisabled,
			}
		})
		return nil, ErrAccountDisabled
	}

	if e.config.Password.UpgradeOnLogin {
		if needsUpgrade, err := e.passwordHash.NeedsUpgrade(user.PasswordHash); err == nil && needsUpgrade {
			if upgradedHash, err := e.passwordHash.Hash(pass); err == nil {
				// Rehash update is best-effort and must not block successful login.
				if err := e.users.UpdatePasswordHash(ctx, user.ID, upgradedHash); err != nil {
					e.logger.Warn("password hash upgrade update failed", zap.Error(err))
				} else {
					user.PasswordHash = upgradedHash
				}
			} else {
				e.logger.Warn("password hash upgrade generation failed", zap.Error(err))
			}
		}
	}
	pass = ""

	if user.FailedLoginAttempts > 0 || user.LockedUntil != nil {
		if err := e.users.ResetFailedLogins(ctx, user.ID); err != nil {
			e.logger.Warn("failed login counter reset failed", zap.Error(err))
		} else {
			user.FailedLoginAttempts = 0
		}
	}
	if err := e.users.UpdateLastLogin(ctx, user.ID, now); err != nil {
		e.logger.Warn("last login stamp failed", zap.Error(err))
	} else {
		user.LastLogin = &now
	}

	e.metricInc(MetricLoginSuccess)
	e.recordAttempt(ctx, tenantID, identifier, user.ID, true, ReasonSuccess)
	e.emitAudit(ctx, auditEventLoginSuccess, true, user.ID, tenantID, "", nil, func() map[string]string {
		return map[string]string{
			"identifier": identifier,
		}
	})

	return user, nil
}

// Login describes the login operation and its observable behavior.
//
// Login runs [Engine.Authenticate], snapshots the user's active role
// names into a fresh token pair, and opens a session keyed by the refresh
// token identifier.
// Login may return an error when input validation, dependency calls, or security checks fail.
// Login does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *Engine) Login(ctx context.Context, identifier, pass string) (*LoginResult, error) {
	user, err := e.Authenticate(ctx, identifier, pass)
	if err != nil {
		return nil, err
	}
	if e.tokens == nil || e.sessions == nil {
		return nil, ErrEngineNotReady
	}

	roles, err := e.roleSnapshot(ctx, user)
	if err != nil {
		return nil, err
	}

	pair, err := e.tokens.IssuePair(e.tokenSubject(user, roles))
	if err != nil {
		return nil, err
	}

	sess, err := e.sessions.Open(ctx, sessions.OpenInput{
		TenantID:  user.TenantID,
		UserID:    user.ID,
		Key:       pair.RefreshJTI,
		UserAgent: userAgentFromContext(ctx),
		ClientIP:  clientIPFromContext(ctx),
	})
	if err != nil {
		e.emitAudit(ctx, auditEventSessionOpenFailed, false, user.ID, user.TenantID, "", err, nil)
		return nil, err
	}

	e.metricInc(MetricSessionOpened)
	e.emitAudit(ctx, auditEventSessionOpened, true, user.ID, user.TenantID, sess.ID, nil, func() map[string]string {
		return map[string]string{
			"device_type": sess.DeviceType,
		}
	})

	return &LoginResult{
		TokenPair: TokenPair{
			AccessToken:  pair.Access,
			RefreshToken: pair.Refresh,
			ExpiresAt:    pair.AccessExp,
		},
		User:       user,
		SessionKey: sess.Key,
		Roles:      roles,
	}, nil
}

func (e *Engine) tokenSubject(user *User, roles []string) token.Subject {
	return token.Subject{
		UserID:    user.ID,
		TenantID:  user.TenantID,
		Handle:    user.Handle,
		Email:     user.Email,
		FirstName: user.FirstName,
		LastName:  user.LastName,
		Roles:     roles,
	}
}

func (e *Engine) roleSnapshot(ctx context.Context, user *User) ([]string, error) {
	if e.roles == nil {
		return nil, nil
	}
	return e.roles.ActiveRoleNames(ctx, rbac.Subject{
		UserID:    user.ID,
		TenantID:  user.TenantID,
		Superuser: user.IsSuperuser,
	})
}

func (e *Engine) recordAttempt(ctx context.Context, tenantID, identifier, userID string, success bool, reason string) {
	if e.attempts == nil {
		return
	}

	attempt := LoginAttempt{
		ID:         newID(),
		TenantID:   tenantID,
		Identifier: identifier,
		UserID:     userID,
		Success:    success,
		Reason:     reason,
		ClientIP:   clientIPFromContext(ctx),
		UserAgent:  userAgentFromContext(ctx),
		At:         time.Now(),
	}
	// Attempt persistence is best-effort: an audit outage must not block
	// authentication.
	if err := e.attempts.Record(ctx, attempt); err != nil {
		e.logger.Warn("login attempt record failed", zap.Error(err))
	}
}

func newID() string {
	return uuid.NewString()
}

func profileFor(user *User) password.Profile {
	return password.Profile{
		Handle:    user.Handle,
		Email:     user.Email,
		FirstName: user.FirstName,
		LastName:  user.LastName,
	}
}
