package authcore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/crmforge/authcore/sessions"
	"github.com/crmforge/authcore/token"
)

// Refresh describes the refresh operation and its observable behavior.
//
// Refresh rotates a refresh token: the presented token is revoked for the
// rest of its lifetime and a fresh pair is issued with a re-resolved role
// snapshot. Presenting an already-rotated token reports ErrTokenRevoked.
// Refresh may return an error when input validation, dependency calls, or security checks fail.
// Refresh does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *Engine) Refresh(ctx context.Context, refreshToken string) (*TokenPair, error) {
	if e == nil || e.tokens == nil || e.blacklist == nil || e.users == nil {
		return nil, ErrEngineNotReady
	}
	tenantID := tenantIDFromContext(ctx)

	claims, err := e.tokens.Parse(refreshToken, token.KindRefresh)
	if err != nil {
		e.metricInc(MetricRefreshFailure)
		mapped := mapTokenError(err)
		e.emitAudit(ctx, auditEventRefreshInvalid, false, "", tenantID, "", mapped, func() map[string]string {
			return map[string]string{
				"reason": "parse_failed",
			}
		})
		return nil, mapped
	}

	revoked, err := e.blacklist.IsRevoked(ctx, claims.ID)
	if err != nil {
		e.metricInc(MetricRefreshFailure)
		e.emitAudit(ctx, auditEventRefreshInvalid, false, claims.Subject, tenantID, "", ErrStoreUnavailable, func() map[string]string {
			return map[string]string{
				"reason": "revocation_check_failed",
			}
		})
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	if revoked {
		// Reuse of a rotated token. The legitimate holder rotated past this
		// jti, so anyone presenting it again is replaying; end every session
		// of the subject.
		e.metricInc(MetricRefreshReuseDetected)
		if e.sessions != nil {
			if _, endErr := e.sessions.EndAllExcept(ctx, claims.TenantID, claims.Subject, ""); endErr != nil {
				e.logger.Warn("session teardown after refresh reuse failed", zap.Error(endErr))
			}
		}
		e.emitAudit(ctx, auditEventRefreshReuseDetected, false, claims.Subject, tenantID, "", ErrTokenRevoked, nil)
		return nil, ErrTokenRevoked
	}

	user, err := e.users.GetByID(ctx, claims.Subject)
	if err != nil {
		e.metricInc(MetricRefreshFailure)
		e.emitAudit(ctx, auditEventRefreshInvalid, false, claims.Subject, tenantID, "", ErrTokenUserGone, func() map[string]string {
			return map[string]string{
				"reason": "user_gone",
			}
		})
		return nil, ErrTokenUserGone
	}
	if statusErr := e.accountUsable(user); statusErr != nil {
		e.metricInc(MetricRefreshFailure)
		e.emitAudit(ctx, auditEventRefreshInvalid, false, user.ID, user.TenantID, "", statusErr, func() map[string]string {
			return map[string]string{
				"reason": "account_status",
			}
		})
		return nil, statusErr
	}

	roles, err := e.roleSnapshot(ctx, user)
	if err != nil {
		e.metricInc(MetricRefreshFailure)
		return nil, err
	}

	pair, err := e.tokens.IssuePair(e.tokenSubject(user, roles))
	if err != nil {
		e.metricInc(MetricRefreshFailure)
		return nil, err
	}

	if err := e.blacklist.Revoke(ctx, claims.ID, claims.ExpiresAt.Time); err != nil {
		e.metricInc(MetricRefreshFailure)
		e.emitAudit(ctx, auditEventRefreshInvalid, false, user.ID, user.TenantID, "", ErrStoreUnavailable, func() map[string]string {
			return map[string]string{
				"reason": "revoke_failed",
			}
		})
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	if e.sessions != nil {
		// Rehome the session onto the new refresh identifier. A missing row
		// means the session was ended out of band; the rotation itself
		// stands.
		if err := e.sessions.RotateKey(ctx, claims.ID, pair.RefreshJTI); err != nil && !errors.Is(err, sessions.ErrNotFound) {
			e.logger.Warn("session key rotation failed", zap.Error(err))
		}
	}

	e.metricInc(MetricRefreshSuccess)
	e.emitAudit(ctx, auditEventRefreshSuccess, true, user.ID, user.TenantID, "", nil, nil)

	return &TokenPair{
		AccessToken:  pair.Access,
		RefreshToken: pair.Refresh,
		ExpiresAt:    pair.AccessExp,
	}, nil
}

// DecodeUser describes the decodeuser operation and its observable behavior.
//
// DecodeUser parses an access token and re-checks the subject's current
// account state: a user that was deactivated or locked after issuance is
// rejected even while the token signature is still valid.
// DecodeUser may return an error when input validation, dependency calls, or security checks fail.
// DecodeUser does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *Engine) DecodeUser(ctx context.Context, accessToken string) (*Identity, error) {
	if e == nil || e.tokens == nil || e.users == nil {
		return nil, ErrEngineNotReady
	}

	claims, err := e.tokens.Parse(accessToken, token.KindAccess)
	if err != nil {
		return nil, mapTokenError(err)
	}

	user, err := e.users.GetByID(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return nil, ErrTokenUserGone
		}
		return nil, err
	}
	if statusErr := e.accountUsable(user); statusErr != nil {
		return nil, statusErr
	}

	return &Identity{
		UserID:    claims.Subject,
		TenantID:  claims.TenantID,
		Handle:    claims.Handle,
		Email:     claims.Email,
		FirstName: claims.FirstName,
		LastName:  claims.LastName,
		Roles:     claims.Roles,
	}, nil
}

// Logout describes the logout operation and its observable behavior.
//
// Logout revokes the presented refresh token and ends the session it
// keys. An already-expired token still ends the session.
// Logout may return an error when input validation, dependency calls, or security checks fail.
// Logout does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *Engine) Logout(ctx context.Context, refreshToken string) error {
	if e == nil || e.tokens == nil {
		return ErrEngineNotReady
	}
	tenantID := tenantIDFromContext(ctx)

	claims, err := e.tokens.Parse(refreshToken, token.KindRefresh)
	if err != nil {
		mapped := mapTokenError(err)
		e.emitAudit(ctx, auditEventLogout, false, "", tenantID, "", mapped, nil)
		return mapped
	}

	if e.blacklist != nil {
		if err := e.blacklist.Revoke(ctx, claims.ID, claims.ExpiresAt.Time); err != nil {
			e.emitAudit(ctx, auditEventLogout, false, claims.Subject, tenantID, "", ErrStoreUnavailable, nil)
			return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
		}
	}

	if e.sessions != nil {
		if err := e.sessions.EndByKey(ctx, claims.ID); err != nil && !errors.Is(err, sessions.ErrNotFound) {
			e.emitAudit(ctx, auditEventLogout, false, claims.Subject, tenantID, "", err, nil)
			return err
		}
	}

	e.metricInc(MetricLogout)
	e.emitAudit(ctx, auditEventLogout, true, claims.Subject, tenantID, "", nil, nil)
	return nil
}

func (e *Engine) accountUsable(user *User) error {
	if !user.IsActive {
		return ErrAccountDisabled
	}
	if user.LockedAt(time.Now()) {
		return ErrAccountLocked
	}
	return nil
}

func mapTokenError(err error) error {
	switch {
	case errors.Is(err, token.ErrExpired):
		return ErrTokenExpired
	default:
		return ErrTokenMalformed
	}
}
