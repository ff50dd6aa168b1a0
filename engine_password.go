package authcore

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/crmforge/authcore/password"
)

// ChangePassword describes the changepassword operation and its observable behavior.
//
// The new password must pass the configured policy, checked against the
// user's own attributes. On success every other session of the user is
// ended; the caller supplies the refresh identifier of the session to
// keep, or an empty string to end them all.
// ChangePassword may return an error when input validation, dependency calls, or security checks fail.
// ChangePassword does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *Engine) ChangePassword(ctx context.Context, userID, oldPassword, newPassword, keepSessionKey string) error {
	if e == nil || e.users == nil || e.passwordHash == nil {
		return ErrEngineNotReady
	}

	user, err := e.users.GetByID(ctx, userID)
	if err != nil {
		e.emitAudit(ctx, auditEventPasswordChangeFailure, false, userID, tenantIDFromContext(ctx), "", err, func() map[string]string {
			return map[string]string{
				"reason": "user_not_found",
			}
		})
		return err
	}
	if statusErr := e.accountUsable(user); statusErr != nil {
		e.emitAudit(ctx, auditEventPasswordChangeFailure, false, userID, user.TenantID, "", statusErr, func() map[string]string {
			return map[string]string{
				"reason": "account_status",
			}
		})
		return statusErr
	}

	oldOK, err := e.passwordHash.Verify(oldPassword, user.PasswordHash)
	if err != nil || !oldOK {
		e.metricInc(MetricPasswordChangeInvalidOld)
		e.emitAudit(ctx, auditEventPasswordChangeInvalidOld, false, userID, user.TenantID, "", ErrInvalidCredentials, nil)
		return ErrInvalidCredentials
	}

	if err := e.checkPolicy(newPassword, user); err != nil {
		e.emitAudit(ctx, auditEventPasswordChangeFailure, false, userID, user.TenantID, "", ErrPolicyViolation, func() map[string]string {
			return map[string]string{
				"reason": "policy",
			}
		})
		return err
	}

	newHash, err := e.passwordHash.Hash(newPassword)
	if err != nil {
		return err
	}
	if err := e.users.UpdatePasswordHash(ctx, userID, newHash); err != nil {
		e.emitAudit(ctx, auditEventPasswordChangeFailure, false, userID, user.TenantID, "", err, func() map[string]string {
			return map[string]string{
				"reason": "update_hash_failed",
			}
		})
		return err
	}
	oldPassword = ""
	newPassword = ""

	if e.sessions != nil {
		if _, err := e.sessions.EndAllExcept(ctx, user.TenantID, userID, keepSessionKey); err != nil {
			e.logger.Warn("session teardown after password change failed", zap.Error(err))
		}
	}

	e.metricInc(MetricPasswordChangeSuccess)
	e.emitAudit(ctx, auditEventPasswordChangeSuccess, true, userID, user.TenantID, "", nil, nil)
	return nil
}

// ValidatePassword runs the configured policy against a candidate
// password for the given user and returns every violation, not just the
// first. A nil user checks the password in isolation.
func (e *Engine) ValidatePassword(candidate string, user *User) []*password.Violation {
	if e == nil || e.policy == nil {
		return nil
	}

	var profile password.Profile
	if user != nil {
		profile = profileFor(user)
	}
	return e.policy.ValidateAll(candidate, profile)
}

// GeneratePassword produces a random password that satisfies the
// configured policy's character-class minimums.
func (e *Engine) GeneratePassword() (string, error) {
	if e == nil {
		return "", ErrEngineNotReady
	}

	opts := password.DefaultGenerateOptions()
	if e.config.Policy.GeneratedLength > 0 {
		opts.Length = e.config.Policy.GeneratedLength
	}
	opts.Digits = e.config.Policy.MinDigits > 0
	opts.Uppercase = e.config.Policy.MinUppercase > 0
	opts.Special = e.config.Policy.MinSpecial > 0
	return password.Generate(opts)
}

// UnlockAccount describes the unlockaccount operation and its observable behavior.
//
// UnlockAccount clears an active lockout and zeroes the failure counter.
// Administrative path; it does not touch the password.
// UnlockAccount may return an error when input validation, dependency calls, or security checks fail.
// UnlockAccount does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *Engine) UnlockAccount(ctx context.Context, userID string) error {
	if e == nil || e.users == nil {
		return ErrEngineNotReady
	}

	if _, err := e.users.GetByID(ctx, userID); err != nil {
		return err
	}
	if err := e.users.ClearLock(ctx, userID); err != nil {
		return err
	}

	e.emitAudit(ctx, auditEventAccountUnlocked, true, userID, tenantIDFromContext(ctx), "", nil, nil)
	return nil
}

// SetUserActive describes the setuseractive operation and its observable behavior.
//
// Deactivating a user ends all of their sessions; outstanding access
// tokens are rejected on the next [Engine.DecodeUser] re-check.
// SetUserActive may return an error when input validation, dependency calls, or security checks fail.
// SetUserActive does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *Engine) SetUserActive(ctx context.Context, userID string, active bool) error {
	if e == nil || e.users == nil {
		return ErrEngineNotReady
	}

	user, err := e.users.GetByID(ctx, userID)
	if err != nil {
		return err
	}
	if err := e.users.SetActive(ctx, userID, active); err != nil {
		return err
	}

	if !active && e.sessions != nil {
		if _, err := e.sessions.EndAllExcept(ctx, user.TenantID, userID, ""); err != nil {
			e.logger.Warn("session teardown after deactivation failed", zap.Error(err))
		}
	}

	e.emitAudit(ctx, auditEventAccountStatusChange, true, userID, user.TenantID, "", nil, func() map[string]string {
		return map[string]string{
			"active": fmt.Sprintf("%t", active),
		}
	})
	return nil
}

func (e *Engine) checkPolicy(candidate string, user *User) error {
	if e.policy == nil {
		return nil
	}
	if err := e.policy.Validate(candidate, profileFor(user)); err != nil {
		return fmt.Errorf("%w: %v", ErrPolicyViolation, err)
	}
	return nil
}
