package authcore

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/crmforge/authcore/reset"
)

// PasswordReset is the deliverable handed back by
// [Engine.RequestPasswordReset]. The caller embeds UID and Token in the
// reset link it mails out; the engine never sends anything itself.
type PasswordReset struct {
	UID   string
	Token string
}

// RequestPasswordReset describes the requestpasswordreset operation and its observable behavior.
//
// The token is bound to the user's current password hash and last login,
// so it self-invalidates the moment either changes. Resolution is strictly
// by email address; handles are not accepted here.
// RequestPasswordReset may return an error when input validation, dependency calls, or security checks fail.
// RequestPasswordReset does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *Engine) RequestPasswordReset(ctx context.Context, email string) (*PasswordReset, error) {
	if e == nil || e.users == nil || e.resetGen == nil {
		return nil, ErrEngineNotReady
	}
	tenantID := tenantIDFromContext(ctx)

	user, err := e.users.GetByEmail(ctx, tenantID, email)
	if err != nil {
		e.emitAudit(ctx, auditEventPasswordResetRequest, false, "", tenantID, "", err, nil)
		return nil, err
	}
	if !user.IsActive {
		e.emitAudit(ctx, auditEventPasswordResetRequest, false, user.ID, tenantID, "", ErrAccountDisabled, nil)
		return nil, ErrAccountDisabled
	}

	tok := e.resetGen.Make(resetState(user))

	e.metricInc(MetricPasswordResetRequest)
	e.emitAudit(ctx, auditEventPasswordResetRequest, true, user.ID, tenantID, "", nil, nil)

	return &PasswordReset{
		UID:   reset.EncodeUID(user.ID),
		Token: tok,
	}, nil
}

// ConfirmPasswordReset describes the confirmpasswordreset operation and its observable behavior.
//
// A token is single-use in effect: confirming changes the password hash
// the token was bound to, so presenting the same token again fails the
// state check. On success every session of the user is ended and any
// active lockout is cleared.
// ConfirmPasswordReset may return an error when input validation, dependency calls, or security checks fail.
// ConfirmPasswordReset does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *Engine) ConfirmPasswordReset(ctx context.Context, uid, tok, newPassword string) error {
	if e == nil || e.users == nil || e.resetGen == nil || e.passwordHash == nil {
		return ErrEngineNotReady
	}
	tenantID := tenantIDFromContext(ctx)

	userID, err := reset.DecodeUID(uid)
	if err != nil {
		e.metricInc(MetricPasswordResetFailure)
		e.emitAudit(ctx, auditEventPasswordResetConfirm, false, "", tenantID, "", ErrResetTokenInvalid, func() map[string]string {
			return map[string]string{
				"reason": "bad_uid",
			}
		})
		return ErrResetTokenInvalid
	}

	user, err := e.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			err = ErrResetTokenInvalid
		}
		e.metricInc(MetricPasswordResetFailure)
		e.emitAudit(ctx, auditEventPasswordResetConfirm, false, userID, tenantID, "", err, nil)
		return err
	}
	if statusErr := e.accountUsable(user); statusErr != nil {
		e.metricInc(MetricPasswordResetFailure)
		e.emitAudit(ctx, auditEventPasswordResetConfirm, false, user.ID, tenantID, "", statusErr, nil)
		return statusErr
	}

	if !e.resetGen.Check(resetState(user), tok) {
		e.metricInc(MetricPasswordResetFailure)
		e.emitAudit(ctx, auditEventPasswordResetConfirm, false, user.ID, tenantID, "", ErrResetTokenInvalid, func() map[string]string {
			return map[string]string{
				"reason": "state_mismatch_or_expired",
			}
		})
		return ErrResetTokenInvalid
	}

	if err := e.checkPolicy(newPassword, user); err != nil {
		e.emitAudit(ctx, auditEventPasswordResetConfirm, false, user.ID, tenantID, "", ErrPolicyViolation, func() map[string]string {
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
	if err := e.users.UpdatePasswordHash(ctx, user.ID, newHash); err != nil {
		e.metricInc(MetricPasswordResetFailure)
		e.emitAudit(ctx, auditEventPasswordResetConfirm, false, user.ID, tenantID, "", err, nil)
		return err
	}
	newPassword = ""

	if err := e.users.ClearLock(ctx, user.ID); err != nil {
		e.logger.Warn("lock clear after password reset failed", zap.Error(err))
	}
	if e.sessions != nil {
		if _, err := e.sessions.EndAllExcept(ctx, user.TenantID, user.ID, ""); err != nil {
			e.logger.Warn("session teardown after password reset failed", zap.Error(err))
		}
	}

	e.metricInc(MetricPasswordResetSuccess)
	e.emitAudit(ctx, auditEventPasswordResetConfirm, true, user.ID, tenantID, "", nil, nil)
	return nil
}

func resetState(user *User) reset.State {
	return reset.State{
		UserID:       user.ID,
		PasswordHash: user.PasswordHash,
		LastLogin:    user.LastLogin,
		IsActive:     user.IsActive,
	}
}
