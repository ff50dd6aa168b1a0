package authcore

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/crmforge/authcore/sessions"
)

// ListSessions describes the listsessions operation and its observable behavior.
//
// ListSessions may return an error when input validation, dependency calls, or security checks fail.
// ListSessions does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *Engine) ListSessions(ctx context.Context, userID string) ([]*sessions.Session, error) {
	if e == nil || e.sessions == nil {
		return nil, ErrEngineNotReady
	}
	return e.sessions.ListActive(ctx, tenantIDFromContext(ctx), userID)
}

// EndSession describes the endsession operation and its observable behavior.
//
// Ending is one-way: an already-ended session reports ErrSessionNotFound
// and its EndedAt timestamp is never rewritten.
// EndSession may return an error when input validation, dependency calls, or security checks fail.
// EndSession does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *Engine) EndSession(ctx context.Context, sessionID string) error {
	if e == nil || e.sessions == nil {
		return ErrEngineNotReady
	}

	err := e.sessions.End(ctx, sessionID)
	if errors.Is(err, sessions.ErrNotFound) {
		err = ErrSessionNotFound
	}
	if err == nil {
		e.metricInc(MetricSessionEnded)
	}
	e.emitAudit(ctx, auditEventSessionEnded, err == nil, "", tenantIDFromContext(ctx), sessionID, err, nil)
	return err
}

// EndAllSessions describes the endallsessions operation and its observable behavior.
//
// EndAllSessions ends every open session of the user except the one keyed
// by exceptKey; pass an empty exceptKey to end them all. It returns how
// many sessions it ended.
// EndAllSessions may return an error when input validation, dependency calls, or security checks fail.
// EndAllSessions does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *Engine) EndAllSessions(ctx context.Context, userID, exceptKey string) (int, error) {
	if e == nil || e.sessions == nil {
		return 0, ErrEngineNotReady
	}
	tenantID := tenantIDFromContext(ctx)

	count, err := e.sessions.EndAllExcept(ctx, tenantID, userID, exceptKey)
	if err == nil && count > 0 {
		e.metricInc(MetricSessionEnded)
	}
	e.emitAudit(ctx, auditEventSessionsEndedAll, err == nil, userID, tenantID, "", err, nil)
	return count, err
}

// TouchSession records activity on the session keyed by the given refresh
// identifier, advancing the inactivity clock used by [Engine.SweepSessions].
func (e *Engine) TouchSession(ctx context.Context, key string) error {
	if e == nil || e.sessions == nil {
		return ErrEngineNotReady
	}

	err := e.sessions.Touch(ctx, key)
	if errors.Is(err, sessions.ErrNotFound) {
		return ErrSessionNotFound
	}
	return err
}

// SweepSessions describes the sweepsessions operation and its observable behavior.
//
// SweepSessions runs the retention pass: sessions idle past
// Session.IdleCutoff are ended, and sessions ended longer ago than
// Session.EndedRetention are purged. It returns the ended and purged
// counts. Callers schedule it; the engine never runs it on its own.
// SweepSessions may return an error when input validation, dependency calls, or security checks fail.
// SweepSessions does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *Engine) SweepSessions(ctx context.Context) (ended, purged int, err error) {
	if e == nil || e.sessions == nil {
		return 0, 0, ErrEngineNotReady
	}
	now := time.Now()

	if e.config.Session.IdleCutoff > 0 {
		ended, err = e.sessions.EndInactive(ctx, now.Add(-e.config.Session.IdleCutoff))
		if err != nil {
			return ended, 0, err
		}
	}
	if e.config.Session.EndedRetention > 0 {
		purged, err = e.sessions.PurgeEnded(ctx, now.Add(-e.config.Session.EndedRetention))
		if err != nil {
			return ended, purged, err
		}
	}

	e.emitAudit(ctx, auditEventSessionsSwept, true, "", tenantIDFromContext(ctx), "", nil, func() map[string]string {
		return map[string]string{
			"ended":  strconv.Itoa(ended),
			"purged": strconv.Itoa(purged),
		}
	})
	return ended, purged, nil
}
