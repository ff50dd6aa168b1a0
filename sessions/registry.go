package sessions

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// ErrNotFound is an exported constant or variable used by the authentication engine.
var ErrNotFound = errors.New("session not found")

// Session is one registry row. Key is the refresh-token identifier the
// session was opened for; it is the lookup handle on logout and rotation.
// EndedAt nil means the session is still open.
type Session struct {
	ID         string
	TenantID   string
	UserID     string
	Key        string
	UserAgent  string
	DeviceType string
	ClientIP   string
	Location   string

	CreatedAt    time.Time
	LastActivity time.Time
	EndedAt      *time.Time
}

// Active reports whether the session has not been ended.
func (s *Session) Active() bool {
	return s.EndedAt == nil
}

// Store is the persistence contract for session rows. End-style methods
// must leave already-ended rows untouched: EndedAt is written once.
type Store interface {
	Save(ctx context.Context, s *Session) error
	Get(ctx context.Context, id string) (*Session, error)
	GetByKey(ctx context.Context, key string) (*Session, error)
	ListActive(ctx context.Context, tenantID, userID string) ([]*Session, error)
	End(ctx context.Context, id string, at time.Time) error
	EndByKey(ctx context.Context, key string, at time.Time) error
	// EndAllForUser ends every open session of the user except the one
	// identified by exceptKey (no exception when exceptKey is empty) and
	// returns how many it ended.
	EndAllForUser(ctx context.Context, tenantID, userID, exceptKey string, at time.Time) (int, error)
	Touch(ctx context.Context, key string, at time.Time) error
	RotateKey(ctx context.Context, oldKey, newKey string, at time.Time) error
	EndInactive(ctx context.Context, inactiveSince, at time.Time) (int, error)
	PurgeEnded(ctx context.Context, endedBefore time.Time) (int, error)
}

// OpenInput carries the request context captured when a login opens a
// session.
type OpenInput struct {
	TenantID  string
	UserID    string
	Key       string
	UserAgent string
	ClientIP  string
	Location  string
}

// Registry wraps a [Store] with device classification, ID generation,
// and timestamping.
type Registry struct {
	store Store
	now   func() time.Time
}

// NewRegistry describes the newregistry operation and its observable behavior.
//
// NewRegistry does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func NewRegistry(store Store) *Registry {
	return &Registry{store: store, now: time.Now}
}

// Open records a new session. The device type is derived from the
// User-Agent once, at open time.
func (r *Registry) Open(ctx context.Context, in OpenInput) (*Session, error) {
	if in.UserID == "" || in.Key == "" {
		return nil, errors.New("sessions: user id and key are required")
	}

	now := r.now()
	s := &Session{
		ID:           uuid.NewString(),
		TenantID:     in.TenantID,
		UserID:       in.UserID,
		Key:          in.Key,
		UserAgent:    in.UserAgent,
		DeviceType:   ClassifyDevice(in.UserAgent),
		ClientIP:     in.ClientIP,
		Location:     in.Location,
		CreatedAt:    now,
		LastActivity: now,
	}

	if err := r.store.Save(ctx, s); err != nil {
		return nil, err
	}
	return s, nil
}

// ListActive returns the user's open sessions.
func (r *Registry) ListActive(ctx context.Context, tenantID, userID string) ([]*Session, error) {
	return r.store.ListActive(ctx, tenantID, userID)
}

// End closes one session by ID. Ending an already-ended session reports
// ErrNotFound rather than moving EndedAt.
func (r *Registry) End(ctx context.Context, id string) error {
	return r.store.End(ctx, id, r.now())
}

// EndByKey closes the session holding the given key. Logout path.
func (r *Registry) EndByKey(ctx context.Context, key string) error {
	return r.store.EndByKey(ctx, key, r.now())
}

// EndAllExcept closes every open session of the user but the one holding
// exceptKey. Pass an empty exceptKey to close everything.
func (r *Registry) EndAllExcept(ctx context.Context, tenantID, userID, exceptKey string) (int, error) {
	return r.store.EndAllForUser(ctx, tenantID, userID, exceptKey, r.now())
}

// Touch bumps the session's LastActivity.
func (r *Registry) Touch(ctx context.Context, key string) error {
	return r.store.Touch(ctx, key, r.now())
}

// RotateKey rehomes an open session onto a new key after token rotation
// and bumps LastActivity.
func (r *Registry) RotateKey(ctx context.Context, oldKey, newKey string) error {
	if newKey == "" {
		return errors.New("sessions: new key must not be empty")
	}
	return r.store.RotateKey(ctx, oldKey, newKey, r.now())
}

// EndInactive closes open sessions idle since before the cutoff and
// returns the count.
func (r *Registry) EndInactive(ctx context.Context, inactiveSince time.Time) (int, error) {
	return r.store.EndInactive(ctx, inactiveSince, r.now())
}

// PurgeEnded deletes ended sessions whose EndedAt is older than the
// cutoff. Retention job path; open sessions are never touched.
func (r *Registry) PurgeEnded(ctx context.Context, endedBefore time.Time) (int, error) {
	return r.store.PurgeEnded(ctx, endedBefore)
}
