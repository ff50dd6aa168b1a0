package gormstore

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/crmforge/authcore/sessions"
)

// SessionStore implements [sessions.Store] on the sessions table.
type SessionStore struct {
	db *gorm.DB
}

// NewSessionStore describes the newsessionstore operation and its observable behavior.
//
// NewSessionStore does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func NewSessionStore(db *gorm.DB) *SessionStore {
	return &SessionStore{db: db}
}

func toSession(m *sessionModel) *sessions.Session {
	return &sessions.Session{
		ID:           m.ID,
		TenantID:     m.TenantID,
		UserID:       m.UserID,
		Key:          m.Key,
		UserAgent:    m.UserAgent,
		DeviceType:   m.DeviceType,
		ClientIP:     m.ClientIP,
		Location:     m.Location,
		CreatedAt:    m.CreatedAt,
		LastActivity: m.LastActivity,
		EndedAt:      m.EndedAt,
	}
}

// Save describes the save operation and its observable behavior.
//
// Save may return an error when input validation, dependency calls, or security checks fail.
func (s *SessionStore) Save(ctx context.Context, sess *sessions.Session) error {
	rec := sessionModel{
		ID:           sess.ID,
		TenantID:     sess.TenantID,
		UserID:       sess.UserID,
		Key:          sess.Key,
		UserAgent:    sess.UserAgent,
		DeviceType:   sess.DeviceType,
		ClientIP:     sess.ClientIP,
		Location:     sess.Location,
		CreatedAt:    sess.CreatedAt,
		LastActivity: sess.LastActivity,
		EndedAt:      sess.EndedAt,
	}
	return s.db.WithContext(ctx).Create(&rec).Error
}

// Get describes the get operation and its observable behavior.
//
// Get may return an error when input validation, dependency calls, or security checks fail.
func (s *SessionStore) Get(ctx context.Context, id string) (*sessions.Session, error) {
	var rec sessionModel
	err := s.db.WithContext(ctx).Where("id = ?", id).Take(&rec).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, sessions.ErrNotFound
		}
		return nil, err
	}
	return toSession(&rec), nil
}

// GetByKey describes the getbykey operation and its observable behavior.
//
// GetByKey may return an error when input validation, dependency calls, or security checks fail.
func (s *SessionStore) GetByKey(ctx context.Context, key string) (*sessions.Session, error) {
	var rec sessionModel
	err := s.db.WithContext(ctx).Where("session_key = ?", key).Take(&rec).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, sessions.ErrNotFound
		}
		return nil, err
	}
	return toSession(&rec), nil
}

// ListActive describes the listactive operation and its observable behavior.
//
// ListActive may return an error when input validation, dependency calls, or security checks fail.
func (s *SessionStore) ListActive(ctx context.Context, tenantID, userID string) ([]*sessions.Session, error) {
	var rows []sessionModel
	err := s.db.WithContext(ctx).
		Where("tenant_id = ? AND user_id = ? AND ended_at IS NULL", tenantID, userID).
		Order("last_activity DESC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}

	out := make([]*sessions.Session, 0, len(rows))
	for i := range rows {
		out = append(out, toSession(&rows[i]))
	}
	return out, nil
}

// End describes the end operation and its observable behavior.
//
// End may return an error when input validation, dependency calls, or security checks fail.
func (s *SessionStore) End(ctx context.Context, id string, at time.Time) error {
	res := s.db.WithContext(ctx).
		Model(&sessionModel{}).
		Where("id = ? AND ended_at IS NULL", id).
		Update("ended_at", at)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return sessions.ErrNotFound
	}
	return nil
}

// EndByKey describes the endbykey operation and its observable behavior.
//
// EndByKey may return an error when input validation, dependency calls, or security checks fail.
func (s *SessionStore) EndByKey(ctx context.Context, key string, at time.Time) error {
	res := s.db.WithContext(ctx).
		Model(&sessionModel{}).
		Where("session_key = ? AND ended_at IS NULL", key).
		Update("ended_at", at)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return sessions.ErrNotFound
	}
	return nil
}

// EndAllForUser describes the endallforuser operation and its observable behavior.
//
// EndAllForUser may return an error when input validation, dependency calls, or security checks fail.
func (s *SessionStore) EndAllForUser(ctx context.Context, tenantID, userID, exceptKey string, at time.Time) (int, error) {
	q := s.db.WithContext(ctx).
		Model(&sessionModel{}).
		Where("tenant_id = ? AND user_id = ? AND ended_at IS NULL", tenantID, userID)
	if exceptKey != "" {
		q = q.Where("session_key <> ?", exceptKey)
	}
	res := q.Update("ended_at", at)
	return int(res.RowsAffected), res.Error
}

// Touch describes the touch operation and its observable behavior.
//
// Touch may return an error when input validation, dependency calls, or security checks fail.
func (s *SessionStore) Touch(ctx context.Context, key string, at time.Time) error {
	res := s.db.WithContext(ctx).
		Model(&sessionModel{}).
		Where("session_key = ? AND ended_at IS NULL", key).
		Update("last_activity", at)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return sessions.ErrNotFound
	}
	return nil
}

// RotateKey describes the rotatekey operation and its observable behavior.
//
// RotateKey may return an error when input validation, dependency calls, or security checks fail.
func (s *SessionStore) RotateKey(ctx context.Context, oldKey, newKey string, at time.Time) error {
	res := s.db.WithContext(ctx).
		Model(&sessionModel{}).
		Where("session_key = ? AND ended_at IS NULL", oldKey).
		Updates(map[string]any{
			"session_key":   newKey,
			"last_activity": at,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return sessions.ErrNotFound
	}
	return nil
}

// EndInactive describes the endinactive operation and its observable behavior.
//
// EndInactive may return an error when input validation, dependency calls, or security checks fail.
func (s *SessionStore) EndInactive(ctx context.Context, inactiveSince, at time.Time) (int, error) {
	res := s.db.WithContext(ctx).
		Model(&sessionModel{}).
		Where("ended_at IS NULL AND last_activity < ?", inactiveSince).
		Update("ended_at", at)
	return int(res.RowsAffected), res.Error
}

// PurgeEnded describes the purgeended operation and its observable behavior.
//
// PurgeEnded may return an error when input validation, dependency calls, or security checks fail.
func (s *SessionStore) PurgeEnded(ctx context.Context, endedBefore time.Time) (int, error) {
	res := s.db.WithContext(ctx).
		Where("ended_at IS NOT NULL AND ended_at < ?", endedBefore).
		Delete(&sessionModel{})
	return int(res.RowsAffected), res.Error
}
