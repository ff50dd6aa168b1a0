package gormstore

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/crmforge/authcore"
)

// UserStore implements [authcore.UserStore] on top of the users table.
type UserStore struct {
	db *gorm.DB
}

// NewUserStore describes the newuserstore operation and its observable behavior.
//
// NewUserStore does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func NewUserStore(db *gorm.DB) *UserStore {
	return &UserStore{db: db}
}

func toUser(m *userModel) *authcore.User {
	return &authcore.User{
		ID:                  m.ID,
		TenantID:            m.TenantID,
		Handle:              m.Handle,
		Email:               m.Email,
		FirstName:           m.FirstName,
		LastName:            m.LastName,
		PasswordHash:        m.PasswordHash,
		IsActive:            m.IsActive,
		IsSuperuser:         m.IsSuperuser,
		FailedLoginAttempts: m.FailedLoginAttempts,
		LockedUntil:         m.LockedUntil,
		LastLogin:           m.LastLogin,
		LastFailedLogin:     m.LastFailedLogin,
		CreatedAt:           m.CreatedAt,
	}
}

// Create inserts a new user row. Callers hash the password before
// storing it; this layer never sees plaintext credentials.
func (s *UserStore) Create(ctx context.Context, u *authcore.User) error {
	rec := userModel{
		ID:           u.ID,
		TenantID:     u.TenantID,
		Handle:       u.Handle,
		Email:        u.Email,
		FirstName:    u.FirstName,
		LastName:     u.LastName,
		PasswordHash: u.PasswordHash,
		IsActive:     u.IsActive,
		IsSuperuser:  u.IsSuperuser,
		LastLogin:    u.LastLogin,
		CreatedAt:    u.CreatedAt,
	}
	return s.db.WithContext(ctx).Create(&rec).Error
}

// GetByIdentifier describes the getbyidentifier operation and its observable behavior.
//
// GetByIdentifier may return an error when input validation, dependency calls, or security checks fail.
func (s *UserStore) GetByIdentifier(ctx context.Context, tenantID, identifier string) (*authcore.User, error) {
	var rec userModel
	// Handles match exactly; email addresses fold case.
	err := s.db.WithContext(ctx).
		Where("tenant_id = ? AND (handle = ? OR LOWER(email) = LOWER(?))", tenantID, identifier, identifier).
		Take(&rec).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, authcore.ErrUserNotFound
		}
		return nil, err
	}
	return toUser(&rec), nil
}

// GetByID describes the getbyid operation and its observable behavior.
//
// GetByID may return an error when input validation, dependency calls, or security checks fail.
func (s *UserStore) GetByID(ctx context.Context, id string) (*authcore.User, error) {
	var rec userModel
	err := s.db.WithContext(ctx).Where("id = ?", id).Take(&rec).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, authcore.ErrUserNotFound
		}
		return nil, err
	}
	return toUser(&rec), nil
}

// GetByEmail describes the getbyemail operation and its observable behavior.
//
// GetByEmail may return an error when input validation, dependency calls, or security checks fail.
func (s *UserStore) GetByEmail(ctx context.Context, tenantID, email string) (*authcore.User, error) {
	var rec userModel
	err := s.db.WithContext(ctx).
		Where("tenant_id = ? AND LOWER(email) = LOWER(?)", tenantID, email).
		Take(&rec).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, authcore.ErrUserNotFound
		}
		return nil, err
	}
	return toUser(&rec), nil
}

func (s *UserStore) updateOne(ctx context.Context, id string, fields map[string]any) error {
	res := s.db.WithContext(ctx).
		Model(&userModel{}).
		Where("id = ?", id).
		Updates(fields)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return authcore.ErrUserNotFound
	}
	return nil
}

// UpdatePasswordHash describes the updatepasswordhash operation and its observable behavior.
//
// UpdatePasswordHash may return an error when input validation, dependency calls, or security checks fail.
func (s *UserStore) UpdatePasswordHash(ctx context.Context, id, hash string) error {
	return s.updateOne(ctx, id, map[string]any{"password_hash": hash})
}

// UpdateLastLogin describes the updatelastlogin operation and its observable behavior.
//
// UpdateLastLogin may return an error when input validation, dependency calls, or security checks fail.
func (s *UserStore) UpdateLastLogin(ctx context.Context, id string, at time.Time) error {
	return s.updateOne(ctx, id, map[string]any{"last_login": at})
}

// RegisterFailedLogin increments the failure counter inside a row-locked
// transaction so concurrent failures each observe a distinct counter
// value. When the counter reaches threshold the row is locked until
// at.Add(lockFor). The counter is never reset here; only a successful
// authentication or an administrative unlock clears it, so every failure
// past the threshold re-arms the lock.
func (s *UserStore) RegisterFailedLogin(ctx context.Context, id string, at time.Time, threshold int, lockFor time.Duration) (bool, error) {
	var locked bool
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var rec userModel
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("id = ?", id).
			Take(&rec).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return authcore.ErrUserNotFound
			}
			return err
		}

		fields := map[string]any{
			"failed_login_attempts": rec.FailedLoginAttempts + 1,
			"last_failed_login":     at,
		}
		if rec.FailedLoginAttempts+1 >= threshold {
			locked = true
			fields["locked_until"] = at.Add(lockFor)
		}
		return tx.Model(&userModel{}).Where("id = ?", id).Updates(fields).Error
	})
	return locked, err
}

// ResetFailedLogins describes the resetfailedlogins operation and its observable behavior.
//
// ResetFailedLogins may return an error when input validation, dependency calls, or security checks fail.
func (s *UserStore) ResetFailedLogins(ctx context.Context, id string) error {
	return s.updateOne(ctx, id, map[string]any{"failed_login_attempts": 0})
}

// ClearLock describes the clearlock operation and its observable behavior.
//
// ClearLock may return an error when input validation, dependency calls, or security checks fail.
func (s *UserStore) ClearLock(ctx context.Context, id string) error {
	return s.updateOne(ctx, id, map[string]any{
		"locked_until":          nil,
		"failed_login_attempts": 0,
	})
}

// SetActive describes the setactive operation and its observable behavior.
//
// SetActive may return an error when input validation, dependency calls, or security checks fail.
func (s *UserStore) SetActive(ctx context.Context, id string, active bool) error {
	return s.updateOne(ctx, id, map[string]any{"is_active": active})
}

// AttemptStore implements [authcore.LoginAttemptStore] on the
// login_attempts table.
type AttemptStore struct {
	db *gorm.DB
}

// NewAttemptStore describes the newattemptstore operation and its observable behavior.
//
// NewAttemptStore does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func NewAttemptStore(db *gorm.DB) *AttemptStore {
	return &AttemptStore{db: db}
}

// Record describes the record operation and its observable behavior.
//
// Record may return an error when input validation, dependency calls, or security checks fail.
func (s *AttemptStore) Record(ctx context.Context, attempt authcore.LoginAttempt) error {
	rec := loginAttemptModel{
		ID:         attempt.ID,
		TenantID:   attempt.TenantID,
		Identifier: attempt.Identifier,
		Success:    attempt.Success,
		Reason:     attempt.Reason,
		ClientIP:   attempt.ClientIP,
		UserAgent:  attempt.UserAgent,
		At:         attempt.At,
	}
	if attempt.UserID != "" {
		id := attempt.UserID
		rec.UserID = &id
	}
	return s.db.WithContext(ctx).Create(&rec).Error
}

// ListByUser returns the most recent attempts for a user, newest first.
func (s *AttemptStore) ListByUser(ctx context.Context, userID string, limit int) ([]authcore.LoginAttempt, error) {
	var rows []loginAttemptModel
	err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("at DESC").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}

	out := make([]authcore.LoginAttempt, 0, len(rows))
	for _, row := range rows {
		a := authcore.LoginAttempt{
			ID:         row.ID,
			TenantID:   row.TenantID,
			Identifier: row.Identifier,
			Success:    row.Success,
			Reason:     row.Reason,
			ClientIP:   row.ClientIP,
			UserAgent:  row.UserAgent,
			At:         row.At,
		}
		if row.UserID != nil {
			a.UserID = *row.UserID
		}
		out = append(out, a)
	}
	return out, nil
}
