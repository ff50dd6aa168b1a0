package authcore

import (
	"context"
	"strings"
	"time"
)

// User is the account record the engine operates on. Callers persist it
// however they like; the engine only reads and mutates it through the
// [UserStore] contract.
//
// User instances returned by a store are treated as snapshots: the engine
// never writes fields back directly, every mutation goes through a store
// method so the store can make it atomic.
type User struct {
	ID        string
	TenantID  string
	Handle    string
	Email     string
	FirstName string
	LastName  string

	PasswordHash string

	IsActive    bool
	IsSuperuser bool

	FailedLoginAttempts int
	LastFailedLogin     *time.Time
	LockedUntil         *time.Time
	LastLogin           *time.Time

	CreatedAt time.Time
}

// LockedAt reports whether the account is under an active lockout at the
// given instant. An expired LockedUntil means the account is usable again
// even though the field is still set.
func (u *User) LockedAt(now time.Time) bool {
	return u.LockedUntil != nil && now.Before(*u.LockedUntil)
}

// FullName joins the first and last name, trimming when either is empty.
func (u *User) FullName() string {
	return strings.TrimSpace(u.FirstName + " " + u.LastName)
}

// Attempt reasons recorded on every authentication outcome. Exactly one of
// these is written per Authenticate call.
const (
	// ReasonSuccess is an exported constant or variable used by the authentication engine.
	ReasonSuccess = "success"
	// ReasonUserNotFound is an exported constant or variable used by the authentication engine.
	ReasonUserNotFound = "user_not_found"
	// ReasonAccountLocked is an exported constant or variable used by the authentication engine.
	ReasonAccountLocked = "account_locked"
	// ReasonAccountDisabled is an exported constant or variable used by the authentication engine.
	ReasonAccountDisabled = "account_disabled"
	// ReasonInvalidPassword is an exported constant or variable used by the authentication engine.
	ReasonInvalidPassword = "invalid_password"
)

// LoginAttempt is the audit record written for every authentication
// outcome, successful or not. UserID is empty when the identifier never
// resolved to an account.
type LoginAttempt struct {
	ID         string
	TenantID   string
	Identifier string
	UserID     string
	Success    bool
	Reason     string
	ClientIP   string
	UserAgent  string
	At         time.Time
}

// UserStore is the primary interface that callers must implement to
// integrate authcore with their user database. It covers identifier
// resolution, credential updates, and the lockout counter.
//
// RegisterFailedLogin must be atomic with respect to concurrent callers:
// two racing failures may not observe the same counter value. The
// gormstore implementation uses a row-locked transaction; in-memory
// implementations a mutex.
type UserStore interface {
	// GetByIdentifier resolves a handle or email address within a tenant.
	// Handles match exactly; email matching is case-insensitive. It
	// returns ErrUserNotFound when nothing matches.
	GetByIdentifier(ctx context.Context, tenantID, identifier string) (*User, error)

	// GetByID fetches a user by primary key, ErrUserNotFound when absent.
	GetByID(ctx context.Context, id string) (*User, error)

	// GetByEmail resolves strictly by email address, case-insensitively.
	// Used by the password reset flow, which never accepts handles.
	GetByEmail(ctx context.Context, tenantID, email string) (*User, error)

	// UpdatePasswordHash replaces the stored credential hash.
	UpdatePasswordHash(ctx context.Context, id, hash string) error

	// UpdateLastLogin stamps the most recent successful login.
	UpdateLastLogin(ctx context.Context, id string, at time.Time) error

	// RegisterFailedLogin increments the failure counter and stamps
	// LastFailedLogin in a single atomic step and, when the counter
	// reaches threshold, sets LockedUntil to at.Add(lockFor). The counter
	// is left untouched by the lock: only a success or ClearLock resets
	// it, so any further failure after the lock expires locks again.
	// It reports whether this call triggered the lock.
	RegisterFailedLogin(ctx context.Context, id string, at time.Time, threshold int, lockFor time.Duration) (locked bool, err error)

	// ResetFailedLogins zeroes the failure counter after a successful
	// authentication.
	ResetFailedLogins(ctx context.Context, id string) error

	// ClearLock removes an active lockout and zeroes the counter.
	// Administrative unlock path.
	ClearLock(ctx context.Context, id string) error

	// SetActive toggles the account's active flag.
	SetActive(ctx context.Context, id string, active bool) error
}

// LoginAttemptStore persists [LoginAttempt] records. Record failures are
// logged but never surfaced to the caller: an audit outage must not block
// logins.
type LoginAttemptStore interface {
	Record(ctx context.Context, attempt LoginAttempt) error
}

// TokenPair is an access/refresh token pair returned by [Engine.Login]
// and [Engine.Refresh].
type TokenPair struct {
	AccessToken  string
	RefreshToken string
	ExpiresAt    time.Time
}

// LoginResult is returned by [Engine.Login]. It carries the issued token
// pair, the authenticated user snapshot, and the key of the session the
// login opened.
type LoginResult struct {
	TokenPair

	User       *User
	SessionKey string
	Roles      []string
}

// Identity is the decoded view of an access token after the engine has
// re-checked the account's current state. Roles is the snapshot captured
// at issuance, not the live assignment set.
type Identity struct {
	UserID    string
	TenantID  string
	Handle    string
	Email     string
	FirstName string
	LastName  string
	Roles     []string
}

// HasRole reports whether the role-name snapshot includes name.
func (i *Identity) HasRole(name string) bool {
	for _, r := range i.Roles {
		if r == name {
			return true
		}
	}
	return false
}
