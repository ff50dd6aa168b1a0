package authcore

import "errors"

var (
	// ErrInvalidCredentials is an exported constant or variable used by the authentication engine.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrUserNotFound is an exported constant or variable used by the authentication engine.
	ErrUserNotFound = errors.New("user not found")
	// ErrAccountLocked is an exported constant or variable used by the authentication engine.
	ErrAccountLocked = errors.New("account locked")
	// ErrAccountDisabled is an exported constant or variable used by the authentication engine.
	ErrAccountDisabled = errors.New("account disabled")
	// ErrTokenExpired is an exported constant or variable used by the authentication engine.
	ErrTokenExpired = errors.New("token expired")
	// ErrTokenMalformed is an exported constant or variable used by the authentication engine.
	ErrTokenMalformed = errors.New("token malformed")
	// ErrTokenRevoked is an exported constant or variable used by the authentication engine.
	ErrTokenRevoked = errors.New("token revoked")
	// ErrTokenUserGone is an exported constant or variable used by the authentication engine.
	ErrTokenUserGone = errors.New("token subject no longer valid")
	// ErrPermissionDenied is an exported constant or variable used by the authentication engine.
	ErrPermissionDenied = errors.New("permission denied")
	// ErrPolicyViolation is an exported constant or variable used by the authentication engine.
	ErrPolicyViolation = errors.New("password policy violation")
	// ErrDuplicateAssignment is an exported constant or variable used by the authentication engine.
	ErrDuplicateAssignment = errors.New("role already assigned")
	// ErrSystemRoleProtected is an exported constant or variable used by the authentication engine.
	ErrSystemRoleProtected = errors.New("system role protected")
	// ErrRoleNotFound is an exported constant or variable used by the authentication engine.
	ErrRoleNotFound = errors.New("role not found")
	// ErrRoleInUse is an exported constant or variable used by the authentication engine.
	ErrRoleInUse = errors.New("role has live assignments")
	// ErrSessionNotFound is an exported constant or variable used by the authentication engine.
	ErrSessionNotFound = errors.New("session not found")
	// ErrResetTokenInvalid is an exported constant or variable used by the authentication engine.
	ErrResetTokenInvalid = errors.New("password reset token invalid")
	// ErrEngineNotReady is an exported constant or variable used by the authentication engine.
	ErrEngineNotReady = errors.New("engine not initialized")
	// ErrStoreUnavailable is an exported constant or variable used by the authentication engine.
	ErrStoreUnavailable = errors.New("backing store unavailable")
)
