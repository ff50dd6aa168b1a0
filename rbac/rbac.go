// Package rbac resolves effective permissions from role assignments and
// manages the role/permission catalogue.
//
// The model is a pure union: a user's effective set is the union of the
// granted sets of every non-expired role assignment. There are no deny
// grants and therefore no conflict resolution. Superusers bypass
// resolution entirely.
package rbac

import (
	"errors"
	"time"
)

var (
	// ErrRoleNotFound is an exported constant or variable used by the authentication engine.
	ErrRoleNotFound = errors.New("role not found")
	// ErrPermissionNotFound is an exported constant or variable used by the authentication engine.
	ErrPermissionNotFound = errors.New("permission not found")
	// ErrSystemRole is an exported constant or variable used by the authentication engine.
	ErrSystemRole = errors.New("system role protected")
	// ErrRoleInUse is an exported constant or variable used by the authentication engine.
	ErrRoleInUse = errors.New("role has live assignments")
	// ErrDuplicateAssignment is an exported constant or variable used by the authentication engine.
	ErrDuplicateAssignment = errors.New("role already assigned")
	// ErrAssignmentNotFound is an exported constant or variable used by the authentication engine.
	ErrAssignmentNotFound = errors.New("role assignment not found")
	// ErrDuplicateRole is an exported constant or variable used by the authentication engine.
	ErrDuplicateRole = errors.New("role name already exists")
)

// Permission is one grantable capability, identified by its unique
// codename (for example "change_contact"). Resource names the entity the
// permission applies to; Custom marks operator-created permissions as
// opposed to bootstrapped CRUD ones.
type Permission struct {
	ID          string
	Codename    string
	Name        string
	Description string
	Resource    string
	Custom      bool
	CreatedAt   time.Time
}

// Role is a named bundle of permissions. System roles keep their name
// forever and cannot be deleted; their permission set may still be
// administered.
type Role struct {
	ID          string
	TenantID    string
	Name        string
	Description string
	IsSystem    bool
	CreatedAt   time.Time
}

// Assignment links a user to a role. A nil ExpiresAt never expires.
// Expired rows stay in place and simply stop contributing; nothing
// deletes them implicitly.
type Assignment struct {
	ID         string
	TenantID   string
	UserID     string
	RoleID     string
	AssignedBy string
	AssignedAt time.Time
	ExpiresAt  *time.Time
}

// ActiveAt reports whether the assignment contributes permissions at the
// given instant.
func (a *Assignment) ActiveAt(now time.Time) bool {
	return a.ExpiresAt == nil || a.ExpiresAt.After(now)
}

// Subject is the minimal view of a user the resolver needs.
type Subject struct {
	UserID    string
	TenantID  string
	Superuser bool
}
