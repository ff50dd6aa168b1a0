package rbac

import (
	"context"
	"time"
)

// Store is the persistence contract for roles, permissions, grants, and
// assignments. Implementations must make ReplaceRolePermissions and
// DeleteRole atomic: a reader never observes a partially updated grant
// set.
type Store interface {
	// Roles
	CreateRole(ctx context.Context, role *Role) error
	GetRole(ctx context.Context, id string) (*Role, error)
	GetRoleByName(ctx context.Context, tenantID, name string) (*Role, error)
	ListRoles(ctx context.Context, tenantID string) ([]*Role, error)
	RenameRole(ctx context.Context, id, newName string) error
	// DeleteRole removes the role and its grant rows in one atomic unit.
	// The caller is responsible for the system-role and live-assignment
	// guards.
	DeleteRole(ctx context.Context, id string) error

	// Permissions. CreatePermission upserts by codename: when the
	// codename already exists the call succeeds and perm.ID is rewritten
	// to the existing row's identity, so catalogue seeding is idempotent.
	CreatePermission(ctx context.Context, perm *Permission) error
	GetPermissionByCodename(ctx context.Context, codename string) (*Permission, error)
	ListPermissions(ctx context.Context) ([]*Permission, error)

	// Grants
	ReplaceRolePermissions(ctx context.Context, roleID string, permissionIDs []string) error
	RolePermissions(ctx context.Context, roleID string) ([]*Permission, error)

	// Assignments
	CreateAssignment(ctx context.Context, a *Assignment) error
	UpdateAssignment(ctx context.Context, userID, roleID, assignedBy string, expiresAt *time.Time) error
	RemoveAssignment(ctx context.Context, userID, roleID string) error
	AssignmentsForUser(ctx context.Context, tenantID, userID string) ([]*Assignment, error)
	CountLiveAssignments(ctx context.Context, roleID string, now time.Time) (int, error)
	DeleteExpiredAssignments(ctx context.Context, before time.Time) (int, error)
}
