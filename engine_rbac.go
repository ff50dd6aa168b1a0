package authcore

import (
	"context"
	"errors"
	"time"

	"github.com/crmforge/authcore/rbac"
)

// HasPermission describes the haspermission operation and its observable behavior.
//
// Superusers short-circuit to true without touching role data. For
// everyone else the answer is the union over their non-expired role
// assignments, resolved live.
// HasPermission may return an error when input validation, dependency calls, or security checks fail.
// HasPermission does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *Engine) HasPermission(ctx context.Context, user *User, codename string) (bool, error) {
	if e == nil || e.roles == nil {
		return false, ErrEngineNotReady
	}
	return e.roles.HasPermission(ctx, rbacSubject(user), codename)
}

// RequirePermission is [Engine.HasPermission] collapsed to an error:
// ErrPermissionDenied when the user does not hold the permission.
func (e *Engine) RequirePermission(ctx context.Context, user *User, codename string) error {
	ok, err := e.HasPermission(ctx, user, codename)
	if err != nil {
		return err
	}
	if !ok {
		return ErrPermissionDenied
	}
	return nil
}

// EffectivePermissions describes the effectivepermissions operation and its observable behavior.
//
// EffectivePermissions may return an error when input validation, dependency calls, or security checks fail.
// EffectivePermissions does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *Engine) EffectivePermissions(ctx context.Context, user *User) ([]*rbac.Permission, error) {
	if e == nil || e.roles == nil {
		return nil, ErrEngineNotReady
	}
	return e.roles.EffectivePermissions(ctx, rbacSubject(user))
}

// AssignRole describes the assignrole operation and its observable behavior.
//
// Assignment is idempotent per (user, role): re-assigning refreshes the
// assigner and expiry on the existing row. The returned flag is true when
// a new assignment row was created.
// AssignRole may return an error when input validation, dependency calls, or security checks fail.
// AssignRole does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *Engine) AssignRole(ctx context.Context, userID, roleID, assignedBy string, expiresAt *time.Time) (bool, error) {
	if e == nil || e.roles == nil {
		return false, ErrEngineNotReady
	}

	created, err := e.roles.AssignRole(ctx, rbac.AssignInput{
		TenantID:   tenantIDFromContext(ctx),
		UserID:     userID,
		RoleID:     roleID,
		AssignedBy: assignedBy,
		ExpiresAt:  expiresAt,
	})
	if err != nil {
		return false, mapRBACError(err)
	}

	e.emitAudit(ctx, auditEventRoleAssigned, true, userID, tenantIDFromContext(ctx), "", nil, func() map[string]string {
		return map[string]string{
			"role_id":     roleID,
			"assigned_by": assignedBy,
		}
	})
	return created, nil
}

// RemoveRole describes the removerole operation and its observable behavior.
//
// RemoveRole may return an error when input validation, dependency calls, or security checks fail.
// RemoveRole does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *Engine) RemoveRole(ctx context.Context, userID, roleID string) error {
	if e == nil || e.roles == nil {
		return ErrEngineNotReady
	}

	if err := e.roles.RemoveRole(ctx, userID, roleID); err != nil {
		return mapRBACError(err)
	}
	e.emitAudit(ctx, auditEventRoleRemoved, true, userID, tenantIDFromContext(ctx), "", nil, func() map[string]string {
		return map[string]string{
			"role_id": roleID,
		}
	})
	return nil
}

// CreateRole describes the createrole operation and its observable behavior.
//
// CreateRole may return an error when input validation, dependency calls, or security checks fail.
// CreateRole does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *Engine) CreateRole(ctx context.Context, name, description string, permissions []string) (*rbac.Role, error) {
	if e == nil || e.roles == nil {
		return nil, ErrEngineNotReady
	}

	role, err := e.roles.CreateRole(ctx, rbac.CreateRoleInput{
		TenantID:    tenantIDFromContext(ctx),
		Name:        name,
		Description: description,
		Permissions: permissions,
	})
	if err != nil {
		return nil, mapRBACError(err)
	}
	return role, nil
}

// RenameRole describes the renamerole operation and its observable behavior.
//
// System roles cannot be renamed; their grant sets stay editable through
// [Engine.UpdateRolePermissions].
// RenameRole may return an error when input validation, dependency calls, or security checks fail.
// RenameRole does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *Engine) RenameRole(ctx context.Context, roleID, newName string) error {
	if e == nil || e.roles == nil {
		return ErrEngineNotReady
	}
	return mapRBACError(e.roles.RenameRole(ctx, roleID, newName))
}

// UpdateRolePermissions describes the updaterolepermissions operation and its observable behavior.
//
// The replacement is atomic: one unknown codename aborts the whole update
// and the existing grant set stays untouched.
// UpdateRolePermissions may return an error when input validation, dependency calls, or security checks fail.
// UpdateRolePermissions does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *Engine) UpdateRolePermissions(ctx context.Context, roleID string, codenames []string) error {
	if e == nil || e.roles == nil {
		return ErrEngineNotReady
	}
	return mapRBACError(e.roles.UpdateRolePermissions(ctx, roleID, codenames))
}

// DeleteRole describes the deleterole operation and its observable behavior.
//
// Deletion is refused for system roles and for roles with live (non-
// expired) assignments; expired assignments alone do not block it.
// DeleteRole may return an error when input validation, dependency calls, or security checks fail.
// DeleteRole does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *Engine) DeleteRole(ctx context.Context, roleID string) error {
	if e == nil || e.roles == nil {
		return ErrEngineNotReady
	}
	return mapRBACError(e.roles.DeleteRole(ctx, roleID))
}

// SweepExpiredAssignments deletes role assignments whose expiry predates
// the cutoff. Expired assignments are already inert; this reclaims the
// rows.
func (e *Engine) SweepExpiredAssignments(ctx context.Context, before time.Time) (int, error) {
	if e == nil || e.roles == nil {
		return 0, ErrEngineNotReady
	}
	return e.roles.SweepExpiredAssignments(ctx, before)
}

func rbacSubject(user *User) rbac.Subject {
	return rbac.Subject{
		UserID:    user.ID,
		TenantID:  user.TenantID,
		Superuser: user.IsSuperuser,
	}
}

func mapRBACError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, rbac.ErrSystemRole):
		return ErrSystemRoleProtected
	case errors.Is(err, rbac.ErrRoleNotFound):
		return ErrRoleNotFound
	case errors.Is(err, rbac.ErrRoleInUse):
		return ErrRoleInUse
	case errors.Is(err, rbac.ErrDuplicateAssignment):
		return ErrDuplicateAssignment
	default:
		return err
	}
}
