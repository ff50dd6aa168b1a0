package rbac

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/google/uuid"
)

// Resolver answers permission questions and administers the catalogue.
type Resolver struct {
	store Store
	now   func() time.Time
}

// NewResolver describes the newresolver operation and its observable behavior.
//
// NewResolver does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func NewResolver(store Store) *Resolver {
	return &Resolver{store: store, now: time.Now}
}

// HasPermission reports whether the subject holds the permission right
// now. Superusers short-circuit to true without touching role data.
func (r *Resolver) HasPermission(ctx context.Context, sub Subject, codename string) (bool, error) {
	if sub.Superuser {
		return true, nil
	}

	perms, err := r.effective(ctx, sub)
	if err != nil {
		return false, err
	}

	for _, p := range perms {
		if p.Codename == codename {
			return true, nil
		}
	}
	return false, nil
}

// EffectivePermissions returns the subject's full permission set, sorted
// by codename. For superusers this is the entire catalogue.
func (r *Resolver) EffectivePermissions(ctx context.Context, sub Subject) ([]*Permission, error) {
	if sub.Superuser {
		perms, err := r.store.ListPermissions(ctx)
		if err != nil {
			return nil, err
		}
		sortPermissions(perms)
		return perms, nil
	}

	perms, err := r.effective(ctx, sub)
	if err != nil {
		return nil, err
	}
	sortPermissions(perms)
	return perms, nil
}

// ActiveRoleNames returns the names of the subject's non-expired roles,
// sorted. This is the snapshot that goes into token claims.
func (r *Resolver) ActiveRoleNames(ctx context.Context, sub Subject) ([]string, error) {
	assignments, err := r.store.AssignmentsForUser(ctx, sub.TenantID, sub.UserID)
	if err != nil {
		return nil, err
	}

	now := r.now()
	names := make([]string, 0, len(assignments))
	for _, a := range assignments {
		if !a.ActiveAt(now) {
			continue
		}
		role, err := r.store.GetRole(ctx, a.RoleID)
		if err != nil {
			if errors.Is(err, ErrRoleNotFound) {
				continue
			}
			return nil, err
		}
		names = append(names, role.Name)
	}

	sort.Strings(names)
	return names, nil
}

// AssignInput is the input for [Resolver.AssignRole].
type AssignInput struct {
	TenantID   string
	UserID     string
	RoleID     string
	AssignedBy string
	ExpiresAt  *time.Time
}

// AssignRole grants a role to a user. The operation is idempotent per
// (user, role): re-assigning refreshes AssignedBy and ExpiresAt on the
// existing row instead of erroring. The returned flag is true when a new
// row was created.
func (r *Resolver) AssignRole(ctx context.Context, in AssignInput) (bool, error) {
	if _, err := r.store.GetRole(ctx, in.RoleID); err != nil {
		return false, err
	}

	a := &Assignment{
		ID:         uuid.NewString(),
		TenantID:   in.TenantID,
		UserID:     in.UserID,
		RoleID:     in.RoleID,
		AssignedBy: in.AssignedBy,
		AssignedAt: r.now(),
		ExpiresAt:  in.ExpiresAt,
	}

	err := r.store.CreateAssignment(ctx, a)
	if err == nil {
		return true, nil
	}
	if !errors.Is(err, ErrDuplicateAssignment) {
		return false, err
	}

	// Row already exists: refresh it in place.
	if err := r.store.UpdateAssignment(ctx, in.UserID, in.RoleID, in.AssignedBy, in.ExpiresAt); err != nil {
		return false, err
	}
	return false, nil
}

// RemoveRole revokes an assignment. Removing a role the user does not
// hold reports [ErrAssignmentNotFound].
func (r *Resolver) RemoveRole(ctx context.Context, userID, roleID string) error {
	return r.store.RemoveAssignment(ctx, userID, roleID)
}

// CreateRoleInput is the input for [Resolver.CreateRole].
type CreateRoleInput struct {
	TenantID    string
	Name        string
	Description string
	IsSystem    bool
	Permissions []string // codenames
}

// CreateRole creates a role and, when Permissions is non-empty, its
// initial grant set.
func (r *Resolver) CreateRole(ctx context.Context, in CreateRoleInput) (*Role, error) {
	if in.Name == "" {
		return nil, errors.New("rbac: role name is required")
	}

	role := &Role{
		ID:          uuid.NewString(),
		TenantID:    in.TenantID,
		Name:        in.Name,
		Description: in.Description,
		IsSystem:    in.IsSystem,
		CreatedAt:   r.now(),
	}

	if err := r.store.CreateRole(ctx, role); err != nil {
		return nil, err
	}

	if len(in.Permissions) > 0 {
		if err := r.UpdateRolePermissions(ctx, role.ID, in.Permissions); err != nil {
			return nil, err
		}
	}

	return role, nil
}

// RenameRole changes a role's name. System role names are immutable for
// everyone, superusers included.
func (r *Resolver) RenameRole(ctx context.Context, roleID, newName string) error {
	role, err := r.store.GetRole(ctx, roleID)
	if err != nil {
		return err
	}
	if role.IsSystem {
		return ErrSystemRole
	}
	if newName == "" {
		return errors.New("rbac: role name is required")
	}
	return r.store.RenameRole(ctx, roleID, newName)
}

// UpdateRolePermissions atomically replaces the role's grant set with
// the permissions named by the given codenames. Unknown codenames abort
// the whole update; a partial set is never applied. System roles are
// fair game here, only their name and existence are protected.
func (r *Resolver) UpdateRolePermissions(ctx context.Context, roleID string, codenames []string) error {
	if _, err := r.store.GetRole(ctx, roleID); err != nil {
		return err
	}

	ids := make([]string, 0, len(codenames))
	seen := make(map[string]struct{}, len(codenames))
	for _, codename := range codenames {
		if _, dup := seen[codename]; dup {
			continue
		}
		seen[codename] = struct{}{}

		perm, err := r.store.GetPermissionByCodename(ctx, codename)
		if err != nil {
			return err
		}
		ids = append(ids, perm.ID)
	}

	return r.store.ReplaceRolePermissions(ctx, roleID, ids)
}

// DeleteRole removes a role. Refused for system roles and for roles that
// still have at least one live (non-expired) assignment; expired
// assignments do not block deletion.
func (r *Resolver) DeleteRole(ctx context.Context, roleID string) error {
	role, err := r.store.GetRole(ctx, roleID)
	if err != nil {
		return err
	}
	if role.IsSystem {
		return ErrSystemRole
	}

	live, err := r.store.CountLiveAssignments(ctx, roleID, r.now())
	if err != nil {
		return err
	}
	if live > 0 {
		return ErrRoleInUse
	}

	return r.store.DeleteRole(ctx, roleID)
}

// SweepExpiredAssignments deletes assignment rows that expired before
// the cutoff. Expiry filtering is otherwise lazy; this exists for
// operator-driven cleanup only.
func (r *Resolver) SweepExpiredAssignments(ctx context.Context, before time.Time) (int, error) {
	return r.store.DeleteExpiredAssignments(ctx, before)
}

func (r *Resolver) effective(ctx context.Context, sub Subject) ([]*Permission, error) {
	assignments, err := r.store.AssignmentsForUser(ctx, sub.TenantID, sub.UserID)
	if err != nil {
		return nil, err
	}

	now := r.now()
	union := make(map[string]*Permission)
	for _, a := range assignments {
		if !a.ActiveAt(now) {
			continue
		}

		perms, err := r.store.RolePermissions(ctx, a.RoleID)
		if err != nil {
			return nil, err
		}
		for _, p := range perms {
			union[p.Codename] = p
		}
	}

	out := make([]*Permission, 0, len(union))
	for _, p := range union {
		out = append(out, p)
	}
	return out, nil
}

func sortPermissions(perms []*Permission) {
	sort.Slice(perms, func(i, j int) bool {
		return perms[i].Codename < perms[j].Codename
	})
}
