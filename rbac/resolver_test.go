package rbac

import (
	"context"
	"errors"
	"testing"
	"time"
)

func seedResolver(t *testing.T) (*Resolver, *MemoryStore) {
	t.Helper()

	store := NewMemoryStore()
	err := Bootstrap(context.Background(), store, BootstrapConfig{
		TenantID:  "t1",
		Resources: []string{"contact", "deal"},
		SystemRoles: map[string][]string{
			"admin": {"add_contact", "view_contact", "change_contact", "delete_contact",
				"add_deal", "view_deal", "change_deal", "delete_deal"},
		},
	})
	if err != nil {
		t.Fatalf("Bootstrap error: %v", err)
	}
	return NewResolver(store), store
}

func mustCreateRole(t *testing.T, r *Resolver, name string, codenames ...string) *Role {
	t.Helper()

	role, err := r.CreateRole(context.Background(), CreateRoleInput{
		TenantID:    "t1",
		Name:        name,
		Permissions: codenames,
	})
	if err != nil {
		t.Fatalf("CreateRole(%s) error: %v", name, err)
	}
	return role
}

func mustAssign(t *testing.T, r *Resolver, userID, roleID string, expiresAt *time.Time) {
	t.Helper()

	if _, err := r.AssignRole(context.Background(), AssignInput{
		TenantID:   "t1",
		UserID:     userID,
		RoleID:     roleID,
		AssignedBy: "admin-1",
		ExpiresAt:  expiresAt,
	}); err != nil {
		t.Fatalf("AssignRole error: %v", err)
	}
}

func TestSuperuserBypassesRoleData(t *testing.T) {
	r, _ := seedResolver(t)
	ctx := context.Background()
	root := Subject{UserID: "root", TenantID: "t1", Superuser: true}

	ok, err := r.HasPermission(ctx, root, "delete_deal")
	if err != nil {
		t.Fatalf("HasPermission error: %v", err)
	}
	if !ok {
		t.Fatal("expected superuser to hold every permission")
	}

	// Even permissions nobody ever granted.
	ok, _ = r.HasPermission(ctx, root, "launch_rockets")
	if !ok {
		t.Fatal("expected superuser bypass to skip catalogue lookups entirely")
	}

	perms, err := r.EffectivePermissions(ctx, root)
	if err != nil {
		t.Fatalf("EffectivePermissions error: %v", err)
	}
	if len(perms) != 8 {
		t.Fatalf("expected full catalogue of 8 permissions, got %d", len(perms))
	}
}

func TestEffectivePermissionsUnion(t *testing.T) {
	r, _ := seedResolver(t)
	ctx := context.Background()

	viewer := mustCreateRole(t, r, "viewer", "view_contact", "view_deal")
	editor := mustCreateRole(t, r, "editor", "view_contact", "change_contact")

	mustAssign(t, r, "user-1", viewer.ID, nil)
	mustAssign(t, r, "user-1", editor.ID, nil)

	perms, err := r.EffectivePermissions(ctx, Subject{UserID: "user-1", TenantID: "t1"})
	if err != nil {
		t.Fatalf("EffectivePermissions error: %v", err)
	}

	// Union, not multiset: view_contact appears once.
	if len(perms) != 3 {
		t.Fatalf("expected 3 distinct permissions, got %d", len(perms))
	}

	ok, _ := r.HasPermission(ctx, Subject{UserID: "user-1", TenantID: "t1"}, "change_contact")
	if !ok {
		t.Fatal("expected change_contact from editor role")
	}
	ok, _ = r.HasPermission(ctx, Subject{UserID: "user-1", TenantID: "t1"}, "delete_contact")
	if ok {
		t.Fatal("did not expect delete_contact")
	}
}

func TestExpiredAssignmentContributesNothing(t *testing.T) {
	r, _ := seedResolver(t)
	ctx := context.Background()

	viewer := mustCreateRole(t, r, "viewer", "view_contact")

	expired := time.Now().Add(-time.Hour)
	mustAssign(t, r, "user-1", viewer.ID, &expired)

	perms, err := r.EffectivePermissions(ctx, Subject{UserID: "user-1", TenantID: "t1"})
	if err != nil {
		t.Fatalf("EffectivePermissions error: %v", err)
	}
	if len(perms) != 0 {
		t.Fatalf("expected expired assignment to contribute nothing, got %v", perms)
	}

	names, err := r.ActiveRoleNames(ctx, Subject{UserID: "user-1", TenantID: "t1"})
	if err != nil {
		t.Fatalf("ActiveRoleNames error: %v", err)
	}
	if len(names) != 0 {
		t.Fatalf("expected no active role names, got %v", names)
	}
}

func TestFutureExpiryStillCounts(t *testing.T) {
	r, _ := seedResolver(t)
	ctx := context.Background()

	viewer := mustCreateRole(t, r, "viewer", "view_contact")

	future := time.Now().Add(time.Hour)
	mustAssign(t, r, "user-1", viewer.ID, &future)

	ok, err := r.HasPermission(ctx, Subject{UserID: "user-1", TenantID: "t1"}, "view_contact")
	if err != nil {
		t.Fatalf("HasPermission error: %v", err)
	}
	if !ok {
		t.Fatal("expected not-yet-expired assignment to count")
	}
}

func TestAssignRoleIdempotent(t *testing.T) {
	r, store := seedResolver(t)
	ctx := context.Background()

	viewer := mustCreateRole(t, r, "viewer", "view_contact")

	created, err := r.AssignRole(ctx, AssignInput{
		TenantID: "t1", UserID: "user-1", RoleID: viewer.ID, AssignedBy: "admin-1",
	})
	if err != nil {
		t.Fatalf("first AssignRole error: %v", err)
	}
	if !created {
		t.Fatal("expected first assignment to create a row")
	}

	future := time.Now().Add(24 * time.Hour)
	created, err = r.AssignRole(ctx, AssignInput{
		TenantID: "t1", UserID: "user-1", RoleID: viewer.ID, AssignedBy: "admin-2", ExpiresAt: &future,
	})
	if err != nil {
		t.Fatalf("second AssignRole error: %v", err)
	}
	if created {
		t.Fatal("expected second assignment to update in place")
	}

	assignments, err := store.AssignmentsForUser(ctx, "t1", "user-1")
	if err != nil {
		t.Fatalf("AssignmentsForUser error: %v", err)
	}
	if len(assignments) != 1 {
		t.Fatalf("expected exactly one assignment row, got %d", len(assignments))
	}
	if assignments[0].AssignedBy != "admin-2" || assignments[0].ExpiresAt == nil {
		t.Fatalf("expected refreshed AssignedBy and ExpiresAt, got %+v", assignments[0])
	}
}

func TestAssignUnknownRole(t *testing.T) {
	r, _ := seedResolver(t)

	_, err := r.AssignRole(context.Background(), AssignInput{
		TenantID: "t1", UserID: "user-1", RoleID: "missing",
	})
	if !errors.Is(err, ErrRoleNotFound) {
		t.Fatalf("expected ErrRoleNotFound, got: %v", err)
	}
}

func TestRemoveRole(t *testing.T) {
	r, _ := seedResolver(t)
	ctx := context.Background()

	viewer := mustCreateRole(t, r, "viewer", "view_contact")
	mustAssign(t, r, "user-1", viewer.ID, nil)

	if err := r.RemoveRole(ctx, "user-1", viewer.ID); err != nil {
		t.Fatalf("RemoveRole error: %v", err)
	}
	if err := r.RemoveRole(ctx, "user-1", viewer.ID); !errors.Is(err, ErrAssignmentNotFound) {
		t.Fatalf("expected ErrAssignmentNotFound on second removal, got: %v", err)
	}

	ok, _ := r.HasPermission(ctx, Subject{UserID: "user-1", TenantID: "t1"}, "view_contact")
	if ok {
		t.Fatal("expected permission to vanish with the assignment")
	}
}

func TestUpdateRolePermissionsAtomic(t *testing.T) {
	r, _ := seedResolver(t)
	ctx := context.Background()

	viewer := mustCreateRole(t, r, "viewer", "view_contact")

	// One unknown codename aborts the whole update.
	err := r.UpdateRolePermissions(ctx, viewer.ID, []string{"view_deal", "no_such_permission"})
	if !errors.Is(err, ErrPermissionNotFound) {
		t.Fatalf("expected ErrPermissionNotFound, got: %v", err)
	}

	mustAssign(t, r, "user-1", viewer.ID, nil)
	sub := Subject{UserID: "user-1", TenantID: "t1"}

	ok, _ := r.HasPermission(ctx, sub, "view_contact")
	if !ok {
		t.Fatal("expected original grant set to survive the failed update")
	}
	ok, _ = r.HasPermission(ctx, sub, "view_deal")
	if ok {
		t.Fatal("expected no partial application of the failed update")
	}

	// A valid update replaces the set wholesale.
	if err := r.UpdateRolePermissions(ctx, viewer.ID, []string{"view_deal"}); err != nil {
		t.Fatalf("UpdateRolePermissions error: %v", err)
	}
	ok, _ = r.HasPermission(ctx, sub, "view_contact")
	if ok {
		t.Fatal("expected old grant to be replaced")
	}
	ok, _ = r.HasPermission(ctx, sub, "view_deal")
	if !ok {
		t.Fatal("expected new grant to apply")
	}
}

func TestSystemRolePermissionsStillEditable(t *testing.T) {
	r, store := seedResolver(t)
	ctx := context.Background()

	admin, err := store.GetRoleByName(ctx, "t1", "admin")
	if err != nil {
		t.Fatalf("GetRoleByName error: %v", err)
	}

	if err := r.UpdateRolePermissions(ctx, admin.ID, []string{"view_contact"}); err != nil {
		t.Fatalf("expected system role grant update to succeed: %v", err)
	}
}

func TestRenameSystemRoleRefused(t *testing.T) {
	r, store := seedResolver(t)
	ctx := context.Background()

	admin, err := store.GetRoleByName(ctx, "t1", "admin")
	if err != nil {
		t.Fatalf("GetRoleByName error: %v", err)
	}

	if err := r.RenameRole(ctx, admin.ID, "megadmin"); !errors.Is(err, ErrSystemRole) {
		t.Fatalf("expected ErrSystemRole, got: %v", err)
	}
}

func TestDeleteSystemRoleRefused(t *testing.T) {
	r, store := seedResolver(t)
	ctx := context.Background()

	admin, err := store.GetRoleByName(ctx, "t1", "admin")
	if err != nil {
		t.Fatalf("GetRoleByName error: %v", err)
	}

	if err := r.DeleteRole(ctx, admin.ID); !errors.Is(err, ErrSystemRole) {
		t.Fatalf("expected ErrSystemRole, got: %v", err)
	}
}

func TestDeleteRoleWithLiveAssignmentRefused(t *testing.T) {
	r, _ := seedResolver(t)
	ctx := context.Background()

	viewer := mustCreateRole(t, r, "viewer", "view_contact")
	mustAssign(t, r, "user-1", viewer.ID, nil)

	if err := r.DeleteRole(ctx, viewer.ID); !errors.Is(err, ErrRoleInUse) {
		t.Fatalf("expected ErrRoleInUse, got: %v", err)
	}
}

func TestDeleteRoleWithOnlyExpiredAssignments(t *testing.T) {
	r, _ := seedResolver(t)
	ctx := context.Background()

	viewer := mustCreateRole(t, r, "viewer", "view_contact")

	expired := time.Now().Add(-time.Hour)
	mustAssign(t, r, "user-1", viewer.ID, &expired)

	if err := r.DeleteRole(ctx, viewer.ID); err != nil {
		t.Fatalf("expected expired assignments not to block deletion: %v", err)
	}
}

func TestRenameRole(t *testing.T) {
	r, store := seedResolver(t)
	ctx := context.Background()

	viewer := mustCreateRole(t, r, "viewer", "view_contact")

	if err := r.RenameRole(ctx, viewer.ID, "reader"); err != nil {
		t.Fatalf("RenameRole error: %v", err)
	}

	if _, err := store.GetRoleByName(ctx, "t1", "reader"); err != nil {
		t.Fatalf("expected renamed role to resolve: %v", err)
	}
	if _, err := store.GetRoleByName(ctx, "t1", "viewer"); !errors.Is(err, ErrRoleNotFound) {
		t.Fatal("expected old name to be gone")
	}
}

func TestActiveRoleNamesSorted(t *testing.T) {
	r, _ := seedResolver(t)
	ctx := context.Background()

	zeta := mustCreateRole(t, r, "zeta", "view_contact")
	alpha := mustCreateRole(t, r, "alpha", "view_deal")

	mustAssign(t, r, "user-1", zeta.ID, nil)
	mustAssign(t, r, "user-1", alpha.ID, nil)

	names, err := r.ActiveRoleNames(ctx, Subject{UserID: "user-1", TenantID: "t1"})
	if err != nil {
		t.Fatalf("ActiveRoleNames error: %v", err)
	}
	if len(names) != 2 || names[0] != "alpha" || names[1] != "zeta" {
		t.Fatalf("expected sorted role names, got %v", names)
	}
}

func TestSweepExpiredAssignments(t *testing.T) {
	r, store := seedResolver(t)
	ctx := context.Background()

	viewer := mustCreateRole(t, r, "viewer", "view_contact")
	editor := mustCreateRole(t, r, "editor", "change_contact")

	expired := time.Now().Add(-48 * time.Hour)
	mustAssign(t, r, "user-1", viewer.ID, &expired)
	mustAssign(t, r, "user-1", editor.ID, nil)

	count, err := r.SweepExpiredAssignments(ctx, time.Now().Add(-24*time.Hour))
	if err != nil {
		t.Fatalf("SweepExpiredAssignments error: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected 1 swept assignment, got %d", count)
	}

	assignments, _ := store.AssignmentsForUser(ctx, "t1", "user-1")
	if len(assignments) != 1 || assignments[0].RoleID != editor.ID {
		t.Fatalf("expected only the unexpired assignment to remain, got %+v", assignments)
	}
}

func TestDuplicateRoleName(t *testing.T) {
	r, _ := seedResolver(t)

	mustCreateRole(t, r, "viewer", "view_contact")
	if _, err := r.CreateRole(context.Background(), CreateRoleInput{TenantID: "t1", Name: "viewer"}); !errors.Is(err, ErrDuplicateRole) {
		t.Fatalf("expected ErrDuplicateRole, got: %v", err)
	}
}
