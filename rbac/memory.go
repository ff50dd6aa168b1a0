package rbac

import (
	"context"
	"sync"
	"time"
)

// MemoryStore is a mutex-guarded in-process [Store] for tests and
// single-node use.
type MemoryStore struct {
	mu          sync.Mutex
	roles       map[string]*Role
	permissions map[string]*Permission // by ID
	grants      map[string][]string    // roleID -> permission IDs
	assignments map[string]*Assignment // by (userID|roleID)
}

// NewMemoryStore describes the newmemorystore operation and its observable behavior.
//
// NewMemoryStore does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		roles:       make(map[string]*Role),
		permissions: make(map[string]*Permission),
		grants:      make(map[string][]string),
		assignments: make(map[string]*Assignment),
	}
}

func assignmentKey(userID, roleID string) string {
	return userID + "|" + roleID
}

// CreateRole describes the createrole operation and its observable behavior.
func (m *MemoryStore) CreateRole(_ context.Context, role *Role) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, existing := range m.roles {
		if existing.TenantID == role.TenantID && existing.Name == role.Name {
			return ErrDuplicateRole
		}
	}

	cp := *role
	m.roles[role.ID] = &cp
	return nil
}

// GetRole describes the getrole operation and its observable behavior.
func (m *MemoryStore) GetRole(_ context.Context, id string) (*Role, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	role, ok := m.roles[id]
	if !ok {
		return nil, ErrRoleNotFound
	}
	cp := *role
	return &cp, nil
}

// GetRoleByName describes the getrolebyname operation and its observable behavior.
func (m *MemoryStore) GetRoleByName(_ context.Context, tenantID, name string) (*Role, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, role := range m.roles {
		if role.TenantID == tenantID && role.Name == name {
			cp := *role
			return &cp, nil
		}
	}
	return nil, ErrRoleNotFound
}

// ListRoles describes the listroles operation and its observable behavior.
func (m *MemoryStore) ListRoles(_ context.Context, tenantID string) ([]*Role, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []*Role
	for _, role := range m.roles {
		if role.TenantID == tenantID {
			cp := *role
			out = append(out, &cp)
		}
	}
	return out, nil
}

// RenameRole describes the renamerole operation and its observable behavior.
func (m *MemoryStore) RenameRole(_ context.Context, id, newName string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	role, ok := m.roles[id]
	if !ok {
		return ErrRoleNotFound
	}
	for _, existing := range m.roles {
		if existing.ID != id && existing.TenantID == role.TenantID && existing.Name == newName {
			return ErrDuplicateRole
		}
	}
	role.Name = newName
	return nil
}

// DeleteRole describes the deleterole operation and its observable behavior.
func (m *MemoryStore) DeleteRole(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.roles[id]; !ok {
		return ErrRoleNotFound
	}
	delete(m.roles, id)
	delete(m.grants, id)
	return nil
}

// CreatePermission describes the createpermission operation and its observable behavior.
func (m *MemoryStore) CreatePermission(_ context.Context, perm *Permission) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, existing := range m.permissions {
		if existing.Codename == perm.Codename {
			// Upsert by codename: keep the existing row's identity.
			perm.ID = existing.ID
			return nil
		}
	}

	cp := *perm
	m.permissions[perm.ID] = &cp
	return nil
}

// GetPermissionByCodename describes the getpermissionbycodename operation and its observable behavior.
func (m *MemoryStore) GetPermissionByCodename(_ context.Context, codename string) (*Permission, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, perm := range m.permissions {
		if perm.Codename == codename {
			cp := *perm
			return &cp, nil
		}
	}
	return nil, ErrPermissionNotFound
}

// ListPermissions describes the listpermissions operation and its observable behavior.
func (m *MemoryStore) ListPermissions(_ context.Context) ([]*Permission, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]*Permission, 0, len(m.permissions))
	for _, perm := range m.permissions {
		cp := *perm
		out = append(out, &cp)
	}
	return out, nil
}

// ReplaceRolePermissions describes the replacerolepermissions operation and its observable behavior.
func (m *MemoryStore) ReplaceRolePermissions(_ context.Context, roleID string, permissionIDs []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.roles[roleID]; !ok {
		return ErrRoleNotFound
	}
	for _, id := range permissionIDs {
		if _, ok := m.permissions[id]; !ok {
			return ErrPermissionNotFound
		}
	}

	m.grants[roleID] = append([]string(nil), permissionIDs...)
	return nil
}

// RolePermissions describes the rolepermissions operation and its observable behavior.
func (m *MemoryStore) RolePermissions(_ context.Context, roleID string) ([]*Permission, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.roles[roleID]; !ok {
		return nil, ErrRoleNotFound
	}

	ids := m.grants[roleID]
	out := make([]*Permission, 0, len(ids))
	for _, id := range ids {
		if perm, ok := m.permissions[id]; ok {
			cp := *perm
			out = append(out, &cp)
		}
	}
	return out, nil
}

// CreateAssignment describes the createassignment operation and its observable behavior.
func (m *MemoryStore) CreateAssignment(_ context.Context, a *Assignment) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := assignmentKey(a.UserID, a.RoleID)
	if _, ok := m.assignments[key]; ok {
		return ErrDuplicateAssignment
	}

	cp := *a
	m.assignments[key] = &cp
	return nil
}

// UpdateAssignment describes the updateassignment operation and its observable behavior.
func (m *MemoryStore) UpdateAssignment(_ context.Context, userID, roleID, assignedBy string, expiresAt *time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	a, ok := m.assignments[assignmentKey(userID, roleID)]
	if !ok {
		return ErrAssignmentNotFound
	}
	a.AssignedBy = assignedBy
	a.ExpiresAt = expiresAt
	return nil
}

// RemoveAssignment describes the removeassignment operation and its observable behavior.
func (m *MemoryStore) RemoveAssignment(_ context.Context, userID, roleID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := assignmentKey(userID, roleID)
	if _, ok := m.assignments[key]; !ok {
		return ErrAssignmentNotFound
	}
	delete(m.assignments, key)
	return nil
}

// AssignmentsForUser describes the assignmentsforuser operation and its observable behavior.
func (m *MemoryStore) AssignmentsForUser(_ context.Context, tenantID, userID string) ([]*Assignment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []*Assignment
	for _, a := range m.assignments {
		if a.TenantID == tenantID && a.UserID == userID {
			cp := *a
			out = append(out, &cp)
		}
	}
	return out, nil
}

// CountLiveAssignments describes the countliveassignments operation and its observable behavior.
func (m *MemoryStore) CountLiveAssignments(_ context.Context, roleID string, now time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	count := 0
	for _, a := range m.assignments {
		if a.RoleID == roleID && a.ActiveAt(now) {
			count++
		}
	}
	return count, nil
}

// DeleteExpiredAssignments describes the deleteexpiredassignments operation and its observable behavior.
func (m *MemoryStore) DeleteExpiredAssignments(_ context.Context, before time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	count := 0
	for key, a := range m.assignments {
		if a.ExpiresAt != nil && a.ExpiresAt.Before(before) {
			delete(m.assignments, key)
			count++
		}
	}
	return count, nil
}
