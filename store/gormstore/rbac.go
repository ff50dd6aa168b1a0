package gormstore

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/crmforge/authcore/rbac"
)

// RBACStore implements [rbac.Store] on the roles, permissions,
// role_permissions, and role_assignments tables.
type RBACStore struct {
	db *gorm.DB
}

// NewRBACStore describes the newrbacstore operation and its observable behavior.
//
// NewRBACStore does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func NewRBACStore(db *gorm.DB) *RBACStore {
	return &RBACStore{db: db}
}

func toRole(m *roleModel) *rbac.Role {
	return &rbac.Role{
		ID:          m.ID,
		TenantID:    m.TenantID,
		Name:        m.Name,
		Description: m.Description,
		IsSystem:    m.IsSystem,
		CreatedAt:   m.CreatedAt,
	}
}

func toPermission(m *permissionModel) *rbac.Permission {
	return &rbac.Permission{
		ID:          m.ID,
		Codename:    m.Codename,
		Name:        m.Name,
		Description: m.Description,
		Resource:    m.Resource,
		Custom:      m.Custom,
		CreatedAt:   m.CreatedAt,
	}
}

// CreateRole describes the createrole operation and its observable behavior.
//
// CreateRole may return an error when input validation, dependency calls, or security checks fail.
func (s *RBACStore) CreateRole(ctx context.Context, role *rbac.Role) error {
	rec := roleModel{
		ID:          role.ID,
		TenantID:    role.TenantID,
		Name:        role.Name,
		Description: role.Description,
		IsSystem:    role.IsSystem,
		CreatedAt:   role.CreatedAt,
	}
	err := s.db.WithContext(ctx).Create(&rec).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return rbac.ErrDuplicateRole
	}
	return err
}

// GetRole describes the getrole operation and its observable behavior.
//
// GetRole may return an error when input validation, dependency calls, or security checks fail.
func (s *RBACStore) GetRole(ctx context.Context, id string) (*rbac.Role, error) {
	var rec roleModel
	err := s.db.WithContext(ctx).Where("id = ?", id).Take(&rec).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, rbac.ErrRoleNotFound
		}
		return nil, err
	}
	return toRole(&rec), nil
}

// GetRoleByName describes the getrolebyname operation and its observable behavior.
//
// GetRoleByName may return an error when input validation, dependency calls, or security checks fail.
func (s *RBACStore) GetRoleByName(ctx context.Context, tenantID, name string) (*rbac.Role, error) {
	var rec roleModel
	err := s.db.WithContext(ctx).
		Where("tenant_id = ? AND name = ?", tenantID, name).
		Take(&rec).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, rbac.ErrRoleNotFound
		}
		return nil, err
	}
	return toRole(&rec), nil
}

// ListRoles describes the listroles operation and its observable behavior.
//
// ListRoles may return an error when input validation, dependency calls, or security checks fail.
func (s *RBACStore) ListRoles(ctx context.Context, tenantID string) ([]*rbac.Role, error) {
	var rows []roleModel
	err := s.db.WithContext(ctx).
		Where("tenant_id = ?", tenantID).
		Order("name").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}

	out := make([]*rbac.Role, 0, len(rows))
	for i := range rows {
		out = append(out, toRole(&rows[i]))
	}
	return out, nil
}

// RenameRole describes the renamerole operation and its observable behavior.
//
// RenameRole may return an error when input validation, dependency calls, or security checks fail.
func (s *RBACStore) RenameRole(ctx context.Context, id, newName string) error {
	res := s.db.WithContext(ctx).
		Model(&roleModel{}).
		Where("id = ?", id).
		Update("name", newName)
	if errors.Is(res.Error, gorm.ErrDuplicatedKey) {
		return rbac.ErrDuplicateRole
	}
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return rbac.ErrRoleNotFound
	}
	return nil
}

// DeleteRole removes the role and its grant rows in one transaction.
func (s *RBACStore) DeleteRole(ctx context.Context, id string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("role_id = ?", id).Delete(&rolePermissionModel{}).Error; err != nil {
			return err
		}
		res := tx.Where("id = ?", id).Delete(&roleModel{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return rbac.ErrRoleNotFound
		}
		return nil
	})
}

// CreatePermission describes the createpermission operation and its observable behavior.
//
// CreatePermission may return an error when input validation, dependency calls, or security checks fail.
func (s *RBACStore) CreatePermission(ctx context.Context, perm *rbac.Permission) error {
	rec := permissionModel{
		ID:          perm.ID,
		Codename:    perm.Codename,
		Name:        perm.Name,
		Description: perm.Description,
		Resource:    perm.Resource,
		Custom:      perm.Custom,
		CreatedAt:   perm.CreatedAt,
	}
	res := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "codename"}},
			DoNothing: true,
		}).
		Create(&rec)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		// Upsert by codename: rehome the caller's record on the
		// existing row's identity.
		var existing permissionModel
		if err := s.db.WithContext(ctx).
			Where("codename = ?", perm.Codename).
			Take(&existing).Error; err != nil {
			return err
		}
		perm.ID = existing.ID
	}
	return nil
}

// GetPermissionByCodename describes the getpermissionbycodename operation and its observable behavior.
//
// GetPermissionByCodename may return an error when input validation, dependency calls, or security checks fail.
func (s *RBACStore) GetPermissionByCodename(ctx context.Context, codename string) (*rbac.Permission, error) {
	var rec permissionModel
	err := s.db.WithContext(ctx).Where("codename = ?", codename).Take(&rec).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, rbac.ErrPermissionNotFound
		}
		return nil, err
	}
	return toPermission(&rec), nil
}

// ListPermissions describes the listpermissions operation and its observable behavior.
//
// ListPermissions may return an error when input validation, dependency calls, or security checks fail.
func (s *RBACStore) ListPermissions(ctx context.Context) ([]*rbac.Permission, error) {
	var rows []permissionModel
	if err := s.db.WithContext(ctx).Order("codename").Find(&rows).Error; err != nil {
		return nil, err
	}

	out := make([]*rbac.Permission, 0, len(rows))
	for i := range rows {
		out = append(out, toPermission(&rows[i]))
	}
	return out, nil
}

// ReplaceRolePermissions swaps the role's grant set in one transaction:
// either the full new set is visible or the old one still is.
func (s *RBACStore) ReplaceRolePermissions(ctx context.Context, roleID string, permissionIDs []string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("role_id = ?", roleID).Delete(&rolePermissionModel{}).Error; err != nil {
			return err
		}
		for _, pid := range permissionIDs {
			rec := rolePermissionModel{RoleID: roleID, PermissionID: pid}
			if err := tx.Create(&rec).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

// RolePermissions describes the rolepermissions operation and its observable behavior.
//
// RolePermissions may return an error when input validation, dependency calls, or security checks fail.
func (s *RBACStore) RolePermissions(ctx context.Context, roleID string) ([]*rbac.Permission, error) {
	var rows []permissionModel
	err := s.db.WithContext(ctx).
		Joins("JOIN role_permissions ON role_permissions.permission_id = permissions.id").
		Where("role_permissions.role_id = ?", roleID).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}

	out := make([]*rbac.Permission, 0, len(rows))
	for i := range rows {
		out = append(out, toPermission(&rows[i]))
	}
	return out, nil
}

// CreateAssignment describes the createassignment operation and its observable behavior.
//
// CreateAssignment may return an error when input validation, dependency calls, or security checks fail.
func (s *RBACStore) CreateAssignment(ctx context.Context, a *rbac.Assignment) error {
	rec := roleAssignmentModel{
		ID:         a.ID,
		TenantID:   a.TenantID,
		UserID:     a.UserID,
		RoleID:     a.RoleID,
		AssignedBy: a.AssignedBy,
		AssignedAt: a.AssignedAt,
		ExpiresAt:  a.ExpiresAt,
	}
	err := s.db.WithContext(ctx).Create(&rec).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return rbac.ErrDuplicateAssignment
	}
	return err
}

// UpdateAssignment describes the updateassignment operation and its observable behavior.
//
// UpdateAssignment may return an error when input validation, dependency calls, or security checks fail.
func (s *RBACStore) UpdateAssignment(ctx context.Context, userID, roleID, assignedBy string, expiresAt *time.Time) error {
	res := s.db.WithContext(ctx).
		Model(&roleAssignmentModel{}).
		Where("user_id = ? AND role_id = ?", userID, roleID).
		Updates(map[string]any{
			"assigned_by": assignedBy,
			"expires_at":  expiresAt,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return rbac.ErrAssignmentNotFound
	}
	return nil
}

// RemoveAssignment describes the removeassignment operation and its observable behavior.
//
// RemoveAssignment may return an error when input validation, dependency calls, or security checks fail.
func (s *RBACStore) RemoveAssignment(ctx context.Context, userID, roleID string) error {
	res := s.db.WithContext(ctx).
		Where("user_id = ? AND role_id = ?", userID, roleID).
		Delete(&roleAssignmentModel{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return rbac.ErrAssignmentNotFound
	}
	return nil
}

// AssignmentsForUser describes the assignmentsforuser operation and its observable behavior.
//
// AssignmentsForUser may return an error when input validation, dependency calls, or security checks fail.
func (s *RBACStore) AssignmentsForUser(ctx context.Context, tenantID, userID string) ([]*rbac.Assignment, error) {
	var rows []roleAssignmentModel
	err := s.db.WithContext(ctx).
		Where("tenant_id = ? AND user_id = ?", tenantID, userID).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}

	out := make([]*rbac.Assignment, 0, len(rows))
	for i := range rows {
		row := rows[i]
		out = append(out, &rbac.Assignment{
			ID:         row.ID,
			TenantID:   row.TenantID,
			UserID:     row.UserID,
			RoleID:     row.RoleID,
			AssignedBy: row.AssignedBy,
			AssignedAt: row.AssignedAt,
			ExpiresAt:  row.ExpiresAt,
		})
	}
	return out, nil
}

// CountLiveAssignments describes the countliveassignments operation and its observable behavior.
//
// CountLiveAssignments may return an error when input validation, dependency calls, or security checks fail.
func (s *RBACStore) CountLiveAssignments(ctx context.Context, roleID string, now time.Time) (int, error) {
	var count int64
	err := s.db.WithContext(ctx).
		Model(&roleAssignmentModel{}).
		Where("role_id = ? AND (expires_at IS NULL OR expires_at > ?)", roleID, now).
		Count(&count).Error
	return int(count), err
}

// DeleteExpiredAssignments describes the deleteexpiredassignments operation and its observable behavior.
//
// DeleteExpiredAssignments may return an error when input validation, dependency calls, or security checks fail.
func (s *RBACStore) DeleteExpiredAssignments(ctx context.Context, before time.Time) (int, error) {
	res := s.db.WithContext(ctx).
		Where("expires_at IS NOT NULL AND expires_at < ?", before).
		Delete(&roleAssignmentModel{})
	return int(res.RowsAffected), res.Error
}
