package gormstore

import "time"

type userModel struct {
	ID           string `gorm:"column:id;type:uuid;primaryKey"`
	TenantID     string `gorm:"column:tenant_id;index:idx_users_tenant_handle,unique;index:idx_users_tenant_email,unique"`
	Handle       string `gorm:"column:handle;index:idx_users_tenant_handle,unique"`
	Email        string `gorm:"column:email;index:idx_users_tenant_email,unique"`
	FirstName    string `gorm:"column:first_name"`
	LastName     string `gorm:"column:last_name"`
	PasswordHash string `gorm:"column:password_hash"`

	IsActive    bool `gorm:"column:is_active"`
	IsSuperuser bool `gorm:"column:is_superuser"`

	FailedLoginAttempts int        `gorm:"column:failed_login_attempts"`
	LastFailedLogin     *time.Time `gorm:"column:last_failed_login"`
	LockedUntil         *time.Time `gorm:"column:locked_until"`
	LastLogin           *time.Time `gorm:"column:last_login"`

	CreatedAt time.Time `gorm:"column:created_at"`
	UpdatedAt time.Time `gorm:"column:updated_at"`
}

func (userModel) TableName() string { return "users" }

type loginAttemptModel struct {
	ID         string    `gorm:"column:id;type:uuid;primaryKey"`
	TenantID   string    `gorm:"column:tenant_id"`
	Identifier string    `gorm:"column:identifier"`
	UserID     *string   `gorm:"column:user_id;index"`
	Success    bool      `gorm:"column:success"`
	Reason     string    `gorm:"column:reason"`
	ClientIP   string    `gorm:"column:client_ip"`
	UserAgent  string    `gorm:"column:user_agent"`
	At         time.Time `gorm:"column:at;index"`
}

func (loginAttemptModel) TableName() string { return "login_attempts" }

type sessionModel struct {
	ID         string `gorm:"column:id;type:uuid;primaryKey"`
	TenantID   string `gorm:"column:tenant_id;index:idx_sessions_tenant_user"`
	UserID     string `gorm:"column:user_id;index:idx_sessions_tenant_user"`
	Key        string `gorm:"column:session_key;uniqueIndex"`
	UserAgent  string `gorm:"column:user_agent"`
	DeviceType string `gorm:"column:device_type"`
	ClientIP   string `gorm:"column:client_ip"`
	Location   string `gorm:"column:location"`

	CreatedAt    time.Time  `gorm:"column:created_at"`
	LastActivity time.Time  `gorm:"column:last_activity;index"`
	EndedAt      *time.Time `gorm:"column:ended_at;index"`
}

func (sessionModel) TableName() string { return "sessions" }

type roleModel struct {
	ID          string    `gorm:"column:id;type:uuid;primaryKey"`
	TenantID    string    `gorm:"column:tenant_id;index:idx_roles_tenant_name,unique"`
	Name        string    `gorm:"column:name;index:idx_roles_tenant_name,unique"`
	Description string    `gorm:"column:description"`
	IsSystem    bool      `gorm:"column:is_system"`
	CreatedAt   time.Time `gorm:"column:created_at"`
}

func (roleModel) TableName() string { return "roles" }

type permissionModel struct {
	ID          string    `gorm:"column:id;type:uuid;primaryKey"`
	Codename    string    `gorm:"column:codename;uniqueIndex"`
	Name        string    `gorm:"column:name"`
	Description string    `gorm:"column:description"`
	Resource    string    `gorm:"column:resource"`
	Custom      bool      `gorm:"column:custom"`
	CreatedAt   time.Time `gorm:"column:created_at"`
}

func (permissionModel) TableName() string { return "permissions" }

type rolePermissionModel struct {
	RoleID       string `gorm:"column:role_id;primaryKey"`
	PermissionID string `gorm:"column:permission_id;primaryKey"`
}

func (rolePermissionModel) TableName() string { return "role_permissions" }

type roleAssignmentModel struct {
	ID         string     `gorm:"column:id;type:uuid;primaryKey"`
	TenantID   string     `gorm:"column:tenant_id;index:idx_assignments_tenant_user"`
	UserID     string     `gorm:"column:user_id;index:idx_assignments_tenant_user;index:idx_assignments_user_role,unique"`
	RoleID     string     `gorm:"column:role_id;index:idx_assignments_user_role,unique;index"`
	AssignedBy string     `gorm:"column:assigned_by"`
	AssignedAt time.Time  `gorm:"column:assigned_at"`
	ExpiresAt  *time.Time `gorm:"column:expires_at;index"`
}

func (roleAssignmentModel) TableName() string { return "role_assignments" }
