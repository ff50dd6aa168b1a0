// Package gormstore provides PostgreSQL-backed implementations of the
// authcore persistence interfaces using GORM: the user store with its
// row-locked lockout counter, the login attempt log, the session store,
// and the role/permission store.
package gormstore

import (
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// Open connects to PostgreSQL with error translation enabled so that
// unique violations surface as gorm.ErrDuplicatedKey.
func Open(dsn string) (*gorm.DB, error) {
	return gorm.Open(postgres.Open(dsn), &gorm.Config{TranslateError: true})
}

// AutoMigrate creates or updates the authcore tables.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&userModel{},
		&loginAttemptModel{},
		&sessionModel{},
		&roleModel{},
		&permissionModel{},
		&rolePermissionModel{},
		&roleAssignmentModel{},
	)
}
