package gormstore

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/crmforge/authcore"
	"github.com/crmforge/authcore/rbac"
	"github.com/crmforge/authcore/sessions"
)

func newMockDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	t.Helper()

	sqlDB, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error: %v", err)
	}
	t.Cleanup(func() { _ = sqlDB.Close() })

	db, err := gorm.Open(postgres.New(postgres.Config{
		Conn:                 sqlDB,
		PreferSimpleProtocol: true,
	}), &gorm.Config{
		TranslateError:         true,
		SkipDefaultTransaction: true,
	})
	if err != nil {
		t.Fatalf("gorm.Open error: %v", err)
	}
	return db, mock
}

func expectMet(t *testing.T, mock sqlmock.Sqlmock) {
	t.Helper()
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations not met: %v", err)
	}
}

func TestUserStoreGetByIDNotFound(t *testing.T) {
	db, mock := newMockDB(t)
	store := NewUserStore(db)

	mock.ExpectQuery(`SELECT (.+) FROM "users"`).
		WithArgs("missing", 1).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	_, err := store.GetByID(context.Background(), "missing")
	if !errors.Is(err, authcore.ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound, got: %v", err)
	}
	expectMet(t, mock)
}

func TestUserStoreGetByIdentifier(t *testing.T) {
	db, mock := newMockDB(t)
	store := NewUserStore(db)

	until := time.Now().Add(time.Hour)
	rows := sqlmock.NewRows([]string{
		"id", "tenant_id", "handle", "email", "password_hash",
		"is_active", "is_superuser", "failed_login_attempts", "locked_until",
	}).AddRow("u1", "t1", "alice", "alice@example.com", "argon2-hash", true, false, 3, until)

	mock.ExpectQuery(`SELECT (.+) FROM "users" WHERE tenant_id = (.+) AND \(handle = (.+) OR LOWER\(email\) = LOWER\((.+)\)\)`).
		WithArgs("t1", "Alice@Example.com", "Alice@Example.com", 1).
		WillReturnRows(rows)

	// Case-folded email form resolves; the folding happens in SQL.
	user, err := store.GetByIdentifier(context.Background(), "t1", "Alice@Example.com")
	if err != nil {
		t.Fatalf("GetByIdentifier error: %v", err)
	}
	if user.ID != "u1" || user.Handle != "alice" || user.FailedLoginAttempts != 3 {
		t.Fatalf("unexpected user: %+v", user)
	}
	if user.LockedUntil == nil {
		t.Fatal("expected locked_until to survive the mapping")
	}
	expectMet(t, mock)
}

func TestUserStoreUpdatePasswordHash(t *testing.T) {
	db, mock := newMockDB(t)
	store := NewUserStore(db)

	// Updates() stamps updated_at alongside the named column.
	mock.ExpectExec(`UPDATE "users" SET`).
		WithArgs("new-hash", sqlmock.AnyArg(), "u1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := store.UpdatePasswordHash(context.Background(), "u1", "new-hash"); err != nil {
		t.Fatalf("UpdatePasswordHash error: %v", err)
	}
	expectMet(t, mock)
}

func TestUserStoreUpdateMissingRow(t *testing.T) {
	db, mock := newMockDB(t)
	store := NewUserStore(db)

	mock.ExpectExec(`UPDATE "users" SET`).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := store.SetActive(context.Background(), "missing", false)
	if !errors.Is(err, authcore.ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound, got: %v", err)
	}
	expectMet(t, mock)
}

func TestRegisterFailedLoginLocksAtThreshold(t *testing.T) {
	db, mock := newMockDB(t)
	store := NewUserStore(db)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT (.+) FROM "users" WHERE id = (.+) FOR UPDATE`).
		WithArgs("u1", 1).
		WillReturnRows(sqlmock.NewRows([]string{"id", "failed_login_attempts"}).AddRow("u1", 4))
	// Counter advances to 5 and stays there; locking sets locked_until
	// without rewinding it.
	mock.ExpectExec(`UPDATE "users" SET`).
		WithArgs(5, sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), "u1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	locked, err := store.RegisterFailedLogin(context.Background(), "u1", time.Now(), 5, 30*time.Minute)
	if err != nil {
		t.Fatalf("RegisterFailedLogin error: %v", err)
	}
	if !locked {
		t.Fatal("expected the fifth failure to lock")
	}
	expectMet(t, mock)
}

func TestRegisterFailedLoginBelowThreshold(t *testing.T) {
	db, mock := newMockDB(t)
	store := NewUserStore(db)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT (.+) FROM "users" WHERE id = (.+) FOR UPDATE`).
		WithArgs("u1", 1).
		WillReturnRows(sqlmock.NewRows([]string{"id", "failed_login_attempts"}).AddRow("u1", 1))
	mock.ExpectExec(`UPDATE "users" SET`).
		WithArgs(2, sqlmock.AnyArg(), sqlmock.AnyArg(), "u1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	locked, err := store.RegisterFailedLogin(context.Background(), "u1", time.Now(), 5, 30*time.Minute)
	if err != nil {
		t.Fatalf("RegisterFailedLogin error: %v", err)
	}
	if locked {
		t.Fatal("second failure must not lock")
	}
	expectMet(t, mock)
}

func TestRegisterFailedLoginUnknownUser(t *testing.T) {
	db, mock := newMockDB(t)
	store := NewUserStore(db)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT (.+) FROM "users" WHERE id = (.+) FOR UPDATE`).
		WithArgs("missing", 1).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))
	mock.ExpectRollback()

	_, err := store.RegisterFailedLogin(context.Background(), "missing", time.Now(), 5, 30*time.Minute)
	if !errors.Is(err, authcore.ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound, got: %v", err)
	}
	expectMet(t, mock)
}

func TestAttemptStoreRecord(t *testing.T) {
	db, mock := newMockDB(t)
	store := NewAttemptStore(db)

	mock.ExpectExec(`INSERT INTO "login_attempts"`).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := store.Record(context.Background(), authcore.LoginAttempt{
		ID:         "a1",
		TenantID:   "t1",
		Identifier: "alice",
		UserID:     "u1",
		Success:    false,
		Reason:     "invalid_password",
		At:         time.Now(),
	})
	if err != nil {
		t.Fatalf("Record error: %v", err)
	}
	expectMet(t, mock)
}

func TestSessionStoreEndByKeyMissing(t *testing.T) {
	db, mock := newMockDB(t)
	store := NewSessionStore(db)

	mock.ExpectExec(`UPDATE "sessions" SET`).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := store.EndByKey(context.Background(), "missing", time.Now())
	if !errors.Is(err, sessions.ErrNotFound) {
		t.Fatalf("expected sessions.ErrNotFound, got: %v", err)
	}
	expectMet(t, mock)
}

func TestSessionStoreEndAllForUser(t *testing.T) {
	db, mock := newMockDB(t)
	store := NewSessionStore(db)

	mock.ExpectExec(`UPDATE "sessions" SET (.+) session_key <> (.+)`).
		WillReturnResult(sqlmock.NewResult(0, 2))

	count, err := store.EndAllForUser(context.Background(), "t1", "u1", "keep-key", time.Now())
	if err != nil {
		t.Fatalf("EndAllForUser error: %v", err)
	}
	if count != 2 {
		t.Fatalf("expected 2 ended sessions, got %d", count)
	}
	expectMet(t, mock)
}

func TestSessionStoreRotateKeyMissing(t *testing.T) {
	db, mock := newMockDB(t)
	store := NewSessionStore(db)

	mock.ExpectExec(`UPDATE "sessions" SET`).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := store.RotateKey(context.Background(), "old", "new", time.Now())
	if !errors.Is(err, sessions.ErrNotFound) {
		t.Fatalf("expected sessions.ErrNotFound, got: %v", err)
	}
	expectMet(t, mock)
}

func TestUserStoreGetByEmailFoldsCase(t *testing.T) {
	db, mock := newMockDB(t)
	store := NewUserStore(db)

	rows := sqlmock.NewRows([]string{"id", "tenant_id", "email"}).
		AddRow("u1", "t1", "alice@example.com")

	mock.ExpectQuery(`SELECT (.+) FROM "users" WHERE tenant_id = (.+) AND LOWER\(email\) = LOWER\((.+)\)`).
		WithArgs("t1", "ALICE@example.com", 1).
		WillReturnRows(rows)

	user, err := store.GetByEmail(context.Background(), "t1", "ALICE@example.com")
	if err != nil {
		t.Fatalf("GetByEmail error: %v", err)
	}
	if user.ID != "u1" {
		t.Fatalf("unexpected user: %+v", user)
	}
	expectMet(t, mock)
}

func TestRBACCreatePermissionUpsert(t *testing.T) {
	db, mock := newMockDB(t)
	store := NewRBACStore(db)

	// Conflicting codename: the insert no-ops and the existing row's
	// identity is adopted.
	mock.ExpectExec(`INSERT INTO "permissions" (.+) ON CONFLICT \("codename"\) DO NOTHING`).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(`SELECT (.+) FROM "permissions" WHERE codename =`).
		WithArgs("contact.view", 1).
		WillReturnRows(sqlmock.NewRows([]string{"id", "codename"}).
			AddRow("p-existing", "contact.view"))

	perm := &rbac.Permission{
		ID:        "p-new",
		Codename:  "contact.view",
		Name:      "Can view contact",
		Resource:  "contact",
		CreatedAt: time.Now(),
	}
	if err := store.CreatePermission(context.Background(), perm); err != nil {
		t.Fatalf("CreatePermission error: %v", err)
	}
	if perm.ID != "p-existing" {
		t.Fatalf("expected the existing identity, got %q", perm.ID)
	}
	expectMet(t, mock)
}

func TestRBACCreateAssignmentDuplicate(t *testing.T) {
	db, mock := newMockDB(t)
	store := NewRBACStore(db)

	mock.ExpectExec(`INSERT INTO "role_assignments"`).
		WillReturnError(&pgconn.PgError{Code: "23505"})

	err := store.CreateAssignment(context.Background(), &rbac.Assignment{
		ID:         "a1",
		TenantID:   "t1",
		UserID:     "u1",
		RoleID:     "r1",
		AssignedAt: time.Now(),
	})
	if !errors.Is(err, rbac.ErrDuplicateAssignment) {
		t.Fatalf("expected ErrDuplicateAssignment, got: %v", err)
	}
	expectMet(t, mock)
}

func TestRBACCreateRoleDuplicateName(t *testing.T) {
	db, mock := newMockDB(t)
	store := NewRBACStore(db)

	mock.ExpectExec(`INSERT INTO "roles"`).
		WillReturnError(&pgconn.PgError{Code: "23505"})

	err := store.CreateRole(context.Background(), &rbac.Role{
		ID:        "r1",
		TenantID:  "t1",
		Name:      "sales",
		CreatedAt: time.Now(),
	})
	if !errors.Is(err, rbac.ErrDuplicateRole) {
		t.Fatalf("expected ErrDuplicateRole, got: %v", err)
	}
	expectMet(t, mock)
}

func TestRBACDeleteRoleAtomic(t *testing.T) {
	db, mock := newMockDB(t)
	store := NewRBACStore(db)

	mock.ExpectBegin()
	mock.ExpectExec(`DELETE FROM "role_permissions"`).
		WithArgs("r1").
		WillReturnResult(sqlmock.NewResult(0, 3))
	mock.ExpectExec(`DELETE FROM "roles"`).
		WithArgs("r1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	if err := store.DeleteRole(context.Background(), "r1"); err != nil {
		t.Fatalf("DeleteRole error: %v", err)
	}
	expectMet(t, mock)
}

func TestRBACDeleteRoleMissingRollsBack(t *testing.T) {
	db, mock := newMockDB(t)
	store := NewRBACStore(db)

	mock.ExpectBegin()
	mock.ExpectExec(`DELETE FROM "role_permissions"`).
		WithArgs("missing").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(`DELETE FROM "roles"`).
		WithArgs("missing").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	err := store.DeleteRole(context.Background(), "missing")
	if !errors.Is(err, rbac.ErrRoleNotFound) {
		t.Fatalf("expected ErrRoleNotFound, got: %v", err)
	}
	expectMet(t, mock)
}

func TestRBACCountLiveAssignments(t *testing.T) {
	db, mock := newMockDB(t)
	store := NewRBACStore(db)

	mock.ExpectQuery(`SELECT count\(\*\) FROM "role_assignments"`).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(2))

	count, err := store.CountLiveAssignments(context.Background(), "r1", time.Now())
	if err != nil {
		t.Fatalf("CountLiveAssignments error: %v", err)
	}
	if count != 2 {
		t.Fatalf("expected 2 live assignments, got %d", count)
	}
	expectMet(t, mock)
}
