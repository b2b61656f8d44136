package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/grievance-api/internal/models"
)

func newMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	sqlxdb := sqlx.NewDb(db, "sqlmock")
	return sqlxdb, mock, func() {
		db.Close()
	}
}

var userColumnNames = []string{"id", "email", "password_hash", "full_name", "role", "department", "phone", "telegram_chat_id", "active", "last_login", "created_at", "updated_at"}

func TestFindByEmail(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewUserRepository(db)

	now := time.Now()
	rows := sqlmock.NewRows(userColumnNames).
		AddRow("1", "dean@uni.edu", "hash", "Dean", string(models.RoleAdmin), "Registry", nil, nil, true, now, now, now)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT " + userColumns + " FROM users WHERE LOWER(email) = LOWER($1) LIMIT 1")).
		WithArgs("Dean@uni.edu").
		WillReturnRows(rows)

	user, err := repo.FindByEmail(context.Background(), "Dean@uni.edu")
	require.NoError(t, err)
	assert.Equal(t, "dean@uni.edu", user.Email)
	require.NotNil(t, user.Department)
	assert.Equal(t, "Registry", *user.Department)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFindByIDNotFound(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewUserRepository(db)

	mock.ExpectQuery("FROM users WHERE id = \\$1").WithArgs("missing").WillReturnError(sql.ErrNoRows)

	_, err := repo.FindByID(context.Background(), "missing")
	assert.ErrorIs(t, err, sql.ErrNoRows)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListByRoles(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewUserRepository(db)

	now := time.Now()
	rows := sqlmock.NewRows(userColumnNames).
		AddRow("a1", "admin@uni.edu", "hash", "Admin", "admin", nil, "+1555", nil, true, nil, now, now).
		AddRow("s1", "root@uni.edu", "hash", "Root", "super_admin", nil, nil, "42", true, nil, now, now)
	mock.ExpectQuery(regexp.QuoteMeta("FROM users WHERE active = TRUE AND role IN (?, ?) ORDER BY created_at ASC")).
		WithArgs(models.RoleAdmin, models.RoleSuperAdmin).
		WillReturnRows(rows)

	users, err := repo.ListByRoles(context.Background(), []models.UserRole{models.RoleAdmin, models.RoleSuperAdmin})
	require.NoError(t, err)
	require.Len(t, users, 2)
	assert.Equal(t, "+1555", users[0].Recipient().Phone)
	assert.Equal(t, "42", users[1].Recipient().ChatID)
	assert.NoError(t, mock.ExpectationsWereMet())

	empty, err := repo.ListByRoles(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestCreateUserDuplicateEmail(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewUserRepository(db)

	mock.ExpectExec("INSERT INTO users").WillReturnError(&pq.Error{Code: "23505", Constraint: "users_email_key"})

	err := repo.Create(context.Background(), &models.User{Email: " Admin@Uni.edu ", FullName: "Admin", Role: models.RoleAdmin, Active: true})
	assert.ErrorIs(t, err, ErrDuplicateEmail)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateRefreshToken(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewUserRepository(db)

	mock.ExpectExec("INSERT INTO refresh_tokens").WillReturnResult(sqlmock.NewResult(1, 1))

	err := repo.CreateRefreshToken(context.Background(), &models.RefreshToken{ID: "1", UserID: "u1", Token: "token", ExpiresAt: time.Now(), CreatedAt: time.Now()})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateAuditLog(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewAuditRepository(db)

	mock.ExpectExec("INSERT INTO audit_logs").WillReturnResult(sqlmock.NewResult(1, 1))

	entry := &models.AuditLog{Action: models.AuditActionGrievanceStatus, Resource: models.AuditResourceGrievance}
	require.NoError(t, repo.CreateAuditLog(context.Background(), entry))
	assert.NotEmpty(t, entry.ID)
	assert.False(t, entry.CreatedAt.IsZero())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListAuditByResource(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewAuditRepository(db)

	now := time.Now()
	rows := sqlmock.NewRows([]string{"id", "user_id", "action", "resource", "resource_id", "old_values", "new_values", "ip_address", "user_agent", "created_at"}).
		AddRow("a1", "u1", models.AuditActionGrievanceStatus, "grievance", "g1", []byte(`{"status":"submitted"}`), []byte(`{"status":"in_progress"}`), "", "", now)
	mock.ExpectQuery("FROM audit_logs WHERE resource = \\$1 AND resource_id = \\$2").WithArgs("grievance", "g1").WillReturnRows(rows)

	logs, err := repo.ListByResource(context.Background(), "grievance", "g1")
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.JSONEq(t, `{"status":"in_progress"}`, string(logs[0].NewValues))
	assert.NoError(t, mock.ExpectationsWereMet())
}
