package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/viralforge/mesh/services/core-platform/M04-user-directory-service/internal/domain"
	"github.com/viralforge/mesh/services/core-platform/M04-user-directory-service/internal/ports"
)

func newMockStore(t *testing.T, timeout time.Duration) (*userStore, sqlmock.Sqlmock) {
	t.Helper()
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })

	db, err := gorm.Open(postgres.New(postgres.Config{Conn: sqlDB}), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	return &userStore{db: db, timeout: timeout}, mock
}

func userColumns() []string {
	return []string{"user_id", "username", "name", "phone", "photo", "date_of_birth", "phone_visibility", "birth_visibility", "created_at", "updated_at"}
}

func TestUserStoreGetByPhone(t *testing.T) {
	store, mock := newMockStore(t, time.Second)
	id := uuid.New()
	created := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	dob := time.Date(1990, 4, 12, 0, 0, 0, 0, time.UTC)

	mock.ExpectQuery(`SELECT \* FROM "directory_users" WHERE phone = \$1`).
		WillReturnRows(sqlmock.NewRows(userColumns()).
			AddRow(id.String(), "alice", "Alice A", "+79261234567", "", dob, "SOME", "NONE", created, created))

	user, err := store.GetByPhone(context.Background(), "+79261234567")
	require.NoError(t, err)
	assert.Equal(t, id, user.ID)
	assert.Equal(t, "alice", user.Username)
	assert.Equal(t, domain.VisibilitySome, user.PhoneVisibility)
	assert.Equal(t, domain.VisibilityNone, user.BirthVisibility)
	require.NotNil(t, user.DateOfBirth)
	assert.True(t, dob.Equal(*user.DateOfBirth))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUserStoreGetByUsernameNotFound(t *testing.T) {
	store, mock := newMockStore(t, time.Second)
	mock.ExpectQuery(`SELECT \* FROM "directory_users" WHERE username = \$1`).
		WillReturnRows(sqlmock.NewRows(userColumns()))

	_, err := store.GetByUsername(context.Background(), "ghost")
	require.ErrorIs(t, err, domain.ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUserStoreDriverErrorIsHidden(t *testing.T) {
	store, mock := newMockStore(t, time.Second)
	mock.ExpectQuery(`SELECT \* FROM "directory_users" WHERE user_id = \$1`).
		WillReturnError(errors.New("connection reset by peer"))

	_, err := store.GetByID(context.Background(), uuid.New())
	require.ErrorIs(t, err, domain.ErrStorageUnavailable)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUserStoreSlowQueryTimesOut(t *testing.T) {
	store, mock := newMockStore(t, 20*time.Millisecond)
	mock.ExpectQuery(`SELECT \* FROM "directory_users" WHERE phone = \$1`).
		WillDelayFor(time.Second).
		WillReturnRows(sqlmock.NewRows(userColumns()))

	_, err := store.GetByPhone(context.Background(), "+79261234567")
	require.ErrorIs(t, err, domain.ErrStorageUnavailable)
}

func TestUserStoreGetAllowList(t *testing.T) {
	store, mock := newMockStore(t, time.Second)
	owner, v1, v2 := uuid.New(), uuid.New(), uuid.New()
	mock.ExpectQuery(`SELECT "viewer_id" FROM "visibility_grants" WHERE owner_id = \$1 AND field_kind = \$2`).
		WillReturnRows(sqlmock.NewRows([]string{"viewer_id"}).AddRow(v1.String()).AddRow(v2.String()))

	list, err := store.GetAllowList(context.Background(), owner, domain.FieldKindDateOfBirth)
	require.NoError(t, err)
	assert.True(t, list.Contains(v1))
	assert.True(t, list.Contains(v2))
	assert.Len(t, list, 2)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUserStoreCreateUniqueViolation(t *testing.T) {
	store, mock := newMockStore(t, time.Second)
	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO "directory_users"`).
		WillReturnError(&pgconn.PgError{Code: "23505", Message: "duplicate key value violates unique constraint"})
	mock.ExpectRollback()

	_, err := store.Create(context.Background(), ports.CreateUserParams{
		ID:              uuid.New(),
		Username:        "alice",
		Name:            "Alice A",
		Phone:           "+79261234567",
		PhoneVisibility: domain.VisibilityAll,
		BirthVisibility: domain.VisibilityAll,
		CreatedAt:       time.Now().UTC(),
	})
	require.ErrorIs(t, err, domain.ErrAlreadyExists)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUserStoreUpdateRejectsUnknownField(t *testing.T) {
	store, mock := newMockStore(t, time.Second)
	_, err := store.Update(context.Background(), uuid.New(), domain.UserMutation{Field: domain.MutableField("created_at")})
	require.ErrorIs(t, err, domain.ErrInvalidInput)
	require.NoError(t, mock.ExpectationsWereMet(), "no statement is issued for an unknown field")
}

func TestIsUniqueViolation(t *testing.T) {
	assert.True(t, isUniqueViolation(gorm.ErrDuplicatedKey))
	assert.True(t, isUniqueViolation(&pgconn.PgError{Code: "23505"}))
	assert.False(t, isUniqueViolation(&pgconn.PgError{Code: "23503"}))
	assert.False(t, isUniqueViolation(nil))
}
