package gorm

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/doodlesbykumbi/identity-in-go/pkg/model"
	"github.com/doodlesbykumbi/identity-in-go/pkg/pool"
	"github.com/doodlesbykumbi/identity-in-go/pkg/server/store"
)

var userColumns = []string{"id", "account", "login", "display_name", "email", "created_at", "updated_at"}

func setupTestDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	t.Helper()
	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = mockDB.Close() })

	gormDB, err := gorm.Open(
		postgres.New(postgres.Config{
			Conn:                 mockDB,
			PreferSimpleProtocol: true,
		}),
		&gorm.Config{
			Logger: logger.Default.LogMode(logger.Silent),
		},
	)
	require.NoError(t, err)

	return gormDB, mock
}

func checkout(t *testing.T, db *gorm.DB) pool.Resource {
	t.Helper()
	p, err := pool.New(db, pool.Options{MaxOpen: 2, MaxIdle: 1, CheckoutTimeout: time.Second})
	require.NoError(t, err)
	res, err := p.Checkout(context.Background())
	require.NoError(t, err)
	t.Cleanup(func() { _ = res.Release() })
	return res
}

func TestUsersStore_LookupUser(t *testing.T) {
	db, mock := setupTestDB(t)
	users := NewUsersStore(db)
	res := checkout(t, db)

	now := time.Now()
	mock.ExpectQuery(`SELECT \* FROM "users" WHERE account = \$1 AND login = \$2`).
		WithArgs("myorg", "alice").
		WillReturnRows(sqlmock.NewRows(userColumns).AddRow(42, "myorg", "alice", "Alice", "alice@example.com", now, now))

	user, err := users.LookupUser(context.Background(), res, "myorg:user:alice")
	require.NoError(t, err)
	assert.Equal(t, uint64(42), user.ID)
	assert.Equal(t, "myorg:user:alice", user.RoleID())
	assert.Equal(t, "Alice", user.DisplayName)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUsersStore_LookupUser_Host(t *testing.T) {
	db, mock := setupTestDB(t)
	users := NewUsersStore(db)
	res := checkout(t, db)

	now := time.Now()
	mock.ExpectQuery(`SELECT \* FROM "users" WHERE account = \$1 AND login = \$2`).
		WithArgs("myorg", "host/apps/web").
		WillReturnRows(sqlmock.NewRows(userColumns).AddRow(7, "myorg", "host/apps/web", "", "", now, now))

	user, err := users.LookupUser(context.Background(), res, "myorg:host:apps/web")
	require.NoError(t, err)
	assert.Equal(t, "myorg:host:apps/web", user.RoleID())
}

func TestUsersStore_LookupUser_NotFound(t *testing.T) {
	db, mock := setupTestDB(t)
	users := NewUsersStore(db)
	res := checkout(t, db)

	mock.ExpectQuery(`SELECT \* FROM "users"`).
		WithArgs("myorg", "ghost").
		WillReturnRows(sqlmock.NewRows(userColumns))

	_, err := users.LookupUser(context.Background(), res, "myorg:user:ghost")
	assert.ErrorIs(t, err, store.ErrUserNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUsersStore_LookupUser_MalformedToken(t *testing.T) {
	db, mock := setupTestDB(t)
	users := NewUsersStore(db)
	res := checkout(t, db)

	_, err := users.LookupUser(context.Background(), res, "not-a-role-id")
	assert.ErrorIs(t, err, store.ErrUserNotFound)
	assert.NoError(t, mock.ExpectationsWereMet(), "no query for malformed tokens")
}

func TestUsersStore_LookupUser_DatabaseError(t *testing.T) {
	db, mock := setupTestDB(t)
	users := NewUsersStore(db)
	res := checkout(t, db)

	dbErr := errors.New("connection reset")
	mock.ExpectQuery(`SELECT \* FROM "users"`).WillReturnError(dbErr)

	_, err := users.LookupUser(context.Background(), res, "myorg:user:alice")
	assert.ErrorIs(t, err, dbErr)
	assert.NotErrorIs(t, err, store.ErrUserNotFound)
}

func TestUsersStore_CreateUser(t *testing.T) {
	db, mock := setupTestDB(t)
	users := NewUsersStore(db)

	mock.ExpectBegin()
	mock.ExpectQuery(`INSERT INTO "users"`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(5))
	mock.ExpectCommit()

	user := &model.User{Account: "myorg", Login: "alice"}
	require.NoError(t, users.CreateUser(context.Background(), user))
	assert.Equal(t, uint64(5), user.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUsersStore_CreateUser_Duplicate(t *testing.T) {
	db, mock := setupTestDB(t)
	users := NewUsersStore(db)

	mock.ExpectBegin()
	mock.ExpectQuery(`INSERT INTO "users"`).
		WillReturnError(&pgconn.PgError{Code: "23505", Message: "duplicate key value violates unique constraint"})
	mock.ExpectRollback()

	err := users.CreateUser(context.Background(), &model.User{Account: "myorg", Login: "alice"})
	assert.ErrorIs(t, err, store.ErrUserExists)
}

func TestUsersStore_CreateUser_RequiresLogin(t *testing.T) {
	db, _ := setupTestDB(t)
	users := NewUsersStore(db)

	err := users.CreateUser(context.Background(), &model.User{Account: "myorg"})
	assert.Error(t, err)
}

func TestUsersStore_UpdateProfile(t *testing.T) {
	db, mock := setupTestDB(t)
	users := NewUsersStore(db)

	now := time.Now()
	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE "users" SET`).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()
	mock.ExpectQuery(`SELECT \* FROM "users" WHERE account = \$1 AND login = \$2`).
		WithArgs("myorg", "alice").
		WillReturnRows(sqlmock.NewRows(userColumns).AddRow(42, "myorg", "alice", "Alice L.", "", now, now))

	name := "Alice L."
	user, err := users.UpdateProfile(context.Background(), "myorg:user:alice", store.Profile{DisplayName: &name})
	require.NoError(t, err)
	assert.Equal(t, "Alice L.", user.DisplayName)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUsersStore_UpdateProfile_NotFound(t *testing.T) {
	db, mock := setupTestDB(t)
	users := NewUsersStore(db)

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE "users" SET`).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()

	email := "ghost@example.com"
	_, err := users.UpdateProfile(context.Background(), "myorg:user:ghost", store.Profile{Email: &email})
	assert.ErrorIs(t, err, store.ErrUserNotFound)
}

func TestHealthStore(t *testing.T) {
	db, mock := setupTestDB(t)
	health := NewHealthStore(db)

	mock.ExpectExec("SELECT 1").WillReturnResult(sqlmock.NewResult(0, 0))
	assert.NoError(t, health.CheckConnectivity(context.Background()))

	mock.ExpectExec("SELECT 1").WillReturnError(errors.New("down"))
	assert.Error(t, health.CheckConnectivity(context.Background()))
}
