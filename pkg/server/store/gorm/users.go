package gorm

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgconn"
	"gorm.io/gorm"

	"github.com/doodlesbykumbi/identity-in-go/pkg/model"
	"github.com/doodlesbykumbi/identity-in-go/pkg/pool"
	"github.com/doodlesbykumbi/identity-in-go/pkg/server/store"
)

// uniqueViolation is the PostgreSQL error code for unique constraint failures
const uniqueViolation = "23505"

// Ensure UsersStore implements store.UsersStore
var _ store.UsersStore = (*UsersStore)(nil)

// UsersStore implements store.UsersStore using GORM
type UsersStore struct {
	db *gorm.DB
}

// NewUsersStore creates a new UsersStore
func NewUsersStore(db *gorm.DB) *UsersStore {
	return &UsersStore{db: db}
}

// LookupUser resolves a role ID token on the checked out connection
func (s *UsersStore) LookupUser(ctx context.Context, res pool.Resource, token string) (*model.User, error) {
	return findUser(res.DB().WithContext(ctx), token)
}

// CreateUser stores a new user
func (s *UsersStore) CreateUser(ctx context.Context, user *model.User) error {
	if user.Account == "" || user.Login == "" {
		return fmt.Errorf("account and login are required")
	}

	err := s.db.WithContext(ctx).Create(user).Error
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return fmt.Errorf("%w: %s", store.ErrUserExists, user.RoleID())
	}
	return err
}

// FetchUser retrieves a user by role ID
func (s *UsersStore) FetchUser(ctx context.Context, roleID string) (*model.User, error) {
	return findUser(s.db.WithContext(ctx), roleID)
}

// UpdateProfile applies profile changes and returns the updated user
func (s *UsersStore) UpdateProfile(ctx context.Context, roleID string, profile store.Profile) (*model.User, error) {
	account, login, err := model.ParseRoleID(roleID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", store.ErrUserNotFound, err)
	}

	updates := map[string]interface{}{}
	if profile.DisplayName != nil {
		updates["display_name"] = *profile.DisplayName
	}
	if profile.Email != nil {
		updates["email"] = *profile.Email
	}

	db := s.db.WithContext(ctx)
	if len(updates) > 0 {
		tx := db.Model(&model.User{}).Where("account = ? AND login = ?", account, login).Updates(updates)
		if tx.Error != nil {
			return nil, tx.Error
		}
		if tx.RowsAffected == 0 {
			return nil, store.ErrUserNotFound
		}
	}

	return findUser(db, roleID)
}

func findUser(db *gorm.DB, roleID string) (*model.User, error) {
	account, login, err := model.ParseRoleID(roleID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", store.ErrUserNotFound, err)
	}

	var user model.User
	tx := db.Where("account = ? AND login = ?", account, login).First(&user)
	if tx.Error != nil {
		if errors.Is(tx.Error, gorm.ErrRecordNotFound) {
			return nil, store.ErrUserNotFound
		}
		return nil, tx.Error
	}
	return &user, nil
}
