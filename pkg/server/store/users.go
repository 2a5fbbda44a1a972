package store

import (
	"context"
	"errors"

	"github.com/doodlesbykumbi/identity-in-go/pkg/model"
	"github.com/doodlesbykumbi/identity-in-go/pkg/pool"
)

var (
	// ErrUserNotFound is returned when no user matches a token or role ID
	ErrUserNotFound = errors.New("user not found")
	// ErrUserExists is returned when creating a user that already exists
	ErrUserExists = errors.New("user already exists")
)

// Profile holds the user fields that may be changed after creation.
// Nil fields are left untouched.
type Profile struct {
	DisplayName *string `json:"display_name,omitempty"`
	Email       *string `json:"email,omitempty"`
}

// UsersStore abstracts user storage operations
type UsersStore interface {
	// LookupUser resolves an identity token to a user using a checked out
	// connection. Unknown and malformed tokens yield ErrUserNotFound.
	LookupUser(ctx context.Context, res pool.Resource, token string) (*model.User, error)

	// CreateUser stores a new user and fills in its ID and timestamps
	CreateUser(ctx context.Context, user *model.User) error

	// FetchUser retrieves a user by role ID
	FetchUser(ctx context.Context, roleID string) (*model.User, error)

	// UpdateProfile applies profile changes and returns the updated user
	UpdateProfile(ctx context.Context, roleID string, profile Profile) (*model.User, error)
}
