package model

import (
	"errors"
	"strings"
	"time"
)

// ErrInvalidRoleID is returned when a role ID is not in account:kind:id form
var ErrInvalidRoleID = errors.New("invalid role id")

// User is an authenticated principal. The identity layer treats it as an
// opaque value and copies it freely.
type User struct {
	ID          uint64    `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	Account     string    `gorm:"column:account;not null" json:"account"`
	Login       string    `gorm:"column:login;not null" json:"login"`
	DisplayName string    `gorm:"column:display_name" json:"display_name,omitempty"`
	Email       string    `gorm:"column:email" json:"email,omitempty"`
	CreatedAt   time.Time `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}

func (User) TableName() string {
	return "users"
}

// RoleID returns the role ID of the user, which is also the identity token
// carried by identity policies.
func (u User) RoleID() string {
	return RoleID(u.Account, u.Login)
}

// Clone returns a copy of the user.
func (u User) Clone() User {
	return u
}

// RoleID constructs a role ID from account and login.
// If login contains a slash, it's treated as "kind/id".
// Otherwise, it's treated as a user login.
func RoleID(account string, login string) string {
	tokens := strings.Split(login, "/")
	if len(tokens) == 1 {
		tokens = []string{"user", login}
	}

	return strings.Join(
		[]string{
			account, tokens[0], strings.Join(tokens[1:], "/"),
		},
		":",
	)
}

// ParseRoleID splits a role ID into account and login. The login keeps the
// "kind/" prefix for non-user kinds so that RoleID(ParseRoleID(x)) == x.
func ParseRoleID(roleID string) (account string, login string, err error) {
	parts := strings.SplitN(roleID, ":", 3)
	if len(parts) != 3 || parts[0] == "" || parts[1] == "" || parts[2] == "" {
		return "", "", ErrInvalidRoleID
	}

	account = parts[0]
	if parts[1] == "user" {
		return account, parts[2], nil
	}
	return account, parts[1] + "/" + parts[2], nil
}
