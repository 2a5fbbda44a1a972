package identity

import (
	"context"

	"github.com/doodlesbykumbi/identity-in-go/pkg/model"
)

// contextKey is a private type for context keys to avoid collisions.
type contextKey int

const (
	slotKey contextKey = iota
)

// Context is the per-request identity state.
type Context struct {
	// User is the current identity of the request.
	User model.User
	// Changed is set whenever the identity is replaced or cleared.
	Changed bool
	// Forget is set when the identity must be invalidated on response.
	Forget bool
}

// NewContext returns a fresh, unchanged Context for user.
func NewContext(user model.User) *Context {
	return &Context{User: user}
}

// slot is the single mutable cell a request carries. Removing the Context
// empties the cell for every holder of the request context.
type slot struct {
	item *Context
}

// Install attaches c to ctx and returns the derived context.
func Install(ctx context.Context, c *Context) context.Context {
	return context.WithValue(ctx, slotKey, &slot{item: c})
}

// Remove detaches the Context installed in ctx and returns it, or nil if
// there is none.
func Remove(ctx context.Context) *Context {
	s, ok := ctx.Value(slotKey).(*slot)
	if !ok || s.item == nil {
		return nil
	}
	c := s.item
	s.item = nil
	return c
}

func lookup(ctx context.Context) *slot {
	if ctx == nil {
		return nil
	}
	s, _ := ctx.Value(slotKey).(*slot)
	return s
}
