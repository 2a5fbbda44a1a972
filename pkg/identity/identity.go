package identity

import (
	"context"
	"net/http"

	"github.com/doodlesbykumbi/identity-in-go/pkg/model"
)

// Identity is a read/write handle over the Context of one request. It is a
// view, not an owner: copies share the same Context.
type Identity struct {
	s *slot
}

// FromContext returns the facade for the request that ctx belongs to.
func FromContext(ctx context.Context) Identity {
	return Identity{s: lookup(ctx)}
}

// FromRequest returns the facade for r.
func FromRequest(r *http.Request) Identity {
	return FromContext(r.Context())
}

// Installed reports whether a Context is currently installed.
func (i Identity) Installed() bool {
	return i.s != nil && i.s.item != nil
}

// Get returns a copy of the current user.
// It panics with ErrMissingContext if no Context is installed.
func (i Identity) Get() model.User {
	if !i.Installed() {
		panic(ErrMissingContext)
	}
	return i.s.item.User.Clone()
}

// Set replaces the current user and marks the identity as changed.
func (i Identity) Set(user model.User) {
	if !i.Installed() {
		return
	}
	i.s.item.User = user
	i.s.item.Changed = true
}

// Clear asks the policy to forget the identity on response.
func (i Identity) Clear() {
	if !i.Installed() {
		return
	}
	i.s.item.Changed = true
	i.s.item.Forget = true
}

// Carrier is anything that carries a request context, such as *http.Request.
type Carrier interface {
	Context() context.Context
}

// CurrentUser returns the current user of the request c belongs to.
// It panics with ErrMissingContext if no Context is installed.
func CurrentUser(c Carrier) model.User {
	return FromContext(c.Context()).Get()
}

// UserFromContext returns the current user and whether one is installed.
func UserFromContext(ctx context.Context) (model.User, bool) {
	id := FromContext(ctx)
	if !id.Installed() {
		return model.User{}, false
	}
	return id.Get(), true
}
