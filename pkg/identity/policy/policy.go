// Package policy builds the identity policy selected by configuration.
package policy

import (
	"context"
	"errors"
	"fmt"

	"github.com/doodlesbykumbi/identity-in-go/pkg/config"
	"github.com/doodlesbykumbi/identity-in-go/pkg/identity"
	"github.com/doodlesbykumbi/identity-in-go/pkg/identity/policy/bearer"
	"github.com/doodlesbykumbi/identity-in-go/pkg/identity/policy/cookie"
	"github.com/doodlesbykumbi/identity-in-go/pkg/identity/policy/session"
	"github.com/doodlesbykumbi/identity-in-go/pkg/seal"
)

var (
	// ErrMissingDataKey is returned when a policy needs a data key and none was given
	ErrMissingDataKey = errors.New("IDENTITY_DATA_KEY is required for this identity policy")
	// ErrMissingSessionStore is returned when the session policy has no store
	ErrMissingSessionStore = errors.New("a session store is required for the session identity policy")
)

// Issuer produces identity tokens for a role ID in the form the policy
// resolves them.
type Issuer interface {
	Issue(ctx context.Context, roleID string) (string, error)
}

// IssuingPolicy is a Policy that can also issue tokens
type IssuingPolicy interface {
	identity.Policy
	Issuer
}

// Deps are the collaborators a policy may need
type Deps struct {
	// DataKey seals cookies and signs bearer tokens
	DataKey []byte
	// Sessions backs the session policy
	Sessions session.Store
}

// New returns the policy named by cfg.IdentityPolicy
func New(cfg *config.Config, deps Deps) (IssuingPolicy, error) {
	switch cfg.IdentityPolicy {
	case config.PolicyCookie:
		if len(deps.DataKey) == 0 {
			return nil, ErrMissingDataKey
		}
		cipher, err := seal.NewSymmetric(deps.DataKey)
		if err != nil {
			return nil, err
		}
		return cookie.New(cipher, cookie.Options{
			Name:   cfg.CookieName,
			Domain: cfg.CookieDomain,
			Path:   cfg.CookiePath,
			Secure: cfg.CookieSecure,
			MaxAge: cfg.CookieLifetime(),
		}), nil

	case config.PolicyBearer:
		if len(deps.DataKey) == 0 {
			return nil, ErrMissingDataKey
		}
		return bearer.New(deps.DataKey, bearer.Options{
			Issuer: cfg.TokenIssuer,
			TTL:    cfg.TokenLifetime(),
		})

	case config.PolicySession:
		if deps.Sessions == nil {
			return nil, ErrMissingSessionStore
		}
		return session.New(deps.Sessions, session.Options{
			CookieName: cfg.CookieName,
			Domain:     cfg.CookieDomain,
			Path:       cfg.CookiePath,
			Secure:     cfg.CookieSecure,
			TTL:        cfg.SessionLifetime(),
			Prefix:     cfg.SessionPrefix,
		}), nil

	default:
		return nil, fmt.Errorf("unknown identity policy %q", cfg.IdentityPolicy)
	}
}
