// Package cookie carries identities in an encrypted cookie.
package cookie

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/doodlesbykumbi/identity-in-go/pkg/identity"
	"github.com/doodlesbykumbi/identity-in-go/pkg/seal"
)

var (
	// ErrMalformed is returned for cookies that do not open or decode
	ErrMalformed = errors.New("malformed identity cookie")
	// ErrExpired is returned for cookies older than MaxAge
	ErrExpired = errors.New("identity cookie expired")
)

// Options configure the identity cookie
type Options struct {
	Name     string
	Domain   string
	Path     string
	Secure   bool
	MaxAge   time.Duration
	SameSite http.SameSite
	// Now defaults to time.Now
	Now func() time.Time
}

// Policy stores the role ID of the current user in a sealed cookie
type Policy struct {
	cipher seal.SymmetricCipher
	opts   Options
}

var _ identity.Policy = (*Policy)(nil)

type payload struct {
	RoleID   string `json:"rid"`
	IssuedAt int64  `json:"iat"`
}

// New creates a cookie policy sealing values with cipher
func New(cipher seal.SymmetricCipher, opts Options) *Policy {
	if opts.Path == "" {
		opts.Path = "/"
	}
	if opts.SameSite == 0 {
		opts.SameSite = http.SameSiteLaxMode
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Policy{cipher: cipher, opts: opts}
}

func (p *Policy) Resolve(r *http.Request) (string, bool, error) {
	c, err := r.Cookie(p.opts.Name)
	if errors.Is(err, http.ErrNoCookie) || (err == nil && c.Value == "") {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}

	raw, err := p.cipher.OpenString([]byte(p.opts.Name), c.Value)
	if err != nil {
		return "", false, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	var data payload
	if err := json.Unmarshal(raw, &data); err != nil || data.RoleID == "" {
		return "", false, ErrMalformed
	}

	if p.opts.MaxAge > 0 {
		issued := time.Unix(data.IssuedAt, 0)
		if p.opts.Now().Sub(issued) > p.opts.MaxAge {
			return "", false, ErrExpired
		}
	}

	return data.RoleID, true, nil
}

// Commit sets the cookie for a changed identity and expires it for a
// forgotten one. An unchanged identity leaves the response alone.
func (p *Policy) Commit(_ *http.Request, state identity.Context, w http.ResponseWriter) error {
	if !state.Changed {
		return nil
	}

	if state.Forget {
		http.SetCookie(w, p.cookie("", -1))
		return nil
	}

	value, err := p.seal(state.User.RoleID())
	if err != nil {
		return err
	}
	http.SetCookie(w, p.cookie(value, int(p.opts.MaxAge/time.Second)))
	return nil
}

// Issue returns a cookie value identifying roleID
func (p *Policy) Issue(_ context.Context, roleID string) (string, error) {
	return p.seal(roleID)
}

// Name returns the cookie name
func (p *Policy) Name() string {
	return p.opts.Name
}

func (p *Policy) seal(roleID string) (string, error) {
	raw, err := json.Marshal(payload{RoleID: roleID, IssuedAt: p.opts.Now().Unix()})
	if err != nil {
		return "", err
	}
	value, err := p.cipher.SealString([]byte(p.opts.Name), raw)
	if err != nil {
		return "", fmt.Errorf("failed to seal identity cookie: %w", err)
	}
	return value, nil
}

func (p *Policy) cookie(value string, maxAge int) *http.Cookie {
	return &http.Cookie{
		Name:     p.opts.Name,
		Value:    value,
		Path:     p.opts.Path,
		Domain:   p.opts.Domain,
		MaxAge:   maxAge,
		Secure:   p.opts.Secure,
		HttpOnly: true,
		SameSite: p.opts.SameSite,
	}
}
