// Package session keeps identities in server-side sessions.
//
// The client holds only a random session ID in a cookie. The role ID of
// the session's user is stored under prefix+ID with a sliding expiry.
package session

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/doodlesbykumbi/identity-in-go/pkg/identity"
)

var (
	// ErrMalformed is returned for session cookies that are not session IDs
	ErrMalformed = errors.New("malformed session id")
	// ErrUnknownSession is returned when the session does not exist or expired
	ErrUnknownSession = errors.New("unknown session")
)

// Options configure the session cookie and expiry
type Options struct {
	CookieName string
	Domain     string
	Path       string
	Secure     bool
	TTL        time.Duration
	Prefix     string
}

// Policy resolves identities from sessions in a Store
type Policy struct {
	store Store
	opts  Options
}

var _ identity.Policy = (*Policy)(nil)

// New creates a session policy over store
func New(store Store, opts Options) *Policy {
	if opts.Path == "" {
		opts.Path = "/"
	}
	if opts.TTL <= 0 {
		opts.TTL = 30 * time.Minute
	}
	return &Policy{store: store, opts: opts}
}

func (p *Policy) Resolve(r *http.Request) (string, bool, error) {
	id, ok, err := p.sessionID(r)
	if err != nil || !ok {
		return "", false, err
	}

	roleID, err := p.store.Get(r.Context(), p.key(id))
	if errors.Is(err, ErrNotFound) {
		return "", false, ErrUnknownSession
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to read session: %w", err)
	}
	return roleID, true, nil
}

// Commit starts a new session for a changed identity, ends the session of
// a forgotten one and extends the session otherwise.
func (p *Policy) Commit(r *http.Request, state identity.Context, w http.ResponseWriter) error {
	ctx := r.Context()
	id, hasSession, err := p.sessionID(r)
	if err != nil {
		hasSession = false
	}

	if !state.Changed {
		if !hasSession {
			return nil
		}
		return p.store.Touch(ctx, p.key(id), p.opts.TTL)
	}

	if hasSession {
		if err := p.store.Delete(ctx, p.key(id)); err != nil {
			return fmt.Errorf("failed to end session: %w", err)
		}
	}

	if state.Forget {
		http.SetCookie(w, p.cookie("", -1))
		return nil
	}

	newID, err := p.Issue(ctx, state.User.RoleID())
	if err != nil {
		return err
	}
	http.SetCookie(w, p.cookie(newID, 0))
	return nil
}

// Issue creates a session for roleID and returns its ID
func (p *Policy) Issue(ctx context.Context, roleID string) (string, error) {
	id := uuid.NewString()
	if err := p.store.Set(ctx, p.key(id), roleID, p.opts.TTL); err != nil {
		return "", fmt.Errorf("failed to store session: %w", err)
	}
	return id, nil
}

func (p *Policy) sessionID(r *http.Request) (string, bool, error) {
	c, err := r.Cookie(p.opts.CookieName)
	if errors.Is(err, http.ErrNoCookie) || (err == nil && c.Value == "") {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}

	id, err := uuid.Parse(c.Value)
	if err != nil {
		return "", false, ErrMalformed
	}
	return id.String(), true, nil
}

func (p *Policy) key(id string) string {
	return p.opts.Prefix + id
}

func (p *Policy) cookie(value string, maxAge int) *http.Cookie {
	return &http.Cookie{
		Name:     p.opts.CookieName,
		Value:    value,
		Path:     p.opts.Path,
		Domain:   p.opts.Domain,
		MaxAge:   maxAge,
		Secure:   p.opts.Secure,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	}
}
