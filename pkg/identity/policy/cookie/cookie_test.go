package cookie

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/doodlesbykumbi/identity-in-go/pkg/identity"
	"github.com/doodlesbykumbi/identity-in-go/pkg/model"
	"github.com/doodlesbykumbi/identity-in-go/pkg/seal"
)

var alice = model.User{Account: "acme", Login: "alice"}

func newPolicy(t *testing.T, now *time.Time) *Policy {
	t.Helper()
	key, err := seal.RandomBytes(32)
	require.NoError(t, err)
	cipher, err := seal.NewSymmetric(key)
	require.NoError(t, err)

	return New(cipher, Options{
		Name:   "identity",
		MaxAge: time.Hour,
		Secure: true,
		Now:    func() time.Time { return *now },
	})
}

// commitCookie commits state and returns the cookie it set, if any
func commitCookie(t *testing.T, p *Policy, state identity.Context) *http.Cookie {
	t.Helper()
	rec := httptest.NewRecorder()
	require.NoError(t, p.Commit(httptest.NewRequest(http.MethodGet, "/", nil), state, rec))
	cookies := rec.Result().Cookies()
	if len(cookies) == 0 {
		return nil
	}
	require.Len(t, cookies, 1)
	return cookies[0]
}

func requestWith(c *http.Cookie) *http.Request {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if c != nil {
		req.AddCookie(c)
	}
	return req
}

func TestPolicy_RoundTrip(t *testing.T) {
	now := time.Unix(1700000000, 0)
	p := newPolicy(t, &now)

	c := commitCookie(t, p, identity.Context{User: alice, Changed: true})
	require.NotNil(t, c)
	assert.Equal(t, "identity", c.Name)
	assert.Equal(t, 3600, c.MaxAge)
	assert.True(t, c.HttpOnly)
	assert.True(t, c.Secure)
	assert.Equal(t, "/", c.Path)

	token, ok, err := p.Resolve(requestWith(c))
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "acme:user:alice", token)
}

func TestPolicy_NoCookie(t *testing.T) {
	now := time.Now()
	p := newPolicy(t, &now)

	token, ok, err := p.Resolve(requestWith(nil))
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Empty(t, token)

	_, ok, err = p.Resolve(requestWith(&http.Cookie{Name: "identity", Value: ""}))
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestPolicy_Tampered(t *testing.T) {
	now := time.Now()
	p := newPolicy(t, &now)

	_, ok, err := p.Resolve(requestWith(&http.Cookie{Name: "identity", Value: "not-a-sealed-value"}))
	assert.ErrorIs(t, err, ErrMalformed)
	assert.False(t, ok)
}

func TestPolicy_OtherCookieNameDoesNotOpen(t *testing.T) {
	now := time.Now()
	p := newPolicy(t, &now)
	c := commitCookie(t, p, identity.Context{User: alice, Changed: true})

	other := New(p.cipher, Options{Name: "other", Now: p.opts.Now})
	_, _, err := other.Resolve(requestWith(&http.Cookie{Name: "other", Value: c.Value}))
	assert.ErrorIs(t, err, ErrMalformed)
}

func TestPolicy_Expired(t *testing.T) {
	now := time.Unix(1700000000, 0)
	p := newPolicy(t, &now)
	c := commitCookie(t, p, identity.Context{User: alice, Changed: true})

	now = now.Add(2 * time.Hour)
	_, ok, err := p.Resolve(requestWith(c))
	assert.ErrorIs(t, err, ErrExpired)
	assert.False(t, ok)
}

func TestPolicy_Commit(t *testing.T) {
	now := time.Now()
	p := newPolicy(t, &now)

	t.Run("unchanged leaves response alone", func(t *testing.T) {
		assert.Nil(t, commitCookie(t, p, identity.Context{User: alice}))
	})

	t.Run("forget expires cookie", func(t *testing.T) {
		c := commitCookie(t, p, identity.Context{User: alice, Changed: true, Forget: true})
		require.NotNil(t, c)
		assert.Empty(t, c.Value)
		assert.Less(t, c.MaxAge, 0)
	})
}

func TestPolicy_Issue(t *testing.T) {
	now := time.Now()
	p := newPolicy(t, &now)

	value, err := p.Issue(context.Background(), "acme:host:ci")
	require.NoError(t, err)

	token, ok, err := p.Resolve(requestWith(&http.Cookie{Name: p.Name(), Value: value}))
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "acme:host:ci", token)
}
