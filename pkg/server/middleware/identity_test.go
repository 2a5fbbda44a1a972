package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/doodlesbykumbi/identity-in-go/pkg/audit"
	"github.com/doodlesbykumbi/identity-in-go/pkg/identity"
	"github.com/doodlesbykumbi/identity-in-go/pkg/model"
	"github.com/doodlesbykumbi/identity-in-go/pkg/pool"
	"github.com/doodlesbykumbi/identity-in-go/pkg/server/store"
)

var (
	alice = model.User{ID: 1, Account: "acme", Login: "alice"}
	bob   = model.User{ID: 2, Account: "acme", Login: "bob"}
)

type fixture struct {
	policy *MockPolicy
	pool   *MockPool
	users  *MockUsersStore
	res    *fakeResource
	sink   *recordingSink
	mw     *Identity
}

func newFixture() *fixture {
	f := &fixture{
		policy: &MockPolicy{},
		pool:   &MockPool{},
		users:  &MockUsersStore{},
		res:    &fakeResource{},
		sink:   &recordingSink{},
	}
	f.mw = NewIdentity(f.policy, f.pool, f.users,
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		WithAuditor(f.sink),
		WithPolicyName("test"),
	)
	return f
}

// authenticates sets up a successful checkout, resolve and lookup of alice
func (f *fixture) authenticates() {
	f.pool.On("Checkout", mock.Anything).Return(f.res, nil)
	f.policy.On("Resolve", mock.Anything).Return(alice.RoleID(), true, nil)
	user := alice
	f.users.On("LookupUser", mock.Anything, f.res, alice.RoleID()).Return(&user, nil)
}

func newRequest() *http.Request {
	return httptest.NewRequest(http.MethodGet, "/whoami", nil)
}

func errorBody(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body["error"]
}

func TestIdentity_UnchangedIdentity(t *testing.T) {
	f := newFixture()
	f.authenticates()
	f.policy.On("Commit", mock.Anything, identity.Context{User: alice}, mock.Anything).Return(nil)

	var seen model.User
	h := f.mw.Wrap(HandlerFunc(func(w http.ResponseWriter, r *http.Request) error {
		seen = identity.FromRequest(r).Get()
		_, err := w.Write([]byte("ok"))
		return err
	}))

	rec := httptest.NewRecorder()
	err := h.Serve(rec, newRequest())

	require.NoError(t, err)
	assert.Equal(t, alice, seen)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())
	assert.Equal(t, int32(1), f.res.released.Load())
	f.policy.AssertNumberOfCalls(t, "Commit", 1)

	events := f.sink.Events()
	require.Len(t, events, 1)
	assert.Equal(t, audit.ResolveEvent{RoleID: "acme:user:alice", ClientIP: "192.0.2.1", Policy: "test", Success: true}, events[0])
}

func TestIdentity_SetIdentity(t *testing.T) {
	f := newFixture()
	f.authenticates()
	f.policy.On("Commit", mock.Anything, identity.Context{User: bob, Changed: true}, mock.Anything).
		Run(func(args mock.Arguments) {
			args.Get(2).(http.ResponseWriter).Header().Set("X-Committed", args.Get(1).(identity.Context).User.Login)
		}).
		Return(nil)

	h := f.mw.Wrap(HandlerFunc(func(w http.ResponseWriter, r *http.Request) error {
		identity.FromRequest(r).Set(bob)
		w.WriteHeader(http.StatusCreated)
		return nil
	}))

	rec := httptest.NewRecorder()
	require.NoError(t, h.Serve(rec, newRequest()))

	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "bob", rec.Header().Get("X-Committed"))
	f.policy.AssertExpectations(t)
}

func TestIdentity_ClearIdentity(t *testing.T) {
	f := newFixture()
	f.authenticates()
	f.policy.On("Commit", mock.Anything, identity.Context{User: alice, Changed: true, Forget: true}, mock.Anything).Return(nil)

	h := f.mw.Wrap(HandlerFunc(func(w http.ResponseWriter, r *http.Request) error {
		identity.FromRequest(r).Clear()
		return nil
	}))

	rec := httptest.NewRecorder()
	require.NoError(t, h.Serve(rec, newRequest()))

	assert.Equal(t, http.StatusOK, rec.Code)
	f.policy.AssertExpectations(t)

	events := f.sink.Events()
	require.Len(t, events, 2)
	commit, ok := events[1].(audit.CommitEvent)
	require.True(t, ok)
	assert.True(t, commit.Forget)
	assert.True(t, commit.Success)
}

func TestIdentity_CheckoutFailure(t *testing.T) {
	f := newFixture()
	f.pool.On("Checkout", mock.Anything).Return(nil, pool.ErrExhausted)

	called := false
	h := f.mw.Wrap(HandlerFunc(func(w http.ResponseWriter, r *http.Request) error {
		called = true
		return nil
	}))

	rec := httptest.NewRecorder()
	require.NoError(t, h.Serve(rec, newRequest()))

	assert.False(t, called)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, MessageInternalError, errorBody(t, rec))
	f.policy.AssertNotCalled(t, "Resolve", mock.Anything)
	f.policy.AssertNotCalled(t, "Commit", mock.Anything, mock.Anything, mock.Anything)
	f.users.AssertNotCalled(t, "LookupUser", mock.Anything, mock.Anything, mock.Anything)

	events := f.sink.Events()
	require.Len(t, events, 1)
	checkout, ok := events[0].(audit.CheckoutEvent)
	require.True(t, ok)
	assert.Equal(t, pool.ErrExhausted.Error(), checkout.ErrorMessage)
}

func TestIdentity_AuthenticationFailures(t *testing.T) {
	tests := []struct {
		name  string
		setup func(f *fixture)
		cause identity.Cause
	}{
		{
			name: "policy error",
			setup: func(f *fixture) {
				f.policy.On("Resolve", mock.Anything).Return("", false, errors.New("tampered cookie"))
			},
			cause: identity.CausePolicy,
		},
		{
			name: "no token",
			setup: func(f *fixture) {
				f.policy.On("Resolve", mock.Anything).Return("", false, nil)
			},
			cause: identity.CauseNoToken,
		},
		{
			name: "lookup failure",
			setup: func(f *fixture) {
				f.policy.On("Resolve", mock.Anything).Return("acme:user:ghost", true, nil)
				f.users.On("LookupUser", mock.Anything, mock.Anything, "acme:user:ghost").Return(nil, store.ErrUserNotFound)
			},
			cause: identity.CauseLookup,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture()
			f.pool.On("Checkout", mock.Anything).Return(f.res, nil)
			tt.setup(f)

			called := false
			h := f.mw.Wrap(HandlerFunc(func(w http.ResponseWriter, r *http.Request) error {
				called = true
				return nil
			}))

			rec := httptest.NewRecorder()
			require.NoError(t, h.Serve(rec, newRequest()))

			assert.False(t, called)
			assert.Equal(t, http.StatusUnauthorized, rec.Code)
			assert.Equal(t, MessageAuthFailed, errorBody(t, rec))
			assert.Equal(t, int32(1), f.res.released.Load())
			f.policy.AssertNotCalled(t, "Commit", mock.Anything, mock.Anything, mock.Anything)

			events := f.sink.Events()
			require.Len(t, events, 1)
			resolve, ok := events[0].(audit.ResolveEvent)
			require.True(t, ok)
			assert.False(t, resolve.Success)
			assert.Equal(t, tt.cause.String(), resolve.Cause)
		})
	}
}

func TestIdentity_NoTokenSkipsLookup(t *testing.T) {
	f := newFixture()
	f.pool.On("Checkout", mock.Anything).Return(f.res, nil)
	f.policy.On("Resolve", mock.Anything).Return("", false, nil)

	h := f.mw.Wrap(HandlerFunc(func(w http.ResponseWriter, r *http.Request) error { return nil }))
	require.NoError(t, h.Serve(httptest.NewRecorder(), newRequest()))

	f.users.AssertNotCalled(t, "LookupUser", mock.Anything, mock.Anything, mock.Anything)
}

func TestIdentity_DownstreamError(t *testing.T) {
	f := newFixture()
	f.authenticates()

	downstreamErr := errors.New("boom")
	var ctx context.Context
	h := f.mw.Wrap(HandlerFunc(func(w http.ResponseWriter, r *http.Request) error {
		ctx = r.Context()
		identity.FromRequest(r).Set(bob)
		w.Header().Set("X-Partial", "yes")
		_, _ = w.Write([]byte("partial"))
		return downstreamErr
	}))

	rec := httptest.NewRecorder()
	err := h.Serve(rec, newRequest())

	assert.Same(t, downstreamErr, err)
	assert.Empty(t, rec.Body.String())
	assert.Empty(t, rec.Header().Get("X-Partial"))
	assert.False(t, identity.FromContext(ctx).Installed())
	f.policy.AssertNotCalled(t, "Commit", mock.Anything, mock.Anything, mock.Anything)
}

func TestIdentity_CommitFailure(t *testing.T) {
	f := newFixture()
	f.authenticates()
	commitErr := errors.New("redis unavailable")
	f.policy.On("Commit", mock.Anything, mock.Anything, mock.Anything).Return(commitErr)

	h := f.mw.Wrap(HandlerFunc(func(w http.ResponseWriter, r *http.Request) error {
		identity.FromRequest(r).Set(bob)
		w.WriteHeader(http.StatusAccepted)
		_, err := w.Write([]byte("accepted"))
		return err
	}))

	rec := httptest.NewRecorder()
	err := h.Serve(rec, newRequest())

	require.Error(t, err)
	assert.ErrorIs(t, err, identity.ErrCommit)
	assert.ErrorIs(t, err, commitErr)
	var ce *identity.CommitError
	require.ErrorAs(t, err, &ce)

	assert.Equal(t, http.StatusAccepted, rec.Code)
	assert.Equal(t, "accepted", rec.Body.String())
	assert.Equal(t, identity.ErrCommit.Error(), rec.Header().Get(CommitErrorHeader))

	events := f.sink.Events()
	require.Len(t, events, 2)
	commit, ok := events[1].(audit.CommitEvent)
	require.True(t, ok)
	assert.False(t, commit.Success)
	assert.Equal(t, "redis unavailable", commit.ErrorMessage)
}

func TestIdentity_ContextMissingAtExit(t *testing.T) {
	f := newFixture()
	f.authenticates()

	h := f.mw.Wrap(HandlerFunc(func(w http.ResponseWriter, r *http.Request) error {
		identity.Remove(r.Context())
		_, err := w.Write([]byte("detached"))
		return err
	}))

	rec := httptest.NewRecorder()
	require.NoError(t, h.Serve(rec, newRequest()))

	assert.Equal(t, "detached", rec.Body.String())
	f.policy.AssertNotCalled(t, "Commit", mock.Anything, mock.Anything, mock.Anything)
}

func TestIdentity_ContextRemovedAfterRequest(t *testing.T) {
	f := newFixture()
	f.authenticates()
	f.policy.On("Commit", mock.Anything, mock.Anything, mock.Anything).Return(nil)

	var id identity.Identity
	h := f.mw.Wrap(HandlerFunc(func(w http.ResponseWriter, r *http.Request) error {
		id = identity.FromRequest(r)
		assert.True(t, id.Installed())
		return nil
	}))

	require.NoError(t, h.Serve(httptest.NewRecorder(), newRequest()))

	assert.False(t, id.Installed())
	assert.PanicsWithValue(t, identity.ErrMissingContext, func() { id.Get() })
}

func TestIdentity_PanicRemovesContext(t *testing.T) {
	f := newFixture()
	f.authenticates()

	var id identity.Identity
	h := f.mw.Wrap(HandlerFunc(func(w http.ResponseWriter, r *http.Request) error {
		id = identity.FromRequest(r)
		panic("handler bug")
	}))

	assert.Panics(t, func() { _ = h.Serve(httptest.NewRecorder(), newRequest()) })
	assert.False(t, id.Installed())
	assert.Equal(t, int32(1), f.res.released.Load())
}

func TestIdentity_Handle(t *testing.T) {
	t.Run("downstream error becomes 500", func(t *testing.T) {
		f := newFixture()
		f.authenticates()

		h := f.mw.Handle(HandlerFunc(func(w http.ResponseWriter, r *http.Request) error {
			return errors.New("database gone")
		}))

		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, newRequest())

		assert.Equal(t, http.StatusInternalServerError, rec.Code)
		assert.Equal(t, MessageInternalError, errorBody(t, rec))
	})

	t.Run("commit failure keeps response", func(t *testing.T) {
		f := newFixture()
		f.authenticates()
		f.policy.On("Commit", mock.Anything, mock.Anything, mock.Anything).Return(errors.New("nope"))

		h := f.mw.Handle(HandlerFunc(func(w http.ResponseWriter, r *http.Request) error {
			_, err := w.Write([]byte(`{"ok":true}`))
			return err
		}))

		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, newRequest())

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, `{"ok":true}`, rec.Body.String())
		assert.NotEmpty(t, rec.Header().Get(CommitErrorHeader))
	})
}

func TestIdentity_MiddlewareWithRouter(t *testing.T) {
	f := newFixture()
	f.authenticates()
	f.policy.On("Commit", mock.Anything, mock.Anything, mock.Anything).Return(nil)

	router := mux.NewRouter()
	router.Use(f.mw.Middleware)
	router.HandleFunc("/whoami", func(w http.ResponseWriter, r *http.Request) {
		_, _ = fmt.Fprint(w, identity.CurrentUser(r).RoleID())
	})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, newRequest())

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "acme:user:alice", rec.Body.String())
}

// headerPolicy resolves the token from X-Role and echoes the committed user
type headerPolicy struct{}

func (headerPolicy) Resolve(r *http.Request) (string, bool, error) {
	token := r.Header.Get("X-Role")
	return token, token != "", nil
}

func (headerPolicy) Commit(r *http.Request, state identity.Context, w http.ResponseWriter) error {
	w.Header().Set("X-Committed", fmt.Sprintf("%s changed=%t", state.User.Login, state.Changed))
	return nil
}

// loginStore returns a user whose login is the id part of the token
type loginStore struct {
	MockUsersStore
}

func (s *loginStore) LookupUser(_ context.Context, _ pool.Resource, token string) (*model.User, error) {
	account, login, err := model.ParseRoleID(token)
	if err != nil {
		return nil, store.ErrUserNotFound
	}
	return &model.User{Account: account, Login: login}, nil
}

func TestIdentity_ConcurrentRequestsAreIsolated(t *testing.T) {
	p := &MockPool{}
	p.On("Checkout", mock.Anything).Return(&fakeResource{}, nil)
	mw := NewIdentity(headerPolicy{}, p, &loginStore{},
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))

	h := mw.Wrap(HandlerFunc(func(w http.ResponseWriter, r *http.Request) error {
		id := identity.FromRequest(r)
		user := id.Get()
		// odd requests switch to a derived identity
		if r.Header.Get("X-Switch") == "1" {
			user.Login += "-switched"
			id.Set(user)
		}
		_, err := fmt.Fprint(w, id.Get().Login)
		return err
	}))

	const n = 64
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			login := fmt.Sprintf("user%d", i)
			req := newRequest()
			req.Header.Set("X-Role", "acme:user:"+login)
			want := login
			changed := false
			if i%2 == 1 {
				req.Header.Set("X-Switch", "1")
				want = login + "-switched"
				changed = true
			}

			rec := httptest.NewRecorder()
			assert.NoError(t, h.Serve(rec, req))
			assert.Equal(t, want, rec.Body.String())
			assert.Equal(t, fmt.Sprintf("%s changed=%t", want, changed), rec.Header().Get("X-Committed"))
		}(i)
	}
	wg.Wait()
}

func TestClientIP(t *testing.T) {
	trusted := func(ip string) bool { return ip == "10.0.0.1" }

	tests := []struct {
		name      string
		remote    string
		forwarded string
		trusted   func(string) bool
		expected  string
	}{
		{name: "direct", remote: "192.0.2.7:5555", expected: "192.0.2.7"},
		{name: "untrusted proxy ignored", remote: "192.0.2.7:5555", forwarded: "203.0.113.9", trusted: trusted, expected: "192.0.2.7"},
		{name: "trusted proxy", remote: "10.0.0.1:443", forwarded: "203.0.113.9, 10.0.0.1", trusted: trusted, expected: "203.0.113.9"},
		{name: "trusted without header", remote: "10.0.0.1:443", trusted: trusted, expected: "10.0.0.1"},
		{name: "no port", remote: "192.0.2.8", expected: "192.0.2.8"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := newRequest()
			req.RemoteAddr = tt.remote
			if tt.forwarded != "" {
				req.Header.Set("X-Forwarded-For", tt.forwarded)
			}
			assert.Equal(t, tt.expected, ClientIP(req, tt.trusted))
		})
	}
}
