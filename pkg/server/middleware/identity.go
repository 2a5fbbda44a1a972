package middleware

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/doodlesbykumbi/identity-in-go/pkg/audit"
	"github.com/doodlesbykumbi/identity-in-go/pkg/identity"
	"github.com/doodlesbykumbi/identity-in-go/pkg/model"
	"github.com/doodlesbykumbi/identity-in-go/pkg/pool"
	"github.com/doodlesbykumbi/identity-in-go/pkg/server/store"
)

// CommitErrorHeader is set on responses whose identity could not be
// committed. The handler's status and body are kept.
const CommitErrorHeader = "X-Identity-Commit-Error"

// Response bodies of the short-circuit paths
const (
	MessageInternalError = "internal server error"
	MessageAuthFailed    = "authentication failed"
)

// Identity establishes the identity of each request it wraps
type Identity struct {
	policy  identity.Policy
	pool    pool.Pool
	users   store.UsersStore
	logger  *slog.Logger
	auditor audit.Sink
	name    string
	trusted func(ip string) bool
}

// Option configures an Identity middleware
type Option func(*Identity)

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(m *Identity) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// WithAuditor sets the audit sink. Defaults to discarding events.
func WithAuditor(sink audit.Sink) Option {
	return func(m *Identity) {
		if sink != nil {
			m.auditor = sink
		}
	}
}

// WithPolicyName sets the policy name reported in logs and audit events.
func WithPolicyName(name string) Option {
	return func(m *Identity) {
		m.name = name
	}
}

// WithTrustedProxies sets the check used to honour X-Forwarded-For.
func WithTrustedProxies(trusted func(ip string) bool) Option {
	return func(m *Identity) {
		m.trusted = trusted
	}
}

// NewIdentity creates the middleware. policy, pool and users are shared by
// all requests and must be safe for concurrent use.
func NewIdentity(policy identity.Policy, p pool.Pool, users store.UsersStore, opts ...Option) *Identity {
	m := &Identity{
		policy:  policy,
		pool:    p,
		users:   users,
		logger:  slog.Default(),
		auditor: audit.Nop{},
		name:    "custom",
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Wrap returns a Handler that runs next with an established identity.
//
// Checkout failures answer 500 and authentication failures answer 401
// without calling next. An error from next is returned unchanged and
// nothing is written or committed. A commit failure keeps next's response,
// marks it with CommitErrorHeader and is returned as *identity.CommitError
// after the response has been written.
func (m *Identity) Wrap(next Handler) Handler {
	return HandlerFunc(func(w http.ResponseWriter, r *http.Request) error {
		return m.serve(next, w, r)
	})
}

// Handle adapts Wrap(next) to http.Handler. Errors from next are answered
// with 500.
func (m *Identity) Handle(next Handler) http.Handler {
	h := m.Wrap(next)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		err := h.Serve(w, r)
		if err == nil || errors.Is(err, identity.ErrCommit) {
			return
		}
		m.logger.Error("request failed",
			"method", r.Method, "path", r.URL.Path, "error", err)
		respondWithError(w, http.StatusInternalServerError, MessageInternalError)
	})
}

// Middleware wraps next for use with mux.Router.Use.
func (m *Identity) Middleware(next http.Handler) http.Handler {
	return m.Handle(FromHTTP(next))
}

func (m *Identity) serve(next Handler, w http.ResponseWriter, r *http.Request) error {
	logger := m.logger.With("method", r.Method, "path", r.URL.Path, "policy", m.name)
	clientIP := ClientIP(r, m.trusted)

	user, token, err := m.authenticate(r.Context(), r)
	if err != nil {
		m.reject(w, logger, clientIP, token, err)
		return nil
	}
	m.auditor.Log(audit.ResolveEvent{
		RoleID:   token,
		ClientIP: clientIP,
		Policy:   m.name,
		Success:  true,
	})

	ctx := identity.Install(r.Context(), identity.NewContext(*user))
	r = r.WithContext(ctx)
	// A panicking handler still leaves no context behind.
	defer identity.Remove(ctx)

	buf := newBufferedWriter()
	if err := next.Serve(buf, r); err != nil {
		identity.Remove(ctx)
		logger.Debug("handler failed", "stage", "downstream", "error", err)
		return err
	}

	state := identity.Remove(ctx)
	if state == nil {
		return buf.flushTo(w)
	}

	var commitErr error
	if err := m.policy.Commit(r, *state, buf); err != nil {
		commitErr = &identity.CommitError{Err: err}
		buf.Header().Set(CommitErrorHeader, identity.ErrCommit.Error())
		logger.Error("identity commit failed",
			"stage", "commit", "role", state.User.RoleID(),
			"changed", state.Changed, "forget", state.Forget, "error", err)
	}
	if state.Changed || commitErr != nil {
		m.auditor.Log(commitEvent(state, m.name, clientIP, commitErr))
	}

	if err := buf.flushTo(w); err != nil {
		return errors.Join(commitErr, err)
	}
	return commitErr
}

// authenticate resolves the user of r. The checked out connection is held
// only until the lookup is done.
func (m *Identity) authenticate(ctx context.Context, r *http.Request) (*model.User, string, error) {
	res, err := m.pool.Checkout(ctx)
	if err != nil {
		return nil, "", &identity.AcquireError{Err: err}
	}
	defer func() {
		if err := res.Release(); err != nil {
			m.logger.Warn("failed to release connection", "error", err)
		}
	}()

	token, ok, err := m.policy.Resolve(r)
	if err != nil {
		return nil, "", &identity.AuthError{Cause: identity.CausePolicy, Err: err}
	}
	if !ok {
		return nil, "", &identity.AuthError{Cause: identity.CauseNoToken, Err: identity.ErrNoToken}
	}

	user, err := m.users.LookupUser(ctx, res, token)
	if err != nil {
		return nil, token, &identity.AuthError{Cause: identity.CauseLookup, Err: err}
	}
	return user, token, nil
}

func (m *Identity) reject(w http.ResponseWriter, logger *slog.Logger, clientIP, token string, err error) {
	var authErr *identity.AuthError
	if errors.As(err, &authErr) {
		logger.Warn("authentication failed",
			"stage", "resolve", "cause", authErr.Cause.String(), "error", authErr.Err)
		m.auditor.Log(audit.ResolveEvent{
			RoleID:       token,
			ClientIP:     clientIP,
			Policy:       m.name,
			Cause:        authErr.Cause.String(),
			ErrorMessage: authErr.Err.Error(),
		})
		respondWithError(w, http.StatusUnauthorized, MessageAuthFailed)
		return
	}

	cause := err
	var acqErr *identity.AcquireError
	if errors.As(err, &acqErr) {
		cause = acqErr.Err
	}
	logger.Error("connection checkout failed", "stage", "checkout", "error", cause)
	m.auditor.Log(audit.CheckoutEvent{ClientIP: clientIP, ErrorMessage: cause.Error()})
	respondWithError(w, http.StatusInternalServerError, MessageInternalError)
}

func commitEvent(state *identity.Context, policy, clientIP string, err error) audit.CommitEvent {
	e := audit.CommitEvent{
		RoleID:   state.User.RoleID(),
		ClientIP: clientIP,
		Policy:   policy,
		Changed:  state.Changed,
		Forget:   state.Forget,
		Success:  err == nil,
	}
	var commitErr *identity.CommitError
	if errors.As(err, &commitErr) {
		e.ErrorMessage = commitErr.Err.Error()
	}
	return e
}
