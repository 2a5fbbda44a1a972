package middleware

import (
	"context"
	"net/http"
	"sync"
	"sync/atomic"

	"github.com/stretchr/testify/mock"
	"gorm.io/gorm"

	"github.com/doodlesbykumbi/identity-in-go/pkg/audit"
	"github.com/doodlesbykumbi/identity-in-go/pkg/identity"
	"github.com/doodlesbykumbi/identity-in-go/pkg/model"
	"github.com/doodlesbykumbi/identity-in-go/pkg/pool"
	"github.com/doodlesbykumbi/identity-in-go/pkg/server/store"
)

// MockPolicy implements identity.Policy for testing using testify/mock
type MockPolicy struct {
	mock.Mock
}

func (m *MockPolicy) Resolve(r *http.Request) (string, bool, error) {
	args := m.Called(r)
	return args.String(0), args.Bool(1), args.Error(2)
}

func (m *MockPolicy) Commit(r *http.Request, state identity.Context, w http.ResponseWriter) error {
	args := m.Called(r, state, w)
	return args.Error(0)
}

// MockPool implements pool.Pool for testing using testify/mock
type MockPool struct {
	mock.Mock
}

func (m *MockPool) Checkout(ctx context.Context) (pool.Resource, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(pool.Resource), args.Error(1)
}

// MockUsersStore implements store.UsersStore for testing using testify/mock
type MockUsersStore struct {
	mock.Mock
}

func (m *MockUsersStore) LookupUser(ctx context.Context, res pool.Resource, token string) (*model.User, error) {
	args := m.Called(ctx, res, token)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.User), args.Error(1)
}

func (m *MockUsersStore) CreateUser(ctx context.Context, user *model.User) error {
	args := m.Called(ctx, user)
	return args.Error(0)
}

func (m *MockUsersStore) FetchUser(ctx context.Context, roleID string) (*model.User, error) {
	args := m.Called(ctx, roleID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.User), args.Error(1)
}

func (m *MockUsersStore) UpdateProfile(ctx context.Context, roleID string, profile store.Profile) (*model.User, error) {
	args := m.Called(ctx, roleID, profile)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.User), args.Error(1)
}

// fakeResource counts releases
type fakeResource struct {
	released atomic.Int32
}

func (r *fakeResource) DB() *gorm.DB {
	return nil
}

func (r *fakeResource) Release() error {
	r.released.Add(1)
	return nil
}

// recordingSink keeps the audit events it receives
type recordingSink struct {
	mu     sync.Mutex
	events []audit.Event
}

func (s *recordingSink) Log(event audit.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
}

func (s *recordingSink) Events() []audit.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]audit.Event(nil), s.events...)
}
