package endpoints

import (
	"context"
	"net/http"

	"github.com/stretchr/testify/mock"
	"gorm.io/gorm"

	"github.com/doodlesbykumbi/identity-in-go/pkg/identity"
	"github.com/doodlesbykumbi/identity-in-go/pkg/model"
	"github.com/doodlesbykumbi/identity-in-go/pkg/pool"
	"github.com/doodlesbykumbi/identity-in-go/pkg/server/store"
)

// MockUsersStore implements store.UsersStore for testing using testify/mock
type MockUsersStore struct {
	mock.Mock
}

func (m *MockUsersStore) LookupUser(ctx context.Context, res pool.Resource, token string) (*model.User, error) {
	args := m.Called(token)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.User), args.Error(1)
}

func (m *MockUsersStore) CreateUser(ctx context.Context, user *model.User) error {
	args := m.Called(user)
	return args.Error(0)
}

func (m *MockUsersStore) FetchUser(ctx context.Context, roleID string) (*model.User, error) {
	args := m.Called(roleID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.User), args.Error(1)
}

func (m *MockUsersStore) UpdateProfile(ctx context.Context, roleID string, profile store.Profile) (*model.User, error) {
	args := m.Called(roleID, profile)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.User), args.Error(1)
}

// MockHealthStore implements store.HealthStore for testing using testify/mock
type MockHealthStore struct {
	mock.Mock
}

func (m *MockHealthStore) CheckConnectivity(ctx context.Context) error {
	args := m.Called()
	return args.Error(0)
}

// testPool hands out resources that need no database
type testPool struct{}

func (testPool) Checkout(context.Context) (pool.Resource, error) {
	return testResource{}, nil
}

type testResource struct{}

func (testResource) DB() *gorm.DB   { return nil }
func (testResource) Release() error { return nil }

// testPolicy reads the role ID from X-Test-Role and reports the committed
// state in X-Test-Commit
type testPolicy struct{}

func (testPolicy) Resolve(r *http.Request) (string, bool, error) {
	role := r.Header.Get("X-Test-Role")
	return role, role != "", nil
}

func (testPolicy) Commit(r *http.Request, state identity.Context, w http.ResponseWriter) error {
	switch {
	case state.Forget:
		w.Header().Set("X-Test-Commit", "forget")
	case state.Changed:
		w.Header().Set("X-Test-Commit", "set "+state.User.RoleID())
	}
	return nil
}
