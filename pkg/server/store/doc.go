// Package store provides storage abstractions for the identity server.
//
// The interfaces here decouple the middleware and endpoints from the
// database, so they can be tested with mocks.
//
// # Available Stores
//
//   - UsersStore: user lookup by identity token and profile management
//   - HealthStore: database connectivity checks
//
// # Usage
//
//	users := gorm.NewUsersStore(db)
//	user, err := users.LookupUser(ctx, res, "myorg:user:alice")
//	if err != nil {
//	    if errors.Is(err, store.ErrUserNotFound) {
//	        // Handle not found
//	    }
//	}
package store
