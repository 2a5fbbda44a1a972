// Package model defines the database models for the identity service.
//
// # Core Models
//
//   - User: an authenticated principal stored in the users table
//
// Users are addressed by role ID, "account:kind:id", the same convention the
// identity policies use for the opaque identity token:
//
//	id := model.RoleID("myorg", "alice")        // "myorg:user:alice"
//	id = model.RoleID("myorg", "host/myapp")    // "myorg:host:myapp"
//	account, login, err := model.ParseRoleID(id) // "myorg", "host/myapp"
package model
