// Package identity carries the authenticated identity of a request from the
// identity middleware to the handlers behind it, and back out again.
//
// The middleware resolves an identity token through a Policy, looks up the
// user and installs a fresh Context into the request's context.Context.
// Handlers use the Identity facade to read or change it:
//
//	id := identity.FromRequest(r)
//	user := id.Get()
//
//	user.DisplayName = "Alice"
//	id.Set(user) // marks the identity as changed
//
//	id.Clear()   // asks the policy to forget the identity
//
// When the handler returns, the middleware removes the Context and hands it to
// Policy.Commit, which persists or clears the identity on the response (for
// example by setting or expiring a cookie).
//
// # Contract
//
// Get panics with ErrMissingContext when no Context is installed. The facade
// is only reachable from behind the middleware, so a missing Context is a
// wiring bug rather than a runtime condition.
//
// A Context belongs to a single request and is not synchronized. Do not hand
// the facade to goroutines that outlive the handler.
package identity
