// Package middleware intercepts requests to establish their identity.
//
// The Identity middleware checks out a connection, resolves the request's
// identity token through a policy, looks the user up and installs a
// per-request identity.Context before calling the wrapped handler. When the
// handler returns, the context is removed and handed back to the policy to
// be committed onto the response.
//
// Handlers that can fail implement Handler and return their error, which
// is propagated unchanged. Plain http.Handlers are supported through
// Identity.Middleware, which fits gorilla/mux's Router.Use.
package middleware
