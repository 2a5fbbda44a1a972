// Package server provides the HTTP server of the identity service.
//
// It uses gorilla/mux for routing and wraps the router with the
// gorilla/handlers access log. Requests to protected routes pass through
// the Identity middleware, which resolves the caller and commits identity
// changes made by the handler.
//
// # Server Setup
//
//	srv := server.NewServer(db, pool, cfg, policy, auditor, "0.0.0.0", "8000")
//	endpoints.RegisterAll(srv)
//	log.Fatal(srv.Start())
//
// # Endpoints
//
// Endpoints are registered via the endpoints subpackage:
//
//   - GET /status - service and database health (public)
//   - GET /whoami - the current user
//   - PATCH /whoami - update the current user's profile
//   - DELETE /whoami - log out
package server
