// Package db opens the PostgreSQL database behind the identity service.
//
// # Environment Variables
//
//   - DATABASE_URL: PostgreSQL connection string (required)
//   - IDENTITY_LOG_LEVEL: "debug" logs every SQL statement; "warn" and
//     "error" log slow or failed ones
//
// Pool limits are not set here; they belong to pool.GormPool, which
// applies them from configuration and adjusts them at runtime.
package db
