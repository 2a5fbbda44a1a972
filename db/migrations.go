// Package db holds the SQL schema migrations of the identity service.
package db

import "embed"

// Migrations contains the golang-migrate migration files under migrations/
//
//go:embed migrations/*.sql
var Migrations embed.FS
