// Package endpoints registers the HTTP endpoints of the identity service.
package endpoints
