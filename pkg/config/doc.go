// Package config provides configuration management for the identity service.
//
// Configuration is loaded from, in increasing precedence:
//
//   - Built-in defaults
//   - The config file $IDENTITY_CONFIG_PATH/identity.yml
//     (default /etc/identity/config/identity.yml)
//   - IDENTITY_* environment variables
//
// Every attribute remembers which of these it came from, which
// `identityctl configuration show` prints.
//
// # Key Configuration Options
//
//   - IDENTITY_POLICY: cookie, bearer or session
//   - IDENTITY_COOKIE_NAME, IDENTITY_COOKIE_SECURE, IDENTITY_COOKIE_MAX_AGE
//   - IDENTITY_TOKEN_TTL, IDENTITY_TOKEN_ISSUER
//   - IDENTITY_REDIS_URL, IDENTITY_SESSION_TTL
//   - IDENTITY_POOL_MAX_OPEN, IDENTITY_POOL_CHECKOUT_TIMEOUT_MS
//
// Secrets are never read from the config file: IDENTITY_DATA_KEY,
// IDENTITY_TOKEN_KEY and DATABASE_URL come from the environment only.
package config
