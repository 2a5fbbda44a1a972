// Command identityctl runs and administers the identity service.
//
// # Quick Start
//
//	# Generate a data key for cookies and bearer tokens
//	export IDENTITY_DATA_KEY="$(identityctl data-key generate)"
//
//	# Run database migrations
//	identityctl db migrate
//
//	# Create a user and issue a token for it
//	identityctl user create --account acme --login alice
//	identityctl token issue acme:user:alice
//
//	# Start the server
//	identityctl server
//
// # Environment Variables
//
//   - DATABASE_URL: PostgreSQL connection string (required)
//   - IDENTITY_DATA_KEY: base64 data key (cookie and bearer policies)
//   - IDENTITY_CONFIG_PATH: directory of identity.yml
//   - IDENTITY_LOG_LEVEL: debug, info, warn or error
//   - IDENTITY_AUDIT_ENABLED: set to false to disable the audit trail
//   - AUDIT_DATABASE_URL: persist audit events to this database
package main
