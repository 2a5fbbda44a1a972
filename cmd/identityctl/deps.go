package main

import (
	"fmt"
	"os"

	"github.com/doodlesbykumbi/identity-in-go/pkg/config"
	"github.com/doodlesbykumbi/identity-in-go/pkg/identity/policy"
	"github.com/doodlesbykumbi/identity-in-go/pkg/identity/policy/session"
	"github.com/doodlesbykumbi/identity-in-go/pkg/seal"
)

// loadConfig loads and validates the configuration
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// loadDataKey decodes IDENTITY_DATA_KEY. It returns nil when unset.
func loadDataKey() ([]byte, error) {
	encoded, ok := os.LookupEnv("IDENTITY_DATA_KEY")
	if !ok || encoded == "" {
		return nil, nil
	}
	key, err := seal.ParseKey(encoded)
	if err != nil {
		return nil, fmt.Errorf("bad IDENTITY_DATA_KEY: %w", err)
	}
	return key, nil
}

// newPolicy builds the configured identity policy. The returned func
// releases what the policy holds open.
func newPolicy(cfg *config.Config) (policy.IssuingPolicy, func(), error) {
	dataKey, err := loadDataKey()
	if err != nil {
		return nil, nil, err
	}

	deps := policy.Deps{DataKey: dataKey}
	closer := func() {}
	if cfg.IdentityPolicy == config.PolicySession {
		sessions, err := session.NewRedisStore(cfg.RedisURL)
		if err != nil {
			return nil, nil, fmt.Errorf("bad redis_url: %w", err)
		}
		deps.Sessions = sessions
		closer = func() { _ = sessions.Close() }
	}

	p, err := policy.New(cfg, deps)
	if err != nil {
		closer()
		return nil, nil, err
	}
	return p, closer, nil
}
