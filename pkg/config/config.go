package config

import (
	"encoding/json"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	DefaultConfigPath = "/etc/identity/config"
	ConfigFileName    = "identity.yml"
)

// Identity policy names
const (
	PolicyCookie  = "cookie"
	PolicyBearer  = "bearer"
	PolicySession = "session"
)

// ValidPolicies is the list of valid identity policies
var ValidPolicies = []string{PolicyCookie, PolicyBearer, PolicySession}

// Config holds all identity service settings
type Config struct {
	// IdentityPolicy selects how identities travel with requests
	IdentityPolicy string `yaml:"identity_policy" json:"identity_policy"`

	// CookieName is the cookie used by the cookie and session policies
	CookieName   string `yaml:"cookie_name" json:"cookie_name"`
	CookieDomain string `yaml:"cookie_domain" json:"cookie_domain"`
	CookiePath   string `yaml:"cookie_path" json:"cookie_path"`
	CookieSecure bool   `yaml:"cookie_secure" json:"cookie_secure"`
	// CookieMaxAge is the cookie lifetime in seconds
	CookieMaxAge int `yaml:"cookie_max_age" json:"cookie_max_age"`

	// TokenTTL is the bearer token lifetime in seconds
	TokenTTL    int    `yaml:"token_ttl" json:"token_ttl"`
	TokenIssuer string `yaml:"token_issuer" json:"token_issuer"`

	// SessionTTL is the idle lifetime of a server-side session in seconds
	SessionTTL    int    `yaml:"session_ttl" json:"session_ttl"`
	SessionPrefix string `yaml:"session_prefix" json:"session_prefix"`
	RedisURL      string `yaml:"redis_url" json:"redis_url"`

	// Connection pool limits
	PoolMaxOpen           int `yaml:"pool_max_open" json:"pool_max_open"`
	PoolMaxIdle           int `yaml:"pool_max_idle" json:"pool_max_idle"`
	PoolConnMaxLifetime   int `yaml:"pool_conn_max_lifetime" json:"pool_conn_max_lifetime"`
	PoolCheckoutTimeoutMS int `yaml:"pool_checkout_timeout_ms" json:"pool_checkout_timeout_ms"`

	// TrustedProxies is a list of CIDR ranges for trusted proxies
	TrustedProxies []string `yaml:"trusted_proxies" json:"trusted_proxies"`

	// sources tracks where each value came from
	sources map[string]string

	// configFilePath is the path to the config file
	configFilePath string
}

// fileConfig mirrors Config with pointers so that zero values written in
// the file are told apart from absent keys.
type fileConfig struct {
	IdentityPolicy        *string  `yaml:"identity_policy"`
	CookieName            *string  `yaml:"cookie_name"`
	CookieDomain          *string  `yaml:"cookie_domain"`
	CookiePath            *string  `yaml:"cookie_path"`
	CookieSecure          *bool    `yaml:"cookie_secure"`
	CookieMaxAge          *int     `yaml:"cookie_max_age"`
	TokenTTL              *int     `yaml:"token_ttl"`
	TokenIssuer           *string  `yaml:"token_issuer"`
	SessionTTL            *int     `yaml:"session_ttl"`
	SessionPrefix         *string  `yaml:"session_prefix"`
	RedisURL              *string  `yaml:"redis_url"`
	PoolMaxOpen           *int     `yaml:"pool_max_open"`
	PoolMaxIdle           *int     `yaml:"pool_max_idle"`
	PoolConnMaxLifetime   *int     `yaml:"pool_conn_max_lifetime"`
	PoolCheckoutTimeoutMS *int     `yaml:"pool_checkout_timeout_ms"`
	TrustedProxies        []string `yaml:"trusted_proxies"`
}

// Attribute represents a configuration attribute with its value and source
type Attribute struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Source string `json:"source"`
}

// Default returns a config with default values
func Default() *Config {
	c := &Config{
		IdentityPolicy:        PolicyCookie,
		CookieName:            "identity",
		CookiePath:            "/",
		CookieSecure:          true,
		CookieMaxAge:          86400,
		TokenTTL:              480,
		TokenIssuer:           "identity-in-go",
		SessionTTL:            1800,
		SessionPrefix:         "identity:session:",
		PoolMaxOpen:           10,
		PoolMaxIdle:           5,
		PoolConnMaxLifetime:   1800,
		PoolCheckoutTimeoutMS: 5000,
		TrustedProxies:        []string{},
		sources:               make(map[string]string),
	}
	for _, name := range attributeNames() {
		c.sources[name] = "default"
	}
	return c
}

// Load loads configuration from the default config file and environment
// variables. Environment variables take precedence over file values.
func Load() (*Config, error) {
	return LoadFile(Path())
}

// LoadFile is Load with an explicit config file. A missing file is not an
// error.
func LoadFile(path string) (*Config, error) {
	config := Default()
	config.configFilePath = path

	if data, err := os.ReadFile(config.configFilePath); err == nil {
		var file fileConfig
		if err := yaml.Unmarshal(data, &file); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", config.configFilePath, err)
		}
		config.applyFileConfig(&file)
	}

	if err := config.applyEnvConfig(); err != nil {
		return nil, err
	}

	return config, nil
}

// Path returns the config file location
func Path() string {
	configPath := os.Getenv("IDENTITY_CONFIG_PATH")
	if configPath == "" {
		configPath = DefaultConfigPath
	}
	return filepath.Join(configPath, ConfigFileName)
}

func attributeNames() []string {
	return []string{
		"identity_policy", "cookie_name", "cookie_domain", "cookie_path",
		"cookie_secure", "cookie_max_age", "token_ttl", "token_issuer",
		"session_ttl", "session_prefix", "redis_url", "pool_max_open",
		"pool_max_idle", "pool_conn_max_lifetime", "pool_checkout_timeout_ms",
		"trusted_proxies",
	}
}

func setFrom[T any](c *Config, name string, dst *T, src *T) {
	if src == nil {
		return
	}
	*dst = *src
	c.sources[name] = "file"
}

func (c *Config) applyFileConfig(file *fileConfig) {
	setFrom(c, "identity_policy", &c.IdentityPolicy, file.IdentityPolicy)
	setFrom(c, "cookie_name", &c.CookieName, file.CookieName)
	setFrom(c, "cookie_domain", &c.CookieDomain, file.CookieDomain)
	setFrom(c, "cookie_path", &c.CookiePath, file.CookiePath)
	setFrom(c, "cookie_secure", &c.CookieSecure, file.CookieSecure)
	setFrom(c, "cookie_max_age", &c.CookieMaxAge, file.CookieMaxAge)
	setFrom(c, "token_ttl", &c.TokenTTL, file.TokenTTL)
	setFrom(c, "token_issuer", &c.TokenIssuer, file.TokenIssuer)
	setFrom(c, "session_ttl", &c.SessionTTL, file.SessionTTL)
	setFrom(c, "session_prefix", &c.SessionPrefix, file.SessionPrefix)
	setFrom(c, "redis_url", &c.RedisURL, file.RedisURL)
	setFrom(c, "pool_max_open", &c.PoolMaxOpen, file.PoolMaxOpen)
	setFrom(c, "pool_max_idle", &c.PoolMaxIdle, file.PoolMaxIdle)
	setFrom(c, "pool_conn_max_lifetime", &c.PoolConnMaxLifetime, file.PoolConnMaxLifetime)
	setFrom(c, "pool_checkout_timeout_ms", &c.PoolCheckoutTimeoutMS, file.PoolCheckoutTimeoutMS)
	if len(file.TrustedProxies) > 0 {
		c.TrustedProxies = file.TrustedProxies
		c.sources["trusted_proxies"] = "file"
	}
}

func envName(attribute string) string {
	return "IDENTITY_" + strings.ToUpper(attribute)
}

func (c *Config) envString(name string, dst *string) {
	if val := os.Getenv(envName(name)); val != "" {
		*dst = val
		c.sources[name] = "environment"
	}
}

func (c *Config) envInt(name string, dst *int) error {
	val := os.Getenv(envName(name))
	if val == "" {
		return nil
	}
	i, err := strconv.Atoi(val)
	if err != nil {
		return fmt.Errorf("invalid %s value %q: %w", envName(name), val, err)
	}
	*dst = i
	c.sources[name] = "environment"
	return nil
}

func (c *Config) envBool(name string, dst *bool) {
	if val := os.Getenv(envName(name)); val != "" {
		*dst = val == "true" || val == "1"
		c.sources[name] = "environment"
	}
}

func (c *Config) applyEnvConfig() error {
	// IDENTITY_POLICY reads better than IDENTITY_IDENTITY_POLICY
	if val := os.Getenv("IDENTITY_POLICY"); val != "" {
		c.IdentityPolicy = val
		c.sources["identity_policy"] = "environment"
	}
	c.envString("cookie_name", &c.CookieName)
	c.envString("cookie_domain", &c.CookieDomain)
	c.envString("cookie_path", &c.CookiePath)
	c.envBool("cookie_secure", &c.CookieSecure)
	c.envString("token_issuer", &c.TokenIssuer)
	c.envString("session_prefix", &c.SessionPrefix)
	c.envString("redis_url", &c.RedisURL)

	ints := []struct {
		name string
		dst  *int
	}{
		{"cookie_max_age", &c.CookieMaxAge},
		{"token_ttl", &c.TokenTTL},
		{"session_ttl", &c.SessionTTL},
		{"pool_max_open", &c.PoolMaxOpen},
		{"pool_max_idle", &c.PoolMaxIdle},
		{"pool_conn_max_lifetime", &c.PoolConnMaxLifetime},
		{"pool_checkout_timeout_ms", &c.PoolCheckoutTimeoutMS},
	}
	for _, i := range ints {
		if err := c.envInt(i.name, i.dst); err != nil {
			return err
		}
	}

	if val := os.Getenv("IDENTITY_TRUSTED_PROXIES"); val != "" {
		c.TrustedProxies = splitAndTrim(val)
		c.sources["trusted_proxies"] = "environment"
	}
	return nil
}

// ConfigFilePath returns the path to the config file
func (c *Config) ConfigFilePath() string {
	return c.configFilePath
}

// Source returns the source of a configuration attribute
func (c *Config) Source(name string) string {
	if c.sources == nil {
		return "default"
	}
	if s, ok := c.sources[name]; ok {
		return s
	}
	return "default"
}

// CookieLifetime returns the cookie max age as a duration
func (c *Config) CookieLifetime() time.Duration {
	return time.Duration(c.CookieMaxAge) * time.Second
}

// TokenLifetime returns the bearer token TTL as a duration
func (c *Config) TokenLifetime() time.Duration {
	return time.Duration(c.TokenTTL) * time.Second
}

// SessionLifetime returns the session TTL as a duration
func (c *Config) SessionLifetime() time.Duration {
	return time.Duration(c.SessionTTL) * time.Second
}

// ConnMaxLifetime returns the pooled connection lifetime as a duration
func (c *Config) ConnMaxLifetime() time.Duration {
	return time.Duration(c.PoolConnMaxLifetime) * time.Second
}

// CheckoutTimeout returns the pool checkout timeout as a duration
func (c *Config) CheckoutTimeout() time.Duration {
	return time.Duration(c.PoolCheckoutTimeoutMS) * time.Millisecond
}

// IsTrustedProxy checks if an IP is from a trusted proxy
func (c *Config) IsTrustedProxy(ip string) bool {
	if len(c.TrustedProxies) == 0 {
		return false
	}

	parsedIP := net.ParseIP(ip)
	if parsedIP == nil {
		return false
	}

	for _, cidr := range c.TrustedProxies {
		_, network, err := net.ParseCIDR(cidr)
		if err != nil {
			// Try as plain IP
			if net.ParseIP(cidr) != nil && cidr == ip {
				return true
			}
			continue
		}
		if network.Contains(parsedIP) {
			return true
		}
	}
	return false
}

// Validate validates the configuration
func (c *Config) Validate() error {
	valid := false
	for _, p := range ValidPolicies {
		if c.IdentityPolicy == p {
			valid = true
			break
		}
	}
	if !valid {
		return fmt.Errorf("invalid identity_policy: %q (expected one of %s)", c.IdentityPolicy, strings.Join(ValidPolicies, ", "))
	}

	if c.IdentityPolicy != PolicyBearer && c.CookieName == "" {
		return fmt.Errorf("cookie_name is required for the %s policy", c.IdentityPolicy)
	}
	if c.IdentityPolicy == PolicySession && c.RedisURL == "" {
		return fmt.Errorf("redis_url is required for the session policy")
	}

	positive := map[string]int{
		"token_ttl":                c.TokenTTL,
		"session_ttl":              c.SessionTTL,
		"pool_max_open":            c.PoolMaxOpen,
		"pool_checkout_timeout_ms": c.PoolCheckoutTimeoutMS,
	}
	for name, v := range positive {
		if v <= 0 {
			return fmt.Errorf("%s must be positive, got %d", name, v)
		}
	}
	if c.PoolMaxIdle < 0 || c.PoolMaxIdle > c.PoolMaxOpen {
		return fmt.Errorf("pool_max_idle must be between 0 and pool_max_open, got %d", c.PoolMaxIdle)
	}

	for _, cidr := range c.TrustedProxies {
		if _, _, err := net.ParseCIDR(cidr); err != nil {
			if net.ParseIP(cidr) == nil {
				return fmt.Errorf("invalid trusted_proxies value: %s", cidr)
			}
		}
	}

	return nil
}

// Attributes returns all configuration attributes with their values and sources
func (c *Config) Attributes() []Attribute {
	values := map[string]string{
		"identity_policy":          c.IdentityPolicy,
		"cookie_name":              c.CookieName,
		"cookie_domain":            c.CookieDomain,
		"cookie_path":              c.CookiePath,
		"cookie_secure":            strconv.FormatBool(c.CookieSecure),
		"cookie_max_age":           strconv.Itoa(c.CookieMaxAge),
		"token_ttl":                strconv.Itoa(c.TokenTTL),
		"token_issuer":             c.TokenIssuer,
		"session_ttl":              strconv.Itoa(c.SessionTTL),
		"session_prefix":           c.SessionPrefix,
		"redis_url":                redactURL(c.RedisURL),
		"pool_max_open":            strconv.Itoa(c.PoolMaxOpen),
		"pool_max_idle":            strconv.Itoa(c.PoolMaxIdle),
		"pool_conn_max_lifetime":   strconv.Itoa(c.PoolConnMaxLifetime),
		"pool_checkout_timeout_ms": strconv.Itoa(c.PoolCheckoutTimeoutMS),
		"trusted_proxies":          strings.Join(c.TrustedProxies, ","),
	}

	attrs := make([]Attribute, 0, len(values))
	for _, name := range attributeNames() {
		attrs = append(attrs, Attribute{Name: name, Value: values[name], Source: c.Source(name)})
	}
	return attrs
}

// FormatText returns a text representation of the configuration
func (c *Config) FormatText() string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Config file: %s\n\n", c.configFilePath))
	sb.WriteString(fmt.Sprintf("%-30s %-30s %s\n", "NAME", "VALUE", "SOURCE"))
	sb.WriteString(fmt.Sprintf("%-30s %-30s %s\n", "----", "-----", "------"))

	for _, attr := range c.Attributes() {
		value := attr.Value
		if value == "" {
			value = "(not set)"
		}
		sb.WriteString(fmt.Sprintf("%-30s %-30s %s\n", attr.Name, value, attr.Source))
	}
	return sb.String()
}

// FormatJSON returns a JSON representation of the configuration
func (c *Config) FormatJSON() (string, error) {
	result := map[string]interface{}{
		"config_file": c.configFilePath,
		"attributes":  c.Attributes(),
	}
	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// redactURL hides the password of a connection URL
func redactURL(raw string) string {
	at := strings.LastIndex(raw, "@")
	scheme := strings.Index(raw, "://")
	if at < 0 || scheme < 0 {
		return raw
	}
	userinfo := raw[scheme+3 : at]
	if colon := strings.Index(userinfo, ":"); colon >= 0 {
		return raw[:scheme+3] + userinfo[:colon] + ":xxxxx" + raw[at:]
	}
	return raw
}

func splitAndTrim(s string) []string {
	parts := strings.Split(s, ",")
	result := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			result = append(result, p)
		}
	}
	return result
}
