// Package bearer carries identities in signed JWT bearer tokens.
//
// Requests present "Authorization: Bearer <token>", where the token's
// subject is the user's role ID. A changed identity is answered with a
// fresh token in the X-Identity-Token header; a forgotten one with
// X-Identity-Token-Revoked. Tokens are stateless, so revocation is left to
// the client discarding its token.
package bearer

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/doodlesbykumbi/identity-in-go/pkg/identity"
)

// Response headers written on commit
const (
	TokenHeader   = "X-Identity-Token"
	RevokedHeader = "X-Identity-Token-Revoked"
)

var (
	// ErrMalformed is returned for authorization headers that are not bearer tokens
	ErrMalformed = errors.New("malformed bearer authorization")
	// ErrInvalidToken is returned for tokens that fail verification
	ErrInvalidToken = errors.New("invalid bearer token")
)

// Options configure token issuing and verification
type Options struct {
	Issuer string
	TTL    time.Duration
	// Now defaults to time.Now
	Now func() time.Time
}

// Policy verifies and issues HS256 tokens
type Policy struct {
	key    []byte
	opts   Options
	parser *jwt.Parser
}

var _ identity.Policy = (*Policy)(nil)

// New creates a bearer policy signing with key
func New(key []byte, opts Options) (*Policy, error) {
	if len(key) < 32 {
		return nil, fmt.Errorf("bearer signing key must be at least 32 bytes, got %d", len(key))
	}
	if opts.TTL <= 0 {
		opts.TTL = time.Hour
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	parserOpts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(opts.Now),
	}
	if opts.Issuer != "" {
		parserOpts = append(parserOpts, jwt.WithIssuer(opts.Issuer))
	}

	return &Policy{key: key, opts: opts, parser: jwt.NewParser(parserOpts...)}, nil
}

func (p *Policy) Resolve(r *http.Request) (string, bool, error) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return "", false, nil
	}

	scheme, raw, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(raw) == "" {
		return "", false, ErrMalformed
	}

	claims := &jwt.RegisteredClaims{}
	_, err := p.parser.ParseWithClaims(strings.TrimSpace(raw), claims, func(token *jwt.Token) (interface{}, error) {
		return p.key, nil
	})
	if err != nil {
		return "", false, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if claims.Subject == "" {
		return "", false, fmt.Errorf("%w: missing subject", ErrInvalidToken)
	}

	return claims.Subject, true, nil
}

// Commit issues a new token for a changed identity and flags a forgotten
// one as revoked.
func (p *Policy) Commit(_ *http.Request, state identity.Context, w http.ResponseWriter) error {
	if !state.Changed {
		return nil
	}

	if state.Forget {
		w.Header().Set(RevokedHeader, "true")
		return nil
	}

	token, err := p.issue(state.User.RoleID())
	if err != nil {
		return err
	}
	w.Header().Set(TokenHeader, token)
	return nil
}

// Issue returns a signed token for roleID
func (p *Policy) Issue(_ context.Context, roleID string) (string, error) {
	return p.issue(roleID)
}

func (p *Policy) issue(roleID string) (string, error) {
	now := p.opts.Now()
	claims := jwt.RegisteredClaims{
		Subject:   roleID,
		Issuer:    p.opts.Issuer,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(p.opts.TTL)),
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(p.key)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}
