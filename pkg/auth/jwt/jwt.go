// Package jwt authenticates session tokens signed with a shared HMAC
// secret. The token is read from the session cookie and, failing that,
// from a Bearer Authorization header.
package jwt

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
	"github.com/llmarena/arena/pkg/auth"
)

// Config configures the session token authenticator.
type Config struct {
	// Secret is the HMAC key shared with the token issuer.
	Secret []byte

	// CookieName is the cookie carrying the session token. Default: "token".
	CookieName string

	// UserClaim is the claim used as the identity subject. Default: "sub".
	UserClaim string

	// TierClaim optionally selects the rate limit tier. Default: "tier".
	TierClaim string

	// ScopesClaim holds authorization scopes. Default: "scope".
	ScopesClaim string

	// Issuer and Audience are validated when non-empty.
	Issuer   string
	Audience string

	// Leeway tolerates clock skew on exp and nbf.
	Leeway time.Duration
}

func (c *Config) applyDefaults() {
	if c.CookieName == "" {
		c.CookieName = "token"
	}
	if c.UserClaim == "" {
		c.UserClaim = "sub"
	}
	if c.TierClaim == "" {
		c.TierClaim = "tier"
	}
	if c.ScopesClaim == "" {
		c.ScopesClaim = "scope"
	}
}

// Authenticator validates HMAC-signed session tokens.
type Authenticator struct {
	config Config
	parser *jwtlib.Parser
}

// New creates a session token authenticator.
func New(cfg Config) (*Authenticator, error) {
	if len(cfg.Secret) == 0 {
		return nil, errors.New("jwt: secret is required")
	}
	cfg.applyDefaults()

	// iat is deliberately not validated: existing issuers stamp it in
	// milliseconds.
	opts := []jwtlib.ParserOption{
		jwtlib.WithValidMethods([]string{"HS256", "HS384", "HS512"}),
		jwtlib.WithLeeway(cfg.Leeway),
	}
	if cfg.Issuer != "" {
		opts = append(opts, jwtlib.WithIssuer(cfg.Issuer))
	}
	if cfg.Audience != "" {
		opts = append(opts, jwtlib.WithAudience(cfg.Audience))
	}

	return &Authenticator{config: cfg, parser: jwtlib.NewParser(opts...)}, nil
}

// tokenFromRequest returns the raw token and whether a session credential
// was offered at all. Bearer values that are not shaped like a JWT belong
// to other authenticators.
func (a *Authenticator) tokenFromRequest(r *http.Request) (string, bool) {
	if c, err := r.Cookie(a.config.CookieName); err == nil {
		return c.Value, true
	}
	header := r.Header.Get("Authorization")
	if !strings.HasPrefix(header, "Bearer ") {
		return "", false
	}
	tok := strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
	if strings.Count(tok, ".") != 2 {
		return "", false
	}
	return tok, true
}

// Authenticate abstains when the request carries no session token,
// rejects an invalid one and accepts a valid one.
func (a *Authenticator) Authenticate(_ context.Context, r *http.Request) auth.AuthResult {
	tokenStr, present := a.tokenFromRequest(r)
	if !present {
		return auth.AuthResult{Decision: auth.Abstain}
	}
	if tokenStr == "" {
		return auth.AuthResult{Decision: auth.No, Err: errors.New("empty session token")}
	}

	claims := jwtlib.MapClaims{}
	token, err := a.parser.ParseWithClaims(tokenStr, claims, func(*jwtlib.Token) (any, error) {
		return a.config.Secret, nil
	})
	if err != nil || !token.Valid {
		slog.Debug("session token validation failed", "error", err)
		return auth.AuthResult{Decision: auth.No, Err: fmt.Errorf("invalid session token: %w", err)}
	}

	subject := claimString(claims, a.config.UserClaim)
	if subject == "" {
		return auth.AuthResult{
			Decision: auth.No,
			Err:      fmt.Errorf("session token missing %q claim", a.config.UserClaim),
		}
	}

	identity := &auth.Identity{
		Subject:     subject,
		ServiceTier: claimString(claims, a.config.TierClaim),
		Scopes:      extractScopes(claims, a.config.ScopesClaim),
		Metadata:    map[string]string{"authenticator": "jwt"},
	}
	if iss := claimString(claims, "iss"); iss != "" {
		identity.Metadata["issuer"] = iss
	}

	return auth.AuthResult{Decision: auth.Yes, Identity: identity}
}

// Issue signs a session token for subject with HS256. A zero ttl issues a
// token without expiry.
func (a *Authenticator) Issue(subject string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := jwtlib.MapClaims{
		a.config.UserClaim: subject,
		"iat":              now.Unix(),
	}
	if ttl > 0 {
		claims["exp"] = now.Add(ttl).Unix()
	}
	if a.config.Issuer != "" {
		claims["iss"] = a.config.Issuer
	}
	if a.config.Audience != "" {
		claims["aud"] = a.config.Audience
	}
	return jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, claims).SignedString(a.config.Secret)
}

func claimString(claims jwtlib.MapClaims, key string) string {
	s, _ := claims[key].(string)
	return s
}

// extractScopes accepts either a space-separated string or a JSON array.
func extractScopes(claims jwtlib.MapClaims, key string) []string {
	switch v := claims[key].(type) {
	case string:
		if parts := strings.Fields(v); len(parts) > 0 {
			return parts
		}
	case []any:
		var scopes []string
		for _, item := range v {
			if s, ok := item.(string); ok {
				scopes = append(scopes, s)
			}
		}
		return scopes
	}
	return nil
}
