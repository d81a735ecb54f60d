package auth

import (
	"context"
	"errors"
	"net/http"
)

// AuthDecision is the vote an authenticator casts for a request.
type AuthDecision int

const (
	// Yes means the credentials are valid. The chain stops here.
	Yes AuthDecision = iota

	// No means credentials are present but invalid. The request is rejected.
	No

	// Abstain means the authenticator does not handle this credential kind.
	Abstain
)

// AuthResult carries the outcome of an authentication attempt.
type AuthResult struct {
	Decision AuthDecision
	Identity *Identity // set when Decision == Yes
	Err      error     // set when Decision == No
}

// Identity represents an authenticated caller.
type Identity struct {
	// Subject is the user identifier. Threads are owned by the subject.
	Subject string

	// ServiceTier selects the rate limit bucket.
	ServiceTier string

	Scopes []string

	// Metadata carries authenticator-specific data (issuer, key name).
	Metadata map[string]string
}

// Owner returns the storage owner for the identity.
func (id *Identity) Owner() string {
	if id == nil {
		return ""
	}
	return id.Subject
}

// Authenticator examines request credentials and casts a vote.
type Authenticator interface {
	Authenticate(ctx context.Context, r *http.Request) AuthResult
}

// AuthenticatorFunc adapts a plain function to the Authenticator interface.
type AuthenticatorFunc func(ctx context.Context, r *http.Request) AuthResult

func (f AuthenticatorFunc) Authenticate(ctx context.Context, r *http.Request) AuthResult {
	return f(ctx, r)
}

var (
	ErrUnauthenticated = errors.New("authentication required")
	ErrTooManyRequests = errors.New("rate limit exceeded")
)

// AnonymousSubject is the subject assigned when the chain defaults to Yes.
const AnonymousSubject = "anonymous"

// AuthChain evaluates authenticators in order.
type AuthChain struct {
	Authenticators []Authenticator

	// DefaultDecision applies when every authenticator abstains.
	// Yes admits the caller as AnonymousSubject.
	DefaultDecision AuthDecision
}

// Authenticate runs the chain and stops on the first Yes or No.
func (c *AuthChain) Authenticate(ctx context.Context, r *http.Request) AuthResult {
	for _, authn := range c.Authenticators {
		result := authn.Authenticate(ctx, r)
		if result.Decision != Abstain {
			return result
		}
	}

	if c.DefaultDecision == Yes {
		return AuthResult{
			Decision: Yes,
			Identity: &Identity{Subject: AnonymousSubject, ServiceTier: "default"},
		}
	}

	return AuthResult{Decision: No, Err: ErrUnauthenticated}
}
