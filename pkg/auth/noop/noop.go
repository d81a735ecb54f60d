// Package noop admits every request as the anonymous user. It is meant
// for local development only.
package noop

import (
	"context"
	"net/http"

	"github.com/llmarena/arena/pkg/auth"
)

// Authenticator always votes Yes.
type Authenticator struct {
	// Subject overrides the anonymous subject, which lets a developer
	// act as a specific user.
	Subject string
}

func (a *Authenticator) Authenticate(_ context.Context, r *http.Request) auth.AuthResult {
	subject := a.Subject
	if subject == "" {
		subject = auth.AnonymousSubject
	}
	return auth.AuthResult{
		Decision: auth.Yes,
		Identity: &auth.Identity{Subject: subject, ServiceTier: "default"},
	}
}
