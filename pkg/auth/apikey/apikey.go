// Package apikey authenticates service clients by static bearer keys.
// Keys are held only as SHA-256 hashes and compared in constant time.
package apikey

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/llmarena/arena/pkg/auth"
)

// Key is one configured API key and the identity it grants.
type Key struct {
	Name        string `yaml:"name"`
	Key         string `yaml:"key"`
	Subject     string `yaml:"subject"`
	ServiceTier string `yaml:"service_tier"`
}

type entry struct {
	hash     [32]byte
	identity auth.Identity
}

// Authenticator validates bearer keys against a static set.
type Authenticator struct {
	entries []entry
}

// New hashes keys immediately; plaintext keys are not retained. A key
// without a subject authenticates as its name.
func New(keys []Key) *Authenticator {
	a := &Authenticator{}
	for _, k := range keys {
		subject := k.Subject
		if subject == "" {
			subject = k.Name
		}
		a.entries = append(a.entries, entry{
			hash: sha256.Sum256([]byte(k.Key)),
			identity: auth.Identity{
				Subject:     subject,
				ServiceTier: k.ServiceTier,
				Metadata:    map[string]string{"authenticator": "apikey", "key_name": k.Name},
			},
		})
	}
	return a
}

// Len reports the number of configured keys.
func (a *Authenticator) Len() int { return len(a.entries) }

// Authenticate abstains without a Bearer header, accepts a known key and
// rejects any other bearer value.
func (a *Authenticator) Authenticate(_ context.Context, r *http.Request) auth.AuthResult {
	header := r.Header.Get("Authorization")
	if !strings.HasPrefix(header, "Bearer ") {
		return auth.AuthResult{Decision: auth.Abstain}
	}

	token := strings.TrimPrefix(header, "Bearer ")
	if token == "" {
		return auth.AuthResult{Decision: auth.No, Err: auth.ErrUnauthenticated}
	}

	sum := sha256.Sum256([]byte(token))
	for _, e := range a.entries {
		if subtle.ConstantTimeCompare(sum[:], e.hash[:]) == 1 {
			id := e.identity
			id.Metadata = map[string]string{
				"authenticator": e.identity.Metadata["authenticator"],
				"key_name":      e.identity.Metadata["key_name"],
			}
			return auth.AuthResult{Decision: auth.Yes, Identity: &id}
		}
	}

	return auth.AuthResult{Decision: auth.No, Err: auth.ErrUnauthenticated}
}
