package auth

import (
	"log/slog"
	"net/http"

	"github.com/llmarena/arena/pkg/api"
	"github.com/llmarena/arena/pkg/debug"
	"github.com/llmarena/arena/pkg/observability"
	"github.com/llmarena/arena/pkg/storage"
	"github.com/llmarena/arena/pkg/transport"
)

// Middleware authenticates every request not on the bypass list, applies
// the optional rate limiter and scopes storage to the caller.
func Middleware(chain *AuthChain, limiter RateLimiter, bypassEndpoints []string) func(http.Handler) http.Handler {
	bypass := make(map[string]bool, len(bypassEndpoints))
	for _, ep := range bypassEndpoints {
		bypass[ep] = true
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if bypass[r.URL.Path] {
				next.ServeHTTP(w, r)
				return
			}

			result := chain.Authenticate(r.Context(), r)
			if result.Decision != Yes || result.Identity == nil {
				slog.Warn("authentication failed",
					"path", r.URL.Path,
					"remote_addr", r.RemoteAddr,
					"error", result.Err,
				)
				transport.WriteAPIError(w, api.NewUnauthorizedError("Unauthorized"))
				return
			}

			if result.Identity.Subject == "" {
				slog.Error("authenticator returned identity with empty subject")
				transport.WriteAPIError(w, api.NewServerError("internal authentication error"))
				return
			}

			if limiter != nil {
				if err := limiter.Allow(r.Context(), result.Identity); err != nil {
					slog.Warn("rate limit exceeded",
						"subject", result.Identity.Subject,
						"tier", result.Identity.ServiceTier,
					)
					observability.RateLimitRejectedTotal.WithLabelValues(tierOf(result.Identity)).Inc()
					transport.WriteAPIError(w, api.NewTooManyRequestsError("rate limit exceeded"))
					return
				}
			}

			debug.Log("auth", "authenticated",
				"subject", result.Identity.Subject,
				"tier", tierOf(result.Identity),
				"path", r.URL.Path,
			)

			ctx := SetIdentity(r.Context(), result.Identity)
			ctx = storage.SetOwner(ctx, result.Identity.Owner())
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// DefaultBypassEndpoints lists endpoints that skip authentication.
var DefaultBypassEndpoints = []string{"/healthz", "/readyz", "/metrics"}
