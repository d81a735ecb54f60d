package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/llmarena/arena/pkg/auth"
	"github.com/llmarena/arena/pkg/auth/apikey"
	"github.com/llmarena/arena/pkg/auth/jwt"
	"github.com/llmarena/arena/pkg/auth/noop"
	"github.com/llmarena/arena/pkg/config"
	"github.com/llmarena/arena/pkg/storage"
	"github.com/llmarena/arena/pkg/storage/memory"
	"github.com/llmarena/arena/pkg/storage/postgres"
)

type stores struct {
	threads storage.ThreadStore
	models  storage.ModelStore
}

// openStores opens the configured backend. Both stores share one
// connection.
func openStores(ctx context.Context, cfg *config.Config) (stores, error) {
	switch cfg.Storage.Type {
	case "postgres":
		pg, err := postgres.New(ctx, postgres.Config{
			DSN:            cfg.Storage.Postgres.DSN,
			MaxConns:       cfg.Storage.Postgres.MaxConns,
			MigrateOnStart: cfg.Storage.Postgres.MigrateOnStart,
		})
		if err != nil {
			return stores{}, fmt.Errorf("opening postgres: %w", err)
		}
		slog.Info("storage enabled", "type", "postgres", "max_conns", cfg.Storage.Postgres.MaxConns)
		return stores{threads: pg, models: pg}, nil
	default:
		mem := memory.New(cfg.Storage.MaxSize)
		slog.Info("storage enabled", "type", "memory", "max_size", cfg.Storage.MaxSize)
		return stores{threads: mem, models: mem}, nil
	}
}

// buildAuth assembles the authenticator chain and rate limiter into HTTP
// middleware. Session tokens are tried before API keys.
func buildAuth(cfg config.AuthConfig) (func(http.Handler) http.Handler, error) {
	chain := &auth.AuthChain{DefaultDecision: auth.No}

	switch cfg.Type {
	case "none":
		chain.Authenticators = append(chain.Authenticators, &noop.Authenticator{})
	case "jwt":
		a, err := jwt.New(jwt.Config{
			Secret:     []byte(cfg.JWT.Secret),
			CookieName: cfg.JWT.CookieName,
			UserClaim:  cfg.JWT.UserClaim,
			Issuer:     cfg.JWT.Issuer,
			Audience:   cfg.JWT.Audience,
			Leeway:     cfg.JWT.Leeway,
		})
		if err != nil {
			return nil, err
		}
		chain.Authenticators = append(chain.Authenticators, a)
	}

	if len(cfg.APIKeys) > 0 {
		keys := make([]apikey.Key, len(cfg.APIKeys))
		for i, k := range cfg.APIKeys {
			keys[i] = apikey.Key{Name: k.Name, Key: k.Key, Subject: k.Subject, ServiceTier: k.ServiceTier}
		}
		// Keys go first under "none" so they still resolve to their subject.
		if cfg.Type == "none" {
			chain.Authenticators = append([]auth.Authenticator{apikey.New(keys)}, chain.Authenticators...)
		} else {
			chain.Authenticators = append(chain.Authenticators, apikey.New(keys))
		}
	}

	var limiter auth.RateLimiter
	if cfg.RateLimit.DefaultRPM > 0 || len(cfg.RateLimit.Tiers) > 0 {
		tiers := make(map[string]auth.TierConfig, len(cfg.RateLimit.Tiers))
		for name, rpm := range cfg.RateLimit.Tiers {
			tiers[name] = auth.TierConfig{RequestsPerMinute: rpm}
		}
		limiter = auth.NewInProcessLimiter(tiers, cfg.RateLimit.DefaultRPM)
	}

	slog.Info("authentication configured",
		"type", cfg.Type,
		"authenticators", len(chain.Authenticators),
		"rate_limit", limiter != nil,
	)
	return auth.Middleware(chain, limiter, auth.DefaultBypassEndpoints), nil
}
