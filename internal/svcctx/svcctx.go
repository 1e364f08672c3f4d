// Package svcctx provides service context for dependency injection via context.
// This package is separate from server to avoid import cycles with endpoints.
package svcctx

import (
	"context"
	"log/slog"

	"github.com/Dweliw01/DocuFlow-sub000/internal/config"
	"github.com/Dweliw01/DocuFlow-sub000/internal/connector"
	"github.com/Dweliw01/DocuFlow-sub000/internal/engines"
	"github.com/Dweliw01/DocuFlow-sub000/internal/home"
	"github.com/Dweliw01/DocuFlow-sub000/internal/pipeline"
	"github.com/Dweliw01/DocuFlow-sub000/internal/review"
	"github.com/Dweliw01/DocuFlow-sub000/internal/store"
)

// Services holds all core services that flow through context.
// Components extract what they need via the individual extractors.
type Services struct {
	StoreClient *store.Client
	StoreSink   *store.Sink
	Repo        *store.Repo
	Engines     *engines.Registry
	Pool        *pipeline.Pool
	Review      *review.Service
	Connector   connector.Connector
	Config      *config.Manager
	Logger      *slog.Logger
	Home        *home.Dir
}

type servicesKey struct{}

// WithServices returns a new context with services attached.
func WithServices(ctx context.Context, s *Services) context.Context {
	return context.WithValue(ctx, servicesKey{}, s)
}

// ServicesFrom extracts the full Services struct from context.
// Returns nil if not present.
func ServicesFrom(ctx context.Context) *Services {
	s, _ := ctx.Value(servicesKey{}).(*Services)
	return s
}

// StoreClientFrom extracts the store client from context.
func StoreClientFrom(ctx context.Context) *store.Client {
	if s := ServicesFrom(ctx); s != nil {
		return s.StoreClient
	}
	return nil
}

// StoreSinkFrom extracts the async write sink from context.
func StoreSinkFrom(ctx context.Context) *store.Sink {
	if s := ServicesFrom(ctx); s != nil {
		return s.StoreSink
	}
	return nil
}

// RepoFrom extracts the typed repository from context.
func RepoFrom(ctx context.Context) *store.Repo {
	if s := ServicesFrom(ctx); s != nil {
		return s.Repo
	}
	return nil
}

// EnginesFrom extracts the engine registry from context.
func EnginesFrom(ctx context.Context) *engines.Registry {
	if s := ServicesFrom(ctx); s != nil {
		return s.Engines
	}
	return nil
}

// PoolFrom extracts the document worker pool from context.
func PoolFrom(ctx context.Context) *pipeline.Pool {
	if s := ServicesFrom(ctx); s != nil {
		return s.Pool
	}
	return nil
}

// ReviewFrom extracts the review service from context.
func ReviewFrom(ctx context.Context) *review.Service {
	if s := ServicesFrom(ctx); s != nil {
		return s.Review
	}
	return nil
}

// ConnectorFrom extracts the destination connector from context.
func ConnectorFrom(ctx context.Context) connector.Connector {
	if s := ServicesFrom(ctx); s != nil {
		return s.Connector
	}
	return nil
}

// ConfigFrom extracts the config manager from context.
func ConfigFrom(ctx context.Context) *config.Manager {
	if s := ServicesFrom(ctx); s != nil {
		return s.Config
	}
	return nil
}

// LoggerFrom extracts the logger from context.
func LoggerFrom(ctx context.Context) *slog.Logger {
	if s := ServicesFrom(ctx); s != nil {
		return s.Logger
	}
	return nil
}

// HomeFrom extracts the home directory from context.
func HomeFrom(ctx context.Context) *home.Dir {
	if s := ServicesFrom(ctx); s != nil {
		return s.Home
	}
	return nil
}
