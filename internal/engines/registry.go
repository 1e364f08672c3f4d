package engines

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/Dweliw01/DocuFlow-sub000/internal/types"
)

// Registry holds the configured engine adapters keyed by variant.
// It supports config-driven instantiation and hot-reload, and provides
// thread-safe access for the router.
type Registry struct {
	mu       sync.RWMutex
	engines  map[types.EngineKind]Engine
	limiters map[types.EngineKind]*RateLimiter
	logger   *slog.Logger
}

// NewRegistry creates a new empty engine registry.
func NewRegistry() *Registry {
	return &Registry{
		engines:  make(map[types.EngineKind]Engine),
		limiters: make(map[types.EngineKind]*RateLimiter),
		logger:   slog.Default(),
	}
}

// SetLogger sets the logger for the registry.
func (r *Registry) SetLogger(logger *slog.Logger) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.logger = logger
}

// Register adds or replaces the engine for its variant.
func (r *Registry) Register(e Engine) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.engines[e.Kind()] = e
	r.limiters[e.Kind()] = NewRateLimiter(e.RequestsPerMinute())
	if r.logger != nil {
		r.logger.Info("registered engine", "name", e.Name(), "kind", e.Kind())
	}
}

// Unregister removes the engine for a variant.
func (r *Registry) Unregister(kind types.EngineKind) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.engines, kind)
	delete(r.limiters, kind)
	if r.logger != nil {
		r.logger.Info("unregistered engine", "kind", kind)
	}
}

// Get returns the engine for a variant.
func (r *Registry) Get(kind types.EngineKind) (Engine, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.engines[kind]
	if !ok {
		return nil, fmt.Errorf("engine not registered: %s", kind)
	}
	return e, nil
}

// Limiter returns the rate limiter for a variant, if registered.
func (r *Registry) Limiter(kind types.EngineKind) *RateLimiter {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.limiters[kind]
}

// Enabled returns the variants that currently have a registered engine.
func (r *Registry) Enabled() []types.EngineKind {
	r.mu.RLock()
	defer r.mu.RUnlock()
	kinds := make([]types.EngineKind, 0, len(r.engines))
	for k := range r.engines {
		kinds = append(kinds, k)
	}
	return kinds
}

// Has reports whether a variant is registered.
func (r *Registry) Has(kind types.EngineKind) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.engines[kind]
	return ok
}
