package provider

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"
)

// Router holds the registered providers and picks one per caller. Workers
// route under their type, so bindings can pin e.g. the coder to a
// different provider than the rest of the system.
type Router struct {
	providers map[string]Provider
	bindings  map[string]string   // callerID -> providerID
	fallbacks map[string][]string // callerID -> providers to try after the primary
	defaultID string
	mu        sync.RWMutex
	logger    *zap.Logger
}

// NewRouter creates an empty provider router.
func NewRouter(logger *zap.Logger) *Router {
	return &Router{
		providers: make(map[string]Provider),
		bindings:  make(map[string]string),
		fallbacks: make(map[string][]string),
		logger:    logger,
	}
}

// Register adds a provider. The first registered provider becomes the
// default until SetDefault says otherwise.
func (r *Router) Register(p Provider) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.providers[p.ID()] = p
	if r.defaultID == "" {
		r.defaultID = p.ID()
	}
	r.logger.Info("registered provider",
		zap.String("id", p.ID()), zap.String("name", p.Name()))
}

// SetDefault picks the provider used when a caller has no binding.
func (r *Router) SetDefault(providerID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.defaultID = providerID
}

// DefaultID returns the current default provider ID.
func (r *Router) DefaultID() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.defaultID
}

// Bind pins a caller to a specific provider.
func (r *Router) Bind(callerID, providerID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.bindings[callerID] = providerID
}

// SetFallbacks configures the providers tried when a caller's primary fails.
func (r *Router) SetFallbacks(callerID string, providerIDs []string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.fallbacks[callerID] = providerIDs
}

// Route sends the request through the caller's provider, walking the
// fallback chain on failure.
func (r *Router) Route(ctx context.Context, callerID string, req *ChatRequest) (*ChatResponse, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	primary := r.pick(callerID)
	if primary == nil {
		return nil, fmt.Errorf("no provider available for %s", callerID)
	}

	resp, err := primary.Chat(ctx, req)
	if err == nil {
		return resp, nil
	}
	r.logger.Warn("primary provider failed",
		zap.String("caller", callerID),
		zap.String("provider", primary.ID()),
		zap.Error(err))

	for _, fbID := range r.fallbacks[callerID] {
		fb, ok := r.providers[fbID]
		if !ok {
			continue
		}
		resp, err = fb.Chat(ctx, req)
		if err == nil {
			return resp, nil
		}
		r.logger.Warn("fallback provider failed",
			zap.String("provider", fbID), zap.Error(err))
	}

	return nil, fmt.Errorf("all providers failed for %s: %w", callerID, err)
}

func (r *Router) pick(callerID string) Provider {
	if pid, ok := r.bindings[callerID]; ok {
		if p, ok := r.providers[pid]; ok {
			return p
		}
	}
	if p, ok := r.providers[r.defaultID]; ok {
		return p
	}
	return nil
}

// GetProvider returns a provider by ID.
func (r *Router) GetProvider(id string) (Provider, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.providers[id]
	return p, ok
}

// ListProviders returns all registered providers.
func (r *Router) ListProviders() []Provider {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Provider, 0, len(r.providers))
	for _, p := range r.providers {
		out = append(out, p)
	}
	return out
}
