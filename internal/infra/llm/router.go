// Vision provider router.
// Router selects the VisionProvider named by configuration at request time.
package llm

import (
	"context"
	"fmt"
	"sort"

	"github.com/matiasleandrokruk/macrometer/pkg/apperr"
)

// Router selects a VisionProvider for each request.
type Router struct {
	providers       map[string]VisionProvider
	defaultProvider string
}

// NewRouter creates a Router with an initial set of providers and a default key.
func NewRouter(providers map[string]VisionProvider, defaultProvider string) *Router {
	// copy so the caller cannot mutate the internal map.
	ps := make(map[string]VisionProvider, len(providers))
	for k, v := range providers {
		ps[k] = v
	}
	return &Router{providers: ps, defaultProvider: defaultProvider}
}

// Route returns the default provider. An unregistered default is a configuration error.
func (r *Router) Route(_ context.Context) (VisionProvider, error) {
	p, ok := r.providers[r.defaultProvider]
	if !ok {
		return nil, fmt.Errorf("%w: vision provider %q not registered (available: %v)", apperr.ErrConfiguration, r.defaultProvider, r.keys())
	}
	return p, nil
}

// Generate routes the request to the default provider; Router is itself a VisionProvider.
func (r *Router) Generate(ctx context.Context, req VisionRequest) (*VisionResponse, error) {
	p, err := r.Route(ctx)
	if err != nil {
		return nil, err
	}
	return p.Generate(ctx, req)
}

// ModelInfo reports the default provider's metadata, or an empty value if unregistered.
func (r *Router) ModelInfo() ModelMeta {
	if p, ok := r.providers[r.defaultProvider]; ok {
		return p.ModelInfo()
	}
	return ModelMeta{}
}

// HealthCheck checks the default provider.
func (r *Router) HealthCheck(ctx context.Context) error {
	p, err := r.Route(ctx)
	if err != nil {
		return err
	}
	return p.HealthCheck(ctx)
}

// keys returns the registered provider names, sorted, for error messages.
func (r *Router) keys() []string {
	out := make([]string, 0, len(r.providers))
	for k := range r.providers {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
