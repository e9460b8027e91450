package flow

import "context"

// Resolution is the outcome of routing a task category.
type Resolution struct {
	Category     TaskCategory `json:"category" yaml:"category"`
	Chosen       Provider     `json:"chosen" yaml:"chosen"`
	UsedFallback bool         `json:"usedFallback" yaml:"usedFallback"`
}

// Router selects a provider for a task category.
//
// Resolution is a pure function of the catalog and the registry's current
// answers: the primary when available, otherwise the secondary, otherwise
// NO_PROVIDER_CONFIGURED. There is no weighting or load balancing.
type Router struct {
	registry ProviderRegistry
	metrics  *PrometheusMetrics
}

// RouterOption configures a Router.
type RouterOption func(*Router)

// WithRouterMetrics records every resolution on metrics.
func WithRouterMetrics(metrics *PrometheusMetrics) RouterOption {
	return func(r *Router) {
		r.metrics = metrics
	}
}

// NewRouter creates a Router consulting registry.
func NewRouter(registry ProviderRegistry, opts ...RouterOption) *Router {
	r := &Router{registry: registry}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Mappings returns a copy of the task category catalog.
func (r *Router) Mappings() []TaskMapping {
	return Catalog()
}

// Mapping returns the effective mapping for category, including the default
// mapping for unregistered categories.
func (r *Router) Mapping(category TaskCategory) TaskMapping {
	m, _ := MappingFor(category)
	return m
}

// Resolve picks the provider for category. Registry errors are returned
// unchanged.
func (r *Router) Resolve(ctx context.Context, category TaskCategory) (Resolution, error) {
	res, err := r.resolve(ctx, category)
	r.metrics.RecordResolution(category, res, err)
	return res, err
}

func (r *Router) resolve(ctx context.Context, category TaskCategory) (Resolution, error) {
	m, _ := MappingFor(category)

	ok, err := r.registry.IsAvailable(ctx, m.Primary)
	if err != nil {
		return Resolution{}, err
	}
	if ok {
		return Resolution{Category: category, Chosen: providerFor(m.Primary)}, nil
	}

	if m.HasSecondary() {
		ok, err = r.registry.IsAvailable(ctx, m.Secondary)
		if err != nil {
			return Resolution{}, err
		}
		if ok {
			return Resolution{Category: category, Chosen: providerFor(m.Secondary), UsedFallback: true}, nil
		}
	}

	return Resolution{}, noProviderError(category)
}

func providerFor(id ProviderID) Provider {
	if p, ok := LookupProvider(id); ok {
		return p
	}
	return Provider{ID: id, DisplayName: string(id)}
}
