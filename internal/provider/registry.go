package provider

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sort"
	"sync"
	"time"
)

// Registry is a thread-safe registry of data providers.
// It maps provider names to Provider instances and maintains an index
// of which providers support which standard model types.
type Registry struct {
	mu        sync.RWMutex
	providers map[string]Provider    // name → provider
	modelIdx  map[ModelType][]string // model → provider names (registration order)
	defaults  map[ModelType]string   // model → default provider name
}

// NewRegistry creates a new empty provider registry.
func NewRegistry() *Registry {
	return &Registry{
		providers: make(map[string]Provider),
		modelIdx:  make(map[ModelType][]string),
		defaults:  make(map[ModelType]string),
	}
}

// Register adds a provider to the registry. Providers with credentials must
// be Init'ed first. The first provider registered for a model becomes its
// default; re-registering a name replaces the provider in place.
func (r *Registry) Register(p Provider) error {
	info := p.Info()
	if info.Name == "" {
		return fmt.Errorf("provider name cannot be empty")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.providers[info.Name] = p
	for _, model := range p.SupportedModels() {
		if !slices.Contains(r.modelIdx[model], info.Name) {
			r.modelIdx[model] = append(r.modelIdx[model], info.Name)
		}
		if _, ok := r.defaults[model]; !ok {
			r.defaults[model] = info.Name
		}
	}
	return nil
}

// Get returns a provider by name, or an error if not found.
func (r *Registry) Get(name string) (Provider, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.providers[name]
	if !ok {
		return nil, &ErrProviderNotFound{Name: name}
	}
	return p, nil
}

// List returns info about all registered providers, sorted by name.
func (r *Registry) List() []ProviderInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()

	infos := make([]ProviderInfo, 0, len(r.providers))
	for _, p := range r.providers {
		infos = append(infos, p.Info())
	}
	sort.Slice(infos, func(i, j int) bool {
		return infos[i].Name < infos[j].Name
	})
	return infos
}

// ProvidersFor returns the names of the providers that serve model, default
// first, then the rest in registration order. This is the order
// FetchWithFallback tries them in.
func (r *Registry) ProvidersFor(model ModelType) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.chainLocked(model, "")
}

func (r *Registry) chainLocked(model ModelType, preferred string) []string {
	names := r.modelIdx[model]
	out := make([]string, 0, len(names)+1)
	if preferred == "" {
		preferred = r.defaults[model]
	}
	if preferred != "" {
		out = append(out, preferred)
	}
	for _, n := range names {
		if n != preferred {
			out = append(out, n)
		}
	}
	return out
}

// DefaultProvider returns the default provider name for a model type.
func (r *Registry) DefaultProvider(model ModelType) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	name, ok := r.defaults[model]
	return name, ok
}

// SetDefault sets the default provider for a model type.
func (r *Registry) SetDefault(model ModelType, providerName string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.providers[providerName]
	if !ok {
		return &ErrProviderNotFound{Name: providerName}
	}
	if p.Fetcher(model) == nil {
		return &ErrModelNotSupported{Provider: providerName, Model: model}
	}
	r.defaults[model] = providerName
	return nil
}

// Coverage is one model and the providers that can serve it, in fallback
// order.
type Coverage struct {
	Model     ModelType
	Providers []string
}

// Coverage lists every served model, sorted by model name.
func (r *Registry) Coverage() []Coverage {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Coverage, 0, len(r.modelIdx))
	for model := range r.modelIdx {
		out = append(out, Coverage{Model: model, Providers: r.chainLocked(model, "")})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Model < out[j].Model })
	return out
}

// Fetch retrieves data for the given model type using the provider named
// by params[ParamProvider], or the model's default.
func (r *Registry) Fetch(ctx context.Context, model ModelType, params QueryParams) (*FetchResult, error) {
	providerName := params[ParamProvider]

	r.mu.RLock()
	if providerName == "" {
		providerName = r.defaults[model]
	}
	p, ok := r.providers[providerName]
	r.mu.RUnlock()

	if !ok || providerName == "" {
		return nil, &ErrProviderNotFound{Name: providerName}
	}
	return fetchFrom(ctx, p, providerName, model, params)
}

func fetchFrom(ctx context.Context, p Provider, name string, model ModelType, params QueryParams) (*FetchResult, error) {
	fetcher := p.Fetcher(model)
	if fetcher == nil {
		return nil, &ErrModelNotSupported{Provider: name, Model: model}
	}
	if err := ValidateParams(params, fetcher.RequiredParams()); err != nil {
		return nil, err
	}

	result, err := fetcher.Fetch(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("provider %q fetch %s: %w", name, model, err)
	}
	result.Provider = name
	result.Model = model
	if result.FetchedAt.IsZero() {
		result.FetchedAt = time.Now()
	}
	return result, nil
}

// FetchWithFallback tries each provider of model in ProvidersFor order,
// starting with params[ParamProvider] when set, and returns the first
// success. Cancellation stops the chain. When every provider fails the
// error joins each provider's failure.
func (r *Registry) FetchWithFallback(ctx context.Context, model ModelType, params QueryParams) (*FetchResult, error) {
	r.mu.RLock()
	chain := r.chainLocked(model, params[ParamProvider])
	providers := make([]Provider, len(chain))
	for i, name := range chain {
		providers[i] = r.providers[name]
	}
	r.mu.RUnlock()

	if len(chain) == 0 {
		return nil, fmt.Errorf("no provider serves model %s", model)
	}

	var errs []error
	for i, name := range chain {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if providers[i] == nil {
			errs = append(errs, &ErrProviderNotFound{Name: name})
			continue
		}
		result, err := fetchFrom(ctx, providers[i], name, model, params)
		if err == nil {
			return result, nil
		}
		errs = append(errs, err)
	}
	return nil, fmt.Errorf("all providers failed for model %s: %w", model, errors.Join(errs...))
}

// FetchAs fetches a model from its default (or named) provider and asserts
// the result data to T.
func FetchAs[T any](ctx context.Context, r *Registry, model ModelType, params QueryParams) (T, error) {
	result, err := r.Fetch(ctx, model, params)
	if err != nil {
		var zero T
		return zero, err
	}
	return dataAs[T](result)
}

// FetchAnyAs is FetchAs over the FetchWithFallback chain.
func FetchAnyAs[T any](ctx context.Context, r *Registry, model ModelType, params QueryParams) (T, error) {
	result, err := r.FetchWithFallback(ctx, model, params)
	if err != nil {
		var zero T
		return zero, err
	}
	return dataAs[T](result)
}

func dataAs[T any](result *FetchResult) (T, error) {
	data, ok := result.Data.(T)
	if !ok {
		var zero T
		return zero, fmt.Errorf("provider %q returned %T for %s, want %T", result.Provider, result.Data, result.Model, zero)
	}
	return data, nil
}
