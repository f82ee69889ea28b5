package provider

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/seenimoa/filingret/internal/infra"
)

// Fetcher defaults used when a FetcherSpec leaves them unset.
const (
	DefaultCacheTTL          = 5 * time.Minute
	DefaultRequestsPerSecond = 10
)

// FetcherSpec describes one fetcher: the model it serves, its parameters and
// how it is throttled. Sources that limit per client rather than per
// endpoint (EDGAR allows ten requests per second in total) pass the same
// Limiter to every sibling fetcher.
type FetcherSpec struct {
	Model       ModelType
	Description string
	Required    []string
	Optional    []string
	CacheTTL    time.Duration      // 0 → DefaultCacheTTL
	Limiter     *infra.RateLimiter // nil → DefaultRequestsPerSecond for this fetcher alone
}

// BaseFetcher carries the parameter contract, response cache and rate limit
// of a fetcher. Embed it in concrete fetchers.
type BaseFetcher struct {
	spec    FetcherSpec
	cache   *infra.Cache
	limiter *infra.RateLimiter
}

// NewBaseFetcher builds a base fetcher from spec.
func NewBaseFetcher(spec FetcherSpec) BaseFetcher {
	ttl := spec.CacheTTL
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	limiter := spec.Limiter
	if limiter == nil {
		limiter = infra.NewRateLimiter(DefaultRequestsPerSecond, time.Second)
	}
	return BaseFetcher{spec: spec, cache: infra.NewCache(ttl), limiter: limiter}
}

func (b *BaseFetcher) ModelType() ModelType     { return b.spec.Model }
func (b *BaseFetcher) Description() string      { return b.spec.Description }
func (b *BaseFetcher) RequiredParams() []string { return b.spec.Required }
func (b *BaseFetcher) OptionalParams() []string { return b.spec.Optional }

// CacheGet retrieves a value from the fetcher's cache.
func (b *BaseFetcher) CacheGet(key string) (any, bool) {
	return b.cache.Get(key)
}

// CacheSet stores a value in the fetcher's cache.
func (b *BaseFetcher) CacheSet(key string, value any) {
	b.cache.Set(key, value)
}

// RateLimit waits until a request slot is available.
func (b *BaseFetcher) RateLimit(ctx context.Context) error {
	return b.limiter.Wait(ctx)
}

// CacheKey builds a cache key from model type and query parameters. The
// provider override is not part of the key, and symbols are upper-cased so
// "aapl" and "AAPL" share an entry.
func CacheKey(model ModelType, params QueryParams) string {
	keys := make([]string, 0, len(params))
	for k := range params {
		if k == ParamProvider {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var sb strings.Builder
	sb.WriteString(string(model))
	for _, k := range keys {
		v := params[k]
		if k == ParamSymbol {
			v = strings.ToUpper(v)
		}
		sb.WriteString(":" + k + "=" + v)
	}
	return sb.String()
}

// BaseProvider provides common functionality for provider implementations.
// Embed this in concrete providers to simplify implementation.
type BaseProvider struct {
	info        ProviderInfo
	fetchers    map[ModelType]Fetcher
	credentials map[string]string
}

// NewBaseProvider creates a base provider.
func NewBaseProvider(name, description, website string, creds []ProviderCredential) BaseProvider {
	return BaseProvider{
		info: ProviderInfo{
			Name:        name,
			Description: description,
			Website:     website,
			Credentials: creds,
		},
		fetchers:    make(map[ModelType]Fetcher),
		credentials: make(map[string]string),
	}
}

func (bp *BaseProvider) Info() ProviderInfo { return bp.info }

// Init stores credentials after checking every required one is present.
func (bp *BaseProvider) Init(credentials map[string]string) error {
	for _, cred := range bp.info.Credentials {
		if !cred.Required {
			continue
		}
		if val, ok := credentials[cred.Name]; !ok || val == "" {
			return &ErrInvalidCredentials{
				Provider: bp.info.Name,
				Detail:   "missing required credential: " + cred.Name,
			}
		}
	}
	bp.credentials = credentials
	return nil
}

func (bp *BaseProvider) Fetcher(model ModelType) Fetcher {
	return bp.fetchers[model]
}

func (bp *BaseProvider) SupportedModels() []ModelType {
	models := make([]ModelType, 0, len(bp.fetchers))
	for m := range bp.fetchers {
		models = append(models, m)
	}
	sort.Slice(models, func(i, j int) bool { return models[i] < models[j] })
	return models
}

// Ping reports the provider reachable. Providers backed by a network
// service override it.
func (bp *BaseProvider) Ping(ctx context.Context) error { return nil }

// RegisterFetcher adds a fetcher to this provider.
func (bp *BaseProvider) RegisterFetcher(f Fetcher) {
	bp.fetchers[f.ModelType()] = f
	bp.info.Models = bp.SupportedModels()
}

// Credential returns a stored credential value.
func (bp *BaseProvider) Credential(name string) string {
	return bp.credentials[name]
}
