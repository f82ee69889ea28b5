package sec

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/seenimoa/filingret/internal/infra"
	"github.com/seenimoa/filingret/internal/provider"
	"github.com/seenimoa/filingret/pkg/models"
)

// ---- CikMap fetcher ----
// Resolves a ticker to its CIK using company_tickers.json.

type cikMapFetcher struct {
	provider.BaseFetcher
	client *edgarClient
}

func newCikMapFetcher(c *edgarClient, limiter *infra.RateLimiter) *cikMapFetcher {
	return &cikMapFetcher{
		BaseFetcher: provider.NewBaseFetcher(provider.FetcherSpec{
			Model:       provider.ModelCikMap,
			Description: "SEC ticker to CIK mapping",
			Required:    []string{provider.ParamSymbol},
			CacheTTL:    24 * time.Hour,
			Limiter:     limiter,
		}),
		client: c,
	}
}

func (f *cikMapFetcher) Fetch(ctx context.Context, params provider.QueryParams) (*provider.FetchResult, error) {
	if err := provider.ValidateParams(params, f.RequiredParams()); err != nil {
		return nil, err
	}
	symbol := strings.ToUpper(params[provider.ParamSymbol])
	cacheKey := provider.CacheKey(f.ModelType(), params)
	if cached, ok := f.CacheGet(cacheKey); ok {
		return newCachedResult(cached), nil
	}
	if err := f.RateLimit(ctx); err != nil {
		return nil, err
	}

	cik, name, err := f.client.resolveCIK(ctx, symbol)
	if err != nil {
		return nil, fmt.Errorf("sec cik map: %w", err)
	}
	m := &models.CIKMapping{CIK: cik, Symbol: symbol, Name: name}

	f.CacheSet(cacheKey, m)
	return newResult(m), nil
}
