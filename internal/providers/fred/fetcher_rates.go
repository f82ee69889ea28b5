package fred

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/seenimoa/filingret/internal/infra"
	"github.com/seenimoa/filingret/internal/provider"
)

// seriesFetcher is a generic fetcher for a FRED series. A fixed seriesID
// serves one model; otherwise resolve picks the series from the params.
type seriesFetcher struct {
	provider.BaseFetcher
	baseURL  string
	seriesID string
	resolve  func(provider.QueryParams) (string, error)
}

func newSeriesFetcher(model provider.ModelType, desc, baseURL, seriesID string, required, optional []string, limiter *infra.RateLimiter) *seriesFetcher {
	return &seriesFetcher{
		BaseFetcher: provider.NewBaseFetcher(provider.FetcherSpec{
			Model:       model,
			Description: desc,
			Required:    required,
			Optional:    append([]string{provider.ParamStartDate, provider.ParamEndDate, provider.ParamLimit}, optional...),
			CacheTTL:    15 * time.Minute,
			Limiter:     limiter,
		}),
		baseURL:  baseURL,
		seriesID: seriesID,
	}
}

func (f *seriesFetcher) Fetch(ctx context.Context, params provider.QueryParams) (*provider.FetchResult, error) {
	if err := provider.ValidateParams(params, f.RequiredParams()); err != nil {
		return nil, err
	}
	if params[paramAPIKey] == "" {
		return nil, &provider.ErrInvalidCredentials{Provider: providerName, Detail: "missing api_key"}
	}

	seriesID := f.seriesID
	if f.resolve != nil {
		id, err := f.resolve(params)
		if err != nil {
			return nil, err
		}
		seriesID = id
	}

	cacheKey := provider.CacheKey(f.ModelType(), withoutKey(params))
	if cached, ok := f.CacheGet(cacheKey); ok {
		return newCachedResult(cached), nil
	}
	if err := f.RateLimit(ctx); err != nil {
		return nil, err
	}

	data, err := fetchFredSeries(ctx, f.baseURL, seriesID, params)
	if err != nil {
		return nil, fmt.Errorf("fred %s: %w", seriesID, err)
	}

	f.CacheSet(cacheKey, data)
	return newResult(data), nil
}

// withoutKey keeps the API key out of cache keys.
func withoutKey(params provider.QueryParams) provider.QueryParams {
	out := make(provider.QueryParams, len(params))
	for k, v := range params {
		if k != paramAPIKey {
			out[k] = v
		}
	}
	return out
}

// --- Fetcher constructors ---

func newFredSeriesFetcher(baseURL string, limiter *infra.RateLimiter) *seriesFetcher {
	f := newSeriesFetcher(
		provider.ModelFredSeries,
		"FRED time series observations by series ID",
		baseURL, "",
		[]string{provider.ParamSeriesID}, nil, limiter,
	)
	f.resolve = func(params provider.QueryParams) (string, error) {
		return strings.ToUpper(params[provider.ParamSeriesID]), nil
	}
	return f
}

func newFederalFundsRateFetcher(baseURL string, limiter *infra.RateLimiter) *seriesFetcher {
	return newSeriesFetcher(
		provider.ModelFederalFundsRate,
		"Effective Federal Funds Rate (daily) from FRED",
		baseURL, "DFF",
		nil, nil, limiter,
	)
}

// treasuryMaturities maps a maturity label to its constant-maturity series.
var treasuryMaturities = map[string]string{
	"1m":  "DGS1MO",
	"3m":  "DGS3MO",
	"6m":  "DGS6MO",
	"1y":  "DGS1",
	"2y":  "DGS2",
	"5y":  "DGS5",
	"10y": "DGS10",
	"30y": "DGS30",
}

func newTreasuryConstantMaturityFetcher(baseURL string, limiter *infra.RateLimiter) *seriesFetcher {
	f := newSeriesFetcher(
		provider.ModelTreasuryConstantMaturity,
		"Treasury Constant Maturity yields from FRED (default 10y)",
		baseURL, "DGS10",
		nil, []string{provider.ParamMaturity}, limiter,
	)
	f.resolve = func(params provider.QueryParams) (string, error) {
		m := strings.ToLower(strings.TrimSpace(params[provider.ParamMaturity]))
		if m == "" {
			return "DGS10", nil
		}
		id, ok := treasuryMaturities[m]
		if !ok {
			return "", fmt.Errorf("unsupported treasury maturity %q", m)
		}
		return id, nil
	}
	return f
}
