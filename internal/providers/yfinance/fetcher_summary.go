package yfinance

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/seenimoa/filingret/internal/infra"
	"github.com/seenimoa/filingret/internal/provider"
	"github.com/seenimoa/filingret/pkg/models"
	"github.com/seenimoa/filingret/pkg/utils"
)

// fetchSummary requests the given quoteSummary modules for one symbol.
// Yahoo answers a lookup for an unknown symbol with a non-null error body.
func fetchSummary(ctx context.Context, baseURL, yfTicker, modules string) (*yfQuoteSummaryResult, error) {
	url := fmt.Sprintf("%s/v10/finance/quoteSummary/%s?modules=%s", baseURL, yfTicker, modules)

	var resp yfQuoteSummaryResponse
	if err := fetchJSON(ctx, url, &resp); err != nil {
		return nil, fmt.Errorf("yfinance quoteSummary %s: %w", yfTicker, err)
	}
	if resp.QuoteSummary.Error != nil {
		return nil, fmt.Errorf("yfinance quoteSummary error: %s", resp.QuoteSummary.Error.Description)
	}
	if len(resp.QuoteSummary.Result) == 0 {
		return nil, fmt.Errorf("yfinance quoteSummary %s: empty result", yfTicker)
	}
	return &resp.QuoteSummary.Result[0], nil
}

// --- KeyStatistics fetcher ---

type keyStatisticsFetcher struct {
	provider.BaseFetcher
	baseURL string
}

func newKeyStatisticsFetcher(baseURL string, limiter *infra.RateLimiter) *keyStatisticsFetcher {
	return &keyStatisticsFetcher{
		BaseFetcher: provider.NewBaseFetcher(provider.FetcherSpec{
			Model:       provider.ModelKeyStatistics,
			Description: "Short interest and market cap snapshot from Yahoo Finance",
			Required:    []string{provider.ParamSymbol},
			CacheTTL:    time.Hour,
			Limiter:     limiter,
		}),
		baseURL: baseURL,
	}
}

// Fetch returns a *models.KeyStatistics as of now. Yahoo reports short
// interest as a fraction of float; it is converted to percent.
func (f *keyStatisticsFetcher) Fetch(ctx context.Context, params provider.QueryParams) (*provider.FetchResult, error) {
	if err := provider.ValidateParams(params, f.RequiredParams()); err != nil {
		return nil, err
	}
	symbol := utils.NormalizeTicker(params[provider.ParamSymbol])

	cacheKey := provider.CacheKey(f.ModelType(), params)
	if cached, ok := f.CacheGet(cacheKey); ok {
		return newCachedResult(f.ModelType(), cached), nil
	}
	if err := f.RateLimit(ctx); err != nil {
		return nil, err
	}

	res, err := fetchSummary(ctx, f.baseURL, toYFTicker(symbol), "defaultKeyStatistics,price")
	if err != nil {
		return nil, err
	}

	stats := &models.KeyStatistics{Symbol: symbol, AsOf: models.Day(time.Now())}
	if ks := res.DefaultKeyStatistics; ks != nil {
		stats.ShortPercentOfFloat = shortPercent(ks.ShortPercentOfFloat.Raw)
		stats.ShortRatio = ks.ShortRatio.Raw
		if ks.DateShortInterest.Raw != nil && *ks.DateShortInterest.Raw > 0 {
			stats.AsOf = models.Day(time.Unix(int64(*ks.DateShortInterest.Raw), 0).UTC())
		}
	}
	if res.Price != nil {
		stats.MarketCap = res.Price.MarketCap.Raw
	}

	f.CacheSet(cacheKey, stats)
	return newResult(f.ModelType(), stats), nil
}

// shortPercent normalizes Yahoo's short interest to percent. The field is a
// fraction (0.031) but some listings report it already scaled (3.1).
func shortPercent(raw *float64) *float64 {
	if raw == nil {
		return nil
	}
	v := *raw
	if v <= 1 {
		v *= 100
	}
	return &v
}

// --- EarningsHistory fetcher ---

type earningsHistoryFetcher struct {
	provider.BaseFetcher
	baseURL string
}

func newEarningsHistoryFetcher(baseURL string, limiter *infra.RateLimiter) *earningsHistoryFetcher {
	return &earningsHistoryFetcher{
		BaseFetcher: provider.NewBaseFetcher(provider.FetcherSpec{
			Model:       provider.ModelEarningsHistory,
			Description: "Consensus vs reported EPS for recent quarters from Yahoo Finance",
			Required:    []string{provider.ParamSymbol},
			CacheTTL:    6 * time.Hour,
			Limiter:     limiter,
		}),
		baseURL: baseURL,
	}
}

// Fetch returns []models.EarningsEstimate sorted by quarter end. Yahoo only
// keeps the last four quarters.
func (f *earningsHistoryFetcher) Fetch(ctx context.Context, params provider.QueryParams) (*provider.FetchResult, error) {
	if err := provider.ValidateParams(params, f.RequiredParams()); err != nil {
		return nil, err
	}
	symbol := utils.NormalizeTicker(params[provider.ParamSymbol])

	cacheKey := provider.CacheKey(f.ModelType(), params)
	if cached, ok := f.CacheGet(cacheKey); ok {
		return newCachedResult(f.ModelType(), cached), nil
	}
	if err := f.RateLimit(ctx); err != nil {
		return nil, err
	}

	res, err := fetchSummary(ctx, f.baseURL, toYFTicker(symbol), "earningsHistory")
	if err != nil {
		return nil, err
	}

	var out []models.EarningsEstimate
	if res.EarningsHistory != nil {
		for _, q := range res.EarningsHistory.History {
			if q.Quarter.Raw == nil {
				continue
			}
			out = append(out, models.EarningsEstimate{
				QuarterEnd:  models.Day(time.Unix(int64(*q.Quarter.Raw), 0).UTC()),
				EPSEstimate: q.EPSEstimate.Raw,
				EPSActual:   q.EPSActual.Raw,
			})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].QuarterEnd.Before(out[j].QuarterEnd) })

	f.CacheSet(cacheKey, out)
	return newResult(f.ModelType(), out), nil
}
