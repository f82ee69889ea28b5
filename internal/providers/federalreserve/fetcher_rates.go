package federalreserve

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/seenimoa/filingret/internal/provider"
	"github.com/seenimoa/filingret/pkg/models"
)

// ---------------------------------------------------------------------------
// FederalFundsRate (EFFR) - Effective Federal Funds Rate.
// URL: https://markets.newyorkfed.org/api/rates/unsecured/effr/search.json
// ---------------------------------------------------------------------------

// effrFirstDay is the first day the NY Fed publishes EFFR under its
// current methodology.
var effrFirstDay = time.Date(2016, 3, 1, 0, 0, 0, 0, time.UTC)

type federalFundsRateFetcher struct {
	provider.BaseFetcher
	baseURL string
}

func newFederalFundsRateFetcher(baseURL string) *federalFundsRateFetcher {
	return &federalFundsRateFetcher{
		BaseFetcher: provider.NewBaseFetcher(provider.FetcherSpec{
			Model:       provider.ModelFederalFundsRate,
			Description: "Federal Reserve effective federal funds rate (EFFR)",
			Optional:    []string{provider.ParamStartDate, provider.ParamEndDate},
		}),
		baseURL: baseURL,
	}
}

// Fetch returns []provider.SeriesPoint in percent, oldest first, matching
// FRED's DFF series.
func (f *federalFundsRateFetcher) Fetch(ctx context.Context, params provider.QueryParams) (*provider.FetchResult, error) {
	start, err := params.Date(provider.ParamStartDate, effrFirstDay)
	if err != nil {
		return nil, err
	}
	end, err := params.Date(provider.ParamEndDate, models.Day(time.Now()))
	if err != nil {
		return nil, err
	}

	cacheKey := provider.CacheKey(provider.ModelFederalFundsRate, params)
	if cached, ok := f.CacheGet(cacheKey); ok {
		res := newResult(cached)
		res.Cached = true
		return res, nil
	}
	if err := f.RateLimit(ctx); err != nil {
		return nil, err
	}

	var resp nyfedRatesResponse
	u := buildNYFedRatesURL(f.baseURL, "unsecured/effr", start.Format(models.DateLayout), end.Format(models.DateLayout))
	if err := fetchFedJSON(ctx, u, &resp); err != nil {
		return nil, fmt.Errorf("fed funds rate: %w", err)
	}

	points := make([]provider.SeriesPoint, 0, len(resp.RefRates))
	for _, r := range resp.RefRates {
		if _, err := models.ParseDate(r.EffectiveDate); err != nil {
			continue
		}
		points = append(points, provider.SeriesPoint{Date: r.EffectiveDate, Value: r.PercentRate})
	}
	// The API lists newest first.
	sort.Slice(points, func(i, j int) bool { return points[i].Date < points[j].Date })

	f.CacheSet(cacheKey, points)
	return newResult(points), nil
}
