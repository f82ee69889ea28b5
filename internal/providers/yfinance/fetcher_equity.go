package yfinance

import (
	"context"
	"fmt"
	"time"

	"github.com/seenimoa/filingret/internal/infra"
	"github.com/seenimoa/filingret/internal/provider"
	"github.com/seenimoa/filingret/pkg/models"
	"github.com/seenimoa/filingret/pkg/utils"
)

// --- EquityHistorical fetcher ---

type equityHistoricalFetcher struct {
	provider.BaseFetcher
	baseURL string
}

func newEquityHistoricalFetcher(baseURL string, limiter *infra.RateLimiter) *equityHistoricalFetcher {
	return &equityHistoricalFetcher{
		BaseFetcher: provider.NewBaseFetcher(provider.FetcherSpec{
			Model:       provider.ModelEquityHistorical,
			Description: "Daily OHLCV price history from Yahoo Finance",
			Required:    []string{provider.ParamSymbol},
			Optional:    []string{provider.ParamStartDate, provider.ParamEndDate, provider.ParamInterval},
			CacheTTL:    15 * time.Minute,
			Limiter:     limiter,
		}),
		baseURL: baseURL,
	}
}

// Fetch returns a models.PriceSeries. A symbol Yahoo knows but has no bars
// for in the window yields an empty series, not an error.
func (f *equityHistoricalFetcher) Fetch(ctx context.Context, params provider.QueryParams) (*provider.FetchResult, error) {
	if err := provider.ValidateParams(params, f.RequiredParams()); err != nil {
		return nil, err
	}
	symbol := utils.NormalizeTicker(params[provider.ParamSymbol])
	yfTicker := toYFTicker(symbol)

	startDate, endDate, err := dateRange(params)
	if err != nil {
		return nil, err
	}

	interval := params[provider.ParamInterval]
	if interval == "" {
		interval = "1d"
	}

	cacheKey := provider.CacheKey(f.ModelType(), params)
	if cached, ok := f.CacheGet(cacheKey); ok {
		return newCachedResult(f.ModelType(), cached), nil
	}

	if err := f.RateLimit(ctx); err != nil {
		return nil, err
	}

	// period2 is exclusive; push it past the end date so that day is included.
	url := fmt.Sprintf(
		"%s/v8/finance/chart/%s?period1=%d&period2=%d&interval=%s&events=div%%2Csplit",
		f.baseURL, yfTicker, startDate.Unix(), endDate.AddDate(0, 0, 1).Unix(), interval,
	)

	var resp yfChartResponse
	if err := fetchJSON(ctx, url, &resp); err != nil {
		return nil, fmt.Errorf("yfinance chart %s: %w", yfTicker, err)
	}

	if resp.Chart.Error != nil {
		return nil, fmt.Errorf("yfinance chart error: %s", resp.Chart.Error.Description)
	}

	series := models.PriceSeries{Ticker: symbol}
	if len(resp.Chart.Result) > 0 {
		series.Bars = parseBars(resp.Chart.Result[0])
	}
	series = series.SortedCopy()

	f.CacheSet(cacheKey, series)
	return newResult(f.ModelType(), series), nil
}

// parseBars converts a chart result into daily bars dated by the exchange's
// calendar day. Rows without a close are dropped by the caller.
func parseBars(result yfChartResult) []models.PriceBar {
	if len(result.Indicators.Quote) == 0 {
		return nil
	}

	loc := utils.ET
	if result.Meta.ExchangeTimezoneName != "" {
		if l, err := time.LoadLocation(result.Meta.ExchangeTimezoneName); err == nil {
			loc = l
		}
	}

	q := result.Indicators.Quote[0]
	var adjCloses []*float64
	if len(result.Indicators.AdjClose) > 0 {
		adjCloses = result.Indicators.AdjClose[0].AdjClose
	}

	bars := make([]models.PriceBar, 0, len(result.Timestamp))
	for i, ts := range result.Timestamp {
		y, m, d := time.Unix(ts, 0).In(loc).Date()
		b := models.PriceBar{
			Date: time.Date(y, m, d, 0, 0, 0, 0, time.UTC),
		}
		if i < len(q.Open) && q.Open[i] != nil {
			b.Open = *q.Open[i]
		}
		if i < len(q.High) && q.High[i] != nil {
			b.High = *q.High[i]
		}
		if i < len(q.Low) && q.Low[i] != nil {
			b.Low = *q.Low[i]
		}
		if i < len(q.Close) && q.Close[i] != nil {
			b.Close = *q.Close[i]
		}
		if i < len(q.Volume) && q.Volume[i] != nil {
			b.Volume = *q.Volume[i]
		}
		if i < len(adjCloses) && adjCloses[i] != nil {
			b.AdjClose = *adjCloses[i]
		}
		bars = append(bars, b)
	}
	return bars
}

// dateRange reads start_date/end_date, defaulting to the year up to today.
func dateRange(params provider.QueryParams) (start, end time.Time, err error) {
	if end, err = params.Date(provider.ParamEndDate, models.Day(time.Now())); err != nil {
		return
	}
	if start, err = params.Date(provider.ParamStartDate, end.AddDate(-1, 0, 0)); err != nil {
		return
	}
	if start.After(end) {
		err = fmt.Errorf("start_date %s after end_date %s", start.Format(models.DateLayout), end.Format(models.DateLayout))
	}
	return
}
