// Package yfinance implements the Yahoo Finance data provider.
// It wraps the public v8 chart and v10 quoteSummary APIs into the standard
// provider/fetcher framework: daily price history for equities, ETFs and
// indices, plus short interest and consensus EPS for equities.
//
// Yahoo Finance is a free, no-API-key provider.
package yfinance

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/seenimoa/filingret/internal/infra"
	"github.com/seenimoa/filingret/internal/provider"
	"github.com/seenimoa/filingret/pkg/utils"
)

const (
	providerName   = "yfinance"
	defaultBaseURL = "https://query1.finance.yahoo.com"
)

// Options configures the chart endpoint. Zero values use the public host.
type Options struct {
	BaseURL string
	Delay   time.Duration // minimum spacing between requests
}

// Provider implements provider.Provider for Yahoo Finance.
type Provider struct {
	provider.BaseProvider
	baseURL string
}

// New creates a new YFinance provider and registers all fetchers.
func New(opts Options) *Provider {
	base := strings.TrimRight(opts.BaseURL, "/")
	if base == "" {
		base = defaultBaseURL
	}
	p := &Provider{
		BaseProvider: provider.NewBaseProvider(
			providerName,
			"Yahoo Finance - free daily price history",
			"https://finance.yahoo.com",
			nil, // no credentials required
		),
		baseURL: base,
	}

	// One limiter for the host: Yahoo throttles per client, not per endpoint.
	limiter := infra.NewRateLimiter(5, time.Second)
	if opts.Delay > 0 {
		limiter = infra.NewIntervalLimiter(opts.Delay)
	}

	// --- Equity / Price ---
	p.RegisterFetcher(newEquityHistoricalFetcher(base, limiter))

	// --- Short interest / Consensus ---
	p.RegisterFetcher(newKeyStatisticsFetcher(base, limiter))
	p.RegisterFetcher(newEarningsHistoryFetcher(base, limiter))

	return p
}

// Ping checks connectivity to Yahoo Finance.
func (p *Provider) Ping(ctx context.Context) error {
	url := p.baseURL + "/v8/finance/chart/SPY?range=5d&interval=1d"
	body, _, err := infra.DoGet(ctx, url, jsonHeaders())
	if err != nil {
		return fmt.Errorf("yfinance ping: %w", err)
	}
	body.Close()
	return nil
}

// --- Shared helpers ---

func jsonHeaders() map[string]string {
	return map[string]string{"Accept": "application/json"}
}

// fetchJSON performs a GET request and decodes the response into dest.
func fetchJSON(ctx context.Context, url string, dest any) error {
	body, _, err := infra.DoGet(ctx, url, jsonHeaders())
	if err != nil {
		return err
	}
	defer body.Close()

	data, err := io.ReadAll(body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if err := json.Unmarshal(data, dest); err != nil {
		return fmt.Errorf("parse JSON: %w", err)
	}
	return nil
}

// toYFTicker converts a symbol to Yahoo Finance format.
func toYFTicker(symbol string) string {
	// Already a Yahoo index or suffixed symbol.
	if strings.HasPrefix(symbol, "^") {
		return symbol
	}
	return utils.ToYFinanceTicker(symbol)
}

// newResult creates a FetchResult with the current timestamp.
func newResult(model provider.ModelType, data any) *provider.FetchResult {
	return &provider.FetchResult{
		Provider:  providerName,
		Model:     model,
		Data:      data,
		FetchedAt: time.Now(),
	}
}

// newCachedResult creates a FetchResult marked as cached.
func newCachedResult(model provider.ModelType, data any) *provider.FetchResult {
	r := newResult(model, data)
	r.Cached = true
	return r
}
