// Package federalreserve implements a Federal Reserve data provider backed by
// the NY Fed Markets API. It needs no API key, so it serves the policy rate
// when FRED is not configured.
package federalreserve

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/seenimoa/filingret/internal/infra"
	"github.com/seenimoa/filingret/internal/provider"
)

const (
	providerName = "federal_reserve"

	// NY Fed Markets API.
	baseNYFed = "https://markets.newyorkfed.org/api"
)

// Options configures the NY Fed endpoint. A zero BaseURL uses the public API.
type Options struct {
	BaseURL string
}

// Provider is the Federal Reserve data provider.
type Provider struct {
	provider.BaseProvider
	baseURL string
}

// New creates a new Federal Reserve provider and registers all fetchers.
func New(opts Options) *Provider {
	base := strings.TrimRight(opts.BaseURL, "/")
	if base == "" {
		base = baseNYFed
	}
	p := &Provider{
		BaseProvider: provider.NewBaseProvider(
			providerName,
			"Federal Reserve - NY Fed Markets API reference rates (free, no API key)",
			"https://www.newyorkfed.org/markets/reference-rates",
			nil, // no credentials required
		),
		baseURL: base,
	}

	// NY Fed JSON-based rates.
	p.RegisterFetcher(newFederalFundsRateFetcher(base))

	return p
}

// Ping verifies connectivity to the NY Fed Markets API.
func (p *Provider) Ping(ctx context.Context) error {
	body, _, err := infra.DoGet(ctx, p.baseURL+"/rates/unsecured/effr/last/1.json", fedHeaders)
	if err != nil {
		return err
	}
	body.Close()
	return nil
}

// ---------------------------------------------------------------------------
// HTTP helpers.
// ---------------------------------------------------------------------------

var fedHeaders = map[string]string{
	"Accept":          "application/json, */*",
	"Accept-Language": "en-US,en;q=0.9",
}

// fetchFedJSON fetches a NY Fed JSON endpoint and decodes into dst.
func fetchFedJSON(ctx context.Context, u string, dst any) error {
	body, _, err := infra.DoGet(ctx, u, fedHeaders)
	if err != nil {
		return err
	}
	defer body.Close()
	if err := json.NewDecoder(body).Decode(dst); err != nil {
		return fmt.Errorf("parse NY Fed JSON: %w", err)
	}
	return nil
}

// ---------------------------------------------------------------------------
// Utility functions.
// ---------------------------------------------------------------------------

// newResult creates a FetchResult with the current timestamp.
func newResult(data any) *provider.FetchResult {
	return &provider.FetchResult{
		Provider:  providerName,
		Data:      data,
		FetchedAt: time.Now(),
	}
}

// buildNYFedRatesURL builds a NY Fed rates search URL.
func buildNYFedRatesURL(base, rateType, startDate, endDate string) string {
	q := url.Values{}
	q.Set("startDate", startDate)
	q.Set("endDate", endDate)
	return fmt.Sprintf("%s/rates/%s/search.json?%s", base, rateType, q.Encode())
}
