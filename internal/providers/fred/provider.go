// Package fred implements the FRED (Federal Reserve Economic Data) provider.
// FRED provides free access to economic time series; filingret uses it for
// the macro context around a filing (policy rate, treasury yields).
//
// Requires a free API key from https://fred.stlouisfed.org/docs/api/api_key.html
// Rate limit: 120 requests/minute.
// Docs: https://fred.stlouisfed.org/docs/api/fred/
package fred

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/seenimoa/filingret/internal/infra"
	"github.com/seenimoa/filingret/internal/provider"
)

const (
	providerName   = "fred"
	defaultBaseURL = "https://api.stlouisfed.org/fred"
	credAPIKey     = "api_key"

	// paramAPIKey carries the key from the injector to the fetchers.
	paramAPIKey = "_fred_api_key"
)

// Options configures the FRED endpoint. A zero BaseURL uses the public API.
type Options struct {
	BaseURL string
}

// Provider implements provider.Provider for FRED.
type Provider struct {
	provider.BaseProvider
	apiKey  string
	baseURL string
}

// New creates a new FRED provider and registers all fetchers.
func New(opts Options) *Provider {
	base := strings.TrimRight(opts.BaseURL, "/")
	if base == "" {
		base = defaultBaseURL
	}
	p := &Provider{
		BaseProvider: provider.NewBaseProvider(
			providerName,
			"Federal Reserve Economic Data - rates and macro time series",
			"https://fred.stlouisfed.org",
			[]provider.ProviderCredential{
				{
					Name:        credAPIKey,
					Description: "FRED API key from fred.stlouisfed.org",
					Required:    true,
					EnvVar:      "FRED_API_KEY",
				},
			},
		),
		baseURL: base,
	}

	// 120 requests/minute across the whole API.
	limiter := infra.NewRateLimiter(2, time.Second)

	// --- Core FRED ---
	p.RegisterFetcher(newFredSeriesFetcher(base, limiter))

	// --- Fixed Income / Rates ---
	p.RegisterFetcher(newFederalFundsRateFetcher(base, limiter))
	p.RegisterFetcher(newTreasuryConstantMaturityFetcher(base, limiter))

	return p
}

// Init stores the API key.
func (p *Provider) Init(credentials map[string]string) error {
	if err := p.BaseProvider.Init(credentials); err != nil {
		return err
	}
	p.apiKey = credentials[credAPIKey]
	return nil
}

// Ping checks connectivity to FRED API.
func (p *Provider) Ping(ctx context.Context) error {
	body, _, err := infra.DoGet(ctx, fredURL(p.baseURL, "series", url.Values{"series_id": {"GDP"}}, p.apiKey), jsonHeaders())
	if err != nil {
		return fmt.Errorf("fred ping: %w", err)
	}
	body.Close()
	return nil
}

// APIKey returns the stored API key.
func (p *Provider) APIKey() string {
	return p.apiKey
}

// Fetcher overrides BaseProvider.Fetcher to return a wrapper that
// auto-injects the FRED API key into query params before delegating.
func (p *Provider) Fetcher(model provider.ModelType) provider.Fetcher {
	inner := p.BaseProvider.Fetcher(model)
	if inner == nil {
		return nil
	}
	return &apiKeyInjector{inner: inner, apiKey: &p.apiKey}
}

// apiKeyInjector wraps a Fetcher and injects the FRED API key.
type apiKeyInjector struct {
	inner  provider.Fetcher
	apiKey *string
}

func (w *apiKeyInjector) ModelType() provider.ModelType { return w.inner.ModelType() }
func (w *apiKeyInjector) Description() string           { return w.inner.Description() }
func (w *apiKeyInjector) RequiredParams() []string      { return w.inner.RequiredParams() }
func (w *apiKeyInjector) OptionalParams() []string      { return w.inner.OptionalParams() }

func (w *apiKeyInjector) Fetch(ctx context.Context, params provider.QueryParams) (*provider.FetchResult, error) {
	enriched := make(provider.QueryParams, len(params)+1)
	for k, v := range params {
		enriched[k] = v
	}
	enriched[paramAPIKey] = *w.apiKey
	return w.inner.Fetch(ctx, enriched)
}

// --- Shared helpers ---

func jsonHeaders() map[string]string {
	return map[string]string{"Accept": "application/json"}
}

// fredURL builds a full FRED API URL with api_key and file_type=json appended.
func fredURL(base, endpoint string, q url.Values, apiKey string) string {
	if q == nil {
		q = url.Values{}
	}
	q.Set("api_key", apiKey)
	q.Set("file_type", "json")
	return base + "/" + endpoint + "?" + q.Encode()
}

// fetchFredJSON performs a GET request to FRED API and decodes JSON.
func fetchFredJSON(ctx context.Context, u string, dest any) error {
	body, _, err := infra.DoGet(ctx, u, jsonHeaders())
	if err != nil {
		return err
	}
	defer body.Close()

	data, err := io.ReadAll(body)
	if err != nil {
		return fmt.Errorf("read FRED response: %w", err)
	}

	if err := json.Unmarshal(data, dest); err != nil {
		return fmt.Errorf("parse FRED JSON: %w", err)
	}
	return nil
}

// fetchFredSeries fetches a FRED series by ID and converts the observations
// to series points. FRED marks missing observations with "."; those are
// skipped.
func fetchFredSeries(ctx context.Context, base, seriesID string, params provider.QueryParams) ([]provider.SeriesPoint, error) {
	q := url.Values{"series_id": {seriesID}}
	if sd := params[provider.ParamStartDate]; sd != "" {
		q.Set("observation_start", sd)
	}
	if ed := params[provider.ParamEndDate]; ed != "" {
		q.Set("observation_end", ed)
	}
	if lim := params[provider.ParamLimit]; lim != "" {
		q.Set("limit", lim)
	}

	var resp fredObservationsResponse
	if err := fetchFredJSON(ctx, fredURL(base, "series/observations", q, params[paramAPIKey]), &resp); err != nil {
		return nil, err
	}

	points := make([]provider.SeriesPoint, 0, len(resp.Observations))
	for _, o := range resp.Observations {
		v, err := strconv.ParseFloat(o.Value, 64)
		if err != nil {
			continue
		}
		points = append(points, provider.SeriesPoint{Date: o.Date, Value: v})
	}
	return points, nil
}

func newResult(data any) *provider.FetchResult {
	return &provider.FetchResult{
		Provider:  providerName,
		Data:      data,
		FetchedAt: time.Now(),
	}
}

func newCachedResult(data any) *provider.FetchResult {
	r := newResult(data)
	r.Cached = true
	return r
}
