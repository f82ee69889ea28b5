// Package sec implements the SEC EDGAR data provider.
// SEC EDGAR provides free access to company filing indexes, XBRL company
// facts, CIK mappings and the filing documents themselves.
//
// No API key required. Must include a User-Agent header per SEC policy.
// Docs: https://www.sec.gov/edgar/sec-api-documentation
// Rate limit: 10 requests/second per user-agent.
package sec

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/seenimoa/filingret/internal/infra"
	"github.com/seenimoa/filingret/internal/provider"
)

const (
	providerName = "sec"

	defaultDataURL   = "https://data.sec.gov" // JSON data API
	defaultWWWURL    = "https://www.sec.gov"  // archives, browse-edgar, files
	defaultUserAgent = "filingret/1.0 research contact@example.com"
	defaultDelay     = 120 * time.Millisecond
)

// Options configures the EDGAR endpoints and politeness settings. Zero
// values fall back to the public endpoints.
type Options struct {
	UserAgent string
	DataURL   string
	WWWURL    string
	Delay     time.Duration // minimum spacing between any two EDGAR calls
}

func (o Options) withDefaults() Options {
	if o.UserAgent == "" {
		o.UserAgent = defaultUserAgent
	}
	if o.DataURL == "" {
		o.DataURL = defaultDataURL
	}
	if o.WWWURL == "" {
		o.WWWURL = defaultWWWURL
	}
	if o.Delay <= 0 {
		o.Delay = defaultDelay
	}
	o.DataURL = strings.TrimRight(o.DataURL, "/")
	o.WWWURL = strings.TrimRight(o.WWWURL, "/")
	return o
}

// Provider implements provider.Provider for SEC EDGAR.
type Provider struct {
	provider.BaseProvider
	client *edgarClient
}

// New creates a new SEC provider and registers all fetchers. Every fetcher
// shares one limiter: EDGAR's limit is per client, not per endpoint.
func New(opts Options) *Provider {
	opts = opts.withDefaults()
	c := &edgarClient{opts: opts}
	limiter := infra.NewIntervalLimiter(opts.Delay)

	p := &Provider{
		BaseProvider: provider.NewBaseProvider(
			providerName,
			"SEC EDGAR - periodic filings, XBRL company facts and CIK mappings",
			"https://www.sec.gov/edgar",
			nil, // No credentials required
		),
		client: c,
	}

	// --- Filings ---
	p.RegisterFetcher(newSecFilingFetcher(c, limiter))
	p.RegisterFetcher(newCompanyFilingsFetcher(c, limiter))
	p.RegisterFetcher(newFilingDocumentFetcher(c, limiter))

	// --- Mappings ---
	p.RegisterFetcher(newCikMapFetcher(c, limiter))

	// --- Facts ---
	p.RegisterFetcher(newCompanyFactsFetcher(c, limiter))

	return p
}

// Ping checks connectivity to SEC EDGAR.
func (p *Provider) Ping(ctx context.Context) error {
	url := p.client.opts.DataURL + "/submissions/CIK0000320193.json" // Apple
	body, _, err := infra.DoGet(ctx, url, p.client.headers("application/json"))
	if err != nil {
		return fmt.Errorf("sec ping: %w", err)
	}
	body.Close()
	return nil
}

// --- Shared client ---

// edgarClient carries the endpoint configuration and the lazily loaded
// ticker → CIK table shared by the fetchers.
type edgarClient struct {
	opts Options

	mu      sync.Mutex
	tickers map[string]edgarTickerEntry // upper-case ticker → entry
}

func (c *edgarClient) headers(accept string) map[string]string {
	return map[string]string{
		"User-Agent": c.opts.UserAgent,
		"Accept":     accept,
	}
}

// fetchJSON performs a GET request to an EDGAR endpoint and decodes JSON.
func (c *edgarClient) fetchJSON(ctx context.Context, url string, dest any) error {
	data, err := c.fetchRaw(ctx, url, "application/json")
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, dest); err != nil {
		return fmt.Errorf("parse SEC JSON: %w", err)
	}
	return nil
}

// fetchRaw performs a GET request and returns raw bytes.
func (c *edgarClient) fetchRaw(ctx context.Context, url, accept string) ([]byte, error) {
	body, _, err := infra.DoGet(ctx, url, c.headers(accept))
	if err != nil {
		return nil, err
	}
	defer body.Close()

	data, err := io.ReadAll(body)
	if err != nil {
		return nil, fmt.Errorf("read SEC response: %w", err)
	}
	return data, nil
}

// tickerTable loads company_tickers.json once per provider.
func (c *edgarClient) tickerTable(ctx context.Context) (map[string]edgarTickerEntry, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.tickers != nil {
		return c.tickers, nil
	}

	var raw map[string]edgarTickerEntry
	if err := c.fetchJSON(ctx, c.opts.WWWURL+"/files/company_tickers.json", &raw); err != nil {
		return nil, fmt.Errorf("fetch company tickers: %w", err)
	}
	table := make(map[string]edgarTickerEntry, len(raw))
	for _, e := range raw {
		sym := strings.ToUpper(e.Ticker)
		if _, dup := table[sym]; !dup {
			table[sym] = e
		}
	}
	c.tickers = table
	return table, nil
}

// resolveCIK maps a ticker to its zero-padded CIK. Numeric input is treated
// as a CIK already.
func (c *edgarClient) resolveCIK(ctx context.Context, symbol string) (string, string, error) {
	sym := strings.ToUpper(strings.TrimSpace(symbol))
	if isNumeric(sym) {
		return padCIK(sym), "", nil
	}
	table, err := c.tickerTable(ctx)
	if err != nil {
		return "", "", err
	}
	// EDGAR lists class shares with a dash (BRK-B).
	for _, cand := range []string{sym, strings.ReplaceAll(sym, ".", "-")} {
		if e, ok := table[cand]; ok {
			return padCIK(fmt.Sprint(e.CIK)), e.Title, nil
		}
	}
	return "", "", fmt.Errorf("CIK not found for symbol %s", symbol)
}

// padCIK pads a CIK number to 10 digits with leading zeros.
func padCIK(cik string) string {
	for len(cik) < 10 {
		cik = "0" + cik
	}
	return cik
}

func isNumeric(s string) bool {
	for _, c := range s {
		if c < '0' || c > '9' {
			return false
		}
	}
	return len(s) > 0
}

func newResult(data any) *provider.FetchResult {
	return &provider.FetchResult{
		Provider:  providerName,
		Data:      data,
		FetchedAt: time.Now(),
	}
}

func newCachedResult(data any) *provider.FetchResult {
	return &provider.FetchResult{
		Provider:  providerName,
		Data:      data,
		FetchedAt: time.Now(),
		Cached:    true,
	}
}
